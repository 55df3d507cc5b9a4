package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryPublishConsume(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := NewInMemory(4)
	d1 := Detection{ID: "d1", CameraID: "cam-1", Plate: "KA01AB1234", DetectedAt: time.Now().UTC()}
	d2 := Detection{ID: "d2", CameraID: "cam-1", Plate: "MH12DE1433", DetectedAt: time.Now().UTC()}

	require.NoError(t, q.Publish(ctx, d1))
	require.NoError(t, q.Publish(ctx, d2))

	out, err := q.Consume(ctx)
	require.NoError(t, err)

	got1 := <-out
	got2 := <-out
	assert.Equal(t, "d1", got1.ID)
	assert.Equal(t, "KA01AB1234", got1.Plate)
	assert.Equal(t, "d2", got2.ID)
}

func TestInMemoryPublishHonorsCancel(t *testing.T) {
	q := NewInMemory(1)
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, q.Publish(ctx, Detection{ID: "fill"}))
	cancel()

	err := q.Publish(ctx, Detection{ID: "blocked"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestInMemoryConsumeClosesOnCancel(t *testing.T) {
	q := NewInMemory(1)
	ctx, cancel := context.WithCancel(context.Background())

	out, err := q.Consume(ctx)
	require.NoError(t, err)
	cancel()

	select {
	case _, open := <-out:
		assert.False(t, open, "channel must close after cancel")
	case <-time.After(time.Second):
		t.Fatal("consume channel did not close")
	}
}
