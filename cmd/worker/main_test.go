package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pickup/internal/config"
	"pickup/internal/pickup"
	"pickup/internal/plateclient"
	"pickup/internal/queue"
)

type fakeDetectionStore struct {
	active    map[string]bool
	recent    *pickup.PlateLog
	inserted  []pickup.PlateLog
	lookupErr error
	insertErr error
}

func (f *fakeDetectionStore) CameraActive(_ context.Context, cameraID string) (bool, error) {
	if f.lookupErr != nil {
		return false, f.lookupErr
	}
	return f.active[cameraID], nil
}

func (f *fakeDetectionStore) RecentDetection(_ context.Context, _, _ string, _ time.Duration) (*pickup.PlateLog, error) {
	return f.recent, nil
}

func (f *fakeDetectionStore) InsertPlateLog(_ context.Context, p pickup.PlateLog) (pickup.PlateLog, error) {
	if f.insertErr != nil {
		return pickup.PlateLog{}, f.insertErr
	}
	f.inserted = append(f.inserted, p)
	return p, nil
}

// capturePublisher records re-queued detections.
type capturePublisher struct {
	published []queue.Detection
}

func (c *capturePublisher) Publish(_ context.Context, d queue.Detection) error {
	c.published = append(c.published, d)
	return nil
}

func (c *capturePublisher) Consume(context.Context) (<-chan queue.Detection, error) {
	return nil, nil
}

func workerConfig() config.App {
	return config.App{DedupWindow: 5 * time.Minute, PlateThreshold: 0.7, PlateSkip: true}
}

func testDetection() queue.Detection {
	return queue.Detection{ID: "d1", CameraID: "cam-1", Plate: "KA01AB1234", DetectedAt: time.Now().UTC()}
}

func TestHandleDetectionStores(t *testing.T) {
	repo := &fakeDetectionStore{active: map[string]bool{"cam-1": true}}

	requeue, err := handleDetection(context.Background(), repo, plateclient.New("", true), workerConfig(), testDetection())
	require.NoError(t, err)
	assert.False(t, requeue)
	require.Len(t, repo.inserted, 1)
	assert.Equal(t, pickup.DetectionRecorded, repo.inserted[0].Status)
	assert.Nil(t, repo.inserted[0].Confidence)
}

func TestHandleDetectionVerifiesWithSnapshot(t *testing.T) {
	repo := &fakeDetectionStore{active: map[string]bool{"cam-1": true}}

	d := testDetection()
	d.SnapshotURL = "https://img.example/1.jpg"
	requeue, err := handleDetection(context.Background(), repo, plateclient.New("", true), workerConfig(), d)
	require.NoError(t, err)
	assert.False(t, requeue)
	require.Len(t, repo.inserted, 1)
	assert.Equal(t, pickup.DetectionVerified, repo.inserted[0].Status)
	require.NotNil(t, repo.inserted[0].Confidence)
	assert.GreaterOrEqual(t, *repo.inserted[0].Confidence, 0.7)
}

func TestHandleDetectionDropsInactiveCamera(t *testing.T) {
	repo := &fakeDetectionStore{active: map[string]bool{}}

	requeue, err := handleDetection(context.Background(), repo, plateclient.New("", true), workerConfig(), testDetection())
	require.NoError(t, err)
	assert.False(t, requeue, "unknown-camera detections are dropped, not retried")
	assert.Empty(t, repo.inserted)
}

func TestHandleDetectionDropsDuplicate(t *testing.T) {
	repo := &fakeDetectionStore{
		active: map[string]bool{"cam-1": true},
		recent: &pickup.PlateLog{ID: "earlier"},
	}

	requeue, err := handleDetection(context.Background(), repo, plateclient.New("", true), workerConfig(), testDetection())
	require.NoError(t, err)
	assert.False(t, requeue)
	assert.Empty(t, repo.inserted)
}

func TestHandleDetectionRequeuesOnStoreError(t *testing.T) {
	insertFail := &fakeDetectionStore{active: map[string]bool{"cam-1": true}, insertErr: assert.AnError}
	requeue, err := handleDetection(context.Background(), insertFail, plateclient.New("", true), workerConfig(), testDetection())
	require.Error(t, err)
	assert.True(t, requeue)

	lookupFail := &fakeDetectionStore{lookupErr: assert.AnError}
	requeue, err = handleDetection(context.Background(), lookupFail, plateclient.New("", true), workerConfig(), testDetection())
	require.Error(t, err)
	assert.True(t, requeue)
}

func TestRunLoopRepublishesOnStoreError(t *testing.T) {
	repo := &fakeDetectionStore{active: map[string]bool{"cam-1": true}, insertErr: assert.AnError}
	q := &capturePublisher{}

	messages := make(chan queue.Detection, 1)
	messages <- testDetection()
	close(messages)

	runLoop(context.Background(), messages, q, repo, plateclient.New("", true), workerConfig())

	require.Len(t, q.published, 1)
	assert.Equal(t, "d1", q.published[0].ID)
}
