package pickup

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListQueueExcludesRejected(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"user_id", "child1_name", "vehicle_number", "full_name", "detected_at"}).
		AddRow("u2", "D", "MH12DE1433", "E F", now).
		AddRow("u1", "C", "KA01AB1234", "A B", now.Add(-time.Minute))

	// The rejected status must be filtered out in SQL, not in Go.
	mock.ExpectQuery(`WHERE p\.status <> \$1`).
		WithArgs(DetectionRejected).
		WillReturnRows(rows)

	entries, err := NewRepository(db).ListQueue(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "D", entries[0].StudentName)
	assert.Equal(t, "Parent", entries[0].Relationship)
	assert.Equal(t, "Arrived", entries[0].Status)
	assert.True(t, !entries[0].ArrivalTime.Before(entries[1].ArrivalTime))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListQueueEmpty(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`WHERE p\.status <> \$1`).
		WithArgs(DetectionRejected).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "child1_name", "vehicle_number", "full_name", "detected_at"}))

	entries, err := NewRepository(db).ListQueue(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.NoError(t, mock.ExpectationsWereMet())
}
