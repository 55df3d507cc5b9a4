package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// Detection is the message a camera ingest produces and the worker consumes.
type Detection struct {
	ID          string    `json:"id"`
	CameraID    string    `json:"camera_id"`
	Plate       string    `json:"plate"`
	DetectedAt  time.Time `json:"detected_at"`
	SnapshotURL string    `json:"snapshot_url,omitempty"`
}

// Queue is the abstraction over different backends.
type Queue interface {
	Publish(ctx context.Context, d Detection) error
	Consume(ctx context.Context) (<-chan Detection, error)
}

// InMemory is a minimal channel-backed queue for dev/testing.
type InMemory struct {
	ch chan Detection
}

// NewInMemory creates a bounded in-memory queue.
func NewInMemory(size int) *InMemory {
	return &InMemory{ch: make(chan Detection, size)}
}

// Publish enqueues a detection.
func (q *InMemory) Publish(ctx context.Context, d Detection) error {
	select {
	case q.ch <- d:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume returns a channel for workers.
func (q *InMemory) Consume(ctx context.Context) (<-chan Detection, error) {
	out := make(chan Detection)
	go func() {
		defer close(out)
		for {
			select {
			case d := <-q.ch:
				out <- d
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// RedisQueue implements a Redis list-backed queue with JSON payloads.
type RedisQueue struct {
	client *redis.Client
	key    string
}

// NewRedisQueue builds a queue using LPUSH/BRPOP semantics.
func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	if key == "" {
		key = "pickup:detections"
	}
	return &RedisQueue{client: client, key: key}
}

// Publish enqueues a detection.
func (q *RedisQueue) Publish(ctx context.Context, d Detection) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return err
	}
	return q.client.LPush(ctx, q.key, payload).Err()
}

// Consume streams detections using BRPOP. Malformed payloads are skipped.
func (q *RedisQueue) Consume(ctx context.Context) (<-chan Detection, error) {
	out := make(chan Detection)
	go func() {
		defer close(out)
		for {
			res, err := q.client.BRPop(ctx, 5*time.Second, q.key).Result()
			if err != nil {
				if err == redis.Nil {
					continue
				}
				if ctx.Err() != nil {
					return
				}
				continue
			}
			if len(res) == 2 {
				var d Detection
				if err := json.Unmarshal([]byte(res[1]), &d); err == nil {
					out <- d
				}
			}
		}
	}()
	return out, nil
}
