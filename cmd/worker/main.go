package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"pickup/internal/config"
	"pickup/internal/pickup"
	"pickup/internal/plateclient"
	"pickup/internal/queue"
	"pickup/internal/store"
)

// detectionStore is the slice of the repository the worker needs.
type detectionStore interface {
	CameraActive(ctx context.Context, cameraID string) (bool, error)
	RecentDetection(ctx context.Context, plate, cameraID string, window time.Duration) (*pickup.PlateLog, error)
	InsertPlateLog(ctx context.Context, p pickup.PlateLog) (pickup.PlateLog, error)
}

// Worker consumes detection messages, verifies reads against the plate
// service, and persists plate logs.
func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "pickup:detections")
	}

	repo := pickup.NewRepository(db.Client)
	plates := plateclient.New(cfg.PlateServiceURL, cfg.PlateSkip)

	// Check plate service health on startup
	if !cfg.PlateSkip {
		if err := plates.Health(ctx); err != nil {
			log.Printf("WARNING: plate service not available: %v", err)
			log.Println("worker will retry verification when detections arrive")
		} else {
			log.Println("plate service connected")
		}
	}

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for detections...")
	runLoop(ctx, messages, q, repo, plates, cfg)
	log.Println("worker stopped")
}

// runLoop drains the detection stream. A detection that fails on a store
// error goes back on the queue rather than being lost; only malformed,
// unknown-camera and duplicate detections are dropped for good.
func runLoop(ctx context.Context, messages <-chan queue.Detection, q queue.Queue, repo detectionStore, plates *plateclient.Client, cfg config.App) {
	for d := range messages {
		if d.Plate == "" || d.ID == "" {
			continue
		}
		log.Printf("processing detection %s (camera %s)", d.ID, d.CameraID)

		requeue, err := handleDetection(ctx, repo, plates, cfg, d)
		if err != nil {
			log.Printf("detection %s failed: %v", d.ID, err)
		}
		if requeue {
			if perr := q.Publish(ctx, d); perr != nil {
				log.Printf("re-queue of detection %s failed, event lost: %v", d.ID, perr)
			}
		}
	}
}

// handleDetection processes one detection. It reports whether the message
// should be re-queued: true for transient store failures, false once the
// detection is stored or deliberately dropped.
func handleDetection(ctx context.Context, repo detectionStore, plates *plateclient.Client, cfg config.App, d queue.Detection) (bool, error) {
	// Ignore detections from unknown or deactivated cameras.
	active, err := repo.CameraActive(ctx, d.CameraID)
	if err != nil {
		return true, fmt.Errorf("camera lookup: %w", err)
	}
	if !active {
		log.Printf("detection %s dropped: camera %s not active", d.ID, d.CameraID)
		return false, nil
	}

	// An ANPR feed re-reads a parked car every frame; drop repeats
	// of the same plate from the same camera inside the window.
	recent, err := repo.RecentDetection(ctx, d.Plate, d.CameraID, cfg.DedupWindow)
	if err != nil {
		return true, fmt.Errorf("dedup lookup: %w", err)
	}
	if recent != nil {
		log.Printf("detection %s dropped: duplicate of %s", d.ID, recent.ID)
		return false, nil
	}

	entry := pickup.PlateLog{
		ID:          d.ID,
		Plate:       d.Plate,
		DetectedAt:  d.DetectedAt,
		CameraID:    d.CameraID,
		SnapshotURL: d.SnapshotURL,
		Status:      pickup.DetectionRecorded,
	}

	// With a snapshot and a reachable plate service, confirm the read.
	if d.SnapshotURL != "" {
		result, verr := plates.Verify(ctx, d.SnapshotURL, d.Plate)
		if verr != nil {
			log.Printf("plate verify failed for %s: %v", d.ID, verr)
		} else {
			entry.Confidence = &result.Confidence
			if result.Confidence >= cfg.PlateThreshold && pickup.NormalizePlate(result.Plate) == d.Plate {
				entry.Status = pickup.DetectionVerified
			} else {
				entry.Status = pickup.DetectionRejected
			}
		}
	}

	if _, err := repo.InsertPlateLog(ctx, entry); err != nil {
		return true, fmt.Errorf("insert plate log: %w", err)
	}
	log.Printf("detection %s stored with status %s", d.ID, entry.Status)
	return false, nil
}
