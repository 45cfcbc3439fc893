package notification

import (
	"context"
	"log"
	"sync"
)

// AckNotifier runs one acknowledgment dispatch.
type AckNotifier interface {
	NotifyAcknowledgment(ctx context.Context, ackID string) (*Result, error)
}

// WorkerPool runs acknowledgment dispatches off the request path.
type WorkerPool struct {
	size     int
	jobs     chan string
	notifier AckNotifier
	wg       sync.WaitGroup
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size, queueSize int, notifier AckNotifier) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	if queueSize <= 0 {
		queueSize = size
	}
	return &WorkerPool{
		size:     size,
		jobs:     make(chan string, queueSize), // Buffered channel
		notifier: notifier,
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		wp.wg.Add(1)
		go wp.worker(ctx, i)
	}
}

// Wait blocks until every worker has stopped.
func (wp *WorkerPool) Wait() {
	wp.wg.Wait()
}

// worker is the actual worker goroutine.
func (wp *WorkerPool) worker(ctx context.Context, id int) {
	defer wp.wg.Done()
	log.Printf("Worker %d started", id)
	for {
		select {
		case ackID := <-wp.jobs:
			wp.process(ctx, id, ackID)
		case <-ctx.Done():
			// Queued acknowledgments are committed; finish them before exiting.
			drainCtx := context.WithoutCancel(ctx)
			for {
				select {
				case ackID := <-wp.jobs:
					wp.process(drainCtx, id, ackID)
				default:
					log.Printf("Worker %d shutting down", id)
					return
				}
			}
		}
	}
}

func (wp *WorkerPool) process(ctx context.Context, id int, ackID string) {
	log.Printf("Worker %d processing acknowledgment %s", id, ackID)
	res, err := wp.notifier.NotifyAcknowledgment(ctx, ackID)
	if err != nil {
		log.Printf("Worker %d failed to notify acknowledgment %s: %v", id, ackID, err)
		return
	}
	log.Printf("Worker %d notified acknowledgment %s: %d pushed, %d stale removed", id, ackID, res.PushCount, res.Removed)
}

// Enqueue hands an acknowledgment to the pool without blocking. It reports
// false when the queue is full.
func (wp *WorkerPool) Enqueue(ackID string) bool {
	select {
	case wp.jobs <- ackID:
		return true
	default:
		log.Printf("Notification queue full, dropping acknowledgment %s", ackID)
		return false
	}
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan string {
	return wp.jobs
}
