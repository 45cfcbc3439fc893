package notification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeNotifier struct {
	mu   sync.Mutex
	seen []string
	done chan string
	err  error
}

func (f *fakeNotifier) NotifyAcknowledgment(_ context.Context, ackID string) (*Result, error) {
	f.mu.Lock()
	f.seen = append(f.seen, ackID)
	err := f.err
	f.mu.Unlock()
	defer func() { f.done <- ackID }()
	if err != nil {
		return nil, err
	}
	return &Result{PushCount: 1}, nil
}

func TestWorkerPool_Enqueue(t *testing.T) {
	wp := NewWorkerPool(1, 1, &fakeNotifier{})

	assert.True(t, wp.Enqueue("ack-1"))
	assert.False(t, wp.Enqueue("ack-2"), "a full queue must not block")

	select {
	case job := <-wp.Jobs():
		assert.Equal(t, "ack-1", job)
	case <-time.After(1 * time.Second):
		t.Fatal("timed out waiting for job to be enqueued")
	}
}

func TestWorkerPool_WorkerLogic(t *testing.T) {
	notifier := &fakeNotifier{done: make(chan string, 4)}
	wp := NewWorkerPool(2, 4, notifier)

	ctx, cancel := context.WithCancel(context.Background())
	wp.Start(ctx)

	wp.Enqueue("ack-1")
	wp.Enqueue("ack-2")
	got := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case id := <-notifier.done:
			got[id] = true
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for dispatch")
		}
	}
	assert.Equal(t, map[string]bool{"ack-1": true, "ack-2": true}, got)

	// A failing dispatch does not stop the worker.
	notifier.mu.Lock()
	notifier.err = errors.New("database unavailable")
	notifier.mu.Unlock()
	wp.Enqueue("ack-3")
	select {
	case id := <-notifier.done:
		assert.Equal(t, "ack-3", id)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for failing dispatch")
	}

	cancel()
	wp.Wait()
}
