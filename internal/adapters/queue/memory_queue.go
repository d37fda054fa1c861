// Package queue implements the TaskQueue port the Admission service
// enqueues inbound tasks onto and the worker drains.
package queue

import (
	"context"
	"fmt"

	"github.com/wagateway/core/internal/core/ports"
)

var _ ports.TaskQueue = (*MemoryQueue)(nil)

// MemoryQueue is an in-process buffered channel queue, valid only in
// development (config.LoadConfig rejects QUEUE_BACKEND=memory outside
// it): a process restart silently drops anything still buffered.
type MemoryQueue struct {
	tasks chan ports.InboundTask
}

// NewMemoryQueue allocates a queue with the given buffer capacity.
func NewMemoryQueue(capacity int) *MemoryQueue {
	if capacity <= 0 {
		capacity = 256
	}
	return &MemoryQueue{tasks: make(chan ports.InboundTask, capacity)}
}

// Enqueue pushes task onto the buffered channel, failing fast if full
// rather than blocking the admission request.
func (q *MemoryQueue) Enqueue(ctx context.Context, task ports.InboundTask) error {
	select {
	case q.tasks <- task:
		return nil
	default:
		return fmt.Errorf("memory queue full (capacity %d)", cap(q.tasks))
	}
}

// Run drains the queue, calling handler for each task until ctx is done.
// A handler error is logged by the caller's handler, not retried here —
// at-least-once delivery for this backend is only as good as the process
// staying alive.
func (q *MemoryQueue) Run(ctx context.Context, handler ports.TaskHandler) {
	for {
		select {
		case <-ctx.Done():
			return
		case task := <-q.tasks:
			_ = handler(ctx, task)
		}
	}
}
