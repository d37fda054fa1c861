package ports

import "context"

// InboundTask is what Webhook Admission (C1) hands the task queue.
type InboundTask struct {
	TaskID          string
	Payload         []byte
	InboundEventID  string
	CorrelationID   string
}

// TaskQueue decouples webhook admission latency from worker processing
// (spec.md §5). The memory backend runs the worker in-process; the
// push_http backend POSTs to an external queue that will later push the
// task to /internal/process_inbound.
type TaskQueue interface {
	Enqueue(ctx context.Context, task InboundTask) error
}

// TaskHandler is invoked for each dequeued task. Registered once by the
// composition root so both queue backends can drive the same worker.
type TaskHandler func(ctx context.Context, task InboundTask) error
