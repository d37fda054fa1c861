package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/wagateway/core/internal/core/ports"
)

var _ ports.TaskQueue = (*PushHTTPQueue)(nil)

// PushHTTPQueue implements the push_http queue backend: enqueue means
// POST the task to an external queueing service (e.g. Cloud Tasks, a
// managed webhook relay) which later pushes it back to this service's
// own /internal/process_inbound endpoint with the shared internal
// token. One HTTP attempt per Enqueue call, same single-attempt
// division of labor as gateway.WhatsAppClient.Send — retry policy lives
// in the external pusher, not here.
type PushHTTPQueue struct {
	httpClient    *http.Client
	pushBaseURL   string
	internalToken string
}

// NewPushHTTPQueue wires the external pusher's base URL and the shared
// internal token it will present back to process_inbound.
func NewPushHTTPQueue(pushBaseURL, internalToken string) *PushHTTPQueue {
	return &PushHTTPQueue{
		httpClient:    &http.Client{Timeout: 10 * time.Second},
		pushBaseURL:   pushBaseURL,
		internalToken: internalToken,
	}
}

type pushTaskRequest struct {
	Payload        json.RawMessage `json:"payload"`
	CorrelationID  string          `json:"correlation_id,omitempty"`
	InboundEventID string          `json:"inbound_event_id,omitempty"`
}

// Enqueue submits task to the external pusher for later redelivery.
func (q *PushHTTPQueue) Enqueue(ctx context.Context, task ports.InboundTask) error {
	body, err := json.Marshal(pushTaskRequest{
		Payload:        task.Payload,
		CorrelationID:  task.CorrelationID,
		InboundEventID: task.InboundEventID,
	})
	if err != nil {
		return fmt.Errorf("marshal push task: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, q.pushBaseURL+"/enqueue", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Internal-Token", q.internalToken)

	resp, err := q.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("push enqueue request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("push enqueue rejected: status %d", resp.StatusCode)
	}
	return nil
}
