package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/wagateway/core/internal/core/domain"
	"github.com/wagateway/core/internal/core/payload"
	"github.com/wagateway/core/internal/core/ports"
)

// OutboundFailureKind is the taxonomy spec.md §4.8 surfaces to callers.
type OutboundFailureKind string

const (
	FailureValidation       OutboundFailureKind = "VALIDATION_ERROR"
	FailurePayloadBuild     OutboundFailureKind = "PAYLOAD_BUILD_ERROR"
	FailureProviderAPI      OutboundFailureKind = "WHATSAPP_API_ERROR"
	FailureProviderRetryable OutboundFailureKind = "WHATSAPP_RETRYABLE_ERROR"
	FailureProviderPermanent OutboundFailureKind = "WHATSAPP_PERMANENT_ERROR"
)

// OutboundMessageResponse is the dispatcher's result for one send call.
type OutboundMessageResponse struct {
	Success      bool
	MessageID    string
	ErrorCode    string
	ErrorMessage string
	Kind         OutboundFailureKind
	Duplicate    bool
}

// OutboundDispatcher implements C8: idempotent send with retry
// classification and a per-endpoint circuit breaker.
type OutboundDispatcher struct {
	sender       ports.WhatsAppSender
	dedupe       ports.DedupeStore
	breaker      *CircuitBreaker
	dedupeTTL    time.Duration
	maxRetries   int
	baseBackoff  time.Duration
	maxBackoff   time.Duration
}

// NewOutboundDispatcher wires the provider sender, the outbound dedupe
// store, and the circuit breaker for this endpoint.
func NewOutboundDispatcher(sender ports.WhatsAppSender, dedupe ports.DedupeStore, breaker *CircuitBreaker, dedupeTTL, baseBackoff, maxBackoff time.Duration, maxRetries int) *OutboundDispatcher {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &OutboundDispatcher{
		sender:      sender,
		dedupe:      dedupe,
		breaker:     breaker,
		dedupeTTL:   dedupeTTL,
		maxRetries:  maxRetries,
		baseBackoff: baseBackoff,
		maxBackoff:  maxBackoff,
	}
}

// Send validates request, checks outbound dedupe by idempotencyKey, and
// — if not already sent — builds the payload and POSTs it through the
// retry wrapper, updating dedupe to sent or failed.
func (d *OutboundDispatcher) Send(ctx context.Context, idempotencyKey string, msg payload.OutboundMessage) OutboundMessageResponse {
	if ok, errMsg := payload.ValidateIdempotencyKey(idempotencyKey); !ok {
		return OutboundMessageResponse{Kind: FailureValidation, ErrorMessage: errMsg}
	}
	if ok, errMsg := payload.Validate(msg); !ok {
		return OutboundMessageResponse{Kind: FailureValidation, ErrorMessage: errMsg}
	}

	result, err := d.dedupe.CheckAndMarkOutbound(ctx, idempotencyKey, d.dedupeTTL)
	if err != nil {
		slog.Error("outbound dedupe backend unavailable", "error", err, "idempotency_key", idempotencyKey)
		return OutboundMessageResponse{Kind: FailureProviderAPI, ErrorMessage: fmt.Sprintf("dedupe backend unavailable: %v", err)}
	}
	if result.IsDuplicate {
		if result.Status == domain.DedupeStatusSent {
			return OutboundMessageResponse{Success: true, MessageID: result.OriginalID, Duplicate: true}
		}
		return OutboundMessageResponse{Success: true, Duplicate: true, ErrorMessage: result.Error}
	}

	body, err := json.Marshal(msg)
	if err != nil {
		_ = d.dedupe.MarkFailed(ctx, idempotencyKey, err.Error())
		return OutboundMessageResponse{Kind: FailurePayloadBuild, ErrorMessage: fmt.Sprintf("marshal payload: %v", err)}
	}

	providerMessageID, retryable, sendErr := d.sendWithRetry(ctx, ports.OutboundPayload{Body: body})
	if sendErr != nil {
		_ = d.dedupe.MarkFailed(ctx, idempotencyKey, sendErr.Error())
		kind := FailureProviderPermanent
		if retryable {
			kind = FailureProviderRetryable
		}
		return OutboundMessageResponse{Kind: kind, ErrorMessage: sendErr.Error()}
	}

	if err := d.dedupe.MarkSent(ctx, idempotencyKey, providerMessageID); err != nil {
		slog.Error("failed to mark outbound sent", "error", err, "idempotency_key", idempotencyKey)
	}

	return OutboundMessageResponse{Success: true, MessageID: providerMessageID}
}

// sendWithRetry applies exponential backoff base*2^attempt capped at
// maxBackoff for retryable errors; permanent errors exhaust immediately.
func (d *OutboundDispatcher) sendWithRetry(ctx context.Context, out ports.OutboundPayload) (providerMessageID string, retryable bool, err error) {
	var lastErr error
	for attempt := 0; attempt < d.maxRetries; attempt++ {
		if d.breaker != nil {
			if allowErr := d.breaker.Allow(); allowErr != nil {
				return "", false, allowErr
			}
		}

		id, sendErr := d.sender.Send(ctx, out)
		if sendErr == nil {
			if d.breaker != nil {
				d.breaker.RecordSuccess()
			}
			return id, false, nil
		}

		lastErr = sendErr
		class := classifyProviderError(sendErr)
		if class != ports.ProviderErrorRetryable {
			return "", false, sendErr
		}
		if d.breaker != nil {
			d.breaker.RecordFailure()
		}

		if attempt == d.maxRetries-1 {
			break
		}
		backoff := time.Duration(math.Pow(2, float64(attempt))) * d.baseBackoff
		if backoff > d.maxBackoff {
			backoff = d.maxBackoff
		}
		slog.Warn("retrying provider send", "attempt", attempt+1, "backoff", backoff, "error", sendErr)

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return "", true, ctx.Err()
		}
	}
	return "", true, lastErr
}

// classifyProviderError maps a provider error to RETRYABLE (429, 5xx) or
// PERMANENT (other 4xx, token errors, validation errors).
func classifyProviderError(err error) ports.ProviderErrorClass {
	var perr *ports.ProviderError
	if errors.As(err, &perr) {
		return perr.Class
	}
	return ports.ProviderErrorPermanent
}
