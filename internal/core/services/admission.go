package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wagateway/core/internal/adapters/dto"
	"github.com/wagateway/core/internal/core/ports"
)

// AdmissionResult is the outcome of one POST /webhooks/whatsapp call,
// shaped directly off the wire response in spec.md §6.
type AdmissionResult struct {
	Enqueued          bool
	TaskID            string
	InboundEventID    string
	SignatureValidated bool
	SignatureSkipped  bool
}

// AdmissionError classifies a failed admission so the HTTP adapter can
// pick the right status code without re-deriving policy.
type AdmissionError struct {
	Kind    string // INVALID_SIGNATURE | INVALID_JSON | ENQUEUE_FAILED
	Message string
}

func (e *AdmissionError) Error() string { return e.Message }

// AdmissionService implements Webhook Admission (C1). It holds no I/O
// beyond its injected ports, so every branch is exercisable without an
// httptest.Server.
type AdmissionService struct {
	dedupe      ports.DedupeStore
	queue       ports.TaskQueue
	webhookSecret string
	verifyToken string
	environment string
	dedupeTTL   time.Duration
}

// NewAdmissionService wires the Admission service with its dependencies.
// webhookSecret may be empty only when environment == "development"; the
// boot-time config loader is responsible for enforcing that everywhere
// else, mirroring the teacher's LoadConfig rejecting a missing secret.
func NewAdmissionService(dedupe ports.DedupeStore, queue ports.TaskQueue, webhookSecret, verifyToken, environment string, dedupeTTL time.Duration) *AdmissionService {
	return &AdmissionService{
		dedupe:        dedupe,
		queue:         queue,
		webhookSecret: webhookSecret,
		verifyToken:   verifyToken,
		environment:   environment,
		dedupeTTL:     dedupeTTL,
	}
}

// VerifyHandshake implements the GET verification contract: on
// hub.mode=subscribe with a matching token, returns the challenge to
// echo back; otherwise ok=false and the caller must respond 403.
func (s *AdmissionService) VerifyHandshake(mode, token, challenge string) (response string, ok bool) {
	if mode == "subscribe" && token != "" && token == s.verifyToken {
		return challenge, true
	}
	return "", false
}

// ProcessInbound implements the POST contract end to end: signature
// check, JSON parse, inbound event id computation, dedupe mark, enqueue.
func (s *AdmissionService) ProcessInbound(ctx context.Context, body []byte, signatureHeader string) (AdmissionResult, error) {
	validated, skipped, err := s.checkSignature(body, signatureHeader)
	if err != nil {
		return AdmissionResult{}, &AdmissionError{Kind: "INVALID_SIGNATURE", Message: err.Error()}
	}

	var payload dto.WebhookRequest
	if err := json.Unmarshal(body, &payload); err != nil {
		return AdmissionResult{}, &AdmissionError{Kind: "INVALID_JSON", Message: fmt.Sprintf("invalid webhook JSON: %v", err)}
	}

	inboundEventID := computeInboundEventID(body, &payload)
	correlationID := uuid.NewString()

	isNew, err := s.dedupe.MarkIfNew(ctx, inboundEventID, s.dedupeTTL)
	if err != nil {
		slog.Error("inbound dedupe backend unavailable", "error", err, "inbound_event_id", inboundEventID)
		return AdmissionResult{}, &AdmissionError{Kind: "ENQUEUE_FAILED", Message: fmt.Sprintf("dedupe backend unavailable: %v", err)}
	}
	if !isNew {
		slog.Info("inbound webhook deduplicated", "inbound_event_id", inboundEventID)
		return AdmissionResult{
			Enqueued:           false,
			InboundEventID:     inboundEventID,
			SignatureValidated: validated,
			SignatureSkipped:   skipped,
		}, nil
	}

	taskID := uuid.NewString()
	task := ports.InboundTask{
		TaskID:         taskID,
		Payload:        body,
		InboundEventID: inboundEventID,
		CorrelationID:  correlationID,
	}
	if err := s.queue.Enqueue(ctx, task); err != nil {
		slog.Error("failed to enqueue inbound task", "error", err, "inbound_event_id", inboundEventID)
		return AdmissionResult{}, &AdmissionError{Kind: "ENQUEUE_FAILED", Message: fmt.Sprintf("enqueue failed: %v", err)}
	}

	slog.Info("inbound webhook enqueued",
		"inbound_event_id", inboundEventID,
		"task_id", taskID,
		"correlation_id", correlationID,
	)

	return AdmissionResult{
		Enqueued:           true,
		TaskID:             taskID,
		InboundEventID:     inboundEventID,
		SignatureValidated: validated,
		SignatureSkipped:   skipped,
	}, nil
}

// checkSignature validates HMAC_SHA256(secret, body) == signature in
// constant time. When no secret is configured and environment is
// development, verification is skipped and reported via skipped=true;
// config boot validation forbids this combination everywhere else.
func (s *AdmissionService) checkSignature(body []byte, signatureHeader string) (validated, skipped bool, err error) {
	if s.webhookSecret == "" {
		if s.environment == "development" {
			return false, true, nil
		}
		return false, false, fmt.Errorf("webhook secret not configured outside development")
	}

	const prefix = "sha256="
	if !strings.HasPrefix(signatureHeader, prefix) {
		return false, false, fmt.Errorf("missing sha256= signature prefix")
	}
	expected := strings.TrimPrefix(signatureHeader, prefix)

	mac := hmac.New(sha256.New, []byte(s.webhookSecret))
	mac.Write(body)
	computed := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(computed), []byte(expected)) {
		return false, false, fmt.Errorf("signature mismatch")
	}
	return true, false, nil
}

// computeInboundEventID returns the first messages[].id found in the
// payload, falling back to a content hash so webhooks carrying only
// status receipts still get a stable idempotency key.
func computeInboundEventID(body []byte, payload *dto.WebhookRequest) string {
	if id := payload.FirstMessageID(); id != "" {
		return id
	}
	sum := sha256.Sum256(body)
	return "payload:" + hex.EncodeToString(sum[:])
}
