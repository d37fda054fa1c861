// Package handler implements HTTP request handlers
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/wagateway/core/internal/core/payload"
	"github.com/wagateway/core/internal/core/ports"
	"github.com/wagateway/core/internal/core/services"
)

// WebhookHandler implements C1's HTTP surface: the GET verification
// handshake and the POST admission endpoint. All decision logic lives
// in services.AdmissionService; this adapter only translates HTTP <->
// the service's request/result shapes, the same division of labor the
// teacher kept between its webhook handler and its Dispatcher.
type WebhookHandler struct {
	admission *services.AdmissionService
}

// NewWebhookHandler wires the admission service this handler fronts.
func NewWebhookHandler(admission *services.AdmissionService) *WebhookHandler {
	return &WebhookHandler{admission: admission}
}

// HandleVerify implements GET /webhooks/whatsapp.
func (h *WebhookHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode := q.Get("hub.mode")
	token := q.Get("hub.verify_token")
	challenge := q.Get("hub.challenge")

	if resp, ok := h.admission.VerifyHandshake(mode, token, challenge); ok {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(resp))
		return
	}
	http.Error(w, "verification failed", http.StatusForbidden)
}

// postWebhookResponse mirrors spec.md §6's POST /webhooks/whatsapp body.
type postWebhookResponse struct {
	OK                 bool   `json:"ok"`
	Enqueued           bool   `json:"enqueued"`
	TaskID             string `json:"task_id,omitempty"`
	InboundEventID     string `json:"inbound_event_id"`
	SignatureValidated bool   `json:"signature_validated"`
	SignatureSkipped   bool   `json:"signature_skipped"`
}

// HandlePost implements POST /webhooks/whatsapp.
func (h *WebhookHandler) HandlePost(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	signature := r.Header.Get("X-Hub-Signature-256")

	result, err := h.admission.ProcessInbound(r.Context(), body, signature)
	if err != nil {
		var admErr *services.AdmissionError
		if errors.As(err, &admErr) {
			switch admErr.Kind {
			case "INVALID_SIGNATURE":
				slog.Warn("webhook signature rejected", "error", admErr.Message)
				http.Error(w, "invalid signature", http.StatusUnauthorized)
				return
			case "INVALID_JSON":
				http.Error(w, "invalid json", http.StatusBadRequest)
				return
			case "ENQUEUE_FAILED":
				http.Error(w, "enqueue failed", http.StatusServiceUnavailable)
				return
			}
		}
		slog.Error("admission failed", "error", err)
		http.Error(w, "internal error", http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusOK, postWebhookResponse{
		OK:                 true,
		Enqueued:           result.Enqueued,
		TaskID:             result.TaskID,
		InboundEventID:     result.InboundEventID,
		SignatureValidated: result.SignatureValidated,
		SignatureSkipped:   result.SignatureSkipped,
	})
}

// HealthHandler implements GET /health.
type HealthHandler struct {
	version string
}

// NewHealthHandler wires the build version reported in the response.
func NewHealthHandler(version string) *HealthHandler {
	return &HealthHandler{version: version}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "wagateway",
		"version": h.version,
	})
}

// InternalHandler implements the two internal-token-gated processing
// endpoints spec.md §6 names: process_inbound drives the Worker through
// C2-C9 for one dequeued task; process_outbound drives the
// OutboundDispatcher directly, for a queue backend that pushes an
// already-built outbound payload rather than routing it through a full
// inbound cycle.
type InternalHandler struct {
	internalToken string
	worker        *services.Worker
	dispatcher    *services.OutboundDispatcher
}

// NewInternalHandler wires the internal-token gate, the worker, and the
// dispatcher.
func NewInternalHandler(internalToken string, worker *services.Worker, dispatcher *services.OutboundDispatcher) *InternalHandler {
	return &InternalHandler{internalToken: internalToken, worker: worker, dispatcher: dispatcher}
}

func (h *InternalHandler) authorized(r *http.Request) bool {
	return h.internalToken != "" && r.Header.Get("X-Internal-Token") == h.internalToken
}

type processInboundRequest struct {
	Payload        json.RawMessage `json:"payload"`
	CorrelationID  string          `json:"correlation_id,omitempty"`
	InboundEventID string          `json:"inbound_event_id,omitempty"`
}

type processInboundResponse struct {
	InboundEventID string   `json:"inbound_event_id"`
	Processed      int      `json:"processed"`
	Deduped        bool     `json:"deduped"`
	Skipped        int      `json:"skipped"`
	OutboundTasks  []string `json:"outbound_tasks"`
}

// HandleProcessInbound implements POST /internal/process_inbound.
func (h *InternalHandler) HandleProcessInbound(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		http.Error(w, "invalid internal token", http.StatusUnauthorized)
		return
	}

	var req processInboundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	task := ports.InboundTask{
		Payload:        req.Payload,
		InboundEventID: req.InboundEventID,
		CorrelationID:  req.CorrelationID,
	}
	result, err := h.worker.Process(r.Context(), task)
	if err != nil {
		slog.Error("process_inbound failed", "error", err, "inbound_event_id", task.InboundEventID)
		http.Error(w, "processing failed", http.StatusServiceUnavailable)
		return
	}

	outboundTasks := result.OutboundTasks
	if outboundTasks == nil {
		outboundTasks = []string{}
	}
	writeJSON(w, http.StatusOK, processInboundResponse{
		InboundEventID: result.InboundEventID,
		Processed:      result.Processed,
		Deduped:        result.Deduped,
		Skipped:        result.Skipped,
		OutboundTasks:  outboundTasks,
	})
}

// processOutboundRequest carries the idempotency key and an
// already-built outbound payload, mirroring what the queue backend
// stores after C7 builds it once inside the worker.
type processOutboundRequest struct {
	IdempotencyKey string                  `json:"idempotency_key"`
	Message        payload.OutboundMessage `json:"message"`
}

type processOutboundResponse struct {
	Success      bool   `json:"success"`
	MessageID    string `json:"message_id,omitempty"`
	Duplicate    bool   `json:"duplicate,omitempty"`
	ErrorCode    string `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
	Kind         string `json:"kind,omitempty"`
}

// HandleProcessOutbound implements POST /internal/process_outbound.
func (h *InternalHandler) HandleProcessOutbound(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		http.Error(w, "invalid internal token", http.StatusUnauthorized)
		return
	}

	var req processOutboundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	resp := h.dispatcher.Send(r.Context(), req.IdempotencyKey, req.Message)
	body := processOutboundResponse{
		Success:      resp.Success,
		MessageID:    resp.MessageID,
		Duplicate:    resp.Duplicate,
		ErrorCode:    resp.ErrorCode,
		ErrorMessage: resp.ErrorMessage,
		Kind:         string(resp.Kind),
	}

	switch {
	case resp.Success:
		writeJSON(w, http.StatusOK, body)
	case resp.Kind == services.FailureValidation, resp.Kind == services.FailurePayloadBuild, resp.Kind == services.FailureProviderPermanent:
		writeJSON(w, http.StatusBadRequest, body)
	case resp.Kind == services.FailureProviderRetryable:
		writeJSON(w, http.StatusServiceUnavailable, body)
	default:
		writeJSON(w, http.StatusBadGateway, body)
	}
}
