// Package gateway implements external API adapters
// Following Hexagonal Architecture: Outbound adapters for external services
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/wagateway/core/internal/core/ports"
)

var _ ports.WhatsAppSender = (*WhatsAppClient)(nil)

// WhatsAppClient talks to the WhatsApp Cloud API's /messages send
// endpoint. It performs exactly one HTTP attempt per Send call; the
// retry loop and circuit breaker live in
// services.OutboundDispatcher.sendWithRetry, generalizing this file's
// ancestor (facebook_client.go's SendReply/sendReplyAttempt) which
// folded both concerns into the client.
type WhatsAppClient struct {
	httpClient    *http.Client
	baseURL       string
	phoneNumberID string
	accessToken   string
}

// NewWhatsAppClient wires the Cloud API base URL, phone number id, and
// bearer token configured for this deployment.
func NewWhatsAppClient(baseURL, phoneNumberID, accessToken string) *WhatsAppClient {
	return &WhatsAppClient{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL:       baseURL,
		phoneNumberID: phoneNumberID,
		accessToken:   accessToken,
	}
}

// sendMessageResponse mirrors the Cloud API's success envelope.
type sendMessageResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// providerErrorEnvelope mirrors the Cloud API's error envelope.
type providerErrorEnvelope struct {
	Error struct {
		Message   string `json:"message"`
		Type      string `json:"type"`
		Code      int    `json:"code"`
		FBTraceID string `json:"fbtrace_id"`
	} `json:"error"`
}

// Send POSTs an already-built, already-validated payload to
// /{phoneNumberID}/messages and classifies any non-2xx response into a
// *ports.ProviderError the dispatcher uses for retry decisions.
func (c *WhatsAppClient) Send(ctx context.Context, payload ports.OutboundPayload) (string, error) {
	url := fmt.Sprintf("%s/%s/messages", c.baseURL, c.phoneNumberID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload.Body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	slog.Info("sending message to whatsapp cloud api", "payload_bytes", len(payload.Body))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &ports.ProviderError{Class: ports.ProviderErrorRetryable, Message: fmt.Sprintf("request failed: %v", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &ports.ProviderError{Class: ports.ProviderErrorRetryable, Message: fmt.Sprintf("read response: %v", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", classifyHTTPError(resp.StatusCode, body)
	}

	var parsed sendMessageResponse
	if err := json.Unmarshal(body, &parsed); err != nil || len(parsed.Messages) == 0 {
		slog.Warn("whatsapp cloud api returned 2xx with unparseable body", "error", err, "body", string(body))
		return "", nil
	}

	slog.Info("message sent successfully", "provider_message_id", parsed.Messages[0].ID)
	return parsed.Messages[0].ID, nil
}

// classifyHTTPError maps the Cloud API's status code and error body to
// the RETRYABLE/PERMANENT taxonomy spec.md §4.8 requires: 429 and 5xx
// are retryable, every other 4xx is permanent.
func classifyHTTPError(status int, body []byte) *ports.ProviderError {
	var env providerErrorEnvelope
	_ = json.Unmarshal(body, &env)

	class := ports.ProviderErrorPermanent
	if status == http.StatusTooManyRequests || status >= 500 {
		class = ports.ProviderErrorRetryable
	}

	msg := env.Error.Message
	if msg == "" {
		msg = string(body)
	}

	slog.Error("whatsapp cloud api error",
		"status_code", status,
		"error_code", env.Error.Code,
		"error_type", env.Error.Type,
		"error_message", msg,
		"fbtrace_id", env.Error.FBTraceID,
	)

	return &ports.ProviderError{
		Class:   class,
		Code:    status,
		Type:    env.Error.Type,
		Message: msg,
	}
}
