package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/wagateway/core/internal/core/domain"
	"github.com/wagateway/core/internal/core/ports"
)

var _ ports.LLMClient = (*LLMClient)(nil)

// LLMClient is the single point of contact with the stateless, opaque
// LLM provider backing C6's three stages plus the master decider.
// Generalized from deepseek.go's one-endpoint call shape into one
// client struct with a method per stage, each posting a small JSON
// request and parsing a strict JSON response — no provider SDK, per
// SPEC_FULL.md's domain-stack rationale for keeping the pipeline
// provider-agnostic.
type LLMClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	stage1Model string
	stage2Model string
	stage3Model string
}

// NewLLMClient wires the provider base URL, bearer key, and per-stage
// model names configured for this deployment.
func NewLLMClient(baseURL, apiKey, stage1Model, stage2Model, stage3Model string) *LLMClient {
	return &LLMClient{
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		baseURL:     baseURL,
		apiKey:      apiKey,
		stage1Model: stage1Model,
		stage2Model: stage2Model,
		stage3Model: stage3Model,
	}
}

type llmRequest struct {
	Model          string            `json:"model"`
	Input          map[string]any    `json:"input"`
	ResponseFormat map[string]string `json:"response_format"`
}

// call POSTs a small JSON envelope to /v1/completions and decodes the
// response into out. Every caller treats a non-nil error as a signal to
// run the stage's deterministic fallback — never propagated further.
func (c *LLMClient) call(ctx context.Context, model string, input map[string]any, out any) error {
	reqBody, err := json.Marshal(llmRequest{
		Model:          model,
		Input:          input,
		ResponseFormat: map[string]string{"type": "json_object"},
	})
	if err != nil {
		return fmt.Errorf("llm: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/completions", bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("llm: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("llm: http call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("llm: unexpected status %d", resp.StatusCode)
	}

	var envelope struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("llm: decode response: %w", err)
	}
	if err := json.Unmarshal([]byte(envelope.Content), out); err != nil {
		return fmt.Errorf("llm: parse json content: %w", err)
	}
	return nil
}

// DetectEvent calls Stage 1 (event/intent detection).
func (c *LLMClient) DetectEvent(ctx context.Context, req ports.StateSelectorRequest) (domain.StateSelectorOutput, error) {
	var out domain.StateSelectorOutput
	err := c.call(ctx, c.stage1Model, map[string]any{
		"user_text":      req.UserText,
		"current_state":  req.CurrentState,
		"masked_history": req.MaskedHistory,
	}, &out)
	return out, err
}

// GenerateResponse calls Stage 2 (response generation).
func (c *LLMClient) GenerateResponse(ctx context.Context, req ports.ResponseGeneratorRequest) (domain.ResponseGeneratorOutput, error) {
	var out domain.ResponseGeneratorOutput
	err := c.call(ctx, c.stage2Model, map[string]any{
		"user_text":       req.UserText,
		"detected_intent": req.DetectedIntent,
		"current_state":   req.CurrentState,
		"next_state":      req.NextState,
		"session_summary": req.SessionSummary,
	}, &out)
	return out, err
}

// SelectMessageType calls Stage 3 (message-type selection).
func (c *LLMClient) SelectMessageType(ctx context.Context, req ports.MessageTypeRequest) (domain.MessagePlan, error) {
	var out domain.MessagePlan
	err := c.call(ctx, c.stage3Model, map[string]any{
		"text_content":    req.TextContent,
		"options":         req.Options,
		"detected_intent": req.DetectedIntent,
	}, &out)
	return out, err
}

// Decide calls the optional master arbiter.
func (c *LLMClient) Decide(ctx context.Context, req ports.DeciderRequest) (domain.DeciderOutput, error) {
	var out domain.DeciderOutput
	err := c.call(ctx, c.stage3Model, map[string]any{
		"stage1":       req.Stage1,
		"stage2":       req.Stage2,
		"valid_states": req.ValidStates,
	}, &out)
	return out, err
}
