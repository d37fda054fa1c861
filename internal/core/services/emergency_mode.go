package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/wagateway/core/internal/core/domain"
	"github.com/wagateway/core/internal/core/ports"
)

// EmergencyMode is a constructor-injected, instance-scoped switch that
// forces every inbound message through the Decision Pipeline's
// deterministic fallback path, independent of LLM_ENABLED. Adapted from
// panic_mode.go's mutex-guarded struct shape, but instantiated and
// wired through NewEmergencyLLMClient rather than exposed as a package
// global — per spec.md §9's "pass settings as explicit dependencies
// through constructors, not singletons" design note.
type EmergencyMode struct {
	mu          sync.RWMutex
	active      bool
	activatedBy string
	activatedAt time.Time
	reason      string
}

// NewEmergencyMode constructs an inactive emergency switch.
func NewEmergencyMode() *EmergencyMode {
	return &EmergencyMode{}
}

// IsActive returns whether emergency mode is currently forcing fallback.
func (e *EmergencyMode) IsActive() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.active
}

// Enable forces every subsequent pipeline call through fallback.
func (e *EmergencyMode) Enable(reason, activatedBy string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.active = true
	e.reason = reason
	e.activatedBy = activatedBy
	e.activatedAt = time.Now()
	slog.Warn("emergency mode activated", "reason", reason, "activated_by", activatedBy)
}

// Disable resumes normal LLM calls.
func (e *EmergencyMode) Disable(deactivatedBy string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	duration := time.Since(e.activatedAt)
	e.active = false
	slog.Info("emergency mode deactivated", "deactivated_by", deactivatedBy, "duration", duration)
}

// Status reports the current state for the ops metrics endpoint.
func (e *EmergencyMode) Status() map[string]any {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return map[string]any{
		"active":       e.active,
		"reason":       e.reason,
		"activated_by": e.activatedBy,
		"activated_at": e.activatedAt,
	}
}

// EmergencyLLMClient wraps a real ports.LLMClient and fails every call
// with a sentinel error while either LLM_ENABLED is false or
// EmergencyMode is active, so the Decision Pipeline's existing
// fallback-on-error branches are the only code path exercised — no
// separate bypass logic is needed in pipeline.go.
type EmergencyLLMClient struct {
	inner   ports.LLMClient
	mode    *EmergencyMode
	enabled bool
}

var errLLMDisabled = fmt.Errorf("llm calls disabled (LLM_ENABLED=false or emergency mode active)")

// NewEmergencyLLMClient wires the real client, the shared emergency
// switch, and the boot-time LLM_ENABLED flag.
func NewEmergencyLLMClient(inner ports.LLMClient, mode *EmergencyMode, enabled bool) *EmergencyLLMClient {
	return &EmergencyLLMClient{inner: inner, mode: mode, enabled: enabled}
}

func (c *EmergencyLLMClient) bypassed() bool {
	return !c.enabled || c.mode.IsActive()
}

func (c *EmergencyLLMClient) DetectEvent(ctx context.Context, req ports.StateSelectorRequest) (domain.StateSelectorOutput, error) {
	if c.bypassed() {
		return domain.StateSelectorOutput{}, errLLMDisabled
	}
	return c.inner.DetectEvent(ctx, req)
}

func (c *EmergencyLLMClient) GenerateResponse(ctx context.Context, req ports.ResponseGeneratorRequest) (domain.ResponseGeneratorOutput, error) {
	if c.bypassed() {
		return domain.ResponseGeneratorOutput{}, errLLMDisabled
	}
	return c.inner.GenerateResponse(ctx, req)
}

func (c *EmergencyLLMClient) SelectMessageType(ctx context.Context, req ports.MessageTypeRequest) (domain.MessagePlan, error) {
	if c.bypassed() {
		return domain.MessagePlan{}, errLLMDisabled
	}
	return c.inner.SelectMessageType(ctx, req)
}

func (c *EmergencyLLMClient) Decide(ctx context.Context, req ports.DeciderRequest) (domain.DeciderOutput, error) {
	if c.bypassed() {
		return domain.DeciderOutput{}, errLLMDisabled
	}
	return c.inner.Decide(ctx, req)
}
