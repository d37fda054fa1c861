package ports

import (
	"context"

	"github.com/wagateway/core/internal/core/domain"
)

// StateSelectorRequest is Stage 1's input.
type StateSelectorRequest struct {
	UserText       string
	CurrentState   domain.FSMState
	MaskedHistory  []string
}

// ResponseGeneratorRequest is Stage 2's input.
type ResponseGeneratorRequest struct {
	UserText        string
	DetectedIntent  string
	CurrentState    domain.FSMState
	NextState       domain.FSMState
	SessionSummary  string
}

// MessageTypeRequest is Stage 3's input.
type MessageTypeRequest struct {
	TextContent     string
	Options         []domain.ResponseOption
	DetectedIntent  string
}

// DeciderRequest is the optional master arbiter's input.
type DeciderRequest struct {
	Stage1   domain.StateSelectorOutput
	Stage2   domain.ResponseGeneratorOutput
	ValidStates []domain.FSMState
}

// LLMClient is the single point of contact with the (stateless,
// opaque) LLM provider. Each method is a suspension point with its own
// caller-supplied context deadline; spec.md requires that no error or
// timeout from these calls ever propagates past the Decision Pipeline —
// callers apply the deterministic fallback instead of surfacing err.
type LLMClient interface {
	DetectEvent(ctx context.Context, req StateSelectorRequest) (domain.StateSelectorOutput, error)
	GenerateResponse(ctx context.Context, req ResponseGeneratorRequest) (domain.ResponseGeneratorOutput, error)
	SelectMessageType(ctx context.Context, req MessageTypeRequest) (domain.MessagePlan, error)
	Decide(ctx context.Context, req DeciderRequest) (domain.DeciderOutput, error)
}
