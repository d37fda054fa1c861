package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wagateway/core/internal/core/domain"
	"github.com/wagateway/core/internal/core/ports"
)

// closingTokens, newRequestTokens, and confirmationKeywords are the small
// closed sets spec.md §4.6 calls for. They are plain Portuguese tokens
// since the PII patterns (pii.go) target Brazilian document formats;
// kept here rather than in config because spec.md treats them as part of
// the deterministic pre-check, not an operator-tunable knob.
var (
	closingTokens = []string{
		"tchau", "obrigado", "obrigada", "valeu", "até mais", "até logo",
	}
	newRequestTokens = []string{
		"novo pedido", "outro pedido", "quero outra coisa", "mudando de assunto",
	}
	confirmationKeywords = []string{
		"sim", "confirmo", "pode ser", "isso mesmo", "correto",
	}
)

// PipelineResult bundles every stage's output so the worker can decide
// the next FSM event without re-deriving pipeline internals.
type PipelineResult struct {
	Stage1 domain.StateSelectorOutput
	Stage2 domain.ResponseGeneratorOutput
	Decider domain.DeciderOutput
	Plan   domain.MessagePlan
}

// Pipeline implements C6: the three-stage LLM decision pipeline plus the
// optional master decider. Run never returns an error: every branch,
// including total LLM unavailability, produces a valid PipelineResult.
type Pipeline struct {
	llm                ports.LLMClient
	stage1Timeout      time.Duration
	stage2Timeout      time.Duration
	stage3Timeout      time.Duration
	deciderTimeout     time.Duration
	acceptThreshold    float64
	minResponseOptions int
	historyWindow      int
	validStates        []domain.FSMState
}

// NewPipeline wires per-stage timeouts and the acceptance threshold from
// LLM_STAGE{1,2,3}_TIMEOUT_MS / the confidence threshold config.
func NewPipeline(llm ports.LLMClient, stage1, stage2, stage3, decider time.Duration, acceptThreshold float64, minResponseOptions int) *Pipeline {
	if minResponseOptions <= 0 {
		minResponseOptions = 3
	}
	return &Pipeline{
		llm:                llm,
		stage1Timeout:      stage1,
		stage2Timeout:      stage2,
		stage3Timeout:      stage3,
		deciderTimeout:     decider,
		acceptThreshold:    acceptThreshold,
		minResponseOptions: minResponseOptions,
		historyWindow:      5,
		validStates: []domain.FSMState{
			domain.StateInitial, domain.StateTriage, domain.StateCollectingInfo,
			domain.StateGeneratingResponse, domain.StateSelectingMessageType,
			domain.StateAwaitingUser, domain.StateEscalating, domain.StateHandoffHuman,
			domain.StateCompleted, domain.StateFailed, domain.StateSpam,
		},
	}
}

// Run executes Stage 1, Stage 2, the master decider, and Stage 3 in
// sequence. Stage 2's request depends structurally on Stage 1's detected
// intent and next state, so the stages are serialized rather than run
// concurrently; spec.md §4.6 allows either so long as Stage 3 observes
// the Stage-2 result, which serialization trivially guarantees.
func (p *Pipeline) Run(ctx context.Context, session *domain.SessionState, rawHistory []string, userText string) PipelineResult {
	maskedHistory := MaskHistory(rawHistory, p.historyWindow)
	maskedText := MaskPII(userText)

	stage1 := p.runStage1(ctx, session, maskedText, maskedHistory)
	stage2 := p.runStage2(ctx, session, maskedText, stage1)
	decider := p.runDecider(ctx, userText, stage1, stage2)
	plan := p.runStage3(ctx, stage2, firstOrEmpty(stage1.DetectedRequests))

	return PipelineResult{Stage1: stage1, Stage2: stage2, Decider: decider, Plan: plan}
}

func (p *Pipeline) runStage1(ctx context.Context, session *domain.SessionState, maskedText string, maskedHistory []string) domain.StateSelectorOutput {
	hasOpenItems := len(session.IntentQueue) > 0
	clamp, hint := preCheckStage1(maskedText, hasOpenItems)

	cctx, cancel := context.WithTimeout(ctx, p.stage1Timeout)
	defer cancel()

	out, err := p.llm.DetectEvent(cctx, ports.StateSelectorRequest{
		UserText:      maskedText,
		CurrentState:  session.CurrentState,
		MaskedHistory: maskedHistory,
	})
	if err != nil {
		return fallbackStage1(session.CurrentState, hint)
	}

	accepted := out.Confidence >= p.acceptThreshold &&
		(out.Status == domain.StageStatusInProgress || out.Status == domain.StageStatusDone)

	if clamp {
		if out.Confidence >= p.acceptThreshold {
			out.Confidence = p.acceptThreshold - 0.01
		}
		accepted = false
		if out.ResponseHint == "" {
			out.ResponseHint = hint
		}
	}

	out.Accepted = accepted
	if accepted {
		out.NextState = out.SelectedState
	} else {
		out.NextState = session.CurrentState
	}
	return out
}

// preCheckStage1 implements the deterministic clamp: closing tokens while
// open items remain, or new-request tokens, always push confidence below
// acceptance regardless of what the LLM returns.
func preCheckStage1(userText string, hasOpenItems bool) (clamp bool, hint string) {
	if containsAny(userText, closingTokens) && hasOpenItems {
		return true, "confirm_closing_with_open_items"
	}
	if containsAny(userText, newRequestTokens) {
		return true, "new_request_detected"
	}
	return false, ""
}

func fallbackStage1(currentState domain.FSMState, hint string) domain.StateSelectorOutput {
	if hint == "" {
		hint = "clarification_needed"
	}
	return domain.StateSelectorOutput{
		SelectedState: currentState,
		Confidence:    0,
		Status:        domain.StageStatusNeedsClarify,
		ResponseHint:  hint,
		Accepted:      false,
		NextState:     currentState,
	}
}

func (p *Pipeline) runStage2(ctx context.Context, session *domain.SessionState, maskedText string, stage1 domain.StateSelectorOutput) domain.ResponseGeneratorOutput {
	cctx, cancel := context.WithTimeout(ctx, p.stage2Timeout)
	defer cancel()

	out, err := p.llm.GenerateResponse(cctx, ports.ResponseGeneratorRequest{
		UserText:       maskedText,
		DetectedIntent: firstOrEmpty(stage1.DetectedRequests),
		CurrentState:   session.CurrentState,
		NextState:      stage1.NextState,
		SessionSummary: summarizeSession(session),
	})
	if err != nil {
		return fallbackStage2()
	}
	return out
}

func fallbackStage2() domain.ResponseGeneratorOutput {
	return domain.ResponseGeneratorOutput{
		TextContent:   "Desculpe, não consegui processar sua mensagem agora. Um atendente vai te ajudar em breve.",
		RequiresHuman: true,
		Confidence:    0,
		Rationale:     "llm_unavailable",
	}
}

func (p *Pipeline) runStage3(ctx context.Context, stage2 domain.ResponseGeneratorOutput, detectedIntent string) domain.MessagePlan {
	cctx, cancel := context.WithTimeout(ctx, p.stage3Timeout)
	defer cancel()

	plan, err := p.llm.SelectMessageType(cctx, ports.MessageTypeRequest{
		TextContent:    stage2.TextContent,
		Options:        stage2.Options,
		DetectedIntent: detectedIntent,
	})
	if err != nil {
		return fallbackPlan(stage2)
	}
	return plan
}

func fallbackPlan(stage2 domain.ResponseGeneratorOutput) domain.MessagePlan {
	return domain.MessagePlan{
		Kind: domain.PlanKindText,
		Text: stage2.TextContent,
		Safety: domain.PlanSafety{
			PIIRisk:        domain.PIIRiskLow,
			RequireHandoff: stage2.RequiresHuman,
		},
		Confidence: 0,
		Reason:     "llm_unavailable",
	}
}

func (p *Pipeline) runDecider(ctx context.Context, userText string, stage1 domain.StateSelectorOutput, stage2 domain.ResponseGeneratorOutput) domain.DeciderOutput {
	if !stage1.Accepted && stage1.ResponseHint != "" {
		return domain.DeciderOutput{
			ResponseIndex: firstIndexMatchingKeywords(stage2.Options, confirmationKeywords),
			ApplyState:    false,
			Confidence:    stage1.Confidence,
		}
	}

	if containsAny(userText, closingTokens) {
		return domain.DeciderOutput{
			ResponseIndex: 0,
			ApplyState:    stage1.Accepted,
			Confidence:    stage1.Confidence,
		}
	}

	cctx, cancel := context.WithTimeout(ctx, p.deciderTimeout)
	defer cancel()

	out, err := p.llm.Decide(cctx, ports.DeciderRequest{Stage1: stage1, Stage2: stage2, ValidStates: p.validStates})
	if err != nil {
		return domain.DeciderOutput{
			ResponseIndex: 0,
			ApplyState:    stage1.Accepted,
			Confidence:    capConfidence(stage1.Confidence, stage1.Confidence),
		}
	}

	out.ResponseIndex = clampInt(out.ResponseIndex, 0, len(stage2.Options)-1)
	out.Confidence = clampFloat(out.Confidence, 0, 1)
	return out
}

func containsAny(text string, tokens []string) bool {
	lower := strings.ToLower(text)
	for _, t := range tokens {
		if strings.Contains(lower, t) {
			return true
		}
	}
	return false
}

func firstOrEmpty(items []string) string {
	if len(items) == 0 {
		return ""
	}
	return items[0]
}

func firstIndexMatchingKeywords(options []domain.ResponseOption, keywords []string) int {
	for i, o := range options {
		if containsAny(o.Title, keywords) {
			return i
		}
	}
	return 0
}

func clampInt(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func capConfidence(v, cap float64) float64 {
	if v > cap {
		return cap
	}
	return v
}

func summarizeSession(session *domain.SessionState) string {
	return fmt.Sprintf("state=%s intents=%d history=%d", session.CurrentState, len(session.IntentQueue), len(session.MessageHistory))
}
