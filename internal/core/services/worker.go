package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/wagateway/core/internal/adapters/dto"
	"github.com/wagateway/core/internal/core/domain"
	"github.com/wagateway/core/internal/core/payload"
	"github.com/wagateway/core/internal/core/ports"
)

// WorkerResult mirrors POST /internal/process_inbound's response body.
type WorkerResult struct {
	InboundEventID string
	Processed      int
	Deduped        bool
	Skipped        int
	OutboundTasks  []string
}

// Worker drives C2 (re-check) -> C3 -> C4 -> C5 -> C6 -> C3 (persist) ->
// C9 -> C7 -> C8 for one dequeued InboundTask. It is the single place
// that strings the components spec.md §2's data-flow row together.
type Worker struct {
	dedupe     ports.DedupeStore
	dedupeTTL  time.Duration
	sessions   *SessionManager
	abuse      *AbuseGuard
	pipeline   *Pipeline
	dispatcher *OutboundDispatcher
	audit      *AuditChain
	phoneNumberID string
}

// NewWorker wires every component the worker calls into.
func NewWorker(dedupe ports.DedupeStore, dedupeTTL time.Duration, sessions *SessionManager, abuse *AbuseGuard, pipeline *Pipeline, dispatcher *OutboundDispatcher, audit *AuditChain, phoneNumberID string) *Worker {
	return &Worker{
		dedupe:        dedupe,
		dedupeTTL:     dedupeTTL,
		sessions:      sessions,
		abuse:         abuse,
		pipeline:      pipeline,
		dispatcher:    dispatcher,
		audit:         audit,
		phoneNumberID: phoneNumberID,
	}
}

// Process handles one InboundTask end to end. It sets its own dedupe
// mark, "processed:"+InboundEventID, distinct from the key admission
// already marked (MarkIfNew on an already-seen key is a no-op that
// reports duplicate), so the first delivery is processed and a task
// replayed by the push_http queue backend — which does not guarantee
// exactly-once delivery — is reported as deduped.
func (w *Worker) Process(ctx context.Context, task ports.InboundTask) (WorkerResult, error) {
	isNew, err := w.dedupe.MarkIfNew(ctx, "processed:"+task.InboundEventID, w.dedupeTTL)
	if err != nil {
		return WorkerResult{}, fmt.Errorf("dedupe check failed: %w", err)
	}
	if !isNew {
		return WorkerResult{InboundEventID: task.InboundEventID, Deduped: true}, nil
	}

	var wire dto.WebhookRequest
	if err := json.Unmarshal(task.Payload, &wire); err != nil {
		return WorkerResult{}, fmt.Errorf("parse payload: %w", err)
	}

	result := WorkerResult{InboundEventID: task.InboundEventID}
	for _, entry := range wire.Entry {
		for _, change := range entry.Changes {
			for _, m := range change.Value.Messages {
				if m.Type == "" {
					result.Skipped++
					continue
				}
				msg := dto.ToDomain(m)
				outboundTaskID, err := w.processMessage(ctx, msg, task.CorrelationID)
				if err != nil {
					slog.Error("failed to process inbound message", "error", err, "message_id", msg.MessageID)
					result.Skipped++
					continue
				}
				result.Processed++
				if outboundTaskID != "" {
					result.OutboundTasks = append(result.OutboundTasks, outboundTaskID)
				}
			}
		}
	}
	return result, nil
}

func (w *Worker) processMessage(ctx context.Context, msg *domain.Message, correlationID string) (outboundTaskID string, err error) {
	session, err := w.sessions.GetOrCreate(ctx, msg.ChatID)
	if err != nil {
		return "", fmt.Errorf("session get_or_create: %w", err)
	}

	receivedAt := msg.Timestamp
	if receivedAt.IsZero() {
		receivedAt = time.Now().UTC()
	}
	_, added := w.sessions.AppendUserMessage(session, msg.MessageID, correlationID, receivedAt)
	if !added {
		slog.Info("message already recorded, skipping", "message_id", msg.MessageID, "chat_id", msg.ChatID)
		return "", nil
	}

	verdict := w.abuse.Check(ctx, session.SessionID, msg.TextContent(), session)
	if verdict.Blocked {
		return "", w.finalizeBlocked(ctx, session, msg, verdict)
	}

	dispatch := Dispatch(session.CurrentState, domain.EventUserSentText)
	if !dispatch.Valid {
		return "", w.escalateInternalError(ctx, session, msg, dispatch.Err)
	}
	session.CurrentState = dispatch.NextState // TRIAGE

	history := historyTextsFrom(session)
	pipelineResult := w.pipeline.Run(ctx, session, history, msg.TextContent())

	if err := w.advanceFSM(session, pipelineResult); err != nil {
		return "", w.escalateInternalError(ctx, session, msg, err.Error())
	}

	if pipelineResult.Decider.ApplyState {
		w.sessions.PushIntent(session, firstOrEmpty(pipelineResult.Stage1.DetectedRequests), pipelineResult.Stage1.Confidence, time.Now().UTC())
	}

	if err := w.sessions.Persist(ctx, session); err != nil {
		return "", fmt.Errorf("persist session: %w", err)
	}

	if err := w.appendAudit(ctx, msg.ChatID, correlationID, "message_processed", pipelineResult.Plan.Reason); err != nil {
		slog.Error("audit append failed", "error", err, "chat_id", msg.ChatID)
	}

	outboundMsg := payload.FromPlan(msg.FromNumber, msg.MessageID, pipelineResult.Plan)
	resp := w.dispatcher.Send(ctx, msg.MessageID, outboundMsg)
	if !resp.Success {
		return "", fmt.Errorf("dispatch send failed: %s: %s", resp.Kind, resp.ErrorMessage)
	}
	return msg.MessageID, nil
}

// advanceFSM mechanically walks the happy-path transitions from TRIAGE
// to a terminal-for-this-turn state (AWAITING_USER, or HANDOFF_HUMAN
// when Stage 2 requires human review), mutating session.CurrentState and
// session.Outcome. Each step is a real Dispatch call so the purity and
// terminal-absorption invariants still govern every transition taken.
func (w *Worker) advanceFSM(session *domain.SessionState, result PipelineResult) error {
	var steps []domain.FSMEvent
	if result.Stage2.RequiresHuman {
		steps = []domain.FSMEvent{domain.EventInternalError, domain.EventResponseGenerated}
	} else {
		steps = []domain.FSMEvent{domain.EventDetected, domain.EventResponseGenerated, domain.EventResponseGenerated, domain.EventMessageTypeSelected}
	}

	for _, event := range steps {
		d := Dispatch(session.CurrentState, event)
		if !d.Valid {
			return fmt.Errorf("fsm: %s", d.Err)
		}
		session.CurrentState = d.NextState
	}

	outcome := domain.OutcomeAwaitingUser
	if result.Stage2.RequiresHuman {
		outcome = domain.OutcomeHandoffHuman
	}
	session.Outcome = &outcome
	return nil
}

func (w *Worker) finalizeBlocked(ctx context.Context, session *domain.SessionState, msg *domain.Message, verdict AbuseGuardVerdict) error {
	d := Dispatch(session.CurrentState, domain.EventAbuseDetected)
	if d.Valid {
		session.CurrentState = d.NextState
	}
	session.Outcome = &verdict.Outcome

	if err := w.sessions.Persist(ctx, session); err != nil {
		return fmt.Errorf("persist blocked session: %w", err)
	}
	if err := w.appendAudit(ctx, msg.ChatID, "", "abuse_blocked", string(verdict.Outcome)); err != nil {
		slog.Error("audit append failed", "error", err, "chat_id", msg.ChatID)
	}
	return nil
}

func (w *Worker) escalateInternalError(ctx context.Context, session *domain.SessionState, msg *domain.Message, reason string) error {
	d := Dispatch(session.CurrentState, domain.EventInternalError)
	if d.Valid {
		session.CurrentState = d.NextState
	}
	outcome := domain.OutcomeFailedInternal
	session.Outcome = &outcome

	if err := w.sessions.Persist(ctx, session); err != nil {
		slog.Error("failed to persist failed session", "error", err, "chat_id", msg.ChatID)
	}
	if err := w.appendAudit(ctx, msg.ChatID, "", "internal_error", reason); err != nil {
		slog.Error("audit append failed", "error", err, "chat_id", msg.ChatID)
	}
	return fmt.Errorf("internal error: %s", reason)
}

func (w *Worker) appendAudit(ctx context.Context, userKey, correlationID, action, reason string) error {
	_, err := w.audit.AppendWithRetry(ctx, domain.AuditEvent{
		UserKey:       userKey,
		Actor:         domain.ActorSystem,
		Action:        action,
		Reason:        MaskPII(reason),
		CorrelationID: correlationID,
	})
	return err
}

// historyTextsFrom stands in for the session's recent conversational
// history. SessionState.MessageHistory (per its own bounded-ring
// invariant) retains only message_id/received_at/correlation_id, not
// body text, so there is nothing to mask beyond the ids themselves; a
// richer transcript store is out of scope here.
func historyTextsFrom(session *domain.SessionState) []string {
	texts := make([]string, 0, len(session.MessageHistory))
	for _, h := range session.MessageHistory {
		texts = append(texts, h.MessageID)
	}
	return texts
}
