package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xiaot623/gochat/internal/adapter/llm"
	"github.com/xiaot623/gochat/internal/domain"
)

// EventSink receives the stream events of a turn in order.
// A Send error means the client is gone and ends the turn as cancelled.
type EventSink interface {
	Send(ev domain.StreamEvent) error
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(ev domain.StreamEvent) error

func (f EventSinkFunc) Send(ev domain.StreamEvent) error { return f(ev) }

// StreamTurn runs one chat turn against an existing session and forwards every
// generated fragment to sink.
//
// Errors returned before any event is sent (validation, unknown session,
// cancellation while waiting for the session) leave the session untouched.
// Once the turn holds the session, its outcome is reported through the
// returned TurnResult and the events sent to sink:
//   - completed: fragments, then a terminal event echoing the session id
//   - failed: fragments so far, then a terminal event carrying the error text;
//     an error-flagged assistant message is stored
//   - cancelled: partial content, if any, is stored as a normal assistant
//     message; a terminal event is attempted only if sink still works
func (s *Service) StreamTurn(ctx context.Context, req domain.TurnRequest, sink EventSink) (*domain.TurnResult, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, domain.ErrEmptyMessage
	}

	sessionID := req.SessionID
	if sessionID == "" {
		if !s.config.ImplicitSessions {
			return nil, domain.ErrSessionRequired
		}
		session, err := s.CreateSession(ctx, req.Model)
		if err != nil {
			return nil, err
		}
		sessionID = session.SessionID
	}

	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if req.Model != "" && req.Model != session.Model {
		return nil, fmt.Errorf("%w: session uses %q, request named %q", domain.ErrModelMismatch, session.Model, req.Model)
	}

	var (
		turnCtx context.Context
		cancel  context.CancelFunc
	)
	if s.config.TurnTimeout > 0 {
		turnCtx, cancel = context.WithTimeout(ctx, s.config.TurnTimeout)
	} else {
		turnCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	var result *domain.TurnResult
	err = s.store.WithLock(turnCtx, sessionID, func(lockCtx context.Context) error {
		untrack := s.trackTurn(sessionID, cancel)
		defer untrack()

		var err error
		result, err = s.runTurn(lockCtx, cancel, sessionID, session.Model, req, sink)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// turn carries the state of one turn while it holds the session lock.
type turn struct {
	svc       *Service
	ctx       context.Context
	cancel    context.CancelFunc
	sessionID string
	model     string
	sink      EventSink

	state      domain.TurnState
	assistant  domain.Message
	content    strings.Builder
	sinkBroken bool
}

func (t *turn) transition(state domain.TurnState) {
	t.state = state
	t.svc.logger.Debug("turn state", "session_id", t.sessionID, "state", state)
}

func (s *Service) runTurn(ctx context.Context, cancel context.CancelFunc, sessionID, model string, req domain.TurnRequest, sink EventSink) (*domain.TurnResult, error) {
	t := &turn{
		svc:       s,
		ctx:       ctx,
		cancel:    cancel,
		sessionID: sessionID,
		model:     model,
		sink:      sink,
	}
	t.transition(domain.TurnStateIdle)

	// Re-read under the lock: a previous turn may have appended since the caller looked.
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	userMsg := domain.Message{
		Role:      domain.RoleUser,
		Content:   req.Message,
		Timestamp: time.Now().UTC(),
	}
	if err := s.store.AppendMessage(ctx, sessionID, userMsg); err != nil {
		return nil, fmt.Errorf("failed to append user message: %w", err)
	}
	t.transition(domain.TurnStateUserAppended)

	t.assistant = domain.Message{Role: domain.RoleAssistant, Timestamp: time.Now().UTC()}

	stream, err := s.generator.Generate(ctx, &llm.GenerateRequest{
		Model:        model,
		Messages:     buildTranscript(session.Messages, userMsg),
		SystemPrompt: req.SystemPrompt,
	})
	if err != nil {
		if ctx.Err() != nil {
			return t.cancelled(), nil
		}
		return t.failed(err), nil
	}
	defer stream.Close()
	t.transition(domain.TurnStateStreaming)

	for stream.Next() {
		fragment := stream.Fragment()
		t.content.WriteString(fragment)
		if err := sink.Send(domain.StreamEvent{Content: fragment, SessionID: sessionID}); err != nil {
			s.logger.Debug("stream sink closed", "session_id", sessionID, "error", err)
			t.sinkBroken = true
			t.cancel()
			return t.cancelled(), nil
		}
	}

	if err := stream.Err(); err != nil {
		if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return t.cancelled(), nil
		}
		return t.failed(err), nil
	}
	return t.completed(), nil
}

// buildTranscript returns the history sent upstream. Error-flagged replies are
// presentation only and are left out.
func buildTranscript(history []domain.Message, userMsg domain.Message) []llm.ChatMessage {
	out := make([]llm.ChatMessage, 0, len(history)+1)
	for _, m := range history {
		if m.Error {
			continue
		}
		out = append(out, llm.ChatMessage{Role: string(m.Role), Content: m.Content})
	}
	return append(out, llm.ChatMessage{Role: string(userMsg.Role), Content: userMsg.Content})
}

func (t *turn) completed() *domain.TurnResult {
	t.assistant.Content = t.content.String()
	t.persist()
	t.transition(domain.TurnStateCompleted)
	t.finish(domain.StreamEvent{Done: true, SessionID: t.sessionID})
	return t.result()
}

func (t *turn) failed(cause error) *domain.TurnResult {
	t.svc.logger.Error("turn failed", "session_id", t.sessionID, "model", t.model, "error", cause)
	t.assistant.Content = domain.FailedTurnText
	t.assistant.Error = true
	t.persist()
	t.transition(domain.TurnStateFailed)
	t.finish(domain.StreamEvent{Done: true, SessionID: t.sessionID, Error: domain.FailedTurnText})
	return t.result()
}

func (t *turn) cancelled() *domain.TurnResult {
	t.assistant.Content = t.content.String()
	if t.assistant.Content != "" {
		t.persist()
	}
	t.transition(domain.TurnStateCancelled)
	t.svc.logger.Info("turn cancelled", "session_id", t.sessionID, "partial_bytes", len(t.assistant.Content))
	if !t.sinkBroken {
		t.finish(domain.StreamEvent{Done: true, SessionID: t.sessionID})
	}
	return t.result()
}

// persist stores the assistant message even when the turn context is done.
// A session deleted mid-turn makes the append fail; the result is dropped.
func (t *turn) persist() {
	ctx := context.WithoutCancel(t.ctx)
	if err := t.svc.store.AppendMessage(ctx, t.sessionID, t.assistant); err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			t.svc.logger.Info("session deleted during turn, discarding reply", "session_id", t.sessionID)
			return
		}
		t.svc.logger.Error("failed to save assistant message", "session_id", t.sessionID, "error", err)
	}
}

func (t *turn) finish(ev domain.StreamEvent) {
	if err := t.sink.Send(ev); err != nil {
		t.svc.logger.Debug("failed to send terminal event", "session_id", t.sessionID, "error", err)
	}
}

func (t *turn) result() *domain.TurnResult {
	return &domain.TurnResult{
		SessionID: t.sessionID,
		Model:     t.model,
		State:     t.state,
		Message:   t.assistant,
	}
}
