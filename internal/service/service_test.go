package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gochat/internal/adapter/llm"
	"github.com/xiaot623/gochat/internal/config"
	"github.com/xiaot623/gochat/internal/domain"
	"github.com/xiaot623/gochat/internal/policy"
	"github.com/xiaot623/gochat/internal/repository"
)

// fakeGenerator hands each Generate call to a per-test script.
type fakeGenerator struct {
	models  []string
	listErr error
	script  func(ctx context.Context, req *llm.GenerateRequest) (llm.FragmentStream, error)

	mu       sync.Mutex
	requests []*llm.GenerateRequest
}

func (g *fakeGenerator) Generate(ctx context.Context, req *llm.GenerateRequest) (llm.FragmentStream, error) {
	g.mu.Lock()
	g.requests = append(g.requests, req)
	g.mu.Unlock()
	return g.script(ctx, req)
}

func (g *fakeGenerator) ListModels(ctx context.Context) ([]llm.Model, error) {
	if g.listErr != nil {
		return nil, g.listErr
	}
	models := make([]llm.Model, 0, len(g.models))
	for _, name := range g.models {
		models = append(models, llm.Model{Name: name})
	}
	return models, nil
}

func (g *fakeGenerator) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.requests)
}

func (g *fakeGenerator) request(i int) *llm.GenerateRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.requests[i]
}

func fragments(frags ...string) func(ctx context.Context, req *llm.GenerateRequest) (llm.FragmentStream, error) {
	return func(ctx context.Context, req *llm.GenerateRequest) (llm.FragmentStream, error) {
		return llm.NewStaticStream(ctx, frags, nil), nil
	}
}

// gatedStream yields whatever the test pushes on frags until frags is closed.
type gatedStream struct {
	ctx     context.Context
	frags   chan string
	current string
	err     error
	closed  atomic.Bool
}

func newGatedStream(ctx context.Context) *gatedStream {
	return &gatedStream{ctx: ctx, frags: make(chan string)}
}

func (s *gatedStream) Next() bool {
	if s.err != nil {
		return false
	}
	select {
	case <-s.ctx.Done():
		s.err = s.ctx.Err()
		return false
	case f, ok := <-s.frags:
		if !ok {
			return false
		}
		s.current = f
		return true
	}
}

func (s *gatedStream) Fragment() string { return s.current }
func (s *gatedStream) Err() error       { return s.err }
func (s *gatedStream) Close() error {
	s.closed.Store(true)
	return nil
}

// recordingSink collects events and optionally reacts to each one.
type recordingSink struct {
	mu     sync.Mutex
	events []domain.StreamEvent
	onSend func(n int, ev domain.StreamEvent) error
}

func (s *recordingSink) Send(ev domain.StreamEvent) error {
	s.mu.Lock()
	s.events = append(s.events, ev)
	n := len(s.events)
	onSend := s.onSend
	s.mu.Unlock()
	if onSend != nil {
		return onSend(n, ev)
	}
	return nil
}

func (s *recordingSink) snapshot() []domain.StreamEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.StreamEvent(nil), s.events...)
}

func newTestService(t *testing.T, gen *fakeGenerator, cfg *config.Config) (*Service, repository.Store) {
	t.Helper()
	if gen.models == nil {
		gen.models = []string{"m1", "m2"}
	}
	if cfg == nil {
		cfg = &config.Config{}
	}
	engine, err := policy.NewEngine(context.Background(), policy.DefaultPolicy)
	require.NoError(t, err)

	store := repository.NewMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(store, gen, cfg, engine, logger), store
}

func createSession(t *testing.T, svc *Service, model string) string {
	t.Helper()
	session, err := svc.CreateSession(context.Background(), model)
	require.NoError(t, err)
	return session.SessionID
}

func TestStreamTurnHelloScenario(t *testing.T) {
	ctx := context.Background()
	gen := &fakeGenerator{script: fragments("He", "llo")}
	svc, _ := newTestService(t, gen, nil)
	id := createSession(t, svc, "m1")

	sink := &recordingSink{}
	result, err := svc.StreamTurn(ctx, domain.TurnRequest{Message: "hi", Model: "m1", SessionID: id}, sink)
	require.NoError(t, err)

	assert.Equal(t, domain.TurnStateCompleted, result.State)
	assert.Equal(t, "Hello", result.Message.Content)
	assert.Equal(t, []domain.StreamEvent{
		{Content: "He", SessionID: id},
		{Content: "llo", SessionID: id},
		{Done: true, SessionID: id},
	}, sink.snapshot())

	session, err := svc.GetSession(ctx, id)
	require.NoError(t, err)
	require.Len(t, session.Messages, 2)
	assert.Equal(t, domain.RoleUser, session.Messages[0].Role)
	assert.Equal(t, "hi", session.Messages[0].Content)
	assert.Equal(t, domain.RoleAssistant, session.Messages[1].Role)
	assert.Equal(t, "Hello", session.Messages[1].Content)
	assert.False(t, session.Messages[1].Error)

	req := gen.request(0)
	assert.Equal(t, "m1", req.Model)
	assert.Equal(t, []llm.ChatMessage{{Role: "user", Content: "hi"}}, req.Messages)
}

func TestStreamTurnMessagesGrowByTwoPerTurn(t *testing.T) {
	ctx := context.Background()
	gen := &fakeGenerator{script: fragments("ok")}
	svc, _ := newTestService(t, gen, nil)
	id := createSession(t, svc, "m1")

	prompts := []string{"one", "two", "three"}
	for _, p := range prompts {
		_, err := svc.StreamTurn(ctx, domain.TurnRequest{Message: p, SessionID: id}, &recordingSink{})
		require.NoError(t, err)
	}

	session, err := svc.GetSession(ctx, id)
	require.NoError(t, err)
	require.Len(t, session.Messages, 2*len(prompts))
	for i, p := range prompts {
		assert.Equal(t, p, session.Messages[2*i].Content)
		assert.Equal(t, domain.RoleAssistant, session.Messages[2*i+1].Role)
	}

	// The third turn sees the first two turns plus its own prompt.
	assert.Len(t, gen.request(2).Messages, 5)
}

func TestStreamTurnSystemPromptIsForwarded(t *testing.T) {
	gen := &fakeGenerator{script: fragments("ok")}
	svc, _ := newTestService(t, gen, nil)
	id := createSession(t, svc, "m1")

	_, err := svc.StreamTurn(context.Background(), domain.TurnRequest{Message: "hi", SessionID: id, SystemPrompt: "be brief"}, &recordingSink{})
	require.NoError(t, err)
	assert.Equal(t, "be brief", gen.request(0).SystemPrompt)
}

func TestStreamTurnZeroFragments(t *testing.T) {
	ctx := context.Background()
	gen := &fakeGenerator{script: fragments()}
	svc, _ := newTestService(t, gen, nil)
	id := createSession(t, svc, "m1")

	sink := &recordingSink{}
	result, err := svc.StreamTurn(ctx, domain.TurnRequest{Message: "hi", SessionID: id}, sink)
	require.NoError(t, err)
	assert.Equal(t, domain.TurnStateCompleted, result.State)
	assert.Equal(t, []domain.StreamEvent{{Done: true, SessionID: id}}, sink.snapshot())

	session, err := svc.GetSession(ctx, id)
	require.NoError(t, err)
	require.Len(t, session.Messages, 2)
	assert.Equal(t, "", session.Messages[1].Content)
}

func TestStreamTurnUpstreamFailure(t *testing.T) {
	tests := []struct {
		name       string
		script     func(ctx context.Context, req *llm.GenerateRequest) (llm.FragmentStream, error)
		wantEvents int
	}{
		{
			name: "mid-stream",
			script: func(ctx context.Context, req *llm.GenerateRequest) (llm.FragmentStream, error) {
				return llm.NewStaticStream(ctx, []string{"par"}, llm.ErrUpstreamError), nil
			},
			wantEvents: 2,
		},
		{
			name: "unreachable",
			script: func(ctx context.Context, req *llm.GenerateRequest) (llm.FragmentStream, error) {
				return nil, llm.ErrUpstreamUnavailable
			},
			wantEvents: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			gen := &fakeGenerator{script: tt.script}
			svc, _ := newTestService(t, gen, nil)
			id := createSession(t, svc, "m1")

			sink := &recordingSink{}
			result, err := svc.StreamTurn(ctx, domain.TurnRequest{Message: "hi", SessionID: id}, sink)
			require.NoError(t, err)
			assert.Equal(t, domain.TurnStateFailed, result.State)

			events := sink.snapshot()
			require.Len(t, events, tt.wantEvents)
			last := events[len(events)-1]
			assert.True(t, last.Done)
			assert.Equal(t, id, last.SessionID)
			assert.Equal(t, domain.FailedTurnText, last.Error)

			session, err := svc.GetSession(ctx, id)
			require.NoError(t, err)
			require.Len(t, session.Messages, 2)
			assert.True(t, session.Messages[1].Error)
			assert.Equal(t, domain.FailedTurnText, session.Messages[1].Content)
		})
	}
}

func TestStreamTurnTranscriptSkipsErrorMessages(t *testing.T) {
	ctx := context.Background()
	var fail atomic.Bool
	fail.Store(true)
	gen := &fakeGenerator{script: func(ctx context.Context, req *llm.GenerateRequest) (llm.FragmentStream, error) {
		if fail.Load() {
			return nil, llm.ErrUpstreamError
		}
		return llm.NewStaticStream(ctx, []string{"ok"}, nil), nil
	}}
	svc, _ := newTestService(t, gen, nil)
	id := createSession(t, svc, "m1")

	_, err := svc.StreamTurn(ctx, domain.TurnRequest{Message: "first", SessionID: id}, &recordingSink{})
	require.NoError(t, err)
	fail.Store(false)
	_, err = svc.StreamTurn(ctx, domain.TurnRequest{Message: "second", SessionID: id}, &recordingSink{})
	require.NoError(t, err)

	assert.Equal(t, []llm.ChatMessage{
		{Role: "user", Content: "first"},
		{Role: "user", Content: "second"},
	}, gen.request(1).Messages)
}

func TestStreamTurnCancelAfterFragments(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var first *gatedStream
	gen := &fakeGenerator{}
	gen.script = func(sctx context.Context, req *llm.GenerateRequest) (llm.FragmentStream, error) {
		if gen.calls() == 1 {
			first = newGatedStream(sctx)
			go func() {
				first.frags <- "a"
				first.frags <- "b"
			}()
			return first, nil
		}
		return llm.NewStaticStream(sctx, []string{"next"}, nil), nil
	}
	svc, _ := newTestService(t, gen, nil)
	id := createSession(t, svc, "m1")

	sink := &recordingSink{onSend: func(n int, ev domain.StreamEvent) error {
		if n == 2 {
			cancel()
		}
		return nil
	}}
	result, err := svc.StreamTurn(ctx, domain.TurnRequest{Message: "hi", SessionID: id}, sink)
	require.NoError(t, err)
	assert.Equal(t, domain.TurnStateCancelled, result.State)
	assert.Equal(t, "ab", result.Message.Content)
	assert.True(t, first.closed.Load())

	session, err := svc.GetSession(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, session.Messages, 2)
	assert.Equal(t, "ab", session.Messages[1].Content)
	assert.False(t, session.Messages[1].Error)

	// The lock was released: the next turn runs straight away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := svc.StreamTurn(context.Background(), domain.TurnRequest{Message: "again", SessionID: id}, &recordingSink{})
		assert.NoError(t, err)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("session lock was not released after cancellation")
	}
}

func TestStreamTurnCancelBeforeFragmentsPersistsNothing(t *testing.T) {
	gen := &fakeGenerator{script: func(ctx context.Context, req *llm.GenerateRequest) (llm.FragmentStream, error) {
		return newGatedStream(ctx), nil
	}}
	svc, _ := newTestService(t, gen, &config.Config{TurnTimeout: 50 * time.Millisecond})
	id := createSession(t, svc, "m1")

	result, err := svc.StreamTurn(context.Background(), domain.TurnRequest{Message: "hi", SessionID: id}, &recordingSink{})
	require.NoError(t, err)
	assert.Equal(t, domain.TurnStateCancelled, result.State)

	session, err := svc.GetSession(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, session.Messages, 1)
	assert.Equal(t, domain.RoleUser, session.Messages[0].Role)
}

func TestStreamTurnSinkFailureEndsTurn(t *testing.T) {
	gen := &fakeGenerator{script: fragments("He", "llo", "world")}
	svc, _ := newTestService(t, gen, nil)
	id := createSession(t, svc, "m1")

	sink := &recordingSink{onSend: func(n int, ev domain.StreamEvent) error {
		return errors.New("broken pipe")
	}}
	result, err := svc.StreamTurn(context.Background(), domain.TurnRequest{Message: "hi", SessionID: id}, sink)
	require.NoError(t, err)
	assert.Equal(t, domain.TurnStateCancelled, result.State)
	assert.Len(t, sink.snapshot(), 1)

	session, err := svc.GetSession(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, session.Messages, 2)
	assert.Equal(t, "He", session.Messages[1].Content)
}

func TestStreamTurnSameSessionIsSerialized(t *testing.T) {
	ctx := context.Background()
	var first *gatedStream
	started := make(chan struct{})
	gen := &fakeGenerator{}
	gen.script = func(sctx context.Context, req *llm.GenerateRequest) (llm.FragmentStream, error) {
		if gen.calls() == 1 {
			first = newGatedStream(sctx)
			close(started)
			return first, nil
		}
		return llm.NewStaticStream(sctx, []string{"second reply"}, nil), nil
	}
	svc, _ := newTestService(t, gen, nil)
	id := createSession(t, svc, "m1")

	firstDone := make(chan struct{})
	go func() {
		defer close(firstDone)
		_, err := svc.StreamTurn(ctx, domain.TurnRequest{Message: "first", SessionID: id}, &recordingSink{})
		assert.NoError(t, err)
	}()
	<-started

	secondDone := make(chan struct{})
	go func() {
		defer close(secondDone)
		_, err := svc.StreamTurn(ctx, domain.TurnRequest{Message: "second", SessionID: id}, &recordingSink{})
		assert.NoError(t, err)
	}()

	assert.Never(t, func() bool {
		session, err := svc.GetSession(ctx, id)
		return err != nil || len(session.Messages) != 1 || gen.calls() != 1
	}, 100*time.Millisecond, 10*time.Millisecond)

	first.frags <- "first reply"
	close(first.frags)
	<-firstDone
	<-secondDone

	session, err := svc.GetSession(ctx, id)
	require.NoError(t, err)
	var contents []string
	for _, m := range session.Messages {
		contents = append(contents, m.Content)
	}
	assert.Equal(t, []string{"first", "first reply", "second", "second reply"}, contents)
}

func TestStreamTurnDifferentSessionsAreIndependent(t *testing.T) {
	ctx := context.Background()
	blocked := make(chan *gatedStream, 1)
	gen := &fakeGenerator{script: func(sctx context.Context, req *llm.GenerateRequest) (llm.FragmentStream, error) {
		if req.Messages[len(req.Messages)-1].Content == "block" {
			s := newGatedStream(sctx)
			blocked <- s
			return s, nil
		}
		return llm.NewStaticStream(sctx, []string{"fast"}, nil), nil
	}}
	svc, _ := newTestService(t, gen, nil)
	slowID := createSession(t, svc, "m1")
	fastID := createSession(t, svc, "m1")

	slowDone := make(chan struct{})
	go func() {
		defer close(slowDone)
		_, _ = svc.StreamTurn(ctx, domain.TurnRequest{Message: "block", SessionID: slowID}, &recordingSink{})
	}()
	slow := <-blocked

	done := make(chan struct{})
	go func() {
		defer close(done)
		result, err := svc.StreamTurn(ctx, domain.TurnRequest{Message: "go", SessionID: fastID}, &recordingSink{})
		assert.NoError(t, err)
		assert.Equal(t, domain.TurnStateCompleted, result.State)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("turn on an unrelated session was blocked")
	}

	close(slow.frags)
	<-slowDone
}

func TestStreamTurnDeleteWhileInFlight(t *testing.T) {
	ctx := context.Background()
	var stream *gatedStream
	started := make(chan struct{})
	gen := &fakeGenerator{script: func(sctx context.Context, req *llm.GenerateRequest) (llm.FragmentStream, error) {
		stream = newGatedStream(sctx)
		close(started)
		return stream, nil
	}}
	svc, _ := newTestService(t, gen, nil)
	id := createSession(t, svc, "m1")

	type outcome struct {
		result *domain.TurnResult
		err    error
	}
	out := make(chan outcome, 1)
	sink := &recordingSink{}
	go func() {
		r, err := svc.StreamTurn(ctx, domain.TurnRequest{Message: "hi", SessionID: id}, sink)
		out <- outcome{r, err}
	}()
	<-started
	stream.frags <- "partial"

	require.NoError(t, svc.DeleteSession(ctx, id))
	summaries, err := svc.ListSessions(ctx)
	require.NoError(t, err)
	for _, s := range summaries {
		assert.NotEqual(t, id, s.SessionID)
	}

	close(stream.frags)
	got := <-out
	require.NoError(t, got.err)
	assert.Equal(t, domain.TurnStateCompleted, got.result.State)

	_, err = svc.GetSession(ctx, id)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestStreamTurnValidation(t *testing.T) {
	ctx := context.Background()
	gen := &fakeGenerator{script: fragments("x")}
	svc, _ := newTestService(t, gen, nil)
	id := createSession(t, svc, "m1")

	tests := []struct {
		name string
		req  domain.TurnRequest
		want error
	}{
		{"empty message", domain.TurnRequest{Message: "  ", SessionID: id}, domain.ErrEmptyMessage},
		{"no session", domain.TurnRequest{Message: "hi", Model: "m1"}, domain.ErrSessionRequired},
		{"unknown session", domain.TurnRequest{Message: "hi", SessionID: "missing"}, domain.ErrSessionNotFound},
		{"model mismatch", domain.TurnRequest{Message: "hi", Model: "m2", SessionID: id}, domain.ErrModelMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &recordingSink{}
			_, err := svc.StreamTurn(ctx, tt.req, sink)
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, sink.snapshot())
		})
	}

	session, err := svc.GetSession(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, session.Messages)
	assert.Zero(t, gen.calls())
}

func TestStreamTurnImplicitSession(t *testing.T) {
	ctx := context.Background()
	gen := &fakeGenerator{script: fragments("hey")}
	svc, _ := newTestService(t, gen, &config.Config{ImplicitSessions: true})

	sink := &recordingSink{}
	result, err := svc.StreamTurn(ctx, domain.TurnRequest{Message: "hi", Model: "m2"}, sink)
	require.NoError(t, err)
	require.NotEmpty(t, result.SessionID)
	assert.Equal(t, "m2", result.Model)

	events := sink.snapshot()
	assert.Equal(t, result.SessionID, events[len(events)-1].SessionID)

	_, err = svc.StreamTurn(ctx, domain.TurnRequest{Message: "hi"}, sink)
	assert.ErrorIs(t, err, domain.ErrInvalidModel)
}

func TestCancelTurn(t *testing.T) {
	ctx := context.Background()
	var stream *gatedStream
	started := make(chan struct{})
	gen := &fakeGenerator{script: func(sctx context.Context, req *llm.GenerateRequest) (llm.FragmentStream, error) {
		stream = newGatedStream(sctx)
		close(started)
		return stream, nil
	}}
	svc, _ := newTestService(t, gen, nil)
	id := createSession(t, svc, "m1")

	assert.False(t, svc.CancelTurn(id))

	out := make(chan *domain.TurnResult, 1)
	sink := &recordingSink{}
	go func() {
		r, err := svc.StreamTurn(ctx, domain.TurnRequest{Message: "hi", SessionID: id}, sink)
		assert.NoError(t, err)
		out <- r
	}()
	<-started
	stream.frags <- "par"

	assert.True(t, svc.CancelTurn(id))
	result := <-out
	assert.Equal(t, domain.TurnStateCancelled, result.State)
	assert.Equal(t, "par", result.Message.Content)

	events := sink.snapshot()
	require.Len(t, events, 2)
	assert.Equal(t, domain.StreamEvent{Done: true, SessionID: id}, events[1])

	assert.False(t, svc.CancelTurn(id))
}

func TestStreamTurnWaitingCallerCanGiveUp(t *testing.T) {
	var stream *gatedStream
	started := make(chan struct{})
	gen := &fakeGenerator{}
	gen.script = func(sctx context.Context, req *llm.GenerateRequest) (llm.FragmentStream, error) {
		stream = newGatedStream(sctx)
		close(started)
		return stream, nil
	}
	svc, _ := newTestService(t, gen, nil)
	id := createSession(t, svc, "m1")

	firstDone := make(chan struct{})
	go func() {
		defer close(firstDone)
		_, _ = svc.StreamTurn(context.Background(), domain.TurnRequest{Message: "first", SessionID: id}, &recordingSink{})
	}()
	<-started

	waitCtx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := svc.StreamTurn(waitCtx, domain.TurnRequest{Message: "second", SessionID: id}, &recordingSink{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(stream.frags)
	<-firstDone

	session, err := svc.GetSession(context.Background(), id)
	require.NoError(t, err)
	assert.Len(t, session.Messages, 2)
}

func TestCreateSession(t *testing.T) {
	ctx := context.Background()
	gen := &fakeGenerator{script: fragments()}
	svc, _ := newTestService(t, gen, nil)

	session, err := svc.CreateSession(ctx, " m1 ")
	require.NoError(t, err)
	assert.Equal(t, "m1", session.Model)
	assert.NotEmpty(t, session.SessionID)
	assert.Empty(t, session.Messages)

	_, err = svc.CreateSession(ctx, "")
	assert.ErrorIs(t, err, domain.ErrInvalidModel)

	_, err = svc.CreateSession(ctx, "unknown")
	assert.ErrorIs(t, err, domain.ErrModelNotAvailable)

	gen.listErr = llm.ErrUpstreamUnavailable
	_, err = svc.CreateSession(ctx, "m1")
	assert.ErrorIs(t, err, llm.ErrUpstreamUnavailable)
}

func TestCreateSessionWithoutPolicyEngine(t *testing.T) {
	gen := &fakeGenerator{models: []string{"m1"}}
	svc := New(repository.NewMemoryStore(), gen, nil, nil, nil)

	_, err := svc.CreateSession(context.Background(), "m1")
	require.NoError(t, err)
	_, err = svc.CreateSession(context.Background(), "m2")
	assert.ErrorIs(t, err, domain.ErrModelNotAvailable)
}

func TestChat(t *testing.T) {
	ctx := context.Background()
	var fail atomic.Bool
	gen := &fakeGenerator{script: func(sctx context.Context, req *llm.GenerateRequest) (llm.FragmentStream, error) {
		if fail.Load() {
			return nil, llm.ErrUpstreamError
		}
		return llm.NewStaticStream(sctx, []string{"He", "llo"}, nil), nil
	}}
	svc, _ := newTestService(t, gen, nil)
	id := createSession(t, svc, "m1")

	resp, err := svc.Chat(ctx, domain.TurnRequest{Message: "hi", SessionID: id})
	require.NoError(t, err)
	assert.Equal(t, "Hello", resp.Response)
	assert.Equal(t, id, resp.SessionID)
	assert.Equal(t, "m1", resp.Model)
	assert.False(t, resp.Error)
	assert.False(t, resp.Timestamp.IsZero())

	fail.Store(true)
	resp, err = svc.Chat(ctx, domain.TurnRequest{Message: "hi", SessionID: id})
	require.NoError(t, err)
	assert.True(t, resp.Error)
	assert.Equal(t, domain.FailedTurnText, resp.Response)
}

func TestChatCancelled(t *testing.T) {
	gen := &fakeGenerator{script: func(sctx context.Context, req *llm.GenerateRequest) (llm.FragmentStream, error) {
		return newGatedStream(sctx), nil
	}}
	svc, _ := newTestService(t, gen, &config.Config{TurnTimeout: 20 * time.Millisecond})
	id := createSession(t, svc, "m1")

	_, err := svc.Chat(context.Background(), domain.TurnRequest{Message: "hi", SessionID: id})
	assert.ErrorIs(t, err, domain.ErrTurnCancelled)
}

func TestHealth(t *testing.T) {
	gen := &fakeGenerator{}
	svc, _ := newTestService(t, gen, nil)

	assert.Equal(t, domain.HealthStatus{Status: "healthy", Upstream: "connected"}, svc.Health(context.Background()))

	gen.listErr = llm.ErrUpstreamUnavailable
	status := svc.Health(context.Background())
	assert.Equal(t, "unhealthy", status.Status)
	assert.Equal(t, "disconnected", status.Upstream)
	assert.NotEmpty(t, status.Error)

	_, err := svc.ListModels(context.Background())
	assert.ErrorIs(t, err, llm.ErrUpstreamUnavailable)
}
