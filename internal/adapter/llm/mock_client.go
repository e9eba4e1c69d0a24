package llm

import (
	"context"
	"fmt"
	"time"
)

// MockClient is a canned Generator used when no model runtime is available.
// It streams an echo of the last user message in small fragments.
type MockClient struct {
	models    []string
	chunkSize int
	delay     time.Duration
}

// NewMockClient creates a mock generator serving the given models.
func NewMockClient(models ...string) *MockClient {
	if len(models) == 0 {
		models = []string{"mock-llama", "mock-mistral"}
	}
	return &MockClient{
		models:    models,
		chunkSize: 10,
		delay:     20 * time.Millisecond,
	}
}

// WithDelay sets the pause between fragments.
func (m *MockClient) WithDelay(d time.Duration) *MockClient {
	m.delay = d
	return m
}

// Generate returns a stream of mock fragments.
func (m *MockClient) Generate(ctx context.Context, req *GenerateRequest) (FragmentStream, error) {
	if !m.serves(req.Model) {
		return nil, fmt.Errorf("%w: model %q not found", ErrUpstreamError, req.Model)
	}
	return &StaticStream{
		ctx:       ctx,
		fragments: splitIntoChunks(m.generateMockResponse(req), m.chunkSize),
		delay:     m.delay,
	}, nil
}

// ListModels returns the configured mock models.
func (m *MockClient) ListModels(ctx context.Context) ([]Model, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	models := make([]Model, 0, len(m.models))
	for _, name := range m.models {
		models = append(models, Model{Name: name, ModifiedAt: now, Digest: "mock"})
	}
	return models, nil
}

func (m *MockClient) serves(model string) bool {
	for _, name := range m.models {
		if name == model {
			return true
		}
	}
	return false
}

// generateMockResponse generates a mock response based on the request.
func (m *MockClient) generateMockResponse(req *GenerateRequest) string {
	var lastUserMessage string
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			lastUserMessage = req.Messages[i].Content
			break
		}
	}

	if lastUserMessage == "" {
		return "[MOCK] This is a mock response."
	}

	return fmt.Sprintf("[MOCK] Received your message: %q. This is a mock response.", truncate(lastUserMessage, 100))
}

// splitIntoChunks splits a string into chunks of at most chunkSize runes.
func splitIntoChunks(s string, chunkSize int) []string {
	runes := []rune(s)
	var chunks []string
	for i := 0; i < len(runes); i += chunkSize {
		end := min(i+chunkSize, len(runes))
		chunks = append(chunks, string(runes[i:end]))
	}
	return chunks
}

// truncate truncates a string to the given number of runes.
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}

// StaticStream replays a fixed list of fragments, optionally ending with an error.
type StaticStream struct {
	ctx       context.Context
	fragments []string
	delay     time.Duration
	failure   error
	pos       int
	current   string
	err       error
	closed    bool
}

// NewStaticStream returns a stream yielding fragments and then failing with
// failure, if non-nil. Empty fragments are skipped.
func NewStaticStream(ctx context.Context, fragments []string, failure error) *StaticStream {
	return &StaticStream{ctx: ctx, fragments: fragments, failure: failure}
}

func (s *StaticStream) Next() bool {
	s.current = ""
	if s.closed || s.err != nil {
		return false
	}
	for s.pos < len(s.fragments) {
		if s.delay > 0 {
			select {
			case <-s.ctx.Done():
			case <-time.After(s.delay):
			}
		}
		if err := s.ctx.Err(); err != nil {
			s.err = err
			return false
		}
		frag := s.fragments[s.pos]
		s.pos++
		if frag != "" {
			s.current = frag
			return true
		}
	}
	if s.failure != nil {
		s.err = s.failure
	}
	return false
}

func (s *StaticStream) Fragment() string { return s.current }

func (s *StaticStream) Err() error { return s.err }

func (s *StaticStream) Close() error {
	s.closed = true
	return nil
}
