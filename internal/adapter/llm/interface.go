// Package llm wraps the upstream model runtime behind a streaming generation interface.
package llm

import (
	"context"
	"errors"
)

var (
	// ErrUpstreamUnavailable is returned when the runtime cannot be reached.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrUpstreamError is returned when the runtime reports a fault.
	ErrUpstreamError = errors.New("upstream error")
)

// Generator defines the operations consumed from the upstream model runtime.
type Generator interface {
	// Generate starts a generation for the transcript and returns its fragments.
	// Failures to start are returned here; failures mid-stream surface through FragmentStream.Err.
	Generate(ctx context.Context, req *GenerateRequest) (FragmentStream, error)

	// ListModels retrieves the models the runtime can serve.
	ListModels(ctx context.Context) ([]Model, error)
}

// FragmentStream is a single-use iterator over generated text.
//
//	for stream.Next() {
//		use(stream.Fragment())
//	}
//	err := stream.Err()
//
// Next returns false once the runtime signals completion, on failure, or after Close.
// Every fragment is non-empty. Close may be called at any point to abandon the
// stream and always releases the underlying connection.
type FragmentStream interface {
	Next() bool
	Fragment() string
	Err() error
	Close() error
}

// ChatMessage is one transcript entry sent upstream.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GenerateRequest is the input to one generation.
type GenerateRequest struct {
	Model        string
	Messages     []ChatMessage
	SystemPrompt string
}

// Transcript returns the messages to send, prefixed by the system prompt when set.
func (r *GenerateRequest) Transcript() []ChatMessage {
	out := make([]ChatMessage, 0, len(r.Messages)+1)
	if r.SystemPrompt != "" {
		out = append(out, ChatMessage{Role: "system", Content: r.SystemPrompt})
	}
	return append(out, r.Messages...)
}

// Model describes a model served by the runtime.
type Model struct {
	Name       string         `json:"name"`
	ModifiedAt string         `json:"modified_at"`
	Size       int64          `json:"size"`
	Digest     string         `json:"digest"`
	Details    map[string]any `json:"details,omitempty"`
}

// ModelNames returns the names of models.
func ModelNames(models []Model) []string {
	names := make([]string, 0, len(models))
	for _, m := range models {
		names = append(names, m.Name)
	}
	return names
}

// Ensure implementations satisfy Generator.
var (
	_ Generator = (*OllamaClient)(nil)
	_ Generator = (*OpenAIClient)(nil)
	_ Generator = (*MockClient)(nil)
)
