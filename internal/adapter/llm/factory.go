package llm

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
)

const (
	// KindOllama selects the native Ollama API.
	KindOllama = "ollama"
	// KindOpenAI selects an OpenAI-compatible API.
	KindOpenAI = "openai"
	// KindMock selects the canned mock generator.
	KindMock = "mock"
)

// NewGenerator creates a Generator for the configured upstream kind.
func NewGenerator(kind, baseURL, apiKey string, timeout time.Duration, logger *slog.Logger) (Generator, error) {
	switch strings.ToLower(kind) {
	case "", KindOllama:
		return NewOllamaClient(baseURL, timeout), nil
	case KindOpenAI:
		return NewOpenAIClient(baseURL, apiKey, timeout), nil
	case KindMock:
		logger.Info("using mock generator")
		return NewMockClient(), nil
	default:
		return nil, fmt.Errorf("unknown upstream kind %q", kind)
	}
}
