package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"
)

// OpenAIClient talks to any OpenAI-compatible endpoint, including Ollama's /v1.
type OpenAIClient struct {
	client  openai.Client
	timeout time.Duration
}

// NewOpenAIClient creates a client for an OpenAI-compatible API.
// Requests are never retried.
func NewOpenAIClient(baseURL, apiKey string, timeout time.Duration) *OpenAIClient {
	if apiKey == "" {
		// Local runtimes ignore the key but the SDK requires one.
		apiKey = "ollama"
	}
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
		option.WithHTTPClient(&http.Client{
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				DialContext:           (&net.Dialer{Timeout: timeout}).DialContext,
				ResponseHeaderTimeout: timeout,
			},
		}),
	}
	if baseURL != "" {
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	return &OpenAIClient{
		client:  openai.NewClient(opts...),
		timeout: timeout,
	}
}

// Generate opens a streaming chat completion.
func (c *OpenAIClient) Generate(ctx context.Context, req *GenerateRequest) (FragmentStream, error) {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(req.Model),
		Messages: buildOpenAIMessages(req.Transcript()),
	}

	stream := c.client.Chat.Completions.NewStreaming(ctx, params)
	if err := stream.Err(); err != nil {
		stream.Close()
		return nil, classifyOpenAIError(ctx, err)
	}
	return &openAIStream{ctx: ctx, stream: stream}, nil
}

// ListModels lists the models exposed by the endpoint.
func (c *OpenAIClient) ListModels(ctx context.Context) ([]Model, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	page, err := c.client.Models.List(ctx)
	if err != nil {
		return nil, classifyOpenAIError(ctx, err)
	}

	models := make([]Model, 0, len(page.Data))
	for _, m := range page.Data {
		models = append(models, Model{
			Name:       m.ID,
			ModifiedAt: time.Unix(m.Created, 0).UTC().Format(time.RFC3339),
			Details:    map[string]any{"owned_by": m.OwnedBy},
		})
	}
	return models, nil
}

func buildOpenAIMessages(transcript []ChatMessage) []openai.ChatCompletionMessageParamUnion {
	params := make([]openai.ChatCompletionMessageParamUnion, 0, len(transcript))
	for _, msg := range transcript {
		switch msg.Role {
		case "system":
			params = append(params, openai.SystemMessage(msg.Content))
		case "assistant":
			params = append(params, openai.AssistantMessage(msg.Content))
		default:
			params = append(params, openai.UserMessage(msg.Content))
		}
	}
	return params
}

// classifyOpenAIError maps SDK errors onto the adapter's error kinds.
func classifyOpenAIError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%w [%d]: %s", ErrUpstreamError, apiErr.StatusCode, apiErr.Message)
	}
	return fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
}

type openAIStream struct {
	ctx       context.Context
	stream    *ssestream.Stream[openai.ChatCompletionChunk]
	current   string
	err       error
	closeOnce sync.Once
}

func (s *openAIStream) Next() bool {
	s.current = ""
	if s.err != nil {
		return false
	}
	for s.stream.Next() {
		chunk := s.stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		if content := chunk.Choices[0].Delta.Content; content != "" {
			s.current = content
			return true
		}
	}
	if err := s.stream.Err(); err != nil {
		s.err = classifyOpenAIError(s.ctx, err)
	}
	s.Close()
	return false
}

func (s *openAIStream) Fragment() string { return s.current }

func (s *openAIStream) Err() error { return s.err }

func (s *openAIStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.stream.Close()
	})
	return err
}
