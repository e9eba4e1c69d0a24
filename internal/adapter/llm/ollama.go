package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// OllamaClient talks to the native Ollama HTTP API.
type OllamaClient struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
}

// NewOllamaClient creates a new Ollama client.
// timeout bounds connecting and waiting for response headers; a streaming body
// is bounded only by the caller's context.
func NewOllamaClient(baseURL string, timeout time.Duration) *OllamaClient {
	return &OllamaClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		timeout: timeout,
		httpClient: &http.Client{
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				DialContext:           (&net.Dialer{Timeout: timeout}).DialContext,
				ResponseHeaderTimeout: timeout,
				IdleConnTimeout:       90 * time.Second,
			},
		},
	}
}

type ollamaChatRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

// ollamaChatChunk is one NDJSON line of a streaming /api/chat response.
type ollamaChatChunk struct {
	Model   string       `json:"model"`
	Message *ChatMessage `json:"message,omitempty"`
	Done    bool         `json:"done"`
	Error   string       `json:"error,omitempty"`
}

type ollamaTagsResponse struct {
	Models []Model `json:"models"`
}

type ollamaErrorResponse struct {
	Error string `json:"error"`
}

// Generate sends a streaming chat request.
func (c *OllamaClient) Generate(ctx context.Context, req *GenerateRequest) (FragmentStream, error) {
	body, err := json.Marshal(ollamaChatRequest{
		Model:    req.Model,
		Messages: req.Transcript(),
		Stream:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, statusError(resp)
	}

	return &ollamaStream{
		ctx:    ctx,
		body:   resp.Body,
		reader: bufio.NewReader(resp.Body),
	}, nil
}

// ListModels retrieves the locally available models.
func (c *OllamaClient) ListModels(ctx context.Context) ([]Model, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}

	var result ollamaTagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: failed to decode models: %w", ErrUpstreamError, err)
	}
	if result.Models == nil {
		result.Models = []Model{}
	}
	return result.Models, nil
}

func statusError(resp *http.Response) error {
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var errResp ollamaErrorResponse
	if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error != "" {
		return fmt.Errorf("%w [%d]: %s", ErrUpstreamError, resp.StatusCode, errResp.Error)
	}
	return fmt.Errorf("%w [%d]: %s", ErrUpstreamError, resp.StatusCode, strings.TrimSpace(string(respBody)))
}

// ollamaStream reads NDJSON chunks until one reports done.
type ollamaStream struct {
	ctx       context.Context
	body      io.ReadCloser
	reader    *bufio.Reader
	current   string
	err       error
	finished  bool
	closeOnce sync.Once
}

func (s *ollamaStream) Next() bool {
	s.current = ""
	if s.finished || s.err != nil {
		return false
	}

	for {
		line, readErr := s.reader.ReadBytes('\n')
		if len(bytes.TrimSpace(line)) > 0 {
			var chunk ollamaChatChunk
			if err := json.Unmarshal(line, &chunk); err != nil {
				// Skip malformed chunks
				if readErr == nil {
					continue
				}
			} else {
				if chunk.Error != "" {
					s.fail(fmt.Errorf("%w: %s", ErrUpstreamError, chunk.Error))
					return false
				}
				if chunk.Done {
					s.finished = true
				}
				if chunk.Message != nil && chunk.Message.Content != "" {
					s.current = chunk.Message.Content
					return true
				}
				if s.finished {
					s.Close()
					return false
				}
			}
		}

		if readErr != nil {
			switch {
			case s.ctx.Err() != nil:
				s.fail(s.ctx.Err())
			case errors.Is(readErr, io.EOF):
				s.fail(fmt.Errorf("%w: stream ended before completion", ErrUpstreamError))
			default:
				s.fail(fmt.Errorf("%w: failed to read stream: %w", ErrUpstreamUnavailable, readErr))
			}
			return false
		}
	}
}

func (s *ollamaStream) fail(err error) {
	s.err = err
	s.Close()
}

func (s *ollamaStream) Fragment() string { return s.current }

func (s *ollamaStream) Err() error { return s.err }

func (s *ollamaStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.body.Close()
	})
	return err
}
