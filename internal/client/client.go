// Package client provides an HTTP client for the chat API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/xiaot623/gochat/internal/adapter/llm"
	"github.com/xiaot623/gochat/internal/domain"
)

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("chat API error [%d]: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Client is an HTTP client for the chat API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a new client. Streaming responses are bounded only by the
// caller's context, so httpClient should not set a Timeout.
func New(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call chat API: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		var errResp struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(respBody))
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			msg = errResp.Error
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Message: msg}
	}
	return resp, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out interface{}) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Health calls GET /api/health.
func (c *Client) Health(ctx context.Context) (*domain.HealthStatus, error) {
	var status domain.HealthStatus
	if err := c.doJSON(ctx, http.MethodGet, "/api/health", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// ListModels calls GET /api/models.
func (c *Client) ListModels(ctx context.Context) ([]llm.Model, error) {
	var models []llm.Model
	if err := c.doJSON(ctx, http.MethodGet, "/api/models", nil, &models); err != nil {
		return nil, err
	}
	return models, nil
}

// CreateSession calls POST /api/sessions.
func (c *Client) CreateSession(ctx context.Context, model string) (*domain.CreateSessionResponse, error) {
	var resp domain.CreateSessionResponse
	err := c.doJSON(ctx, http.MethodPost, "/api/sessions", domain.CreateSessionRequest{Model: model}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListSessions calls GET /api/sessions.
func (c *Client) ListSessions(ctx context.Context) ([]domain.SessionSummary, error) {
	var sessions []domain.SessionSummary
	if err := c.doJSON(ctx, http.MethodGet, "/api/sessions", nil, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// GetSession calls GET /api/sessions/:session_id.
func (c *Client) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	var session domain.Session
	if err := c.doJSON(ctx, http.MethodGet, "/api/sessions/"+url.PathEscape(sessionID), nil, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// DeleteSession calls DELETE /api/sessions/:session_id.
func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/sessions/"+url.PathEscape(sessionID), nil, nil)
}

// CancelTurn asks the server to stop the turn streaming on a session.
func (c *Client) CancelTurn(ctx context.Context, sessionID string) (bool, error) {
	var resp struct {
		Cancelled bool `json:"cancelled"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/sessions/"+url.PathEscape(sessionID)+"/cancel", nil, &resp); err != nil {
		return false, err
	}
	return resp.Cancelled, nil
}

// Chat calls POST /api/chat.
func (c *Client) Chat(ctx context.Context, req domain.TurnRequest) (*domain.ChatResponse, error) {
	var resp domain.ChatResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/chat", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// StreamTurn runs a turn over POST /api/chat/stream and consumes its events.
// onUpdate receives the growing assistant message. Cancelling ctx aborts the
// turn: the request is torn down and the partial message is returned with
// Outcome.Aborted set and no error.
func (c *Client) StreamTurn(ctx context.Context, req domain.TurnRequest, onUpdate func(domain.Message)) (*Outcome, error) {
	consumer := NewConsumer(req.SessionID, onUpdate, c.logger)

	resp, err := c.do(ctx, http.MethodPost, "/api/chat/stream", req)
	if err != nil {
		if ctx.Err() != nil {
			return consumer.finish(&Outcome{}, false, true), nil
		}
		return nil, err
	}
	defer resp.Body.Close()

	return consumer.Consume(ctx, resp.Body)
}
