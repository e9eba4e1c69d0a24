package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/xiaot623/gochat/internal/domain"
	"github.com/xiaot623/gochat/internal/wire"
)

// ErrStreamTruncated is returned when a stream ends without a terminal event.
var ErrStreamTruncated = errors.New("stream ended before the reply completed")

// Outcome describes how a consumed turn ended.
type Outcome struct {
	// Message is the assistant reply as it stands at the end of the turn.
	Message domain.Message
	// SessionID is the session echoed by the terminal event, or the
	// session the turn was started with if no terminal event arrived.
	SessionID string
	// Completed is set when a terminal event was received.
	Completed bool
	// Aborted is set when the caller cancelled the turn.
	Aborted bool
	// Skipped counts malformed records that were dropped.
	Skipped int
}

// Consumer rebuilds one assistant message from a stream of events.
type Consumer struct {
	sessionID string
	onUpdate  func(domain.Message)
	logger    *slog.Logger

	content strings.Builder
	message domain.Message
}

// NewConsumer creates a consumer for a turn on sessionID. onUpdate, if not
// nil, is called with the whole message after every change.
func NewConsumer(sessionID string, onUpdate func(domain.Message), logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{
		sessionID: sessionID,
		onUpdate:  onUpdate,
		logger:    logger,
		message:   domain.Message{Role: domain.RoleAssistant, Timestamp: time.Now().UTC()},
	}
}

// Consume reads events from r until the terminal event.
//
// If ctx is cancelled while reading, Consume stops and returns the partial
// message with Aborted set and a nil error. r should be bound to ctx (for
// example an HTTP body from a request made with ctx) so that the abort also
// closes the exchange.
func (c *Consumer) Consume(ctx context.Context, r io.Reader) (*Outcome, error) {
	out := &Outcome{}
	dec := wire.NewDecoder(r)

	for {
		if ctx.Err() != nil {
			return c.finish(out, false, true), nil
		}

		ev, err := dec.Next()
		if err != nil {
			var de *wire.DecodeError
			switch {
			case errors.As(err, &de):
				out.Skipped++
				c.logger.Warn("skipping malformed stream record", "line", de.Line, "error", de.Err)
				continue
			case ctx.Err() != nil:
				return c.finish(out, false, true), nil
			case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
				return c.finish(out, false, false), ErrStreamTruncated
			default:
				return c.finish(out, false, false), fmt.Errorf("failed to read stream: %w", err)
			}
		}

		if ev.Content != "" {
			c.content.WriteString(ev.Content)
			c.message.Content = c.content.String()
			c.publish()
		}

		if ev.Terminal() {
			if ev.SessionID != "" {
				c.sessionID = ev.SessionID
			}
			if ev.Error != "" {
				c.message.Content = ev.Error
				c.message.Error = true
				c.publish()
			}
			return c.finish(out, true, false), nil
		}
	}
}

func (c *Consumer) publish() {
	if c.onUpdate != nil {
		c.onUpdate(c.message)
	}
}

func (c *Consumer) finish(out *Outcome, completed, aborted bool) *Outcome {
	out.Message = c.message
	out.SessionID = c.sessionID
	out.Completed = completed
	out.Aborted = aborted
	return out
}
