// Package ws serves chat turns over WebSocket connections.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gochat/internal/adapter/llm"
	"github.com/xiaot623/gochat/internal/config"
	"github.com/xiaot623/gochat/internal/domain"
	"github.com/xiaot623/gochat/internal/service"
)

// TurnRunner runs one streamed chat turn.
type TurnRunner interface {
	StreamTurn(ctx context.Context, req domain.TurnRequest, sink service.EventSink) (*domain.TurnResult, error)
}

// Server handles WebSocket connections.
type Server struct {
	runner       TurnRunner
	logger       *slog.Logger
	readLimit    int64
	pingInterval time.Duration
	writeTimeout time.Duration
	upgrader     websocket.Upgrader

	mu    sync.Mutex
	conns map[string]*connection
	wg    sync.WaitGroup
}

// NewServer creates a new WebSocket server.
func NewServer(runner TurnRunner, cfg *config.Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		runner:       runner,
		logger:       logger,
		readLimit:    cfg.WSReadLimit,
		pingInterval: cfg.WSPingInterval,
		writeTimeout: cfg.WSWriteTimeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		conns: make(map[string]*connection),
	}
}

// HandleWebSocket handles WebSocket upgrade and connection lifecycle.
// GET /api/chat/ws
func (s *Server) HandleWebSocket(c echo.Context) error {
	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.logger.Warn("failed to upgrade websocket", "error", err)
		return err
	}

	conn := newConnection(ws, s.writeTimeout)
	if s.readLimit > 0 {
		ws.SetReadLimit(s.readLimit)
	}
	s.register(conn)

	ctx, cancel := context.WithCancel(context.Background())
	s.wg.Add(2)
	go s.pingPump(ctx, conn)
	go s.readPump(ctx, cancel, conn)
	return nil
}

func (s *Server) register(conn *connection) {
	s.mu.Lock()
	s.conns[conn.id] = conn
	s.mu.Unlock()
	s.logger.Debug("websocket connected", "conn_id", conn.id)
}

func (s *Server) unregister(conn *connection) {
	s.mu.Lock()
	delete(s.conns, conn.id)
	s.mu.Unlock()
	s.logger.Debug("websocket disconnected", "conn_id", conn.id)
}

// Shutdown closes every open connection, cancelling their turns, and waits
// for the connection goroutines to exit or ctx to end.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	conns := make([]*connection, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// readPump reads client messages until the connection fails.
// Closing the connection cancels any turn it is running.
func (s *Server) readPump(ctx context.Context, cancel context.CancelFunc, conn *connection) {
	var turns sync.WaitGroup
	defer func() {
		cancel()
		turns.Wait()
		s.unregister(conn)
		conn.Close()
		s.wg.Done()
	}()

	if s.pingInterval > 0 {
		pongWait := 2 * s.pingInterval
		conn.ws.SetReadDeadline(time.Now().Add(pongWait))
		conn.ws.SetPongHandler(func(string) error {
			conn.ws.SetReadDeadline(time.Now().Add(pongWait))
			return nil
		})
	}

	for {
		_, message, err := conn.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.logger.Warn("websocket error", "conn_id", conn.id, "error", err)
			}
			return
		}
		s.handleMessage(ctx, conn, message, &turns)
	}
}

// pingPump keeps the connection alive while it is open.
func (s *Server) pingPump(ctx context.Context, conn *connection) {
	defer s.wg.Done()
	if s.pingInterval <= 0 {
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.ping(); err != nil {
				return
			}
		}
	}
}

// handleMessage dispatches incoming messages to appropriate handlers.
func (s *Server) handleMessage(ctx context.Context, conn *connection, data []byte, turns *sync.WaitGroup) {
	var base BaseMessage
	if err := json.Unmarshal(data, &base); err != nil {
		s.sendError(conn, "", ErrorCodeInvalidMessage, "invalid JSON message")
		return
	}

	switch base.Type {
	case TypeTurn:
		s.handleTurn(ctx, conn, data, turns)
	case TypeCancel:
		if !conn.cancelTurn() {
			s.sendError(conn, "", ErrorCodeNoActiveTurn, "no turn in progress")
		}
	default:
		s.sendError(conn, "", ErrorCodeInvalidMessage, "unknown message type: "+base.Type)
	}
}

// handleTurn starts a turn without blocking the read loop, so a cancel
// message can still be received while it streams.
func (s *Server) handleTurn(ctx context.Context, conn *connection, data []byte, turns *sync.WaitGroup) {
	var msg TurnMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendError(conn, "", ErrorCodeInvalidMessage, "invalid turn message")
		return
	}

	turnCtx, cancel := context.WithCancel(ctx)
	if !conn.startTurn(cancel) {
		cancel()
		s.sendError(conn, msg.SessionID, ErrorCodeTurnInProgress, "a turn is already in progress on this connection")
		return
	}

	turns.Add(1)
	go func() {
		defer turns.Done()
		defer conn.endTurn()
		defer cancel()

		sink := service.EventSinkFunc(func(ev domain.StreamEvent) error {
			return conn.WriteJSON(ev)
		})
		if _, err := s.runner.StreamTurn(turnCtx, msg.TurnRequest, sink); err != nil {
			s.sendError(conn, msg.SessionID, errorCode(err), err.Error())
		}
	}()
}

// sendError sends an error message to a connection.
func (s *Server) sendError(conn *connection, sessionID, code, message string) {
	err := conn.WriteJSON(ErrorMessage{
		Type:      TypeError,
		Code:      code,
		Message:   message,
		SessionID: sessionID,
	})
	if err != nil {
		s.logger.Debug("failed to send websocket error", "conn_id", conn.id, "error", err)
	}
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		return ErrorCodeSessionNotFound
	case errors.Is(err, domain.ErrEmptyMessage),
		errors.Is(err, domain.ErrSessionRequired),
		errors.Is(err, domain.ErrModelMismatch),
		errors.Is(err, domain.ErrInvalidModel),
		errors.Is(err, domain.ErrModelNotAvailable):
		return ErrorCodeInvalidRequest
	case errors.Is(err, llm.ErrUpstreamUnavailable):
		return ErrorCodeUpstreamUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ErrorCodeCancelled
	default:
		return ErrorCodeInternal
	}
}
