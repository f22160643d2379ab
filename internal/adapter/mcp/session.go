package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	mcpgo "github.com/mark3labs/mcp-go/mcp"

	"webscout/internal/domain"
)

// maxLineBytes caps a single protocol frame. Anything larger aborts the
// session rather than buffering unboundedly.
const maxLineBytes = 4 * 1024 * 1024

// State is the session lifecycle phase.
type State int

const (
	StateUninitialized State = iota
	StateNegotiating
	StateReady
	StateShuttingDown
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateNegotiating:
		return "negotiating"
	case StateReady:
		return "ready"
	case StateShuttingDown:
		return "shutting_down"
	default:
		return "unknown"
	}
}

// Session speaks line-delimited JSON-RPC 2.0 over a reader/writer pair,
// exposing the registered tools. Requests are handled on their own
// goroutines so a slow scrape never delays an unrelated search; all
// responses funnel through a single writer goroutine so each frame is
// written atomically. Every request id is answered exactly once; once the
// peer closes the channel, in-flight work is abandoned and owes nothing.
type Session struct {
	r        io.Reader
	w        io.Writer
	executor domain.ToolExecutor
	info     mcpgo.Implementation
	logger   *slog.Logger

	mu    sync.Mutex
	state State

	sendCh     chan []byte
	writerDone chan struct{} // closed when the writer goroutine exits
	wg         sync.WaitGroup
}

// NewSession creates a session over the given transport. info names this
// server in the initialize handshake.
func NewSession(r io.Reader, w io.Writer, executor domain.ToolExecutor, info mcpgo.Implementation, logger *slog.Logger) *Session {
	return &Session{
		r:        r,
		w:        w,
		executor: executor,
		info:     info,
		logger:     logger,
		sendCh:     make(chan []byte, 32),
		writerDone: make(chan struct{}),
	}
}

// Run processes frames until the reader is exhausted or ctx is cancelled.
// It returns nil on clean peer shutdown (EOF).
func (s *Session) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go s.writeLoop(ctx)

	scanner := bufio.NewScanner(s.r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		var req request
		if err := json.Unmarshal(line, &req); err != nil {
			if id := recoverID(line); id != nil {
				s.send(ctx, newErrorResponse(id, codeParseError, "parse error: "+err.Error(), nil))
			} else {
				s.logger.Warn("dropping unparseable frame", "error", err)
			}
			continue
		}
		s.handle(ctx, &req)
	}

	err := scanner.Err()
	if errors.Is(err, bufio.ErrTooLong) {
		s.logger.Error("frame exceeds size limit, closing session", "limit", maxLineBytes)
	}

	s.setState(StateShuttingDown)
	cancel() // abandon in-flight workers: no response is owed after EOF
	s.wg.Wait()
	<-s.writerDone

	s.logger.Info("session closed")
	return err
}

// writeLoop serializes all outbound frames. One frame per line, written
// whole, so concurrent request handlers can never interleave bytes. Closing
// writerDone on exit lets send drop frames instead of queuing behind a
// writer that is no longer draining them.
func (s *Session) writeLoop(ctx context.Context) {
	defer close(s.writerDone)
	for {
		select {
		case <-ctx.Done():
			return
		case line := <-s.sendCh:
			if _, err := s.w.Write(append(line, '\n')); err != nil {
				s.logger.Warn("write failed, dropping remaining responses", "error", err)
				return
			}
		}
	}
}

func (s *Session) send(ctx context.Context, resp response) {
	data, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error("marshal response", "error", err)
		return
	}
	select {
	case s.sendCh <- data:
	case <-ctx.Done():
	case <-s.writerDone:
		// Writer already gone (write error); nothing will drain the channel.
	}
}

func (s *Session) currentState() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// transition moves from one exact state to another; it fails when the
// session is in any other state.
func (s *Session) transition(from, to State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != from {
		return false
	}
	s.state = to
	return true
}

func (s *Session) handle(ctx context.Context, req *request) {
	if req.isNotification() {
		s.handleNotification(req)
		return
	}

	switch req.Method {
	case "initialize":
		s.handleInitialize(ctx, req)
	case "ping":
		s.handlePing(ctx, req)
	case "tools/list":
		s.handleToolsList(ctx, req)
	case "tools/call":
		// Tool calls do real network work; run each on its own goroutine
		// so they overlap without head-of-line blocking.
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.recoverPanic(ctx, req)
			s.handleToolsCall(ctx, req)
		}()
	default:
		s.send(ctx, newErrorResponse(req.ID, codeMethodNotFound,
			fmt.Sprintf("method %q not found", req.Method), nil))
	}
}

func (s *Session) handleNotification(req *request) {
	switch req.Method {
	case "notifications/initialized":
		if s.transition(StateNegotiating, StateReady) {
			s.logger.Info("session ready")
		} else {
			s.logger.Warn("initialized notification in unexpected state", "state", s.currentState().String())
		}
	case "notifications/cancelled":
		// Cancellation of individual requests is best-effort; the worker
		// still runs to completion and its response is simply late.
	default:
		s.logger.Debug("ignoring notification", "method", req.Method)
	}
}

// recoverPanic turns an unexpected panic in a handler into an internal
// error response, preserving session liveness for other in-flight requests.
func (s *Session) recoverPanic(ctx context.Context, req *request) {
	if r := recover(); r != nil {
		s.logger.Error("handler panic", "method", req.Method, "panic", r)
		s.send(ctx, newErrorResponse(req.ID, codeInternalError,
			fmt.Sprintf("internal error: %v", r), nil))
	}
}

// recoverID pulls the id out of an otherwise unparseable frame so the
// parse error can be tagged with it.
func recoverID(line []byte) json.RawMessage {
	var probe struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(line, &probe); err != nil {
		return nil
	}
	if len(probe.ID) == 0 || string(probe.ID) == "null" {
		return nil
	}
	return probe.ID
}
