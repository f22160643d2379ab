package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"webscout/internal/domain"
)

// maxRequestBody caps JSON request bodies on the HTTP surface.
const maxRequestBody = 64 * 1024

// Server re-exposes the registered tools as plain HTTP endpoints:
// POST /search and POST /scrape take the tool's argument object as a JSON
// body; GET /health reports liveness. Pure routing, no logic of its own.
type Server struct {
	executor  domain.ToolExecutor
	logger    *slog.Logger
	addr      string
	httpSrv   *http.Server
	boundAddr string
}

// NewServer creates the HTTP wrapper over the given tools.
func NewServer(executor domain.ToolExecutor, addr string, logger *slog.Logger) *Server {
	return &Server{
		executor: executor,
		logger:   logger,
		addr:     addr,
	}
}

// Start begins serving. Blocks until ctx is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("gateway listen: %w", err)
	}
	s.boundAddr = listener.Addr().String()
	s.httpSrv = &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}

	s.logger.Info("gateway started", "addr", s.boundAddr)

	go func() {
		<-ctx.Done()
		s.Stop(context.Background())
	}()

	if err := s.httpSrv.Serve(listener); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("gateway serve: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.httpSrv.Shutdown(shutdownCtx)
}

// BoundAddr returns the actual listen address. Only valid after Start.
func (s *Server) BoundAddr() string { return s.boundAddr }

// Handler builds the mux without binding a listener, for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/search", s.toolHandler("search_web"))
	mux.HandleFunc("/scrape", s.toolHandler("scrape_url"))
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// toolHandler adapts one named tool to an HTTP endpoint. The request body
// is the tool's argument object; the response is the tool's structured
// payload, or an error object.
func (s *Server) toolHandler(toolName string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "use POST"})
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "read body: " + err.Error()})
			return
		}
		if len(body) == 0 {
			body = []byte(`{}`)
		}
		if !json.Valid(body) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "request body must be JSON"})
			return
		}

		tool, err := s.executor.Get(toolName)
		if err != nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
			return
		}

		result, err := tool.Execute(r.Context(), body)
		if err != nil {
			s.logger.Error("tool execution failed", "tool", toolName, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": err.Error(),
				"kind":  domain.ErrorKind(err),
			})
			return
		}

		if result.IsError {
			status := http.StatusBadRequest
			if result.IsRetryable {
				status = http.StatusBadGateway
			}
			writeJSON(w, status, map[string]any{
				"error":     result.Content,
				"retryable": result.IsRetryable,
			})
			return
		}

		if len(result.Payload) > 0 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			w.Write(result.Payload)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"content": result.Content})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
