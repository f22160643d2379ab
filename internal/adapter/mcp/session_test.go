package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	mcpgo "github.com/mark3labs/mcp-go/mcp"

	"webscout/internal/domain"
)

// blockableTool lets tests control when a tool call finishes.
type blockableTool struct {
	name    string
	release chan struct{} // nil means finish immediately
	result  *domain.ToolResult
	err     error
	panics  bool
}

func (t *blockableTool) Name() string        { return t.name }
func (t *blockableTool) Description() string { return "test tool" }
func (t *blockableTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.name,
		Description: "test tool",
		Parameters:  json.RawMessage(`{"type":"object","properties":{"x":{"type":"string"}}}`),
	}
}
func (t *blockableTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	if t.panics {
		panic("boom")
	}
	if t.release != nil {
		select {
		case <-t.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if t.err != nil {
		return nil, t.err
	}
	if t.result != nil {
		return t.result, nil
	}
	return &domain.ToolResult{Content: t.name + " done"}, nil
}

type stubExecutor struct {
	tools map[string]domain.Tool
	order []string
}

func newStubExecutor(tools ...domain.Tool) *stubExecutor {
	e := &stubExecutor{tools: make(map[string]domain.Tool)}
	for _, t := range tools {
		e.tools[t.Name()] = t
		e.order = append(e.order, t.Name())
	}
	return e
}

func (e *stubExecutor) Get(name string) (domain.Tool, error) {
	t, ok := e.tools[name]
	if !ok {
		return nil, domain.NewDomainError("stub.Get", domain.ErrToolNotFound, name)
	}
	return t, nil
}

func (e *stubExecutor) Schemas() []domain.ToolSchema {
	schemas := make([]domain.ToolSchema, 0, len(e.order))
	for _, name := range e.order {
		schemas = append(schemas, e.tools[name].Schema())
	}
	return schemas
}

// sessionHarness runs a Session over in-memory pipes and gives tests a
// line-oriented client view of it.
type sessionHarness struct {
	t       *testing.T
	in      *io.PipeWriter
	scanner *bufio.Scanner
	done    chan error
}

func startSession(t *testing.T, executor domain.ToolExecutor) *sessionHarness {
	t.Helper()

	inR, inW := io.Pipe()
	outR, outW := io.Pipe()

	sess := NewSession(inR, outW, executor,
		mcpgo.Implementation{Name: "webscout-test", Version: "0.0.1"}, slog.Default())

	done := make(chan error, 1)
	go func() {
		done <- sess.Run(context.Background())
		outW.Close()
	}()

	scanner := bufio.NewScanner(outR)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	return &sessionHarness{t: t, in: inW, scanner: scanner, done: done}
}

func (h *sessionHarness) sendLine(line string) {
	h.t.Helper()
	if _, err := h.in.Write([]byte(line + "\n")); err != nil {
		h.t.Fatalf("write frame: %v", err)
	}
}

func (h *sessionHarness) readResponse() response {
	h.t.Helper()
	if !h.scanner.Scan() {
		h.t.Fatalf("no response: %v", h.scanner.Err())
	}
	var resp response
	if err := json.Unmarshal(h.scanner.Bytes(), &resp); err != nil {
		h.t.Fatalf("bad response line %q: %v", h.scanner.Text(), err)
	}
	return resp
}

func (h *sessionHarness) close() {
	h.t.Helper()
	h.in.Close()
	select {
	case err := <-h.done:
		if err != nil {
			h.t.Errorf("session ended with error: %v", err)
		}
	case <-time.After(2 * time.Second):
		h.t.Fatal("session did not shut down after EOF")
	}
}

func (h *sessionHarness) initialize() {
	h.t.Helper()
	h.sendLine(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05","clientInfo":{"name":"test","version":"1.0"}}}`)
	resp := h.readResponse()
	if resp.Error != nil {
		h.t.Fatalf("initialize failed: %+v", resp.Error)
	}
	h.sendLine(`{"jsonrpc":"2.0","method":"notifications/initialized"}`)
}

func TestSessionHandshake(t *testing.T) {
	h := startSession(t, newStubExecutor(&blockableTool{name: "search_web"}))
	defer h.close()

	h.sendLine(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05","clientInfo":{"name":"test","version":"1.0"}}}`)
	resp := h.readResponse()
	if string(resp.ID) != "1" {
		t.Errorf("ID = %s", resp.ID)
	}
	if resp.Error != nil {
		t.Fatalf("error: %+v", resp.Error)
	}

	data, _ := json.Marshal(resp.Result)
	var result initializeResult
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatal(err)
	}
	if result.ProtocolVersion != "2024-11-05" {
		t.Errorf("ProtocolVersion = %q", result.ProtocolVersion)
	}
	if result.ServerInfo.Name != "webscout-test" {
		t.Errorf("ServerInfo = %+v", result.ServerInfo)
	}
}

func TestSessionCallBeforeReady(t *testing.T) {
	h := startSession(t, newStubExecutor(&blockableTool{name: "search_web"}))
	defer h.close()

	h.sendLine(`{"jsonrpc":"2.0","id":7,"method":"tools/call","params":{"name":"search_web","arguments":{}}}`)
	resp := h.readResponse()
	if string(resp.ID) != "7" {
		t.Errorf("ID = %s", resp.ID)
	}
	if resp.Error == nil || resp.Error.Code != codeNotInitialized {
		t.Errorf("expected not-initialized error, got %+v", resp.Error)
	}
}

func TestSessionToolsList(t *testing.T) {
	h := startSession(t, newStubExecutor(
		&blockableTool{name: "search_web"},
		&blockableTool{name: "scrape_url"},
	))
	defer h.close()
	h.initialize()

	h.sendLine(`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)
	resp := h.readResponse()
	if resp.Error != nil {
		t.Fatalf("error: %+v", resp.Error)
	}

	data, _ := json.Marshal(resp.Result)
	var result struct {
		Tools []struct {
			Name        string         `json:"name"`
			InputSchema map[string]any `json:"inputSchema"`
		} `json:"tools"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatal(err)
	}
	if len(result.Tools) != 2 {
		t.Fatalf("got %d tools", len(result.Tools))
	}
	if result.Tools[0].Name != "search_web" || result.Tools[1].Name != "scrape_url" {
		t.Errorf("tools = %+v", result.Tools)
	}
	if result.Tools[0].InputSchema["type"] != "object" {
		t.Errorf("inputSchema = %+v", result.Tools[0].InputSchema)
	}
}

func TestSessionToolCall(t *testing.T) {
	tool := &blockableTool{name: "search_web", result: &domain.ToolResult{Content: "two results"}}
	h := startSession(t, newStubExecutor(tool))
	defer h.close()
	h.initialize()

	h.sendLine(`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"search_web","arguments":{"query":"rust programming"}}}`)
	resp := h.readResponse()
	if string(resp.ID) != "3" || resp.Error != nil {
		t.Fatalf("resp = %+v", resp)
	}

	data, _ := json.Marshal(resp.Result)
	var result struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		IsError bool `json:"isError"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatal(err)
	}
	if len(result.Content) != 1 || result.Content[0].Text != "two results" {
		t.Errorf("content = %+v", result.Content)
	}
	if result.IsError {
		t.Error("IsError set on success")
	}
}

// A slow call issued first must not block a fast one issued second, and
// each response must carry its own request id exactly once.
func TestSessionConcurrentCorrelation(t *testing.T) {
	release := make(chan struct{})
	slow := &blockableTool{name: "slow", release: release}
	fast := &blockableTool{name: "fast"}
	h := startSession(t, newStubExecutor(slow, fast))
	defer h.close()
	h.initialize()

	h.sendLine(`{"jsonrpc":"2.0","id":100,"method":"tools/call","params":{"name":"slow"}}`)
	h.sendLine(`{"jsonrpc":"2.0","id":101,"method":"tools/call","params":{"name":"fast"}}`)

	first := h.readResponse()
	if string(first.ID) != "101" {
		t.Fatalf("first response ID = %s, want the fast call's 101", first.ID)
	}

	close(release)
	second := h.readResponse()
	if string(second.ID) != "100" {
		t.Fatalf("second response ID = %s, want 100", second.ID)
	}
}

// Many interleaved calls: every id answered exactly once and every output
// line is a complete, parseable frame (atomic writes).
func TestSessionManyInterleavedCalls(t *testing.T) {
	h := startSession(t, newStubExecutor(&blockableTool{name: "fast"}))
	defer h.close()
	h.initialize()

	const n = 25
	var wg sync.WaitGroup
	var mu sync.Mutex
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			mu.Lock()
			defer mu.Unlock()
			h.sendLine(fmt.Sprintf(`{"jsonrpc":"2.0","id":%d,"method":"tools/call","params":{"name":"fast"}}`, 1000+id))
		}(i)
	}
	wg.Wait()

	seen := make(map[string]int)
	for i := 0; i < n; i++ {
		resp := h.readResponse()
		if resp.Error != nil {
			t.Fatalf("call failed: %+v", resp.Error)
		}
		seen[string(resp.ID)]++
	}
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("%d", 1000+i)
		if seen[id] != 1 {
			t.Errorf("id %s answered %d times, want exactly 1", id, seen[id])
		}
	}
}

func TestSessionUnknownMethod(t *testing.T) {
	h := startSession(t, newStubExecutor())
	defer h.close()
	h.initialize()

	h.sendLine(`{"jsonrpc":"2.0","id":5,"method":"resources/list"}`)
	resp := h.readResponse()
	if resp.Error == nil || resp.Error.Code != codeMethodNotFound {
		t.Errorf("expected method-not-found, got %+v", resp.Error)
	}
}

func TestSessionUnknownTool(t *testing.T) {
	h := startSession(t, newStubExecutor())
	defer h.close()
	h.initialize()

	h.sendLine(`{"jsonrpc":"2.0","id":6,"method":"tools/call","params":{"name":"nope"}}`)
	resp := h.readResponse()
	if resp.Error == nil || resp.Error.Code != codeInvalidParams {
		t.Errorf("expected invalid-params error, got %+v", resp.Error)
	}
}

func TestSessionParseErrorWithRecoverableID(t *testing.T) {
	h := startSession(t, newStubExecutor())
	defer h.close()
	h.initialize()

	// Envelope parses far enough to recover the id, but method has the wrong type.
	h.sendLine(`{"jsonrpc":"2.0","id":9,"method":42}`)
	resp := h.readResponse()
	if string(resp.ID) != "9" {
		t.Errorf("ID = %s, want the recovered 9", resp.ID)
	}
	if resp.Error == nil || resp.Error.Code != codeParseError {
		t.Errorf("expected parse error, got %+v", resp.Error)
	}
}

func TestSessionDropsGarbageWithoutID(t *testing.T) {
	h := startSession(t, newStubExecutor())
	defer h.close()
	h.initialize()

	h.sendLine(`this is not json at all`)
	// No response owed for the garbage line; the session must stay alive.
	h.sendLine(`{"jsonrpc":"2.0","id":10,"method":"ping"}`)
	resp := h.readResponse()
	if string(resp.ID) != "10" || resp.Error != nil {
		t.Errorf("session did not survive garbage input: %+v", resp)
	}
}

func TestSessionPanicBecomesInternalError(t *testing.T) {
	h := startSession(t, newStubExecutor(&blockableTool{name: "bad", panics: true}))
	defer h.close()
	h.initialize()

	h.sendLine(`{"jsonrpc":"2.0","id":11,"method":"tools/call","params":{"name":"bad"}}`)
	resp := h.readResponse()
	if string(resp.ID) != "11" {
		t.Errorf("ID = %s", resp.ID)
	}
	if resp.Error == nil || resp.Error.Code != codeInternalError {
		t.Errorf("expected internal error, got %+v", resp.Error)
	}
}

func TestSessionEOFAbandonsInFlight(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	slow := &blockableTool{name: "slow", release: release}
	h := startSession(t, newStubExecutor(slow))
	h.initialize()

	h.sendLine(`{"jsonrpc":"2.0","id":12,"method":"tools/call","params":{"name":"slow"}}`)
	// Peer hangs up with the call still in flight: Run must return promptly
	// without owing a response.
	h.close()
}

type brokenWriter struct{}

func (brokenWriter) Write(p []byte) (int, error) { return 0, errors.New("broken pipe") }

// A failed transport write kills the writer goroutine; responses queued after
// that must be dropped, not parked forever, or the read loop wedges on the
// first synchronous handler once the channel fills.
func TestSessionSurvivesWriterFailure(t *testing.T) {
	inR, inW := io.Pipe()
	sess := NewSession(inR, brokenWriter{}, newStubExecutor(&blockableTool{name: "fast"}),
		mcpgo.Implementation{Name: "webscout-test", Version: "0.0.1"}, slog.Default())

	done := make(chan error, 1)
	go func() { done <- sess.Run(context.Background()) }()

	go func() {
		for i := 0; i < 64; i++ {
			fmt.Fprintf(inW, "{\"jsonrpc\":\"2.0\",\"id\":%d,\"method\":\"ping\"}\n", i+1)
		}
		inW.Close()
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("session ended with error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("session wedged behind a dead writer")
	}
}

func TestSessionDoubleInitializeRejected(t *testing.T) {
	h := startSession(t, newStubExecutor())
	defer h.close()
	h.initialize()

	h.sendLine(`{"jsonrpc":"2.0","id":13,"method":"initialize","params":{"protocolVersion":"2024-11-05"}}`)
	resp := h.readResponse()
	if resp.Error == nil {
		t.Error("second initialize should be rejected")
	}
}
