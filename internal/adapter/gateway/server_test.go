package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"webscout/internal/domain"
)

type fixedTool struct {
	name   string
	result *domain.ToolResult
	err    error
	lastIn json.RawMessage
}

func (f *fixedTool) Name() string              { return f.name }
func (f *fixedTool) Description() string       { return "fixed" }
func (f *fixedTool) Schema() domain.ToolSchema { return domain.ToolSchema{Name: f.name} }
func (f *fixedTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	f.lastIn = params
	return f.result, f.err
}

type mapExecutor map[string]domain.Tool

func (m mapExecutor) Get(name string) (domain.Tool, error) {
	t, ok := m[name]
	if !ok {
		return nil, domain.NewDomainError("gateway", domain.ErrToolNotFound, name)
	}
	return t, nil
}
func (m mapExecutor) Schemas() []domain.ToolSchema { return nil }

func newTestServer(tools ...*fixedTool) *httptest.Server {
	exec := mapExecutor{}
	for _, t := range tools {
		exec[t.name] = t
	}
	srv := NewServer(exec, "127.0.0.1:0", slog.Default())
	return httptest.NewServer(srv.Handler())
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer()
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestSearchEndpointReturnsPayload(t *testing.T) {
	payload, _ := json.Marshal(domain.SearchResponse{
		Query: "go",
		Results: []domain.SearchResult{
			{Title: "Go", URL: "https://go.dev/", Rank: 1},
		},
	})
	search := &fixedTool{name: "search_web", result: &domain.ToolResult{Content: "text", Payload: payload}}
	ts := newTestServer(search)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/search", "application/json", strings.NewReader(`{"query":"go"}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var got domain.SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if len(got.Results) != 1 || got.Results[0].URL != "https://go.dev/" {
		t.Errorf("payload = %+v", got)
	}
	if string(search.lastIn) != `{"query":"go"}` {
		t.Errorf("tool received %s", search.lastIn)
	}
}

func TestScrapeEndpointErrorStatuses(t *testing.T) {
	cases := []struct {
		name       string
		result     *domain.ToolResult
		wantStatus int
	}{
		{"validation", &domain.ToolResult{IsError: true, Content: "'url' is required"}, http.StatusBadRequest},
		{"transient", &domain.ToolResult{IsError: true, IsRetryable: true, Content: "backend down"}, http.StatusBadGateway},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			ts := newTestServer(&fixedTool{name: "scrape_url", result: c.result})
			defer ts.Close()

			resp, err := http.Post(ts.URL+"/scrape", "application/json", strings.NewReader(`{}`))
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != c.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, c.wantStatus)
			}
		})
	}
}

func TestEndpointRejectsBadJSONAndMethod(t *testing.T) {
	ts := newTestServer(&fixedTool{name: "search_web", result: &domain.ToolResult{Content: "ok"}})
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/search", "application/json", strings.NewReader(`{broken`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad JSON status = %d", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/search")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET status = %d", resp.StatusCode)
	}
}
