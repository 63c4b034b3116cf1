package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/opsdash/opsdash/agent"
	"github.com/opsdash/opsdash/datasource"
	convmem "github.com/opsdash/opsdash/memory/inmemory"
	"github.com/opsdash/opsdash/service"
	"github.com/opsdash/opsdash/storage/inmemory"
	"github.com/opsdash/opsdash/uploads"
)

// Mock agent for testing
type MockAgent struct {
	responses []agent.Message
	calls     []agent.Message
	nextIndex int
	err       error
}

func NewMockAgent() *MockAgent {
	return &MockAgent{}
}

func (m *MockAgent) AddResponse(content string) {
	m.responses = append(m.responses, agent.Message{
		Role:    "assistant",
		Content: content,
	})
}

func (m *MockAgent) Run(ctx context.Context, input agent.Message) (agent.Message, error) {
	m.calls = append(m.calls, input)
	if m.err != nil {
		return agent.Message{}, m.err
	}
	if m.nextIndex >= len(m.responses) {
		return agent.Message{Role: "assistant", Content: "Default mock response", SessionID: input.SessionID}, nil
	}
	response := m.responses[m.nextIndex]
	response.SessionID = input.SessionID
	m.nextIndex++
	return response, nil
}

func (m *MockAgent) RunStream(ctx context.Context, input agent.Message, output chan<- agent.Message) error {
	defer close(output)
	result, err := m.Run(ctx, input)
	if err != nil {
		return err
	}
	output <- result
	return nil
}

func newTestServer(t *testing.T, mock *MockAgent, withRepo bool) *Server {
	t.Helper()
	var repo *inmemory.Repository
	if withRepo {
		repo = inmemory.New()
	}
	source := datasource.NewMockSource(datasource.Credentials{}, datasource.MockSettings{Seed: 11})
	store := uploads.NewMemoryStore(0)

	history := convmem.NewConversationStore()
	var svc *service.Service
	if withRepo {
		svc = service.New(service.Options{WindowDays: 7, TopN: 5, ExportRoot: t.TempDir()}, source, repo, nil, store)
		return NewServer(mock, svc, store, repo, history, Config{Port: 8080})
	}
	svc = service.New(service.Options{WindowDays: 7, TopN: 5, ExportRoot: t.TempDir()}, source, nil, nil, store)
	return NewServer(mock, svc, store, nil, history, Config{Port: 8080})
}

func doRequest(t *testing.T, s *Server, method, path string, body []byte, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, bytes.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	return rr
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t, NewMockAgent(), false)
	rr := doRequest(t, s, "GET", "/health", nil, "")

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if resp["status"] != "healthy" {
		t.Errorf("expected healthy status, got %v", resp)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("expected request id header")
	}
}

func TestChatEndpoint(t *testing.T) {
	mock := NewMockAgent()
	mock.AddResponse("revenue was steady")
	s := newTestServer(t, mock, false)

	payload, _ := json.Marshal(ChatRequest{Message: "how did we do", SessionID: "s-1"})
	rr := doRequest(t, s, "POST", "/chat", payload, "application/json")

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp ChatResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if resp.Message != "revenue was steady" || resp.SessionID != "s-1" {
		t.Errorf("unexpected response: %+v", resp)
	}
	if len(mock.calls) != 1 || mock.calls[0].Content != "how did we do" {
		t.Errorf("unexpected agent input: %+v", mock.calls)
	}
}

func TestChatEndpointValidation(t *testing.T) {
	s := newTestServer(t, NewMockAgent(), false)

	rr := doRequest(t, s, "POST", "/chat", []byte("{not json"), "application/json")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad JSON, got %d", rr.Code)
	}

	payload, _ := json.Marshal(ChatRequest{Message: ""})
	rr = doRequest(t, s, "POST", "/chat", payload, "application/json")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for empty message, got %d", rr.Code)
	}

	rr = doRequest(t, s, "GET", "/chat", nil, "")
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405 for GET, got %d", rr.Code)
	}
}

func TestChatEndpointAgentError(t *testing.T) {
	mock := NewMockAgent()
	mock.err = errors.New("boom")
	s := newTestServer(t, mock, false)

	payload, _ := json.Marshal(ChatRequest{Message: "hi"})
	rr := doRequest(t, s, "POST", "/chat", payload, "application/json")
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
}

func TestChatStreamEndpoint(t *testing.T) {
	mock := NewMockAgent()
	mock.AddResponse("streamed reply")
	s := newTestServer(t, mock, false)

	payload, _ := json.Marshal(ChatRequest{Message: "stream it", SessionID: "s-2"})
	rr := doRequest(t, s, "POST", "/chat/stream", payload, "application/json")

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("expected SSE content type, got %q", ct)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "event: message") || !strings.Contains(body, "streamed reply") {
		t.Errorf("expected message event, got %q", body)
	}
	if !strings.Contains(body, "event: done") {
		t.Errorf("expected done event, got %q", body)
	}
}

func TestSummaryEndpoint(t *testing.T) {
	s := newTestServer(t, NewMockAgent(), false)

	rr := doRequest(t, s, "GET", "/dashboard/summary?start=2025-03-01&end=2025-03-03&top_n=2", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	summary, ok := resp["summary"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected summary object, got %v", resp)
	}
	window := summary["window"].(map[string]interface{})
	if window["start"] != "2025-03-01" || window["end"] != "2025-03-03" {
		t.Errorf("unexpected window: %v", window)
	}
	products := summary["top_products"].([]interface{})
	if len(products) != 2 {
		t.Errorf("expected 2 top products, got %d", len(products))
	}
}

func TestSummaryEndpointBadWindow(t *testing.T) {
	s := newTestServer(t, NewMockAgent(), false)

	rr := doRequest(t, s, "GET", "/dashboard/summary?start=2025-03-07&end=2025-03-01", nil, "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for inverted window, got %d", rr.Code)
	}
}

func TestSummaryEndpointTextFormat(t *testing.T) {
	s := newTestServer(t, NewMockAgent(), false)

	rr := doRequest(t, s, "GET", "/dashboard/summary?start=2025-03-01&end=2025-03-03&format=text", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("expected plain text content type, got %q", ct)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "Window: 2025-03-01 to 2025-03-03") {
		t.Errorf("expected window line, got %q", body)
	}
	if !strings.Contains(body, "Top products (by revenue):") {
		t.Errorf("expected product listing, got %q", body)
	}
}

func TestChatSessionEndpoints(t *testing.T) {
	history := convmem.NewConversationStore()
	source := datasource.NewMockSource(datasource.Credentials{}, datasource.MockSettings{})
	svc := service.New(service.Options{ExportRoot: t.TempDir()}, source, nil, nil, nil)
	s := NewServer(NewMockAgent(), svc, nil, nil, history, Config{Port: 8080})

	ctx := context.Background()
	if err := history.AppendMessage(ctx, "s-9", "user", "show the dashboard"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := history.AppendMessage(ctx, "s-9", "assistant", "here it is"); err != nil {
		t.Fatalf("append: %v", err)
	}

	rr := doRequest(t, s, "GET", "/chat/sessions", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var listResp struct {
		Sessions []string `json:"sessions"`
		Count    int      `json:"count"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &listResp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if listResp.Count != 1 || len(listResp.Sessions) != 1 || listResp.Sessions[0] != "s-9" {
		t.Fatalf("unexpected session list: %+v", listResp)
	}

	rr = doRequest(t, s, "GET", "/chat/sessions/s-9", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var histResp struct {
		SessionID string `json:"session_id"`
		Messages  []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &histResp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if histResp.SessionID != "s-9" || len(histResp.Messages) != 2 {
		t.Fatalf("unexpected history: %+v", histResp)
	}
	if histResp.Messages[0].Role != "user" || histResp.Messages[1].Role != "assistant" {
		t.Errorf("expected user then assistant, got %+v", histResp.Messages)
	}

	rr = doRequest(t, s, "DELETE", "/chat/sessions/s-9", nil, "")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	rr = doRequest(t, s, "GET", "/chat/sessions/s-9", nil, "")
	if err := json.Unmarshal(rr.Body.Bytes(), &histResp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(histResp.Messages) != 0 {
		t.Errorf("expected cleared session, got %+v", histResp.Messages)
	}

	// Unknown sessions answer with an empty list rather than an error.
	rr = doRequest(t, s, "GET", "/chat/sessions/nope", nil, "")
	if rr.Code != http.StatusOK {
		t.Errorf("expected 200 for unknown session, got %d", rr.Code)
	}
}

func TestChatSessionEndpointsDisabled(t *testing.T) {
	source := datasource.NewMockSource(datasource.Credentials{}, datasource.MockSettings{})
	svc := service.New(service.Options{ExportRoot: t.TempDir()}, source, nil, nil, nil)
	s := NewServer(NewMockAgent(), svc, nil, nil, nil, Config{Port: 8080})

	for _, path := range []string{"/chat/sessions", "/chat/sessions/s-1"} {
		rr := doRequest(t, s, "GET", path, nil, "")
		if rr.Code != http.StatusNotImplemented {
			t.Errorf("expected 501 for %s without a store, got %d", path, rr.Code)
		}
	}
}

func TestHistoryEndpoint(t *testing.T) {
	s := newTestServer(t, NewMockAgent(), false)
	rr := doRequest(t, s, "GET", "/dashboard/history", nil, "")
	if rr.Code != http.StatusNotImplemented {
		t.Errorf("expected 501 without storage, got %d", rr.Code)
	}

	s = newTestServer(t, NewMockAgent(), true)
	rr = doRequest(t, s, "GET", "/dashboard/history", nil, "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected 404 for empty history, got %d", rr.Code)
	}

	// Seed through the summary endpoint, then analyze.
	rr = doRequest(t, s, "GET", "/dashboard/summary?start=2025-03-01&end=2025-03-07", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("seed summary failed: %d", rr.Code)
	}
	rr = doRequest(t, s, "GET", "/dashboard/history?metrics=revenue", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	analysis := resp["analysis"].(map[string]interface{})
	if _, ok := analysis["revenue"]; !ok {
		t.Errorf("expected revenue analysis, got %v", analysis)
	}
}

func TestUploadLifecycle(t *testing.T) {
	s := newTestServer(t, NewMockAgent(), true)

	// Create via raw body.
	csvBody := []byte("sku,qty\nA,3\nB,5\n")
	rr := doRequest(t, s, "POST", "/uploads?filename=inventory.csv", csvBody, "text/csv")
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var info uploads.Info
	if err := json.Unmarshal(rr.Body.Bytes(), &info); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if info.Filename != "inventory.csv" || info.RowCount != 2 || info.ColumnCount != 2 {
		t.Errorf("unexpected info: %+v", info)
	}

	// List.
	rr = doRequest(t, s, "GET", "/uploads", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", rr.Code)
	}
	var listResp struct {
		Tables []uploads.Info `json:"tables"`
		Count  int            `json:"count"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &listResp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if listResp.Count != 1 {
		t.Fatalf("expected 1 table, got %d", listResp.Count)
	}

	// Fetch full table.
	rr = doRequest(t, s, "GET", "/uploads/"+info.ID, nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", rr.Code)
	}
	var table uploads.Table
	if err := json.Unmarshal(rr.Body.Bytes(), &table); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(table.Rows) != 2 || table.Rows[1][0] != "B" {
		t.Errorf("unexpected table: %+v", table)
	}

	// Delete, then verify gone.
	rr = doRequest(t, s, "DELETE", "/uploads/"+info.ID, nil, "")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", rr.Code)
	}
	rr = doRequest(t, s, "GET", "/uploads/"+info.ID, nil, "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rr.Code)
	}
	rr = doRequest(t, s, "DELETE", "/uploads/"+info.ID, nil, "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for double delete, got %d", rr.Code)
	}
}

func TestUploadMultipart(t *testing.T) {
	s := newTestServer(t, NewMockAgent(), false)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "metrics.tsv")
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	fmt.Fprint(fw, "asin\tunits\nB01\t9\n")
	mw.Close()

	rr := doRequest(t, s, "POST", "/uploads", buf.Bytes(), mw.FormDataContentType())
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var info uploads.Info
	if err := json.Unmarshal(rr.Body.Bytes(), &info); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if info.Filename != "metrics.tsv" || info.RowCount != 1 {
		t.Errorf("unexpected info: %+v", info)
	}
}

func TestUploadValidation(t *testing.T) {
	s := newTestServer(t, NewMockAgent(), false)

	rr := doRequest(t, s, "POST", "/uploads", []byte("a,b\n1,2\n"), "text/csv")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without filename, got %d", rr.Code)
	}

	rr = doRequest(t, s, "POST", "/uploads?filename=empty.csv", []byte(""), "text/csv")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for empty file, got %d", rr.Code)
	}
}

func TestUploadsDisabled(t *testing.T) {
	mock := NewMockAgent()
	source := datasource.NewMockSource(datasource.Credentials{}, datasource.MockSettings{})
	svc := service.New(service.Options{ExportRoot: t.TempDir()}, source, nil, nil, nil)
	s := NewServer(mock, svc, nil, nil, nil, Config{Port: 8080})

	rr := doRequest(t, s, "GET", "/uploads", nil, "")
	if rr.Code != http.StatusNotImplemented {
		t.Errorf("expected 501 without an upload store, got %d", rr.Code)
	}
	rr = doRequest(t, s, "POST", "/uploads?filename=a.csv", []byte("a\n1\n"), "text/csv")
	if rr.Code != http.StatusNotImplemented {
		t.Errorf("expected 501 without an upload store, got %d", rr.Code)
	}
}

func TestCORSMiddleware(t *testing.T) {
	mock := NewMockAgent()
	source := datasource.NewMockSource(datasource.Credentials{}, datasource.MockSettings{})
	svc := service.New(service.Options{ExportRoot: t.TempDir()}, source, nil, nil, nil)
	s := NewServer(mock, svc, nil, nil, nil, Config{Port: 8080, EnableCORS: true})

	rr := doRequest(t, s, "OPTIONS", "/chat", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for preflight, got %d", rr.Code)
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("expected CORS headers, got %v", rr.Header())
	}
}

func TestServerLifecycle(t *testing.T) {
	mock := NewMockAgent()
	source := datasource.NewMockSource(datasource.Credentials{}, datasource.MockSettings{})
	svc := service.New(service.Options{ExportRoot: t.TempDir()}, source, nil, nil, nil)
	s := NewServer(mock, svc, nil, nil, nil, Config{Port: 18231})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean shutdown, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not shut down")
	}
}
