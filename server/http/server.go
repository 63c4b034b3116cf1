// Package http exposes the dashboard over HTTP: chat endpoints backed by the
// agent, upload management, and direct summary and history endpoints backed
// by the service layer.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/opsdash/opsdash/agent"
	"github.com/opsdash/opsdash/dashboard"
	"github.com/opsdash/opsdash/memory"
	obs "github.com/opsdash/opsdash/observability"
	"github.com/opsdash/opsdash/service"
	"github.com/opsdash/opsdash/storage"
	"github.com/opsdash/opsdash/uploads"
)

// maxUploadBytes caps the accepted upload size.
const maxUploadBytes = 16 << 20

// Server wraps the agent and service layers with HTTP endpoints
type Server struct {
	agent   agent.Agent
	svc     *service.Service
	uploads uploads.Store
	repo    storage.Repository
	history memory.ConversationStore
	config  Config
	server  *http.Server
}

// Config holds HTTP server configuration
type Config struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	EnableCORS   bool

	// MetricsHandler, when set, is served at /metrics.
	MetricsHandler http.Handler
}

// NewServer creates a new HTTP server. uploadStore, repo and history may be
// nil; the corresponding endpoints then answer 501 or with empty results.
func NewServer(a agent.Agent, svc *service.Service, uploadStore uploads.Store, repo storage.Repository, history memory.ConversationStore, config Config) *Server {
	if config.Port == 0 {
		config.Port = 8080
	}
	if config.ReadTimeout == 0 {
		config.ReadTimeout = 10 * time.Second
	}
	if config.WriteTimeout == 0 {
		config.WriteTimeout = 30 * time.Second
	}

	s := &Server{
		agent:   a,
		svc:     svc,
		uploads: uploadStore,
		repo:    repo,
		history: history,
		config:  config,
	}

	mux := http.NewServeMux()
	s.setupRoutes(mux)

	var handler http.Handler = mux
	if config.EnableCORS {
		handler = s.corsMiddleware(handler)
	}
	handler = s.requestIDMiddleware(handler)

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", config.Port),
		Handler:      handler,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}

	return s
}

// setupRoutes configures the HTTP routes
func (s *Server) setupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.healthHandler)
	mux.HandleFunc("POST /chat", s.chatHandler)
	mux.HandleFunc("POST /chat/stream", s.streamHandler)
	mux.HandleFunc("GET /chat/sessions", s.sessionListHandler)
	mux.HandleFunc("GET /chat/sessions/{id}", s.sessionHistoryHandler)
	mux.HandleFunc("DELETE /chat/sessions/{id}", s.sessionClearHandler)
	mux.HandleFunc("GET /dashboard/summary", s.summaryHandler)
	mux.HandleFunc("GET /dashboard/history", s.historyHandler)
	mux.HandleFunc("POST /uploads", s.uploadCreateHandler)
	mux.HandleFunc("GET /uploads", s.uploadListHandler)
	mux.HandleFunc("GET /uploads/{id}", s.uploadGetHandler)
	mux.HandleFunc("DELETE /uploads/{id}", s.uploadDeleteHandler)
	if s.config.MetricsHandler != nil {
		mux.Handle("GET /metrics", s.config.MetricsHandler)
	}
}

// ChatRequest represents an incoming chat request
type ChatRequest struct {
	Message   string            `json:"message"`
	SessionID string            `json:"session_id,omitempty"`
	Meta      map[string]string `json:"meta,omitempty"`
}

// ChatResponse represents a chat response
type ChatResponse struct {
	Message   string            `json:"message"`
	SessionID string            `json:"session_id,omitempty"`
	Meta      map[string]string `json:"meta,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// healthHandler provides a health check endpoint
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// chatHandler handles chat requests
func (s *Server) chatHandler(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Message == "" {
		s.writeError(w, "Message is required", http.StatusBadRequest)
		return
	}

	input := agent.Message{
		Role:      "user",
		Content:   req.Message,
		SessionID: req.SessionID,
		Meta:      req.Meta,
	}

	response, err := s.agent.Run(r.Context(), input)
	if err != nil {
		log.Printf("Agent error: %v", err)
		s.writeError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	chatResp := ChatResponse{
		Message:   response.Content,
		SessionID: response.SessionID,
		Meta:      response.Meta,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(chatResp)
}

// streamHandler handles streaming chat requests
func (s *Server) streamHandler(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	// Set headers for SSE
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	input := agent.Message{
		Role:      "user",
		Content:   req.Message,
		SessionID: req.SessionID,
		Meta:      req.Meta,
	}

	output := make(chan agent.Message)

	go func() {
		if err := s.agent.RunStream(r.Context(), input, output); err != nil {
			log.Printf("Streaming error: %v", err)
		}
	}()

	// Stream responses as SSE events
	for {
		select {
		case message, ok := <-output:
			if !ok {
				fmt.Fprintf(w, "event: done\ndata: {}\n\n")
				flusher.Flush()
				return
			}

			resp := ChatResponse{
				Message:   message.Content,
				SessionID: message.SessionID,
				Meta:      message.Meta,
			}

			data, _ := json.Marshal(resp)
			fmt.Fprintf(w, "event: message\ndata: %s\n\n", data)
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

// summaryHandler computes a KPI summary for the requested window
func (s *Server) summaryHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	fetched, err := s.svc.FetchDashboardData(r.Context(), service.FetchRequest{
		Start:      q.Get("start"),
		End:        q.Get("end"),
		WindowDays: queryInt(q.Get("window_days")),
		TopN:       queryInt(q.Get("top_n")),
	})
	if err != nil {
		s.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	summary, err := s.svc.ComputeDashboardMetrics(r.Context(), service.ComputeRequest{
		Start:   fetched.Start,
		End:     fetched.End,
		Source:  fetched.Source,
		Sales:   fetched.Sales,
		Traffic: fetched.Traffic,
		TopN:    queryInt(q.Get("top_n")),
	})
	if err != nil {
		log.Printf("Summary error: %v", err)
		s.writeError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	if q.Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintln(w, dashboard.FormatTextReport(*summary))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"summary": dashboard.SummaryToMap(*summary)})
}

// sessionListHandler lists the session ids with stored conversation history
func (s *Server) sessionListHandler(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.writeError(w, "Conversation history is not enabled", http.StatusNotImplemented)
		return
	}
	ids, err := s.history.Sessions(r.Context())
	if err != nil {
		log.Printf("Session list error: %v", err)
		s.writeError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if ids == nil {
		ids = []string{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"sessions": ids,
		"count":    len(ids),
	})
}

// sessionHistoryHandler returns one session's messages, oldest first
func (s *Server) sessionHistoryHandler(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.writeError(w, "Conversation history is not enabled", http.StatusNotImplemented)
		return
	}
	id := r.PathValue("id")
	messages, err := s.history.GetMessages(r.Context(), id)
	if err != nil {
		log.Printf("Session history error: %v", err)
		s.writeError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if messages == nil {
		messages = []memory.Message{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"session_id": id,
		"messages":   messages,
	})
}

// sessionClearHandler removes one session's conversation history
func (s *Server) sessionClearHandler(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.writeError(w, "Conversation history is not enabled", http.StatusNotImplemented)
		return
	}
	if err := s.history.ClearSession(r.Context(), r.PathValue("id")); err != nil {
		log.Printf("Session clear error: %v", err)
		s.writeError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// historyHandler serves growth analysis over stored summaries
func (s *Server) historyHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := queryInt(q.Get("limit"))
	var metrics []string
	if raw := q.Get("metrics"); raw != "" {
		for _, m := range strings.Split(raw, ",") {
			if trimmed := strings.TrimSpace(m); trimmed != "" {
				metrics = append(metrics, trimmed)
			}
		}
	}

	analysis, err := s.svc.AnalyzeDashboardHistory(r.Context(), limit, metrics)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrStorageDisabled):
			s.writeError(w, err.Error(), http.StatusNotImplemented)
		case errors.Is(err, service.ErrNoHistory):
			s.writeError(w, err.Error(), http.StatusNotFound)
		default:
			log.Printf("History error: %v", err)
			s.writeError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(analysis)
}

// uploadCreateHandler accepts a CSV/TSV file, multipart or raw body
func (s *Server) uploadCreateHandler(w http.ResponseWriter, r *http.Request) {
	if s.uploads == nil {
		s.writeError(w, "Uploads are not enabled", http.StatusNotImplemented)
		return
	}

	filename, reader, cleanup, err := uploadPayload(r)
	if err != nil {
		s.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	defer cleanup()

	headers, rows, err := uploads.ParseTable(filename, io.LimitReader(reader, maxUploadBytes))
	if err != nil {
		s.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	table, err := s.uploads.Save(r.Context(), filename, headers, rows)
	if err != nil {
		log.Printf("Upload save error: %v", err)
		s.writeError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	// Durable copy when history storage is configured.
	if s.repo != nil {
		if _, err := s.repo.SaveUpload(r.Context(), filename, headers, rows); err != nil {
			log.Printf("Upload persistence error: %v", err)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(table.Info())
}

// uploadPayload extracts the table content from a multipart form or the raw
// request body.
func uploadPayload(r *http.Request) (string, io.Reader, func(), error) {
	noop := func() {}
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			return "", nil, noop, fmt.Errorf("parse multipart form: %w", err)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			return "", nil, noop, fmt.Errorf("missing file field")
		}
		return header.Filename, file, func() { _ = file.Close() }, nil
	}

	filename := r.URL.Query().Get("filename")
	if filename == "" {
		return "", nil, noop, fmt.Errorf("filename query parameter is required")
	}
	return filename, r.Body, noop, nil
}

// uploadListHandler lists uploaded tables, newest first
func (s *Server) uploadListHandler(w http.ResponseWriter, r *http.Request) {
	if s.uploads == nil {
		s.writeError(w, "Uploads are not enabled", http.StatusNotImplemented)
		return
	}
	limit := queryInt(r.URL.Query().Get("limit"))
	if limit < 1 {
		limit = 50
	}
	infos, err := s.uploads.List(r.Context(), limit)
	if err != nil {
		log.Printf("Upload list error: %v", err)
		s.writeError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"tables": infos,
		"count":  len(infos),
	})
}

// uploadGetHandler returns one uploaded table including its cells
func (s *Server) uploadGetHandler(w http.ResponseWriter, r *http.Request) {
	if s.uploads == nil {
		s.writeError(w, "Uploads are not enabled", http.StatusNotImplemented)
		return
	}
	table, err := s.uploads.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, uploads.ErrNotFound) {
			s.writeError(w, "Table not found", http.StatusNotFound)
			return
		}
		log.Printf("Upload get error: %v", err)
		s.writeError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(table)
}

// uploadDeleteHandler removes one uploaded table
func (s *Server) uploadDeleteHandler(w http.ResponseWriter, r *http.Request) {
	if s.uploads == nil {
		s.writeError(w, "Uploads are not enabled", http.StatusNotImplemented)
		return
	}
	deleted, err := s.uploads.Delete(r.Context(), r.PathValue("id"))
	if err != nil {
		log.Printf("Upload delete error: %v", err)
		s.writeError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if !deleted {
		s.writeError(w, "Table not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func queryInt(raw string) int {
	n, _ := strconv.Atoi(raw)
	return n
}

// writeError writes an error response
func (s *Server) writeError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(ChatResponse{Error: message})
}

// corsMiddleware adds CORS headers
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// requestIDMiddleware propagates request ids in and out
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := obs.ExtractHTTPContext(r.Context(), r)
		obs.InjectHTTPHeaders(w, ctx)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ListenAndServe starts the HTTP server
func (s *Server) ListenAndServe(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		log.Printf("HTTP server starting on port %d", s.config.Port)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Println("Shutting down HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	case err := <-errChan:
		return err
	}
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler exposes the configured handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}
