// Package api is the thin HTTP boundary over the context engine. It is the
// only layer allowed to turn "service not initialized" into a caller-visible
// error; everything below it degrades to empty results instead.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/fabfab/contextsync/rag"
	"github.com/fabfab/contextsync/syncer"
)

// ContextService is the read path: explanation and structured retrieval.
type ContextService interface {
	Explain(ctx context.Context, snippet, filePath, lineNumbers string) (string, error)
	GetContextObjects(ctx context.Context, snippet string) []rag.ContextObject
}

// SyncTrigger runs one sync cycle on demand.
type SyncTrigger interface {
	SyncNow(ctx context.Context) syncer.Report
}

type Server struct {
	router  *chi.Mux
	svc     ContextService
	sync    SyncTrigger
	logger  *log.Logger
	httpSrv *http.Server
}

type explainRequest struct {
	CodeSnippet string `json:"code_snippet"`
	FilePath    string `json:"file_path"`
	LineNumbers string `json:"line_numbers"`
}

type explainResponse struct {
	Markdown string `json:"markdown"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func NewServer(svc ContextService, sync SyncTrigger, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router: router,
		svc:    svc,
		sync:   sync,
		logger: logger,
	}

	router.Get("/health", s.handleHealth)
	router.Post("/explain", s.handleExplain)
	router.Post("/context/retrieve", s.handleRetrieve)
	router.Post("/context/sync", s.handleSync)
	router.Post("/context/ingest", s.handleIngest)

	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start(port int) error {
	s.httpSrv = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Printf("API server listening on %s", s.httpSrv.Addr)
	return s.httpSrv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleExplain(w http.ResponseWriter, r *http.Request) {
	if s.svc == nil {
		s.writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "context service not initialized"})
		return
	}

	var req explainRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("decode request: %v", err)})
		return
	}
	if req.CodeSnippet == "" {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "code_snippet is required"})
		return
	}

	markdown, err := s.svc.Explain(r.Context(), req.CodeSnippet, req.FilePath, req.LineNumbers)
	if err != nil {
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: fmt.Sprintf("explain failed: %v", err)})
		return
	}

	s.writeJSON(w, http.StatusOK, explainResponse{Markdown: markdown})
}

func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	if s.svc == nil {
		s.writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "context service not initialized"})
		return
	}

	var req explainRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("decode request: %v", err)})
		return
	}
	if req.CodeSnippet == "" {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "code_snippet is required"})
		return
	}

	s.writeJSON(w, http.StatusOK, s.svc.GetContextObjects(r.Context(), req.CodeSnippet))
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if s.sync == nil {
		s.writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "sync scheduler not initialized"})
		return
	}

	s.writeJSON(w, http.StatusOK, s.sync.SyncNow(r.Context()))
}

// handleIngest accepts webhook events from chat/ticket integrations. The
// events are acknowledged but not yet wired into the ingestion pipeline; the
// polling sync loop covers the same data.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var event map[string]any
	if err := decodeJSON(r, &event); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("decode event: %v", err)})
		return
	}

	eventID := uuid.NewString()
	s.logger.Printf("received webhook event %s: %v", eventID, event)

	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":   "received",
		"event_id": eventID,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Printf("encode response: %v", err)
	}
}

func decodeJSON(r *http.Request, out any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	return dec.Decode(out)
}
