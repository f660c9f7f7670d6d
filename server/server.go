package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/xhad/sitedocs/internal/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Be careful with this in production
	},
}

// PipelineRunner is the slice of the pipeline the API needs.
type PipelineRunner interface {
	ProcessDocument(ctx context.Context, path, docType string) models.ProcessingResult
	ProcessAll(ctx context.Context, dir string, typeOverrides map[string]string) (models.BatchResult, error)
}

// RelationalReader is the read/clear slice of the relational store.
type RelationalReader interface {
	QueryTasks(ctx context.Context, limit int) ([]models.ProjectTask, error)
	QueryCostItems(ctx context.Context, limit int) ([]models.CostItem, error)
	ClearAll(ctx context.Context) (map[string]int64, error)
}

// VectorSearcher is the search/stats/clear slice of the vector store.
type VectorSearcher interface {
	Search(ctx context.Context, query string, k int) ([]models.SearchResult, error)
	Stats(ctx context.Context) (models.CollectionStats, error)
	Clear(ctx context.Context) (int64, error)
}

// Server exposes the pipeline and both stores over HTTP. Partial extraction
// errors ride inside a success envelope; only request-level failures map to
// non-200 statuses.
type Server struct {
	pipeline   PipelineRunner
	relational RelationalReader
	vector     VectorSearcher

	mu    sync.Mutex
	conns map[*websocket.Conn]bool
}

func New(pipeline PipelineRunner, relational RelationalReader, vector VectorSearcher) *Server {
	return &Server{
		pipeline:   pipeline,
		relational: relational,
		vector:     vector,
		conns:      make(map[*websocket.Conn]bool),
	}
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/documents/process", s.handleProcessDocument)
	mux.HandleFunc("POST /api/documents/process-all", s.handleProcessAll)
	mux.HandleFunc("POST /api/search", s.handleSearch)
	mux.HandleFunc("GET /api/tasks", s.handleTasks)
	mux.HandleFunc("GET /api/cost-items", s.handleCostItems)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("POST /api/clear", s.handleClear)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("/ws", s.handleWebSocket)
	return mux
}

// Start serves the API on the given port, blocking until the listener fails.
func (s *Server) Start(port string) error {
	log.Printf("Starting API server on port %s", port)
	return http.ListenAndServe(":"+port, s.Handler())
}

type processRequest struct {
	PDFPath      string `json:"pdf_path"`
	DocumentType string `json:"document_type"`
}

func (s *Server) handleProcessDocument(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if req.PDFPath == "" {
		writeError(w, http.StatusBadRequest, "pdf_path is required")
		return
	}
	if req.DocumentType == "" {
		req.DocumentType = models.DocTypeGeneral
	}

	result := s.pipeline.ProcessDocument(r.Context(), req.PDFPath, req.DocumentType)
	status := http.StatusOK
	if !result.Success {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, map[string]interface{}{
		"success": result.Success,
		"result":  result,
	})
}

type processAllRequest struct {
	PDFDirectory  string            `json:"pdf_directory"`
	DocumentTypes map[string]string `json:"document_types"`
}

func (s *Server) handleProcessAll(w http.ResponseWriter, r *http.Request) {
	var req processAllRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}
	}

	batch, err := s.pipeline.ProcessAll(r.Context(), req.PDFDirectory, req.DocumentTypes)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"results":    batch.Results,
		"total":      batch.Total,
		"successful": batch.Successful,
	})
}

type searchRequest struct {
	Query    string `json:"query"`
	NResults int    `json:"n_results"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	if req.NResults <= 0 {
		req.NResults = 5
	}

	results, err := s.vector.Search(r.Context(), req.Query, req.NResults)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"query":   req.Query,
		"results": results,
		"count":   len(results),
	})
}

func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.relational.QueryTasks(r.Context(), limitParam(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"tasks":   tasks,
	})
}

func (s *Server) handleCostItems(w http.ResponseWriter, r *http.Request) {
	items, err := s.relational.QueryCostItems(r.Context(), limitParam(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"items":   items,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.vector.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"stats":   stats,
	})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	deleted, err := s.relational.ClearAll(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	chunks, err := s.vector.Clear(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":        true,
		"postgres":       deleted,
		"chunks_deleted": chunks,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"service": "sitedocs pipeline API",
	})
}

// handleWebSocket registers a connection for batch progress broadcasts. The
// connection only listens; BroadcastResult pushes per-document results as
// batch runs produce them.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	s.mu.Lock()
	s.conns[conn] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

type wsMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// BroadcastResult pushes a per-document result to every connected websocket
// client. Wire it as the pipeline's OnResult callback.
func (s *Server) BroadcastResult(result models.ProcessingResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		if err := conn.WriteJSON(wsMessage{Type: "result", Data: result}); err != nil {
			log.Printf("Error sending message: %v", err)
			conn.Close()
			delete(s.conns, conn)
		}
	}
}

func limitParam(r *http.Request) int {
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return 0
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}
