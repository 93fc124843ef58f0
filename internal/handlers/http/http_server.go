package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sort"
	"strconv"
	"time"

	"ahLedgerApp/internal/app/dto"
	"ahLedgerApp/internal/domain/model"
	"ahLedgerApp/internal/domain/repository"
	"ahLedgerApp/internal/domain/useCases"
	"ahLedgerApp/internal/metrics"
)

const (
	defaultSinceHours = 24
	defaultWindowMin  = 60
	defaultLimit      = 100
)

// Server represents an HTTP server with all routes configured
type Server struct {
	ledger      useCases.LedgerService
	broadcaster useCases.Broadcaster
	recorder    *metrics.Recorder
	resetStore  func() error // nil when the engine cannot be reset
	debug       bool
	mux         *http.ServeMux
	server      *http.Server
}

// NewServer creates a new HTTP server with configured routes
func NewServer(addr string, ledger useCases.LedgerService, broadcaster useCases.Broadcaster, recorder *metrics.Recorder, resetStore func() error, debug bool) *Server {
	mux := http.NewServeMux()

	server := &Server{
		ledger:      ledger,
		broadcaster: broadcaster,
		recorder:    recorder,
		resetStore:  resetStore,
		debug:       debug,
		mux:         mux,
		server: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}

	server.registerRoutes()
	return server
}

// registerRoutes configures all HTTP routes
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/upload", s.handleUpload)
	s.mux.HandleFunc("/stats", s.handleStats)
	s.mux.HandleFunc("/awaiting", s.handleAwaiting)
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.Handle("/metrics", s.recorder)
	s.mux.HandleFunc("/ws", s.broadcaster.Handler())
	if s.debug {
		s.mux.HandleFunc("/debug/reset", s.handleReset)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrValidation):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, repository.ErrStorageUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

// handleUpload ingests an add-on export: realm -> character -> buckets.
// Validation runs over the whole payload before anything is stored, so a
// malformed top-level batch is never partially ingested.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req dto.UploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed JSON payload"})
		return
	}
	converted := make(map[string]map[string]model.EventBuckets, len(req))
	for realm, chars := range req {
		if realm == "" {
			writeError(w, repository.ErrValidation)
			return
		}
		converted[realm] = make(map[string]model.EventBuckets, len(chars))
		for character, bucketsDTO := range chars {
			if character == "" {
				writeError(w, repository.ErrValidation)
				return
			}
			buckets := bucketsDTO.ToBuckets()
			if len(buckets) == 0 {
				writeError(w, fmt.Errorf("%w: no recognizable event kind", repository.ErrValidation))
				return
			}
			converted[realm][character] = buckets
		}
	}

	var resp dto.UploadResponse
	type touched struct{ realm, character string }
	var accepted []touched

	// Deterministic ingest order across realms and characters.
	realms := make([]string, 0, len(req))
	for realm := range req {
		realms = append(realms, realm)
	}
	sort.Strings(realms)
	for _, realm := range realms {
		chars := make([]string, 0, len(req[realm]))
		for character := range req[realm] {
			chars = append(chars, character)
		}
		sort.Strings(chars)
		for _, character := range chars {
			payload, err := json.Marshal(req[realm][character])
			if err != nil {
				writeError(w, err)
				return
			}
			result, err := s.ledger.IngestBatch(r.Context(), realm, character, converted[realm][character], len(payload))
			if err != nil {
				writeError(w, err)
				return
			}
			resp.Accepted += result.Accepted
			resp.Duplicates += result.Duplicates
			if result.Accepted > 0 {
				accepted = append(accepted, touched{realm, character})
			}
		}
	}

	if s.broadcaster.HasClients() {
		for _, t := range accepted {
			totals, err := s.ledger.Stats(r.Context(), t.realm, t.character, defaultSinceHours)
			if err != nil {
				log.Printf("failed to refresh totals for broadcast: %v", err)
				continue
			}
			s.broadcaster.BroadcastTotals(t.realm, t.character, totals)
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	realm := r.URL.Query().Get("realm")
	character := r.URL.Query().Get("character")
	if realm == "" || character == "" {
		writeError(w, repository.ErrValidation)
		return
	}
	sinceHours := queryInt(r, "sinceHours", defaultSinceHours)

	totals, err := s.ledger.Stats(r.Context(), realm, character, sinceHours)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.StatsResponse{
		Realm:      realm,
		Character:  character,
		SinceHours: sinceHours,
		Totals:     totals,
	})
}

func (s *Server) handleAwaiting(w http.ResponseWriter, r *http.Request) {
	realm := r.URL.Query().Get("realm")
	character := r.URL.Query().Get("character")
	if realm == "" || character == "" {
		writeError(w, repository.ErrValidation)
		return
	}
	windowMin := queryInt(r, "windowMin", defaultWindowMin)
	limit := queryInt(r, "limit", defaultLimit)
	offset := queryInt(r, "offset", 0)

	page, err := s.ledger.Awaiting(r.Context(), realm, character, windowMin, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// handleReset clears metrics and, when the engine supports it, the store.
// Registered only with DEBUG=true; for test isolation, never production.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.recorder.Reset()
	if s.resetStore != nil {
		if err := s.resetStore(); err != nil {
			writeError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func queryInt(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// Handler exposes the route mux, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start begins listening for HTTP requests
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
