package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MikeSquared-Agency/triage/internal/processor"
	"github.com/MikeSquared-Agency/triage/internal/store"
	"github.com/MikeSquared-Agency/triage/internal/ticket"
	"github.com/MikeSquared-Agency/triage/internal/triage"
)

const maxBodyBytes = 1 << 20

// Triager triages a single ticket.
type Triager interface {
	Triage(ctx context.Context, t ticket.Ticket) (*processor.Result, error)
}

// RunReader looks up recorded runs.
type RunReader interface {
	GetRun(ctx context.Context, id uuid.UUID) (*store.RunRecord, error)
}

// BusStatus reports the message bus connection.
type BusStatus interface {
	Connected() bool
}

// ReviewQueue reports triages awaiting human review.
type ReviewQueue interface {
	PendingReviews() int
}

type Deps struct {
	Triager Triager
	// Runs is nil when persistence is disabled.
	Runs RunReader
	// Bus is nil when NATS is disabled.
	Bus     BusStatus
	Reviews ReviewQueue
	// Gatherer backs /metrics; prometheus.DefaultGatherer when nil.
	Gatherer prometheus.Gatherer
	Provider string
	Model    string
}

type Server struct {
	router *chi.Mux
	port   int
	deps   Deps
	http   *http.Server
}

func NewServer(port int, apiToken string, deps Deps) *Server {
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		router: router,
		port:   port,
		deps:   deps,
	}
	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	router.Get("/health", s.health)
	router.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))

	router.Route("/api/v1/triage", func(r chi.Router) {
		r.Get("/status", s.status)
		r.Group(func(r chi.Router) {
			r.Use(BearerAuthMiddleware(apiToken))
			r.Post("/", s.triage)
			r.Get("/runs/{id}", s.getRun)
		})
	})

	return s
}

func (s *Server) Start() error {
	slog.Info("API server starting", "addr", s.http.Addr)
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"agent":          "triage",
		"status":         "ok",
		"provider":       s.deps.Provider,
		"model":          s.deps.Model,
		"prompt_version": triage.PromptVersion,
		"persistence":    s.deps.Runs != nil,
		"nats_enabled":   s.deps.Bus != nil,
		"nats_connected": s.deps.Bus != nil && s.deps.Bus.Connected(),
	}
	if s.deps.Reviews != nil {
		body["pending_reviews"] = s.deps.Reviews.PendingReviews()
	}
	writeJSON(w, http.StatusOK, body)
}

type triageRequest struct {
	TicketID   string `json:"ticket_id"`
	Message    string `json:"message"`
	CustomerID string `json:"customer_id"`
	VIPLevel   string `json:"vip_level"`
}

// triage handles POST /api/v1/triage
func (s *Server) triage(w http.ResponseWriter, r *http.Request) {
	var req triageRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	res, err := s.deps.Triager.Triage(r.Context(), ticket.Ticket{
		ID:         req.TicketID,
		Message:    req.Message,
		CustomerID: req.CustomerID,
		VIPLevel:   ticket.ParseVIPLevel(req.VIPLevel),
	})
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, fmt.Sprintf("triage failed: %v", err))
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// getRun handles GET /api/v1/triage/runs/{id}
func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	if s.deps.Runs == nil {
		writeError(w, http.StatusServiceUnavailable, "persistence is disabled")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid run id")
		return
	}

	rec, err := s.deps.Runs.GetRun(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		slog.Error("get run failed", "run_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
