// Package http exposes the agent over a chi router: chat turns, session
// histories, saga ledgers, lifecycle events over SSE, health and metrics.
package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/ravituringworks/agency/internal/logging"
	"github.com/ravituringworks/agency/pkg/domain"
	"github.com/ravituringworks/agency/pkg/ports"
	"github.com/ravituringworks/agency/pkg/runner"
	"gopkg.in/yaml.v3"
)

// ChatRequest is the body of POST /v1/chat.
type ChatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// Server serves the agent API.
type Server struct {
	runner  *runner.Runner
	ledgers ports.LedgerStore
	streams *StreamManager
	metrics http.Handler
	logger  *slog.Logger
	version string
}

// Option configures the Server.
type Option func(*Server)

// WithLedgers enables the /v1/ledgers endpoints.
func WithLedgers(store ports.LedgerStore) Option {
	return func(s *Server) {
		s.ledgers = store
	}
}

// WithMetrics mounts a metrics handler (e.g. promhttp) at /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithStreams shares a StreamManager, typically one whose Hooks are wired
// into the orchestrator and saga coordinators.
func WithStreams(sm *StreamManager) Option {
	return func(s *Server) {
		s.streams = sm
	}
}

// WithLogger configures the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithVersion sets the version reported by /info.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = v
	}
}

// NewHandler creates the HTTP handler for r.
func NewHandler(r *runner.Runner, opts ...Option) http.Handler {
	s := &Server{
		runner:  r,
		logger:  logging.NewNop(),
		version: "dev",
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.streams == nil {
		s.streams = NewStreamManager(s.logger)
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(enableCORS)

	router.Get("/healthz", s.getHealth)
	router.Get("/info", s.getInfo)
	if s.metrics != nil {
		router.Handle("/metrics", s.metrics)
	}

	router.Route("/v1", func(r chi.Router) {
		r.Post("/chat", s.postChat)
		r.Get("/events", s.subscribeEvents)

		r.Get("/sessions", s.listSessions)
		r.Get("/sessions/{id}", s.getSession)
		r.Delete("/sessions/{id}", s.deleteSession)

		if s.ledgers != nil {
			r.Get("/ledgers", s.listLedgers)
			r.Get("/ledgers/{id}", s.getLedger)
		}
	})
	return router
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) getHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) getInfo(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":     "agency-http",
		"version": strings.TrimSpace(s.version),
	})
}

func (s *Server) postChat(w http.ResponseWriter, r *http.Request) {
	var body ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.logger.Warn("Chat: Invalid request body", "err", err)
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.SessionID == "" {
		body.SessionID = uuid.NewString()
	}

	reply, err := s.runner.Chat(r.Context(), body.SessionID, body.Message)
	if err != nil {
		if errors.Is(err, runner.ErrInputTooLarge) || errors.Is(err, runner.ErrInvalidUTF8) || errors.Is(err, runner.ErrEmptyInput) {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid input: %v", err))
			return
		}
		s.logger.Error("Chat failed", "session_id", body.SessionID, "err", err)
		s.writeError(w, http.StatusInternalServerError, fmt.Sprintf("chat error: %v", err))
		return
	}

	s.streams.BroadcastJSON(body.SessionID, reply)
	s.writeJSON(w, http.StatusOK, reply)
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	ids, err := s.runner.Sessions().List(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if ids == nil {
		ids = []string{}
	}
	s.writeJSON(w, http.StatusOK, ids)
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	history, err := s.runner.Sessions().Load(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, domain.ErrSessionNotFound) {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, history)
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.runner.Sessions().Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listLedgers(w http.ResponseWriter, r *http.Request) {
	ids, err := s.ledgers.List(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if ids == nil {
		ids = []string{}
	}
	s.writeJSON(w, http.StatusOK, ids)
}

// getLedger answers in YAML when the client accepts it, JSON otherwise.
func (s *Server) getLedger(w http.ResponseWriter, r *http.Request) {
	ledger, err := s.ledgers.Load(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, domain.ErrLedgerNotFound) {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if strings.Contains(r.Header.Get("Accept"), "yaml") {
		data, err := yaml.Marshal(ledger)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write(data)
		return
	}
	s.writeJSON(w, http.StatusOK, ledger)
}

// subscribeEvents streams replies of ?session_id=, or lifecycle events
// without it, as server-sent events.
func (s *Server) subscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	topic := r.URL.Query().Get("session_id")
	if topic == "" {
		topic = GlobalTopic
	}

	ch, cancel := s.streams.Subscribe(topic)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()
	s.logger.Info("SSE client subscribed", "topic", topic)

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("SSE client disconnected", "topic", topic)
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}
