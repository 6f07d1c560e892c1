package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/aretw0/lendflow/internal/logging"
	"github.com/aretw0/lendflow/pkg/domain"
	"github.com/aretw0/lendflow/pkg/ports"
	"github.com/aretw0/lendflow/pkg/runner"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
)

// Engine is the conversation API served over HTTP.
type Engine interface {
	Start(ctx context.Context) (*domain.Session, error)
	Submit(ctx context.Context, conversationID, message string) (*domain.Reply, error)
	State(ctx context.Context, conversationID string) (*domain.Snapshot, error)
	Status(ctx context.Context, conversationID string) (domain.LoanStatus, error)
	History(ctx context.Context, conversationID string) ([]domain.Message, error)
	Search(ctx context.Context, query string, limit int) ([]domain.KnowledgeHit, error)
	Verify(ctx context.Context, identifier string, kind ports.IdentifierType) (ports.VerificationResult, error)
	Subscribe(conversationID string) (<-chan *domain.SessionDiff, func())
}

// Server holds the HTTP handlers.
type Server struct {
	Engine   Engine
	Version  string
	metrics  http.Handler
	reloads  ports.Watchable
	logger   *slog.Logger
	validate *validator.Validate
}

// Option configures the Server.
type Option func(*Server)

// WithMetrics mounts h on GET /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithKnowledgeWatch streams knowledge reloads on GET /knowledge/events.
func WithKnowledgeWatch(w ports.Watchable) Option {
	return func(s *Server) {
		s.reloads = w
	}
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithVersion sets the version reported by /health.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.Version = strings.TrimSpace(v)
	}
}

// NewHandler creates the HTTP handler for the engine.
func NewHandler(engine Engine, opts ...Option) http.Handler {
	s := &Server{
		Engine:   engine,
		Version:  "dev",
		logger:   logging.NewNop(),
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Get("/health", s.GetHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Route("/conversations", func(r chi.Router) {
		r.Post("/", s.StartConversation)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.GetState)
			r.Post("/messages", s.SubmitMessage)
			r.Get("/status", s.GetStatus)
			r.Get("/history", s.GetHistory)
			r.Get("/events", s.SubscribeEvents)
		})
	})
	r.Get("/knowledge/search", s.SearchKnowledge)
	r.Get("/knowledge/events", s.KnowledgeEvents)
	r.Post("/verification/credit", s.VerifyCredit)
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// MessageRequest is the body of POST /conversations/{id}/messages.
type MessageRequest struct {
	Message string `json:"message" validate:"required"`
}

// VerificationRequest is the body of POST /verification/credit.
type VerificationRequest struct {
	Identifier     string `json:"identifier" validate:"required"`
	IdentifierType string `json:"identifier_type" validate:"omitempty,oneof=mobile email customer_id"`
}

// StartConversation handles POST /conversations.
func (s *Server) StartConversation(w http.ResponseWriter, r *http.Request) {
	session, err := s.Engine.Start(r.Context())
	if err != nil {
		s.fail(w, "StartConversation", err)
		return
	}
	s.respond(w, http.StatusCreated, session.Snapshot())
}

// SubmitMessage handles POST /conversations/{id}/messages.
func (s *Server) SubmitMessage(w http.ResponseWriter, r *http.Request) {
	var body MessageRequest
	if !s.decode(w, r, &body) {
		return
	}
	id := chi.URLParam(r, "id")
	reply, err := s.Engine.Submit(r.Context(), id, body.Message)
	if err != nil {
		s.fail(w, "SubmitMessage", err)
		return
	}
	s.respond(w, http.StatusOK, reply)
}

// GetState handles GET /conversations/{id}.
func (s *Server) GetState(w http.ResponseWriter, r *http.Request) {
	snap, err := s.Engine.State(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, "GetState", err)
		return
	}
	s.respond(w, http.StatusOK, snap)
}

// GetStatus handles GET /conversations/{id}/status.
func (s *Server) GetStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.Engine.Status(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, "GetStatus", err)
		return
	}
	s.respond(w, http.StatusOK, st)
}

// GetHistory handles GET /conversations/{id}/history.
func (s *Server) GetHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	history, err := s.Engine.History(r.Context(), id)
	if err != nil {
		s.fail(w, "GetHistory", err)
		return
	}
	if history == nil {
		history = []domain.Message{}
	}
	s.respond(w, http.StatusOK, map[string]any{
		"conversation_id": id,
		"messages":        history,
	})
}

// SearchKnowledge handles GET /knowledge/search?q=&limit=.
func (s *Server) SearchKnowledge(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		http.Error(w, "missing query parameter q", http.StatusBadRequest)
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}
	hits, err := s.Engine.Search(r.Context(), q, limit)
	if err != nil {
		s.fail(w, "SearchKnowledge", err)
		return
	}
	if hits == nil {
		hits = []domain.KnowledgeHit{}
	}
	s.respond(w, http.StatusOK, map[string]any{"query": q, "results": hits})
}

// VerifyCredit handles POST /verification/credit.
func (s *Server) VerifyCredit(w http.ResponseWriter, r *http.Request) {
	var body VerificationRequest
	if !s.decode(w, r, &body) {
		return
	}
	kind := ports.IdentifierType(body.IdentifierType)
	if kind == "" {
		kind = ports.IdentifierMobile
	}
	res, err := s.Engine.Verify(r.Context(), body.Identifier, kind)
	if err != nil {
		http.Error(w, fmt.Sprintf("verification unavailable: %v", err), http.StatusBadGateway)
		s.logger.Warn("VerifyCredit failed", "err", err)
		return
	}
	s.respond(w, http.StatusOK, res)
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.respond(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"app":     "lendflow",
		"version": s.Version,
	})
}

// SubscribeEvents handles GET /conversations/{id}/events (SSE). Each event carries one
// SessionDiff. The optional watch parameter (stage, loan_application, history, ended) keeps
// only diffs touching the listed fields.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}
	id := chi.URLParam(r, "id")

	var watchList []string
	if raw := r.URL.Query().Get("watch"); raw != "" {
		for _, f := range strings.Split(raw, ",") {
			watchList = append(watchList, strings.TrimSpace(f))
		}
	}

	ch, cancel := s.Engine.Subscribe(id)
	defer cancel()

	sseHeaders(w)
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()
	s.logger.Info("SSE client subscribed", "conversation_id", id)

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("SSE client disconnected", "conversation_id", id)
			return
		case diff, ok := <-ch:
			if !ok {
				return
			}
			if !matches(diff, watchList) {
				continue
			}
			data, err := json.Marshal(diff)
			if err != nil {
				s.logger.Error("SSE diff encode failed", "conversation_id", id, "err", err)
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}

// KnowledgeEvents handles GET /knowledge/events (SSE), signaling every knowledge reload.
func (s *Server) KnowledgeEvents(w http.ResponseWriter, r *http.Request) {
	if s.reloads == nil {
		http.Error(w, "knowledge reloads are not watched", http.StatusNotFound)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}
	events, err := s.reloads.Watch(r.Context())
	if err != nil {
		http.Error(w, fmt.Sprintf("Watch error: %v", err), http.StatusInternalServerError)
		return
	}

	sseHeaders(w)
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case _, ok := <-events:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: reload\n\n")
			flusher.Flush()
		}
	}
}

func sseHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
}

func matches(diff *domain.SessionDiff, watch []string) bool {
	if len(watch) == 0 {
		return true
	}
	for _, field := range watch {
		switch field {
		case "stage":
			if diff.Stage != nil {
				return true
			}
		case "loan_application":
			if len(diff.Record) > 0 {
				return true
			}
		case "history":
			if diff.History != nil {
				return true
			}
		case "ended":
			if diff.Ended != nil {
				return true
			}
		}
	}
	return false
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.logger.Warn("invalid request body", "path", r.URL.Path, "err", err)
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request: %v", err), http.StatusBadRequest)
		return false
	}
	return true
}

// fail maps engine errors to status codes.
func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		http.Error(w, "conversation not found", http.StatusNotFound)
	case errors.Is(err, runner.ErrInputTooLarge), errors.Is(err, runner.ErrInvalidUTF8),
		errors.Is(err, domain.ErrEmptyMessage):
		http.Error(w, fmt.Sprintf("Invalid input: %v", err), http.StatusBadRequest)
		s.logger.Warn(op+": input rejected", "err", err)
	default:
		http.Error(w, fmt.Sprintf("%s error: %v", op, err), http.StatusInternalServerError)
		s.logger.Error(op+" failed", "err", err)
	}
}

func (s *Server) respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "err", err)
	}
}
