package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/cors"
	"golang.org/x/time/rate"

	"github.com/Gajesh2007/discovery-archaeology-agent/internal/engine"
	"github.com/Gajesh2007/discovery-archaeology-agent/internal/extract"
	"github.com/Gajesh2007/discovery-archaeology-agent/internal/llm"
	"github.com/Gajesh2007/discovery-archaeology-agent/internal/models"
	"github.com/Gajesh2007/discovery-archaeology-agent/internal/store"
)

// Version is reported by GET /.
const Version = "1.0.0"

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// Error kinds carried in the "kind" field of error responses.
const (
	KindValidation       = "validation"
	KindExtraction       = "extraction"
	KindNotFound         = "not_found"
	KindStoreUnavailable = "store_unavailable"
	KindRateLimited      = "rate_limited"
	KindUnauthorized     = "unauthorized"
	KindInternal         = "internal"
)

// Options configures the HTTP middleware.
type Options struct {
	AuthToken    string   // empty = no auth required
	CORSOrigins  []string // empty = CORS disabled
	AnalyzeRPS   float64  // 0 = no rate limit on model-backed routes
	AnalyzeBurst int
}

// Server is an HTTP API server that exposes invention analysis operations.
type Server struct {
	engine  *engine.Engine
	logger  *slog.Logger
	opts    Options
	limiter *rate.Limiter
}

// NewServer creates a new Server with the given dependencies.
func NewServer(eng *engine.Engine, logger *slog.Logger, opts Options) *Server {
	s := &Server{
		engine: eng,
		logger: logger,
		opts:   opts,
	}
	if opts.AnalyzeRPS > 0 {
		burst := opts.AnalyzeBurst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(opts.AnalyzeRPS), burst)
	}
	return s
}

// Handler returns an http.Handler with all routes registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Root and health: no auth required.
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("POST /inventions/analyze", s.auth(s.limit(s.handleAnalyze)))
	mux.HandleFunc("GET /inventions", s.auth(s.handleListInventions))
	mux.HandleFunc("GET /inventions/{id}", s.auth(s.handleGetInvention))
	mux.HandleFunc("DELETE /inventions/{id}", s.auth(s.handleDeleteInvention))

	mux.HandleFunc("GET /patterns", s.auth(s.handleListPatterns))
	mux.HandleFunc("POST /patterns/analyze", s.auth(s.limit(s.handleAnalyzePatterns)))
	mux.HandleFunc("GET /patterns/themes", s.auth(s.handleThemes))
	mux.HandleFunc("GET /patterns/timeline", s.auth(s.handleTimeline))

	if len(s.opts.CORSOrigins) == 0 {
		return mux
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:   s.opts.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	})(mux)
}

// --- middleware ---

// auth wraps a handler with Bearer token authentication when a token is set.
func (s *Server) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.opts.AuthToken == "" {
			next(w, r)
			return
		}
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.opts.AuthToken)) != 1 {
			s.writeError(w, http.StatusUnauthorized, KindUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	}
}

// limit applies the shared token bucket to routes that call the model.
func (s *Server) limit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			s.writeError(w, http.StatusTooManyRequests, KindRateLimited, "rate limit exceeded")
			return
		}
		next(w, r)
	}
}

// --- handlers ---

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"message": "Discovery Archaeology Agent API",
		"version": Version,
		"status":  "running",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req models.AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, KindValidation, "invalid request body")
		return
	}

	rec, err := s.engine.Analyze(r.Context(), req)
	if err != nil {
		s.fail(w, "analyze invention", err)
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleListInventions(w http.ResponseWriter, r *http.Request) {
	list, err := s.engine.List(r.Context())
	if err != nil {
		s.fail(w, "list inventions", err)
		return
	}
	s.writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetInvention(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	rec, err := s.engine.Get(r.Context(), id)
	if err != nil {
		s.fail(w, "get invention", err)
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDeleteInvention(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	if err := s.engine.Delete(r.Context(), id); err != nil {
		s.fail(w, "delete invention", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"id": id, "deleted": true})
}

func (s *Server) handleListPatterns(w http.ResponseWriter, r *http.Request) {
	aggs, err := s.engine.Patterns(r.Context())
	if err != nil {
		s.fail(w, "list patterns", err)
		return
	}
	s.writeJSON(w, http.StatusOK, aggs)
}

func (s *Server) handleAnalyzePatterns(w http.ResponseWriter, r *http.Request) {
	aggs, err := s.engine.AnalyzePatterns(r.Context())
	if err != nil {
		s.fail(w, "analyze patterns", err)
		return
	}
	s.writeJSON(w, http.StatusOK, aggs)
}

func (s *Server) handleThemes(w http.ResponseWriter, r *http.Request) {
	themes, err := s.engine.Themes(r.Context())
	if err != nil {
		s.fail(w, "common themes", err)
		return
	}
	s.writeJSON(w, http.StatusOK, themes)
}

func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	timeline, err := s.engine.Timeline(r.Context())
	if err != nil {
		s.fail(w, "innovation timeline", err)
		return
	}
	s.writeJSON(w, http.StatusOK, timeline)
}

// --- helpers ---

func (s *Server) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		s.writeError(w, http.StatusBadRequest, KindValidation, "id must be a positive integer")
		return 0, false
	}
	return id, true
}

// Classify maps an error to its HTTP status and error kind.
func Classify(err error) (int, string) {
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity, KindValidation
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, KindNotFound
	case errors.Is(err, store.ErrUnavailable):
		return http.StatusServiceUnavailable, KindStoreUnavailable
	case errors.Is(err, llm.ErrCircuitOpen):
		return http.StatusServiceUnavailable, KindExtraction
	case errors.Is(err, extract.ErrExtraction):
		return http.StatusBadGateway, KindExtraction
	default:
		return http.StatusInternalServerError, KindInternal
	}
}

// fail logs err and writes the classified error response. Internal errors
// are reported without detail.
func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	status, kind := Classify(err)
	msg := err.Error()
	switch kind {
	case KindNotFound:
		s.logger.Debug(op+" not found", "error", err)
	case KindInternal:
		s.logger.Error(op+" failed", "error", err)
		msg = op + " failed"
	default:
		s.logger.Warn(op+" failed", "kind", kind, "error", err)
	}
	s.writeError(w, status, kind, msg)
}

// writeJSON encodes v as JSON and writes it to w with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if encErr := json.NewEncoder(w).Encode(v); encErr != nil {
		s.logger.Error("failed to encode response", "error", encErr)
	}
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, kind, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg, "kind": kind})
}

// Shutdown gracefully shuts down an http.Server with the given timeout.
// This is a convenience helper used by the serve command.
func Shutdown(srv *http.Server, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return srv.Shutdown(ctx)
}
