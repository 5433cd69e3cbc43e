package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ppiankov/persona/internal/logging"
	"github.com/ppiankov/persona/internal/metrics"
	"github.com/ppiankov/persona/internal/model"
)

// maxRequestBody bounds JSON request bodies
const maxRequestBody = 64 << 10

// Runner produces a persona document for one identity
type Runner interface {
	Run(ctx context.Context, identity string) (*model.PersonaDocument, error)
}

// Server exposes persona generation over HTTP
type Server struct {
	runner  Runner
	metrics *metrics.Metrics
	logger  *logging.Logger
	timeout time.Duration
}

// New creates a server; requestTimeout <= 0 disables the per-request deadline
func New(runner Runner, m *metrics.Metrics, logger *logging.Logger, requestTimeout time.Duration) *Server {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Server{
		runner:  runner,
		metrics: m,
		logger:  logger,
		timeout: requestTimeout,
	}
}

// Handler builds the router
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/v1/personas", func(r chi.Router) {
		if s.timeout > 0 {
			r.Use(middleware.Timeout(s.timeout))
		}
		r.Post("/", s.handleGenerateBody)
		r.Post("/{username}", s.handleGenerate)
	})
	return r
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		s.logger.Info("shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleGenerate handles POST /v1/personas/{username}
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	s.generate(w, r, chi.URLParam(r, "username"))
}

type generateRequest struct {
	Identity string `json:"identity"` // Username or profile URL
}

// handleGenerateBody handles POST /v1/personas with {"identity": "..."}, for profile URLs
func (s *Server) handleGenerateBody(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", fmt.Sprintf("decode request: %v", err))
		return
	}
	s.generate(w, r, req.Identity)
}

func (s *Server) generate(w http.ResponseWriter, r *http.Request, identity string) {
	doc, err := s.runner.Run(r.Context(), identity)
	if err != nil {
		kind := model.KindOf(err)
		status := StatusFor(err)
		s.logger.Warn("persona request failed",
			"request_id", middleware.GetReqID(r.Context()),
			"identity", identity,
			"kind", kind,
			"status", status,
			"error", err,
		)
		code := string(kind)
		if code == "" {
			code = "internal"
		}
		writeError(w, status, code, err.Error())
		return
	}

	if r.URL.Query().Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(doc.Text))
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// StatusFor maps a pipeline error to an HTTP status
func StatusFor(err error) int {
	switch model.KindOf(err) {
	case model.KindInput:
		return http.StatusBadRequest
	case model.KindRetrieval, model.KindGeneration:
		return http.StatusBadGateway
	case model.KindEmptyEvidence, model.KindCitationViolation:
		return http.StatusUnprocessableEntity
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).Round(time.Millisecond),
		)
	})
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Error: code, Message: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
