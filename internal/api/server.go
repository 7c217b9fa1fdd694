package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/foxhui123/AutoQA/internal/config"
	"github.com/foxhui123/AutoQA/internal/emitter"
	"github.com/foxhui123/AutoQA/internal/generator"
	"github.com/foxhui123/AutoQA/internal/llm"
	"github.com/foxhui123/AutoQA/internal/settings"
	"github.com/foxhui123/AutoQA/internal/view"
)

var errInvalidBody = errors.New("invalid request body")

// Server represents the API server
type Server struct {
	cfg      *config.Config
	router   *chi.Mux
	store    settings.Store
	adapter  *llm.Adapter
	views    *view.Registry
	emitters *emitter.Registry
	prompt   llm.PromptOptions

	// in-flight background generations
	inflight sync.WaitGroup
}

// NewServer creates a new API server
func NewServer(cfg *config.Config, store settings.Store, adapter *llm.Adapter) (*Server, error) {
	if store == nil {
		return nil, errors.New("settings store is required")
	}
	if adapter == nil {
		return nil, errors.New("provider adapter is required")
	}

	s := &Server{
		cfg:      cfg,
		router:   chi.NewRouter(),
		store:    store,
		adapter:  adapter,
		views:    view.NewRegistry(cfg.MaxViews),
		emitters: emitter.NewRegistry(),
		prompt:   llm.DefaultPromptOptions(),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s, nil
}

// Router returns the HTTP router
func (s *Server) Router() http.Handler {
	return s.router
}

// Wait blocks until background generations finish or ctx is done
func (s *Server) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))
	s.router.Use(corsMiddleware)
}

func (s *Server) setupRoutes() {
	// Health check
	s.router.Get("/health", s.healthCheck)
	s.router.Get("/ready", s.readyCheck)

	// API v1
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/settings", s.getSettings)
		r.Put("/settings", s.updateSettings)

		r.Get("/providers", s.listProviders)
		r.Get("/usage", s.getUsage)
		r.Get("/formats", s.listFormats)

		r.Route("/views", func(r chi.Router) {
			r.Post("/", s.createView)
			r.Get("/", s.listViews)

			r.Route("/{viewID}", func(r chi.Router) {
				r.Get("/", s.getView)
				r.Delete("/", s.deleteView)

				r.Post("/generate", s.generate)
				r.Post("/reset", s.resetView)

				r.Get("/table", s.getTable)
				r.Get("/mindmap", s.getMindmap)
				r.Get("/mindmap.svg", s.getMindmapSVG)

				r.Put("/viewport", s.setViewport)
				r.Post("/pan", s.pan)
				r.Post("/zoom", s.zoom)
				r.Post("/click", s.click)
				r.Get("/selection", s.getSelection)
				r.Delete("/selection", s.dismissSelection)

				r.Get("/export/{format}", s.export)
			})
		})
	})
}

// Health check handlers
func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if _, _, err := s.store.Get(ctx, settings.KeyCredential); err != nil {
		log.Error().Err(err).Msg("settings store not ready")
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// corsMiddleware allows the browser front end to call the API from any origin
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID")
		w.Header().Set("Access-Control-Expose-Headers", "Content-Disposition")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	if data == nil {
		w.WriteHeader(status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error string        `json:"error"`
	Kind  llm.ErrorKind `json:"kind,omitempty"`
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, ErrorResponse{Error: message})
}

// respondErr maps err onto a status code and writes it with its kind
func respondErr(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Int("status", status).Msg("request failed")
	}
	resp := ErrorResponse{Error: err.Error()}
	var lerr *llm.Error
	if errors.As(err, &lerr) {
		resp.Kind = lerr.Kind
	}
	respondJSON(w, status, resp)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, view.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, llm.ErrEmptyRequirements),
		errors.Is(err, generator.ErrInvalidImage),
		errors.Is(err, settings.ErrUnknownKey),
		errors.Is(err, errInvalidBody):
		return http.StatusBadRequest
	}

	var lerr *llm.Error
	if !errors.As(err, &lerr) {
		return http.StatusInternalServerError
	}

	switch lerr.Kind {
	case llm.KindMissingCredential:
		return http.StatusBadRequest
	case llm.KindUnsupportedCapability:
		return http.StatusUnprocessableEntity
	case llm.KindQuotaExceeded:
		return http.StatusTooManyRequests
	case llm.KindConnectionError, llm.KindMalformedResponse, llm.KindProviderError:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
