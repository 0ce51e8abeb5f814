// Package api provides the HTTP API server for menu cost queries
// It exposes the cost engine, the price store and the consistency checker as JSON
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"menu-cost/db/pricestore"
	"menu-cost/decision/consistency"
	"menu-cost/decision/costing"
)

// Server is the HTTP API server
type Server struct {
	httpServer *http.Server
	store      *pricestore.Store
	engine     *costing.Engine
	config     *Config
	metrics    *metrics
	log        zerolog.Logger
}

// Config holds server configuration
type Config struct {
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxRequestSize int64
	CORSOrigins    []string
}

// DefaultConfig returns default server configuration
func DefaultConfig() *Config {
	return &Config{
		Port:           8080,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   60 * time.Second,
		MaxRequestSize: 1 * 1024 * 1024, // 1MB
		CORSOrigins:    []string{"*"},
	}
}

// NewServer creates a new API server
func NewServer(store *pricestore.Store, engine *costing.Engine, config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	return &Server{
		store:   store,
		engine:  engine,
		config:  config,
		metrics: newMetrics(),
		log:     zerolog.Nop(),
	}
}

// WithLogger sets the request logger
func (s *Server) WithLogger(l zerolog.Logger) *Server {
	s.log = l.With().Str("component", "api").Logger()
	return s
}

// Handler builds the routed handler with middleware
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(s.corsMiddleware)

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/catalog", s.handleCatalog)
		r.Get("/courses", s.handleListCourses)
		r.Get("/courses/{id}", s.handleCourse)
		r.Get("/dishes/{id}", s.handleDish)
		r.Get("/prices", s.handleGetPrices)
		r.Put("/prices", s.handleUpdatePrices)
		r.Get("/consistency", s.handleConsistency)
	})

	return r
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.log.Info().Int("port", s.config.Port).Msg("menu cost API server starting")
	return s.httpServer.ListenAndServe()
}

// StartWithGracefulShutdown starts server with graceful shutdown handling
func (s *Server) StartWithGracefulShutdown() error {
	errChan := make(chan error, 1)
	go func() {
		if err := s.Start(); err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case <-quit:
		s.log.Info().Msg("shutting down server")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(ctx)
	}
}

// =============================================================================
// MIDDLEWARE
// =============================================================================

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		elapsed := time.Since(start)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.metrics.observe(r, status, elapsed)
		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote", r.RemoteAddr).
			Str("request_id", middleware.GetReqID(r.Context())).
			Int("status", status).
			Dur("elapsed", elapsed).
			Msg("request")
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		allowed := false
		for _, o := range s.config.CORSOrigins {
			if o == "*" || o == origin {
				allowed = true
				break
			}
		}

		if allowed {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, PUT, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.Header().Set("Access-Control-Max-Age", "86400")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// HANDLERS
// =============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"status":  "healthy",
		"prices":  s.store.Prices().Len(),
		"courses": len(s.engine.Catalog().CourseIDs()),
	})
}

// CatalogResponse is the body of GET /api/v1/catalog
type CatalogResponse struct {
	Courses       []string `json:"courses"`
	Dishes        []string `json:"dishes"`
	DiscountRules []string `json:"discount_rules"`
	Addons        []string `json:"addons"`
	Ingredients   []string `json:"ingredients"`
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	c := s.engine.Catalog()
	s.jsonResponse(w, http.StatusOK, CatalogResponse{
		Courses:       c.CourseIDs(),
		Dishes:        c.DishIDs(),
		DiscountRules: c.RuleIDs(),
		Addons:        c.AddonIDs(),
		Ingredients:   c.Ingredients(),
	})
}

// CourseListResponse is the body of GET /api/v1/courses
type CourseListResponse struct {
	Courses []costing.CourseResult `json:"courses"`
}

func (s *Server) handleListCourses(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, CourseListResponse{
		Courses: s.engine.AllCourses(s.store.Prices()),
	})
}

func (s *Server) handleCourse(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	addons := r.URL.Query()["addon"]

	result := s.engine.CourseCost(id, s.store.Prices(), addons...)
	status := http.StatusOK
	if !result.Found {
		status = http.StatusNotFound
	}
	s.jsonResponse(w, status, result)
}

func (s *Server) handleDish(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	result := s.engine.DishCost(id, s.store.Prices())
	status := http.StatusOK
	if !result.Found {
		status = http.StatusNotFound
	}
	s.jsonResponse(w, status, result)
}

// PricesResponse is the body of GET /api/v1/prices
type PricesResponse struct {
	Count  int                `json:"count"`
	Prices map[string]float64 `json:"prices"`
}

func (s *Server) handleGetPrices(w http.ResponseWriter, r *http.Request) {
	snap := s.store.Prices()
	s.jsonResponse(w, http.StatusOK, PricesResponse{Count: snap.Len(), Prices: snap.Map()})
}

// ValidationResponse is the body of a rejected price update
type ValidationResponse struct {
	Error      string                 `json:"error"`
	Violations []pricestore.Violation `json:"violations"`
}

func (s *Server) handleUpdatePrices(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxRequestSize)

	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	var candidate map[string]any
	if err := dec.Decode(&candidate); err != nil || candidate == nil {
		s.jsonError(w, http.StatusBadRequest, "request body must be a JSON object of ingredient prices")
		return
	}

	result, err := s.store.Update(r.Context(), candidate)
	if err != nil {
		var ve *pricestore.ValidationError
		if errors.As(err, &ve) {
			s.metrics.priceUpdates.WithLabelValues("rejected").Inc()
			s.jsonResponse(w, http.StatusUnprocessableEntity, ValidationResponse{
				Error:      pricestore.ErrValidation.Error(),
				Violations: ve.Violations,
			})
			return
		}
		s.metrics.priceUpdates.WithLabelValues("failed").Inc()
		s.log.Error().Err(err).Msg("price update failed")
		s.jsonError(w, http.StatusInternalServerError, fmt.Sprintf("price update failed: %v", err))
		return
	}

	s.metrics.priceUpdates.WithLabelValues("accepted").Inc()
	s.jsonResponse(w, http.StatusOK, result)
}

// ConsistencyResponse is the body of GET /api/v1/consistency
type ConsistencyResponse struct {
	Clean bool `json:"clean"`
	*consistency.Report
}

func (s *Server) handleConsistency(w http.ResponseWriter, r *http.Request) {
	report := consistency.Check(s.engine.Catalog(), s.store.Prices().Keys(), consistency.DefaultOptions())
	s.metrics.missingPrices.Set(float64(len(report.Missing)))
	s.jsonResponse(w, http.StatusOK, ConsistencyResponse{Clean: report.Clean(), Report: report})
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Warn().Err(err).Msg("failed to encode response")
	}
}

func (s *Server) jsonError(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{
		"error": message,
	})
}
