// Package web implements HTTP interface of boltzweb: the submission form, job status polling
// and downloads of prediction results
package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/didip/tollbooth/v8"
	"github.com/didip/tollbooth/v8/limiter"
	log "github.com/go-pkgz/lgr"
	"github.com/go-pkgz/rest"
	"github.com/go-pkgz/rest/logger"
	"github.com/go-pkgz/routegroup"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/labfold/boltzweb/app/job"
	"github.com/labfold/boltzweb/app/service"
)

//go:generate moq -out mocks/job_service.go -pkg mocks -skip-ensure -fmt goimports . JobService

//go:embed templates/*.html
var templatesFS embed.FS

// JobService submits prediction jobs and reports their progress
type JobService interface {
	Submit(ctx context.Context, req service.SubmitRequest) (job.Job, error)
	Poll(id string) (service.Poll, bool)
}

// Server represents the web server
type Server struct {
	jobs         JobService
	layout       job.Layout
	gatherer     prometheus.Gatherer
	version      string
	passwordHash string
	submitRate   float64
	maxBodySize  int64
	index        []byte
}

// Config holds server configuration
type Config struct {
	Jobs         JobService
	Layout       job.Layout          // job files locations, for downloads
	Gatherer     prometheus.Gatherer // metrics source for /metrics, nil to disable
	Version      string
	PasswordHash string  // bcrypt hash for basic auth, empty to disable
	SubmitRate   float64 // max submissions per second per client, 0 for unlimited
	MaxBodySize  int64   // max submit request size, default 1M
}

// New creates a new web server
func New(cfg Config) (*Server, error) {
	if cfg.Jobs == nil {
		return nil, errors.New("web server initialization failed: job service is required")
	}
	index, err := templatesFS.ReadFile("templates/index.html")
	if err != nil {
		return nil, fmt.Errorf("web server initialization failed: can't read index page: %w", err)
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = 1024 * 1024
	}
	return &Server{
		jobs:         cfg.Jobs,
		layout:       cfg.Layout,
		gatherer:     cfg.Gatherer,
		version:      cfg.Version,
		passwordHash: cfg.PasswordHash,
		submitRate:   cfg.SubmitRate,
		maxBodySize:  cfg.MaxBodySize,
		index:        index,
	}, nil
}

// Run starts the web server and blocks until ctx canceled
func (s *Server) Run(ctx context.Context, address string) error {
	server := &http.Server{
		Addr:              address,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      5 * time.Minute, // zip downloads of large outputs
		IdleTimeout:       30 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("[WARN] failed to shutdown server: %v", err)
		}
	}()

	log.Printf("[INFO] starting web server on %s", address)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("web server failed: %w", err)
	}
	return nil
}

// routes returns the http.Handler with all routes configured
func (s *Server) routes() http.Handler {
	router := routegroup.New(http.NewServeMux())

	router.Use(
		rest.RealIP,
		rest.Recoverer(log.Default()),
		rest.Throttle(1000),
		rest.AppInfo("boltzweb", "labfold", s.version),
		rest.Ping,
		logger.New(logger.Log(log.Default()), logger.Prefix("[DEBUG]")).Handler,
	)

	if s.passwordHash != "" {
		log.Printf("[INFO] basic authentication enabled")
		router.Use(s.authMiddleware)
	}

	if s.gatherer != nil {
		router.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	router.HandleFunc("GET /{$}", s.handleIndex)

	submitMiddlewares := []func(http.Handler) http.Handler{rest.SizeLimit(s.maxBodySize)}
	if s.submitRate > 0 {
		lmt := tollbooth.NewLimiter(s.submitRate, nil)
		lmt.SetIPLookup(limiter.IPLookup{Name: "RemoteAddr"})
		lmt.SetMessageContentType("application/json")
		lmt.SetMessage(`{"error":"too many submissions, try again later"}`)
		submitMiddlewares = append(submitMiddlewares, tollbooth.HTTPMiddleware(lmt))
	}
	router.With(submitMiddlewares[0], submitMiddlewares[1:]...).HandleFunc("POST /submit", s.handleSubmit)

	router.Group().Route(func(r *routegroup.Bundle) {
		r.Use(rest.NoCache)
		r.HandleFunc("GET /status/{id}", s.handleStatus)
	})

	router.HandleFunc("GET /download/{id}/cif", s.handleDownloadCIF)
	router.HandleFunc("GET /download/{id}/zip", s.handleDownloadZip)
	router.HandleFunc("GET /download/{id}/log", s.handleDownloadLog)
	router.HandleFunc("GET /structures/{file}", s.handleStructure)

	return router
}

// handleIndex renders the submission page
func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if _, err := w.Write(s.index); err != nil {
		log.Printf("[WARN] failed to write index page: %v", err)
	}
}
