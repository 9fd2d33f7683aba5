// Package server exposes the gallery as a JSON HTTP API.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/nugallery/pkg/dag"
	"github.com/matzehuels/nugallery/pkg/gallery"
	"github.com/matzehuels/nugallery/pkg/nuget"
)

// Gallery is the subset of *gallery.Gallery the API serves.
type Gallery interface {
	Package(ctx context.Context, id, versionSpec string) (*nuget.Package, error)
	Versions(ctx context.Context, id string) (*gallery.PackageVersions, error)
	Framework(ctx context.Context, id, versionSpec, moniker string) (*nuget.TargetFramework, error)
	Assembly(ctx context.Context, id, versionSpec, moniker, fileName string) (*nuget.Assembly, error)
	Resolve(ctx context.Context, id, versionSpec, moniker, name string) (*nuget.Assembly, error)
	Search(ctx context.Context, query string) (*gallery.SearchResults, error)
	Graph(ctx context.Context, id, versionSpec string, opts gallery.GraphOptions) (*dag.DAG, error)
	Stats() gallery.Stats
	Sweep() int
}

var _ Gallery = (*gallery.Gallery)(nil)

// Options configures a Server.
type Options struct {
	Logger *log.Logger

	// SweepInterval is how often expired cache entries are dropped while
	// the server runs. Zero disables sweeping.
	SweepInterval time.Duration

	// RequestTimeout bounds each request. Zero selects one minute.
	RequestTimeout time.Duration
}

// Server serves the gallery API.
type Server struct {
	gallery Gallery
	logger  *log.Logger
	opts    Options
	router  chi.Router
}

// New creates a Server over g.
func New(g Gallery, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = time.Minute
	}
	s := &Server{gallery: g, logger: opts.Logger, opts: opts}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.opts.RequestTimeout))

	r.Get("/healthz", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/search", s.handleSearch)
		r.Get("/cache", s.handleCache)
		r.Route("/packages/{id}", func(r chi.Router) {
			r.Get("/", s.handlePackage)
			r.Get("/versions", s.handleVersions)
			r.Route("/{version}", func(r chi.Router) {
				r.Get("/", s.handlePackage)
				r.Get("/graph", s.handleGraph)
				r.Route("/{framework}", func(r chi.Router) {
					r.Get("/", s.handleFramework)
					r.Get("/assemblies/{assembly}", s.handleAssembly)
					r.Get("/resolve/{name}", s.handleResolve)
				})
			})
		})
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: errorDetail{Code: "NOT_FOUND", Message: "no such route"}})
	})
	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Run listens on addr until ctx is cancelled, then shuts down gracefully.
// Expired cache entries are swept every SweepInterval meanwhile.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	if s.opts.SweepInterval > 0 {
		go s.sweepLoop(ctx)
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) sweepLoop(ctx context.Context) {
	t := time.NewTicker(s.opts.SweepInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := s.gallery.Sweep(); n > 0 {
				s.logger.Debug("swept expired cache entries", "removed", n)
			}
		}
	}
}

// logRequests logs one line per request with its status and duration.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		logf := s.logger.Info
		if status >= http.StatusInternalServerError {
			logf = s.logger.Warn
		}
		logf("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).Round(time.Microsecond),
			"request_id", middleware.GetReqID(r.Context()))
	})
}
