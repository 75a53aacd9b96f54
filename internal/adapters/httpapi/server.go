// Package httpapi serves the signature formatter over HTTP.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sigfmt/internal/core/domain"
	"sigfmt/internal/core/port"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"
)

const (
	uploadField     = "file"
	shutdownTimeout = 10 * time.Second

	msgProcessingFailed = "Error processing image"
	msgNoFile           = "No file uploaded"
	msgTooLarge         = "Upload too large"
)

type Settings struct {
	Listen         string
	AllowedOrigin  string
	MaxUploadBytes int64
}

type Server struct {
	formatter port.SignatureFormatter
	settings  Settings
	gatherer  prometheus.Gatherer
	router    chi.Router
}

// NewServer builds the router. gatherer backs /metrics; nil uses the default registry.
func NewServer(formatter port.SignatureFormatter, settings Settings, gatherer prometheus.Gatherer) *Server {
	s := &Server{formatter: formatter, settings: settings, gatherer: gatherer}
	s.router = s.routes()

	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(hlog.NewHandler(log.Logger))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request served")
	}))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{s.settings.AllowedOrigin},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
		ExposedHeaders: []string{"Content-Disposition"},
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	} else {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Post("/upload", s.upload)

	return r
}

func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	l := hlog.FromRequest(r)

	r.Body = http.MaxBytesReader(w, r.Body, s.settings.MaxUploadBytes)

	f, header, err := r.FormFile(uploadField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			l.Warn().Int64("limit", tooLarge.Limit).Msg("upload exceeds limit")
			http.Error(w, msgTooLarge, http.StatusRequestEntityTooLarge)
			return
		}

		l.Warn().Err(err).Msg("request without file")
		http.Error(w, msgNoFile, http.StatusBadRequest)
		return
	}
	defer f.Close()

	ctx := l.WithContext(r.Context())
	delivered := false

	err = s.formatter.Process(ctx, f, strings.ToLower(filepath.Ext(header.Filename)),
		func(_ context.Context, result domain.Attempt) error {
			out, err := os.Open(result.Path)
			if err != nil {
				return fmt.Errorf("%w: opening output: %w", domain.ErrIO, err)
			}
			defer out.Close()

			delivered = true
			w.Header().Set("Content-Type", "image/jpeg")
			w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", domain.OutputFilename))
			http.ServeContent(w, r, domain.OutputFilename, time.Time{}, out)

			return nil
		})
	if err != nil && !delivered {
		l.Error().Err(err).Str("filename", header.Filename).Msg("failed to process upload")
		http.Error(w, msgProcessingFailed, http.StatusInternalServerError)
	}
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.settings.Listen,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("listen", s.settings.Listen).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}

	log.Info().Msg("http server stopped")

	return nil
}
