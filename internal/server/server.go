// Package server exposes the claim service over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/gyeh/claimcheck/internal/claims"
	"github.com/gyeh/claimcheck/internal/insurer"
	"github.com/gyeh/claimcheck/internal/model"
	"github.com/gyeh/claimcheck/internal/store"
)

// ClaimService is the claim workflow behind the API.
type ClaimService interface {
	Prevalidate(ctx context.Context, sub *model.ClaimSubmission) (*claims.Outcome, error)
	Validate(ctx context.Context, sub *model.ClaimSubmission) (*claims.Outcome, error)
	ListClaims(ctx context.Context, f store.ListFilter) ([]store.StoredClaim, error)
	ListPatients(ctx context.Context, limit, offset int) ([]store.Patient, error)
	InsurerClaims(ctx context.Context, opts insurer.ListOptions) (json.RawMessage, error)
}

// Reloader re-reads the policy and catalog.
type Reloader interface {
	Reload(ctx context.Context) (*claims.ReloadInfo, error)
}

// Options configures a Server. With no APIKeys the API is unauthenticated.
type Options struct {
	Claims   ClaimService
	Reloader Reloader
	APIKeys  []string
	Version  string
	Log      zerolog.Logger
}

// Server is the HTTP API.
type Server struct {
	e    *echo.Echo
	opts Options
	log  zerolog.Logger
}

// New builds the echo instance and registers all routes.
func New(opts Options) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{e: e, opts: opts, log: opts.Log}
	e.HTTPErrorHandler = s.handleError

	e.Use(Recovery(opts.Log))
	e.Use(RequestID())
	e.Use(Logger(opts.Log))

	e.GET("/health", s.health)

	api := e.Group("/api/v1", APIKey(opts.APIKeys))
	api.POST("/claims/prevalidate", s.prevalidate)
	api.POST("/claims/validate", s.validate)
	api.GET("/claims", s.listClaims)
	api.GET("/patients", s.listPatients)
	api.GET("/insurer/claims", s.insurerClaims)
	api.POST("/admin/reload", s.reload)

	if len(opts.APIKeys) == 0 {
		opts.Log.Warn().Msg("no API keys configured, /api/v1 is unauthenticated")
	}
	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.e
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("starting server")
		if err := s.e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.e.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.log.Info().Msg("server stopped")
	return nil
}
