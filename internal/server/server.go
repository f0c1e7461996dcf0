package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nao1215/antmaps/internal/config"
	"github.com/nao1215/antmaps/internal/database"
	"github.com/nao1215/antmaps/internal/model"
	"github.com/nao1215/antmaps/internal/pipeline"
)

// DefaultMaxSpeciesLimit caps maxSpecies of API requests.
const DefaultMaxSpeciesLimit = 100

// shutdownTimeout bounds graceful shutdown.
const shutdownTimeout = 10 * time.Second

// HistoryStore persists and lists delivered runs. *database.HistoryDB implements it.
type HistoryStore interface {
	SaveRun(ctx context.Context, report *model.RunReport) error
	GetRunHistory(ctx context.Context, location string) ([]database.RunSummary, error)
}

// Server is the HTTP front end of the pipeline.
type Server struct {
	echo      *echo.Echo
	executor  pipeline.Executor
	history   HistoryStore
	locations *config.File
	gatherer  prometheus.Gatherer
	maxLimit  int
	logger    *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithHistory records every delivered run in store.
func WithHistory(store HistoryStore) Option {
	return func(s *Server) {
		s.history = store
	}
}

// WithLocations enables the named location routes.
func WithLocations(file *config.File) Option {
	return func(s *Server) {
		s.locations = file
	}
}

// WithGatherer sets the registry served on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		if g != nil {
			s.gatherer = g
		}
	}
}

// WithMaxSpeciesLimit sets the largest maxSpecies a request may ask for.
func WithMaxSpeciesLimit(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxLimit = n
		}
	}
}

// New creates a Server whose species routes run on executor.
func New(executor pipeline.Executor, opts ...Option) *Server {
	s := &Server{
		executor: executor,
		gatherer: prometheus.DefaultGatherer,
		maxLimit: DefaultMaxSpeciesLimit,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	s.echo = e
	s.routes()

	return s
}

func (s *Server) routes() {
	s.echo.GET("/healthz", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))

	api := s.echo.Group("/api/v1")
	api.GET("/species", s.handleSpecies)
	api.GET("/locations", s.handleLocations)
	api.GET("/locations/:name/species", s.handleLocationSpecies)
	api.GET("/history/:location", s.handleHistory)
}

// Handler returns the server's http.Handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "address", addr)
		errCh <- s.echo.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error string `json:"error"`
}

func (s *Server) fail(c echo.Context, status int, err error) error {
	return c.JSON(status, ErrorResponse{Error: err.Error()})
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// handleSpecies runs a query decoded from the transfer-form query parameters.
func (s *Server) handleSpecies(c echo.Context) error {
	form := config.TransferForm{}
	for _, key := range []string{
		config.KeyMaxSpecies,
		config.KeyLatitude,
		config.KeyLongitude,
		config.KeyRadiusKm,
		config.KeyFakeResults,
		config.KeyPhotoType,
	} {
		if v := c.QueryParam(key); v != "" {
			form[key] = v
		}
	}

	q, err := config.QueryFromTransferForm(form)
	if err != nil {
		return s.fail(c, http.StatusBadRequest, err)
	}
	return s.runQuery(c, q, "")
}

func (s *Server) handleLocations(c echo.Context) error {
	names := []string{}
	if s.locations != nil {
		names = s.locations.LocationNames()
	}
	return c.JSON(http.StatusOK, map[string][]string{"locations": names})
}

func (s *Server) handleLocationSpecies(c echo.Context) error {
	if s.locations == nil {
		return s.fail(c, http.StatusNotFound, config.ErrUnknownLocation)
	}
	name := c.Param("name")
	q, err := s.locations.GetLocationQuery(name)
	if err != nil {
		return s.fail(c, http.StatusNotFound, err)
	}
	return s.runQuery(c, q, name)
}

func (s *Server) handleHistory(c echo.Context) error {
	if s.history == nil {
		return s.fail(c, http.StatusNotFound, errors.New("run history is disabled"))
	}
	runs, err := s.history.GetRunHistory(c.Request().Context(), c.Param("location"))
	if err != nil {
		s.logger.Error("failed to read history", "error", err)
		return s.fail(c, http.StatusInternalServerError, errors.New("failed to read history"))
	}
	if runs == nil {
		runs = []database.RunSummary{}
	}
	return c.JSON(http.StatusOK, runs)
}

func (s *Server) runQuery(c echo.Context, q config.Query, location string) error {
	if err := q.Validate(); err != nil {
		return s.fail(c, http.StatusBadRequest, err)
	}
	if q.MaxSpecies > s.maxLimit {
		return s.fail(c, http.StatusBadRequest,
			fmt.Errorf("%w: at most %d", config.ErrInvalidMaxSpecies, s.maxLimit))
	}

	ctx := c.Request().Context()
	run := pipeline.NewRun(q, location)
	if err := s.executor.Execute(ctx, run); err != nil {
		// the client went away
		s.logger.Debug("request cancelled", "run", run.ID, "error", err)
		return s.fail(c, http.StatusServiceUnavailable, err)
	}

	report := run.Report(model.RunStatusDelivered)
	if s.history != nil {
		if err := s.history.SaveRun(ctx, report); err != nil {
			s.logger.Warn("failed to save run", "run", run.ID, "error", err)
		}
	}

	return c.JSON(http.StatusOK, report)
}
