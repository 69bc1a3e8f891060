package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/lumen-core/internal/device"
	"github.com/nerrad567/lumen-core/internal/diagnostics"
	"github.com/nerrad567/lumen-core/internal/dispatch"
	"github.com/nerrad567/lumen-core/internal/infrastructure/config"
	"github.com/nerrad567/lumen-core/internal/infrastructure/logging"
	"github.com/nerrad567/lumen-core/internal/transport"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Dispatcher is the slice of the command dispatcher the API needs.
// Defined here so handler tests can substitute a fake.
type Dispatcher interface {
	ExecuteCommand(ctx context.Context, dev *device.Device, desired transport.DesiredState) (*dispatch.CommandOutcome, error)
	QueryState(ctx context.Context, dev *device.Device) (*transport.ObservedState, error)
	Health() *dispatch.HealthStore
}

// StabilityChecker runs cloud API drift checks on demand.
type StabilityChecker interface {
	CheckDevices(ctx context.Context) (*diagnostics.Report, error)
	CheckScenes(ctx context.Context, dev *device.Device) (*diagnostics.Report, error)
	CheckDIYScenes(ctx context.Context, dev *device.Device) (*diagnostics.Report, error)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config     config.APIConfig
	Logger     *logging.Logger
	Registry   *device.Registry
	Dispatcher Dispatcher
	CommandLog device.CommandLogRepository // optional: command history endpoint returns 404 without it
	Stability  StabilityChecker            // optional: diagnostics endpoints return 503 without it
	Version    string
}

// Server is the HTTP API server for Lumen Core.
type Server struct {
	cfg        config.APIConfig
	logger     *logging.Logger
	registry   *device.Registry
	dispatcher Dispatcher
	commandLog device.CommandLogRepository
	stability  StabilityChecker
	version    string
	server     *http.Server
}

// New creates a new API server with the given dependencies.
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("device registry is required")
	}
	if deps.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}

	return &Server{
		cfg:        deps.Config,
		logger:     deps.Logger,
		registry:   deps.Registry,
		dispatcher: deps.Dispatcher,
		commandLog: deps.CommandLog,
		stability:  deps.Stability,
		version:    deps.Version,
	}, nil
}

// Start begins listening for HTTP connections in a background goroutine.
// The server can be stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	_ = ctx

	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		err := s.server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	s.logger.Info("API server started", "address", s.server.Addr)
	return nil
}

// Close gracefully shuts down the API server, waiting for in-flight
// requests up to gracefulShutdownTimeout.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
