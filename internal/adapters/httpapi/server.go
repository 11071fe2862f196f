package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/robocourier/control-plane/internal/adapters/metrics"
	"github.com/robocourier/control-plane/internal/application/fleet"
)

const shutdownTimeout = 10 * time.Second

// FleetService is the slice of the orchestrator the HTTP surface needs.
type FleetService interface {
	CreateShipment(ctx context.Context, shipment fleet.Shipment) (*fleet.ShipmentResult, error)
	RobotState(ctx context.Context, robotID string) (*fleet.RobotStatus, error)
	MoveNext(ctx context.Context, robotID string) error
	Emergency(ctx context.Context, robotID string) error
	ProcessNotification(ctx context.Context, notification fleet.Notification) *fleet.NotificationResult
}

// Server is the HTTP boundary of the control plane.
type Server struct {
	fleet       FleetService
	logger      *zap.Logger
	corsOrigins []string
	httpMetrics *metrics.HTTPMetricsCollector
	registry    *prometheus.Registry
}

// Options configures the optional parts of the server. A nil Registry
// disables the /metrics endpoint; empty CORSOrigins disables CORS.
type Options struct {
	CORSOrigins []string
	HTTPMetrics *metrics.HTTPMetricsCollector
	Registry    *prometheus.Registry
}

// NewServer wires the HTTP surface over the fleet orchestrator.
func NewServer(fleetService FleetService, logger *zap.Logger, opts Options) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		fleet:       fleetService,
		logger:      logger,
		corsOrigins: opts.CORSOrigins,
		httpMetrics: opts.HTTPMetrics,
		registry:    opts.Registry,
	}
}

// Router builds the chi router with the middleware chain and all routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(s.requestLogger)
	r.Use(chimiddleware.Recoverer)
	if len(s.corsOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.corsOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type"},
		}))
	}
	if s.httpMetrics != nil {
		r.Use(s.httpMetrics.Middleware)
	}

	r.Get("/health", s.handleHealth)
	if s.registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/shipments/", s.handleCreateShipment)
		r.Route("/robots", func(r chi.Router) {
			r.Get("/{robot_id}/", s.handleRobotState)
			r.Patch("/{robot_id}/nexts/", s.handleMoveNext)
			r.Patch("/{robot_id}/emergencies/", s.handleEmergency)
			r.Post("/notifications/", s.handleNotification)
		})
	})

	return r
}

// Start serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info("http server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
