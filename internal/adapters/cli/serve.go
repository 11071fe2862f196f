package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/robocourier/control-plane/internal/adapters/httpapi"
	"github.com/robocourier/control-plane/internal/adapters/metrics"
	"github.com/robocourier/control-plane/internal/adapters/orion"
	"github.com/robocourier/control-plane/internal/adapters/persistence"
	"github.com/robocourier/control-plane/internal/application/fleet"
	"github.com/robocourier/control-plane/internal/domain/shared"
	"github.com/robocourier/control-plane/internal/infrastructure/config"
	"github.com/robocourier/control-plane/internal/infrastructure/database"
	"github.com/robocourier/control-plane/internal/infrastructure/logging"
)

// NewServeCommand creates the serve command running the HTTP control plane
func NewServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the control plane HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
	}

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		return err
	}
	defer func() { _ = database.Close(db) }()
	if err := database.AutoMigrate(db); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clock := shared.NewRealClock()
	store := orion.NewClient(orion.Config{
		Endpoint:         cfg.Orion.Endpoint,
		Token:            cfg.Orion.Token,
		Service:          cfg.Orion.Service,
		RobotServicePath: cfg.Orion.RobotServicePath,
		UIServicePath:    cfg.Orion.UIServicePath,
		TokenServicePath: cfg.Orion.TokenServicePath,
		RobotType:        cfg.Orion.RobotType,
		UIType:           cfg.Orion.UIType,
		TokenType:        cfg.Orion.TokenType,
		PlaceType:        cfg.Orion.PlaceType,
		RoutePlanType:    cfg.Orion.RoutePlanType,
		ListLimit:        cfg.Orion.ListLimit,
		Timeout:          cfg.Orion.Timeout,
	}, logger)
	payloads := orion.NewPayloadBuilder(clock, loc)

	throttle := persistence.NewThrottleRepository(db, cfg.Throttle.Interval())
	if err := throttle.Seed(ctx, cfg.Fleet.Robots); err != nil {
		return err
	}
	messages := persistence.NewMessageRepository(db, loc)

	var fleetMetrics fleet.MetricsRecorder
	serverOpts := httpapi.Options{CORSOrigins: cfg.Server.CORSOrigins}
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		registry := metrics.GetRegistry()
		fleetMetrics = metrics.NewFleetMetricsCollector(registry)
		serverOpts.HTTPMetrics = metrics.NewHTTPMetricsCollector(registry)
		serverOpts.Registry = registry
	}

	orchestrator := fleet.NewOrchestrator(store, payloads, throttle, messages, fleetMetrics, clock, logger, fleet.Options{
		FleetRobots:  cfg.Fleet.Robots,
		UITable:      cfg.Fleet.UITable,
		OrderingList: cfg.Fleet.OrderingList,
		PollInterval: cfg.Move.PollInterval(),
		MaxPolls:     cfg.Move.WaitMaxNum,
	})

	server := httpapi.NewServer(orchestrator, logger, serverOpts)

	logger.Info("control plane starting",
		zap.Int("port", cfg.Server.Port),
		zap.Strings("fleet", cfg.Fleet.Robots))
	return server.Start(ctx, fmt.Sprintf(":%d", cfg.Server.Port))
}
