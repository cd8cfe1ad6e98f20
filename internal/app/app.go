package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"parkingserver/internal/config"
	"parkingserver/internal/logger"
	"parkingserver/internal/metrics"
	"parkingserver/internal/repository/sqlite"
	"parkingserver/internal/route"
	"parkingserver/internal/service"
	"parkingserver/internal/service/ai"
	"parkingserver/internal/service/publisher"
	"parkingserver/internal/service/source"
	"parkingserver/internal/service/storage"
	"parkingserver/internal/service/tracking"
	"parkingserver/internal/service/websocket"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config *config.Config
	logger *logger.Logger

	db           *sqlite.DB
	snapshotRepo *sqlite.SnapshotRepository
	frameRepo    *sqlite.FrameRepository

	metrics    *metrics.Metrics
	registry   *tracking.Registry
	aggregator *tracking.Aggregator
	publisher  *publisher.Publisher
	hubService *websocket.HubService
	buffer     *storage.BufferService
	manager    *service.Manager
}

// NewApp opens the database and wires every service.
func NewApp(cfg *config.Config, logger *logger.Logger) (*App, error) {
	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}

	a := &App{
		config:       cfg,
		logger:       logger,
		db:           db,
		snapshotRepo: sqlite.NewSnapshotRepository(db),
		frameRepo:    sqlite.NewFrameRepository(db),
		metrics:      metrics.New(),
		registry: tracking.NewRegistry(tracking.Options{
			Capacity:       cfg.SlotCapacity,
			MatchThreshold: cfg.MatchThreshold,
		}),
		hubService: websocket.NewHubService(logger),
	}

	a.aggregator = tracking.NewAggregator(a.registry)
	a.publisher = publisher.NewPublisher(cfg, logger, a.metrics)
	a.buffer = storage.NewBufferService(cfg, logger, a.frameRepo)

	a.manager = service.NewManager(ai.NewDetectorService(cfg, logger), a.registry, a.publisher, cfg, logger).
		WithHub(a.hubService).
		WithHistory(a.snapshotRepo).
		WithMetrics(a.metrics).
		WithOverlays(ai.NewRenderer(logger), a.buffer)

	return a, nil
}

// Run serves the HTTP API and drives the frame loop until ctx is cancelled
// or a component fails. The API stays up after a finite source is exhausted.
func (a *App) Run(ctx context.Context) error {
	defer a.Close()

	src, closeSource, err := a.newSource()
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.hubService.Run(gctx)
		return nil
	})
	g.Go(func() error {
		a.buffer.Run(gctx)
		return nil
	})

	router := route.SetupRoutes(a.config, a.logger, a.aggregator, a.hubService, a.snapshotRepo, a.frameRepo, a.metrics)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.config.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		if closeSource != nil {
			closeSource()
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		if err := a.manager.Run(gctx, src); err != nil {
			return err
		}
		if gctx.Err() == nil {
			a.logger.Info("Frame source finished; API keeps serving the last snapshots")
		}
		return nil
	})

	a.logger.Info("🚀 Parking slot server")
	a.logger.Info("📍 URL: http://localhost:%d", a.config.Port)
	a.logger.Info("🎞️  Source: %s", a.config.FrameSource)
	a.logger.Info("📨 Publishing to: %s (%s)", a.config.PublishURL, a.config.PublishMode)

	err = g.Wait()

	if !a.publisher.Drain(a.config.PublishTimeout + time.Second) {
		a.logger.Warning("Some status updates were still in flight at shutdown")
	}
	return err
}

// newSource builds the configured frame source and its closer, if any.
func (a *App) newSource() (source.FrameSource, func(), error) {
	switch a.config.FrameSource {
	case config.SourceUDP:
		src, err := source.NewUDPSource(a.config.UDPPort, a.config.CameraNames, a.logger)
		if err != nil {
			return nil, nil, err
		}
		return src, func() { src.Close() }, nil
	default:
		src, err := source.NewDirectorySource(a.config.SourceDir, a.config.Cameras, a.logger)
		if err != nil {
			return nil, nil, err
		}
		return src, nil, nil
	}
}

// Close releases the database.
func (a *App) Close() {
	if err := a.db.Close(); err != nil {
		a.logger.Error("Failed to close database: %v", err)
	}
}
