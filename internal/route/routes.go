package route

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"parkingserver/internal/config"
	"parkingserver/internal/handler"
	"parkingserver/internal/logger"
	"parkingserver/internal/metrics"
	"parkingserver/internal/middleware"
	"parkingserver/internal/repository"
	"parkingserver/internal/service/tracking"
	"parkingserver/internal/service/websocket"
)

// SetupRoutes registers the API, live view, log and metrics endpoints and
// wraps them with the token middleware. snapshotRepo, frameRepo and m may be nil.
func SetupRoutes(cfg *config.Config, logger *logger.Logger, aggregator *tracking.Aggregator,
	hub *websocket.HubService, snapshotRepo repository.SnapshotRepository,
	frameRepo repository.FrameRepository, m *metrics.Metrics) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(middleware.AuthMiddleware(cfg.APIToken))

	r.Get("/healthz", handler.HealthHandler())
	if m != nil {
		r.Handle("/metrics", m.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/view", handler.ViewWebsocketHandler(hub, logger))

		r.Get("/cameras", handler.ListCamerasHandler(aggregator, logger))
		r.Get("/cameras/{camera}/slots", handler.CameraSlotsHandler(aggregator, logger))
		r.Get("/cameras/{camera}/history", handler.CameraHistoryHandler(snapshotRepo, logger))

		if frameRepo != nil {
			r.Get("/cameras/{camera}/frames", handler.ListFramesHandler(frameRepo, logger))
			r.Get("/frames/{filename}", handler.ViewFrameHandler(cfg))
			r.Delete("/frames/{filename}", handler.DeleteFrameHandler(cfg, logger, frameRepo))
		}
	})

	// Log endpoints
	r.Get("/logs/{level}", handler.ShowLogsHandler(cfg))
	r.Post("/logs/{level}/clear", handler.ClearLogsHandler(logger))

	return r
}
