package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"parkingserver/internal/dto"
	"parkingserver/internal/logger"
	"parkingserver/internal/repository"
	"parkingserver/internal/service/tracking"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 1000
)

// ListCamerasHandler returns the current snapshot of every known camera.
func ListCamerasHandler(aggregator *tracking.Aggregator, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, aggregator.All(), logger)
	}
}

// CameraSlotsHandler returns the current snapshot of one camera.
func CameraSlotsHandler(aggregator *tracking.Aggregator, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		camera := chi.URLParam(r, "camera")

		snap, ok := aggregator.Lookup(camera)
		if !ok {
			http.Error(w, "Unknown camera: "+camera, http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, snap, logger)
	}
}

// CameraHistoryHandler returns stored snapshots of one camera, newest first.
// Optional query parameters: limit, after, before (RFC 3339).
func CameraHistoryHandler(snapshotRepo repository.SnapshotRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if snapshotRepo == nil {
			http.Error(w, "History is disabled", http.StatusServiceUnavailable)
			return
		}

		q := r.URL.Query()
		limit := atoiDefault(q.Get("limit"), defaultHistoryLimit)
		if limit <= 0 || limit > maxHistoryLimit {
			http.Error(w, "limit must be between 1 and 1000", http.StatusBadRequest)
			return
		}

		filter := &dto.HistoryFilter{
			Camera: chi.URLParam(r, "camera"),
			Limit:  limit,
		}

		var err error
		if filter.After, err = parseTime(q.Get("after")); err != nil {
			http.Error(w, "Invalid after: "+err.Error(), http.StatusBadRequest)
			return
		}
		if filter.Before, err = parseTime(q.Get("before")); err != nil {
			http.Error(w, "Invalid before: "+err.Error(), http.StatusBadRequest)
			return
		}

		records, err := snapshotRepo.ListByCamera(filter)
		if err != nil {
			logger.Error("Error querying snapshot history: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, records, logger)
	}
}

// HealthHandler reports liveness.
func HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}, logger *logger.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Error encoding JSON response: %v", err)
	}
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return -1
	}
	return v
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}
