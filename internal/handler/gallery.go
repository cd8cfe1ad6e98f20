package handler

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"parkingserver/internal/config"
	"parkingserver/internal/logger"
	"parkingserver/internal/repository"
)

// ListFramesHandler returns the stored overlay frames of a camera.
func ListFramesHandler(frameRepo repository.FrameRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := atoiDefault(r.URL.Query().Get("limit"), 24)
		if limit <= 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}

		frames, err := frameRepo.ListByCamera(chi.URLParam(r, "camera"), limit)
		if err != nil {
			logger.Error("Error querying frames from database: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, frames, logger)
	}
}

// ViewFrameHandler serves one overlay image from the overlay directory.
func ViewFrameHandler(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filename := filepath.Base(chi.URLParam(r, "filename"))
		if filename == "." || filename == string(filepath.Separator) {
			http.Error(w, "Filename required", http.StatusBadRequest)
			return
		}

		filePath := filepath.Join(cfg.OverlayDirectory, filename)
		if _, err := os.Stat(filePath); os.IsNotExist(err) {
			http.NotFound(w, r)
			return
		}

		w.Header().Set("Content-Type", "image/jpeg")
		http.ServeFile(w, r, filePath)
	}
}

// DeleteFrameHandler removes an overlay image from disk and database.
func DeleteFrameHandler(cfg *config.Config, logger *logger.Logger, frameRepo repository.FrameRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filename := filepath.Base(chi.URLParam(r, "filename"))
		if filename == "." || filename == string(filepath.Separator) {
			http.Error(w, "Filename required", http.StatusBadRequest)
			return
		}

		filePath := filepath.Join(cfg.OverlayDirectory, filename)
		if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
			logger.Error("Failed to delete file %s: %v", filePath, err)
		}

		if err := frameRepo.DeleteByFilename(filename); err != nil {
			logger.Error("Failed to delete from database: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		logger.Info("Deleted frame: %s", filename)
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "filename": filename}, logger)
	}
}
