package source

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"parkingserver/internal/config"
	"parkingserver/internal/logger"
)

type frameFile struct {
	camera string
	path   string
}

// DirectorySource replays images stored as <root>/<day>/<camera>/<image>.
// Days, cameras and images are visited in lexical order. Cameras with their
// own source_dir in the cameras file are replayed after the day folders.
type DirectorySource struct {
	files  []frameFile
	next   int
	logger *logger.Logger
}

// NewDirectorySource scans root and the camera overrides once. When cameras
// is non-empty only those camera folders are replayed.
func NewDirectorySource(root string, cameras []config.Camera, logger *logger.Logger) (*DirectorySource, error) {
	known := make(map[string]bool, len(cameras))
	for _, cam := range cameras {
		if cam.SourceDir == "" {
			known[cam.ID] = true
		}
	}

	var files []frameFile

	days, err := readDirs(root)
	if err != nil && !(os.IsNotExist(err) && len(cameras) > 0) {
		return nil, fmt.Errorf("failed to read source directory: %w", err)
	}

	for _, day := range days {
		dayPath := filepath.Join(root, day)
		cams, err := readDirs(dayPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read day folder %s: %w", day, err)
		}

		for _, cam := range cams {
			if len(cameras) > 0 && !known[cam] {
				logger.Debug("Skipping unconfigured camera folder %s/%s", day, cam)
				continue
			}
			images, err := readImages(filepath.Join(dayPath, cam))
			if err != nil {
				return nil, fmt.Errorf("failed to read camera folder %s/%s: %w", day, cam, err)
			}
			for _, img := range images {
				files = append(files, frameFile{camera: cam, path: img})
			}
		}
	}

	for _, cam := range cameras {
		if cam.SourceDir == "" {
			continue
		}
		images, err := readImages(cam.SourceDir)
		if err != nil {
			return nil, fmt.Errorf("failed to read source_dir of camera %s: %w", cam.ID, err)
		}
		for _, img := range images {
			files = append(files, frameFile{camera: cam.ID, path: img})
		}
	}

	logger.Info("Directory source found %d frames", len(files))
	return &DirectorySource{files: files, logger: logger}, nil
}

// Len returns the number of frames found by the scan.
func (s *DirectorySource) Len() int {
	return len(s.files)
}

// Next returns the next readable image. Unreadable files are skipped.
func (s *DirectorySource) Next(ctx context.Context) (Frame, error) {
	for s.next < len(s.files) {
		if err := ctx.Err(); err != nil {
			return Frame{}, err
		}

		f := s.files[s.next]
		s.next++

		data, err := os.ReadFile(f.path)
		if err != nil {
			s.logger.Warning("Skipping unreadable frame %s: %v", f.path, err)
			continue
		}

		frame := Frame{
			Camera: f.camera,
			Name:   filepath.Base(f.path),
			Data:   data,
		}
		if info, err := os.Stat(f.path); err == nil {
			frame.CapturedAt = info.ModTime()
		}
		return frame, nil
	}
	return Frame{}, io.EOF
}

// readDirs lists the sub-directories of dir in lexical order.
func readDirs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// readImages lists .jpg and .png files of dir in lexical order.
func readImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".jpg" && ext != ".png" {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}
