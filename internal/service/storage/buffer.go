package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"parkingserver/internal/config"
	"parkingserver/internal/dto"
	"parkingserver/internal/logger"
	"parkingserver/internal/model"
	"parkingserver/internal/repository"
)

const (
	// DefaultBufferLimit limits how many frames per camera are buffered before flushing.
	DefaultBufferLimit = 10
	// DefaultFlushInterval defines how often buffered frames are flushed to disk.
	DefaultFlushInterval = 30 * time.Second

	timestampLayout = "2006-01-02_15-04_05.000"
)

// BufferService buffers annotated frames in memory and periodically flushes them to disk.
type BufferService struct {
	framesDir     string
	frames        []dto.BufferedFrame
	bufferCount   map[string]int
	limit         int
	flushInterval time.Duration
	mu            sync.Mutex
	logger        *logger.Logger
	frameRepo     repository.FrameRepository
}

// NewBufferService creates a new BufferService. frameRepo may be nil.
func NewBufferService(config *config.Config, logger *logger.Logger, frameRepo repository.FrameRepository) *BufferService {
	limit := config.OverlayBufferLimit
	if limit <= 0 {
		limit = DefaultBufferLimit
	}
	interval := config.OverlayFlushInterval
	if interval <= 0 {
		interval = DefaultFlushInterval
	}

	return &BufferService{
		framesDir:     config.OverlayDirectory,
		frames:        make([]dto.BufferedFrame, 0),
		bufferCount:   make(map[string]int),
		limit:         limit,
		flushInterval: interval,
		logger:        logger,
		frameRepo:     frameRepo,
	}
}

// Run flushes frames on every tick until ctx is done, then flushes once more.
func (s *BufferService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.FlushFrames()
			return
		case <-ticker.C:
			s.FlushFrames()
		}
	}
}

// AddFrame appends a frame to the in-memory buffer for a given camera.
// Frames beyond the per-camera limit are dropped until the next flush.
func (s *BufferService) AddFrame(data []byte, camera string, snap dto.StatusSnapshot) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bufferCount[camera] >= s.limit {
		return false
	}

	s.frames = append(s.frames, dto.BufferedFrame{
		Timestamp: time.Now().Format(timestampLayout),
		Camera:    camera,
		Snapshot:  snap,
		Data:      data,
	})
	s.bufferCount[camera]++
	s.logger.Debug("Buffer size for camera %s: %d/%d", camera, s.bufferCount[camera], s.limit)
	return true
}

// Pending returns how many frames wait to be flushed.
func (s *BufferService) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

// FlushFrames writes buffered frames to disk and resets the buffer and per-camera counters.
func (s *BufferService) FlushFrames() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.frames) == 0 {
		return 0
	}

	if err := os.MkdirAll(s.framesDir, 0755); err != nil {
		s.logger.Error("Error creating directory: %v", err)
		return 0
	}

	savedCount := 0
	for _, frame := range s.frames {
		filename := fmt.Sprintf("%s_%s_free%d_occ%d.jpg",
			frame.Timestamp, safeName(frame.Camera), frame.Snapshot.FreeCount, frame.Snapshot.OccupiedCount)
		fullpath := filepath.Join(s.framesDir, filename)

		if err := os.WriteFile(fullpath, frame.Data, 0644); err != nil {
			s.logger.Error("Error saving frame %s: %v", filename, err)
			continue
		}

		if s.frameRepo != nil {
			ts, err := time.ParseInLocation(timestampLayout, frame.Timestamp, time.Local)
			if err != nil {
				ts = time.Now()
			}

			record := &model.FrameRecord{
				Filename:      filename,
				Camera:        frame.Camera,
				Timestamp:     ts,
				FilePath:      fullpath,
				FileSize:      int64(len(frame.Data)),
				FreeCount:     frame.Snapshot.FreeCount,
				OccupiedCount: frame.Snapshot.OccupiedCount,
			}
			if _, err := s.frameRepo.Insert(record); err != nil {
				s.logger.Error("Error saving frame to database %s: %v", filename, err)
				continue
			}
		}

		savedCount++
	}

	s.logger.Info("Flushed %d frames to disk", savedCount)
	s.frames = s.frames[:0]
	s.bufferCount = make(map[string]int)
	return savedCount
}

func safeName(camera string) string {
	return strings.NewReplacer("/", "_", "\\", "_", " ", "_").Replace(camera)
}
