package storage

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"parkingserver/internal/config"
	"parkingserver/internal/dto"
	"parkingserver/internal/logger"
	"parkingserver/internal/model"
)

type memFrameRepo struct {
	mu     sync.Mutex
	frames []model.FrameRecord
}

func (r *memFrameRepo) Insert(frame *model.FrameRecord) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, *frame)
	return int64(len(r.frames)), nil
}

func (r *memFrameRepo) GetByFilename(filename string) (*model.FrameRecord, error) {
	return nil, nil
}

func (r *memFrameRepo) ListByCamera(camera string, limit int) ([]model.FrameRecord, error) {
	return nil, nil
}

func (r *memFrameRepo) GetCameras() ([]string, error) {
	return nil, nil
}

func (r *memFrameRepo) DeleteByFilename(filename string) error {
	return nil
}

func newTestBuffer(t *testing.T, limit int, repo *memFrameRepo) (*BufferService, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "overlays")
	cfg := &config.Config{OverlayDirectory: dir, OverlayBufferLimit: limit}
	if repo == nil {
		return NewBufferService(cfg, logger.Discard(), nil), dir
	}
	return NewBufferService(cfg, logger.Discard(), repo), dir
}

func TestBufferService_LimitPerCamera(t *testing.T) {
	s, _ := newTestBuffer(t, 2, nil)

	for i := 0; i < 3; i++ {
		s.AddFrame([]byte("a"), "cam1", dto.StatusSnapshot{})
	}
	s.AddFrame([]byte("b"), "cam2", dto.StatusSnapshot{})

	if s.Pending() != 3 {
		t.Errorf("Expected 3 buffered frames, got %d", s.Pending())
	}
	if s.AddFrame([]byte("a"), "cam1", dto.StatusSnapshot{}) {
		t.Error("Expected cam1 to be full")
	}
}

func TestBufferService_Flush(t *testing.T) {
	repo := &memFrameRepo{}
	s, dir := newTestBuffer(t, 10, repo)

	snap := dto.StatusSnapshot{Camera: "lot/1", FreeCount: 4, OccupiedCount: 2, TotalCount: 6}
	s.AddFrame([]byte("jpeg-bytes"), "lot/1", snap)

	if saved := s.FlushFrames(); saved != 1 {
		t.Fatalf("Expected 1 saved frame, got %d", saved)
	}
	if s.Pending() != 0 {
		t.Errorf("Expected empty buffer after flush, got %d", s.Pending())
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("Failed to read overlay dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Expected 1 file, got %d", len(entries))
	}
	name := entries[0].Name()
	if !strings.Contains(name, "lot_1_free4_occ2") {
		t.Errorf("Unexpected filename %s", name)
	}

	if len(repo.frames) != 1 {
		t.Fatalf("Expected 1 frame record, got %d", len(repo.frames))
	}
	rec := repo.frames[0]
	if rec.Camera != "lot/1" || rec.FileSize != int64(len("jpeg-bytes")) || rec.FreeCount != 4 {
		t.Errorf("Unexpected frame record: %+v", rec)
	}

	// counters reset after flush
	if !s.AddFrame([]byte("x"), "lot/1", snap) {
		t.Error("Expected buffer to accept frames after flush")
	}
}

func TestBufferService_FlushEmpty(t *testing.T) {
	s, dir := newTestBuffer(t, 10, nil)

	if saved := s.FlushFrames(); saved != 0 {
		t.Errorf("Expected nothing saved, got %d", saved)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Error("Overlay directory should not be created for an empty flush")
	}
}
