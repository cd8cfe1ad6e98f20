package route

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"parkingserver/internal/config"
	"parkingserver/internal/dto"
	"parkingserver/internal/logger"
	"parkingserver/internal/metrics"
	"parkingserver/internal/model"
	"parkingserver/internal/service/tracking"
	"parkingserver/internal/service/websocket"
)

type fakeSnapshots struct {
	lastFilter *dto.HistoryFilter
	records    []model.SnapshotRecord
}

func (f *fakeSnapshots) Insert(snap dto.StatusSnapshot) (int64, error) { return 1, nil }

func (f *fakeSnapshots) ListByCamera(filter *dto.HistoryFilter) ([]model.SnapshotRecord, error) {
	f.lastFilter = filter
	return f.records, nil
}

func (f *fakeSnapshots) Latest(camera string) (*model.SnapshotRecord, error) { return nil, nil }

func (f *fakeSnapshots) DeleteBefore(t time.Time) (int64, error) { return 0, nil }

type testServer struct {
	handler   http.Handler
	registry  *tracking.Registry
	snapshots *fakeSnapshots
	cfg       *config.Config
}

func newTestServer(t *testing.T, token string) *testServer {
	t.Helper()
	cfg := &config.Config{LogDirectory: t.TempDir(), APIToken: token}
	log := logger.Discard()
	reg := tracking.NewRegistry(tracking.Options{})
	snapshots := &fakeSnapshots{}

	h := SetupRoutes(cfg, log, tracking.NewAggregator(reg), websocket.NewHubService(log), snapshots, nil, metrics.New())
	return &testServer{handler: h, registry: reg, snapshots: snapshots, cfg: cfg}
}

func (s *testServer) get(path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func slotDetections(statuses ...model.Status) []model.Detection {
	dets := make([]model.Detection, len(statuses))
	for i, s := range statuses {
		x := float64(i * 20)
		dets[i] = model.Detection{Box: model.Box{Left: x, Top: 0, Right: x + 10, Bottom: 10}, Status: s}
	}
	return dets
}

func TestRoutes_Health(t *testing.T) {
	s := newTestServer(t, "secret")

	rec := s.get("/healthz")
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}
}

func TestRoutes_CameraSlots(t *testing.T) {
	s := newTestServer(t, "")
	s.registry.Update("cam1", slotDetections(model.StatusFree, model.StatusFree, model.StatusOccupied))

	rec := s.get("/api/cameras/cam1/slots")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var snap dto.StatusSnapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if snap.Camera != "cam1" || snap.FreeCount != 2 || snap.OccupiedCount != 1 || snap.TotalCount != 3 {
		t.Errorf("Unexpected snapshot: %+v", snap)
	}
	if len(snap.Slots) != 3 || snap.Slots[2].Number != 3 {
		t.Errorf("Unexpected slots: %+v", snap.Slots)
	}
}

func TestRoutes_UnknownCamera(t *testing.T) {
	s := newTestServer(t, "")

	if rec := s.get("/api/cameras/ghost/slots"); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", rec.Code)
	}
}

func TestRoutes_ListCameras(t *testing.T) {
	s := newTestServer(t, "")
	s.registry.Update("b", slotDetections(model.StatusFree))
	s.registry.Update("a", slotDetections(model.StatusOccupied, model.StatusOccupied))

	rec := s.get("/api/cameras")
	var snaps []dto.StatusSnapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snaps); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if len(snaps) != 2 || snaps[0].Camera != "a" || snaps[0].OccupiedCount != 2 {
		t.Errorf("Unexpected cameras: %+v", snaps)
	}
}

func TestRoutes_History(t *testing.T) {
	s := newTestServer(t, "")
	s.snapshots.records = []model.SnapshotRecord{{ID: 1, Camera: "cam1", FreeCount: 1, TotalCount: 1}}

	rec := s.get("/api/cameras/cam1/history?limit=5&after=2025-05-01T12:00:00Z")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	f := s.snapshots.lastFilter
	if f == nil || f.Camera != "cam1" || f.Limit != 5 || f.After.IsZero() {
		t.Errorf("Unexpected filter: %+v", f)
	}

	tests := []string{
		"/api/cameras/cam1/history?limit=0",
		"/api/cameras/cam1/history?limit=abc",
		"/api/cameras/cam1/history?before=yesterday",
	}
	for _, path := range tests {
		if rec := s.get(path); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", path, rec.Code)
		}
	}
}

func TestRoutes_Logs(t *testing.T) {
	s := newTestServer(t, "")
	os.WriteFile(filepath.Join(s.cfg.LogDirectory, "info.log"), []byte("hello log"), 0644)

	rec := s.get("/logs/info")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "hello log") {
		t.Errorf("Expected log contents, got %d %q", rec.Code, rec.Body.String())
	}
	if rec := s.get("/logs/warning"); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for missing file, got %d", rec.Code)
	}
	if rec := s.get("/logs/debug"); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown level, got %d", rec.Code)
	}
}

func TestRoutes_Metrics(t *testing.T) {
	s := newTestServer(t, "")

	rec := s.get("/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "parking_frame_duration_seconds") {
		t.Error("Expected parking metrics in exposition")
	}
}

func TestRoutes_TokenRequired(t *testing.T) {
	s := newTestServer(t, "secret")

	if rec := s.get("/api/cameras"); rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/cameras", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200 with token, got %d", rec.Code)
	}
}
