package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"parkingserver/internal/config"
	"parkingserver/internal/dto"
	"parkingserver/internal/logger"
	"parkingserver/internal/metrics"
	"parkingserver/internal/model"
	"parkingserver/internal/repository"
	"parkingserver/internal/service/source"
	"parkingserver/internal/service/tracking"
)

// Detector turns an encoded frame into slot detections.
type Detector interface {
	DetectAndClassify(ctx context.Context, image []byte) ([]model.Detection, error)
}

// Publisher delivers snapshots downstream without blocking the caller.
type Publisher interface {
	Publish(camera string, snap dto.StatusSnapshot)
}

// Broadcaster pushes snapshots to live viewers.
type Broadcaster interface {
	BroadcastSnapshot(snap dto.StatusSnapshot)
}

// Renderer draws the slot overlay onto a frame.
type Renderer interface {
	DrawSlots(image []byte, snap dto.StatusSnapshot) ([]byte, error)
}

// FrameBuffer keeps annotated frames until they are flushed to disk.
type FrameBuffer interface {
	AddFrame(data []byte, camera string, snap dto.StatusSnapshot) bool
}

// Manager drives frames through detection, slot tracking and publishing.
// Frames are handled one at a time in source order.
type Manager struct {
	detector  Detector
	registry  *tracking.Registry
	publisher Publisher
	logger    *logger.Logger

	hub     Broadcaster
	history repository.SnapshotRepository
	metrics *metrics.Metrics

	renderer      Renderer
	buffer        FrameBuffer
	frameCounters map[string]int // Licznik klatek dla każdej kamery
	overlayEvery  int            // Renderuj podgląd co N-tą klatkę
	frameDelay    time.Duration

	frameCounterMu sync.Mutex
}

func NewManager(detector Detector, registry *tracking.Registry, publisher Publisher, config *config.Config, logger *logger.Logger) *Manager {
	return &Manager{
		detector:      detector,
		registry:      registry,
		publisher:     publisher,
		logger:        logger,
		frameCounters: make(map[string]int),
		overlayEvery:  config.OverlayInterval,
		frameDelay:    config.FrameDelay,
	}
}

// WithHub streams every snapshot to live viewers.
func (m *Manager) WithHub(hub Broadcaster) *Manager {
	m.hub = hub
	return m
}

// WithHistory records every snapshot in repo.
func (m *Manager) WithHistory(repo repository.SnapshotRepository) *Manager {
	m.history = repo
	return m
}

func (m *Manager) WithMetrics(metrics *metrics.Metrics) *Manager {
	m.metrics = metrics
	return m
}

// WithOverlays renders every Nth frame per camera and buffers the result.
func (m *Manager) WithOverlays(renderer Renderer, buffer FrameBuffer) *Manager {
	m.renderer = renderer
	m.buffer = buffer
	return m
}

// Registry returns the slot registry the manager updates.
func (m *Manager) Registry() *tracking.Registry {
	return m.registry
}

// Run processes frames from src until it is exhausted or ctx is cancelled.
// Both end the run cleanly; any other source error is returned.
func (m *Manager) Run(ctx context.Context, src source.FrameSource) error {
	m.logger.Info("🎬 Manager started - overlay every %d frame(s)", m.overlayEvery)

	processed := 0
	for {
		if ctx.Err() != nil {
			m.logger.Info("🛑 Frame loop stopped after %d frame(s)", processed)
			return nil
		}

		frame, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			m.logger.Info("Frame source exhausted after %d frame(s)", processed)
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				m.logger.Info("🛑 Frame loop stopped after %d frame(s)", processed)
				return nil
			}
			return fmt.Errorf("frame source failed: %w", err)
		}

		if _, err := m.ProcessFrame(ctx, frame); err == nil {
			processed++
		}

		if m.frameDelay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(m.frameDelay):
			}
		}
	}
}

// ProcessFrame runs a single frame through the pipeline and returns the
// camera's snapshot. A detector error skips the frame and leaves the
// registry untouched.
func (m *Manager) ProcessFrame(ctx context.Context, frame source.Frame) (dto.StatusSnapshot, error) {
	start := time.Now()

	detections, err := m.detector.DetectAndClassify(ctx, frame.Data)
	if err != nil {
		m.logger.Warning("Skipping frame %s of camera %s: %v", frame.Name, frame.Camera, err)
		if m.metrics != nil {
			m.metrics.FramesFailed.WithLabelValues(frame.Camera).Inc()
		}
		return dto.StatusSnapshot{}, err
	}

	result := m.registry.Update(frame.Camera, detections)
	snap := tracking.Summarize(frame.Camera, result.Slots, time.Now())

	if result.Truncated > 0 {
		m.logger.Debug("Camera %s: ignored %d detection(s) over capacity", frame.Camera, result.Truncated)
	}
	if result.Dropped > 0 {
		m.logger.Debug("Camera %s: dropped %d malformed detection(s)", frame.Camera, result.Dropped)
	}
	if len(result.Created) > 0 {
		m.logger.Info("Camera %s: new slot(s) %v", frame.Camera, result.Created)
	}
	m.logger.Info("📹 Camera %s: Total %d | Free %d | Occupied %d",
		frame.Camera, snap.TotalCount, snap.FreeCount, snap.OccupiedCount)

	m.publisher.Publish(frame.Camera, snap)

	if m.hub != nil {
		m.hub.BroadcastSnapshot(snap)
	}

	if m.history != nil {
		if _, err := m.history.Insert(snap); err != nil {
			m.logger.Error("Failed to record snapshot for camera %s: %v", frame.Camera, err)
		}
	}

	if m.shouldRenderOverlay(frame.Camera) {
		m.renderOverlay(frame, snap)
	}

	if m.metrics != nil {
		m.metrics.FramesProcessed.WithLabelValues(frame.Camera).Inc()
		m.metrics.DetectionsDropped.WithLabelValues(frame.Camera).Add(float64(result.Dropped))
		m.metrics.DetectionsTruncated.WithLabelValues(frame.Camera).Add(float64(result.Truncated))
		m.metrics.SlotsCreated.WithLabelValues(frame.Camera).Add(float64(len(result.Created)))
		m.metrics.ObserveSnapshot(snap)
		m.metrics.FrameDuration.Observe(time.Since(start).Seconds())
	}

	return snap, nil
}

// shouldRenderOverlay counts frames per camera and reports every Nth one.
func (m *Manager) shouldRenderOverlay(camera string) bool {
	if m.renderer == nil || m.buffer == nil || m.overlayEvery <= 0 {
		return false
	}

	m.frameCounterMu.Lock()
	defer m.frameCounterMu.Unlock()

	m.frameCounters[camera]++
	if m.frameCounters[camera]%m.overlayEvery != 0 {
		return false
	}
	m.frameCounters[camera] = 0
	return true
}

func (m *Manager) renderOverlay(frame source.Frame, snap dto.StatusSnapshot) {
	annotated, err := m.renderer.DrawSlots(frame.Data, snap)
	if err != nil {
		m.logger.Error("Failed to draw slots for camera %s: %v", frame.Camera, err)
		return
	}

	if !m.buffer.AddFrame(annotated, frame.Camera, snap) {
		m.logger.Debug("Overlay buffer full for camera %s", frame.Camera)
	}
}
