package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"parkingserver/internal/config"
	"parkingserver/internal/dto"
	"parkingserver/internal/logger"
	"parkingserver/internal/metrics"
)

// Publisher delivers status snapshots to the downstream consumer on
// background goroutines. Delivery is best effort: failures are logged and
// the next snapshot supersedes whatever was lost.
type Publisher struct {
	client        *http.Client
	url           string
	parkingSpotID string
	eventType     string
	batch         bool
	concurrency   int
	logger        *logger.Logger
	metrics       *metrics.Metrics

	wg sync.WaitGroup
}

// NewPublisher creates a Publisher from the publish settings. m may be nil.
func NewPublisher(cfg *config.Config, logger *logger.Logger, m *metrics.Metrics) *Publisher {
	concurrency := cfg.PublishConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	return &Publisher{
		client:        &http.Client{Timeout: cfg.PublishTimeout},
		url:           cfg.PublishURL,
		parkingSpotID: cfg.ParkingSpotID,
		eventType:     cfg.PublishEventType,
		batch:         cfg.PublishMode == config.PublishBatch,
		concurrency:   concurrency,
		logger:        logger,
		metrics:       m,
	}
}

// Publish schedules delivery of snap and returns immediately.
func (p *Publisher) Publish(camera string, snap dto.StatusSnapshot) {
	if p.url == "" || len(snap.Slots) == 0 {
		return
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		// In-flight deliveries are never cancelled; the client timeout bounds them.
		ctx := context.Background()
		if p.batch {
			p.sendSnapshot(ctx, camera, snap)
			return
		}
		p.sendSlots(ctx, camera, snap)
	}()
}

// Drain waits up to timeout for in-flight deliveries and reports whether
// they all finished.
func (p *Publisher) Drain(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// sendSlots posts one request per slot. A failed slot does not stop the others.
func (p *Publisher) sendSlots(ctx context.Context, camera string, snap dto.StatusSnapshot) {
	var g errgroup.Group
	g.SetLimit(p.concurrency)

	for _, slot := range snap.Slots {
		event := dto.SlotEvent{
			ParkingSpotID: p.parkingSpotID,
			CameraID:      camera,
			SlotNumber:    slot.Number,
			EventType:     p.eventType,
			Status:        string(slot.Status),
		}

		g.Go(func() error {
			if err := p.post(ctx, event); err != nil {
				p.logger.Error("Failed to post slot %d for camera %s: %v", event.SlotNumber, camera, err)
				p.observe(camera, false)
				return nil
			}
			p.logger.Debug("POST slot %d (%s) for camera %s", event.SlotNumber, event.Status, camera)
			p.observe(camera, true)
			return nil
		})
	}

	_ = g.Wait()
}

// sendSnapshot posts the whole slot list in one request.
func (p *Publisher) sendSnapshot(ctx context.Context, camera string, snap dto.StatusSnapshot) {
	event := dto.SnapshotEvent{
		ParkingSpotID: p.parkingSpotID,
		CameraID:      camera,
		BatchID:       uuid.NewString(),
		EventType:     p.eventType,
		Slots:         make([]dto.SlotEvent, 0, len(snap.Slots)),
		FreeCount:     snap.FreeCount,
		OccupiedCount: snap.OccupiedCount,
		TotalCount:    snap.TotalCount,
	}
	for _, slot := range snap.Slots {
		event.Slots = append(event.Slots, dto.SlotEvent{
			ParkingSpotID: p.parkingSpotID,
			SlotNumber:    slot.Number,
			EventType:     p.eventType,
			Status:        string(slot.Status),
		})
	}

	if err := p.post(ctx, event); err != nil {
		p.logger.Error("Failed to post snapshot %s for camera %s: %v", event.BatchID, camera, err)
		p.observe(camera, false)
		return
	}
	p.logger.Debug("POST snapshot %s with %d slots for camera %s", event.BatchID, len(event.Slots), camera)
	p.observe(camera, true)
}

func (p *Publisher) post(ctx context.Context, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

func (p *Publisher) observe(camera string, ok bool) {
	if p.metrics != nil {
		p.metrics.PublishResult(camera, ok)
	}
}
