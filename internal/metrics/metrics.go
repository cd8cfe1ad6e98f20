package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"parkingserver/internal/dto"
)

// Metrics holds the application's Prometheus collectors on a private registry.
type Metrics struct {
	FramesProcessed     *prometheus.CounterVec
	FramesFailed        *prometheus.CounterVec
	DetectionsDropped   *prometheus.CounterVec
	DetectionsTruncated *prometheus.CounterVec
	SlotsCreated        *prometheus.CounterVec
	PublishRequests     *prometheus.CounterVec
	FrameDuration       prometheus.Histogram

	slotsFree     *prometheus.GaugeVec
	slotsOccupied *prometheus.GaugeVec
	slotsTotal    *prometheus.GaugeVec

	registry *prometheus.Registry
}

// New creates a Metrics instance with all collectors registered.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		FramesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "parking_frames_processed_total",
			Help: "Frames run through the slot registry",
		}, []string{"camera"}),
		FramesFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "parking_frames_failed_total",
			Help: "Frames skipped because detection failed",
		}, []string{"camera"}),
		DetectionsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "parking_detections_dropped_total",
			Help: "Malformed detections dropped before matching",
		}, []string{"camera"}),
		DetectionsTruncated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "parking_detections_truncated_total",
			Help: "Detections ignored because the per-frame capacity was exceeded",
		}, []string{"camera"}),
		SlotsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "parking_slots_created_total",
			Help: "Slots created by unmatched detections",
		}, []string{"camera"}),
		PublishRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "parking_publish_requests_total",
			Help: "Outbound status requests by result",
		}, []string{"camera", "result"}),
		FrameDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "parking_frame_duration_seconds",
			Help:    "Time spent on one frame including detection",
			Buckets: prometheus.DefBuckets,
		}),

		slotsFree: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "parking_slots_free",
			Help: "Free slots per camera",
		}, []string{"camera"}),
		slotsOccupied: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "parking_slots_occupied",
			Help: "Occupied slots per camera",
		}, []string{"camera"}),
		slotsTotal: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "parking_slots_total",
			Help: "Known slots per camera",
		}, []string{"camera"}),
	}

	m.registry.MustRegister(
		m.FramesProcessed,
		m.FramesFailed,
		m.DetectionsDropped,
		m.DetectionsTruncated,
		m.SlotsCreated,
		m.PublishRequests,
		m.FrameDuration,
		m.slotsFree,
		m.slotsOccupied,
		m.slotsTotal,
	)

	return m
}

// ObserveSnapshot updates the per-camera occupancy gauges.
func (m *Metrics) ObserveSnapshot(snap dto.StatusSnapshot) {
	m.slotsFree.WithLabelValues(snap.Camera).Set(float64(snap.FreeCount))
	m.slotsOccupied.WithLabelValues(snap.Camera).Set(float64(snap.OccupiedCount))
	m.slotsTotal.WithLabelValues(snap.Camera).Set(float64(snap.TotalCount))
}

// PublishResult counts one outbound request.
func (m *Metrics) PublishResult(camera string, ok bool) {
	result := "success"
	if !ok {
		result = "failure"
	}
	m.PublishRequests.WithLabelValues(camera, result).Inc()
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the Prometheus HTTP handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
