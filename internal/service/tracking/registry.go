package tracking

import (
	"sort"
	"sync"
	"time"

	"parkingserver/internal/model"
)

const (
	// DefaultCapacity bounds how many detections are considered per frame.
	DefaultCapacity = 55
	// DefaultMatchThreshold is the IoU a detection must exceed to claim a slot.
	DefaultMatchThreshold = 0.5
)

// Options tune slot matching. Zero values fall back to the defaults.
type Options struct {
	Capacity       int
	MatchThreshold float64
	// Now is used to stamp slot updates; tests may replace it.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Capacity <= 0 {
		o.Capacity = DefaultCapacity
	}
	if o.MatchThreshold <= 0 {
		o.MatchThreshold = DefaultMatchThreshold
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// UpdateResult carries the full slot list of a camera after one frame.
type UpdateResult struct {
	Camera    string
	Slots     []model.Slot
	Created   []int // slot numbers created by this frame
	Matched   int
	Dropped   int // malformed detections
	Truncated int // detections beyond the capacity
}

// CameraRegistry owns the ordered slots of a single camera.
type CameraRegistry struct {
	camera string
	opts   Options
	slots  []model.Slot
	mu     sync.Mutex
}

func newCameraRegistry(camera string, opts Options) *CameraRegistry {
	return &CameraRegistry{
		camera: camera,
		opts:   opts,
		slots:  make([]model.Slot, 0),
	}
}

// Update folds one frame of detections into the slot list.
//
// Detections are taken in arrival order. Each one claims the first slot, in
// registry order, whose IoU with it exceeds the match threshold; otherwise it
// becomes a new slot numbered after the last one. Slots that no detection
// claims keep their last known state.
func (c *CameraRegistry) Update(detections []model.Detection) UpdateResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := UpdateResult{Camera: c.camera}

	if len(detections) > c.opts.Capacity {
		result.Truncated = len(detections) - c.opts.Capacity
		detections = detections[:c.opts.Capacity]
	}

	now := c.opts.Now()
	for _, det := range detections {
		if !det.Box.Valid() || !det.Status.Valid() {
			result.Dropped++
			continue
		}

		if idx := c.match(det.Box); idx >= 0 {
			c.slots[idx].Box = det.Box
			c.slots[idx].Status = det.Status
			c.slots[idx].UpdatedAt = now
			result.Matched++
			continue
		}

		number := len(c.slots) + 1
		c.slots = append(c.slots, model.Slot{
			Number:    number,
			Box:       det.Box,
			Status:    det.Status,
			UpdatedAt: now,
		})
		result.Created = append(result.Created, number)
	}

	result.Slots = c.copySlots()
	return result
}

// match returns the index of the first slot overlapping box above the
// threshold, or -1.
func (c *CameraRegistry) match(box model.Box) int {
	for i := range c.slots {
		if IoU(box, c.slots[i].Box) > c.opts.MatchThreshold {
			return i
		}
	}
	return -1
}

// Slots returns a copy of the current slot list.
func (c *CameraRegistry) Slots() []model.Slot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.copySlots()
}

func (c *CameraRegistry) copySlots() []model.Slot {
	out := make([]model.Slot, len(c.slots))
	copy(out, c.slots)
	return out
}

// Registry maps camera identifiers to their slot registries. Camera
// registries are created on first use and live for the process lifetime.
type Registry struct {
	cameras map[string]*CameraRegistry
	opts    Options
	mu      sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry(opts Options) *Registry {
	return &Registry{
		cameras: make(map[string]*CameraRegistry),
		opts:    opts.withDefaults(),
	}
}

// Camera returns the registry of a camera, creating it if needed.
func (r *Registry) Camera(camera string) *CameraRegistry {
	r.mu.RLock()
	cr, exists := r.cameras[camera]
	r.mu.RUnlock()

	if exists {
		return cr
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if cr, exists := r.cameras[camera]; exists {
		return cr
	}

	cr = newCameraRegistry(camera, r.opts)
	r.cameras[camera] = cr
	return cr
}

// Update applies a frame of detections to the camera's slots.
func (r *Registry) Update(camera string, detections []model.Detection) UpdateResult {
	return r.Camera(camera).Update(detections)
}

// Slots returns the slots of a camera and whether the camera is known.
func (r *Registry) Slots(camera string) ([]model.Slot, bool) {
	r.mu.RLock()
	cr, exists := r.cameras[camera]
	r.mu.RUnlock()

	if !exists {
		return nil, false
	}
	return cr.Slots(), true
}

// Cameras lists the known camera identifiers in sorted order.
func (r *Registry) Cameras() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.cameras))
	for id := range r.cameras {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
