package tracking

import (
	"time"

	"parkingserver/internal/dto"
	"parkingserver/internal/model"
)

// Summarize counts free and occupied slots.
func Summarize(camera string, slots []model.Slot, takenAt time.Time) dto.StatusSnapshot {
	snap := dto.StatusSnapshot{
		Camera:     camera,
		Slots:      slots,
		TotalCount: len(slots),
		TakenAt:    takenAt,
	}
	if snap.Slots == nil {
		snap.Slots = []model.Slot{}
	}

	for _, slot := range slots {
		switch slot.Status {
		case model.StatusFree:
			snap.FreeCount++
		case model.StatusOccupied:
			snap.OccupiedCount++
		}
	}
	return snap
}

// Aggregator derives status snapshots from a registry without mutating it.
type Aggregator struct {
	registry *Registry
	now      func() time.Time
}

func NewAggregator(registry *Registry) *Aggregator {
	return &Aggregator{registry: registry, now: time.Now}
}

// Snapshot summarizes a camera. Unknown cameras yield an empty snapshot.
func (a *Aggregator) Snapshot(camera string) dto.StatusSnapshot {
	slots, _ := a.registry.Slots(camera)
	return Summarize(camera, slots, a.now())
}

// All summarizes every known camera.
func (a *Aggregator) All() []dto.StatusSnapshot {
	cameras := a.registry.Cameras()
	out := make([]dto.StatusSnapshot, 0, len(cameras))
	for _, camera := range cameras {
		out = append(out, a.Snapshot(camera))
	}
	return out
}

// Lookup summarizes a camera and reports whether it has been seen.
func (a *Aggregator) Lookup(camera string) (dto.StatusSnapshot, bool) {
	slots, ok := a.registry.Slots(camera)
	if !ok {
		return dto.StatusSnapshot{}, false
	}
	return Summarize(camera, slots, a.now()), true
}
