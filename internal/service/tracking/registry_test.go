package tracking

import (
	"fmt"
	"sync"
	"testing"

	"parkingserver/internal/model"
)

func det(b model.Box, status model.Status) model.Detection {
	return model.Detection{Box: b, Status: status}
}

// row lays out n non-overlapping 10x10 boxes.
func row(n int, status model.Status) []model.Detection {
	out := make([]model.Detection, n)
	for i := range out {
		x := float64(i * 20)
		out[i] = det(box(x, 0, x+10, 10), status)
	}
	return out
}

func TestRegistry_EmptyRegistryNumbersInArrivalOrder(t *testing.T) {
	reg := NewRegistry(Options{})
	detections := []model.Detection{
		det(box(0, 0, 10, 10), model.StatusFree),
		det(box(20, 0, 30, 10), model.StatusOccupied),
		det(box(40, 0, 50, 10), model.StatusFree),
	}

	res := reg.Update("cam1", detections)

	if len(res.Slots) != 3 {
		t.Fatalf("Expected 3 slots, got %d", len(res.Slots))
	}
	for i, slot := range res.Slots {
		if slot.Number != i+1 {
			t.Errorf("Slot %d: expected number %d, got %d", i, i+1, slot.Number)
		}
		if slot.Status != detections[i].Status {
			t.Errorf("Slot %d: expected status %s, got %s", i, detections[i].Status, slot.Status)
		}
		if slot.Box != detections[i].Box {
			t.Errorf("Slot %d: expected box %v, got %v", i, detections[i].Box, slot.Box)
		}
	}
	if len(res.Created) != 3 || res.Matched != 0 {
		t.Errorf("Expected 3 created and 0 matched, got %v and %d", res.Created, res.Matched)
	}
}

func TestRegistry_MatchUpdatesInPlace(t *testing.T) {
	reg := NewRegistry(Options{})
	reg.Update("cam1", []model.Detection{det(box(0, 0, 10, 10), model.StatusFree)})

	res := reg.Update("cam1", []model.Detection{det(box(1, 1, 11, 11), model.StatusOccupied)})

	if len(res.Slots) != 1 {
		t.Fatalf("Expected 1 slot, got %d", len(res.Slots))
	}
	slot := res.Slots[0]
	if slot.Number != 1 {
		t.Errorf("Expected slot number 1, got %d", slot.Number)
	}
	if slot.Status != model.StatusOccupied {
		t.Errorf("Expected status OCCUPIED, got %s", slot.Status)
	}
	if slot.Box != box(1, 1, 11, 11) {
		t.Errorf("Expected coordinates to follow the detection, got %v", slot.Box)
	}
	if res.Matched != 1 || len(res.Created) != 0 {
		t.Errorf("Expected 1 match and no new slots, got %d and %v", res.Matched, res.Created)
	}
}

func TestRegistry_IdentityStableUnderJitter(t *testing.T) {
	reg := NewRegistry(Options{})
	reg.Update("cam1", []model.Detection{
		det(box(10, 10, 110, 60), model.StatusFree),
		det(box(200, 10, 300, 60), model.StatusFree),
	})

	for frame := 1; frame <= 20; frame++ {
		jitter := float64(frame%3) - 1
		// Reverse arrival order to show numbering does not follow position in the frame.
		res := reg.Update("cam1", []model.Detection{
			det(box(200+jitter, 10+jitter, 300+jitter, 60+jitter), model.StatusOccupied),
			det(box(10+jitter, 10, 110+jitter, 60), model.StatusFree),
		})

		if len(res.Slots) != 2 {
			t.Fatalf("Frame %d: expected 2 slots, got %d", frame, len(res.Slots))
		}
		if res.Slots[0].Box.Left > 20 || res.Slots[1].Box.Left < 190 {
			t.Fatalf("Frame %d: slot identity drifted: %+v", frame, res.Slots)
		}
		if res.Slots[1].Status != model.StatusOccupied {
			t.Errorf("Frame %d: expected slot 2 occupied, got %s", frame, res.Slots[1].Status)
		}
	}
}

func TestRegistry_ThresholdIsStrict(t *testing.T) {
	reg := NewRegistry(Options{MatchThreshold: 0.5})
	reg.Update("cam1", []model.Detection{det(box(0, 0, 10, 10), model.StatusFree)})

	// Overlap of 1/3: below the threshold, so a second slot is created.
	res := reg.Update("cam1", []model.Detection{det(box(5, 0, 15, 10), model.StatusFree)})
	if len(res.Slots) != 2 {
		t.Errorf("Expected 2 slots, got %d", len(res.Slots))
	}
}

func TestRegistry_FirstMatchWins(t *testing.T) {
	reg := NewRegistry(Options{MatchThreshold: 0.3})
	reg.Update("cam1", []model.Detection{
		det(box(0, 0, 10, 10), model.StatusFree),
		det(box(6, 0, 16, 10), model.StatusFree),
	})
	before, _ := reg.Slots("cam1")
	if len(before) != 2 {
		t.Fatalf("Expected 2 slots to be seeded, got %d", len(before))
	}

	// Overlaps both slots above 0.3; slot 2 is the closer fit but slot 1 comes first.
	res := reg.Update("cam1", []model.Detection{det(box(4, 0, 14, 10), model.StatusOccupied)})

	if res.Slots[0].Status != model.StatusOccupied {
		t.Errorf("Expected slot 1 to be claimed, got %+v", res.Slots)
	}
	if res.Slots[1].Status != model.StatusFree {
		t.Errorf("Expected slot 2 untouched, got %+v", res.Slots[1])
	}
}

func TestRegistry_SameFrameDetectionCanMatchNewSlot(t *testing.T) {
	reg := NewRegistry(Options{})
	res := reg.Update("cam1", []model.Detection{
		det(box(0, 0, 10, 10), model.StatusFree),
		det(box(0, 0, 10, 10), model.StatusOccupied),
	})

	if len(res.Slots) != 1 {
		t.Fatalf("Expected duplicate detection to reuse the slot, got %d slots", len(res.Slots))
	}
	if res.Slots[0].Status != model.StatusOccupied {
		t.Errorf("Expected last writer to win, got %s", res.Slots[0].Status)
	}
}

func TestRegistry_CapacityTruncation(t *testing.T) {
	reg := NewRegistry(Options{})
	detections := row(60, model.StatusFree)
	detections[57].Status = model.StatusOccupied

	res := reg.Update("cam1", detections)

	if len(res.Slots) != DefaultCapacity {
		t.Fatalf("Expected %d slots, got %d", DefaultCapacity, len(res.Slots))
	}
	if res.Truncated != 5 {
		t.Errorf("Expected 5 truncated detections, got %d", res.Truncated)
	}
	for i, slot := range res.Slots {
		if slot.Box != detections[i].Box {
			t.Errorf("Slot %d: expected box %v, got %v", slot.Number, detections[i].Box, slot.Box)
		}
	}

	// The next frame starts from scratch: truncation does not carry over.
	res = reg.Update("cam1", detections[55:])
	if len(res.Slots) != 60 {
		t.Errorf("Expected overflow detections to be accepted in a later frame, got %d slots", len(res.Slots))
	}
}

func TestRegistry_DropsMalformedDetections(t *testing.T) {
	reg := NewRegistry(Options{})
	res := reg.Update("cam1", []model.Detection{
		det(box(0, 0, 0, 10), model.StatusFree),
		det(box(10, 10, 5, 20), model.StatusFree),
		det(box(-5, 0, 10, 10), model.StatusFree),
		det(box(0, 0, 10, 10), model.Status("MAYBE")),
		det(box(30, 0, 40, 10), model.StatusOccupied),
	})

	if res.Dropped != 4 {
		t.Errorf("Expected 4 dropped detections, got %d", res.Dropped)
	}
	if len(res.Slots) != 1 || res.Slots[0].Number != 1 {
		t.Errorf("Expected a single slot numbered 1, got %+v", res.Slots)
	}
}

func TestRegistry_UnmatchedSlotsPersist(t *testing.T) {
	reg := NewRegistry(Options{})
	reg.Update("cam1", row(3, model.StatusOccupied))

	res := reg.Update("cam1", nil)
	if len(res.Slots) != 3 {
		t.Fatalf("Expected 3 slots to persist, got %d", len(res.Slots))
	}
	for _, slot := range res.Slots {
		if slot.Status != model.StatusOccupied {
			t.Errorf("Slot %d: expected last known status, got %s", slot.Number, slot.Status)
		}
	}
}

func TestRegistry_CamerasAreIsolated(t *testing.T) {
	reg := NewRegistry(Options{})
	reg.Update("cam1", row(2, model.StatusFree))
	reg.Update("cam2", row(4, model.StatusFree))

	s1, _ := reg.Slots("cam1")
	s2, _ := reg.Slots("cam2")
	if len(s1) != 2 || len(s2) != 4 {
		t.Errorf("Expected 2 and 4 slots, got %d and %d", len(s1), len(s2))
	}

	if _, ok := reg.Slots("cam3"); ok {
		t.Error("Unknown camera should not be reported")
	}

	cameras := reg.Cameras()
	if len(cameras) != 2 || cameras[0] != "cam1" || cameras[1] != "cam2" {
		t.Errorf("Expected [cam1 cam2], got %v", cameras)
	}
}

func TestRegistry_ResultIsACopy(t *testing.T) {
	reg := NewRegistry(Options{})
	res := reg.Update("cam1", row(1, model.StatusFree))
	res.Slots[0].Status = model.StatusOccupied

	slots, _ := reg.Slots("cam1")
	if slots[0].Status != model.StatusFree {
		t.Error("Mutating an UpdateResult must not change registry state")
	}
}

func TestRegistry_ConcurrentCameras(t *testing.T) {
	reg := NewRegistry(Options{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			camera := fmt.Sprintf("cam%d", idx)
			for frame := 0; frame < 50; frame++ {
				reg.Update(camera, row(5, model.StatusFree))
			}
		}(i)
	}
	wg.Wait()

	for _, camera := range reg.Cameras() {
		slots, _ := reg.Slots(camera)
		if len(slots) != 5 {
			t.Errorf("Camera %s: expected 5 slots, got %d", camera, len(slots))
		}
	}
}
