package model

import (
	"fmt"
	"math"
	"strings"
)

// Status is the occupancy label of a parking slot.
type Status string

const (
	StatusFree     Status = "FREE"
	StatusOccupied Status = "OCCUPIED"
)

// ParseStatus maps a classifier label onto a Status.
func ParseStatus(label string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "free", "empty", "vacant", "0":
		return StatusFree, nil
	case "occupied", "busy", "taken", "1":
		return StatusOccupied, nil
	default:
		return "", fmt.Errorf("unknown occupancy label %q", label)
	}
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	return s == StatusFree || s == StatusOccupied
}

// Box is a rectangle in image-pixel coordinates.
type Box struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
}

func (b Box) Width() float64  { return b.Right - b.Left }
func (b Box) Height() float64 { return b.Bottom - b.Top }

// Area returns the box area, or 0 for inverted boxes.
func (b Box) Area() float64 {
	w, h := b.Width(), b.Height()
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// Valid reports whether the box is finite, starts inside the image origin and
// has a positive area.
func (b Box) Valid() bool {
	for _, v := range [...]float64{b.Left, b.Top, b.Right, b.Bottom} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	if b.Left < 0 || b.Top < 0 {
		return false
	}
	return b.Left < b.Right && b.Top < b.Bottom
}

// Clip clamps the box into an image of the given size.
func (b Box) Clip(width, height int) Box {
	maxX, maxY := float64(width-1), float64(height-1)
	return Box{
		Left:   math.Max(0, b.Left),
		Top:    math.Max(0, b.Top),
		Right:  math.Min(maxX, b.Right),
		Bottom: math.Min(maxY, b.Bottom),
	}
}

// Detection is one detector box plus the classifier label for one frame.
type Detection struct {
	Box        Box      `json:"box"`
	Status     Status   `json:"status"`
	Confidence *float64 `json:"confidence,omitempty"`
}
