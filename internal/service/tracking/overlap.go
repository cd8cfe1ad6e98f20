package tracking

import (
	"math"

	"parkingserver/internal/model"
)

// iouEpsilon keeps the ratio defined for degenerate boxes.
const iouEpsilon = 1e-6

// IoU returns the intersection-over-union of two boxes in [0,1].
func IoU(a, b model.Box) float64 {
	left := math.Max(a.Left, b.Left)
	top := math.Max(a.Top, b.Top)
	right := math.Min(a.Right, b.Right)
	bottom := math.Min(a.Bottom, b.Bottom)

	inter := math.Max(0, right-left) * math.Max(0, bottom-top)
	if inter <= 0 {
		return 0
	}

	union := a.Area() + b.Area() - inter
	return inter / (union + iouEpsilon)
}
