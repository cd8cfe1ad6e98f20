package dto

import "time"

// HistoryFilter narrows the stored snapshot history of a camera.
type HistoryFilter struct {
	Camera string
	After  time.Time
	Before time.Time
	Limit  int
}
