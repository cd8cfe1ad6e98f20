package dto

import (
	"time"

	"parkingserver/internal/model"
)

// StatusSnapshot is a read-only view of one camera's slots at a point in time.
type StatusSnapshot struct {
	Camera        string       `json:"camera"`
	Slots         []model.Slot `json:"slots"`
	FreeCount     int          `json:"free_count"`
	OccupiedCount int          `json:"occupied_count"`
	TotalCount    int          `json:"total_count"`
	TakenAt       time.Time    `json:"taken_at"`
}
