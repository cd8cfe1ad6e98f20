package model

import "time"

// FrameRecord represents an annotated frame written to disk.
type FrameRecord struct {
	ID            int64     `json:"id"`
	Filename      string    `json:"filename"`
	Camera        string    `json:"camera"`
	Timestamp     time.Time `json:"timestamp"`
	FilePath      string    `json:"filepath"`
	FileSize      int64     `json:"filesize"`
	FreeCount     int       `json:"free_count"`
	OccupiedCount int       `json:"occupied_count"`
}

// SnapshotRecord is a stored occupancy snapshot of one camera.
type SnapshotRecord struct {
	ID            int64     `json:"id"`
	Camera        string    `json:"camera"`
	FreeCount     int       `json:"free_count"`
	OccupiedCount int       `json:"occupied_count"`
	TotalCount    int       `json:"total_count"`
	Slots         []Slot    `json:"slots,omitempty"`
	TakenAt       time.Time `json:"taken_at"`
}
