package repository

import (
	"time"

	"parkingserver/internal/dto"
	"parkingserver/internal/model"
)

// SnapshotRepository stores the occupancy history of every camera.
// It is an audit trail only; slot identities are never restored from it.
type SnapshotRepository interface {
	// Create operations
	Insert(snap dto.StatusSnapshot) (int64, error)

	// Read operations
	ListByCamera(filter *dto.HistoryFilter) ([]model.SnapshotRecord, error)
	Latest(camera string) (*model.SnapshotRecord, error)

	// Delete operations
	DeleteBefore(t time.Time) (int64, error)
}

// FrameRepository defines the interface for annotated frame records.
type FrameRepository interface {
	// Create operations
	Insert(frame *model.FrameRecord) (int64, error)

	// Read operations
	GetByFilename(filename string) (*model.FrameRecord, error)
	ListByCamera(camera string, limit int) ([]model.FrameRecord, error)
	GetCameras() ([]string, error)

	// Delete operations
	DeleteByFilename(filename string) error
}
