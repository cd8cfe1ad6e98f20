package sqlite

import (
	"database/sql"
	"fmt"

	"parkingserver/internal/model"
)

// FrameRepository implements repository.FrameRepository for SQLite.
type FrameRepository struct {
	db *DB
}

// NewFrameRepository creates a new SQLite frame repository.
func NewFrameRepository(db *DB) *FrameRepository {
	return &FrameRepository{db: db}
}

// Insert adds a new frame record to the database.
func (r *FrameRepository) Insert(frame *model.FrameRecord) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`
		INSERT INTO frames (filename, camera, timestamp, filepath, filesize, free_count, occupied_count)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, frame.Filename, frame.Camera, frame.Timestamp.UTC(), frame.FilePath, frame.FileSize, frame.FreeCount, frame.OccupiedCount)
	if err != nil {
		return 0, fmt.Errorf("failed to insert frame: %w", err)
	}

	return result.LastInsertId()
}

// GetByFilename retrieves a frame by its filename.
func (r *FrameRepository) GetByFilename(filename string) (*model.FrameRecord, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var f model.FrameRecord
	err := r.db.Conn().QueryRow(`
		SELECT id, filename, camera, timestamp, filepath, filesize, free_count, occupied_count
		FROM frames WHERE filename = ?
	`, filename).Scan(&f.ID, &f.Filename, &f.Camera, &f.Timestamp, &f.FilePath, &f.FileSize, &f.FreeCount, &f.OccupiedCount)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get frame: %w", err)
	}
	return &f, nil
}

// ListByCamera returns the newest frames of a camera first.
func (r *FrameRepository) ListByCamera(camera string, limit int) ([]model.FrameRecord, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	query := `
		SELECT id, filename, camera, timestamp, filepath, filesize, free_count, occupied_count
		FROM frames WHERE camera = ?
		ORDER BY timestamp DESC, id DESC
	`
	args := []interface{}{camera}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query frames: %w", err)
	}
	defer rows.Close()

	frames := []model.FrameRecord{}
	for rows.Next() {
		var f model.FrameRecord
		if err := rows.Scan(&f.ID, &f.Filename, &f.Camera, &f.Timestamp, &f.FilePath, &f.FileSize, &f.FreeCount, &f.OccupiedCount); err != nil {
			return nil, fmt.Errorf("failed to scan frame: %w", err)
		}
		frames = append(frames, f)
	}

	return frames, rows.Err()
}

// GetCameras returns a list of unique camera names.
func (r *FrameRepository) GetCameras() ([]string, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`SELECT DISTINCT camera FROM frames ORDER BY camera`)
	if err != nil {
		return nil, fmt.Errorf("failed to query cameras: %w", err)
	}
	defer rows.Close()

	var cameras []string
	for rows.Next() {
		var camera string
		if err := rows.Scan(&camera); err != nil {
			return nil, fmt.Errorf("failed to scan camera: %w", err)
		}
		cameras = append(cameras, camera)
	}
	return cameras, nil
}

// DeleteByFilename removes a frame record by its filename.
func (r *FrameRepository) DeleteByFilename(filename string) error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM frames WHERE filename = ?`, filename); err != nil {
		return fmt.Errorf("failed to delete frame: %w", err)
	}
	return nil
}
