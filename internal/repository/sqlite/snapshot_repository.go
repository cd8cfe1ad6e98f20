package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"parkingserver/internal/dto"
	"parkingserver/internal/model"
)

// SnapshotRepository implements repository.SnapshotRepository for SQLite.
type SnapshotRepository struct {
	db *DB
}

// NewSnapshotRepository creates a new SQLite snapshot repository.
func NewSnapshotRepository(db *DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Insert stores the counts and slot list of one snapshot.
func (r *SnapshotRepository) Insert(snap dto.StatusSnapshot) (int64, error) {
	slots := snap.Slots
	if slots == nil {
		slots = []model.Slot{}
	}
	encoded, err := json.Marshal(slots)
	if err != nil {
		return 0, fmt.Errorf("failed to encode slots: %w", err)
	}

	takenAt := snap.TakenAt
	if takenAt.IsZero() {
		takenAt = time.Now()
	}

	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`
		INSERT INTO snapshots (camera, free_count, occupied_count, total_count, slots, taken_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, snap.Camera, snap.FreeCount, snap.OccupiedCount, snap.TotalCount, string(encoded), takenAt.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to insert snapshot: %w", err)
	}

	return result.LastInsertId()
}

// ListByCamera returns the newest snapshots of a camera first. Slot lists are
// not loaded; use Latest for the full record.
func (r *SnapshotRepository) ListByCamera(filter *dto.HistoryFilter) ([]model.SnapshotRecord, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	query := `
		SELECT id, camera, free_count, occupied_count, total_count, taken_at
		FROM snapshots
		WHERE camera = ?
	`
	args := []interface{}{filter.Camera}

	if !filter.After.IsZero() {
		query += " AND taken_at >= ?"
		args = append(args, filter.After.UTC())
	}

	if !filter.Before.IsZero() {
		query += " AND taken_at <= ?"
		args = append(args, filter.Before.UTC())
	}

	query += " ORDER BY taken_at DESC, id DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	records := []model.SnapshotRecord{}
	for rows.Next() {
		var rec model.SnapshotRecord
		if err := rows.Scan(&rec.ID, &rec.Camera, &rec.FreeCount, &rec.OccupiedCount, &rec.TotalCount, &rec.TakenAt); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// Latest returns the most recent snapshot of a camera, or nil if none is stored.
func (r *SnapshotRepository) Latest(camera string) (*model.SnapshotRecord, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var rec model.SnapshotRecord
	var slots string
	err := r.db.Conn().QueryRow(`
		SELECT id, camera, free_count, occupied_count, total_count, slots, taken_at
		FROM snapshots WHERE camera = ?
		ORDER BY taken_at DESC, id DESC LIMIT 1
	`, camera).Scan(&rec.ID, &rec.Camera, &rec.FreeCount, &rec.OccupiedCount, &rec.TotalCount, &slots, &rec.TakenAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}

	if err := json.Unmarshal([]byte(slots), &rec.Slots); err != nil {
		return nil, fmt.Errorf("failed to decode slots: %w", err)
	}
	return &rec, nil
}

// DeleteBefore removes snapshots older than t and returns how many were removed.
func (r *SnapshotRepository) DeleteBefore(t time.Time) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`DELETE FROM snapshots WHERE taken_at < ?`, t.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete snapshots: %w", err)
	}
	return result.RowsAffected()
}
