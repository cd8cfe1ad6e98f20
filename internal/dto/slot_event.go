package dto

// SlotEvent is the per-slot body posted to the downstream consumer.
type SlotEvent struct {
	ParkingSpotID string `json:"parkingSpotId"`
	CameraID      string `json:"cameraId,omitempty"`
	SlotNumber    int    `json:"slotNumber"`
	EventType     string `json:"eventType"`
	Status        string `json:"status"`
}

// SnapshotEvent carries a whole camera snapshot in a single request.
type SnapshotEvent struct {
	ParkingSpotID string      `json:"parkingSpotId"`
	CameraID      string      `json:"cameraId"`
	BatchID       string      `json:"batchId"`
	EventType     string      `json:"eventType"`
	Slots         []SlotEvent `json:"slots"`
	FreeCount     int         `json:"freeCount"`
	OccupiedCount int         `json:"occupiedCount"`
	TotalCount    int         `json:"totalCount"`
}
