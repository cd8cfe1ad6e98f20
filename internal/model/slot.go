package model

import "time"

// Slot represents one numbered parking space within a camera's view.
type Slot struct {
	Number    int       `json:"slot_number"`
	Box       Box       `json:"coordinates"`
	Status    Status    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}
