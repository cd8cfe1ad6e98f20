package dto

// BufferedFrame holds an annotated frame and the snapshot it was rendered from
// before flushing to disk.
type BufferedFrame struct {
	Timestamp string
	Camera    string
	Snapshot  StatusSnapshot
	Data      []byte
}
