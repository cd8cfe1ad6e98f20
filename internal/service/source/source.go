package source

import (
	"context"
	"time"
)

// Frame is one encoded camera image waiting to be processed.
type Frame struct {
	Camera     string
	Name       string
	Data       []byte
	CapturedAt time.Time
}

// FrameSource yields frames one at a time. Next returns io.EOF once the
// source is exhausted; any other error ends the run.
type FrameSource interface {
	Next(ctx context.Context) (Frame, error)
}
