// Package trigger implements failsafe trigger sources: out-of-band gestures
// the user performs to kill a running automation session.
package trigger

import (
	"context"
	"time"
)

// PositionReader reports the current pointer location
type PositionReader interface {
	Position() (x, y int)
}

const (
	cornerRadius = 5
	holdPolls    = 3
	pollInterval = 50 * time.Millisecond
)

// CornerGesture fires when the pointer is slammed into the top-left corner
// of the screen and held there. Polling is cheap enough to run for the whole
// session.
type CornerGesture struct {
	reader PositionReader
}

// NewCornerGesture creates the gesture detector
func NewCornerGesture(reader PositionReader) *CornerGesture {
	return &CornerGesture{reader: reader}
}

// WaitForTrigger blocks until the gesture is observed or ctx is cancelled
func (c *CornerGesture) WaitForTrigger(ctx context.Context) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	consecutive := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			x, y := c.reader.Position()
			if x <= cornerRadius && y <= cornerRadius {
				consecutive++
				if consecutive >= holdPolls {
					return nil
				}
			} else {
				consecutive = 0
			}
		}
	}
}
