package trigger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	mu   sync.Mutex
	x, y int
}

func (f *fakeReader) Position() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.x, f.y
}

func (f *fakeReader) set(x, y int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.x, f.y = x, y
}

func TestWaitForTrigger_FiresOnHeldCorner(t *testing.T) {
	reader := &fakeReader{}
	g := NewCornerGesture(reader)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, g.WaitForTrigger(ctx))
}

func TestWaitForTrigger_IgnoresBriefVisit(t *testing.T) {
	reader := &fakeReader{x: 500, y: 500}
	g := NewCornerGesture(reader)

	// dip into the corner for a single poll, then leave
	go func() {
		time.Sleep(60 * time.Millisecond)
		reader.set(0, 0)
		time.Sleep(60 * time.Millisecond)
		reader.set(500, 500)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 400*time.Millisecond)
	defer cancel()
	err := g.WaitForTrigger(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "a brief corner visit must not trigger")
}

func TestWaitForTrigger_ContextCancel(t *testing.T) {
	reader := &fakeReader{x: 500, y: 500}
	g := NewCornerGesture(reader)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := g.WaitForTrigger(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
}
