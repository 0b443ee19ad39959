// Package failsafe implements the out-of-band cancellation path: a one-shot
// process-wide abort signal and the background monitor that raises it.
package failsafe

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/YoshitsuguKoike/ladas/internal/domain/execution"
)

// Signal is the process-wide abort condition. It is set exactly once and is
// never cleared; a fresh listening session requires constructing a new
// Monitor at process startup. The permanence is intentional: once the user
// pulls the failsafe, nothing started in this session may touch the screen
// again.
type Signal struct {
	triggered atomic.Bool
	done      chan struct{}
	once      sync.Once
}

// NewSignal creates an untriggered signal
func NewSignal() *Signal {
	return &Signal{done: make(chan struct{})}
}

// Trigger sets the signal. Subsequent calls are no-ops.
func (s *Signal) Trigger() {
	s.once.Do(func() {
		s.triggered.Store(true)
		close(s.done)
	})
}

// Triggered is the cheap check consulted at every loop checkpoint and on
// every intermediate frame of an in-progress pointer movement.
func (s *Signal) Triggered() bool {
	return s.triggered.Load()
}

// Done returns a channel closed when the signal fires, for select-based waits
func (s *Signal) Done() <-chan struct{} {
	return s.done
}

// Check returns ErrTaskAborted if the signal has fired
func (s *Signal) Check() error {
	if s.Triggered() {
		return execution.ErrTaskAborted
	}
	return nil
}

// Sleep waits for d but returns early with ErrTaskAborted when the signal
// fires mid-wait. All pacing, backoff and timeout sleeps in the execution
// path go through this so cancellation interrupts a pending wait instead of
// being observed only after it elapses.
func (s *Signal) Sleep(ctx context.Context, d time.Duration) error {
	if err := s.Check(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-s.done:
		return execution.ErrTaskAborted
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// TriggerSource is the external out-of-band trigger: a hotkey listener or a
// physical pointer-corner gesture detector. WaitForTrigger blocks until the
// trigger occurs or the context is cancelled.
type TriggerSource interface {
	WaitForTrigger(ctx context.Context) error
}

// Monitor runs the background listener. On trigger it sets the signal
// exactly once and stops listening.
type Monitor struct {
	signal *Signal
	source TriggerSource

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMonitor creates a monitor over a fresh signal
func NewMonitor(source TriggerSource) *Monitor {
	return &Monitor{signal: NewSignal(), source: source}
}

// Signal returns the signal observed by the orchestrator and actuator
func (m *Monitor) Signal() *Signal {
	return m.signal
}

// Start launches the background listener. Starting an already-started
// monitor is a no-op.
func (m *Monitor) Start() {
	if m.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := m.source.WaitForTrigger(ctx); err != nil {
			return // cancelled or source failed; signal stays untriggered
		}
		m.signal.Trigger()
	}()
}

// Stop cancels the listener and waits for it to exit. The signal keeps
// whatever value it had; Stop never resets it.
func (m *Monitor) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	m.wg.Wait()
	m.cancel = nil
}
