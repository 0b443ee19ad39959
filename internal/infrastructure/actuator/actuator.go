// Package actuator dispatches validated action commands onto the platform
// input drivers. It owns pacing: pre/post action delays, human-like typing
// rhythm, and bezier pointer motion, all interruptible by the abort signal.
package actuator

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/YoshitsuguKoike/ladas/internal/application/port/output"
	"github.com/YoshitsuguKoike/ladas/internal/application/service/failsafe"
	"github.com/YoshitsuguKoike/ladas/internal/domain/execution"
	"github.com/YoshitsuguKoike/ladas/internal/domain/model/action"
)

// Pointer is the platform pointer driver
type Pointer interface {
	Position() (x, y int)
	MoveTo(x, y int)
	Click(button string)
	DoubleClick(button string)
	Scroll(amount int)
	Press(button string)
	Release(button string)
}

// Keyboard is the platform keyboard driver
type Keyboard interface {
	TypeChar(r rune)
	PressKey(key string)
	Hotkey(keys ...string)
}

// Shell launches operating system commands
type Shell interface {
	Run(ctx context.Context, command string) error
}

// TypingConfig bounds the random inter-keystroke delay
type TypingConfig struct {
	MinDelay time.Duration
	MaxDelay time.Duration
}

// DefaultTypingConfig mirrors the shipped configuration defaults
func DefaultTypingConfig() TypingConfig {
	return TypingConfig{MinDelay: 30 * time.Millisecond, MaxDelay: 80 * time.Millisecond}
}

func (c TypingConfig) withDefaults() TypingConfig {
	d := DefaultTypingConfig()
	if c.MinDelay <= 0 {
		c.MinDelay = d.MinDelay
	}
	if c.MaxDelay < c.MinDelay {
		c.MaxDelay = c.MinDelay + (d.MaxDelay - d.MinDelay)
	}
	return c
}

const (
	dragHoldDelay    = 150 * time.Millisecond
	dragReleaseDelay = 100 * time.Millisecond
	defaultWait      = time.Second
)

// Dispatcher implements the actuator port over the platform drivers
type Dispatcher struct {
	pointer  Pointer
	keyboard Keyboard
	shell    Shell
	searcher output.Searcher
	animator *Animator
	signal   *failsafe.Signal
	typing   TypingConfig
	log      output.Logger
	rng      *rand.Rand
}

var _ output.Actuator = (*Dispatcher)(nil)

// NewDispatcher assembles the actuator from its drivers
func NewDispatcher(
	pointer Pointer,
	keyboard Keyboard,
	shell Shell,
	searcher output.Searcher,
	animator *Animator,
	signal *failsafe.Signal,
	typing TypingConfig,
	log output.Logger,
) *Dispatcher {
	return &Dispatcher{
		pointer:  pointer,
		keyboard: keyboard,
		shell:    shell,
		searcher: searcher,
		animator: animator,
		signal:   signal,
		typing:   typing.withDefaults(),
		log:      log,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Dispatch executes one validated command: pre-delay, the action itself,
// post-delay. Every wait goes through the abort-aware sleep.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd action.Command) error {
	if err := d.signal.Check(); err != nil {
		return err
	}
	if err := d.signal.Sleep(ctx, cmd.PreDelay()); err != nil {
		return err
	}
	if err := d.execute(ctx, cmd); err != nil {
		return err
	}
	return d.signal.Sleep(ctx, cmd.PostDelay())
}

func (d *Dispatcher) execute(ctx context.Context, cmd action.Command) error {
	switch cmd.Kind {
	case action.KindClick:
		return d.clickAt(cmd, buttonOf(cmd, "left"), false)

	case action.KindDoubleClick:
		return d.clickAt(cmd, buttonOf(cmd, "left"), true)

	case action.KindRightClick:
		return d.clickAt(cmd, "right", false)

	case action.KindMove, action.KindHover:
		target, _ := cmd.ResolveTarget()
		return d.animator.MoveAlong(d.pointer, target)

	case action.KindDrag:
		return d.drag(ctx, cmd)

	case action.KindScroll:
		target, _ := cmd.ResolveTarget()
		if err := d.animator.MoveAlong(d.pointer, target); err != nil {
			return err
		}
		amount := cmd.Parameters.Amount
		if amount == 0 {
			amount = -1
		}
		d.pointer.Scroll(amount)
		return nil

	case action.KindTypeText:
		return d.typeText(ctx, cmd)

	case action.KindPressKey:
		key := cmd.Parameters.Key
		if key == "" {
			key = "enter"
		}
		d.keyboard.PressKey(key)
		return nil

	case action.KindHotkey:
		d.keyboard.Hotkey(cmd.Parameters.Keys...)
		return nil

	case action.KindWait:
		wait := time.Duration(cmd.Parameters.DurationMS) * time.Millisecond
		if wait <= 0 {
			wait = defaultWait
		}
		return d.signal.Sleep(ctx, wait)

	case action.KindRunCommand:
		d.log.Info("running command: %s", cmd.Parameters.Command)
		return d.shell.Run(ctx, cmd.Parameters.Command)

	case action.KindSearchWeb:
		result, err := d.searcher.Search(ctx, cmd.Parameters.Query)
		if err != nil {
			return fmt.Errorf("web search failed: %w", err)
		}
		d.log.Info("web search returned %d bytes of context", len(result))
		return nil

	case action.KindScreenshot:
		// explicit capture request; the execution loop captures every
		// iteration anyway
		d.log.Info("explicit screenshot requested")
		return nil
	}

	return execution.ErrUnsupportedAction.WithDetails(map[string]interface{}{
		"kind": cmd.Kind.String(),
	})
}

func (d *Dispatcher) clickAt(cmd action.Command, button string, double bool) error {
	target, _ := cmd.ResolveTarget()
	if err := d.animator.MoveAlong(d.pointer, target); err != nil {
		return err
	}
	if double {
		d.pointer.DoubleClick(button)
	} else {
		d.pointer.Click(button)
	}
	return nil
}

func (d *Dispatcher) drag(ctx context.Context, cmd action.Command) error {
	start, end := cmd.Parameters.StartCoord, cmd.Parameters.EndCoord
	if start == nil || end == nil {
		return execution.ErrMissingTarget.WithDetails(map[string]interface{}{
			"kind": cmd.Kind.String(),
		})
	}
	if err := d.animator.MoveAlong(d.pointer, *start); err != nil {
		return err
	}
	d.pointer.Press("left")
	if err := d.signal.Sleep(ctx, dragHoldDelay); err != nil {
		d.pointer.Release("left")
		return err
	}
	if err := d.animator.MoveAlong(d.pointer, *end); err != nil {
		d.pointer.Release("left")
		return err
	}
	if err := d.signal.Sleep(ctx, dragReleaseDelay); err != nil {
		d.pointer.Release("left")
		return err
	}
	d.pointer.Release("left")
	return nil
}

// typeText optionally clicks a focus target, optionally clears the field,
// then types character by character with a random human-like delay.
func (d *Dispatcher) typeText(ctx context.Context, cmd action.Command) error {
	if target, ok := cmd.ResolveTarget(); ok {
		if err := d.animator.MoveAlong(d.pointer, target); err != nil {
			return err
		}
		d.pointer.Click("left")
	}
	if cmd.Parameters.ClearFirst {
		d.keyboard.Hotkey("ctrl", "a")
		d.keyboard.PressKey("backspace")
	}
	for _, r := range cmd.Parameters.Text {
		if err := d.signal.Check(); err != nil {
			return err
		}
		d.keyboard.TypeChar(r)
		if err := d.signal.Sleep(ctx, d.keystrokeDelay()); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dispatcher) keystrokeDelay() time.Duration {
	span := d.typing.MaxDelay - d.typing.MinDelay
	if span <= 0 {
		return d.typing.MinDelay
	}
	return d.typing.MinDelay + time.Duration(d.rng.Int63n(int64(span)))
}

func buttonOf(cmd action.Command, fallback string) string {
	if cmd.Parameters.Button != "" {
		return cmd.Parameters.Button
	}
	return fallback
}
