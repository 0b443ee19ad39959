package actuator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YoshitsuguKoike/ladas/internal/application/service/failsafe"
	"github.com/YoshitsuguKoike/ladas/internal/domain/execution"
	"github.com/YoshitsuguKoike/ladas/internal/domain/model/action"
)

type nopLogger struct{}

func (nopLogger) Debug(format string, args ...interface{}) {}
func (nopLogger) Info(format string, args ...interface{})  {}
func (nopLogger) Warn(format string, args ...interface{})  {}
func (nopLogger) Error(format string, args ...interface{}) {}

type fakePointer struct {
	mu     sync.Mutex
	x, y   int
	events []string
}

func (f *fakePointer) record(e string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
}

func (f *fakePointer) Position() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.x, f.y
}

func (f *fakePointer) MoveTo(x, y int) {
	f.mu.Lock()
	f.x, f.y = x, y
	f.mu.Unlock()
	f.record("move")
}

func (f *fakePointer) Click(button string)       { f.record("click:" + button) }
func (f *fakePointer) DoubleClick(button string) { f.record("dblclick:" + button) }
func (f *fakePointer) Scroll(amount int)         { f.record("scroll") }
func (f *fakePointer) Press(button string)       { f.record("press:" + button) }
func (f *fakePointer) Release(button string)     { f.record("release:" + button) }

func (f *fakePointer) last() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.events) == 0 {
		return ""
	}
	return f.events[len(f.events)-1]
}

func (f *fakePointer) has(e string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, got := range f.events {
		if got == e {
			return true
		}
	}
	return false
}

type fakeKeyboard struct {
	typed   []rune
	keys    []string
	hotkeys [][]string
}

func (f *fakeKeyboard) TypeChar(r rune)       { f.typed = append(f.typed, r) }
func (f *fakeKeyboard) PressKey(key string)   { f.keys = append(f.keys, key) }
func (f *fakeKeyboard) Hotkey(keys ...string) { f.hotkeys = append(f.hotkeys, keys) }

type fakeShell struct {
	commands []string
	err      error
}

func (f *fakeShell) Run(ctx context.Context, command string) error {
	f.commands = append(f.commands, command)
	return f.err
}

type fakeSearcher struct {
	queries []string
	result  string
	err     error
}

func (f *fakeSearcher) Search(ctx context.Context, query string) (string, error) {
	f.queries = append(f.queries, query)
	return f.result, f.err
}

func fastMotion() MotionConfig {
	return MotionConfig{
		SpeedMultiplier: 1.0,
		BezierVariance:  0.2,
		MinDuration:     2 * time.Millisecond,
		MaxDuration:     5 * time.Millisecond,
		FrameInterval:   time.Millisecond,
	}
}

type rig struct {
	d        *Dispatcher
	pointer  *fakePointer
	keyboard *fakeKeyboard
	shell    *fakeShell
	searcher *fakeSearcher
	signal   *failsafe.Signal
}

func newRig(t *testing.T) *rig {
	t.Helper()
	sig := failsafe.NewSignal()
	pointer := &fakePointer{}
	keyboard := &fakeKeyboard{}
	shell := &fakeShell{}
	searcher := &fakeSearcher{result: "context"}
	animator := NewAnimator(fastMotion(), sig)
	typing := TypingConfig{MinDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
	d := NewDispatcher(pointer, keyboard, shell, searcher, animator, sig, typing, nopLogger{})
	return &rig{d: d, pointer: pointer, keyboard: keyboard, shell: shell, searcher: searcher, signal: sig}
}

func TestMoveAlong_EndsExactlyAtTarget(t *testing.T) {
	sig := failsafe.NewSignal()
	a := NewAnimator(fastMotion(), sig)
	pointer := &fakePointer{}

	require.NoError(t, a.MoveAlong(pointer, action.Point{X: 640, Y: 360}))
	x, y := pointer.Position()
	assert.Equal(t, 640, x)
	assert.Equal(t, 360, y)
}

func TestMoveAlong_AbortMidPath(t *testing.T) {
	sig := failsafe.NewSignal()
	cfg := fastMotion()
	cfg.MinDuration = 200 * time.Millisecond
	cfg.MaxDuration = 500 * time.Millisecond
	a := NewAnimator(cfg, sig)
	pointer := &fakePointer{}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		time.Sleep(10 * time.Millisecond)
		sig.Trigger()
	}()

	err := a.MoveAlong(pointer, action.Point{X: 5000, Y: 5000})
	wg.Wait()
	assert.True(t, errors.Is(err, execution.ErrTaskAborted))
}

func TestDispatch_Click(t *testing.T) {
	r := newRig(t)
	err := r.d.Dispatch(context.Background(), action.Command{
		Kind:        action.KindClick,
		Coordinates: &action.Point{X: 100, Y: 50},
	})
	require.NoError(t, err)
	assert.Equal(t, "click:left", r.pointer.last())
	x, y := r.pointer.Position()
	assert.Equal(t, 100, x)
	assert.Equal(t, 50, y)
}

func TestDispatch_RightClickForcesButton(t *testing.T) {
	r := newRig(t)
	err := r.d.Dispatch(context.Background(), action.Command{
		Kind:        action.KindRightClick,
		Coordinates: &action.Point{X: 10, Y: 10},
		Parameters:  action.Parameters{Button: "left"},
	})
	require.NoError(t, err)
	assert.Equal(t, "click:right", r.pointer.last())
}

func TestDispatch_DoubleClick(t *testing.T) {
	r := newRig(t)
	err := r.d.Dispatch(context.Background(), action.Command{
		Kind:        action.KindDoubleClick,
		Coordinates: &action.Point{X: 10, Y: 10},
	})
	require.NoError(t, err)
	assert.Equal(t, "dblclick:left", r.pointer.last())
}

func TestDispatch_ScrollDefaultsDown(t *testing.T) {
	r := newRig(t)
	err := r.d.Dispatch(context.Background(), action.Command{
		Kind:        action.KindScroll,
		Coordinates: &action.Point{X: 10, Y: 10},
	})
	require.NoError(t, err)
	assert.Equal(t, "scroll", r.pointer.last())
}

func TestDispatch_TypeTextSequence(t *testing.T) {
	r := newRig(t)
	err := r.d.Dispatch(context.Background(), action.Command{
		Kind:        action.KindTypeText,
		Coordinates: &action.Point{X: 30, Y: 40},
		Parameters:  action.Parameters{Text: "hi", ClearFirst: true},
	})
	require.NoError(t, err)

	assert.Equal(t, "click:left", r.pointer.last(), "focus click lands before typing")
	require.Len(t, r.keyboard.hotkeys, 1)
	assert.Equal(t, []string{"ctrl", "a"}, r.keyboard.hotkeys[0])
	assert.Equal(t, []string{"backspace"}, r.keyboard.keys)
	assert.Equal(t, []rune("hi"), r.keyboard.typed)
}

func TestDispatch_TypeTextWithoutTargetSkipsClick(t *testing.T) {
	r := newRig(t)
	err := r.d.Dispatch(context.Background(), action.Command{
		Kind:       action.KindTypeText,
		Parameters: action.Parameters{Text: "ok"},
	})
	require.NoError(t, err)
	assert.Empty(t, r.pointer.events)
	assert.Equal(t, []rune("ok"), r.keyboard.typed)
}

func TestDispatch_PressKeyDefaultsToEnter(t *testing.T) {
	r := newRig(t)
	require.NoError(t, r.d.Dispatch(context.Background(), action.Command{Kind: action.KindPressKey}))
	assert.Equal(t, []string{"enter"}, r.keyboard.keys)
}

func TestDispatch_Hotkey(t *testing.T) {
	r := newRig(t)
	require.NoError(t, r.d.Dispatch(context.Background(), action.Command{
		Kind:       action.KindHotkey,
		Parameters: action.Parameters{Keys: []string{"ctrl", "s"}},
	}))
	require.Len(t, r.keyboard.hotkeys, 1)
	assert.Equal(t, []string{"ctrl", "s"}, r.keyboard.hotkeys[0])
}

func TestDispatch_Drag(t *testing.T) {
	r := newRig(t)
	err := r.d.Dispatch(context.Background(), action.Command{
		Kind: action.KindDrag,
		Parameters: action.Parameters{
			StartCoord: &action.Point{X: 10, Y: 10},
			EndCoord:   &action.Point{X: 200, Y: 200},
		},
	})
	require.NoError(t, err)
	assert.True(t, r.pointer.has("press:left"))
	assert.Equal(t, "release:left", r.pointer.last())
	x, y := r.pointer.Position()
	assert.Equal(t, 200, x)
	assert.Equal(t, 200, y)
}

func TestDispatch_DragReleasesOnAbort(t *testing.T) {
	r := newRig(t)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		time.Sleep(20 * time.Millisecond) // inside the post-press hold
		r.signal.Trigger()
	}()

	err := r.d.Dispatch(context.Background(), action.Command{
		Kind: action.KindDrag,
		Parameters: action.Parameters{
			StartCoord: &action.Point{X: 10, Y: 10},
			EndCoord:   &action.Point{X: 200, Y: 200},
		},
	})
	wg.Wait()
	assert.True(t, errors.Is(err, execution.ErrTaskAborted))
	assert.True(t, r.pointer.has("release:left"), "the button must not stay held after abort")
}

func TestDispatch_Wait(t *testing.T) {
	r := newRig(t)
	start := time.Now()
	err := r.d.Dispatch(context.Background(), action.Command{
		Kind:       action.KindWait,
		Parameters: action.Parameters{DurationMS: 10},
	})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
}

func TestDispatch_RunCommand(t *testing.T) {
	r := newRig(t)
	require.NoError(t, r.d.Dispatch(context.Background(), action.Command{
		Kind:       action.KindRunCommand,
		Parameters: action.Parameters{Command: "xeyes"},
	}))
	assert.Equal(t, []string{"xeyes"}, r.shell.commands)
}

func TestDispatch_SearchWeb(t *testing.T) {
	r := newRig(t)
	require.NoError(t, r.d.Dispatch(context.Background(), action.Command{
		Kind:       action.KindSearchWeb,
		Parameters: action.Parameters{Query: "how to quit vim"},
	}))
	assert.Equal(t, []string{"how to quit vim"}, r.searcher.queries)

	r.searcher.err = errors.New("api down")
	err := r.d.Dispatch(context.Background(), action.Command{
		Kind:       action.KindSearchWeb,
		Parameters: action.Parameters{Query: "again"},
	})
	assert.Error(t, err)
}

func TestDispatch_UnknownKind(t *testing.T) {
	r := newRig(t)
	err := r.d.Dispatch(context.Background(), action.Command{Kind: action.Kind("explode")})
	assert.True(t, errors.Is(err, execution.ErrUnsupportedAction))
}

func TestDispatch_PreTriggeredSignal(t *testing.T) {
	r := newRig(t)
	r.signal.Trigger()
	err := r.d.Dispatch(context.Background(), action.Command{
		Kind:        action.KindClick,
		Coordinates: &action.Point{X: 1, Y: 1},
	})
	assert.True(t, errors.Is(err, execution.ErrTaskAborted))
	assert.Empty(t, r.pointer.events)
}

func TestDispatch_PreAndPostDelays(t *testing.T) {
	r := newRig(t)
	start := time.Now()
	err := r.d.Dispatch(context.Background(), action.Command{
		Kind:        action.KindPressKey,
		PreDelayMS:  10,
		PostDelayMS: 10,
	})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}
