// Package action defines the closed set of synthetic input actions the agent
// can perform, as produced by the decision collaborator and consumed by the
// safety gate and actuator.
package action

import (
	"errors"
	"strings"
	"time"
)

// Kind is the tagged action variant. The set is closed: anything outside it
// is rejected as unsupported rather than silently ignored.
type Kind string

const (
	KindClick       Kind = "click"
	KindDoubleClick Kind = "double_click"
	KindRightClick  Kind = "right_click"
	KindMove        Kind = "move"
	KindDrag        Kind = "drag"
	KindScroll      Kind = "scroll"
	KindHover       Kind = "hover"
	KindTypeText    Kind = "type_text"
	KindPressKey    Kind = "press_key"
	KindHotkey      Kind = "hotkey"
	KindWait        Kind = "wait"
	KindRunCommand  Kind = "run_command"
	KindScreenshot  Kind = "screenshot"
	KindSearchWeb   Kind = "search_web"
)

// String returns the string representation
func (k Kind) String() string {
	return string(k)
}

// IsValid validates the action kind
func (k Kind) IsValid() bool {
	switch k {
	case KindClick, KindDoubleClick, KindRightClick, KindMove, KindDrag,
		KindScroll, KindHover, KindTypeText, KindPressKey, KindHotkey,
		KindWait, KindRunCommand, KindScreenshot, KindSearchWeb:
		return true
	default:
		return false
	}
}

// IsInert reports whether the kind is expected to leave the screen visually
// unchanged. Loop detection resets its repeat counter after inert actions,
// and post-action validation does not treat an unchanged screen as stale.
func (k Kind) IsInert() bool {
	switch k {
	case KindWait, KindScroll, KindSearchWeb, KindPressKey, KindMove,
		KindHover, KindScreenshot:
		return true
	default:
		return false
	}
}

// RequiresTarget reports whether the kind needs a resolved screen position
func (k Kind) RequiresTarget() bool {
	switch k {
	case KindClick, KindDoubleClick, KindRightClick, KindMove, KindHover, KindScroll:
		return true
	default:
		return false
	}
}

// IsPrivileged reports whether the kind is subject to allow-list policy
func (k Kind) IsPrivileged() bool {
	return k == KindRunCommand || k == KindHotkey
}

// ParseKind normalizes and validates a raw action kind string
func ParseKind(raw string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(raw)))
	if !k.IsValid() {
		return "", errors.New("unsupported action kind: " + raw)
	}
	return k, nil
}

// Point is a screen coordinate
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// BBox is a bounding region [x1, y1, x2, y2]
type BBox struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// Center returns the center point of the region
func (b BBox) Center() Point {
	return Point{X: b.X1 + (b.X2-b.X1)/2, Y: b.Y1 + (b.Y2-b.Y1)/2}
}

// Parameters carries the kind-specific parameter set. Fields irrelevant to a
// given kind are left zero.
type Parameters struct {
	Button     string   `json:"button,omitempty"`
	StartCoord *Point   `json:"start_coords,omitempty"`
	EndCoord   *Point   `json:"end_coords,omitempty"`
	Amount     int      `json:"amount,omitempty"`
	Text       string   `json:"text,omitempty"`
	ClearFirst bool     `json:"clear_first,omitempty"`
	Key        string   `json:"key,omitempty"`
	Keys       []string `json:"keys,omitempty"`
	DurationMS int      `json:"duration_ms,omitempty"`
	Command    string   `json:"command,omitempty"`
	Query      string   `json:"query,omitempty"`
	Target     *BBox    `json:"target,omitempty"`
}

// Command is one action produced by the decision collaborator
type Command struct {
	Kind        Kind       `json:"action_type"`
	Coordinates *Point     `json:"coordinates,omitempty"`
	Parameters  Parameters `json:"parameters"`
	PreDelayMS  int        `json:"pre_action_wait_ms"`
	PostDelayMS int        `json:"post_action_wait_ms"`
	Rationale   string     `json:"reasoning"`
}

// NewWait builds the deterministic fallback action used when the decision
// collaborator fails or the call budget is exhausted.
func NewWait(d time.Duration, rationale string) Command {
	return Command{
		Kind:       KindWait,
		Parameters: Parameters{DurationMS: int(d / time.Millisecond)},
		Rationale:  rationale,
	}
}

// ResolveTarget resolves the target position from explicit coordinates or,
// failing that, the center of the provided bounding region. ok is false when
// neither is present.
func (c Command) ResolveTarget() (Point, bool) {
	if c.Coordinates != nil {
		return *c.Coordinates, true
	}
	if c.Parameters.Target != nil {
		return c.Parameters.Target.Center(), true
	}
	return Point{}, false
}

// PreDelay returns the pre-execution delay
func (c Command) PreDelay() time.Duration {
	return time.Duration(c.PreDelayMS) * time.Millisecond
}

// PostDelay returns the post-execution delay
func (c Command) PostDelay() time.Duration {
	return time.Duration(c.PostDelayMS) * time.Millisecond
}

// HotkeyCombo returns the "+"-joined lowercase key combination for hotkey
// commands, e.g. "ctrl+alt+delete".
func (c Command) HotkeyCombo() string {
	keys := make([]string, 0, len(c.Parameters.Keys))
	for _, k := range c.Parameters.Keys {
		keys = append(keys, strings.ToLower(strings.TrimSpace(k)))
	}
	return strings.Join(keys, "+")
}
