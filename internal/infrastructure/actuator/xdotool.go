package actuator

import (
	"os/exec"
	"strconv"
	"strings"

	"github.com/YoshitsuguKoike/ladas/internal/application/port/output"
)

// XDoTool drives the pointer and keyboard through the xdotool binary on X11
// desktops. Driver errors are logged and swallowed: a lost input event is
// recovered by the post-action validation loop, not by failing the dispatch.
type XDoTool struct {
	log output.Logger
}

var (
	_ Pointer  = (*XDoTool)(nil)
	_ Keyboard = (*XDoTool)(nil)
)

// NewXDoTool creates the X11 input driver
func NewXDoTool(log output.Logger) *XDoTool {
	return &XDoTool{log: log}
}

func (x *XDoTool) run(args ...string) {
	if err := exec.Command("xdotool", args...).Run(); err != nil {
		x.log.Warn("xdotool %s: %v", strings.Join(args, " "), err)
	}
}

// Position reads the current pointer location
func (x *XDoTool) Position() (int, int) {
	out, err := exec.Command("xdotool", "getmouselocation", "--shell").Output()
	if err != nil {
		x.log.Warn("xdotool getmouselocation: %v", err)
		return 0, 0
	}
	var px, py int
	for _, line := range strings.Split(string(out), "\n") {
		if v, ok := strings.CutPrefix(line, "X="); ok {
			px, _ = strconv.Atoi(strings.TrimSpace(v))
		}
		if v, ok := strings.CutPrefix(line, "Y="); ok {
			py, _ = strconv.Atoi(strings.TrimSpace(v))
		}
	}
	return px, py
}

// MoveTo warps the pointer to the coordinate
func (x *XDoTool) MoveTo(px, py int) {
	x.run("mousemove", strconv.Itoa(px), strconv.Itoa(py))
}

// Click presses and releases a pointer button at the current position
func (x *XDoTool) Click(button string) {
	x.run("click", buttonNumber(button))
}

// DoubleClick clicks twice in rapid succession
func (x *XDoTool) DoubleClick(button string) {
	x.run("click", "--repeat", "2", "--delay", "50", buttonNumber(button))
}

// Scroll emits wheel events; positive scrolls up, negative down
func (x *XDoTool) Scroll(amount int) {
	button := "4"
	if amount < 0 {
		button = "5"
		amount = -amount
	}
	x.run("click", "--repeat", strconv.Itoa(amount), button)
}

// Press holds a pointer button down
func (x *XDoTool) Press(button string) {
	x.run("mousedown", buttonNumber(button))
}

// Release releases a held pointer button
func (x *XDoTool) Release(button string) {
	x.run("mouseup", buttonNumber(button))
}

// TypeChar types one character
func (x *XDoTool) TypeChar(r rune) {
	x.run("type", "--delay", "0", string(r))
}

// PressKey presses and releases one named key
func (x *XDoTool) PressKey(key string) {
	x.run("key", keysym(key))
}

// Hotkey presses a key combination
func (x *XDoTool) Hotkey(keys ...string) {
	if len(keys) == 0 {
		return
	}
	syms := make([]string, len(keys))
	for i, k := range keys {
		syms[i] = keysym(k)
	}
	x.run("key", strings.Join(syms, "+"))
}

func buttonNumber(button string) string {
	switch button {
	case "right":
		return "3"
	case "middle":
		return "2"
	default:
		return "1"
	}
}

// keysym maps friendly key names to X11 keysyms
func keysym(key string) string {
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "enter":
		return "Return"
	case "esc", "escape":
		return "Escape"
	case "tab":
		return "Tab"
	case "space":
		return "space"
	case "backspace":
		return "BackSpace"
	case "delete":
		return "Delete"
	case "up":
		return "Up"
	case "down":
		return "Down"
	case "left":
		return "Left"
	case "right":
		return "Right"
	case "ctrl":
		return "ctrl"
	case "alt":
		return "alt"
	case "shift":
		return "shift"
	case "win", "cmd", "super":
		return "super"
	default:
		return key
	}
}
