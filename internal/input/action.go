package input

import "strings"

// Source is the device a raw event came from
type Source string

const (
	SourceKeyboard Source = "keyboard"
	SourceGamepad  Source = "gamepad"
	SourceTouch    Source = "touch"
)

// Kind is a logical action kind
type Kind int

const (
	KindNavigate Kind = iota
	KindConfirm
	KindCancel
	KindMenuToggle
)

func (k Kind) String() string {
	switch k {
	case KindNavigate:
		return "navigate"
	case KindConfirm:
		return "confirm"
	case KindCancel:
		return "cancel"
	case KindMenuToggle:
		return "menu"
	default:
		return "unknown"
	}
}

// Direction of a navigate action
type Direction int

const (
	DirNone Direction = iota
	DirUp
	DirDown
	DirLeft
	DirRight
)

func (d Direction) String() string {
	switch d {
	case DirUp:
		return "up"
	case DirDown:
		return "down"
	case DirLeft:
		return "left"
	case DirRight:
		return "right"
	default:
		return "none"
	}
}

// Action is a device-independent input
type Action struct {
	Kind   Kind
	Dir    Direction
	Source Source
}

// Navigate returns a navigate action
func Navigate(d Direction) Action { return Action{Kind: KindNavigate, Dir: d} }

// Confirm returns a confirm action
func Confirm() Action { return Action{Kind: KindConfirm} }

// Cancel returns a cancel action
func Cancel() Action { return Action{Kind: KindCancel} }

// MenuToggle returns a menu toggle action
func MenuToggle() Action { return Action{Kind: KindMenuToggle} }

func (a Action) String() string {
	if a.Kind == KindNavigate {
		return a.Kind.String() + ":" + a.Dir.String()
	}
	return a.Kind.String()
}

// RawEvent is an unprocessed device event. ID is unique per physical event;
// clients that mirror one press across listeners reuse the ID.
type RawEvent struct {
	Source Source `json:"source"`
	Code   string `json:"code"`
	ID     string `json:"id"`
}

// Bindings maps device codes to actions per source
type Bindings map[Source]map[string]Action

// DefaultBindings covers keyboard, standard gamepad and touch gestures
var DefaultBindings = Bindings{
	SourceKeyboard: {
		// Arrows and WASD
		"ArrowUp":    Navigate(DirUp),
		"ArrowDown":  Navigate(DirDown),
		"ArrowLeft":  Navigate(DirLeft),
		"ArrowRight": Navigate(DirRight),
		"KeyW":       Navigate(DirUp),
		"KeyS":       Navigate(DirDown),
		"KeyA":       Navigate(DirLeft),
		"KeyD":       Navigate(DirRight),

		"Enter": Confirm(),
		"Space": Confirm(),
		"KeyZ":  Confirm(),

		"Escape":    Cancel(),
		"Backspace": Cancel(),
		"KeyX":      Cancel(),

		"Tab":  MenuToggle(),
		"KeyM": MenuToggle(),
	},
	SourceGamepad: {
		"dpad_up":     Navigate(DirUp),
		"dpad_down":   Navigate(DirDown),
		"dpad_left":   Navigate(DirLeft),
		"dpad_right":  Navigate(DirRight),
		"stick_up":    Navigate(DirUp),
		"stick_down":  Navigate(DirDown),
		"stick_left":  Navigate(DirLeft),
		"stick_right": Navigate(DirRight),

		"button_a": Confirm(),
		"button_b": Cancel(),
		"start":    MenuToggle(),
		"select":   MenuToggle(),
	},
	SourceTouch: {
		"swipe_up":    Navigate(DirUp),
		"swipe_down":  Navigate(DirDown),
		"swipe_left":  Navigate(DirLeft),
		"swipe_right": Navigate(DirRight),

		"tap":        Confirm(),
		"double_tap": Cancel(),
		"long_press": MenuToggle(),
	},
}

// Normalize maps a raw event through b. Codes are matched exactly, then
// lower-cased for gamepad and touch.
func (b Bindings) Normalize(raw RawEvent) (Action, bool) {
	table, ok := b[raw.Source]
	if !ok {
		return Action{}, false
	}
	a, ok := table[raw.Code]
	if !ok && raw.Source != SourceKeyboard {
		a, ok = table[strings.ToLower(raw.Code)]
	}
	if !ok {
		return Action{}, false
	}
	a.Source = raw.Source
	return a, true
}
