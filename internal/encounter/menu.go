package encounter

import "kotoba-quest/internal/input"

// Menu names, also used as input focus names
const (
	MenuAction = "action"
	MenuItems  = "items"
	MenuResult = "result"

	FocusOverworld = "overworld"
	FocusMiniGame  = "minigame"
)

// Action and result menu option ids
const (
	OptionItems    = "items"
	OptionContinue = "continue"
	OptionRetry    = "retry"
	OptionGiveUp   = "giveup"
)

// MenuOption is one selectable row
type MenuOption struct {
	ID        string `json:"id"`
	Label     string `json:"label"`
	Detail    string `json:"detail,omitempty"`
	WeakPoint bool   `json:"weakPoint,omitempty"`
	Disabled  bool   `json:"disabled,omitempty"`
}

// MenuView is the client-facing state of the open menu
type MenuView struct {
	Name    string       `json:"name"`
	Options []MenuOption `json:"options"`
	Cursor  int          `json:"cursor"`
}

// menu is a vertical list driven by logical input
type menu struct {
	name    string
	options []MenuOption
	cursor  int
	choose  func(MenuOption)
	back    func()
	toggle  func()
}

func (m *menu) HandleAction(a input.Action) bool {
	switch a.Kind {
	case input.KindNavigate:
		if len(m.options) == 0 {
			return false
		}
		switch a.Dir {
		case input.DirUp, input.DirLeft:
			m.cursor = (m.cursor - 1 + len(m.options)) % len(m.options)
		case input.DirDown, input.DirRight:
			m.cursor = (m.cursor + 1) % len(m.options)
		default:
			return false
		}
		return true
	case input.KindConfirm:
		if m.cursor >= len(m.options) || m.options[m.cursor].Disabled || m.choose == nil {
			return false
		}
		m.choose(m.options[m.cursor])
		return true
	case input.KindCancel:
		if m.back == nil {
			return false
		}
		m.back()
		return true
	case input.KindMenuToggle:
		if m.toggle == nil {
			return false
		}
		m.toggle()
		return true
	}
	return false
}

func (m *menu) view() *MenuView {
	return &MenuView{
		Name:    m.name,
		Options: append([]MenuOption(nil), m.options...),
		Cursor:  m.cursor,
	}
}
