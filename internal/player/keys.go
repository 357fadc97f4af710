package player

import "github.com/gdamore/tcell/v2"

// Action is a player command bound to a key.
type Action int

const (
	ActionNone Action = iota
	ActionQuit
	ActionTogglePause
	ActionFaster
	ActionSlower
	ActionNextMarker
	ActionPrevMarker
	ActionSeekForward
	ActionSeekBackward
	ActionStep
	ActionRestart
)

// KeyAction maps a key press to an action.
func KeyAction(ev *tcell.EventKey) Action {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return ActionQuit
	case tcell.KeyRight:
		return ActionSeekForward
	case tcell.KeyLeft:
		return ActionSeekBackward
	case tcell.KeyHome:
		return ActionRestart
	case tcell.KeyRune:
	default:
		return ActionNone
	}
	switch ev.Rune() {
	case 'q', 'Q':
		return ActionQuit
	case ' ':
		return ActionTogglePause
	case '+', '=':
		return ActionFaster
	case '-', '_':
		return ActionSlower
	case ']':
		return ActionNextMarker
	case '[':
		return ActionPrevMarker
	case '.':
		return ActionStep
	case '0':
		return ActionRestart
	}
	return ActionNone
}
