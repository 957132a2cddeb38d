package modes

import (
	"strings"

	"github.com/gdamore/tcell/v2"

	"github.com/thaleshodan/proxange/constants"
)

// Controller is the set of dashboard intents reachable from the keyboard
type Controller interface {
	Toggle()
	RotateNow()
	AdjustInterval(delta int) int
	OpenTerminal()
	CloseTerminal()
	TerminalOpen() bool
	Execute(input string)
	TestProxies()
	CheckLeaks()
	ToggleMute() bool
	AddProxy(kind, name, url string) error
	ClearAllLogs()
}

// InputHandler processes user input events
type InputHandler struct {
	ctl      Controller
	onResize func(w, h int)
	line     []rune
	// prompting is set while the add-proxy prompt owns the keyboard
	prompting bool
}

// NewInputHandler creates a new input handler, onResize may be nil
func NewInputHandler(ctl Controller, onResize func(w, h int)) *InputHandler {
	return &InputHandler{
		ctl:      ctl,
		onResize: onResize,
	}
}

// Line returns the terminal or prompt input being edited
func (h *InputHandler) Line() string {
	return string(h.line)
}

// Prompting reports whether the add-proxy prompt is open
func (h *InputHandler) Prompting() bool {
	return h.prompting
}

// HandleEvent processes a tcell event and returns false if the app should exit
func (h *InputHandler) HandleEvent(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		return h.handleKeyEvent(ev)
	case *tcell.EventResize:
		if h.onResize != nil {
			w, ht := ev.Size()
			h.onResize(w, ht)
		}
		return true
	}
	return true
}

// handleKeyEvent processes keyboard events
func (h *InputHandler) handleKeyEvent(ev *tcell.EventKey) bool {
	if ev.Key() == tcell.KeyCtrlC {
		return false
	}

	if h.prompting {
		return h.handlePromptMode(ev)
	}
	if h.ctl.TerminalOpen() {
		return h.handleTerminalMode(ev)
	}
	return h.handleNormalMode(ev)
}

// editLine applies line-editing keys and reports whether ev was one
func (h *InputHandler) editLine(ev *tcell.EventKey) bool {
	switch ev.Key() {
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		if len(h.line) > 0 {
			h.line = h.line[:len(h.line)-1]
		}
	case tcell.KeyCtrlU:
		h.line = h.line[:0]
	case tcell.KeyRune:
		h.line = append(h.line, ev.Rune())
	default:
		return false
	}
	return true
}

// handleTerminalMode edits the command line
func (h *InputHandler) handleTerminalMode(ev *tcell.EventKey) bool {
	switch ev.Key() {
	case tcell.KeyEscape:
		h.line = h.line[:0]
		h.ctl.CloseTerminal()
	case tcell.KeyEnter:
		input := string(h.line)
		h.line = h.line[:0]
		h.ctl.Execute(input)
	default:
		h.editLine(ev)
	}
	return true
}

// handlePromptMode edits the add-proxy line: "<kind> <name> <url>"
// The name may contain spaces; the first field is the kind and the last the URL
func (h *InputHandler) handlePromptMode(ev *tcell.EventKey) bool {
	switch ev.Key() {
	case tcell.KeyEscape:
		h.line = h.line[:0]
		h.prompting = false
	case tcell.KeyEnter:
		kind, name, url := splitProxyLine(string(h.line))
		h.line = h.line[:0]
		h.prompting = false
		// Controller logs and notifies the error
		_ = h.ctl.AddProxy(kind, name, url)
	default:
		h.editLine(ev)
	}
	return true
}

// splitProxyLine parses "<kind> <name...> <url>"; missing parts come back empty
func splitProxyLine(line string) (kind, name, url string) {
	fields := strings.Fields(line)
	switch len(fields) {
	case 0:
		return "", "", ""
	case 1:
		return fields[0], "", ""
	case 2:
		return fields[0], fields[1], ""
	}
	return fields[0], strings.Join(fields[1:len(fields)-1], " "), fields[len(fields)-1]
}

// handleNormalMode maps single keys to dashboard intents
func (h *InputHandler) handleNormalMode(ev *tcell.EventKey) bool {
	if ev.Key() != tcell.KeyRune {
		return true
	}

	switch ev.Rune() {
	case 'q':
		return false
	case ' ':
		h.ctl.Toggle()
	case 'r':
		h.ctl.RotateNow()
	case '+', '=':
		h.ctl.AdjustInterval(constants.IntervalStep)
	case '-', '_':
		h.ctl.AdjustInterval(-constants.IntervalStep)
	case ':', 't':
		h.line = h.line[:0]
		h.ctl.OpenTerminal()
	case 'p':
		h.ctl.TestProxies()
	case 'k':
		h.ctl.CheckLeaks()
	case 'a':
		h.line = h.line[:0]
		h.prompting = true
	case 'c':
		h.ctl.ClearAllLogs()
	case 'm':
		h.ctl.ToggleMute()
	}
	return true
}
