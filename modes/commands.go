package modes

import (
	"strings"

	"go.uber.org/zap"

	"github.com/thaleshodan/proxange/constants"
	"github.com/thaleshodan/proxange/logbook"
)

// Action is the effect a terminal command maps to
type Action int

const (
	ActionUnknown Action = iota
	ActionHelp
	ActionRotate
	ActionStatus
	ActionClear
	ActionExit
)

func (a Action) String() string {
	switch a {
	case ActionHelp:
		return "help"
	case ActionRotate:
		return "rotate"
	case ActionStatus:
		return "status"
	case ActionClear:
		return "clear"
	case ActionExit:
		return "exit"
	default:
		return "unknown"
	}
}

var commandTable = map[string]Action{
	"help":   ActionHelp,
	"rotate": ActionRotate,
	"status": ActionStatus,
	"clear":  ActionClear,
	"exit":   ActionExit,
}

// Interpret maps raw terminal input to an action, case-insensitive and whitespace-trimmed
// Anything outside the table, blank input included, is ActionUnknown
func Interpret(input string) Action {
	if a, ok := commandTable[strings.ToLower(strings.TrimSpace(input))]; ok {
		return a
	}
	return ActionUnknown
}

// StatusReport is the identity summary printed by the status command
type StatusReport struct {
	Address      string
	City         string
	Country      string
	Proxy        string
	AutoRotation bool
}

// Lines renders the report as log lines
func (r StatusReport) Lines() []string {
	rotation := "Disabled"
	if r.AutoRotation {
		rotation = "Enabled"
	}
	return []string{
		"Current IP: " + r.Address,
		"Location: " + r.City + ", " + r.Country,
		"Proxy: " + r.Proxy,
		"Auto-rotation: " + rotation,
	}
}

// Target receives the effects of interpreted commands
type Target interface {
	RotateNow()
	Status() StatusReport
	CloseTerminal()
}

// Interpreter executes terminal commands against a target, logging to a logbook
type Interpreter struct {
	log    *logbook.Log
	target Target
	logger *zap.Logger
}

// NewInterpreter creates an interpreter writing to log
func NewInterpreter(log *logbook.Log, target Target, logger *zap.Logger) *Interpreter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Interpreter{
		log:    log,
		target: target,
		logger: logger,
	}
}

// Execute echoes input to the log, then performs the mapped action
func (i *Interpreter) Execute(input string) Action {
	action := Interpret(input)
	i.log.Append(input)
	i.logger.Debug("command", zap.String("input", input), zap.Stringer("action", action))

	switch action {
	case ActionHelp:
		i.log.Append(constants.HelpText)
	case ActionRotate:
		i.target.RotateNow()
	case ActionStatus:
		for _, line := range i.target.Status().Lines() {
			i.log.Append(line)
		}
	case ActionClear:
		i.log.Clear()
	case ActionExit:
		i.target.CloseTerminal()
	default:
		i.log.Append(constants.UnknownCommandText)
	}
	return action
}
