package events

import (
	"time"
)

// EventType represents the type of dashboard event
type EventType int

const (
	// EventRotated signals a completed identity rotation
	// Trigger: identity.Rotator | Payload: *RotatedPayload
	EventRotated EventType = iota + 1

	// EventRotationFailed signals a probe failure during rotation
	// Trigger: identity.Rotator | Payload: *RotationFailedPayload
	EventRotationFailed

	// EventStateChanged signals auto-rotation activation or deactivation
	// Trigger: dashboard toggle | Payload: *StateChangedPayload
	EventStateChanged

	// EventIntervalChanged signals a new rotation interval
	// Trigger: dashboard interval keys | Payload: *IntervalChangedPayload
	EventIntervalChanged

	// EventLogAppended signals a new connection log line
	// Trigger: logbook observer | Payload: *LogAppendedPayload
	EventLogAppended

	// EventNotification signals a user-facing toast
	// Trigger: dashboard.Notifier | Payload: *NotificationPayload
	EventNotification

	// EventProxiesTested signals the end of a proxy connectivity test
	// Trigger: dashboard test action | Payload: *ProxiesTestedPayload
	EventProxiesTested
)

// Event is one published occurrence
type Event struct {
	Type      EventType
	Payload   any
	Timestamp time.Time
}
