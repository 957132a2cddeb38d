package dashboard

import (
	"go.uber.org/zap"

	"github.com/thaleshodan/proxange/events"
)

// Sound is the audio side of the dashboard; audio.SoundManager implements it
type Sound interface {
	Cue(severity events.Severity)
	PlayTick()
	ToggleMute() bool
	Muted() bool
}

// Notifier fans a notification out to the toast stack (through the router), zap and an audio cue
type Notifier struct {
	bus    *events.Router
	sound  Sound
	logger *zap.Logger
}

// NewNotifier creates a notifier; sound and logger may be nil
func NewNotifier(bus *events.Router, sound Sound, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{bus: bus, sound: sound, logger: logger}
}

// Notify is fire-and-forget and safe from any goroutine
func (n *Notifier) Notify(title, message string, severity events.Severity) {
	fields := []zap.Field{zap.String("title", title), zap.String("message", message)}
	if severity == events.SeverityError {
		n.logger.Warn("notification", fields...)
	} else {
		n.logger.Info("notification", fields...)
	}

	if n.bus != nil {
		n.bus.Publish(events.EventNotification, &events.NotificationPayload{
			Title:    title,
			Message:  message,
			Severity: severity,
		})
	}
	if n.sound != nil {
		n.sound.Cue(severity)
	}
}
