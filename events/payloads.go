package events

import "time"

// Severity classifies a notification
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityError
)

func (s Severity) String() string {
	if s == SeverityError {
		return "error"
	}
	return "info"
}

// MarshalText encodes the severity by name for exported events
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a severity name, unknown names map to info
func (s *Severity) UnmarshalText(b []byte) error {
	if string(b) == "error" {
		*s = SeverityError
	} else {
		*s = SeverityInfo
	}
	return nil
}

// RotatedPayload describes the identity after a rotation
type RotatedPayload struct {
	ID        string        `json:"id"`
	Trigger   string        `json:"trigger"`
	Address   string        `json:"address"`
	Proxy     string        `json:"proxy"`
	Country   string        `json:"country"`
	City      string        `json:"city"`
	Latency   time.Duration `json:"latency_ns"`
	Timestamp time.Time     `json:"timestamp"`
}

// RotationFailedPayload carries the probe error text
type RotationFailedPayload struct {
	Trigger string `json:"trigger"`
	Error   string `json:"error"`
}

// StateChangedPayload carries the new auto-rotation state
type StateChangedPayload struct {
	Active          bool `json:"active"`
	IntervalSeconds int  `json:"interval_seconds"`
}

// IntervalChangedPayload carries the applied interval
type IntervalChangedPayload struct {
	IntervalSeconds int `json:"interval_seconds"`
}

// LogAppendedPayload carries one log line; Cleared marks a clear
type LogAppendedPayload struct {
	Line    string `json:"line,omitempty"`
	Cleared bool   `json:"cleared,omitempty"`
}

// NotificationPayload is a toast
type NotificationPayload struct {
	Title    string   `json:"title"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// ProxiesTestedPayload summarizes a connectivity test
type ProxiesTestedPayload struct {
	Operational int `json:"operational"`
	Total       int `json:"total"`
}
