// Package broadcast exports dashboard events to NATS subjects so external
// tools can follow rotations without scraping the terminal.
package broadcast

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/thaleshodan/proxange/events"
)

// DefaultSubject is the subject prefix; each event goes to <prefix>.<event name>
const DefaultSubject = "proxange.events"

// exported lists the event types sent over the wire
var exported = []events.EventType{
	events.EventRotated,
	events.EventRotationFailed,
	events.EventStateChanged,
	events.EventIntervalChanged,
	events.EventProxiesTested,
}

// Envelope is the JSON message body
type Envelope struct {
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Publisher forwards routed events to NATS, implementing events.Handler
type Publisher struct {
	nc     *nats.Conn
	prefix string
	log    *zap.Logger
}

// Connect dials url and returns a publisher for subject prefix
func Connect(url, prefix string, log *zap.Logger) (*Publisher, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if prefix == "" {
		prefix = DefaultSubject
	}

	nc, err := nats.Connect(url,
		nats.Name("proxange"),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			log.Warn("NATS error", zap.Error(err))
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("NATS disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Info("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &Publisher{nc: nc, prefix: prefix, log: log}, nil
}

// Subject returns the subject for an event type
func (p *Publisher) Subject(et events.EventType) string {
	return p.prefix + "." + events.GetEventName(et)
}

// EventTypes implements events.Handler
func (p *Publisher) EventTypes() []events.EventType {
	return exported
}

// HandleEvent encodes and publishes one event; failures are logged, never returned
func (p *Publisher) HandleEvent(ev events.Event) {
	data, err := Encode(ev)
	if err != nil {
		p.log.Warn("encode event", zap.String("type", events.GetEventName(ev.Type)), zap.Error(err))
		return
	}
	if err := p.nc.Publish(p.Subject(ev.Type), data); err != nil {
		p.log.Warn("publish event", zap.String("type", events.GetEventName(ev.Type)), zap.Error(err))
	}
}

// Flush waits for the server to acknowledge pending messages
func (p *Publisher) Flush() error {
	return p.nc.Flush()
}

// Close drains pending messages and closes the connection
func (p *Publisher) Close() error {
	return p.nc.Drain()
}

// Encode wraps an event in an Envelope
func Encode(ev events.Event) ([]byte, error) {
	env := Envelope{
		Type:      events.GetEventName(ev.Type),
		Timestamp: ev.Timestamp,
	}
	if ev.Payload != nil {
		raw, err := json.Marshal(ev.Payload)
		if err != nil {
			return nil, err
		}
		env.Payload = raw
	}
	return json.Marshal(env)
}

// Decode parses an envelope and its payload into the registered payload struct
func Decode(data []byte) (events.EventType, any, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return 0, nil, fmt.Errorf("decode envelope: %w", err)
	}
	et, ok := events.GetEventType(env.Type)
	if !ok {
		return 0, nil, fmt.Errorf("unknown event type %q", env.Type)
	}
	payload := events.NewPayloadStruct(et)
	if payload != nil && len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, payload); err != nil {
			return et, nil, fmt.Errorf("decode payload: %w", err)
		}
	}
	return et, payload, nil
}
