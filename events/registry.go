package events

import (
	"reflect"
)

var (
	nameToType    = make(map[string]EventType)
	typeToName    = make(map[EventType]string)
	typeToPayload = make(map[EventType]reflect.Type)
)

func init() {
	RegisterType("rotated", EventRotated, &RotatedPayload{})
	RegisterType("rotation_failed", EventRotationFailed, &RotationFailedPayload{})
	RegisterType("state_changed", EventStateChanged, &StateChangedPayload{})
	RegisterType("interval_changed", EventIntervalChanged, &IntervalChangedPayload{})
	RegisterType("log_appended", EventLogAppended, &LogAppendedPayload{})
	RegisterType("notification", EventNotification, &NotificationPayload{})
	RegisterType("proxies_tested", EventProxiesTested, &ProxiesTestedPayload{})
}

// RegisterType maps a string name to an EventType and its payload struct type
// payloadInstance should be a pointer to the payload struct, nil for no payload
func RegisterType(name string, et EventType, payloadInstance any) {
	nameToType[name] = et
	typeToName[et] = name
	if payloadInstance != nil {
		t := reflect.TypeOf(payloadInstance)
		if t.Kind() == reflect.Ptr {
			t = t.Elem()
		}
		typeToPayload[et] = t
	}
}

// GetEventType returns the EventType for a given name
func GetEventType(name string) (EventType, bool) {
	et, ok := nameToType[name]
	return et, ok
}

// GetEventName returns the string name for an EventType, "unknown" if unregistered
func GetEventName(et EventType) string {
	if name, ok := typeToName[et]; ok {
		return name
	}
	return "unknown"
}

// NewPayloadStruct returns a pointer to a zero-value payload for the event type
// Returns nil if no payload is registered
func NewPayloadStruct(et EventType) any {
	t, ok := typeToPayload[et]
	if !ok {
		return nil
	}
	return reflect.New(t).Interface()
}

// AllTypes returns every registered event type
func AllTypes() []EventType {
	out := make([]EventType, 0, len(typeToName))
	for et := EventRotated; et <= EventProxiesTested; et++ {
		if _, ok := typeToName[et]; ok {
			out = append(out, et)
		}
	}
	return out
}
