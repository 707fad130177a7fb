package domain

// EventKind enumerates inbound link events.
type EventKind int

const (
	// EventReady is sent once the device side of the link is up.
	EventReady EventKind = iota

	// EventMessage carries an application message from the device.
	EventMessage

	// EventConfigOpened signals that the user opened the configuration page.
	EventConfigOpened

	// EventConfigClosed carries the configuration page response.
	EventConfigClosed
)

// String returns a human-readable representation of the kind.
func (k EventKind) String() string {
	switch k {
	case EventReady:
		return "ready"
	case EventMessage:
		return "message"
	case EventConfigOpened:
		return "config_opened"
	case EventConfigClosed:
		return "config_closed"
	default:
		return "unknown"
	}
}

// ConfigCancelled is the configuration response meaning "no change".
const ConfigCancelled = "CANCELLED"

// Event is one inbound event from the device link.
type Event struct {
	Kind EventKind

	// Fields is set for EventMessage
	Fields Fields

	// Response is set for EventConfigClosed (URL-encoded JSON or CANCELLED)
	Response string
}
