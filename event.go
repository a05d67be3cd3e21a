package tickws

// EventType discriminates the events delivered by Poll.
type EventType int

const (
	// EventNone is the zero value; it is never delivered.
	EventNone EventType = iota

	// EventClientConnected reports a completed handshake. Data is empty.
	EventClientConnected

	// EventClientDisconnected reports that a connection ended, whatever
	// the cause. It is the last event for its connection id.
	EventClientDisconnected

	// EventMessageReceived carries one inbound message in Data. Text
	// reports the wire frame type.
	EventMessageReceived

	// EventError reports a connection-scoped failure in Error. It never
	// terminates the server; when the failure ends the connection, an
	// EventClientDisconnected follows.
	EventError
)

// String returns the event type name for logging.
func (t EventType) String() string {
	switch t {
	case EventNone:
		return "None"
	case EventClientConnected:
		return "ClientConnected"
	case EventClientDisconnected:
		return "ClientDisconnected"
	case EventMessageReceived:
		return "MessageReceived"
	case EventError:
		return "Error"
	default:
		return "Unknown"
	}
}

// Event is a single server→host notification. Ownership of Data transfers to
// the host: the slice is freshly allocated per event and never aliases a
// buffer the server keeps.
type Event struct {
	Type EventType

	// Connection identifies the connection the event belongs to.
	Connection uint64

	// Data is the message payload for EventMessageReceived, empty
	// otherwise. Text frames arrive as their UTF-8 bytes.
	Data []byte

	// Text is true when an EventMessageReceived originated from a text
	// frame rather than a binary frame.
	Text bool

	// Error is the failure description for EventError, empty otherwise.
	Error string
}
