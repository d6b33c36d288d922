package event

// Message is a decoded inbound occurrence of an event.
type Message struct {
	// Subject is the concrete subject the message was published on.
	Subject  string
	Scope    any
	Data     any
	Metadata any
	// Event is the declaration the message was decoded with.
	Event *Event

	replySubject string
}

// NewRequest returns a copy of msg that can be replied to on replySubject.
func NewRequest(msg Message, replySubject string) Message {
	msg.replySubject = replySubject
	return msg
}

// IsRequest reports whether the message carries a reply address.
func (m Message) IsRequest() bool { return m.replySubject != "" }

// ReplySubject returns the reply address, empty for plain messages.
func (m Message) ReplySubject() string { return m.replySubject }

// Reply is the decoded answer to a request.
type Reply struct {
	Data     any
	Metadata any
}

// As converts a decoded value to T. A nil value converts to the zero T.
func As[T any](v any) (T, bool) {
	if v == nil {
		var zero T
		return zero, true
	}
	t, ok := v.(T)
	return t, ok
}
