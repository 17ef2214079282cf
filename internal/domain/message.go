package domain

import "time"

// MessageKind tags who produced a message.
type MessageKind string

const (
	MessageKindUser     MessageKind = "user"
	MessageKindSystem   MessageKind = "system"
	MessageKindGuidance MessageKind = "guidance"
)

// Valid reports whether k is one of the known kinds.
func (k MessageKind) Valid() bool {
	switch k {
	case MessageKindUser, MessageKindSystem, MessageKindGuidance:
		return true
	}
	return false
}

// Message is a single immutable entry in a conversation.
//
// CreatedAt comes from the service clock when the message is built.
// CreationTime is assigned by the store on insert and defines ordering.
type Message struct {
	ID             string
	ConversationID string
	// SenderID is empty for synthetic messages.
	SenderID     string
	Content      string
	Kind         MessageKind
	CreatedAt    time.Time
	CreationTime time.Time
}

// HasSender reports whether the message is attributed to a user.
func (m Message) HasSender() bool {
	return m.SenderID != ""
}
