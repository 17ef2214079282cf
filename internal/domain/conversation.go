package domain

import (
	"slices"
	"time"
)

// ConversationStatusActive is the only status ever assigned to a conversation.
const ConversationStatusActive = "active"

// Conversation is a fixed set of participants exchanging messages.
type Conversation struct {
	ID           string
	Participants []string
	Status       string
	CreatedAt    time.Time
	// CreationTime is assigned by the store on insert.
	CreationTime time.Time
}

// HasParticipant reports whether userID is a member of the conversation.
func (c Conversation) HasParticipant(userID string) bool {
	return slices.Contains(c.Participants, userID)
}
