package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMessageKind_Valid(t *testing.T) {
	require.True(t, MessageKindUser.Valid())
	require.True(t, MessageKindSystem.Valid())
	require.True(t, MessageKindGuidance.Valid())
	require.False(t, MessageKind("").Valid())
	require.False(t, MessageKind("bot").Valid())
}

func TestConversation_HasParticipant(t *testing.T) {
	c := Conversation{Participants: []string{"u1", "u2"}}
	require.True(t, c.HasParticipant("u1"))
	require.True(t, c.HasParticipant("u2"))
	require.False(t, c.HasParticipant("u3"))
	require.False(t, Conversation{}.HasParticipant("u1"))
}

func TestMessage_HasSender(t *testing.T) {
	require.True(t, Message{SenderID: "u1"}.HasSender())
	require.False(t, Message{Kind: MessageKindGuidance}.HasSender())
}
