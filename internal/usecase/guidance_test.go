package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"guidance-chat/internal/domain"
)

type mockLister struct {
	msgs []domain.Message
	err  error
}

func (m *mockLister) ListMessages(context.Context, string) ([]domain.Message, error) {
	return m.msgs, m.err
}

var guidanceBase = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func messagesAt(offsets ...time.Duration) []domain.Message {
	out := make([]domain.Message, 0, len(offsets))
	for _, off := range offsets {
		out = append(out, domain.Message{
			ConversationID: "c1",
			SenderID:       "u1",
			Kind:           domain.MessageKindUser,
			CreationTime:   guidanceBase.Add(off),
		})
	}
	return out
}

func newTestAnalyzer(t *testing.T, lister MessageLister, writer MessageWriter) *GuidanceAnalyzer {
	t.Helper()
	a, err := NewGuidanceAnalyzer(lister, writer, nil)
	require.NoError(t, err)
	return a
}

func TestNewGuidanceAnalyzer_ValidatesDependencies(t *testing.T) {
	_, err := NewGuidanceAnalyzer(nil, newMockStore(), nil)
	require.Error(t, err)

	_, err = NewGuidanceAnalyzer(&mockLister{}, nil, nil)
	require.Error(t, err)
}

func TestAnalyzeGuidance(t *testing.T) {
	tests := []struct {
		name    string
		msgs    []domain.Message
		wantAdd bool
	}{
		{name: "no messages", msgs: nil},
		{name: "two messages", msgs: messagesAt(0, time.Second)},
		{name: "three within window", msgs: messagesAt(0, 10*time.Second, 20*time.Second), wantAdd: true},
		{name: "just under window", msgs: messagesAt(0, time.Second, 59*time.Second+999*time.Millisecond), wantAdd: true},
		{name: "exactly at window", msgs: messagesAt(0, time.Second, 60*time.Second)},
		{name: "spread out", msgs: messagesAt(0, 30*time.Second, 90*time.Second)},
		{name: "only last three count", msgs: messagesAt(0, 5*time.Minute, 5*time.Minute+time.Second, 5*time.Minute+2*time.Second), wantAdd: true},
		{name: "old burst ignored", msgs: messagesAt(0, time.Second, 2*time.Second, 10*time.Minute)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMockStore()
			a := newTestAnalyzer(t, &mockLister{msgs: tt.msgs}, store)

			require.NoError(t, a.AnalyzeGuidance(context.Background(), "c1"))

			if !tt.wantAdd {
				require.Empty(t, store.messages)
				return
			}
			require.Len(t, store.messages, 1)
			got := store.messages[0]
			require.Equal(t, "c1", got.ConversationID)
			require.Equal(t, GuidanceText, got.Content)
			require.Equal(t, domain.MessageKindGuidance, got.Kind)
			require.False(t, got.HasSender())
			require.NotEmpty(t, got.ID)
		})
	}
}

func TestAnalyzeGuidance_CountsPriorGuidance(t *testing.T) {
	msgs := messagesAt(0, time.Second, 2*time.Second)
	msgs[1].Kind = domain.MessageKindGuidance
	msgs[1].SenderID = ""
	store := newMockStore()
	a := newTestAnalyzer(t, &mockLister{msgs: msgs}, store)

	require.NoError(t, a.AnalyzeGuidance(context.Background(), "c1"))
	require.Len(t, store.messages, 1)
}

func TestAnalyzeGuidance_ListErrorPropagates(t *testing.T) {
	listErr := newError(ErrorNotFound, "conversation_not_found", nil)
	store := newMockStore()
	a := newTestAnalyzer(t, &mockLister{err: listErr}, store)

	err := a.AnalyzeGuidance(context.Background(), "c1")
	require.ErrorIs(t, err, listErr)
	require.Equal(t, ErrorNotFound, CodeOf(err))
	require.Empty(t, store.messages)
}

func TestAnalyzeGuidance_InsertError(t *testing.T) {
	store := newMockStore()
	store.insertMsgErr = errors.New("put failed")
	a := newTestAnalyzer(t, &mockLister{msgs: messagesAt(0, time.Second, 2*time.Second)}, store)

	err := a.AnalyzeGuidance(context.Background(), "c1")
	expectError(t, err, ErrorInternal, "store_insert_guidance_error")
}

func TestAddGuidanceMessage_CustomContent(t *testing.T) {
	store := newMockStore()
	a := newTestAnalyzer(t, &mockLister{}, store)

	require.NoError(t, a.AddGuidanceMessage(context.Background(), "c9", "slow down"))
	require.Len(t, store.messages, 1)
	require.Equal(t, "slow down", store.messages[0].Content)
	require.Equal(t, "c9", store.messages[0].ConversationID)
}
