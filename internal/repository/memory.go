package repository

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"guidance-chat/internal/domain"
)

var _ Store = (*Memory)(nil)

// Memory is an in-process Store safe for concurrent use. Creation times are
// strictly increasing across all records it holds.
type Memory struct {
	mu            sync.RWMutex
	users         map[string]domain.User
	conversations map[string]domain.Conversation
	messages      map[string][]domain.Message // conversationID -> messages in insert order
	lastCreation  time.Time
	now           func() time.Time
}

// MemoryOption configures a Memory store.
type MemoryOption func(*Memory)

// WithClock overrides the clock used for creation times.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		if now != nil {
			m.now = now
		}
	}
}

// NewMemory creates an empty in-memory store.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		users:         make(map[string]domain.User),
		conversations: make(map[string]domain.Conversation),
		messages:      make(map[string][]domain.Message),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// nextCreationLocked returns now, bumped past the previous creation time if
// the clock did not advance. Caller must hold m.mu.
func (m *Memory) nextCreationLocked() time.Time {
	ts := m.now().UTC()
	if !ts.After(m.lastCreation) {
		ts = m.lastCreation.Add(time.Nanosecond)
	}
	m.lastCreation = ts
	return ts
}

func (m *Memory) InsertUser(_ context.Context, u domain.User) (domain.User, error) {
	if u.ID == "" {
		return domain.User{}, errors.New("repository: InsertUser: id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.users[u.ID]; exists {
		return domain.User{}, errors.New("repository: InsertUser: user already exists")
	}
	u.CreationTime = m.nextCreationLocked()
	m.users[u.ID] = u
	return u, nil
}

func (m *Memory) InsertConversation(_ context.Context, c domain.Conversation) (domain.Conversation, error) {
	if c.ID == "" {
		return domain.Conversation{}, errors.New("repository: InsertConversation: id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.conversations[c.ID]; exists {
		return domain.Conversation{}, errors.New("repository: InsertConversation: conversation already exists")
	}
	c.Participants = slices.Clone(c.Participants)
	c.CreationTime = m.nextCreationLocked()
	m.conversations[c.ID] = c
	return c, nil
}

func (m *Memory) GetConversation(_ context.Context, conversationID string) (*domain.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.conversations[conversationID]
	if !ok {
		return nil, nil
	}
	c.Participants = slices.Clone(c.Participants)
	return &c, nil
}

func (m *Memory) InsertMessage(_ context.Context, msg domain.Message) (domain.Message, error) {
	if msg.ID == "" || msg.ConversationID == "" {
		return domain.Message{}, errors.New("repository: InsertMessage: id and conversation id are required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	msg.CreationTime = m.nextCreationLocked()
	m.messages[msg.ConversationID] = append(m.messages[msg.ConversationID], msg)
	return msg, nil
}

func (m *Memory) ListMessagesByConversation(_ context.Context, conversationID string) ([]domain.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// Insert order equals creation order since creation times only grow.
	return append([]domain.Message{}, m.messages[conversationID]...), nil
}
