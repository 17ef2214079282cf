package usecase

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"guidance-chat/internal/domain"
)

// Store is the record store behind the conversation operations.
type Store interface {
	InsertUser(ctx context.Context, u domain.User) (domain.User, error)
	InsertConversation(ctx context.Context, c domain.Conversation) (domain.Conversation, error)
	GetConversation(ctx context.Context, conversationID string) (*domain.Conversation, error)
	InsertMessage(ctx context.Context, m domain.Message) (domain.Message, error)
	ListMessagesByConversation(ctx context.Context, conversationID string) ([]domain.Message, error)
}

// GuidanceScheduler hands a conversation off for deferred guidance analysis.
type GuidanceScheduler interface {
	ScheduleGuidance(ctx context.Context, conversationID string) error
}

type ConversationService struct {
	store     Store
	scheduler GuidanceScheduler
	logger    *slog.Logger
}

type SendMessageInput struct {
	ConversationID string
	SenderID       string
	Content        string
}

func NewConversationService(store Store, scheduler GuidanceScheduler, logger *slog.Logger) (*ConversationService, error) {
	if store == nil {
		return nil, errors.New("usecase: store must not be nil")
	}
	if scheduler == nil {
		return nil, errors.New("usecase: guidance scheduler must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ConversationService{store: store, scheduler: scheduler, logger: logger}, nil
}

// RegisterUser accepts any name, including the empty string.
func (s *ConversationService) RegisterUser(ctx context.Context, name string) (string, error) {
	u, err := s.store.InsertUser(ctx, domain.User{ID: newUUID(), Name: name})
	if err != nil {
		return "", newError(ErrorInternal, "store_insert_user_error", err)
	}
	return u.ID, nil
}

// CreateConversation does not check that the participants exist.
func (s *ConversationService) CreateConversation(ctx context.Context, participants []string) (string, error) {
	conv, err := s.store.InsertConversation(ctx, domain.Conversation{
		ID:           newUUID(),
		Participants: slices.Clone(participants),
		Status:       domain.ConversationStatusActive,
		CreatedAt:    now().UTC(),
	})
	if err != nil {
		return "", newError(ErrorInternal, "store_insert_conversation_error", err)
	}
	return conv.ID, nil
}

// SendMessage stores a user message and schedules guidance analysis for the
// conversation. Scheduling failures are logged and never reach the caller.
func (s *ConversationService) SendMessage(ctx context.Context, in SendMessageInput) error {
	conv, err := s.conversation(ctx, in.ConversationID)
	if err != nil {
		return err
	}
	if !conv.HasParticipant(in.SenderID) {
		return newError(ErrorPermissionDenied, "sender_not_participant", nil)
	}

	msg, err := s.store.InsertMessage(ctx, domain.Message{
		ID:             newUUID(),
		ConversationID: conv.ID,
		SenderID:       in.SenderID,
		Content:        in.Content,
		Kind:           domain.MessageKindUser,
		CreatedAt:      now().UTC(),
	})
	if err != nil {
		return newError(ErrorInternal, "store_insert_message_error", err)
	}

	if err := s.scheduler.ScheduleGuidance(ctx, conv.ID); err != nil {
		s.logger.WarnContext(ctx, "failed to schedule guidance analysis",
			"conversationId", conv.ID, "messageId", msg.ID, "err", err)
	}
	return nil
}

// ListMessages returns every message of the conversation in creation order.
func (s *ConversationService) ListMessages(ctx context.Context, conversationID string) ([]domain.Message, error) {
	conv, err := s.conversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	msgs, err := s.store.ListMessagesByConversation(ctx, conv.ID)
	if err != nil {
		return nil, newError(ErrorInternal, "store_list_messages_error", err)
	}
	return msgs, nil
}

func (s *ConversationService) conversation(ctx context.Context, conversationID string) (*domain.Conversation, error) {
	conv, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, newError(ErrorInternal, "store_get_conversation_error", err)
	}
	if conv == nil {
		return nil, newError(ErrorNotFound, "conversation_not_found", nil)
	}
	return conv, nil
}

var now = time.Now

var newUUID = func() string {
	return uuid.NewString()
}
