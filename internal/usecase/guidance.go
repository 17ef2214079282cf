package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"guidance-chat/internal/domain"
)

const (
	guidanceSampleSize = 3
	guidanceWindow     = 60 * time.Second

	GuidanceText = "Consider taking a moment to reflect on what's been said. " +
		"What feelings or needs might be underlying the other person's perspective?"
)

// MessageLister is the public read path the analyzer observes.
type MessageLister interface {
	ListMessages(ctx context.Context, conversationID string) ([]domain.Message, error)
}

// MessageWriter persists synthetic messages.
type MessageWriter interface {
	InsertMessage(ctx context.Context, m domain.Message) (domain.Message, error)
}

// GuidanceAnalyzer looks at the pace of a conversation and posts a guidance
// message when the last few messages arrived in quick succession.
type GuidanceAnalyzer struct {
	messages MessageLister
	writer   MessageWriter
	logger   *slog.Logger
}

func NewGuidanceAnalyzer(messages MessageLister, writer MessageWriter, logger *slog.Logger) (*GuidanceAnalyzer, error) {
	if messages == nil {
		return nil, errors.New("usecase: message lister must not be nil")
	}
	if writer == nil {
		return nil, errors.New("usecase: message writer must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GuidanceAnalyzer{messages: messages, writer: writer, logger: logger}, nil
}

// AnalyzeGuidance runs once per triggering send. It compares store creation
// times of the newest and oldest of the last three messages; any message
// kind counts, including earlier guidance.
func (a *GuidanceAnalyzer) AnalyzeGuidance(ctx context.Context, conversationID string) error {
	msgs, err := a.messages.ListMessages(ctx, conversationID)
	if err != nil {
		return err
	}
	if !needsGuidance(msgs) {
		return nil
	}

	a.logger.InfoContext(ctx, "rapid exchange detected, adding guidance", "conversationId", conversationID)
	return a.AddGuidanceMessage(ctx, conversationID, GuidanceText)
}

// AddGuidanceMessage inserts a senderless guidance message.
func (a *GuidanceAnalyzer) AddGuidanceMessage(ctx context.Context, conversationID, content string) error {
	_, err := a.writer.InsertMessage(ctx, domain.Message{
		ID:             newUUID(),
		ConversationID: conversationID,
		Content:        content,
		Kind:           domain.MessageKindGuidance,
		CreatedAt:      now().UTC(),
	})
	if err != nil {
		return newError(ErrorInternal, "store_insert_guidance_error", err)
	}
	return nil
}

func needsGuidance(msgs []domain.Message) bool {
	if len(msgs) < guidanceSampleSize {
		return false
	}
	recent := msgs[len(msgs)-guidanceSampleSize:]
	span := recent[len(recent)-1].CreationTime.Sub(recent[0].CreationTime)
	return span < guidanceWindow
}
