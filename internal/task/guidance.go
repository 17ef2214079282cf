package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"guidance-chat/internal/dispatch"
	"guidance-chat/internal/usecase"
)

const (
	AnalyzeGuidanceTaskType = "conversations:analyze_guidance"

	GuidanceQueue    = "guidance"
	guidanceRetries  = 3
	guidanceDeadline = 10 * time.Second
)

type AnalyzeGuidancePayload struct {
	ConversationID string `json:"conversationId"`
}

// Analyzer is the work behind an analyze_guidance task.
type Analyzer interface {
	AnalyzeGuidance(ctx context.Context, conversationID string) error
}

// Scheduler enqueues guidance analysis for a conversation.
type Scheduler struct {
	client dispatch.Client
}

var _ usecase.GuidanceScheduler = (*Scheduler)(nil)

func NewScheduler(client dispatch.Client) (*Scheduler, error) {
	if client == nil {
		return nil, errors.New("task: dispatch client must not be nil")
	}
	return &Scheduler{client: client}, nil
}

func (s *Scheduler) ScheduleGuidance(ctx context.Context, conversationID string) error {
	payload, err := json.Marshal(AnalyzeGuidancePayload{ConversationID: conversationID})
	if err != nil {
		return fmt.Errorf("task: encode payload: %w", err)
	}
	_, err = s.client.Enqueue(ctx, dispatch.Task{Type: AnalyzeGuidanceTaskType, Payload: payload},
		dispatch.EnqueueOption{Queue: GuidanceQueue, MaxRetry: guidanceRetries})
	return err
}

// RegisterAnalyzeGuidance wires the analyzer to the server. Malformed payloads
// and conversations that no longer exist are not retried.
func RegisterAnalyzeGuidance(srv dispatch.Server, analyzer Analyzer) error {
	if srv == nil {
		return errors.New("task: dispatch server must not be nil")
	}
	if analyzer == nil {
		return errors.New("task: analyzer must not be nil")
	}
	srv.Register(AnalyzeGuidanceTaskType, analyzeGuidanceHandler(analyzer))
	return nil
}

func analyzeGuidanceHandler(analyzer Analyzer) dispatch.Handler {
	return func(ctx context.Context, t dispatch.Task) error {
		var p AnalyzeGuidancePayload
		if err := json.Unmarshal(t.Payload, &p); err != nil {
			return fmt.Errorf("task: decode %s payload: %v: %w", t.Type, err, dispatch.ErrSkipRetry)
		}
		if strings.TrimSpace(p.ConversationID) == "" {
			return fmt.Errorf("task: %s payload has no conversationId: %w", t.Type, dispatch.ErrSkipRetry)
		}

		ctx, cancel := context.WithTimeout(ctx, guidanceDeadline)
		defer cancel()

		err := analyzer.AnalyzeGuidance(ctx, p.ConversationID)
		if err != nil && usecase.CodeOf(err) == usecase.ErrorNotFound {
			return fmt.Errorf("%w: %w", err, dispatch.ErrSkipRetry)
		}
		return err
	}
}
