package task

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"guidance-chat/internal/dispatch"
	"guidance-chat/internal/usecase"
)

type fakeClient struct {
	tasks []dispatch.Task
	opts  [][]dispatch.EnqueueOption
	err   error
}

func (f *fakeClient) Enqueue(_ context.Context, t dispatch.Task, opts ...dispatch.EnqueueOption) (string, error) {
	f.tasks = append(f.tasks, t)
	f.opts = append(f.opts, opts)
	if f.err != nil {
		return "", f.err
	}
	return fmt.Sprintf("task-%d", len(f.tasks)), nil
}

func (f *fakeClient) Close() error { return nil }

type fakeServer struct {
	handlers map[string]dispatch.Handler
}

func (f *fakeServer) Register(taskType string, h dispatch.Handler) {
	if f.handlers == nil {
		f.handlers = make(map[string]dispatch.Handler)
	}
	f.handlers[taskType] = h
}

func (f *fakeServer) Run(context.Context) error  { return nil }
func (f *fakeServer) Stop(context.Context) error { return nil }

type fakeAnalyzer struct {
	calls       []string
	hadDeadline bool
	err         error
}

func (f *fakeAnalyzer) AnalyzeGuidance(ctx context.Context, conversationID string) error {
	f.calls = append(f.calls, conversationID)
	_, f.hadDeadline = ctx.Deadline()
	return f.err
}

func TestScheduler_EnqueuesAnalyzeTask(t *testing.T) {
	client := &fakeClient{}
	s, err := NewScheduler(client)
	require.NoError(t, err)

	require.NoError(t, s.ScheduleGuidance(context.Background(), "c1"))
	require.Len(t, client.tasks, 1)
	require.Equal(t, AnalyzeGuidanceTaskType, client.tasks[0].Type)
	require.JSONEq(t, `{"conversationId":"c1"}`, string(client.tasks[0].Payload))
	require.Equal(t, []dispatch.EnqueueOption{{Queue: GuidanceQueue, MaxRetry: 3}}, client.opts[0])
}

func TestScheduler_PropagatesEnqueueError(t *testing.T) {
	s, err := NewScheduler(&fakeClient{err: errors.New("redis down")})
	require.NoError(t, err)
	require.ErrorContains(t, s.ScheduleGuidance(context.Background(), "c1"), "redis down")
}

func TestConstructors_RejectNil(t *testing.T) {
	_, err := NewScheduler(nil)
	require.Error(t, err)
	require.Error(t, RegisterAnalyzeGuidance(nil, &fakeAnalyzer{}))
	require.Error(t, RegisterAnalyzeGuidance(&fakeServer{}, nil))
}

func registeredHandler(t *testing.T, analyzer Analyzer) dispatch.Handler {
	t.Helper()
	srv := &fakeServer{}
	require.NoError(t, RegisterAnalyzeGuidance(srv, analyzer))
	h, ok := srv.handlers[AnalyzeGuidanceTaskType]
	require.True(t, ok)
	return h
}

func TestAnalyzeGuidanceHandler_RunsAnalyzer(t *testing.T) {
	analyzer := &fakeAnalyzer{}
	h := registeredHandler(t, analyzer)

	err := h(context.Background(), dispatch.Task{Type: AnalyzeGuidanceTaskType, Payload: []byte(`{"conversationId":"c1"}`)})
	require.NoError(t, err)
	require.Equal(t, []string{"c1"}, analyzer.calls)
	require.True(t, analyzer.hadDeadline)
}

func TestAnalyzeGuidanceHandler_MalformedPayloadSkipsRetry(t *testing.T) {
	analyzer := &fakeAnalyzer{}
	h := registeredHandler(t, analyzer)

	for _, payload := range []string{`not json`, `{}`, `{"conversationId":"  "}`} {
		err := h(context.Background(), dispatch.Task{Type: AnalyzeGuidanceTaskType, Payload: []byte(payload)})
		require.ErrorIs(t, err, dispatch.ErrSkipRetry, payload)
	}
	require.Empty(t, analyzer.calls)
}

func TestAnalyzeGuidanceHandler_ErrorMapping(t *testing.T) {
	payload := []byte(`{"conversationId":"c1"}`)

	notFound := &usecase.Error{Code: usecase.ErrorNotFound, Reason: "conversation_not_found"}
	err := registeredHandler(t, &fakeAnalyzer{err: notFound})(context.Background(), dispatch.Task{Payload: payload})
	require.ErrorIs(t, err, dispatch.ErrSkipRetry)
	require.ErrorIs(t, err, notFound)

	internal := &usecase.Error{Code: usecase.ErrorInternal, Reason: "store_insert_guidance_error"}
	err = registeredHandler(t, &fakeAnalyzer{err: internal})(context.Background(), dispatch.Task{Payload: payload})
	require.ErrorIs(t, err, internal)
	require.NotErrorIs(t, err, dispatch.ErrSkipRetry)
}
