package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"guidance-chat/internal/domain"
	"guidance-chat/internal/logging"
	"guidance-chat/internal/usecase"
)

const correlationHeader = "X-Correlation-Id"

// ConversationUseCase is the client-facing surface served over API Gateway.
type ConversationUseCase interface {
	RegisterUser(ctx context.Context, name string) (string, error)
	CreateConversation(ctx context.Context, participants []string) (string, error)
	SendMessage(ctx context.Context, in usecase.SendMessageInput) error
	ListMessages(ctx context.Context, conversationID string) ([]domain.Message, error)
}

type Handler struct {
	uc     ConversationUseCase
	logger *slog.Logger
}

// NewHandler uses slog.Default when logger is nil.
func NewHandler(uc ConversationUseCase, logger *slog.Logger) (*Handler, error) {
	if uc == nil {
		return nil, errors.New("handler: use case must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{uc: uc, logger: logging.Contextual(logger)}, nil
}

type registerUserRequest struct {
	Name *string `json:"name"`
}

type registerUserResponse struct {
	UserID string `json:"userId"`
}

type createConversationRequest struct {
	Participants []string `json:"participants"`
}

type createConversationResponse struct {
	ConversationID string `json:"conversationId"`
}

type sendMessageRequest struct {
	SenderID string  `json:"senderId"`
	Content  *string `json:"content"`
}

type messageResponse struct {
	ID             string `json:"id"`
	CreationTime   int64  `json:"creationTime"`
	ConversationID string `json:"conversationId"`
	SenderID       string `json:"senderId,omitempty"`
	Content        string `json:"content"`
	MessageType    string `json:"messageType"`
	CreatedAt      int64  `json:"createdAt"`
}

type listMessagesResponse struct {
	Messages []messageResponse `json:"messages"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason"`
}

// Handle routes an API Gateway proxy request. Failures are always reported
// through the response; the returned error is reserved for the runtime.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	start := time.Now()
	correlationID := headerValue(req.Headers, correlationHeader)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}

	ctx = logging.WithCorrelationID(ctx, correlationID)

	status, body := h.route(ctx, req)
	h.logger.InfoContext(ctx, "request handled",
		"method", req.HTTPMethod,
		"path", req.Path,
		"status", status,
		"durationMs", time.Since(start).Milliseconds())

	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":    "application/json",
			correlationHeader: correlationID,
		},
		Body: body,
	}, nil
}

func (h *Handler) route(ctx context.Context, req events.APIGatewayProxyRequest) (int, string) {
	segments := strings.Split(strings.Trim(req.Path, "/"), "/")
	method := strings.ToUpper(req.HTTPMethod)

	switch {
	case len(segments) == 1 && segments[0] == "users":
		if method != http.MethodPost {
			return methodNotAllowed()
		}
		return h.registerUser(ctx, req)
	case len(segments) == 1 && segments[0] == "conversations":
		if method != http.MethodPost {
			return methodNotAllowed()
		}
		return h.createConversation(ctx, req)
	case len(segments) == 3 && segments[0] == "conversations" && segments[1] != "" && segments[2] == "messages":
		switch method {
		case http.MethodPost:
			return h.sendMessage(ctx, segments[1], req)
		case http.MethodGet:
			return h.listMessages(ctx, segments[1])
		}
		return methodNotAllowed()
	}
	return writeError(http.StatusNotFound, "ROUTE_NOT_FOUND", "")
}

func (h *Handler) registerUser(ctx context.Context, req events.APIGatewayProxyRequest) (int, string) {
	var in registerUserRequest
	if status, body, ok := decode(req, &in); !ok {
		return status, body
	}
	if in.Name == nil {
		return invalidInput("name_required")
	}
	id, err := h.uc.RegisterUser(ctx, *in.Name)
	if err != nil {
		return h.fromError(ctx, err)
	}
	return writeJSON(http.StatusCreated, registerUserResponse{UserID: id})
}

func (h *Handler) createConversation(ctx context.Context, req events.APIGatewayProxyRequest) (int, string) {
	var in createConversationRequest
	if status, body, ok := decode(req, &in); !ok {
		return status, body
	}
	if in.Participants == nil {
		return invalidInput("participants_required")
	}
	id, err := h.uc.CreateConversation(ctx, in.Participants)
	if err != nil {
		return h.fromError(ctx, err)
	}
	return writeJSON(http.StatusCreated, createConversationResponse{ConversationID: id})
}

func (h *Handler) sendMessage(ctx context.Context, conversationID string, req events.APIGatewayProxyRequest) (int, string) {
	var in sendMessageRequest
	if status, body, ok := decode(req, &in); !ok {
		return status, body
	}
	if in.SenderID == "" {
		return invalidInput("sender_id_required")
	}
	if in.Content == nil {
		return invalidInput("content_required")
	}
	err := h.uc.SendMessage(ctx, usecase.SendMessageInput{
		ConversationID: conversationID,
		SenderID:       in.SenderID,
		Content:        *in.Content,
	})
	if err != nil {
		return h.fromError(ctx, err)
	}
	return http.StatusNoContent, ""
}

func (h *Handler) listMessages(ctx context.Context, conversationID string) (int, string) {
	msgs, err := h.uc.ListMessages(ctx, conversationID)
	if err != nil {
		return h.fromError(ctx, err)
	}
	out := listMessagesResponse{Messages: make([]messageResponse, 0, len(msgs))}
	for _, m := range msgs {
		out.Messages = append(out.Messages, messageResponse{
			ID:             m.ID,
			CreationTime:   m.CreationTime.UnixMilli(),
			ConversationID: m.ConversationID,
			SenderID:       m.SenderID,
			Content:        m.Content,
			MessageType:    string(m.Kind),
			CreatedAt:      m.CreatedAt.UnixMilli(),
		})
	}
	return writeJSON(http.StatusOK, out)
}

func decode(req events.APIGatewayProxyRequest, v any) (int, string, bool) {
	body := req.Body
	if req.IsBase64Encoded {
		raw, err := base64.StdEncoding.DecodeString(body)
		if err != nil {
			status, out := invalidInput("invalid_body")
			return status, out, false
		}
		body = string(raw)
	}
	if err := json.Unmarshal([]byte(body), v); err != nil {
		status, out := invalidInput("invalid_json")
		return status, out, false
	}
	return 0, "", true
}

func (h *Handler) fromError(ctx context.Context, err error) (int, string) {
	var ucErr *usecase.Error
	if !errors.As(err, &ucErr) {
		h.logger.ErrorContext(ctx, "unexpected error", "err", err)
		return writeError(http.StatusInternalServerError, string(usecase.ErrorInternal), "")
	}

	status := http.StatusInternalServerError
	switch ucErr.Code {
	case usecase.ErrorInvalidInput:
		status = http.StatusBadRequest
	case usecase.ErrorNotFound:
		status = http.StatusNotFound
	case usecase.ErrorPermissionDenied:
		status = http.StatusForbidden
	}
	if status == http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, "request failed", "code", ucErr.Code, "reason", ucErr.Reason, "err", ucErr.Err)
	}
	return writeError(status, string(ucErr.Code), ucErr.Reason)
}

func invalidInput(reason string) (int, string) {
	return writeError(http.StatusBadRequest, string(usecase.ErrorInvalidInput), reason)
}

func methodNotAllowed() (int, string) {
	return writeError(http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "")
}

func writeError(status int, code, reason string) (int, string) {
	return writeJSON(status, errorResponse{Error: code, Reason: reason})
}

func writeJSON(status int, v any) (int, string) {
	b, err := json.Marshal(v)
	if err != nil {
		return http.StatusInternalServerError, `{"error":"INTERNAL_ERROR"}`
	}
	return status, string(b)
}

func headerValue(headers map[string]string, name string) string {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
