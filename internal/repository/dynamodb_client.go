package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"guidance-chat/internal/domain"
)

const (
	pkPrefixUser = "USER#"
	pkPrefixConv = "CONV#"
	skPrefixMsg  = "MSG#"
	skMeta       = "META#"

	putGuard = "attribute_not_exists(PK) AND attribute_not_exists(SK)"
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// Store defines the record operations consumed by the usecases.
type Store interface {
	InsertUser(ctx context.Context, u domain.User) (domain.User, error)
	InsertConversation(ctx context.Context, c domain.Conversation) (domain.Conversation, error)
	GetConversation(ctx context.Context, conversationID string) (*domain.Conversation, error)
	InsertMessage(ctx context.Context, m domain.Message) (domain.Message, error)
	ListMessagesByConversation(ctx context.Context, conversationID string) ([]domain.Message, error)
}

var _ Store = (*Client)(nil)

// Client stores users, conversations and messages in a single DynamoDB table.
//
// Messages live in their conversation's partition under MSG# sort keys that
// begin with the zero-padded creation time, so a forward Query over the
// partition returns them in creation order.
//
// Creation times come from this process's clock. One Client never hands out
// the same message creation time twice, but instances with skewed clocks can
// still interleave out of wall-clock order; ties between instances fall back
// to message id order.
type Client struct {
	api       dynamodbAPI
	tableName string
	now       func() time.Time

	mu          sync.Mutex
	lastMessage time.Time
}

// New creates a new repository Client.
func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName, now: time.Now}, nil
}

func userPK(userID string) string {
	return pkPrefixUser + userID
}

func convPK(conversationID string) string {
	return pkPrefixConv + conversationID
}

// msgSK orders by creation time first; the message id keeps keys unique.
func msgSK(creation time.Time, messageID string) string {
	return fmt.Sprintf("%s%019d#%s", skPrefixMsg, creation.UnixNano(), messageID)
}

// InsertUser writes a new user record and returns it with its creation time.
func (c *Client) InsertUser(ctx context.Context, u domain.User) (domain.User, error) {
	if u.ID == "" {
		return domain.User{}, errors.New("repository: InsertUser: id is required")
	}
	u.CreationTime = c.now().UTC()

	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(c.tableName),
		Item:                userItem(u),
		ConditionExpression: aws.String(putGuard),
	})
	if err != nil {
		return domain.User{}, fmt.Errorf("repository: InsertUser: %w", err)
	}
	return u, nil
}

// InsertConversation writes a new conversation metadata record.
func (c *Client) InsertConversation(ctx context.Context, conv domain.Conversation) (domain.Conversation, error) {
	if conv.ID == "" {
		return domain.Conversation{}, errors.New("repository: InsertConversation: id is required")
	}
	conv.CreationTime = c.now().UTC()

	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(c.tableName),
		Item:                conversationItem(conv),
		ConditionExpression: aws.String(putGuard),
	})
	if err != nil {
		return domain.Conversation{}, fmt.Errorf("repository: InsertConversation: %w", err)
	}
	return conv, nil
}

// GetConversation returns nil without error when the conversation does not exist.
func (c *Client) GetConversation(ctx context.Context, conversationID string) (*domain.Conversation, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: convPK(conversationID)},
			"SK": &types.AttributeValueMemberS{Value: skMeta},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("repository: GetConversation get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return nil, nil
	}

	conv, err := itemToConversation(out.Item)
	if err != nil {
		return nil, fmt.Errorf("repository: GetConversation decode: %w", err)
	}
	return &conv, nil
}

// InsertMessage appends a message to its conversation partition.
func (c *Client) InsertMessage(ctx context.Context, m domain.Message) (domain.Message, error) {
	if m.ID == "" || m.ConversationID == "" {
		return domain.Message{}, errors.New("repository: InsertMessage: id and conversation id are required")
	}
	m.CreationTime = c.nextMessageTime()

	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(c.tableName),
		Item:                messageItem(m),
		ConditionExpression: aws.String(putGuard),
	})
	if err != nil {
		return domain.Message{}, fmt.Errorf("repository: InsertMessage: %w", err)
	}
	return m, nil
}

// nextMessageTime is now, bumped past the last message time this Client
// assigned when the clock has not advanced.
func (c *Client) nextMessageTime() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	ts := c.now().UTC()
	if !ts.After(c.lastMessage) {
		ts = c.lastMessage.Add(time.Nanosecond)
	}
	c.lastMessage = ts
	return ts
}

// ListMessagesByConversation reads every message of the conversation in
// ascending creation order, following pagination to the end.
func (c *Client) ListMessagesByConversation(ctx context.Context, conversationID string) ([]domain.Message, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: convPK(conversationID)},
			":prefix": &types.AttributeValueMemberS{Value: skPrefixMsg},
		},
		ScanIndexForward: aws.Bool(true),
		ConsistentRead:   aws.Bool(true),
	}

	msgs := []domain.Message{}
	for {
		out, err := c.api.Query(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("repository: ListMessagesByConversation query: %w", err)
		}
		for _, item := range out.Items {
			msg, err := itemToMessage(item)
			if err != nil {
				return nil, fmt.Errorf("repository: ListMessagesByConversation unmarshal: %w", err)
			}
			msgs = append(msgs, msg)
		}
		if len(out.LastEvaluatedKey) == 0 {
			return msgs, nil
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

func userItem(u domain.User) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":           &types.AttributeValueMemberS{Value: userPK(u.ID)},
		"SK":           &types.AttributeValueMemberS{Value: skMeta},
		"userId":       &types.AttributeValueMemberS{Value: u.ID},
		"name":         &types.AttributeValueMemberS{Value: u.Name},
		"creationTime": nanosAttr(u.CreationTime),
	}
}

func conversationItem(conv domain.Conversation) map[string]types.AttributeValue {
	participants := make([]types.AttributeValue, 0, len(conv.Participants))
	for _, id := range conv.Participants {
		participants = append(participants, &types.AttributeValueMemberS{Value: id})
	}
	return map[string]types.AttributeValue{
		"PK":             &types.AttributeValueMemberS{Value: convPK(conv.ID)},
		"SK":             &types.AttributeValueMemberS{Value: skMeta},
		"conversationId": &types.AttributeValueMemberS{Value: conv.ID},
		"participants":   &types.AttributeValueMemberL{Value: participants},
		"status":         &types.AttributeValueMemberS{Value: conv.Status},
		"createdAt":      millisAttr(conv.CreatedAt),
		"creationTime":   nanosAttr(conv.CreationTime),
	}
}

func messageItem(m domain.Message) map[string]types.AttributeValue {
	item := map[string]types.AttributeValue{
		"PK":             &types.AttributeValueMemberS{Value: convPK(m.ConversationID)},
		"SK":             &types.AttributeValueMemberS{Value: msgSK(m.CreationTime, m.ID)},
		"messageId":      &types.AttributeValueMemberS{Value: m.ID},
		"conversationId": &types.AttributeValueMemberS{Value: m.ConversationID},
		"content":        &types.AttributeValueMemberS{Value: m.Content},
		"messageType":    &types.AttributeValueMemberS{Value: string(m.Kind)},
		"createdAt":      millisAttr(m.CreatedAt),
		"creationTime":   nanosAttr(m.CreationTime),
	}
	if m.HasSender() {
		item["senderId"] = &types.AttributeValueMemberS{Value: m.SenderID}
	}
	return item
}

func itemToConversation(item map[string]types.AttributeValue) (domain.Conversation, error) {
	id, err := strAttr(item, "conversationId")
	if err != nil {
		return domain.Conversation{}, err
	}
	status, err := strAttr(item, "status")
	if err != nil {
		return domain.Conversation{}, err
	}
	participants, err := strListAttr(item, "participants")
	if err != nil {
		return domain.Conversation{}, err
	}
	createdAt, err := intAttr(item, "createdAt")
	if err != nil {
		return domain.Conversation{}, err
	}
	creation, err := intAttr(item, "creationTime")
	if err != nil {
		return domain.Conversation{}, err
	}
	return domain.Conversation{
		ID:           id,
		Participants: participants,
		Status:       status,
		CreatedAt:    time.UnixMilli(createdAt).UTC(),
		CreationTime: time.Unix(0, creation).UTC(),
	}, nil
}

func itemToMessage(item map[string]types.AttributeValue) (domain.Message, error) {
	id, err := strAttr(item, "messageId")
	if err != nil {
		return domain.Message{}, err
	}
	conversationID, err := strAttr(item, "conversationId")
	if err != nil {
		return domain.Message{}, err
	}
	content, err := strAttr(item, "content")
	if err != nil {
		return domain.Message{}, err
	}
	kind, err := strAttr(item, "messageType")
	if err != nil {
		return domain.Message{}, err
	}
	if !domain.MessageKind(kind).Valid() {
		return domain.Message{}, fmt.Errorf("repository: unknown messageType %q", kind)
	}
	createdAt, err := intAttr(item, "createdAt")
	if err != nil {
		return domain.Message{}, err
	}
	creation, err := intAttr(item, "creationTime")
	if err != nil {
		return domain.Message{}, err
	}
	senderID, _ := strAttr(item, "senderId") // absent for synthetic messages

	return domain.Message{
		ID:             id,
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		Kind:           domain.MessageKind(kind),
		CreatedAt:      time.UnixMilli(createdAt).UTC(),
		CreationTime:   time.Unix(0, creation).UTC(),
	}, nil
}

func millisAttr(t time.Time) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(t.UnixMilli(), 10)}
}

func nanosAttr(t time.Time) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(t.UnixNano(), 10)}
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}

func intAttr(item map[string]types.AttributeValue, key string) (int64, error) {
	v, ok := item[key]
	if !ok {
		return 0, fmt.Errorf("repository: missing attribute %q", key)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("repository: attribute %q is not a number", key)
	}
	parsed, err := strconv.ParseInt(n.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("repository: parse attribute %q: %w", key, err)
	}
	return parsed, nil
}

func strListAttr(item map[string]types.AttributeValue, key string) ([]string, error) {
	v, ok := item[key]
	if !ok {
		return nil, fmt.Errorf("repository: missing attribute %q", key)
	}
	l, ok := v.(*types.AttributeValueMemberL)
	if !ok {
		return nil, fmt.Errorf("repository: attribute %q is not a list", key)
	}
	out := make([]string, 0, len(l.Value))
	for i, elem := range l.Value {
		s, ok := elem.(*types.AttributeValueMemberS)
		if !ok {
			return nil, fmt.Errorf("repository: attribute %q element %d is not a string", key, i)
		}
		out = append(out, s.Value)
	}
	return out, nil
}
