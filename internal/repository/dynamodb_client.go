package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"telegram-bot-core/internal/domain"
)

const (
	pkPrefixUser = "USER#"
	skSession    = "SESSION#"
	attrSession  = "session"
)

// dynamodbAPI is the minimal DynamoDB interface required by SessionStore.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// SessionStore keeps one JSON session document per user in a DynamoDB table.
// There is no per-user locking: concurrent updates for one user resolve as
// last write wins.
type SessionStore struct {
	api       dynamodbAPI
	tableName string
	logger    *slog.Logger
	now       func() time.Time
}

// New creates a SessionStore.
func New(api dynamodbAPI, tableName string, logger *slog.Logger) (*SessionStore, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionStore{
		api:       api,
		tableName: tableName,
		logger:    logger.With("component", "session_store"),
		now:       time.Now,
	}, nil
}

// userPK returns the DynamoDB partition key for a user.
func userPK(userID int64) string {
	return pkPrefixUser + strconv.FormatInt(userID, 10)
}

func sessionKey(userID int64) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: userPK(userID)},
		"SK": &types.AttributeValueMemberS{Value: skSession},
	}
}

// Load returns the stored session, or fresh defaults when none exists, when
// restart is set, or when the read fails. It never fails the caller.
func (s *SessionStore) Load(ctx context.Context, userID int64, restart bool) domain.Session {
	if restart {
		return domain.NewSession()
	}

	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            sessionKey(userID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		s.logger.WarnContext(ctx, "session read failed, using defaults", "user_id", userID, "err", err)
		return domain.NewSession()
	}
	if out == nil || len(out.Item) == 0 {
		return domain.NewSession()
	}

	session, err := itemToSession(out.Item)
	if err != nil {
		s.logger.WarnContext(ctx, "session decode failed, using defaults", "user_id", userID, "err", err)
		return domain.NewSession()
	}
	return session
}

// Save overwrites the stored session for userID with session.
func (s *SessionStore) Save(ctx context.Context, userID int64, session domain.Session) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("repository: Save marshal: %w", err)
	}

	item := sessionKey(userID)
	item[attrSession] = &types.AttributeValueMemberS{Value: string(raw)}
	item["updatedAt"] = &types.AttributeValueMemberS{Value: s.now().UTC().Format(time.RFC3339)}

	_, err = s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return domain.NewError(domain.KindIO, "repository: Save", "dynamodb_put", err)
	}
	return nil
}

// itemToSession decodes the JSON session attribute, filling nil collections.
func itemToSession(item map[string]types.AttributeValue) (domain.Session, error) {
	raw, err := strAttr(item, attrSession)
	if err != nil {
		return domain.Session{}, err
	}
	session := domain.NewSession()
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return domain.Session{}, fmt.Errorf("repository: decode session: %w", err)
	}
	if session.Data == nil {
		session.Data = map[string]any{}
	}
	if session.List == nil {
		session.List = []string{}
	}
	return session, nil
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	str, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return str.Value, nil
}
