package calls

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type dynamoAPI interface {
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// DynamoStore persists sessions to a DynamoDB table keyed by roomId, with
// expiresAt as the table TTL attribute.
type DynamoStore struct {
	client    dynamoAPI
	tableName string
	ttl       time.Duration
}

func NewDynamoStore(client dynamoAPI, tableName string) *DynamoStore {
	if client == nil {
		panic("calls: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("calls: table name cannot be empty")
	}
	return &DynamoStore{client: client, tableName: tableName, ttl: sessionTTL}
}

func (s *DynamoStore) Create(ctx context.Context, sess *CallSession) error {
	err := s.put(ctx, sess, aws.String("attribute_not_exists(roomId)"))
	var conditional *types.ConditionalCheckFailedException
	if errors.As(err, &conditional) {
		return fmt.Errorf("%w: %s", ErrSessionExists, sess.RoomID)
	}
	return err
}

func (s *DynamoStore) Save(ctx context.Context, sess *CallSession) error {
	return s.put(ctx, sess, nil)
}

func (s *DynamoStore) put(ctx context.Context, sess *CallSession, condition *string) error {
	record := sess.Clone()
	if record.ExpiresAt == 0 {
		record.ExpiresAt = record.StartedAt.Add(s.ttl).Unix()
	}
	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return fmt.Errorf("calls: failed to marshal session: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                item,
		ConditionExpression: condition,
	})
	if err != nil {
		return fmt.Errorf("calls: failed to persist session: %w", err)
	}
	return nil
}

func (s *DynamoStore) Get(ctx context.Context, roomID string) (*CallSession, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"roomId": &types.AttributeValueMemberS{Value: roomID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("calls: failed to fetch session: %w", err)
	}
	if out.Item == nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, roomID)
	}
	var sess CallSession
	if err := attributevalue.UnmarshalMap(out.Item, &sess); err != nil {
		return nil, fmt.Errorf("calls: failed to decode session: %w", err)
	}
	return &sess, nil
}
