package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/fpang/profile-agent/internal/jobs"
	"github.com/rs/zerolog/log"
)

const (
	pkPrefix = "RUN#"
	skReport = "REPORT"
)

// DynamoAPI is the subset of the DynamoDB client DynamoStore uses.
type DynamoAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// DynamoStore implements RunStore on DynamoDB.
type DynamoStore struct {
	client    DynamoAPI
	tableName string
	now       func() time.Time
}

var _ RunStore = (*DynamoStore)(nil)

// NewDynamoStore creates a DynamoStore for the given table.
func NewDynamoStore(client DynamoAPI, tableName string) *DynamoStore {
	return &DynamoStore{client: client, tableName: tableName, now: time.Now}
}

func runPK(runID string) string {
	return pkPrefix + runID
}

func (s *DynamoStore) Put(ctx context.Context, r jobs.Report) error {
	item, err := attributevalue.MarshalMap(r)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	pk := runPK(r.RunID)
	item["PK"] = &types.AttributeValueMemberS{Value: pk}
	item["SK"] = &types.AttributeValueMemberS{Value: skReport}
	item["expiresAt"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(s.now().Add(RunTTL).Unix(), 10)}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &s.tableName,
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("PutItem PK=%s SK=%s: %w", pk, skReport, err)
	}
	log.Debug().Str("runId", r.RunID).Str("table", s.tableName).Msg("Run report stored")
	return nil
}

func (s *DynamoStore) Get(ctx context.Context, runID string) (*jobs.Report, error) {
	pk := runPK(runID)
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: pk},
			"SK": &types.AttributeValueMemberS{Value: skReport},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("GetItem PK=%s SK=%s: %w", pk, skReport, err)
	}
	if result.Item == nil {
		return nil, nil
	}
	var r jobs.Report
	if err := attributevalue.UnmarshalMap(result.Item, &r); err != nil {
		return nil, fmt.Errorf("unmarshal PK=%s SK=%s: %w", pk, skReport, err)
	}
	return &r, nil
}
