package dynamodb

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/cardlake/cardlake/pkg/types"
)

// PutRejected appends a record to the rejected sink.
func (s *DynamoDBStore) PutRejected(ctx context.Context, record types.RejectedRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshaling rejected record: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &s.tableName,
		Item: map[string]ddbtypes.AttributeValue{
			"PK":     &ddbtypes.AttributeValueMemberS{Value: batchPK(record.BatchID)},
			"SK":     &ddbtypes.AttributeValueMemberS{Value: rejectSK(record.RecordedAt)},
			"GSI1PK": &ddbtypes.AttributeValueMemberS{Value: prefixType + "reject"},
			"GSI1SK": &ddbtypes.AttributeValueMemberS{Value: record.BatchID + "#" + record.CardID},
			"data":   &ddbtypes.AttributeValueMemberS{Value: string(data)},
		},
	})
	return err
}

// ListRejected returns rejected records, scoped to one batch when batchID is
// non-empty.
func (s *DynamoDBStore) ListRejected(ctx context.Context, batchID string) ([]types.RejectedRecord, error) {
	var records []types.RejectedRecord
	add := func(data string) {
		var r types.RejectedRecord
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			s.logger.Warn("skipping corrupt rejected record", "error", err)
			return
		}
		records = append(records, r)
	}

	if batchID == "" {
		if err := s.queryType(ctx, "reject", add); err != nil {
			return nil, err
		}
		return records, nil
	}

	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              &s.tableName,
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
			":pk":     &ddbtypes.AttributeValueMemberS{Value: batchPK(batchID)},
			":prefix": &ddbtypes.AttributeValueMemberS{Value: prefixReject},
		},
	})
	if err != nil {
		return nil, err
	}
	for _, item := range out.Items {
		data, err := attributeStr(item, "data")
		if err != nil {
			s.logger.Warn("skipping corrupt rejected record", "error", err)
			continue
		}
		add(data)
	}
	return records, nil
}
