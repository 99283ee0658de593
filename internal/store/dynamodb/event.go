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

// AppendEvent records an audit event. Events are never updated or deleted.
func (s *DynamoDBStore) AppendEvent(ctx context.Context, event types.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}

	sk := eventSK(event.Timestamp)
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &s.tableName,
		Item: map[string]ddbtypes.AttributeValue{
			"PK":     &ddbtypes.AttributeValueMemberS{Value: batchPK(event.BatchID)},
			"SK":     &ddbtypes.AttributeValueMemberS{Value: sk},
			"GSI1PK": &ddbtypes.AttributeValueMemberS{Value: prefixType + "event"},
			"GSI1SK": &ddbtypes.AttributeValueMemberS{Value: sk},
			"data":   &ddbtypes.AttributeValueMemberS{Value: string(data)},
		},
	})
	return err
}

// ListEvents returns audit events oldest first, scoped to one batch when
// batchID is non-empty.
func (s *DynamoDBStore) ListEvents(ctx context.Context, batchID string, limit int) ([]types.Event, error) {
	var events []types.Event
	add := func(data string) {
		var e types.Event
		if err := json.Unmarshal([]byte(data), &e); err != nil {
			s.logger.Warn("skipping corrupt event", "error", err)
			return
		}
		events = append(events, e)
	}

	if batchID == "" {
		if err := s.queryType(ctx, "event", add); err != nil {
			return nil, err
		}
	} else {
		out, err := s.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              &s.tableName,
			KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
			ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
				":pk":     &ddbtypes.AttributeValueMemberS{Value: batchPK(batchID)},
				":prefix": &ddbtypes.AttributeValueMemberS{Value: prefixEvent},
			},
		})
		if err != nil {
			return nil, err
		}
		for _, item := range out.Items {
			data, err := attributeStr(item, "data")
			if err != nil {
				s.logger.Warn("skipping corrupt event", "error", err)
				continue
			}
			add(data)
		}
	}

	if limit > 0 && len(events) > limit {
		events = events[len(events)-limit:]
	}
	return events, nil
}
