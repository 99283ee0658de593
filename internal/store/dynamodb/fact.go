package dynamodb

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/cardlake/cardlake/pkg/types"
)

// transactChunkSize is the DynamoDB TransactWriteItems item limit.
const transactChunkSize = 100

// GetFact retrieves a tcg_price_history row. Returns nil if absent.
func (s *DynamoDBStore) GetFact(ctx context.Context, variantKey int64, bucket string) (*types.PriceHistoryRow, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]ddbtypes.AttributeValue{
			"PK": &ddbtypes.AttributeValueMemberS{Value: variantPK(variantKey)},
			"SK": &ddbtypes.AttributeValueMemberS{Value: factSK(bucket)},
		},
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, nil
	}

	data, err := attributeStr(out.Item, "data")
	if err != nil {
		return nil, err
	}
	var row types.PriceHistoryRow
	if err := json.Unmarshal([]byte(data), &row); err != nil {
		return nil, err
	}
	return &row, nil
}

// ApplyFacts writes the batch's fact rows in transactional chunks. Each chunk
// lands atomically; downstream visibility of the batch as a whole is gated on
// the ledger reaching COMMITTED, so a failure between chunks leaves a
// retryable, not-yet-visible batch.
func (s *DynamoDBStore) ApplyFacts(ctx context.Context, batchID string, rows []types.PriceHistoryRow) error {
	for start := 0; start < len(rows); start += transactChunkSize {
		end := start + transactChunkSize
		if end > len(rows) {
			end = len(rows)
		}

		items := make([]ddbtypes.TransactWriteItem, 0, end-start)
		for _, row := range rows[start:end] {
			data, err := json.Marshal(row)
			if err != nil {
				return fmt.Errorf("marshaling fact row: %w", err)
			}
			items = append(items, ddbtypes.TransactWriteItem{
				Put: &ddbtypes.Put{
					TableName: &s.tableName,
					Item: map[string]ddbtypes.AttributeValue{
						"PK":     &ddbtypes.AttributeValueMemberS{Value: variantPK(row.VariantKey)},
						"SK":     &ddbtypes.AttributeValueMemberS{Value: factSK(row.Bucket)},
						"GSI1PK": &ddbtypes.AttributeValueMemberS{Value: prefixType + "fact"},
						"GSI1SK": &ddbtypes.AttributeValueMemberS{Value: row.Bucket + "#" + formatKey(row.VariantKey)},
						"data":   &ddbtypes.AttributeValueMemberS{Value: string(data)},
					},
				},
			})
		}

		if _, err := s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
			TransactItems: items,
		}); err != nil {
			return fmt.Errorf("writing fact rows for batch %s: %w", batchID, err)
		}
	}
	return nil
}

// ListFacts returns all fact rows via GSI1, ordered by bucket then key.
func (s *DynamoDBStore) ListFacts(ctx context.Context) ([]types.PriceHistoryRow, error) {
	var rows []types.PriceHistoryRow
	err := s.queryType(ctx, "fact", func(data string) {
		var row types.PriceHistoryRow
		if err := json.Unmarshal([]byte(data), &row); err != nil {
			s.logger.Warn("skipping corrupt fact row", "error", err)
			return
		}
		rows = append(rows, row)
	})
	return rows, err
}
