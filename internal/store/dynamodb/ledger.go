package dynamodb

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/cardlake/cardlake/pkg/types"
)

// PutBatch stores a batch ledger entry, replacing any previous attempt.
func (s *DynamoDBStore) PutBatch(ctx context.Context, entry types.BatchLedgerEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshaling ledger entry: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &s.tableName,
		Item: map[string]ddbtypes.AttributeValue{
			"PK":     &ddbtypes.AttributeValueMemberS{Value: batchPK(entry.BatchID)},
			"SK":     &ddbtypes.AttributeValueMemberS{Value: ledgerSK()},
			"GSI1PK": &ddbtypes.AttributeValueMemberS{Value: prefixType + "batch"},
			"GSI1SK": &ddbtypes.AttributeValueMemberS{Value: batchPK(entry.BatchID)},
			"data":   &ddbtypes.AttributeValueMemberS{Value: string(data)},
		},
	})
	return err
}

// GetBatch retrieves a batch ledger entry. Returns nil if absent.
func (s *DynamoDBStore) GetBatch(ctx context.Context, batchID string) (*types.BatchLedgerEntry, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]ddbtypes.AttributeValue{
			"PK": &ddbtypes.AttributeValueMemberS{Value: batchPK(batchID)},
			"SK": &ddbtypes.AttributeValueMemberS{Value: ledgerSK()},
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
	var entry types.BatchLedgerEntry
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// ListBatches returns ledger entries, newest batch first.
func (s *DynamoDBStore) ListBatches(ctx context.Context, limit int) ([]types.BatchLedgerEntry, error) {
	var entries []types.BatchLedgerEntry
	err := s.queryType(ctx, "batch", func(data string) {
		var entry types.BatchLedgerEntry
		if err := json.Unmarshal([]byte(data), &entry); err != nil {
			s.logger.Warn("skipping corrupt ledger entry", "error", err)
			return
		}
		entries = append(entries, entry)
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].BatchID > entries[j].BatchID })
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}
