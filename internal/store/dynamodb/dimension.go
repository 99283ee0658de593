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

// PutCard stores a card_master dimension row.
func (s *DynamoDBStore) PutCard(ctx context.Context, row types.CardDimensionRow) error {
	data, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("marshaling card row: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &s.tableName,
		Item: map[string]ddbtypes.AttributeValue{
			"PK":     &ddbtypes.AttributeValueMemberS{Value: cardPK(row.CardKey)},
			"SK":     &ddbtypes.AttributeValueMemberS{Value: dimensionSK()},
			"GSI1PK": &ddbtypes.AttributeValueMemberS{Value: prefixType + "card"},
			"GSI1SK": &ddbtypes.AttributeValueMemberS{Value: cardPK(row.CardKey)},
			"data":   &ddbtypes.AttributeValueMemberS{Value: string(data)},
		},
	})
	return err
}

// GetCard retrieves a card_master row by surrogate key. Returns nil if absent.
func (s *DynamoDBStore) GetCard(ctx context.Context, cardKey int64) (*types.CardDimensionRow, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]ddbtypes.AttributeValue{
			"PK": &ddbtypes.AttributeValueMemberS{Value: cardPK(cardKey)},
			"SK": &ddbtypes.AttributeValueMemberS{Value: dimensionSK()},
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
	var row types.CardDimensionRow
	if err := json.Unmarshal([]byte(data), &row); err != nil {
		return nil, err
	}
	return &row, nil
}

// ListCards returns all card_master rows via GSI1, ordered by surrogate key.
func (s *DynamoDBStore) ListCards(ctx context.Context) ([]types.CardDimensionRow, error) {
	var rows []types.CardDimensionRow
	err := s.queryType(ctx, "card", func(data string) {
		var row types.CardDimensionRow
		if err := json.Unmarshal([]byte(data), &row); err != nil {
			s.logger.Warn("skipping corrupt card row", "error", err)
			return
		}
		rows = append(rows, row)
	})
	return rows, err
}

// PutVariant stores a card_price_variant_master dimension row.
func (s *DynamoDBStore) PutVariant(ctx context.Context, row types.PriceVariantRow) error {
	data, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("marshaling variant row: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &s.tableName,
		Item: map[string]ddbtypes.AttributeValue{
			"PK":     &ddbtypes.AttributeValueMemberS{Value: variantPK(row.VariantKey)},
			"SK":     &ddbtypes.AttributeValueMemberS{Value: dimensionSK()},
			"GSI1PK": &ddbtypes.AttributeValueMemberS{Value: prefixType + "variant"},
			"GSI1SK": &ddbtypes.AttributeValueMemberS{Value: variantPK(row.VariantKey)},
			"data":   &ddbtypes.AttributeValueMemberS{Value: string(data)},
		},
	})
	return err
}

// GetVariant retrieves a variant row by surrogate key. Returns nil if absent.
func (s *DynamoDBStore) GetVariant(ctx context.Context, variantKey int64) (*types.PriceVariantRow, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]ddbtypes.AttributeValue{
			"PK": &ddbtypes.AttributeValueMemberS{Value: variantPK(variantKey)},
			"SK": &ddbtypes.AttributeValueMemberS{Value: dimensionSK()},
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
	var row types.PriceVariantRow
	if err := json.Unmarshal([]byte(data), &row); err != nil {
		return nil, err
	}
	return &row, nil
}

// ListVariants returns all variant rows via GSI1, ordered by surrogate key.
func (s *DynamoDBStore) ListVariants(ctx context.Context) ([]types.PriceVariantRow, error) {
	var rows []types.PriceVariantRow
	err := s.queryType(ctx, "variant", func(data string) {
		var row types.PriceVariantRow
		if err := json.Unmarshal([]byte(data), &row); err != nil {
			s.logger.Warn("skipping corrupt variant row", "error", err)
			return
		}
		rows = append(rows, row)
	})
	return rows, err
}

// queryType pages through all GSI1 items of one entity type.
func (s *DynamoDBStore) queryType(ctx context.Context, entityType string, add func(data string)) error {
	var startKey map[string]ddbtypes.AttributeValue
	for {
		out, err := s.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              &s.tableName,
			IndexName:              aws.String("GSI1"),
			KeyConditionExpression: aws.String("GSI1PK = :pk"),
			ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
				":pk": &ddbtypes.AttributeValueMemberS{Value: prefixType + entityType},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return err
		}
		for _, item := range out.Items {
			data, err := attributeStr(item, "data")
			if err != nil {
				s.logger.Warn("skipping item without data attribute", "type", entityType, "error", err)
				continue
			}
			add(data)
		}
		if out.LastEvaluatedKey == nil {
			return nil
		}
		startKey = out.LastEvaluatedKey
	}
}
