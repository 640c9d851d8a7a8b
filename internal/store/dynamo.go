package store

import (
	"context"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Key attribute names in the single-table layout
const (
	partitionKeyAttr = "pk"
	sortKeyAttr      = "sk"
)

// DynamoAPI is the subset of the DynamoDB client used by DynamoStore
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// DynamoStore implements Store on a DynamoDB table using single-table design
type DynamoStore struct {
	client DynamoAPI
	table  string
}

// NewDynamoStore creates a store backed by the named DynamoDB table
func NewDynamoStore(client DynamoAPI, table string) *DynamoStore {
	return &DynamoStore{
		client: client,
		table:  table,
	}
}

// Get implements Store
func (s *DynamoStore) Get(ctx context.Context, key Key) (Item, bool, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key:       marshalKey(key),
	})
	if err != nil {
		return nil, false, fmt.Errorf("%w: get %s/%s: %v", ErrStorageUnavailable, key.PartitionKey, key.SortKey, err)
	}
	if len(out.Item) == 0 {
		return nil, false, nil
	}

	item, err := unmarshalItem(out.Item)
	if err != nil {
		return nil, false, err
	}
	return item, true, nil
}

// Put implements Store
func (s *DynamoStore) Put(ctx context.Context, key Key, item Item) error {
	attrs, err := attributevalue.MarshalMap(map[string]any(item))
	if err != nil {
		return fmt.Errorf("failed to marshal item: %w", err)
	}
	attrs[partitionKeyAttr] = &types.AttributeValueMemberS{Value: key.PartitionKey}
	attrs[sortKeyAttr] = &types.AttributeValueMemberS{Value: key.SortKey}

	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      attrs,
	}); err != nil {
		return fmt.Errorf("%w: put %s/%s: %v", ErrStorageUnavailable, key.PartitionKey, key.SortKey, err)
	}
	return nil
}

// Upsert implements Store as a single conditional UpdateItem: every attrs
// field is written through if_not_exists, and the counter field is read
// through if_not_exists(counter, 0) and incremented, all in one atomic
// operation with ALL_NEW return values.
func (s *DynamoStore) Upsert(ctx context.Context, key Key, attrs Item, counter string) (Item, error) {
	names := make([]string, 0, len(attrs))
	for name := range attrs {
		names = append(names, name)
	}
	sort.Strings(names)

	exprNames := map[string]string{"#counter": counter}
	exprValues := map[string]types.AttributeValue{
		":zero": &types.AttributeValueMemberN{Value: "0"},
		":inc":  &types.AttributeValueMemberN{Value: "1"},
	}

	expr := ""
	for i, name := range names {
		nameRef := fmt.Sprintf("#a%d", i)
		valueRef := fmt.Sprintf(":v%d", i)

		value, err := attributevalue.Marshal(attrs[name])
		if err != nil {
			return nil, fmt.Errorf("failed to marshal attribute %s: %w", name, err)
		}

		exprNames[nameRef] = name
		exprValues[valueRef] = value
		expr += fmt.Sprintf("%s = if_not_exists(%s, %s), ", nameRef, nameRef, valueRef)
	}
	expr = "SET " + expr + "#counter = if_not_exists(#counter, :zero) + :inc"

	out, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.table),
		Key:                       marshalKey(key),
		UpdateExpression:          aws.String(expr),
		ExpressionAttributeNames:  exprNames,
		ExpressionAttributeValues: exprValues,
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: upsert %s/%s: %v", ErrStorageUnavailable, key.PartitionKey, key.SortKey, err)
	}

	return unmarshalItem(out.Attributes)
}

func marshalKey(key Key) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		partitionKeyAttr: &types.AttributeValueMemberS{Value: key.PartitionKey},
		sortKeyAttr:      &types.AttributeValueMemberS{Value: key.SortKey},
	}
}

func unmarshalItem(attrs map[string]types.AttributeValue) (Item, error) {
	var item map[string]any
	if err := attributevalue.UnmarshalMap(attrs, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal item: %w", err)
	}
	delete(item, partitionKeyAttr)
	delete(item, sortKeyAttr)
	return item, nil
}
