package store

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDynamo captures inputs and serves canned outputs
type fakeDynamo struct {
	getOut    *dynamodb.GetItemOutput
	updateOut *dynamodb.UpdateItemOutput
	err       error

	getIn    *dynamodb.GetItemInput
	putIn    *dynamodb.PutItemInput
	updateIn *dynamodb.UpdateItemInput
}

func (f *fakeDynamo) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.getIn = params
	if f.err != nil {
		return nil, f.err
	}
	return f.getOut, nil
}

func (f *fakeDynamo) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.putIn = params
	if f.err != nil {
		return nil, f.err
	}
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.updateIn = params
	if f.err != nil {
		return nil, f.err
	}
	return f.updateOut, nil
}

func TestDynamoStore_Get(t *testing.T) {
	ctx := context.Background()
	key := Key{PartitionKey: "IDP#https://issuer", SortKey: "IDP#https://issuer"}

	t.Run("round-trips attributes without the key fields", func(t *testing.T) {
		client := &fakeDynamo{getOut: &dynamodb.GetItemOutput{
			Item: map[string]types.AttributeValue{
				"pk":      &types.AttributeValueMemberS{Value: key.PartitionKey},
				"sk":      &types.AttributeValueMemberS{Value: key.SortKey},
				"url":     &types.AttributeValueMemberS{Value: "https://issuer"},
				"version": &types.AttributeValueMemberN{Value: "3"},
			},
		}}
		s := NewDynamoStore(client, "warder")

		item, found, err := s.Get(ctx, key)
		require.NoError(t, err)
		require.True(t, found)

		assert.Equal(t, "warder", aws.ToString(client.getIn.TableName))
		assert.Equal(t, "https://issuer", AsString(item["url"]))
		assert.Equal(t, 3, AsInt(item["version"]))
		assert.NotContains(t, item, "pk")
		assert.NotContains(t, item, "sk")
	})

	t.Run("absence is not an error", func(t *testing.T) {
		s := NewDynamoStore(&fakeDynamo{getOut: &dynamodb.GetItemOutput{}}, "warder")

		_, found, err := s.Get(ctx, key)
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("transport failures surface as storage unavailable", func(t *testing.T) {
		s := NewDynamoStore(&fakeDynamo{err: errors.New("throttled")}, "warder")

		_, _, err := s.Get(ctx, key)
		assert.ErrorIs(t, err, ErrStorageUnavailable)
	})
}

func TestDynamoStore_Upsert(t *testing.T) {
	ctx := context.Background()
	key := Key{PartitionKey: "IDP#https://issuer", SortKey: "IDP#https://issuer"}

	t.Run("builds one conditional update", func(t *testing.T) {
		client := &fakeDynamo{updateOut: &dynamodb.UpdateItemOutput{
			Attributes: map[string]types.AttributeValue{
				"pk":      &types.AttributeValueMemberS{Value: key.PartitionKey},
				"sk":      &types.AttributeValueMemberS{Value: key.SortKey},
				"url":     &types.AttributeValueMemberS{Value: "https://issuer"},
				"version": &types.AttributeValueMemberN{Value: "1"},
			},
		}}
		s := NewDynamoStore(client, "warder")

		item, err := s.Upsert(ctx, key, Item{"url": "https://issuer"}, "version")
		require.NoError(t, err)
		assert.Equal(t, 1, AsInt(item["version"]))

		expr := aws.ToString(client.updateIn.UpdateExpression)
		// Payload fields are set-if-absent; only the counter unconditionally moves
		assert.True(t, strings.HasPrefix(expr, "SET "), expr)
		assert.Contains(t, expr, "if_not_exists(#a0, :v0)")
		assert.Contains(t, expr, "#counter = if_not_exists(#counter, :zero) + :inc")
		assert.Equal(t, "version", client.updateIn.ExpressionAttributeNames["#counter"])
		assert.Equal(t, types.ReturnValueAllNew, client.updateIn.ReturnValues)
	})

	t.Run("transport failures surface as storage unavailable", func(t *testing.T) {
		s := NewDynamoStore(&fakeDynamo{err: errors.New("table missing")}, "warder")

		_, err := s.Upsert(ctx, key, Item{"url": "https://issuer"}, "version")
		assert.ErrorIs(t, err, ErrStorageUnavailable)
	})
}

func TestDynamoStore_Put(t *testing.T) {
	ctx := context.Background()
	key := Key{PartitionKey: "USER#alice#USER_POOL#pool-1", SortKey: "USER#alice#USER_POOL#pool-1"}

	client := &fakeDynamo{}
	s := NewDynamoStore(client, "warder")

	require.NoError(t, s.Put(ctx, key, Item{"username": "alice"}))

	item := client.putIn.Item
	assert.Equal(t, key.PartitionKey, item["pk"].(*types.AttributeValueMemberS).Value)
	assert.Equal(t, key.SortKey, item["sk"].(*types.AttributeValueMemberS).Value)
	assert.Equal(t, "alice", item["username"].(*types.AttributeValueMemberS).Value)
}
