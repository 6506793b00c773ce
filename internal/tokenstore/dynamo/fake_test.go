package dynamo_test

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// fakeDynamo implementa dynamo.API en memoria con la semántica mínima que
// usa el backend (PK modelId, GSIs por atributo).
type fakeDynamo struct {
	mu    sync.Mutex
	items map[string]map[string]types.AttributeValue

	batchCalls  int
	unprocessed bool
	queries     []*dynamodb.QueryInput
}

func newFake() *fakeDynamo {
	return &fakeDynamo{items: map[string]map[string]types.AttributeValue{}}
}

func pk(key map[string]types.AttributeValue) string {
	return key["modelId"].(*types.AttributeValueMemberS).Value
}

func clone(item map[string]types.AttributeValue) map[string]types.AttributeValue {
	out := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		if m, ok := v.(*types.AttributeValueMemberM); ok {
			v = &types.AttributeValueMemberM{Value: clone(m.Value)}
		}
		out[k] = v
	}
	return out
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	it, ok := f.items[pk(in.Key)]
	if !ok {
		return &dynamodb.GetItemOutput{}, nil
	}
	return &dynamodb.GetItemOutput{Item: clone(it)}, nil
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[pk(in.Item)] = clone(in.Item)
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	it, ok := f.items[pk(in.Key)]
	if !ok {
		if in.ConditionExpression != nil && strings.HasPrefix(*in.ConditionExpression, "attribute_exists") {
			return nil, &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
		}
		it = clone(in.Key)
		f.items[pk(in.Key)] = it
	}
	// solo soporta "SET #a.#b = :value"
	top := in.ExpressionAttributeNames["#payload"]
	field := in.ExpressionAttributeNames["#consumed"]
	m, ok := it[top].(*types.AttributeValueMemberM)
	if !ok {
		m = &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{}}
		it[top] = m
	}
	m.Value[field] = in.ExpressionAttributeValues[":value"]
	return &dynamodb.UpdateItemOutput{}, nil
}

func (f *fakeDynamo) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items, pk(in.Key))
	return &dynamodb.DeleteItemOutput{}, nil
}

func (f *fakeDynamo) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, in)

	attr := in.ExpressionAttributeNames["#k"]
	want := in.ExpressionAttributeValues[":v"].(*types.AttributeValueMemberS).Value

	var keys []string
	for k, it := range f.items {
		if s, ok := it[attr].(*types.AttributeValueMemberS); ok && s.Value == want {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	if in.ExclusiveStartKey != nil {
		after := pk(in.ExclusiveStartKey)
		i := sort.SearchStrings(keys, after)
		if i < len(keys) && keys[i] == after {
			i++
		}
		keys = keys[i:]
	}
	out := &dynamodb.QueryOutput{}
	limit := len(keys)
	if in.Limit != nil && int(*in.Limit) < limit {
		limit = int(*in.Limit)
	}
	for _, k := range keys[:limit] {
		it := clone(f.items[k])
		if in.ProjectionExpression != nil {
			it = map[string]types.AttributeValue{"modelId": it["modelId"]}
		}
		out.Items = append(out.Items, it)
	}
	if limit < len(keys) {
		last := keys[limit-1]
		out.LastEvaluatedKey = map[string]types.AttributeValue{
			"modelId": &types.AttributeValueMemberS{Value: last},
			attr:      &types.AttributeValueMemberS{Value: want},
		}
	}
	out.Count = int32(len(out.Items))
	return out, nil
}

func (f *fakeDynamo) BatchWriteItem(_ context.Context, in *dynamodb.BatchWriteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batchCalls++
	out := &dynamodb.BatchWriteItemOutput{UnprocessedItems: map[string][]types.WriteRequest{}}
	for table, reqs := range in.RequestItems {
		if len(reqs) > 25 {
			return nil, &types.ResourceNotFoundException{Message: aws.String("too many items")}
		}
		for i, r := range reqs {
			if f.unprocessed && i == len(reqs)-1 {
				out.UnprocessedItems[table] = append(out.UnprocessedItems[table], r)
				continue
			}
			delete(f.items, pk(r.DeleteRequest.Key))
		}
	}
	return out, nil
}
