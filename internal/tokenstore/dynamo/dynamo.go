// Package dynamo es el backend de tokenstore sobre DynamoDB (aws-sdk-go-v2).
//
// Tabla única: PK modelId, atributo TTL expiresAt y GSIs uidIndex,
// grantIdIndex y userCodeIndex (proyección ALL). DynamoDB puede tardar
// hasta 48h en borrar lo vencido; el adapter lo oculta igual.
package dynamo

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/dropDatabas3/hellopassport/internal/tokenstore"
)

const (
	DriverName   = "dynamodb"
	DefaultTable = "oidc"

	attrModelID   = "modelId"
	attrPayload   = "payload"
	attrExpiresAt = "expiresAt"

	// límite de BatchWriteItem
	maxBatch = 25
)

// API es el subconjunto del cliente que usa el backend.
type API interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, opts ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	BatchWriteItem(ctx context.Context, in *dynamodb.BatchWriteItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

var _ API = (*dynamodb.Client)(nil)

func init() {
	tokenstore.RegisterDriver(tokenstore.DriverFunc{
		DriverName: DriverName,
		OpenFunc: func(ctx context.Context, cfg tokenstore.Config) (tokenstore.Backend, error) {
			return Open(ctx, cfg)
		},
	})
}

// Backend implementa tokenstore.Backend.
type Backend struct {
	api   API
	table string
}

// Open carga la config AWS por defecto (env, perfil, rol) con región y endpoint opcionales.
func Open(ctx context.Context, cfg tokenstore.Config) (*Backend, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("dynamo: load aws config: %w", err)
	}
	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return New(client, cfg.Table), nil
}

// New usa api (cliente real o fake).
func New(api API, table string) *Backend {
	if table == "" {
		table = DefaultTable
	}
	return &Backend{api: api, table: table}
}

func (b *Backend) Name() string { return DriverName }

// IndexName devuelve el GSI de idx.
func IndexName(idx tokenstore.Index) string { return string(idx) + "Index" }

func keyOf(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{attrModelID: &types.AttributeValueMemberS{Value: key}}
}

func (b *Backend) Put(ctx context.Context, rec *tokenstore.Record) error {
	payload, err := attributevalue.MarshalMap(map[string]any(rec.Payload))
	if err != nil {
		return fmt.Errorf("dynamo: marshal %s: %w", rec.Key, err)
	}
	item := map[string]types.AttributeValue{
		attrModelID: &types.AttributeValueMemberS{Value: rec.Key},
		attrPayload: &types.AttributeValueMemberM{Value: payload},
	}
	if rec.ExpiresAt > 0 {
		item[attrExpiresAt] = &types.AttributeValueMemberN{Value: strconv.FormatInt(rec.ExpiresAt, 10)}
	}
	for idx, v := range rec.Indexes {
		if v != "" {
			item[string(idx)] = &types.AttributeValueMemberS{Value: v}
		}
	}
	_, err = b.api.PutItem(ctx, &dynamodb.PutItemInput{TableName: aws.String(b.table), Item: item})
	return err
}

func decodeItem(item map[string]types.AttributeValue) (*tokenstore.Record, error) {
	rec := &tokenstore.Record{Payload: tokenstore.Payload{}, Indexes: map[tokenstore.Index]string{}}
	if s, ok := item[attrModelID].(*types.AttributeValueMemberS); ok {
		rec.Key = s.Value
	}
	if m, ok := item[attrPayload].(*types.AttributeValueMemberM); ok {
		var p map[string]any
		if err := attributevalue.UnmarshalMap(m.Value, &p); err != nil {
			return nil, fmt.Errorf("dynamo: unmarshal %s: %w", rec.Key, err)
		}
		if p != nil {
			rec.Payload = p
		}
	}
	if n, ok := item[attrExpiresAt].(*types.AttributeValueMemberN); ok {
		v, err := strconv.ParseInt(n.Value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("dynamo: expiresAt %q: %w", n.Value, err)
		}
		rec.ExpiresAt = v
	}
	for _, idx := range tokenstore.Indexes {
		if s, ok := item[string(idx)].(*types.AttributeValueMemberS); ok {
			rec.Indexes[idx] = s.Value
		}
	}
	return rec, nil
}

func (b *Backend) Get(ctx context.Context, key string) (*tokenstore.Record, error) {
	out, err := b.api.GetItem(ctx, &dynamodb.GetItemInput{TableName: aws.String(b.table), Key: keyOf(key)})
	if err != nil {
		return nil, err
	}
	if len(out.Item) == 0 {
		return nil, tokenstore.ErrNotFound
	}
	return decodeItem(out.Item)
}

func (b *Backend) query(idx tokenstore.Index, value string) *dynamodb.QueryInput {
	return &dynamodb.QueryInput{
		TableName:                 aws.String(b.table),
		IndexName:                 aws.String(IndexName(idx)),
		KeyConditionExpression:    aws.String("#k = :v"),
		ExpressionAttributeNames:  map[string]string{"#k": string(idx)},
		ExpressionAttributeValues: map[string]types.AttributeValue{":v": &types.AttributeValueMemberS{Value: value}},
	}
}

func (b *Backend) FindByIndex(ctx context.Context, idx tokenstore.Index, value string) (*tokenstore.Record, error) {
	in := b.query(idx, value)
	in.Limit = aws.Int32(1)
	out, err := b.api.Query(ctx, in)
	if err != nil {
		return nil, err
	}
	if len(out.Items) == 0 {
		return nil, tokenstore.ErrNotFound
	}
	return decodeItem(out.Items[0])
}

// ScanIndex usa LastEvaluatedKey como cursor (JSON base64url de sus atributos S).
func (b *Backend) ScanIndex(ctx context.Context, idx tokenstore.Index, value string, limit int, cursor string) ([]string, string, error) {
	if limit <= 0 {
		limit = tokenstore.DefaultRevokePageSize
	}
	in := b.query(idx, value)
	in.Limit = aws.Int32(int32(limit))
	in.ProjectionExpression = aws.String("#m")
	in.ExpressionAttributeNames["#m"] = attrModelID
	if cursor != "" {
		start, err := decodeCursor(cursor)
		if err != nil {
			return nil, "", err
		}
		in.ExclusiveStartKey = start
	}
	out, err := b.api.Query(ctx, in)
	if err != nil {
		return nil, "", err
	}
	keys := make([]string, 0, len(out.Items))
	for _, it := range out.Items {
		if s, ok := it[attrModelID].(*types.AttributeValueMemberS); ok {
			keys = append(keys, s.Value)
		}
	}
	next := ""
	if len(out.LastEvaluatedKey) > 0 {
		if next, err = encodeCursor(out.LastEvaluatedKey); err != nil {
			return nil, "", err
		}
	}
	return keys, next, nil
}

func encodeCursor(key map[string]types.AttributeValue) (string, error) {
	flat := make(map[string]string, len(key))
	for k, v := range key {
		s, ok := v.(*types.AttributeValueMemberS)
		if !ok {
			return "", fmt.Errorf("dynamo: cursor attribute %s is not a string", k)
		}
		flat[k] = s.Value
	}
	raw, err := json.Marshal(flat)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

func decodeCursor(cursor string) (map[string]types.AttributeValue, error) {
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return nil, fmt.Errorf("dynamo: bad cursor: %w", err)
	}
	var flat map[string]string
	if err := json.Unmarshal(raw, &flat); err != nil {
		return nil, fmt.Errorf("dynamo: bad cursor: %w", err)
	}
	out := make(map[string]types.AttributeValue, len(flat))
	for k, v := range flat {
		out[k] = &types.AttributeValueMemberS{Value: v}
	}
	return out, nil
}

// SetConsumed es un UpdateItem condicionado a que el item exista.
func (b *Backend) SetConsumed(ctx context.Context, key string, at int64) error {
	_, err := b.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(b.table),
		Key:                 keyOf(key),
		UpdateExpression:    aws.String("SET #payload.#consumed = :value"),
		ConditionExpression: aws.String("attribute_exists(" + attrModelID + ")"),
		ExpressionAttributeNames: map[string]string{
			"#payload":  attrPayload,
			"#consumed": tokenstore.FieldConsumed,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":value": &types.AttributeValueMemberN{Value: strconv.FormatInt(at, 10)},
		},
	})
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return fmt.Errorf("%w: %w", tokenstore.ErrNotFound, err)
	}
	return err
}

func (b *Backend) Delete(ctx context.Context, key string) error {
	_, err := b.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{TableName: aws.String(b.table), Key: keyOf(key)})
	return err
}

// DeleteMany manda BatchWriteItem de a 25. Los UnprocessedItems no se
// reintentan: se devuelven como ErrUnprocessed.
func (b *Backend) DeleteMany(ctx context.Context, keys []string) error {
	for start := 0; start < len(keys); start += maxBatch {
		end := min(start+maxBatch, len(keys))
		reqs := make([]types.WriteRequest, 0, end-start)
		for _, k := range keys[start:end] {
			reqs = append(reqs, types.WriteRequest{DeleteRequest: &types.DeleteRequest{Key: keyOf(k)}})
		}
		out, err := b.api.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{b.table: reqs},
		})
		if err != nil {
			return err
		}
		if n := len(out.UnprocessedItems[b.table]); n > 0 {
			return fmt.Errorf("%w: %d of %d deletes", tokenstore.ErrUnprocessed, n, len(reqs))
		}
	}
	return nil
}

func (b *Backend) Close() error { return nil }
