package dynamo_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/dropDatabas3/hellopassport/internal/tokenstore"
	"github.com/dropDatabas3/hellopassport/internal/tokenstore/dynamo"
	"github.com/dropDatabas3/hellopassport/internal/tokenstore/tokenstoretest"
	"github.com/stretchr/testify/require"
)

func TestDynamoBackend_Suite(t *testing.T) {
	tokenstoretest.Run(t, func(t *testing.T) tokenstore.Backend {
		return dynamo.New(newFake(), "oidc-test")
	})
}

func TestDynamoBackend_ItemShape(t *testing.T) {
	ctx := context.Background()
	fake := newFake()
	a := tokenstore.New(dynamo.New(fake, ""), tokenstore.KindDeviceCode)

	require.NoError(t, a.Upsert(ctx, "d1", tokenstore.Payload{"userCode": "UC-1", "grantId": "g1", "n": 5}, 300))

	it := fake.items["DeviceCode-d1"]
	require.NotNil(t, it)
	require.IsType(t, &types.AttributeValueMemberN{}, it["expiresAt"])
	require.Equal(t, "UC-1", it["userCode"].(*types.AttributeValueMemberS).Value)
	require.Equal(t, "g1", it["grantId"].(*types.AttributeValueMemberS).Value)
	require.NotContains(t, it, "uid")
	require.IsType(t, &types.AttributeValueMemberM{}, it["payload"])

	got, err := a.FindByUserCode(ctx, "UC-1")
	require.NoError(t, err)
	require.EqualValues(t, 5, got["n"])

	require.Equal(t, "userCodeIndex", *fake.queries[len(fake.queries)-1].IndexName)
}

func TestDynamoBackend_ConsumeMissingWrapsConditionFailure(t *testing.T) {
	b := dynamo.New(newFake(), "")
	err := b.SetConsumed(context.Background(), "AuthorizationCode-x", 1)
	require.ErrorIs(t, err, tokenstore.ErrNotFound)

	var ccf *types.ConditionalCheckFailedException
	require.ErrorAs(t, err, &ccf)
}

func TestDynamoBackend_RevokeBatchesOf25(t *testing.T) {
	ctx := context.Background()
	fake := newFake()
	a := tokenstore.New(dynamo.New(fake, ""), tokenstore.KindRefreshToken)
	for i := 0; i < 30; i++ {
		require.NoError(t, a.Upsert(ctx, fmt.Sprintf("r%02d", i), tokenstore.Payload{"grantId": "gg"}, 600))
	}
	require.NoError(t, a.RevokeByGrantID(ctx, "gg"))
	require.Empty(t, fake.items)
	require.Equal(t, 2, fake.batchCalls)
}

func TestDynamoBackend_UnprocessedIsError(t *testing.T) {
	ctx := context.Background()
	fake := newFake()
	fake.unprocessed = true
	b := dynamo.New(fake, "")
	a := tokenstore.New(b, tokenstore.KindAccessToken)
	require.NoError(t, a.Upsert(ctx, "t1", tokenstore.Payload{"grantId": "g"}, 60))
	require.NoError(t, a.Upsert(ctx, "t2", tokenstore.Payload{"grantId": "g"}, 60))

	err := a.RevokeByGrantID(ctx, "g")
	require.ErrorIs(t, err, tokenstore.ErrUnprocessed)
}

func TestDynamoBackend_BadCursor(t *testing.T) {
	_, _, err := dynamo.New(newFake(), "").ScanIndex(context.Background(), tokenstore.IndexGrantID, "g", 5, "%%%")
	require.Error(t, err)
}
