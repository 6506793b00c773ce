package tokenstore_test

import (
	"context"
	"errors"
	"testing"

	"github.com/dropDatabas3/hellopassport/internal/metrics"
	"github.com/dropDatabas3/hellopassport/internal/tokenstore"
	"github.com/dropDatabas3/hellopassport/internal/tokenstore/memory"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

// failing devuelve err en todas las operaciones.
type failing struct{ err error }

func (f failing) Name() string { return "failing" }
func (f failing) Put(context.Context, *tokenstore.Record) error {
	return f.err
}
func (f failing) Get(context.Context, string) (*tokenstore.Record, error) { return nil, f.err }
func (f failing) FindByIndex(context.Context, tokenstore.Index, string) (*tokenstore.Record, error) {
	return nil, f.err
}
func (f failing) ScanIndex(context.Context, tokenstore.Index, string, int, string) ([]string, string, error) {
	return nil, "", f.err
}
func (f failing) SetConsumed(context.Context, string, int64) error { return f.err }
func (f failing) Delete(context.Context, string) error             { return f.err }
func (f failing) DeleteMany(context.Context, []string) error       { return f.err }
func (f failing) Close() error                                     { return nil }

func TestAdapter_ErrorsPropagate(t *testing.T) {
	boom := errors.New("throughput exceeded")
	a := tokenstore.New(tokenstore.Instrument(failing{boom}), tokenstore.KindSession)
	ctx := context.Background()

	before := testutil.ToFloat64(metrics.StoreOpErrors.WithLabelValues("failing", "get"))

	require.ErrorIs(t, a.Upsert(ctx, "1", nil, 0), boom)
	_, err := a.Find(ctx, "1")
	require.ErrorIs(t, err, boom)
	_, err = a.FindByUID(ctx, "u")
	require.ErrorIs(t, err, boom)
	require.ErrorIs(t, a.Consume(ctx, "1"), boom)
	require.ErrorIs(t, a.Destroy(ctx, "1"), boom)
	require.ErrorIs(t, a.RevokeByGrantID(ctx, "g"), boom)

	require.Equal(t, before+1, testutil.ToFloat64(metrics.StoreOpErrors.WithLabelValues("failing", "get")))
}

func TestAdapter_NotFoundIsAbsent(t *testing.T) {
	a := tokenstore.New(failing{tokenstore.ErrNotFound}, tokenstore.KindGrant)
	ctx := context.Background()

	got, err := a.Find(ctx, "x")
	require.NoError(t, err)
	require.Nil(t, got)
	require.NoError(t, a.Destroy(ctx, "x"))

	err = a.Consume(ctx, "x")
	require.ErrorIs(t, err, tokenstore.ErrNotFound)
	require.True(t, tokenstore.IsNotFound(err))
}

func TestAdapter_KeyAndStore(t *testing.T) {
	s := tokenstore.NewStore(memory.New(0), tokenstore.WithRevokePageSize(5))
	defer s.Close()

	a := s.Adapter(tokenstore.KindRegistrationAccessToken)
	require.Same(t, a, s.Adapter(tokenstore.KindRegistrationAccessToken))
	require.Equal(t, "RegistrationAccessToken-xyz", a.Key("xyz"))
	require.Len(t, tokenstore.Kinds(), 15)
}

func TestAdapter_RevokeSmallPages(t *testing.T) {
	ctx := context.Background()
	b := memory.New(0)
	a := tokenstore.New(b, tokenstore.KindAccessToken, tokenstore.WithRevokePageSize(4))
	for _, id := range []string{"a", "b", "c", "d", "e", "f", "g", "h", "i"} {
		require.NoError(t, a.Upsert(ctx, id, tokenstore.Payload{"grantId": "G"}, 60))
	}
	before := testutil.ToFloat64(metrics.RevokedRecords)
	require.NoError(t, a.RevokeByGrantID(ctx, "G"))
	require.Equal(t, 0, b.Len())
	require.Equal(t, before+9, testutil.ToFloat64(metrics.RevokedRecords))
}
