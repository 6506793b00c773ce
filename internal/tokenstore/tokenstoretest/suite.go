// Package tokenstoretest tiene la batería de pruebas que todo Backend de
// tokenstore debe pasar. Cada paquete de backend la corre con su propio
// constructor.
package tokenstoretest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/dropDatabas3/hellopassport/internal/tokenstore"
	"github.com/stretchr/testify/require"
)

// Factory devuelve un backend vacío; el suite lo cierra al terminar.
type Factory func(t *testing.T) tokenstore.Backend

// Run ejecuta el suite completo.
func Run(t *testing.T, open Factory) {
	cases := []struct {
		name string
		fn   func(t *testing.T, b tokenstore.Backend)
	}{
		{"PutGet", testPutGet},
		{"NumbersDecodeAsFloat", testNumbersDecodeAsFloat},
		{"GetMissing", testGetMissing},
		{"FindByIndex", testFindByIndex},
		{"ReplaceDropsStaleIndexes", testReplaceDropsStaleIndexes},
		{"SetConsumed", testSetConsumed},
		{"DeleteIdempotent", testDeleteIdempotent},
		{"ScanIndexPagination", testScanIndexPagination},
		{"AdapterLifecycle", testAdapterLifecycle},
		{"AdapterExpiredIsAbsent", testAdapterExpiredIsAbsent},
		{"AdapterRevokeAcrossPages", testAdapterRevokeAcrossPages},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := open(t)
			t.Cleanup(func() { _ = b.Close() })
			tc.fn(t, b)
		})
	}
}

func ctx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return c
}

func record(key string, payload tokenstore.Payload, ttl time.Duration) *tokenstore.Record {
	rec := &tokenstore.Record{Key: key, Payload: payload, Indexes: map[tokenstore.Index]string{}}
	if ttl > 0 {
		rec.ExpiresAt = time.Now().Add(ttl).Unix()
	}
	for _, idx := range tokenstore.Indexes {
		if v, ok := payload.String(string(idx)); ok {
			rec.Indexes[idx] = v
		}
	}
	return rec
}

func testPutGet(t *testing.T, b tokenstore.Backend) {
	c := ctx(t)
	rec := record("Session-s1", tokenstore.Payload{
		"uid": "u-1", "accountId": "acc-1", "exp": float64(1700000000), "loginTs": float64(12), "remember": true,
	}, time.Hour)
	require.NoError(t, b.Put(c, rec))

	got, err := b.Get(c, "Session-s1")
	require.NoError(t, err)
	require.Equal(t, rec.Key, got.Key)
	require.Equal(t, rec.ExpiresAt, got.ExpiresAt)
	require.Equal(t, rec.Payload, got.Payload)
	require.Equal(t, "u-1", got.Indexes[tokenstore.IndexUID])
}

func testNumbersDecodeAsFloat(t *testing.T, b tokenstore.Backend) {
	c := ctx(t)
	a := tokenstore.New(b, tokenstore.KindInteraction)
	require.NoError(t, a.Upsert(c, "i1", tokenstore.Payload{"returnTo": "/cb", "exp": 1700000000, "n": int64(7)}, 3600))

	got, err := a.Find(c, "i1")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.EqualValues(t, 1700000000, got["exp"])
	require.IsType(t, float64(0), got["exp"])
	require.EqualValues(t, 7, got["n"])
	require.Equal(t, "/cb", got["returnTo"])
}

func testGetMissing(t *testing.T, b tokenstore.Backend) {
	_, err := b.Get(ctx(t), "Session-missing")
	require.ErrorIs(t, err, tokenstore.ErrNotFound)
}

func testFindByIndex(t *testing.T, b tokenstore.Backend) {
	c := ctx(t)
	require.NoError(t, b.Put(c, record("DeviceCode-d1", tokenstore.Payload{"userCode": "WXYZ-1234", "grantId": "g-1"}, time.Hour)))
	require.NoError(t, b.Put(c, record("Session-s1", tokenstore.Payload{"uid": "uid-abc"}, 0)))

	got, err := b.FindByIndex(c, tokenstore.IndexUserCode, "WXYZ-1234")
	require.NoError(t, err)
	require.Equal(t, "DeviceCode-d1", got.Key)

	got, err = b.FindByIndex(c, tokenstore.IndexUID, "uid-abc")
	require.NoError(t, err)
	require.Equal(t, "Session-s1", got.Key)
	require.Zero(t, got.ExpiresAt)

	_, err = b.FindByIndex(c, tokenstore.IndexUID, "nope")
	require.ErrorIs(t, err, tokenstore.ErrNotFound)
}

func testReplaceDropsStaleIndexes(t *testing.T, b tokenstore.Backend) {
	c := ctx(t)
	require.NoError(t, b.Put(c, record("AccessToken-a1", tokenstore.Payload{"grantId": "g-old", "uid": "u-old"}, time.Hour)))
	require.NoError(t, b.Put(c, record("AccessToken-a1", tokenstore.Payload{"uid": "u-new"}, time.Hour)))

	keys, next, err := b.ScanIndex(c, tokenstore.IndexGrantID, "g-old", 25, "")
	require.NoError(t, err)
	require.Empty(t, keys)
	require.Empty(t, next)

	_, err = b.FindByIndex(c, tokenstore.IndexUID, "u-old")
	require.ErrorIs(t, err, tokenstore.ErrNotFound)

	got, err := b.FindByIndex(c, tokenstore.IndexUID, "u-new")
	require.NoError(t, err)
	require.NotContains(t, got.Payload, "grantId")
}

func testSetConsumed(t *testing.T, b tokenstore.Backend) {
	c := ctx(t)
	err := b.SetConsumed(c, "AuthorizationCode-missing", 1700000000)
	require.ErrorIs(t, err, tokenstore.ErrNotFound)

	require.NoError(t, b.Put(c, record("AuthorizationCode-c1", tokenstore.Payload{"grantId": "g-1"}, time.Hour)))
	require.NoError(t, b.SetConsumed(c, "AuthorizationCode-c1", 1700000000))

	got, err := b.Get(c, "AuthorizationCode-c1")
	require.NoError(t, err)
	at, ok := got.Payload.Consumed()
	require.True(t, ok)
	require.EqualValues(t, 1700000000, at)
	require.Equal(t, "g-1", got.Payload["grantId"])
	require.NotZero(t, got.ExpiresAt)
}

func testDeleteIdempotent(t *testing.T, b tokenstore.Backend) {
	c := ctx(t)
	require.NoError(t, b.Put(c, record("Grant-g1", tokenstore.Payload{"accountId": "a"}, 0)))
	require.NoError(t, b.Delete(c, "Grant-g1"))
	require.NoError(t, b.Delete(c, "Grant-g1"))
	_, err := b.Get(c, "Grant-g1")
	require.ErrorIs(t, err, tokenstore.ErrNotFound)

	require.NoError(t, b.DeleteMany(c, nil))
	require.NoError(t, b.DeleteMany(c, []string{"Grant-none-1", "Grant-none-2"}))
}

func testScanIndexPagination(t *testing.T, b tokenstore.Backend) {
	c := ctx(t)
	const n = 30
	for i := 0; i < n; i++ {
		require.NoError(t, b.Put(c, record(fmt.Sprintf("RefreshToken-r%02d", i), tokenstore.Payload{"grantId": "g-page"}, time.Hour)))
	}
	require.NoError(t, b.Put(c, record("RefreshToken-other", tokenstore.Payload{"grantId": "g-other"}, time.Hour)))

	seen := map[string]bool{}
	cursor, pages := "", 0
	for {
		keys, next, err := b.ScanIndex(c, tokenstore.IndexGrantID, "g-page", 7, cursor)
		require.NoError(t, err)
		require.LessOrEqual(t, len(keys), 7)
		for _, k := range keys {
			require.False(t, seen[k], "duplicated %s", k)
			seen[k] = true
		}
		pages++
		require.Less(t, pages, 20)
		if next == "" {
			break
		}
		cursor = next
	}
	require.Len(t, seen, n)
	require.GreaterOrEqual(t, pages, 5)
	require.NotContains(t, seen, "RefreshToken-other")
}

func testAdapterLifecycle(t *testing.T, b tokenstore.Backend) {
	c := ctx(t)
	sessions := tokenstore.New(b, tokenstore.KindSession)
	codes := tokenstore.New(b, tokenstore.KindAuthorizationCode)
	devices := tokenstore.New(b, tokenstore.KindDeviceCode)

	require.NoError(t, sessions.Upsert(c, "abc", tokenstore.Payload{"uid": "u-77", "accountId": "acc"}, 3600))
	got, err := sessions.Find(c, "abc")
	require.NoError(t, err)
	require.Equal(t, "acc", got["accountId"])

	byUID, err := sessions.FindByUID(c, "u-77")
	require.NoError(t, err)
	require.Equal(t, got, byUID)

	// mismo id, otro kind: no colisiona
	other, err := codes.Find(c, "abc")
	require.NoError(t, err)
	require.Nil(t, other)

	require.NoError(t, devices.Upsert(c, "d1", tokenstore.Payload{"userCode": "ABCD"}, 600))
	dc, err := devices.FindByUserCode(c, "ABCD")
	require.NoError(t, err)
	require.NotNil(t, dc)

	err = codes.Consume(c, "nope")
	require.ErrorIs(t, err, tokenstore.ErrNotFound)

	before := time.Now().Unix()
	require.NoError(t, codes.Upsert(c, "c1", tokenstore.Payload{"grantId": "g"}, 60))
	require.NoError(t, codes.Consume(c, "c1"))
	cc, err := codes.Find(c, "c1")
	require.NoError(t, err)
	at, ok := cc.Consumed()
	require.True(t, ok)
	require.GreaterOrEqual(t, at, before)

	require.NoError(t, sessions.Destroy(c, "abc"))
	require.NoError(t, sessions.Destroy(c, "abc"))
	gone, err := sessions.Find(c, "abc")
	require.NoError(t, err)
	require.Nil(t, gone)
}

func testAdapterExpiredIsAbsent(t *testing.T, b tokenstore.Backend) {
	c := ctx(t)
	writer := tokenstore.New(b, tokenstore.KindInteraction)
	require.NoError(t, writer.Upsert(c, "i1", tokenstore.Payload{"uid": "u-exp", "userCode": "EXP-1"}, 3600))

	later := func() time.Time { return time.Now().Add(2 * time.Hour) }
	reader := tokenstore.New(b, tokenstore.KindInteraction, tokenstore.WithClock(later))

	got, err := reader.Find(c, "i1")
	require.NoError(t, err)
	require.Nil(t, got)
	got, err = reader.FindByUID(c, "u-exp")
	require.NoError(t, err)
	require.Nil(t, got)
	got, err = reader.FindByUserCode(c, "EXP-1")
	require.NoError(t, err)
	require.Nil(t, got)

	// sigue físicamente presente
	rec, err := b.Get(c, writer.Key("i1"))
	require.NoError(t, err)
	require.True(t, tokenstore.IsExpired(rec, later()))
}

func testAdapterRevokeAcrossPages(t *testing.T, b tokenstore.Backend) {
	c := ctx(t)
	s := tokenstore.NewStore(b)
	at := s.Adapter(tokenstore.KindAccessToken)
	rt := s.Adapter(tokenstore.KindRefreshToken)

	for i := 0; i < 30; i++ {
		a := at
		if i%2 == 1 {
			a = rt
		}
		require.NoError(t, a.Upsert(c, fmt.Sprintf("t%02d", i), tokenstore.Payload{"grantId": "g-revoke"}, 3600))
	}
	require.NoError(t, at.Upsert(c, "keep", tokenstore.Payload{"grantId": "g-keep"}, 3600))

	require.NoError(t, at.RevokeByGrantID(c, "g-revoke"))

	for i := 0; i < 30; i++ {
		_, err := b.Get(c, fmt.Sprintf("%s-t%02d", map[bool]string{true: "AccessToken", false: "RefreshToken"}[i%2 == 0], i))
		require.ErrorIs(t, err, tokenstore.ErrNotFound, "t%02d", i)
	}
	kept, err := at.Find(c, "keep")
	require.NoError(t, err)
	require.NotNil(t, kept)

	// re-ejecutar no falla
	require.NoError(t, at.RevokeByGrantID(c, "g-revoke"))
}
