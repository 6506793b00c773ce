package tokenstore

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIsExpired(t *testing.T) {
	now := time.Unix(1000, 0)
	require.False(t, IsExpired(nil, now))
	require.False(t, IsExpired(&Record{}, now))
	require.False(t, IsExpired(&Record{ExpiresAt: 1001}, now))
	require.True(t, IsExpired(&Record{ExpiresAt: 1000}, now))
	require.True(t, IsExpired(&Record{ExpiresAt: 999}, now))
}

func TestNewRecord_TTL(t *testing.T) {
	now := time.Unix(1000, 0)
	require.EqualValues(t, 1060, newRecord("k", nil, 60, now).ExpiresAt)
	require.Zero(t, newRecord("k", nil, 0, now).ExpiresAt)
	require.Zero(t, newRecord("k", nil, -5, now).ExpiresAt)
	require.NotNil(t, newRecord("k", nil, 0, now).Payload)
}

func TestProjectIndexes(t *testing.T) {
	got := projectIndexes(Payload{"uid": "u", "grantId": "g", "userCode": "", "other": "x", "accountId": 3})
	require.Equal(t, map[Index]string{IndexUID: "u", IndexGrantID: "g"}, got)

	require.Nil(t, projectIndexes(Payload{"grantId": 12}))
}

func TestPayload_Consumed(t *testing.T) {
	for _, v := range []any{int64(7), 7, float64(7), json.Number("7")} {
		at, ok := Payload{FieldConsumed: v}.Consumed()
		require.True(t, ok, "%T", v)
		require.EqualValues(t, 7, at)
	}
	_, ok := Payload{}.Consumed()
	require.False(t, ok)
}

func TestRecord_EncodeDecode(t *testing.T) {
	rec := &Record{Key: "Grant-1", Payload: Payload{"a": "b"}, ExpiresAt: 5, Indexes: map[Index]string{IndexGrantID: "1"}}
	b, err := rec.Encode()
	require.NoError(t, err)
	back, err := DecodeRecord(b)
	require.NoError(t, err)
	require.Equal(t, rec, back)
}
