package passport_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	jwtx "github.com/dropDatabas3/hellopassport/internal/jwt"
	"github.com/dropDatabas3/hellopassport/internal/keys"
	"github.com/dropDatabas3/hellopassport/internal/passport"
	"github.com/stretchr/testify/require"
)

const brokerIss = "https://broker.dev.umccr.org"

func rfcKey(t *testing.T) (*keys.RSAKey, keys.JWKS) {
	t.Helper()
	reg, err := keys.DemoRegistry()
	require.NoError(t, err)
	rk, err := reg.RSA("rfc-rsa")
	require.NoError(t, err)
	set, err := keys.DerivePublicJWKS(map[string]keys.Key{"rfc-rsa": rk})
	require.NoError(t, err)
	return rk, set
}

type fakeIssuer struct {
	id    string
	visa  string
	ok    bool
	err   error
	delay time.Duration
	calls atomic.Int32
}

func (f *fakeIssuer) ID() string { return f.id }

func (f *fakeIssuer) CreateVisaFor(ctx context.Context, subject string) (string, bool, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", false, ctx.Err()
		}
	}
	return f.visa, f.ok, f.err
}

func TestCreatePassportJWT_RoundTrip(t *testing.T) {
	rk, set := rfcKey(t)
	now := time.Now().Truncate(time.Second)
	s := passport.Signer{Now: func() time.Time { return now }}

	visas := []string{"v1.jwt.sig", `{"v":"c:a","k":"k1","s":"xx"}`}
	tok, err := s.Passport(rk, brokerIss, "rfc-rsa", "alice", visas, []string{"https://rp.example"})
	require.NoError(t, err)

	v, err := jwtx.ParseRSA(tok, set, jwtx.ParseOptions{Issuer: brokerIss, Typ: passport.TokenType})
	require.NoError(t, err)
	require.Equal(t, "vnd.ga4gh.passport+jwt", v.Header["typ"])
	require.Equal(t, "rfc-rsa", v.Header["kid"])
	require.Equal(t, []any{"v1.jwt.sig", `{"v":"c:a","k":"k1","s":"xx"}`}, v.Claims[passport.ClaimVisas])
	require.Equal(t, "alice", v.Claims["sub"])
	require.EqualValues(t, now.Add(time.Hour).Unix(), v.Claims["exp"])
	require.EqualValues(t, now.Unix(), v.Claims["iat"])
	require.Len(t, v.Claims["jti"], 16)
	require.Equal(t, []any{"https://rp.example"}, v.Claims["aud"])
}

func TestCreatePassportJWT_NoAudience_EmptyList(t *testing.T) {
	rk, set := rfcKey(t)
	tok, err := passport.CreatePassportJWT(rk, brokerIss, "rfc-rsa", "bob", nil, nil)
	require.NoError(t, err)

	v, err := jwtx.ParseRSA(tok, set, jwtx.ParseOptions{})
	require.NoError(t, err)
	require.NotContains(t, v.Claims, "aud")
	require.Equal(t, []any{}, v.Claims[passport.ClaimVisas])
}

func TestCreatePassportJWT_InvalidVisas(t *testing.T) {
	rk, _ := rfcKey(t)
	_, err := passport.CreatePassportJWT(rk, brokerIss, "rfc-rsa", "bob", []string{"ok", ""}, nil)
	require.ErrorIs(t, err, passport.ErrInvalidVisaPayload)

	_, err = passport.VisasFromAny([]any{"a", 3.0})
	require.ErrorIs(t, err, passport.ErrInvalidVisaPayload)

	got, err := passport.VisasFromAny([]any{"a", "b"})
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, got)

	_, err = passport.CreatePassportJWT(nil, brokerIss, "rfc-rsa", "bob", nil, nil)
	require.ErrorIs(t, err, keys.ErrUnsupportedKeyType)
}

func TestAssemble_PreservesOrderAndDropsMissing(t *testing.T) {
	issuers := []passport.VisaIssuer{
		&fakeIssuer{id: "slow", visa: "A", ok: true, delay: 30 * time.Millisecond},
		&fakeIssuer{id: "none"},
		&fakeIssuer{id: "fast", visa: "C", ok: true},
	}
	visas, err := passport.Assemble(context.Background(), issuers, "alice")
	require.NoError(t, err)
	require.Equal(t, []string{"A", "C"}, visas)
}

func TestAssemble_Empty(t *testing.T) {
	visas, err := passport.Assemble(context.Background(), nil, "alice")
	require.NoError(t, err)
	require.Empty(t, visas)
}

func TestAssemble_IssuerErrorAborts(t *testing.T) {
	boom := errors.New("issuer down")
	issuers := []passport.VisaIssuer{
		&fakeIssuer{id: "ok", visa: "A", ok: true},
		&fakeIssuer{id: "bad", err: boom},
		&fakeIssuer{id: "slow", visa: "C", ok: true, delay: time.Second},
	}
	start := time.Now()
	_, err := passport.Assemble(context.Background(), issuers, "alice")
	require.ErrorIs(t, err, boom)
	require.Contains(t, err.Error(), "bad")
	require.Less(t, time.Since(start), 900*time.Millisecond)
}

func TestBroker_PassportFor(t *testing.T) {
	rk, set := rfcKey(t)
	b := &passport.Broker{
		Issuer: brokerIss,
		KID:    "rfc-rsa",
		Key:    rk,
		Issuers: []passport.VisaIssuer{
			&fakeIssuer{id: "ega", visa: "ega-visa", ok: true},
			&fakeIssuer{id: "ahpra", visa: "ahpra-visa", ok: true},
		},
	}
	tok, err := b.PassportFor(context.Background(), "alice")
	require.NoError(t, err)

	jwks, err := b.JWKS()
	require.NoError(t, err)
	require.Equal(t, set, jwks)

	v, err := jwtx.ParseRSA(tok, jwks, jwtx.ParseOptions{Issuer: brokerIss, Typ: passport.TokenType})
	require.NoError(t, err)
	require.Equal(t, []any{"ega-visa", "ahpra-visa"}, v.Claims[passport.ClaimVisas])
}
