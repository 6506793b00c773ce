package visa_test

import (
	"crypto/ed25519"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	jwtx "github.com/dropDatabas3/hellopassport/internal/jwt"
	"github.com/dropDatabas3/hellopassport/internal/keys"
	"github.com/dropDatabas3/hellopassport/internal/visa"
	"github.com/stretchr/testify/require"
)

const issuer = "https://didact-patto.dev.umccr.org"

func demo(t *testing.T) *keys.Registry {
	t.Helper()
	reg, err := keys.DemoRegistry()
	require.NoError(t, err)
	return reg
}

func fixedSigner(now time.Time, jti string) visa.Signer {
	return visa.Signer{
		Now: func() time.Time { return now },
		JTI: func() (string, error) { return jti, nil },
	}
}

func edPub(t *testing.T, k *keys.Ed25519Key) ed25519.PublicKey {
	t.Helper()
	pub, err := k.PublicKey()
	require.NoError(t, err)
	return pub
}

func TestCanonicalize_OrderIndependent(t *testing.T) {
	a := []string{"r:x", "c:y", "iu:s", "et:100"}
	b := []string{"et:100", "iu:s", "r:x", "c:y"}
	require.Equal(t, visa.Canonicalize(a), visa.Canonicalize(b))
	require.Equal(t, "c:y et:100 iu:s r:x", visa.Canonicalize(a))
	// no muta la entrada
	require.Equal(t, "r:x", a[0])
}

func TestCompact_SortingAndTamper(t *testing.T) {
	ek, err := demo(t).Ed25519("rfc8032-7.1-test1")
	require.NoError(t, err)

	now := time.Unix(1700000000, 0)
	s := fixedSigner(now, "ABCDEFGHIJKLMNOP")
	cv, err := s.Compact(ek, "", "rfc8032-7.1-test1", "alice", 86400, []string{"r:b", "c:a"})
	require.NoError(t, err)

	require.Equal(t, "c:a et:1700086400 iu:alice iv:ABCDEFGHIJKLMNOP r:b", cv.V)
	require.Equal(t, "rfc8032-7.1-test1", cv.K)
	require.Empty(t, cv.I)
	require.NotContains(t, cv.S, "=")

	sig, err := base64.RawURLEncoding.DecodeString(cv.S)
	require.NoError(t, err)
	require.Len(t, sig, ed25519.SignatureSize)

	pub := edPub(t, ek)
	require.NoError(t, cv.Verify(pub))

	tampered := cv
	tampered.V = strings.Replace(cv.V, "r:b", "r:c", 1)
	require.ErrorIs(t, tampered.Verify(pub), visa.ErrInvalidSignature)

	other, err := demo(t).Ed25519("rfc8032-7.1-test2")
	require.NoError(t, err)
	require.ErrorIs(t, visa.VerifyCompactVisa(cv, edPub(t, other)), visa.ErrInvalidSignature)
}

func TestCompact_IssuerAndAccessors(t *testing.T) {
	reg := demo(t)
	cv, err := visa.SignCompactVisaWithKID(reg, issuer, "patto-kid1", "bob", 3600, []string{"r:trusted_researcher"})
	require.NoError(t, err)
	require.Equal(t, issuer, cv.I)

	v, ok := cv.Assertion("r")
	require.True(t, ok)
	require.Equal(t, "trusted_researcher", v)

	sub, ok := cv.Assertion("iu")
	require.True(t, ok)
	require.Equal(t, "bob", sub)

	jti, ok := cv.Assertion("iv")
	require.True(t, ok)
	require.Len(t, jti, 16)

	exp, ok := cv.ExpiresAt()
	require.True(t, ok)
	require.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	require.Len(t, cv.Assertions(), 4)
}

func TestCompact_EncodeDecode(t *testing.T) {
	ek, err := demo(t).Ed25519("patto-kid2")
	require.NoError(t, err)
	cv, err := visa.CreateCompactVisa(ek, "", "patto-kid2", "carol", 60, nil)
	require.NoError(t, err)

	enc, err := cv.Encode()
	require.NoError(t, err)
	require.NotContains(t, enc, `"i"`)

	back, err := visa.DecodeCompactVisa(enc)
	require.NoError(t, err)
	require.Equal(t, cv, back)
	require.NoError(t, back.Verify(edPub(t, ek)))

	_, err = visa.DecodeCompactVisa(`{"v":"x"}`)
	require.ErrorIs(t, err, visa.ErrMalformedVisa)
	_, err = visa.DecodeCompactVisa(`nope`)
	require.ErrorIs(t, err, visa.ErrMalformedVisa)
}

func TestCompact_Errors(t *testing.T) {
	reg := demo(t)
	ek, err := reg.Ed25519("rfc8032-7.1-test1")
	require.NoError(t, err)

	_, err = visa.CreateCompactVisa(&keys.Ed25519Key{}, "", "zero", "s", 60, nil)
	require.ErrorIs(t, err, keys.ErrInvalidKeySeedLength)

	_, err = visa.CreateCompactVisa(nil, "", "nil", "s", 60, nil)
	require.ErrorIs(t, err, keys.ErrUnsupportedKeyType)

	_, err = visa.SignCompactVisaWithKID(reg, "", "rfc-rsa", "s", 60, nil)
	require.ErrorIs(t, err, keys.ErrUnsupportedKeyType)

	_, err = visa.SignCompactVisaWithKID(reg, "", "missing", "s", 60, nil)
	require.ErrorIs(t, err, keys.ErrUnknownKeyID)

	for _, bad := range []string{"et:1", "iu:x", "iv:y", "noprefix", ":v", "r:", "r:a b"} {
		_, err = visa.CreateCompactVisa(ek, "", "rfc8032-7.1-test1", "s", 60, []string{bad})
		require.ErrorIs(t, err, visa.ErrInvalidAssertion, bad)
	}

	_, err = visa.CreateCompactVisa(ek, "", "rfc8032-7.1-test1", "has space", 60, nil)
	require.ErrorIs(t, err, visa.ErrInvalidAssertion)
}

func TestJWTVisa_RFCKeyRoundTrip(t *testing.T) {
	reg := demo(t)
	rk, err := reg.RSA("rfc-rsa")
	require.NoError(t, err)

	now := time.Now().Truncate(time.Second)
	s := fixedSigner(now, "jti0123456789abc")
	obj := visa.Object{
		Type:     visa.TypeResearcherStatus,
		Asserted: 1549680000,
		Value:    "https://doi.org/10.1038/s41431-018-0219-y",
		Source:   "https://ror.org/048fyec77",
		By:       "system",
	}
	claims := obj.Claims()
	claims["sub"] = "caller-tries-to-override"

	tok, err := s.JWT(rk, issuer, "rfc-rsa", "alice", 90*86400, claims)
	require.NoError(t, err)

	set, err := reg.Subset("rfc-rsa")
	require.NoError(t, err)
	jwks, err := set.PublicJWKS()
	require.NoError(t, err)

	v, err := jwtx.ParseRSA(tok, jwks, jwtx.ParseOptions{Issuer: issuer, Typ: "JWT"})
	require.NoError(t, err)

	require.Equal(t, map[string]any{"alg": "RS256", "typ": "JWT", "kid": "rfc-rsa"}, v.Header)
	require.Equal(t, "alice", v.Claims["sub"])
	require.Equal(t, issuer, v.Claims["iss"])
	require.Equal(t, "jti0123456789abc", v.Claims["jti"])
	require.EqualValues(t, now.Unix(), v.Claims["iat"])
	require.EqualValues(t, now.Unix()+90*86400, v.Claims["exp"])

	vo, ok := v.Claims[visa.ClaimVisaV1].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "ResearcherStatus", vo["type"])
	require.EqualValues(t, 1549680000, vo["asserted"])
	require.Equal(t, "system", vo["by"])
}

func TestJWTVisa_WrongVariant(t *testing.T) {
	reg := demo(t)
	_, err := visa.SignJWTVisaWithKID(reg, issuer, "patto-kid1", "s", 60, nil)
	require.ErrorIs(t, err, keys.ErrUnsupportedKeyType)

	_, err = visa.CreateJWTVisa(nil, issuer, "x", "s", 60, nil)
	require.ErrorIs(t, err, keys.ErrUnsupportedKeyType)

	tok, err := visa.SignJWTVisaWithKID(reg, issuer, "rfc-rsa", "s", 60, nil)
	require.NoError(t, err)
	require.Len(t, strings.Split(tok, "."), 3)
}
