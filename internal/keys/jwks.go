package keys

import (
	"crypto/ed25519"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"sort"

	jose "github.com/go-jose/go-jose/v4"
)

// JWK es la proyección pública de una clave. Nunca lleva componentes privados.
type JWK struct {
	Kty string `json:"kty"`
	Crv string `json:"crv,omitempty"`
	Kid string `json:"kid"`
	Alg string `json:"alg"`
	N   string `json:"n,omitempty"`
	E   string `json:"e,omitempty"`
	X   string `json:"x,omitempty"`
}

// JWKS es el documento publicado en /.well-known/jwks.
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// Find busca por kid.
func (s JWKS) Find(kid string) (JWK, bool) {
	for _, k := range s.Keys {
		if k.Kid == kid {
			return k, true
		}
	}
	return JWK{}, false
}

// DerivePublicJWKS proyecta cada clave a su JWK público, ordenado por kid.
// El kid publicado es la clave del mapa.
func DerivePublicJWKS(set map[string]Key) (JWKS, error) {
	kids := make([]string, 0, len(set))
	for kid := range set {
		kids = append(kids, kid)
	}
	sort.Strings(kids)

	out := JWKS{Keys: make([]JWK, 0, len(kids))}
	for _, kid := range kids {
		k := set[kid]
		if k == nil {
			return JWKS{}, fmt.Errorf("%w: nil key %q", ErrUnsupportedKeyType, kid)
		}
		jwk, err := k.publicJWK(kid)
		if err != nil {
			return JWKS{}, fmt.Errorf("keys: jwk %q: %w", kid, err)
		}
		out.Keys = append(out.Keys, jwk)
	}
	return out, nil
}

func (k *RSAKey) publicJWK(kid string) (JWK, error) {
	if k == nil || k.priv == nil || k.priv.D == nil {
		return JWK{}, ErrMissingPrivateComponent
	}
	pub := k.priv.PublicKey
	return JWK{
		Kty: KtyRSA,
		Kid: kid,
		Alg: k.alg,
		N:   b64(pub.N.Bytes()),
		E:   b64(bigInt(pub.E)),
	}, nil
}

func (k *Ed25519Key) publicJWK(kid string) (JWK, error) {
	pub, err := k.PublicKey()
	if err != nil {
		return JWK{}, err
	}
	return JWK{
		Kty: KtyOKP,
		Crv: CurveEd25519,
		Kid: kid,
		Alg: AlgEdDSA,
		X:   b64(pub),
	}, nil
}

func b64(b []byte) string { return base64.RawURLEncoding.EncodeToString(b) }

func bigInt(v int) []byte { return big.NewInt(int64(v)).Bytes() }

// RSAPublicKey decodifica n/e (vía go-jose) para verificar firmas RSA.
func (j JWK) RSAPublicKey() (*rsa.PublicKey, error) {
	pub, err := j.joseKey()
	if err != nil {
		return nil, err
	}
	rk, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: jwk %q is %s", ErrUnsupportedKeyType, j.Kid, j.Kty)
	}
	return rk, nil
}

// Ed25519PublicKey decodifica x para verificar visas compactas.
func (j JWK) Ed25519PublicKey() (ed25519.PublicKey, error) {
	if j.Kty == KtyOKP && j.Crv != CurveEd25519 {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCurve, j.Crv)
	}
	pub, err := j.joseKey()
	if err != nil {
		return nil, err
	}
	ek, ok := pub.(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: jwk %q is %s", ErrUnsupportedKeyType, j.Kid, j.Kty)
	}
	return ek, nil
}

func (j JWK) joseKey() (any, error) {
	raw, err := json.Marshal(j)
	if err != nil {
		return nil, err
	}
	var jk jose.JSONWebKey
	if err := jk.UnmarshalJSON(raw); err != nil {
		return nil, fmt.Errorf("keys: decode jwk %q: %w", j.Kid, err)
	}
	return jk.Key, nil
}
