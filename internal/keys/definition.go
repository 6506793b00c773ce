package keys

import (
	"crypto/rsa"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	jose "github.com/go-jose/go-jose/v4"
)

// Definition es la forma serializada (YAML/JSON) de una clave privada.
//
// RSA: componentes base64url sin padding (n, e, d, p, q, dp, dq, qi).
// OKP: semilla en hex (dHex) y curva.
type Definition struct {
	Kty string `yaml:"kty" json:"kty"`
	Kid string `yaml:"kid,omitempty" json:"kid,omitempty"`
	Alg string `yaml:"alg,omitempty" json:"alg,omitempty"`

	// OKP
	Crv  string `yaml:"crv,omitempty" json:"crv,omitempty"`
	DHex string `yaml:"dHex,omitempty" json:"dHex,omitempty"`

	// RSA
	N  string `yaml:"n,omitempty" json:"n,omitempty"`
	E  string `yaml:"e,omitempty" json:"e,omitempty"`
	D  string `yaml:"dBase64Url,omitempty" json:"dBase64Url,omitempty"`
	P  string `yaml:"pBase64Url,omitempty" json:"pBase64Url,omitempty"`
	Q  string `yaml:"qBase64Url,omitempty" json:"qBase64Url,omitempty"`
	DP string `yaml:"dpBase64Url,omitempty" json:"dpBase64Url,omitempty"`
	DQ string `yaml:"dqBase64Url,omitempty" json:"dqBase64Url,omitempty"`
	QI string `yaml:"qiBase64Url,omitempty" json:"qiBase64Url,omitempty"`
}

// Parse materializa la definición con el kid dado.
func (d Definition) Parse(kid string) (Key, error) {
	if d.Kid != "" && d.Kid != kid {
		return nil, fmt.Errorf("keys: definition kid %q does not match %q", d.Kid, kid)
	}
	switch strings.ToUpper(strings.TrimSpace(d.Kty)) {
	case KtyRSA:
		return d.parseRSA(kid)
	case KtyOKP:
		return d.parseOKP(kid)
	default:
		return nil, fmt.Errorf("%w: kty %q (key %q)", ErrUnsupportedKeyType, d.Kty, kid)
	}
}

func (d Definition) parseOKP(kid string) (Key, error) {
	switch d.Crv {
	case CurveEd25519:
	case "":
		return nil, fmt.Errorf("%w: key %q has no crv", ErrUnsupportedCurve, kid)
	default:
		// Ed448 incluido: no hay soporte, fallamos al cargar y no al firmar
		return nil, fmt.Errorf("%w: %s (key %q)", ErrUnsupportedCurve, d.Crv, kid)
	}
	if d.DHex == "" {
		return nil, fmt.Errorf("%w: key %q has no dHex", ErrMissingPrivateComponent, kid)
	}
	seed, err := hex.DecodeString(strings.TrimSpace(d.DHex))
	if err != nil {
		return nil, fmt.Errorf("keys: key %q dHex: %w", kid, err)
	}
	return NewEd25519Key(kid, seed)
}

func (d Definition) parseRSA(kid string) (Key, error) {
	for name, v := range map[string]string{"d": d.D, "p": d.P, "q": d.Q} {
		if v == "" {
			return nil, fmt.Errorf("%w: rsa key %q has no %s", ErrMissingPrivateComponent, kid, name)
		}
	}
	// go-jose hace la decodificación de los componentes y el Precompute
	fields := map[string]string{
		"kty": KtyRSA, "kid": kid,
		"n": d.N, "e": d.E, "d": d.D, "p": d.P, "q": d.Q,
		"dp": d.DP, "dq": d.DQ, "qi": d.QI,
	}
	for k, v := range fields {
		if v == "" {
			delete(fields, k)
		}
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}
	var jk jose.JSONWebKey
	if err := jk.UnmarshalJSON(raw); err != nil {
		return nil, fmt.Errorf("keys: rsa key %q: %w", kid, err)
	}
	priv, ok := jk.Key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: rsa key %q", ErrMissingPrivateComponent, kid)
	}
	return NewRSAKey(kid, d.Alg, priv)
}

// Definition exporta la clave en su forma serializable (keys generate).
func (k *RSAKey) Definition() Definition {
	p := k.priv
	def := Definition{
		Kty: KtyRSA,
		Kid: k.kid,
		Alg: k.alg,
		N:   b64(p.N.Bytes()),
		E:   b64(bigInt(p.E)),
		D:   b64(p.D.Bytes()),
	}
	if len(p.Primes) >= 2 {
		def.P = b64(p.Primes[0].Bytes())
		def.Q = b64(p.Primes[1].Bytes())
	}
	if p.Precomputed.Dp != nil {
		def.DP = b64(p.Precomputed.Dp.Bytes())
		def.DQ = b64(p.Precomputed.Dq.Bytes())
		def.QI = b64(p.Precomputed.Qinv.Bytes())
	}
	return def
}

// Definition exporta la semilla en hex.
func (k *Ed25519Key) Definition() Definition {
	return Definition{Kty: KtyOKP, Kid: k.kid, Crv: CurveEd25519, DHex: hex.EncodeToString(k.seed)}
}
