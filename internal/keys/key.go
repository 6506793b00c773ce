package keys

import (
	"crypto/ed25519"
	"crypto/rsa"
	"fmt"
)

const (
	KtyRSA = "RSA"
	KtyOKP = "OKP"

	CurveEd25519 = "Ed25519"
	CurveEd448   = "Ed448"

	// DefaultRSAAlg se usa cuando la definición no trae alg.
	DefaultRSAAlg = "RS256"
	AlgEdDSA      = "EdDSA"

	seedSize = ed25519.SeedSize
)

// Key es material privado identificado por kid.
type Key interface {
	KID() string
	Kty() string
	publicJWK(kid string) (JWK, error)
	sealed()
}

// RSAKey es una clave RSA apta para firmar JWT (RS256 por defecto).
type RSAKey struct {
	kid  string
	alg  string
	priv *rsa.PrivateKey
}

// NewRSAKey envuelve priv. Falla con ErrMissingPrivateComponent si priv no trae d.
func NewRSAKey(kid, alg string, priv *rsa.PrivateKey) (*RSAKey, error) {
	if priv == nil || priv.D == nil || priv.D.Sign() == 0 {
		return nil, fmt.Errorf("%w: rsa key %q has no private exponent", ErrMissingPrivateComponent, kid)
	}
	if alg == "" {
		alg = DefaultRSAAlg
	}
	return &RSAKey{kid: kid, alg: alg, priv: priv}, nil
}

func (k *RSAKey) KID() string { return k.kid }
func (k *RSAKey) Kty() string { return KtyRSA }
func (k *RSAKey) Alg() string { return k.alg }
func (*RSAKey) sealed()       {}

// PrivateKey devuelve la clave para firmar; nunca serializarla.
func (k *RSAKey) PrivateKey() (*rsa.PrivateKey, error) {
	if k == nil || k.priv == nil || k.priv.D == nil {
		return nil, ErrMissingPrivateComponent
	}
	return k.priv, nil
}

// PublicKey devuelve la mitad pública (nil si la clave está vacía).
func (k *RSAKey) PublicKey() *rsa.PublicKey {
	if k == nil || k.priv == nil {
		return nil
	}
	return &k.priv.PublicKey
}

// Ed25519Key guarda la semilla de 32 bytes (RFC 8032).
type Ed25519Key struct {
	kid  string
	seed []byte
}

// NewEd25519Key copia seed; falla con ErrInvalidKeySeedLength si no tiene 32 bytes.
func NewEd25519Key(kid string, seed []byte) (*Ed25519Key, error) {
	if len(seed) != seedSize {
		return nil, fmt.Errorf("%w: key %q has %d bytes", ErrInvalidKeySeedLength, kid, len(seed))
	}
	cp := make([]byte, seedSize)
	copy(cp, seed)
	return &Ed25519Key{kid: kid, seed: cp}, nil
}

func (k *Ed25519Key) KID() string { return k.kid }
func (k *Ed25519Key) Kty() string { return KtyOKP }
func (*Ed25519Key) sealed()       {}

// PrivateKey expande la semilla.
func (k *Ed25519Key) PrivateKey() (ed25519.PrivateKey, error) {
	if k == nil || len(k.seed) != seedSize {
		return nil, ErrInvalidKeySeedLength
	}
	return ed25519.NewKeyFromSeed(k.seed), nil
}

// PublicKey devuelve los 32 bytes públicos derivados de la semilla.
func (k *Ed25519Key) PublicKey() (ed25519.PublicKey, error) {
	priv, err := k.PrivateKey()
	if err != nil {
		return nil, err
	}
	return priv.Public().(ed25519.PublicKey), nil
}
