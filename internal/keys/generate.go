package keys

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"fmt"
)

// MinRSABits es el mínimo aceptado por GenerateRSA.
const MinRSABits = 2048

// GenerateRSA crea una clave RS256 nueva.
func GenerateRSA(kid string, bits int) (*RSAKey, error) {
	if bits == 0 {
		bits = MinRSABits
	}
	if bits < MinRSABits {
		return nil, fmt.Errorf("keys: rsa size %d below %d", bits, MinRSABits)
	}
	priv, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, err
	}
	priv.Precompute()
	return NewRSAKey(kid, DefaultRSAAlg, priv)
}

// GenerateEd25519 crea una semilla aleatoria.
func GenerateEd25519(kid string) (*Ed25519Key, error) {
	seed := make([]byte, ed25519.SeedSize)
	if _, err := rand.Read(seed); err != nil {
		return nil, err
	}
	return NewEd25519Key(kid, seed)
}
