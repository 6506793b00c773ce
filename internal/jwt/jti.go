package jwt

import (
	"crypto/rand"
	"math/big"
)

const (
	jtiAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	// JTILength de los identificadores de visa y pasaporte.
	JTILength = 16
)

// NewJTI genera un id alfanumérico de JTILength caracteres (crypto/rand, sin sesgo).
func NewJTI() (string, error) {
	max := big.NewInt(int64(len(jtiAlphabet)))
	b := make([]byte, JTILength)
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = jtiAlphabet[n.Int64()]
	}
	return string(b), nil
}
