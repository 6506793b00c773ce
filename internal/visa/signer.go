package visa

import (
	"time"

	jwtx "github.com/dropDatabas3/hellopassport/internal/jwt"
)

// Signer fija reloj y generador de jti. El valor cero usa time.Now y jwt.NewJTI.
type Signer struct {
	Now func() time.Time
	JTI func() (string, error)
}

func (s Signer) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s Signer) jti() (string, error) {
	if s.JTI != nil {
		return s.JTI()
	}
	return jwtx.NewJTI()
}

var defaultSigner Signer
