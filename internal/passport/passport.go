// Package passport arma y firma pasaportes GA4GH: un JWT RS256 de typ
// vnd.ga4gh.passport+jwt cuyo claim ga4gh_passport_v1 lista visas ya firmadas.
package passport

import (
	"errors"
	"fmt"
	"time"

	jwtx "github.com/dropDatabas3/hellopassport/internal/jwt"
	"github.com/dropDatabas3/hellopassport/internal/keys"
	"github.com/dropDatabas3/hellopassport/internal/observability/logger"
	jwtv5 "github.com/golang-jwt/jwt/v5"
)

const (
	TokenType  = "vnd.ga4gh.passport+jwt"
	ClaimVisas = "ga4gh_passport_v1"
	DefaultTTL = time.Hour
)

var ErrInvalidVisaPayload = errors.New("passport: invalid visa payload")

// Signer fija reloj y jti; el valor cero usa los reales.
type Signer struct {
	Now func() time.Time
	JTI func() (string, error)
	TTL time.Duration
}

var defaultSigner Signer

// CreatePassportJWT firma un pasaporte con el reloj real y TTL de una hora.
func CreatePassportJWT(key *keys.RSAKey, issuer, kid, subject string, visas []string, audiences []string) (string, error) {
	return defaultSigner.Passport(key, issuer, kid, subject, visas, audiences)
}

// Passport firma visas (en orden) para subject. aud solo aparece si audiences no está vacío.
func (s Signer) Passport(key *keys.RSAKey, issuer, kid, subject string, visas []string, audiences []string) (string, error) {
	if err := ValidateVisas(visas); err != nil {
		return "", err
	}
	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}
	ttl := s.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	newJTI := jwtx.NewJTI
	if s.JTI != nil {
		newJTI = s.JTI
	}
	jti, err := newJTI()
	if err != nil {
		return "", err
	}

	list := make([]string, len(visas))
	copy(list, visas)
	mc := jwtv5.MapClaims{
		ClaimVisas: list,
		"sub":      subject,
		"iss":      issuer,
		"iat":      now.Unix(),
		"exp":      now.Add(ttl).Unix(),
		"jti":      jti,
	}
	if len(audiences) > 0 {
		mc["aud"] = append([]string(nil), audiences...)
	}

	signed, err := jwtx.Sign(key, TokenType, kid, mc)
	if err != nil {
		return "", err
	}
	logger.Named("passport").Debug("passport signed",
		logger.KID(kid), logger.Subject(subject), logger.Count(len(list)), logger.Bytes(len(signed)))
	return signed, nil
}

// ValidateVisas rechaza entradas vacías. Una lista vacía es válida.
func ValidateVisas(visas []string) error {
	for i, v := range visas {
		if v == "" {
			return fmt.Errorf("%w: entry %d is empty", ErrInvalidVisaPayload, i)
		}
	}
	return nil
}

// VisasFromAny convierte una lista JSON sin tipar ([]any) exigiendo strings.
func VisasFromAny(in []any) ([]string, error) {
	out := make([]string, 0, len(in))
	for i, v := range in {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%w: entry %d is %T", ErrInvalidVisaPayload, i, v)
		}
		out = append(out, s)
	}
	if err := ValidateVisas(out); err != nil {
		return nil, err
	}
	return out, nil
}
