// Package issuer implementa emisores de visas definidos por configuración.
//
// Un Static conoce de antemano qué afirma sobre cada sujeto y firma en el
// momento en que el broker le pide la visa.
package issuer

import (
	"context"
	"fmt"
	"sort"

	"github.com/dropDatabas3/hellopassport/internal/config"
	"github.com/dropDatabas3/hellopassport/internal/keys"
	"github.com/dropDatabas3/hellopassport/internal/metrics"
	"github.com/dropDatabas3/hellopassport/internal/observability/logger"
	"github.com/dropDatabas3/hellopassport/internal/passport"
	"github.com/dropDatabas3/hellopassport/internal/visa"
	"go.uber.org/zap"
)

// DefaultTTLSeconds aplica cuando el emisor no declara ttl.
const DefaultTTLSeconds = 3600

var _ passport.VisaIssuer = (*Static)(nil)

// Static firma visas jwt (RSA) o compactas (Ed25519) a partir de grants fijos.
type Static struct {
	id     string
	issuer string
	kid    string
	form   string
	ttl    int64
	grants map[string][]config.Grant
	key    keys.Key
	signer visa.Signer
	log    *zap.Logger
}

type Option func(*Static)

// WithSigner fija reloj y jti (tests).
func WithSigner(s visa.Signer) Option { return func(st *Static) { st.signer = s } }

// New valida que kid exista en reg y sea del tipo que pide la forma.
func New(reg *keys.Registry, c config.Issuer, opts ...Option) (*Static, error) {
	ttl, err := config.Seconds(c.TTL)
	if err != nil {
		return nil, fmt.Errorf("issuer %s: ttl: %w", c.ID, err)
	}
	if ttl == 0 {
		ttl = DefaultTTLSeconds
	}
	s := &Static{
		id:     c.ID,
		issuer: c.Issuer,
		kid:    c.KID,
		form:   c.Form,
		ttl:    ttl,
		grants: c.Grants,
		log:    logger.Named("issuer").With(zap.String("issuer_id", c.ID)),
	}
	if s.form == "" {
		s.form = config.FormJWT
	}
	switch s.form {
	case config.FormJWT:
		s.key, err = reg.RSA(c.KID)
	case config.FormCompact:
		s.key, err = reg.Ed25519(c.KID)
	default:
		err = fmt.Errorf("unknown form %q", s.form)
	}
	if err != nil {
		return nil, fmt.Errorf("issuer %s: %w", c.ID, err)
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// FromConfig arma todos los emisores de cs, en orden.
func FromConfig(reg *keys.Registry, cs []config.Issuer, opts ...Option) ([]*Static, error) {
	out := make([]*Static, 0, len(cs))
	for _, c := range cs {
		s, err := New(reg, c, opts...)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (s *Static) ID() string     { return s.id }
func (s *Static) Issuer() string { return s.issuer }
func (s *Static) KID() string    { return s.kid }
func (s *Static) Form() string   { return s.form }

// Subjects lista los sujetos con grants, ordenados.
func (s *Static) Subjects() []string {
	out := make([]string, 0, len(s.grants))
	for sub := range s.grants {
		out = append(out, sub)
	}
	sort.Strings(out)
	return out
}

// JWKS publica solo la clave de este emisor.
func (s *Static) JWKS() (keys.JWKS, error) {
	return keys.DerivePublicJWKS(map[string]keys.Key{s.kid: s.key})
}

// CreateVisaFor firma la visa de subject. Sin grants => ok=false.
func (s *Static) CreateVisaFor(ctx context.Context, subject string) (string, bool, error) {
	grants := s.grants[subject]
	if len(grants) == 0 {
		return "", false, nil
	}
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	var (
		out string
		err error
	)
	switch k := s.key.(type) {
	case *keys.RSAKey:
		out, err = s.signer.JWT(k, s.issuer, s.kid, subject, s.ttl, jwtClaims(grants[0]))
	case *keys.Ed25519Key:
		var cv visa.CompactVisa
		cv, err = s.signer.Compact(k, s.issuer, s.kid, subject, s.ttl, unionAssertions(grants))
		if err == nil {
			out, err = cv.Encode()
		}
	default:
		err = keys.ErrUnsupportedKeyType
	}
	if err != nil {
		metrics.SigningErrors.WithLabelValues("visa").Inc()
		s.log.Warn("visa signing failed", logger.Subject(subject), logger.KID(s.kid), logger.Err(err))
		return "", false, err
	}
	metrics.VisasIssued.WithLabelValues(s.id, s.form).Inc()
	s.log.Debug("visa issued", logger.Subject(subject), logger.VisaForm(s.form), logger.Bytes(len(out)))
	return out, true, nil
}

// jwtClaims: Claims libres primero, el objeto ga4gh_visa_v1 encima.
func jwtClaims(g config.Grant) map[string]any {
	claims := make(map[string]any, len(g.Claims)+1)
	for k, v := range g.Claims {
		claims[k] = v
	}
	if g.Visa != nil {
		for k, v := range g.Visa.Claims() {
			claims[k] = v
		}
	}
	return claims
}

// unionAssertions junta las afirmaciones de todos los grants sin duplicados.
func unionAssertions(grants []config.Grant) []string {
	seen := map[string]bool{}
	var out []string
	for _, g := range grants {
		for _, a := range g.Assertions {
			if !seen[a] {
				seen[a] = true
				out = append(out, a)
			}
		}
	}
	return out
}
