package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/dropDatabas3/hellopassport/internal/keys"
	jwtv5 "github.com/golang-jwt/jwt/v5"
)

var (
	ErrKIDMissing    = errors.New("jwt: kid missing")
	ErrInvalidIssuer = errors.New("jwt: invalid issuer")
	ErrInvalidType   = errors.New("jwt: unexpected typ")
)

// Verified es un token cuya firma ya fue comprobada.
type Verified struct {
	Header map[string]any
	Claims map[string]any
}

// KeyfuncFromJWKS resuelve la pubkey RSA por el kid del header dentro de set.
func KeyfuncFromJWKS(set keys.JWKS) jwtv5.Keyfunc {
	return func(t *jwtv5.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, ErrKIDMissing
		}
		jwk, ok := set.Find(kid)
		if !ok {
			return nil, fmt.Errorf("%w: %q", keys.ErrUnknownKeyID, kid)
		}
		return jwk.RSAPublicKey()
	}
}

// ParseOptions ajusta la verificación. Campos vacíos no se chequean.
type ParseOptions struct {
	Issuer string
	Typ    string
	Now    func() time.Time
}

// ParseRSA verifica firma, exp/iat y, si se pide, iss y typ.
func ParseRSA(token string, set keys.JWKS, opts ParseOptions) (*Verified, error) {
	parserOpts := []jwtv5.ParserOption{
		jwtv5.WithValidMethods([]string{"RS256", "RS384", "RS512", "PS256", "PS384", "PS512"}),
		jwtv5.WithIssuedAt(),
	}
	if opts.Now != nil {
		parserOpts = append(parserOpts, jwtv5.WithTimeFunc(opts.Now))
	}
	if opts.Issuer != "" {
		parserOpts = append(parserOpts, jwtv5.WithIssuer(opts.Issuer))
	}
	tok, err := jwtv5.Parse(token, KeyfuncFromJWKS(set), parserOpts...)
	if err != nil {
		if errors.Is(err, jwtv5.ErrTokenInvalidIssuer) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidIssuer, err)
		}
		return nil, err
	}
	claims, ok := tok.Claims.(jwtv5.MapClaims)
	if !ok {
		return nil, errors.New("jwt: claims type")
	}
	if opts.Typ != "" {
		if typ, _ := tok.Header["typ"].(string); typ != opts.Typ {
			return nil, fmt.Errorf("%w: %q", ErrInvalidType, typ)
		}
	}
	out := &Verified{Header: tok.Header, Claims: make(map[string]any, len(claims))}
	for k, v := range claims {
		out.Claims[k] = v
	}
	return out, nil
}
