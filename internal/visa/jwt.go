package visa

import (
	"time"

	jwtx "github.com/dropDatabas3/hellopassport/internal/jwt"
	"github.com/dropDatabas3/hellopassport/internal/keys"
	"github.com/dropDatabas3/hellopassport/internal/observability/logger"
	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// CreateJWTVisa firma una visa JWT con el reloj real.
func CreateJWTVisa(key *keys.RSAKey, issuer, kid, subject string, ttlSeconds int64, claims map[string]any) (string, error) {
	return defaultSigner.JWT(key, issuer, kid, subject, ttlSeconds, claims)
}

// SignJWTVisaWithKID busca kid en reg y firma; ErrUnknownKeyID / ErrUnsupportedKeyType
// si el kid no existe o no es RSA.
func SignJWTVisaWithKID(reg *keys.Registry, issuer, kid, subject string, ttlSeconds int64, claims map[string]any) (string, error) {
	rk, err := reg.RSA(kid)
	if err != nil {
		return "", err
	}
	return CreateJWTVisa(rk, issuer, kid, subject, ttlSeconds, claims)
}

// JWT firma claims más sub, iss, iat, exp y jti. Los campos estándar pisan a los del llamador.
func (s Signer) JWT(key *keys.RSAKey, issuer, kid, subject string, ttlSeconds int64, claims map[string]any) (string, error) {
	jti, err := s.jti()
	if err != nil {
		return "", err
	}
	now := s.now()

	mc := jwtv5.MapClaims{}
	for k, v := range claims {
		mc[k] = v
	}
	mc["sub"] = subject
	mc["iss"] = issuer
	mc["iat"] = now.Unix()
	mc["exp"] = now.Add(time.Duration(ttlSeconds) * time.Second).Unix()
	mc["jti"] = jti

	signed, err := jwtx.Sign(key, jwtx.TypJWT, kid, mc)
	if err != nil {
		return "", err
	}
	logger.Named("visa").Debug("jwt visa signed",
		logger.KID(kid), logger.Issuer(issuer), logger.Bytes(len(signed)))
	return signed, nil
}
