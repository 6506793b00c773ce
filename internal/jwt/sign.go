package jwt

import (
	"fmt"

	"github.com/dropDatabas3/hellopassport/internal/keys"
	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// TypJWT es el typ de las visas JWT.
const TypJWT = "JWT"

// SigningMethod mapea el alg de una RSAKey al método de golang-jwt.
func SigningMethod(alg string) (jwtv5.SigningMethod, error) {
	switch alg {
	case "", "RS256":
		return jwtv5.SigningMethodRS256, nil
	case "RS384":
		return jwtv5.SigningMethodRS384, nil
	case "RS512":
		return jwtv5.SigningMethodRS512, nil
	case "PS256":
		return jwtv5.SigningMethodPS256, nil
	case "PS384":
		return jwtv5.SigningMethodPS384, nil
	case "PS512":
		return jwtv5.SigningMethodPS512, nil
	default:
		return nil, fmt.Errorf("%w: alg %q", keys.ErrUnsupportedKeyType, alg)
	}
}

// Sign firma claims con key, setea header kid/typ y devuelve el JWS compacto.
func Sign(key *keys.RSAKey, typ, kid string, claims jwtv5.MapClaims) (string, error) {
	if key == nil {
		return "", fmt.Errorf("%w: nil rsa key", keys.ErrUnsupportedKeyType)
	}
	priv, err := key.PrivateKey()
	if err != nil {
		return "", err
	}
	method, err := SigningMethod(key.Alg())
	if err != nil {
		return "", err
	}
	tk := jwtv5.NewWithClaims(method, claims)
	tk.Header["kid"] = kid
	tk.Header["typ"] = typ
	signed, err := tk.SignedString(priv)
	if err != nil {
		return "", fmt.Errorf("jwt: sign: %w", err)
	}
	return signed, nil
}
