package visa

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dropDatabas3/hellopassport/internal/keys"
	"github.com/dropDatabas3/hellopassport/internal/observability/logger"
)

// Prefijos obligatorios que agrega el firmante.
const (
	PrefixExpiry  = "et"
	PrefixSubject = "iu"
	PrefixJTI     = "iv"
)

// CompactVisa es la forma JSON de una visa compacta.
type CompactVisa struct {
	V string `json:"v"`
	K string `json:"k"`
	S string `json:"s"`
	I string `json:"i,omitempty"`
}

// Canonicalize ordena byte a byte y une por espacio. No modifica el slice.
func Canonicalize(assertions []string) string {
	cp := append([]string(nil), assertions...)
	sort.Strings(cp)
	return strings.Join(cp, " ")
}

// CreateCompactVisa firma con el reloj real. issuer es opcional.
func CreateCompactVisa(key *keys.Ed25519Key, issuer, kid, subject string, ttlSeconds int64, assertions []string) (CompactVisa, error) {
	return defaultSigner.Compact(key, issuer, kid, subject, ttlSeconds, assertions)
}

// SignCompactVisaWithKID busca kid en reg (debe ser Ed25519) y firma.
func SignCompactVisaWithKID(reg *keys.Registry, issuer, kid, subject string, ttlSeconds int64, assertions []string) (CompactVisa, error) {
	ek, err := reg.Ed25519(kid)
	if err != nil {
		return CompactVisa{}, err
	}
	return CreateCompactVisa(ek, issuer, kid, subject, ttlSeconds, assertions)
}

// Compact agrega et/iu/iv, canonicaliza y firma.
func (s Signer) Compact(key *keys.Ed25519Key, issuer, kid, subject string, ttlSeconds int64, assertions []string) (CompactVisa, error) {
	if key == nil {
		return CompactVisa{}, fmt.Errorf("%w: nil ed25519 key", keys.ErrUnsupportedKeyType)
	}
	priv, err := key.PrivateKey()
	if err != nil {
		return CompactVisa{}, err
	}
	if err := validateAssertions(assertions); err != nil {
		return CompactVisa{}, err
	}
	if subject == "" || strings.ContainsAny(subject, " \t\n") {
		return CompactVisa{}, fmt.Errorf("%w: subject %q", ErrInvalidAssertion, subject)
	}
	jti, err := s.jti()
	if err != nil {
		return CompactVisa{}, err
	}
	exp := s.now().Add(time.Duration(ttlSeconds) * time.Second).Unix()

	all := make([]string, 0, len(assertions)+3)
	all = append(all, assertions...)
	all = append(all,
		PrefixExpiry+":"+strconv.FormatInt(exp, 10),
		PrefixSubject+":"+subject,
		PrefixJTI+":"+jti,
	)
	v := Canonicalize(all)
	sig := ed25519.Sign(priv, []byte(v))

	logger.Named("visa").Debug("compact visa signed",
		logger.KID(kid), logger.Count(len(all)), logger.Bytes(len(v)))

	return CompactVisa{
		V: v,
		K: kid,
		S: base64.RawURLEncoding.EncodeToString(sig),
		I: issuer,
	}, nil
}

func validateAssertions(assertions []string) error {
	for _, a := range assertions {
		name, value, ok := strings.Cut(a, ":")
		if !ok || name == "" || value == "" || strings.ContainsAny(a, " \t\n") {
			return fmt.Errorf("%w: %q", ErrInvalidAssertion, a)
		}
		switch name {
		case PrefixExpiry, PrefixSubject, PrefixJTI:
			return fmt.Errorf("%w: %q uses reserved prefix", ErrInvalidAssertion, a)
		}
	}
	return nil
}

// Verify comprueba la firma sobre V con pub.
func (cv CompactVisa) Verify(pub ed25519.PublicKey) error {
	if len(pub) != ed25519.PublicKeySize {
		return fmt.Errorf("%w: public key size %d", ErrInvalidSignature, len(pub))
	}
	sig, err := base64.RawURLEncoding.DecodeString(cv.S)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedVisa, err)
	}
	if !ed25519.Verify(pub, []byte(cv.V), sig) {
		return ErrInvalidSignature
	}
	return nil
}

// VerifyCompactVisa es Verify como función.
func VerifyCompactVisa(cv CompactVisa, pub ed25519.PublicKey) error {
	return cv.Verify(pub)
}

// Assertions devuelve las aserciones de V en orden canónico.
func (cv CompactVisa) Assertions() []string {
	if cv.V == "" {
		return nil
	}
	return strings.Split(cv.V, " ")
}

// Assertion devuelve el valor de la primera aserción con ese prefijo.
func (cv CompactVisa) Assertion(name string) (string, bool) {
	for _, a := range cv.Assertions() {
		if k, v, ok := strings.Cut(a, ":"); ok && k == name {
			return v, true
		}
	}
	return "", false
}

// ExpiresAt lee et.
func (cv CompactVisa) ExpiresAt() (time.Time, bool) {
	raw, ok := cv.Assertion(PrefixExpiry)
	if !ok {
		return time.Time{}, false
	}
	sec, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(sec, 0), true
}

// Encode serializa como JSON, la forma que viaja dentro de un pasaporte.
func (cv CompactVisa) Encode() (string, error) {
	b, err := json.Marshal(cv)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodeCompactVisa es la inversa de Encode.
func DecodeCompactVisa(s string) (CompactVisa, error) {
	var cv CompactVisa
	if err := json.Unmarshal([]byte(s), &cv); err != nil {
		return CompactVisa{}, fmt.Errorf("%w: %w", ErrMalformedVisa, err)
	}
	if cv.V == "" || cv.K == "" || cv.S == "" {
		return CompactVisa{}, ErrMalformedVisa
	}
	return cv, nil
}
