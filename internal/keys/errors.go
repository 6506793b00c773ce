package keys

import "errors"

var (
	ErrUnknownKeyID            = errors.New("keys: unknown key id")
	ErrUnsupportedKeyType      = errors.New("keys: unsupported key type")
	ErrInvalidKeySeedLength    = errors.New("keys: ed25519 seed must be 32 bytes")
	ErrUnsupportedCurve        = errors.New("keys: unsupported curve")
	ErrMissingPrivateComponent = errors.New("keys: missing private key component")
)

func IsUnknownKeyID(err error) bool       { return errors.Is(err, ErrUnknownKeyID) }
func IsUnsupportedKeyType(err error) bool { return errors.Is(err, ErrUnsupportedKeyType) }
