package visa

import "errors"

var (
	ErrInvalidAssertion = errors.New("visa: invalid assertion")
	ErrInvalidSignature = errors.New("visa: invalid signature")
	ErrMalformedVisa    = errors.New("visa: malformed compact visa")
)
