package auth

import "errors"

var (
	ErrNotFound           = errors.New("auth: not found")
	ErrAlreadyExists      = errors.New("auth: already exists")
	ErrInvalidInput       = errors.New("auth: invalid input")
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrStationMismatch    = errors.New("auth: station mismatch")
)

// Token verification failures.
var (
	ErrMalformed        = errors.New("auth: malformed token")
	ErrSignatureInvalid = errors.New("auth: token signature invalid")
	ErrExpired          = errors.New("auth: token expired")
	ErrSessionExpired   = errors.New("auth: session expired")
	ErrWrongKind        = errors.New("auth: wrong principal kind")
)

// IsTokenError reports whether err is one of the token verification failures.
func IsTokenError(err error) bool {
	return errors.Is(err, ErrMalformed) ||
		errors.Is(err, ErrSignatureInvalid) ||
		errors.Is(err, ErrExpired) ||
		errors.Is(err, ErrSessionExpired) ||
		errors.Is(err, ErrWrongKind)
}
