package tokens

import "errors"

var (
	// ErrTokenNotFound means no live token exists for the kind and email.
	ErrTokenNotFound = errors.New("tokens: not found")
	// ErrTokenMismatched means a token exists but the presented value differs.
	ErrTokenMismatched = errors.New("tokens: mismatched")
	// ErrTokenExpired means the matching token is past its expiry.
	ErrTokenExpired = errors.New("tokens: expired")

	// ErrUnknownKind is returned for kinds outside Kinds().
	ErrUnknownKind = errors.New("tokens: unknown kind")
	// ErrEmailRequired is returned when the email is blank.
	ErrEmailRequired = errors.New("tokens: email is required")
)

// IsInvalidToken reports whether err is one of the token validation failures. Callers flatten
// these into a single client-facing response; any other error is a store failure.
func IsInvalidToken(err error) bool {
	return errors.Is(err, ErrTokenNotFound) ||
		errors.Is(err, ErrTokenMismatched) ||
		errors.Is(err, ErrTokenExpired)
}
