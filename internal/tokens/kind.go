package tokens

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
)

// Kind tags the purpose of a single-use token.
type Kind string

const (
	KindVerification  Kind = "verification"
	KindPasswordReset Kind = "password_reset"
	KindTwoFactor     Kind = "two_factor"
)

// Default lifetimes per kind.
const (
	DefaultVerificationTTL  = 48 * time.Hour
	DefaultPasswordResetTTL = time.Hour
	DefaultTwoFactorTTL     = 5 * time.Minute
)

// Kinds lists every supported kind.
func Kinds() []Kind {
	return []Kind{KindVerification, KindPasswordReset, KindTwoFactor}
}

// Valid reports whether k is a supported kind.
func (k Kind) Valid() bool {
	switch k {
	case KindVerification, KindPasswordReset, KindTwoFactor:
		return true
	}
	return false
}

func (k Kind) String() string { return string(k) }

// Generator produces a fresh token value.
type Generator func() (string, error)

// TTLs holds the lifetime of each kind. Zero fields fall back to the defaults.
type TTLs struct {
	Verification  time.Duration
	PasswordReset time.Duration
	TwoFactor     time.Duration
}

func (t TTLs) forKind(kind Kind) time.Duration {
	pick := func(value, fallback time.Duration) time.Duration {
		if value > 0 {
			return value
		}
		return fallback
	}
	switch kind {
	case KindVerification:
		return pick(t.Verification, DefaultVerificationTTL)
	case KindPasswordReset:
		return pick(t.PasswordReset, DefaultPasswordResetTTL)
	case KindTwoFactor:
		return pick(t.TwoFactor, DefaultTwoFactorTTL)
	}
	return 0
}

func defaultGenerator(kind Kind) Generator {
	if kind == KindTwoFactor {
		return SixDigitCode
	}
	return RandomUUID
}

// RandomUUID returns a random (version 4) UUID string.
func RandomUUID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

var codeSpan = big.NewInt(900000)

// SixDigitCode returns a uniformly distributed decimal code in [100000, 999999].
func SixDigitCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpan)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
