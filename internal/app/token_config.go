package app

import "github.com/charlesng35/inkpost/internal/tokens"

// TokenTTLs converts TokenConfig into the lifetimes used by the token manager.
func (c TokenConfig) TokenTTLs() tokens.TTLs {
	return tokens.TTLs{
		Verification:  c.VerificationTTL,
		PasswordReset: c.PasswordResetTTL,
		TwoFactor:     c.TwoFactorTTL,
	}
}
