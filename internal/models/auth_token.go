package models

import "time"

// AuthToken is a single-use, expiring credential bound to an email address. Kind separates
// email verification, password reset and two-factor tokens; the unique (kind, email) index
// keeps at most one live row per pair.
type AuthToken struct {
	BaseModel

	Kind      string    `gorm:"size:32;not null;uniqueIndex:idx_auth_tokens_kind_email" json:"kind"`
	Email     string    `gorm:"size:320;not null;uniqueIndex:idx_auth_tokens_kind_email" json:"email"`
	TokenHash string    `gorm:"size:64;not null" json:"-"`
	ExpiresAt time.Time `gorm:"index;not null" json:"expires_at"`
}

// TwoFactorConfirmation marks that a user passed the two-factor challenge of the current sign-in.
type TwoFactorConfirmation struct {
	BaseModel

	UserID string `gorm:"type:uuid;uniqueIndex;not null" json:"user_id"`
}
