package models

import "time"

// RoleUser is the role assigned to self-registered accounts.
const RoleUser = "user"

// User is a blog account authenticated with email and password.
type User struct {
	BaseModel

	Name         string `gorm:"size:120;not null" json:"name"`
	Email        string `gorm:"size:320;uniqueIndex;not null" json:"email"`
	PasswordHash string `gorm:"not null" json:"-"`
	Role         string `gorm:"size:16;not null;default:user" json:"role"`

	EmailVerifiedAt  *time.Time `json:"email_verified_at"`
	TwoFactorEnabled bool       `gorm:"default:false" json:"two_factor_enabled"`
}

// EmailVerified reports whether the user confirmed their address.
func (u *User) EmailVerified() bool {
	return u != nil && u.EmailVerifiedAt != nil
}
