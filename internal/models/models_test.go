package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestBaseModelBeforeCreateGeneratesID(t *testing.T) {
	var base BaseModel
	require.NoError(t, base.BeforeCreate(nil))

	_, err := uuid.Parse(base.ID)
	require.NoError(t, err)
}

func TestBaseModelBeforeCreateKeepsExplicitID(t *testing.T) {
	base := BaseModel{ID: "fixed"}
	require.NoError(t, base.BeforeCreate(nil))
	require.Equal(t, "fixed", base.ID)
}

func TestUserEmailVerified(t *testing.T) {
	var nilUser *User
	require.False(t, nilUser.EmailVerified())

	u := &User{}
	require.False(t, u.EmailVerified())

	now := time.Now()
	u.EmailVerifiedAt = &now
	require.True(t, u.EmailVerified())
}

func TestPostPublished(t *testing.T) {
	p := &Post{Slug: "draft"}
	require.False(t, p.Published())

	now := time.Now()
	p.PublishedAt = &now
	require.True(t, p.Published())
}
