package database

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/inkpost/internal/models"
)

func TestOpenSQLiteMemory(t *testing.T) {
	db, err := Open(Config{Driver: "sqlite"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })

	require.NoError(t, db.Exec("SELECT 1").Error)
}

func TestMemoryDatabasesAreIsolated(t *testing.T) {
	first, err := Open(Config{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(first) })

	second, err := Open(Config{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(second) })

	require.NoError(t, Prepare(first))
	require.True(t, first.Migrator().HasTable(&models.AuthToken{}))
	require.False(t, second.Migrator().HasTable(&models.AuthToken{}))
}

func TestPrepareCreatesTables(t *testing.T) {
	db, err := Open(Config{Driver: "sqlite", Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })

	require.NoError(t, Prepare(db))
	for _, model := range []any{
		&models.User{}, &models.Post{}, &models.Comment{},
		&models.AuthToken{}, &models.TwoFactorConfirmation{}, &models.RateLimitHit{},
		&models.RateLimitBucket{},
	} {
		require.True(t, db.Migrator().HasTable(model))
	}
	require.True(t, db.Migrator().HasIndex(&models.AuthToken{}, "idx_auth_tokens_kind_email"))
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "oracle"})
	require.ErrorContains(t, err, "unsupported database driver")
}

func TestPrepareNilHandle(t *testing.T) {
	require.Error(t, Prepare(nil))
}
