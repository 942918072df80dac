package tokens

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/inkpost/internal/database/testutil"
)

func TestConfirmationsLifecycle(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	confirmations, err := NewConfirmations(db)
	require.NoError(t, err)
	ctx := context.Background()

	exists, err := confirmations.Exists(ctx, "user-1")
	require.NoError(t, err)
	require.False(t, exists)

	require.NoError(t, confirmations.Confirm(ctx, "user-1"))
	require.NoError(t, confirmations.Confirm(ctx, "user-1"))

	exists, err = confirmations.Exists(ctx, "user-1")
	require.NoError(t, err)
	require.True(t, exists)

	require.NoError(t, confirmations.Clear(ctx, "user-1"))
	exists, err = confirmations.Exists(ctx, "user-1")
	require.NoError(t, err)
	require.False(t, exists)

	require.NoError(t, confirmations.Clear(ctx, "missing"))
	require.Error(t, confirmations.Confirm(ctx, " "))
}
