package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySessionStoreExpiry(t *testing.T) {
	store := NewMemorySessionStore()
	now := time.Now()
	store.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.RevokeRefresh(ctx, "jti-1", time.Minute))
	revoked, err := store.IsRefreshRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	require.NoError(t, store.RecordLoginFailure(ctx, "Alice", 2, time.Minute))
	locked, _ := store.IsLocked(ctx, "alice")
	assert.False(t, locked)
	require.NoError(t, store.RecordLoginFailure(ctx, "alice ", 2, time.Minute))
	locked, _ = store.IsLocked(ctx, "ALICE")
	assert.True(t, locked)

	now = now.Add(2 * time.Minute)
	revoked, _ = store.IsRefreshRevoked(ctx, "jti-1")
	assert.False(t, revoked)
	locked, _ = store.IsLocked(ctx, "alice")
	assert.False(t, locked)

	count, err := store.CountLoginAttempt(ctx, "1.1.1.1", "alice")
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
	count, _ = store.CountLoginAttempt(ctx, "1.1.1.1", "ALICE")
	assert.EqualValues(t, 2, count)
}
