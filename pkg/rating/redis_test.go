package rating

import (
	"context"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *RedisStore {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	store, err := NewRedisStore(fmt.Sprintf("redis://%s/0", mr.Addr()), 1000, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func TestNewRedisStoreRejectsBadConfig(t *testing.T) {
	_, err := NewRedisStore("", 1000, zap.NewNop())
	assert.Error(t, err)

	_, err = NewRedisStore("not-a-url", 1000, zap.NewNop())
	assert.Error(t, err)

	_, err = NewRedisStore("redis://127.0.0.1:1/0", 1000, zap.NewNop())
	assert.Error(t, err)
}

func TestLookupInstallsDefaultRating(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	r, err := store.Lookup(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), r)

	// A second lookup reads the stored value rather than re-installing.
	r, err = store.Lookup(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), r)
}

func TestAdjustMovesDeltaBetweenPlayers(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	w, l, err := store.Adjust(ctx, "alice", "bob", 8)
	require.NoError(t, err)
	assert.Equal(t, int64(1008), w)
	assert.Equal(t, int64(992), l)

	r, err := store.Lookup(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1008), r)

	r, err = store.Lookup(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(992), r)
}

func TestAdjustAccumulatesAcrossGames(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, _, err := store.Adjust(ctx, "alice", "bob", 8)
	require.NoError(t, err)

	w, l, err := store.Adjust(ctx, "bob", "alice", 8)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), w)
	assert.Equal(t, int64(1000), l)
}

func TestAdjustKeepsExistingRatings(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Lookup(ctx, "alice")
	require.NoError(t, err)

	w, _, err := store.Adjust(ctx, "alice", "bob", 8)
	require.NoError(t, err)
	assert.Equal(t, int64(1008), w)
}
