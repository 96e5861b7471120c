package auth

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scitran/nims-gateway/pkg/common"
	"github.com/scitran/nims-gateway/pkg/types"
)

func newRedisStore(t *testing.T) (*RedisSessionStore, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)

	rdb, err := common.NewRedisClient(types.RedisConfig{
		Mode:  types.RedisModeSingle,
		Addrs: []string{s.Addr()},
	})
	require.NoError(t, err)
	t.Cleanup(func() { rdb.Close() })

	return NewRedisSessionStore(rdb), s
}

func TestRedisStoreRoundTrip(t *testing.T) {
	store, _ := newRedisStore(t)
	ctx := t.Context()

	session := testSession()
	require.NoError(t, store.Save(ctx, session))

	got, err := store.Get(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, "jdoe", got.User.Login)
}

func TestRedisStoreDelete(t *testing.T) {
	store, _ := newRedisStore(t)
	ctx := t.Context()

	session := testSession()
	require.NoError(t, store.Save(ctx, session))
	require.NoError(t, store.Delete(ctx, session.ID))

	_, err := store.Get(ctx, session.ID)
	var notFound *types.ErrSessionNotFound
	assert.ErrorAs(t, err, &notFound)
}

func TestRedisStoreUnknownSession(t *testing.T) {
	store, _ := newRedisStore(t)

	_, err := store.Get(t.Context(), "nope")
	var notFound *types.ErrSessionNotFound
	assert.ErrorAs(t, err, &notFound)
}

func TestRedisStoreTTL(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := t.Context()

	session := testSession()
	require.NoError(t, store.Save(ctx, session))

	// past the session expiry the record is gone
	mr.FastForward(2 * time.Hour)
	_, err := store.Get(ctx, session.ID)
	var notFound *types.ErrSessionNotFound
	assert.ErrorAs(t, err, &notFound)
}

func TestMemoryStore(t *testing.T) {
	store := NewMemorySessionStore()
	ctx := t.Context()

	session := testSession()
	require.NoError(t, store.Save(ctx, session))

	got, err := store.Get(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, session.User, got.User)

	require.NoError(t, store.Delete(ctx, session.ID))
	_, err = store.Get(ctx, session.ID)
	var notFound *types.ErrSessionNotFound
	assert.ErrorAs(t, err, &notFound)
}

func TestMemoryStoreExpiry(t *testing.T) {
	store := NewMemorySessionStore()
	ctx := t.Context()

	session := testSession()
	session.ExpiresAt = time.Now().Add(-time.Minute)
	require.NoError(t, store.Save(ctx, session))

	_, err := store.Get(ctx, session.ID)
	var notFound *types.ErrSessionNotFound
	assert.ErrorAs(t, err, &notFound)
}
