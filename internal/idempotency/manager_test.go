package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/freelance-payments/internal/cache"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	manager, err := NewManager(NewMemoryStore(cache.New(time.Hour, nil)), time.Hour)
	require.NoError(t, err)
	return manager
}

func TestManager_CheckAndMarkProcessed(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()

	processed, err := manager.CheckAndMarkProcessed(ctx, "stripe", "evt_1")
	require.NoError(t, err)
	assert.False(t, processed)

	processed, err = manager.CheckAndMarkProcessed(ctx, "stripe", "evt_1")
	require.NoError(t, err)
	assert.True(t, processed)

	processed, err = manager.CheckAndMarkProcessed(ctx, "paypal", "evt_1")
	require.NoError(t, err)
	assert.False(t, processed)
}

func TestManager_Forget(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()

	_, err := manager.CheckAndMarkProcessed(ctx, "stripe", "evt_2")
	require.NoError(t, err)
	require.NoError(t, manager.Forget(ctx, "stripe", "evt_2"))

	processed, err := manager.CheckAndMarkProcessed(ctx, "stripe", "evt_2")
	require.NoError(t, err)
	assert.False(t, processed)
}

func TestManager_RequiresIDs(t *testing.T) {
	manager := newTestManager(t)

	_, err := manager.CheckAndMarkProcessed(context.Background(), "stripe", "")
	assert.Error(t, err)
}

func TestNewManager_NilStore(t *testing.T) {
	_, err := NewManager(nil, time.Hour)
	assert.Error(t, err)
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint([]byte(`{"amount":100}`))
	b := Fingerprint([]byte(`{"amount":100}`))
	c := Fingerprint([]byte(`{"amount":101}`))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func TestMemoryStore_Get(t *testing.T) {
	store := NewMemoryStore(cache.New(time.Hour, nil))
	ctx := context.Background()

	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, store.Set(ctx, "k", "v", 0))
	value, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", value)
	assert.Equal(t, "fp:idempotency:scope:id", store.Key("scope", "id"))
}
