package idempotency

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockCmdable struct {
	data map[string]string
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{data: make(map[string]string)}
}

func (m *mockCmdable) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *mockCmdable) Set(_ context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	m.data[key] = fmt.Sprint(value)
	return redis.NewStatusResult("OK", nil)
}

func (m *mockCmdable) SetNX(_ context.Context, key string, value any, _ time.Duration) *redis.BoolCmd {
	if _, exists := m.data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	m.data[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) Del(_ context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(m.data, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func TestRedisStore_MapsNilToMiss(t *testing.T) {
	store := NewRedisStore(newMockCmdable())

	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestRedisStore_SetNXAndDel(t *testing.T) {
	store := NewRedisStore(newMockCmdable())
	ctx := context.Background()
	key := store.Key("evt:processed:stripe", "evt_1")

	set, err := store.SetNX(ctx, key, "1", time.Hour)
	require.NoError(t, err)
	assert.True(t, set)

	set, err = store.SetNX(ctx, key, "1", time.Hour)
	require.NoError(t, err)
	assert.False(t, set)

	require.NoError(t, store.Del(ctx, key))
	_, err = store.Get(ctx, key)
	assert.ErrorIs(t, err, ErrMiss)
}

func TestRedisStore_WithManager(t *testing.T) {
	manager, err := NewManager(NewRedisStore(newMockCmdable()), time.Hour)
	require.NoError(t, err)

	processed, err := manager.CheckAndMarkProcessed(context.Background(), "stripe", "evt_9")
	require.NoError(t, err)
	assert.False(t, processed)

	processed, err = manager.CheckAndMarkProcessed(context.Background(), "stripe", "evt_9")
	require.NoError(t, err)
	assert.True(t, processed)
}
