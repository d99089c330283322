package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	keys        map[string]bool
	setNXError  error
	lastKey     string
	lastTTL     time.Duration
	lastDeleted string
}

func newFakeStore() *fakeStore {
	return &fakeStore{keys: map[string]bool{}}
}

func (f *fakeStore) Get(context.Context, string) (string, error) {
	return "", nil
}

func (f *fakeStore) SetNX(_ context.Context, key string, _ any, ttl time.Duration) (bool, error) {
	f.lastKey = key
	f.lastTTL = ttl
	if f.setNXError != nil {
		return false, f.setNXError
	}
	if f.keys[key] {
		return false, nil
	}
	f.keys[key] = true
	return true, nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return "ff:idempotency:" + scope + ":" + id
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(f.keys, k)
		f.lastDeleted = k
	}
	return nil
}

func TestCheckAndMarkProcessed(t *testing.T) {
	store := newFakeStore()
	manager, err := NewManager(store, 24*time.Hour)
	require.NoError(t, err)

	eventID := uuid.New()
	already, err := manager.CheckAndMarkProcessed(context.Background(), "orders-worker", eventID)
	require.NoError(t, err)
	assert.False(t, already)
	assert.Equal(t, "ff:idempotency:evt:processed:orders-worker:"+eventID.String(), store.lastKey)
	assert.Equal(t, 24*time.Hour, store.lastTTL)

	already, err = manager.CheckAndMarkProcessed(context.Background(), "orders-worker", eventID)
	require.NoError(t, err)
	assert.True(t, already)
}

func TestCheckAndMarkProcessedValidation(t *testing.T) {
	manager, err := NewManager(newFakeStore(), time.Hour)
	require.NoError(t, err)

	_, err = manager.CheckAndMarkProcessed(context.Background(), "", uuid.New())
	assert.Error(t, err)
	_, err = manager.CheckAndMarkProcessed(context.Background(), "c", uuid.Nil)
	assert.Error(t, err)

	_, err = NewManager(nil, time.Hour)
	assert.Error(t, err)
}

func TestOnceSkipsDuplicates(t *testing.T) {
	manager, err := NewManager(newFakeStore(), time.Hour)
	require.NoError(t, err)

	eventID := uuid.New()
	calls := 0
	fn := func(context.Context) error { calls++; return nil }

	skipped, err := manager.Once(context.Background(), "notifications", eventID, fn)
	require.NoError(t, err)
	assert.False(t, skipped)

	skipped, err = manager.Once(context.Background(), "notifications", eventID, fn)
	require.NoError(t, err)
	assert.True(t, skipped)
	assert.Equal(t, 1, calls)
}

func TestOnceReleasesMarkOnFailure(t *testing.T) {
	store := newFakeStore()
	manager, err := NewManager(store, time.Hour)
	require.NoError(t, err)

	eventID := uuid.New()
	boom := errors.New("boom")
	_, err = manager.Once(context.Background(), "orders-worker", eventID, func(context.Context) error { return boom })
	require.ErrorIs(t, err, boom)
	assert.Equal(t, "ff:idempotency:evt:processed:orders-worker:"+eventID.String(), store.lastDeleted)

	skipped, err := manager.Once(context.Background(), "orders-worker", eventID, func(context.Context) error { return nil })
	require.NoError(t, err)
	assert.False(t, skipped, "redelivery after failure must run again")
}

func TestOnceStoreError(t *testing.T) {
	store := newFakeStore()
	store.setNXError = errors.New("redis down")
	manager, err := NewManager(store, time.Hour)
	require.NoError(t, err)

	_, err = manager.Once(context.Background(), "orders-worker", uuid.New(), func(context.Context) error { return nil })
	assert.Error(t, err)
}
