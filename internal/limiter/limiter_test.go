package limiter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStorage struct {
	counts map[string]int64
	err    error
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{counts: map[string]int64{}}
}

func (f *fakeStorage) Incr(_ context.Context, key string, _ time.Duration) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.counts[key]++
	return f.counts[key], nil
}

func (f *fakeStorage) TTL(_ context.Context, _ string) (time.Duration, error) {
	if f.err != nil {
		return 0, f.err
	}
	return 30 * time.Second, nil
}

func TestCheck_AllowsUnderLimit(t *testing.T) {
	l := NewLimiter(newFakeStorage())

	result, err := l.Check(context.Background(), "1.2.3.4", "register")
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, int64(5), result.Limit)
	assert.Equal(t, int64(4), result.Remaining)
}

func TestCheck_BlocksOverLimit(t *testing.T) {
	l := NewLimiter(newFakeStorage())
	ctx := context.Background()

	limit := DefaultLimits["register"].Limit
	for i := int64(0); i < limit; i++ {
		result, err := l.Check(ctx, "1.2.3.4", "register")
		require.NoError(t, err)
		assert.True(t, result.Allowed)
	}

	result, err := l.Check(ctx, "1.2.3.4", "register")
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, int64(0), result.Remaining)
}

func TestCheck_ClientsAreIndependent(t *testing.T) {
	l := NewLimiter(newFakeStorage())
	ctx := context.Background()

	limit := DefaultLimits["register"].Limit
	for i := int64(0); i <= limit; i++ {
		l.Check(ctx, "1.2.3.4", "register")
	}

	result, err := l.Check(ctx, "5.6.7.8", "register")
	require.NoError(t, err)
	assert.True(t, result.Allowed, "a different client keeps its own window")
}

func TestCheck_UnknownActionUsesDefault(t *testing.T) {
	l := NewLimiter(newFakeStorage())

	result, err := l.Check(context.Background(), "1.2.3.4", "unheard-of")
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, int64(100), result.Limit)
}

func TestCheck_StorageError(t *testing.T) {
	storage := newFakeStorage()
	storage.err = errors.New("connection refused")
	l := NewLimiter(storage)

	_, err := l.Check(context.Background(), "1.2.3.4", "login")
	assert.Error(t, err)
}
