package pendingpath

import (
	"context"
	"testing"
	"time"

	"github.com/jrsteele09/brandbolt/internal/errors"
	"github.com/stretchr/testify/require"
)

func TestTakeIsReadOnce(t *testing.T) {
	ctx := context.Background()
	r := NewInMemoryRepo(time.Minute)

	require.NoError(t, r.Put(ctx, "client-1", "/calendar"))
	path, err := r.Take(ctx, "client-1")
	require.NoError(t, err)
	require.Equal(t, "/calendar", path)

	_, err = r.Take(ctx, "client-1")
	require.ErrorIs(t, err, errors.ErrNotFound)
}

func TestPutReplaces(t *testing.T) {
	ctx := context.Background()
	r := NewInMemoryRepo(time.Minute)

	require.NoError(t, r.Put(ctx, "client-1", "/calendar"))
	require.NoError(t, r.Put(ctx, "client-1", "/analytics"))
	path, err := r.Take(ctx, "client-1")
	require.NoError(t, err)
	require.Equal(t, "/analytics", path)
}

func TestExpiredPathIsGone(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	r := NewInMemoryRepo(time.Minute)
	r.nowTime = func() time.Time { return now }

	require.NoError(t, r.Put(ctx, "client-1", "/content"))
	now = now.Add(2 * time.Minute)

	_, err := r.Take(ctx, "client-1")
	require.ErrorIs(t, err, errors.ErrNotFound)
}

func TestEmptyKeyRejected(t *testing.T) {
	r := NewInMemoryRepo(time.Minute)
	require.Error(t, r.Put(context.Background(), "", "/"))
	_, err := r.Take(context.Background(), "")
	require.Error(t, err)
}
