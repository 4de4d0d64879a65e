package auth_test

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/jrsteele09/brandbolt/auth"
	"github.com/jrsteele09/brandbolt/internal/errors"
	"github.com/jrsteele09/brandbolt/pendingpath"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const clientKey = "client-1"

func newCallbackFlow(t *testing.T, f *fixture, pending auth.PendingPathTaker, options ...auth.CallbackOption) *auth.CallbackFlow {
	t.Helper()
	options = append([]auth.CallbackOption{auth.WithCallbackLogger(zerolog.Nop())}, options...)
	return auth.NewCallbackFlow(f.coordinator, f.backend, pending, options...)
}

func TestCallbackProviderDeniedSkipsSessionFetch(t *testing.T) {
	f := setupFixture(t, "/auth/callback")
	flow := newCallbackFlow(t, f, pendingpath.NewInMemoryRepo(time.Minute))

	res := flow.Run(context.Background(), auth.CallbackRequest{
		Query:     url.Values{"error": {"access_denied"}, "error_description": {"user cancelled"}},
		ClientKey: clientKey,
	})

	require.ErrorIs(t, res.Err, errors.ErrAccessDenied)
	assert.Equal(t, int32(0), f.backend.SessionCalls.Load())
	assert.Equal(t, auth.StepFailed, res.Steps[len(res.Steps)-1])
	assert.NotContains(t, res.Steps, auth.StepFetchSession)

	u, err := url.Parse(res.Path)
	require.NoError(t, err)
	assert.Equal(t, "/auth", u.Path)
	assert.Contains(t, u.Query().Get("error"), "user cancelled")

	st := f.store.State()
	assert.Equal(t, auth.StatusError, st.Status)
	assert.Nil(t, st.Session)
}

func TestCallbackOtherProviderErrorIsRejected(t *testing.T) {
	f := setupFixture(t, "/auth/callback")
	flow := newCallbackFlow(t, f, pendingpath.NewInMemoryRepo(time.Minute))

	res := flow.Run(context.Background(), auth.CallbackRequest{
		Query: url.Values{"error": {"server_error"}},
	})

	require.ErrorIs(t, res.Err, errors.ErrProviderRejected)
	assert.Equal(t, int32(0), f.backend.SessionCalls.Load())
}

func TestCallbackExistingSessionNavigatesToPendingPath(t *testing.T) {
	ctx := context.Background()
	f := setupFixture(t, "/auth/callback")
	f.signedIn()
	pending := pendingpath.NewInMemoryRepo(time.Minute)
	require.NoError(t, pending.Put(ctx, clientKey, "/calendar"))
	flow := newCallbackFlow(t, f, pending)

	res := flow.Run(ctx, auth.CallbackRequest{Query: url.Values{}, ClientKey: clientKey})

	require.NoError(t, res.Err)
	assert.Equal(t, "/calendar", res.Path)
	assert.NotContains(t, res.Steps, auth.StepWaitForEvent)
	assert.Equal(t, auth.StepNavigate, res.Steps[len(res.Steps)-1])
	assert.True(t, f.store.State().IsAuthenticated())

	_, err := pending.Take(ctx, clientKey)
	require.ErrorIs(t, err, errors.ErrNotFound)
	assert.Equal(t, 0, f.broker.Count())
}

func TestCallbackWithoutPendingPathGoesHome(t *testing.T) {
	f := setupFixture(t, "/auth/callback")
	f.signedIn()
	flow := newCallbackFlow(t, f, pendingpath.NewInMemoryRepo(time.Minute))

	res := flow.Run(context.Background(), auth.CallbackRequest{ClientKey: clientKey})

	require.NoError(t, res.Err)
	assert.Equal(t, "/", res.Path)
}

func TestCallbackUnsafePendingPathFallsBackHome(t *testing.T) {
	ctx := context.Background()
	f := setupFixture(t, "/auth/callback")
	f.signedIn()
	pending := pendingpath.NewInMemoryRepo(time.Minute)
	require.NoError(t, pending.Put(ctx, clientKey, "//evil.example"))
	flow := newCallbackFlow(t, f, pending)

	res := flow.Run(ctx, auth.CallbackRequest{ClientKey: clientKey})

	require.NoError(t, res.Err)
	assert.Equal(t, "/", res.Path)
}

func TestCallbackWaitsForSignedInEvent(t *testing.T) {
	ctx := context.Background()
	f := setupFixture(t, "/auth/callback")
	f.backend.ExchangeDelay = 30 * time.Millisecond
	pending := pendingpath.NewInMemoryRepo(time.Minute)
	require.NoError(t, pending.Put(ctx, clientKey, "/goals"))
	flow := newCallbackFlow(t, f, pending, auth.WithCallbackTimeout(2*time.Second))

	res := flow.Run(ctx, auth.CallbackRequest{
		Query:     url.Values{"code": {"abc"}},
		ClientKey: clientKey,
		Exchange: func(ctx context.Context) error {
			_, err := f.backend.ExchangeCodeForSession(ctx, "abc", "verifier")
			return err
		},
	})

	require.NoError(t, res.Err)
	assert.Contains(t, res.Steps, auth.StepWaitForEvent)
	assert.Equal(t, "/goals", res.Path)

	st := f.store.State()
	require.True(t, st.IsAuthenticated())
	assert.Equal(t, "oauth-abc", st.User.ID)
	assert.Equal(t, int32(1), f.backend.ExchangeCalls.Load())
}

func TestCallbackTimeoutFailsClosed(t *testing.T) {
	f := setupFixture(t, "/auth/callback")
	f.backend.ExchangeDelay = time.Second
	flow := newCallbackFlow(t, f, pendingpath.NewInMemoryRepo(time.Minute), auth.WithCallbackTimeout(50*time.Millisecond))

	start := time.Now()
	res := flow.Run(context.Background(), auth.CallbackRequest{
		Query: url.Values{"code": {"slow"}},
		Exchange: func(ctx context.Context) error {
			_, err := f.backend.ExchangeCodeForSession(ctx, "slow", "verifier")
			return err
		},
	})

	require.ErrorIs(t, res.Err, errors.ErrTimeout)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Equal(t, auth.StatusError, f.store.State().Status)
	assert.False(t, f.backend.HasSession())
	assert.Equal(t, 0, f.broker.Count())
}

func TestCallbackExchangeFailureFailsFast(t *testing.T) {
	f := setupFixture(t, "/auth/callback")
	f.backend.ExchangeErr = errors.New("invalid grant")
	flow := newCallbackFlow(t, f, pendingpath.NewInMemoryRepo(time.Minute), auth.WithCallbackTimeout(5*time.Second))

	start := time.Now()
	res := flow.Run(context.Background(), auth.CallbackRequest{
		Query: url.Values{"code": {"bad"}},
		Exchange: func(ctx context.Context) error {
			_, err := f.backend.ExchangeCodeForSession(ctx, "bad", "verifier")
			return err
		},
	})

	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "invalid grant")
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, auth.StatusError, f.store.State().Status)
}

func TestCallbackSessionFetchFailure(t *testing.T) {
	f := setupFixture(t, "/auth/callback")
	f.backend.SessionErr = errors.ErrNetwork
	flow := newCallbackFlow(t, f, pendingpath.NewInMemoryRepo(time.Minute))

	res := flow.Run(context.Background(), auth.CallbackRequest{})

	require.ErrorIs(t, res.Err, errors.ErrNetwork)
	assert.NotContains(t, res.Steps, auth.StepWaitForEvent)
}
