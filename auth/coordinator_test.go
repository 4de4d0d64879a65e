package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/jrsteele09/brandbolt/auth"
	"github.com/jrsteele09/brandbolt/authbackend"
	"github.com/stretchr/testify/require"
)

func TestRequireAuthNeverNavigatesBeforeInitialized(t *testing.T) {
	f := setupFixture(t, "/calendar")

	require.False(t, f.coordinator.RequireAuth("/calendar"))
	require.False(t, f.coordinator.RequireNoAuth("/auth"))
	require.Empty(t, f.nav.Navigations())
}

func TestRequireAuthRedirectsSignedOutUser(t *testing.T) {
	f := setupFixture(t, "/calendar")
	f.initialize(t)

	require.True(t, f.coordinator.RequireAuth("/calendar"))
	require.Equal(t, []string{"/auth"}, f.nav.Navigations())
	require.False(t, f.coordinator.RequireNoAuth("/auth"))
}

func TestRequireNoAuthRedirectsSignedInUser(t *testing.T) {
	f := setupFixture(t, "/auth")
	f.signedIn()
	f.initialize(t)

	require.False(t, f.coordinator.RequireAuth("/calendar"))
	require.True(t, f.coordinator.RequireNoAuth("/auth"))
	require.Equal(t, []string{"/"}, f.nav.Navigations())
}

func TestGuardsIgnoreCallbackRoute(t *testing.T) {
	f := setupFixture(t, "/auth/callback")
	f.initialize(t)

	require.False(t, f.coordinator.RequireAuth("/auth/callback"))
	require.Empty(t, f.nav.Navigations())
}

func TestAttachInitializesInBackground(t *testing.T) {
	f := setupFixture(t, "/")
	f.signedIn()

	cn := f.coordinator.Attach(context.Background())
	defer cn.Detach()

	require.Eventually(t, func() bool {
		return f.store.State().IsAuthenticated()
	}, time.Second, 5*time.Millisecond)
}

func TestSignedInEventNavigatesHomeFromPublicRoute(t *testing.T) {
	f := setupFixture(t, "/auth")
	f.backend.AddUser(testEmail, testPassword)
	cn := f.coordinator.Attach(context.Background())
	defer cn.Detach()

	_, err := f.backend.SignInWithPassword(context.Background(), authbackend.Credentials{Email: testEmail, Password: testPassword})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return f.nav.CurrentPath() == "/" && f.store.State().IsAuthenticated()
	}, time.Second, 5*time.Millisecond)
}

func TestSignedInEventLeavesCallbackRouteAlone(t *testing.T) {
	f := setupFixture(t, "/auth/callback")
	f.backend.AddUser(testEmail, testPassword)
	cn := f.coordinator.Attach(context.Background())
	defer cn.Detach()

	_, err := f.backend.SignInWithPassword(context.Background(), authbackend.Credentials{Email: testEmail, Password: testPassword})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return f.store.State().IsAuthenticated() }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	require.Empty(t, f.nav.Navigations())
}

func TestTokenRefreshOnProtectedRouteStaysPut(t *testing.T) {
	f := setupFixture(t, "/calendar")
	f.signedIn()
	cn := f.coordinator.Attach(context.Background())
	defer cn.Detach()
	require.Eventually(t, func() bool { return f.store.State().IsAuthenticated() }, time.Second, 5*time.Millisecond)

	calls := f.backend.SessionCalls.Load()
	f.backend.EmitTokenRefreshed()
	require.Eventually(t, func() bool { return f.backend.SessionCalls.Load() > calls }, time.Second, 5*time.Millisecond)

	time.Sleep(20 * time.Millisecond)
	require.Empty(t, f.nav.Navigations())
	require.Equal(t, "/calendar", f.nav.CurrentPath())
}

func TestOneEventReloadsOnceForManyConsumers(t *testing.T) {
	f := setupFixture(t, "/calendar")
	f.signedIn()
	for i := 0; i < 3; i++ {
		cn := f.coordinator.Attach(context.Background())
		defer cn.Detach()
	}
	require.Eventually(t, func() bool { return f.store.State().IsAuthenticated() }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	calls := f.backend.SessionCalls.Load()
	f.backend.EmitTokenRefreshed()
	require.Eventually(t, func() bool { return f.backend.SessionCalls.Load() > calls }, time.Second, 5*time.Millisecond)

	time.Sleep(30 * time.Millisecond)
	require.EqualValues(t, calls+1, f.backend.SessionCalls.Load())
	require.True(t, f.store.State().IsAuthenticated())
}

func TestSignedOutEventNavigatesToAuth(t *testing.T) {
	f := setupFixture(t, "/analytics")
	f.signedIn()
	cn := f.coordinator.Attach(context.Background())
	defer cn.Detach()
	require.Eventually(t, func() bool { return f.store.State().IsAuthenticated() }, time.Second, 5*time.Millisecond)

	require.NoError(t, f.backend.SignOut(context.Background()))

	require.Eventually(t, func() bool {
		return f.nav.CurrentPath() == "/auth"
	}, time.Second, 5*time.Millisecond)
	st := f.store.State()
	require.Equal(t, auth.StatusUnauthenticated, st.Status)
	require.Nil(t, st.User)
}

func TestDetachedConsumerIgnoresEvents(t *testing.T) {
	f := setupFixture(t, "/analytics")
	f.signedIn()
	f.initialize(t)

	cn := f.coordinator.Attach(context.Background())
	keep := f.coordinator.Attach(context.Background())
	cn.Detach()
	cn.Detach()
	require.False(t, cn.Alive())
	require.Equal(t, 1, f.broker.Count())

	keep.Detach()
	require.NoError(t, f.backend.SignOut(context.Background()))
	time.Sleep(20 * time.Millisecond)
	require.Empty(t, f.nav.Navigations())
}

func TestConsumersShareOneSubscription(t *testing.T) {
	f := setupFixture(t, "/")

	consumers := make([]*auth.Consumer, 0, 5)
	for i := 0; i < 5; i++ {
		consumers = append(consumers, f.coordinator.Attach(context.Background()))
	}
	require.Equal(t, 1, f.backend.Listeners())
	require.Equal(t, 5, f.broker.Count())

	for _, cn := range consumers {
		cn.Detach()
	}
	require.Equal(t, 0, f.broker.Count())
	require.Equal(t, 0, f.backend.Listeners())
	require.False(t, f.broker.Active())

	cn := f.coordinator.Attach(context.Background())
	defer cn.Detach()
	require.Equal(t, 1, f.backend.Listeners())
	require.True(t, f.broker.Active())
}
