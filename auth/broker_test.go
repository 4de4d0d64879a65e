package auth_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/brandbolt/auth"
	"github.com/jrsteele09/brandbolt/authbackend"
	"github.com/jrsteele09/brandbolt/internal/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// countingSource counts upstream subscriptions made against it.
type countingSource struct {
	authbackend.Emitter
	subscribes atomic.Int32
}

func (s *countingSource) OnAuthStateChange(fn func(authbackend.Event)) func() {
	s.subscribes.Add(1)
	return s.Emitter.OnAuthStateChange(fn)
}

func newTestBroker(t *testing.T) (*auth.Broker, *countingSource) {
	t.Helper()
	src := &countingSource{}
	b := auth.NewBroker(src, auth.WithBrokerLogger(zerolog.Nop()))
	t.Cleanup(b.Close)
	return b, src
}

func TestBrokerSharesOneUpstreamSubscription(t *testing.T) {
	b, src := newTestBroker(t)

	subs := make([]auth.Subscription, 0, 5)
	for i := 0; i < 5; i++ {
		subs = append(subs, b.Subscribe(func(authbackend.Event) {}))
	}
	require.EqualValues(t, 1, src.subscribes.Load())
	require.Equal(t, 1, src.Listeners())
	require.Equal(t, 5, b.Count())

	for _, sub := range subs {
		require.NoError(t, b.Unsubscribe(sub))
	}
	require.Equal(t, 0, b.Count())
	require.False(t, b.Active())
	require.Equal(t, 0, src.Listeners())

	b.Subscribe(func(authbackend.Event) {})
	require.EqualValues(t, 2, src.subscribes.Load())
	require.Equal(t, 1, src.Listeners())
}

func TestBrokerConcurrentSubscribers(t *testing.T) {
	b, src := newTestBroker(t)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sub := b.Subscribe(func(authbackend.Event) {})
			require.NoError(t, b.Unsubscribe(sub))
		}()
	}
	wg.Wait()

	require.Equal(t, 0, b.Count())
	require.False(t, b.Active())
	require.Equal(t, 0, src.Listeners())
}

func TestBrokerUnsubscribeTwice(t *testing.T) {
	b, _ := newTestBroker(t)
	keep := b.Subscribe(func(authbackend.Event) {})
	sub := b.Subscribe(func(authbackend.Event) {})

	require.NoError(t, b.Unsubscribe(sub))
	require.ErrorIs(t, b.Unsubscribe(sub), errors.ErrUnknownSubscription)
	require.Equal(t, 1, b.Count())
	require.True(t, b.Active())

	require.NoError(t, b.Unsubscribe(keep))
}

func TestBrokerDeliversInOrder(t *testing.T) {
	b, src := newTestBroker(t)

	var mu sync.Mutex
	var got []authbackend.EventType
	b.Subscribe(func(ev authbackend.Event) {
		mu.Lock()
		got = append(got, ev.Type)
		mu.Unlock()
	})

	src.Emit(authbackend.Event{Type: authbackend.EventSignedIn})
	src.Emit(authbackend.Event{Type: authbackend.EventTokenRefreshed})
	src.Emit(authbackend.Event{Type: authbackend.EventSignedOut})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 3
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, []authbackend.EventType{
		authbackend.EventSignedIn,
		authbackend.EventTokenRefreshed,
		authbackend.EventSignedOut,
	}, got)
}

func TestBrokerKeepsEveryEventBehindSlowHandler(t *testing.T) {
	b, src := newTestBroker(t)

	release := make(chan struct{})
	var mu sync.Mutex
	var got []authbackend.Event
	b.Subscribe(func(ev authbackend.Event) {
		<-release
		mu.Lock()
		got = append(got, ev)
		mu.Unlock()
	})

	const burst = 200
	for i := 0; i < burst; i++ {
		src.Emit(authbackend.Event{Type: authbackend.EventTokenRefreshed})
	}
	src.Emit(authbackend.Event{Type: authbackend.EventSignedOut})
	close(release)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == burst+1
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, authbackend.EventSignedOut, got[burst].Type)
	for i := 1; i < len(got); i++ {
		require.Greater(t, got[i].Seq, got[i-1].Seq)
	}
}

func TestBrokerStopsDeliveringAfterTeardown(t *testing.T) {
	b, src := newTestBroker(t)

	var calls atomic.Int32
	sub := b.Subscribe(func(authbackend.Event) { calls.Add(1) })
	require.NoError(t, b.Unsubscribe(sub))

	src.Emit(authbackend.Event{Type: authbackend.EventSignedIn})
	time.Sleep(20 * time.Millisecond)
	require.EqualValues(t, 0, calls.Load())
}
