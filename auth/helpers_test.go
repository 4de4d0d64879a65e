package auth_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/brandbolt/auth"
	"github.com/jrsteele09/brandbolt/authbackend/fakebackend"
	"github.com/rs/zerolog"
)

const (
	testUserID   = "user-1"
	testEmail    = "jane.doe@example.com"
	testPassword = "correct-horse"
)

// testNavigator records navigation requests.
type testNavigator struct {
	mu          sync.Mutex
	path        string
	navigations []string
}

func newTestNavigator(path string) *testNavigator {
	return &testNavigator{path: path}
}

func (n *testNavigator) CurrentPath() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.path
}

func (n *testNavigator) Navigate(path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.path = path
	n.navigations = append(n.navigations, path)
}

func (n *testNavigator) Navigations() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.navigations...)
}

type fixture struct {
	backend     *fakebackend.FakeBackend
	store       *auth.Store
	broker      *auth.Broker
	nav         *testNavigator
	coordinator *auth.Coordinator
}

func setupFixture(t *testing.T, currentPath string) *fixture {
	t.Helper()

	quiet := zerolog.Nop()
	backend := fakebackend.NewFakeBackend()
	store := auth.NewStore(backend, auth.WithStoreLogger(quiet))
	broker := auth.NewBroker(backend, auth.WithBrokerLogger(quiet))
	nav := newTestNavigator(currentPath)
	coordinator := auth.NewCoordinator(store, broker, nav, auth.WithCoordinatorLogger(quiet))
	t.Cleanup(broker.Close)

	return &fixture{
		backend:     backend,
		store:       store,
		broker:      broker,
		nav:         nav,
		coordinator: coordinator,
	}
}

func (f *fixture) signedIn() {
	f.backend.SetSession(fakebackend.TestSession(testUserID, time.Hour))
}

func (f *fixture) initialize(t *testing.T) auth.State {
	t.Helper()
	return f.store.Initialize(context.Background())
}
