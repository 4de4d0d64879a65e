package authflowrepo

import (
	"testing"
	"time"

	"github.com/jrsteele09/brandbolt/internal/errors"
	"github.com/jrsteele09/brandbolt/session"
	"github.com/stretchr/testify/require"
)

func TestInMemoryRepoRoundTrip(t *testing.T) {
	repo := NewInMemoryRepo(time.Minute)

	require.NoError(t, repo.Upsert("state-1", &AuthFlowState{
		ClientID:     "client-1",
		CodeVerifier: "verifier",
		Provider:     session.ProviderLinkedIn,
	}))

	got, err := repo.Get("state-1")
	require.NoError(t, err)
	require.Equal(t, "client-1", got.ClientID)
	require.Equal(t, session.ProviderLinkedIn, got.Provider)
	require.False(t, got.CreatedAt.IsZero())

	require.NoError(t, repo.Delete("state-1"))
	_, err = repo.Get("state-1")
	require.ErrorIs(t, err, errors.ErrInvalidState)
}

func TestInMemoryRepoExpiresStates(t *testing.T) {
	now := time.Now()
	repo := NewInMemoryRepo(time.Minute)
	repo.nowTime = func() time.Time { return now }

	require.NoError(t, repo.Upsert("old", &AuthFlowState{ClientID: "client-1"}))

	now = now.Add(2 * time.Minute)
	_, err := repo.Get("old")
	require.ErrorIs(t, err, errors.ErrInvalidState)

	require.NoError(t, repo.Upsert("new", &AuthFlowState{ClientID: "client-2"}))
	require.NotContains(t, repo.states, "old")
}

func TestInMemoryRepoRejectsEmptyState(t *testing.T) {
	repo := NewInMemoryRepo(time.Minute)
	require.Error(t, repo.Upsert("", &AuthFlowState{}))
	require.Error(t, repo.Upsert("s", nil))
	_, err := repo.Get("")
	require.Error(t, err)
}
