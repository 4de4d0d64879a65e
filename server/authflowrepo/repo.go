package authflowrepo

import (
	"time"

	"github.com/jrsteele09/brandbolt/session"
)

// AuthFlowState is what the OAuth start route remembers until the provider redirects back.
type AuthFlowState struct {
	ClientID     string
	CodeVerifier string
	Provider     session.Provider
	CreatedAt    time.Time
}

type Repo interface {
	Upsert(state string, authState *AuthFlowState) error
	Get(state string) (*AuthFlowState, error)
	Delete(state string) error
}
