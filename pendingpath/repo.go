// Package pendingpath keeps the route a user was on before leaving for an identity
// provider. A path is written once before the redirect and read once after it.
package pendingpath

import "context"

type Repo interface {
	// Put records path for key, replacing any earlier one.
	Put(ctx context.Context, key, path string) error
	// Take returns and removes the path for key. errors.ErrNotFound when there is none.
	Take(ctx context.Context, key string) (string, error)
}
