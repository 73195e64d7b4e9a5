// Package metadata is a small key/value table in the client's local
// database. The credential store keeps tokens, the cached user and the
// theme preference here.
package metadata

import (
	"context"

	"github.com/dmitrijs2005/docdash/internal/dbx"
)

type Repository interface {
	// Get returns the value stored under key; ok is false when the key is absent.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	// Delete removes the given keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error
	List(ctx context.Context) (map[string][]byte, error)
	// WithTx returns a repository bound to the given transaction handle.
	WithTx(tx dbx.DBTX) Repository
}
