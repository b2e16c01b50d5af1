package postgres

import (
	"context"
	"sync"

	"github.com/raceatlas/raceatlas/pkg/catalog"
	"github.com/raceatlas/raceatlas/pkg/errors"
)

// Resolver maps named connection ids to DSNs and opens each connection
// at most once. The empty id resolves to the default connection.
type Resolver struct {
	defaultDSN string
	named      map[string]string

	mu     sync.Mutex
	opened map[string]*Store
}

// NewResolver creates a Resolver with a default DSN and optional named
// alternates (e.g. a staging catalog).
func NewResolver(defaultDSN string, named map[string]string) *Resolver {
	return &Resolver{
		defaultDSN: defaultDSN,
		named:      named,
		opened:     map[string]*Store{},
	}
}

// Resolve returns the Repository for a connection id, opening it on
// first use.
func (r *Resolver) Resolve(ctx context.Context, connID string) (catalog.Repository, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if store, ok := r.opened[connID]; ok {
		return store, nil
	}

	dsn := r.defaultDSN
	if connID != "" {
		named, ok := r.named[connID]
		if !ok {
			return nil, errors.NewNotFoundError("connection", connID)
		}
		dsn = named
	}
	if dsn == "" {
		return nil, errors.NewConfigError("postgres", "no database configured for connection "+connID, nil)
	}

	store, err := Open(ctx, dsn)
	if err != nil {
		return nil, err
	}
	r.opened[connID] = store
	return store, nil
}

// Default opens (or reuses) the default connection and returns the
// concrete store, for callers that need the underlying pool.
func (r *Resolver) Default(ctx context.Context) (*Store, error) {
	repo, err := r.Resolve(ctx, "")
	if err != nil {
		return nil, err
	}
	return repo.(*Store), nil
}

// Close closes every opened connection, returning the first error.
func (r *Resolver) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var first error
	for id, store := range r.opened {
		if err := store.Close(); err != nil && first == nil {
			first = err
		}
		delete(r.opened, id)
	}
	return first
}
