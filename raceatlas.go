// Package raceatlas is the proposal reconciliation engine for the race
// event catalog: it merges agent-proposed changes with reviewer
// overrides, applies the result to the catalog database, and collapses
// duplicate events.
package raceatlas

import (
	"context"
	"fmt"

	"github.com/raceatlas/raceatlas/internal/geocode"
	"github.com/raceatlas/raceatlas/internal/postgres"
	"github.com/raceatlas/raceatlas/pkg/apply"
	"github.com/raceatlas/raceatlas/pkg/blocks"
	"github.com/raceatlas/raceatlas/pkg/catalog"
	"github.com/raceatlas/raceatlas/pkg/dedup"
	"github.com/raceatlas/raceatlas/pkg/errors"
	"github.com/raceatlas/raceatlas/pkg/proposals"
)

// Engine is the public surface of the reconciliation engine.
type Engine interface {
	// Apply applies a reviewed proposal. The returned result is always
	// non-nil; failures are structured inside it, not returned as
	// errors. The error covers lookup problems only.
	Apply(ctx context.Context, proposalID string, opts ApplyOptions) (*proposals.ApplicationResult, error)

	// Merge collapses the duplicate event into the kept one.
	Merge(ctx context.Context, keepID, dupID int64, opts MergeOptions) (*dedup.Result, error)

	// Rollback reverts a previously applied proposal. Not implemented
	// yet; it returns a structured failure saying so.
	Rollback(ctx context.Context, proposalID string) (*proposals.ApplicationResult, error)

	// Inspect returns a proposal and its application history.
	Inspect(ctx context.Context, proposalID string) (*proposals.Proposal, []proposals.ApplicationResult, error)

	// Close releases held database connections.
	Close() error
}

// ApplyOptions controls one Apply call.
type ApplyOptions struct {
	// Force applies regardless of review status.
	Force bool

	// Block switches to chunked mode, applying only the named block.
	Block blocks.Block

	// Connection names the catalog to apply against. Empty targets the
	// default connection.
	Connection string
}

// MergeOptions controls one Merge call.
type MergeOptions struct {
	dedup.Options

	// Connection names the catalog to merge in. Empty targets the
	// default connection.
	Connection string
}

// engine is the internal implementation of the Engine interface.
type engine struct {
	config   *config
	resolver catalog.Resolver
	store    proposals.Store
	geocoder catalog.Geocoder

	owned *postgres.Resolver // set when the engine opened the connections itself
}

// New creates an Engine with the given options. Without an injected
// repository or resolver, a database URL is required and the default
// postgres store is opened (and its schema applied) immediately.
func New(opts ...Option) (Engine, error) {
	cfg := newConfig()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("applying options: %w", err)
		}
	}

	e := &engine{
		config: cfg,
		store:  cfg.store,
	}

	switch {
	case cfg.repo != nil:
		e.resolver = staticResolver{repo: cfg.repo}
	case cfg.resolver != nil:
		e.resolver = cfg.resolver
	case cfg.databaseURL != "":
		resolver := postgres.NewResolver(cfg.databaseURL, cfg.namedDSNs)
		store, err := resolver.Default(context.Background())
		if err != nil {
			return nil, err
		}
		e.resolver = resolver
		e.owned = resolver
		if e.store == nil {
			e.store = postgres.NewAuditStore(store.DB())
		}
	default:
		return nil, errors.NewConfigError("engine", "a repository, a resolver or a database url is required", nil)
	}

	e.geocoder = cfg.geocoder
	if e.geocoder == nil && cfg.geocoding {
		e.geocoder = geocode.New()
	}

	return e, nil
}

func (e *engine) Apply(ctx context.Context, proposalID string, opts ApplyOptions) (*proposals.ApplicationResult, error) {
	applier, err := e.applier(ctx, opts.Connection)
	if err != nil {
		return nil, err
	}
	p, err := e.proposal(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	return applier.Apply(ctx, p, apply.Options{Force: opts.Force, Block: opts.Block}), nil
}

func (e *engine) Merge(ctx context.Context, keepID, dupID int64, opts MergeOptions) (*dedup.Result, error) {
	repo, err := e.resolver.Resolve(ctx, opts.Connection)
	if err != nil {
		return nil, err
	}
	return dedup.New(repo).Merge(ctx, keepID, dupID, opts.Options)
}

func (e *engine) Rollback(ctx context.Context, proposalID string) (*proposals.ApplicationResult, error) {
	applier, err := e.applier(ctx, "")
	if err != nil {
		return nil, err
	}
	p, err := e.proposal(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	return applier.Rollback(ctx, p), nil
}

func (e *engine) Inspect(ctx context.Context, proposalID string) (*proposals.Proposal, []proposals.ApplicationResult, error) {
	p, err := e.proposal(ctx, proposalID)
	if err != nil {
		return nil, nil, err
	}
	history, err := e.store.ApplicationsByProposal(ctx, proposalID)
	if err != nil {
		return nil, nil, err
	}
	return p, history, nil
}

func (e *engine) Close() error {
	if e.owned == nil {
		return nil
	}
	return e.owned.Close()
}

// applier binds an orchestrator to the resolved catalog connection.
func (e *engine) applier(ctx context.Context, connID string) (*apply.Applier, error) {
	repo, err := e.resolver.Resolve(ctx, connID)
	if err != nil {
		return nil, err
	}
	opts := []apply.Option{}
	if e.geocoder != nil {
		opts = append(opts, apply.WithGeocoder(e.geocoder))
	}
	return apply.New(repo, e.store, opts...), nil
}

func (e *engine) proposal(ctx context.Context, proposalID string) (*proposals.Proposal, error) {
	if e.store == nil {
		return nil, errors.NewConfigError("engine", "no proposal store configured", nil)
	}
	return e.store.ProposalByID(ctx, proposalID)
}

// staticResolver serves a single injected repository. Only the default
// connection id resolves; named connections need a real resolver.
type staticResolver struct {
	repo catalog.Repository
}

func (s staticResolver) Resolve(_ context.Context, connID string) (catalog.Repository, error) {
	if connID != "" {
		return nil, errors.NewNotFoundError("connection", connID)
	}
	return s.repo, nil
}
