// Package apply contains the entity application orchestrator: it takes
// a reviewed proposal, three-way merges reviewer overrides with the
// agent's changes, restricts the result to approved blocks, and drives
// the catalog Repository to create and update rows in dependency order.
//
// All public Apply entry points return a structured ApplicationResult
// and never propagate errors or panics to the caller.
package apply

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/raceatlas/raceatlas/pkg/blocks"
	"github.com/raceatlas/raceatlas/pkg/catalog"
	"github.com/raceatlas/raceatlas/pkg/changes"
	"github.com/raceatlas/raceatlas/pkg/errors"
	"github.com/raceatlas/raceatlas/pkg/logging"
	"github.com/raceatlas/raceatlas/pkg/proposals"
)

// Applier orchestrates proposal application against a single catalog
// connection. Collaborators are injected explicitly; nothing is
// resolved through globals.
type Applier struct {
	repo  catalog.Repository
	store proposals.Store
	geo   catalog.Geocoder
	now   func() time.Time
}

// Option configures an Applier.
type Option func(*Applier)

// WithGeocoder enables best-effort coordinate enrichment during event
// creation. Without a geocoder, creation simply skips enrichment.
func WithGeocoder(g catalog.Geocoder) Option {
	return func(a *Applier) { a.geo = g }
}

// WithClock overrides the time source, used by tests.
func WithClock(now func() time.Time) Option {
	return func(a *Applier) { a.now = now }
}

// New creates an Applier bound to a repository and an audit store.
func New(repo catalog.Repository, store proposals.Store, opts ...Option) *Applier {
	a := &Applier{
		repo:  repo,
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Options controls a single Apply call.
type Options struct {
	// Force applies the proposal regardless of its review status.
	Force bool

	// Block switches to chunked mode: only the named block is applied,
	// and parent identifiers created by prior calls are reused.
	Block blocks.Block
}

// state carries the per-call working set through the apply paths.
type state struct {
	merged map[string]changes.Value
	chunk  blocks.Block
	reuse  proposals.CreatedIDs
}

// Apply applies a proposal and returns the structured result. The
// result is also recorded in the audit store; a failed recording
// degrades to a warning, it never fails the application itself.
func (a *Applier) Apply(ctx context.Context, p *proposals.Proposal, opts Options) *proposals.ApplicationResult {
	res := a.newResult(p, opts.Block)
	ctx = logging.WithProposalID(ctx, p.ID)

	defer func() {
		if r := recover(); r != nil {
			res.AddError("", fmt.Sprintf("unexpected failure during apply: %v", r))
		}
	}()

	if !a.precheck(p, opts, res) {
		return a.record(ctx, res)
	}

	st := &state{
		merged: changes.Merge(p.Changes, p.UserChanges),
		chunk:  opts.Block,
	}

	if opts.Block != "" {
		if err := a.chunk(ctx, p, st, res); err != nil {
			return a.record(ctx, res.Fail("", err))
		}
	} else {
		st.merged = filterApproved(st.merged, p.ApprovedBlocks)
	}

	res.Success = true
	switch p.Kind {
	case proposals.KindCreateEvent:
		a.createEvent(ctx, p, st, res)
	case proposals.KindUpdateEvent:
		a.updateEvent(ctx, p, st, res)
	case proposals.KindUpdateEdition:
		a.updateEdition(ctx, p, st, res)
	case proposals.KindUpdateRace:
		a.updateRace(ctx, p, st, res)
	default:
		res.Fail("kind", errors.NewValidationError("kind", p.Kind, "unknown proposal kind"))
	}

	return a.record(ctx, res)
}

// Rollback is declared in the public contract but intentionally returns
// a structured not-implemented failure. The compensating delete/restore
// sketch is a known gap; guessing an algorithm here would risk catalog
// corruption.
func (a *Applier) Rollback(ctx context.Context, p *proposals.Proposal) *proposals.ApplicationResult {
	res := a.newResult(p, "")
	res.Fail("", fmt.Errorf("rollback of proposal %s: %w", p.ID, errors.ErrNotImplemented))
	return a.record(ctx, res)
}

// precheck validates proposal status and required target identifiers.
// Violations are returned as structured failures, never raised.
func (a *Applier) precheck(p *proposals.Proposal, opts Options, res *proposals.ApplicationResult) bool {
	if !p.Status.Applicable() && !opts.Force {
		res.Fail("status", errors.NewValidationError("status", p.Status, "proposal must be approved or partially approved"))
		return false
	}

	switch p.Kind {
	case proposals.KindUpdateEvent:
		if p.EventID == nil {
			res.Fail("event_id", errors.NewValidationError("event_id", nil, "update proposal is missing its target event"))
			return false
		}
	case proposals.KindUpdateEdition:
		if p.EditionID == nil {
			res.Fail("edition_id", errors.NewValidationError("edition_id", nil, "update proposal is missing its target edition"))
			return false
		}
	case proposals.KindUpdateRace:
		if p.RaceID == nil {
			res.Fail("race_id", errors.NewValidationError("race_id", nil, "update proposal is missing its target race"))
			return false
		}
	}

	return true
}

func (a *Applier) newResult(p *proposals.Proposal, block blocks.Block) *proposals.ApplicationResult {
	return &proposals.ApplicationResult{
		ID:         uuid.NewString(),
		ProposalID: p.ID,
		Block:      block,
		Applied:    map[string]any{},
		Filtered:   map[string]any{},
		AppliedAt:  a.now(),
	}
}

// record persists the result to the audit store.
func (a *Applier) record(ctx context.Context, res *proposals.ApplicationResult) *proposals.ApplicationResult {
	if a.store == nil {
		return res
	}
	if err := a.store.RecordApplication(ctx, res); err != nil {
		logging.Ctx(ctx).Error().Err(err).Msg("failed to record application result")
		res.AddWarning("", "application result could not be recorded: "+err.Error())
	}
	return res
}
