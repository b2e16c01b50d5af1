package apply

import (
	"context"

	"github.com/raceatlas/raceatlas/pkg/blocks"
	"github.com/raceatlas/raceatlas/pkg/changes"
	"github.com/raceatlas/raceatlas/pkg/errors"
	"github.com/raceatlas/raceatlas/pkg/proposals"
)

// filterApproved retains only fields whose block the reviewer approved.
// An empty approval map means no explicit decision was recorded and is
// treated as approval of everything, for compatibility with proposals
// reviewed before per-block approval existed.
func filterApproved(merged map[string]changes.Value, approved map[blocks.Block]bool) map[string]changes.Value {
	if len(approved) == 0 {
		return merged
	}

	out := make(map[string]changes.Value, len(merged))
	for field, value := range merged {
		if approved[blocks.Classify(field)] {
			out[field] = value
		}
	}
	return out
}

// filterBlock retains only the fields belonging to one block.
func filterBlock(merged map[string]changes.Value, block blocks.Block) map[string]changes.Value {
	out := make(map[string]changes.Value, len(merged))
	for field, value := range merged {
		if blocks.Classify(field) == block {
			out[field] = value
		}
	}
	return out
}

// chunk prepares a chunked (single-block) application: it narrows the
// merged change set to the requested block and recovers parent
// identifiers created by prior calls for the same proposal. A missing
// parent block fails with a dependency error naming it.
func (a *Applier) chunk(ctx context.Context, p *proposals.Proposal, st *state, res *proposals.ApplicationResult) error {
	st.merged = filterBlock(st.merged, st.chunk)

	created, err := a.createdSoFar(ctx, p.ID)
	if err != nil {
		return errors.WrapApplication("read", "application history", p.ID, err)
	}
	st.reuse = created

	// Creation proposals depend on previously created parents; update
	// proposals carry their targets explicitly.
	if p.Kind != proposals.KindCreateEvent {
		return nil
	}

	for _, dep := range blocks.DependsOn(st.chunk) {
		if !a.parentSatisfied(dep, p, created) {
			return errors.NewDependencyError(string(st.chunk), string(dep))
		}
	}

	res.Created = created
	return nil
}

// parentSatisfied reports whether the identifier a dependency block
// would have created is known, either from the proposal targets or a
// prior application.
func (a *Applier) parentSatisfied(dep blocks.Block, p *proposals.Proposal, created proposals.CreatedIDs) bool {
	switch dep {
	case blocks.BlockEvent:
		return p.EventID != nil || created.EventID != nil
	case blocks.BlockEdition:
		return p.EditionID != nil || created.EditionID != nil
	default:
		return true
	}
}

// createdSoFar recovers the identifiers created by prior applications
// of the proposal, newest first, so a dependent block finds its parent
// without re-deriving it.
func (a *Applier) createdSoFar(ctx context.Context, proposalID string) (proposals.CreatedIDs, error) {
	if a.store == nil {
		return proposals.CreatedIDs{}, nil
	}

	history, err := a.store.ApplicationsByProposal(ctx, proposalID)
	if err != nil {
		return proposals.CreatedIDs{}, err
	}

	var out proposals.CreatedIDs
	for _, app := range history {
		if !app.Success {
			continue
		}
		if out.EventID == nil && app.Created.EventID != nil {
			out.EventID = app.Created.EventID
		}
		if out.EditionID == nil && app.Created.EditionID != nil {
			out.EditionID = app.Created.EditionID
		}
		out.RaceIDs = append(out.RaceIDs, app.Created.RaceIDs...)
	}
	return out, nil
}
