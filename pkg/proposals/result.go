package proposals

import (
	"context"
	"fmt"
	"time"

	"github.com/raceatlas/raceatlas/pkg/blocks"
)

// Severity classifies an issue attached to an application result.
type Severity string

const (
	// SeverityError marks a failure that made the application
	// unsuccessful.
	SeverityError Severity = "error"
	// SeverityWarning marks a non-fatal degradation, e.g. a failed
	// geocode enrichment or a skipped race copy.
	SeverityWarning Severity = "warning"
)

// Issue is one structured error or warning from an apply attempt.
type Issue struct {
	Field    string   `json:"field,omitempty"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// CreatedIDs records the identifiers created during an application so a
// later chunked call for a dependent block can find its parents without
// re-creating them.
type CreatedIDs struct {
	EventID   *int64  `json:"event_id,omitempty"`
	EditionID *int64  `json:"edition_id,omitempty"`
	RaceIDs   []int64 `json:"race_ids,omitempty"`
}

// ApplicationResult is the outcome of one apply call. It is created
// fresh per call and persisted as an audit record keyed by proposal id.
type ApplicationResult struct {
	ID         string `json:"id"`
	ProposalID string `json:"proposal_id"`

	// Block is set in chunked mode: the single block this call applied.
	// Empty for whole-proposal application.
	Block blocks.Block `json:"block,omitempty"`

	Success bool `json:"success"`

	// Applied holds the field values actually written.
	Applied map[string]any `json:"applied,omitempty"`

	// Filtered holds proposed fields dropped by no-op suppression.
	Filtered map[string]any `json:"filtered,omitempty"`

	Created  CreatedIDs `json:"created"`
	Errors   []Issue    `json:"errors,omitempty"`
	Warnings []Issue    `json:"warnings,omitempty"`

	AppliedAt time.Time `json:"applied_at"`
}

// AddError appends a structured error and marks the result failed.
func (r *ApplicationResult) AddError(field, message string) {
	r.Success = false
	r.Errors = append(r.Errors, Issue{Field: field, Message: message, Severity: SeverityError})
}

// Fail records err as a structured error and marks the result failed.
func (r *ApplicationResult) Fail(field string, err error) *ApplicationResult {
	r.AddError(field, err.Error())
	return r
}

// AddWarning appends a non-fatal issue; the result stays successful.
func (r *ApplicationResult) AddWarning(field, message string) {
	r.Warnings = append(r.Warnings, Issue{Field: field, Message: message, Severity: SeverityWarning})
}

// Summary returns a human-readable one-line summary.
func (r *ApplicationResult) Summary() string {
	if !r.Success {
		return fmt.Sprintf("application of proposal %s failed with %d errors", r.ProposalID, len(r.Errors))
	}
	return fmt.Sprintf("applied %d fields of proposal %s (%d warnings)", len(r.Applied), r.ProposalID, len(r.Warnings))
}

// Store is the audit/rollback persistence collaborator. Besides audit,
// it is how a chunked application recovers identifiers created by a
// prior call for the same proposal.
type Store interface {
	ProposalByID(ctx context.Context, id string) (*Proposal, error)
	ApplicationsByProposal(ctx context.Context, proposalID string) ([]ApplicationResult, error)
	RecordApplication(ctx context.Context, result *ApplicationResult) error
}
