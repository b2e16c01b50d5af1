// Package proposals defines the proposal model produced by scraping and
// matching agents, the application result recorded after every apply
// attempt, and the audit store interface used to persist both.
package proposals

import (
	"time"

	"github.com/raceatlas/raceatlas/pkg/blocks"
	"github.com/raceatlas/raceatlas/pkg/changes"
)

// Kind identifies which application path a proposal takes.
type Kind string

const (
	// KindCreateEvent creates a new event with its editions, organizer
	// and races in one transactional apply.
	KindCreateEvent Kind = "create_event"
	// KindUpdateEvent updates fields of an existing event row.
	KindUpdateEvent Kind = "update_event"
	// KindUpdateEdition updates an edition together with its organizer
	// block and race collection.
	KindUpdateEdition Kind = "update_edition"
	// KindUpdateRace updates a single race row.
	KindUpdateRace Kind = "update_race"
)

// Status is the review lifecycle state of a proposal.
type Status string

const (
	// StatusPending awaits review.
	StatusPending Status = "pending"
	// StatusApproved is fully approved for application.
	StatusApproved Status = "approved"
	// StatusPartiallyApproved has at least one approved block.
	StatusPartiallyApproved Status = "partially_approved"
	// StatusRejected was declined by the reviewer.
	StatusRejected Status = "rejected"
	// StatusArchived is retained for audit only.
	StatusArchived Status = "archived"
)

// Applicable reports whether the status permits application.
func (s Status) Applicable() bool {
	return s == StatusApproved || s == StatusPartiallyApproved
}

// Proposal is a structured diff against the canonical catalog, authored
// by an agent and optionally amended by a human reviewer.
type Proposal struct {
	ID     string `json:"id"`
	Kind   Kind   `json:"kind"`
	Status Status `json:"status"`

	// Source names the agent that produced the proposal.
	Source string `json:"source,omitempty"`

	// Changes is the agent-authored diff tree. Diff entries in here
	// never have their Old side mutated by any engine step.
	Changes map[string]changes.Value `json:"changes"`

	// UserChanges are reviewer overrides, same shape, partial.
	UserChanges map[string]changes.Value `json:"user_changes,omitempty"`

	// ApprovedBlocks records the reviewer's per-block decisions. An
	// empty map means no explicit decision was made and every block is
	// treated as approved.
	ApprovedBlocks map[blocks.Block]bool `json:"approved_blocks,omitempty"`

	// Target identifiers; which ones are required depends on Kind.
	EventID   *int64 `json:"event_id,omitempty"`
	EditionID *int64 `json:"edition_id,omitempty"`
	RaceID    *int64 `json:"race_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
