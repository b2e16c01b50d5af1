package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/raceatlas/raceatlas/pkg/blocks"
	"github.com/raceatlas/raceatlas/pkg/changes"
	"github.com/raceatlas/raceatlas/pkg/errors"
	"github.com/raceatlas/raceatlas/pkg/proposals"
)

// AuditStore implements proposals.Store on the same database as the
// catalog rows.
type AuditStore struct {
	db *sql.DB
}

// NewAuditStore creates an audit store on an open connection pool.
func NewAuditStore(db *sql.DB) *AuditStore {
	return &AuditStore{db: db}
}

// ProposalByID loads one proposal with its change trees decoded.
func (s *AuditStore) ProposalByID(ctx context.Context, id string) (*proposals.Proposal, error) {
	const query = `
		SELECT id, kind, status, source, changes, user_changes, approved_blocks,
		       event_id, edition_id, race_id, created_at, updated_at
		FROM proposals WHERE id = $1`

	var (
		p                               proposals.Proposal
		kind, status                    string
		changesJSON, userJSON, approved []byte
		eventID, editionID, raceID      sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID, &kind, &status, &p.Source, &changesJSON, &userJSON, &approved,
		&eventID, &editionID, &raceID, &p.CreatedAt, &p.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("proposal", id)
	}
	if err != nil {
		return nil, fmt.Errorf("select proposal: %w", err)
	}

	p.Kind = proposals.Kind(kind)
	p.Status = proposals.Status(status)

	if p.Changes, err = changes.Decode(changesJSON); err != nil {
		return nil, fmt.Errorf("proposal %s: %w", id, err)
	}
	if p.UserChanges, err = changes.Decode(userJSON); err != nil {
		return nil, fmt.Errorf("proposal %s: %w", id, err)
	}

	var approvedBlocks map[string]bool
	if len(approved) > 0 {
		if err := json.Unmarshal(approved, &approvedBlocks); err != nil {
			return nil, fmt.Errorf("proposal %s approved blocks: %w", id, err)
		}
	}
	if len(approvedBlocks) > 0 {
		p.ApprovedBlocks = make(map[blocks.Block]bool, len(approvedBlocks))
		for k, v := range approvedBlocks {
			p.ApprovedBlocks[blocks.Block(k)] = v
		}
	}

	if eventID.Valid {
		p.EventID = &eventID.Int64
	}
	if editionID.Valid {
		p.EditionID = &editionID.Int64
	}
	if raceID.Valid {
		p.RaceID = &raceID.Int64
	}
	return &p, nil
}

// SaveProposal inserts a proposal, or replaces its content when the id
// already exists so a corrected file can be re-imported before it is
// applied. Both change trees are encoded to their persisted JSON shape.
func (s *AuditStore) SaveProposal(ctx context.Context, p *proposals.Proposal) error {
	changesJSON, err := changes.Encode(p.Changes)
	if err != nil {
		return fmt.Errorf("encode changes: %w", err)
	}
	userJSON, err := changes.Encode(p.UserChanges)
	if err != nil {
		return fmt.Errorf("encode user changes: %w", err)
	}
	approved := []byte(`{}`)
	if len(p.ApprovedBlocks) > 0 {
		if approved, err = json.Marshal(p.ApprovedBlocks); err != nil {
			return fmt.Errorf("encode approved blocks: %w", err)
		}
	}

	const query = `
		INSERT INTO proposals
			(id, kind, status, source, changes, user_changes, approved_blocks,
			 event_id, edition_id, race_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			kind            = EXCLUDED.kind,
			status          = EXCLUDED.status,
			source          = EXCLUDED.source,
			changes         = EXCLUDED.changes,
			user_changes    = EXCLUDED.user_changes,
			approved_blocks = EXCLUDED.approved_blocks,
			event_id        = EXCLUDED.event_id,
			edition_id      = EXCLUDED.edition_id,
			race_id         = EXCLUDED.race_id,
			updated_at      = NOW()`

	_, err = s.db.ExecContext(ctx, query,
		p.ID, string(p.Kind), string(p.Status), p.Source, changesJSON, userJSON, approved,
		p.EventID, p.EditionID, p.RaceID, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert proposal: %w", err)
	}
	return nil
}

// ApplicationsByProposal returns the apply history, newest first.
func (s *AuditStore) ApplicationsByProposal(ctx context.Context, proposalID string) ([]proposals.ApplicationResult, error) {
	const query = `
		SELECT id, proposal_id, block, success, applied, filtered, created_ids, errors, warnings, applied_at
		FROM proposal_applications
		WHERE proposal_id = $1
		ORDER BY applied_at DESC`

	rows, err := s.db.QueryContext(ctx, query, proposalID)
	if err != nil {
		return nil, fmt.Errorf("select applications: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []proposals.ApplicationResult
	for rows.Next() {
		var (
			app                                              proposals.ApplicationResult
			block                                            string
			applied, filtered, createdIDs, errsJSON, warnings []byte
		)
		err := rows.Scan(
			&app.ID, &app.ProposalID, &block, &app.Success,
			&applied, &filtered, &createdIDs, &errsJSON, &warnings, &app.AppliedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan application: %w", err)
		}
		app.Block = blocks.Block(block)

		for _, pair := range []struct {
			data []byte
			dst  any
		}{
			{applied, &app.Applied},
			{filtered, &app.Filtered},
			{createdIDs, &app.Created},
			{errsJSON, &app.Errors},
			{warnings, &app.Warnings},
		} {
			if len(pair.data) == 0 {
				continue
			}
			if err := json.Unmarshal(pair.data, pair.dst); err != nil {
				return nil, fmt.Errorf("application %s: %w", app.ID, err)
			}
		}
		out = append(out, app)
	}
	return out, rows.Err()
}

// RecordApplication persists one apply attempt.
func (s *AuditStore) RecordApplication(ctx context.Context, result *proposals.ApplicationResult) error {
	applied, err := json.Marshal(result.Applied)
	if err != nil {
		return fmt.Errorf("encode applied fields: %w", err)
	}
	filtered, err := json.Marshal(result.Filtered)
	if err != nil {
		return fmt.Errorf("encode filtered fields: %w", err)
	}
	created, err := json.Marshal(result.Created)
	if err != nil {
		return fmt.Errorf("encode created ids: %w", err)
	}
	errs, err := json.Marshal(result.Errors)
	if err != nil {
		return fmt.Errorf("encode errors: %w", err)
	}
	warnings, err := json.Marshal(result.Warnings)
	if err != nil {
		return fmt.Errorf("encode warnings: %w", err)
	}

	const query = `
		INSERT INTO proposal_applications
			(id, proposal_id, block, success, applied, filtered, created_ids, errors, warnings, applied_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err = s.db.ExecContext(ctx, query,
		result.ID, result.ProposalID, string(result.Block), result.Success,
		applied, filtered, created, errs, warnings, result.AppliedAt,
	)
	if err != nil {
		return fmt.Errorf("insert application: %w", err)
	}
	return nil
}
