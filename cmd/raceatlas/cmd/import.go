package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/raceatlas/raceatlas/internal/postgres"
	"github.com/raceatlas/raceatlas/pkg/blocks"
	"github.com/raceatlas/raceatlas/pkg/changes"
	"github.com/raceatlas/raceatlas/pkg/proposals"
)

var importCmd = &cobra.Command{
	Use:   "import <proposal.json>",
	Short: "Load a proposal file into the catalog database",
	Long: `Load an agent-produced proposal file into the catalog database.

An existing proposal with the same id is replaced, which lets a
corrected file be re-imported before it is applied.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return exitError("reading %s: %w", args[0], err)
		}
		p, err := decodeProposal(data)
		if err != nil {
			return exitError("parsing %s: %w", args[0], err)
		}

		dsn := viper.GetString("database_url")
		if dsn == "" {
			return exitError("no database configured: set --database-url or RACEATLAS_DATABASE_URL")
		}
		store, err := postgres.Open(cmd.Context(), dsn)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		if err := postgres.NewAuditStore(store.DB()).SaveProposal(cmd.Context(), p); err != nil {
			return exitError("saving proposal %s: %w", p.ID, err)
		}
		fmt.Printf("imported proposal %s (%s)\n", p.ID, p.Kind)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}

// proposalFile is the on-disk JSON shape. The change trees stay raw
// until decoded into their Value shapes.
type proposalFile struct {
	ID             string          `json:"id"`
	Kind           string          `json:"kind"`
	Status         string          `json:"status"`
	Source         string          `json:"source"`
	Changes        json.RawMessage `json:"changes"`
	UserChanges    json.RawMessage `json:"user_changes"`
	ApprovedBlocks map[string]bool `json:"approved_blocks"`
	EventID        *int64          `json:"event_id"`
	EditionID      *int64          `json:"edition_id"`
	RaceID         *int64          `json:"race_id"`
}

// decodeProposal parses a proposal file, decoding both change trees and
// defaulting the review status to pending.
func decodeProposal(data []byte) (*proposals.Proposal, error) {
	var f proposalFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	if f.ID == "" {
		return nil, fmt.Errorf("proposal file is missing an id")
	}
	if f.Kind == "" {
		return nil, fmt.Errorf("proposal file is missing a kind")
	}

	now := time.Now().UTC()
	p := &proposals.Proposal{
		ID:        f.ID,
		Kind:      proposals.Kind(f.Kind),
		Status:    proposals.Status(f.Status),
		Source:    f.Source,
		EventID:   f.EventID,
		EditionID: f.EditionID,
		RaceID:    f.RaceID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if p.Status == "" {
		p.Status = proposals.StatusPending
	}

	var err error
	if p.Changes, err = changes.Decode(f.Changes); err != nil {
		return nil, err
	}
	if p.UserChanges, err = changes.Decode(f.UserChanges); err != nil {
		return nil, err
	}
	if len(f.ApprovedBlocks) > 0 {
		p.ApprovedBlocks = make(map[blocks.Block]bool, len(f.ApprovedBlocks))
		for k, v := range f.ApprovedBlocks {
			p.ApprovedBlocks[blocks.Block(k)] = v
		}
	}
	return p, nil
}
