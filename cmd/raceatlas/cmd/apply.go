package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/raceatlas/raceatlas"
	"github.com/raceatlas/raceatlas/pkg/blocks"
	"github.com/raceatlas/raceatlas/pkg/proposals"
)

var applyCmd = &cobra.Command{
	Use:   "apply <proposal-id>",
	Short: "Apply a reviewed proposal to the catalog",
	Long: `Apply a reviewed proposal to the catalog.

By default the whole proposal is applied, restricted to the blocks the
reviewer approved. With --block only that block is applied; parent
identifiers created by earlier calls for the same proposal are reused.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := newEngine()
		if err != nil {
			return err
		}
		defer func() { _ = engine.Close() }()

		blockList, _ := cmd.Flags().GetString("block")
		force, _ := cmd.Flags().GetBool("force")

		ordered, err := orderedBlocks(blockList)
		if err != nil {
			return err
		}
		for _, block := range ordered {
			res, err := engine.Apply(cmd.Context(), args[0], raceatlas.ApplyOptions{
				Force:      force,
				Block:      block,
				Connection: viper.GetString("connection"),
			})
			if err != nil {
				return exitError("applying proposal %s: %w", args[0], err)
			}
			if err := renderResult(res); err != nil {
				return err
			}
			if !res.Success {
				return fmt.Errorf("application failed")
			}
		}
		return nil
	},
}

// orderedBlocks parses the --block list and resorts it in dependency
// order. Blocks of one proposal may be requested across separate calls
// in any order, so each call resorts whatever it was given. An empty
// list means one whole-proposal application.
func orderedBlocks(list string) ([]blocks.Block, error) {
	if list == "" {
		return []blocks.Block{""}, nil
	}

	known := map[blocks.Block]bool{
		blocks.BlockEvent: true, blocks.BlockEdition: true,
		blocks.BlockOrganizer: true, blocks.BlockRaces: true,
	}

	var tagged []blocks.Tagged
	for _, name := range strings.Split(list, ",") {
		b := blocks.Block(strings.TrimSpace(name))
		if !known[b] {
			return nil, exitError("unknown block %q", name)
		}
		tagged = append(tagged, blocks.Tagged{Block: b})
	}

	out := make([]blocks.Block, 0, len(tagged))
	for _, entry := range blocks.Sort(tagged) {
		out = append(out, entry.Block)
	}
	return out, nil
}

func init() {
	applyCmd.Flags().String("block", "", "apply only these blocks, comma separated (event, edition, organizer, races)")
	applyCmd.Flags().Bool("force", false, "apply regardless of review status")
	rootCmd.AddCommand(applyCmd)
}

// renderResult prints one application result.
func renderResult(res *proposals.ApplicationResult) error {
	rows := [][]string{
		{"proposal", res.ProposalID},
		{"success", strconv.FormatBool(res.Success)},
		{"applied fields", strconv.Itoa(len(res.Applied))},
		{"filtered (no-op)", strconv.Itoa(len(res.Filtered))},
	}
	if res.Block != "" {
		rows = append(rows, []string{"block", string(res.Block)})
	}
	if res.Created.EventID != nil {
		rows = append(rows, []string{"created event", strconv.FormatInt(*res.Created.EventID, 10)})
	}
	if res.Created.EditionID != nil {
		rows = append(rows, []string{"created edition", strconv.FormatInt(*res.Created.EditionID, 10)})
	}
	if len(res.Created.RaceIDs) > 0 {
		rows = append(rows, []string{"created races", fmt.Sprint(res.Created.RaceIDs)})
	}
	for _, issue := range res.Errors {
		rows = append(rows, []string{"error", issue.Message})
	}
	for _, issue := range res.Warnings {
		rows = append(rows, []string{"warning", issue.Message})
	}
	return render(res, []string{"FIELD", "VALUE"}, rows)
}
