package cmd

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/raceatlas/raceatlas/pkg/proposals"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <proposal-id>",
	Short: "Show a proposal and its application history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := newEngine()
		if err != nil {
			return err
		}
		defer func() { _ = engine.Close() }()

		p, history, err := engine.Inspect(cmd.Context(), args[0])
		if err != nil {
			return exitError("inspecting proposal %s: %w", args[0], err)
		}

		payload := struct {
			Proposal     *proposals.Proposal           `json:"proposal"`
			Applications []proposals.ApplicationResult `json:"applications"`
		}{p, history}

		rows := [][]string{
			{"id", p.ID},
			{"kind", string(p.Kind)},
			{"status", string(p.Status)},
			{"source", p.Source},
			{"changed fields", strconv.Itoa(len(p.Changes))},
			{"reviewer overrides", strconv.Itoa(len(p.UserChanges))},
			{"applications", strconv.Itoa(len(history))},
		}
		if p.EventID != nil {
			rows = append(rows, []string{"event", strconv.FormatInt(*p.EventID, 10)})
		}
		if p.EditionID != nil {
			rows = append(rows, []string{"edition", strconv.FormatInt(*p.EditionID, 10)})
		}
		if p.RaceID != nil {
			rows = append(rows, []string{"race", strconv.FormatInt(*p.RaceID, 10)})
		}
		for _, app := range history {
			rows = append(rows, []string{"applied at", app.AppliedAt.Format("2006-01-02 15:04:05") + "  " + app.Summary()})
		}
		return render(payload, []string{"FIELD", "VALUE"}, rows)
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}
