package cmd

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/raceatlas/raceatlas"
	"github.com/raceatlas/raceatlas/pkg/dedup"
)

var mergeCmd = &cobra.Command{
	Use:   "merge <keep-id> <duplicate-id>",
	Short: "Merge a duplicate event into the kept one",
	Long: `Merge two events that represent the same real-world race.

The kept event gains a redirect pointer to the duplicate, the duplicate
is soft-deleted, and editions present only on the duplicate are copied
over unless --no-copy is given.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		keepID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return exitError("invalid keep id %q", args[0])
		}
		dupID, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return exitError("invalid duplicate id %q", args[1])
		}

		engine, err := newEngine()
		if err != nil {
			return err
		}
		defer func() { _ = engine.Close() }()

		force, _ := cmd.Flags().GetBool("force")
		rename, _ := cmd.Flags().GetString("rename")
		noCopy, _ := cmd.Flags().GetBool("no-copy")

		res, err := engine.Merge(cmd.Context(), keepID, dupID, raceatlas.MergeOptions{
			Options: dedup.Options{
				Force:           force,
				Rename:          rename,
				SkipEditionCopy: noCopy,
			},
			Connection: viper.GetString("connection"),
		})
		if err != nil {
			return exitError("merging %d into %d: %w", dupID, keepID, err)
		}

		rows := [][]string{
			{"kept", strconv.FormatInt(res.KeepID, 10)},
			{"duplicate", strconv.FormatInt(res.DupID, 10)},
			{"redirected", strconv.FormatBool(res.Redirected)},
			{"deleted", strconv.FormatBool(res.Deleted)},
		}
		if res.RenamedTo != "" {
			rows = append(rows, []string{"renamed", res.RenamedFrom + " -> " + res.RenamedTo})
		}
		if len(res.CopiedEditions) > 0 {
			years := make([]string, len(res.CopiedEditions))
			for i, y := range res.CopiedEditions {
				years[i] = strconv.Itoa(y)
			}
			rows = append(rows, []string{"copied editions", strings.Join(years, ", ")})
		}
		for _, w := range res.Warnings {
			rows = append(rows, []string{"warning", w})
		}
		return render(res, []string{"FIELD", "VALUE"}, rows)
	},
}

func init() {
	mergeCmd.Flags().Bool("force", false, "overwrite an existing redirect pointer")
	mergeCmd.Flags().String("rename", "", "rename the kept event")
	mergeCmd.Flags().Bool("no-copy", false, "skip copying editions from the duplicate")
	rootCmd.AddCommand(mergeCmd)
}
