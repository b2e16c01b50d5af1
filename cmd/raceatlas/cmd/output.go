package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/goccy/go-yaml"
	"github.com/spf13/viper"
)

// render writes v to stdout in the configured output format. The table
// shape is provided by the caller as rows of cells; json and yaml
// serialize v directly.
func render(v any, header []string, rows [][]string) error {
	switch format := viper.GetString("output"); format {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)

	case "yaml":
		data, err := yaml.Marshal(v)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(data)
		return err

	case "table", "":
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		printRow(w, header)
		for _, row := range rows {
			printRow(w, row)
		}
		return w.Flush()

	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func printRow(w *tabwriter.Writer, cells []string) {
	for i, cell := range cells {
		if i > 0 {
			fmt.Fprint(w, "\t")
		}
		fmt.Fprint(w, cell)
	}
	fmt.Fprintln(w)
}
