// Package cmd implements the raceatlas CLI commands.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/raceatlas/raceatlas"
	"github.com/raceatlas/raceatlas/pkg/logging"
)

var rootCmd = &cobra.Command{
	Use:   "raceatlas",
	Short: "Proposal reconciliation engine for the race event catalog",
	Long: `raceatlas applies reviewed change proposals to the race event
catalog, merges duplicate events, and inspects proposal history.

Configuration is read from flags, RACEATLAS_* environment variables and
an optional .env file, in that order of precedence.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		return setup(cmd)
	},
}

// Execute runs the CLI.
func Execute(version, commit string) error {
	rootCmd.Version = fmt.Sprintf("%s (%s)", version, commit)
	if err := rootCmd.Execute(); err != nil {
		logging.Error().Err(err).Msg("command failed")
		return err
	}
	return nil
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("database-url", "", "PostgreSQL connection string")
	flags.StringToString("databases", nil, "named alternate catalogs as name=dsn pairs")
	flags.String("connection", "", "named catalog connection to target (default: the primary catalog)")
	flags.String("output", "table", "output format: table, json or yaml")
	flags.String("log-level", "info", "log level: trace, debug, info, warn or error")
	flags.Bool("geocode", false, "enable coordinate enrichment via Nominatim")

	_ = viper.BindPFlag("database_url", flags.Lookup("database-url"))
	_ = viper.BindPFlag("databases", flags.Lookup("databases"))
	_ = viper.BindPFlag("connection", flags.Lookup("connection"))
	_ = viper.BindPFlag("output", flags.Lookup("output"))
	_ = viper.BindPFlag("log_level", flags.Lookup("log-level"))
	_ = viper.BindPFlag("geocode", flags.Lookup("geocode"))
}

// setup wires env config and logging before any command runs.
func setup(_ *cobra.Command) error {
	// A missing .env file is fine; explicit env vars still apply.
	_ = godotenv.Load()

	viper.SetEnvPrefix("RACEATLAS")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	level, err := zerolog.ParseLevel(viper.GetString("log_level"))
	if err != nil {
		return fmt.Errorf("invalid log level %q", viper.GetString("log_level"))
	}
	logging.SetDefault(logging.NewConsole().Level(level))
	return nil
}

// newEngine builds an Engine from the resolved configuration.
func newEngine() (raceatlas.Engine, error) {
	dsn := viper.GetString("database_url")
	if dsn == "" {
		return nil, fmt.Errorf("no database configured: set --database-url or RACEATLAS_DATABASE_URL")
	}
	return raceatlas.New(
		raceatlas.WithDatabaseURL(dsn),
		raceatlas.WithNamedDatabases(viper.GetStringMapString("databases")),
		raceatlas.WithGeocoding(viper.GetBool("geocode")),
	)
}

func exitError(format string, args ...any) error {
	err := fmt.Errorf(format, args...)
	fmt.Fprintln(os.Stderr, "Error:", err)
	return err
}
