package cmd

import (
	"fmt"
	"os"

	"github.com/hiltio/hilt/internal"
	"github.com/spf13/cobra"
)

var (
	verbose    bool
	configPath string
	cfg        *internal.Config

	version string = "dev"
	commit  string = "unknown"
	date    string = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "hilt",
	Short: "Record, convert and analyze structured interaction logs",
	Long: `An append-only structured event log for human/AI interaction traces.

Events are stored one JSON object per line (*.jsonl) with strict schema
validation, optional privacy-preserving column projection, and lossless
conversion to columnar export formats.

Quick Start:
  hilt convert app.jsonl --to csv        # Export as CSV
  hilt convert app.jsonl --to parquet    # Export as Parquet
  hilt stats app.jsonl --period daily    # Aggregate statistics
  hilt validate app.jsonl                # Check every line against the schema`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		internal.SetVerbose(verbose)
		loaded, err := internal.LoadConfig(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
		return nil
	},
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML defaults file (default: $HILT_CONFIG or ~/.config/hilt/config.yaml)")

	// Set version template to ensure --version flag works
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}
