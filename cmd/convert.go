package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/hiltio/hilt/internal"
	"github.com/hiltio/hilt/internal/export"
	"github.com/spf13/cobra"
)

var (
	convertTo          string
	convertOutput      string
	convertColumns     string
	convertCSVFormat   string
	convertCompression string
)

var convertSuccessStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("42")).
	Bold(true)

// convertCmd represents the convert command
var convertCmd = &cobra.Command{
	Use:   "convert <input>",
	Short: "Convert a log to CSV or Parquet",
	Long: `Convert a JSONL event log to a columnar export format.

CSV supports three formats: readable (small human-oriented column set),
detailed (richer fixed columns including retrieval metadata), and flat
(full recursive flattening into dot-separated columns).

Parquet writes a fixed 9-column schema in batched row-groups with a
selectable compression codec.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := applyConfigDefaults(export.Options{
			CSVFormat:   convertCSVFormat,
			Columns:     splitColumns(convertColumns),
			Compression: convertCompression,
		}, cfg)

		input := args[0]
		result, err := runConvert(input, convertTo, convertOutput, opts)
		if err != nil {
			return fmt.Errorf("conversion failed: %w", err)
		}

		check := convertSuccessStyle.Render("✓")
		fmt.Printf("%s Successfully converted to %s (%d events)\n", check, strings.ToUpper(convertTo), result.Events)
		fmt.Printf("  Output: %s (%s)\n", result.Output, formatSize(result.Bytes))
		return nil
	},
}

type convertResult struct {
	Events int
	Output string
	Bytes  int64
}

// applyConfigDefaults fills options left unset by flags from the loaded
// config. Flags given on the command line always win.
func applyConfigDefaults(opts export.Options, cfg *internal.Config) export.Options {
	if cfg == nil {
		return opts
	}
	if opts.CSVFormat == "" {
		opts.CSVFormat = cfg.CSVFormat
	}
	if opts.Compression == "" {
		opts.Compression = cfg.Compression
	}
	// columns are only meaningful in flat mode; a configured list must
	// not break readable or detailed conversions
	if len(opts.Columns) == 0 && opts.CSVFormat == export.CSVFlat {
		opts.Columns = cfg.Columns
	}
	return opts
}

// runConvert resolves the destination path and runs the conversion.
func runConvert(input, target, output string, opts export.Options) (*convertResult, error) {
	converter, err := export.NewConverter(target, opts)
	if err != nil {
		return nil, err
	}
	if output == "" {
		output = defaultOutputPath(input, converter.Extension())
	}
	internal.LogDebug("converting %s to %s (%s)", input, target, output)

	count, err := converter.Convert(input, output)
	if err != nil {
		return nil, err
	}

	result := &convertResult{Events: count, Output: output}
	if info, err := os.Stat(output); err == nil {
		result.Bytes = info.Size()
	}
	return result, nil
}

// defaultOutputPath swaps the input extension for the target's, honoring
// the configured output directory when one is set.
func defaultOutputPath(input, extension string) string {
	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input)) + extension
	dir := filepath.Dir(input)
	if cfg != nil && cfg.OutputDir != "" {
		dir = cfg.OutputDir
	}
	return filepath.Join(dir, base)
}

func splitColumns(columns string) []string {
	if columns == "" {
		return nil
	}
	var out []string
	for _, column := range strings.Split(columns, ",") {
		if trimmed := strings.TrimSpace(column); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func formatSize(size int64) string {
	if size == 0 {
		return "0 B"
	}
	units := []string{"B", "KB", "MB", "GB", "TB"}
	value := float64(size)
	index := 0
	for value >= 1024 && index < len(units)-1 {
		value /= 1024
		index++
	}
	if index == 0 {
		return fmt.Sprintf("%d %s", size, units[0])
	}
	return fmt.Sprintf("%.1f %s", value, units[index])
}

func init() {
	rootCmd.AddCommand(convertCmd)
	convertCmd.Flags().StringVar(&convertTo, "to", "", "Target format: csv or parquet (required)")
	convertCmd.Flags().StringVar(&convertOutput, "output", "", "Output path (default: input with the target extension)")
	convertCmd.Flags().StringVar(&convertColumns, "columns", "", "Comma-separated flattened column names (flat CSV only)")
	convertCmd.Flags().StringVar(&convertCSVFormat, "csv-format", "", "CSV format: readable, detailed or flat (default readable)")
	convertCmd.Flags().StringVar(&convertCompression, "compression", "", "Parquet compression: snappy, gzip or none (default snappy)")
	if err := convertCmd.MarkFlagRequired("to"); err != nil {
		internal.LogError("failed to mark flag required: %v", err)
	}
}
