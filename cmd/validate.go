package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/hiltio/hilt/internal"
	"github.com/spf13/cobra"
)

var validateMaxErrors int

var (
	validStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	invalidStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	cutoffStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true)
)

// validateCmd represents the validate command
var validateCmd = &cobra.Command{
	Use:   "validate <input>",
	Short: "Validate every line of a log against the schema",
	Long: `Check a JSONL event log line by line. Unlike conversion, validation
counts invalid lines instead of aborting at the first one, optionally
bounded by --max-errors. The exit code is 0 only when every line is valid.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("Validating: %s\n", args[0])
		report, err := runValidate(os.Stdout, args[0], verbose, validateMaxErrors)
		if err != nil {
			return err
		}
		printSummary(os.Stdout, report)
		if report.Invalid > 0 {
			os.Exit(1)
		}
		return nil
	},
}

type validateReport struct {
	Total   int
	Valid   int
	Invalid int
	Cutoff  bool
}

// runValidate scans the whole file, reporting each invalid line, and keeps
// going past failures. maxErrors caps how many errors are reported before
// the scan stops; zero means no cap.
func runValidate(w io.Writer, path string, verbose bool, maxErrors int) (*validateReport, error) {
	session, err := internal.NewSession(path, internal.WithMode(internal.ModeRead))
	if err != nil {
		return nil, err
	}
	if err := session.Open(); err != nil {
		return nil, err
	}
	defer session.Close()

	reader, err := session.Read()
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	report := &validateReport{}
	for {
		_, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		var lineErr *internal.LineError
		if errors.As(err, &lineErr) {
			report.Total++
			report.Invalid++
			fmt.Fprintf(w, "%s Line %d: %s - %v\n",
				invalidStyle.Render("✗"), lineErr.Line, invalidStyle.Render("Invalid"), lineErr.Err)
			if maxErrors > 0 && report.Invalid >= maxErrors {
				report.Cutoff = true
				internal.LogWarn("validation stopped early after %d errors", maxErrors)
				fmt.Fprintf(w, "%s Reached max errors (%d). Stopping.\n",
					cutoffStyle.Render("Warning"), maxErrors)
				break
			}
			continue
		}
		if err != nil {
			return nil, err
		}
		report.Total++
		report.Valid++
		if verbose {
			fmt.Fprintf(w, "%s Line %d: %s\n",
				validStyle.Render("✓"), reader.Line(), validStyle.Render("Valid"))
		}
	}
	return report, nil
}

func printSummary(w io.Writer, report *validateReport) {
	fmt.Fprintln(w, "Summary:")
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "  Total events\t%d\n", report.Total)
	fmt.Fprintf(tw, "  Valid\t%s\n", validStyle.Render(fmt.Sprintf("%d (%s)", report.Valid, asPercentage(report.Valid, report.Total))))
	fmt.Fprintf(tw, "  Invalid\t%s\n", invalidStyle.Render(fmt.Sprintf("%d (%s)", report.Invalid, asPercentage(report.Invalid, report.Total))))
	tw.Flush()
}

func asPercentage(count, total int) string {
	if total == 0 {
		return "0%"
	}
	pct := float64(count) / float64(total) * 100
	if pct == float64(int(pct)) {
		return fmt.Sprintf("%d%%", int(pct))
	}
	return fmt.Sprintf("%.1f%%", pct)
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().IntVar(&validateMaxErrors, "max-errors", 0, "Stop after reporting N errors (0 = no limit)")
}
