package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/hiltio/hilt/internal"
	"github.com/spf13/cobra"
)

var (
	statsJSON   bool
	statsPeriod string
)

var (
	statsTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62"))

	statsPanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1)

	statsLabelStyle = lipgloss.NewStyle().
			Bold(true)

	statsMutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))
)

// statsCmd represents the stats command
var statsCmd = &cobra.Command{
	Use:   "stats <input>",
	Short: "Display statistics for a log file",
	Long: `Aggregate a JSONL event log in a single pass: event and session counts,
per-action and per-actor frequencies, token and cost totals, latency
distribution, and an optional daily/weekly/monthly breakdown.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		period, err := internal.ParsePeriod(statsPeriod)
		if err != nil {
			return err
		}

		summary, err := runStats(args[0], period)
		if err != nil {
			return fmt.Errorf("failed to read events: %w", err)
		}

		if statsJSON {
			encoded, err := statsPayload(args[0], summary)
			if err != nil {
				return err
			}
			fmt.Println(string(encoded))
			return nil
		}

		if summary.TotalEvents == 0 {
			fmt.Printf("No events found in %s.\n", args[0])
			return nil
		}
		renderStats(os.Stdout, args[0], summary, period)
		return nil
	},
}

// statsPayload renders the JSON output. An empty log reports only the
// file and its zero count, not a fully zeroed summary.
func statsPayload(path string, summary *internal.Summary) ([]byte, error) {
	if summary.TotalEvents == 0 {
		return json.MarshalIndent(struct {
			File        string `json:"file"`
			TotalEvents int    `json:"total_events"`
		}{File: path, TotalEvents: 0}, "", "  ")
	}
	return json.MarshalIndent(struct {
		File string `json:"file"`
		*internal.Summary
	}{File: path, Summary: summary}, "", "  ")
}

// runStats streams the log through the aggregator.
func runStats(path string, period internal.Period) (*internal.Summary, error) {
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

	agg := internal.NewAggregator(period)
	for {
		event, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if err := agg.Add(event); err != nil {
			return nil, err
		}
	}
	return agg.Result(), nil
}

func renderStats(w io.Writer, path string, summary *internal.Summary, period internal.Period) {
	fmt.Fprintln(w, statsTitleStyle.Render(fmt.Sprintf("📊 Statistics: %s", path)))
	fmt.Fprintln(w)

	overview := &strings.Builder{}
	tw := tabwriter.NewWriter(overview, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\t%d\n", statsLabelStyle.Render("Total events"), summary.TotalEvents)
	fmt.Fprintf(tw, "%s\t%d\n", statsLabelStyle.Render("Unique sessions"), summary.UniqueSessions)
	fmt.Fprintf(tw, "%s\t%s\n", statsLabelStyle.Render("Timeframe"), formatTimeframe(summary.Timeframe))
	tw.Flush()
	fmt.Fprintln(w, statsPanelStyle.Render("Overview\n"+strings.TrimRight(overview.String(), "\n")))

	renderCounts(w, "Actions", summary.Actions, summary.TotalEvents)
	renderCounts(w, "Actors", summary.Actors, summary.TotalEvents)

	if summary.Metrics != nil {
		renderMetrics(w, summary.Metrics)
	} else {
		fmt.Fprintln(w, statsMutedStyle.Render("No metrics data available."))
	}

	if period != internal.PeriodNone && len(summary.Periods) > 0 {
		renderPeriods(w, period, summary.Periods)
	}
}

func renderCounts(w io.Writer, title string, counts map[string]internal.Count, total int) {
	if len(counts) == 0 {
		return
	}
	labels := make([]string, 0, len(counts))
	for label := range counts {
		labels = append(labels, label)
	}
	// highest count first, ties alphabetical
	sort.Slice(labels, func(i, j int) bool {
		if counts[labels[i]].Count != counts[labels[j]].Count {
			return counts[labels[i]].Count > counts[labels[j]].Count
		}
		return labels[i] < labels[j]
	})

	body := &strings.Builder{}
	tw := tabwriter.NewWriter(body, 0, 4, 2, ' ', 0)
	for _, label := range labels {
		entry := counts[label]
		fmt.Fprintf(tw, "%s\t%d (%.1f%%)\n", label, entry.Count, entry.Percentage)
	}
	tw.Flush()
	fmt.Fprintln(w, statsPanelStyle.Render(title+"\n"+strings.TrimRight(body.String(), "\n")))
}

func renderMetrics(w io.Writer, metrics *internal.MetricsSummary) {
	body := &strings.Builder{}
	tw := tabwriter.NewWriter(body, 0, 4, 2, ' ', 0)
	if metrics.TotalTokens > 0 {
		fmt.Fprintf(tw, "%s\t%d\n", statsLabelStyle.Render("Total tokens"), metrics.TotalTokens)
	}
	if metrics.TotalCostUSD > 0 {
		fmt.Fprintf(tw, "%s\t$%.2f\n", statsLabelStyle.Render("Total cost"), metrics.TotalCostUSD)
	}
	if metrics.LatencySamples > 0 {
		fmt.Fprintf(tw, "%s\t%.2f ms\n", statsLabelStyle.Render("Avg latency"), metrics.AverageLatencyMS)
	}
	if metrics.P50LatencyMS != nil {
		fmt.Fprintf(tw, "%s\t%d ms\n", statsLabelStyle.Render("P50 latency"), *metrics.P50LatencyMS)
		fmt.Fprintf(tw, "%s\t%d ms\n", statsLabelStyle.Render("P95 latency"), *metrics.P95LatencyMS)
		fmt.Fprintf(tw, "%s\t%d ms\n", statsLabelStyle.Render("P99 latency"), *metrics.P99LatencyMS)
	}
	tw.Flush()
	fmt.Fprintln(w, statsPanelStyle.Render("Metrics\n"+strings.TrimRight(body.String(), "\n")))
}

func renderPeriods(w io.Writer, period internal.Period, rows []internal.PeriodSummary) {
	title := capitalize(string(period)) + " Breakdown"
	body := &strings.Builder{}
	tw := tabwriter.NewWriter(body, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Period\tEvents\tTokens\tCost (USD)\tAvg latency (ms)\n")
	for _, row := range rows {
		tokens := "—"
		if row.Tokens > 0 {
			tokens = fmt.Sprintf("%d", row.Tokens)
		}
		cost := "—"
		if row.CostUSD > 0 {
			cost = fmt.Sprintf("$%.2f", row.CostUSD)
		}
		latency := "—"
		if row.AverageLatencyMS > 0 {
			latency = fmt.Sprintf("%.2f", row.AverageLatencyMS)
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\n", row.Period, row.Events, tokens, cost, latency)
	}
	tw.Flush()
	fmt.Fprintln(w, statsPanelStyle.Render(title+"\n"+strings.TrimRight(body.String(), "\n")))
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func formatTimeframe(tf internal.Timeframe) string {
	if tf.Start == "" || tf.End == "" {
		return "—"
	}
	start := tf.Start
	end := tf.End
	if len(start) >= 10 {
		start = start[:10]
	}
	if len(end) >= 10 {
		end = end[:10]
	}
	return fmt.Sprintf("%s → %s (%d days)", start, end, tf.DurationDays)
}

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "Output statistics as JSON")
	statsCmd.Flags().StringVar(&statsPeriod, "period", "", "Aggregate time-series statistics: daily, weekly or monthly")
}
