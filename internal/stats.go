package internal

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Period selects the time-bucketing granularity for aggregation.
type Period string

const (
	PeriodNone    Period = ""
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
)

// ParsePeriod validates a period flag value.
func ParsePeriod(s string) (Period, error) {
	switch Period(s) {
	case PeriodNone, PeriodDaily, PeriodWeekly, PeriodMonthly:
		return Period(s), nil
	}
	return PeriodNone, &ConfigError{Setting: "period", Invalid: []string{s}}
}

// PeriodKey derives the bucket key for a timestamp. Keys sort
// lexicographically in chronological order for every granularity.
func PeriodKey(t time.Time, period Period) string {
	switch period {
	case PeriodDaily:
		return t.Format("2006-01-02")
	case PeriodWeekly:
		year, week := t.ISOWeek()
		return fmt.Sprintf("%d-W%02d", year, week)
	case PeriodMonthly:
		return t.Format("2006-01")
	}
	return ""
}

// Aggregator is a single-pass streaming reducer over an event stream.
type Aggregator struct {
	period Period

	totalEvents int
	sessionIDs  map[string]struct{}
	first, last time.Time
	actions     map[string]int
	actors      map[string]int
	totalTokens int64
	totalCost   float64
	latencies   []int64
	periods     map[string]*periodBucket
}

type periodBucket struct {
	events    int
	tokens    int64
	cost      float64
	latencies []int64
}

// NewAggregator returns an aggregator, optionally time-bucketed.
func NewAggregator(period Period) *Aggregator {
	return &Aggregator{
		period:     period,
		sessionIDs: make(map[string]struct{}),
		actions:    make(map[string]int),
		actors:     make(map[string]int),
		periods:    make(map[string]*periodBucket),
	}
}

// Add folds one event into the aggregate. An unparseable timestamp fails
// the call; everything already folded in remains valid.
func (a *Aggregator) Add(e *Event) error {
	eventTime, err := ParseTimestamp(e.Timestamp)
	if err != nil {
		return err
	}

	a.totalEvents++
	a.sessionIDs[e.SessionID] = struct{}{}
	if a.first.IsZero() || eventTime.Before(a.first) {
		a.first = eventTime
	}
	if a.last.IsZero() || eventTime.After(a.last) {
		a.last = eventTime
	}

	a.actions[string(e.Action)]++
	actorLabel := string(e.Actor.Type)
	if e.Actor.ID != "" {
		actorLabel = fmt.Sprintf("%s (%s)", e.Actor.Type, e.Actor.ID)
	}
	a.actors[actorLabel]++

	tokens, hasTokens := eventTokens(e)
	if hasTokens {
		a.totalTokens += tokens
	}
	cost, hasCost := eventCost(e)
	if hasCost {
		a.totalCost += cost
	}
	latency, hasLatency := eventLatency(e)
	if hasLatency {
		a.latencies = append(a.latencies, latency)
	}

	if a.period != PeriodNone {
		key := PeriodKey(eventTime, a.period)
		bucket := a.periods[key]
		if bucket == nil {
			bucket = &periodBucket{}
			a.periods[key] = bucket
		}
		bucket.events++
		if hasTokens {
			bucket.tokens += tokens
		}
		if hasCost {
			bucket.cost += cost
		}
		if hasLatency {
			bucket.latencies = append(bucket.latencies, latency)
		}
	}
	return nil
}

// eventTokens prefers the explicit total and otherwise sums every token
// kind present.
func eventTokens(e *Event) (int64, bool) {
	if e.Metrics == nil || e.Metrics.Tokens == nil {
		return 0, false
	}
	if total, ok := e.Metrics.Tokens["total"]; ok {
		return total, true
	}
	var sum int64
	for _, v := range e.Metrics.Tokens {
		sum += v
	}
	return sum, true
}

func eventCost(e *Event) (float64, bool) {
	if e.Metrics == nil || e.Metrics.CostUSD == nil {
		return 0, false
	}
	return *e.Metrics.CostUSD, true
}

func eventLatency(e *Event) (int64, bool) {
	if e.Metrics == nil || e.Metrics.LatencyMS == nil {
		return 0, false
	}
	return *e.Metrics.LatencyMS, true
}

// Count pairs a frequency with its share of the total.
type Count struct {
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// Timeframe spans the first to the last event timestamp.
type Timeframe struct {
	Start        string `json:"start,omitempty"`
	End          string `json:"end,omitempty"`
	DurationDays int    `json:"duration_days,omitempty"`
}

// MetricsSummary aggregates tokens, cost and latency. The percentile
// fields are present only once ten or more latency samples exist; below
// that they are omitted, not approximated.
type MetricsSummary struct {
	TotalTokens      int64    `json:"total_tokens,omitempty"`
	TotalCostUSD     float64  `json:"total_cost_usd,omitempty"`
	AverageLatencyMS float64  `json:"average_latency_ms,omitempty"`
	P50LatencyMS     *int64   `json:"p50_latency_ms,omitempty"`
	P95LatencyMS     *int64   `json:"p95_latency_ms,omitempty"`
	P99LatencyMS     *int64   `json:"p99_latency_ms,omitempty"`
	LatencySamples   int      `json:"-"`
}

// PeriodSummary is the per-bucket breakdown row.
type PeriodSummary struct {
	Period           string  `json:"period"`
	Events           int     `json:"events"`
	Tokens           int64   `json:"tokens,omitempty"`
	CostUSD          float64 `json:"cost_usd,omitempty"`
	AverageLatencyMS float64 `json:"avg_latency_ms,omitempty"`
}

// Summary is the final aggregate over one full pass of a log.
type Summary struct {
	TotalEvents    int              `json:"total_events"`
	UniqueSessions int              `json:"unique_sessions"`
	Timeframe      Timeframe        `json:"timeframe"`
	Actions        map[string]Count `json:"actions"`
	Actors         map[string]Count `json:"actors"`
	Metrics        *MetricsSummary  `json:"metrics,omitempty"`
	Periods        []PeriodSummary  `json:"periods,omitempty"`
}

// Result finalizes the aggregate. The aggregator may keep receiving events
// afterwards; Result can be called again for a fresh snapshot.
func (a *Aggregator) Result() *Summary {
	s := &Summary{
		TotalEvents:    a.totalEvents,
		UniqueSessions: len(a.sessionIDs),
		Actions:        withPercentages(a.actions, a.totalEvents),
		Actors:         withPercentages(a.actors, a.totalEvents),
	}
	if !a.first.IsZero() {
		s.Timeframe = Timeframe{
			Start:        a.first.Format(isoMillis),
			End:          a.last.Format(isoMillis),
			DurationDays: durationDays(a.first, a.last),
		}
	}
	if a.totalTokens != 0 || a.totalCost != 0 || len(a.latencies) > 0 {
		m := &MetricsSummary{
			TotalTokens:    a.totalTokens,
			TotalCostUSD:   roundTo(a.totalCost, 6),
			LatencySamples: len(a.latencies),
		}
		if len(a.latencies) > 0 {
			sorted := append([]int64(nil), a.latencies...)
			sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
			m.AverageLatencyMS = roundTo(meanInt64(sorted), 2)
			if len(sorted) >= 10 {
				p50 := Percentile(sorted, 50)
				p95 := Percentile(sorted, 95)
				p99 := Percentile(sorted, 99)
				m.P50LatencyMS = &p50
				m.P95LatencyMS = &p95
				m.P99LatencyMS = &p99
			}
		}
		s.Metrics = m
	}
	if len(a.periods) > 0 {
		keys := make([]string, 0, len(a.periods))
		for k := range a.periods {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			bucket := a.periods[k]
			row := PeriodSummary{
				Period:  k,
				Events:  bucket.events,
				Tokens:  bucket.tokens,
				CostUSD: roundTo(bucket.cost, 6),
			}
			if len(bucket.latencies) > 0 {
				row.AverageLatencyMS = roundTo(meanInt64(bucket.latencies), 2)
			}
			s.Periods = append(s.Periods, row)
		}
	}
	return s
}

// Percentile computes an order statistic over already-sorted samples using
// linear interpolation between the nearest ranks. Interpolated values
// round half to even.
func Percentile(sorted []int64, p float64) int64 {
	if len(sorted) == 0 {
		return 0
	}
	k := float64(len(sorted)-1) * p / 100.0
	f := int(math.Floor(k))
	c := f + 1
	if c > len(sorted)-1 {
		c = len(sorted) - 1
	}
	if f == c {
		return sorted[f]
	}
	d0 := float64(sorted[f]) * (float64(c) - k)
	d1 := float64(sorted[c]) * (k - float64(f))
	return int64(math.RoundToEven(d0 + d1))
}

func withPercentages(counts map[string]int, total int) map[string]Count {
	out := make(map[string]Count, len(counts))
	for label, count := range counts {
		pct := 0.0
		if total > 0 {
			pct = roundTo(float64(count)/float64(total)*100, 2)
		}
		out[label] = Count{Count: count, Percentage: pct}
	}
	return out
}

func durationDays(first, last time.Time) int {
	firstDay := first.Truncate(24 * time.Hour)
	lastDay := last.Truncate(24 * time.Hour)
	return int(lastDay.Sub(firstDay).Hours()/24) + 1
}

func meanInt64(values []int64) float64 {
	var sum int64
	for _, v := range values {
		sum += v
	}
	return float64(sum) / float64(len(values))
}

func roundTo(v float64, places int) float64 {
	factor := math.Pow(10, float64(places))
	return math.Round(v*factor) / factor
}
