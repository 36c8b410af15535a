package internal

import (
	"fmt"
	"strconv"
	"strings"
)

// AllColumns is the closed catalog of projection columns, in canonical
// order. The catalog grows only by adding new named derivations; arbitrary
// keys are never accepted.
var AllColumns = []string{
	"timestamp",
	"conversation_id",
	"event_id",
	"reply_to",
	"status_code",
	"speaker",
	"action",
	"message",
	"tokens_in",
	"tokens_out",
	"cost_usd",
	"cost_usd_display",
	"latency_ms",
	"model",
	"relevance_score",
}

var columnSet = func() map[string]bool {
	set := make(map[string]bool, len(AllColumns))
	for _, c := range AllColumns {
		set[c] = true
	}
	return set
}()

// MaxMessageLen is the length cap applied to the message column, ellipsis
// included.
const MaxMessageLen = 500

// ValidateColumns checks a requested column set against the catalog and
// names every invalid column in the error.
func ValidateColumns(columns []string) error {
	var invalid []string
	for _, c := range columns {
		if !columnSet[c] {
			invalid = append(invalid, c)
		}
	}
	if len(invalid) > 0 {
		return &ConfigError{Setting: "columns", Invalid: invalid}
	}
	return nil
}

// ProjectRow derives the requested columns from a full event. Every
// requested column is present in the row; a column whose source field is
// absent maps to nil (rendered as JSON null). Projection is deterministic:
// the same event and columns always produce the same row.
func ProjectRow(e *Event, columns []string) map[string]any {
	row := make(map[string]any, len(columns))
	for _, col := range columns {
		row[col] = deriveColumn(e, col)
	}
	return row
}

func deriveColumn(e *Event, col string) any {
	switch col {
	case "timestamp":
		return e.Timestamp
	case "conversation_id":
		return e.SessionID
	case "event_id":
		return e.EventID
	case "reply_to":
		return extensionValue(e, "reply_to")
	case "status_code":
		return extensionValue(e, "status_code")
	case "speaker":
		return fmt.Sprintf("%s: %s", e.Actor.Type, e.Actor.ID)
	case "action":
		return string(e.Action)
	case "message":
		if e.Content == nil || e.Content.Text == "" {
			return nil
		}
		return TruncateText(e.Content.Text, MaxMessageLen)
	case "tokens_in":
		return tokenValue(e, "prompt")
	case "tokens_out":
		return tokenValue(e, "completion")
	case "cost_usd":
		if e.Metrics == nil || e.Metrics.CostUSD == nil {
			return nil
		}
		return fmt.Sprintf("%.6f", *e.Metrics.CostUSD)
	case "cost_usd_display":
		if e.Metrics == nil || e.Metrics.CostUSD == nil {
			return nil
		}
		fixed := fmt.Sprintf("%.6f", *e.Metrics.CostUSD)
		return strings.Replace(fixed, ".", ",", 1) + " USD"
	case "latency_ms":
		if e.Metrics != nil && e.Metrics.LatencyMS != nil {
			return *e.Metrics.LatencyMS
		}
		return extensionValue(e, "latency_ms")
	case "model":
		return extensionValue(e, "model")
	case "relevance_score":
		return extensionValue(e, "score")
	}
	return nil
}

func extensionValue(e *Event, key string) any {
	if e.Extensions == nil {
		return nil
	}
	v, ok := e.Extensions[key]
	if !ok {
		return nil
	}
	return v
}

func tokenValue(e *Event, kind string) any {
	if e.Metrics == nil || e.Metrics.Tokens == nil {
		return nil
	}
	v, ok := e.Metrics.Tokens[kind]
	if !ok {
		return nil
	}
	return v
}

// TruncateText caps text at max characters, replacing the tail with "..."
// when the cap is exceeded. Lengths are counted in runes.
func TruncateText(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max-3]) + "..."
}

// ReconstructEvent builds a minimal event from a projected row. Only the
// fields recoverable from the selected columns are populated; everything
// else stays absent. This is lossy and one-directional: a reconstructed
// event is not a full Event and skips required-field validation.
func ReconstructEvent(row map[string]any) *Event {
	e := &Event{}
	if v, ok := row["timestamp"].(string); ok {
		e.Timestamp = v
	}
	if v, ok := row["event_id"].(string); ok {
		e.EventID = v
	}
	if v, ok := row["conversation_id"].(string); ok {
		e.SessionID = v
	}
	if v, ok := row["action"].(string); ok {
		e.Action = Action(v)
	}
	if v, ok := row["speaker"].(string); ok {
		if kind, id, found := strings.Cut(v, ": "); found {
			e.Actor = Actor{Type: ActorType(kind), ID: id}
		}
	}
	if v, ok := row["message"].(string); ok {
		e.Content = &Content{Text: v}
	}

	metrics := &Metrics{}
	hasMetrics := false
	if n, ok := asInt64(row["tokens_in"]); ok {
		ensureTokens(metrics)
		metrics.Tokens["prompt"] = n
		hasMetrics = true
	}
	if n, ok := asInt64(row["tokens_out"]); ok {
		ensureTokens(metrics)
		metrics.Tokens["completion"] = n
		hasMetrics = true
	}
	if n, ok := asInt64(row["latency_ms"]); ok {
		metrics.LatencyMS = &n
		hasMetrics = true
	}
	if cost, ok := asCost(row["cost_usd"]); ok {
		metrics.CostUSD = &cost
		hasMetrics = true
	}
	if hasMetrics {
		e.Metrics = metrics
	}

	ext := make(map[string]any)
	for rowKey, extKey := range map[string]string{
		"model":           "model",
		"status_code":     "status_code",
		"reply_to":        "reply_to",
		"relevance_score": "score",
	} {
		if v, ok := row[rowKey]; ok && v != nil {
			ext[extKey] = v
		}
	}
	if len(ext) > 0 {
		e.Extensions = ext
	}
	return e
}

func ensureTokens(m *Metrics) {
	if m.Tokens == nil {
		m.Tokens = make(map[string]int64)
	}
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	}
	return 0, false
}

func asCost(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		parsed, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	}
	return 0, false
}
