package internal

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestValidateColumns(t *testing.T) {
	tests := []struct {
		name        string
		columns     []string
		wantInvalid []string
	}{
		{name: "all valid", columns: []string{"timestamp", "speaker", "message"}},
		{name: "full catalog", columns: AllColumns},
		{name: "one invalid", columns: []string{"timestamp", "mood"}, wantInvalid: []string{"mood"}},
		{name: "several invalid", columns: []string{"mood", "speaker", "vibe"}, wantInvalid: []string{"mood", "vibe"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateColumns(tt.columns)
			if tt.wantInvalid == nil {
				if err != nil {
					t.Fatalf("ValidateColumns() error = %v, want nil", err)
				}
				return
			}
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("ValidateColumns() error = %v, want *ConfigError", err)
			}
			if !reflect.DeepEqual(cfgErr.Invalid, tt.wantInvalid) {
				t.Errorf("Invalid = %v, want %v", cfgErr.Invalid, tt.wantInvalid)
			}
		})
	}
}

func projectionFixture() *Event {
	latency := int64(250)
	cost := 0.001
	return &Event{
		SchemaVersion: SchemaVersion,
		EventID:       "evt-1",
		Timestamp:     "2025-10-08T10:00:00.000Z",
		SessionID:     "sess_1",
		Actor:         Actor{Type: ActorAgent, ID: "assistant"},
		Action:        ActionCompletion,
		Content:       &Content{Text: "The answer is 42."},
		Metrics: &Metrics{
			LatencyMS: &latency,
			Tokens:    map[string]int64{"prompt": 10, "completion": 20, "total": 30},
			CostUSD:   &cost,
		},
		Extensions: map[string]any{"model": "gpt-4o-mini", "score": 0.95},
	}
}

func TestProjectRow(t *testing.T) {
	e := projectionFixture()
	row := ProjectRow(e, []string{"timestamp", "conversation_id", "speaker", "action", "message",
		"tokens_in", "tokens_out", "cost_usd", "cost_usd_display", "latency_ms", "model", "relevance_score"})

	want := map[string]any{
		"timestamp":        "2025-10-08T10:00:00.000Z",
		"conversation_id":  "sess_1",
		"speaker":          "agent: assistant",
		"action":           "completion",
		"message":          "The answer is 42.",
		"tokens_in":        int64(10),
		"tokens_out":       int64(20),
		"cost_usd":         "0.001000",
		"cost_usd_display": "0,001000 USD",
		"latency_ms":       int64(250),
		"model":            "gpt-4o-mini",
		"relevance_score":  0.95,
	}
	if !reflect.DeepEqual(row, want) {
		t.Errorf("ProjectRow() = %#v, want %#v", row, want)
	}
}

// A row must contain exactly the requested columns, with nil standing
// in for every source field the event lacks.
func TestProjectRow_AbsentFieldsAreNull(t *testing.T) {
	e := &Event{
		EventID:   "evt-2",
		Timestamp: "2025-10-08T10:00:00.000Z",
		SessionID: "sess_1",
		Actor:     Actor{Type: ActorHuman, ID: "alice"},
		Action:    ActionPrompt,
	}
	columns := []string{"message", "tokens_in", "cost_usd", "latency_ms", "model", "reply_to", "status_code", "relevance_score"}
	row := ProjectRow(e, columns)
	if len(row) != len(columns) {
		t.Fatalf("row has %d keys, want %d", len(row), len(columns))
	}
	for _, col := range columns {
		v, ok := row[col]
		if !ok {
			t.Errorf("column %q missing from row", col)
			continue
		}
		if v != nil {
			t.Errorf("column %q = %v, want nil", col, v)
		}
	}
}

func TestProjectRow_LatencyFallsBackToExtensions(t *testing.T) {
	e := &Event{
		SessionID:  "s",
		Actor:      Actor{Type: ActorTool, ID: "retriever"},
		Action:     ActionRetrieval,
		Extensions: map[string]any{"latency_ms": float64(42)},
	}
	row := ProjectRow(e, []string{"latency_ms"})
	if row["latency_ms"] != float64(42) {
		t.Errorf("latency_ms = %v, want 42", row["latency_ms"])
	}
}

func TestProjectRow_TruncatesLongMessage(t *testing.T) {
	e := projectionFixture()
	e.Content.Text = strings.Repeat("x", 600)
	row := ProjectRow(e, []string{"message"})
	msg, ok := row["message"].(string)
	if !ok {
		t.Fatalf("message = %v, want string", row["message"])
	}
	if len([]rune(msg)) != MaxMessageLen {
		t.Errorf("truncated length = %d, want %d", len([]rune(msg)), MaxMessageLen)
	}
	if !strings.HasSuffix(msg, "...") {
		t.Errorf("truncated message does not end with ellipsis: %q", msg[480:])
	}
}

// The same event and column set must serialize to byte-identical rows
// on every call.
func TestProjectRow_Deterministic(t *testing.T) {
	e := projectionFixture()
	columns := []string{"timestamp", "speaker", "message", "cost_usd", "relevance_score"}

	first, err := json.Marshal(ProjectRow(e, columns))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for i := 0; i < 5; i++ {
		next, err := json.Marshal(ProjectRow(e, columns))
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		if string(next) != string(first) {
			t.Fatalf("projection %d differs:\n%s\n%s", i, first, next)
		}
	}
}

func TestTruncateText(t *testing.T) {
	tests := []struct {
		name string
		text string
		max  int
		want string
	}{
		{name: "under limit", text: "short", max: 10, want: "short"},
		{name: "at limit", text: "exactly10!", max: 10, want: "exactly10!"},
		{name: "over limit", text: "this is far too long", max: 10, want: "this is..."},
		{name: "multibyte runes", text: strings.Repeat("日", 12), max: 10, want: strings.Repeat("日", 7) + "..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TruncateText(tt.text, tt.max); got != tt.want {
				t.Errorf("TruncateText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestReconstructEvent(t *testing.T) {
	row := map[string]any{
		"timestamp":       "2025-10-08T10:00:00.000Z",
		"event_id":        "evt-1",
		"conversation_id": "sess_1",
		"speaker":         "agent: assistant",
		"action":          "completion",
		"message":         "hi",
		"tokens_in":       float64(10),
		"tokens_out":      float64(20),
		"latency_ms":      float64(250),
		"cost_usd":        "0.001000",
		"model":           "gpt-4o-mini",
	}
	e := ReconstructEvent(row)
	if e.SessionID != "sess_1" || e.EventID != "evt-1" {
		t.Errorf("identifiers not recovered: %+v", e)
	}
	if e.Actor.Type != ActorAgent || e.Actor.ID != "assistant" {
		t.Errorf("Actor = %+v, want agent/assistant", e.Actor)
	}
	if e.Content == nil || e.Content.Text != "hi" {
		t.Errorf("Content = %+v", e.Content)
	}
	if e.Metrics == nil {
		t.Fatal("Metrics not recovered")
	}
	if e.Metrics.Tokens["prompt"] != 10 || e.Metrics.Tokens["completion"] != 20 {
		t.Errorf("Tokens = %v", e.Metrics.Tokens)
	}
	if e.Metrics.LatencyMS == nil || *e.Metrics.LatencyMS != 250 {
		t.Errorf("LatencyMS = %v", e.Metrics.LatencyMS)
	}
	if e.Metrics.CostUSD == nil || *e.Metrics.CostUSD != 0.001 {
		t.Errorf("CostUSD = %v", e.Metrics.CostUSD)
	}
	if e.Extensions["model"] != "gpt-4o-mini" {
		t.Errorf("Extensions = %v", e.Extensions)
	}
}

func TestReconstructEvent_SparseRow(t *testing.T) {
	e := ReconstructEvent(map[string]any{"speaker": "human: alice"})
	if e.Actor.Type != ActorHuman || e.Actor.ID != "alice" {
		t.Errorf("Actor = %+v", e.Actor)
	}
	if e.Metrics != nil {
		t.Errorf("Metrics = %+v, want nil", e.Metrics)
	}
	if e.Extensions != nil {
		t.Errorf("Extensions = %v, want nil", e.Extensions)
	}
	if e.Content != nil {
		t.Errorf("Content = %+v, want nil", e.Content)
	}
}
