package internal

import (
	"encoding/json"

	"github.com/google/uuid"
)

// SchemaVersion is the current version of the record format.
const SchemaVersion = "1.0.0"

// ActorType classifies who produced an event.
type ActorType string

const (
	ActorHuman  ActorType = "human"
	ActorAgent  ActorType = "agent"
	ActorTool   ActorType = "tool"
	ActorSystem ActorType = "system"
)

// ActorTypes lists the allowed actor types in a stable order.
var ActorTypes = []string{"human", "agent", "tool", "system"}

// Valid reports whether the actor type is one of the allowed values.
func (t ActorType) Valid() bool {
	switch t {
	case ActorHuman, ActorAgent, ActorTool, ActorSystem:
		return true
	}
	return false
}

// Action classifies what an event records.
type Action string

const (
	ActionPrompt     Action = "prompt"
	ActionCompletion Action = "completion"
	ActionToolCall   Action = "tool_call"
	ActionToolResult Action = "tool_result"
	ActionFeedback   Action = "feedback"
	ActionRetrieval  Action = "retrieval"
	ActionRerank     Action = "rerank"
	ActionEmbedding  Action = "embedding"
	ActionSystem     Action = "system"
)

// Actions lists the allowed action verbs in a stable order.
var Actions = []string{
	"prompt", "completion", "tool_call", "tool_result",
	"feedback", "retrieval", "rerank", "embedding", "system",
}

// Valid reports whether the action is one of the allowed verbs.
func (a Action) Valid() bool {
	switch a {
	case ActionPrompt, ActionCompletion, ActionToolCall, ActionToolResult,
		ActionFeedback, ActionRetrieval, ActionRerank, ActionEmbedding, ActionSystem:
		return true
	}
	return false
}

// Actor identifies the originator of an event. Immutable once constructed.
type Actor struct {
	Type ActorType `json:"type"`
	ID   string    `json:"id"`
	DID  string    `json:"did,omitempty"` // decentralized identifier
}

// Content holds the payload of an event. At most one of Text, TextHash and
// TextEncrypted is authoritative at a time; all may coexist for audit purposes.
type Content struct {
	Text          string           `json:"text,omitempty"`
	TextHash      string           `json:"text_hash,omitempty"`
	TextEncrypted string           `json:"text_encrypted,omitempty"`
	Media         []map[string]any `json:"media,omitempty"`
}

// Metrics holds performance measurements for an event.
type Metrics struct {
	LatencyMS *int64           `json:"latency_ms,omitempty"`
	Tokens    map[string]int64 `json:"tokens,omitempty"` // prompt, completion, total
	CostUSD   *float64         `json:"cost_usd,omitempty"`
}

// Privacy holds PII and consent information for an event.
type Privacy struct {
	PIIDetected      []string       `json:"pii_detected,omitempty"`
	RedactionApplied bool           `json:"redaction_applied,omitempty"`
	Consent          map[string]any `json:"consent,omitempty"`
}

// Event is one immutable interaction-trace record. Corrections are modeled
// as new events referencing the original via an extension field, never as
// in-place updates.
type Event struct {
	SchemaVersion string         `json:"schema_version"`
	EventID       string         `json:"event_id"`
	Timestamp     string         `json:"timestamp"`
	SessionID     string         `json:"session_id"`
	Actor         Actor          `json:"actor"`
	Action        Action         `json:"action"`
	Content       *Content       `json:"content,omitempty"`
	Provenance    map[string]any `json:"provenance,omitempty"`
	Metrics       *Metrics       `json:"metrics,omitempty"`
	Privacy       *Privacy       `json:"privacy,omitempty"`
	Integrity     map[string]any `json:"integrity,omitempty"`
	Extensions    map[string]any `json:"extensions,omitempty"`
}

// EventOption configures an Event at creation time.
type EventOption func(*Event)

// WithText sets the plain-text content of the event.
func WithText(text string) EventOption {
	return func(e *Event) {
		if e.Content == nil {
			e.Content = &Content{}
		}
		e.Content.Text = text
	}
}

// WithContent sets the full content block of the event.
func WithContent(c *Content) EventOption {
	return func(e *Event) { e.Content = c }
}

// WithMetrics sets the metrics block of the event.
func WithMetrics(m *Metrics) EventOption {
	return func(e *Event) { e.Metrics = m }
}

// WithProvenance sets the provenance mapping of the event.
func WithProvenance(p map[string]any) EventOption {
	return func(e *Event) { e.Provenance = p }
}

// WithPrivacy sets the privacy block of the event.
func WithPrivacy(p *Privacy) EventOption {
	return func(e *Event) { e.Privacy = p }
}

// WithIntegrity sets the integrity mapping of the event.
func WithIntegrity(m map[string]any) EventOption {
	return func(e *Event) { e.Integrity = m }
}

// WithExtensions sets the extensions mapping of the event.
func WithExtensions(ext map[string]any) EventOption {
	return func(e *Event) { e.Extensions = ext }
}

// WithEventID overrides the generated event id.
func WithEventID(id string) EventOption {
	return func(e *Event) { e.EventID = id }
}

// WithTimestamp overrides the generated timestamp.
func WithTimestamp(ts string) EventOption {
	return func(e *Event) { e.Timestamp = ts }
}

// NewEvent constructs and validates an event. The event id (UUID) and the
// timestamp (UTC, millisecond precision) are generated when not supplied.
func NewEvent(sessionID string, actor Actor, action Action, opts ...EventOption) (*Event, error) {
	e := &Event{
		SchemaVersion: SchemaVersion,
		SessionID:     sessionID,
		Actor:         actor,
		Action:        action,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.EventID == "" {
		e.EventID = uuid.NewString()
	}
	if e.Timestamp == "" {
		e.Timestamp = NowISO8601()
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return e, nil
}

// Validate checks required fields and closed-set membership. Enum failures
// carry the invalid value and the allowed set so tooling can render a
// precise message.
func (e *Event) Validate() error {
	if e.SessionID == "" {
		return &SchemaError{Field: "session_id", Reason: "must not be empty"}
	}
	if !e.Actor.Type.Valid() {
		return &SchemaError{Field: "actor.type", Value: string(e.Actor.Type), Allowed: ActorTypes}
	}
	if e.Actor.ID == "" {
		return &SchemaError{Field: "actor.id", Reason: "must not be empty"}
	}
	if !e.Action.Valid() {
		return &SchemaError{Field: "action", Value: string(e.Action), Allowed: Actions}
	}
	if e.Timestamp != "" {
		if _, err := ParseTimestamp(e.Timestamp); err != nil {
			return &SchemaError{Field: "timestamp", Value: e.Timestamp, Reason: "not a valid ISO-8601 instant", Err: err}
		}
	}
	return nil
}

// ToRecord serializes the event to a single JSON line without the trailing
// newline. Absent optional fields are omitted, never emitted as null.
func (e *Event) ToRecord() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, &SchemaError{Field: "event", Reason: "cannot serialize", Err: err}
	}
	return data, nil
}

// eventFields is the set of top-level keys the schema knows about. Anything
// else found on deserialization is routed into Extensions.
var eventFields = map[string]bool{
	"schema_version": true,
	"event_id":       true,
	"timestamp":      true,
	"session_id":     true,
	"actor":          true,
	"action":         true,
	"content":        true,
	"provenance":     true,
	"metrics":        true,
	"privacy":        true,
	"integrity":      true,
	"extensions":     true,
}

// FromRecord deserializes and validates one JSON line. Unknown top-level
// keys are preserved inside Extensions rather than rejected.
func FromRecord(data []byte) (*Event, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &SchemaError{Field: "record", Reason: "not a JSON object", Err: err}
	}
	for _, field := range []string{"session_id", "actor", "action"} {
		if _, ok := raw[field]; !ok {
			return nil, &SchemaError{Field: field, Reason: "required field is missing"}
		}
	}

	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, &SchemaError{Field: "record", Reason: "field has the wrong type", Err: err}
	}

	for key, value := range raw {
		if eventFields[key] {
			continue
		}
		var v any
		if err := json.Unmarshal(value, &v); err != nil {
			return nil, &SchemaError{Field: key, Reason: "cannot decode extension value", Err: err}
		}
		if e.Extensions == nil {
			e.Extensions = make(map[string]any)
		}
		if _, exists := e.Extensions[key]; !exists {
			e.Extensions[key] = v
		}
	}

	if err := e.Validate(); err != nil {
		return nil, err
	}
	return &e, nil
}
