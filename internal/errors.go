package internal

import (
	"fmt"
	"strings"
)

// SchemaError represents a record that failed validation. For closed-set
// fields it carries the invalid value and the allowed set.
type SchemaError struct {
	Field   string
	Value   any
	Allowed []string
	Reason  string
	Err     error
}

func (e *SchemaError) Error() string {
	if len(e.Allowed) > 0 {
		return fmt.Sprintf("schema error: invalid %s %q (allowed: %s)",
			e.Field, fmt.Sprint(e.Value), strings.Join(e.Allowed, ", "))
	}
	if e.Err != nil {
		return fmt.Sprintf("schema error: %s: %s: %v", e.Field, e.Reason, e.Err)
	}
	return fmt.Sprintf("schema error: %s: %s", e.Field, e.Reason)
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}

// SessionStateError represents an operation invoked on a session in the
// wrong state, e.g. appending before Open.
type SessionStateError struct {
	Op     string
	Reason string
}

func (e *SessionStateError) Error() string {
	reason := e.Reason
	if reason == "" {
		reason = "session not opened"
	}
	return fmt.Sprintf("session state error: %s: %s", e.Op, reason)
}

// SessionIOError represents a file open/write/flush failure. A read of a
// missing file wraps fs.ErrNotExist so callers can test for it.
type SessionIOError struct {
	Op   string // "open", "write", "sync", "mkdir", "read"
	Path string
	Err  error
}

func (e *SessionIOError) Error() string {
	return fmt.Sprintf("session i/o error: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *SessionIOError) Unwrap() error {
	return e.Err
}

// LineError represents a malformed line encountered while reading a log.
// It is numbered so callers can report or skip the offending line.
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("invalid event at line %d: %v", e.Line, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}

// ConfigError represents an invalid configuration value, raised at
// construction time, never deferred to first write.
type ConfigError struct {
	Setting string
	Invalid []string
	Reason  string
}

func (e *ConfigError) Error() string {
	if len(e.Invalid) > 0 {
		return fmt.Sprintf("configuration error: invalid %s: %s", e.Setting, strings.Join(e.Invalid, ", "))
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Setting, e.Reason)
}
