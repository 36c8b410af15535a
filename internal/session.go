package internal

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Mode controls how a session opens its log file.
type Mode string

const (
	// ModeAppend creates the file if absent and writes to the end.
	ModeAppend Mode = "append"
	// ModeOverwrite truncates the file before writing.
	ModeOverwrite Mode = "overwrite"
	// ModeRead streams events back; the file must pre-exist.
	ModeRead Mode = "read"
)

// Session is an open handle to one append-only log file. Writes are one
// JSON line per event, synced to durable storage before Append returns, so
// the log up to the last successful Append survives a process abort.
//
// A session never holds a lock across calls. Multiple append-mode sessions
// may share one file; each line is written with a single write on an
// O_APPEND handle, so lines from concurrent writers interleave but are
// never torn (up to the platform's atomic-write size). Cross-writer
// ordering is not sequenced.
type Session struct {
	path     string
	mode     Mode
	columns  []string
	makeDirs bool
	file     *os.File
	opened   bool
}

// SessionOption configures a session at construction time.
type SessionOption func(*Session)

// WithMode sets the open mode. The default is ModeAppend.
func WithMode(mode Mode) SessionOption {
	return func(s *Session) { s.mode = mode }
}

// WithColumns enables privacy projection: writes store projected rows for
// the given catalog columns instead of full events, and reads reconstruct
// minimal events from those rows. The choice is permanent for the session.
func WithColumns(columns []string) SessionOption {
	return func(s *Session) { s.columns = columns }
}

// WithoutDirCreation disables creation of missing parent directories when
// opening in append or overwrite mode.
func WithoutDirCreation() SessionOption {
	return func(s *Session) { s.makeDirs = false }
}

// NewSession constructs a session for the given log file. Configuration
// problems (unknown mode, columns outside the catalog) fail here, never at
// first write.
func NewSession(path string, opts ...SessionOption) (*Session, error) {
	s := &Session{path: path, mode: ModeAppend, makeDirs: true}
	for _, opt := range opts {
		opt(s)
	}
	switch s.mode {
	case ModeAppend, ModeOverwrite, ModeRead:
	default:
		return nil, &ConfigError{Setting: "mode", Invalid: []string{string(s.mode)}}
	}
	if s.columns != nil {
		if len(s.columns) == 0 {
			return nil, &ConfigError{Setting: "columns", Reason: "column list must not be empty"}
		}
		if err := ValidateColumns(s.columns); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Path returns the log file path.
func (s *Session) Path() string {
	return s.path
}

// Columns returns the projection column set, or nil for full fidelity.
func (s *Session) Columns() []string {
	return s.columns
}

// Open acquires the underlying file handle. Callers pair it with a
// deferred Close. Opening an already-open session is a no-op.
func (s *Session) Open() error {
	if s.opened {
		return nil
	}
	switch s.mode {
	case ModeAppend, ModeOverwrite:
		if s.makeDirs {
			if dir := filepath.Dir(s.path); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return &SessionIOError{Op: "mkdir", Path: dir, Err: err}
				}
			}
		}
		flags := os.O_CREATE | os.O_WRONLY
		if s.mode == ModeAppend {
			flags |= os.O_APPEND
		} else {
			flags |= os.O_TRUNC
		}
		file, err := os.OpenFile(s.path, flags, 0o644)
		if err != nil {
			return &SessionIOError{Op: "open", Path: s.path, Err: err}
		}
		s.file = file
	case ModeRead:
		if _, err := os.Stat(s.path); err != nil {
			return &SessionIOError{Op: "open", Path: s.path, Err: err}
		}
	}
	s.opened = true
	LogDebug("session open: %s (mode=%s)", s.path, s.mode)
	return nil
}

// Close releases the file handle. Closing a closed session is a no-op.
func (s *Session) Close() error {
	if !s.opened {
		return nil
	}
	s.opened = false
	if s.file == nil {
		return nil
	}
	file := s.file
	s.file = nil
	if err := file.Close(); err != nil {
		return &SessionIOError{Op: "close", Path: s.path, Err: err}
	}
	return nil
}

// Append validates, serializes and durably writes one event as a single
// line. There is no buffering across calls: the write is synced before
// Append returns. Failures are not retried; on error the on-disk state is
// whatever was durably written before the failure.
func (s *Session) Append(e *Event) error {
	if !s.opened {
		return &SessionStateError{Op: "append"}
	}
	if s.mode == ModeRead {
		return &SessionStateError{Op: "append", Reason: "session opened read-only"}
	}

	if err := e.Validate(); err != nil {
		return err
	}
	var line []byte
	var err error
	if s.columns != nil {
		line, err = json.Marshal(ProjectRow(e, s.columns))
	} else {
		line, err = e.ToRecord()
	}
	if err != nil {
		return err
	}

	if _, err := s.file.Write(append(line, '\n')); err != nil {
		return &SessionIOError{Op: "write", Path: s.path, Err: err}
	}
	if err := s.file.Sync(); err != nil {
		return &SessionIOError{Op: "sync", Path: s.path, Err: err}
	}
	return nil
}

// Read starts a fresh forward-only scan of the log from the top. A missing
// file fails here, before any record is yielded. The caller owns the
// returned reader and must close it.
func (s *Session) Read() (*EventReader, error) {
	if !s.opened {
		return nil, &SessionStateError{Op: "read"}
	}
	file, err := os.Open(s.path)
	if err != nil {
		return nil, &SessionIOError{Op: "open", Path: s.path, Err: err}
	}
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	LogDebug("reading events from %s", s.path)
	return &EventReader{path: s.path, file: file, scanner: scanner, columns: s.columns}, nil
}

// EventReader streams events off a log one non-blank line at a time.
type EventReader struct {
	path    string
	file    *os.File
	scanner *bufio.Scanner
	columns []string
	line    int
}

// Next returns the next event, io.EOF at end of log, or a *LineError for a
// malformed line. A line failure does not poison the reader: calling Next
// again skips past the offending line, which is how callers implement a
// count-and-continue policy. The default is to treat the failure as fatal.
func (r *EventReader) Next() (*Event, error) {
	for r.scanner.Scan() {
		r.line++
		text := strings.TrimSpace(r.scanner.Text())
		if text == "" {
			continue
		}
		if r.columns != nil {
			var row map[string]any
			if err := json.Unmarshal([]byte(text), &row); err != nil {
				return nil, &LineError{Line: r.line, Err: err}
			}
			return ReconstructEvent(row), nil
		}
		event, err := FromRecord([]byte(text))
		if err != nil {
			return nil, &LineError{Line: r.line, Err: err}
		}
		return event, nil
	}
	if err := r.scanner.Err(); err != nil {
		return nil, &SessionIOError{Op: "read", Path: r.path, Err: err}
	}
	return nil, io.EOF
}

// Line returns the number of the last line consumed.
func (r *EventReader) Line() int {
	return r.line
}

// Close releases the reader's file handle.
func (r *EventReader) Close() error {
	return r.file.Close()
}
