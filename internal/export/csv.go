package export

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/hiltio/hilt/internal"
)

// CSV output formats.
const (
	CSVReadable = "readable"
	CSVDetailed = "detailed"
	CSVFlat     = "flat"
)

var readableColumns = []string{"timestamp", "session", "speaker", "action", "message"}

var detailedColumns = []string{
	"timestamp", "session", "speaker", "action", "message",
	"model", "tokens_in", "tokens_out", "cost_usd", "latency_ms",
	"status_code", "retrieved_count", "retrieval_sources",
}

// flatDefaultColumns lead the header in flat mode; every other column is
// appended in first-occurrence order.
var flatDefaultColumns = []string{
	"event_id", "timestamp", "session_id", "actor.type", "actor.id", "action",
}

var speakerEmoji = map[string]string{
	"human":  "👤",
	"agent":  "🤖",
	"tool":   "🔧",
	"system": "⚙️",
}

// CSVConverter writes a log as RFC4180 CSV in one of three formats:
// a small human-readable column set, a richer detailed set, or the legacy
// full recursive flattening.
type CSVConverter struct {
	format  string
	columns []string
}

// NewCSVConverter validates the format up front. An explicit column list
// is only meaningful for the flat format.
func NewCSVConverter(format string, columns []string) (*CSVConverter, error) {
	if format == "" {
		format = CSVReadable
	}
	switch format {
	case CSVReadable, CSVDetailed, CSVFlat:
	default:
		return nil, &internal.ConfigError{Setting: "csv format", Invalid: []string{format}}
	}
	if len(columns) > 0 && format != CSVFlat {
		return nil, &internal.ConfigError{Setting: "columns", Reason: "explicit columns require the flat format"}
	}
	return &CSVConverter{format: format, columns: columns}, nil
}

// Extension returns ".csv".
func (c *CSVConverter) Extension() string {
	return ".csv"
}

// Convert reads the JSONL source and writes the CSV destination. Any line
// that fails JSON parsing aborts the conversion with a line-numbered
// error; nothing is best-effort.
func (c *CSVConverter) Convert(inputPath, outputPath string) (int, error) {
	source, err := os.Open(inputPath)
	if err != nil {
		return 0, &internal.SessionIOError{Op: "open", Path: inputPath, Err: err}
	}
	defer source.Close()

	if c.format == CSVFlat {
		return c.convertFlat(source, inputPath, outputPath)
	}
	return c.convertFixed(source, outputPath)
}

// convertFixed streams the readable and detailed formats line by line.
func (c *CSVConverter) convertFixed(source *os.File, outputPath string) (int, error) {
	header := readableColumns
	if c.format == CSVDetailed {
		header = detailedColumns
	}

	destination, err := os.Create(outputPath)
	if err != nil {
		return 0, &internal.SessionIOError{Op: "open", Path: outputPath, Err: err}
	}
	defer destination.Close()

	writer := csv.NewWriter(destination)
	if err := writer.Write(header); err != nil {
		return 0, &internal.SessionIOError{Op: "write", Path: outputPath, Err: err}
	}

	count := 0
	err = eachLine(source, func(lineNum int, line []byte) error {
		record, err := decodeRecord(line)
		if err != nil {
			return &internal.LineError{Line: lineNum, Err: err}
		}
		row := c.fixedRow(record)
		if err := writer.Write(row); err != nil {
			return &internal.SessionIOError{Op: "write", Path: outputPath, Err: err}
		}
		count++
		return nil
	})
	if err != nil {
		return 0, err
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return 0, &internal.SessionIOError{Op: "write", Path: outputPath, Err: err}
	}
	internal.LogDebug("csv %s: wrote %d events to %s", c.format, count, outputPath)
	return count, nil
}

func (c *CSVConverter) fixedRow(record map[string]any) []string {
	row := []string{
		stringAt(record, "timestamp"),
		stringAt(record, "session_id"),
		speakerCell(record),
		stringAt(record, "action"),
		messageCell(record),
	}
	if c.format == CSVReadable {
		return row
	}
	docs := documentList(record)
	retrievedCount := ""
	if docs != nil {
		retrievedCount = fmt.Sprint(len(docs))
	}
	return append(row,
		firstOf(stringAt(record, "extensions", "model"), stringAt(record, "provenance", "model")),
		stringAt(record, "metrics", "tokens", "prompt"),
		stringAt(record, "metrics", "tokens", "completion"),
		stringAt(record, "metrics", "cost_usd"),
		firstOf(stringAt(record, "metrics", "latency_ms"), stringAt(record, "extensions", "latency_ms")),
		stringAt(record, "extensions", "status_code"),
		retrievedCount,
		documentSources(docs),
	)
}

// convertFlat buffers the whole input: the header cannot be written until
// every column has been discovered.
func (c *CSVConverter) convertFlat(source *os.File, inputPath, outputPath string) (int, error) {
	fieldnames := append([]string(nil), flatDefaultColumns...)
	if len(c.columns) > 0 {
		fieldnames = append([]string(nil), c.columns...)
	}
	seen := make(map[string]bool, len(fieldnames))
	for _, name := range fieldnames {
		seen[name] = true
	}

	var rows []map[string]string
	err := eachLine(source, func(lineNum int, line []byte) error {
		obj, err := parseOrderedObject(line)
		if err != nil {
			return &internal.LineError{Line: lineNum, Err: err}
		}
		keys, cells, err := flattenObject(obj)
		if err != nil {
			return &internal.LineError{Line: lineNum, Err: err}
		}
		if len(c.columns) == 0 {
			for _, key := range keys {
				if !seen[key] {
					seen[key] = true
					fieldnames = append(fieldnames, key)
				}
			}
		}
		rows = append(rows, cells)
		return nil
	})
	if err != nil {
		return 0, err
	}

	destination, err := os.Create(outputPath)
	if err != nil {
		return 0, &internal.SessionIOError{Op: "open", Path: outputPath, Err: err}
	}
	defer destination.Close()

	writer := csv.NewWriter(destination)
	if err := writer.Write(fieldnames); err != nil {
		return 0, &internal.SessionIOError{Op: "write", Path: outputPath, Err: err}
	}
	record := make([]string, len(fieldnames))
	for _, cells := range rows {
		for i, name := range fieldnames {
			record[i] = cells[name]
		}
		if err := writer.Write(record); err != nil {
			return 0, &internal.SessionIOError{Op: "write", Path: outputPath, Err: err}
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return 0, &internal.SessionIOError{Op: "write", Path: outputPath, Err: err}
	}
	internal.LogDebug("csv flat: wrote %d events across %d columns to %s", len(rows), len(fieldnames), outputPath)
	return len(rows), nil
}

// eachLine walks non-blank lines, numbering them from 1 like the read path.
func eachLine(source *os.File, fn func(lineNum int, line []byte) error) error {
	scanner := bufio.NewScanner(source)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := fn(lineNum, []byte(line)); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return &internal.SessionIOError{Op: "read", Path: source.Name(), Err: err}
	}
	return nil
}

func decodeRecord(line []byte) (map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(string(line)))
	dec.UseNumber()
	var record map[string]any
	if err := dec.Decode(&record); err != nil {
		return nil, err
	}
	return record, nil
}

func speakerCell(record map[string]any) string {
	actorType := stringAt(record, "actor", "type")
	actorID := stringAt(record, "actor", "id")
	if actorType == "" && actorID == "" {
		return ""
	}
	label := actorType
	if actorID != "" {
		label = actorType + ": " + actorID
	}
	if emoji, ok := speakerEmoji[actorType]; ok {
		return emoji + " " + label
	}
	return label
}

func messageCell(record map[string]any) string {
	text := stringAt(record, "content", "text")
	if text == "" {
		return ""
	}
	normalized := strings.Join(strings.Fields(text), " ")
	return internal.TruncateText(normalized, internal.MaxMessageLen)
}

func documentList(record map[string]any) []any {
	if docs, ok := lookup(record, "extensions", "documents").([]any); ok {
		return docs
	}
	if docs, ok := lookup(record, "provenance", "documents").([]any); ok {
		return docs
	}
	return nil
}

func documentSources(docs []any) string {
	var sources []string
	for _, doc := range docs {
		if m, ok := doc.(map[string]any); ok {
			if source := scalarString(m["source"]); source != "" {
				sources = append(sources, source)
			}
		}
	}
	return strings.Join(sources, ";")
}

func lookup(record map[string]any, path ...string) any {
	var current any = record
	for _, key := range path {
		m, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current, ok = m[key]
		if !ok {
			return nil
		}
	}
	return current
}

func stringAt(record map[string]any, path ...string) string {
	return scalarString(lookup(record, path...))
}

func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
