package export

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"

	"github.com/hiltio/hilt/internal"
)

// parquetBatchSize bounds peak memory: the source streams through
// fixed-size batches, one row group each, instead of loading whole files.
const parquetBatchSize = 1024

// parquetRow is the fixed target schema. event_id is the only non-null
// column; every other field is optional. The timestamp annotation requires
// a concrete time.Time, so absence is the zero value rather than a nil
// pointer; the optional marker stores it as null.
type parquetRow struct {
	EventID            string    `parquet:"event_id"`
	Timestamp          time.Time `parquet:"timestamp,optional,timestamp(millisecond)"`
	SessionID          *string   `parquet:"session_id,optional"`
	ActorType          *string   `parquet:"actor_type,optional"`
	ActorID            *string   `parquet:"actor_id,optional"`
	Action             *string   `parquet:"action,optional"`
	ContentText        *string   `parquet:"content_text,optional"`
	MetricsTokensTotal *int64    `parquet:"metrics_tokens_total,optional"`
	MetricsCostUSD     *float64  `parquet:"metrics_cost_usd,optional"`
}

// ParquetConverter writes a log as a Parquet file with a selectable
// compression codec.
type ParquetConverter struct {
	codec compress.Codec
}

// NewParquetConverter validates the codec up front. The default is snappy;
// "none" maps to uncompressed storage.
func NewParquetConverter(compression string) (*ParquetConverter, error) {
	switch strings.ToLower(compression) {
	case "", "snappy":
		return &ParquetConverter{codec: &parquet.Snappy}, nil
	case "gzip":
		return &ParquetConverter{codec: &parquet.Gzip}, nil
	case "none":
		return &ParquetConverter{codec: &parquet.Uncompressed}, nil
	}
	return nil, &internal.ConfigError{Setting: "compression", Invalid: []string{compression}}
}

// Extension returns ".parquet".
func (c *ParquetConverter) Extension() string {
	return ".parquet"
}

// Convert reads the JSONL source and writes one row group per batch to the
// destination. Missing event ids and unparseable timestamps are hard
// errors; conversion is all-or-nothing.
func (c *ParquetConverter) Convert(inputPath, outputPath string) (int, error) {
	source, err := os.Open(inputPath)
	if err != nil {
		return 0, &internal.SessionIOError{Op: "open", Path: inputPath, Err: err}
	}
	defer source.Close()

	destination, err := os.Create(outputPath)
	if err != nil {
		return 0, &internal.SessionIOError{Op: "open", Path: outputPath, Err: err}
	}
	defer destination.Close()

	writer := parquet.NewGenericWriter[parquetRow](destination, parquet.Compression(c.codec))

	count := 0
	batch := make([]parquetRow, 0, parquetBatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if _, err := writer.Write(batch); err != nil {
			return &internal.SessionIOError{Op: "write", Path: outputPath, Err: err}
		}
		if err := writer.Flush(); err != nil {
			return &internal.SessionIOError{Op: "write", Path: outputPath, Err: err}
		}
		internal.LogDebug("parquet: wrote row group (%d rows)", len(batch))
		batch = batch[:0]
		return nil
	}

	err = eachLine(source, func(lineNum int, line []byte) error {
		record, err := decodeRecord(line)
		if err != nil {
			return &internal.LineError{Line: lineNum, Err: err}
		}
		row, err := buildParquetRow(record)
		if err != nil {
			return &internal.LineError{Line: lineNum, Err: err}
		}
		batch = append(batch, row)
		count++
		if len(batch) >= parquetBatchSize {
			return flush()
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if err := flush(); err != nil {
		return 0, err
	}
	if err := writer.Close(); err != nil {
		return 0, &internal.SessionIOError{Op: "write", Path: outputPath, Err: err}
	}
	return count, nil
}

func buildParquetRow(record map[string]any) (parquetRow, error) {
	var row parquetRow

	eventID := scalarString(record["event_id"])
	if eventID == "" {
		return row, fmt.Errorf("record is missing required field 'event_id'")
	}
	row.EventID = eventID

	ts, err := timestampValue(record["timestamp"])
	if err != nil {
		return row, err
	}
	row.Timestamp = ts

	row.SessionID = optionalString(record["session_id"])
	row.ActorType = optionalString(lookup(record, "actor", "type"))
	row.ActorID = optionalString(lookup(record, "actor", "id"))
	row.Action = optionalString(record["action"])
	row.ContentText = contentText(record["content"])

	total, err := optionalInt(lookup(record, "metrics", "tokens", "total"))
	if err != nil {
		return row, fmt.Errorf("invalid metrics.tokens.total: %w", err)
	}
	row.MetricsTokensTotal = total

	cost, err := optionalFloat(lookup(record, "metrics", "cost_usd"))
	if err != nil {
		return row, fmt.Errorf("invalid metrics.cost_usd: %w", err)
	}
	row.MetricsCostUSD = cost

	return row, nil
}

// timestampValue normalizes a timestamp string to a UTC instant. Absent
// and blank timestamps stay null via the zero value; anything unparseable
// is a hard error naming the value.
func timestampValue(value any) (time.Time, error) {
	if value == nil {
		return time.Time{}, nil
	}
	text, ok := value.(string)
	if !ok {
		return time.Time{}, fmt.Errorf("expected timestamp to be a string, got %T", value)
	}
	if strings.TrimSpace(text) == "" {
		return time.Time{}, nil
	}
	parsed, err := internal.ParseTimestamp(text)
	if err != nil {
		return time.Time{}, err
	}
	return parsed, nil
}

func contentText(value any) *string {
	switch v := value.(type) {
	case map[string]any:
		return optionalString(v["text"])
	case string:
		return &v
	}
	return nil
}

func optionalString(value any) *string {
	if value == nil {
		return nil
	}
	s := scalarString(value)
	return &s
}

func optionalInt(value any) (*int64, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return &n, nil
		}
		f, err := v.Float64()
		if err != nil {
			return nil, fmt.Errorf("invalid integer value: %s", v)
		}
		n := int64(f)
		return &n, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, nil
		}
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return &n, nil
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid integer value: %s", v)
		}
		n := int64(f)
		return &n, nil
	case bool:
		n := int64(0)
		if v {
			n = 1
		}
		return &n, nil
	}
	return nil, fmt.Errorf("invalid integer value: %v", value)
}

func optionalFloat(value any) (*float64, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return nil, fmt.Errorf("invalid float value: %s", v)
		}
		return &f, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, nil
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid float value: %s", v)
		}
		return &f, nil
	}
	return nil, fmt.Errorf("invalid float value: %v", value)
}
