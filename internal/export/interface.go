package export

import (
	"github.com/hiltio/hilt/internal"
)

// Converter transforms a full-fidelity JSONL log into a columnar file.
// Conversion is all-or-nothing: the first malformed source line fails the
// whole operation.
type Converter interface {
	// Convert reads the source log and writes the destination file,
	// returning the number of events converted.
	Convert(inputPath, outputPath string) (int, error)
	// Extension returns the destination file extension, dot included.
	Extension() string
}

// Options selects the conversion behavior per target format.
type Options struct {
	CSVFormat   string   // readable (default), detailed, flat
	Columns     []string // flat mode: restrict output to these flattened keys
	Compression string   // parquet codec: snappy (default), gzip, none
}

// NewConverter creates a converter for the target format. Unsupported
// targets, CSV formats and compression codecs fail here, before any I/O.
func NewConverter(target string, opts Options) (Converter, error) {
	switch target {
	case "csv":
		return NewCSVConverter(opts.CSVFormat, opts.Columns)
	case "parquet":
		return NewParquetConverter(opts.Compression)
	default:
		return nil, &internal.ConfigError{Setting: "target format", Invalid: []string{target}}
	}
}
