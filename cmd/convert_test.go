package cmd

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/hiltio/hilt/internal"
	"github.com/hiltio/hilt/internal/export"
)

const (
	testPromptLine = `{"schema_version":"1.0.0","event_id":"evt-1","timestamp":"2025-10-08T10:00:00.000Z",` +
		`"session_id":"sess_1","actor":{"type":"human","id":"alice"},"action":"prompt",` +
		`"content":{"text":"What is the answer?"}}`
	testCompletionLine = `{"schema_version":"1.0.0","event_id":"evt-2","timestamp":"2025-10-08T10:00:05.000Z",` +
		`"session_id":"sess_1","actor":{"type":"agent","id":"assistant"},"action":"completion",` +
		`"content":{"text":"The answer is 42."},` +
		`"metrics":{"latency_ms":250,"tokens":{"prompt":4,"completion":6,"total":10},"cost_usd":0.001}}`
)

func writeTestLog(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "log.jsonl")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunConvert_CSV(t *testing.T) {
	input := writeTestLog(t, testPromptLine, testCompletionLine)
	output := filepath.Join(t.TempDir(), "out.csv")

	result, err := runConvert(input, "csv", output, export.Options{})
	if err != nil {
		t.Fatalf("runConvert() error = %v", err)
	}
	if result.Events != 2 {
		t.Errorf("Events = %d, want 2", result.Events)
	}
	if result.Output != output {
		t.Errorf("Output = %q, want %q", result.Output, output)
	}
	if result.Bytes == 0 {
		t.Error("Bytes = 0, want the output file size")
	}

	f, err := os.Open(output)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Errorf("csv rows = %d, want header plus 2", len(rows))
	}
}

func TestRunConvert_Parquet(t *testing.T) {
	input := writeTestLog(t, testPromptLine, testCompletionLine)
	output := filepath.Join(t.TempDir(), "out.parquet")

	result, err := runConvert(input, "parquet", output, export.Options{Compression: "none"})
	if err != nil {
		t.Fatalf("runConvert() error = %v", err)
	}
	if result.Events != 2 {
		t.Errorf("Events = %d, want 2", result.Events)
	}
	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) < 8 || string(data[:4]) != "PAR1" {
		t.Error("output does not start with the parquet magic")
	}
}

func TestRunConvert_DefaultOutputPath(t *testing.T) {
	input := writeTestLog(t, testPromptLine)

	result, err := runConvert(input, "csv", "", export.Options{})
	if err != nil {
		t.Fatalf("runConvert() error = %v", err)
	}
	want := strings.TrimSuffix(input, ".jsonl") + ".csv"
	if result.Output != want {
		t.Errorf("Output = %q, want %q", result.Output, want)
	}
	if _, err := os.Stat(want); err != nil {
		t.Errorf("default output missing: %v", err)
	}
}

func TestRunConvert_ConfigOutputDir(t *testing.T) {
	input := writeTestLog(t, testPromptLine)
	outDir := t.TempDir()

	old := cfg
	cfg = &internal.Config{OutputDir: outDir}
	defer func() { cfg = old }()

	result, err := runConvert(input, "csv", "", export.Options{})
	if err != nil {
		t.Fatalf("runConvert() error = %v", err)
	}
	if filepath.Dir(result.Output) != outDir {
		t.Errorf("Output dir = %q, want %q", filepath.Dir(result.Output), outDir)
	}
}

func TestRunConvert_Errors(t *testing.T) {
	input := writeTestLog(t, testPromptLine)
	output := filepath.Join(t.TempDir(), "out.bin")

	if _, err := runConvert(input, "xlsx", output, export.Options{}); err == nil {
		t.Error("runConvert() accepted an unsupported target")
	}
	missing := filepath.Join(t.TempDir(), "absent.jsonl")
	if _, err := runConvert(missing, "csv", output, export.Options{}); err == nil {
		t.Error("runConvert() accepted a missing input file")
	}
}

func TestApplyConfigDefaults(t *testing.T) {
	tests := []struct {
		name string
		opts export.Options
		cfg  *internal.Config
		want export.Options
	}{
		{
			name: "nil config leaves options alone",
			opts: export.Options{CSVFormat: "flat"},
			want: export.Options{CSVFormat: "flat"},
		},
		{
			name: "unset fields filled from config",
			opts: export.Options{},
			cfg:  &internal.Config{CSVFormat: "detailed", Compression: "gzip"},
			want: export.Options{CSVFormat: "detailed", Compression: "gzip"},
		},
		{
			name: "flags win over config",
			opts: export.Options{CSVFormat: "readable", Compression: "none"},
			cfg:  &internal.Config{CSVFormat: "detailed", Compression: "gzip"},
			want: export.Options{CSVFormat: "readable", Compression: "none"},
		},
		{
			name: "configured columns default the flat column list",
			opts: export.Options{CSVFormat: "flat"},
			cfg:  &internal.Config{Columns: []string{"event_id", "action"}},
			want: export.Options{CSVFormat: "flat", Columns: []string{"event_id", "action"}},
		},
		{
			name: "configured columns do not leak into readable mode",
			opts: export.Options{CSVFormat: "readable"},
			cfg:  &internal.Config{Columns: []string{"event_id"}},
			want: export.Options{CSVFormat: "readable"},
		},
		{
			name: "explicit columns win over config",
			opts: export.Options{CSVFormat: "flat", Columns: []string{"timestamp"}},
			cfg:  &internal.Config{Columns: []string{"event_id"}},
			want: export.Options{CSVFormat: "flat", Columns: []string{"timestamp"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := applyConfigDefaults(tt.opts, tt.cfg); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("applyConfigDefaults() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestRunConvert_ConfigColumns(t *testing.T) {
	input := writeTestLog(t, testPromptLine, testCompletionLine)
	output := filepath.Join(t.TempDir(), "out.csv")

	opts := applyConfigDefaults(export.Options{CSVFormat: "flat"},
		&internal.Config{Columns: []string{"event_id", "action"}})
	if _, err := runConvert(input, "csv", output, opts); err != nil {
		t.Fatalf("runConvert() error = %v", err)
	}

	f, err := os.Open(output)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(rows[0], []string{"event_id", "action"}) {
		t.Errorf("header = %v, want the configured column list", rows[0])
	}
}

func TestSplitColumns(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{input: "", want: nil},
		{input: "a,b,c", want: []string{"a", "b", "c"}},
		{input: " a , b ", want: []string{"a", "b"}},
		{input: "a,,b", want: []string{"a", "b"}},
	}
	for _, tt := range tests {
		if got := splitColumns(tt.input); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("splitColumns(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		size int64
		want string
	}{
		{size: 0, want: "0 B"},
		{size: 512, want: "512 B"},
		{size: 2048, want: "2.0 KB"},
		{size: 5 * 1024 * 1024, want: "5.0 MB"},
	}
	for _, tt := range tests {
		if got := formatSize(tt.size); got != tt.want {
			t.Errorf("formatSize(%d) = %q, want %q", tt.size, got, tt.want)
		}
	}
}
