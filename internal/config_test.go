package internal

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    *Config
		wantErr bool
	}{
		{
			name: "full config",
			content: `csv_format: detailed
compression: gzip
columns:
  - timestamp
  - speaker
output_dir: /tmp/exports
`,
			want: &Config{
				CSVFormat:   "detailed",
				Compression: "gzip",
				Columns:     []string{"timestamp", "speaker"},
				OutputDir:   "/tmp/exports",
			},
		},
		{
			name:    "empty file",
			content: "",
			want:    &Config{},
		},
		{
			name:    "unknown csv format",
			content: "csv_format: fancy\n",
			wantErr: true,
		},
		{
			name:    "unknown compression",
			content: "compression: zstd\n",
			wantErr: true,
		},
		{
			name:    "unknown column",
			content: "columns: [mood]\n",
			wantErr: true,
		},
		{
			name:    "not yaml",
			content: "{{{\n",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LoadConfig(writeConfig(t, tt.content))
			if (err != nil) != tt.wantErr {
				t.Fatalf("LoadConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("LoadConfig() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestLoadConfig_ExplicitPathMustExist(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("LoadConfig() succeeded for a missing explicit path")
	}
}

func TestLoadConfig_DefaultPathMayBeMissing(t *testing.T) {
	t.Setenv("HILT_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if !reflect.DeepEqual(cfg, &Config{}) {
		t.Errorf("LoadConfig() = %+v, want empty config", cfg)
	}
}

func TestDefaultConfigPath_EnvOverride(t *testing.T) {
	t.Setenv("HILT_CONFIG", "/etc/hilt.yaml")
	if got := DefaultConfigPath(); got != "/etc/hilt.yaml" {
		t.Errorf("DefaultConfigPath() = %q, want /etc/hilt.yaml", got)
	}
}
