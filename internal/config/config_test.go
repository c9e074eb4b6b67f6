package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseFull(t *testing.T) {
	cfg, err := Parse([]byte(`
log:
  level: debug
  format: json
inventory:
  source: sqlite
  path: /var/lib/ce/inventory.db
  seed_path: inventory.yaml
interfaces_path: interfaces.yaml
metrics_addr: "localhost:9100"
tracing:
  enabled: true
  exporter: otlp
  endpoint: collector:4317
  sample_ratio: 0.25
`))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if cfg.Inventory.Source != SourceSQLite || cfg.Inventory.SeedPath != "inventory.yaml" {
		t.Fatalf("inventory = %+v", cfg.Inventory)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Fatalf("log = %+v", cfg.Log)
	}
	if !cfg.Tracing.Enabled || cfg.Tracing.SampleRatio != 0.25 || cfg.Tracing.ServiceName != "ce-inventory" {
		t.Fatalf("tracing = %+v", cfg.Tracing)
	}
	if cfg.MetricsAddr != "localhost:9100" {
		t.Fatalf("metrics_addr = %q", cfg.MetricsAddr)
	}
}

func TestParseEmptyUsesDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	def := Default()
	if cfg.Inventory != def.Inventory || cfg.MetricsAddr != ":9090" {
		t.Fatalf("defaults = %+v, want %+v", cfg, def)
	}
	if cfg.Inventory.Source != SourceYAML || cfg.Inventory.Path != "./inventory.yaml" {
		t.Fatalf("inventory defaults = %+v", cfg.Inventory)
	}
}

func TestParseSQLiteDefaultPath(t *testing.T) {
	cfg, err := Parse([]byte("inventory:\n  source: sqlite\n"))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if cfg.Inventory.Path != "./ce-inventory.db" {
		t.Fatalf("sqlite default path = %q", cfg.Inventory.Path)
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	cases := map[string]struct {
		yaml string
		want string
	}{
		"bad source":    {"inventory:\n  source: postgres\n", "Inventory.Source"},
		"bad level":     {"log:\n  level: loud\n", "Log.Level"},
		"bad exporter":  {"tracing:\n  exporter: zipkin\n", "Tracing.Exporter"},
		"bad ratio":     {"tracing:\n  sample_ratio: 3\n", "Tracing.SampleRatio"},
		"bad addr":      {"metrics_addr: nope\n", "MetricsAddr"},
		"unknown field": {"bogus: true\n", "bogus"},
		"bad yaml":      {"log: [\n", "parse config"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(tc.yaml))
			if err == nil {
				t.Fatalf("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ce.yaml")
	if err := os.WriteFile(path, []byte("interfaces_path: ifaces.yaml\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.InterfacesPath != "ifaces.yaml" {
		t.Fatalf("interfaces_path = %q", cfg.InterfacesPath)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestLoadSampleConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "ce-inventory.yaml"))
	if err != nil {
		t.Fatalf("Load sample config: %v", err)
	}
	if cfg.Inventory.Source != SourceYAML || cfg.InterfacesPath == "" {
		t.Fatalf("sample config = %+v", cfg)
	}
}
