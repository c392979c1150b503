package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kpiforge/kpiforge/internal/config"
	"github.com/kpiforge/kpiforge/internal/sink"
)

// ---------------------------------------------------------------------------
// outPathFor tests
// ---------------------------------------------------------------------------

func TestOutPathFor(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		format   string
		compress bool
		want     string
	}{
		{"default csv", sink.DefaultCSVName, "csv", false, "provider_kpi_data.csv"},
		{"default ndjson", sink.DefaultCSVName, "ndjson", false, "provider_kpi_data.ndjson"},
		{"default ndjson compressed", sink.DefaultCSVName, "ndjson", true, "provider_kpi_data.ndjson.sz"},
		{"default parquet", sink.DefaultCSVName, "parquet", false, "provider_kpi_data.parquet"},
		{"default sqlite", sink.DefaultCSVName, "sqlite", false, "provider_kpi_data.db"},
		{"postgres has no file", sink.DefaultCSVName, "postgres", false, ""},
		{"custom path kept", "weekly.csv", "parquet", false, "weekly.csv"},
		{"custom path kept for ndjson", "out/x.ndjson", "ndjson", true, "out/x.ndjson"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := outPathFor(tt.path, tt.format, tt.compress); got != tt.want {
				t.Errorf("outPathFor(%q, %q, %v) = %q, want %q",
					tt.path, tt.format, tt.compress, got, tt.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// buildSink tests
// ---------------------------------------------------------------------------

func TestBuildSink(t *testing.T) {
	cfg := &config.Config{DatabaseURL: "postgres://localhost/kpi"}

	cfg.Format = "csv"
	s, err := buildSink(cfg, "out.csv")
	if err != nil {
		t.Fatalf("csv: %v", err)
	}
	if f, ok := s.(sink.CSVFile); !ok || f.Path != "out.csv" {
		t.Errorf("expected CSVFile{out.csv}, got %#v", s)
	}

	cfg.Format = "ndjson"
	cfg.Compress = true
	s, err = buildSink(cfg, "out.ndjson.sz")
	if err != nil {
		t.Fatalf("ndjson: %v", err)
	}
	if f, ok := s.(sink.NDJSONFile); !ok || !f.Compress {
		t.Errorf("expected compressed NDJSONFile, got %#v", s)
	}

	cfg.Format = "parquet"
	if _, err := buildSink(cfg, "out.parquet"); err != nil {
		t.Fatalf("parquet: %v", err)
	}

	cfg.Format = "sqlite"
	if _, err := buildSink(cfg, "out.db"); err != nil {
		t.Fatalf("sqlite: %v", err)
	}

	cfg.Format = "postgres"
	s, err = buildSink(cfg, "")
	if err != nil {
		t.Fatalf("postgres: %v", err)
	}
	if p, ok := s.(sink.Postgres); !ok || p.URL != cfg.DatabaseURL {
		t.Errorf("expected Postgres sink with configured URL, got %#v", s)
	}

	cfg.Format = "xml"
	if _, err := buildSink(cfg, "out.xml"); err == nil {
		t.Error("expected error for unsupported format")
	}
}

// ---------------------------------------------------------------------------
// resolveScenario tests
// ---------------------------------------------------------------------------

func TestResolveScenario_Builtin(t *testing.T) {
	cfg := &config.Config{Weeks: 26, Seed: 42}

	sc, err := resolveScenario(cfg, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sc.Name != "default" {
		t.Errorf("expected builtin scenario, got %q", sc.Name)
	}
	if sc.Weeks != 26 {
		t.Errorf("expected config weeks 26, got %d", sc.Weeks)
	}
	if sc.Seed != 42 {
		t.Errorf("expected config seed 42, got %d", sc.Seed)
	}
}

func TestResolveScenario_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scenario.yaml")
	yaml := `name: file-test
seed: 7
weeks: 10
clinics:
  - name: Clinic One
    providers:
      - name: Dr. One
measures:
  - name: Only Measure
    direction: higher
    benchmark: 0.5
    trend: flat
    base_panel: 40
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := &config.Config{ScenarioPath: path, Weeks: 52}

	// Without an explicit weeks flag the file's value stands.
	sc, err := resolveScenario(cfg, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sc.Name != "file-test" {
		t.Errorf("expected scenario name from file, got %q", sc.Name)
	}
	if sc.Weeks != 10 {
		t.Errorf("expected file weeks 10, got %d", sc.Weeks)
	}
	if sc.Seed != 7 {
		t.Errorf("expected file seed 7, got %d", sc.Seed)
	}

	// An explicit weeks flag overrides the file.
	cfg.Weeks = 3
	sc, err = resolveScenario(cfg, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sc.Weeks != 3 {
		t.Errorf("expected flag weeks 3, got %d", sc.Weeks)
	}

	// Config seed overrides the file's.
	cfg.Seed = 99
	sc, err = resolveScenario(cfg, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sc.Seed != 99 {
		t.Errorf("expected config seed 99, got %d", sc.Seed)
	}
}

func TestResolveScenario_MissingFile(t *testing.T) {
	cfg := &config.Config{ScenarioPath: filepath.Join(t.TempDir(), "absent.yaml"), Weeks: 52}
	if _, err := resolveScenario(cfg, false); err == nil {
		t.Error("expected error for missing scenario file")
	}
}
