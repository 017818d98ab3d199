package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-kratos/kratos/v2/log"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := loadDefaults()
	if err != nil {
		t.Fatalf("loadDefaults: %v", err)
	}
	if len(cfg.Sources) == 0 {
		t.Error("expected at least one default source")
	}
	if cfg.Mode != ModeSimple {
		t.Errorf("expected default mode simple, got %q", cfg.Mode)
	}
	if cfg.PageSize != 8 {
		t.Errorf("expected default page size 8, got %d", cfg.PageSize)
	}
	if cfg.Layout.MinWidth != 236 || cfg.Layout.FooterHeight != 40 || cfg.Layout.Gap != 20 {
		t.Errorf("unexpected default layout: %+v", cfg.Layout)
	}
	if len(cfg.Placeholder.Ratios) == 0 {
		t.Error("expected default placeholder ratios")
	}
}

func TestMeasureTimeoutDuration(t *testing.T) {
	tests := []struct {
		input string
		want  time.Duration
	}{
		{"3s", 3 * time.Second},
		{"250ms", 250 * time.Millisecond},
		{"", 8 * time.Second},
		{"invalid", 8 * time.Second},
		{"-1s", 8 * time.Second},
	}
	for _, tt := range tests {
		cfg := &Config{Measure: Measure{Timeout: tt.input}}
		if got := cfg.MeasureTimeoutDuration(); got != tt.want {
			t.Errorf("MeasureTimeoutDuration(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestImportIntervalDuration(t *testing.T) {
	tests := []struct {
		input string
		want  time.Duration
	}{
		{"6h", 6 * time.Hour},
		{"", 24 * time.Hour},
		{"often", 24 * time.Hour},
	}
	for _, tt := range tests {
		cfg := &Config{ImportInterval: tt.input}
		if got := cfg.ImportIntervalDuration(); got != tt.want {
			t.Errorf("ImportIntervalDuration(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestRetentionDuration(t *testing.T) {
	tests := []struct {
		input string
		want  time.Duration
	}{
		{"7d", 7 * 24 * time.Hour},
		{"48h", 48 * time.Hour},
		{"", 30 * 24 * time.Hour},
		{"forever", 30 * 24 * time.Hour},
	}
	for _, tt := range tests {
		cfg := &Config{Retention: tt.input}
		if got := cfg.RetentionDuration(); got != tt.want {
			t.Errorf("RetentionDuration(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestAccessorDefaults(t *testing.T) {
	cfg := &Config{}
	if got := cfg.PageSizeOrDefault(); got != 8 {
		t.Errorf("expected page size 8, got %d", got)
	}
	if got := cfg.ReferenceWidth(); got != 236 {
		t.Errorf("expected reference width 236, got %v", got)
	}
	if got := cfg.SkeletonCount(); got != 12 {
		t.Errorf("expected skeleton count 12, got %d", got)
	}
	cfg.Threshold = -3
	if got := cfg.ThresholdOrDefault(); got != 0 {
		t.Errorf("expected negative threshold clamped to 0, got %d", got)
	}
}

func TestEnabledSources(t *testing.T) {
	cfg := &Config{
		Sources: []Source{
			{Name: "A", Enabled: true},
			{Name: "B", Enabled: false},
			{Name: "C", Enabled: true},
		},
	}
	enabled := cfg.EnabledSources()
	if len(enabled) != 2 {
		t.Fatalf("expected 2 enabled sources, got %d", len(enabled))
	}
	if enabled[0].Name != "A" || enabled[1].Name != "C" {
		t.Errorf("unexpected enabled sources: %v", enabled)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	content := `mode: custom
page_size: 12
layout:
  min_width: 200
sources:
  - name: Test
    type: rss
    url: https://example.com/feed
    enabled: true
`
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Mode != ModeCustom {
		t.Errorf("expected custom mode, got %s", cfg.Mode)
	}
	if cfg.PageSize != 12 {
		t.Errorf("expected page size 12, got %d", cfg.PageSize)
	}
	if cfg.ReferenceWidth() != 200 {
		t.Errorf("expected reference width 200, got %v", cfg.ReferenceWidth())
	}
	if len(cfg.Sources) != 1 || cfg.Sources[0].Name != "Test" {
		t.Errorf("expected only the user source, got %v", cfg.Sources)
	}
	// Keys missing from the file keep their defaults.
	if len(cfg.Placeholder.Ratios) == 0 {
		t.Error("expected default ratios to survive a partial config")
	}
	if cfg.Measure.Timeout != "8s" {
		t.Errorf("expected default measure timeout, got %q", cfg.Measure.Timeout)
	}
}

func TestLoadNonexistentFallsBackToDefaults(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "sub", "config.yaml")

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Sources) == 0 {
		t.Error("expected default sources when config doesn't exist")
	}
	if _, err := os.Stat(cfgPath); err != nil {
		t.Errorf("expected defaults written to %s: %v", cfgPath, err)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PINFEED_MODE", "direct")
	t.Setenv("PINFEED_CATALOG", "/tmp/pins.db")

	cfg, err := Load(filepath.Join(t.TempDir(), "config.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Mode != ModeDirect {
		t.Errorf("expected env mode override, got %q", cfg.Mode)
	}
	if cfg.CatalogPath() != "/tmp/pins.db" {
		t.Errorf("expected env catalog override, got %q", cfg.CatalogPath())
	}
}

func TestLoadRejectsUnknownModeFromEnv(t *testing.T) {
	t.Setenv("PINFEED_MODE", "fancy")
	if _, err := Load(filepath.Join(t.TempDir(), "config.yaml")); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestValidateMissingName(t *testing.T) {
	cfg := &Config{Mode: ModeSimple, Sources: []Source{{Type: "rss", URL: "https://example.com"}}}
	if err := validate(cfg); err == nil {
		t.Error("expected error for missing name")
	}
}

func TestValidateInvalidType(t *testing.T) {
	cfg := &Config{Mode: ModeSimple, Sources: []Source{{Name: "Test", Type: "json", URL: "https://example.com"}}}
	if err := validate(cfg); err == nil {
		t.Error("expected error for invalid type")
	}
}

func TestValidateInvalidURLScheme(t *testing.T) {
	cfg := &Config{Mode: ModeSimple, Sources: []Source{{Name: "Test", Type: "rss", URL: "file:///etc/passwd"}}}
	if err := validate(cfg); err == nil {
		t.Error("expected error for file:// URL scheme")
	}
}

func TestValidateRatios(t *testing.T) {
	cfg := &Config{Mode: ModeSimple, Placeholder: Placeholder{Ratios: []float64{1.2, 0}}}
	if err := validate(cfg); err == nil {
		t.Error("expected error for zero ratio")
	}
}

func TestNewLoggerFiltersLevel(t *testing.T) {
	var buf bytes.Buffer
	cfg := &Config{LogLevel: "warn"}
	logger := cfg.NewLogger(&buf)

	_ = logger.Log(log.LevelDebug, "msg", "dropped")
	_ = logger.Log(log.LevelWarn, "msg", "kept")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Errorf("expected debug record filtered, got %q", out)
	}
	if !strings.Contains(out, "kept") {
		t.Errorf("expected warn record written, got %q", out)
	}
}
