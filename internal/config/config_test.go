package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestForProfile_Canonical(t *testing.T) {
	b, err := ForProfile(Baseline)
	if err != nil {
		t.Fatalf("baseline: %v", err)
	}
	if b.CCS.ThetaLow != 0.40 || b.CCS.ThetaHigh != 0.70 || b.CCS.MinDwellMs != 2000 {
		t.Errorf("baseline thresholds wrong: %+v", b.CCS)
	}

	p, err := ForProfile(Phase1)
	if err != nil {
		t.Fatalf("phase1: %v", err)
	}
	if p.CCS.ThetaLow != 0.15 || p.CCS.ThetaHigh != 0.35 || p.CCS.MinDwellMs != 1000 {
		t.Errorf("phase1 thresholds wrong: %+v", p.CCS)
	}
	if p.Calibration.Temperature != 0.7320 || p.Calibration.TauUnknown != 0.58 {
		t.Errorf("calibration wrong: %+v", p.Calibration)
	}
	if p.CCS.WindowSize != 10 || p.Model.NumClasses != 12 || p.Model.UnknownClassID != 12 {
		t.Errorf("dimensions wrong: %+v %+v", p.CCS, p.Model)
	}
	if p.BLE.WatchdogMs() != 4000 {
		t.Errorf("expected watchdog 4000ms, got %d", p.BLE.WatchdogMs())
	}
}

func TestForProfile_Unknown(t *testing.T) {
	_, err := ForProfile("phase2")
	var ce *ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
	if ce.Field != "profile" {
		t.Errorf("expected field profile, got %s", ce.Field)
	}
}

func TestValidate_Violations(t *testing.T) {
	cases := []struct {
		name  string
		mod   func(*Config)
		field string
	}{
		{"alpha+beta", func(c *Config) { c.CCS.Beta = 0.5 }, "ccs.alpha/beta"},
		{"theta order", func(c *Config) { c.CCS.ThetaLow = 0.5; c.CCS.ThetaHigh = 0.5 }, "ccs.theta"},
		{"theta range", func(c *Config) { c.CCS.ThetaHigh = 1.2 }, "ccs.theta"},
		{"window", func(c *Config) { c.CCS.WindowSize = 0 }, "ccs.window_size"},
		{"dwell", func(c *Config) { c.CCS.MinDwellMs = -1 }, "ccs.min_dwell_ms"},
		{"temperature", func(c *Config) { c.Calibration.Temperature = 0 }, "calibration.temperature"},
		{"tau", func(c *Config) { c.Calibration.TauUnknown = 1.5 }, "calibration.tau_unknown"},
		{"interval", func(c *Config) { c.BLE.IntervalActive = 0 }, "ble.interval_active"},
		{"stability", func(c *Config) { c.CCS.Stability = "entropy" }, "ccs.stability"},
		{"margin", func(c *Config) { c.CCS.HysteresisMargin = 0.5 }, "ccs.hysteresis_margin"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mod(&cfg)
			err := cfg.Validate()
			var ce *ConfigError
			if !errors.As(err, &ce) {
				t.Fatalf("expected ConfigError, got %v", err)
			}
			if ce.Field != tc.field {
				t.Errorf("expected field %s, got %s", tc.field, ce.Field)
			}
		})
	}
}

func TestLoadFile_Missing(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "none.toml"), Baseline)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.CCS.ThetaLow != 0.40 {
		t.Errorf("expected baseline values, got %+v", cfg.CCS)
	}
}

func TestLoadFile_Overlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ccs.toml")
	body := `
[ccs]
min_dwell_ms = 0
stability = "transitions"

[ble]
interval_active = 50
`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := LoadFile(path, Phase1)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.CCS.MinDwellMs != 0 {
		t.Errorf("expected dwell 0, got %d", cfg.CCS.MinDwellMs)
	}
	if cfg.CCS.Stability != StabilityTransitions {
		t.Errorf("expected transitions, got %s", cfg.CCS.Stability)
	}
	if cfg.BLE.IntervalActive != 50 {
		t.Errorf("expected 50ms, got %d", cfg.BLE.IntervalActive)
	}
	// untouched keys keep the profile value
	if cfg.CCS.ThetaHigh != 0.35 {
		t.Errorf("expected theta_high 0.35, got %f", cfg.CCS.ThetaHigh)
	}
}

func TestLoadFile_ConflictingProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ccs.toml")
	if err := os.WriteFile(path, []byte(`profile = "baseline"`), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := LoadFile(path, Phase1)
	var ce *ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConfigError for two active profiles, got %v", err)
	}
}

func TestLoadFile_InvalidOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ccs.toml")
	if err := os.WriteFile(path, []byte("[ccs]\nalpha = 0.9\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := LoadFile(path, Phase1)
	var ce *ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
}

func TestLoadFile_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ccs.toml")
	if err := os.WriteFile(path, []byte("[ccs\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadFile(path, Phase1); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestWriteTOML_RoundTrip(t *testing.T) {
	want := MustProfile(Phase1)
	want.CCS.MinDwellMs = 250
	want.BLE.IntervalActive = 50

	path := filepath.Join(t.TempDir(), "out.toml")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := WriteTOML(f, want); err != nil {
		t.Fatalf("WriteTOML: %v", err)
	}
	f.Close()

	got, err := LoadFile(path, Phase1)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if got != want {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, want)
	}
}
