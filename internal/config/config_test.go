package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	envVars := []string{
		"RELO_PORT", "RELO_METRICS_PORT", "RELO_ADMIN_TOKEN",
		"RELO_DATABASE_URL", "RELO_EVENTS_URL", "RELO_CALENDAR_URL",
		"RELO_CALENDAR_TOKEN", "RELO_MARKET_URL", "RELO_CRM_URL",
		"RELO_MAX_JOBS_PER_DAY", "RELO_MAX_TRAVEL_MINUTES",
		"RELO_CRITICAL_MIN_SCORE", "RELO_TAX_RATE", "RELO_LOG_LEVEL",
	}
	for _, k := range envVars {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 8700 {
		t.Errorf("expected port 8700, got %d", cfg.Server.Port)
	}
	if cfg.Server.MetricsPort != 8701 {
		t.Errorf("expected metrics port 8701, got %d", cfg.Server.MetricsPort)
	}
	if cfg.Events.URL != "nats://localhost:4222" {
		t.Errorf("expected nats URL, got %s", cfg.Events.URL)
	}

	aw := cfg.Scoring.AssignmentWeights
	if sum := aw.Skill + aw.Proximity + aw.Availability + aw.Workload + aw.Performance; math.Abs(sum-1.0) > 0.001 {
		t.Errorf("assignment weights sum to %f, expected 1.0", sum)
	}
	sw := cfg.Scoring.SchedulingWeights
	if sum := sw.Skill + sw.Proximity + sw.Availability + sw.Workload + sw.Performance; math.Abs(sum-1.0) > 0.001 {
		t.Errorf("scheduling weights sum to %f, expected 1.0", sum)
	}

	if cfg.Scoring.MaxJobsPerDay != 4 {
		t.Errorf("expected max jobs 4, got %d", cfg.Scoring.MaxJobsPerDay)
	}
	if cfg.MaxTravelTime() != 75*time.Minute {
		t.Errorf("expected 75m max travel, got %s", cfg.MaxTravelTime())
	}
	if cfg.Assignment.BackupCount != 3 {
		t.Errorf("expected 3 backups, got %d", cfg.Assignment.BackupCount)
	}
	if cfg.Pricing.SearchLow != 0.85 || cfg.Pricing.SearchHigh != 1.15 || cfg.Pricing.SearchStep != 0.05 {
		t.Errorf("unexpected search bounds %f..%f step %f",
			cfg.Pricing.SearchLow, cfg.Pricing.SearchHigh, cfg.Pricing.SearchStep)
	}
	if cfg.Pricing.DiscountCapPct != 0.20 {
		t.Errorf("expected discount cap 0.20, got %f", cfg.Pricing.DiscountCapPct)
	}
	if cfg.QuoteValidity() != 7*24*time.Hour {
		t.Errorf("expected 7d validity, got %s", cfg.QuoteValidity())
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("unexpected logging defaults %s/%s", cfg.Logging.Level, cfg.Logging.Format)
	}
}

func TestLoadYAMLOverrides(t *testing.T) {
	clearEnv(t)

	yaml := `
server:
  port: 9900
scoring:
  max_jobs_per_day: 6
  max_travel_minutes: 90
pricing:
  tax_rate: 0.07
  validity_days: 14
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 9900 {
		t.Errorf("expected port 9900, got %d", cfg.Server.Port)
	}
	if cfg.Scoring.MaxJobsPerDay != 6 {
		t.Errorf("expected max jobs 6, got %d", cfg.Scoring.MaxJobsPerDay)
	}
	if cfg.MaxTravelTime() != 90*time.Minute {
		t.Errorf("expected 90m max travel, got %s", cfg.MaxTravelTime())
	}
	if cfg.Pricing.TaxRate != 0.07 {
		t.Errorf("expected tax rate 0.07, got %f", cfg.Pricing.TaxRate)
	}
	if cfg.QuoteValidity() != 14*24*time.Hour {
		t.Errorf("expected 14d validity, got %s", cfg.QuoteValidity())
	}
	// Untouched sections keep their defaults.
	if cfg.Server.MetricsPort != 8701 {
		t.Errorf("expected default metrics port, got %d", cfg.Server.MetricsPort)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("RELO_PORT", "7100")
	t.Setenv("RELO_DATABASE_URL", "postgres://env/db")
	t.Setenv("RELO_MAX_TRAVEL_MINUTES", "60")
	t.Setenv("RELO_CRITICAL_MIN_SCORE", "0.75")
	t.Setenv("RELO_LOG_LEVEL", "debug")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 7100 {
		t.Errorf("expected port 7100, got %d", cfg.Server.Port)
	}
	if cfg.Database.URL != "postgres://env/db" {
		t.Errorf("expected env database URL, got %s", cfg.Database.URL)
	}
	if cfg.MaxTravelTime() != time.Hour {
		t.Errorf("expected 60m max travel, got %s", cfg.MaxTravelTime())
	}
	if cfg.Assignment.CriticalMinScore != 0.75 {
		t.Errorf("expected critical score 0.75, got %f", cfg.Assignment.CriticalMinScore)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected debug level, got %s", cfg.Logging.Level)
	}
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Error("expected error for missing config file")
	}
}
