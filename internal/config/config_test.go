package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var keys = []string{
	"SPCS_ENV", "SPCS_HTTP_ADDR", "SPCS_GRPC_ADDR", "SPCS_PG_DSN", "SPCS_JWT_SECRET",
	"SPCS_FRONTEND_URL", "SPCS_REDIS_URL", "SPCS_STATIONS_SEED_FILE", "SPCS_RATE_BURST",
	"SPCS_RATE_PER_SEC", "SPCS_SWEEP_INTERVAL", "SPCS_HEALTH_INTERVAL",
	"TWILIO_ACCOUNT_SID", "TWILIO_AUTH_TOKEN", "TWILIO_PHONE_NUMBER",
}

// clearEnv unsets every key for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func missingFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "absent.env")
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(missingFile(t))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":5175" || cfg.GRPCAddr != ":9091" {
		t.Fatalf("unexpected addresses %q %q", cfg.HTTPAddr, cfg.GRPCAddr)
	}
	if cfg.Env != EnvDevelopment || cfg.Production() {
		t.Fatalf("expected development env, got %q", cfg.Env)
	}
	if cfg.RateBurst != 20 || cfg.RatePerSec != 10 || cfg.SweepInterval != time.Minute {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation failure without dsn and secret")
	}
}

func TestLoadFromFileAndEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	file := filepath.Join(dir, ".env")
	body := "SPCS_PG_DSN=postgres://spcs@localhost/spcs\nSPCS_JWT_SECRET=file-secret\nSPCS_ENV=production\n"
	if err := os.WriteFile(file, []byte(body), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}
	t.Setenv("SPCS_JWT_SECRET", "env-secret")
	t.Setenv("SPCS_GRPC_ADDR", "")
	t.Setenv("SPCS_SWEEP_INTERVAL", "30s")
	t.Setenv("TWILIO_ACCOUNT_SID", "AC1")
	t.Setenv("TWILIO_AUTH_TOKEN", "tok")
	t.Setenv("TWILIO_PHONE_NUMBER", "+15550001111")

	cfg, err := Load(file)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.PGDSN != "postgres://spcs@localhost/spcs" {
		t.Fatalf("dsn from file not applied: %q", cfg.PGDSN)
	}
	if cfg.JWTSecret != "env-secret" {
		t.Fatalf("environment should win over file, got %q", cfg.JWTSecret)
	}
	if cfg.GRPCAddr != "" {
		t.Fatalf("explicit empty grpc addr should disable it, got %q", cfg.GRPCAddr)
	}
	if !cfg.Production() || cfg.SweepInterval != 30*time.Second {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if !cfg.Twilio.Configured() {
		t.Fatalf("twilio should be configured")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestLoadRejectsMalformedNumbers(t *testing.T) {
	clearEnv(t)
	t.Setenv("SPCS_RATE_BURST", "many")
	t.Setenv("SPCS_SWEEP_INTERVAL", "soon")

	_, err := Load(missingFile(t))
	if err == nil {
		t.Fatalf("expected parse errors")
	}
	if !strings.Contains(err.Error(), "SPCS_RATE_BURST") || !strings.Contains(err.Error(), "SPCS_SWEEP_INTERVAL") {
		t.Fatalf("errors should name both keys: %v", err)
	}
}

func TestValidateEnv(t *testing.T) {
	cfg := Config{
		Env: "staging", HTTPAddr: ":1", PGDSN: "x", JWTSecret: "y",
		RateBurst: 1, RatePerSec: 1, SweepInterval: time.Second, HealthInterval: time.Second,
	}
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "SPCS_ENV") {
		t.Fatalf("expected env error, got %v", err)
	}
}

func TestAllowedOrigins(t *testing.T) {
	cfg := Config{FrontendURL: "https://spcs.example.org/, https://ops.example.org"}
	got := cfg.AllowedOrigins()
	if len(got) != 2 || got[0] != "https://spcs.example.org" || got[1] != "https://ops.example.org" {
		t.Fatalf("unexpected origins %v", got)
	}
	if (Config{}).AllowedOrigins() != nil {
		t.Fatalf("empty frontend url should yield no origins")
	}
}

func TestValidateRejectsZeroHealthInterval(t *testing.T) {
	clearEnv(t)
	t.Setenv("SPCS_PG_DSN", "postgres://spcs@localhost/spcs")
	t.Setenv("SPCS_JWT_SECRET", "secret")
	t.Setenv("SPCS_HEALTH_INTERVAL", "0s")

	cfg, err := Load(missingFile(t))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "SPCS_HEALTH_INTERVAL") {
		t.Fatalf("expected health interval error, got %v", err)
	}
	cfg.HealthInterval = 5 * time.Second
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}
