package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	EnvProduction  = "production"
	EnvDevelopment = "development"
)

// Config holds process settings resolved from the environment.
type Config struct {
	Env            string
	HTTPAddr       string
	GRPCAddr       string
	PGDSN          string
	JWTSecret      string
	FrontendURL    string
	RedisURL       string
	StationsSeed   string
	RateBurst      int
	RatePerSec     int
	SweepInterval  time.Duration
	HealthInterval time.Duration
	Twilio         Twilio
}

// Twilio carries SMS gateway credentials. All three must be set for codes to
// be sent.
type Twilio struct {
	AccountSID string
	AuthToken  string
	From       string
}

// Configured reports whether every credential is present.
func (t Twilio) Configured() bool {
	return t.AccountSID != "" && t.AuthToken != "" && t.From != ""
}

// Production reports whether the service runs with production semantics.
func (c Config) Production() bool { return c.Env == EnvProduction }

// Load reads an optional .env file and then the process environment. Values
// already present in the environment win over the file.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	var errs []error
	cfg := Config{
		Env:          strings.ToLower(getenv("SPCS_ENV", EnvDevelopment)),
		HTTPAddr:     getenv("SPCS_HTTP_ADDR", ":5175"),
		GRPCAddr:     os.Getenv("SPCS_GRPC_ADDR"),
		PGDSN:        strings.TrimSpace(os.Getenv("SPCS_PG_DSN")),
		JWTSecret:    strings.TrimSpace(os.Getenv("SPCS_JWT_SECRET")),
		FrontendURL:  strings.TrimSpace(os.Getenv("SPCS_FRONTEND_URL")),
		RedisURL:     strings.TrimSpace(os.Getenv("SPCS_REDIS_URL")),
		StationsSeed: strings.TrimSpace(os.Getenv("SPCS_STATIONS_SEED_FILE")),
		Twilio: Twilio{
			AccountSID: strings.TrimSpace(os.Getenv("TWILIO_ACCOUNT_SID")),
			AuthToken:  strings.TrimSpace(os.Getenv("TWILIO_AUTH_TOKEN")),
			From:       strings.TrimSpace(os.Getenv("TWILIO_PHONE_NUMBER")),
		},
	}
	if _, ok := os.LookupEnv("SPCS_GRPC_ADDR"); !ok {
		cfg.GRPCAddr = ":9091"
	}
	cfg.RateBurst = getenvInt("SPCS_RATE_BURST", 20, &errs)
	cfg.RatePerSec = getenvInt("SPCS_RATE_PER_SEC", 10, &errs)
	cfg.SweepInterval = getenvDuration("SPCS_SWEEP_INTERVAL", time.Minute, &errs)
	cfg.HealthInterval = getenvDuration("SPCS_HEALTH_INTERVAL", 10*time.Second, &errs)
	if len(errs) > 0 {
		return Config{}, errors.Join(errs...)
	}
	return cfg, nil
}

// Validate refuses configurations the service cannot start with.
func (c Config) Validate() error {
	var errs []error
	if c.PGDSN == "" {
		errs = append(errs, errors.New("SPCS_PG_DSN is required"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("SPCS_JWT_SECRET is required"))
	}
	if c.Env != EnvProduction && c.Env != EnvDevelopment {
		errs = append(errs, fmt.Errorf("SPCS_ENV must be %q or %q, got %q", EnvProduction, EnvDevelopment, c.Env))
	}
	if c.HTTPAddr == "" {
		errs = append(errs, errors.New("SPCS_HTTP_ADDR must not be empty"))
	}
	if c.RateBurst <= 0 || c.RatePerSec <= 0 {
		errs = append(errs, errors.New("rate limit settings must be positive"))
	}
	if c.SweepInterval <= 0 {
		errs = append(errs, errors.New("SPCS_SWEEP_INTERVAL must be positive"))
	}
	if c.HealthInterval <= 0 {
		errs = append(errs, errors.New("SPCS_HEALTH_INTERVAL must be positive"))
	}
	return errors.Join(errs...)
}

// AllowedOrigins lists browser origins permitted besides localhost.
func (c Config) AllowedOrigins() []string {
	if c.FrontendURL == "" {
		return nil
	}
	var res []string
	for _, o := range strings.Split(c.FrontendURL, ",") {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			res = append(res, o)
		}
	}
	return res
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int, errs *[]error) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return v
}

func getenvDuration(key string, def time.Duration, errs *[]error) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return v
}
