package config // package config loads application configuration from environment variables

import (
	"errors"  // errors joins configuration problems into one report
	"fmt"     // fmt formats error messages
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
	"strings" // strings splits list-valued variables
	"time"    // time parses durations

	"github.com/joho/godotenv" // godotenv loads a local .env file when present
)

// Store drivers accepted in STORE_DRIVER.
const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.
type Config struct {
	Env      string // application environment (e.g. "dev", "prod")
	Port     string // HTTP port to listen on
	LogLevel string // zap level override ("debug", "info", ...)

	StoreDriver string // mysql | sqlite | memory
	SQLitePath  string // database file for the sqlite driver
	DBUser      string // database username
	DBPass      string // database password (optional)
	DBHost      string // database host address
	DBPort      string // database port number
	DBName      string // database name
	SeedFile    string // optional YAML file with initial shelters

	JWTSecret  string   // secret used to verify staff access tokens
	StaffRoles []string // roles allowed to write; empty admits any authenticated principal

	SubscriberBuffer int           // pending change events per subscriber before disconnect
	SSEKeepAlive     time.Duration // interval between SSE keepalive comments
}

// Load reads an optional .env file, then configuration values from the
// environment.  Missing required variables are reported together.
func Load() (Config, error) {
	_ = godotenv.Load() // a missing .env file is normal outside local development

	cfg := Config{
		Env:              envStr("APP_ENV", "dev"),
		Port:             envStr("APP_PORT", "8080"),
		LogLevel:         os.Getenv("LOG_LEVEL"),
		StoreDriver:      strings.ToLower(envStr("STORE_DRIVER", DriverSQLite)),
		SQLitePath:       envStr("SQLITE_PATH", "shelters.db"),
		DBUser:           os.Getenv("DB_USER"),
		DBPass:           os.Getenv("DB_PASS"), // empty allowed
		DBHost:           envStr("DB_HOST", "localhost"),
		DBPort:           envStr("DB_PORT", "3306"),
		DBName:           os.Getenv("DB_NAME"),
		SeedFile:         os.Getenv("SEED_FILE"),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		StaffRoles:       parseList(os.Getenv("STAFF_ROLES")),
		SubscriberBuffer: envInt("SUBSCRIBER_BUFFER", 100),
		SSEKeepAlive:     envDur("SSE_KEEPALIVE", 30*time.Second),
	}
	return cfg, cfg.Validate()
}

// LoadJWTSecret reads an optional .env file and returns JWT_SECRET.  It is
// for tools that sign tokens and need nothing else from the environment.
func LoadJWTSecret() (string, error) {
	_ = godotenv.Load()
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return "", errors.New("missing required env var: JWT_SECRET")
	}
	return secret, nil
}

// Validate reports every missing or inconsistent setting.
func (c Config) Validate() error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("missing required env var: JWT_SECRET"))
	}
	switch c.StoreDriver {
	case DriverMySQL:
		if c.DBUser == "" {
			errs = append(errs, errors.New("missing required env var: DB_USER"))
		}
		if c.DBName == "" {
			errs = append(errs, errors.New("missing required env var: DB_NAME"))
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			errs = append(errs, errors.New("missing required env var: SQLITE_PATH"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("invalid STORE_DRIVER %q (want mysql, sqlite or memory)", c.StoreDriver))
	}
	if c.SubscriberBuffer < 1 {
		errs = append(errs, fmt.Errorf("invalid SUBSCRIBER_BUFFER %d: must be positive", c.SubscriberBuffer))
	}
	if c.SSEKeepAlive <= 0 {
		errs = append(errs, fmt.Errorf("invalid SSE_KEEPALIVE %s: must be positive", c.SSEKeepAlive))
	}
	return errors.Join(errs...)
}

// Dev reports whether the service runs in a development environment.
func (c Config) Dev() bool { return c.Env == "dev" || c.Env == "development" }

func parseList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(strings.ToUpper(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	switch v {
	case "1", "true", "TRUE", "True", "yes", "YES", "on", "ON":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "off", "OFF":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}
