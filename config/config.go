// Package config loads todokit settings from TOML.
//
// Files are looked up in order: an explicit path, ./todokit.toml, then
// ~/.config/todokit/todokit.toml. Values from the file overlay Default().
// A few secrets can also come from the environment, which wins over the
// file:
//
//	TODOKIT_AUTH_SECRET   [auth] secret
//	TODOKIT_POSTGRES_DSN  [store] postgres_dsn
//	NATS_URL              [store] nats_url and [events] nats_url
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/vinayprograms/todokit/errors"
	"github.com/vinayprograms/todokit/logging"
)

// FileName is the base name searched for in the standard locations.
const FileName = "todokit.toml"

// ErrInsecurePermissions is returned when a file holding the auth secret
// is readable by group or others.
var ErrInsecurePermissions = fmt.Errorf("config file has insecure permissions")

// Backends.
const (
	BackendMemory   = "memory"
	BackendNATS     = "nats"
	BackendPostgres = "postgres"
	BackendNone     = "none"
)

// Transports.
const (
	TransportWebSocket = "websocket"
	TransportStdio     = "stdio"
)

// Config is the full configuration.
type Config struct {
	Admin     AdminConfig     `toml:"admin"`
	Store     StoreConfig     `toml:"store"`
	Events    EventsConfig    `toml:"events"`
	Server    ServerConfig    `toml:"server"`
	Auth      AuthConfig      `toml:"auth"`
	Log       LogConfig       `toml:"log"`
	Telemetry TelemetryConfig `toml:"telemetry"`
}

// AdminConfig describes the administrator created at start-up.
type AdminConfig struct {
	Account   string `toml:"account"`
	FirstName string `toml:"first_name"`
	LastName  string `toml:"last_name"`
	Email     string `toml:"email"`
	Age       uint32 `toml:"age"`
	SeedTasks bool   `toml:"seed_tasks"`
}

// StoreConfig selects the state backend.
type StoreConfig struct {
	Backend     string   `toml:"backend"`
	NATSURL     string   `toml:"nats_url"`
	Bucket      string   `toml:"bucket"`
	PostgresDSN string   `toml:"postgres_dsn"`
	Migrate     bool     `toml:"migrate"`
	LockTTL     Duration `toml:"lock_ttl"`
	LockWait    Duration `toml:"lock_wait"`
}

// EventsConfig selects where domain events go.
type EventsConfig struct {
	Backend       string `toml:"backend"`
	NATSURL       string `toml:"nats_url"`
	SubjectPrefix string `toml:"subject_prefix"`

	// HeartbeatInterval paces instance liveness reports. 0 disables them.
	HeartbeatInterval Duration `toml:"heartbeat_interval"`
}

// ServerConfig selects how clients reach the service.
type ServerConfig struct {
	Listen    string `toml:"listen"`
	Transport string `toml:"transport"`

	// Caller is the account every stdio request runs as.
	Caller string `toml:"caller"`

	// RateLimit caps calls per account per RateWindow. 0 disables it.
	RateLimit  int      `toml:"rate_limit"`
	RateWindow Duration `toml:"rate_window"`
}

// AuthConfig configures bearer tokens for the websocket transport.
type AuthConfig struct {
	Secret   string   `toml:"secret"`
	Issuer   string   `toml:"issuer"`
	TokenTTL Duration `toml:"token_ttl"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `toml:"level"`
}

// TelemetryConfig configures OTLP tracing. An empty endpoint disables it.
type TelemetryConfig struct {
	Endpoint    string  `toml:"endpoint"`
	Protocol    string  `toml:"protocol"`
	Insecure    bool    `toml:"insecure"`
	ServiceName string  `toml:"service_name"`
	SampleRatio float64 `toml:"sample_ratio"`
	Debug       bool    `toml:"debug"`
}

// Duration is a time.Duration written as a Go duration string ("5s").
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns a configuration that runs entirely in memory.
func Default() Config {
	return Config{
		Admin: AdminConfig{
			Account:   "admin",
			FirstName: "Admin",
			LastName:  "Admin",
		},
		Store: StoreConfig{
			Backend:  BackendMemory,
			Bucket:   "todokit",
			Migrate:  true,
			LockTTL:  Duration{10 * time.Second},
			LockWait: Duration{5 * time.Second},
		},
		Events: EventsConfig{
			Backend:           BackendNone,
			SubjectPrefix:     "todokit",
			HeartbeatInterval: Duration{15 * time.Second},
		},
		Server: ServerConfig{
			Listen:     ":8080",
			Transport:  TransportWebSocket,
			RateWindow: Duration{time.Minute},
		},
		Auth: AuthConfig{
			Issuer:   "todokit",
			TokenTTL: Duration{24 * time.Hour},
		},
		Log: LogConfig{
			Level: "info",
		},
		Telemetry: TelemetryConfig{
			Protocol:    "grpc",
			ServiceName: "todokit",
			SampleRatio: 1,
		},
	}
}

// StandardPaths returns the locations searched by Load, in priority order.
func StandardPaths() []string {
	paths := []string{FileName}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "todokit", FileName))
	}
	return paths
}

// Load resolves the configuration and validates it.
func Load(path string) (*Config, string, error) {
	cfg, used, err := Resolve(path)
	if err != nil {
		return nil, used, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, used, err
	}
	return cfg, used, nil
}

// Resolve reads path, or the first standard location that exists when path
// is empty, and applies environment overrides. With no file at all it
// returns Default() plus the environment. The result is not validated so
// callers can apply their own overrides first. The returned string names
// the file used, if any.
func Resolve(path string) (*Config, string, error) {
	if path == "" {
		for _, candidate := range StandardPaths() {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	cfg := Default()
	if path != "" {
		loaded, err := LoadFile(path)
		if err != nil {
			return nil, path, err
		}
		cfg = *loaded
	}
	cfg.ApplyEnv(os.Getenv)
	return &cfg, path, nil
}

// LoadFile decodes path over Default(). Unknown keys are rejected so that
// typos do not silently fall back to defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrCodeInvalidInput, "parse "+path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, errors.InvalidInput(fmt.Sprintf("%s: unknown keys: %s", path, strings.Join(keys, ", ")))
	}

	if md.IsDefined("auth", "secret") && cfg.Auth.Secret != "" {
		if err := checkPermissions(path); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

// checkPermissions rejects secret-bearing files readable by group or others.
func checkPermissions(path string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode&0o077 != 0 {
		return fmt.Errorf("%w: %s has mode %04o (must not be group or world accessible)",
			ErrInsecurePermissions, path, mode)
	}
	return nil
}

// ApplyEnv overlays the supported environment variables.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv("TODOKIT_AUTH_SECRET"); v != "" {
		c.Auth.Secret = v
	}
	if v := getenv("TODOKIT_POSTGRES_DSN"); v != "" {
		c.Store.PostgresDSN = v
	}
	if v := getenv("NATS_URL"); v != "" {
		c.Store.NATSURL = v
		c.Events.NATSURL = v
	}
}

// Validate reports every problem found, as one INVALID_INPUT error.
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...interface{}) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if c.Admin.Account == "" {
		add("admin.account is required")
	}

	switch c.Store.Backend {
	case BackendMemory:
	case BackendNATS:
		if c.Store.NATSURL == "" {
			add("store.nats_url is required for the nats backend")
		}
	case BackendPostgres:
		if c.Store.PostgresDSN == "" {
			add("store.postgres_dsn is required for the postgres backend")
		}
	default:
		add("store.backend %q must be memory, nats or postgres", c.Store.Backend)
	}
	if c.Store.LockTTL.Duration < 0 || c.Store.LockWait.Duration < 0 {
		add("store lock durations must not be negative")
	}

	switch c.Events.Backend {
	case BackendNone, BackendMemory:
	case BackendNATS:
		if c.Events.NATSURL == "" {
			add("events.nats_url is required for the nats backend")
		}
	default:
		add("events.backend %q must be none, memory or nats", c.Events.Backend)
	}
	if c.Events.HeartbeatInterval.Duration < 0 {
		add("events.heartbeat_interval must not be negative")
	}

	switch c.Server.Transport {
	case TransportWebSocket:
		if c.Auth.Secret == "" {
			add("auth.secret is required for the websocket transport")
		}
	case TransportStdio:
		if c.Server.Caller == "" {
			add("server.caller is required for the stdio transport")
		}
	default:
		add("server.transport %q must be websocket or stdio", c.Server.Transport)
	}
	if c.Server.RateLimit < 0 {
		add("server.rate_limit must not be negative")
	}
	if c.Server.RateLimit > 0 && c.Server.RateWindow.Duration <= 0 {
		add("server.rate_window must be positive when rate_limit is set")
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		add("log.level: %v", err)
	}

	if c.Telemetry.Endpoint != "" && c.Telemetry.Protocol != "grpc" && c.Telemetry.Protocol != "http" {
		add("telemetry.protocol %q must be grpc or http", c.Telemetry.Protocol)
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		add("telemetry.sample_ratio must be within [0, 1]")
	}

	if len(problems) > 0 {
		return errors.InvalidInput("invalid configuration: " + strings.Join(problems, "; "))
	}
	return nil
}
