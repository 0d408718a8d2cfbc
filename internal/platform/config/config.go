package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Backend selects which adapters back the client's ports.
type Backend string

const (
	// BackendMemory runs against an in-process demo catalog; nothing leaves the machine.
	BackendMemory Backend = "memory"
	// BackendSupabase talks to the hosted backend-as-a-service over HTTP.
	BackendSupabase Backend = "supabase"
	// BackendPostgres reads and writes the data store directly (auth stays in-process).
	BackendPostgres Backend = "postgres"
)

// SecureStore selects where secrets (the persisted session, the theme preference) live.
type SecureStore string

const (
	// SecureStoreKeyring uses the OS credential store, falling back to files when it is unavailable.
	SecureStoreKeyring SecureStore = "keyring"
	// SecureStoreFile uses private files under StorageDir.
	SecureStoreFile SecureStore = "file"
)

// Config is loaded once at startup and treated as immutable.
type Config struct {
	Backend  Backend        `yaml:"backend"`
	Supabase SupabaseConfig `yaml:"supabase"`
	Database DatabaseConfig `yaml:"database"`
	Demo     DemoConfig     `yaml:"demo"`
	Logging  LoggingConfig  `yaml:"logging"`

	SecureStore SecureStore `yaml:"secure_store"`

	// StorageDir holds file-backed secure storage and the default log file.
	// Empty means the per-user config directory.
	StorageDir string `yaml:"storage_dir"`

	// OSColorScheme overrides terminal scheme detection ("light" or "dark").
	OSColorScheme string `yaml:"os_color_scheme"`
}

type SupabaseConfig struct {
	URL     string `yaml:"url"`
	AnonKey string `yaml:"anon_key"`

	// MaxRPS bounds outbound requests per second; Burst is the limiter bucket size.
	MaxRPS      float64       `yaml:"max_rps"`
	Burst       int           `yaml:"burst"`
	HTTPTimeout time.Duration `yaml:"http_timeout"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
	// Migrate applies the embedded schema at startup.
	Migrate bool `yaml:"migrate"`
}

// DemoConfig seeds the in-process auth provider used by the memory and postgres backends.
type DemoConfig struct {
	UserID   string `yaml:"user_id"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	// File receives JSON logs; empty means stderr.
	File string `yaml:"file"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		Backend:     BackendMemory,
		SecureStore: SecureStoreKeyring,
		Supabase: SupabaseConfig{
			MaxRPS:      10,
			Burst:       5,
			HTTPTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{MaxConns: 4},
		Demo: DemoConfig{
			UserID:   "7f1c2a9e-3b0d-4a51-9a6e-2f8f0c1d5b11",
			Email:    "demo@example.com",
			Password: "password",
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads .env (when present), then the YAML file named by CARRENTAL_CONFIG
// (when set), then environment overrides, and validates the result.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Defaults()
	if path := os.Getenv("CARRENTAL_CONFIG"); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	setString := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}

	if v := strings.TrimSpace(os.Getenv("BACKEND")); v != "" {
		cfg.Backend = Backend(strings.ToLower(v))
	}
	if v := strings.TrimSpace(os.Getenv("SECURE_STORE")); v != "" {
		cfg.SecureStore = SecureStore(strings.ToLower(v))
	}
	setString(&cfg.Supabase.URL, "SUPABASE_URL")
	setString(&cfg.Supabase.AnonKey, "SUPABASE_ANON_KEY")
	setString(&cfg.Database.URL, "DATABASE_URL")
	setString(&cfg.Demo.UserID, "DEMO_USER_ID")
	setString(&cfg.Demo.Email, "DEMO_USER_EMAIL")
	setString(&cfg.Demo.Password, "DEMO_USER_PASSWORD")
	setString(&cfg.StorageDir, "STORAGE_DIR")
	setString(&cfg.Logging.Level, "LOG_LEVEL")
	setString(&cfg.Logging.File, "LOG_FILE")
	setString(&cfg.OSColorScheme, "OS_COLOR_SCHEME")

	if v := os.Getenv("SUPABASE_MAX_RPS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("SUPABASE_MAX_RPS must be a number: %w", err)
		}
		cfg.Supabase.MaxRPS = f
	}
	if v := os.Getenv("SUPABASE_BURST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SUPABASE_BURST must be an integer: %w", err)
		}
		cfg.Supabase.Burst = n
	}
	if v := os.Getenv("SUPABASE_HTTP_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("SUPABASE_HTTP_TIMEOUT must be a duration (e.g. 10s): %w", err)
		}
		cfg.Supabase.HTTPTimeout = d
	}
	if v := os.Getenv("DATABASE_MAX_CONNS"); v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			return fmt.Errorf("DATABASE_MAX_CONNS must be an integer: %w", err)
		}
		cfg.Database.MaxConns = int32(n)
	}
	if v := os.Getenv("DATABASE_MIGRATE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("DATABASE_MIGRATE must be a boolean: %w", err)
		}
		cfg.Database.Migrate = b
	}
	return nil
}

// Validate checks that the selected backend has what it needs.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendMemory:
	case BackendSupabase:
		var missing []string
		if c.Supabase.URL == "" {
			missing = append(missing, "SUPABASE_URL")
		}
		if c.Supabase.AnonKey == "" {
			missing = append(missing, "SUPABASE_ANON_KEY")
		}
		if len(missing) > 0 {
			return fmt.Errorf("missing required config for supabase backend: %s", strings.Join(missing, ", "))
		}
		if c.Supabase.MaxRPS <= 0 {
			return fmt.Errorf("SUPABASE_MAX_RPS must be positive")
		}
	case BackendPostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("missing required config for postgres backend: DATABASE_URL")
		}
	default:
		return fmt.Errorf("unknown BACKEND %q (expected memory|supabase|postgres)", c.Backend)
	}

	switch c.SecureStore {
	case SecureStoreKeyring, SecureStoreFile:
	default:
		return fmt.Errorf("unknown SECURE_STORE %q (expected keyring|file)", c.SecureStore)
	}

	switch c.OSColorScheme {
	case "", "light", "dark":
	default:
		return fmt.Errorf("OS_COLOR_SCHEME must be light or dark, got %q", c.OSColorScheme)
	}
	return nil
}
