package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Auth       AuthConfig       `yaml:"auth"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
	Handoff    HandoffConfig    `yaml:"handoff"`
	Access     AccessConfig     `yaml:"access"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size      int `yaml:"size" env:"WORKER_POOL_SIZE"`
	QueueSize int `yaml:"queue_size" env:"WORKER_POOL_QUEUE_SIZE"`
}

// PushConfig holds the VAPID keys and delivery settings for web push.
type PushConfig struct {
	PublicKey            string        `yaml:"vapid_public_key" env:"PUSH_VAPID_PUBLIC_KEY"`
	PrivateKey           string        `yaml:"vapid_private_key" env:"PUSH_VAPID_PRIVATE_KEY"`
	Subject              string        `yaml:"subject" env:"PUSH_SUBJECT"`
	TTL                  int           `yaml:"ttl" env:"PUSH_TTL"`
	TokenLifetimeMinutes int           `yaml:"token_lifetime_minutes"`
	TokenLifetime        time.Duration `yaml:"-"`
	Concurrency          int           `yaml:"concurrency"`
	DefaultEnabled       *bool         `yaml:"default_enabled"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port" env:"PORT"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver" env:"DATABASE_DRIVER"`
	DSN                    string `yaml:"dsn" env:"DATABASE_DSN"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
	LogLevel               string `yaml:"log_level" env:"DATABASE_LOG_LEVEL"`
}

// AuthConfig holds the bearer token verification settings.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" env:"AUTH_JWT_SECRET"`
	Issuer    string `yaml:"issuer" env:"AUTH_ISSUER"`
}

// HandoffConfig holds limits and lifecycle timing for handoffs.
type HandoffConfig struct {
	ShiftTypes           []string      `yaml:"shift_types"`
	MaxVoiceNotes        int           `yaml:"max_voice_notes"`
	MaxVoiceNoteSeconds  int           `yaml:"max_voice_note_seconds"`
	ExpireAfterHours     int           `yaml:"expire_after_hours"`
	ExpireAfter          time.Duration `yaml:"-"`
	SweepIntervalSeconds int           `yaml:"sweep_interval_seconds"`
	SweepInterval        time.Duration `yaml:"-"`
	SweepEnabled         bool          `yaml:"sweep_enabled" env:"HANDOFF_SWEEP_ENABLED"`
}

// AccessConfig configures the asset assignment directory and read policy.
type AccessConfig struct {
	DirectoryURL      string `yaml:"directory_url" env:"ACCESS_DIRECTORY_URL"`
	DirectoryProxy    string `yaml:"directory_proxy"`
	CacheTTLSeconds   int    `yaml:"cache_ttl_seconds"`
	AdminReadOverride bool   `yaml:"admin_read_override"`
}

// Load reads the configuration from the given path and applies environment overrides.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills unset values.
func (cfg *Config) ApplyDefaults() {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}

	if cfg.Auth.Issuer == "" {
		cfg.Auth.Issuer = "handoffd"
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}
	if cfg.Push.TokenLifetimeMinutes <= 0 {
		cfg.Push.TokenLifetimeMinutes = 60
	}
	cfg.Push.TokenLifetime = time.Duration(cfg.Push.TokenLifetimeMinutes) * time.Minute
	if cfg.Push.Concurrency <= 0 {
		cfg.Push.Concurrency = 4
	}
	if cfg.Push.DefaultEnabled == nil {
		enabled := true
		cfg.Push.DefaultEnabled = &enabled
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}
	if cfg.WorkerPool.QueueSize <= 0 {
		cfg.WorkerPool.QueueSize = 64
	}

	if len(cfg.Handoff.ShiftTypes) == 0 {
		cfg.Handoff.ShiftTypes = []string{"day", "swing", "night"}
	}
	if cfg.Handoff.MaxVoiceNotes <= 0 {
		cfg.Handoff.MaxVoiceNotes = 5
	}
	if cfg.Handoff.MaxVoiceNoteSeconds <= 0 {
		cfg.Handoff.MaxVoiceNoteSeconds = 60
	}
	if cfg.Handoff.ExpireAfterHours <= 0 {
		cfg.Handoff.ExpireAfterHours = 48
	}
	cfg.Handoff.ExpireAfter = time.Duration(cfg.Handoff.ExpireAfterHours) * time.Hour
	if cfg.Handoff.SweepIntervalSeconds <= 0 {
		cfg.Handoff.SweepIntervalSeconds = 300
	}
	cfg.Handoff.SweepInterval = time.Duration(cfg.Handoff.SweepIntervalSeconds) * time.Second

	if cfg.Access.CacheTTLSeconds <= 0 {
		cfg.Access.CacheTTLSeconds = 60
	}
}
