package config

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"marketplace/internal/domain/user"

	"gopkg.in/yaml.v3"
)

// Directory drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

type Config struct {
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
	Directory struct {
		Driver     string     `yaml:"driver"`
		SQLitePath string     `yaml:"sqlite_path"`
		Seed       []SeedUser `yaml:"seed"`
	} `yaml:"directory"`
	Database struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"database"`
		SSLMode  string `yaml:"sslmode"`
	} `yaml:"database"`
	RabbitMQ struct {
		Enabled  bool   `yaml:"enabled"`
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
	} `yaml:"rabbitmq"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix"`
	} `yaml:"redis"`
	WebSocket struct {
		BindIdentity   bool     `yaml:"bind_identity"`
		SendBuffer     int      `yaml:"send_buffer"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"websocket"`
	Services struct {
		LocationServicePort int `yaml:"location_service"`
	} `yaml:"services"`
	JWT struct {
		SecretKey string        `yaml:"secret_key"`
		AccessTTL time.Duration `yaml:"access_ttl"`
		DevTokens bool          `yaml:"dev_tokens"`
	} `yaml:"jwt"`
}

// SeedUser is a user inserted at startup if missing (dev and demo setups).
type SeedUser struct {
	ID      string `yaml:"id"`
	Role    string `yaml:"role"`
	Sharing bool   `yaml:"sharing"`
}

// LoadFromFile loads config from a YAML file to a Config struct, applies env overrides and
// defaults, and validates required fields.
func LoadFromFile(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	return Load(file)
}

// Load is LoadFromFile for an already opened reader.
func Load(r io.Reader) (*Config, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if len(bytes.TrimSpace(raw)) > 0 {
		dec := yaml.NewDecoder(bytes.NewReader(raw))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// applyEnv overrides secrets and endpoints from the environment.
func applyEnv(cfg *Config) {
	if v := os.Getenv("LOCATION_JWT_SECRET"); v != "" {
		cfg.JWT.SecretKey = v
	}
	if v := os.Getenv("LOCATION_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("LOCATION_RABBITMQ_PASSWORD"); v != "" {
		cfg.RabbitMQ.Password = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("LOCATION_SERVICE_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Services.LocationServicePort = p
		}
	}
}

// applyDefaults sets safe defaults for some fields.
func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	// Directory
	cfg.Directory.Driver = strings.ToLower(strings.TrimSpace(cfg.Directory.Driver))
	if cfg.Directory.Driver == "" {
		cfg.Directory.Driver = DriverPostgres
	}
	if cfg.Directory.SQLitePath == "" {
		cfg.Directory.SQLitePath = "marketplace.db"
	}

	// Database
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}

	// RabbitMQ
	if cfg.RabbitMQ.Host == "" {
		cfg.RabbitMQ.Host = "localhost"
	}
	if cfg.RabbitMQ.Port == 0 {
		cfg.RabbitMQ.Port = 5672
	}

	// Redis
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Redis.Prefix == "" {
		cfg.Redis.Prefix = "marketplace:location:"
	}

	// WebSocket
	if cfg.WebSocket.SendBuffer == 0 {
		cfg.WebSocket.SendBuffer = 64
	}

	// Services
	if cfg.Services.LocationServicePort == 0 {
		cfg.Services.LocationServicePort = 5000
	}

	// JWT
	if cfg.JWT.AccessTTL == 0 {
		cfg.JWT.AccessTTL = 2 * time.Hour
	}
	if cfg.JWT.SecretKey == "" {
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			// fallback: time-based bytes
			key = []byte(fmt.Sprintf("%d", time.Now().UnixNano()))
		}
		cfg.JWT.SecretKey = base64.StdEncoding.EncodeToString(key)
	}
}

// validate checks required fields and basic ranges.
func (c *Config) validate() error {
	var problems []string

	switch c.Directory.Driver {
	case DriverPostgres:
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			problems = append(problems, "database.port must be in 1..65535")
		}
		if c.Database.User == "" {
			problems = append(problems, "database.user is required")
		}
		if c.Database.Password == "" {
			problems = append(problems, "database.password is required")
		}
		if c.Database.Name == "" {
			problems = append(problems, "database.database is required")
		}
	case DriverSQLite, DriverMemory:
	default:
		problems = append(problems, fmt.Sprintf("directory.driver %q must be one of postgres, sqlite, memory", c.Directory.Driver))
	}

	for i, s := range c.Directory.Seed {
		if strings.TrimSpace(s.ID) == "" {
			problems = append(problems, fmt.Sprintf("directory.seed[%d].id is required", i))
		}
		if _, err := user.ParseRole(s.Role); err != nil {
			problems = append(problems, fmt.Sprintf("directory.seed[%d].role %q is invalid", i, s.Role))
		}
	}

	if c.RabbitMQ.Enabled {
		if c.RabbitMQ.Port <= 0 || c.RabbitMQ.Port > 65535 {
			problems = append(problems, "rabbitmq.port must be in 1..65535")
		}
		if c.RabbitMQ.User == "" {
			problems = append(problems, "rabbitmq.user is required")
		}
		if c.RabbitMQ.Password == "" {
			problems = append(problems, "rabbitmq.password is required")
		}
	}

	if c.Redis.Enabled && c.Redis.DB < 0 {
		problems = append(problems, "redis.db must be >= 0")
	}

	if c.WebSocket.SendBuffer < 1 {
		problems = append(problems, "websocket.send_buffer must be >= 1")
	}

	if c.Services.LocationServicePort <= 0 || c.Services.LocationServicePort > 65535 {
		problems = append(problems, "services.location_service must be in 1..65535")
	}

	if c.JWT.AccessTTL < 0 {
		problems = append(problems, "jwt.access_ttl must be positive")
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}
