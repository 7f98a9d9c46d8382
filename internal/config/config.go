// Package config loads the server configuration from a YAML file with
// environment variable overrides layered on top. The file is also the
// persistence point for the failure injection harness, which rewrites the
// remote database descriptor in place.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Dynamo   DynamoConfig   `yaml:"dynamo"`
	Admin    AdminConfig    `yaml:"admin"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Addr returns the listen address in host:port form.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig describes the two connection descriptors the failover
// controller chooses between: a remote descriptor (URL form, either backend
// kind) and a local PostgreSQL instance built from discrete parameters.
type DatabaseConfig struct {
	// RemoteKind selects the backend behind RemoteURL: "postgres" or
	// "dynamo". Empty with a nonempty RemoteURL means postgres.
	RemoteKind string `yaml:"remote_kind"`
	RemoteURL  string `yaml:"remote_url"`

	LocalHost     string `yaml:"local_host"`
	LocalPort     int    `yaml:"local_port"`
	LocalName     string `yaml:"local_name"`
	LocalUser     string `yaml:"local_user"`
	LocalPassword string `yaml:"local_password"`
	LocalSSLMode  string `yaml:"local_sslmode"`
}

// LocalDSN assembles the local fallback descriptor from the discrete
// parameters.
func (c DatabaseConfig) LocalDSN() string {
	return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.LocalHost, c.LocalPort, c.LocalName, c.LocalUser, c.LocalPassword, c.LocalSSLMode)
}

// DynamoConfig holds the document backend settings. Endpoint points at
// DynamoDB Local during development.
type DynamoConfig struct {
	Table           string `yaml:"table"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// AdminConfig holds the operator endpoint shared secret and the seed
// account settings for a freshly bootstrapped local backend.
type AdminConfig struct {
	Token    string `yaml:"token"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load reads and parses the YAML configuration file and applies defaults.
// A missing file yields the default configuration rather than an error so
// the server can run from environment variables alone.
func Load(path string) (*Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	// Defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Database.LocalHost == "" {
		cfg.Database.LocalHost = "localhost"
	}
	if cfg.Database.LocalPort == 0 {
		cfg.Database.LocalPort = 5432
	}
	if cfg.Database.LocalName == "" {
		cfg.Database.LocalName = "phishdeck"
	}
	if cfg.Database.LocalUser == "" {
		cfg.Database.LocalUser = "phishdeck"
	}
	if cfg.Database.LocalSSLMode == "" {
		cfg.Database.LocalSSLMode = "disable"
	}
	if cfg.Database.RemoteKind == "" && cfg.Database.RemoteURL != "" {
		cfg.Database.RemoteKind = "postgres"
	}
	if cfg.Dynamo.Table == "" {
		cfg.Dynamo.Table = "phishdeck"
	}
	if cfg.Dynamo.Region == "" {
		cfg.Dynamo.Region = "us-east-1"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars in deployment.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		var port int
		if _, err := fmt.Sscanf(v, "%d", &port); err == nil && port > 0 {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.RemoteURL = v
		if cfg.Database.RemoteKind == "" {
			cfg.Database.RemoteKind = "postgres"
		}
	}
	if v := os.Getenv("DATABASE_REMOTE_KIND"); v != "" {
		cfg.Database.RemoteKind = v
	}
	if v := os.Getenv("LOCAL_DB_HOST"); v != "" {
		cfg.Database.LocalHost = v
	}
	if v := os.Getenv("LOCAL_DB_PORT"); v != "" {
		var port int
		if _, err := fmt.Sscanf(v, "%d", &port); err == nil && port > 0 {
			cfg.Database.LocalPort = port
		}
	}
	if v := os.Getenv("LOCAL_DB_NAME"); v != "" {
		cfg.Database.LocalName = v
	}
	if v := os.Getenv("LOCAL_DB_USER"); v != "" {
		cfg.Database.LocalUser = v
	}
	if v := os.Getenv("LOCAL_DB_PASSWORD"); v != "" {
		cfg.Database.LocalPassword = v
	}
	if v := os.Getenv("LOCAL_DB_SSLMODE"); v != "" {
		cfg.Database.LocalSSLMode = v
	}
	if v := os.Getenv("DYNAMO_TABLE"); v != "" {
		cfg.Dynamo.Table = v
	}
	if v := os.Getenv("DYNAMO_REGION"); v != "" {
		cfg.Dynamo.Region = v
	}
	if v := os.Getenv("DYNAMO_ENDPOINT"); v != "" {
		cfg.Dynamo.Endpoint = v
	}
	if v := os.Getenv("DYNAMO_ACCESS_KEY_ID"); v != "" {
		cfg.Dynamo.AccessKeyID = v
	}
	if v := os.Getenv("DYNAMO_SECRET_ACCESS_KEY"); v != "" {
		cfg.Dynamo.SecretAccessKey = v
	}
	if v := os.Getenv("ADMIN_TOKEN"); v != "" {
		cfg.Admin.Token = v
	}
	if v := os.Getenv("ADMIN_EMAIL"); v != "" {
		cfg.Admin.Email = v
	}
	if v := os.Getenv("ADMIN_PASSWORD"); v != "" {
		cfg.Admin.Password = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	return cfg, nil
}

// Save writes the configuration back to disk. Used by the failure
// injection harness, which rewrites the remote descriptor in place.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}
