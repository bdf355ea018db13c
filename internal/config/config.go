// Package config provides environment-variable-first configuration loading
// with optional YAML file fallback for the converter.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/shineum/mandrill-dm/internal/mandrill"
)

// defaultMaxMessageSize is 25 MB in bytes.
const defaultMaxMessageSize = 26214400

// defaultWorkers is the number of messages converted concurrently.
const defaultWorkers = 4

// Outbox kinds.
const (
	OutboxStdout = "stdout"
	OutboxDir    = "dir"
	OutboxS3     = "s3"
)

// Config holds the complete application configuration.
type Config struct {
	Outbox         OutboxConfig   `yaml:"outbox"`
	S3             S3Config       `yaml:"s3"`
	Mandrill       MandrillConfig `yaml:"mandrill"`
	Workers        int            `yaml:"workers"`
	MaxMessageSize int64          `yaml:"max_message_size"`
	Logging        LoggingConfig  `yaml:"logging"`
}

// OutboxConfig selects where converted documents go.
type OutboxConfig struct {
	Kind   string `yaml:"kind"`
	Dir    string `yaml:"dir"`
	Pretty bool   `yaml:"pretty"`
}

// S3Config holds the S3 outbox bucket and credentials.
type S3Config struct {
	Region          string `yaml:"region"`
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// MandrillConfig holds conversion options.
type MandrillConfig struct {
	MetadataMode        string `yaml:"metadata_mode"`
	EmptyTagPlaceholder bool   `yaml:"empty_tag_placeholder"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load loads configuration from environment variables with sensible defaults.
// Environment variables always take precedence.
func Load() (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.applyEnvVars()
	return cfg, cfg.Validate()
}

// LoadFromFile loads configuration from a YAML file as the base layer,
// then overrides with environment variables. Returns an error if the
// specified file path does not exist.
func LoadFromFile(path string) (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Environment variables always override YAML values
	cfg.applyEnvVars()

	return cfg, cfg.Validate()
}

// S3Configured returns true if the S3 outbox has a bucket to write to.
func (c *Config) S3Configured() bool {
	return c.S3.Bucket != ""
}

// Validate reports settings that cannot work together.
func (c *Config) Validate() error {
	switch c.Outbox.Kind {
	case OutboxStdout:
	case OutboxDir:
		if c.Outbox.Dir == "" {
			return fmt.Errorf("outbox kind %q requires outbox.dir", c.Outbox.Kind)
		}
	case OutboxS3:
		if !c.S3Configured() {
			return fmt.Errorf("outbox kind %q requires s3.bucket", c.Outbox.Kind)
		}
	default:
		return fmt.Errorf("unknown outbox kind %q", c.Outbox.Kind)
	}

	if _, err := mandrill.ParseMetadataMode(c.Mandrill.MetadataMode); err != nil {
		return err
	}

	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.MaxMessageSize < 1 {
		return fmt.Errorf("max_message_size must be positive, got %d", c.MaxMessageSize)
	}
	return nil
}

// applyDefaults sets sensible default values for all configuration fields.
func (c *Config) applyDefaults() {
	c.Outbox.Kind = OutboxStdout
	c.Mandrill.MetadataMode = "auto"
	c.Workers = defaultWorkers
	c.MaxMessageSize = defaultMaxMessageSize
	c.Logging.Level = "info"
}

// applyEnvVars overrides configuration with environment variable values.
// Only non-empty environment variables override existing values.
func (c *Config) applyEnvVars() {
	if v := os.Getenv("OUTBOX"); v != "" {
		c.Outbox.Kind = strings.ToLower(v)
	}
	if v := os.Getenv("OUTBOX_DIR"); v != "" {
		c.Outbox.Dir = v
	}
	if v := os.Getenv("OUTBOX_PRETTY"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Outbox.Pretty = b
		}
	}

	if v := os.Getenv("S3_REGION"); v != "" {
		c.S3.Region = v
	}
	if v := os.Getenv("S3_BUCKET"); v != "" {
		c.S3.Bucket = v
	}
	if v := os.Getenv("S3_PREFIX"); v != "" {
		c.S3.Prefix = v
	}
	if v := os.Getenv("S3_ACCESS_KEY_ID"); v != "" {
		c.S3.AccessKeyID = v
	}
	if v := os.Getenv("S3_SECRET_ACCESS_KEY"); v != "" {
		c.S3.SecretAccessKey = v
	}

	if v := os.Getenv("MANDRILL_METADATA_MODE"); v != "" {
		c.Mandrill.MetadataMode = strings.ToLower(strings.TrimSpace(v))
	}
	if v := os.Getenv("MANDRILL_EMPTY_TAG_PLACEHOLDER"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Mandrill.EmptyTagPlaceholder = b
		}
	}

	if v := os.Getenv("WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Workers = n
		}
	}
	if v := os.Getenv("MAX_MESSAGE_SIZE"); v != "" {
		if size, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.MaxMessageSize = size
		}
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
}
