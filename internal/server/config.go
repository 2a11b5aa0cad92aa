// Package server provides configuration helpers that define runtime defaults,
// validation, and environment loading for the chat service.
package server

import (
	"fmt"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
)

// Config holds the server configuration settings including security controls.
type Config struct {
	Port               string
	AllowedOrigins     []string
	MaxMessageSize     int64
	SendBufferSize     int
	UploadDir          string
	MaxUploadSize      int64
	AllowedUploadTypes []string
	LogLevel           string
	ShutdownTimeout    time.Duration
	Argon2MemoryKiB    uint32
	Argon2Iterations   uint32
}

// envOverrides mirrors Config for environment decoding. Unset variables stay
// nil and keep the default value.
type envOverrides struct {
	Port               *string        `env:"SERVER_PORT"`
	AllowedOrigins     *string        `env:"ALLOWED_ORIGINS"`
	MaxMessageSize     *int           `env:"MAX_MESSAGE_SIZE"`
	SendBufferSize     *int           `env:"SEND_BUFFER_SIZE"`
	UploadDir          *string        `env:"UPLOAD_DIR"`
	MaxUploadSize      *int           `env:"MAX_UPLOAD_SIZE"`
	AllowedUploadTypes *string        `env:"ALLOWED_UPLOAD_TYPES"`
	LogLevel           *string        `env:"LOG_LEVEL"`
	ShutdownTimeout    *time.Duration `env:"SHUTDOWN_TIMEOUT"`
	Argon2MemoryKiB    *int           `env:"ARGON2_MEMORY_KIB"`
	Argon2Iterations   *int           `env:"ARGON2_ITERATIONS"`
}

const (
	defaultPort            = ":8080"
	defaultMaxMessageSize  = 4096
	defaultSendBufferSize  = 256
	defaultUploadDir       = "uploads"
	defaultMaxUploadSize   = 10 << 20
	defaultLogLevel        = "info"
	defaultShutdownTimeout = 10 * time.Second
)

func defaultConfig() Config {
	return Config{
		Port: defaultPort,
		AllowedOrigins: []string{
			"http://localhost:8080",
		},
		MaxMessageSize: defaultMaxMessageSize,
		SendBufferSize: defaultSendBufferSize,
		UploadDir:      defaultUploadDir,
		MaxUploadSize:  defaultMaxUploadSize,
		AllowedUploadTypes: []string{
			"image/png",
			"image/jpeg",
			"image/gif",
			"application/pdf",
			"text/plain",
		},
		LogLevel:        defaultLogLevel,
		ShutdownTimeout: defaultShutdownTimeout,
	}
}

// NewConfig creates a Config instance populated with default values for all settings.
func NewConfig() *Config {
	cfg := defaultConfig()
	return &cfg
}

// NewConfigFromEnv creates a Config from environment variables, falling back
// to defaults for unset or non-positive values.
func NewConfigFromEnv() (*Config, error) {
	var overrides envOverrides
	if _, err := env.UnmarshalFromEnviron(&overrides); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}

	cfg := defaultConfig()
	if overrides.Port != nil {
		cfg.Port = *overrides.Port
	}
	if overrides.AllowedOrigins != nil {
		cfg.AllowedOrigins = parseList(*overrides.AllowedOrigins)
	}
	if overrides.MaxMessageSize != nil {
		cfg.MaxMessageSize = int64(*overrides.MaxMessageSize)
	}
	if overrides.SendBufferSize != nil {
		cfg.SendBufferSize = *overrides.SendBufferSize
	}
	if overrides.UploadDir != nil {
		cfg.UploadDir = *overrides.UploadDir
	}
	if overrides.MaxUploadSize != nil {
		cfg.MaxUploadSize = int64(*overrides.MaxUploadSize)
	}
	if overrides.AllowedUploadTypes != nil {
		cfg.AllowedUploadTypes = parseList(*overrides.AllowedUploadTypes)
	}
	if overrides.LogLevel != nil {
		cfg.LogLevel = *overrides.LogLevel
	}
	if overrides.ShutdownTimeout != nil {
		cfg.ShutdownTimeout = *overrides.ShutdownTimeout
	}
	if overrides.Argon2MemoryKiB != nil && *overrides.Argon2MemoryKiB > 0 {
		cfg.Argon2MemoryKiB = uint32(*overrides.Argon2MemoryKiB)
	}
	if overrides.Argon2Iterations != nil && *overrides.Argon2Iterations > 0 {
		cfg.Argon2Iterations = uint32(*overrides.Argon2Iterations)
	}

	sanitized := cfg.sanitize()
	return &sanitized, nil
}

// sanitize replaces invalid values with defaults.
func (cfg Config) sanitize() Config {
	if cfg.Port == "" {
		cfg.Port = defaultPort
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = defaultMaxMessageSize
	}
	if cfg.SendBufferSize <= 0 {
		cfg.SendBufferSize = defaultSendBufferSize
	}
	if cfg.UploadDir == "" {
		cfg.UploadDir = defaultUploadDir
	}
	if cfg.MaxUploadSize <= 0 {
		cfg.MaxUploadSize = defaultMaxUploadSize
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaultLogLevel
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}

	cfg.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	cfg.AllowedUploadTypes = append([]string(nil), cfg.AllowedUploadTypes...)
	return cfg
}

func parseList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
