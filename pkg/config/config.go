// Package config provides configuration management for the go-esign service.
// It supports loading configuration from YAML files and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Provider types.
const (
	ProviderNone   = "none"
	ProviderFile   = "file"
	ProviderPKCS11 = "pkcs11"
)

// Config represents the application configuration structure.
// It includes settings for the server, logging, signing, the signing provider and security.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
	Signing  SigningConfig  `yaml:"signing"`
	Provider ProviderConfig `yaml:"provider"`
	Security SecurityConfig `yaml:"security"`
}

// ServerConfig contains HTTP server configuration settings.
type ServerConfig struct {
	Host           string `yaml:"host"`
	Port           string `yaml:"port"`
	MaxRequestSize int64  `yaml:"max_request_size"`
}

// LoggingConfig contains logging configuration settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SigningConfig contains the sign workflow settings.
type SigningConfig struct {
	// TestMode is the initial test mode when no state file exists yet.
	TestMode          bool          `yaml:"test_mode"`
	DownloadOnSuccess bool          `yaml:"download_on_success"`
	DownloadDir       string        `yaml:"download_dir"`
	Timeout           time.Duration `yaml:"timeout"`
	// StateFile persists the test mode toggle. Empty disables persistence.
	StateFile           string        `yaml:"state_file"`
	CertificateCacheTTL time.Duration `yaml:"certificate_cache_ttl"`
}

// CertificateConfig names a certificate file and its private key.
type CertificateConfig struct {
	Cert string `yaml:"cert"`
	Key  string `yaml:"key"`
}

// ProviderConfig selects the signing capability.
type ProviderConfig struct {
	Type         string              `yaml:"type"`
	Certificates []CertificateConfig `yaml:"certificates"`
	PKCS11URI    string              `yaml:"pkcs11_uri"`
}

// SecurityConfig contains security-related configuration settings.
type SecurityConfig struct {
	RateLimitRPS   int      `yaml:"rate_limit_rps"`
	RateLimitBurst int      `yaml:"rate_limit_burst"`
	EnableCORS     bool     `yaml:"enable_cors"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "127.0.0.1",
			Port:           "6001",
			MaxRequestSize: 10 * 1024 * 1024, // 10MB
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
		Signing: SigningConfig{
			TestMode:            false,
			DownloadOnSuccess:   false,
			DownloadDir:         "downloads",
			Timeout:             60 * time.Second,
			StateFile:           "",
			CertificateCacheTTL: 30 * time.Second,
		},
		Provider: ProviderConfig{
			Type:         ProviderNone,
			Certificates: []CertificateConfig{},
		},
		Security: SecurityConfig{
			RateLimitRPS:   100,
			RateLimitBurst: 200,
			EnableCORS:     false,
			AllowedOrigins: []string{},
		},
	}
}

// LoadConfig loads configuration from a YAML file and applies environment variable overrides.
// It returns the merged configuration or an error if loading fails.
//
// Environment variables override configuration file values using the ESIGN_ prefix:
//   - ESIGN_HOST, ESIGN_PORT, ESIGN_MAX_REQUEST_SIZE for server settings
//   - ESIGN_LOG_LEVEL, ESIGN_LOG_FORMAT, ESIGN_LOG_OUTPUT for logging
//   - ESIGN_TEST_MODE, ESIGN_DOWNLOAD_ON_SUCCESS, ESIGN_DOWNLOAD_DIR, ESIGN_SIGN_TIMEOUT,
//     ESIGN_STATE_FILE, ESIGN_CERT_CACHE_TTL for signing
//   - ESIGN_PROVIDER, ESIGN_PKCS11_URI, ESIGN_CERTIFICATES (cert:key,cert:key) for the provider
//   - ESIGN_RATE_LIMIT_RPS, ESIGN_RATE_LIMIT_BURST, ESIGN_ENABLE_CORS, ESIGN_ALLOWED_ORIGINS for security
//
// If configPath is empty, only default values and environment variables are used.
func LoadConfig(configPath string) (*Config, error) {
	// Start with defaults
	cfg := DefaultConfig()

	// Load from file if path provided
	if configPath != "" {
		if err := validateConfigPath(configPath); err != nil {
			return nil, fmt.Errorf("invalid config path: %w", err)
		}

		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	return cfg, nil
}

// validateConfigPath rejects paths that are not YAML files or that climb
// out of their directory.
func validateConfigPath(path string) error {
	if strings.Contains(filepath.ToSlash(path), "../") {
		return fmt.Errorf("path traversal not allowed: %s", path)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return nil
	default:
		return fmt.Errorf("config file must have a .yaml or .yml extension: %s", path)
	}
}

func parseBool(v string) bool {
	return strings.ToLower(v) == "true" || v == "1"
}

// parseCertificates reads "cert:key" pairs separated by commas.
func parseCertificates(v string) []CertificateConfig {
	var certs []CertificateConfig
	for _, pair := range strings.Split(v, ",") {
		cert, key, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if !ok || cert == "" || key == "" {
			continue
		}
		certs = append(certs, CertificateConfig{Cert: cert, Key: key})
	}
	return certs
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables take precedence over config file values.
func applyEnvOverrides(cfg *Config) {
	// Server configuration
	if v := os.Getenv("ESIGN_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("ESIGN_PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("ESIGN_MAX_REQUEST_SIZE"); v != "" {
		if size, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Server.MaxRequestSize = size
		}
	}

	// Logging configuration
	if v := os.Getenv("ESIGN_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("ESIGN_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("ESIGN_LOG_OUTPUT"); v != "" {
		cfg.Logging.Output = v
	}

	// Signing configuration
	if v := os.Getenv("ESIGN_TEST_MODE"); v != "" {
		cfg.Signing.TestMode = parseBool(v)
	}
	if v := os.Getenv("ESIGN_DOWNLOAD_ON_SUCCESS"); v != "" {
		cfg.Signing.DownloadOnSuccess = parseBool(v)
	}
	if v := os.Getenv("ESIGN_DOWNLOAD_DIR"); v != "" {
		cfg.Signing.DownloadDir = v
	}
	if v := os.Getenv("ESIGN_SIGN_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Signing.Timeout = d
		}
	}
	if v := os.Getenv("ESIGN_STATE_FILE"); v != "" {
		cfg.Signing.StateFile = v
	}
	if v := os.Getenv("ESIGN_CERT_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Signing.CertificateCacheTTL = d
		}
	}

	// Provider configuration
	if v := os.Getenv("ESIGN_PROVIDER"); v != "" {
		cfg.Provider.Type = strings.ToLower(v)
	}
	if v := os.Getenv("ESIGN_PKCS11_URI"); v != "" {
		cfg.Provider.PKCS11URI = v
	}
	if v := os.Getenv("ESIGN_CERTIFICATES"); v != "" {
		cfg.Provider.Certificates = parseCertificates(v)
	}

	// Security configuration
	if v := os.Getenv("ESIGN_RATE_LIMIT_RPS"); v != "" {
		if rps, err := strconv.Atoi(v); err == nil {
			cfg.Security.RateLimitRPS = rps
		}
	}
	if v := os.Getenv("ESIGN_RATE_LIMIT_BURST"); v != "" {
		if burst, err := strconv.Atoi(v); err == nil {
			cfg.Security.RateLimitBurst = burst
		}
	}
	if v := os.Getenv("ESIGN_ENABLE_CORS"); v != "" {
		cfg.Security.EnableCORS = parseBool(v)
	}
	if v := os.Getenv("ESIGN_ALLOWED_ORIGINS"); v != "" {
		cfg.Security.AllowedOrigins = strings.Split(v, ",")
	}
}

// Validate checks if the configuration is valid.
// It returns an error if any configuration value is invalid.
func (c *Config) Validate() error {
	// Validate server configuration
	if c.Server.Port == "" {
		return fmt.Errorf("server port cannot be empty")
	}
	if c.Server.MaxRequestSize <= 0 {
		return fmt.Errorf("max request size must be positive")
	}

	// Validate logging configuration
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true, "fatal": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	// Validate signing configuration
	if c.Signing.Timeout <= 0 {
		return fmt.Errorf("signing timeout must be positive")
	}
	if c.Signing.CertificateCacheTTL < 0 {
		return fmt.Errorf("certificate cache TTL cannot be negative")
	}
	if c.Signing.DownloadOnSuccess && c.Signing.DownloadDir == "" {
		return fmt.Errorf("download directory is required when download on success is enabled")
	}

	// Validate provider configuration
	switch c.Provider.Type {
	case ProviderNone, "":
	case ProviderFile:
		if len(c.Provider.Certificates) == 0 {
			return fmt.Errorf("file provider requires at least one certificate")
		}
		for i, cert := range c.Provider.Certificates {
			if cert.Cert == "" || cert.Key == "" {
				return fmt.Errorf("certificate %d needs both cert and key", i)
			}
		}
	case ProviderPKCS11:
		if !strings.HasPrefix(c.Provider.PKCS11URI, "pkcs11:") {
			return fmt.Errorf("pkcs11 provider requires a pkcs11: URI")
		}
	default:
		return fmt.Errorf("invalid provider type: %s", c.Provider.Type)
	}

	// Validate security configuration
	if c.Security.RateLimitRPS <= 0 {
		return fmt.Errorf("rate limit RPS must be positive")
	}
	if c.Security.RateLimitBurst < 0 {
		return fmt.Errorf("rate limit burst cannot be negative")
	}

	return nil
}
