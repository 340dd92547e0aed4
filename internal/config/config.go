// Package config provides file-based configuration with environment overrides.
// Files ending in .yaml or .yml are read as YAML, everything else as XML.
package config

import (
	"encoding/xml"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// AppConfig represents the root configuration structure
type AppConfig struct {
	XMLName xml.Name `xml:"BVSaaS" yaml:"-"`

	Server   ServerConfig   `xml:"Server" yaml:"server"`
	Upload   UploadConfig   `xml:"Upload" yaml:"upload"`
	Session  SessionConfig  `xml:"Session" yaml:"session"`
	Advanced AdvancedConfig `xml:"Advanced" yaml:"advanced"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port              int    `xml:"Port" yaml:"port"`
	BindAddress       string `xml:"BindAddress" yaml:"bindAddress"`
	EnableCORS        bool   `xml:"EnableCORS" yaml:"enableCORS"`
	AllowOrigins      string `xml:"AllowOrigins" yaml:"allowOrigins"`
	ReadTimeout       int    `xml:"ReadTimeoutSeconds" yaml:"readTimeoutSeconds"`
	WriteTimeout      int    `xml:"WriteTimeoutSeconds" yaml:"writeTimeoutSeconds"`
	IdleTimeout       int    `xml:"IdleTimeoutSeconds" yaml:"idleTimeoutSeconds"`
	BodyLimit         string `xml:"BodyLimit" yaml:"bodyLimit"`
	EnableCompression bool   `xml:"EnableCompression" yaml:"enableCompression"`
	CompressionLevel  int    `xml:"CompressionLevel" yaml:"compressionLevel"`
}

// UploadConfig selects the collaborator the widget uploads through
type UploadConfig struct {
	Mode                  string `xml:"Mode" yaml:"mode"` // "mock" or "http"
	APIBaseURL            string `xml:"APIBaseURL" yaml:"apiBaseURL"`
	MockDelayMilliseconds int    `xml:"MockDelayMilliseconds" yaml:"mockDelayMilliseconds"`
	RequestTimeout        int    `xml:"RequestTimeoutSeconds" yaml:"requestTimeoutSeconds"`
	EnableUploadsAPI      bool   `xml:"EnableUploadsAPI" yaml:"enableUploadsAPI"`
}

// SessionConfig contains widget session settings
type SessionConfig struct {
	MaxSessions            int `xml:"MaxSessions" yaml:"maxSessions"`
	SessionTimeoutMinutes  int `xml:"SessionTimeoutMinutes" yaml:"sessionTimeoutMinutes"`
	CleanupIntervalMinutes int `xml:"CleanupIntervalMinutes" yaml:"cleanupIntervalMinutes"`
}

// AdvancedConfig contains advanced/tuning options
type AdvancedConfig struct {
	LogLevel                string `xml:"LogLevel" yaml:"logLevel"`
	EnableRequestLogging    bool   `xml:"EnableRequestLogging" yaml:"enableRequestLogging"`
	WebSocketMaxMessageSize int    `xml:"WebSocketMaxMessageSizeKB" yaml:"webSocketMaxMessageSizeKB"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:              8080,
			BindAddress:       "0.0.0.0",
			EnableCORS:        true,
			AllowOrigins:      "*",
			ReadTimeout:       30,
			WriteTimeout:      30,
			IdleTimeout:       120,
			BodyLimit:         "32M",
			EnableCompression: true,
			CompressionLevel:  5,
		},
		Upload: UploadConfig{
			Mode:                  "mock",
			APIBaseURL:            "http://localhost:8000",
			MockDelayMilliseconds: 600,
			RequestTimeout:        30,
			EnableUploadsAPI:      true,
		},
		Session: SessionConfig{
			MaxSessions:            100,
			SessionTimeoutMinutes:  30,
			CleanupIntervalMinutes: 5,
		},
		Advanced: AdvancedConfig{
			LogLevel:                "info",
			EnableRequestLogging:    true,
			WebSocketMaxMessageSize: 64,
		},
	}
}

// LoadConfig loads configuration from configPath, writing the defaults there
// first if the file does not exist. Environment overrides are applied last.
func LoadConfig(configPath string) (*AppConfig, error) {
	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		config := DefaultConfig()
		if err := config.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		config.applyEnvironmentOverrides()
		return config, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if isYAML(configPath) {
		err = yaml.Unmarshal(data, config)
	} else {
		err = xml.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyEnvironmentOverrides()

	return config, nil
}

// Save writes the configuration in the format implied by configPath
func (c *AppConfig) Save(configPath string) error {
	var content []byte
	if isYAML(configPath) {
		out, err := yaml.Marshal(c)
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		content = append([]byte("# BV SaaS configuration\n# This file is auto-generated on first run\n\n"), out...)
	} else {
		out, err := xml.MarshalIndent(c, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		header := []byte(xml.Header + "\n<!-- BV SaaS Configuration -->\n<!-- This file is auto-generated on first run -->\n\n")
		content = append(header, out...)
	}

	if dir := filepath.Dir(configPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	if err := os.WriteFile(configPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// applyEnvironmentOverrides allows environment variables to override config values
func (c *AppConfig) applyEnvironmentOverrides() {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}

	if addr := os.Getenv("BIND_ADDRESS"); addr != "" {
		c.Server.BindAddress = addr
	}

	if mode := os.Getenv("UPLOADER"); mode != "" {
		c.Upload.Mode = strings.ToLower(mode)
	}

	if apiURL := os.Getenv("UPLOADS_API_URL"); apiURL != "" {
		c.Upload.APIBaseURL = apiURL
	}

	if delay := os.Getenv("MOCK_UPLOAD_DELAY_MS"); delay != "" {
		if d, err := strconv.Atoi(delay); err == nil {
			c.Upload.MockDelayMilliseconds = d
		}
	}

	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		c.Advanced.LogLevel = strings.ToLower(lvl)
	}
}

// Validate checks that the configuration is usable
func (c *AppConfig) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server port out of range: %d", c.Server.Port))
	}

	switch c.Upload.Mode {
	case "mock":
		if c.Upload.MockDelayMilliseconds < 0 {
			errs = append(errs, fmt.Errorf("mock delay must not be negative: %d", c.Upload.MockDelayMilliseconds))
		}
	case "http":
		if c.Upload.APIBaseURL == "" {
			errs = append(errs, errors.New("upload mode http requires APIBaseURL"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown upload mode: %q", c.Upload.Mode))
	}

	if c.Session.MaxSessions < 1 {
		errs = append(errs, fmt.Errorf("max sessions must be positive: %d", c.Session.MaxSessions))
	}
	if c.Session.CleanupIntervalMinutes < 1 {
		errs = append(errs, fmt.Errorf("cleanup interval must be positive: %d", c.Session.CleanupIntervalMinutes))
	}

	switch c.Advanced.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("unknown log level: %q", c.Advanced.LogLevel))
	}

	return errors.Join(errs...)
}

// GetServerAddr returns the server bind address
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

// MockDelay returns the mock uploader completion delay
func (c *AppConfig) MockDelay() time.Duration {
	return time.Duration(c.Upload.MockDelayMilliseconds) * time.Millisecond
}

// RequestTimeout returns the HTTP uploader request timeout
func (c *AppConfig) RequestTimeout() time.Duration {
	return time.Duration(c.Upload.RequestTimeout) * time.Second
}

// SessionTimeout returns how long an unused widget session is kept
func (c *AppConfig) SessionTimeout() time.Duration {
	return time.Duration(c.Session.SessionTimeoutMinutes) * time.Minute
}

// CleanupInterval returns how often idle sessions are swept
func (c *AppConfig) CleanupInterval() time.Duration {
	return time.Duration(c.Session.CleanupIntervalMinutes) * time.Minute
}

// WebSocketReadLimit returns the maximum websocket message size in bytes
func (c *AppConfig) WebSocketReadLimit() int64 {
	return int64(c.Advanced.WebSocketMaxMessageSize) * 1024
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
