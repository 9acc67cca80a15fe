// Package config provides server configuration loaded from environment variables.
package config

import (
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/kelseyhightower/envconfig"

	"github.com/morezero/mcp-servers/pkg/commsutil"
)

const logPrefix = "config:LoadConfig"

// Service kinds.
const (
	KindXiaohongshu = "xiaohongshu"
	KindTemplate    = "template"
)

// Provider kinds.
const (
	ProviderMock  = "mock"
	ProviderComms = "comms"
)

// defaultPorts are the per-service ports used when PORT is unset.
var defaultPorts = map[string]int{
	KindXiaohongshu: 8001,
	KindTemplate:    8002,
}

// Config holds mcp-server configuration.
type Config struct {
	// HTTP listener
	Host  string `envconfig:"HOST" default:"0.0.0.0"`
	Port  int    `envconfig:"PORT"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	// Service identity. SERVICE_NAME defaults to "<kind>-mcp".
	ServiceKind    string `envconfig:"SERVICE_KIND" default:"xiaohongshu"`
	ServiceName    string `envconfig:"SERVICE_NAME"`
	ServiceVersion string `envconfig:"SERVICE_VERSION" default:"1.0.0"`

	// Timeouts
	HeartbeatInterval time.Duration `envconfig:"HEARTBEAT_INTERVAL" default:"30s"`
	RequestTimeout    time.Duration `envconfig:"REQUEST_TIMEOUT" default:"25s"`
	ShutdownTimeout   time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
	SSEWriteTimeout   time.Duration `envconfig:"SSE_WRITE_TIMEOUT" default:"5s"`

	// COMMS: empty COMMSURL disables the action subject and event publishing.
	COMMSURL string `envconfig:"COMMS_URL"`

	// Capability provider
	Provider        string        `envconfig:"PROVIDER" default:"mock"`
	ProviderSubject string        `envconfig:"PROVIDER_SUBJECT"`
	ProviderTimeout time.Duration `envconfig:"PROVIDER_TIMEOUT" default:"10s"`

	// Action endpoint rate limiting; zero RPS disables it.
	RateLimitRPS   float64 `envconfig:"RATE_LIMIT_RPS" default:"0"`
	RateLimitBurst int     `envconfig:"RATE_LIMIT_BURST" default:"20"`

	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`

	// Honour X-Forwarded-For / X-Real-IP. Enable only behind a proxy that overwrites them.
	TrustProxyHeaders bool `envconfig:"TRUST_PROXY_HEADERS" default:"false"`

	// Logging
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// LoadConfig loads configuration from environment variables and fills derived defaults.
func LoadConfig() (*Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, fmt.Errorf("%s - %w", logPrefix, err)
	}
	c.ServiceKind = strings.ToLower(strings.TrimSpace(c.ServiceKind))
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	if c.ServiceName == "" {
		c.ServiceName = c.ServiceKind + "-mcp"
	}
	if c.Port == 0 {
		c.Port = defaultPorts[c.ServiceKind]
	}
	if c.ProviderSubject == "" {
		c.ProviderSubject = commsutil.BuildBackendSubject(c.ServiceKind)
	}
	return &c, nil
}

// ValidateForServe checks required config when running the server.
func (c *Config) ValidateForServe() error {
	if _, ok := defaultPorts[c.ServiceKind]; !ok {
		return fmt.Errorf("%s - SERVICE_KIND must be %q or %q, got %q", logPrefix, KindXiaohongshu, KindTemplate, c.ServiceKind)
	}
	if _, err := semver.StrictNewVersion(c.ServiceVersion); err != nil {
		return fmt.Errorf("%s - SERVICE_VERSION %q is not a valid semantic version: %w", logPrefix, c.ServiceVersion, err)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%s - PORT must be between 1 and 65535, got %d", logPrefix, c.Port)
	}
	if c.HeartbeatInterval <= 0 {
		return fmt.Errorf("%s - HEARTBEAT_INTERVAL must be positive", logPrefix)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("%s - REQUEST_TIMEOUT must be positive", logPrefix)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("%s - SHUTDOWN_TIMEOUT must be positive", logPrefix)
	}
	if c.SSEWriteTimeout <= 0 {
		return fmt.Errorf("%s - SSE_WRITE_TIMEOUT must be positive", logPrefix)
	}
	switch c.Provider {
	case ProviderMock:
	case ProviderComms:
		if c.COMMSURL == "" {
			return fmt.Errorf("%s - COMMS_URL is required when PROVIDER=%s", logPrefix, ProviderComms)
		}
		if c.ProviderTimeout <= 0 {
			return fmt.Errorf("%s - PROVIDER_TIMEOUT must be positive", logPrefix)
		}
	default:
		return fmt.Errorf("%s - PROVIDER must be %q or %q, got %q", logPrefix, ProviderMock, ProviderComms, c.Provider)
	}
	if c.RateLimitRPS < 0 || c.RateLimitBurst < 0 {
		return fmt.Errorf("%s - RATE_LIMIT_RPS and RATE_LIMIT_BURST must not be negative", logPrefix)
	}
	return nil
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// SlogLevel maps LOG_LEVEL to a slog level. DEBUG=true forces debug.
func (c *Config) SlogLevel() slog.Level {
	if c.Debug {
		return slog.LevelDebug
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
