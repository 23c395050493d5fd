package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DiscoveryMode represents how the upstream address is resolved
type DiscoveryMode string

const (
	DiscoveryStatic     DiscoveryMode = "static"
	DiscoveryKubernetes DiscoveryMode = "kubernetes"
)

// FrameMode selects the end-of-message strategy used by the forwarder
type FrameMode string

const (
	FrameModeIdle      FrameMode = "idle"
	FrameModeLength    FrameMode = "length"
	FrameModeDelimiter FrameMode = "delimiter"
)

const (
	DefaultListenPort     = 9090
	DefaultUpstreamPort   = 8080
	DefaultWorkerPoolSize = 10
	DefaultTimeout        = 5 * time.Second
	DefaultIdleWindow     = 10 * time.Millisecond
	DefaultFrameDelimiter = "\r\n\r\n"
	DefaultFrameMaxBytes  = 64 << 20
)

// ErrMissingUpstreamHost is returned when EC2_HOST is absent or blank.
var ErrMissingUpstreamHost = errors.New("EC2_HOST is required")

// Config holds all application configuration.
// It is built once at startup and never mutated afterwards.
type Config struct {
	// Core
	Debug     bool
	LogFormat string // text, json

	// Server
	ListenPort       int
	HealthServerPort string
	WorkerPoolSize   int

	// Upstream
	UpstreamHost string
	UpstreamPort int
	Timeout      time.Duration

	// Framing
	FrameMode       FrameMode
	FrameIdleWindow time.Duration
	FrameDelimiter  string
	FrameMaxBytes   int

	// Upstream Discovery
	DiscoveryMode  DiscoveryMode
	Namespace      string
	KubeConfigPath string
	KubeContext    string
}

// ListenAddr returns the address the listener binds to.
func (c *Config) ListenAddr() string {
	return ":" + strconv.Itoa(c.ListenPort)
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		// Core
		Debug:     getEnvBool("DEBUG", false),
		LogFormat: strings.ToLower(getEnv("LOG_FORMAT", "text")),

		// Server
		ListenPort:       getEnvInt("LISTEN_PORT", DefaultListenPort),
		HealthServerPort: getEnv("HEALTH_SERVER_PORT", ""),
		WorkerPoolSize:   getEnvInt("WORKER_POOL_SIZE", DefaultWorkerPoolSize),

		// Upstream
		UpstreamHost: strings.TrimSpace(os.Getenv("EC2_HOST")),
		UpstreamPort: getEnvInt("EC2_PORT", DefaultUpstreamPort),
		Timeout:      getEnvMillis("CONNECTION_TIMEOUT_MS", DefaultTimeout),

		// Framing
		FrameMode:       determineFrameMode(),
		FrameIdleWindow: getEnvMillis("FRAME_IDLE_WINDOW_MS", DefaultIdleWindow),
		FrameDelimiter:  getEnv("FRAME_DELIMITER", DefaultFrameDelimiter),
		FrameMaxBytes:   getEnvInt("FRAME_MAX_BYTES", DefaultFrameMaxBytes),

		// Upstream Discovery
		DiscoveryMode:  determineDiscoveryMode(),
		Namespace:      determineNamespace(),
		KubeConfigPath: getEnv("KUBECONFIG", ""),
		KubeContext:    getEnv("KUBE_CONTEXT", ""),
	}

	delim, err := unquoteDelimiter(cfg.FrameDelimiter)
	if err != nil {
		return nil, err
	}
	cfg.FrameDelimiter = delim

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate ensures configuration is coherent
func (c *Config) validate() error {
	if c.UpstreamHost == "" {
		return ErrMissingUpstreamHost
	}

	if !validPort(c.ListenPort) {
		return fmt.Errorf("invalid LISTEN_PORT: %d (must be 1-65535)", c.ListenPort)
	}
	if !validPort(c.UpstreamPort) {
		return fmt.Errorf("invalid EC2_PORT: %d (must be 1-65535)", c.UpstreamPort)
	}

	if c.WorkerPoolSize < 1 {
		return fmt.Errorf("invalid WORKER_POOL_SIZE: %d (must be at least 1)", c.WorkerPoolSize)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("invalid CONNECTION_TIMEOUT_MS: %s", c.Timeout)
	}

	switch c.FrameMode {
	case FrameModeIdle:
		if c.FrameIdleWindow <= 0 {
			return fmt.Errorf("invalid FRAME_IDLE_WINDOW_MS: %s", c.FrameIdleWindow)
		}
	case FrameModeDelimiter:
		if c.FrameDelimiter == "" {
			return fmt.Errorf("FRAME_DELIMITER must not be empty in delimiter mode")
		}
	case FrameModeLength:
	default:
		return fmt.Errorf("unsupported FRAME_MODE: %s (supported: idle, length, delimiter)", c.FrameMode)
	}
	if c.FrameMaxBytes <= 0 {
		return fmt.Errorf("invalid FRAME_MAX_BYTES: %d", c.FrameMaxBytes)
	}

	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("unsupported LOG_FORMAT: %s (supported: text, json)", c.LogFormat)
	}

	return nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); strings.TrimSpace(value) != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	boolValue, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return boolValue
}

// getEnvInt falls back to defaultValue when the variable is unset or not a number.
func getEnvInt(key string, defaultValue int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intValue
}

func getEnvMillis(key string, defaultValue time.Duration) time.Duration {
	ms := getEnvInt(key, -1)
	if ms < 0 {
		return defaultValue
	}
	return time.Duration(ms) * time.Millisecond
}

func validPort(port int) bool {
	return port > 0 && port <= 65535
}

// unquoteDelimiter interprets Go escape sequences so that "\r\n" can be given
// through an environment variable.
func unquoteDelimiter(raw string) (string, error) {
	if !strings.Contains(raw, `\`) {
		return raw, nil
	}
	s, err := strconv.Unquote(`"` + strings.ReplaceAll(raw, `"`, `\"`) + `"`)
	if err != nil {
		return "", fmt.Errorf("invalid FRAME_DELIMITER %q: %w", raw, err)
	}
	return s, nil
}

func determineFrameMode() FrameMode {
	switch strings.ToLower(getEnv("FRAME_MODE", "idle")) {
	case "length", "length-prefixed":
		return FrameModeLength
	case "delimiter", "delimited":
		return FrameModeDelimiter
	case "idle", "idle-timeout":
		return FrameModeIdle
	default:
		return FrameMode(strings.ToLower(os.Getenv("FRAME_MODE")))
	}
}

func determineDiscoveryMode() DiscoveryMode {
	// Explicit mode
	if mode := os.Getenv("DISCOVERY_MODE"); mode != "" {
		switch strings.ToLower(mode) {
		case "kubernetes", "k8s":
			return DiscoveryKubernetes
		}
	}
	return DiscoveryStatic
}

func determineNamespace() string {
	// Explicit namespace
	if ns := os.Getenv("NAMESPACE"); ns != "" {
		return ns
	}

	// Kubernetes downward API
	if ns := os.Getenv("POD_NAMESPACE"); ns != "" {
		return ns
	}

	// Read from service account (in-cluster)
	if data, err := os.ReadFile("/var/run/secrets/kubernetes.io/serviceaccount/namespace"); err == nil {
		return strings.TrimSpace(string(data))
	}

	return "default"
}
