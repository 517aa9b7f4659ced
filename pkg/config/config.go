// Package config provides environment-based configuration for the buildfix platform.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// SandboxMode selects how fix commands are executed.
type SandboxMode string

const (
	// SandboxModeLocal runs commands directly on the host via os/exec.
	SandboxModeLocal SandboxMode = "local"
	// SandboxModeDocker runs commands inside the project's container.
	SandboxModeDocker SandboxMode = "docker"
	// SandboxModeRemote defers commands to a remote sandbox host over HTTP.
	SandboxModeRemote SandboxMode = "remote"
)

// Config holds all configuration for the buildfix services.
type Config struct {
	// Server configuration
	APIHost string `yaml:"api_host"`
	APIPort int    `yaml:"api_port"`

	// Authentication
	AuthSecret  string        `yaml:"auth_secret"`
	TokenExpiry time.Duration `yaml:"token_expiry"`

	// Database configuration. Empty DSN disables the audit store and the
	// Postgres-backed fix queue; everything else runs in-memory.
	DatabaseDSN string `yaml:"database_dsn"`

	// Graceful shutdown timeout
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// ProjectsRoot is the directory that holds project workspaces, one
	// subdirectory per project ID.
	ProjectsRoot string `yaml:"projects_root"`

	// Sandbox configuration
	Sandbox SandboxConfig `yaml:"sandbox"`

	// Workflow configuration
	Workflow WorkflowConfig `yaml:"workflow"`

	// Trigger configuration
	Trigger TriggerConfig `yaml:"trigger"`

	// Secrets configuration for age-encrypted project env files
	Secrets SecretsConfig `yaml:"secrets"`
}

// SandboxConfig holds fix-execution sandbox configuration.
type SandboxConfig struct {
	Mode           SandboxMode   `yaml:"mode"`
	RemoteHost     string        `yaml:"remote_host"`
	ContainerName  string        `yaml:"container_name"`
	WorkDir        string        `yaml:"work_dir"`
	CommandTimeout time.Duration `yaml:"command_timeout"`
}

// WorkflowConfig gates the optional orchestrator phases.
type WorkflowConfig struct {
	EnablePlanning bool `yaml:"enable_planning"`
	EnableWriting  bool `yaml:"enable_writing"`
	EnableSandbox  bool `yaml:"enable_sandbox"`
	EnableBuild    bool `yaml:"enable_build"`
	EnableVerify   bool `yaml:"enable_verify"`
	EnableDocs     bool `yaml:"enable_docs"`
}

// TriggerConfig holds auto-fix trigger timing.
type TriggerConfig struct {
	// Debounce is the quiet period after the last error signal before a
	// fix job fires.
	Debounce time.Duration `yaml:"debounce"`
	// Cooldown is the minimum gap between successive fix jobs for the
	// same project.
	Cooldown time.Duration `yaml:"cooldown"`
}

// SecretsConfig holds age key material for the project env store.
type SecretsConfig struct {
	// AgePublicKey encrypts project env files (age1... Bech32 encoded).
	AgePublicKey string `yaml:"age_public_key"`
	// AgePrivateKey decrypts project env files (AGE-SECRET-KEY-1...).
	AgePrivateKey string `yaml:"age_private_key"`
}

// Load reads configuration from environment variables, then applies an
// optional YAML overlay file pointed at by BUILDFIX_CONFIG.
func Load() (*Config, error) {
	cfg := &Config{
		APIHost:         getEnv("API_HOST", "0.0.0.0"),
		APIPort:         getIntEnv("API_PORT", 8080),
		AuthSecret:      getEnv("AUTH_SECRET", ""),
		TokenExpiry:     getDurationEnv("TOKEN_EXPIRY", 24*time.Hour),
		DatabaseDSN:     getEnv("DATABASE_URL", ""),
		ShutdownTimeout: getDurationEnv("SHUTDOWN_TIMEOUT", 30*time.Second),
		ProjectsRoot:    getEnv("PROJECTS_ROOT", "/workspace/projects"),
		Sandbox: SandboxConfig{
			Mode:           SandboxMode(getEnv("SANDBOX_MODE", string(SandboxModeLocal))),
			RemoteHost:     getEnv("SANDBOX_HOST", ""),
			ContainerName:  getEnv("SANDBOX_CONTAINER", ""),
			WorkDir:        getEnv("SANDBOX_WORKDIR", "/workspace"),
			CommandTimeout: getDurationEnv("SANDBOX_COMMAND_TIMEOUT", 120*time.Second),
		},
		Workflow: WorkflowConfig{
			EnablePlanning: getBoolEnv("WORKFLOW_ENABLE_PLANNING", true),
			EnableWriting:  getBoolEnv("WORKFLOW_ENABLE_WRITING", true),
			EnableSandbox:  getBoolEnv("WORKFLOW_ENABLE_SANDBOX", true),
			EnableBuild:    getBoolEnv("WORKFLOW_ENABLE_BUILD", true),
			EnableVerify:   getBoolEnv("WORKFLOW_ENABLE_VERIFY", true),
			EnableDocs:     getBoolEnv("WORKFLOW_ENABLE_DOCS", false),
		},
		Trigger: TriggerConfig{
			Debounce: getDurationEnv("FIX_TRIGGER_DEBOUNCE", 2*time.Second),
			Cooldown: getDurationEnv("FIX_TRIGGER_COOLDOWN", 30*time.Second),
		},
		Secrets: SecretsConfig{
			AgePublicKey:  getEnv("AGE_PUBLIC_KEY", ""),
			AgePrivateKey: getEnv("AGE_PRIVATE_KEY", ""),
		},
	}

	if path := os.Getenv("BUILDFIX_CONFIG"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, fmt.Errorf("applying config file %s: %w", path, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyFile overlays values from a YAML config file on top of the
// environment-derived configuration.
func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}
	return nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.APIPort <= 0 || c.APIPort > 65535 {
		return fmt.Errorf("invalid API port: %d", c.APIPort)
	}

	switch c.Sandbox.Mode {
	case SandboxModeLocal, SandboxModeDocker, SandboxModeRemote:
	default:
		return fmt.Errorf("invalid sandbox mode: %q", c.Sandbox.Mode)
	}

	if c.Sandbox.Mode == SandboxModeRemote && c.Sandbox.RemoteHost == "" {
		return fmt.Errorf("SANDBOX_HOST is required in remote sandbox mode")
	}

	if c.Sandbox.Mode == SandboxModeDocker && c.Sandbox.ContainerName == "" {
		return fmt.Errorf("SANDBOX_CONTAINER is required in docker sandbox mode")
	}

	return nil
}

// getEnv returns the value of the environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnv returns the integer value of the environment variable or a default.
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getBoolEnv returns the boolean value of the environment variable or a default.
func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getDurationEnv returns the duration value of the environment variable or a default.
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
