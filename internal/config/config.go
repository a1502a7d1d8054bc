// ABOUTME: Configuration loading and parsing for charla
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete charla configuration
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	WhatsApp   WhatsAppConfig   `yaml:"whatsapp"`
	Assistant  AssistantConfig  `yaml:"assistant"`
	Transcribe TranscribeConfig `yaml:"transcribe"`
	Database   DatabaseConfig   `yaml:"database"`
	Audio      AudioConfig      `yaml:"audio"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ServerConfig holds webhook server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// WhatsAppConfig holds WhatsApp Cloud API credentials and routing identifiers
type WhatsAppConfig struct {
	AccessToken   string `yaml:"access_token"`
	AppSecret     string `yaml:"app_secret"`
	VerifyToken   string `yaml:"verify_token"`
	PhoneNumberID string `yaml:"phone_number_id"`
	APIVersion    string `yaml:"api_version"`
	GraphBaseURL  string `yaml:"graph_base_url"` // override for tests; defaults to graph.facebook.com
}

// AssistantConfig holds assistant backend credentials and run polling behavior
type AssistantConfig struct {
	APIKey      string `yaml:"api_key"`
	AssistantID string `yaml:"assistant_id"`
	BaseURL     string `yaml:"base_url"` // override for tests; defaults to api.openai.com

	PollInterval time.Duration `yaml:"-"`
	RunTimeout   time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	PollIntervalRaw string `yaml:"poll_interval"`
	RunTimeoutRaw   string `yaml:"run_timeout"`
}

// TranscribeConfig holds speech recognition backend configuration
type TranscribeConfig struct {
	APIKey   string `yaml:"api_key"`
	BaseURL  string `yaml:"base_url"` // override for tests; defaults to speech.googleapis.com
	Language string `yaml:"language"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AudioConfig holds audio pipeline debugging options
type AudioConfig struct {
	// DebugPath, when set, causes each downloaded voice note to be copied
	// to this file for inspection. Off by default.
	DebugPath string `yaml:"debug_path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Defaults applied when the config file leaves optional fields empty.
const (
	DefaultAPIVersion   = "v18.0"
	DefaultLanguage     = "es-ES"
	DefaultPollInterval = 500 * time.Millisecond
	DefaultRunTimeout   = 2 * time.Minute
)

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Parse duration fields
	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	// Match ${VAR_NAME} pattern
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyDefaults fills optional fields that were left empty
func (c *Config) applyDefaults() {
	if c.WhatsApp.APIVersion == "" {
		c.WhatsApp.APIVersion = DefaultAPIVersion
	}
	if c.Transcribe.Language == "" {
		c.Transcribe.Language = DefaultLanguage
	}
	if c.Assistant.PollInterval == 0 {
		c.Assistant.PollInterval = DefaultPollInterval
	}
	if c.Assistant.RunTimeout == 0 {
		c.Assistant.RunTimeout = DefaultRunTimeout
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}

	if c.WhatsApp.AccessToken == "" {
		return fmt.Errorf("whatsapp.access_token is required")
	}
	if c.WhatsApp.VerifyToken == "" {
		return fmt.Errorf("whatsapp.verify_token is required")
	}
	if c.WhatsApp.PhoneNumberID == "" {
		return fmt.Errorf("whatsapp.phone_number_id is required")
	}

	if c.Assistant.APIKey == "" {
		return fmt.Errorf("assistant.api_key is required")
	}
	if c.Assistant.AssistantID == "" {
		return fmt.Errorf("assistant.assistant_id is required")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Assistant.PollIntervalRaw != "" {
		cfg.Assistant.PollInterval, err = time.ParseDuration(cfg.Assistant.PollIntervalRaw)
		if err != nil {
			return fmt.Errorf("parsing poll_interval %q: %w", cfg.Assistant.PollIntervalRaw, err)
		}
	}

	if cfg.Assistant.RunTimeoutRaw != "" {
		cfg.Assistant.RunTimeout, err = time.ParseDuration(cfg.Assistant.RunTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing run_timeout %q: %w", cfg.Assistant.RunTimeoutRaw, err)
		}
	}

	return nil
}
