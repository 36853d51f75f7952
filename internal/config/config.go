package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Catalyst CatalystConfig `yaml:"catalyst"`
	Log      LogConfig      `yaml:"log"`
	Ledger   LedgerConfig   `yaml:"ledger"`
	Task     TaskConfig     `yaml:"task"`
	Export   ExportConfig   `yaml:"export"`
}

// CatalystConfig contains Catalyst Center connection settings
type CatalystConfig struct {
	Host      string   `yaml:"host"`
	Port      int      `yaml:"port"`
	Username  string   `yaml:"username"`
	Password  string   `yaml:"password"`
	Version   string   `yaml:"version"`
	VerifyTLS bool     `yaml:"verify_tls"`
	Timeout   Duration `yaml:"timeout"` // HTTP timeout for a single API request

	RateLimitRPS float64 `yaml:"rate_limit_rps"` // Outgoing API call budget (default: 10)
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`
	JSON   bool   `yaml:"json"`
	Colors bool   `yaml:"colors"`
}

// LedgerConfig contains audit ledger settings. An empty path disables the ledger.
type LedgerConfig struct {
	Path          string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
}

// TaskConfig holds task polling defaults; a playbook may override both.
type TaskConfig struct {
	Timeout      Duration `yaml:"timeout"`
	PollInterval Duration `yaml:"poll_interval"`
}

// ExportConfig controls where device export CSV files are written.
type ExportConfig struct {
	Dir string `yaml:"dir"`
}

// BaseURL returns the scheme://host:port prefix for API requests.
func (c *CatalystConfig) BaseURL() string {
	host := strings.TrimSuffix(c.Host, "/")
	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		return fmt.Sprintf("%s:%d", host, c.Port)
	}
	return fmt.Sprintf("https://%s:%d", host, c.Port)
}

// Duration is a wrapper around time.Duration for YAML unmarshalling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data)
}

// Parse parses configuration bytes, expands environment variables and fills defaults.
func Parse(data []byte) (*Config, error) {
	// Expand environment variables
	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	if cfg.Catalyst.Host == "" {
		return nil, fmt.Errorf("catalyst.host is required")
	}

	// Set defaults
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	// Catalyst defaults
	if cfg.Catalyst.Port == 0 {
		cfg.Catalyst.Port = 443
	}
	if cfg.Catalyst.Version == "" {
		cfg.Catalyst.Version = "2.3.7.6"
	}
	if cfg.Catalyst.Timeout == 0 {
		cfg.Catalyst.Timeout = Duration(60 * time.Second)
	}
	if cfg.Catalyst.RateLimitRPS == 0 {
		cfg.Catalyst.RateLimitRPS = 10.0
	}

	// Task defaults match the controller's documented task budget
	if cfg.Task.Timeout == 0 {
		cfg.Task.Timeout = Duration(1200 * time.Second)
	}
	if cfg.Task.PollInterval == 0 {
		cfg.Task.PollInterval = Duration(2 * time.Second)
	}

	// Ledger defaults
	if cfg.Ledger.RetentionDays == 0 {
		cfg.Ledger.RetentionDays = 30
	}

	if cfg.Export.Dir == "" {
		cfg.Export.Dir = "."
	}

	return &cfg, nil
}

// expandEnvVars expands environment variables in the format ${VAR} or ${VAR:default}
func expandEnvVars(input string) string {
	// Match ${VAR} or ${VAR:default}
	re := regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

	return re.ReplaceAllStringFunc(input, func(match string) string {
		parts := re.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultVal := ""
		if len(parts) >= 3 {
			defaultVal = parts[2]
		}

		if val := os.Getenv(varName); val != "" {
			return val
		}
		return defaultVal
	})
}
