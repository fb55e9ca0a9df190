package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/teambition/rrule-go"
	"gopkg.in/yaml.v3"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Geocoding configures the address lookup service
type Geocoding struct {
	BaseURL         string        `yaml:"baseURL,omitempty" validate:"omitempty,url"`
	APIKey          string        `yaml:"apiKey,omitempty"`
	MaxRetries      int           `yaml:"maxRetries,omitempty" validate:"min=0,max=10"`
	RequestInterval time.Duration `yaml:"requestInterval,omitempty"`
	RetryBackoff    time.Duration `yaml:"retryBackoff,omitempty"`
	CacheTTL        time.Duration `yaml:"cacheTTL,omitempty"`
}

// Simulator configures the real-time clock driver
type Simulator struct {
	Interval time.Duration `yaml:"interval,omitempty"`
	StepRule string        `yaml:"stepRule,omitempty"`
}

// Notifications configures volunteer emails
type Notifications struct {
	Enabled     bool   `yaml:"enabled"`
	GmailUserID string `yaml:"gmailUserID,omitempty" validate:"required_if=Enabled true"`
	GmailSender string `yaml:"gmailSender,omitempty" validate:"omitempty,email"`
}

// Reports configures the call report export
type Reports struct {
	SpreadsheetID string `yaml:"spreadsheetID,omitempty"`
	Tab           string `yaml:"tab,omitempty"`
}

// Config represents the application configuration
type Config struct {
	Store         string        `yaml:"store" validate:"required,oneof=memory postgres"`
	DatabaseURL   string        `yaml:"databaseURL,omitempty" validate:"required_if=Store postgres"`
	RiskRange     time.Duration `yaml:"riskRange,omitempty"`
	InitialClock  string        `yaml:"initialClock,omitempty" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	Geocoding     Geocoding     `yaml:"geocoding,omitempty"`
	Simulator     Simulator     `yaml:"simulator,omitempty"`
	Notifications Notifications `yaml:"notifications,omitempty"`
	Reports       Reports       `yaml:"reports,omitempty"`
}

// InitialTime returns the configured starting clock, or the zero time when unset
func (c *Config) InitialTime() time.Time {
	if c.InitialClock == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, c.InitialClock)
	if err != nil {
		return time.Time{}
	}
	return t
}

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Load loads and validates the configuration from dispatch_config.yaml
// It looks for the config file in the current directory first, then in the user's home directory
func Load() (*Config, error) {
	return LoadWithEnv("")
}

// LoadWithEnv loads the configuration for an environment.
// For example, env="test" will look for "dispatch_config.test.yaml"
func LoadWithEnv(env string) (*Config, error) {
	name := "dispatch_config.yaml"
	if env != "" {
		name = "dispatch_config." + env + ".yaml"
	}
	configPath, err := findFile(name)
	if err != nil {
		return nil, fmt.Errorf("failed to find config file: %w", err)
	}

	return LoadFromPath(configPath)
}

// LoadFromPath loads and validates the configuration from a specific path
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate validates the configuration struct and checks the simulator step rule
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	if cfg.RiskRange < 0 {
		return fmt.Errorf("config validation failed: riskRange must not be negative")
	}
	if cfg.Simulator.Interval != 0 && cfg.Simulator.Interval < time.Second {
		return fmt.Errorf("config validation failed: simulator interval must be at least 1s")
	}
	if cfg.Geocoding.RequestInterval < 0 || cfg.Geocoding.RetryBackoff < 0 || cfg.Geocoding.CacheTTL < 0 {
		return fmt.Errorf("config validation failed: geocoding durations must not be negative")
	}

	if cfg.Simulator.StepRule != "" {
		if _, err := rrule.StrToRRule(cfg.Simulator.StepRule); err != nil {
			return fmt.Errorf("invalid rrule in simulator.stepRule: %w", err)
		}
	}

	return nil
}

// findFile looks for name in the current directory, then in the user's home directory
func findFile(name string) (string, error) {
	if _, err := os.Stat(name); err == nil {
		return name, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	homePath := filepath.Join(homeDir, name)
	if _, err := os.Stat(homePath); err == nil {
		return homePath, nil
	}

	return "", fmt.Errorf("%s not found in current directory or home directory", name)
}
