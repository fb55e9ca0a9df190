package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_ValidConfig(t *testing.T) {
	cfg := &Config{
		Store:        StorePostgres,
		DatabaseURL:  "postgres://dispatch@localhost:5432/dispatch",
		RiskRange:    30 * time.Minute,
		InitialClock: "2025-01-05T08:00:00Z",
		Geocoding: Geocoding{
			BaseURL:    "https://geocode.example.org",
			MaxRetries: 3,
		},
		Simulator: Simulator{
			Interval: 2 * time.Second,
			StepRule: "FREQ=MINUTELY;INTERVAL=5",
		},
		Notifications: Notifications{
			Enabled:     true,
			GmailUserID: "me",
			GmailSender: "dispatch@example.org",
		},
	}

	err := Validate(cfg)
	assert.NoError(t, err)
}

func TestValidate_MinimalConfig(t *testing.T) {
	cfg := &Config{Store: StoreMemory}

	err := Validate(cfg)
	assert.NoError(t, err)
}

func TestValidate_Failures(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"missing store", Config{}, "validation failed"},
		{"unknown store", Config{Store: "mongo"}, "validation failed"},
		{"postgres without url", Config{Store: StorePostgres}, "validation failed"},
		{"bad initial clock", Config{Store: StoreMemory, InitialClock: "yesterday"}, "validation failed"},
		{"negative risk range", Config{Store: StoreMemory, RiskRange: -time.Minute}, "riskRange"},
		{"sub-second interval", Config{Store: StoreMemory, Simulator: Simulator{Interval: time.Millisecond}}, "interval"},
		{"bad geocoder url", Config{Store: StoreMemory, Geocoding: Geocoding{BaseURL: "not a url"}}, "validation failed"},
		{"notifications without user", Config{Store: StoreMemory, Notifications: Notifications{Enabled: true}}, "validation failed"},
		{"invalid rrule", Config{Store: StoreMemory, Simulator: Simulator{StepRule: "INVALID_RRULE_SYNTAX"}}, "invalid rrule"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(&tt.cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_InitialTime(t *testing.T) {
	cfg := &Config{InitialClock: "2025-01-05T10:00:00+02:00"}
	assert.True(t, time.Date(2025, 1, 5, 8, 0, 0, 0, time.UTC).Equal(cfg.InitialTime()))

	assert.True(t, (&Config{}).InitialTime().IsZero())
}

func TestLoadFromPath_ValidConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test_config.yaml")

	validConfig := `
store: memory
riskRange: 45m
initialClock: "2025-01-05T08:00:00Z"
geocoding:
  baseURL: "https://geocode.example.org"
  apiKey: "secret"
  maxRetries: 2
  requestInterval: 500ms
  retryBackoff: 250ms
  cacheTTL: 1h
simulator:
  interval: 1s
  stepRule: "FREQ=HOURLY"
notifications:
  enabled: true
  gmailUserID: "me"
  gmailSender: "dispatch@example.org"
reports:
  spreadsheetID: "sheet123"
  tab: "Calls"
`

	err := os.WriteFile(configPath, []byte(validConfig), 0644)
	require.NoError(t, err)

	cfg, err := LoadFromPath(configPath)
	require.NoError(t, err)

	assert.Equal(t, StoreMemory, cfg.Store)
	assert.Equal(t, 45*time.Minute, cfg.RiskRange)
	assert.Equal(t, "https://geocode.example.org", cfg.Geocoding.BaseURL)
	assert.Equal(t, "secret", cfg.Geocoding.APIKey)
	assert.Equal(t, 2, cfg.Geocoding.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.Geocoding.RequestInterval)
	assert.Equal(t, 250*time.Millisecond, cfg.Geocoding.RetryBackoff)
	assert.Equal(t, time.Hour, cfg.Geocoding.CacheTTL)
	assert.Equal(t, time.Second, cfg.Simulator.Interval)
	assert.Equal(t, "FREQ=HOURLY", cfg.Simulator.StepRule)
	assert.True(t, cfg.Notifications.Enabled)
	assert.Equal(t, "me", cfg.Notifications.GmailUserID)
	assert.Equal(t, "sheet123", cfg.Reports.SpreadsheetID)
	assert.Equal(t, "Calls", cfg.Reports.Tab)
}

func TestLoadFromPath_MinimalConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "minimal_config.yaml")

	err := os.WriteFile(configPath, []byte("store: memory\n"), 0644)
	require.NoError(t, err)

	cfg, err := LoadFromPath(configPath)
	require.NoError(t, err)

	assert.Zero(t, cfg.RiskRange)
	assert.Empty(t, cfg.Simulator.StepRule)
	assert.False(t, cfg.Notifications.Enabled)
}

func TestLoadFromPath_InvalidRRule(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid_rrule.yaml")

	invalidConfig := `
store: memory
simulator:
  stepRule: "INVALID_RRULE_SYNTAX"
`

	err := os.WriteFile(configPath, []byte(invalidConfig), 0644)
	require.NoError(t, err)

	_, err = LoadFromPath(configPath)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid rrule")
}

func TestLoadFromPath_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid_yaml.yaml")

	invalidYAML := `
store: [memory
riskRange: 30m
`

	err := os.WriteFile(configPath, []byte(invalidYAML), 0644)
	require.NoError(t, err)

	_, err = LoadFromPath(configPath)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestLoadFromPath_FileNotFound(t *testing.T) {
	_, err := LoadFromPath("/nonexistent/path/config.yaml")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadWithEnv_FindsFileInWorkingDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	t.Chdir(tmpDir)
	t.Setenv("HOME", t.TempDir())

	err := os.WriteFile("dispatch_config.test.yaml", []byte("store: memory\nriskRange: 10m\n"), 0644)
	require.NoError(t, err)

	cfg, err := LoadWithEnv("test")
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, cfg.RiskRange)

	_, err = LoadWithEnv("prod")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "dispatch_config.prod.yaml not found")
}
