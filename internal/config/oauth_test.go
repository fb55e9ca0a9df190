package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validOAuthClient() OAuthClientConfig {
	return OAuthClientConfig{
		Installed: OAuthInstalled{
			ClientID:                "test-client-id.apps.googleusercontent.com",
			ProjectID:               "dispatch-test",
			AuthURI:                 "https://accounts.google.com/o/oauth2/auth",
			TokenURI:                "https://oauth2.googleapis.com/token",
			AuthProviderX509CertURL: "https://www.googleapis.com/oauth2/v1/certs",
			ClientSecret:            "test-secret",
			RedirectURIs:            []string{"http://localhost"},
		},
	}
}

func TestValidateOAuthClient(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *OAuthInstalled)
		wantErr bool
	}{
		{"valid", func(*OAuthInstalled) {}, false},
		{"missing client id", func(c *OAuthInstalled) { c.ClientID = "" }, true},
		{"missing secret", func(c *OAuthInstalled) { c.ClientSecret = "" }, true},
		{"invalid auth url", func(c *OAuthInstalled) { c.AuthURI = "not-a-valid-url" }, true},
		{"no redirect uris", func(c *OAuthInstalled) { c.RedirectURIs = []string{} }, true},
		{"invalid redirect uri", func(c *OAuthInstalled) { c.RedirectURIs = []string{"not a valid uri"} }, true},
		{"oob redirect uri", func(c *OAuthInstalled) { c.RedirectURIs = []string{"urn:ietf:wg:oauth:2.0:oob"} }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validOAuthClient()
			tt.mutate(&cfg.Installed)

			err := ValidateOAuthClient(&cfg)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "validation failed")
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestLoadOAuthClientFromPath(t *testing.T) {
	tmpDir := t.TempDir()
	oauthPath := filepath.Join(tmpDir, "oauthClient.json")

	cfg := validOAuthClient()
	data, err := cfg.JSON()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(oauthPath, data, 0600))

	loaded, err := LoadOAuthClientFromPath(oauthPath)
	require.NoError(t, err)
	assert.Equal(t, cfg, *loaded)
}

func TestOAuthClientConfig_JSONUsesGoogleFieldNames(t *testing.T) {
	cfg := validOAuthClient()

	data, err := cfg.JSON()
	require.NoError(t, err)

	var raw map[string]map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "test-secret", raw["installed"]["client_secret"])
	assert.Contains(t, raw["installed"], "redirect_uris")
}

func TestLoadOAuthClientFromPath_Errors(t *testing.T) {
	tmpDir := t.TempDir()

	badJSON := filepath.Join(tmpDir, "invalid.json")
	require.NoError(t, os.WriteFile(badJSON, []byte(`{"installed": {"client_id": "x" "project_id": "y"}}`), 0600))
	_, err := LoadOAuthClientFromPath(badJSON)
	assert.ErrorContains(t, err, "failed to parse oauth client file")

	missing := filepath.Join(tmpDir, "missing.json")
	require.NoError(t, os.WriteFile(missing, []byte(`{"installed": {"client_id": "x"}}`), 0600))
	_, err = LoadOAuthClientFromPath(missing)
	assert.ErrorContains(t, err, "validation failed")

	_, err = LoadOAuthClientFromPath(filepath.Join(tmpDir, "nope.json"))
	assert.ErrorContains(t, err, "failed to read oauth client file")
}

func TestLoadOAuthClientWithEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg := validOAuthClient()
	data, err := cfg.JSON()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile("oauthClient.test.json", data, 0600))

	loaded, err := LoadOAuthClientWithEnv("test")
	require.NoError(t, err)
	assert.Equal(t, "dispatch-test", loaded.Installed.ProjectID)

	_, err = LoadOAuthClientWithEnv("")
	assert.ErrorContains(t, err, "failed to find oauth client file")
}
