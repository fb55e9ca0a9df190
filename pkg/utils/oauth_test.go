package utils

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/jakechorley/volunteer-dispatch/internal/config"
)

func TestMissingScopes(t *testing.T) {
	granted := "openid https://www.googleapis.com/auth/gmail.send"

	assert.Empty(t, missingScopes(granted, []string{ScopeGmailSend}))
	assert.Equal(t, []string{ScopeSheets}, missingScopes(granted, DefaultScopes))
	assert.Equal(t, DefaultScopes, missingScopes("", DefaultScopes))
}

func TestGetOAuthConfig(t *testing.T) {
	client := &config.OAuthClientConfig{
		Installed: config.OAuthInstalled{
			ClientID:                "client-id",
			ProjectID:               "dispatch",
			AuthURI:                 "https://accounts.google.com/o/oauth2/auth",
			TokenURI:                "https://oauth2.googleapis.com/token",
			AuthProviderX509CertURL: "https://www.googleapis.com/oauth2/v1/certs",
			ClientSecret:            "secret",
			RedirectURIs:            []string{"http://localhost"},
		},
	}

	cfg, err := GetOAuthConfig(client)
	require.NoError(t, err)
	assert.Equal(t, "client-id", cfg.ClientID)
	assert.Equal(t, DefaultScopes, cfg.Scopes)
	assert.Equal(t, "http://localhost:3000/oauth/callback", cfg.RedirectURL)

	cfg, err = GetOAuthConfig(client, ScopeGmailSend)
	require.NoError(t, err)
	assert.Equal(t, []string{ScopeGmailSend}, cfg.Scopes)
}

func TestTokenStoreRoundTrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	store, err := NewTokenStore("test")
	require.NoError(t, err)

	missing, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, missing)

	token := &oauth2.Token{
		AccessToken:  "access",
		RefreshToken: "refresh",
		Expiry:       time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.Save(token))

	info, err := os.Stat(store.path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "access", loaded.AccessToken)
	assert.Equal(t, "refresh", loaded.RefreshToken)
	assert.True(t, token.Expiry.Equal(loaded.Expiry))

	require.NoError(t, store.Remove())
	require.NoError(t, store.Remove())

	gone, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestCallbackHandler(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		wantCode string
		wantErr  string
	}{
		{"code", "state=s1&code=abc", "abc", ""},
		{"wrong state", "state=other&code=abc", "", "state mismatch"},
		{"denied", "state=s1&error=access_denied", "", "access_denied"},
		{"no code", "state=s1", "", "no authorization code"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := make(chan callbackResult, 1)
			rec := httptest.NewRecorder()

			callbackHandler("s1", results)(rec, httptest.NewRequest(http.MethodGet, callbackPath+"?"+tt.query, nil))

			res := <-results
			if tt.wantErr != "" {
				assert.Equal(t, http.StatusBadRequest, rec.Code)
				assert.ErrorContains(t, res.err, tt.wantErr)
				return
			}
			assert.Equal(t, http.StatusOK, rec.Code)
			require.NoError(t, res.err)
			assert.Equal(t, tt.wantCode, res.code)
		})
	}
}

func TestCheckScopes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("access_token") {
		case "full":
			w.Write([]byte(`{"scope":"` + ScopeSheets + " " + ScopeGmailSend + `"}`))
		case "partial":
			w.Write([]byte(`{"scope":"` + ScopeGmailSend + `"}`))
		default:
			http.Error(w, "invalid_token", http.StatusBadRequest)
		}
	}))
	t.Cleanup(server.Close)
	ctx := context.Background()

	assert.NoError(t, checkScopes(ctx, server.Client(), server.URL, &oauth2.Token{AccessToken: "full"}, DefaultScopes))

	err := checkScopes(ctx, server.Client(), server.URL, &oauth2.Token{AccessToken: "partial"}, DefaultScopes)
	assert.ErrorContains(t, err, ScopeSheets)

	err = checkScopes(ctx, server.Client(), server.URL, &oauth2.Token{AccessToken: "revoked"}, DefaultScopes)
	assert.ErrorContains(t, err, "status 400")
}
