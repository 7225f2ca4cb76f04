package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type mockPrompter struct {
	code    string
	err     error
	authURL string
	calls   int
}

func (m *mockPrompter) AskCode(authURL string) (string, error) {
	m.calls++
	m.authURL = authURL
	return m.code, m.err
}

// tokenServer answers every token request with a new access token
func tokenServer(t *testing.T, accessToken string) (*httptest.Server, *int) {
	t.Helper()
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":%q,"token_type":"Bearer","refresh_token":"refresh-1","expires_in":3600}`, accessToken)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func writeClientSecret(t *testing.T, dir, tokenURL string) string {
	t.Helper()
	path := filepath.Join(dir, "credentials.json")
	content := fmt.Sprintf(`{"installed":{"client_id":"id","client_secret":"secret",`+
		`"auth_uri":"https://accounts.example.com/auth","token_uri":%q,"redirect_uris":["http://localhost"]}}`, tokenURL)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestProvider_ConsentFlowSavesToken(t *testing.T) {
	dir := t.TempDir()
	srv, hits := tokenServer(t, "access-1")
	prompter := &mockPrompter{code: "4/abc"}
	tokenFile := filepath.Join(dir, "nested", "token.json")

	p := NewProvider(Config{
		CredentialsFile: writeClientSecret(t, dir, srv.URL),
		TokenFile:       tokenFile,
	}, WithPrompter(prompter))

	client, err := p.HTTPClient(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, client)

	assert.Equal(t, 1, prompter.calls)
	assert.Contains(t, prompter.authURL, "access_type=offline")
	assert.Equal(t, 1, *hits)

	saved, err := LoadToken(tokenFile)
	require.NoError(t, err)
	assert.Equal(t, "access-1", saved.AccessToken)
	assert.Equal(t, "refresh-1", saved.RefreshToken)

	info, err := os.Stat(tokenFile)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestProvider_UsesValidCachedToken(t *testing.T) {
	dir := t.TempDir()
	srv, hits := tokenServer(t, "unused")
	prompter := &mockPrompter{}
	tokenFile := filepath.Join(dir, "token.json")
	require.NoError(t, SaveToken(tokenFile, &oauth2.Token{
		AccessToken:  "cached",
		RefreshToken: "refresh-0",
		Expiry:       time.Now().Add(time.Hour),
	}))

	p := NewProvider(Config{CredentialsFile: writeClientSecret(t, dir, srv.URL), TokenFile: tokenFile}, WithPrompter(prompter))

	_, err := p.HTTPClient(context.Background())
	require.NoError(t, err)
	assert.Zero(t, prompter.calls)
	assert.Zero(t, *hits)
}

func TestProvider_RefreshesExpiredToken(t *testing.T) {
	dir := t.TempDir()
	srv, hits := tokenServer(t, "refreshed")
	prompter := &mockPrompter{}
	tokenFile := filepath.Join(dir, "token.json")
	require.NoError(t, SaveToken(tokenFile, &oauth2.Token{
		AccessToken:  "stale",
		RefreshToken: "refresh-0",
		Expiry:       time.Now().Add(-time.Hour),
	}))

	p := NewProvider(Config{CredentialsFile: writeClientSecret(t, dir, srv.URL), TokenFile: tokenFile}, WithPrompter(prompter))

	_, err := p.HTTPClient(context.Background())
	require.NoError(t, err)
	assert.Zero(t, prompter.calls)
	assert.Equal(t, 1, *hits)

	saved, err := LoadToken(tokenFile)
	require.NoError(t, err)
	assert.Equal(t, "refreshed", saved.AccessToken)
}

func TestProvider_Errors(t *testing.T) {
	dir := t.TempDir()
	srv, _ := tokenServer(t, "x")
	secret := writeClientSecret(t, dir, srv.URL)

	tests := []struct {
		name     string
		creds    string
		prompter *mockPrompter
		wantErr  error
		errMsg   string
	}{
		{
			name:     "missing credentials file",
			creds:    filepath.Join(dir, "absent.json"),
			prompter: &mockPrompter{},
			errMsg:   "unable to read credentials file",
		},
		{
			name:     "empty code",
			creds:    secret,
			prompter: &mockPrompter{code: ""},
			wantErr:  ErrNoAuthCode,
		},
		{
			name:     "prompt aborted",
			creds:    secret,
			prompter: &mockPrompter{err: errors.New("interrupt")},
			errMsg:   "interrupt",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewProvider(Config{CredentialsFile: tt.creds, TokenFile: filepath.Join(t.TempDir(), "token.json")},
				WithPrompter(tt.prompter))

			_, err := p.HTTPClient(context.Background())
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			if tt.errMsg != "" {
				assert.Contains(t, err.Error(), tt.errMsg)
			}
		})
	}
}

func TestIsServiceAccount(t *testing.T) {
	assert.True(t, isServiceAccount([]byte(`{"type":"service_account","client_email":"a@b"}`)))
	assert.False(t, isServiceAccount([]byte(`{"installed":{"client_id":"id"}}`)))
	assert.False(t, isServiceAccount([]byte(`not json`)))
}

func TestLoadToken_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o600))

	_, err := LoadToken(path)
	assert.ErrorContains(t, err, "invalid token file")
}
