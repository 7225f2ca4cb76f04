// Package google builds the authorised HTTP client shared by the Drive and Gmail adapters.
package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/gmail/v1"
)

// Scopes requested for the backup account
var Scopes = []string{drive.DriveScope, gmail.GmailSendScope}

// ErrNoAuthCode is returned when the consent flow yields no code
var ErrNoAuthCode = errors.New("no authorization code entered")

// Prompter asks the operator for the verification code shown after consent
type Prompter interface {
	AskCode(authURL string) (string, error)
}

// SurveyPrompter prints the consent URL and reads the code interactively
type SurveyPrompter struct {
	Out io.Writer
}

// AskCode implements Prompter
func (p SurveyPrompter) AskCode(authURL string) (string, error) {
	out := p.Out
	if out == nil {
		out = os.Stdout
	}
	fmt.Fprintf(out, "Open the following link in your browser:\n%s\n\n", authURL)

	var code string
	prompt := &survey.Input{
		Message: "Enter verification code:",
		Help:    "After approving access, copy the code parameter from the page you are redirected to",
	}
	if err := survey.AskOne(prompt, &code, survey.WithValidator(survey.Required)); err != nil {
		return "", err
	}
	return strings.TrimSpace(code), nil
}

// Config holds the locations of the credential files
type Config struct {
	CredentialsFile string // OAuth client or service account JSON
	TokenFile       string // Cached user token, created on first consent
}

// Provider creates authorised HTTP clients
type Provider struct {
	cfg      Config
	prompter Prompter
}

// ProviderOption is a functional option for configuring Provider
type ProviderOption func(*Provider)

// WithPrompter replaces the interactive prompt (for testing)
func WithPrompter(p Prompter) ProviderOption {
	return func(pr *Provider) {
		pr.prompter = p
	}
}

// NewProvider creates a credential provider
func NewProvider(cfg Config, opts ...ProviderOption) *Provider {
	p := &Provider{
		cfg:      cfg,
		prompter: SurveyPrompter{},
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// HTTPClient returns a client authorised for Scopes. Service account keys are
// used directly; OAuth client secrets go through the cached user token.
func (p *Provider) HTTPClient(ctx context.Context) (*http.Client, error) {
	b, err := os.ReadFile(p.cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}

	if isServiceAccount(b) {
		jwt, err := google.JWTConfigFromJSON(b, Scopes...)
		if err != nil {
			return nil, fmt.Errorf("unable to parse service account credentials: %w", err)
		}
		return jwt.Client(ctx), nil
	}

	config, err := google.ConfigFromJSON(b, Scopes...)
	if err != nil {
		return nil, fmt.Errorf("unable to parse OAuth credentials: %w", err)
	}

	token, err := p.token(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to get OAuth token: %w", err)
	}

	return config.Client(ctx, token), nil
}

func isServiceAccount(b []byte) bool {
	var probe struct {
		Type string `json:"type"`
	}
	return json.Unmarshal(b, &probe) == nil && probe.Type == "service_account"
}

// token loads the cached token, refreshing it when expired, or runs the consent flow
func (p *Provider) token(ctx context.Context, config *oauth2.Config) (*oauth2.Token, error) {
	cached, err := LoadToken(p.cfg.TokenFile)
	if err == nil {
		fresh, err := config.TokenSource(ctx, cached).Token()
		if err == nil {
			if fresh.AccessToken != cached.AccessToken {
				if err := SaveToken(p.cfg.TokenFile, fresh); err != nil {
					return nil, err
				}
			}
			return fresh, nil
		}
		// refresh failed, ask for consent again
	}

	return p.consent(ctx, config)
}

func (p *Provider) consent(ctx context.Context, config *oauth2.Config) (*oauth2.Token, error) {
	if config.RedirectURL == "" {
		config.RedirectURL = "http://localhost"
	}
	authURL := config.AuthCodeURL("state-token", oauth2.AccessTypeOffline, oauth2.ApprovalForce)

	code, err := p.prompter.AskCode(authURL)
	if err != nil {
		return nil, err
	}
	if code == "" {
		return nil, ErrNoAuthCode
	}

	token, err := config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("unable to exchange auth code: %w", err)
	}

	if err := SaveToken(p.cfg.TokenFile, token); err != nil {
		return nil, err
	}
	return token, nil
}

// LoadToken reads a token from a JSON file
func LoadToken(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	token := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(token); err != nil {
		return nil, fmt.Errorf("invalid token file %s: %w", file, err)
	}
	return token, nil
}

// SaveToken writes a token to a JSON file readable only by the owner
func SaveToken(file string, token *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(file), 0o700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}

	f, err := os.OpenFile(file, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	defer f.Close()

	return json.NewEncoder(f).Encode(token)
}
