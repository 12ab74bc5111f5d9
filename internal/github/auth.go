package github

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kanopusdev/aurelis/internal/config"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// OAuth app registration for the device-code login flow.
const deviceClientID = "Iv1.8e3b2f91c44a6d05"

var githubEndpoint = oauth2.Endpoint{
	AuthURL:       "https://github.com/login/oauth/authorize",
	TokenURL:      "https://github.com/login/oauth/access_token",
	DeviceAuthURL: "https://github.com/login/device/code",
}

// Credential is a saved GitHub token with provenance.
type Credential struct {
	Token     string    `json:"token"`
	Source    string    `json:"source"` // "login", "environment", "config"
	CreatedAt time.Time `json:"created_at"`
}

// TokenStore persists the device-flow token under the aurelis home dir.
type TokenStore struct {
	dir string
}

// NewTokenStore creates a token store rooted at dir (normally ~/.aurelis).
func NewTokenStore(dir string) *TokenStore {
	return &TokenStore{dir: dir}
}

func (s *TokenStore) path() string {
	return filepath.Join(s.dir, "token.json")
}

// Save writes the credential with owner-only permissions.
func (s *TokenStore) Save(cred *Credential) error {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}

	data, err := json.MarshalIndent(cred, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal credential: %w", err)
	}
	if err := os.WriteFile(s.path(), data, 0600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	return nil
}

// Load reads the saved credential, if any.
func (s *TokenStore) Load() (*Credential, error) {
	data, err := os.ReadFile(s.path())
	if err != nil {
		return nil, err
	}

	var cred Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		return nil, fmt.Errorf("failed to unmarshal credential: %w", err)
	}
	return &cred, nil
}

// Delete removes the saved credential.
func (s *TokenStore) Delete() error {
	err := os.Remove(s.path())
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// ResolveToken picks the token per the documented precedence: explicit
// config/env value first (viper already merged flag > env > files), then the
// credential saved by `aurelis auth login`.
func ResolveToken(cfg config.GitHubConfig, store *TokenStore) (string, string, error) {
	if cfg.Token != "" {
		return cfg.Token, "environment", nil
	}

	if cred, err := store.Load(); err == nil && cred.Token != "" {
		return cred.Token, "login", nil
	}

	return "", "", ErrNoToken
}

// Login runs the GitHub device-code flow: prints the one-time code, polls
// until the user authorizes in a browser, then persists the token.
func Login(ctx context.Context, store *TokenStore, logger *zap.Logger) (*Credential, error) {
	conf := &oauth2.Config{
		ClientID: deviceClientID,
		Endpoint: githubEndpoint,
		Scopes:   []string{"read:user"},
	}

	da, err := conf.DeviceAuth(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start device authorization: %w", err)
	}

	fmt.Printf("\nFirst copy your one-time code: %s\n", da.UserCode)
	fmt.Printf("Then open %s and paste it.\n\n", da.VerificationURI)
	fmt.Println("Waiting for authorization...")

	logger.Info("device authorization started",
		zap.String("verification_uri", da.VerificationURI))

	token, err := conf.DeviceAccessToken(ctx, da)
	if err != nil {
		return nil, fmt.Errorf("device authorization failed: %w", err)
	}

	cred := &Credential{
		Token:     token.AccessToken,
		Source:    "login",
		CreatedAt: time.Now(),
	}
	if err := store.Save(cred); err != nil {
		return nil, err
	}

	logger.Info("GitHub token saved", zap.String("token", MaskToken(cred.Token)))
	return cred, nil
}

// MaskToken returns a masked token safe for logs and terminal output.
func MaskToken(token string) string {
	if len(token) <= 8 {
		return "***"
	}
	return token[:4] + "..." + token[len(token)-4:]
}
