package realtime

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// Database access scopes for service-account tokens.
var serviceAccountScopes = []string{
	"https://www.googleapis.com/auth/userinfo.email",
	"https://www.googleapis.com/auth/firebase.database",
}

// TokenSource supplies the access token sent with database requests.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

type staticToken string

func (t staticToken) Token(context.Context) (string, error) {
	return string(t), nil
}

// StaticToken returns a TokenSource that always yields the same token.
// Useful for database secrets and local mock servers.
func StaticToken(token string) TokenSource {
	return staticToken(token)
}

type jwtSource struct {
	ts oauth2.TokenSource
}

func (s *jwtSource) Token(context.Context) (string, error) {
	tok, err := s.ts.Token()
	if err != nil {
		return "", fmt.Errorf("minting access token: %w", err)
	}
	return tok.AccessToken, nil
}

// ServiceAccount reads a Google service account key file and returns a
// TokenSource that mints short-lived OAuth2 access tokens scoped for
// database access. Tokens are cached and refreshed automatically.
func ServiceAccount(path string) (TokenSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading service account file: %w", err)
	}

	cfg, err := google.JWTConfigFromJSON(data, serviceAccountScopes...)
	if err != nil {
		return nil, fmt.Errorf("parsing service account file: %w", err)
	}

	// jwt.Config.TokenSource caches and refreshes tokens on its own.
	return &jwtSource{ts: cfg.TokenSource(context.Background())}, nil
}
