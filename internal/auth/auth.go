// Package auth stores the API token used by the CLI and checks it on the
// server side.
package auth

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// EnvToken overrides the stored token.
	EnvToken = "TADA_TOKEN"

	SourceEnv  = "env"
	SourceFile = "file"
)

// ErrNotJWT means a token has no decodable JWT payload.
var ErrNotJWT = errors.New("not a JWT")

// Token is the bearer credential the CLI presents to a tada server.
type Token struct {
	Value   string    `json:"token"`
	Source  string    `json:"source"`
	SavedAt time.Time `json:"saved_at,omitempty"`
	// ExpiresAt comes from the JWT exp claim; nil for opaque tokens.
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Expired reports whether the token carries an expiry at or before now.
func (t *Token) Expired(now time.Time) bool {
	return t.ExpiresAt != nil && !now.Before(*t.ExpiresAt)
}

// CredentialsPath is ~/.tada/credentials.json.
func CredentialsPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home: %w", err)
	}
	return filepath.Join(home, ".tada", "credentials.json"), nil
}

// Load returns the active token: TADA_TOKEN first, then the credentials
// file. A nil token with a nil error means not logged in.
func Load() (*Token, error) {
	if env := strings.TrimSpace(os.Getenv(EnvToken)); env != "" {
		return newToken(env, SourceEnv), nil
	}
	p, err := CredentialsPath()
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	var tok Token
	if err := json.Unmarshal(b, &tok); err != nil {
		return nil, fmt.Errorf("parse credentials %s: %w", p, err)
	}
	tok.Value = StripBearer(tok.Value)
	tok.Source = SourceFile
	if tok.Value == "" {
		return nil, fmt.Errorf("parse credentials %s: empty token", p)
	}
	return &tok, nil
}

// Save writes raw to the credentials file (owner-only) and returns what
// was stored.
func Save(raw string) (*Token, error) {
	tok := newToken(raw, SourceFile)
	if tok.Value == "" {
		return nil, errors.New("empty token")
	}
	tok.SavedAt = time.Now().UTC()

	p, err := CredentialsPath()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
		return nil, fmt.Errorf("mkdir: %w", err)
	}
	b, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}
	if err := os.WriteFile(p, b, 0o600); err != nil {
		return nil, fmt.Errorf("write credentials: %w", err)
	}
	return tok, nil
}

// Remove deletes the credentials file; a missing file is not an error.
func Remove() error {
	p, err := CredentialsPath()
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove credentials: %w", err)
	}
	return nil
}

func newToken(raw, source string) *Token {
	tok := &Token{Value: StripBearer(strings.TrimSpace(raw)), Source: source}
	if exp, ok := expiry(tok.Value); ok {
		tok.ExpiresAt = &exp
	}
	return tok
}

// Payload decodes the (unverified) claims segment of a JWT.
func Payload(token string) ([]byte, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, ErrNotJWT
	}
	b, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(parts[1], "="))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotJWT, err)
	}
	return b, nil
}

func expiry(token string) (time.Time, bool) {
	payload, err := Payload(token)
	if err != nil {
		return time.Time{}, false
	}
	var claims struct {
		Exp json.Number `json:"exp"`
	}
	if json.Unmarshal(payload, &claims) != nil || claims.Exp == "" {
		return time.Time{}, false
	}
	secs, err := claims.Exp.Int64()
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(secs, 0).UTC(), true
}

// StripBearer drops a leading "Bearer " scheme, case-insensitively.
func StripBearer(s string) string {
	if strings.HasPrefix(strings.ToLower(s), "bearer ") {
		return strings.TrimSpace(s[7:])
	}
	return s
}
