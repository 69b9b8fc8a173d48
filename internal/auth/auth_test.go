package auth

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jwt(claims string) string {
	enc := base64.RawURLEncoding
	return enc.EncodeToString([]byte(`{"alg":"none"}`)) + "." + enc.EncodeToString([]byte(claims)) + ".sig"
}

func TestTokenFileLifecycle(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv(EnvToken, "")

	tok, err := Load()
	require.NoError(t, err)
	assert.Nil(t, tok, "not logged in")

	saved, err := Save("Bearer opaque-123")
	require.NoError(t, err)
	assert.Nil(t, saved.ExpiresAt)
	info, err := os.Stat(filepath.Join(home, ".tada", "credentials.json"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	tok, err = Load()
	require.NoError(t, err)
	require.NotNil(t, tok)
	assert.Equal(t, "opaque-123", tok.Value)
	assert.Equal(t, SourceFile, tok.Source)
	assert.False(t, tok.SavedAt.IsZero())

	require.NoError(t, Remove())
	require.NoError(t, Remove(), "removing twice is fine")
	tok, err = Load()
	require.NoError(t, err)
	assert.Nil(t, tok)
}

func TestSaveRecordsJWTExpiry(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv(EnvToken, "")

	_, err := Save(jwt(`{"sub":"ada","exp":1893456000}`))
	require.NoError(t, err)

	tok, err := Load()
	require.NoError(t, err)
	require.NotNil(t, tok.ExpiresAt)
	want := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.True(t, want.Equal(*tok.ExpiresAt))
	assert.False(t, tok.Expired(want.Add(-time.Second)))
	assert.True(t, tok.Expired(want))
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv(EnvToken, "bearer "+jwt(`{"exp":1}`))

	tok, err := Load()
	require.NoError(t, err)
	require.NotNil(t, tok)
	assert.Equal(t, SourceEnv, tok.Source)
	assert.True(t, tok.Expired(time.Now()))
}

func TestLoadReportsCorruptFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv(EnvToken, "")
	require.NoError(t, os.MkdirAll(filepath.Join(home, ".tada"), 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(home, ".tada", "credentials.json"), []byte("{not json"), 0o600))

	tok, err := Load()
	assert.Nil(t, tok)
	assert.ErrorContains(t, err, "parse credentials")
}

func TestSaveRejectsEmpty(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	_, err := Save("  ")
	assert.Error(t, err)
	_, err = Save("Bearer ")
	assert.Error(t, err)
}

func TestPayload(t *testing.T) {
	p, err := Payload(jwt(`{"sub":"ada"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"sub":"ada"}`, string(p))

	_, err = Payload("opaque")
	assert.ErrorIs(t, err, ErrNotJWT)
	_, err = Payload("a.!!!.c")
	assert.ErrorIs(t, err, ErrNotJWT)
}

func TestRequireToken(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := RequireToken("s3cret", ok)

	tests := []struct {
		header string
		want   int
	}{
		{"", http.StatusUnauthorized},
		{"Bearer wrong", http.StatusUnauthorized},
		{"Bearer s3cret", http.StatusNoContent},
		{"bearer s3cret", http.StatusNoContent},
	}
	for _, tc := range tests {
		req := httptest.NewRequest(http.MethodGet, "/api/todolist", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, tc.want, rec.Code, "header %q", tc.header)
	}

	// disabled without a token
	rec := httptest.NewRecorder()
	RequireToken("", ok).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
