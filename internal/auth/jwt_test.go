package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestTokenService uses a fixed secret so tests are deterministic.
func newTestTokenService(t *testing.T) *TokenService {
	t.Helper()
	ts, err := NewTokenService("test-secret-at-least-16-chars!!", time.Hour)
	require.NoError(t, err)
	return ts
}

// =========================================================================
// CONSTRUCTION
// =========================================================================

func TestNewTokenService_ShortSecret(t *testing.T) {
	_, err := NewTokenService("short", time.Hour)
	assert.Error(t, err)
}

func TestNewTokenService_NonPositiveTTL(t *testing.T) {
	_, err := NewTokenService("this-is-16-chars", 0)
	assert.Error(t, err)
}

func TestNewTokenService_Valid(t *testing.T) {
	ts, err := NewTokenService("this-is-16-chars", 2*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Hour, ts.TTL())
}

// =========================================================================
// GENERATE / VALIDATE
// =========================================================================

func TestGenerate_LooksLikeJWT(t *testing.T) {
	ts := newTestTokenService(t)

	token, expires, err := ts.Generate("user-123", "sess-abc")
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(token, "."))
	assert.WithinDuration(t, time.Now().Add(time.Hour), expires, 5*time.Second)
}

func TestValidate_RoundTrip(t *testing.T) {
	ts := newTestTokenService(t)

	token, _, err := ts.Generate("user-abc", "sess-xyz")
	require.NoError(t, err)

	claims, err := ts.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "user-abc", claims.UserID)
	assert.Equal(t, "sess-xyz", claims.SessionToken)
}

func TestValidate_DifferentSessionsDifferentTokens(t *testing.T) {
	ts := newTestTokenService(t)

	t1, _, _ := ts.Generate("user-1", "sess-a")
	t2, _, _ := ts.Generate("user-1", "sess-b")
	assert.NotEqual(t, t1, t2)
}

func TestValidate_ExpiredToken(t *testing.T) {
	ts := newTestTokenService(t)

	token, _, err := ts.GenerateWithDuration("user-123", "sess", -time.Second)
	require.NoError(t, err)

	_, err = ts.Validate(token)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expired")
}

func TestValidate_UsesClock(t *testing.T) {
	ts := newTestTokenService(t)
	token, _, err := ts.Generate("user-123", "sess")
	require.NoError(t, err)

	ts.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = ts.Validate(token)
	assert.Error(t, err)
}

func TestValidate_TamperedToken(t *testing.T) {
	ts := newTestTokenService(t)
	token, _, _ := ts.Generate("user-123", "sess")

	_, err := ts.Validate(token[:len(token)-3] + "xxx")
	assert.Error(t, err)
}

func TestValidate_WrongSecret(t *testing.T) {
	ts1, _ := NewTokenService("correct-secret-32-chars-long!!!!", time.Hour)
	ts2, _ := NewTokenService("wrong-secret-32-chars-long!!!!!!", time.Hour)

	token, _, _ := ts1.Generate("user-123", "sess")
	_, err := ts2.Validate(token)
	assert.Error(t, err)
}

func TestValidate_MissingSession(t *testing.T) {
	ts := newTestTokenService(t)
	token, _, _ := ts.Generate("user-123", "")

	_, err := ts.Validate(token)
	assert.Error(t, err)
}

func TestValidate_EmptyToken(t *testing.T) {
	ts := newTestTokenService(t)
	_, err := ts.Validate("")
	assert.Error(t, err)
}
