package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/sanctuary/internal/apperror"
	"github.com/sakif/sanctuary/internal/model"
)

// =========================================================================
// SEND CODE
// =========================================================================

func TestSendCode_MailsSixDigits(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.Auth.SendCode(context.Background(), "  Alex@Example.COM "))

	sent := e.mailer.last(t)
	assert.Equal(t, "alex@example.com", sent.Email)
	assert.Regexp(t, `^[0-9]{6}$`, sent.Code)
}

func TestSendCode_InvalidEmail(t *testing.T) {
	e := newEnv(t)
	for _, email := range []string{"", "   ", "not-an-email", "Alex <alex@example.com>"} {
		err := e.Auth.SendCode(context.Background(), email)
		assert.ErrorIs(t, err, apperror.ErrValidation, "email %q", email)
	}
}

func TestSendCode_Cooldown(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	require.NoError(t, e.Auth.SendCode(ctx, "alex@example.com"))
	err := e.Auth.SendCode(ctx, "alex@example.com")
	require.ErrorIs(t, err, apperror.ErrRateLimited)
	assert.Contains(t, err.Error(), "60 seconds")

	// Other addresses are not affected.
	require.NoError(t, e.Auth.SendCode(ctx, "sam@example.com"))

	e.clock.Advance(time.Minute)
	require.NoError(t, e.Auth.SendCode(ctx, "alex@example.com"))
}

func TestSendCode_ReplacesEarlierCode(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	require.NoError(t, e.Auth.SendCode(ctx, "alex@example.com"))
	first := e.mailer.last(t).Code
	e.clock.Advance(time.Minute)
	require.NoError(t, e.Auth.SendCode(ctx, "alex@example.com"))
	second := e.mailer.last(t).Code

	if first != second {
		_, err := e.Auth.Verify(ctx, "alex@example.com", first)
		assert.ErrorIs(t, err, apperror.ErrUnauthorized)
	}
	_, err := e.Auth.Verify(ctx, "alex@example.com", second)
	assert.NoError(t, err)
}

func TestSendCode_MailerFailure(t *testing.T) {
	e := newEnv(t)
	e.mailer.fail = errors.New("smtp down")

	err := e.Auth.SendCode(context.Background(), "alex@example.com")
	require.Error(t, err)
	var appErr *apperror.AppError
	assert.False(t, errors.As(err, &appErr), "mailer failures are internal errors")
}

// =========================================================================
// VERIFY
// =========================================================================

func TestVerify_CreatesUserAndSession(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	require.NoError(t, e.Auth.SendCode(ctx, "alex@example.com"))

	res, err := e.Auth.Verify(ctx, "ALEX@example.com", e.mailer.last(t).Code)
	require.NoError(t, err)

	assert.Equal(t, "alex@example.com", res.User.Email)
	assert.Equal(t, "User", res.User.Nickname)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, model.FormatTime(e.clock.Now().Add(24*time.Hour)), res.ExpiresAt)

	claims, err := e.tokens.Validate(res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, claims.UserID)

	sess, err := e.db.GetSessionByToken(ctx, claims.SessionToken)
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, res.User.ID, sess.UserID)
}

func TestVerify_ExistingUserKeepsID(t *testing.T) {
	e := newEnv(t)
	first := e.signUp(t, "alex@example.com")
	e.clock.Advance(time.Minute)
	second := e.signUp(t, "alex@example.com")
	assert.Equal(t, first.ID, second.ID)
}

func TestVerify_CodeIsSingleUse(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	require.NoError(t, e.Auth.SendCode(ctx, "alex@example.com"))
	code := e.mailer.last(t).Code

	_, err := e.Auth.Verify(ctx, "alex@example.com", code)
	require.NoError(t, err)
	_, err = e.Auth.Verify(ctx, "alex@example.com", code)
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
}

func TestVerify_ExpiredCode(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	require.NoError(t, e.Auth.SendCode(ctx, "alex@example.com"))
	code := e.mailer.last(t).Code

	e.clock.Advance(5*time.Minute + time.Second)
	_, err := e.Auth.Verify(ctx, "alex@example.com", code)
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
}

func TestVerify_WrongCode(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	require.NoError(t, e.Auth.SendCode(ctx, "alex@example.com"))

	_, err := e.Auth.Verify(ctx, "alex@example.com", "not-it")
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
}

// =========================================================================
// SESSIONS
// =========================================================================

func TestRefresh_RotatesToken(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	require.NoError(t, e.Auth.SendCode(ctx, "alex@example.com"))
	res, err := e.Auth.Verify(ctx, "alex@example.com", e.mailer.last(t).Code)
	require.NoError(t, err)

	oldClaims, err := e.tokens.Validate(res.Token)
	require.NoError(t, err)
	sess, err := e.db.GetSessionByToken(ctx, oldClaims.SessionToken)
	require.NoError(t, err)

	e.clock.Advance(time.Hour)
	refreshed, err := e.Auth.Refresh(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, model.FormatTime(e.clock.Now().Add(24*time.Hour)), refreshed.ExpiresAt)

	newClaims, err := e.tokens.Validate(refreshed.Token)
	require.NoError(t, err)
	assert.NotEqual(t, oldClaims.SessionToken, newClaims.SessionToken)

	old, err := e.db.GetSessionByToken(ctx, oldClaims.SessionToken)
	require.NoError(t, err)
	assert.Nil(t, old, "old token must stop working")

	cur, err := e.db.GetSessionByToken(ctx, newClaims.SessionToken)
	require.NoError(t, err)
	require.NotNil(t, cur)
	assert.Equal(t, sess.ID, cur.ID)
}

func TestLogout(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	require.NoError(t, e.Auth.SendCode(ctx, "alex@example.com"))
	res, err := e.Auth.Verify(ctx, "alex@example.com", e.mailer.last(t).Code)
	require.NoError(t, err)
	claims, err := e.tokens.Validate(res.Token)
	require.NoError(t, err)
	sess, err := e.db.GetSessionByToken(ctx, claims.SessionToken)
	require.NoError(t, err)

	require.NoError(t, e.Auth.Logout(ctx, sess.ID))

	gone, err := e.db.GetSessionByToken(ctx, claims.SessionToken)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestLogoutAll(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	var tokens []string
	for range 2 {
		require.NoError(t, e.Auth.SendCode(ctx, "alex@example.com"))
		res, err := e.Auth.Verify(ctx, "alex@example.com", e.mailer.last(t).Code)
		require.NoError(t, err)
		claims, err := e.tokens.Validate(res.Token)
		require.NoError(t, err)
		tokens = append(tokens, claims.SessionToken)
		e.clock.Advance(time.Minute)
	}

	user, err := e.db.GetUserByEmail(ctx, "alex@example.com")
	require.NoError(t, err)
	require.NoError(t, e.Auth.LogoutAll(ctx, user.ID))

	for _, tok := range tokens {
		sess, err := e.db.GetSessionByToken(ctx, tok)
		require.NoError(t, err)
		assert.Nil(t, sess)
	}
}

func TestPurgeExpiredSessions(t *testing.T) {
	e := newEnv(t)
	e.signUp(t, "alex@example.com")

	n, err := e.Auth.PurgeExpiredSessions(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	e.clock.Advance(25 * time.Hour)
	n, err = e.Auth.PurgeExpiredSessions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

// =========================================================================
// PROFILE
// =========================================================================

func TestMe(t *testing.T) {
	e := newEnv(t)
	u := e.signUp(t, "alex@example.com")

	got, err := e.Auth.Me(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.Email, got.Email)

	_, err = e.Auth.Me(context.Background(), "")
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)

	_, err = e.Auth.Me(context.Background(), "nobody")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestUpdateProfile(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := e.signUp(t, "alex@example.com")

	got, err := e.Auth.UpdateProfile(ctx, u.ID, ProfileUpdate{
		Nickname: model.Some("  Alex  "),
		Avatar:   model.Some(model.StringPtr("https://img.example.com/a.png")),
	})
	require.NoError(t, err)
	assert.Equal(t, "Alex", got.Nickname)
	require.NotNil(t, got.Avatar)

	got, err = e.Auth.UpdateProfile(ctx, u.ID, ProfileUpdate{Avatar: model.Some[*string](nil)})
	require.NoError(t, err)
	assert.Equal(t, "Alex", got.Nickname, "unset fields stay")
	assert.Nil(t, got.Avatar)
}

func TestUpdateProfile_Validation(t *testing.T) {
	e := newEnv(t)
	u := e.signUp(t, "alex@example.com")

	tests := []struct {
		name     string
		nickname string
	}{
		{"blank", "   "},
		{"too long", strings.Repeat("x", MaxNicknameLength+1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Auth.UpdateProfile(context.Background(), u.ID, ProfileUpdate{Nickname: model.Some(tt.nickname)})
			assert.ErrorIs(t, err, apperror.ErrValidation)
		})
	}

	// Multi-byte names are measured in characters.
	_, err := e.Auth.UpdateProfile(context.Background(), u.ID,
		ProfileUpdate{Nickname: model.Some(strings.Repeat("💕", MaxNicknameLength))})
	assert.NoError(t, err)
}
