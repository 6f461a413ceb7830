package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/sakif/sanctuary/internal/apperror"
	"github.com/sakif/sanctuary/internal/auth"
	"github.com/sakif/sanctuary/internal/mailer"
	"github.com/sakif/sanctuary/internal/model"
	"github.com/sakif/sanctuary/internal/ratelimit"
	"github.com/sakif/sanctuary/internal/repository"
)

const (
	codeLength        = 6
	codeDigits        = "0123456789"
	defaultNickname   = "User"
	MaxNicknameLength = 50
)

// AuthConfig holds the sign-in timings.
type AuthConfig struct {
	CodeTTL      time.Duration
	CodeCooldown time.Duration
}

type authStore interface {
	repository.UserStore
	repository.VerificationStore
	repository.SessionStore
}

// AuthService implements passwordless sign-in: a 6-digit code is mailed to
// the address, and presenting it back yields a session-backed JWT. An
// unknown address gets an account on first successful verification.
type AuthService struct {
	store   authStore
	tokens  *auth.TokenService
	limiter ratelimit.Limiter
	mailer  mailer.Mailer
	cfg     AuthConfig
	logger  *slog.Logger
	opts    options
}

func NewAuthService(
	store authStore,
	tokens *auth.TokenService,
	limiter ratelimit.Limiter,
	m mailer.Mailer,
	cfg AuthConfig,
	logger *slog.Logger,
	opts ...Option,
) *AuthService {
	return &AuthService{
		store:   store,
		tokens:  tokens,
		limiter: limiter,
		mailer:  m,
		cfg:     cfg,
		logger:  logger,
		opts:    buildOptions(opts),
	}
}

// AuthResult is what a successful sign-in returns to the client.
type AuthResult struct {
	User      *model.User `json:"user"`
	Token     string      `json:"token"`
	ExpiresAt string      `json:"expiresAt"`
}

// normalizeEmail lower-cases and validates an address.
func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", apperror.ValidationFailed("email", "email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", apperror.ValidationFailed("email", "invalid email address")
	}
	return email, nil
}

// SendCode issues a fresh code for email, replacing any earlier ones, and
// hands it to the mailer. Requests for the same address are throttled to
// one per CodeCooldown.
func (s *AuthService) SendCode(ctx context.Context, email string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}

	ok, retry, err := s.limiter.Allow(ctx, "send-code:"+email, s.cfg.CodeCooldown)
	switch {
	case err != nil:
		// Fail open: a limiter outage must not block sign-in.
		s.logger.Warn("send-code limiter unavailable", slog.String("error", err.Error()))
	case !ok:
		secs := int(math.Ceil(retry.Seconds()))
		return apperror.RateLimited(fmt.Sprintf("please wait %d seconds before requesting another code", secs))
	}

	code, err := randomString(codeDigits, codeLength)
	if err != nil {
		return fmt.Errorf("service/auth: %w", err)
	}

	if err := s.store.DeleteVerificationCodesByEmail(ctx, email); err != nil {
		return fmt.Errorf("service/auth: clearing old codes: %w", err)
	}
	vc := &model.VerificationCode{
		ID:        newID(),
		Email:     email,
		Code:      code,
		ExpiresAt: model.FormatTime(s.opts.now().Add(s.cfg.CodeTTL)),
	}
	if err := s.store.CreateVerificationCode(ctx, vc); err != nil {
		return fmt.Errorf("service/auth: storing code: %w", err)
	}

	if err := s.mailer.SendCode(ctx, email, code, s.cfg.CodeTTL); err != nil {
		return fmt.Errorf("service/auth: sending code: %w", err)
	}
	return nil
}

// Verify consumes a code and signs the user in.
func (s *AuthService) Verify(ctx context.Context, email, code string) (*AuthResult, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	code = strings.TrimSpace(code)

	vc, err := s.store.GetVerificationCode(ctx, email, code)
	if err != nil {
		return nil, fmt.Errorf("service/auth: looking up code: %w", err)
	}
	if vc == nil {
		return nil, apperror.Unauthorized("invalid or expired verification code")
	}
	if err := s.store.MarkVerificationCodeUsed(ctx, vc.ID); err != nil {
		return nil, fmt.Errorf("service/auth: consuming code: %w", err)
	}

	user, err := s.findOrCreateUser(ctx, email)
	if err != nil {
		return nil, err
	}

	result, err := s.startSession(ctx, user)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user signed in", slog.String("userID", user.ID))
	return result, nil
}

func (s *AuthService) findOrCreateUser(ctx context.Context, email string) (*model.User, error) {
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("service/auth: getting user: %w", err)
	}
	if user != nil {
		return user, nil
	}

	user, err = s.store.CreateUser(ctx, &model.User{
		ID:        newID(),
		Email:     email,
		Nickname:  defaultNickname,
		CreatedAt: model.FormatTime(s.opts.now()),
	})
	if err != nil {
		// Two verifications for a new address can race; the loser reads the
		// winner's row.
		if existing, getErr := s.store.GetUserByEmail(ctx, email); getErr == nil && existing != nil {
			return existing, nil
		}
		return nil, fmt.Errorf("service/auth: creating user: %w", err)
	}
	s.logger.Info("user registered", slog.String("userID", user.ID))
	return user, nil
}

func (s *AuthService) startSession(ctx context.Context, user *model.User) (*AuthResult, error) {
	now := s.opts.now()
	sess, err := s.store.CreateSession(ctx, &model.Session{
		ID:        newID(),
		UserID:    user.ID,
		Token:     uuid.NewString(),
		CreatedAt: model.FormatTime(now),
		ExpiresAt: model.FormatTime(now.Add(s.tokens.TTL())),
	})
	if err != nil {
		return nil, fmt.Errorf("service/auth: creating session: %w", err)
	}

	token, _, err := s.tokens.Generate(user.ID, sess.Token)
	if err != nil {
		return nil, fmt.Errorf("service/auth: %w", err)
	}
	return &AuthResult{User: user, Token: token, ExpiresAt: sess.ExpiresAt}, nil
}

// Refresh rotates the session token and issues a new JWT. The old token
// stops working immediately.
func (s *AuthService) Refresh(ctx context.Context, sess *model.Session) (*AuthResult, error) {
	user, err := s.Me(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}

	token := uuid.NewString()
	expires := model.FormatTime(s.opts.now().Add(s.tokens.TTL()))
	if err := s.store.UpdateSessionToken(ctx, sess.ID, token, expires); err != nil {
		return nil, fmt.Errorf("service/auth: rotating session %s: %w", sess.ID, err)
	}

	signed, _, err := s.tokens.Generate(user.ID, token)
	if err != nil {
		return nil, fmt.Errorf("service/auth: %w", err)
	}
	return &AuthResult{User: user, Token: signed, ExpiresAt: expires}, nil
}

// Me returns the signed-in user.
func (s *AuthService) Me(ctx context.Context, userID string) (*model.User, error) {
	if userID == "" {
		return nil, apperror.Unauthorized("not signed in")
	}
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching user %s: %w", userID, err)
	}
	if user == nil {
		return nil, apperror.NotFound("user", userID)
	}
	return user, nil
}

// ProfileUpdate is the part of a profile the user may change.
type ProfileUpdate struct {
	Nickname model.Opt[string]  `json:"nickname"`
	Avatar   model.Opt[*string] `json:"avatar"`
}

// UpdateProfile patches nickname and/or avatar.
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, upd ProfileUpdate) (*model.User, error) {
	if upd.Nickname.Set {
		name := strings.TrimSpace(upd.Nickname.Value)
		if name == "" {
			return nil, apperror.ValidationFailed("nickname", "nickname cannot be empty")
		}
		if utf8.RuneCountInString(name) > MaxNicknameLength {
			return nil, apperror.ValidationFailed("nickname",
				fmt.Sprintf("nickname must be %d characters or fewer", MaxNicknameLength))
		}
		upd.Nickname.Value = name
	}

	user, err := s.store.UpdateUser(ctx, userID, model.UserUpdate{
		Nickname: upd.Nickname,
		Avatar:   upd.Avatar,
	})
	if err != nil {
		return nil, fmt.Errorf("service/auth: updating user %s: %w", userID, err)
	}
	if user == nil {
		return nil, apperror.NotFound("user", userID)
	}
	return user, nil
}

// Logout ends one session.
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	if err := s.store.DeleteSession(ctx, sessionID); err != nil {
		return fmt.Errorf("service/auth: deleting session %s: %w", sessionID, err)
	}
	return nil
}

// LogoutAll ends every session of the user.
func (s *AuthService) LogoutAll(ctx context.Context, userID string) error {
	if err := s.store.DeleteSessionsByUserID(ctx, userID); err != nil {
		return fmt.Errorf("service/auth: deleting sessions of %s: %w", userID, err)
	}
	s.logger.Info("user logged out everywhere", slog.String("userID", userID))
	return nil
}

// PurgeExpiredSessions removes dead sessions and returns how many.
func (s *AuthService) PurgeExpiredSessions(ctx context.Context) (int, error) {
	n, err := s.store.DeleteExpiredSessions(ctx)
	if err != nil {
		return 0, fmt.Errorf("service/auth: purging sessions: %w", err)
	}
	return n, nil
}
