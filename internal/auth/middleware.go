package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sakif/sanctuary/internal/model"
)

// contextKey is package-private so no other package can read or shadow the
// values stored here.
type contextKey string

const (
	userIDKey  contextKey = "userID"
	sessionKey contextKey = "session"
)

// SessionLookup finds the live session behind a token. repository.SessionStore
// satisfies it.
type SessionLookup interface {
	GetSessionByToken(ctx context.Context, token string) (*model.Session, error)
}

// RequireAuth enforces a valid "Authorization: Bearer <jwt>" header whose
// session still exists and belongs to the token's subject. On success the
// user id and session are stored in the request context; otherwise the
// request ends with 401.
func RequireAuth(tokens *TokenService, sessions SessionLookup, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, err := bearerToken(r)
			if err != nil {
				unauthorized(w, err.Error())
				return
			}

			claims, err := tokens.Validate(raw)
			if err != nil {
				unauthorized(w, "invalid or expired token")
				return
			}

			sess, err := sessions.GetSessionByToken(r.Context(), claims.SessionToken)
			if err != nil {
				logger.Error("auth: session lookup failed", slog.String("error", err.Error()))
				writeAuthError(w, http.StatusInternalServerError, "internal_error", "An internal error occurred")
				return
			}
			if sess == nil || sess.UserID != claims.UserID {
				unauthorized(w, "session expired")
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, claims.UserID)
			ctx = context.WithValue(ctx, sessionKey, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserIDFromContext returns the authenticated user's id, or ("", false) on
// routes that are not behind RequireAuth.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

// SessionFromContext returns the session the request was authenticated with.
func SessionFromContext(ctx context.Context) (*model.Session, bool) {
	s, ok := ctx.Value(sessionKey).(*model.Session)
	return s, ok && s != nil
}

// WithUserID returns ctx carrying userID, as RequireAuth would. Handler tests
// use it to skip token plumbing.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// WithSession returns ctx carrying sess and its user id.
func WithSession(ctx context.Context, sess *model.Session) context.Context {
	ctx = context.WithValue(ctx, userIDKey, sess.UserID)
	return context.WithValue(ctx, sessionKey, sess)
}

func bearerToken(r *http.Request) (string, error) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", errors.New("missing authorization header")
	}
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", errors.New("authorization header must be a bearer token")
	}
	return strings.TrimSpace(token), nil
}

func unauthorized(w http.ResponseWriter, message string) {
	writeAuthError(w, http.StatusUnauthorized, "unauthorized", message)
}

// writeAuthError matches the error body handler.writeError produces.
func writeAuthError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   code,
		"message": message,
	})
}
