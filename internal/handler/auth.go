package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/sanctuary/internal/apperror"
	"github.com/sakif/sanctuary/internal/auth"
	"github.com/sakif/sanctuary/internal/service"
)

// AuthHandler serves the email-code sign-in flow and the caller's profile.
type AuthHandler struct {
	auth   *service.AuthService
	logger *slog.Logger
}

func NewAuthHandler(auth *service.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, logger: logger}
}

type sendCodeRequest struct {
	Email string `json:"email" validate:"required,max=254"`
}

type verifyRequest struct {
	Email string `json:"email" validate:"required,max=254"`
	Code  string `json:"code" validate:"required,max=16"`
}

// userID returns the signed-in user set by auth.RequireAuth.
func userID(r *http.Request) string {
	id, _ := auth.UserIDFromContext(r.Context())
	return id
}

// HandleSendCode mails a sign-in code.
//
// HTTP: POST /api/auth/send-code  {"email": "..."}
func (h *AuthHandler) HandleSendCode(w http.ResponseWriter, r *http.Request) {
	var req sendCodeRequest
	if err := decodeValid(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := h.auth.SendCode(r.Context(), req.Email); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeMessage(w, http.StatusOK, "Verification code sent")
}

// HandleVerify exchanges a code for a token.
//
// HTTP: POST /api/auth/verify  {"email": "...", "code": "123456"}
func (h *AuthHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := decodeValid(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	res, err := h.auth.Verify(r.Context(), req.Email, req.Code)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, res)
}

// HandleMe returns the signed-in user.
//
// HTTP: GET /api/auth/me
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, err := h.auth.Me(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, user)
}

// HandleUpdateProfile patches nickname and avatar. Keys left out of the
// body are unchanged; "avatar": null clears the avatar.
//
// HTTP: PUT /api/auth/profile
func (h *AuthHandler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var upd service.ProfileUpdate
	if err := decodeJSON(w, r, &upd); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	user, err := h.auth.UpdateProfile(r.Context(), userID(r), upd)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, user)
}

// HandleRefresh swaps the presented token for a fresh one.
//
// HTTP: POST /api/auth/refresh
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	sess, ok := auth.SessionFromContext(r.Context())
	if !ok {
		writeError(w, r, h.logger, apperror.Unauthorized("not signed in"))
		return
	}
	res, err := h.auth.Refresh(r.Context(), sess)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, res)
}

// HandleLogout ends the session behind the presented token.
//
// HTTP: POST /api/auth/logout
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	sess, ok := auth.SessionFromContext(r.Context())
	if !ok {
		writeError(w, r, h.logger, apperror.Unauthorized("not signed in"))
		return
	}
	if err := h.auth.Logout(r.Context(), sess.ID); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeMessage(w, http.StatusOK, "Logged out successfully")
}

// HandleLogoutAll ends every session of the caller.
//
// HTTP: POST /api/auth/logout-all
func (h *AuthHandler) HandleLogoutAll(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.LogoutAll(r.Context(), userID(r)); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeMessage(w, http.StatusOK, "Logged out from all devices")
}
