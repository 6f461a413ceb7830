package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/sanctuary/internal/apperror"
	"github.com/sakif/sanctuary/internal/logger"
)

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err    error
		status int
		kind   string
	}{
		{apperror.ValidationFailed("content", "content is required"), http.StatusBadRequest, "validation_error"},
		{apperror.NotFound("memory", "m1"), http.StatusNotFound, "not_found"},
		{apperror.Forbidden("no"), http.StatusForbidden, "forbidden"},
		{apperror.Conflict("full"), http.StatusConflict, "conflict"},
		{apperror.Unauthorized("who"), http.StatusUnauthorized, "unauthorized"},
		{apperror.RateLimited("slow down"), http.StatusTooManyRequests, "rate_limited"},
		{fmt.Errorf("wrapped: %w", apperror.NotFound("space", "s1")), http.StatusNotFound, "not_found"},
		{errors.New("disk on fire"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			status, kind := errorStatus(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.kind, kind)
		})
	}
}

func TestWriteError(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/memories/x", nil)

	t.Run("app error keeps message and field", func(t *testing.T) {
		rr := httptest.NewRecorder()
		writeError(rr, req, logger.Nop(), apperror.ValidationFailed("photos", "at most 9 photos are allowed"))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
		var body ErrorResponse
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
		assert.Equal(t, ErrorResponse{Error: "validation_error", Message: "at most 9 photos are allowed", Field: "photos"}, body)
	})

	t.Run("internal error hides the cause", func(t *testing.T) {
		rr := httptest.NewRecorder()
		writeError(rr, req, logger.Nop(), errors.New("sqlite: database is locked"))

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.NotContains(t, rr.Body.String(), "locked")
		assert.Contains(t, rr.Body.String(), "internal_error")
	})
}

func TestWriteDataAndMessage(t *testing.T) {
	rr := httptest.NewRecorder()
	writeData(rr, http.StatusCreated, map[string]int{"count": 2})
	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.JSONEq(t, `{"success":true,"data":{"count":2}}`, rr.Body.String())

	rr = httptest.NewRecorder()
	writeData(rr, http.StatusOK, nil)
	assert.JSONEq(t, `{"success":true,"data":null}`, rr.Body.String())

	rr = httptest.NewRecorder()
	writeMessage(rr, http.StatusOK, "Logged out successfully")
	assert.JSONEq(t, `{"success":true,"message":"Logged out successfully"}`, rr.Body.String())
}

func TestDecodeValid(t *testing.T) {
	decode := func(body string, dst any) error {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		return decodeValid(rr, req, dst)
	}

	t.Run("valid body", func(t *testing.T) {
		var req joinSpaceRequest
		require.NoError(t, decode(`{"inviteCode":"AB12CD"}`, &req))
		assert.Equal(t, "AB12CD", req.InviteCode)
	})

	t.Run("missing required field names the json key", func(t *testing.T) {
		var req createSpaceRequest
		err := decode(`{}`, &req)
		var appErr *apperror.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, "anniversaryDate", appErr.Field)
		assert.Equal(t, "anniversaryDate is required", appErr.Message)
	})

	t.Run("too many photos", func(t *testing.T) {
		var req createMemoryRequest
		photos := `"a","b","c","d","e","f","g","h","i","j"`
		err := decode(`{"content":"hi","photos":[`+photos+`]}`, &req)
		var appErr *apperror.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, "photos", appErr.Field)
		assert.Equal(t, "photos must have at most 9 items", appErr.Message)
	})

	t.Run("string too long", func(t *testing.T) {
		var req addCommentRequest
		err := decode(`{"content":"`+strings.Repeat("x", 1001)+`"}`, &req)
		var appErr *apperror.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, "content must be at most 1000 characters", appErr.Message)
	})

	t.Run("malformed json", func(t *testing.T) {
		var req joinSpaceRequest
		err := decode(`{"inviteCode":`, &req)
		assert.ErrorIs(t, err, apperror.ErrValidation)
	})

	t.Run("empty body is allowed before validation", func(t *testing.T) {
		var req struct {
			Type string `json:"type"`
		}
		assert.NoError(t, decode(``, &req))
	})

	t.Run("oversized body", func(t *testing.T) {
		var req addCommentRequest
		err := decode(`{"content":"`+strings.Repeat("x", maxBodyBytes)+`"}`, &req)
		var appErr *apperror.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, "request body is too large", appErr.Message)
	})
}
