package sqlite

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/sakif/sanctuary/internal/model"
)

// createTestUser creates a user and fails the test if it errors.
func createTestUser(t *testing.T, db *DB, id, email string) *model.User {
	t.Helper()
	u, err := db.CreateUser(context.Background(), &model.User{ID: id, Email: email, Nickname: id})
	if err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return u
}

// =========================================================================
// USER TESTS
// =========================================================================

// The users table keeps email UNIQUE, so SQLite rejects a second account
// for the same address even though the adapter itself never checks.
func TestUserCreate_DuplicateEmail(t *testing.T) {
	db := newTestDB(t)
	createTestUser(t, db, "u1", "same@example.com")

	_, err := db.CreateUser(context.Background(), &model.User{ID: "u2", Email: "same@example.com"})
	if err == nil {
		t.Fatal("CreateUser() should have returned an error for duplicate email")
	}
	if !strings.HasPrefix(err.Error(), "sqlite:") {
		t.Errorf("error = %q, want sqlite: prefix", err)
	}
}

func TestUserUpdate_NotFound(t *testing.T) {
	db := newTestDB(t)

	u, err := db.UpdateUser(context.Background(), "missing", model.UserUpdate{})
	if err != nil {
		t.Fatalf("UpdateUser() error = %v", err)
	}
	if u != nil {
		t.Errorf("UpdateUser() = %+v, want nil", u)
	}
}

func TestUserAvatarStoredAsNull(t *testing.T) {
	db := newTestDB(t)
	createTestUser(t, db, "u1", "a@example.com")

	var isNull bool
	if err := db.conn.QueryRow(`SELECT avatar IS NULL FROM users WHERE id = 'u1'`).Scan(&isNull); err != nil {
		t.Fatalf("query error = %v", err)
	}
	if !isNull {
		t.Error("nil avatar should be stored as NULL")
	}
}

// =========================================================================
// VERIFICATION CODE TESTS
// =========================================================================

// The used flag is stored as 0/1, never as a boolean literal.
func TestVerificationCodeUsedIsInteger(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	vc := &model.VerificationCode{ID: "c1", Email: "a@example.com", Code: "123456", ExpiresAt: model.FormatTime(time.Now().Add(time.Hour))}
	if err := db.CreateVerificationCode(ctx, vc); err != nil {
		t.Fatalf("CreateVerificationCode() error = %v", err)
	}
	if err := db.MarkVerificationCodeUsed(ctx, "c1"); err != nil {
		t.Fatalf("MarkVerificationCodeUsed() error = %v", err)
	}

	var used int
	if err := db.conn.QueryRow(`SELECT used FROM verification_codes WHERE id = 'c1'`).Scan(&used); err != nil {
		t.Fatalf("query error = %v", err)
	}
	if used != 1 {
		t.Errorf("used = %d, want 1", used)
	}
}

// =========================================================================
// SESSION TESTS
// =========================================================================

func TestDeleteExpiredSessions_CountsRows(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	db := newTestDB(t, fixedClock(now))
	ctx := context.Background()

	sessions := []*model.Session{
		{ID: "s1", UserID: "u1", Token: "t1", ExpiresAt: model.FormatTime(now.Add(-time.Hour))},
		{ID: "s2", UserID: "u1", Token: "t2", ExpiresAt: model.FormatTime(now.Add(-time.Minute))},
		{ID: "s3", UserID: "u1", Token: "t3", ExpiresAt: model.FormatTime(now.Add(time.Hour))},
	}
	for _, s := range sessions {
		if _, err := db.CreateSession(ctx, s); err != nil {
			t.Fatalf("CreateSession() error = %v", err)
		}
	}

	n, err := db.DeleteExpiredSessions(ctx)
	if err != nil {
		t.Fatalf("DeleteExpiredSessions() error = %v", err)
	}
	if n != 2 {
		t.Errorf("deleted = %d, want 2", n)
	}
}
