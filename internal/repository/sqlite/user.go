package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sakif/sanctuary/internal/model"
	"github.com/sakif/sanctuary/internal/repository"
)

const userColumns = `id, email, nickname, avatar, created_at`

func scanUser(row rowScanner) (*model.User, error) {
	var (
		u      model.User
		avatar sql.NullString
	)
	if err := row.Scan(&u.ID, &u.Email, &u.Nickname, &avatar, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.Avatar = stringPtr(avatar)
	return &u, nil
}

// CreateUser inserts a user and returns the stored row.
//
// The id comes from the caller. An empty created_at is stamped with the
// adapter clock. A duplicate email fails with the driver's UNIQUE error.
func (db *DB) CreateUser(ctx context.Context, u *model.User) (*model.User, error) {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, email, nickname, avatar, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		u.ID,
		u.Email,
		u.Nickname,
		nullString(u.Avatar),
		repository.StampIfEmpty(u.CreatedAt, db.now()),
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: creating user: %w", err)
	}
	return db.GetUserByID(ctx, u.ID)
}

// GetUserByID returns (nil, nil) when no user has this id.
//
// sql.ErrNoRows is not a failure here. Whether a missing user is an error is
// the caller's decision, so the adapter only reports absence.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	u, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}
	return u, nil
}

func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	u, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting user by email: %w", err)
	}
	return u, nil
}

// UpdateUser applies the set fields of upd. An update with nothing set
// performs no write.
func (db *DB) UpdateUser(ctx context.Context, id string, upd model.UserUpdate) (*model.User, error) {
	var b setBuilder
	set(&b, "email", upd.Email)
	set(&b, "nickname", upd.Nickname)
	set(&b, "avatar", upd.Avatar)

	if !b.empty() {
		if err := b.exec(ctx, db.conn, "users", "id = ?", id); err != nil {
			return nil, fmt.Errorf("sqlite: updating user %s: %w", id, err)
		}
	}
	return db.GetUserByID(ctx, id)
}

// GetUsersByIDs loads many users with a single IN query.
func (db *DB) GetUsersByIDs(ctx context.Context, ids []string) ([]model.User, error) {
	users := make([]model.User, 0, len(ids))
	if len(ids) == 0 {
		return users, nil
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id IN (`+placeholders(len(ids))+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting users by ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning user row: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating user rows: %w", err)
	}
	return users, nil
}

// ===== VERIFICATION CODES =====

func (db *DB) CreateVerificationCode(ctx context.Context, vc *model.VerificationCode) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO verification_codes (id, email, code, expires_at, used)
		 VALUES (?, ?, ?, ?, ?)`,
		vc.ID, vc.Email, vc.Code, vc.ExpiresAt, repository.BoolToInt(vc.Used),
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating verification code: %w", err)
	}
	return nil
}

// GetVerificationCode matches only unused codes that expire after "now".
// "now" is bound as a parameter in model.TimeLayout rather than using
// SQLite's datetime('now'), whose "YYYY-MM-DD HH:MM:SS" form does not compare
// correctly against ISO-8601 strings.
func (db *DB) GetVerificationCode(ctx context.Context, email, code string) (*model.VerificationCode, error) {
	var (
		vc   model.VerificationCode
		used int
	)
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, email, code, expires_at, used
		 FROM verification_codes
		 WHERE email = ? AND code = ? AND used = 0 AND expires_at > ?
		 ORDER BY expires_at DESC
		 LIMIT 1`,
		email, code, db.nowString(),
	).Scan(&vc.ID, &vc.Email, &vc.Code, &vc.ExpiresAt, &used)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting verification code: %w", err)
	}
	vc.Used = used != 0
	return &vc, nil
}

func (db *DB) MarkVerificationCodeUsed(ctx context.Context, id string) error {
	if _, err := db.conn.ExecContext(ctx,
		`UPDATE verification_codes SET used = 1 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("sqlite: marking verification code %s used: %w", id, err)
	}
	return nil
}

func (db *DB) DeleteVerificationCodesByEmail(ctx context.Context, email string) error {
	if _, err := db.conn.ExecContext(ctx,
		`DELETE FROM verification_codes WHERE email = ?`, email); err != nil {
		return fmt.Errorf("sqlite: deleting verification codes: %w", err)
	}
	return nil
}

// ===== SESSIONS =====

const sessionColumns = `id, user_id, token, created_at, expires_at`

func scanSession(row rowScanner) (*model.Session, error) {
	var s model.Session
	if err := row.Scan(&s.ID, &s.UserID, &s.Token, &s.CreatedAt, &s.ExpiresAt); err != nil {
		return nil, err
	}
	return &s, nil
}

func (db *DB) CreateSession(ctx context.Context, s *model.Session) (*model.Session, error) {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, token, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?)`,
		s.ID, s.UserID, s.Token, repository.StampIfEmpty(s.CreatedAt, db.now()), s.ExpiresAt,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: creating session: %w", err)
	}

	created, err := scanSession(db.conn.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, s.ID))
	if err != nil {
		return nil, fmt.Errorf("sqlite: reading session %s: %w", s.ID, err)
	}
	return created, nil
}

// GetSessionByToken returns the session only while it is unexpired.
func (db *DB) GetSessionByToken(ctx context.Context, token string) (*model.Session, error) {
	s, err := scanSession(db.conn.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE token = ? AND expires_at > ?`,
		token, db.nowString()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting session by token: %w", err)
	}
	return s, nil
}

func (db *DB) UpdateSessionToken(ctx context.Context, id, token, expiresAt string) error {
	if _, err := db.conn.ExecContext(ctx,
		`UPDATE sessions SET token = ?, expires_at = ? WHERE id = ?`,
		token, expiresAt, id); err != nil {
		return fmt.Errorf("sqlite: updating session %s: %w", id, err)
	}
	return nil
}

func (db *DB) DeleteSession(ctx context.Context, id string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("sqlite: deleting session %s: %w", id, err)
	}
	return nil
}

func (db *DB) DeleteSessionsByUserID(ctx context.Context, userID string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("sqlite: deleting sessions of user %s: %w", userID, err)
	}
	return nil
}

func (db *DB) DeleteExpiredSessions(ctx context.Context) (int, error) {
	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at <= ?`, db.nowString())
	if err != nil {
		return 0, fmt.Errorf("sqlite: deleting expired sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: counting deleted sessions: %w", err)
	}
	return int(n), nil
}
