package firestore

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"

	"github.com/sakif/sanctuary/internal/model"
	"github.com/sakif/sanctuary/internal/repository"
)

// updates collects field updates from the set Opt fields of a patch.
type updates []firestore.Update

// add appends path when o is set. Nil pointers become null.
func add[T any](u *updates, path string, o model.Opt[T]) {
	if !o.Set {
		return
	}
	*u = append(*u, firestore.Update{Path: path, Value: docValue(o.Value)})
}

// addEncoded appends path with the JSON string produced by encode.
func addEncoded(u *updates, path string, isSet bool, encode func() (*string, error)) error {
	if !isSet {
		return nil
	}
	v, err := encode()
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	*u = append(*u, firestore.Update{Path: path, Value: docValue(v)})
	return nil
}

// docValue unwraps the nullable model types into Firestore values.
func docValue(v any) any {
	switch v := v.(type) {
	case *string:
		if v == nil {
			return nil
		}
		return *v
	case *int:
		if v == nil {
			return nil
		}
		return int64(*v)
	case model.UnbindStatus:
		return string(v)
	}
	return v
}

// ===== USERS =====

type userDoc struct {
	ID        string  `firestore:"id"`
	Email     string  `firestore:"email"`
	Nickname  string  `firestore:"nickname"`
	Avatar    *string `firestore:"avatar"`
	CreatedAt any     `firestore:"created_at"`
}

func (d *userDoc) model() *model.User {
	return &model.User{
		ID:        d.ID,
		Email:     d.Email,
		Nickname:  d.Nickname,
		Avatar:    d.Avatar,
		CreatedAt: normalizeTime(d.CreatedAt),
	}
}

func (s *Store) CreateUser(ctx context.Context, u *model.User) (*model.User, error) {
	doc := userDoc{
		ID:        u.ID,
		Email:     u.Email,
		Nickname:  u.Nickname,
		Avatar:    u.Avatar,
		CreatedAt: s.stamp(u.CreatedAt),
	}
	if _, err := s.col(colUsers).Doc(u.ID).Set(ctx, doc); err != nil {
		return nil, fmt.Errorf("firestore: creating user: %w", err)
	}
	return s.GetUserByID(ctx, u.ID)
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	d, err := getDoc[userDoc](ctx, s.col(colUsers).Doc(id))
	if err != nil {
		return nil, fmt.Errorf("firestore: getting user %s: %w", id, err)
	}
	if d == nil {
		return nil, nil
	}
	return d.model(), nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	d, err := firstDoc[userDoc](ctx, s.col(colUsers).Where("email", "==", email))
	if err != nil {
		return nil, fmt.Errorf("firestore: getting user by email: %w", err)
	}
	if d == nil {
		return nil, nil
	}
	return d.model(), nil
}

func (s *Store) UpdateUser(ctx context.Context, id string, upd model.UserUpdate) (*model.User, error) {
	var u updates
	add(&u, "email", upd.Email)
	add(&u, "nickname", upd.Nickname)
	add(&u, "avatar", upd.Avatar)

	found, err := updateDoc(ctx, s.col(colUsers).Doc(id), u)
	if err != nil {
		return nil, fmt.Errorf("firestore: updating user %s: %w", id, err)
	}
	if !found {
		return nil, nil
	}
	return s.GetUserByID(ctx, id)
}

// GetUsersByIDs fetches documents by reference, which sidesteps the "in"
// filter's 10-value limit. Missing documents are skipped.
func (s *Store) GetUsersByIDs(ctx context.Context, ids []string) ([]model.User, error) {
	users := make([]model.User, 0, len(ids))
	if len(ids) == 0 {
		return users, nil
	}

	refs := make([]*firestore.DocumentRef, len(ids))
	for i, id := range ids {
		refs[i] = s.col(colUsers).Doc(id)
	}

	snaps, err := s.client.GetAll(ctx, refs)
	if err != nil {
		return nil, fmt.Errorf("firestore: getting users by ids: %w", err)
	}
	for _, snap := range snaps {
		if !snap.Exists() {
			continue
		}
		var d userDoc
		if err := snap.DataTo(&d); err != nil {
			return nil, fmt.Errorf("firestore: decoding user %s: %w", snap.Ref.ID, err)
		}
		users = append(users, *d.model())
	}
	return users, nil
}

// ===== VERIFICATION CODES =====

type verificationDoc struct {
	ID        string `firestore:"id"`
	Email     string `firestore:"email"`
	Code      string `firestore:"code"`
	ExpiresAt any    `firestore:"expires_at"`
	Used      int64  `firestore:"used"`
}

func (s *Store) CreateVerificationCode(ctx context.Context, vc *model.VerificationCode) error {
	doc := verificationDoc{
		ID:        vc.ID,
		Email:     vc.Email,
		Code:      vc.Code,
		ExpiresAt: vc.ExpiresAt,
		Used:      int64(repository.BoolToInt(vc.Used)),
	}
	if _, err := s.col(colVerificationCodes).Doc(vc.ID).Set(ctx, doc); err != nil {
		return fmt.Errorf("firestore: creating verification code: %w", err)
	}
	return nil
}

// GetVerificationCode filters on email, code and used server-side; the
// expiry check runs here so that no composite range index is needed and a
// native Timestamp expires_at compares the same way as a string one.
func (s *Store) GetVerificationCode(ctx context.Context, email, code string) (*model.VerificationCode, error) {
	docs, err := queryDocs[verificationDoc](ctx, s.col(colVerificationCodes).
		Where("email", "==", email).
		Where("code", "==", code).
		Where("used", "==", 0))
	if err != nil {
		return nil, fmt.Errorf("firestore: getting verification code: %w", err)
	}

	now := s.nowString()
	var best *model.VerificationCode
	for _, d := range docs {
		expires := normalizeTime(d.ExpiresAt)
		if expires <= now {
			continue
		}
		if best == nil || expires > best.ExpiresAt {
			best = &model.VerificationCode{ID: d.ID, Email: d.Email, Code: d.Code, ExpiresAt: expires, Used: d.Used != 0}
		}
	}
	return best, nil
}

func (s *Store) MarkVerificationCodeUsed(ctx context.Context, id string) error {
	_, err := updateDoc(ctx, s.col(colVerificationCodes).Doc(id), updates{{Path: "used", Value: 1}})
	if err != nil {
		return fmt.Errorf("firestore: marking verification code %s used: %w", id, err)
	}
	return nil
}

func (s *Store) DeleteVerificationCodesByEmail(ctx context.Context, email string) error {
	if err := s.deleteWhere(ctx, s.col(colVerificationCodes).Where("email", "==", email)); err != nil {
		return fmt.Errorf("firestore: deleting verification codes: %w", err)
	}
	return nil
}

// ===== SESSIONS =====

type sessionDoc struct {
	ID        string `firestore:"id"`
	UserID    string `firestore:"user_id"`
	Token     string `firestore:"token"`
	CreatedAt any    `firestore:"created_at"`
	ExpiresAt any    `firestore:"expires_at"`
}

func (d *sessionDoc) model() *model.Session {
	return &model.Session{
		ID:        d.ID,
		UserID:    d.UserID,
		Token:     d.Token,
		CreatedAt: normalizeTime(d.CreatedAt),
		ExpiresAt: normalizeTime(d.ExpiresAt),
	}
}

func (s *Store) CreateSession(ctx context.Context, sess *model.Session) (*model.Session, error) {
	doc := sessionDoc{
		ID:        sess.ID,
		UserID:    sess.UserID,
		Token:     sess.Token,
		CreatedAt: s.stamp(sess.CreatedAt),
		ExpiresAt: sess.ExpiresAt,
	}
	ref := s.col(colSessions).Doc(sess.ID)
	if _, err := ref.Set(ctx, doc); err != nil {
		return nil, fmt.Errorf("firestore: creating session: %w", err)
	}
	d, err := getDoc[sessionDoc](ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("firestore: reading session %s: %w", sess.ID, err)
	}
	if d == nil {
		return nil, nil
	}
	return d.model(), nil
}

func (s *Store) GetSessionByToken(ctx context.Context, token string) (*model.Session, error) {
	d, err := firstDoc[sessionDoc](ctx, s.col(colSessions).Where("token", "==", token))
	if err != nil {
		return nil, fmt.Errorf("firestore: getting session by token: %w", err)
	}
	if d == nil {
		return nil, nil
	}
	sess := d.model()
	if sess.ExpiresAt <= s.nowString() {
		return nil, nil
	}
	return sess, nil
}

func (s *Store) UpdateSessionToken(ctx context.Context, id, token, expiresAt string) error {
	_, err := updateDoc(ctx, s.col(colSessions).Doc(id), updates{
		{Path: "token", Value: token},
		{Path: "expires_at", Value: expiresAt},
	})
	if err != nil {
		return fmt.Errorf("firestore: updating session %s: %w", id, err)
	}
	return nil
}

func (s *Store) DeleteSession(ctx context.Context, id string) error {
	if _, err := s.col(colSessions).Doc(id).Delete(ctx); err != nil {
		return fmt.Errorf("firestore: deleting session %s: %w", id, err)
	}
	return nil
}

func (s *Store) DeleteSessionsByUserID(ctx context.Context, userID string) error {
	if err := s.deleteWhere(ctx, s.col(colSessions).Where("user_id", "==", userID)); err != nil {
		return fmt.Errorf("firestore: deleting sessions of user %s: %w", userID, err)
	}
	return nil
}

func (s *Store) DeleteExpiredSessions(ctx context.Context) (int, error) {
	refs, err := queryRefs(ctx, s.col(colSessions).Where("expires_at", "<=", s.nowString()))
	if err != nil {
		return 0, fmt.Errorf("firestore: listing expired sessions: %w", err)
	}
	if err := s.deleteRefs(ctx, refs); err != nil {
		return 0, fmt.Errorf("firestore: deleting expired sessions: %w", err)
	}
	return len(refs), nil
}
