package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sakif/sanctuary/internal/model"
	"github.com/sakif/sanctuary/internal/repository"
)

const spaceColumns = `id, anniversary_date, invite_code, created_at`

func scanSpace(row rowScanner) (*model.Space, error) {
	var s model.Space
	if err := row.Scan(&s.ID, &s.AnniversaryDate, &s.InviteCode, &s.CreatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

func (db *DB) CreateSpace(ctx context.Context, s *model.Space) (*model.Space, error) {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO spaces (id, anniversary_date, invite_code, created_at)
		 VALUES (?, ?, ?, ?)`,
		s.ID, s.AnniversaryDate, s.InviteCode, repository.StampIfEmpty(s.CreatedAt, db.now()),
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: creating space: %w", err)
	}
	return db.GetSpaceByID(ctx, s.ID)
}

func (db *DB) GetSpaceByID(ctx context.Context, id string) (*model.Space, error) {
	s, err := scanSpace(db.conn.QueryRowContext(ctx,
		`SELECT `+spaceColumns+` FROM spaces WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting space %s: %w", id, err)
	}
	return s, nil
}

func (db *DB) GetSpaceByInviteCode(ctx context.Context, code string) (*model.Space, error) {
	s, err := scanSpace(db.conn.QueryRowContext(ctx,
		`SELECT `+spaceColumns+` FROM spaces WHERE invite_code = ?`, code))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting space by invite code: %w", err)
	}
	return s, nil
}

func (db *DB) UpdateSpace(ctx context.Context, id string, upd model.SpaceUpdate) (*model.Space, error) {
	var b setBuilder
	set(&b, "anniversary_date", upd.AnniversaryDate)
	set(&b, "invite_code", upd.InviteCode)

	if !b.empty() {
		if err := b.exec(ctx, db.conn, "spaces", "id = ?", id); err != nil {
			return nil, fmt.Errorf("sqlite: updating space %s: %w", id, err)
		}
	}
	return db.GetSpaceByID(ctx, id)
}

// DeleteSpace removes only the space row. Members, memories and the rest are
// removed by the caller (see service.SpaceService's cascade).
func (db *DB) DeleteSpace(ctx context.Context, id string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM spaces WHERE id = ?`, id); err != nil {
		return fmt.Errorf("sqlite: deleting space %s: %w", id, err)
	}
	return nil
}

func (db *DB) ListSpaces(ctx context.Context) ([]model.Space, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+spaceColumns+` FROM spaces ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing spaces: %w", err)
	}
	defer rows.Close()

	spaces := []model.Space{}
	for rows.Next() {
		s, err := scanSpace(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning space row: %w", err)
		}
		spaces = append(spaces, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating space rows: %w", err)
	}
	return spaces, nil
}

// ===== MEMBERS =====

const memberColumns = `space_id, user_id, pet_name, partner_pet_name, joined_at`

func scanMember(row rowScanner) (*model.SpaceMember, error) {
	var (
		m               model.SpaceMember
		pet, partnerPet sql.NullString
	)
	if err := row.Scan(&m.SpaceID, &m.UserID, &pet, &partnerPet, &m.JoinedAt); err != nil {
		return nil, err
	}
	m.PetName = stringPtr(pet)
	m.PartnerPetName = stringPtr(partnerPet)
	return &m, nil
}

func (db *DB) AddSpaceMember(ctx context.Context, m *model.SpaceMember) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO space_members (space_id, user_id, pet_name, partner_pet_name, joined_at)
		 VALUES (?, ?, ?, ?, ?)`,
		m.SpaceID,
		m.UserID,
		nullString(m.PetName),
		nullString(m.PartnerPetName),
		repository.StampIfEmpty(m.JoinedAt, db.now()),
	)
	if err != nil {
		return fmt.Errorf("sqlite: adding member %s to space %s: %w", m.UserID, m.SpaceID, err)
	}
	return nil
}

func (db *DB) ListSpaceMembers(ctx context.Context, spaceID string) ([]model.SpaceMember, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+memberColumns+` FROM space_members WHERE space_id = ? ORDER BY joined_at, user_id`, spaceID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing members of space %s: %w", spaceID, err)
	}
	defer rows.Close()

	members := []model.SpaceMember{}
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning member row: %w", err)
		}
		members = append(members, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating member rows: %w", err)
	}
	return members, nil
}

func (db *DB) GetSpaceMemberByUserID(ctx context.Context, userID string) (*model.SpaceMember, error) {
	m, err := scanMember(db.conn.QueryRowContext(ctx,
		`SELECT `+memberColumns+` FROM space_members WHERE user_id = ? LIMIT 1`, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting membership of user %s: %w", userID, err)
	}
	return m, nil
}

func (db *DB) CountSpaceMembers(ctx context.Context, spaceID string) (int, error) {
	n, err := db.count(ctx, `SELECT COUNT(*) FROM space_members WHERE space_id = ?`, spaceID)
	if err != nil {
		return 0, fmt.Errorf("sqlite: counting members of space %s: %w", spaceID, err)
	}
	return n, nil
}

func (db *DB) UpdateSpaceMember(ctx context.Context, spaceID, userID string, upd model.SpaceMemberUpdate) (*model.SpaceMember, error) {
	var b setBuilder
	set(&b, "pet_name", upd.PetName)
	set(&b, "partner_pet_name", upd.PartnerPetName)
	set(&b, "joined_at", upd.JoinedAt)

	if !b.empty() {
		if err := b.exec(ctx, db.conn, "space_members", "space_id = ? AND user_id = ?", spaceID, userID); err != nil {
			return nil, fmt.Errorf("sqlite: updating member %s of space %s: %w", userID, spaceID, err)
		}
	}

	m, err := scanMember(db.conn.QueryRowContext(ctx,
		`SELECT `+memberColumns+` FROM space_members WHERE space_id = ? AND user_id = ?`, spaceID, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: reading member %s of space %s: %w", userID, spaceID, err)
	}
	return m, nil
}

func (db *DB) DeleteSpaceMembersBySpaceID(ctx context.Context, spaceID string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM space_members WHERE space_id = ?`, spaceID); err != nil {
		return fmt.Errorf("sqlite: deleting members of space %s: %w", spaceID, err)
	}
	return nil
}

// ===== UNBIND REQUESTS =====

const unbindColumns = `id, space_id, requested_by, requested_at, expires_at, status`

func scanUnbind(row rowScanner) (*model.UnbindRequest, error) {
	var (
		r      model.UnbindRequest
		status string
	)
	if err := row.Scan(&r.ID, &r.SpaceID, &r.RequestedBy, &r.RequestedAt, &r.ExpiresAt, &status); err != nil {
		return nil, err
	}
	r.Status = model.UnbindStatus(status)
	return &r, nil
}

// CreateUnbindRequest stores a request. Status defaults to pending and
// requested_at to "now".
func (db *DB) CreateUnbindRequest(ctx context.Context, r *model.UnbindRequest) (*model.UnbindRequest, error) {
	status := r.Status
	if status == "" {
		status = model.UnbindPending
	}
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO unbind_requests (id, space_id, requested_by, requested_at, expires_at, status)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.SpaceID, r.RequestedBy,
		repository.StampIfEmpty(r.RequestedAt, db.now()),
		r.ExpiresAt, string(status),
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: creating unbind request: %w", err)
	}

	created, err := scanUnbind(db.conn.QueryRowContext(ctx,
		`SELECT `+unbindColumns+` FROM unbind_requests WHERE id = ?`, r.ID))
	if err != nil {
		return nil, fmt.Errorf("sqlite: reading unbind request %s: %w", r.ID, err)
	}
	return created, nil
}

// GetUnbindRequestBySpaceID returns the newest pending request, if any.
func (db *DB) GetUnbindRequestBySpaceID(ctx context.Context, spaceID string) (*model.UnbindRequest, error) {
	r, err := scanUnbind(db.conn.QueryRowContext(ctx,
		`SELECT `+unbindColumns+` FROM unbind_requests
		 WHERE space_id = ? AND status = ?
		 ORDER BY requested_at DESC, id DESC
		 LIMIT 1`,
		spaceID, string(model.UnbindPending)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting unbind request of space %s: %w", spaceID, err)
	}
	return r, nil
}

func (db *DB) UpdateUnbindRequestStatus(ctx context.Context, id string, status model.UnbindStatus) error {
	if _, err := db.conn.ExecContext(ctx,
		`UPDATE unbind_requests SET status = ? WHERE id = ?`, string(status), id); err != nil {
		return fmt.Errorf("sqlite: updating unbind request %s: %w", id, err)
	}
	return nil
}

func (db *DB) DeleteUnbindRequestsBySpaceID(ctx context.Context, spaceID string) error {
	if _, err := db.conn.ExecContext(ctx,
		`DELETE FROM unbind_requests WHERE space_id = ?`, spaceID); err != nil {
		return fmt.Errorf("sqlite: deleting unbind requests of space %s: %w", spaceID, err)
	}
	return nil
}

// ListExpiredUnbindRequests returns pending requests with expires_at <= now.
func (db *DB) ListExpiredUnbindRequests(ctx context.Context) ([]model.UnbindRequest, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+unbindColumns+` FROM unbind_requests
		 WHERE status = ? AND expires_at <= ?
		 ORDER BY expires_at, id`,
		string(model.UnbindPending), db.nowString())
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing expired unbind requests: %w", err)
	}
	defer rows.Close()

	reqs := []model.UnbindRequest{}
	for rows.Next() {
		r, err := scanUnbind(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning unbind request row: %w", err)
		}
		reqs = append(reqs, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating unbind request rows: %w", err)
	}
	return reqs, nil
}
