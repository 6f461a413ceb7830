package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sakif/sanctuary/internal/model"
	"github.com/sakif/sanctuary/internal/repository"
)

const milestoneColumns = `id, space_id, title, description, date, type, icon, photos, location, created_at, created_by`

func scanMilestone(row rowScanner) (*model.Milestone, error) {
	var (
		m                       model.Milestone
		desc, icon, photos, loc sql.NullString
	)
	err := row.Scan(&m.ID, &m.SpaceID, &m.Title, &desc, &m.Date, &m.Type, &icon, &photos, &loc,
		&m.CreatedAt, &m.CreatedBy)
	if err != nil {
		return nil, err
	}

	m.Description = stringPtr(desc)
	m.Icon = stringPtr(icon)
	if m.Photos, err = repository.DecodeStrings(stringPtr(photos)); err != nil {
		return nil, fmt.Errorf("milestone %s photos: %w", m.ID, err)
	}
	if m.Location, err = repository.DecodeLocation(stringPtr(loc)); err != nil {
		return nil, fmt.Errorf("milestone %s location: %w", m.ID, err)
	}
	return &m, nil
}

func (db *DB) CreateMilestone(ctx context.Context, m *model.Milestone) (*model.Milestone, error) {
	photos, err := repository.EncodeStrings(m.Photos)
	if err != nil {
		return nil, fmt.Errorf("sqlite: creating milestone: %w", err)
	}
	loc, err := repository.EncodeLocation(m.Location)
	if err != nil {
		return nil, fmt.Errorf("sqlite: creating milestone: %w", err)
	}

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO milestones (id, space_id, title, description, date, type, icon, photos, location, created_at, created_by)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID,
		m.SpaceID,
		m.Title,
		nullString(m.Description),
		m.Date,
		m.Type,
		nullString(m.Icon),
		nullString(photos),
		nullString(loc),
		repository.StampIfEmpty(m.CreatedAt, db.now()),
		m.CreatedBy,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: creating milestone: %w", err)
	}
	return db.GetMilestoneByID(ctx, m.ID)
}

func (db *DB) GetMilestoneByID(ctx context.Context, id string) (*model.Milestone, error) {
	m, err := scanMilestone(db.conn.QueryRowContext(ctx,
		`SELECT `+milestoneColumns+` FROM milestones WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting milestone %s: %w", id, err)
	}
	return m, nil
}

// ListMilestonesBySpaceID orders by the event date, not by created_at.
func (db *DB) ListMilestonesBySpaceID(ctx context.Context, spaceID string) ([]model.Milestone, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+milestoneColumns+` FROM milestones WHERE space_id = ? ORDER BY date DESC, id DESC`, spaceID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing milestones of space %s: %w", spaceID, err)
	}
	defer rows.Close()

	milestones := []model.Milestone{}
	for rows.Next() {
		m, err := scanMilestone(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning milestone row: %w", err)
		}
		milestones = append(milestones, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating milestone rows: %w", err)
	}
	return milestones, nil
}

func (db *DB) UpdateMilestone(ctx context.Context, id string, upd model.MilestoneUpdate) (*model.Milestone, error) {
	var b setBuilder
	set(&b, "title", upd.Title)
	set(&b, "description", upd.Description)
	set(&b, "date", upd.Date)
	set(&b, "type", upd.Type)
	set(&b, "icon", upd.Icon)
	setEncoded(&b, "photos", upd.Photos.Set, func() (*string, error) {
		return repository.EncodeStrings(upd.Photos.Value)
	})
	setEncoded(&b, "location", upd.Location.Set, func() (*string, error) {
		return repository.EncodeLocation(upd.Location.Value)
	})

	if !b.empty() || b.err != nil {
		if err := b.exec(ctx, db.conn, "milestones", "id = ?", id); err != nil {
			return nil, fmt.Errorf("sqlite: updating milestone %s: %w", id, err)
		}
	}
	return db.GetMilestoneByID(ctx, id)
}

func (db *DB) DeleteMilestone(ctx context.Context, id string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM milestones WHERE id = ?`, id); err != nil {
		return fmt.Errorf("sqlite: deleting milestone %s: %w", id, err)
	}
	return nil
}

func (db *DB) DeleteMilestonesBySpaceID(ctx context.Context, spaceID string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM milestones WHERE space_id = ?`, spaceID); err != nil {
		return fmt.Errorf("sqlite: deleting milestones of space %s: %w", spaceID, err)
	}
	return nil
}

// ===== NOTIFICATIONS =====

const notificationColumns = `id, user_id, type, title, message, created_at, read, action_url`

func scanNotification(row rowScanner) (*model.Notification, error) {
	var (
		n         model.Notification
		read      int
		actionURL sql.NullString
	)
	if err := row.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &n.CreatedAt, &read, &actionURL); err != nil {
		return nil, err
	}
	n.Read = read != 0
	n.ActionURL = stringPtr(actionURL)
	return &n, nil
}

func (db *DB) CreateNotification(ctx context.Context, n *model.Notification) (*model.Notification, error) {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO notifications (id, user_id, type, title, message, created_at, read, action_url)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.UserID, n.Type, n.Title, n.Message,
		repository.StampIfEmpty(n.CreatedAt, db.now()),
		repository.BoolToInt(n.Read),
		nullString(n.ActionURL),
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: creating notification: %w", err)
	}
	return db.GetNotificationByID(ctx, n.ID)
}

func (db *DB) GetNotificationByID(ctx context.Context, id string) (*model.Notification, error) {
	n, err := scanNotification(db.conn.QueryRowContext(ctx,
		`SELECT `+notificationColumns+` FROM notifications WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting notification %s: %w", id, err)
	}
	return n, nil
}

func (db *DB) ListNotificationsByUserID(ctx context.Context, userID string) ([]model.Notification, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+notificationColumns+` FROM notifications WHERE user_id = ? ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing notifications of user %s: %w", userID, err)
	}
	defer rows.Close()

	notifications := []model.Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning notification row: %w", err)
		}
		notifications = append(notifications, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating notification rows: %w", err)
	}
	return notifications, nil
}

func (db *DB) MarkNotificationRead(ctx context.Context, id string) (*model.Notification, error) {
	if _, err := db.conn.ExecContext(ctx, `UPDATE notifications SET read = 1 WHERE id = ?`, id); err != nil {
		return nil, fmt.Errorf("sqlite: marking notification %s read: %w", id, err)
	}
	return db.GetNotificationByID(ctx, id)
}

// MarkAllNotificationsRead counts the unread rows, then flips them.
//
// The two statements are not wrapped in a transaction. A notification
// created between them is marked read but not counted; with a single writer
// process that window is harmless.
func (db *DB) MarkAllNotificationsRead(ctx context.Context, userID string) (int, error) {
	unread, err := db.count(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = ? AND read = 0`, userID)
	if err != nil {
		return 0, fmt.Errorf("sqlite: counting unread notifications: %w", err)
	}
	if unread == 0 {
		return 0, nil
	}

	if _, err := db.conn.ExecContext(ctx,
		`UPDATE notifications SET read = 1 WHERE user_id = ? AND read = 0`, userID); err != nil {
		return 0, fmt.Errorf("sqlite: marking notifications read: %w", err)
	}
	return unread, nil
}

// DeleteNotificationsByUserIDs deletes with one IN (...) statement.
func (db *DB) DeleteNotificationsByUserIDs(ctx context.Context, userIDs []string) error {
	if len(userIDs) == 0 {
		return nil
	}

	args := make([]any, len(userIDs))
	for i, id := range userIDs {
		args[i] = id
	}

	if _, err := db.conn.ExecContext(ctx,
		`DELETE FROM notifications WHERE user_id IN (`+placeholders(len(userIDs))+`)`, args...); err != nil {
		return fmt.Errorf("sqlite: deleting notifications: %w", err)
	}
	return nil
}
