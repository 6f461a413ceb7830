package firestore

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"

	"github.com/sakif/sanctuary/internal/model"
	"github.com/sakif/sanctuary/internal/repository"
)

// ===== MILESTONES =====

type milestoneDoc struct {
	ID          string  `firestore:"id"`
	SpaceID     string  `firestore:"space_id"`
	Title       string  `firestore:"title"`
	Description *string `firestore:"description"`
	Date        string  `firestore:"date"`
	Type        string  `firestore:"type"`
	Icon        *string `firestore:"icon"`
	Photos      *string `firestore:"photos"`
	Location    *string `firestore:"location"`
	CreatedAt   any     `firestore:"created_at"`
	CreatedBy   string  `firestore:"created_by"`
}

func (d *milestoneDoc) model() (*model.Milestone, error) {
	m := &model.Milestone{
		ID:          d.ID,
		SpaceID:     d.SpaceID,
		Title:       d.Title,
		Description: d.Description,
		Date:        d.Date,
		Type:        d.Type,
		Icon:        d.Icon,
		CreatedAt:   normalizeTime(d.CreatedAt),
		CreatedBy:   d.CreatedBy,
	}
	var err error
	if m.Photos, err = repository.DecodeStrings(d.Photos); err != nil {
		return nil, fmt.Errorf("milestone %s photos: %w", d.ID, err)
	}
	if m.Location, err = repository.DecodeLocation(d.Location); err != nil {
		return nil, fmt.Errorf("milestone %s location: %w", d.ID, err)
	}
	return m, nil
}

func (s *Store) CreateMilestone(ctx context.Context, m *model.Milestone) (*model.Milestone, error) {
	photos, err := repository.EncodeStrings(m.Photos)
	if err != nil {
		return nil, fmt.Errorf("firestore: creating milestone: %w", err)
	}
	loc, err := repository.EncodeLocation(m.Location)
	if err != nil {
		return nil, fmt.Errorf("firestore: creating milestone: %w", err)
	}

	doc := milestoneDoc{
		ID:          m.ID,
		SpaceID:     m.SpaceID,
		Title:       m.Title,
		Description: m.Description,
		Date:        m.Date,
		Type:        m.Type,
		Icon:        m.Icon,
		Photos:      photos,
		Location:    loc,
		CreatedAt:   s.stamp(m.CreatedAt),
		CreatedBy:   m.CreatedBy,
	}
	if _, err := s.col(colMilestones).Doc(m.ID).Set(ctx, doc); err != nil {
		return nil, fmt.Errorf("firestore: creating milestone: %w", err)
	}
	return s.GetMilestoneByID(ctx, m.ID)
}

func (s *Store) GetMilestoneByID(ctx context.Context, id string) (*model.Milestone, error) {
	d, err := getDoc[milestoneDoc](ctx, s.col(colMilestones).Doc(id))
	if err != nil {
		return nil, fmt.Errorf("firestore: getting milestone %s: %w", id, err)
	}
	if d == nil {
		return nil, nil
	}
	m, err := d.model()
	if err != nil {
		return nil, fmt.Errorf("firestore: %w", err)
	}
	return m, nil
}

func (s *Store) ListMilestonesBySpaceID(ctx context.Context, spaceID string) ([]model.Milestone, error) {
	docs, err := queryDocs[milestoneDoc](ctx, s.col(colMilestones).
		Where("space_id", "==", spaceID).
		OrderBy("date", firestore.Desc))
	if err != nil {
		return nil, fmt.Errorf("firestore: listing milestones of space %s: %w", spaceID, err)
	}
	milestones := make([]model.Milestone, 0, len(docs))
	for i := range docs {
		m, err := docs[i].model()
		if err != nil {
			return nil, fmt.Errorf("firestore: %w", err)
		}
		milestones = append(milestones, *m)
	}
	return milestones, nil
}

func (s *Store) UpdateMilestone(ctx context.Context, id string, upd model.MilestoneUpdate) (*model.Milestone, error) {
	var u updates
	add(&u, "title", upd.Title)
	add(&u, "description", upd.Description)
	add(&u, "date", upd.Date)
	add(&u, "type", upd.Type)
	add(&u, "icon", upd.Icon)
	err := addEncoded(&u, "photos", upd.Photos.Set, func() (*string, error) {
		return repository.EncodeStrings(upd.Photos.Value)
	})
	if err == nil {
		err = addEncoded(&u, "location", upd.Location.Set, func() (*string, error) {
			return repository.EncodeLocation(upd.Location.Value)
		})
	}
	if err != nil {
		return nil, fmt.Errorf("firestore: updating milestone %s: %w", id, err)
	}

	found, err := updateDoc(ctx, s.col(colMilestones).Doc(id), u)
	if err != nil {
		return nil, fmt.Errorf("firestore: updating milestone %s: %w", id, err)
	}
	if !found {
		return nil, nil
	}
	return s.GetMilestoneByID(ctx, id)
}

func (s *Store) DeleteMilestone(ctx context.Context, id string) error {
	if _, err := s.col(colMilestones).Doc(id).Delete(ctx); err != nil {
		return fmt.Errorf("firestore: deleting milestone %s: %w", id, err)
	}
	return nil
}

func (s *Store) DeleteMilestonesBySpaceID(ctx context.Context, spaceID string) error {
	if err := s.deleteWhere(ctx, s.col(colMilestones).Where("space_id", "==", spaceID)); err != nil {
		return fmt.Errorf("firestore: deleting milestones of space %s: %w", spaceID, err)
	}
	return nil
}

// ===== NOTIFICATIONS =====

type notificationDoc struct {
	ID        string  `firestore:"id"`
	UserID    string  `firestore:"user_id"`
	Type      string  `firestore:"type"`
	Title     string  `firestore:"title"`
	Message   string  `firestore:"message"`
	CreatedAt any     `firestore:"created_at"`
	Read      int64   `firestore:"read"`
	ActionURL *string `firestore:"action_url"`
}

func (d *notificationDoc) model() *model.Notification {
	return &model.Notification{
		ID:        d.ID,
		UserID:    d.UserID,
		Type:      d.Type,
		Title:     d.Title,
		Message:   d.Message,
		CreatedAt: normalizeTime(d.CreatedAt),
		Read:      d.Read != 0,
		ActionURL: d.ActionURL,
	}
}

func (s *Store) CreateNotification(ctx context.Context, n *model.Notification) (*model.Notification, error) {
	doc := notificationDoc{
		ID:        n.ID,
		UserID:    n.UserID,
		Type:      n.Type,
		Title:     n.Title,
		Message:   n.Message,
		CreatedAt: s.stamp(n.CreatedAt),
		Read:      int64(repository.BoolToInt(n.Read)),
		ActionURL: n.ActionURL,
	}
	if _, err := s.col(colNotifications).Doc(n.ID).Set(ctx, doc); err != nil {
		return nil, fmt.Errorf("firestore: creating notification: %w", err)
	}
	return s.GetNotificationByID(ctx, n.ID)
}

func (s *Store) GetNotificationByID(ctx context.Context, id string) (*model.Notification, error) {
	d, err := getDoc[notificationDoc](ctx, s.col(colNotifications).Doc(id))
	if err != nil {
		return nil, fmt.Errorf("firestore: getting notification %s: %w", id, err)
	}
	if d == nil {
		return nil, nil
	}
	return d.model(), nil
}

func (s *Store) ListNotificationsByUserID(ctx context.Context, userID string) ([]model.Notification, error) {
	docs, err := queryDocs[notificationDoc](ctx, s.col(colNotifications).
		Where("user_id", "==", userID).
		OrderBy("created_at", firestore.Desc))
	if err != nil {
		return nil, fmt.Errorf("firestore: listing notifications of user %s: %w", userID, err)
	}
	notifications := make([]model.Notification, 0, len(docs))
	for i := range docs {
		notifications = append(notifications, *docs[i].model())
	}
	return notifications, nil
}

func (s *Store) MarkNotificationRead(ctx context.Context, id string) (*model.Notification, error) {
	found, err := updateDoc(ctx, s.col(colNotifications).Doc(id), updates{{Path: "read", Value: 1}})
	if err != nil {
		return nil, fmt.Errorf("firestore: marking notification %s read: %w", id, err)
	}
	if !found {
		return nil, nil
	}
	return s.GetNotificationByID(ctx, id)
}

// MarkAllNotificationsRead flips every unread notification of userID and
// returns how many there were.
func (s *Store) MarkAllNotificationsRead(ctx context.Context, userID string) (int, error) {
	refs, err := queryRefs(ctx, s.col(colNotifications).
		Where("user_id", "==", userID).
		Where("read", "==", 0))
	if err != nil {
		return 0, fmt.Errorf("firestore: listing unread notifications: %w", err)
	}
	if err := s.updateRefs(ctx, refs, updates{{Path: "read", Value: 1}}); err != nil {
		return 0, fmt.Errorf("firestore: marking notifications read: %w", err)
	}
	return len(refs), nil
}

// DeleteNotificationsByUserIDs chunks userIDs into "in" filters of 10.
func (s *Store) DeleteNotificationsByUserIDs(ctx context.Context, userIDs []string) error {
	if len(userIDs) == 0 {
		return nil
	}
	if err := s.deleteWhereIn(ctx, colNotifications, "user_id", userIDs); err != nil {
		return fmt.Errorf("firestore: deleting notifications: %w", err)
	}
	return nil
}
