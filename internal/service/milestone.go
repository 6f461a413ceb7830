package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/sakif/sanctuary/internal/apperror"
	"github.com/sakif/sanctuary/internal/model"
	"github.com/sakif/sanctuary/internal/repository"
)

const (
	MaxMilestoneTitleLength = 100
	defaultMilestoneType    = "custom"
)

type milestoneStore interface {
	repository.UserStore
	repository.MemberStore
	repository.MilestoneStore
}

// MilestoneService manages the dated events of a couple's timeline.
type MilestoneService struct {
	store    milestoneStore
	notifier *NotificationService
	logger   *slog.Logger
	opts     options
}

func NewMilestoneService(store milestoneStore, notifier *NotificationService, logger *slog.Logger, opts ...Option) *MilestoneService {
	return &MilestoneService{store: store, notifier: notifier, logger: logger, opts: buildOptions(opts)}
}

// MilestoneInput is the body of a new milestone.
type MilestoneInput struct {
	Title       string          `json:"title"`
	Description *string         `json:"description"`
	Date        string          `json:"date"`
	Type        string          `json:"type"`
	Icon        *string         `json:"icon"`
	Photos      []string        `json:"photos"`
	Location    *model.Location `json:"location"`
}

func validateTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", apperror.ValidationFailed("title", "title is required")
	}
	if utf8.RuneCountInString(title) > MaxMilestoneTitleLength {
		return "", apperror.ValidationFailed("title",
			fmt.Sprintf("title must be %d characters or fewer", MaxMilestoneTitleLength))
	}
	return title, nil
}

func validateMilestoneDate(date string) (string, error) {
	date = strings.TrimSpace(date)
	if !validDate(date) {
		return "", apperror.ValidationFailed("date", "date must be a date (YYYY-MM-DD)")
	}
	return date, nil
}

// Create adds a milestone to the caller's space and tells the partner.
func (s *MilestoneService) Create(ctx context.Context, userID string, in MilestoneInput) (*model.Milestone, error) {
	title, err := validateTitle(in.Title)
	if err != nil {
		return nil, err
	}
	date, err := validateMilestoneDate(in.Date)
	if err != nil {
		return nil, err
	}
	if err := validatePhotos(in.Photos); err != nil {
		return nil, err
	}
	if err := validateLocation(in.Location); err != nil {
		return nil, err
	}
	typ := strings.TrimSpace(in.Type)
	if typ == "" {
		typ = defaultMilestoneType
	}

	m, err := requireMembership(ctx, s.store, userID)
	if err != nil {
		return nil, err
	}

	ms, err := s.store.CreateMilestone(ctx, &model.Milestone{
		ID:          newID(),
		SpaceID:     m.SpaceID,
		Title:       title,
		Description: in.Description,
		Date:        date,
		Type:        typ,
		Icon:        in.Icon,
		Photos:      in.Photos,
		Location:    in.Location,
		CreatedAt:   model.FormatTime(s.opts.now()),
		CreatedBy:   userID,
	})
	if err != nil {
		return nil, fmt.Errorf("service/milestone: creating milestone: %w", err)
	}

	members, err := s.store.ListSpaceMembers(ctx, m.SpaceID)
	if err != nil {
		s.logger.Warn("listing members for notification", slog.String("error", err.Error()))
		return ms, nil
	}
	for _, p := range partnersOf(members, userID) {
		s.notifier.notifyQuietly(ctx, p, model.NotificationMilestone,
			"New milestone: "+ms.Title, "A new milestone was added on "+ms.Date, "/milestone/"+ms.ID)
	}
	return ms, nil
}

// List returns the milestones of the caller's space, latest date first.
// A caller without a space gets an empty list.
func (s *MilestoneService) List(ctx context.Context, userID string) ([]model.Milestone, error) {
	m, err := s.store.GetSpaceMemberByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/milestone: looking up membership of %s: %w", userID, err)
	}
	if m == nil {
		return []model.Milestone{}, nil
	}
	list, err := s.store.ListMilestonesBySpaceID(ctx, m.SpaceID)
	if err != nil {
		return nil, fmt.Errorf("service/milestone: listing milestones: %w", err)
	}
	return list, nil
}

// Get returns a milestone of the caller's space.
func (s *MilestoneService) Get(ctx context.Context, userID, id string) (*model.Milestone, error) {
	ms, err := s.store.GetMilestoneByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/milestone: getting %s: %w", id, err)
	}
	if ms == nil {
		return nil, apperror.NotFound("milestone", id)
	}
	m, err := s.store.GetSpaceMemberByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/milestone: looking up membership of %s: %w", userID, err)
	}
	if m == nil || m.SpaceID != ms.SpaceID {
		return nil, apperror.NotFound("milestone", id)
	}
	return ms, nil
}

// Update patches a milestone of the caller's space.
func (s *MilestoneService) Update(ctx context.Context, userID, id string, upd model.MilestoneUpdate) (*model.Milestone, error) {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return nil, err
	}
	if upd.Title.Set {
		title, err := validateTitle(upd.Title.Value)
		if err != nil {
			return nil, err
		}
		upd.Title.Value = title
	}
	if upd.Date.Set {
		date, err := validateMilestoneDate(upd.Date.Value)
		if err != nil {
			return nil, err
		}
		upd.Date.Value = date
	}
	if upd.Type.Set && strings.TrimSpace(upd.Type.Value) == "" {
		return nil, apperror.ValidationFailed("type", "type cannot be empty")
	}
	if upd.Photos.Set {
		if err := validatePhotos(upd.Photos.Value); err != nil {
			return nil, err
		}
	}
	if upd.Location.Set {
		if err := validateLocation(upd.Location.Value); err != nil {
			return nil, err
		}
	}

	ms, err := s.store.UpdateMilestone(ctx, id, upd)
	if err != nil {
		return nil, fmt.Errorf("service/milestone: updating %s: %w", id, err)
	}
	if ms == nil {
		return nil, apperror.NotFound("milestone", id)
	}
	return ms, nil
}

// Delete removes a milestone of the caller's space.
func (s *MilestoneService) Delete(ctx context.Context, userID, id string) error {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return err
	}
	if err := s.store.DeleteMilestone(ctx, id); err != nil {
		return fmt.Errorf("service/milestone: deleting %s: %w", id, err)
	}
	return nil
}
