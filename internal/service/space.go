package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sakif/sanctuary/internal/apperror"
	"github.com/sakif/sanctuary/internal/model"
	"github.com/sakif/sanctuary/internal/repository"
)

const (
	inviteCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	inviteCodeLength   = 6
	inviteCodeAttempts = 5
	// cascadeWorkers bounds the per-memory deletes of a space cascade.
	cascadeWorkers = 4
)

// SpaceConfig holds the space timings.
type SpaceConfig struct {
	UnbindCoolingOff time.Duration
}

type spaceStore interface {
	repository.UserStore
	repository.SpaceStore
	repository.MemberStore
	repository.MemoryStore
	repository.MilestoneStore
	repository.NotificationStore
	repository.ReactionStore
	repository.CommentStore
	repository.UnbindStore
}

// SpaceService manages the couple's shared space: creating and joining it,
// pet names, and dissolving it either at once or after a cooling-off period.
type SpaceService struct {
	store    spaceStore
	notifier *NotificationService
	cfg      SpaceConfig
	logger   *slog.Logger
	opts     options
}

func NewSpaceService(store spaceStore, notifier *NotificationService, cfg SpaceConfig, logger *slog.Logger, opts ...Option) *SpaceService {
	return &SpaceService{
		store:    store,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
		opts:     buildOptions(opts),
	}
}

// SpaceView is a space together with the users in it.
type SpaceView struct {
	ID              string       `json:"id"`
	CreatedAt       string       `json:"createdAt"`
	AnniversaryDate string       `json:"anniversaryDate"`
	InviteCode      string       `json:"inviteCode"`
	Partners        []model.User `json:"partners"`
}

// PetNames is what the caller calls themselves and their partner.
type PetNames struct {
	MyPetName      *string `json:"myPetName"`
	PartnerPetName *string `json:"partnerPetName"`
}

// PetNamesUpdate patches PetNames.
type PetNamesUpdate struct {
	MyPetName      model.Opt[*string] `json:"myPetName"`
	PartnerPetName model.Opt[*string] `json:"partnerPetName"`
}

func (s *SpaceService) view(ctx context.Context, sp *model.Space) (*SpaceView, error) {
	members, err := s.store.ListSpaceMembers(ctx, sp.ID)
	if err != nil {
		return nil, fmt.Errorf("service/space: listing members of %s: %w", sp.ID, err)
	}
	ids := make([]string, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.UserID)
	}
	users, err := s.store.GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("service/space: loading partners of %s: %w", sp.ID, err)
	}
	return &SpaceView{
		ID:              sp.ID,
		CreatedAt:       sp.CreatedAt,
		AnniversaryDate: sp.AnniversaryDate,
		InviteCode:      sp.InviteCode,
		Partners:        users,
	}, nil
}

// requireMemberOf returns the caller's membership when it is in spaceID.
func (s *SpaceService) requireMemberOf(ctx context.Context, userID, spaceID string) (*model.SpaceMember, error) {
	m, err := s.store.GetSpaceMemberByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/space: looking up membership of %s: %w", userID, err)
	}
	if m == nil || m.SpaceID != spaceID {
		return nil, apperror.Forbidden("user is not a member of this space")
	}
	return m, nil
}

func (s *SpaceService) ensureNotInSpace(ctx context.Context, userID string) error {
	m, err := s.store.GetSpaceMemberByUserID(ctx, userID)
	if err != nil {
		return fmt.Errorf("service/space: looking up membership of %s: %w", userID, err)
	}
	if m != nil {
		return apperror.Conflict("user is already in a space")
	}
	return nil
}

func (s *SpaceService) newInviteCode(ctx context.Context) (string, error) {
	for range inviteCodeAttempts {
		code, err := randomString(inviteCodeAlphabet, inviteCodeLength)
		if err != nil {
			return "", err
		}
		taken, err := s.store.GetSpaceByInviteCode(ctx, code)
		if err != nil {
			return "", fmt.Errorf("checking invite code: %w", err)
		}
		if taken == nil {
			return code, nil
		}
	}
	return "", fmt.Errorf("no free invite code after %d attempts", inviteCodeAttempts)
}

// Create opens a space for a user who is not in one yet.
func (s *SpaceService) Create(ctx context.Context, userID, anniversaryDate string) (*SpaceView, error) {
	anniversaryDate = strings.TrimSpace(anniversaryDate)
	if !validDate(anniversaryDate) {
		return nil, apperror.ValidationFailed("anniversaryDate", "anniversaryDate must be a date (YYYY-MM-DD)")
	}
	if err := s.ensureNotInSpace(ctx, userID); err != nil {
		return nil, err
	}

	code, err := s.newInviteCode(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/space: %w", err)
	}

	now := model.FormatTime(s.opts.now())
	sp, err := s.store.CreateSpace(ctx, &model.Space{
		ID:              newID(),
		AnniversaryDate: anniversaryDate,
		InviteCode:      code,
		CreatedAt:       now,
	})
	if err != nil {
		return nil, fmt.Errorf("service/space: creating space: %w", err)
	}
	if err := s.store.AddSpaceMember(ctx, &model.SpaceMember{SpaceID: sp.ID, UserID: userID, JoinedAt: now}); err != nil {
		return nil, fmt.Errorf("service/space: adding creator: %w", err)
	}

	s.logger.Info("space created", slog.String("spaceID", sp.ID), slog.String("userID", userID))
	return s.view(ctx, sp)
}

// Mine returns the caller's space, or nil when they have none.
func (s *SpaceService) Mine(ctx context.Context, userID string) (*SpaceView, error) {
	m, err := s.store.GetSpaceMemberByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/space: looking up membership of %s: %w", userID, err)
	}
	if m == nil {
		return nil, nil
	}
	sp, err := s.store.GetSpaceByID(ctx, m.SpaceID)
	if err != nil {
		return nil, fmt.Errorf("service/space: getting space %s: %w", m.SpaceID, err)
	}
	if sp == nil {
		return nil, nil
	}
	return s.view(ctx, sp)
}

// Get returns a space the caller belongs to.
func (s *SpaceService) Get(ctx context.Context, userID, spaceID string) (*SpaceView, error) {
	if _, err := s.requireMemberOf(ctx, userID, spaceID); err != nil {
		return nil, err
	}
	sp, err := s.store.GetSpaceByID(ctx, spaceID)
	if err != nil {
		return nil, fmt.Errorf("service/space: getting space %s: %w", spaceID, err)
	}
	if sp == nil {
		return nil, apperror.NotFound("space", spaceID)
	}
	return s.view(ctx, sp)
}

// Join adds the caller to the space behind inviteCode. A space holds at
// most model.MaxSpaceMembers users.
func (s *SpaceService) Join(ctx context.Context, userID, inviteCode string) (*SpaceView, error) {
	inviteCode = strings.ToUpper(strings.TrimSpace(inviteCode))
	if inviteCode == "" {
		return nil, apperror.ValidationFailed("inviteCode", "inviteCode is required")
	}
	if err := s.ensureNotInSpace(ctx, userID); err != nil {
		return nil, err
	}

	sp, err := s.store.GetSpaceByInviteCode(ctx, inviteCode)
	if err != nil {
		return nil, fmt.Errorf("service/space: resolving invite code: %w", err)
	}
	if sp == nil {
		return nil, &apperror.AppError{Err: apperror.ErrNotFound, Message: "invalid invite code", Field: "inviteCode"}
	}

	n, err := s.store.CountSpaceMembers(ctx, sp.ID)
	if err != nil {
		return nil, fmt.Errorf("service/space: counting members of %s: %w", sp.ID, err)
	}
	if n >= model.MaxSpaceMembers {
		return nil, apperror.Conflict(fmt.Sprintf("space already has %d members", model.MaxSpaceMembers))
	}

	members, err := s.store.ListSpaceMembers(ctx, sp.ID)
	if err != nil {
		return nil, fmt.Errorf("service/space: listing members of %s: %w", sp.ID, err)
	}
	err = s.store.AddSpaceMember(ctx, &model.SpaceMember{
		SpaceID:  sp.ID,
		UserID:   userID,
		JoinedAt: model.FormatTime(s.opts.now()),
	})
	if err != nil {
		return nil, fmt.Errorf("service/space: adding member: %w", err)
	}

	for _, partner := range partnersOf(members, userID) {
		s.notifier.notifyQuietly(ctx, partner, model.NotificationPartner,
			"Your partner has joined!", "Your shared space is complete. Start writing memories together.", "/dashboard")
	}

	s.logger.Info("space joined", slog.String("spaceID", sp.ID), slog.String("userID", userID))
	return s.view(ctx, sp)
}

// UpdateAnniversary changes the anniversary date of the caller's space.
func (s *SpaceService) UpdateAnniversary(ctx context.Context, userID, spaceID, date string) (*SpaceView, error) {
	date = strings.TrimSpace(date)
	if !validDate(date) {
		return nil, apperror.ValidationFailed("anniversaryDate", "anniversaryDate must be a date (YYYY-MM-DD)")
	}
	if _, err := s.requireMemberOf(ctx, userID, spaceID); err != nil {
		return nil, err
	}

	sp, err := s.store.UpdateSpace(ctx, spaceID, model.SpaceUpdate{AnniversaryDate: model.Some(date)})
	if err != nil {
		return nil, fmt.Errorf("service/space: updating space %s: %w", spaceID, err)
	}
	if sp == nil {
		return nil, apperror.NotFound("space", spaceID)
	}
	return s.view(ctx, sp)
}

// PetNames returns the caller's pet names.
func (s *SpaceService) PetNames(ctx context.Context, userID string) (*PetNames, error) {
	m, err := requireMembership(ctx, s.store, userID)
	if err != nil {
		return nil, err
	}
	return &PetNames{MyPetName: m.PetName, PartnerPetName: m.PartnerPetName}, nil
}

// UpdatePetNames patches the caller's pet names.
func (s *SpaceService) UpdatePetNames(ctx context.Context, userID string, upd PetNamesUpdate) (*PetNames, error) {
	m, err := requireMembership(ctx, s.store, userID)
	if err != nil {
		return nil, err
	}

	updated, err := s.store.UpdateSpaceMember(ctx, m.SpaceID, userID, model.SpaceMemberUpdate{
		PetName:        trimOpt(upd.MyPetName),
		PartnerPetName: trimOpt(upd.PartnerPetName),
	})
	if err != nil {
		return nil, fmt.Errorf("service/space: updating pet names: %w", err)
	}
	if updated == nil {
		return nil, apperror.NotFound("membership", userID)
	}
	return &PetNames{MyPetName: updated.PetName, PartnerPetName: updated.PartnerPetName}, nil
}

// trimOpt trims a set name and turns a blank one into null.
func trimOpt(o model.Opt[*string]) model.Opt[*string] {
	if !o.Set || o.Value == nil {
		return o
	}
	v := strings.TrimSpace(*o.Value)
	if v == "" {
		return model.Some[*string](nil)
	}
	return model.Some(&v)
}

// Delete dissolves the space immediately.
func (s *SpaceService) Delete(ctx context.Context, userID, spaceID string) error {
	if _, err := s.requireMemberOf(ctx, userID, spaceID); err != nil {
		return err
	}
	if err := s.deleteContent(ctx, spaceID); err != nil {
		return err
	}
	if err := s.store.DeleteUnbindRequestsBySpaceID(ctx, spaceID); err != nil {
		return fmt.Errorf("service/space: deleting unbind requests of %s: %w", spaceID, err)
	}
	s.logger.Info("space deleted", slog.String("spaceID", spaceID), slog.String("userID", userID))
	return nil
}

// deleteContent removes everything that belongs to the space except its
// unbind requests. Members and the space row go last so a failed run can be
// retried by any member.
func (s *SpaceService) deleteContent(ctx context.Context, spaceID string) error {
	members, err := s.store.ListSpaceMembers(ctx, spaceID)
	if err != nil {
		return fmt.Errorf("service/space: listing members of %s: %w", spaceID, err)
	}
	userIDs := make([]string, 0, len(members))
	for _, m := range members {
		userIDs = append(userIDs, m.UserID)
	}

	total, err := s.store.CountMemoriesBySpaceID(ctx, spaceID)
	if err != nil {
		return fmt.Errorf("service/space: counting memories of %s: %w", spaceID, err)
	}
	memories, err := s.store.ListMemoriesBySpaceID(ctx, spaceID, total, 0)
	if err != nil {
		return fmt.Errorf("service/space: listing memories of %s: %w", spaceID, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cascadeWorkers)
	for _, mem := range memories {
		g.Go(func() error {
			if err := s.store.DeleteReactionsByMemoryID(gctx, mem.ID); err != nil {
				return fmt.Errorf("reactions of memory %s: %w", mem.ID, err)
			}
			if err := s.store.DeleteCommentsByMemoryID(gctx, mem.ID); err != nil {
				return fmt.Errorf("comments of memory %s: %w", mem.ID, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("service/space: deleting %s: %w", spaceID, err)
	}

	steps := []struct {
		what string
		run  func() error
	}{
		{"notifications", func() error { return s.store.DeleteNotificationsByUserIDs(ctx, userIDs) }},
		{"memories", func() error { return s.store.DeleteMemoriesBySpaceID(ctx, spaceID) }},
		{"milestones", func() error { return s.store.DeleteMilestonesBySpaceID(ctx, spaceID) }},
		{"members", func() error { return s.store.DeleteSpaceMembersBySpaceID(ctx, spaceID) }},
		{"space", func() error { return s.store.DeleteSpace(ctx, spaceID) }},
	}
	for _, step := range steps {
		if err := step.run(); err != nil {
			return fmt.Errorf("service/space: deleting %s of %s: %w", step.what, spaceID, err)
		}
	}
	return nil
}

// RequestUnbind starts the cooling-off period after which the space is
// dissolved. Either member can cancel it until then.
func (s *SpaceService) RequestUnbind(ctx context.Context, userID, spaceID string) (*model.UnbindRequest, error) {
	if _, err := s.requireMemberOf(ctx, userID, spaceID); err != nil {
		return nil, err
	}

	pending, err := s.store.GetUnbindRequestBySpaceID(ctx, spaceID)
	if err != nil {
		return nil, fmt.Errorf("service/space: getting unbind request of %s: %w", spaceID, err)
	}
	if pending != nil {
		return nil, apperror.Conflict("an unbind request is already pending")
	}

	now := s.opts.now()
	req, err := s.store.CreateUnbindRequest(ctx, &model.UnbindRequest{
		ID:          newID(),
		SpaceID:     spaceID,
		RequestedBy: userID,
		RequestedAt: model.FormatTime(now),
		ExpiresAt:   model.FormatTime(now.Add(s.cfg.UnbindCoolingOff)),
		Status:      model.UnbindPending,
	})
	if err != nil {
		return nil, fmt.Errorf("service/space: creating unbind request: %w", err)
	}

	s.notifyPartners(ctx, spaceID, userID, "Unbind requested",
		fmt.Sprintf("Your partner asked to unbind. The space will be dissolved in %d days unless cancelled.", days(s.cfg.UnbindCoolingOff)))

	s.logger.Info("unbind requested", slog.String("spaceID", spaceID), slog.String("userID", userID))
	return req, nil
}

// CancelUnbind cancels the pending unbind request of the space.
func (s *SpaceService) CancelUnbind(ctx context.Context, userID, spaceID string) error {
	if _, err := s.requireMemberOf(ctx, userID, spaceID); err != nil {
		return err
	}

	req, err := s.store.GetUnbindRequestBySpaceID(ctx, spaceID)
	if err != nil {
		return fmt.Errorf("service/space: getting unbind request of %s: %w", spaceID, err)
	}
	if req == nil || !req.Status.CanTransitionTo(model.UnbindCancelled) {
		return apperror.NotFound("unbind request for space", spaceID)
	}
	if err := s.store.UpdateUnbindRequestStatus(ctx, req.ID, model.UnbindCancelled); err != nil {
		return fmt.Errorf("service/space: cancelling unbind request %s: %w", req.ID, err)
	}

	s.notifyPartners(ctx, spaceID, userID, "Unbind cancelled", "The unbind request was cancelled. Your space stays as it is.")
	return nil
}

// UnbindStatus returns the pending unbind request, or nil.
func (s *SpaceService) UnbindStatus(ctx context.Context, userID, spaceID string) (*model.UnbindRequest, error) {
	if _, err := s.requireMemberOf(ctx, userID, spaceID); err != nil {
		return nil, err
	}
	req, err := s.store.GetUnbindRequestBySpaceID(ctx, spaceID)
	if err != nil {
		return nil, fmt.Errorf("service/space: getting unbind request of %s: %w", spaceID, err)
	}
	return req, nil
}

// FinalizeExpiredUnbinds dissolves every space whose unbind request has
// outlived its cooling-off period and marks the request completed. The
// completed request is kept as the record of the dissolution. Returns how
// many spaces were dissolved. A failure on one space does not stop the
// rest; the first such failure is returned once all were tried.
func (s *SpaceService) FinalizeExpiredUnbinds(ctx context.Context) (int, error) {
	expired, err := s.store.ListExpiredUnbindRequests(ctx)
	if err != nil {
		return 0, fmt.Errorf("service/space: listing expired unbind requests: %w", err)
	}

	var (
		done     int
		firstErr error
	)
	fail := func(err error) {
		if firstErr == nil {
			firstErr = err
		}
	}
	for _, req := range expired {
		if err := s.deleteContent(ctx, req.SpaceID); err != nil {
			s.logger.Error("unbind finalization failed",
				slog.String("spaceID", req.SpaceID),
				slog.String("error", err.Error()),
			)
			fail(err)
			continue
		}
		if err := s.store.UpdateUnbindRequestStatus(ctx, req.ID, model.UnbindCompleted); err != nil {
			s.logger.Error("marking unbind request completed failed",
				slog.String("requestID", req.ID),
				slog.String("error", err.Error()),
			)
			fail(fmt.Errorf("service/space: completing unbind request %s: %w", req.ID, err))
			continue
		}
		s.logger.Info("space dissolved", slog.String("spaceID", req.SpaceID))
		done++
	}
	return done, firstErr
}

func (s *SpaceService) notifyPartners(ctx context.Context, spaceID, userID, title, message string) {
	members, err := s.store.ListSpaceMembers(ctx, spaceID)
	if err != nil {
		s.logger.Warn("listing members for notification", slog.String("error", err.Error()))
		return
	}
	for _, partner := range partnersOf(members, userID) {
		s.notifier.notifyQuietly(ctx, partner, model.NotificationUnbind, title, message, "/settings")
	}
}

func days(d time.Duration) int {
	return int(d.Round(24*time.Hour) / (24 * time.Hour))
}
