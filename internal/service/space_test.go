package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/sanctuary/internal/apperror"
	"github.com/sakif/sanctuary/internal/logger"
	"github.com/sakif/sanctuary/internal/model"
	"github.com/sakif/sanctuary/internal/repository/sqlite"
)

// =========================================================================
// CREATE / JOIN
// =========================================================================

func TestCreateSpace(t *testing.T) {
	e := newEnv(t)
	a := e.signUp(t, "alex@example.com")

	sp, err := e.Spaces.Create(context.Background(), a.ID, "2020-02-14")
	require.NoError(t, err)

	assert.Regexp(t, `^[A-Z0-9]{6}$`, sp.InviteCode)
	assert.Equal(t, "2020-02-14", sp.AnniversaryDate)
	require.Len(t, sp.Partners, 1)
	assert.Equal(t, a.ID, sp.Partners[0].ID)
}

func TestCreateSpace_Errors(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := e.signUp(t, "alex@example.com")

	_, err := e.Spaces.Create(ctx, a.ID, "someday")
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = e.Spaces.Create(ctx, a.ID, "2020-02-14")
	require.NoError(t, err)
	_, err = e.Spaces.Create(ctx, a.ID, "2020-02-14")
	assert.ErrorIs(t, err, apperror.ErrConflict)
}

func TestJoinSpace(t *testing.T) {
	e := newEnv(t)
	a, b, sp := e.couple(t)

	assert.Len(t, sp.Partners, 2)

	notes := e.notificationsOf(t, a.ID, model.NotificationPartner)
	require.Len(t, notes, 1)
	assert.Equal(t, "Your partner has joined!", notes[0].Title)
	assert.Empty(t, e.notificationsOf(t, b.ID, model.NotificationPartner))
}

func TestJoinSpace_LowercaseCode(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := e.signUp(t, "alex@example.com")
	b := e.signUp(t, "sam@example.com")
	sp, err := e.Spaces.Create(ctx, a.ID, "2020-02-14")
	require.NoError(t, err)

	lower := []rune(sp.InviteCode)
	for i, r := range lower {
		if r >= 'A' && r <= 'Z' {
			lower[i] = r + ('a' - 'A')
		}
	}
	_, err = e.Spaces.Join(ctx, b.ID, " "+string(lower)+" ")
	assert.NoError(t, err)
}

func TestJoinSpace_Errors(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a, _, sp := e.couple(t)
	c := e.signUp(t, "third@example.com")

	_, err := e.Spaces.Join(ctx, c.ID, "")
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = e.Spaces.Join(ctx, c.ID, "NOPE00")
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	_, err = e.Spaces.Join(ctx, c.ID, sp.InviteCode)
	assert.ErrorIs(t, err, apperror.ErrConflict, "space is full")

	_, err = e.Spaces.Join(ctx, a.ID, sp.InviteCode)
	assert.ErrorIs(t, err, apperror.ErrConflict, "already in a space")
}

// =========================================================================
// READS AND UPDATES
// =========================================================================

func TestMineAndGet(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a, _, sp := e.couple(t)
	loner := e.signUp(t, "loner@example.com")

	mine, err := e.Spaces.Mine(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, mine)
	assert.Equal(t, sp.ID, mine.ID)

	none, err := e.Spaces.Mine(ctx, loner.ID)
	require.NoError(t, err)
	assert.Nil(t, none)

	got, err := e.Spaces.Get(ctx, a.ID, sp.ID)
	require.NoError(t, err)
	assert.Len(t, got.Partners, 2)

	_, err = e.Spaces.Get(ctx, loner.ID, sp.ID)
	assert.ErrorIs(t, err, apperror.ErrForbidden)
}

func TestUpdateAnniversary(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a, _, sp := e.couple(t)
	loner := e.signUp(t, "loner@example.com")

	got, err := e.Spaces.UpdateAnniversary(ctx, a.ID, sp.ID, "2019-07-01")
	require.NoError(t, err)
	assert.Equal(t, "2019-07-01", got.AnniversaryDate)
	assert.Equal(t, sp.InviteCode, got.InviteCode)

	_, err = e.Spaces.UpdateAnniversary(ctx, a.ID, sp.ID, "July")
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = e.Spaces.UpdateAnniversary(ctx, loner.ID, sp.ID, "2019-07-01")
	assert.ErrorIs(t, err, apperror.ErrForbidden)
}

func TestPetNames(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a, b, _ := e.couple(t)

	names, err := e.Spaces.PetNames(ctx, a.ID)
	require.NoError(t, err)
	assert.Nil(t, names.MyPetName)
	assert.Nil(t, names.PartnerPetName)

	names, err = e.Spaces.UpdatePetNames(ctx, a.ID, PetNamesUpdate{
		MyPetName:      model.Some(model.StringPtr(" Honey ")),
		PartnerPetName: model.Some(model.StringPtr("Bear")),
	})
	require.NoError(t, err)
	assert.Equal(t, "Honey", *names.MyPetName)
	assert.Equal(t, "Bear", *names.PartnerPetName)

	// Blank clears; unset fields stay.
	names, err = e.Spaces.UpdatePetNames(ctx, a.ID, PetNamesUpdate{MyPetName: model.Some(model.StringPtr("  "))})
	require.NoError(t, err)
	assert.Nil(t, names.MyPetName)
	assert.Equal(t, "Bear", *names.PartnerPetName)

	// Pet names are per member.
	other, err := e.Spaces.PetNames(ctx, b.ID)
	require.NoError(t, err)
	assert.Nil(t, other.PartnerPetName)
}

func TestPetNames_NoSpace(t *testing.T) {
	e := newEnv(t)
	loner := e.signUp(t, "loner@example.com")

	_, err := e.Spaces.PetNames(context.Background(), loner.ID)
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

// =========================================================================
// DISSOLVING
// =========================================================================

// fillSpace gives the couple's space one of everything that hangs off it.
func fillSpace(t *testing.T, e *env, a, b *model.User) *model.Memory {
	t.Helper()
	ctx := context.Background()

	mem, err := e.Memories.Create(ctx, a.ID, MemoryInput{Content: "our first trip"})
	require.NoError(t, err)
	_, err = e.Reactions.Toggle(ctx, b.ID, mem.ID, "")
	require.NoError(t, err)
	_, err = e.Comments.Add(ctx, b.ID, mem.ID, "best day", "")
	require.NoError(t, err)
	_, err = e.Milestones.Create(ctx, a.ID, MilestoneInput{Title: "Moved in", Date: "2021-03-01"})
	require.NoError(t, err)
	return mem
}

func assertSpaceGone(t *testing.T, e *env, spaceID string, mem *model.Memory, users ...*model.User) {
	t.Helper()
	ctx := context.Background()

	sp, err := e.db.GetSpaceByID(ctx, spaceID)
	require.NoError(t, err)
	assert.Nil(t, sp)

	n, err := e.db.CountSpaceMembers(ctx, spaceID)
	require.NoError(t, err)
	assert.Zero(t, n)

	got, err := e.db.GetMemoryByID(ctx, mem.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	reactions, err := e.db.ListReactionsByMemoryID(ctx, mem.ID)
	require.NoError(t, err)
	assert.Empty(t, reactions)

	comments, err := e.db.CountCommentsByMemoryID(ctx, mem.ID)
	require.NoError(t, err)
	assert.Zero(t, comments)

	milestones, err := e.db.ListMilestonesBySpaceID(ctx, spaceID)
	require.NoError(t, err)
	assert.Empty(t, milestones)

	for _, u := range users {
		notes, err := e.db.ListNotificationsByUserID(ctx, u.ID)
		require.NoError(t, err)
		assert.Empty(t, notes)

		// The users themselves survive and can start over.
		m, err := e.db.GetSpaceMemberByUserID(ctx, u.ID)
		require.NoError(t, err)
		assert.Nil(t, m)
	}
}

func TestDeleteSpace_Cascades(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a, b, sp := e.couple(t)
	mem := fillSpace(t, e, a, b)

	require.NoError(t, e.Spaces.Delete(ctx, b.ID, sp.ID))
	assertSpaceGone(t, e, sp.ID, mem, a, b)

	_, err := e.Spaces.Create(ctx, a.ID, "2024-01-01")
	assert.NoError(t, err)
}

func TestDeleteSpace_NotMember(t *testing.T) {
	e := newEnv(t)
	_, _, sp := e.couple(t)
	loner := e.signUp(t, "loner@example.com")

	err := e.Spaces.Delete(context.Background(), loner.ID, sp.ID)
	assert.ErrorIs(t, err, apperror.ErrForbidden)
}

func TestUnbind_RequestCancel(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a, b, sp := e.couple(t)

	req, err := e.Spaces.RequestUnbind(ctx, a.ID, sp.ID)
	require.NoError(t, err)
	assert.Equal(t, model.UnbindPending, req.Status)
	assert.Equal(t, model.FormatTime(e.clock.Now().Add(7*24*time.Hour)), req.ExpiresAt)

	notes := e.notificationsOf(t, b.ID, model.NotificationUnbind)
	require.Len(t, notes, 1)
	assert.Contains(t, notes[0].Message, "7 days")

	_, err = e.Spaces.RequestUnbind(ctx, b.ID, sp.ID)
	assert.ErrorIs(t, err, apperror.ErrConflict)

	status, err := e.Spaces.UnbindStatus(ctx, b.ID, sp.ID)
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.Equal(t, req.ID, status.ID)

	require.NoError(t, e.Spaces.CancelUnbind(ctx, b.ID, sp.ID))

	status, err = e.Spaces.UnbindStatus(ctx, a.ID, sp.ID)
	require.NoError(t, err)
	assert.Nil(t, status)

	err = e.Spaces.CancelUnbind(ctx, a.ID, sp.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	// After cancelling, a new request may be made.
	_, err = e.Spaces.RequestUnbind(ctx, a.ID, sp.ID)
	assert.NoError(t, err)
}

func TestFinalizeExpiredUnbinds(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a, b, sp := e.couple(t)
	mem := fillSpace(t, e, a, b)

	req, err := e.Spaces.RequestUnbind(ctx, a.ID, sp.ID)
	require.NoError(t, err)

	// Still cooling off.
	n, err := e.Spaces.FinalizeExpiredUnbinds(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	e.clock.Advance(7*24*time.Hour + time.Minute)
	n, err = e.Spaces.FinalizeExpiredUnbinds(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assertSpaceGone(t, e, sp.ID, mem, a, b)

	// The request is kept as completed, so it no longer counts as pending.
	pending, err := e.db.GetUnbindRequestBySpaceID(ctx, sp.ID)
	require.NoError(t, err)
	assert.Nil(t, pending)
	expired, err := e.db.ListExpiredUnbindRequests(ctx)
	require.NoError(t, err)
	for _, r := range expired {
		assert.NotEqual(t, req.ID, r.ID)
	}

	// Idempotent.
	n, err = e.Spaces.FinalizeExpiredUnbinds(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

// brokenMilestones fails the milestone delete of one space.
type brokenMilestones struct {
	*sqlite.DB
	spaceID string
}

var errDiskFull = errors.New("disk full")

func (b brokenMilestones) DeleteMilestonesBySpaceID(ctx context.Context, spaceID string) error {
	if spaceID == b.spaceID {
		return errDiskFull
	}
	return b.DB.DeleteMilestonesBySpaceID(ctx, spaceID)
}

func TestFinalizeExpiredUnbinds_ReportsFailureAndContinues(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	a, _, stuck := e.couple(t)
	_, err := e.Spaces.RequestUnbind(ctx, a.ID, stuck.ID)
	require.NoError(t, err)

	e.clock.Advance(time.Minute)
	c := e.signUp(t, "jo@example.com")
	d := e.signUp(t, "kim@example.com")
	sp, err := e.Spaces.Create(ctx, c.ID, "2021-07-04")
	require.NoError(t, err)
	_, err = e.Spaces.Join(ctx, d.ID, sp.InviteCode)
	require.NoError(t, err)
	_, err = e.Spaces.RequestUnbind(ctx, c.ID, sp.ID)
	require.NoError(t, err)

	spaces := NewSpaceService(brokenMilestones{DB: e.db, spaceID: stuck.ID}, e.Notifications,
		SpaceConfig{UnbindCoolingOff: 7 * 24 * time.Hour}, logger.Nop(), WithClock(e.clock.Now))

	e.clock.Advance(8 * 24 * time.Hour)
	n, err := spaces.FinalizeExpiredUnbinds(ctx)
	assert.ErrorIs(t, err, errDiskFull)
	assert.Equal(t, 1, n, "the healthy space is still dissolved")

	gone, err := e.db.GetSpaceByID(ctx, sp.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	kept, err := e.db.GetSpaceByID(ctx, stuck.ID)
	require.NoError(t, err)
	assert.NotNil(t, kept)
	pending, err := e.db.GetUnbindRequestBySpaceID(ctx, stuck.ID)
	require.NoError(t, err)
	assert.NotNil(t, pending, "a failed space stays pending for the next sweep")
}

func TestDays(t *testing.T) {
	assert.Equal(t, 7, days(7*24*time.Hour))
	assert.Equal(t, 1, days(20*time.Hour))
	assert.Equal(t, 0, days(time.Hour))
}
