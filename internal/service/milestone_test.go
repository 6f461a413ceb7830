package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/sanctuary/internal/apperror"
	"github.com/sakif/sanctuary/internal/model"
)

func TestCreateMilestone(t *testing.T) {
	e := newEnv(t)
	a, b, sp := e.couple(t)

	ms, err := e.Milestones.Create(context.Background(), a.ID, MilestoneInput{
		Title: "  First date ",
		Date:  "2020-02-14",
		Icon:  model.StringPtr("🌹"),
	})
	require.NoError(t, err)
	assert.Equal(t, sp.ID, ms.SpaceID)
	assert.Equal(t, "First date", ms.Title)
	assert.Equal(t, "custom", ms.Type)

	notes := e.notificationsOf(t, b.ID, model.NotificationMilestone)
	require.Len(t, notes, 1)
	assert.Equal(t, "New milestone: First date", notes[0].Title)
	assert.Equal(t, "/milestone/"+ms.ID, *notes[0].ActionURL)
}

func TestCreateMilestone_Validation(t *testing.T) {
	e := newEnv(t)
	a, _, _ := e.couple(t)

	tests := []struct {
		name string
		in   MilestoneInput
	}{
		{"no title", MilestoneInput{Date: "2020-01-01"}},
		{"long title", MilestoneInput{Title: strings.Repeat("t", MaxMilestoneTitleLength+1), Date: "2020-01-01"}},
		{"bad date", MilestoneInput{Title: "x", Date: "soon"}},
		{"too many photos", MilestoneInput{Title: "x", Date: "2020-01-01", Photos: make([]string, MaxPhotos+1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Milestones.Create(context.Background(), a.ID, tt.in)
			assert.ErrorIs(t, err, apperror.ErrValidation)
		})
	}
}

func TestListMilestones_ByDate(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a, b, _ := e.couple(t)

	for _, d := range []string{"2021-05-01", "2023-01-01", "2019-12-31"} {
		_, err := e.Milestones.Create(ctx, a.ID, MilestoneInput{Title: d, Date: d})
		require.NoError(t, err)
	}

	list, err := e.Milestones.List(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "2023-01-01", list[0].Date)
	assert.Equal(t, "2019-12-31", list[2].Date)

	loner := e.signUp(t, "loner@example.com")
	list, err = e.Milestones.List(ctx, loner.ID)
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}

func TestUpdateDeleteMilestone(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a, b, _ := e.couple(t)
	outsider := e.signUp(t, "outsider@example.com")

	ms, err := e.Milestones.Create(ctx, a.ID, MilestoneInput{Title: "Engaged", Date: "2023-08-08", Type: "anniversary"})
	require.NoError(t, err)

	got, err := e.Milestones.Update(ctx, b.ID, ms.ID, model.MilestoneUpdate{
		Title:       model.Some(" Engaged! "),
		Description: model.Some(model.StringPtr("on the beach")),
	})
	require.NoError(t, err)
	assert.Equal(t, "Engaged!", got.Title)
	assert.Equal(t, "anniversary", got.Type)
	assert.Equal(t, "on the beach", *got.Description)

	_, err = e.Milestones.Update(ctx, a.ID, ms.ID, model.MilestoneUpdate{Date: model.Some("nope")})
	assert.ErrorIs(t, err, apperror.ErrValidation)
	_, err = e.Milestones.Update(ctx, a.ID, ms.ID, model.MilestoneUpdate{Type: model.Some(" ")})
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = e.Milestones.Get(ctx, outsider.ID, ms.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	assert.ErrorIs(t, e.Milestones.Delete(ctx, outsider.ID, ms.ID), apperror.ErrNotFound)

	require.NoError(t, e.Milestones.Delete(ctx, a.ID, ms.ID))
	_, err = e.Milestones.Get(ctx, a.ID, ms.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}
