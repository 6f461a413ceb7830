package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/sanctuary/internal/apperror"
	"github.com/sakif/sanctuary/internal/model"
)

func TestNotify(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := e.signUp(t, "alex@example.com")

	n, err := e.Notifications.Notify(ctx, u.ID, model.NotificationReminder, "Hi", "there", "")
	require.NoError(t, err)
	assert.False(t, n.Read)
	assert.Nil(t, n.ActionURL)
	assert.Equal(t, model.FormatTime(e.clock.Now()), n.CreatedAt)

	e.clock.Advance(time.Second)
	_, err = e.Notifications.Notify(ctx, u.ID, model.NotificationReminder, "Later", "", "/dashboard")
	require.NoError(t, err)

	list, err := e.Notifications.List(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Later", list[0].Title, "newest first")
}

func TestMarkRead(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := e.signUp(t, "alex@example.com")
	other := e.signUp(t, "sam@example.com")

	n, err := e.Notifications.Notify(ctx, u.ID, model.NotificationReminder, "Hi", "", "")
	require.NoError(t, err)

	_, err = e.Notifications.MarkRead(ctx, other.ID, n.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound, "someone else's notification")

	_, err = e.Notifications.MarkRead(ctx, u.ID, "missing")
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	got, err := e.Notifications.MarkRead(ctx, u.ID, n.ID)
	require.NoError(t, err)
	assert.True(t, got.Read)

	got, err = e.Notifications.MarkRead(ctx, u.ID, n.ID)
	require.NoError(t, err)
	assert.True(t, got.Read)
}

func TestMarkAllRead(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := e.signUp(t, "alex@example.com")

	for range 3 {
		_, err := e.Notifications.Notify(ctx, u.ID, model.NotificationReminder, "Hi", "", "")
		require.NoError(t, err)
	}

	n, err := e.Notifications.MarkAllRead(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = e.Notifications.MarkAllRead(ctx, u.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}
