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

// =========================================================================
// REACTIONS
// =========================================================================

func TestToggleReaction(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a, b, _ := e.couple(t)
	_, err := e.Auth.UpdateProfile(ctx, b.ID, ProfileUpdate{Nickname: model.Some("Sam")})
	require.NoError(t, err)
	mem, err := e.Memories.Create(ctx, a.ID, MemoryInput{Content: "sunset"})
	require.NoError(t, err)

	res, err := e.Reactions.Toggle(ctx, b.ID, mem.ID, "")
	require.NoError(t, err)
	assert.Equal(t, ReactionAdded, res.Action)
	require.NotNil(t, res.Reaction)
	assert.Equal(t, "love", res.Reaction.Type)

	notes := e.notificationsOf(t, a.ID, model.NotificationReaction)
	require.Len(t, notes, 1)
	assert.Equal(t, "Sam loved your memory ❤️", notes[0].Title)
	assert.Equal(t, "sunset", notes[0].Message)

	mine, err := e.Reactions.Mine(ctx, b.ID, mem.ID)
	require.NoError(t, err)
	require.NotNil(t, mine)

	list, err := e.Reactions.List(ctx, a.ID, mem.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	res, err = e.Reactions.Toggle(ctx, b.ID, mem.ID, "love")
	require.NoError(t, err)
	assert.Equal(t, ReactionRemoved, res.Action)
	assert.Nil(t, res.Reaction)

	mine, err = e.Reactions.Mine(ctx, b.ID, mem.ID)
	require.NoError(t, err)
	assert.Nil(t, mine)
}

func TestToggleReaction_OwnMemoryBlocked(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a, _, _ := e.couple(t)
	mem, err := e.Memories.Create(ctx, a.ID, MemoryInput{Content: "mine"})
	require.NoError(t, err)

	res, err := e.Reactions.Toggle(ctx, a.ID, mem.ID, "")
	require.NoError(t, err)
	assert.Equal(t, ReactionBlocked, res.Action)

	list, err := e.Reactions.List(ctx, a.ID, mem.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestToggleReaction_Outsider(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a, _, _ := e.couple(t)
	outsider := e.signUp(t, "outsider@example.com")
	mem, err := e.Memories.Create(ctx, a.ID, MemoryInput{Content: "ours"})
	require.NoError(t, err)

	_, err = e.Reactions.Toggle(ctx, outsider.ID, mem.ID, "")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	_, err = e.Reactions.List(ctx, outsider.ID, mem.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

// =========================================================================
// COMMENTS
// =========================================================================

func TestComments_Thread(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a, b, _ := e.couple(t)
	_, err := e.Auth.UpdateProfile(ctx, a.ID, ProfileUpdate{Nickname: model.Some("Alex")})
	require.NoError(t, err)
	_, err = e.Auth.UpdateProfile(ctx, b.ID, ProfileUpdate{Nickname: model.Some("Sam")})
	require.NoError(t, err)
	mem, err := e.Memories.Create(ctx, a.ID, MemoryInput{Content: "road trip"})
	require.NoError(t, err)

	top, err := e.Comments.Add(ctx, b.ID, mem.ID, " so fun ", "")
	require.NoError(t, err)
	assert.Equal(t, "so fun", top.Content)
	assert.Equal(t, "Sam", top.User.Nickname)
	assert.Nil(t, top.ParentID)

	e.clock.Advance(time.Second)
	reply, err := e.Comments.Add(ctx, a.ID, mem.ID, "right?", top.ID)
	require.NoError(t, err)
	require.NotNil(t, reply.ParentID)
	assert.Equal(t, top.ID, *reply.ParentID)

	// A reply to a reply hangs off the top-level comment.
	e.clock.Advance(time.Second)
	nested, err := e.Comments.Add(ctx, b.ID, mem.ID, "again!", reply.ID)
	require.NoError(t, err)
	assert.Equal(t, top.ID, *nested.ParentID)

	tree, err := e.Comments.List(ctx, a.ID, mem.ID)
	require.NoError(t, err)
	require.Len(t, tree, 1)
	assert.Equal(t, top.ID, tree[0].ID)
	require.Len(t, tree[0].Replies, 2)
	assert.Equal(t, "right?", tree[0].Replies[0].Content)
	assert.Equal(t, "Alex", tree[0].Replies[0].User.Nickname)
	assert.Equal(t, "again!", tree[0].Replies[1].Content)

	n, err := e.Comments.Count(ctx, b.ID, mem.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	// Alex (memory author) hears about Sam's comments; Sam hears about the
	// reply to their comment. Nobody hears about their own.
	assert.Len(t, e.notificationsOf(t, a.ID, model.NotificationComment), 2)
	assert.Len(t, e.notificationsOf(t, a.ID, model.NotificationReply), 0)
	replies := e.notificationsOf(t, b.ID, model.NotificationReply)
	require.Len(t, replies, 1)
	assert.Equal(t, "Alex replied to your comment", replies[0].Title)
}

func TestComments_Validation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a, b, _ := e.couple(t)
	mem, err := e.Memories.Create(ctx, a.ID, MemoryInput{Content: "one"})
	require.NoError(t, err)
	other, err := e.Memories.Create(ctx, a.ID, MemoryInput{Content: "two"})
	require.NoError(t, err)
	elsewhere, err := e.Comments.Add(ctx, b.ID, other.ID, "hi", "")
	require.NoError(t, err)

	_, err = e.Comments.Add(ctx, b.ID, mem.ID, "  ", "")
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = e.Comments.Add(ctx, b.ID, mem.ID, "reply", elsewhere.ID)
	assert.ErrorIs(t, err, apperror.ErrValidation, "parent on another memory")

	_, err = e.Comments.Add(ctx, b.ID, mem.ID, "reply", "missing")
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestComments_Delete(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a, b, _ := e.couple(t)
	outsider := e.signUp(t, "outsider@example.com")
	mem, err := e.Memories.Create(ctx, a.ID, MemoryInput{Content: "one"})
	require.NoError(t, err)

	top, err := e.Comments.Add(ctx, b.ID, mem.ID, "top", "")
	require.NoError(t, err)
	_, err = e.Comments.Add(ctx, a.ID, mem.ID, "reply", top.ID)
	require.NoError(t, err)

	assert.ErrorIs(t, e.Comments.Delete(ctx, a.ID, top.ID), apperror.ErrForbidden)
	assert.ErrorIs(t, e.Comments.Delete(ctx, outsider.ID, top.ID), apperror.ErrNotFound)
	assert.ErrorIs(t, e.Comments.Delete(ctx, b.ID, "missing"), apperror.ErrNotFound)

	require.NoError(t, e.Comments.Delete(ctx, b.ID, top.ID))
	n, err := e.Comments.Count(ctx, a.ID, mem.ID)
	require.NoError(t, err)
	assert.Zero(t, n, "replies go with their parent")
}
