package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/sakif/sanctuary/internal/apperror"
	"github.com/sakif/sanctuary/internal/model"
	"github.com/sakif/sanctuary/internal/repository"
)

const MaxCommentLength = 1000

type commentStore interface {
	repository.UserStore
	repository.MemberStore
	repository.MemoryStore
	repository.CommentStore
}

// CommentService runs the comment threads under memories. Threads are one
// level deep: a reply to a reply is attached to the top-level comment.
type CommentService struct {
	store    commentStore
	notifier *NotificationService
	logger   *slog.Logger
	opts     options
}

func NewCommentService(store commentStore, notifier *NotificationService, logger *slog.Logger, opts ...Option) *CommentService {
	return &CommentService{store: store, notifier: notifier, logger: logger, opts: buildOptions(opts)}
}

// Author is the public part of a commenter's profile.
type Author struct {
	ID       string  `json:"id"`
	Nickname string  `json:"nickname"`
	Avatar   *string `json:"avatar"`
}

// CommentView is a comment with its author and, for top-level comments,
// its replies.
type CommentView struct {
	model.Comment
	User    Author        `json:"user"`
	Replies []CommentView `json:"replies,omitempty"`
}

// Add posts a comment on a memory. parentID, when non-empty, must name a
// comment on the same memory.
func (s *CommentService) Add(ctx context.Context, userID, memoryID, content, parentID string) (*CommentView, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperror.ValidationFailed("content", "content is required")
	}
	if utf8.RuneCountInString(content) > MaxCommentLength {
		return nil, apperror.ValidationFailed("content",
			fmt.Sprintf("comment must be %d characters or fewer", MaxCommentLength))
	}

	mem, err := accessibleMemory(ctx, s.store, userID, memoryID)
	if err != nil {
		return nil, err
	}

	var parent *model.Comment
	if parentID != "" {
		parent, err = s.store.GetCommentByID(ctx, parentID)
		if err != nil {
			return nil, fmt.Errorf("service/comment: getting parent %s: %w", parentID, err)
		}
		if parent == nil || parent.MemoryID != memoryID {
			return nil, apperror.ValidationFailed("parentId", "parent comment not found on this memory")
		}
		if parent.ParentID != nil {
			top, err := s.store.GetCommentByID(ctx, *parent.ParentID)
			if err != nil {
				return nil, fmt.Errorf("service/comment: getting parent %s: %w", *parent.ParentID, err)
			}
			if top != nil {
				parent = top
			}
		}
	}

	c := &model.Comment{
		ID:        newID(),
		MemoryID:  memoryID,
		UserID:    userID,
		Content:   content,
		CreatedAt: model.FormatTime(s.opts.now()),
	}
	if parent != nil {
		c.ParentID = &parent.ID
	}
	created, err := s.store.CreateComment(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("service/comment: creating comment: %w", err)
	}

	author := s.author(ctx, userID)
	s.notifyThread(ctx, author, mem, parent, created)
	return &CommentView{Comment: *created, User: author}, nil
}

// notifyThread tells the parent's author about a reply and the memory's
// author about any new comment. Nobody is told about their own words.
func (s *CommentService) notifyThread(ctx context.Context, author Author, mem *model.Memory, parent, c *model.Comment) {
	url := "/memory/" + mem.ID
	told := map[string]bool{author.ID: true}

	if parent != nil && !told[parent.UserID] {
		s.notifier.notifyQuietly(ctx, parent.UserID, model.NotificationReply,
			author.Nickname+" replied to your comment", preview(c.Content), url)
		told[parent.UserID] = true
	}
	if !told[mem.CreatedBy] {
		s.notifier.notifyQuietly(ctx, mem.CreatedBy, model.NotificationComment,
			author.Nickname+" commented on your memory", preview(c.Content), url)
	}
}

func (s *CommentService) author(ctx context.Context, userID string) Author {
	u, err := s.store.GetUserByID(ctx, userID)
	if err != nil || u == nil {
		return Author{ID: userID, Nickname: "Unknown"}
	}
	return Author{ID: u.ID, Nickname: u.Nickname, Avatar: u.Avatar}
}

// List returns the thread under a memory: top-level comments oldest first,
// each with its replies oldest first.
func (s *CommentService) List(ctx context.Context, userID, memoryID string) ([]CommentView, error) {
	if _, err := accessibleMemory(ctx, s.store, userID, memoryID); err != nil {
		return nil, err
	}
	comments, err := s.store.ListCommentsByMemoryID(ctx, memoryID)
	if err != nil {
		return nil, fmt.Errorf("service/comment: listing for %s: %w", memoryID, err)
	}

	ids := make([]string, 0, len(comments))
	seen := make(map[string]bool)
	for _, c := range comments {
		if !seen[c.UserID] {
			seen[c.UserID] = true
			ids = append(ids, c.UserID)
		}
	}
	users, err := s.store.GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("service/comment: loading authors: %w", err)
	}
	authors := make(map[string]Author, len(users))
	for _, u := range users {
		authors[u.ID] = Author{ID: u.ID, Nickname: u.Nickname, Avatar: u.Avatar}
	}
	authorOf := func(id string) Author {
		if a, ok := authors[id]; ok {
			return a
		}
		return Author{ID: id, Nickname: "Unknown"}
	}

	tree := make([]CommentView, 0, len(comments))
	index := make(map[string]int)
	for _, c := range comments {
		if c.ParentID == nil {
			index[c.ID] = len(tree)
			tree = append(tree, CommentView{Comment: c, User: authorOf(c.UserID)})
		}
	}
	for _, c := range comments {
		if c.ParentID == nil {
			continue
		}
		i, ok := index[*c.ParentID]
		if !ok {
			continue
		}
		tree[i].Replies = append(tree[i].Replies, CommentView{Comment: c, User: authorOf(c.UserID)})
	}
	return tree, nil
}

// Count returns how many comments, replies included, sit under a memory.
func (s *CommentService) Count(ctx context.Context, userID, memoryID string) (int, error) {
	if _, err := accessibleMemory(ctx, s.store, userID, memoryID); err != nil {
		return 0, err
	}
	n, err := s.store.CountCommentsByMemoryID(ctx, memoryID)
	if err != nil {
		return 0, fmt.Errorf("service/comment: counting for %s: %w", memoryID, err)
	}
	return n, nil
}

// Delete removes the caller's own comment together with its replies.
func (s *CommentService) Delete(ctx context.Context, userID, commentID string) error {
	c, err := s.store.GetCommentByID(ctx, commentID)
	if err != nil {
		return fmt.Errorf("service/comment: getting %s: %w", commentID, err)
	}
	if c == nil {
		return apperror.NotFound("comment", commentID)
	}
	if _, err := accessibleMemory(ctx, s.store, userID, c.MemoryID); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return apperror.NotFound("comment", commentID)
		}
		return err
	}
	if c.UserID != userID {
		return apperror.Forbidden("you can only delete your own comments")
	}
	if err := s.store.DeleteComment(ctx, commentID); err != nil {
		return fmt.Errorf("service/comment: deleting %s: %w", commentID, err)
	}
	return nil
}
