package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/sanctuary/internal/model"
	"github.com/sakif/sanctuary/internal/repository"
)

const defaultReactionType = "love"

// Toggle outcomes.
const (
	ReactionAdded   = "added"
	ReactionRemoved = "removed"
	ReactionBlocked = "blocked"
)

type reactionStore interface {
	repository.UserStore
	repository.MemberStore
	repository.MemoryStore
	repository.ReactionStore
}

// ReactionService lets a partner react to the other partner's memories.
type ReactionService struct {
	store    reactionStore
	notifier *NotificationService
	logger   *slog.Logger
	opts     options
}

func NewReactionService(store reactionStore, notifier *NotificationService, logger *slog.Logger, opts ...Option) *ReactionService {
	return &ReactionService{store: store, notifier: notifier, logger: logger, opts: buildOptions(opts)}
}

// ToggleResult reports what Toggle did.
type ToggleResult struct {
	Action   string          `json:"action"`
	Reaction *model.Reaction `json:"reaction,omitempty"`
}

// Toggle adds the caller's reaction to a memory or removes it when one is
// already there. Reacting to one's own memory does nothing and reports
// "blocked".
func (s *ReactionService) Toggle(ctx context.Context, userID, memoryID, typ string) (*ToggleResult, error) {
	mem, err := accessibleMemory(ctx, s.store, userID, memoryID)
	if err != nil {
		return nil, err
	}
	if mem.CreatedBy == userID {
		return &ToggleResult{Action: ReactionBlocked}, nil
	}

	existing, err := s.store.GetReactionByMemoryAndUser(ctx, memoryID, userID)
	if err != nil {
		return nil, fmt.Errorf("service/reaction: looking up reaction: %w", err)
	}
	if existing != nil {
		if err := s.store.DeleteReaction(ctx, existing.ID); err != nil {
			return nil, fmt.Errorf("service/reaction: deleting %s: %w", existing.ID, err)
		}
		return &ToggleResult{Action: ReactionRemoved}, nil
	}

	typ = strings.TrimSpace(typ)
	if typ == "" {
		typ = defaultReactionType
	}
	r, err := s.store.CreateReaction(ctx, &model.Reaction{
		ID:        newID(),
		MemoryID:  memoryID,
		UserID:    userID,
		Type:      typ,
		CreatedAt: model.FormatTime(s.opts.now()),
	})
	if err != nil {
		return nil, fmt.Errorf("service/reaction: creating reaction: %w", err)
	}

	name := "Your partner"
	if u, err := s.store.GetUserByID(ctx, userID); err == nil && u != nil && u.Nickname != "" {
		name = u.Nickname
	}
	s.notifier.notifyQuietly(ctx, mem.CreatedBy, model.NotificationReaction,
		name+" loved your memory ❤️", preview(mem.Content), "/memory/"+mem.ID)

	return &ToggleResult{Action: ReactionAdded, Reaction: r}, nil
}

// List returns the reactions on a memory, newest first.
func (s *ReactionService) List(ctx context.Context, userID, memoryID string) ([]model.Reaction, error) {
	if _, err := accessibleMemory(ctx, s.store, userID, memoryID); err != nil {
		return nil, err
	}
	list, err := s.store.ListReactionsByMemoryID(ctx, memoryID)
	if err != nil {
		return nil, fmt.Errorf("service/reaction: listing for %s: %w", memoryID, err)
	}
	return list, nil
}

// Mine returns the caller's reaction on a memory, or nil.
func (s *ReactionService) Mine(ctx context.Context, userID, memoryID string) (*model.Reaction, error) {
	if _, err := accessibleMemory(ctx, s.store, userID, memoryID); err != nil {
		return nil, err
	}
	r, err := s.store.GetReactionByMemoryAndUser(ctx, memoryID, userID)
	if err != nil {
		return nil, fmt.Errorf("service/reaction: looking up reaction: %w", err)
	}
	return r, nil
}
