package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/sakif/sanctuary/internal/apperror"
	"github.com/sakif/sanctuary/internal/model"
	"github.com/sakif/sanctuary/internal/repository"
)

const (
	MaxMemoryLength = 10000
	MaxPhotos       = 9
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type memoryStore interface {
	repository.UserStore
	repository.MemberStore
	repository.MemoryStore
	repository.ReactionStore
	repository.CommentStore
}

// MemoryService writes and reads journal entries of the caller's space.
type MemoryService struct {
	store    memoryStore
	notifier *NotificationService
	logger   *slog.Logger
	opts     options
}

func NewMemoryService(store memoryStore, notifier *NotificationService, logger *slog.Logger, opts ...Option) *MemoryService {
	return &MemoryService{store: store, notifier: notifier, logger: logger, opts: buildOptions(opts)}
}

// MemoryInput is the body of a new memory.
type MemoryInput struct {
	Content   string          `json:"content"`
	Mood      *string         `json:"mood"`
	Photos    []string        `json:"photos"`
	Location  *model.Location `json:"location"`
	VoiceNote *string         `json:"voiceNote"`
	Stickers  []string        `json:"stickers"`
}

// MemoryPatch is the body of a memory update.
type MemoryPatch struct {
	Content   model.Opt[string]          `json:"content"`
	Mood      model.Opt[*string]         `json:"mood"`
	Photos    model.Opt[[]string]        `json:"photos"`
	Location  model.Opt[*model.Location] `json:"location"`
	VoiceNote model.Opt[*string]         `json:"voiceNote"`
	Stickers  model.Opt[[]string]        `json:"stickers"`
}

// Page is one page of a paged list.
type Page[T any] struct {
	Data     []T  `json:"data"`
	Total    int  `json:"total"`
	Page     int  `json:"page"`
	PageSize int  `json:"pageSize"`
	HasMore  bool `json:"hasMore"`
}

// WordCount counts whitespace-separated tokens.
func WordCount(s string) int {
	return len(strings.Fields(s))
}

func validateContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", apperror.ValidationFailed("content", "content is required")
	}
	if utf8.RuneCountInString(content) > MaxMemoryLength {
		return "", apperror.ValidationFailed("content",
			fmt.Sprintf("content must be %d characters or fewer", MaxMemoryLength))
	}
	return content, nil
}

func validatePhotos(photos []string) error {
	if len(photos) > MaxPhotos {
		return apperror.ValidationFailed("photos", fmt.Sprintf("at most %d photos are allowed", MaxPhotos))
	}
	return nil
}

func validateLocation(loc *model.Location) error {
	if loc != nil && strings.TrimSpace(loc.Name) == "" {
		return apperror.ValidationFailed("location", "location name is required")
	}
	return nil
}

// Create writes a memory into the caller's space and tells the partner.
func (s *MemoryService) Create(ctx context.Context, userID string, in MemoryInput) (*model.Memory, error) {
	content, err := validateContent(in.Content)
	if err != nil {
		return nil, err
	}
	if err := validatePhotos(in.Photos); err != nil {
		return nil, err
	}
	if err := validateLocation(in.Location); err != nil {
		return nil, err
	}

	m, err := requireMembership(ctx, s.store, userID)
	if err != nil {
		return nil, err
	}

	words := WordCount(content)
	mem, err := s.store.CreateMemory(ctx, &model.Memory{
		ID:        newID(),
		SpaceID:   m.SpaceID,
		Content:   content,
		Mood:      in.Mood,
		Photos:    in.Photos,
		Location:  in.Location,
		VoiceNote: in.VoiceNote,
		Stickers:  in.Stickers,
		CreatedAt: model.FormatTime(s.opts.now()),
		CreatedBy: userID,
		WordCount: &words,
	})
	if err != nil {
		return nil, fmt.Errorf("service/memory: creating memory: %w", err)
	}

	s.notifyPartner(ctx, m.SpaceID, userID, mem)
	return mem, nil
}

func (s *MemoryService) notifyPartner(ctx context.Context, spaceID, userID string, mem *model.Memory) {
	members, err := s.store.ListSpaceMembers(ctx, spaceID)
	if err != nil {
		s.logger.Warn("listing members for notification", slog.String("error", err.Error()))
		return
	}
	partners := partnersOf(members, userID)
	if len(partners) == 0 {
		return
	}

	name := "Your partner"
	if author, err := s.store.GetUserByID(ctx, userID); err == nil && author != nil && author.Nickname != "" {
		name = author.Nickname
	}
	for _, p := range partners {
		s.notifier.notifyQuietly(ctx, p, model.NotificationMemory,
			name+" wrote a new memory", preview(mem.Content), "/memory/"+mem.ID)
	}
}

// List returns one page of the caller's memories, newest first. A caller
// without a space gets an empty page.
func (s *MemoryService) List(ctx context.Context, userID string, page, pageSize int) (*Page[model.Memory], error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	pageSize = min(pageSize, MaxPageSize)

	empty := &Page[model.Memory]{Data: []model.Memory{}, Page: page, PageSize: pageSize}

	m, err := s.store.GetSpaceMemberByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/memory: looking up membership of %s: %w", userID, err)
	}
	if m == nil {
		return empty, nil
	}

	total, err := s.store.CountMemoriesBySpaceID(ctx, m.SpaceID)
	if err != nil {
		return nil, fmt.Errorf("service/memory: counting memories: %w", err)
	}
	// A page whose offset does not fit in an int is past the end.
	if page-1 > math.MaxInt/pageSize {
		empty.Total = total
		return empty, nil
	}

	offset := (page - 1) * pageSize
	data, err := s.store.ListMemoriesBySpaceID(ctx, m.SpaceID, pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("service/memory: listing memories: %w", err)
	}

	return &Page[model.Memory]{
		Data:     data,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
		HasMore:  offset+len(data) < total,
	}, nil
}

// Get returns a memory of the caller's space.
func (s *MemoryService) Get(ctx context.Context, userID, id string) (*model.Memory, error) {
	return accessibleMemory(ctx, s.store, userID, id)
}

// Update patches a memory. Changing the content recomputes the word count.
func (s *MemoryService) Update(ctx context.Context, userID, id string, p MemoryPatch) (*model.Memory, error) {
	if _, err := accessibleMemory(ctx, s.store, userID, id); err != nil {
		return nil, err
	}

	upd := model.MemoryUpdate{
		Mood:      p.Mood,
		Photos:    p.Photos,
		Location:  p.Location,
		VoiceNote: p.VoiceNote,
		Stickers:  p.Stickers,
	}
	if p.Content.Set {
		content, err := validateContent(p.Content.Value)
		if err != nil {
			return nil, err
		}
		upd.Content = model.Some(content)
		upd.WordCount = model.Some(model.IntPtr(WordCount(content)))
	}
	if p.Photos.Set {
		if err := validatePhotos(p.Photos.Value); err != nil {
			return nil, err
		}
	}
	if p.Location.Set {
		if err := validateLocation(p.Location.Value); err != nil {
			return nil, err
		}
	}

	mem, err := s.store.UpdateMemory(ctx, id, upd)
	if err != nil {
		return nil, fmt.Errorf("service/memory: updating %s: %w", id, err)
	}
	if mem == nil {
		return nil, apperror.NotFound("memory", id)
	}
	return mem, nil
}

// Delete removes a memory with its reactions and comments.
func (s *MemoryService) Delete(ctx context.Context, userID, id string) error {
	if _, err := accessibleMemory(ctx, s.store, userID, id); err != nil {
		return err
	}
	if err := s.store.DeleteReactionsByMemoryID(ctx, id); err != nil {
		return fmt.Errorf("service/memory: deleting reactions of %s: %w", id, err)
	}
	if err := s.store.DeleteCommentsByMemoryID(ctx, id); err != nil {
		return fmt.Errorf("service/memory: deleting comments of %s: %w", id, err)
	}
	if err := s.store.DeleteMemory(ctx, id); err != nil {
		return fmt.Errorf("service/memory: deleting %s: %w", id, err)
	}
	return nil
}
