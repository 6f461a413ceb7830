package firestore

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"

	"github.com/sakif/sanctuary/internal/model"
	"github.com/sakif/sanctuary/internal/repository"
)

// ===== MEMORIES =====

type memoryDoc struct {
	ID        string  `firestore:"id"`
	SpaceID   string  `firestore:"space_id"`
	Content   string  `firestore:"content"`
	Mood      *string `firestore:"mood"`
	Photos    *string `firestore:"photos"`
	Location  *string `firestore:"location"`
	VoiceNote *string `firestore:"voice_note"`
	Stickers  *string `firestore:"stickers"`
	CreatedAt any     `firestore:"created_at"`
	CreatedBy string  `firestore:"created_by"`
	WordCount *int64  `firestore:"word_count"`
}

func (d *memoryDoc) model() (*model.Memory, error) {
	m := &model.Memory{
		ID:        d.ID,
		SpaceID:   d.SpaceID,
		Content:   d.Content,
		Mood:      d.Mood,
		VoiceNote: d.VoiceNote,
		CreatedAt: normalizeTime(d.CreatedAt),
		CreatedBy: d.CreatedBy,
	}
	if d.WordCount != nil {
		n := int(*d.WordCount)
		m.WordCount = &n
	}

	var err error
	if m.Photos, err = repository.DecodeStrings(d.Photos); err != nil {
		return nil, fmt.Errorf("memory %s photos: %w", d.ID, err)
	}
	if m.Stickers, err = repository.DecodeStrings(d.Stickers); err != nil {
		return nil, fmt.Errorf("memory %s stickers: %w", d.ID, err)
	}
	if m.Location, err = repository.DecodeLocation(d.Location); err != nil {
		return nil, fmt.Errorf("memory %s location: %w", d.ID, err)
	}
	return m, nil
}

func (s *Store) CreateMemory(ctx context.Context, m *model.Memory) (*model.Memory, error) {
	photos, err := repository.EncodeStrings(m.Photos)
	if err != nil {
		return nil, fmt.Errorf("firestore: creating memory: %w", err)
	}
	stickers, err := repository.EncodeStrings(m.Stickers)
	if err != nil {
		return nil, fmt.Errorf("firestore: creating memory: %w", err)
	}
	loc, err := repository.EncodeLocation(m.Location)
	if err != nil {
		return nil, fmt.Errorf("firestore: creating memory: %w", err)
	}

	doc := memoryDoc{
		ID:        m.ID,
		SpaceID:   m.SpaceID,
		Content:   m.Content,
		Mood:      m.Mood,
		Photos:    photos,
		Location:  loc,
		VoiceNote: m.VoiceNote,
		Stickers:  stickers,
		CreatedAt: s.stamp(m.CreatedAt),
		CreatedBy: m.CreatedBy,
	}
	if m.WordCount != nil {
		n := int64(*m.WordCount)
		doc.WordCount = &n
	}

	if _, err := s.col(colMemories).Doc(m.ID).Set(ctx, doc); err != nil {
		return nil, fmt.Errorf("firestore: creating memory: %w", err)
	}
	return s.GetMemoryByID(ctx, m.ID)
}

func (s *Store) GetMemoryByID(ctx context.Context, id string) (*model.Memory, error) {
	d, err := getDoc[memoryDoc](ctx, s.col(colMemories).Doc(id))
	if err != nil {
		return nil, fmt.Errorf("firestore: getting memory %s: %w", id, err)
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

// ListMemoriesBySpaceID emulates LIMIT/OFFSET: Firestore has no cheap
// offset, so the first limit+offset documents are read and the first offset
// of them dropped. Cost grows with the page number.
func (s *Store) ListMemoriesBySpaceID(ctx context.Context, spaceID string, limit, offset int) ([]model.Memory, error) {
	memories := []model.Memory{}
	if limit <= 0 {
		return memories, nil
	}
	if offset < 0 {
		offset = 0
	}

	docs, err := queryDocs[memoryDoc](ctx, s.col(colMemories).
		Where("space_id", "==", spaceID).
		OrderBy("created_at", firestore.Desc).
		Limit(limit+offset))
	if err != nil {
		return nil, fmt.Errorf("firestore: listing memories of space %s: %w", spaceID, err)
	}

	for i := offset; i < len(docs); i++ {
		m, err := docs[i].model()
		if err != nil {
			return nil, fmt.Errorf("firestore: %w", err)
		}
		memories = append(memories, *m)
	}
	return memories, nil
}

func (s *Store) CountMemoriesBySpaceID(ctx context.Context, spaceID string) (int, error) {
	n, err := count(ctx, s.col(colMemories).Where("space_id", "==", spaceID))
	if err != nil {
		return 0, fmt.Errorf("firestore: counting memories of space %s: %w", spaceID, err)
	}
	return n, nil
}

func (s *Store) UpdateMemory(ctx context.Context, id string, upd model.MemoryUpdate) (*model.Memory, error) {
	var u updates
	add(&u, "content", upd.Content)
	add(&u, "mood", upd.Mood)
	add(&u, "voice_note", upd.VoiceNote)
	add(&u, "word_count", upd.WordCount)
	err := addEncoded(&u, "photos", upd.Photos.Set, func() (*string, error) {
		return repository.EncodeStrings(upd.Photos.Value)
	})
	if err == nil {
		err = addEncoded(&u, "stickers", upd.Stickers.Set, func() (*string, error) {
			return repository.EncodeStrings(upd.Stickers.Value)
		})
	}
	if err == nil {
		err = addEncoded(&u, "location", upd.Location.Set, func() (*string, error) {
			return repository.EncodeLocation(upd.Location.Value)
		})
	}
	if err != nil {
		return nil, fmt.Errorf("firestore: updating memory %s: %w", id, err)
	}

	found, err := updateDoc(ctx, s.col(colMemories).Doc(id), u)
	if err != nil {
		return nil, fmt.Errorf("firestore: updating memory %s: %w", id, err)
	}
	if !found {
		return nil, nil
	}
	return s.GetMemoryByID(ctx, id)
}

func (s *Store) DeleteMemory(ctx context.Context, id string) error {
	if _, err := s.col(colMemories).Doc(id).Delete(ctx); err != nil {
		return fmt.Errorf("firestore: deleting memory %s: %w", id, err)
	}
	return nil
}

func (s *Store) DeleteMemoriesBySpaceID(ctx context.Context, spaceID string) error {
	if err := s.deleteWhere(ctx, s.col(colMemories).Where("space_id", "==", spaceID)); err != nil {
		return fmt.Errorf("firestore: deleting memories of space %s: %w", spaceID, err)
	}
	return nil
}

// ===== REACTIONS =====

type reactionDoc struct {
	ID        string `firestore:"id"`
	MemoryID  string `firestore:"memory_id"`
	UserID    string `firestore:"user_id"`
	Type      string `firestore:"type"`
	CreatedAt any    `firestore:"created_at"`
}

func (d *reactionDoc) model() *model.Reaction {
	return &model.Reaction{
		ID:        d.ID,
		MemoryID:  d.MemoryID,
		UserID:    d.UserID,
		Type:      d.Type,
		CreatedAt: normalizeTime(d.CreatedAt),
	}
}

func (s *Store) CreateReaction(ctx context.Context, r *model.Reaction) (*model.Reaction, error) {
	doc := reactionDoc{
		ID:        r.ID,
		MemoryID:  r.MemoryID,
		UserID:    r.UserID,
		Type:      r.Type,
		CreatedAt: s.stamp(r.CreatedAt),
	}
	ref := s.col(colReactions).Doc(r.ID)
	if _, err := ref.Set(ctx, doc); err != nil {
		return nil, fmt.Errorf("firestore: creating reaction: %w", err)
	}
	d, err := getDoc[reactionDoc](ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("firestore: reading reaction %s: %w", r.ID, err)
	}
	if d == nil {
		return nil, nil
	}
	return d.model(), nil
}

func (s *Store) GetReactionByMemoryAndUser(ctx context.Context, memoryID, userID string) (*model.Reaction, error) {
	d, err := firstDoc[reactionDoc](ctx, s.col(colReactions).
		Where("memory_id", "==", memoryID).
		Where("user_id", "==", userID).
		OrderBy("created_at", firestore.Desc))
	if err != nil {
		return nil, fmt.Errorf("firestore: getting reaction: %w", err)
	}
	if d == nil {
		return nil, nil
	}
	return d.model(), nil
}

func (s *Store) ListReactionsByMemoryID(ctx context.Context, memoryID string) ([]model.Reaction, error) {
	docs, err := queryDocs[reactionDoc](ctx, s.col(colReactions).
		Where("memory_id", "==", memoryID).
		OrderBy("created_at", firestore.Desc))
	if err != nil {
		return nil, fmt.Errorf("firestore: listing reactions of memory %s: %w", memoryID, err)
	}
	reactions := make([]model.Reaction, 0, len(docs))
	for i := range docs {
		reactions = append(reactions, *docs[i].model())
	}
	return reactions, nil
}

func (s *Store) DeleteReaction(ctx context.Context, id string) error {
	if _, err := s.col(colReactions).Doc(id).Delete(ctx); err != nil {
		return fmt.Errorf("firestore: deleting reaction %s: %w", id, err)
	}
	return nil
}

func (s *Store) DeleteReactionsByMemoryID(ctx context.Context, memoryID string) error {
	if err := s.deleteWhere(ctx, s.col(colReactions).Where("memory_id", "==", memoryID)); err != nil {
		return fmt.Errorf("firestore: deleting reactions of memory %s: %w", memoryID, err)
	}
	return nil
}

// ===== COMMENTS =====

type commentDoc struct {
	ID        string  `firestore:"id"`
	MemoryID  string  `firestore:"memory_id"`
	UserID    string  `firestore:"user_id"`
	ParentID  *string `firestore:"parent_id"`
	Content   string  `firestore:"content"`
	CreatedAt any     `firestore:"created_at"`
}

func (d *commentDoc) model() *model.Comment {
	return &model.Comment{
		ID:        d.ID,
		MemoryID:  d.MemoryID,
		UserID:    d.UserID,
		ParentID:  d.ParentID,
		Content:   d.Content,
		CreatedAt: normalizeTime(d.CreatedAt),
	}
}

func (s *Store) CreateComment(ctx context.Context, c *model.Comment) (*model.Comment, error) {
	doc := commentDoc{
		ID:        c.ID,
		MemoryID:  c.MemoryID,
		UserID:    c.UserID,
		ParentID:  c.ParentID,
		Content:   c.Content,
		CreatedAt: s.stamp(c.CreatedAt),
	}
	if _, err := s.col(colComments).Doc(c.ID).Set(ctx, doc); err != nil {
		return nil, fmt.Errorf("firestore: creating comment: %w", err)
	}
	return s.GetCommentByID(ctx, c.ID)
}

func (s *Store) GetCommentByID(ctx context.Context, id string) (*model.Comment, error) {
	d, err := getDoc[commentDoc](ctx, s.col(colComments).Doc(id))
	if err != nil {
		return nil, fmt.Errorf("firestore: getting comment %s: %w", id, err)
	}
	if d == nil {
		return nil, nil
	}
	return d.model(), nil
}

func (s *Store) ListCommentsByMemoryID(ctx context.Context, memoryID string) ([]model.Comment, error) {
	docs, err := queryDocs[commentDoc](ctx, s.col(colComments).
		Where("memory_id", "==", memoryID).
		OrderBy("created_at", firestore.Asc))
	if err != nil {
		return nil, fmt.Errorf("firestore: listing comments of memory %s: %w", memoryID, err)
	}
	comments := make([]model.Comment, 0, len(docs))
	for i := range docs {
		comments = append(comments, *docs[i].model())
	}
	return comments, nil
}

func (s *Store) CountCommentsByMemoryID(ctx context.Context, memoryID string) (int, error) {
	n, err := count(ctx, s.col(colComments).Where("memory_id", "==", memoryID))
	if err != nil {
		return 0, fmt.Errorf("firestore: counting comments of memory %s: %w", memoryID, err)
	}
	return n, nil
}

// DeleteComment removes the comment and its direct replies in one
// transaction.
func (s *Store) DeleteComment(ctx context.Context, id string) error {
	replies, err := queryRefs(ctx, s.col(colComments).Where("parent_id", "==", id))
	if err != nil {
		return fmt.Errorf("firestore: listing replies of comment %s: %w", id, err)
	}
	refs := append([]*firestore.DocumentRef{s.col(colComments).Doc(id)}, replies...)
	if err := s.deleteRefs(ctx, refs); err != nil {
		return fmt.Errorf("firestore: deleting comment %s: %w", id, err)
	}
	return nil
}

func (s *Store) DeleteCommentsByMemoryID(ctx context.Context, memoryID string) error {
	if err := s.deleteWhere(ctx, s.col(colComments).Where("memory_id", "==", memoryID)); err != nil {
		return fmt.Errorf("firestore: deleting comments of memory %s: %w", memoryID, err)
	}
	return nil
}
