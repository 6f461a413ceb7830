package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sakif/sanctuary/internal/model"
	"github.com/sakif/sanctuary/internal/repository"
)

const memoryColumns = `id, space_id, content, mood, photos, location, voice_note, stickers, created_at, created_by, word_count`

// scanMemory reads one memories row and decodes its JSON columns.
func scanMemory(row rowScanner) (*model.Memory, error) {
	var (
		m                                 model.Memory
		mood, photos, loc, voice, sticker sql.NullString
		wordCount                         sql.NullInt64
	)
	err := row.Scan(&m.ID, &m.SpaceID, &m.Content, &mood, &photos, &loc, &voice, &sticker,
		&m.CreatedAt, &m.CreatedBy, &wordCount)
	if err != nil {
		return nil, err
	}

	m.Mood = stringPtr(mood)
	m.VoiceNote = stringPtr(voice)
	m.WordCount = intPtr(wordCount)

	if m.Photos, err = repository.DecodeStrings(stringPtr(photos)); err != nil {
		return nil, fmt.Errorf("memory %s photos: %w", m.ID, err)
	}
	if m.Stickers, err = repository.DecodeStrings(stringPtr(sticker)); err != nil {
		return nil, fmt.Errorf("memory %s stickers: %w", m.ID, err)
	}
	if m.Location, err = repository.DecodeLocation(stringPtr(loc)); err != nil {
		return nil, fmt.Errorf("memory %s location: %w", m.ID, err)
	}
	return &m, nil
}

// CreateMemory inserts a memory with its list and location columns encoded
// as JSON text, then returns the stored row.
func (db *DB) CreateMemory(ctx context.Context, m *model.Memory) (*model.Memory, error) {
	photos, err := repository.EncodeStrings(m.Photos)
	if err != nil {
		return nil, fmt.Errorf("sqlite: creating memory: %w", err)
	}
	stickers, err := repository.EncodeStrings(m.Stickers)
	if err != nil {
		return nil, fmt.Errorf("sqlite: creating memory: %w", err)
	}
	loc, err := repository.EncodeLocation(m.Location)
	if err != nil {
		return nil, fmt.Errorf("sqlite: creating memory: %w", err)
	}

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO memories (id, space_id, content, mood, photos, location, voice_note, stickers, created_at, created_by, word_count)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID,
		m.SpaceID,
		m.Content,
		nullString(m.Mood),
		nullString(photos),
		nullString(loc),
		nullString(m.VoiceNote),
		nullString(stickers),
		repository.StampIfEmpty(m.CreatedAt, db.now()),
		m.CreatedBy,
		nullInt(m.WordCount),
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: creating memory: %w", err)
	}
	return db.GetMemoryByID(ctx, m.ID)
}

func (db *DB) GetMemoryByID(ctx context.Context, id string) (*model.Memory, error) {
	m, err := scanMemory(db.conn.QueryRowContext(ctx,
		`SELECT `+memoryColumns+` FROM memories WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting memory %s: %w", id, err)
	}
	return m, nil
}

// ListMemoriesBySpaceID returns one page of a space's memories, newest
// first.
//
// LIMIT/OFFSET pagination:
// page N of size S is LIMIT S OFFSET (N-1)*S. The Firestore backend emulates
// the same window client-side, so both return identical pages.
func (db *DB) ListMemoriesBySpaceID(ctx context.Context, spaceID string, limit, offset int) ([]model.Memory, error) {
	memories := []model.Memory{}
	if limit <= 0 {
		return memories, nil
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+memoryColumns+` FROM memories
		 WHERE space_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ? OFFSET ?`,
		spaceID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing memories of space %s: %w", spaceID, err)
	}
	defer rows.Close()

	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning memory row: %w", err)
		}
		memories = append(memories, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating memory rows: %w", err)
	}
	return memories, nil
}

func (db *DB) CountMemoriesBySpaceID(ctx context.Context, spaceID string) (int, error) {
	n, err := db.count(ctx, `SELECT COUNT(*) FROM memories WHERE space_id = ?`, spaceID)
	if err != nil {
		return 0, fmt.Errorf("sqlite: counting memories of space %s: %w", spaceID, err)
	}
	return n, nil
}

func (db *DB) UpdateMemory(ctx context.Context, id string, upd model.MemoryUpdate) (*model.Memory, error) {
	var b setBuilder
	set(&b, "content", upd.Content)
	set(&b, "mood", upd.Mood)
	setEncoded(&b, "photos", upd.Photos.Set, func() (*string, error) {
		return repository.EncodeStrings(upd.Photos.Value)
	})
	setEncoded(&b, "location", upd.Location.Set, func() (*string, error) {
		return repository.EncodeLocation(upd.Location.Value)
	})
	set(&b, "voice_note", upd.VoiceNote)
	setEncoded(&b, "stickers", upd.Stickers.Set, func() (*string, error) {
		return repository.EncodeStrings(upd.Stickers.Value)
	})
	set(&b, "word_count", upd.WordCount)

	if !b.empty() || b.err != nil {
		if err := b.exec(ctx, db.conn, "memories", "id = ?", id); err != nil {
			return nil, fmt.Errorf("sqlite: updating memory %s: %w", id, err)
		}
	}
	return db.GetMemoryByID(ctx, id)
}

func (db *DB) DeleteMemory(ctx context.Context, id string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM memories WHERE id = ?`, id); err != nil {
		return fmt.Errorf("sqlite: deleting memory %s: %w", id, err)
	}
	return nil
}

func (db *DB) DeleteMemoriesBySpaceID(ctx context.Context, spaceID string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM memories WHERE space_id = ?`, spaceID); err != nil {
		return fmt.Errorf("sqlite: deleting memories of space %s: %w", spaceID, err)
	}
	return nil
}

// ===== REACTIONS =====

const reactionColumns = `id, memory_id, user_id, type, created_at`

func scanReaction(row rowScanner) (*model.Reaction, error) {
	var r model.Reaction
	if err := row.Scan(&r.ID, &r.MemoryID, &r.UserID, &r.Type, &r.CreatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

func (db *DB) CreateReaction(ctx context.Context, r *model.Reaction) (*model.Reaction, error) {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO reactions (id, memory_id, user_id, type, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		r.ID, r.MemoryID, r.UserID, r.Type, repository.StampIfEmpty(r.CreatedAt, db.now()),
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: creating reaction: %w", err)
	}

	created, err := scanReaction(db.conn.QueryRowContext(ctx,
		`SELECT `+reactionColumns+` FROM reactions WHERE id = ?`, r.ID))
	if err != nil {
		return nil, fmt.Errorf("sqlite: reading reaction %s: %w", r.ID, err)
	}
	return created, nil
}

func (db *DB) GetReactionByMemoryAndUser(ctx context.Context, memoryID, userID string) (*model.Reaction, error) {
	r, err := scanReaction(db.conn.QueryRowContext(ctx,
		`SELECT `+reactionColumns+` FROM reactions
		 WHERE memory_id = ? AND user_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT 1`,
		memoryID, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting reaction: %w", err)
	}
	return r, nil
}

func (db *DB) ListReactionsByMemoryID(ctx context.Context, memoryID string) ([]model.Reaction, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+reactionColumns+` FROM reactions WHERE memory_id = ? ORDER BY created_at DESC, id DESC`, memoryID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing reactions of memory %s: %w", memoryID, err)
	}
	defer rows.Close()

	reactions := []model.Reaction{}
	for rows.Next() {
		r, err := scanReaction(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning reaction row: %w", err)
		}
		reactions = append(reactions, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating reaction rows: %w", err)
	}
	return reactions, nil
}

func (db *DB) DeleteReaction(ctx context.Context, id string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM reactions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("sqlite: deleting reaction %s: %w", id, err)
	}
	return nil
}

func (db *DB) DeleteReactionsByMemoryID(ctx context.Context, memoryID string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM reactions WHERE memory_id = ?`, memoryID); err != nil {
		return fmt.Errorf("sqlite: deleting reactions of memory %s: %w", memoryID, err)
	}
	return nil
}

// ===== COMMENTS =====

const commentColumns = `id, memory_id, user_id, parent_id, content, created_at`

func scanComment(row rowScanner) (*model.Comment, error) {
	var (
		c      model.Comment
		parent sql.NullString
	)
	if err := row.Scan(&c.ID, &c.MemoryID, &c.UserID, &parent, &c.Content, &c.CreatedAt); err != nil {
		return nil, err
	}
	c.ParentID = stringPtr(parent)
	return &c, nil
}

func (db *DB) CreateComment(ctx context.Context, c *model.Comment) (*model.Comment, error) {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO comments (id, memory_id, user_id, parent_id, content, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.MemoryID, c.UserID, nullString(c.ParentID), c.Content,
		repository.StampIfEmpty(c.CreatedAt, db.now()),
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: creating comment: %w", err)
	}
	return db.GetCommentByID(ctx, c.ID)
}

func (db *DB) GetCommentByID(ctx context.Context, id string) (*model.Comment, error) {
	c, err := scanComment(db.conn.QueryRowContext(ctx,
		`SELECT `+commentColumns+` FROM comments WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting comment %s: %w", id, err)
	}
	return c, nil
}

func (db *DB) ListCommentsByMemoryID(ctx context.Context, memoryID string) ([]model.Comment, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+commentColumns+` FROM comments WHERE memory_id = ? ORDER BY created_at ASC, id ASC`, memoryID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing comments of memory %s: %w", memoryID, err)
	}
	defer rows.Close()

	comments := []model.Comment{}
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning comment row: %w", err)
		}
		comments = append(comments, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating comment rows: %w", err)
	}
	return comments, nil
}

func (db *DB) CountCommentsByMemoryID(ctx context.Context, memoryID string) (int, error) {
	n, err := db.count(ctx, `SELECT COUNT(*) FROM comments WHERE memory_id = ?`, memoryID)
	if err != nil {
		return 0, fmt.Errorf("sqlite: counting comments of memory %s: %w", memoryID, err)
	}
	return n, nil
}

// DeleteComment removes a comment together with its direct replies.
func (db *DB) DeleteComment(ctx context.Context, id string) error {
	if _, err := db.conn.ExecContext(ctx,
		`DELETE FROM comments WHERE id = ? OR parent_id = ?`, id, id); err != nil {
		return fmt.Errorf("sqlite: deleting comment %s: %w", id, err)
	}
	return nil
}

func (db *DB) DeleteCommentsByMemoryID(ctx context.Context, memoryID string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM comments WHERE memory_id = ?`, memoryID); err != nil {
		return fmt.Errorf("sqlite: deleting comments of memory %s: %w", memoryID, err)
	}
	return nil
}
