// Package service holds the business rules of the journal.
//
// LAYERS:
//
//	Handler (HTTP)     → parses requests, writes responses
//	Service (rules)    → validates, checks access, orchestrates, notifies
//	repository.Adapter → reads/writes SQLite or Firestore
//
// Each service declares the narrow slice of repository.Adapter it needs as
// its own interface, so tests can see at a glance what a service touches.
// Services return *apperror.AppError for anything the caller did wrong and
// wrapped engine errors for everything else.
package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/sanctuary/internal/apperror"
	"github.com/sakif/sanctuary/internal/model"
	"github.com/sakif/sanctuary/internal/repository"
)

// Option configures a service.
type Option func(*options)

type options struct {
	now repository.Clock
}

// WithClock pins "now" for a service. Tests share one clock between the
// adapter and the services.
func WithClock(c repository.Clock) Option {
	return func(o *options) { o.now = c }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// newID returns a fresh, sortable record id.
func newID() string {
	return xid.New().String()
}

// randomString returns n characters drawn uniformly from alphabet.
func randomString(alphabet string, n int) (string, error) {
	var b strings.Builder
	b.Grow(n)
	size := big.NewInt(int64(len(alphabet)))
	for range n {
		i, err := rand.Int(rand.Reader, size)
		if err != nil {
			return "", fmt.Errorf("generating random string: %w", err)
		}
		b.WriteByte(alphabet[i.Int64()])
	}
	return b.String(), nil
}

// preview shortens s to 40 runes for notification bodies.
func preview(s string) string {
	const limit = 40
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + "..."
}

// memberLookup finds a user's membership.
type memberLookup interface {
	GetSpaceMemberByUserID(ctx context.Context, userID string) (*model.SpaceMember, error)
}

// requireMembership returns the caller's membership or a validation error
// when they have not joined a space yet.
func requireMembership(ctx context.Context, store memberLookup, userID string) (*model.SpaceMember, error) {
	m, err := store.GetSpaceMemberByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("looking up membership of %s: %w", userID, err)
	}
	if m == nil {
		return nil, apperror.ValidationFailed("space", "user is not in a space")
	}
	return m, nil
}

// memoryLookup resolves a memory together with the caller's membership.
type memoryLookup interface {
	memberLookup
	GetMemoryByID(ctx context.Context, id string) (*model.Memory, error)
}

// accessibleMemory returns the memory when it belongs to the caller's space.
// Memories of other spaces look exactly like missing ones.
func accessibleMemory(ctx context.Context, store memoryLookup, userID, memoryID string) (*model.Memory, error) {
	mem, err := store.GetMemoryByID(ctx, memoryID)
	if err != nil {
		return nil, fmt.Errorf("getting memory %s: %w", memoryID, err)
	}
	if mem == nil {
		return nil, apperror.NotFound("memory", memoryID)
	}
	m, err := store.GetSpaceMemberByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("looking up membership of %s: %w", userID, err)
	}
	if m == nil || m.SpaceID != mem.SpaceID {
		return nil, apperror.NotFound("memory", memoryID)
	}
	return mem, nil
}

// partnersOf returns the ids of the other members of spaceID.
func partnersOf(members []model.SpaceMember, userID string) []string {
	var ids []string
	for _, m := range members {
		if m.UserID != userID {
			ids = append(ids, m.UserID)
		}
	}
	return ids
}

// validDate reports whether s is a calendar date (YYYY-MM-DD) or a full
// timestamp.
func validDate(s string) bool {
	if _, err := time.Parse(model.DateLayout, s); err == nil {
		return true
	}
	_, err := model.ParseTime(s)
	return err == nil
}
