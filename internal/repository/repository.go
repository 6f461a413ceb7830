// Package repository defines the storage contract of the journal.
//
// ONE CONTRACT, TWO ENGINES:
// Adapter is implemented by repository/sqlite and repository/firestore.
// Callers (services, the reminder sweep) only ever see this interface, so the
// backend is chosen once at startup and nothing above this package can tell
// which engine is underneath. Both implementations must return the same
// shapes for the same calls; repository/adaptertest checks that.
//
// CONVENTIONS SHARED BY EVERY METHOD:
//   - Not found is (nil, nil), never an error. The service layer decides
//     whether a missing row is a 404.
//   - Create fills created_at / joined_at / requested_at with "now" when the
//     caller left them empty, then re-reads the stored row.
//   - Update takes an Update struct of model.Opt fields. Unset fields are left
//     alone; an update with nothing set performs no write and returns the
//     current row.
//   - List methods return an empty, non-nil slice when nothing matches.
//   - Engine errors are wrapped with %w and returned as-is. No retries.
package repository

import (
	"context"
	"io"
	"time"

	"github.com/sakif/sanctuary/internal/model"
)

// UserStore persists users.
type UserStore interface {
	CreateUser(ctx context.Context, u *model.User) (*model.User, error)
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	UpdateUser(ctx context.Context, id string, upd model.UserUpdate) (*model.User, error)
	// GetUsersByIDs returns the users that exist among ids, in no
	// particular order. Unknown ids are skipped.
	GetUsersByIDs(ctx context.Context, ids []string) ([]model.User, error)
}

// VerificationStore persists one-time sign-in codes.
type VerificationStore interface {
	CreateVerificationCode(ctx context.Context, vc *model.VerificationCode) error
	// GetVerificationCode returns the code only while it is unused and
	// unexpired.
	GetVerificationCode(ctx context.Context, email, code string) (*model.VerificationCode, error)
	MarkVerificationCodeUsed(ctx context.Context, id string) error
	DeleteVerificationCodesByEmail(ctx context.Context, email string) error
}

// SpaceStore persists spaces.
type SpaceStore interface {
	CreateSpace(ctx context.Context, s *model.Space) (*model.Space, error)
	GetSpaceByID(ctx context.Context, id string) (*model.Space, error)
	GetSpaceByInviteCode(ctx context.Context, code string) (*model.Space, error)
	UpdateSpace(ctx context.Context, id string, upd model.SpaceUpdate) (*model.Space, error)
	DeleteSpace(ctx context.Context, id string) error
	// ListSpaces returns every space. Used by the reminder sweep.
	ListSpaces(ctx context.Context) ([]model.Space, error)
}

// MemberStore persists space memberships.
type MemberStore interface {
	AddSpaceMember(ctx context.Context, m *model.SpaceMember) error
	ListSpaceMembers(ctx context.Context, spaceID string) ([]model.SpaceMember, error)
	// GetSpaceMemberByUserID returns the membership of userID in any space.
	GetSpaceMemberByUserID(ctx context.Context, userID string) (*model.SpaceMember, error)
	CountSpaceMembers(ctx context.Context, spaceID string) (int, error)
	UpdateSpaceMember(ctx context.Context, spaceID, userID string, upd model.SpaceMemberUpdate) (*model.SpaceMember, error)
	DeleteSpaceMembersBySpaceID(ctx context.Context, spaceID string) error
}

// SessionStore persists the sessions behind issued tokens.
type SessionStore interface {
	CreateSession(ctx context.Context, s *model.Session) (*model.Session, error)
	// GetSessionByToken returns the session only while it is unexpired.
	GetSessionByToken(ctx context.Context, token string) (*model.Session, error)
	UpdateSessionToken(ctx context.Context, id, token, expiresAt string) error
	DeleteSession(ctx context.Context, id string) error
	DeleteSessionsByUserID(ctx context.Context, userID string) error
	// DeleteExpiredSessions removes sessions whose expiry has passed and
	// returns how many were removed.
	DeleteExpiredSessions(ctx context.Context) (int, error)
}

// MemoryStore persists journal entries.
type MemoryStore interface {
	CreateMemory(ctx context.Context, m *model.Memory) (*model.Memory, error)
	GetMemoryByID(ctx context.Context, id string) (*model.Memory, error)
	// ListMemoriesBySpaceID returns one page, newest first. limit <= 0
	// yields an empty page; a negative offset counts as 0.
	ListMemoriesBySpaceID(ctx context.Context, spaceID string, limit, offset int) ([]model.Memory, error)
	CountMemoriesBySpaceID(ctx context.Context, spaceID string) (int, error)
	UpdateMemory(ctx context.Context, id string, upd model.MemoryUpdate) (*model.Memory, error)
	DeleteMemory(ctx context.Context, id string) error
	DeleteMemoriesBySpaceID(ctx context.Context, spaceID string) error
}

// MilestoneStore persists milestones.
type MilestoneStore interface {
	CreateMilestone(ctx context.Context, m *model.Milestone) (*model.Milestone, error)
	GetMilestoneByID(ctx context.Context, id string) (*model.Milestone, error)
	// ListMilestonesBySpaceID orders by the milestone date, latest first.
	ListMilestonesBySpaceID(ctx context.Context, spaceID string) ([]model.Milestone, error)
	UpdateMilestone(ctx context.Context, id string, upd model.MilestoneUpdate) (*model.Milestone, error)
	DeleteMilestone(ctx context.Context, id string) error
	DeleteMilestonesBySpaceID(ctx context.Context, spaceID string) error
}

// NotificationStore persists notifications.
type NotificationStore interface {
	CreateNotification(ctx context.Context, n *model.Notification) (*model.Notification, error)
	GetNotificationByID(ctx context.Context, id string) (*model.Notification, error)
	ListNotificationsByUserID(ctx context.Context, userID string) ([]model.Notification, error)
	MarkNotificationRead(ctx context.Context, id string) (*model.Notification, error)
	// MarkAllNotificationsRead returns how many notifications were unread
	// before the call.
	MarkAllNotificationsRead(ctx context.Context, userID string) (int, error)
	// DeleteNotificationsByUserIDs deletes every notification owned by any
	// of userIDs. An empty list is a no-op.
	DeleteNotificationsByUserIDs(ctx context.Context, userIDs []string) error
}

// ReactionStore persists reactions.
type ReactionStore interface {
	CreateReaction(ctx context.Context, r *model.Reaction) (*model.Reaction, error)
	GetReactionByMemoryAndUser(ctx context.Context, memoryID, userID string) (*model.Reaction, error)
	ListReactionsByMemoryID(ctx context.Context, memoryID string) ([]model.Reaction, error)
	DeleteReaction(ctx context.Context, id string) error
	DeleteReactionsByMemoryID(ctx context.Context, memoryID string) error
}

// CommentStore persists comments.
type CommentStore interface {
	CreateComment(ctx context.Context, c *model.Comment) (*model.Comment, error)
	GetCommentByID(ctx context.Context, id string) (*model.Comment, error)
	// ListCommentsByMemoryID orders oldest first, the way a thread reads.
	ListCommentsByMemoryID(ctx context.Context, memoryID string) ([]model.Comment, error)
	CountCommentsByMemoryID(ctx context.Context, memoryID string) (int, error)
	// DeleteComment removes the comment and its direct replies.
	DeleteComment(ctx context.Context, id string) error
	DeleteCommentsByMemoryID(ctx context.Context, memoryID string) error
}

// UnbindStore persists unbind requests.
type UnbindStore interface {
	CreateUnbindRequest(ctx context.Context, r *model.UnbindRequest) (*model.UnbindRequest, error)
	// GetUnbindRequestBySpaceID returns the most recent pending request.
	GetUnbindRequestBySpaceID(ctx context.Context, spaceID string) (*model.UnbindRequest, error)
	UpdateUnbindRequestStatus(ctx context.Context, id string, status model.UnbindStatus) error
	DeleteUnbindRequestsBySpaceID(ctx context.Context, spaceID string) error
	// ListExpiredUnbindRequests returns pending requests whose cooling-off
	// period is over.
	ListExpiredUnbindRequests(ctx context.Context) ([]model.UnbindRequest, error)
}

// Adapter is the full storage contract.
//
// Every list method breaks ties on its sort key by id, in the direction of
// the sort (members: by user id, ascending). Both backends therefore return
// equal sort keys in the same order, and offset pages never overlap.
type Adapter interface {
	UserStore
	VerificationStore
	SpaceStore
	MemberStore
	SessionStore
	MemoryStore
	MilestoneStore
	NotificationStore
	ReactionStore
	CommentStore
	UnbindStore
	io.Closer
}

// Clock returns the current time. Adapters use it for defaults and expiry
// comparisons so tests can pin "now".
type Clock func() time.Time
