package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sakif/sanctuary/internal/auth"
	"github.com/sakif/sanctuary/internal/logger"
	"github.com/sakif/sanctuary/internal/model"
	"github.com/sakif/sanctuary/internal/ratelimit"
	"github.com/sakif/sanctuary/internal/repository/sqlite"
)

// =========================================================================
// HARNESS
// =========================================================================
//
// Service tests run against a real in-memory SQLite adapter rather than
// hand-written fakes: the adapter contract is already tested on its own, and
// exercising it here catches mismatches between what a service expects and
// what storage actually returns.

// testClock is a settable clock shared by the adapter and every service.
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// sentCode is one call to the recording mailer.
type sentCode struct {
	Email string
	Code  string
}

// recordingMailer keeps every code instead of sending it.
type recordingMailer struct {
	mu   sync.Mutex
	sent []sentCode
	fail error
}

func (m *recordingMailer) SendCode(_ context.Context, email, code string, _ time.Duration) error {
	if m.fail != nil {
		return m.fail
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentCode{Email: email, Code: code})
	return nil
}

func (m *recordingMailer) last(t *testing.T) sentCode {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.sent, "no code was mailed")
	return m.sent[len(m.sent)-1]
}

type env struct {
	db            *sqlite.DB
	clock         *testClock
	mailer        *recordingMailer
	tokens        *auth.TokenService
	Auth          *AuthService
	Spaces        *SpaceService
	Memories      *MemoryService
	Milestones    *MilestoneService
	Notifications *NotificationService
	Reactions     *ReactionService
	Comments      *CommentService
}

func newEnv(t *testing.T) *env {
	t.Helper()

	clock := &testClock{t: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
	db, err := sqlite.New(":memory:", sqlite.WithClock(clock.Now))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	tokens, err := auth.NewTokenService("test-secret-at-least-16", 24*time.Hour)
	require.NoError(t, err)

	log := logger.Nop()
	opt := WithClock(clock.Now)
	m := &recordingMailer{}
	notes := NewNotificationService(db, log, opt)

	return &env{
		db:     db,
		clock:  clock,
		mailer: m,
		tokens: tokens,
		Auth: NewAuthService(db, tokens, ratelimit.NewMemoryWithClock(clock.Now), m,
			AuthConfig{CodeTTL: 5 * time.Minute, CodeCooldown: time.Minute}, log, opt),
		Spaces:        NewSpaceService(db, notes, SpaceConfig{UnbindCoolingOff: 7 * 24 * time.Hour}, log, opt),
		Memories:      NewMemoryService(db, notes, log, opt),
		Milestones:    NewMilestoneService(db, notes, log, opt),
		Notifications: notes,
		Reactions:     NewReactionService(db, notes, log, opt),
		Comments:      NewCommentService(db, notes, log, opt),
	}
}

// signUp registers email through the code flow and returns the user.
func (e *env) signUp(t *testing.T, email string) *model.User {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, e.Auth.SendCode(ctx, email))
	res, err := e.Auth.Verify(ctx, email, e.mailer.last(t).Code)
	require.NoError(t, err)
	return res.User
}

// couple signs up two users and pairs them in one space.
func (e *env) couple(t *testing.T) (a, b *model.User, space *SpaceView) {
	t.Helper()
	ctx := context.Background()
	a = e.signUp(t, "alex@example.com")
	b = e.signUp(t, "sam@example.com")
	sp, err := e.Spaces.Create(ctx, a.ID, "2020-02-14")
	require.NoError(t, err)
	space, err = e.Spaces.Join(ctx, b.ID, sp.InviteCode)
	require.NoError(t, err)
	return a, b, space
}

// notificationsOf lists a user's notifications of one type.
func (e *env) notificationsOf(t *testing.T, userID, typ string) []model.Notification {
	t.Helper()
	all, err := e.Notifications.List(context.Background(), userID)
	require.NoError(t, err)
	var out []model.Notification
	for _, n := range all {
		if n.Type == typ {
			out = append(out, n)
		}
	}
	return out
}

// =========================================================================
// HELPERS
// =========================================================================

func TestPreview(t *testing.T) {
	require.Equal(t, "short", preview("short"))
	long := "abcdefghijklmnopqrstuvwxyzabcdefghijklmnopqrstuvwxyz"
	require.Equal(t, long[:40]+"...", preview(long))
}

func TestRandomString(t *testing.T) {
	s, err := randomString("AB", 32)
	require.NoError(t, err)
	require.Len(t, s, 32)
	for _, r := range s {
		require.Contains(t, "AB", string(r))
	}
}

func TestValidDate(t *testing.T) {
	require.True(t, validDate("2024-02-29"))
	require.True(t, validDate("2024-02-29T10:00:00.000Z"))
	require.False(t, validDate("2023-02-29"))
	require.False(t, validDate("yesterday"))
	require.False(t, validDate(""))
}

func TestPartnersOf(t *testing.T) {
	members := []model.SpaceMember{{UserID: "a"}, {UserID: "b"}}
	require.Equal(t, []string{"b"}, partnersOf(members, "a"))
	require.Empty(t, partnersOf(members[:1], "a"))
}
