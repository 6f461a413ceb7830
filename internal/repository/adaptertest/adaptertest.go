// Package adaptertest is the behavioural contract every repository.Adapter
// must satisfy. Each backend's tests call Run with a constructor; the same
// assertions then run against SQLite and against Firestore, which is how the
// two implementations are kept interchangeable.
//
// Subtests use fresh xid ids for every record they create, so a backend
// that shares state between subtests (the Firestore emulator) still gives
// each subtest an isolated view.
package adaptertest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/xid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/sanctuary/internal/model"
	"github.com/sakif/sanctuary/internal/repository"
)

// Clock is a manually advanced clock handed to the adapter under test.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a clock pinned at start.
func NewClock(start time.Time) *Clock {
	return &Clock{now: start.UTC()}
}

// Now satisfies repository.Clock.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// OpenFunc builds an adapter that reads time from clock. The constructor
// owns cleanup (t.Cleanup) of whatever it opens.
type OpenFunc func(t *testing.T, clock repository.Clock) repository.Adapter

// Run executes the full contract against adapters built by open.
func Run(t *testing.T, open OpenFunc) {
	t.Helper()

	cases := []struct {
		name string
		fn   func(t *testing.T, open OpenFunc)
	}{
		{"UserRoundTrip", testUserRoundTrip},
		{"UserUpdateNoop", testUserUpdateNoop},
		{"UserUpdateIsolation", testUserUpdateIsolation},
		{"UserNotFound", testUserNotFound},
		{"GetUsersByIDs", testGetUsersByIDs},
		{"VerificationCodeWindow", testVerificationCodeWindow},
		{"VerificationCodesDeleteByEmail", testVerificationCodesDeleteByEmail},
		{"SpaceRoundTrip", testSpaceRoundTrip},
		{"SpaceMembers", testSpaceMembers},
		{"Sessions", testSessions},
		{"MemoryRoundTrip", testMemoryRoundTrip},
		{"MemoryUpdateNoop", testMemoryUpdateNoop},
		{"MemoryUpdateIsolation", testMemoryUpdateIsolation},
		{"MemoryPagination", testMemoryPagination},
		{"MemoryBulkDelete", testMemoryBulkDelete},
		{"MilestoneOrderAndUpdate", testMilestones},
		{"Notifications", testNotifications},
		{"NotificationsChunkedDelete", testNotificationsChunkedDelete},
		{"Reactions", testReactions},
		{"Comments", testComments},
		{"UnbindCancel", testUnbindCancel},
		{"UnbindExpired", testUnbindExpired},
		{"SortTiesBrokenByID", testSortTies},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.fn(t, open)
		})
	}
}

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func id() string { return xid.New().String() }

// ts renders epoch+d in the stored layout.
func ts(d time.Duration) string { return model.FormatTime(epoch.Add(d)) }

func newAdapter(t *testing.T, open OpenFunc) (repository.Adapter, *Clock) {
	t.Helper()
	clock := NewClock(epoch)
	return open(t, clock.Now), clock
}

// ===== USERS =====

func testUserRoundTrip(t *testing.T, open OpenFunc) {
	ctx := context.Background()
	a, _ := newAdapter(t, open)

	want := &model.User{
		ID:        id(),
		Email:     id() + "@example.com",
		Nickname:  "Mochi",
		Avatar:    model.StringPtr("https://cdn.example.com/a.png"),
		CreatedAt: ts(0),
	}
	got, err := a.CreateUser(ctx, want)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	fetched, err := a.GetUserByID(ctx, want.ID)
	require.NoError(t, err)
	assert.Equal(t, want, fetched)

	byEmail, err := a.GetUserByEmail(ctx, want.Email)
	require.NoError(t, err)
	assert.Equal(t, want, byEmail)

	// created_at defaults to the adapter clock
	stamped, err := a.CreateUser(ctx, &model.User{ID: id(), Email: id() + "@example.com"})
	require.NoError(t, err)
	assert.Equal(t, ts(0), stamped.CreatedAt)
	assert.Nil(t, stamped.Avatar)
}

func testUserUpdateNoop(t *testing.T, open OpenFunc) {
	ctx := context.Background()
	a, _ := newAdapter(t, open)

	u, err := a.CreateUser(ctx, &model.User{ID: id(), Email: id() + "@example.com", Nickname: "A"})
	require.NoError(t, err)

	before, err := a.GetUserByID(ctx, u.ID)
	require.NoError(t, err)

	after, err := a.UpdateUser(ctx, u.ID, model.UserUpdate{})
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func testUserUpdateIsolation(t *testing.T, open OpenFunc) {
	ctx := context.Background()
	a, _ := newAdapter(t, open)

	u, err := a.CreateUser(ctx, &model.User{
		ID: id(), Email: id() + "@example.com", Nickname: "Before",
		Avatar: model.StringPtr("a.png"), CreatedAt: ts(0),
	})
	require.NoError(t, err)

	after, err := a.UpdateUser(ctx, u.ID, model.UserUpdate{Nickname: model.Some("After")})
	require.NoError(t, err)

	want := *u
	want.Nickname = "After"
	assert.Equal(t, &want, after)

	// explicit null clears a nullable column
	cleared, err := a.UpdateUser(ctx, u.ID, model.UserUpdate{Avatar: model.Some[*string](nil)})
	require.NoError(t, err)
	assert.Nil(t, cleared.Avatar)
	assert.Equal(t, "After", cleared.Nickname)
}

func testUserNotFound(t *testing.T, open OpenFunc) {
	ctx := context.Background()
	a, _ := newAdapter(t, open)

	u, err := a.GetUserByID(ctx, id())
	require.NoError(t, err)
	assert.Nil(t, u)

	u, err = a.GetUserByEmail(ctx, id()+"@nowhere.test")
	require.NoError(t, err)
	assert.Nil(t, u)

	u, err = a.UpdateUser(ctx, id(), model.UserUpdate{Nickname: model.Some("x")})
	require.NoError(t, err)
	assert.Nil(t, u)
}

func testGetUsersByIDs(t *testing.T, open OpenFunc) {
	ctx := context.Background()
	a, _ := newAdapter(t, open)

	var ids []string
	for i := 0; i < 12; i++ {
		u, err := a.CreateUser(ctx, &model.User{ID: id(), Email: id() + "@example.com"})
		require.NoError(t, err)
		ids = append(ids, u.ID)
	}

	users, err := a.GetUsersByIDs(ctx, append(ids, id()))
	require.NoError(t, err)
	got := make([]string, 0, len(users))
	for _, u := range users {
		got = append(got, u.ID)
	}
	assert.ElementsMatch(t, ids, got)

	none, err := a.GetUsersByIDs(ctx, nil)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

// ===== VERIFICATION CODES =====

func testVerificationCodeWindow(t *testing.T, open OpenFunc) {
	ctx := context.Background()
	a, clock := newAdapter(t, open)
	email := id() + "@example.com"

	used := &model.VerificationCode{ID: id(), Email: email, Code: "111111", ExpiresAt: ts(5 * time.Minute)}
	require.NoError(t, a.CreateVerificationCode(ctx, used))

	got, err := a.GetVerificationCode(ctx, email, "111111")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, used.ID, got.ID)
	assert.False(t, got.Used)

	require.NoError(t, a.MarkVerificationCodeUsed(ctx, used.ID))
	got, err = a.GetVerificationCode(ctx, email, "111111")
	require.NoError(t, err)
	assert.Nil(t, got, "used code must not be returned")

	expiring := &model.VerificationCode{ID: id(), Email: email, Code: "222222", ExpiresAt: ts(5 * time.Minute)}
	require.NoError(t, a.CreateVerificationCode(ctx, expiring))

	got, err = a.GetVerificationCode(ctx, email, "222222")
	require.NoError(t, err)
	require.NotNil(t, got)

	clock.Advance(5*time.Minute + time.Millisecond)
	got, err = a.GetVerificationCode(ctx, email, "222222")
	require.NoError(t, err)
	assert.Nil(t, got, "expired code must not be returned")
}

func testVerificationCodesDeleteByEmail(t *testing.T, open OpenFunc) {
	ctx := context.Background()
	a, _ := newAdapter(t, open)
	email := id() + "@example.com"

	for _, code := range []string{"123456", "654321"} {
		require.NoError(t, a.CreateVerificationCode(ctx, &model.VerificationCode{
			ID: id(), Email: email, Code: code, ExpiresAt: ts(time.Hour),
		}))
	}
	require.NoError(t, a.DeleteVerificationCodesByEmail(ctx, email))

	got, err := a.GetVerificationCode(ctx, email, "123456")
	require.NoError(t, err)
	assert.Nil(t, got)
}

// ===== SPACES & MEMBERS =====

func createSpace(t *testing.T, a repository.Adapter) *model.Space {
	t.Helper()
	s, err := a.CreateSpace(context.Background(), &model.Space{
		ID: id(), AnniversaryDate: "2024-01-01", InviteCode: id(),
	})
	require.NoError(t, err)
	return s
}

func testSpaceRoundTrip(t *testing.T, open OpenFunc) {
	ctx := context.Background()
	a, _ := newAdapter(t, open)

	want := &model.Space{ID: id(), AnniversaryDate: "2024-01-01", InviteCode: id(), CreatedAt: ts(time.Hour)}
	got, err := a.CreateSpace(ctx, want)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	byCode, err := a.GetSpaceByInviteCode(ctx, want.InviteCode)
	require.NoError(t, err)
	assert.Equal(t, want, byCode)

	noop, err := a.UpdateSpace(ctx, want.ID, model.SpaceUpdate{})
	require.NoError(t, err)
	assert.Equal(t, want, noop)

	updated, err := a.UpdateSpace(ctx, want.ID, model.SpaceUpdate{AnniversaryDate: model.Some("2023-02-14")})
	require.NoError(t, err)
	assert.Equal(t, "2023-02-14", updated.AnniversaryDate)
	assert.Equal(t, want.InviteCode, updated.InviteCode)

	spaces, err := a.ListSpaces(ctx)
	require.NoError(t, err)
	assert.Contains(t, spaces, *updated)

	require.NoError(t, a.DeleteSpace(ctx, want.ID))
	gone, err := a.GetSpaceByID(ctx, want.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func testSpaceMembers(t *testing.T, open OpenFunc) {
	ctx := context.Background()
	a, _ := newAdapter(t, open)
	space := createSpace(t, a)
	alice, bob := id(), id()

	require.NoError(t, a.AddSpaceMember(ctx, &model.SpaceMember{SpaceID: space.ID, UserID: alice, JoinedAt: ts(0)}))
	require.NoError(t, a.AddSpaceMember(ctx, &model.SpaceMember{SpaceID: space.ID, UserID: bob}))

	n, err := a.CountSpaceMembers(ctx, space.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	members, err := a.ListSpaceMembers(ctx, space.ID)
	require.NoError(t, err)
	assert.Len(t, members, 2)

	m, err := a.GetSpaceMemberByUserID(ctx, alice)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, space.ID, m.SpaceID)
	assert.Nil(t, m.PetName)

	updated, err := a.UpdateSpaceMember(ctx, space.ID, alice, model.SpaceMemberUpdate{
		PetName:        model.Some(model.StringPtr("Bunny")),
		PartnerPetName: model.Some(model.StringPtr("Bear")),
	})
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, "Bunny", *updated.PetName)
	assert.Equal(t, "Bear", *updated.PartnerPetName)
	assert.Equal(t, ts(0), updated.JoinedAt)

	missing, err := a.UpdateSpaceMember(ctx, space.ID, id(), model.SpaceMemberUpdate{})
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, a.DeleteSpaceMembersBySpaceID(ctx, space.ID))
	n, err = a.CountSpaceMembers(ctx, space.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

// ===== SESSIONS =====

func testSessions(t *testing.T, open OpenFunc) {
	ctx := context.Background()
	a, clock := newAdapter(t, open)
	userID := id()

	s, err := a.CreateSession(ctx, &model.Session{ID: id(), UserID: userID, Token: id(), ExpiresAt: ts(time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, ts(0), s.CreatedAt)

	got, err := a.GetSessionByToken(ctx, s.Token)
	require.NoError(t, err)
	assert.Equal(t, s, got)

	newToken := id()
	require.NoError(t, a.UpdateSessionToken(ctx, s.ID, newToken, ts(2*time.Hour)))
	got, err = a.GetSessionByToken(ctx, s.Token)
	require.NoError(t, err)
	assert.Nil(t, got, "old token no longer matches")
	got, err = a.GetSessionByToken(ctx, newToken)
	require.NoError(t, err)
	require.NotNil(t, got)

	clock.Advance(3 * time.Hour)
	got, err = a.GetSessionByToken(ctx, newToken)
	require.NoError(t, err)
	assert.Nil(t, got, "expired session is not returned")

	n, err := a.DeleteExpiredSessions(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 1)

	live, err := a.CreateSession(ctx, &model.Session{ID: id(), UserID: userID, Token: id(), ExpiresAt: model.FormatTime(clock.Now().Add(time.Hour))})
	require.NoError(t, err)
	require.NoError(t, a.DeleteSessionsByUserID(ctx, userID))
	got, err = a.GetSessionByToken(ctx, live.Token)
	require.NoError(t, err)
	assert.Nil(t, got)
}

// ===== MEMORIES =====

func fullMemory(spaceID string, createdAt string) *model.Memory {
	lat, lng := 35.6895, 139.6917
	return &model.Memory{
		ID:        id(),
		SpaceID:   spaceID,
		Content:   "first trip together",
		Mood:      model.StringPtr("happy"),
		Photos:    []string{"p1.jpg", "p2.jpg"},
		Location:  &model.Location{Name: "Tokyo", Address: "Shinjuku", Latitude: &lat, Longitude: &lng},
		VoiceNote: model.StringPtr("v.m4a"),
		Stickers:  []string{},
		CreatedAt: createdAt,
		CreatedBy: "u1",
		WordCount: model.IntPtr(3),
	}
}

func testMemoryRoundTrip(t *testing.T, open OpenFunc) {
	ctx := context.Background()
	a, _ := newAdapter(t, open)
	space := createSpace(t, a)

	want := fullMemory(space.ID, ts(time.Minute))
	got, err := a.CreateMemory(ctx, want)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.NotNil(t, got.Stickers, "empty list round-trips as empty, not nil")

	bare := &model.Memory{ID: id(), SpaceID: space.ID, Content: "hi", CreatedBy: "u1"}
	got, err = a.CreateMemory(ctx, bare)
	require.NoError(t, err)
	assert.Nil(t, got.Photos)
	assert.Nil(t, got.Location)
	assert.Nil(t, got.WordCount)
	assert.Equal(t, ts(0), got.CreatedAt)
}

func testMemoryUpdateNoop(t *testing.T, open OpenFunc) {
	ctx := context.Background()
	a, _ := newAdapter(t, open)
	space := createSpace(t, a)

	m, err := a.CreateMemory(ctx, fullMemory(space.ID, ts(0)))
	require.NoError(t, err)

	before, err := a.GetMemoryByID(ctx, m.ID)
	require.NoError(t, err)
	after, err := a.UpdateMemory(ctx, m.ID, model.MemoryUpdate{})
	require.NoError(t, err)
	assert.Equal(t, before, after)

	missing, err := a.UpdateMemory(ctx, id(), model.MemoryUpdate{Content: model.Some("x")})
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func testMemoryUpdateIsolation(t *testing.T, open OpenFunc) {
	ctx := context.Background()
	a, _ := newAdapter(t, open)
	space := createSpace(t, a)

	m, err := a.CreateMemory(ctx, fullMemory(space.ID, ts(0)))
	require.NoError(t, err)

	after, err := a.UpdateMemory(ctx, m.ID, model.MemoryUpdate{Photos: model.Some([]string{"p3.jpg"})})
	require.NoError(t, err)
	want := *m
	want.Photos = []string{"p3.jpg"}
	assert.Equal(t, &want, after)

	after, err = a.UpdateMemory(ctx, m.ID, model.MemoryUpdate{
		Mood:     model.Some[*string](nil),
		Location: model.Some[*model.Location](nil),
	})
	require.NoError(t, err)
	want.Mood = nil
	want.Location = nil
	assert.Equal(t, &want, after)
}

// testMemoryPagination is the three-memory scenario: limit 2 at offset 0
// returns the two newest, offset 2 returns only the oldest.
func testMemoryPagination(t *testing.T, open OpenFunc) {
	ctx := context.Background()
	a, _ := newAdapter(t, open)
	space := createSpace(t, a)
	for _, u := range []string{id(), id()} {
		require.NoError(t, a.AddSpaceMember(ctx, &model.SpaceMember{SpaceID: space.ID, UserID: u}))
	}

	var created []*model.Memory
	for i := 0; i < 3; i++ {
		m := fullMemory(space.ID, ts(time.Duration(i)*time.Hour))
		m.Content = fmt.Sprintf("memory %d", i)
		got, err := a.CreateMemory(ctx, m)
		require.NoError(t, err)
		created = append(created, got)
	}

	page, err := a.ListMemoriesBySpaceID(ctx, space.ID, 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, created[2].ID, page[0].ID)
	assert.Equal(t, created[1].ID, page[1].ID)

	page, err = a.ListMemoriesBySpaceID(ctx, space.ID, 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, created[0].ID, page[0].ID)

	for limit := 1; limit <= 3; limit++ {
		for offset := 0; limit+offset <= 3; offset++ {
			page, err := a.ListMemoriesBySpaceID(ctx, space.ID, limit, offset)
			require.NoError(t, err)
			require.Len(t, page, limit, "limit=%d offset=%d", limit, offset)
			for i, m := range page {
				assert.Equal(t, created[2-offset-i].ID, m.ID, "limit=%d offset=%d i=%d", limit, offset, i)
			}
		}
	}

	empty, err := a.ListMemoriesBySpaceID(ctx, space.ID, 0, 0)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	n, err := a.CountMemoriesBySpaceID(ctx, space.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func testMemoryBulkDelete(t *testing.T, open OpenFunc) {
	ctx := context.Background()
	a, _ := newAdapter(t, open)
	space := createSpace(t, a)
	other := createSpace(t, a)

	for i := 0; i < 4; i++ {
		_, err := a.CreateMemory(ctx, fullMemory(space.ID, ts(time.Duration(i)*time.Second)))
		require.NoError(t, err)
	}
	keep, err := a.CreateMemory(ctx, fullMemory(other.ID, ts(0)))
	require.NoError(t, err)

	require.NoError(t, a.DeleteMemoriesBySpaceID(ctx, space.ID))

	list, err := a.ListMemoriesBySpaceID(ctx, space.ID, 50, 0)
	require.NoError(t, err)
	assert.Empty(t, list)
	n, err := a.CountMemoriesBySpaceID(ctx, space.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	still, err := a.GetMemoryByID(ctx, keep.ID)
	require.NoError(t, err)
	assert.NotNil(t, still, "other spaces are untouched")

	require.NoError(t, a.DeleteMemory(ctx, keep.ID))
	gone, err := a.GetMemoryByID(ctx, keep.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

// ===== MILESTONES =====

func testMilestones(t *testing.T, open OpenFunc) {
	ctx := context.Background()
	a, _ := newAdapter(t, open)
	space := createSpace(t, a)

	dates := []string{"2023-05-01", "2024-02-14", "2022-12-25"}
	for _, d := range dates {
		_, err := a.CreateMilestone(ctx, &model.Milestone{
			ID: id(), SpaceID: space.ID, Title: "m " + d, Date: d, Type: "custom", CreatedBy: "u1",
		})
		require.NoError(t, err)
	}

	list, err := a.ListMilestonesBySpaceID(ctx, space.ID)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "2024-02-14", list[0].Date)
	assert.Equal(t, "2023-05-01", list[1].Date)
	assert.Equal(t, "2022-12-25", list[2].Date)

	m := list[0]
	noop, err := a.UpdateMilestone(ctx, m.ID, model.MilestoneUpdate{})
	require.NoError(t, err)
	assert.Equal(t, &m, noop)

	upd, err := a.UpdateMilestone(ctx, m.ID, model.MilestoneUpdate{
		Description: model.Some(model.StringPtr("first date")),
		Photos:      model.Some([]string{"x.jpg"}),
	})
	require.NoError(t, err)
	assert.Equal(t, "first date", *upd.Description)
	assert.Equal(t, []string{"x.jpg"}, upd.Photos)
	assert.Equal(t, m.Title, upd.Title)

	require.NoError(t, a.DeleteMilestone(ctx, m.ID))
	require.NoError(t, a.DeleteMilestonesBySpaceID(ctx, space.ID))
	list, err = a.ListMilestonesBySpaceID(ctx, space.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

// ===== NOTIFICATIONS =====

func testNotifications(t *testing.T, open OpenFunc) {
	ctx := context.Background()
	a, _ := newAdapter(t, open)
	userID := id()

	var ids []string
	for i := 0; i < 3; i++ {
		n, err := a.CreateNotification(ctx, &model.Notification{
			ID: id(), UserID: userID, Type: model.NotificationMemory,
			Title: "t", Message: "m", CreatedAt: ts(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
		assert.False(t, n.Read)
		ids = append(ids, n.ID)
	}

	list, err := a.ListNotificationsByUserID(ctx, userID)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, ids[2], list[0].ID, "newest first")

	read, err := a.MarkNotificationRead(ctx, ids[0])
	require.NoError(t, err)
	require.NotNil(t, read)
	assert.True(t, read.Read)

	missing, err := a.MarkNotificationRead(ctx, id())
	require.NoError(t, err)
	assert.Nil(t, missing)

	n, err := a.MarkAllNotificationsRead(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "returns the pre-update unread count")

	n, err = a.MarkAllNotificationsRead(ctx, userID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func testNotificationsChunkedDelete(t *testing.T, open OpenFunc) {
	ctx := context.Background()
	a, _ := newAdapter(t, open)

	var users []string
	for i := 0; i < 25; i++ {
		u := id()
		users = append(users, u)
		for j := 0; j < 2; j++ {
			_, err := a.CreateNotification(ctx, &model.Notification{
				ID: id(), UserID: u, Type: model.NotificationReminder, Title: "t", Message: "m",
			})
			require.NoError(t, err)
		}
	}
	bystander := id()
	_, err := a.CreateNotification(ctx, &model.Notification{ID: id(), UserID: bystander, Type: "memory", Title: "t", Message: "m"})
	require.NoError(t, err)

	require.NoError(t, a.DeleteNotificationsByUserIDs(ctx, users))

	for _, u := range users {
		list, err := a.ListNotificationsByUserID(ctx, u)
		require.NoError(t, err)
		assert.Empty(t, list, "user %s", u)
	}
	list, err := a.ListNotificationsByUserID(ctx, bystander)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, a.DeleteNotificationsByUserIDs(ctx, nil))
}

// ===== REACTIONS & COMMENTS =====

func testReactions(t *testing.T, open OpenFunc) {
	ctx := context.Background()
	a, _ := newAdapter(t, open)
	memoryID, userID := id(), id()

	r, err := a.CreateReaction(ctx, &model.Reaction{ID: id(), MemoryID: memoryID, UserID: userID, Type: "love"})
	require.NoError(t, err)
	assert.Equal(t, ts(0), r.CreatedAt)

	got, err := a.GetReactionByMemoryAndUser(ctx, memoryID, userID)
	require.NoError(t, err)
	assert.Equal(t, r, got)

	_, err = a.CreateReaction(ctx, &model.Reaction{ID: id(), MemoryID: memoryID, UserID: id(), Type: "love", CreatedAt: ts(time.Second)})
	require.NoError(t, err)

	list, err := a.ListReactionsByMemoryID(ctx, memoryID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, ts(time.Second), list[0].CreatedAt)

	require.NoError(t, a.DeleteReaction(ctx, r.ID))
	got, err = a.GetReactionByMemoryAndUser(ctx, memoryID, userID)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, a.DeleteReactionsByMemoryID(ctx, memoryID))
	list, err = a.ListReactionsByMemoryID(ctx, memoryID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func testComments(t *testing.T, open OpenFunc) {
	ctx := context.Background()
	a, _ := newAdapter(t, open)
	memoryID := id()

	root, err := a.CreateComment(ctx, &model.Comment{ID: id(), MemoryID: memoryID, UserID: "u1", Content: "so cute", CreatedAt: ts(0)})
	require.NoError(t, err)
	assert.Nil(t, root.ParentID)

	reply, err := a.CreateComment(ctx, &model.Comment{ID: id(), MemoryID: memoryID, UserID: "u2", ParentID: &root.ID, Content: "ikr", CreatedAt: ts(time.Second)})
	require.NoError(t, err)
	require.NotNil(t, reply.ParentID)
	assert.Equal(t, root.ID, *reply.ParentID)

	other, err := a.CreateComment(ctx, &model.Comment{ID: id(), MemoryID: memoryID, UserID: "u2", Content: "again", CreatedAt: ts(2 * time.Second)})
	require.NoError(t, err)

	list, err := a.ListCommentsByMemoryID(ctx, memoryID)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, root.ID, list[0].ID, "oldest first")

	require.NoError(t, a.DeleteComment(ctx, root.ID))
	n, err := a.CountCommentsByMemoryID(ctx, memoryID)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "reply removed with its parent")

	left, err := a.GetCommentByID(ctx, other.ID)
	require.NoError(t, err)
	assert.NotNil(t, left)

	require.NoError(t, a.DeleteCommentsByMemoryID(ctx, memoryID))
	n, err = a.CountCommentsByMemoryID(ctx, memoryID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

// ===== UNBIND REQUESTS =====

func testUnbindCancel(t *testing.T, open OpenFunc) {
	ctx := context.Background()
	a, _ := newAdapter(t, open)
	space := createSpace(t, a)

	r, err := a.CreateUnbindRequest(ctx, &model.UnbindRequest{
		ID: id(), SpaceID: space.ID, RequestedBy: "u1", ExpiresAt: ts(7 * 24 * time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, model.UnbindPending, r.Status)
	assert.Equal(t, ts(0), r.RequestedAt)

	pending, err := a.GetUnbindRequestBySpaceID(ctx, space.ID)
	require.NoError(t, err)
	assert.Equal(t, r, pending)

	require.NoError(t, a.UpdateUnbindRequestStatus(ctx, r.ID, model.UnbindCancelled))
	pending, err = a.GetUnbindRequestBySpaceID(ctx, space.ID)
	require.NoError(t, err)
	assert.Nil(t, pending, "cancelled request is no longer pending")

	require.NoError(t, a.DeleteUnbindRequestsBySpaceID(ctx, space.ID))
}

func testUnbindExpired(t *testing.T, open OpenFunc) {
	ctx := context.Background()
	a, clock := newAdapter(t, open)
	space := createSpace(t, a)

	r, err := a.CreateUnbindRequest(ctx, &model.UnbindRequest{
		ID: id(), SpaceID: space.ID, RequestedBy: "u1", ExpiresAt: ts(time.Hour),
	})
	require.NoError(t, err)

	expired, err := a.ListExpiredUnbindRequests(ctx)
	require.NoError(t, err)
	assert.NotContains(t, expired, *r)

	clock.Advance(time.Hour)
	expired, err = a.ListExpiredUnbindRequests(ctx)
	require.NoError(t, err)
	assert.Contains(t, expired, *r, "expires_at <= now counts as expired")

	require.NoError(t, a.UpdateUnbindRequestStatus(ctx, r.ID, model.UnbindCompleted))
	expired, err = a.ListExpiredUnbindRequests(ctx)
	require.NoError(t, err)
	assert.NotContains(t, expired, *r)
}

// ===== ORDERING =====

// testSortTies gives several records the same sort key and inserts them out
// of id order. Both backends must return them ordered by id, in the
// direction of the primary sort.
func testSortTies(t *testing.T, open OpenFunc) {
	ctx := context.Background()
	a, _ := newAdapter(t, open)
	space := createSpace(t, a)
	prefix := id()
	same := ts(0)

	for _, suffix := range []string{"b", "a", "c"} {
		m := fullMemory(space.ID, same)
		m.ID = prefix + "-" + suffix
		_, err := a.CreateMemory(ctx, m)
		require.NoError(t, err)
	}
	var paged []string
	for offset := 0; offset < 3; offset++ {
		page, err := a.ListMemoriesBySpaceID(ctx, space.ID, 1, offset)
		require.NoError(t, err)
		require.Len(t, page, 1)
		paged = append(paged, page[0].ID)
	}
	assert.Equal(t, []string{prefix + "-c", prefix + "-b", prefix + "-a"}, paged)

	for _, suffix := range []string{"a", "b"} {
		_, err := a.CreateMilestone(ctx, &model.Milestone{
			ID: prefix + "-" + suffix, SpaceID: space.ID, Title: "same day", Date: "2024-06-01", Type: "custom", CreatedBy: "u1",
		})
		require.NoError(t, err)
	}
	milestones, err := a.ListMilestonesBySpaceID(ctx, space.ID)
	require.NoError(t, err)
	require.Len(t, milestones, 2)
	assert.Equal(t, prefix+"-b", milestones[0].ID)
	assert.Equal(t, prefix+"-a", milestones[1].ID)

	memoryID := prefix + "-a"
	for _, suffix := range []string{"y", "x"} {
		_, err := a.CreateComment(ctx, &model.Comment{
			ID: prefix + "-" + suffix, MemoryID: memoryID, UserID: "u1", Content: "hi", CreatedAt: same,
		})
		require.NoError(t, err)
		_, err = a.CreateReaction(ctx, &model.Reaction{
			ID: prefix + "-r" + suffix, MemoryID: memoryID, UserID: "u-" + suffix, Type: "love", CreatedAt: same,
		})
		require.NoError(t, err)
	}
	comments, err := a.ListCommentsByMemoryID(ctx, memoryID)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, prefix+"-x", comments[0].ID)
	assert.Equal(t, prefix+"-y", comments[1].ID)

	reactions, err := a.ListReactionsByMemoryID(ctx, memoryID)
	require.NoError(t, err)
	require.Len(t, reactions, 2)
	assert.Equal(t, prefix+"-ry", reactions[0].ID)
	assert.Equal(t, prefix+"-rx", reactions[1].ID)

	userID := id()
	for _, suffix := range []string{"n1", "n3", "n2"} {
		_, err := a.CreateNotification(ctx, &model.Notification{
			ID: prefix + "-" + suffix, UserID: userID, Type: model.NotificationMemory, Title: "t", Message: "m", CreatedAt: same,
		})
		require.NoError(t, err)
	}
	notes, err := a.ListNotificationsByUserID(ctx, userID)
	require.NoError(t, err)
	require.Len(t, notes, 3)
	assert.Equal(t, prefix+"-n3", notes[0].ID)
	assert.Equal(t, prefix+"-n2", notes[1].ID)
	assert.Equal(t, prefix+"-n1", notes[2].ID)

	for _, user := range []string{prefix + "-u2", prefix + "-u1"} {
		require.NoError(t, a.AddSpaceMember(ctx, &model.SpaceMember{SpaceID: space.ID, UserID: user, JoinedAt: same}))
	}
	members, err := a.ListSpaceMembers(ctx, space.ID)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, prefix+"-u1", members[0].UserID)
	assert.Equal(t, prefix+"-u2", members[1].UserID)
}
