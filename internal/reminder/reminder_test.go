package reminder

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/sanctuary/internal/logger"
	"github.com/sakif/sanctuary/internal/model"
	"github.com/sakif/sanctuary/internal/repository/sqlite"
	"github.com/sakif/sanctuary/internal/service"
)

type fakeFinalizer struct {
	calls int
	n     int
	err   error
}

func (f *fakeFinalizer) FinalizeExpiredUnbinds(context.Context) (int, error) {
	f.calls++
	return f.n, f.err
}

// fakePurger is called from Run's goroutine, hence the atomic counter.
type fakePurger struct {
	calls atomic.Int32
	n     int
}

func (f *fakePurger) PurgeExpiredSessions(context.Context) (int, error) {
	f.calls.Add(1)
	return f.n, nil
}

type fixture struct {
	db       *sqlite.DB
	now      time.Time
	sweeper  *Sweeper
	unbinds  *fakeFinalizer
	sessions *fakePurger
}

// newFixture seeds a space with two members and the given anniversary and
// milestone dates. "Now" is 2025-06-10 15:00 UTC.
func newFixture(t *testing.T, anniversary string, milestones ...string) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{
		now:      time.Date(2025, 6, 10, 15, 0, 0, 0, time.UTC),
		unbinds:  &fakeFinalizer{},
		sessions: &fakePurger{},
	}
	clock := func() time.Time { return f.now }

	db, err := sqlite.New(":memory:", sqlite.WithClock(clock))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	f.db = db

	_, err = db.CreateSpace(ctx, &model.Space{ID: "s1", AnniversaryDate: anniversary, InviteCode: "ABC123"})
	require.NoError(t, err)
	for _, u := range []string{"u1", "u2"} {
		_, err = db.CreateUser(ctx, &model.User{ID: u, Email: u + "@example.com", Nickname: u})
		require.NoError(t, err)
		require.NoError(t, db.AddSpaceMember(ctx, &model.SpaceMember{SpaceID: "s1", UserID: u}))
	}
	for i, d := range milestones {
		_, err = db.CreateMilestone(ctx, &model.Milestone{
			ID: "m" + string(rune('0'+i)), SpaceID: "s1", Title: "Trip", Date: d, Type: "custom", CreatedBy: "u1",
		})
		require.NoError(t, err)
	}

	log := logger.Nop()
	notes := service.NewNotificationService(db, log, service.WithClock(clock))
	f.sweeper = New(db, notes, f.unbinds, f.sessions, log, WithClock(clock))
	return f
}

func (f *fixture) reminders(t *testing.T, userID string) []model.Notification {
	t.Helper()
	list, err := f.db.ListNotificationsByUserID(context.Background(), userID)
	require.NoError(t, err)
	var out []model.Notification
	for _, n := range list {
		if n.Type == model.NotificationReminder {
			out = append(out, n)
		}
	}
	return out
}

func TestCheckOnce_AnniversaryToday(t *testing.T) {
	f := newFixture(t, "2020-06-10")

	res, err := f.sweeper.CheckOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Reminders, "one per member")

	for _, u := range []string{"u1", "u2"} {
		got := f.reminders(t, u)
		require.Len(t, got, 1)
		assert.Equal(t, "Happy 5 Year Anniversary!", got[0].Title)
		assert.Equal(t, "/dashboard", *got[0].ActionURL)
	}
}

func TestCheckOnce_DeduplicatesWithinDay(t *testing.T) {
	f := newFixture(t, "2020-06-11")
	ctx := context.Background()

	_, err := f.sweeper.CheckOnce(ctx)
	require.NoError(t, err)
	f.now = f.now.Add(time.Hour)
	res, err := f.sweeper.CheckOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Reminders)
	assert.Len(t, f.reminders(t, "u1"), 1)

	// The next day brings the "today" reminder.
	f.now = f.now.Add(24 * time.Hour)
	res, err = f.sweeper.CheckOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Reminders)
}

func TestCheckOnce_MilestoneAndStepsRun(t *testing.T) {
	f := newFixture(t, "2020-01-01", "2025-06-13", "2025-06-20", "2025-06-01")
	f.unbinds.n = 1
	f.sessions.n = 4

	res, err := f.sweeper.CheckOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Reminders, "only the milestone three days out")
	assert.Equal(t, 1, res.SpacesDissolved)
	assert.Equal(t, 4, res.SessionsPurged)

	got := f.reminders(t, "u2")
	require.Len(t, got, 1)
	assert.Equal(t, `"Trip" in 3 days!`, got[0].Title)
	assert.Equal(t, "Your milestone is coming up on June 13, 2025", got[0].Message)
	assert.Equal(t, "/milestone/m0", *got[0].ActionURL)
}

func TestCheckOnce_FailingStepDoesNotStopOthers(t *testing.T) {
	f := newFixture(t, "2020-01-01")
	f.unbinds.err = errors.New("boom")

	_, err := f.sweeper.CheckOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unbind finalization")
	assert.Equal(t, int32(1), f.sessions.calls.Load())
}

func TestRun_StopsOnCancel(t *testing.T) {
	f := newFixture(t, "2020-01-01")
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		f.sweeper.Run(ctx, time.Hour)
		close(done)
	}()

	require.Eventually(t, func() bool { return f.sessions.calls.Load() >= 1 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestAnniversaryReminder(t *testing.T) {
	today := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		date  string
		title string
		ok    bool
	}{
		{"2020-06-17", "Anniversary in 1 week!", true},
		{"2020-06-13", "Anniversary in 3 days!", true},
		{"2020-06-11", "Anniversary Tomorrow!", true},
		{"2024-06-10", "Happy 1 Year Anniversary!", true},
		{"2025-06-10", "Happy Anniversary!", true},
		{"2020-06-10T08:00:00.000Z", "Happy 5 Year Anniversary!", true},
		{"2020-06-12", "", false},
		{"2020-06-09", "", false},
		{"not a date", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.date, func(t *testing.T) {
			r, ok := anniversaryReminder(tt.date, today)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.title, r.title)
		})
	}
}

func TestAnniversaryReminder_WrapsYear(t *testing.T) {
	today := time.Date(2025, 12, 29, 0, 0, 0, 0, time.UTC)
	r, ok := anniversaryReminder("2019-01-05", today)
	require.True(t, ok)
	assert.Equal(t, "Anniversary in 1 week!", r.title)
}

func TestMilestoneReminder(t *testing.T) {
	today := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		date  string
		title string
		ok    bool
	}{
		{"2025-06-13", `"Trip" in 3 days!`, true},
		{"2025-06-11", `"Trip" is Tomorrow!`, true},
		{"2025-06-10", "Today: Trip", true},
		{"2025-06-12", "", false},
		{"2024-06-10", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.date, func(t *testing.T) {
			r, ok := milestoneReminder(model.Milestone{ID: "m", Title: "Trip", Date: tt.date}, today)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.title, r.title)
		})
	}
}
