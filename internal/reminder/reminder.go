// Package reminder runs the periodic housekeeping sweep: anniversary and
// milestone reminders, finalizing unbind requests whose cooling-off period
// is over, and purging expired sessions.
//
// Every step is idempotent. Reminders are de-duplicated against the user's
// existing notifications (same type, same title, created the same day), so
// running the sweep hourly sends each reminder once per day at most.
package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/sanctuary/internal/model"
	"github.com/sakif/sanctuary/internal/repository"
)

type store interface {
	repository.SpaceStore
	repository.MemberStore
	repository.MilestoneStore
	repository.NotificationStore
}

// Notifier creates notifications.
type Notifier interface {
	Notify(ctx context.Context, userID, typ, title, message, actionURL string) (*model.Notification, error)
}

// UnbindFinalizer dissolves spaces whose unbind request expired.
type UnbindFinalizer interface {
	FinalizeExpiredUnbinds(ctx context.Context) (int, error)
}

// SessionPurger removes expired sessions.
type SessionPurger interface {
	PurgeExpiredSessions(ctx context.Context) (int, error)
}

// Sweeper runs the sweep.
type Sweeper struct {
	store    store
	notifier Notifier
	unbinds  UnbindFinalizer
	sessions SessionPurger
	logger   *slog.Logger
	now      repository.Clock
}

// Option configures a Sweeper.
type Option func(*Sweeper)

// WithClock pins "now".
func WithClock(c repository.Clock) Option {
	return func(s *Sweeper) { s.now = c }
}

func New(st store, notifier Notifier, unbinds UnbindFinalizer, sessions SessionPurger, logger *slog.Logger, opts ...Option) *Sweeper {
	s := &Sweeper{
		store:    st,
		notifier: notifier,
		unbinds:  unbinds,
		sessions: sessions,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Result counts what one sweep did.
type Result struct {
	Reminders       int
	SpacesDissolved int
	SessionsPurged  int
}

// reminder is one notification to send to every member of a space.
type reminder struct {
	title     string
	message   string
	actionURL string
}

// CheckOnce runs one sweep. A failing step is logged and the remaining
// steps still run; the first error is returned.
func (s *Sweeper) CheckOnce(ctx context.Context) (Result, error) {
	var (
		res      Result
		firstErr error
	)
	fail := func(step string, err error) {
		s.logger.Error("sweep step failed", slog.String("step", step), slog.String("error", err.Error()))
		if firstErr == nil {
			firstErr = fmt.Errorf("reminder: %s: %w", step, err)
		}
	}

	today := truncateDay(s.now())

	n, err := s.remind(ctx, today)
	res.Reminders = n
	if err != nil {
		fail("reminders", err)
	}

	if res.SpacesDissolved, err = s.unbinds.FinalizeExpiredUnbinds(ctx); err != nil {
		fail("unbind finalization", err)
	}
	if res.SessionsPurged, err = s.sessions.PurgeExpiredSessions(ctx); err != nil {
		fail("session purge", err)
	}

	s.logger.Info("sweep finished",
		slog.Int("reminders", res.Reminders),
		slog.Int("spacesDissolved", res.SpacesDissolved),
		slog.Int("sessionsPurged", res.SessionsPurged),
	)
	return res, firstErr
}

// Run sweeps once immediately and then every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	s.logger.Info("reminder sweeper started", slog.Duration("interval", interval))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		_, _ = s.CheckOnce(ctx)
		select {
		case <-ctx.Done():
			s.logger.Info("reminder sweeper stopped")
			return
		case <-ticker.C:
		}
	}
}

func (s *Sweeper) remind(ctx context.Context, today time.Time) (int, error) {
	spaces, err := s.store.ListSpaces(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing spaces: %w", err)
	}

	sent := 0
	for _, sp := range spaces {
		members, err := s.store.ListSpaceMembers(ctx, sp.ID)
		if err != nil {
			return sent, fmt.Errorf("listing members of %s: %w", sp.ID, err)
		}
		if len(members) == 0 {
			continue
		}

		var due []reminder
		if r, ok := anniversaryReminder(sp.AnniversaryDate, today); ok {
			due = append(due, r)
		}
		milestones, err := s.store.ListMilestonesBySpaceID(ctx, sp.ID)
		if err != nil {
			return sent, fmt.Errorf("listing milestones of %s: %w", sp.ID, err)
		}
		for _, ms := range milestones {
			if r, ok := milestoneReminder(ms, today); ok {
				due = append(due, r)
			}
		}

		for _, r := range due {
			for _, m := range members {
				ok, err := s.send(ctx, m.UserID, r, today)
				if err != nil {
					return sent, err
				}
				if ok {
					sent++
				}
			}
		}
	}
	return sent, nil
}

// send delivers r unless the user already got it today.
func (s *Sweeper) send(ctx context.Context, userID string, r reminder, today time.Time) (bool, error) {
	existing, err := s.store.ListNotificationsByUserID(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("listing notifications of %s: %w", userID, err)
	}
	day := today.Format(model.DateLayout)
	for _, n := range existing {
		if n.Type == model.NotificationReminder && n.Title == r.title && strings.HasPrefix(n.CreatedAt, day) {
			return false, nil
		}
	}
	if _, err := s.notifier.Notify(ctx, userID, model.NotificationReminder, r.title, r.message, r.actionURL); err != nil {
		return false, fmt.Errorf("notifying %s: %w", userID, err)
	}
	return true, nil
}

// anniversaryReminder returns the reminder due today for a couple whose
// anniversary is date, if any.
func anniversaryReminder(date string, today time.Time) (reminder, bool) {
	start, ok := parseDay(date)
	if !ok {
		return reminder{}, false
	}

	next := time.Date(today.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	if next.Before(today) {
		next = next.AddDate(1, 0, 0)
	}

	r := reminder{actionURL: "/dashboard"}
	switch daysBetween(today, next) {
	case 7:
		r.title = "Anniversary in 1 week!"
		r.message = "Your special day is coming up. Time to plan something memorable!"
	case 3:
		r.title = "Anniversary in 3 days!"
		r.message = "Don't forget - your anniversary is almost here!"
	case 1:
		r.title = "Anniversary Tomorrow!"
		r.message = "Get ready to celebrate your love story!"
	case 0:
		r.title = "Happy Anniversary!"
		if years := today.Year() - start.Year(); years > 0 {
			r.title = fmt.Sprintf("Happy %d Year Anniversary!", years)
		}
		r.message = "Today marks another beautiful chapter in your journey together."
	default:
		return reminder{}, false
	}
	return r, true
}

// milestoneReminder returns the reminder due today for ms, if any. Past
// milestones never remind.
func milestoneReminder(ms model.Milestone, today time.Time) (reminder, bool) {
	day, ok := parseDay(ms.Date)
	if !ok || day.Before(today) {
		return reminder{}, false
	}

	r := reminder{actionURL: "/milestone/" + ms.ID}
	switch daysBetween(today, day) {
	case 3:
		r.title = `"` + ms.Title + `" in 3 days!`
		r.message = "Your milestone is coming up on " + day.Format("January 2, 2006")
	case 1:
		r.title = `"` + ms.Title + `" is Tomorrow!`
		r.message = "Get ready for your special milestone!"
	case 0:
		r.title = "Today: " + ms.Title
		r.message = "It's here! Make the most of this special moment."
	default:
		return reminder{}, false
	}
	return r, true
}

// parseDay reads a calendar date or a timestamp and returns its UTC day.
func parseDay(s string) (time.Time, bool) {
	if t, err := time.Parse(model.DateLayout, s); err == nil {
		return t, true
	}
	t, err := model.ParseTime(s)
	if err != nil {
		return time.Time{}, false
	}
	return truncateDay(t), true
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}
