package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/sakif/sanctuary/internal/model"
	"github.com/sakif/sanctuary/internal/repository"
	"github.com/sakif/sanctuary/internal/repository/adaptertest"
	"github.com/sakif/sanctuary/internal/repository/sqlite/migrations"
)

// TESTING WITH IN-MEMORY SQLITE:
// ":memory:" gives every test a fresh, private database that disappears when
// the connection closes. No fixtures, no cleanup scripts.
func newTestDB(t *testing.T, opts ...Option) *DB {
	t.Helper()
	db, err := New(":memory:", opts...)
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// fixedClock pins the adapter clock so default timestamps are predictable.
func fixedClock(at time.Time) Option {
	return WithClock(func() time.Time { return at })
}

// =========================================================================
// CONTRACT
// =========================================================================

func TestAdapterContract_InMemory(t *testing.T) {
	adaptertest.Run(t, func(t *testing.T, clock repository.Clock) repository.Adapter {
		return newTestDB(t, WithClock(clock))
	})
}

// The file-backed run exercises WAL mode and a multi-connection pool.
func TestAdapterContract_File(t *testing.T) {
	adaptertest.Run(t, func(t *testing.T, clock repository.Clock) repository.Adapter {
		db, err := New(filepath.Join(t.TempDir(), "sanctuary.db"), WithClock(clock))
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		t.Cleanup(func() { db.Close() })
		return db
	})
}

// =========================================================================
// MIGRATION TESTS
// =========================================================================

func TestMigrate_RecordsVersion(t *testing.T) {
	db := newTestDB(t)

	var version int
	if err := db.conn.QueryRow(`SELECT MAX(version) FROM schema_migrations`).Scan(&version); err != nil {
		t.Fatalf("reading schema version: %v", err)
	}
	if version != 1 {
		t.Errorf("schema version = %d, want 1", version)
	}
}

// Running migrations a second time must be a no-op, otherwise every restart
// of the server would fail on CREATE TABLE.
func TestMigrate_Idempotent(t *testing.T) {
	db := newTestDB(t)

	if err := db.migrate(migrations.FS); err != nil {
		t.Fatalf("second migrate() error = %v", err)
	}

	var count int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&count); err != nil {
		t.Fatalf("counting migrations: %v", err)
	}
	if count != 1 {
		t.Errorf("schema_migrations rows = %d, want 1", count)
	}
}

func TestReopenFileDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "sanctuary.db")
	ctx := context.Background()

	db, err := New(path)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := db.CreateSpace(ctx, &model.Space{ID: "s1", AnniversaryDate: "2024-01-01", InviteCode: "ABC123"}); err != nil {
		t.Fatalf("CreateSpace() error = %v", err)
	}
	db.Close()

	reopened, err := New(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer reopened.Close()

	s, err := reopened.GetSpaceByInviteCode(ctx, "ABC123")
	if err != nil {
		t.Fatalf("GetSpaceByInviteCode() error = %v", err)
	}
	if s == nil || s.ID != "s1" {
		t.Errorf("space after reopen = %+v, want id s1", s)
	}
}

// =========================================================================
// HELPER TESTS
// =========================================================================

func TestPlaceholders(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{0, ""},
		{1, "?"},
		{3, "?, ?, ?"},
	}
	for _, tt := range tests {
		if got := placeholders(tt.n); got != tt.want {
			t.Errorf("placeholders(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestSetBuilder_OnlySetFields(t *testing.T) {
	var b setBuilder
	set(&b, "nickname", model.Some("Mochi"))
	set(&b, "email", model.Opt[string]{})
	set(&b, "avatar", model.Some[*string](nil))

	if len(b.cols) != 2 {
		t.Fatalf("cols = %v, want 2 entries", b.cols)
	}
	if b.cols[0] != "nickname = ?" || b.cols[1] != "avatar = ?" {
		t.Errorf("cols = %v", b.cols)
	}
	if b.empty() {
		t.Error("empty() = true, want false")
	}
}

func TestStoredTimestampsUseISOLayout(t *testing.T) {
	at := time.Date(2024, 6, 1, 9, 15, 30, 250_000_000, time.UTC)
	db := newTestDB(t, fixedClock(at))

	n, err := db.CreateNotification(context.Background(), &model.Notification{
		ID: "n1", UserID: "u1", Type: model.NotificationReminder, Title: "t", Message: "m",
	})
	if err != nil {
		t.Fatalf("CreateNotification() error = %v", err)
	}
	if n.CreatedAt != "2024-06-01T09:15:30.250Z" {
		t.Errorf("CreatedAt = %q", n.CreatedAt)
	}
}
