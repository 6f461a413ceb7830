// Package firestore implements repository.Adapter on Cloud Firestore.
//
// DOCUMENT LAYOUT:
// One collection per entity, named like the SQLite tables. The document id
// is the entity id; space_members uses "<space_id>_<user_id>". Field names
// equal the SQLite column names, and photos / stickers / location are stored
// as the same JSON strings the SQLite backend writes.
//
// TIMESTAMPS:
// Documents written by this package hold ISO-8601 strings. Documents written
// by other tools (console edits, imports) may hold native Timestamp values.
// Every read passes timestamp fields through normalizeTime, so callers always
// see the string form.
//
// ORDERING:
// Firestore breaks ties on the sort field by document id, in the direction
// of the last OrderBy. The SQLite queries append the same id tie-break, so
// rows with equal timestamps or dates come back in the same order from both.
//
// LIMITATIONS THE SQLITE BACKEND DOES NOT HAVE:
//   - No OFFSET: pages are emulated by fetching limit+offset documents and
//     dropping the first offset client-side.
//   - "in" filters take at most 10 values, so multi-user deletes are chunked.
//   - A commit holds at most 500 writes, so bulk deletes are chunked too;
//     each chunk is atomic, the whole call is not.
package firestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/sakif/sanctuary/internal/repository"
)

// Collection names.
const (
	colUsers             = "users"
	colVerificationCodes = "verification_codes"
	colSpaces            = "spaces"
	colSpaceMembers      = "space_members"
	colSessions          = "sessions"
	colMemories          = "memories"
	colMilestones        = "milestones"
	colNotifications     = "notifications"
	colReactions         = "reactions"
	colComments          = "comments"
	colUnbindRequests    = "unbind_requests"
)

// EmulatorHostEnv is read by the Firestore client itself. When it is set no
// credentials are loaded.
const EmulatorHostEnv = "FIRESTORE_EMULATOR_HOST"

var _ repository.Adapter = (*Store)(nil)

// Config selects the Firestore project and how to authenticate.
type Config struct {
	ProjectID string
	// CredentialsFile is a service-account JSON key. Empty means
	// Application Default Credentials.
	CredentialsFile string
}

// Store implements repository.Adapter.
type Store struct {
	client *firestore.Client
	now    repository.Clock
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now for defaults and expiry checks.
func WithClock(c repository.Clock) Option {
	return func(s *Store) { s.now = c }
}

// New connects to Firestore.
func New(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	if cfg.ProjectID == "" {
		return nil, errors.New("firestore: project id is required")
	}

	var clientOpts []option.ClientOption
	if os.Getenv(EmulatorHostEnv) == "" && cfg.CredentialsFile != "" {
		data, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("firestore: reading credentials: %w", err)
		}
		creds, err := google.CredentialsFromJSONWithType(ctx, data, google.ServiceAccount,
			"https://www.googleapis.com/auth/datastore")
		if err != nil {
			return nil, fmt.Errorf("firestore: parsing credentials: %w", err)
		}
		clientOpts = append(clientOpts, option.WithCredentials(creds))
	}

	client, err := firestore.NewClient(ctx, cfg.ProjectID, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("firestore: creating client: %w", err)
	}

	s := &Store{client: client, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// NewWithClient wraps an existing client. Used by tests that manage the
// client lifecycle themselves.
func NewWithClient(client *firestore.Client, opts ...Option) *Store {
	s := &Store{client: client, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close releases the client's gRPC connections.
func (s *Store) Close() error {
	return s.client.Close()
}

// Ping issues a cheap read to check connectivity.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.client.Collection(colSpaces).Limit(1).Documents(ctx).GetAll()
	return err
}

func (s *Store) col(name string) *firestore.CollectionRef {
	return s.client.Collection(name)
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

// getDoc reads one document into T. A missing document is (nil, nil).
func getDoc[T any](ctx context.Context, ref *firestore.DocumentRef) (*T, error) {
	snap, err := ref.Get(ctx)
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var doc T
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", ref.ID, err)
	}
	return &doc, nil
}

// queryDocs runs q and decodes every result into T.
func queryDocs[T any](ctx context.Context, q firestore.Query) ([]T, error) {
	iter := q.Documents(ctx)
	defer iter.Stop()

	out := []T{}
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		var doc T
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", snap.Ref.ID, err)
		}
		out = append(out, doc)
	}
}

// firstDoc returns the first result of q, or nil.
func firstDoc[T any](ctx context.Context, q firestore.Query) (*T, error) {
	docs, err := queryDocs[T](ctx, q.Limit(1))
	if err != nil || len(docs) == 0 {
		return nil, err
	}
	return &docs[0], nil
}

// queryRefs returns the references of every document matching q.
func queryRefs(ctx context.Context, q firestore.Query) ([]*firestore.DocumentRef, error) {
	snaps, err := q.Documents(ctx).GetAll()
	if err != nil {
		return nil, err
	}
	refs := make([]*firestore.DocumentRef, len(snaps))
	for i, snap := range snaps {
		refs[i] = snap.Ref
	}
	return refs, nil
}

// count runs a server-side COUNT aggregation over q.
func count(ctx context.Context, q firestore.Query) (int, error) {
	res, err := q.NewAggregationQuery().WithCount("count").Get(ctx)
	if err != nil {
		return 0, err
	}
	v, ok := res["count"].(*firestorepb.Value)
	if !ok {
		return 0, fmt.Errorf("unexpected count result %T", res["count"])
	}
	return int(v.GetIntegerValue()), nil
}

// updateDoc applies updates to ref. An empty update list is a no-op. A
// missing document reports found=false rather than an error.
func updateDoc(ctx context.Context, ref *firestore.DocumentRef, ups []firestore.Update) (found bool, err error) {
	if len(ups) == 0 {
		return true, nil
	}
	_, err = ref.Update(ctx, ups)
	if isNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
