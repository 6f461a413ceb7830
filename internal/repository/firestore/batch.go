package firestore

import (
	"context"

	"cloud.google.com/go/firestore"
	"golang.org/x/sync/errgroup"
)

const (
	// maxWritesPerCommit is Firestore's per-commit write limit.
	maxWritesPerCommit = 500
	// maxInValues is the largest value list an "in" filter accepts.
	maxInValues = 10
	// inChunkWorkers bounds concurrent "in" chunk queries.
	inChunkWorkers = 4
)

// chunk splits items into consecutive slices of at most size elements.
func chunk[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = len(items)
	}
	var out [][]T
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		out = append(out, items[start:end])
	}
	return out
}

// deleteRefs deletes refs inside transactions of up to 500 writes. Each
// transaction is atomic; a failure leaves earlier chunks deleted.
func (s *Store) deleteRefs(ctx context.Context, refs []*firestore.DocumentRef) error {
	for _, part := range chunk(refs, maxWritesPerCommit) {
		err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
			for _, ref := range part {
				if err := tx.Delete(ref); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// deleteWhere deletes every document matched by q.
func (s *Store) deleteWhere(ctx context.Context, q firestore.Query) error {
	refs, err := queryRefs(ctx, q)
	if err != nil {
		return err
	}
	return s.deleteRefs(ctx, refs)
}

// deleteWhereIn deletes documents whose field is any of values. The values
// are split into chunks of 10 and the chunks run concurrently.
func (s *Store) deleteWhereIn(ctx context.Context, collection, field string, values []string) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(inChunkWorkers)

	for _, part := range chunk(values, maxInValues) {
		g.Go(func() error {
			return s.deleteWhere(ctx, s.col(collection).Where(field, "in", part))
		})
	}
	return g.Wait()
}

// updateRefs applies the same updates to every ref, up to 500 per
// transaction.
func (s *Store) updateRefs(ctx context.Context, refs []*firestore.DocumentRef, ups []firestore.Update) error {
	for _, part := range chunk(refs, maxWritesPerCommit) {
		err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
			for _, ref := range part {
				if err := tx.Update(ref, ups); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}
