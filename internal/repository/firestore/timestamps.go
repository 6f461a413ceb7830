package firestore

import (
	"time"

	"github.com/sakif/sanctuary/internal/model"
	"github.com/sakif/sanctuary/internal/repository"
)

// normalizeTime turns a stored timestamp field into the ISO-8601 string
// every record carries.
//
//   - time.Time (a native Firestore Timestamp) → model.TimeLayout
//   - string → unchanged, so normalizing twice is harmless
//   - nil or a missing field → ""
func normalizeTime(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case time.Time:
		return model.FormatTime(t)
	case *time.Time:
		if t != nil {
			return model.FormatTime(*t)
		}
	}
	return ""
}

// nowString is the adapter clock rendered in model.TimeLayout.
func (s *Store) nowString() string {
	return model.FormatTime(s.now())
}

// stamp fills an empty creation timestamp with "now".
func (s *Store) stamp(v string) string {
	return repository.StampIfEmpty(v, s.now())
}
