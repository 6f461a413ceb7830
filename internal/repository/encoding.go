package repository

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sakif/sanctuary/internal/model"
)

// SERIALIZED COLUMNS:
// photos, stickers and location are structured values in the model but are
// stored as JSON text by BOTH backends. Firestore could hold native arrays
// and maps, but then a document written by one backend and a row written by
// the other would differ in shape. Keeping the encoding here, in one place,
// makes the stored form identical.
//
// nil encodes to SQL NULL (a nil *string). An empty slice encodes to "[]" and
// decodes back to an empty, non-nil slice.

// EncodeStrings serializes a string list column.
func EncodeStrings(v []string) (*string, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding string list: %w", err)
	}
	s := string(b)
	return &s, nil
}

// DecodeStrings parses a string list column. NULL and "" decode to nil.
func DecodeStrings(s *string) ([]string, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	out := []string{}
	if err := json.Unmarshal([]byte(*s), &out); err != nil {
		return nil, fmt.Errorf("decoding string list: %w", err)
	}
	return out, nil
}

// EncodeLocation serializes a location column.
func EncodeLocation(loc *model.Location) (*string, error) {
	if loc == nil {
		return nil, nil
	}
	b, err := json.Marshal(loc)
	if err != nil {
		return nil, fmt.Errorf("encoding location: %w", err)
	}
	s := string(b)
	return &s, nil
}

// DecodeLocation parses a location column. NULL, "" and "null" decode to nil.
func DecodeLocation(s *string) (*model.Location, error) {
	if s == nil || *s == "" || *s == "null" {
		return nil, nil
	}
	var loc model.Location
	if err := json.Unmarshal([]byte(*s), &loc); err != nil {
		return nil, fmt.Errorf("decoding location: %w", err)
	}
	return &loc, nil
}

// BoolToInt maps a flag to the 0/1 form both backends store.
func BoolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// StampIfEmpty returns s, or now in model.TimeLayout when s is empty.
func StampIfEmpty(s string, now time.Time) string {
	if s != "" {
		return s
	}
	return model.FormatTime(now)
}
