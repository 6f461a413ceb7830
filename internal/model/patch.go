package model

import "encoding/json"

// Opt is one field of a partial update.
//
// PRESENT VS. NULL:
// A partial update has to tell three cases apart:
//   - the field was not mentioned        → Opt{}            (leave unchanged)
//   - the field was set to a value       → Some(v)
//   - the field was explicitly cleared   → Some[*T](nil)    (store NULL)
//
// A bare pointer can only express two of those, so Opt carries the
// "was it mentioned" bit separately from the value.
type Opt[T any] struct {
	Value T
	Set   bool
}

// Some returns an Opt that is set to v.
func Some[T any](v T) Opt[T] {
	return Opt[T]{Value: v, Set: true}
}

// UnmarshalJSON marks the field as set whenever its key appears in the
// request body, including an explicit null. Absent keys never reach this
// method, so they stay unset.
func (o *Opt[T]) UnmarshalJSON(b []byte) error {
	o.Set = true
	return json.Unmarshal(b, &o.Value)
}

// MarshalJSON writes the value (or null when unset).
func (o Opt[T]) MarshalJSON() ([]byte, error) {
	if !o.Set {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

// StringPtr returns a pointer to s. Handy for building records in tests.
func StringPtr(s string) *string {
	return &s
}

// IntPtr returns a pointer to n.
func IntPtr(n int) *int {
	return &n
}
