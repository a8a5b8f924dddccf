// Package district holds the per-ward indicator records and the name key
// used to join them against boundary layers.
package district

import "strings"

// NormalizedKey is the join key shared by every data source that names a
// district: trimmed, lower-cased, with internal whitespace collapsed to
// single spaces. Build it with NewKey only.
type NormalizedKey string

// NewKey normalizes a district name into its join key.
func NewKey(name string) NormalizedKey {
	return NormalizedKey(strings.ToLower(strings.Join(strings.Fields(name), " ")))
}

// String returns the key text.
func (k NormalizedKey) String() string { return string(k) }

// IsZero reports whether the key is empty, which happens when the source
// name was blank or all whitespace.
func (k NormalizedKey) IsZero() bool { return k == "" }
