// Package stores contains the row-oriented data access for the three user
// aggregates: profile, progress and achievement unlocks. "Not found" is a
// sentinel distinct from transport errors so callers can repair missing
// rows instead of failing.
package stores

import "errors"

// ErrNotFound is returned when a row does not exist for the given key.
var ErrNotFound = errors.New("not found")
