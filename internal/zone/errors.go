package zone

import "github.com/rotisserie/eris"

// Registry invariant violations. Always surfaced to the caller, never
// retried or silently repaired.
var (
	ErrDuplicateName = eris.New("zone: name already exists")
	ErrNotFound      = eris.New("zone: not found")
	ErrHasChildren   = eris.New("zone: has sub-zones")
)
