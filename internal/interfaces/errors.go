package interfaces

import "errors"

// ErrNotFound is returned by Store lookups whose spec contract is "fails
// with NotFound" (next_queued_event, job) rather than returning an optional.
var ErrNotFound = errors.New("not found")

// ErrDataCorruption is returned when a stored record cannot be decoded,
// e.g. malformed JSON persisted for a comparison's missing-scenario list.
var ErrDataCorruption = errors.New("data corruption")
