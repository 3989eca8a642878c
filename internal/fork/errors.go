package fork

import "errors"

// ErrOverflow is returned when applying a transaction or stake would
// take a balance or staked amount below zero. Checked arithmetic never
// lets this happen silently (§4.E.2, invariant 1).
var ErrOverflow = errors.New("fork: overflow")

// ErrUnknownBlock is returned by replay when a hash names no block in
// the store.
var ErrUnknownBlock = errors.New("fork: block not found for hash")
