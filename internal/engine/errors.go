package engine

import "github.com/cockroachdb/errors"

// ErrStoreUnavailable marks every error caused by the catalog or alias
// store: timeouts, cancellation, an open circuit, driver failures. Callers
// may retry such errors; "no match" is never reported as an error.
var ErrStoreUnavailable = errors.New("store unavailable")

// storeFailure wraps err with the failing operation and marks it
// ErrStoreUnavailable.
func storeFailure(err error, op string) error {
	return errors.Mark(errors.Wrap(err, op), ErrStoreUnavailable)
}
