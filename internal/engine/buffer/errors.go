package buffer

import (
	"errors"
	"fmt"
)

// ErrStale is the sentinel wrapped by StaleRevisionError.
var ErrStale = errors.New("stale revision")

// StaleRevisionError reports a request against a revision that has
// been superseded and can no longer be rebased. The caller decides
// whether to refetch and retry; the document never retries internally.
type StaleRevisionError struct {
	Requested uint64
	Head      uint64
}

func (e *StaleRevisionError) Error() string {
	return fmt.Sprintf("revision %d is stale (head is %d)", e.Requested, e.Head)
}

func (e *StaleRevisionError) Unwrap() error {
	return ErrStale
}
