package delta

import (
	"errors"
	"fmt"
)

// ErrMalformed is the sentinel all delta validation failures wrap.
var ErrMalformed = errors.New("malformed delta")

// MalformedDeltaError reports a delta whose spans do not cover its
// source revision, or instructions that are not well formed. The edit
// is rejected before any new revision is constructed.
type MalformedDeltaError struct {
	Reason string
	Want   int
	Got    int
}

func (e *MalformedDeltaError) Error() string {
	if e.Want != 0 || e.Got != 0 {
		return fmt.Sprintf("malformed delta: %s (want %d, got %d)", e.Reason, e.Want, e.Got)
	}
	return "malformed delta: " + e.Reason
}

func (e *MalformedDeltaError) Unwrap() error {
	return ErrMalformed
}

func lengthErr(op string, want, got int) error {
	return &MalformedDeltaError{
		Reason: op + " on revision of wrong length",
		Want:   want,
		Got:    got,
	}
}
