package rope

import (
	"errors"
	"fmt"
)

// ErrBounds is the sentinel all bounds failures wrap; errors.Is works
// against it regardless of the concrete position carried.
var ErrBounds = errors.New("position out of bounds")

// BoundsError reports an operation addressed with an offset that is
// out of range or not a boundary of the requested metric. It is always
// caller error; the addressed revision is left untouched.
type BoundsError struct {
	Pos    int
	Len    int
	Metric string
}

func (e *BoundsError) Error() string {
	if e.Metric != "" {
		return fmt.Sprintf("position %d is not a %s boundary (len %d)", e.Pos, e.Metric, e.Len)
	}
	return fmt.Sprintf("position %d out of range (len %d)", e.Pos, e.Len)
}

func (e *BoundsError) Unwrap() error {
	return ErrBounds
}

func boundsErr(pos, length int) error {
	return &BoundsError{Pos: pos, Len: length}
}

func boundaryErr(pos, length int, m Metric) error {
	return &BoundsError{Pos: pos, Len: length, Metric: m.Name()}
}
