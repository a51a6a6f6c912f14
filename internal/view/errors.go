package view

import (
	"errors"
	"fmt"
)

// ErrProtocol is the sentinel wrapped by ProtocolError.
var ErrProtocol = errors.New("protocol violation")

// ProtocolError reports an operation stream or line payload that
// violates a protocol invariant: non-positive counts, mismatched line
// counts, malformed style triples, or references to unregistered
// styles. The offending channel is torn down rather than patched.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return "protocol violation: " + e.Reason
}

func (e *ProtocolError) Unwrap() error {
	return ErrProtocol
}

// Protocolf builds a ProtocolError from a format string.
func Protocolf(format string, args ...any) error {
	return &ProtocolError{Reason: fmt.Sprintf(format, args...)}
}

func errTripleShape(n int) error {
	return Protocolf("style list length %d is not a multiple of 3", n)
}

func errTripleLen(l int) error {
	return Protocolf("style span length %d must be positive", l)
}

func errTripleStart(s int) error {
	return Protocolf("style span start %d is negative", s)
}
