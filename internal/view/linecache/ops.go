// Package linecache implements the view-synchronization protocol: the
// diff encoder that turns two derived line arrays plus the client's
// believed cache state into a minimal copy/skip/invalidate/ins/update
// operation stream, the decoder contract that reconstructs a cache
// from such a stream, and the shadow bookkeeping the core keeps per
// client to know which lines the client still holds.
package linecache

import "github.com/plumedit/plume/internal/view"

// Op kinds as they appear on the wire.
const (
	OpCopy       = "copy"
	OpSkip       = "skip"
	OpInvalidate = "invalidate"
	OpIns        = "ins"
	OpUpdate     = "update"
)

// Op is one operation of an update stream. N is always strictly
// positive; Lines is present exactly for ins and update, with
// len(Lines) == N.
type Op struct {
	Op    string         `json:"op"`
	N     int            `json:"n"`
	Lines []view.Payload `json:"lines,omitempty"`
}

// Copy instructs the client to reuse n cached lines unchanged.
func Copy(n int) Op {
	return Op{Op: OpCopy, N: n}
}

// Skip drops n old lines from consideration without telling the client.
func Skip(n int) Op {
	return Op{Op: OpSkip, N: n}
}

// Invalidate marks n new lines content-unknown.
func Invalidate(n int) Op {
	return Op{Op: OpInvalidate, N: n}
}

// Ins appends fully specified new lines.
func Ins(lines []view.Line) Op {
	payloads := make([]view.Payload, len(lines))
	for i, l := range lines {
		payloads[i] = l.InsPayload()
	}
	return Op{Op: OpIns, N: len(lines), Lines: payloads}
}

// Update keeps n lines' text but replaces their annotations.
func Update(lines []view.Line) Op {
	payloads := make([]view.Payload, len(lines))
	for i, l := range lines {
		payloads[i] = l.UpdatePayload()
	}
	return Op{Op: OpUpdate, N: len(lines), Lines: payloads}
}

// NewLen returns the number of new-cache lines the stream produces:
// the sum of n over every op except skip.
func NewLen(ops []Op) int {
	total := 0
	for _, op := range ops {
		if op.Op != OpSkip {
			total += op.N
		}
	}
	return total
}

// Validate checks the structural invariants every stream must satisfy.
func Validate(ops []Op) error {
	for _, op := range ops {
		if op.N <= 0 {
			return view.Protocolf("op %q has non-positive n %d", op.Op, op.N)
		}
		switch op.Op {
		case OpIns, OpUpdate:
			if len(op.Lines) != op.N {
				return view.Protocolf("op %q n %d does not match %d lines", op.Op, op.N, len(op.Lines))
			}
			if op.Op == OpIns {
				for _, l := range op.Lines {
					if l.Text == nil {
						return view.Protocolf("ins line missing text")
					}
				}
			} else {
				for _, l := range op.Lines {
					if l.Text != nil {
						return view.Protocolf("update line carries text")
					}
				}
			}
		case OpCopy, OpSkip, OpInvalidate:
			if len(op.Lines) != 0 {
				return view.Protocolf("op %q carries lines", op.Op)
			}
		default:
			return view.Protocolf("unknown op %q", op.Op)
		}
	}
	return nil
}
