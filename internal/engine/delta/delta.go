// Package delta describes edits as ordered retain/insert/delete
// instructions against exactly one source revision. Applying a delta
// to its source produces exactly one target revision; deltas compose
// associatively, which is what undo stacks and concurrent-edit
// rebasing are built on.
//
// All spans are measured in bytes, the rope's base unit. Insert
// payloads are held as ropes so large edits share structure with the
// revisions they came from.
package delta

import (
	"fmt"
	"strings"

	"github.com/plumedit/plume/internal/engine/rope"
)

// OpKind discriminates the three instruction kinds.
type OpKind uint8

const (
	// OpRetain keeps the next N base units unchanged.
	OpRetain OpKind = iota

	// OpInsert adds Text at the current position.
	OpInsert

	// OpDelete removes the next N base units.
	OpDelete
)

func (k OpKind) String() string {
	switch k {
	case OpRetain:
		return "retain"
	case OpInsert:
		return "insert"
	case OpDelete:
		return "delete"
	}
	return "unknown"
}

// Op is a single instruction. N is the span length in base units; for
// inserts it always equals Text's byte length.
type Op struct {
	Kind OpKind
	N    int
	Text rope.Rope
}

// Delta is an immutable, normalized edit description. Normal form:
// no zero-length ops, no adjacent ops of the same kind, and an insert
// never directly follows a delete (the pair is stored insert first;
// both orders apply identically).
type Delta struct {
	ops       []Op
	baseLen   int
	targetLen int
}

// BaseLen returns the required length of the source revision.
func (d *Delta) BaseLen() int {
	return d.baseLen
}

// TargetLen returns the length of the revision the delta produces.
func (d *Delta) TargetLen() int {
	return d.targetLen
}

// IsIdentity reports whether the delta leaves its source unchanged.
func (d *Delta) IsIdentity() bool {
	return len(d.ops) == 0 || (len(d.ops) == 1 && d.ops[0].Kind == OpRetain)
}

// Ops returns the normalized instruction sequence. Callers must not
// modify the returned slice.
func (d *Delta) Ops() []Op {
	return d.ops
}

func (d *Delta) String() string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, op := range d.ops {
		if i > 0 {
			sb.WriteByte(' ')
		}
		if op.Kind == OpInsert {
			fmt.Fprintf(&sb, "insert(%q)", op.Text.String())
		} else {
			fmt.Fprintf(&sb, "%s(%d)", op.Kind, op.N)
		}
	}
	sb.WriteByte(']')
	return sb.String()
}

// Summary returns the affected interval [start, end) of the source and
// the byte length of its replacement. An identity delta reports an
// empty interval at 0.
func (d *Delta) Summary() (start, end, newLen int) {
	ops := d.ops
	if len(ops) > 0 && ops[0].Kind == OpRetain {
		start = ops[0].N
		ops = ops[1:]
	}
	tail := 0
	if len(ops) > 0 && ops[len(ops)-1].Kind == OpRetain {
		tail = ops[len(ops)-1].N
	}
	end = d.baseLen - tail
	if end < start {
		end = start
	}
	newLen = d.targetLen - start - tail
	if newLen < 0 {
		newLen = 0
	}
	return start, end, newLen
}

// Apply produces the target revision from the source. The source's
// length must equal BaseLen; retained spans share structure with the
// source rather than being copied.
func (d *Delta) Apply(r rope.Rope) (rope.Rope, error) {
	if r.Len() != d.baseLen {
		return rope.Rope{}, lengthErr("apply", d.baseLen, r.Len())
	}
	result := rope.New()
	pos := 0
	for _, op := range d.ops {
		switch op.Kind {
		case OpRetain:
			sub, err := r.Sub(pos, pos+op.N)
			if err != nil {
				return rope.Rope{}, err
			}
			result = result.Concat(sub)
			pos += op.N
		case OpInsert:
			result = result.Concat(op.Text)
		case OpDelete:
			pos += op.N
		}
	}
	return result, nil
}

// Invert returns the delta that undoes d. The source revision is
// needed to recover deleted text; its length must equal BaseLen. The
// result applies to d's target and reproduces the source.
func (d *Delta) Invert(source rope.Rope) (*Delta, error) {
	if source.Len() != d.baseLen {
		return nil, lengthErr("invert", d.baseLen, source.Len())
	}
	b := NewBuilder(d.targetLen)
	pos := 0
	for _, op := range d.ops {
		switch op.Kind {
		case OpRetain:
			b.Retain(op.N)
			pos += op.N
		case OpInsert:
			b.Delete(op.N)
		case OpDelete:
			sub, err := source.Sub(pos, pos+op.N)
			if err != nil {
				return nil, err
			}
			b.InsertRope(sub)
			pos += op.N
		}
	}
	return b.Build()
}

// Identity returns the delta that retains an entire revision of the
// given length unchanged.
func Identity(baseLen int) *Delta {
	d := &Delta{baseLen: baseLen, targetLen: baseLen}
	if baseLen > 0 {
		d.ops = []Op{{Kind: OpRetain, N: baseLen}}
	}
	return d
}

// SimpleEdit builds the delta replacing [start, end) of a revision of
// length baseLen with text. This covers every single-region edit:
// insertion (start == end), deletion (empty text), and replacement.
func SimpleEdit(start, end int, text string, baseLen int) (*Delta, error) {
	if start < 0 || end > baseLen || start > end {
		return nil, &MalformedDeltaError{
			Reason: fmt.Sprintf("edit range [%d, %d) outside document of length %d", start, end, baseLen),
		}
	}
	b := NewBuilder(baseLen)
	b.Retain(start)
	b.Delete(end - start)
	b.Insert(text)
	b.Retain(baseLen - end)
	return b.Build()
}

// Builder accumulates instructions for a delta over a revision of a
// known length. Instructions are normalized as they arrive; Build
// verifies full coverage of the source.
type Builder struct {
	ops      []Op
	baseLen  int
	consumed int
	inserted int
	err      error
}

// NewBuilder creates a builder for a source revision of baseLen bytes.
func NewBuilder(baseLen int) *Builder {
	return &Builder{baseLen: baseLen}
}

// Retain keeps the next n base units unchanged.
func (b *Builder) Retain(n int) *Builder {
	if b.err != nil || n == 0 {
		return b
	}
	if n < 0 {
		b.err = &MalformedDeltaError{Reason: fmt.Sprintf("negative retain %d", n)}
		return b
	}
	b.consumed += n
	b.push(Op{Kind: OpRetain, N: n})
	return b
}

// Insert adds text at the current position.
func (b *Builder) Insert(text string) *Builder {
	if len(text) == 0 {
		return b
	}
	return b.InsertRope(rope.FromString(text))
}

// InsertRope adds an already-built rope at the current position,
// sharing its structure.
func (b *Builder) InsertRope(r rope.Rope) *Builder {
	if b.err != nil || r.Len() == 0 {
		return b
	}
	b.inserted += r.Len()
	b.push(Op{Kind: OpInsert, N: r.Len(), Text: r})
	return b
}

// Delete removes the next n base units.
func (b *Builder) Delete(n int) *Builder {
	if b.err != nil || n == 0 {
		return b
	}
	if n < 0 {
		b.err = &MalformedDeltaError{Reason: fmt.Sprintf("negative delete %d", n)}
		return b
	}
	b.consumed += n
	b.push(Op{Kind: OpDelete, N: n})
	return b
}

// push appends an op, maintaining normal form: merge with an adjacent
// op of the same kind, and keep inserts ahead of an immediately
// preceding delete so equal deltas compare equal.
func (b *Builder) push(op Op) {
	if op.Kind == OpInsert && len(b.ops) > 0 && b.ops[len(b.ops)-1].Kind == OpDelete {
		del := b.ops[len(b.ops)-1]
		b.ops = b.ops[:len(b.ops)-1]
		b.push(op)
		b.push(del)
		return
	}
	if len(b.ops) > 0 {
		last := &b.ops[len(b.ops)-1]
		if last.Kind == op.Kind {
			last.N += op.N
			if op.Kind == OpInsert {
				last.Text = last.Text.Concat(op.Text)
			}
			return
		}
	}
	b.ops = append(b.ops, op)
}

// Build finalizes the delta. The retained and deleted spans must cover
// the source revision exactly; anything else is a MalformedDeltaError
// and no delta is produced.
func (b *Builder) Build() (*Delta, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.consumed != b.baseLen {
		return nil, &MalformedDeltaError{
			Reason: "spans do not cover the source revision",
			Want:   b.baseLen,
			Got:    b.consumed,
		}
	}
	deleted := 0
	for _, op := range b.ops {
		if op.Kind == OpDelete {
			deleted += op.N
		}
	}
	return &Delta{
		ops:       b.ops,
		baseLen:   b.baseLen,
		targetLen: b.baseLen - deleted + b.inserted,
	}, nil
}
