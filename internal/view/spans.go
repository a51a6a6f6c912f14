package view

import (
	"sort"

	"github.com/plumedit/plume/internal/engine/delta"
)

// Span is a styled range in document-absolute byte offsets, End
// exclusive. The style layer supplies these; the deriver clips them to
// lines.
type Span struct {
	Start int
	End   int
	ID    int
}

// SpanList is a set of spans ordered by start offset.
type SpanList []Span

// Insert adds a span keeping order.
func (sl SpanList) Insert(s Span) SpanList {
	if s.End <= s.Start {
		return sl
	}
	i := sort.Search(len(sl), func(i int) bool { return sl[i].Start > s.Start })
	sl = append(sl, Span{})
	copy(sl[i+1:], sl[i:])
	sl[i] = s
	return sl
}

// ClearRange removes all spans intersecting [start, end), truncating
// those partially inside.
func (sl SpanList) ClearRange(start, end int) SpanList {
	out := sl[:0]
	for _, s := range sl {
		if s.End <= start || s.Start >= end {
			out = append(out, s)
			continue
		}
		if s.Start < start {
			out = append(out, Span{Start: s.Start, End: start, ID: s.ID})
		}
		if s.End > end {
			out = append(out, Span{Start: end, End: s.End, ID: s.ID})
		}
	}
	return out
}

// ApplyDelta shifts every span through an edit: spans after an
// insertion move right, spans across a deletion shrink, spans wholly
// deleted vanish. Span starts at an insertion point are pushed after
// the inserted text; span ends there do not extend over it.
func (sl SpanList) ApplyDelta(d *delta.Delta) SpanList {
	if d.IsIdentity() {
		return sl
	}
	ops := d.Ops()
	out := make(SpanList, 0, len(sl))
	for _, s := range sl {
		start := MapOffset(ops, s.Start, true)
		end := MapOffset(ops, s.End, false)
		if end > start {
			out = append(out, Span{Start: start, End: end, ID: s.ID})
		}
	}
	return out
}

// MapOffset translates a base-revision offset through a delta's
// instruction list to the target revision. With after set, an offset
// exactly at an insertion point lands after the inserted text (the
// behavior wanted for cursors and span starts); without it, before
// (span ends).
func MapOffset(ops []delta.Op, off int, after bool) int {
	oldPos, newPos := 0, 0
	for _, op := range ops {
		switch op.Kind {
		case delta.OpRetain:
			if off < oldPos+op.N || (off == oldPos+op.N && !after) {
				return newPos + (off - oldPos)
			}
			oldPos += op.N
			newPos += op.N
		case delta.OpInsert:
			if off == oldPos && !after {
				return newPos
			}
			newPos += op.N
		case delta.OpDelete:
			if off < oldPos+op.N {
				return newPos
			}
			oldPos += op.N
		}
	}
	return newPos + (off - oldPos)
}

// MapOffsets translates a sorted offset list, deduplicating collisions
// created by deletions.
func MapOffsets(ops []delta.Op, offs []int, after bool) []int {
	out := make([]int, 0, len(offs))
	for _, off := range offs {
		mapped := MapOffset(ops, off, after)
		if len(out) > 0 && out[len(out)-1] == mapped {
			continue
		}
		out = append(out, mapped)
	}
	return out
}
