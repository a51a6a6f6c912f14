package core

import (
	"github.com/plumedit/plume/internal/view"
	"github.com/plumedit/plume/internal/view/linecache"
)

// UpdateParams is the payload of an `update` notification.
type UpdateParams struct {
	ViewID   string         `json:"view_id"`
	Rev      uint64         `json:"rev"`
	Ops      []linecache.Op `json:"ops"`
	Pristine bool           `json:"pristine"`
}

// renderView returns a copy of the view with the live selection
// merged into the style layer, ready for derivation. The persistent
// view is left untouched so selection styling never accumulates.
func (ed *Editor) renderView() *view.View {
	v := *ed.view

	heads := make([]int, len(ed.regions))
	spans := append(view.SpanList(nil), v.Spans...)
	for i, r := range ed.regions {
		heads[i] = r.Head
		if start, end := r.Ordered(); end > start {
			spans = spans.Insert(view.Span{Start: start, End: end, ID: view.SelectionStyle})
		}
	}
	v.Spans = spans
	v.SetCursor(heads)
	return &v
}

// buildUpdate computes the op stream carrying the client cache from
// its last known state to the head revision. Only lines inside the
// render plan's window are materialized; lines in the preserve band
// around it are kept on the client with copy when still valid, and
// the rest is evicted.
func (ed *Editor) buildUpdate() ([]linecache.Op, error) {
	head := ed.doc.Head()
	total := head.Text.LineCount()

	v := ed.renderView()
	wFirst, wLast := v.Window(total)
	plan := linecache.NewPlan(total, wFirst, wLast, ed.extent)
	first, last := plan.RenderRange()

	newLines, err := v.DeriveLines(head.Text, first, last)
	if err != nil {
		return nil, err
	}

	// docShadow is the client cache re-expressed in head line space,
	// so preserve decisions can consult it positionally.
	docShadow := ed.shadow.Clone()
	if ed.pend != nil {
		docShadow.Edit(ed.pend.start, ed.pend.oldEnd, ed.pend.newEnd-ed.pend.start)
	}

	var ops []linecache.Op
	switch {
	case ed.commTotal == 0:
		ops = ed.encodeInitial(newLines, first, last, total)
	case ed.pend == nil:
		ops = ed.encodeInPlace(plan, newLines, first, last, total)
	case ed.editAligned(first, last, total):
		ops = ed.encodeEdit(plan, docShadow, newLines, first, last, total)
	default:
		ops = ed.encodeResync(newLines, first, last, total)
	}

	ed.shadow.ApplyOps(ops)
	ed.noteSent(newLines, first)
	ed.committed = newLines
	ed.commFirst = first
	ed.commTotal = total
	ed.pend = nil
	return ops, nil
}

// encodeInitial sends the first update for a view: the window as ins,
// everything else unknown.
func (ed *Editor) encodeInitial(newLines []view.Line, first, last, total int) []linecache.Op {
	var ops []linecache.Op
	if first > 0 {
		ops = append(ops, linecache.Invalidate(first))
	}
	if len(newLines) > 0 {
		ops = append(ops, linecache.Ins(newLines))
	}
	if total > last {
		ops = append(ops, linecache.Invalidate(total-last))
	}
	return ops
}

// encodeInPlace re-syncs a moved or restyled window over an unchanged
// document. Old and new line spaces coincide, so every line is decided
// positionally: fresh content inside the render range, copies across
// the still-valid preserve band, eviction beyond it.
func (ed *Editor) encodeInPlace(plan linecache.RenderPlan, newLines []view.Line, first, last, total int) []linecache.Op {
	var s linecache.Stream
	for j := 0; j < total; j++ {
		if j < first || j >= last {
			if plan.TacticAt(j) == linecache.Preserve && ed.shadow.ValidityAt(j) == linecache.AllValid {
				s.Copy(1)
			} else {
				s.Evict(1)
			}
			continue
		}
		nl := newLines[j-first]
		switch {
		case j >= ed.commFirst && j < ed.commFirst+len(ed.committed):
			if ed.committed[j-ed.commFirst].SameAnnotations(nl) {
				s.Copy(1)
			} else {
				s.Update(nl)
			}
		case ed.shadow.ValidityAt(j) == linecache.AllValid && len(nl.Cursors) == 0 && len(nl.Styles) == 0:
			s.Copy(1)
		case ed.shadow.Held(j):
			s.Update(nl)
		default:
			s.Skip(1)
			s.Ins(nl)
		}
	}
	return s.Ops()
}

// editAligned reports whether the pending edit lies inside both the
// old and new render windows, so the committed lines and the derived
// lines cover it and the zones outside line up positionally.
func (ed *Editor) editAligned(first, last, total int) bool {
	p := ed.pend
	oldLast := ed.commFirst + len(ed.committed)
	return first == ed.commFirst &&
		p.start >= first && p.oldEnd <= oldLast && p.newEnd <= last &&
		total-last == ed.commTotal-oldLast
}

// encodeEdit handles an edit confined to the render window: the zones
// before and after the window are untouched text, so they copy or
// evict positionally, and the window itself diffs against the
// committed lines.
func (ed *Editor) encodeEdit(plan linecache.RenderPlan, docShadow *linecache.Shadow, newLines []view.Line, first, last, total int) []linecache.Op {
	var pre linecache.Stream
	for j := 0; j < first; j++ {
		if plan.TacticAt(j) == linecache.Preserve && docShadow.ValidityAt(j) == linecache.AllValid {
			pre.Copy(1)
		} else {
			pre.Evict(1)
		}
	}
	ops := pre.Ops()

	held := func(i int) bool { return ed.shadow.Held(ed.commFirst + i) }
	ops = append(ops, linecache.Diff(ed.committed, newLines, held)...)

	var tail linecache.Stream
	for j := last; j < total; j++ {
		if plan.TacticAt(j) == linecache.Preserve && docShadow.ValidityAt(j) == linecache.AllValid {
			tail.Copy(1)
		} else {
			tail.Evict(1)
		}
	}
	return append(ops, tail.Ops()...)
}

// encodeResync is the fallback when an edit and a window move land in
// the same update: the old window diffs against the new one, and
// everything outside is resent as unknown.
func (ed *Editor) encodeResync(newLines []view.Line, first, last, total int) []linecache.Op {
	var ops []linecache.Op
	if first > 0 {
		ops = append(ops, linecache.Invalidate(first))
	}
	if ed.commFirst > 0 {
		ops = append(ops, linecache.Skip(ed.commFirst))
	}
	held := func(i int) bool { return ed.shadow.Held(ed.commFirst + i) }
	ops = append(ops, linecache.Diff(ed.committed, newLines, held)...)
	if tail := ed.commTotal - ed.commFirst - len(ed.committed); tail > 0 {
		ops = append(ops, linecache.Skip(tail))
	}
	if total > last {
		ops = append(ops, linecache.Invalidate(total-last))
	}
	return ops
}

// noteSent downgrades the shadow for freshly sent lines that carry
// annotations: a later copy must not present stale cursors or styles
// as current.
func (ed *Editor) noteSent(newLines []view.Line, first int) {
	for k, l := range newLines {
		if len(l.Cursors) > 0 || len(l.Styles) > 0 {
			ed.shadow.PartialInvalidate(first+k, first+k+1, linecache.StylesValid|linecache.CursorValid)
		}
	}
}

// RenderLines synchronously materializes lines [first, last) of the
// head revision, for fetches outside the proactive window. The
// client's cache record is not touched.
func (ed *Editor) RenderLines(first, last int) ([]view.Payload, error) {
	head := ed.doc.Head()
	v := ed.renderView()
	lines, err := v.DeriveLines(head.Text, first, last)
	if err != nil {
		return nil, err
	}
	out := make([]view.Payload, len(lines))
	for i, l := range lines {
		out[i] = l.InsPayload()
	}
	return out, nil
}

// RenderRange rounds a byte range outward to line boundaries and
// materializes it; used by collaborators that address text by offset.
func (ed *Editor) RenderRange(start, end int) ([]view.Payload, error) {
	head := ed.doc.Head()
	first, last, err := view.RoundToLines(head.Text, start, end)
	if err != nil {
		return nil, err
	}
	return ed.RenderLines(first, last)
}
