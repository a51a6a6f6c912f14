package view

import (
	"sort"

	"github.com/plumedit/plume/internal/engine/delta"
	"github.com/plumedit/plume/internal/engine/rope"
)

// DefaultScrollSlop is how many lines beyond the visible range are
// kept proactively synchronized.
const DefaultScrollSlop = 2

// View is the per-front-end presentation state for one document: the
// caret set, the style layer, and the scroll window the client asked
// to keep fresh. A View holds no text; lines are derived on demand
// from whichever revision the core passes in.
type View struct {
	ID string

	// Carets as sorted document-absolute byte offsets.
	Sel []int

	// Style layer in document-absolute offsets.
	Spans SpanList

	// Scroll window [First, Last) in lines, before slop.
	First, Last int

	Slop int
}

// NewView creates a view with the caret at the document start.
func NewView(id string) *View {
	return &View{
		ID:   id,
		Sel:  []int{0},
		Slop: DefaultScrollSlop,
	}
}

// SetScroll records the client's visible line range [first, last).
func (v *View) SetScroll(first, last int) {
	if first < 0 {
		first = 0
	}
	if last < first {
		last = first
	}
	v.First, v.Last = first, last
}

// SetCursor replaces the caret set, sorting and deduplicating.
func (v *View) SetCursor(offs []int) {
	sorted := append([]int(nil), offs...)
	sort.Ints(sorted)
	out := sorted[:0]
	for _, o := range sorted {
		if len(out) > 0 && out[len(out)-1] == o {
			continue
		}
		out = append(out, o)
	}
	v.Sel = out
}

// ApplyDelta shifts carets and style spans through a committed edit so
// annotations keep pointing at the text they decorated.
func (v *View) ApplyDelta(d *delta.Delta) {
	ops := d.Ops()
	v.Sel = MapOffsets(ops, v.Sel, true)
	v.Spans = v.Spans.ApplyDelta(d)
}

// Window returns the scroll window widened by slop and clamped to the
// document's line count.
func (v *View) Window(lineCount int) (first, last int) {
	first = v.First - v.Slop
	if first < 0 {
		first = 0
	}
	last = v.Last + v.Slop
	if last > lineCount {
		last = lineCount
	}
	if first > last {
		first = last
	}
	return first, last
}

// RoundToLines rounds a byte range outward to line boundaries: the
// largest line start at or below start, and the line index one past
// the line containing end.
func RoundToLines(text rope.Rope, start, end int) (firstLine, lastLine int, err error) {
	if start < 0 {
		start = 0
	}
	if end > text.Len() {
		end = text.Len()
	}
	if end < start {
		end = start
	}
	firstLine, err = text.LineOfOffset(start)
	if err != nil {
		return 0, 0, err
	}
	lastLine, err = text.LineOfOffset(end)
	if err != nil {
		return 0, 0, err
	}
	return firstLine, lastLine + 1, nil
}

// DeriveLines materializes lines [first, last) of a revision with this
// view's carets and styles attached. Lines outside the range are never
// touched, which bounds the cost by the window size rather than the
// document size. The range is clamped to the document.
func (v *View) DeriveLines(text rope.Rope, first, last int) ([]Line, error) {
	lineCount := text.LineCount()
	if first < 0 {
		first = 0
	}
	if last > lineCount {
		last = lineCount
	}
	if first >= last {
		return nil, nil
	}

	lines := make([]Line, 0, last-first)
	for i := first; i < last; i++ {
		line, err := v.deriveLine(text, i)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// DeriveAll materializes the entire document; used for whole-view
// synchronization of small documents and in tests.
func (v *View) DeriveAll(text rope.Rope) ([]Line, error) {
	return v.DeriveLines(text, 0, text.LineCount())
}

func (v *View) deriveLine(text rope.Rope, idx int) (Line, error) {
	start, err := text.OffsetOfLine(idx)
	if err != nil {
		return Line{}, err
	}
	end, err := text.LineEndOffset(idx)
	if err != nil {
		return Line{}, err
	}

	line := Line{Text: text.Slice(start, end)}

	// A caret at the line end belongs to this line; the next line
	// starts past the newline, so there is no double-counting.
	for _, off := range v.Sel {
		if off >= start && off <= end {
			line.Cursors = append(line.Cursors, off-start)
		}
	}

	for _, s := range v.Spans {
		if s.End <= start || s.Start >= end {
			continue
		}
		clipStart := s.Start
		if clipStart < start {
			clipStart = start
		}
		clipEnd := s.End
		if clipEnd > end {
			clipEnd = end
		}
		line.Styles = append(line.Styles, StyleSpan{
			Start: clipStart - start,
			Len:   clipEnd - clipStart,
			ID:    s.ID,
		})
	}
	return line, nil
}
