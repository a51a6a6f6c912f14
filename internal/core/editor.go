package core

import (
	"fmt"
	"sort"
	"time"

	"github.com/plumedit/plume/internal/config"
	"github.com/plumedit/plume/internal/engine/buffer"
	"github.com/plumedit/plume/internal/engine/delta"
	"github.com/plumedit/plume/internal/engine/history"
	"github.com/plumedit/plume/internal/engine/rope"
	"github.com/plumedit/plume/internal/logging"
	"github.com/plumedit/plume/internal/view"
	"github.com/plumedit/plume/internal/view/linecache"
)

// Region is one selection: Anchor is where it started, Head is the
// caret end. Anchor == Head is a bare caret.
type Region struct {
	Anchor int
	Head   int
}

// Ordered returns the region's extent with start <= end.
func (r Region) Ordered() (start, end int) {
	if r.Anchor <= r.Head {
		return r.Anchor, r.Head
	}
	return r.Head, r.Anchor
}

// Empty reports whether the region selects no text.
func (r Region) Empty() bool { return r.Anchor == r.Head }

// Editor is the authoritative state for one open view: the document
// revision chain, undo history, selection, and the record of what the
// front-end has been sent. All methods run on the core loop.
type Editor struct {
	viewID string
	path   string

	doc  *buffer.Document
	hist *history.History
	view *view.View

	regions []Region

	// Client synchronization state. committed holds the window lines
	// as last sent, starting at line commFirst of a document that had
	// commTotal lines at that time. extent is the preserve band width;
	// pend is the footprint of deltas committed since the last update.
	shadow    *linecache.Shadow
	committed []view.Line
	commFirst int
	commTotal int
	extent    int
	pend      *editSpan

	// lastDelta is the most recently committed delta, expressed
	// against its predecessor revision; collaborators are notified
	// with it.
	lastDelta *delta.Delta

	logger *logging.Logger
}

func newEditor(viewID, path string, doc *buffer.Document, cfg *config.Config, logger *logging.Logger) *Editor {
	v := view.NewView(viewID)
	v.Slop = cfg.View.ScrollSlop
	timeout := time.Duration(cfg.Editor.UndoGroupTimeoutMs) * time.Millisecond
	return &Editor{
		viewID:  viewID,
		path:    path,
		doc:     doc,
		hist:    history.New(cfg.Editor.UndoLimit, timeout),
		view:    v,
		regions: []Region{{}},
		shadow:  linecache.NewShadow(),
		extent:  cfg.View.PreserveExtent,
		logger:  logger.WithView(viewID),
	}
}

// editSpan is the line-space footprint of an edit: lines [start,
// oldEnd) of the last-sent document became [start, newEnd) of the
// head.
type editSpan struct {
	start, oldEnd, newEnd int
}

// noteEdit records the line footprint of a committed delta so the next
// update can tell edited regions from preserved ones. base is the text
// the delta applied to. A second commit before an update gives up
// precision and widens to the whole document.
func (ed *Editor) noteEdit(base rope.Rope, d *delta.Delta) {
	newText := ed.doc.Head().Text
	if ed.pend != nil {
		ed.pend = &editSpan{start: 0, oldEnd: ed.commTotal, newEnd: newText.LineCount()}
		return
	}
	a, b, newLen := d.Summary()
	start, err := base.LineOfOffset(a)
	if err != nil {
		start = 0
	}
	oldEnd := base.LineCount()
	if l, err := base.LineOfOffset(b); err == nil {
		oldEnd = l + 1
	}
	newEnd := newText.LineCount()
	if l, err := newText.LineOfOffset(a + newLen); err == nil {
		newEnd = l + 1
	}
	ed.pend = &editSpan{start: start, oldEnd: oldEnd, newEnd: newEnd}
}

// Rev returns the current revision number.
func (ed *Editor) Rev() uint64 { return ed.doc.Rev() }

// Pristine reports whether the document matches its initial state:
// every committed edit group has been undone. Saving is out of scope,
// so the load state is the only pristine point.
func (ed *Editor) Pristine() bool { return !ed.hist.CanUndo() }

// Insert replaces every selection with text, leaving a caret after
// each insertion.
func (ed *Editor) Insert(text string) error {
	return ed.replaceRegions(text, history.GroupTyping)
}

// InsertNewline inserts a line break. It never coalesces with a
// typing burst, so undo stops at line boundaries.
func (ed *Editor) InsertNewline() error {
	return ed.replaceRegions("\n", history.GroupNone)
}

// DeleteBackward removes each selection, or the grapheme cluster
// before each bare caret.
func (ed *Editor) DeleteBackward() error {
	head := ed.doc.Head()
	regions := make([]Region, len(ed.regions))
	for i, r := range ed.regions {
		if !r.Empty() {
			regions[i] = r
			continue
		}
		start := prevGrapheme(head.Text, r.Head)
		regions[i] = Region{Anchor: start, Head: r.Head}
	}
	return ed.replaceAt(head, regions, "", history.GroupDelete)
}

// DeleteForward removes each selection, or the grapheme cluster after
// each bare caret.
func (ed *Editor) DeleteForward() error {
	head := ed.doc.Head()
	regions := make([]Region, len(ed.regions))
	for i, r := range ed.regions {
		if !r.Empty() {
			regions[i] = r
			continue
		}
		end := nextGrapheme(head.Text, r.Head)
		regions[i] = Region{Anchor: r.Head, Head: end}
	}
	return ed.replaceAt(head, regions, "", history.GroupDelete)
}

// replaceRegions replaces the current selections with text.
func (ed *Editor) replaceRegions(text string, group history.Group) error {
	return ed.replaceAt(ed.doc.Head(), ed.regions, text, group)
}

// replaceAt builds one delta covering every region replacement and
// commits it. Regions must not overlap; they are processed in order.
func (ed *Editor) replaceAt(head buffer.Revision, regions []Region, text string, group history.Group) error {
	sorted := make([]Region, len(regions))
	copy(sorted, regions)
	sort.Slice(sorted, func(i, j int) bool {
		si, _ := sorted[i].Ordered()
		sj, _ := sorted[j].Ordered()
		return si < sj
	})

	b := delta.NewBuilder(head.Text.Len())
	pos := 0
	changed := false
	for _, r := range sorted {
		start, end := r.Ordered()
		if start < pos {
			continue // overlapping region, already consumed
		}
		if start > pos {
			b.Retain(start - pos)
		}
		if end > start {
			b.Delete(end - start)
			changed = true
		}
		if text != "" {
			b.Insert(text)
			changed = true
		}
		pos = end
	}
	if !changed {
		return nil
	}
	if head.Text.Len() > pos {
		b.Retain(head.Text.Len() - pos)
	}
	d, err := b.Build()
	if err != nil {
		return err
	}
	return ed.commit(d, head, group)
}

// commit applies a delta at the head, records it for undo, and maps
// the selection and style layer through it.
func (ed *Editor) commit(d *delta.Delta, base buffer.Revision, group history.Group) error {
	if _, err := ed.doc.Apply(d); err != nil {
		return err
	}
	if err := ed.hist.Record(d, base.Text, group); err != nil {
		return err
	}
	ed.lastDelta = d
	ed.noteEdit(base.Text, d)
	ed.applyToState(d)
	ed.collapseRegions()
	return nil
}

// applyToState maps selection regions and the style layer through a
// committed delta.
func (ed *Editor) applyToState(d *delta.Delta) {
	ops := d.Ops()
	for i, r := range ed.regions {
		ed.regions[i] = Region{
			Anchor: view.MapOffset(ops, r.Anchor, true),
			Head:   view.MapOffset(ops, r.Head, true),
		}
	}
	ed.view.Spans = ed.view.Spans.ApplyDelta(d)
}

// collapseRegions turns every selection into a caret at its head and
// merges duplicates.
func (ed *Editor) collapseRegions() {
	for i, r := range ed.regions {
		ed.regions[i] = Region{Anchor: r.Head, Head: r.Head}
	}
	ed.normalizeRegions()
}

// normalizeRegions sorts regions by head and drops exact duplicates.
func (ed *Editor) normalizeRegions() {
	sort.Slice(ed.regions, func(i, j int) bool { return ed.regions[i].Head < ed.regions[j].Head })
	out := ed.regions[:0]
	for _, r := range ed.regions {
		if len(out) > 0 && out[len(out)-1] == r {
			continue
		}
		out = append(out, r)
	}
	ed.regions = out
	if len(ed.regions) == 0 {
		ed.regions = []Region{{}}
	}
}

// Move direction constants for MoveCursor.
type MoveDir int

const (
	MoveLeft MoveDir = iota
	MoveRight
	MoveUp
	MoveDown
)

// MoveCursor moves every region head one step. With modify set the
// anchors stay put, extending the selections; otherwise regions
// collapse to carets at the new heads. Movement seals the current
// undo group.
func (ed *Editor) MoveCursor(dir MoveDir, modify bool) error {
	text := ed.doc.Head().Text
	for i, r := range ed.regions {
		var head int
		var err error
		switch dir {
		case MoveLeft:
			head = prevGrapheme(text, r.Head)
		case MoveRight:
			head = nextGrapheme(text, r.Head)
		case MoveUp:
			head, err = verticalMove(text, r.Head, -1)
		case MoveDown:
			head, err = verticalMove(text, r.Head, +1)
		}
		if err != nil {
			return err
		}
		if modify {
			ed.regions[i].Head = head
		} else {
			ed.regions[i] = Region{Anchor: head, Head: head}
		}
	}
	ed.normalizeRegions()
	ed.hist.Break()
	return nil
}

// PointSelect places a single caret at (line, col), collapsing any
// multi-cursor state. col is clamped to the line's content.
func (ed *Editor) PointSelect(line, col int) error {
	text := ed.doc.Head().Text
	if line < 0 {
		line = 0
	}
	if max := text.LineCount() - 1; line > max {
		line = max
	}
	start, err := text.OffsetOfLine(line)
	if err != nil {
		return err
	}
	end, err := text.LineEndOffset(line)
	if err != nil {
		return err
	}
	off := start + col
	if off > end {
		off = end
	}
	off = snapToGrapheme(text, off)
	ed.regions = []Region{{Anchor: off, Head: off}}
	ed.hist.Break()
	return nil
}

// Undo reverses the most recent edit group.
func (ed *Editor) Undo() error {
	d, ok := ed.hist.Undo()
	if !ok {
		return nil
	}
	base := ed.doc.Head()
	if _, err := ed.doc.Apply(d); err != nil {
		return fmt.Errorf("applying undo: %w", err)
	}
	ed.lastDelta = d
	ed.noteEdit(base.Text, d)
	ed.applyToState(d)
	ed.collapseRegions()
	return nil
}

// Redo replays the most recently undone edit group.
func (ed *Editor) Redo() error {
	d, ok := ed.hist.Redo()
	if !ok {
		return nil
	}
	base := ed.doc.Head()
	if _, err := ed.doc.Apply(d); err != nil {
		return fmt.Errorf("applying redo: %w", err)
	}
	ed.lastDelta = d
	ed.noteEdit(base.Text, d)
	ed.applyToState(d)
	ed.collapseRegions()
	return nil
}

// ApplyExternal commits a delta issued by a collaborator against
// revision rev, rebasing it over anything committed since.
func (ed *Editor) ApplyExternal(rev uint64, d *delta.Delta) (*delta.Delta, error) {
	base := ed.doc.Head()
	_, applied, err := ed.doc.ApplyAt(rev, d)
	if err != nil {
		return nil, err
	}
	ed.lastDelta = applied
	ed.noteEdit(base.Text, applied)
	ed.applyToState(applied)
	ed.normalizeRegions()
	ed.hist.Break()
	return applied, nil
}

// Scroll records the visible window in lines.
func (ed *Editor) Scroll(first, last int) {
	ed.view.SetScroll(first, last)
}

// prevGrapheme returns the position of the previous grapheme cluster
// boundary, or 0 at the document start.
func prevGrapheme(text rope.Rope, off int) int {
	c := rope.NewCursorAt(text, off)
	if p, ok := c.PrevBoundary(rope.Graphemes, rope.Trailing); ok {
		return p
	}
	return 0
}

// nextGrapheme returns the position of the next grapheme cluster
// boundary, or the document end.
func nextGrapheme(text rope.Rope, off int) int {
	c := rope.NewCursorAt(text, off)
	if p, ok := c.NextBoundary(rope.Graphemes, rope.Trailing); ok {
		return p
	}
	return text.Len()
}

// snapToGrapheme moves off back to the nearest grapheme boundary at
// or before it.
func snapToGrapheme(text rope.Rope, off int) int {
	c := rope.NewCursorAt(text, off)
	if c.IsBoundary(rope.Graphemes, rope.Trailing) {
		return off
	}
	return prevGrapheme(text, off)
}

// verticalMove computes the offset one line above or below, keeping
// the byte column where the target line is long enough.
func verticalMove(text rope.Rope, off, dy int) (int, error) {
	line, err := text.LineOfOffset(off)
	if err != nil {
		return 0, err
	}
	start, err := text.OffsetOfLine(line)
	if err != nil {
		return 0, err
	}
	col := off - start

	target := line + dy
	if target < 0 {
		return 0, nil
	}
	if max := text.LineCount() - 1; target > max {
		return text.Len(), nil
	}

	tStart, err := text.OffsetOfLine(target)
	if err != nil {
		return 0, err
	}
	tEnd, err := text.LineEndOffset(target)
	if err != nil {
		return 0, err
	}
	dest := tStart + col
	if dest > tEnd {
		dest = tEnd
	}
	return snapToGrapheme(text, dest), nil
}
