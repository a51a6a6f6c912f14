package rope

// boundaryWindow is how many bytes of context a cursor pulls around its
// position when resolving boundaries of atomic metrics. Grapheme
// clusters longer than this are handled by widening on demand.
const boundaryWindow = 128

// Cursor is a position in a rope with boundary queries against any
// registered metric. It is a lightweight value: creating one does no
// work beyond recording the position.
//
// Boundary queries honor the document-edge rules: position 0 is always
// a trailing boundary and the end of the document is always a leading
// boundary. A query never moves the cursor unless it succeeds.
type Cursor struct {
	r   Rope
	pos int
}

// NewCursor creates a cursor at the start of the rope.
func NewCursor(r Rope) *Cursor {
	return &Cursor{r: r}
}

// NewCursorAt creates a cursor at the given byte offset, clamped to
// the rope.
func NewCursorAt(r Rope, pos int) *Cursor {
	if pos < 0 {
		pos = 0
	}
	if pos > r.Len() {
		pos = r.Len()
	}
	return &Cursor{r: r, pos: pos}
}

// Pos returns the cursor's byte offset.
func (c *Cursor) Pos() int {
	return c.pos
}

// Set moves the cursor to the given byte offset, clamped to the rope.
func (c *Cursor) Set(pos int) {
	if pos < 0 {
		pos = 0
	}
	if pos > c.r.Len() {
		pos = c.r.Len()
	}
	c.pos = pos
}

// IsBoundary reports whether the cursor sits on a boundary of m on the
// given side.
func (c *Cursor) IsBoundary(m Metric, side Side) bool {
	if c.pos == 0 && side == Trailing {
		return true
	}
	if c.pos == c.r.Len() && side == Leading {
		return true
	}
	if !m.Atomic() {
		// Sparse metrics are context-free; one byte of context on each
		// side decides the question. Anchor-trimming the window would
		// cut off the byte a trailing query inspects.
		start := c.pos - 1
		if start < 0 {
			start = 0
		}
		end := c.pos + 1
		if end > c.r.Len() {
			end = c.r.Len()
		}
		return m.IsBoundary(c.r.Slice(start, end), c.pos-start, side)
	}
	win, rel := c.window(c.pos, boundaryWindow)
	return m.IsBoundary(win, rel, side)
}

// NextBoundary moves the cursor to the first boundary of m strictly
// after the current position and returns it. Returns false, leaving
// the cursor in place, if no such boundary exists.
func (c *Cursor) NextBoundary(m Metric, side Side) (int, bool) {
	if c.pos >= c.r.Len() {
		return 0, false
	}
	var next int
	var ok bool
	if m.Atomic() {
		next, ok = c.windowNext(m, side)
	} else {
		next, ok = c.measureNext(m, side)
	}
	if ok {
		c.pos = next
	}
	return next, ok
}

// PrevBoundary moves the cursor to the last boundary of m strictly
// before the current position and returns it. Returns false, leaving
// the cursor in place, if no such boundary exists.
func (c *Cursor) PrevBoundary(m Metric, side Side) (int, bool) {
	if c.pos <= 0 {
		return 0, false
	}
	var prev int
	var ok bool
	if m.Atomic() {
		prev, ok = c.windowPrev(m, side)
	} else {
		prev, ok = c.measurePrev(m, side)
	}
	if ok {
		c.pos = prev
	}
	return prev, ok
}

// window extracts a context window around pos: the returned string
// starts at a position where grapheme cluster state is unambiguous, so
// context-sensitive metrics can step from its start. rel is pos within
// the window.
func (c *Cursor) window(pos, radius int) (string, int) {
	start := pos - radius
	if start < 0 {
		start = 0
	}
	end := pos + radius
	if end > c.r.Len() {
		end = c.r.Len()
	}
	win := c.r.Slice(start, end)
	rel := pos - start
	anchor := asciiAnchor(win, rel)
	if anchor < 0 {
		// No safe anchor in the window; fall back to the document start.
		win = c.r.Slice(0, end)
		return win, pos
	}
	return win[anchor:], rel - anchor
}

// asciiAnchor finds the closest offset at or before from where the byte
// at the offset and the byte before it are both plain ASCII and do not
// form a CRLF pair. Cluster segmentation restarted there agrees with
// segmentation of the full text. Returns -1 if the window has none;
// callers then treat the window start as safe only at offset 0.
func asciiAnchor(s string, from int) int {
	if from >= len(s) {
		from = len(s) - 1
	}
	for a := from; a > 0; a-- {
		if s[a] < 0x80 && s[a-1] < 0x80 && !(s[a-1] == '\r' && s[a] == '\n') {
			return a
		}
	}
	return -1
}

// windowNext resolves the next boundary of a dense (atomic) metric by
// stepping within a context window, widening it if a single cluster
// outruns the window.
func (c *Cursor) windowNext(m Metric, side Side) (int, bool) {
	radius := boundaryWindow
	for {
		start := c.pos - radius
		if start < 0 {
			start = 0
		}
		end := c.pos + radius
		if end > c.r.Len() {
			end = c.r.Len()
		}
		win := c.r.Slice(start, end)
		rel := c.pos - start
		anchor := asciiAnchor(win, rel)
		if anchor < 0 {
			anchor = 0
			if start > 0 {
				radius *= 2
				continue
			}
		}
		if next, ok := m.Next(win[anchor:], rel-anchor, side); ok {
			abs := start + anchor + next
			// A boundary at the window's right edge may be an artifact
			// of truncation; widen unless the edge is the document end.
			if abs < end || end == c.r.Len() {
				return abs, true
			}
		}
		if end == c.r.Len() {
			return 0, false
		}
		radius *= 2
	}
}

// windowPrev is windowNext mirrored.
func (c *Cursor) windowPrev(m Metric, side Side) (int, bool) {
	radius := boundaryWindow
	for {
		start := c.pos - radius
		if start < 0 {
			start = 0
		}
		end := c.pos + radius
		if end > c.r.Len() {
			end = c.r.Len()
		}
		win := c.r.Slice(start, end)
		rel := c.pos - start
		anchor := asciiAnchor(win, rel)
		if anchor < 0 {
			anchor = 0
			if start > 0 {
				radius *= 2
				continue
			}
		}
		if prev, ok := m.Prev(win[anchor:], rel-anchor, side); ok {
			abs := start + anchor + prev
			// A boundary at the anchor may be an artifact of restarting
			// segmentation there; it is genuine only at the document
			// start or on the ASCII pair the anchor was chosen for.
			if abs > start+anchor || start+anchor == 0 || anchor > 0 {
				return abs, true
			}
		}
		if start == 0 {
			if c.pos > 0 {
				return 0, true
			}
			return 0, false
		}
		radius *= 2
	}
}

// measureNext resolves the next boundary of a sparse additive metric
// through prefix measures: the k-th trailing boundary is the shortest
// prefix measuring k. Runs in O(log n) using cached summaries.
func (c *Cursor) measureNext(m Metric, side Side) (int, bool) {
	n, err := c.r.Count(m, c.pos)
	if err != nil {
		return 0, false
	}
	total := c.r.Measure(m)

	if side == Trailing {
		if p, err := c.r.CountBase(m, n); err == nil && p > c.pos {
			return p, true
		}
		if n+1 > total {
			return 0, false
		}
		p, err := c.r.CountBase(m, n+1)
		if err != nil {
			return 0, false
		}
		return p, true
	}

	// Leading boundaries precede each unit; one more sits at the
	// document end.
	for k := n + 1; k <= total; k++ {
		p, err := c.r.CountBase(m, k)
		if err != nil {
			return 0, false
		}
		lead := p - c.unitLen(m, p)
		if lead > c.pos {
			return lead, true
		}
	}
	if c.pos < c.r.Len() {
		return c.r.Len(), true
	}
	return 0, false
}

// measurePrev is measureNext mirrored.
func (c *Cursor) measurePrev(m Metric, side Side) (int, bool) {
	n, err := c.r.Count(m, c.pos)
	if err != nil {
		return 0, false
	}

	if side == Trailing {
		p, err := c.r.CountBase(m, n)
		if err == nil && p < c.pos {
			return p, true
		}
		if n >= 1 {
			p, err := c.r.CountBase(m, n-1)
			if err != nil {
				return 0, false
			}
			return p, true
		}
		return 0, false
	}

	if c.pos == c.r.Len() && c.r.Len() > 0 {
		// The document end is itself leading; the previous one precedes
		// the last unit.
		if n >= 1 {
			p, err := c.r.CountBase(m, n)
			if err == nil {
				lead := p - c.unitLen(m, p)
				if lead < c.pos {
					return lead, true
				}
			}
		}
		return 0, false
	}
	for k := n; k >= 1; k-- {
		p, err := c.r.CountBase(m, k)
		if err != nil {
			return 0, false
		}
		lead := p - c.unitLen(m, p)
		if lead < c.pos {
			return lead, true
		}
	}
	return 0, false
}

// unitLen returns the byte length of the metric unit whose trailing
// boundary is at p. For the lines metric this is the newline itself.
func (c *Cursor) unitLen(m Metric, p int) int {
	win, rel := c.window(p, 8)
	prev, ok := m.Prev(win, rel, Leading)
	if !ok {
		return 1
	}
	if rel-prev < 1 {
		return 1
	}
	return rel - prev
}
