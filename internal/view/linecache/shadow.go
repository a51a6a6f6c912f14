package linecache

// Validity bit flags describing how much of a cached line the client
// is believed to hold.
type Validity uint8

const (
	// Invalid marks a placeholder line: nothing known.
	Invalid Validity = 0

	// TextValid means the client holds the line's text.
	TextValid Validity = 1

	// StylesValid means the client holds current style spans.
	StylesValid Validity = 2

	// CursorValid means the client holds current cursor positions.
	CursorValid Validity = 4

	// AllValid is a fully synchronized line.
	AllValid = TextValid | StylesValid | CursorValid
)

type shadowSpan struct {
	n int
	v Validity
}

// Shadow is the core's conservative, per-client record of the client's
// line cache, stored as validity runs. It errs only toward
// pessimism: a line the shadow calls held is guaranteed present on the
// client, while the client may additionally hold lines the shadow has
// written off.
type Shadow struct {
	spans []shadowSpan
}

// NewShadow returns the shadow of a freshly connected client: an
// empty cache.
func NewShadow() *Shadow {
	return &Shadow{}
}

// Clone returns an independent copy of the shadow.
func (s *Shadow) Clone() *Shadow {
	return &Shadow{spans: append([]shadowSpan(nil), s.spans...)}
}

// Len returns the believed client cache length in lines.
func (s *Shadow) Len() int {
	total := 0
	for _, sp := range s.spans {
		total += sp.n
	}
	return total
}

// ValidityAt returns the validity of cache line i; out of range is
// Invalid.
func (s *Shadow) ValidityAt(i int) Validity {
	for _, sp := range s.spans {
		if i < sp.n {
			return sp.v
		}
		i -= sp.n
	}
	return Invalid
}

// Held reports whether the client holds the text of cache line i.
func (s *Shadow) Held(i int) bool {
	return s.ValidityAt(i)&TextValid != 0
}

// push appends a run, merging with the previous one when the validity
// matches.
func (s *Shadow) push(n int, v Validity) {
	if n <= 0 {
		return
	}
	if len(s.spans) > 0 && s.spans[len(s.spans)-1].v == v {
		s.spans[len(s.spans)-1].n += n
		return
	}
	s.spans = append(s.spans, shadowSpan{n: n, v: v})
}

// ApplyOps advances the shadow across an update stream the core has
// just sent, mirroring exactly what the decoder contract does to the
// client's cache.
func (s *Shadow) ApplyOps(ops []Op) {
	old := &spanReader{spans: s.spans}
	next := &Shadow{}
	for _, op := range ops {
		switch op.Op {
		case OpCopy:
			old.take(op.N, func(n int, v Validity) {
				next.push(n, v)
			})
		case OpSkip:
			old.take(op.N, func(int, Validity) {})
		case OpInvalidate:
			next.push(op.N, Invalid)
		case OpIns:
			next.push(op.N, AllValid)
		case OpUpdate:
			// Text carries forward; annotations are fresh. An invalid
			// old line stays invalid.
			old.take(op.N, func(n int, v Validity) {
				if v&TextValid != 0 {
					next.push(n, AllValid)
				} else {
					next.push(n, Invalid)
				}
			})
		}
	}
	s.spans = next.spans
}

// PartialInvalidate strips validity bits from cache lines [start,
// end), e.g. clearing StylesValid after a style layer change so the
// next update refreshes annotations.
func (s *Shadow) PartialInvalidate(start, end int, lost Validity) {
	next := &Shadow{}
	pos := 0
	for _, sp := range s.spans {
		spStart, spEnd := pos, pos+sp.n
		if spEnd <= start || spStart >= end {
			next.push(sp.n, sp.v)
		} else {
			if spStart < start {
				next.push(start-spStart, sp.v)
			}
			lo, hi := maxIntLC(spStart, start), minIntLC(spEnd, end)
			next.push(hi-lo, sp.v&^lost)
			if spEnd > end {
				next.push(spEnd-end, sp.v)
			}
		}
		pos = spEnd
	}
	s.spans = next.spans
}

// Edit replaces cache lines [start, end) with newCount placeholder
// lines, the conservative effect of a document edit the client has
// not yet been told about.
func (s *Shadow) Edit(start, end, newCount int) {
	next := &Shadow{}
	pos := 0
	inserted := false
	for _, sp := range s.spans {
		spStart, spEnd := pos, pos+sp.n
		pos = spEnd
		if spEnd <= start {
			next.push(sp.n, sp.v)
			continue
		}
		if spStart < start {
			next.push(start-spStart, sp.v)
		}
		if !inserted {
			next.push(newCount, Invalid)
			inserted = true
		}
		if spEnd > end {
			lo := maxIntLC(spStart, end)
			next.push(spEnd-lo, sp.v)
		}
	}
	if !inserted {
		next.push(newCount, Invalid)
	}
	s.spans = next.spans
}

// spanReader consumes validity runs incrementally.
type spanReader struct {
	spans []shadowSpan
	idx   int
	off   int
}

// take consumes n lines, invoking fn per homogeneous run. Consuming
// past the end yields Invalid, matching ValidityAt.
func (r *spanReader) take(n int, fn func(int, Validity)) {
	for n > 0 {
		if r.idx >= len(r.spans) {
			fn(n, Invalid)
			return
		}
		sp := r.spans[r.idx]
		avail := sp.n - r.off
		step := minIntLC(avail, n)
		fn(step, sp.v)
		r.off += step
		if r.off >= sp.n {
			r.idx++
			r.off = 0
		}
		n -= step
	}
}

func minIntLC(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxIntLC(a, b int) int {
	if a > b {
		return a
	}
	return b
}
