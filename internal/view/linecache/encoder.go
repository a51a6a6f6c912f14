package linecache

import "github.com/plumedit/plume/internal/view"

// maxMatchCells bounds the quadratic line-matching table. Beyond it
// the middle region is resent wholesale, trading bandwidth for bounded
// encode time.
const maxMatchCells = 250000

// Diff encodes the minimal operation stream transforming the client's
// cache of old into new. held reports whether the client is believed
// to still hold old line i; a line is only ever copied or updated when
// both textually matched and held, otherwise it is invalidated rather
// than resent.
//
// The stream satisfies the protocol invariants: every n is positive,
// the non-skip total equals len(new), and no old line is consumed by
// more than one copy or update.
func Diff(old, new []view.Line, held func(int) bool) []Op {
	var enc encoder
	enc.held = held

	matches := matchLines(old, new)

	oldIx, newIx := 0, 0
	for _, m := range matches {
		for newIx < m.new {
			enc.Ins(new[newIx])
			newIx++
		}
		if oldIx < m.old {
			enc.Skip(m.old - oldIx)
			oldIx = m.old
		}
		enc.matched(old[oldIx], new[newIx], oldIx)
		oldIx++
		newIx++
	}
	for newIx < len(new) {
		enc.Ins(new[newIx])
		newIx++
	}
	if oldIx < len(old) {
		enc.Skip(len(old) - oldIx)
	}
	return enc.Ops()
}

type match struct {
	old, new int
}

// matchLines aligns old and new by text equality: common prefix and
// suffix first, then a longest-common-subsequence pass over the
// remaining middle.
func matchLines(old, new []view.Line) []match {
	prefix := 0
	for prefix < len(old) && prefix < len(new) && old[prefix].SameText(new[prefix]) {
		prefix++
	}
	suffix := 0
	for suffix < len(old)-prefix && suffix < len(new)-prefix &&
		old[len(old)-1-suffix].SameText(new[len(new)-1-suffix]) {
		suffix++
	}

	var matches []match
	for i := 0; i < prefix; i++ {
		matches = append(matches, match{old: i, new: i})
	}
	oldMid := old[prefix : len(old)-suffix]
	newMid := new[prefix : len(new)-suffix]
	if len(oldMid) > 0 && len(newMid) > 0 && len(oldMid)*len(newMid) <= maxMatchCells {
		for _, m := range lcs(oldMid, newMid) {
			matches = append(matches, match{old: m.old + prefix, new: m.new + prefix})
		}
	}
	for i := 0; i < suffix; i++ {
		matches = append(matches, match{
			old: len(old) - suffix + i,
			new: len(new) - suffix + i,
		})
	}
	return matches
}

// lcs returns a longest common subsequence of the two line arrays as
// matched index pairs, by textbook dynamic programming.
func lcs(a, b []view.Line) []match {
	rows := len(a) + 1
	cols := len(b) + 1
	table := make([]int, rows*cols)
	for i := len(a) - 1; i >= 0; i-- {
		for j := len(b) - 1; j >= 0; j-- {
			if a[i].SameText(b[j]) {
				table[i*cols+j] = table[(i+1)*cols+j+1] + 1
			} else if table[(i+1)*cols+j] >= table[i*cols+j+1] {
				table[i*cols+j] = table[(i+1)*cols+j]
			} else {
				table[i*cols+j] = table[i*cols+j+1]
			}
		}
	}

	var out []match
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i].SameText(b[j]):
			out = append(out, match{old: i, new: j})
			i++
			j++
		case table[(i+1)*cols+j] >= table[i*cols+j+1]:
			i++
		default:
			j++
		}
	}
	return out
}

// encoder adds the held-line policy on top of a Stream.
type encoder struct {
	Stream
	held func(int) bool
}

// matched emits the op for a textually matched old/new line pair. Held
// lines are copied, or updated when only annotations changed; lines
// the client evicted are skipped and invalidated rather than resent.
func (e *encoder) matched(oldLine, newLine view.Line, oldIx int) {
	if e.held != nil && !e.held(oldIx) {
		e.Evict(1)
		return
	}
	if oldLine.SameAnnotations(newLine) {
		e.Copy(1)
		return
	}
	e.Update(newLine)
}

// Stream accumulates ops, merging adjacent operations of one kind so
// runs come out as single ops.
type Stream struct {
	ops []Op
}

// Ops returns the accumulated stream.
func (s *Stream) Ops() []Op {
	return s.ops
}

// Copy emits a copy of n lines.
func (s *Stream) Copy(n int) {
	if n <= 0 {
		return
	}
	if last := s.last(OpCopy); last != nil {
		last.N += n
		return
	}
	s.ops = append(s.ops, Copy(n))
}

// Skip emits a skip of n lines.
func (s *Stream) Skip(n int) {
	if n <= 0 {
		return
	}
	if last := s.last(OpSkip); last != nil {
		last.N += n
		return
	}
	s.ops = append(s.ops, Skip(n))
}

// Invalidate emits an invalidate of n lines.
func (s *Stream) Invalidate(n int) {
	if n <= 0 {
		return
	}
	if last := s.last(OpInvalidate); last != nil {
		last.N += n
		return
	}
	s.ops = append(s.ops, Invalidate(n))
}

// Evict consumes n old lines and replaces them with placeholders. A
// run of evictions merges into one skip/invalidate pair.
func (s *Stream) Evict(n int) {
	if n <= 0 {
		return
	}
	if m := len(s.ops); m >= 2 && s.ops[m-1].Op == OpInvalidate && s.ops[m-2].Op == OpSkip {
		s.ops[m-2].N += n
		s.ops[m-1].N += n
		return
	}
	s.Skip(n)
	s.Invalidate(n)
}

// Ins emits one fully specified line.
func (s *Stream) Ins(l view.Line) {
	if last := s.last(OpIns); last != nil {
		last.N++
		last.Lines = append(last.Lines, l.InsPayload())
		return
	}
	s.ops = append(s.ops, Ins([]view.Line{l}))
}

// Update emits fresh annotations for one line whose text the client
// already holds.
func (s *Stream) Update(l view.Line) {
	if last := s.last(OpUpdate); last != nil {
		last.N++
		last.Lines = append(last.Lines, l.UpdatePayload())
		return
	}
	s.ops = append(s.ops, Update([]view.Line{l}))
}

func (s *Stream) last(kind string) *Op {
	if len(s.ops) == 0 {
		return nil
	}
	last := &s.ops[len(s.ops)-1]
	if last.Op != kind {
		return nil
	}
	return last
}
