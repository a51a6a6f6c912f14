package rope

import (
	"io"
	"strings"
)

// Rope is an immutable rope over UTF-8 text. Operations return new
// Rope values sharing unmodified subtrees with their source; a value,
// once constructed, never changes. This is what makes revisions cheap:
// holders of an old Rope can keep traversing it while edits construct
// new ones.
//
// Offsets are byte offsets (the base unit) unless a Metric says
// otherwise.
type Rope struct {
	root *Node
}

// New creates an empty rope.
func New() Rope {
	return Rope{root: newLeafNode()}
}

// FromString creates a rope from a string.
func FromString(s string) Rope {
	if len(s) == 0 {
		return New()
	}
	return buildFromChunks(splitIntoChunks(s))
}

// FromReader creates a rope from an io.Reader.
func FromReader(r io.Reader) (Rope, error) {
	var builder Builder
	buf := make([]byte, 64*1024)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			builder.WriteString(string(buf[:n]))
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return Rope{}, err
		}
	}
	return builder.Build(), nil
}

// buildFromChunks builds a rope from a slice of chunks.
func buildFromChunks(chunks []Chunk) Rope {
	if len(chunks) == 0 {
		return New()
	}

	var leaves []*Node
	for i := 0; i < len(chunks); i += MaxChunksPerLeaf {
		end := i + MaxChunksPerLeaf
		if end > len(chunks) {
			end = len(chunks)
		}
		leafChunks := make([]Chunk, end-i)
		copy(leafChunks, chunks[i:end])
		leaves = append(leaves, newLeafNodeWithChunks(leafChunks))
	}

	nodes := leaves
	for len(nodes) > 1 {
		var parents []*Node
		for i := 0; i < len(nodes); i += MaxChildren {
			end := i + MaxChildren
			if end > len(nodes) {
				end = len(nodes)
			}
			children := make([]*Node, end-i)
			copy(children, nodes[i:end])
			parents = append(parents, newInternalNode(children))
		}
		nodes = parents
	}
	return Rope{root: nodes[0]}
}

// Len returns the total byte length.
func (r Rope) Len() int {
	if r.root == nil {
		return 0
	}
	return r.root.Len()
}

// Measure returns the aggregate measure of the whole rope under m,
// read from the cached root summary.
func (r Rope) Measure(m Metric) int {
	if r.root == nil {
		return 0
	}
	return m.Measure(r.root.summary)
}

// Summary returns the cached aggregate measures for the entire rope.
func (r Rope) Summary() Summary {
	if r.root == nil {
		return Summary{Flags: FlagASCII}
	}
	return r.root.summary
}

// IsEmpty returns true if the rope contains no text.
func (r Rope) IsEmpty() bool {
	return r.Len() == 0
}

// String returns the full text. Use sparingly for large ropes.
func (r Rope) String() string {
	if r.root == nil {
		return ""
	}
	var sb strings.Builder
	sb.Grow(r.Len())
	r.root.appendTo(&sb)
	return sb.String()
}

// Slice returns the text in the byte range [start, end), clamped to
// the rope. For a bounds-checked structural substring use Sub.
func (r Rope) Slice(start, end int) string {
	if r.root == nil || start >= end || start < 0 {
		return ""
	}
	return r.root.textInRange(start, end)
}

// Sub returns the rope covering [start, end) as a new rope sharing
// structure with the source. Implemented as two splits plus discard.
func (r Rope) Sub(start, end int) (Rope, error) {
	if start < 0 || end > r.Len() || start > end {
		return Rope{}, boundsErr(start, r.Len())
	}
	if start == end {
		return New(), nil
	}
	_, right := r.Split(start)
	mid, _ := right.Split(end - start)
	return mid, nil
}

// ByteAt returns the byte at the given offset.
func (r Rope) ByteAt(offset int) (byte, bool) {
	if r.root == nil || offset < 0 || offset >= r.Len() {
		return 0, false
	}

	node := r.root
	for !node.IsLeaf() {
		idx, childOffset := node.findChildByOffset(offset)
		node = node.children[idx]
		offset = childOffset
	}
	for _, chunk := range node.chunks {
		if offset < chunk.Len() {
			return chunk.String()[offset], true
		}
		offset -= chunk.Len()
	}
	return 0, false
}

// Insert inserts text at the given byte offset. The offset must be in
// range and on a code point boundary.
func (r Rope) Insert(offset int, text string) (Rope, error) {
	if offset < 0 || offset > r.Len() {
		return Rope{}, boundsErr(offset, r.Len())
	}
	if b, ok := r.ByteAt(offset); ok && !isUTF8Start(b) {
		return Rope{}, boundaryErr(offset, r.Len(), Runes)
	}
	if len(text) == 0 {
		return r, nil
	}
	if r.root == nil || r.Len() == 0 {
		return FromString(text), nil
	}
	if offset == 0 {
		return FromString(text).Concat(r), nil
	}
	if offset == r.Len() {
		return r.Concat(FromString(text)), nil
	}

	left, right := r.Split(offset)
	return left.Concat(FromString(text)).Concat(right), nil
}

// Delete removes text in the byte range [start, end).
func (r Rope) Delete(start, end int) (Rope, error) {
	if start < 0 || end > r.Len() || start > end {
		return Rope{}, boundsErr(start, r.Len())
	}
	if start == end {
		return r, nil
	}
	if start == 0 && end == r.Len() {
		return New(), nil
	}
	if start == 0 {
		_, right := r.Split(end)
		return right, nil
	}
	if end == r.Len() {
		left, _ := r.Split(start)
		return left, nil
	}

	left, temp := r.Split(start)
	_, right := temp.Split(end - start)
	return left.Concat(right), nil
}

// Split splits the rope at a byte offset, clamping out-of-range
// values. Left holds [0, offset), right holds [offset, end).
func (r Rope) Split(offset int) (Rope, Rope) {
	if r.root == nil || offset <= 0 {
		return New(), r
	}
	if offset >= r.Len() {
		return r, New()
	}
	leftRoot, rightRoot := r.root.split(offset)
	return Rope{root: leftRoot}, Rope{root: rightRoot}
}

// SplitAt splits the rope at a byte offset that must be a trailing
// boundary of the given metric; any other position is a BoundsError.
// For atomic metrics this is total over all code point boundaries.
func (r Rope) SplitAt(offset int, m Metric) (Rope, Rope, error) {
	if offset < 0 || offset > r.Len() {
		return Rope{}, Rope{}, boundsErr(offset, r.Len())
	}
	if offset != 0 && offset != r.Len() {
		c := NewCursorAt(r, offset)
		if !c.IsBoundary(m, Trailing) {
			return Rope{}, Rope{}, boundaryErr(offset, r.Len(), m)
		}
	}
	left, right := r.Split(offset)
	return left, right, nil
}

// Concat concatenates two ropes into a new one; both inputs remain
// valid and share structure with the result.
func (r Rope) Concat(other Rope) Rope {
	if r.root == nil || r.Len() == 0 {
		return other
	}
	if other.root == nil || other.Len() == 0 {
		return r
	}
	return Rope{root: concat(r.root, other.root)}
}

// Count returns the measure of the prefix [0, offset) under m,
// computed in O(log n) from cached child summaries plus one partial
// chunk scan.
func (r Rope) Count(m Metric, offset int) (int, error) {
	if offset < 0 || offset > r.Len() {
		return 0, boundsErr(offset, r.Len())
	}
	if r.root == nil || offset == 0 {
		return 0, nil
	}
	if offset == r.Len() {
		return m.Measure(r.root.summary), nil
	}

	total := 0
	node := r.root
	for !node.IsLeaf() {
		idx, childOffset := node.findChildByOffset(offset)
		for i := 0; i < idx; i++ {
			total += m.Measure(node.childSummaries[i])
		}
		node = node.children[idx]
		offset = childOffset
	}
	for _, chunk := range node.chunks {
		if offset >= chunk.Len() {
			total += m.Measure(chunk.Summary())
			offset -= chunk.Len()
			continue
		}
		total += m.MeasureText(chunk.String()[:offset])
		break
	}
	return total, nil
}

// CountBase returns the byte offset of the nth trailing boundary of m:
// the smallest offset whose prefix measures n. CountBase(Lines, k) is
// the start of line k.
func (r Rope) CountBase(m Metric, n int) (int, error) {
	if n < 0 || r.root == nil || n > m.Measure(r.root.summary) {
		return 0, boundsErr(n, r.Measure(m))
	}
	if n == 0 {
		return 0, nil
	}

	offset := 0
	remaining := n
	node := r.root
	for !node.IsLeaf() {
		descended := false
		for i, cs := range node.childSummaries {
			measure := m.Measure(cs)
			if measure >= remaining {
				node = node.children[i]
				descended = true
				break
			}
			remaining -= measure
			offset += cs.Bytes
			_ = i
		}
		if !descended {
			return 0, boundsErr(n, r.Measure(m))
		}
	}

	for _, chunk := range node.chunks {
		measure := m.Measure(chunk.Summary())
		if measure < remaining {
			remaining -= measure
			offset += chunk.Len()
			continue
		}
		pos := 0
		for remaining > 0 {
			next, ok := m.Next(chunk.String(), pos, Trailing)
			if !ok {
				return 0, boundsErr(n, r.Measure(m))
			}
			// A step can span more than one unit when units have no
			// interior boundary, e.g. an astral code point under UTF-16.
			remaining -= m.MeasureText(chunk.String()[pos:next])
			pos = next
		}
		if remaining < 0 {
			return 0, boundaryErr(n, r.Measure(m), m)
		}
		return offset + pos, nil
	}
	return 0, boundsErr(n, r.Measure(m))
}

// LineCount returns the number of lines (newlines + 1).
func (r Rope) LineCount() int {
	return r.Measure(Lines) + 1
}

// LineOfOffset returns the 0-indexed line containing the byte offset.
func (r Rope) LineOfOffset(offset int) (int, error) {
	return r.Count(Lines, offset)
}

// OffsetOfLine returns the byte offset of the start of the given line.
func (r Rope) OffsetOfLine(line int) (int, error) {
	if line < 0 || line >= r.LineCount() {
		return 0, boundsErr(line, r.LineCount())
	}
	return r.CountBase(Lines, line)
}

// LineEndOffset returns the byte offset of the end of the given line,
// not including the newline.
func (r Rope) LineEndOffset(line int) (int, error) {
	if line < 0 || line >= r.LineCount() {
		return 0, boundsErr(line, r.LineCount())
	}
	if line == r.LineCount()-1 {
		return r.Len(), nil
	}
	nextStart, err := r.OffsetOfLine(line + 1)
	if err != nil {
		return 0, err
	}
	return nextStart - 1, nil
}

// LineText returns the text of the given line, without the newline.
func (r Rope) LineText(line int) (string, error) {
	start, err := r.OffsetOfLine(line)
	if err != nil {
		return "", err
	}
	end, err := r.LineEndOffset(line)
	if err != nil {
		return "", err
	}
	return r.Slice(start, end), nil
}

// Height returns the height of the rope tree, for balance checks.
func (r Rope) Height() int {
	if r.root == nil {
		return 0
	}
	return int(r.root.height) + 1
}

// Equals returns true if two ropes contain the same text. This
// compares content, not structure.
func (r Rope) Equals(other Rope) bool {
	if r.Len() != other.Len() {
		return false
	}
	if r.Summary() != other.Summary() {
		return false
	}
	return r.String() == other.String()
}
