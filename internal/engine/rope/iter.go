package rope

// ChunkIterator walks the rope's leaf chunks in order without
// materializing the full text.
type ChunkIterator struct {
	stack []iterFrame
}

type iterFrame struct {
	node *Node
	idx  int
}

// Chunks returns an iterator over the rope's chunks.
func (r Rope) Chunks() *ChunkIterator {
	it := &ChunkIterator{}
	if r.root != nil && r.root.Len() > 0 {
		it.stack = append(it.stack, iterFrame{node: r.root})
	}
	return it
}

// Next returns the next chunk's text, or false when exhausted.
func (it *ChunkIterator) Next() (string, bool) {
	for len(it.stack) > 0 {
		top := &it.stack[len(it.stack)-1]
		if top.node.IsLeaf() {
			if top.idx < len(top.node.chunks) {
				chunk := top.node.chunks[top.idx]
				top.idx++
				return chunk.String(), true
			}
			it.stack = it.stack[:len(it.stack)-1]
			continue
		}
		if top.idx < len(top.node.children) {
			child := top.node.children[top.idx]
			top.idx++
			it.stack = append(it.stack, iterFrame{node: child})
			continue
		}
		it.stack = it.stack[:len(it.stack)-1]
	}
	return "", false
}

// LineIterator walks lines in order. The final line is yielded even
// when empty, so a rope ending in '\n' still reports its trailing
// empty line.
type LineIterator struct {
	r    Rope
	line int
}

// LineIter returns an iterator over the rope's lines.
func (r Rope) LineIter() *LineIterator {
	return &LineIterator{r: r}
}

// Next returns the next line's text without its newline, or false when
// exhausted.
func (it *LineIterator) Next() (string, bool) {
	if it.line >= it.r.LineCount() {
		return "", false
	}
	text, err := it.r.LineText(it.line)
	if err != nil {
		return "", false
	}
	it.line++
	return text, true
}

// Line returns the index of the line Next would yield.
func (it *LineIterator) Line() int {
	return it.line
}
