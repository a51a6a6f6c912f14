package rope

import "github.com/rivo/uniseg"

// Chunk size constants control the granularity of text storage. The
// min/max window bounds tree depth against per-chunk overhead.
const (
	// MinChunkSize is the minimum bytes per chunk (except the last).
	MinChunkSize = 128

	// MaxChunkSize is the maximum bytes per chunk before splitting.
	MaxChunkSize = 256

	// TargetChunkSize is the preferred chunk size when building.
	TargetChunkSize = (MinChunkSize + MaxChunkSize) / 2
)

// Chunk is a bounded string stored in leaf nodes, immutable once
// created, with its summary computed eagerly.
type Chunk struct {
	data    string
	summary Summary
}

// NewChunk creates a chunk from a string.
func NewChunk(s string) Chunk {
	return Chunk{
		data:    s,
		summary: ComputeSummary(s),
	}
}

// String returns the chunk's text.
func (c Chunk) String() string {
	return c.data
}

// Summary returns the chunk's precomputed measures.
func (c Chunk) Summary() Summary {
	return c.summary
}

// Len returns the byte length of the chunk.
func (c Chunk) Len() int {
	return len(c.data)
}

// IsEmpty returns true if the chunk contains no text.
func (c Chunk) IsEmpty() bool {
	return len(c.data) == 0
}

// Split splits a chunk at a byte offset. The offset must be at a valid
// UTF-8 boundary.
func (c Chunk) Split(offset int) (Chunk, Chunk) {
	if offset <= 0 {
		return Chunk{}, c
	}
	if offset >= len(c.data) {
		return c, Chunk{}
	}
	return NewChunk(c.data[:offset]), NewChunk(c.data[offset:])
}

// splitIntoChunks splits a string into chunks of appropriate size.
// Split points prefer a position just after a newline, and otherwise
// fall on a grapheme cluster boundary so that per-chunk cluster counts
// stay exact under summary addition.
func splitIntoChunks(s string) []Chunk {
	if len(s) == 0 {
		return nil
	}
	if len(s) <= MaxChunkSize {
		return []Chunk{NewChunk(s)}
	}

	var chunks []Chunk
	remaining := s
	for len(remaining) > 0 {
		if len(remaining) <= MaxChunkSize {
			chunks = append(chunks, NewChunk(remaining))
			break
		}
		splitPoint := findSplitBoundary(remaining, TargetChunkSize)
		chunks = append(chunks, NewChunk(remaining[:splitPoint]))
		remaining = remaining[splitPoint:]
	}
	return chunks
}

// findSplitBoundary finds a split point near target: just after a
// nearby newline if one exists, else the nearest grapheme cluster
// boundary at or after target.
func findSplitBoundary(s string, target int) int {
	if target >= len(s) {
		return len(s)
	}
	if target <= 0 {
		return 0
	}

	searchStart := target - MinChunkSize/4
	if searchStart < 0 {
		searchStart = 0
	}
	searchEnd := target + MinChunkSize/4
	if searchEnd > len(s) {
		searchEnd = len(s)
	}
	for i := target; i < searchEnd; i++ {
		if s[i] == '\n' {
			return i + 1
		}
	}
	for i := target - 1; i >= searchStart; i-- {
		if s[i] == '\n' {
			return i + 1
		}
	}

	return graphemeBoundaryAtOrAfter(s, target)
}

// graphemeBoundaryAtOrAfter returns the first grapheme cluster
// boundary at or after target.
func graphemeBoundaryAtOrAfter(s string, target int) int {
	// Stepping needs cluster context; start a little before the target
	// at a plain ASCII byte where cluster state is unambiguous.
	start := target - MinChunkSize/2
	if start < 0 {
		start = 0
	}
	for start > 0 && (s[start] >= 0x80 || s[start-1] >= 0x80 || (s[start-1] == '\r' && s[start] == '\n')) {
		start--
	}

	pos := start
	state := -1
	rest := s[start:]
	for pos < target && len(rest) > 0 {
		var cluster string
		cluster, rest, _, state = uniseg.StepString(rest, state)
		pos += len(cluster)
	}
	if pos < target {
		return len(s)
	}
	return pos
}
