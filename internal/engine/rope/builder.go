package rope

import "strings"

// Builder constructs a rope incrementally. Appending through a Builder
// batches text into full chunks before any tree is built, which beats
// repeated Concat for large inputs.
//
// The zero value is ready to use.
type Builder struct {
	chunks  []Chunk
	pending strings.Builder
}

// WriteString appends text to the builder.
func (b *Builder) WriteString(s string) {
	if len(s) == 0 {
		return
	}
	b.pending.WriteString(s)
	if b.pending.Len() >= MaxChunkSize*MaxChunksPerLeaf {
		b.flush(false)
	}
}

// flush converts pending text into chunks. Unless final, it holds back
// a tail shorter than MaxChunkSize so a chunk never ends mid cluster
// that later appends would extend.
func (b *Builder) flush(final bool) {
	text := b.pending.String()
	b.pending.Reset()
	if !final && len(text) > MaxChunkSize {
		keep := len(text) - MaxChunkSize
		keep = graphemeBoundaryAtOrAfter(text, keep)
		b.chunks = append(b.chunks, splitIntoChunks(text[:keep])...)
		b.pending.WriteString(text[keep:])
		return
	}
	b.chunks = append(b.chunks, splitIntoChunks(text)...)
}

// Build returns the accumulated rope and resets the builder.
func (b *Builder) Build() Rope {
	b.flush(true)
	chunks := b.chunks
	b.chunks = nil
	if len(chunks) == 0 {
		return New()
	}
	return buildFromChunks(chunks)
}

// FromLines builds a rope by joining lines with newlines.
func FromLines(lines []string) Rope {
	var b Builder
	for i, line := range lines {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(line)
	}
	return b.Build()
}
