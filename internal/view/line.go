// Package view derives the line-oriented presentation of a document
// revision: line text, cursor positions, and style spans, in the form
// the synchronization protocol ships to front-ends.
//
// All offsets here and on the wire are UTF-8 code units (bytes).
package view

// Line is one logical line of the derived view. Cursor offsets are
// strictly increasing byte offsets into Text; style spans are in-line
// with absolute starts.
type Line struct {
	Text    string
	Cursors []int
	Styles  []StyleSpan
}

// StyleSpan is a styled range within a single line. Start is a byte
// offset into the line's text, Len is strictly positive, and ID must
// be a registered style.
type StyleSpan struct {
	Start int
	Len   int
	ID    int
}

// Payload is a Line in wire form. Pointer fields distinguish absent
// from explicitly empty: in an ins line, absent cursor/styles mean
// empty; in an update line, an explicit empty array means "remove
// all" while text is never carried.
type Payload struct {
	Text    *string `json:"text,omitempty"`
	Cursors *[]int  `json:"cursor,omitempty"`
	Styles  *[]int  `json:"styles,omitempty"`
}

// InsPayload encodes the line for an ins operation: text always
// present, annotations only when non-empty.
func (l Line) InsPayload() Payload {
	text := l.Text
	p := Payload{Text: &text}
	if len(l.Cursors) > 0 {
		cursors := append([]int(nil), l.Cursors...)
		p.Cursors = &cursors
	}
	if len(l.Styles) > 0 {
		triples := EncodeTriples(l.Styles)
		p.Styles = &triples
	}
	return p
}

// UpdatePayload encodes the line for an update operation: no text,
// annotations always present so an empty array clears them.
func (l Line) UpdatePayload() Payload {
	cursors := append([]int{}, l.Cursors...)
	triples := EncodeTriples(l.Styles)
	if triples == nil {
		triples = []int{}
	}
	return Payload{Cursors: &cursors, Styles: &triples}
}

// SameText reports whether two lines carry identical text, ignoring
// annotations.
func (l Line) SameText(other Line) bool {
	return l.Text == other.Text
}

// SameAnnotations reports whether cursors and styles match.
func (l Line) SameAnnotations(other Line) bool {
	if len(l.Cursors) != len(other.Cursors) || len(l.Styles) != len(other.Styles) {
		return false
	}
	for i := range l.Cursors {
		if l.Cursors[i] != other.Cursors[i] {
			return false
		}
	}
	for i := range l.Styles {
		if l.Styles[i] != other.Styles[i] {
			return false
		}
	}
	return true
}

// EncodeTriples flattens in-line spans to the wire triple list: each
// span contributes (start delta, length, id), where the delta is
// relative to the end of the previous span and may be negative when
// spans overlap.
func EncodeTriples(spans []StyleSpan) []int {
	if len(spans) == 0 {
		return nil
	}
	out := make([]int, 0, len(spans)*3)
	prevEnd := 0
	for _, s := range spans {
		out = append(out, s.Start-prevEnd, s.Len, s.ID)
		prevEnd = s.Start + s.Len
	}
	return out
}

// DecodeTriples expands a wire triple list back to in-line spans,
// validating the §4.6 line-payload rules: the list length is a
// multiple of three and every length is strictly positive.
func DecodeTriples(triples []int) ([]StyleSpan, error) {
	if len(triples)%3 != 0 {
		return nil, errTripleShape(len(triples))
	}
	spans := make([]StyleSpan, 0, len(triples)/3)
	prevEnd := 0
	for i := 0; i < len(triples); i += 3 {
		start := prevEnd + triples[i]
		length := triples[i+1]
		if length <= 0 {
			return nil, errTripleLen(length)
		}
		if start < 0 {
			return nil, errTripleStart(start)
		}
		spans = append(spans, StyleSpan{Start: start, Len: length, ID: triples[i+2]})
		prevEnd = start + length
	}
	return spans, nil
}
