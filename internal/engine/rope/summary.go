package rope

import "github.com/rivo/uniseg"

// Summary holds the cached aggregate measures for a span of text.
// It is the monoid carried by every tree node: Add combines the
// summaries of adjacent spans, Zero is the identity.
//
// All counts except Graphemes are additive under concatenation.
// Graphemes is subadditive: concatenating two spans may join a cluster
// across the seam, in which case the sum overcounts by one per seam.
// The chunk splitter avoids creating such seams (see splitIntoChunks),
// so in practice the cached count is exact for ropes built through the
// normal construction paths.
type Summary struct {
	// Bytes is the UTF-8 code unit count, the base unit for addressing.
	Bytes int

	// Runes is the Unicode code point count.
	Runes int

	// UTF16 is the UTF-16 code unit count.
	UTF16 int

	// Newlines is the number of '\n' characters.
	Newlines int

	// Graphemes is the extended grapheme cluster count.
	Graphemes int

	// Flags record text properties used for fast paths.
	Flags TextFlags
}

// TextFlags indicate text properties for optimization fast paths.
type TextFlags uint8

const (
	// FlagASCII indicates all bytes are ASCII (< 128).
	FlagASCII TextFlags = 1 << iota

	// FlagHasNewlines indicates the span contains '\n'.
	FlagHasNewlines
)

// Add combines two summaries (monoid operation).
func (s Summary) Add(other Summary) Summary {
	if s.Bytes == 0 {
		return other
	}
	if other.Bytes == 0 {
		return s
	}

	result := Summary{
		Bytes:     s.Bytes + other.Bytes,
		Runes:     s.Runes + other.Runes,
		UTF16:     s.UTF16 + other.UTF16,
		Newlines:  s.Newlines + other.Newlines,
		Graphemes: s.Graphemes + other.Graphemes,
		Flags:     s.Flags & other.Flags & FlagASCII,
	}
	if s.Flags&FlagHasNewlines != 0 || other.Flags&FlagHasNewlines != 0 {
		result.Flags |= FlagHasNewlines
	}
	return result
}

// Zero returns the identity element for the summary monoid.
func (Summary) Zero() Summary {
	return Summary{Flags: FlagASCII}
}

// IsZero returns true if this is the identity summary.
func (s Summary) IsZero() bool {
	return s.Bytes == 0
}

// ComputeSummary calculates the measures for a string.
func ComputeSummary(s string) Summary {
	if len(s) == 0 {
		return Summary{Flags: FlagASCII}
	}

	sum := Summary{
		Bytes: len(s),
		Flags: FlagASCII,
	}

	for _, r := range s {
		sum.Runes++
		if r <= 0xFFFF {
			sum.UTF16++
		} else {
			sum.UTF16 += 2 // surrogate pair
		}
		if r > 127 {
			sum.Flags &^= FlagASCII
		}
		if r == '\n' {
			sum.Newlines++
			sum.Flags |= FlagHasNewlines
		}
	}

	if sum.Flags&FlagASCII != 0 {
		// Every ASCII byte is its own cluster except CRLF, which the
		// loop below would count as one. Fast path only when no CR.
		sum.Graphemes = len(s)
		for i := 0; i < len(s); i++ {
			if s[i] == '\r' {
				sum.Graphemes = countGraphemes(s)
				break
			}
		}
		return sum
	}

	sum.Graphemes = countGraphemes(s)
	return sum
}

func countGraphemes(s string) int {
	n := 0
	state := -1
	for len(s) > 0 {
		_, rest, _, newState := uniseg.StepString(s, state)
		n++
		state = newState
		s = rest
	}
	return n
}

// CountNewlines returns the number of '\n' bytes in a string.
func CountNewlines(s string) int {
	count := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			count++
		}
	}
	return count
}

// isUTF8Start returns true if the byte begins a UTF-8 sequence.
func isUTF8Start(b byte) bool {
	return b&0xC0 != 0x80
}

// utf16Len returns the number of UTF-16 code units needed for r.
func utf16Len(r rune) int {
	if r <= 0xFFFF {
		return 1
	}
	return 2
}
