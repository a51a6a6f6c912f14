package rope

import (
	"strings"

	"github.com/rivo/uniseg"
)

// Side selects which flavor of boundary a query refers to.
//
// A position is a trailing boundary when the span immediately before it
// has nonzero measure; it is a leading boundary when the span
// immediately after it does. For atomic metrics the two coincide.
type Side uint8

const (
	// Trailing boundaries follow a measured unit. The start of the
	// document is always a trailing boundary.
	Trailing Side = iota

	// Leading boundaries precede a measured unit. The end of the
	// document is always a leading boundary.
	Leading
)

// Metric measures spans of text as nonnegative integers and locates
// boundaries with respect to that measurement. The measure of a
// concatenation never exceeds the sum of the parts' measures;
// violating that is a programming error, not a recoverable condition.
//
// The per-string methods operate on leaf fragments. Offsets are byte
// offsets into the fragment; callers are responsible for providing
// enough surrounding context for context-sensitive metrics (see
// Cursor.boundaryWindow).
type Metric interface {
	// Name identifies the metric on error values and in logs.
	Name() string

	// Measure reads the metric's aggregate out of a cached summary.
	Measure(sum Summary) int

	// MeasureText measures a raw fragment directly.
	MeasureText(s string) int

	// IsBoundary reports whether off is a boundary of the given side
	// within s. Document-edge rules are applied by the caller.
	IsBoundary(s string, off int, side Side) bool

	// Next returns the first boundary strictly after off within s,
	// which may be len(s). Returns false if there is none.
	Next(s string, off int, side Side) (int, bool)

	// Prev returns the last boundary strictly before off within s,
	// which may be 0. Returns false if there is none.
	Prev(s string, off int, side Side) (int, bool)

	// Atomic reports whether every non-empty span has nonzero measure,
	// making every valid position a boundary on both sides.
	Atomic() bool
}

// The closed set of metrics registered for every tree. The set is fixed
// at construction time; Summary caches the aggregate for each.
var (
	// Bytes counts UTF-8 code units. Atomic, additive, the base unit.
	Bytes Metric = bytesMetric{}

	// Runes counts Unicode code points. Atomic, additive.
	Runes Metric = runesMetric{}

	// UTF16 counts UTF-16 code units. Additive; boundaries coincide
	// with rune boundaries since surrogate halves have no byte offset.
	UTF16 Metric = utf16Metric{}

	// Lines counts '\n' characters. Additive but not atomic: trailing
	// boundaries sit after each newline, leading boundaries before.
	Lines Metric = linesMetric{}

	// Graphemes counts extended grapheme clusters. Atomic and
	// subadditive: clusters can join across concatenation seams.
	Graphemes Metric = graphemesMetric{}
)

// Registered returns the metric set every tree carries.
func Registered() []Metric {
	return []Metric{Bytes, Runes, UTF16, Lines, Graphemes}
}

// MetricByName looks up a registered metric.
func MetricByName(name string) (Metric, bool) {
	for _, m := range Registered() {
		if m.Name() == name {
			return m, true
		}
	}
	return nil, false
}

type bytesMetric struct{}

func (bytesMetric) Name() string             { return "bytes" }
func (bytesMetric) Measure(sum Summary) int  { return sum.Bytes }
func (bytesMetric) MeasureText(s string) int { return len(s) }
func (bytesMetric) Atomic() bool             { return true }

func (bytesMetric) IsBoundary(s string, off int, _ Side) bool {
	return off >= 0 && off <= len(s)
}

func (bytesMetric) Next(s string, off int, _ Side) (int, bool) {
	if off+1 > len(s) {
		return 0, false
	}
	return off + 1, true
}

func (bytesMetric) Prev(s string, off int, _ Side) (int, bool) {
	if off-1 < 0 {
		return 0, false
	}
	return off - 1, true
}

type runesMetric struct{}

func (runesMetric) Name() string             { return "runes" }
func (runesMetric) Measure(sum Summary) int  { return sum.Runes }
func (runesMetric) MeasureText(s string) int { return ComputeSummary(s).Runes }
func (runesMetric) Atomic() bool             { return true }

func (runesMetric) IsBoundary(s string, off int, _ Side) bool {
	if off == 0 || off == len(s) {
		return true
	}
	return isUTF8Start(s[off])
}

func (runesMetric) Next(s string, off int, _ Side) (int, bool) {
	for p := off + 1; p <= len(s); p++ {
		if p == len(s) || isUTF8Start(s[p]) {
			return p, true
		}
	}
	return 0, false
}

func (runesMetric) Prev(s string, off int, _ Side) (int, bool) {
	for p := off - 1; p >= 0; p-- {
		if p == 0 || isUTF8Start(s[p]) {
			return p, true
		}
	}
	return 0, false
}

type utf16Metric struct{}

func (utf16Metric) Name() string             { return "utf16" }
func (utf16Metric) Measure(sum Summary) int  { return sum.UTF16 }
func (utf16Metric) MeasureText(s string) int { return ComputeSummary(s).UTF16 }
func (utf16Metric) Atomic() bool             { return true }

func (utf16Metric) IsBoundary(s string, off int, side Side) bool {
	return runesMetric{}.IsBoundary(s, off, side)
}

func (utf16Metric) Next(s string, off int, side Side) (int, bool) {
	return runesMetric{}.Next(s, off, side)
}

func (utf16Metric) Prev(s string, off int, side Side) (int, bool) {
	return runesMetric{}.Prev(s, off, side)
}

type linesMetric struct{}

func (linesMetric) Name() string             { return "lines" }
func (linesMetric) Measure(sum Summary) int  { return sum.Newlines }
func (linesMetric) MeasureText(s string) int { return CountNewlines(s) }
func (linesMetric) Atomic() bool             { return false }

func (linesMetric) IsBoundary(s string, off int, side Side) bool {
	if side == Trailing {
		return off > 0 && s[off-1] == '\n'
	}
	return off < len(s) && s[off] == '\n'
}

func (linesMetric) Next(s string, off int, side Side) (int, bool) {
	if side == Trailing {
		if off >= len(s) {
			return 0, false
		}
		idx := strings.IndexByte(s[off:], '\n')
		if idx < 0 {
			return 0, false
		}
		return off + idx + 1, true
	}
	if off+1 >= len(s) {
		return 0, false
	}
	idx := strings.IndexByte(s[off+1:], '\n')
	if idx < 0 {
		return 0, false
	}
	return off + 1 + idx, true
}

func (linesMetric) Prev(s string, off int, side Side) (int, bool) {
	if side == Trailing {
		if off < 2 {
			return 0, false
		}
		idx := strings.LastIndexByte(s[:off-1], '\n')
		if idx < 0 {
			return 0, false
		}
		return idx + 1, true
	}
	if off < 1 {
		return 0, false
	}
	idx := strings.LastIndexByte(s[:off], '\n')
	if idx < 0 {
		return 0, false
	}
	return idx, true
}

type graphemesMetric struct{}

func (graphemesMetric) Name() string             { return "graphemes" }
func (graphemesMetric) Measure(sum Summary) int  { return sum.Graphemes }
func (graphemesMetric) MeasureText(s string) int { return countGraphemes(s) }
func (graphemesMetric) Atomic() bool             { return true }

func (graphemesMetric) IsBoundary(s string, off int, _ Side) bool {
	if off == 0 || off == len(s) {
		return true
	}
	pos := 0
	state := -1
	rest := s
	for pos < off {
		var cluster string
		cluster, rest, _, state = uniseg.StepString(rest, state)
		pos += len(cluster)
	}
	return pos == off
}

func (graphemesMetric) Next(s string, off int, _ Side) (int, bool) {
	pos := 0
	state := -1
	rest := s
	for pos <= off {
		if len(rest) == 0 {
			return 0, false
		}
		var cluster string
		cluster, rest, _, state = uniseg.StepString(rest, state)
		pos += len(cluster)
	}
	return pos, true
}

func (graphemesMetric) Prev(s string, off int, _ Side) (int, bool) {
	if off <= 0 {
		return 0, false
	}
	prev := 0
	pos := 0
	state := -1
	rest := s
	for pos < off {
		prev = pos
		if len(rest) == 0 {
			break
		}
		var cluster string
		cluster, rest, _, state = uniseg.StepString(rest, state)
		pos += len(cluster)
	}
	if pos < off {
		// off is past the fragment; the last boundary seen wins.
		return pos, true
	}
	return prev, true
}
