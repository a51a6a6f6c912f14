package linecache

// PreserveExtent is the default width of the preserve band: how many
// lines beyond the render window stay in the client cache so small
// scrolls need no round trip.
const PreserveExtent = 1000

// Tactic is the per-line synchronization decision.
type Tactic uint8

const (
	// Discard lets far-away lines fall out of the client cache.
	Discard Tactic = iota

	// Preserve keeps existing cache content without refreshing it.
	Preserve

	// Render keeps the line fully fresh: text and annotations.
	Render
)

// PlanSpan is a run of lines with one tactic.
type PlanSpan struct {
	N      int
	Tactic Tactic
}

// RenderPlan decides, per line of the new document, how much effort
// the encoder spends: lines in the scroll window render, a band around
// it is preserved, and the rest is discarded.
type RenderPlan struct {
	Spans []PlanSpan
}

// NewPlan builds the plan for a document of totalLines with a scroll
// window [first, last), window bounds already widened by slop. extent
// is the preserve band width on each side of the window.
func NewPlan(totalLines, first, last, extent int) RenderPlan {
	if first < 0 {
		first = 0
	}
	if last > totalLines {
		last = totalLines
	}
	if first > last {
		first = last
	}
	if extent < 0 {
		extent = 0
	}

	preserveStart := first - extent
	if preserveStart < 0 {
		preserveStart = 0
	}
	preserveEnd := last + extent
	if preserveEnd > totalLines {
		preserveEnd = totalLines
	}

	var p RenderPlan
	p.add(preserveStart, Discard)
	p.add(first-preserveStart, Preserve)
	p.add(last-first, Render)
	p.add(preserveEnd-last, Preserve)
	p.add(totalLines-preserveEnd, Discard)
	return p
}

func (p *RenderPlan) add(n int, t Tactic) {
	if n <= 0 {
		return
	}
	if len(p.Spans) > 0 && p.Spans[len(p.Spans)-1].Tactic == t {
		p.Spans[len(p.Spans)-1].N += n
		return
	}
	p.Spans = append(p.Spans, PlanSpan{N: n, Tactic: t})
}

// TacticAt returns the tactic for line i; out of range is Discard.
func (p RenderPlan) TacticAt(i int) Tactic {
	for _, sp := range p.Spans {
		if i < sp.N {
			return sp.Tactic
		}
		i -= sp.N
	}
	return Discard
}

// RenderRange returns the hull [first, last) of lines whose tactic is
// Render.
func (p RenderPlan) RenderRange() (first, last int) {
	pos := 0
	first, last = -1, -1
	for _, sp := range p.Spans {
		if sp.Tactic == Render {
			if first < 0 {
				first = pos
			}
			last = pos + sp.N
		}
		pos += sp.N
	}
	if first < 0 {
		return 0, 0
	}
	return first, last
}
