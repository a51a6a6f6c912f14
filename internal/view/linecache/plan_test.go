package linecache

import "testing"

func TestPlanSmallDocumentAllRendered(t *testing.T) {
	p := NewPlan(10, 0, 10, PreserveExtent)
	first, last := p.RenderRange()
	if first != 0 || last != 10 {
		t.Errorf("render range [%d, %d), want [0, 10)", first, last)
	}
}

func TestPlanBands(t *testing.T) {
	total := 10000
	p := NewPlan(total, 4000, 4050, PreserveExtent)

	cases := []struct {
		line int
		want Tactic
	}{
		{0, Discard},
		{4000 - PreserveExtent - 1, Discard},
		{4000 - PreserveExtent, Preserve},
		{3999, Preserve},
		{4000, Render},
		{4049, Render},
		{4050, Preserve},
		{4050 + PreserveExtent - 1, Preserve},
		{4050 + PreserveExtent, Discard},
		{total - 1, Discard},
	}
	for _, c := range cases {
		if got := p.TacticAt(c.line); got != c.want {
			t.Errorf("TacticAt(%d) = %v, want %v", c.line, got, c.want)
		}
	}

	first, last := p.RenderRange()
	if first != 4000 || last != 4050 {
		t.Errorf("render range [%d, %d), want [4000, 4050)", first, last)
	}
}

func TestPlanClampsWindow(t *testing.T) {
	p := NewPlan(5, -3, 99, PreserveExtent)
	first, last := p.RenderRange()
	if first != 0 || last != 5 {
		t.Errorf("render range [%d, %d), want [0, 5)", first, last)
	}
	if got := p.TacticAt(99); got != Discard {
		t.Errorf("TacticAt out of range = %v, want Discard", got)
	}
}

func TestPlanCustomExtent(t *testing.T) {
	p := NewPlan(100, 40, 50, 5)
	cases := []struct {
		line int
		want Tactic
	}{
		{34, Discard},
		{35, Preserve},
		{40, Render},
		{49, Render},
		{50, Preserve},
		{54, Preserve},
		{55, Discard},
	}
	for _, c := range cases {
		if got := p.TacticAt(c.line); got != c.want {
			t.Errorf("TacticAt(%d) = %v, want %v", c.line, got, c.want)
		}
	}
}

func TestPlanCoverage(t *testing.T) {
	p := NewPlan(5000, 100, 160, PreserveExtent)
	total := 0
	for _, sp := range p.Spans {
		if sp.N <= 0 {
			t.Errorf("span with non-positive n: %+v", sp)
		}
		total += sp.N
	}
	if total != 5000 {
		t.Errorf("plan covers %d lines, want 5000", total)
	}
}
