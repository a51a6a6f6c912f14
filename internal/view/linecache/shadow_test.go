package linecache

import (
	"testing"

	"github.com/plumedit/plume/internal/view"
)

func TestShadowStartsEmpty(t *testing.T) {
	s := NewShadow()
	if s.Len() != 0 {
		t.Errorf("Len = %d, want 0", s.Len())
	}
	if s.Held(0) {
		t.Error("fresh client holds nothing")
	}
}

func TestShadowFollowsOps(t *testing.T) {
	s := NewShadow()
	s.ApplyOps([]Op{Ins(lines("a", "b", "c", "d"))})
	if s.Len() != 4 {
		t.Fatalf("Len = %d, want 4", s.Len())
	}
	for i := 0; i < 4; i++ {
		if !s.Held(i) {
			t.Errorf("line %d should be held after ins", i)
		}
	}

	// Copy keeps validity, invalidate clears it, skip drops lines.
	s.ApplyOps([]Op{Copy(2), Skip(1), Invalidate(1), Copy(1)})
	if s.Len() != 4 {
		t.Fatalf("Len = %d, want 4", s.Len())
	}
	if !s.Held(0) || !s.Held(1) || s.Held(2) || !s.Held(3) {
		t.Errorf("validity pattern wrong: %v %v %v %v",
			s.Held(0), s.Held(1), s.Held(2), s.Held(3))
	}
}

func TestShadowUpdateKeepsText(t *testing.T) {
	s := NewShadow()
	s.ApplyOps([]Op{Ins(lines("a")), Invalidate(1)})
	s.ApplyOps([]Op{Update([]view.Line{{Text: "a"}, {Text: "b"}})})
	if !s.Held(0) {
		t.Error("updated valid line stays held")
	}
	if s.Held(1) {
		t.Error("updating an invalid line cannot make it held")
	}
}

func TestShadowMirrorsDecoder(t *testing.T) {
	// Advancing the shadow across a stream must agree with what the
	// decoder contract does to an actual cache.
	old := lines("a", "b", "c", "d", "e")
	new := lines("a", "x", "c", "e")

	s := NewShadow()
	seed := Diff(nil, old, func(int) bool { return false })
	s.ApplyOps(seed)

	cache, err := Apply(nil, seed)
	if err != nil {
		t.Fatal(err)
	}

	ops := Diff(old, new, s.Held)
	s.ApplyOps(ops)
	cache, err = Apply(cache, ops)
	if err != nil {
		t.Fatal(err)
	}

	if s.Len() != len(cache) {
		t.Fatalf("shadow len %d, cache len %d", s.Len(), len(cache))
	}
	for i := range cache {
		if s.Held(i) != cache[i].Valid {
			t.Errorf("line %d: shadow held %v, cache valid %v", i, s.Held(i), cache[i].Valid)
		}
	}
}

func TestShadowPartialInvalidate(t *testing.T) {
	s := NewShadow()
	s.ApplyOps([]Op{Ins(lines("a", "b", "c", "d"))})
	s.PartialInvalidate(1, 3, StylesValid|CursorValid)
	if v := s.ValidityAt(1); v != TextValid {
		t.Errorf("ValidityAt(1) = %v, want TextValid", v)
	}
	if v := s.ValidityAt(0); v != AllValid {
		t.Errorf("ValidityAt(0) = %v, want AllValid", v)
	}
	if v := s.ValidityAt(3); v != AllValid {
		t.Errorf("ValidityAt(3) = %v, want AllValid", v)
	}
}

func TestShadowEdit(t *testing.T) {
	s := NewShadow()
	s.ApplyOps([]Op{Ins(lines("a", "b", "c", "d"))})

	// Replace lines [1, 3) with three unknown lines.
	s.Edit(1, 3, 3)
	if s.Len() != 5 {
		t.Fatalf("Len = %d, want 5", s.Len())
	}
	wantHeld := []bool{true, false, false, false, true}
	for i, want := range wantHeld {
		if s.Held(i) != want {
			t.Errorf("Held(%d) = %v, want %v", i, s.Held(i), want)
		}
	}
}
