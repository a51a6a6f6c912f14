package delta

import (
	"errors"
	"testing"

	"github.com/plumedit/plume/internal/engine/rope"
)

func mustApply(t *testing.T, d *Delta, text string) string {
	t.Helper()
	result, err := d.Apply(rope.FromString(text))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	return result.String()
}

func TestSimpleEdit(t *testing.T) {
	tests := []struct {
		name       string
		base       string
		start, end int
		text       string
		want       string
	}{
		{"insert at start", "world", 0, 0, "hello ", "hello world"},
		{"insert at end", "hello", 5, 5, "!", "hello!"},
		{"insert middle", "ac", 1, 1, "b", "abc"},
		{"delete", "hello world", 5, 11, "", "hello"},
		{"replace", "hello world", 6, 11, "there", "hello there"},
		{"replace all", "old", 0, 3, "new text", "new text"},
		{"no-op", "same", 2, 2, "", "same"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := SimpleEdit(tt.start, tt.end, tt.text, len(tt.base))
			if err != nil {
				t.Fatalf("SimpleEdit: %v", err)
			}
			if got := mustApply(t, d, tt.base); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
			if d.BaseLen() != len(tt.base) || d.TargetLen() != len(tt.want) {
				t.Errorf("lengths %d→%d, want %d→%d",
					d.BaseLen(), d.TargetLen(), len(tt.base), len(tt.want))
			}
		})
	}
}

func TestSimpleEditOutOfRange(t *testing.T) {
	if _, err := SimpleEdit(3, 9, "x", 5); !errors.Is(err, ErrMalformed) {
		t.Errorf("err = %v, want ErrMalformed", err)
	}
	if _, err := SimpleEdit(4, 2, "x", 5); !errors.Is(err, ErrMalformed) {
		t.Errorf("inverted range err = %v, want ErrMalformed", err)
	}
}

func TestBuilderCoverage(t *testing.T) {
	// Spans must cover the source exactly; over- and under-coverage are
	// both rejected before any revision is touched.
	if _, err := NewBuilder(10).Retain(6).Build(); !errors.Is(err, ErrMalformed) {
		t.Errorf("under-coverage err = %v, want ErrMalformed", err)
	}
	if _, err := NewBuilder(10).Retain(8).Delete(5).Build(); !errors.Is(err, ErrMalformed) {
		t.Errorf("over-coverage err = %v, want ErrMalformed", err)
	}
	if _, err := NewBuilder(10).Retain(-1).Retain(11).Build(); !errors.Is(err, ErrMalformed) {
		t.Errorf("negative retain err = %v, want ErrMalformed", err)
	}
}

func TestApplyWrongLength(t *testing.T) {
	d, _ := SimpleEdit(0, 0, "x", 5)
	if _, err := d.Apply(rope.FromString("too long for this delta")); !errors.Is(err, ErrMalformed) {
		t.Errorf("err = %v, want ErrMalformed", err)
	}
}

func TestNormalization(t *testing.T) {
	// Adjacent same-kind ops merge; an insert moves ahead of an
	// immediately preceding delete. Equal edits built differently must
	// produce identical op sequences.
	d1, err := NewBuilder(10).Retain(2).Delete(3).Insert("xy").Retain(5).Build()
	if err != nil {
		t.Fatal(err)
	}
	d2, err := NewBuilder(10).Retain(1).Retain(1).Insert("x").Insert("y").Delete(2).Delete(1).Retain(5).Build()
	if err != nil {
		t.Fatal(err)
	}
	if d1.String() != d2.String() {
		t.Errorf("normal forms differ: %s vs %s", d1, d2)
	}
	ops := d1.Ops()
	wantKinds := []OpKind{OpRetain, OpInsert, OpDelete, OpRetain}
	if len(ops) != len(wantKinds) {
		t.Fatalf("got %d ops, want %d: %s", len(ops), len(wantKinds), d1)
	}
	for i, k := range wantKinds {
		if ops[i].Kind != k {
			t.Errorf("op %d kind %v, want %v", i, ops[i].Kind, k)
		}
	}
}

func TestSummary(t *testing.T) {
	tests := []struct {
		name                   string
		build                  func() (*Delta, error)
		start, end, newLen int
	}{
		{"replace middle", func() (*Delta, error) {
			return SimpleEdit(3, 7, "xy", 10)
		}, 3, 7, 2},
		{"pure insert", func() (*Delta, error) {
			return SimpleEdit(5, 5, "abc", 10)
		}, 5, 5, 3},
		{"identity", func() (*Delta, error) {
			return Identity(10), nil
		}, 10, 10, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := tt.build()
			if err != nil {
				t.Fatal(err)
			}
			start, end, newLen := d.Summary()
			if start != tt.start || end != tt.end || newLen != tt.newLen {
				t.Errorf("Summary = (%d, %d, %d), want (%d, %d, %d)",
					start, end, newLen, tt.start, tt.end, tt.newLen)
			}
		})
	}
}

func TestInvertRoundTrip(t *testing.T) {
	base := "the quick brown fox\njumps over\nthe lazy dog"
	edits := []struct {
		start, end int
		text       string
	}{
		{4, 9, "slow"},
		{0, 0, "once, "},
		{20, 31, ""},
		{0, len(base), "entirely new"},
	}

	for _, e := range edits {
		d, err := SimpleEdit(e.start, e.end, e.text, len(base))
		if err != nil {
			t.Fatal(err)
		}
		src := rope.FromString(base)
		target, err := d.Apply(src)
		if err != nil {
			t.Fatal(err)
		}
		inv, err := d.Invert(src)
		if err != nil {
			t.Fatalf("Invert: %v", err)
		}
		back, err := inv.Apply(target)
		if err != nil {
			t.Fatalf("apply inverse: %v", err)
		}
		if back.String() != base {
			t.Errorf("invert round trip: got %q, want %q", back.String(), base)
		}
	}
}

func TestComposeMatchesSequentialApply(t *testing.T) {
	base := "abcdefghij"
	d1, _ := SimpleEdit(2, 5, "XYZ!", len(base))
	mid := mustApply(t, d1, base)
	d2, _ := SimpleEdit(0, 3, "", len(mid))

	composed, err := Compose(d1, d2)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	want := mustApply(t, d2, mid)
	if got := mustApply(t, composed, base); got != want {
		t.Errorf("composed apply = %q, want %q", got, want)
	}
	if composed.BaseLen() != len(base) || composed.TargetLen() != len(want) {
		t.Errorf("composed lengths %d→%d, want %d→%d",
			composed.BaseLen(), composed.TargetLen(), len(base), len(want))
	}
}

func TestComposeAssociativity(t *testing.T) {
	base := "line one\nline two\nline three\n"
	d1, _ := SimpleEdit(5, 8, "1", len(base))
	s1 := mustApply(t, d1, base)
	d2, _ := SimpleEdit(0, 0, "# ", len(s1))
	s2 := mustApply(t, d2, s1)
	d3, _ := SimpleEdit(len(s2), len(s2), "line four\n", len(s2))
	s3 := mustApply(t, d3, s2)

	left12, err := Compose(d1, d2)
	if err != nil {
		t.Fatal(err)
	}
	leftAssoc, err := Compose(left12, d3)
	if err != nil {
		t.Fatal(err)
	}
	right23, err := Compose(d2, d3)
	if err != nil {
		t.Fatal(err)
	}
	rightAssoc, err := Compose(d1, right23)
	if err != nil {
		t.Fatal(err)
	}

	if leftAssoc.String() != rightAssoc.String() {
		t.Errorf("associativity broken:\n (d1∘d2)∘d3 = %s\n d1∘(d2∘d3) = %s", leftAssoc, rightAssoc)
	}
	if got := mustApply(t, leftAssoc, base); got != s3 {
		t.Errorf("composed chain = %q, want %q", got, s3)
	}
}

func TestComposeLengthMismatch(t *testing.T) {
	d1, _ := SimpleEdit(0, 0, "x", 5)
	d2, _ := SimpleEdit(0, 0, "y", 99)
	if _, err := Compose(d1, d2); !errors.Is(err, ErrMalformed) {
		t.Errorf("err = %v, want ErrMalformed", err)
	}
}

func TestTransformConvergence(t *testing.T) {
	tests := []struct {
		name   string
		base   string
		aStart, aEnd int
		aText  string
		bStart, bEnd int
		bText  string
	}{
		{"disjoint", "abcdefgh", 1, 3, "X", 5, 7, "Y"},
		{"same insert point", "abcd", 2, 2, "one", 2, 2, "two"},
		{"overlapping deletes", "abcdefgh", 1, 5, "", 3, 7, ""},
		{"insert inside delete", "abcdefgh", 2, 6, "", 4, 4, "mid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, _ := SimpleEdit(tt.aStart, tt.aEnd, tt.aText, len(tt.base))
			b, _ := SimpleEdit(tt.bStart, tt.bEnd, tt.bText, len(tt.base))

			aPrime, err := Transform(a, b, true)
			if err != nil {
				t.Fatalf("Transform a: %v", err)
			}
			bPrime, err := Transform(b, a, false)
			if err != nil {
				t.Fatalf("Transform b: %v", err)
			}

			viaB := mustApply(t, aPrime, mustApply(t, b, tt.base))
			viaA := mustApply(t, bPrime, mustApply(t, a, tt.base))
			if viaA != viaB {
				t.Errorf("divergence: a-then-b' = %q, b-then-a' = %q", viaA, viaB)
			}
		})
	}
}

func TestIdentity(t *testing.T) {
	d := Identity(7)
	if !d.IsIdentity() {
		t.Error("Identity should report IsIdentity")
	}
	if got := mustApply(t, d, "sevench"); got != "sevench" {
		t.Errorf("identity apply changed text: %q", got)
	}
	e, _ := SimpleEdit(1, 2, "x", 7)
	if e.IsIdentity() {
		t.Error("real edit should not report IsIdentity")
	}
}

func TestInsertSharesStructure(t *testing.T) {
	// Insert payloads carried as ropes must survive the round trip
	// through build and apply without content drift.
	var b rope.Builder
	for i := 0; i < 200; i++ {
		b.WriteString("shared insert payload\n")
	}
	big := b.Build()

	d, err := NewBuilder(4).Retain(2).InsertRope(big).Retain(2).Build()
	if err != nil {
		t.Fatal(err)
	}
	got := mustApply(t, d, "abcd")
	want := "ab" + big.String() + "cd"
	if got != want {
		t.Error("rope insert payload content mismatch")
	}
}
