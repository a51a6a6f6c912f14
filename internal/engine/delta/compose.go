package delta

// opReader walks an instruction sequence allowing partial consumption
// of individual ops.
type opReader struct {
	ops []Op
	idx int
	off int
}

// peek returns the remainder of the current op, or false when done.
func (r *opReader) peek() (Op, bool) {
	if r.idx >= len(r.ops) {
		return Op{}, false
	}
	op := r.ops[r.idx]
	if r.off == 0 {
		return op, true
	}
	rest := Op{Kind: op.Kind, N: op.N - r.off}
	if op.Kind == OpInsert {
		sub, err := op.Text.Sub(r.off, op.N)
		if err != nil {
			return Op{}, false
		}
		rest.Text = sub
	}
	return rest, true
}

// consume advances n units into the current op.
func (r *opReader) consume(n int) {
	r.off += n
	if r.off >= r.ops[r.idx].N {
		r.idx++
		r.off = 0
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// Compose combines a (rev0→rev1) with b (rev1→rev2) into a single
// delta (rev0→rev2). Applying the result to rev0 equals applying a
// then b; composition is associative.
func Compose(a, b *Delta) (*Delta, error) {
	if a.targetLen != b.baseLen {
		return nil, lengthErr("compose", a.targetLen, b.baseLen)
	}

	out := NewBuilder(a.baseLen)
	ra := &opReader{ops: a.ops}
	rb := &opReader{ops: b.ops}

	for {
		opA, okA := ra.peek()
		opB, okB := rb.peek()

		switch {
		case okA && opA.Kind == OpDelete:
			// Deletions of rev0 content pass through untouched; b never
			// saw those units.
			out.Delete(opA.N)
			ra.consume(opA.N)

		case okB && opB.Kind == OpInsert:
			out.InsertRope(opB.Text)
			rb.consume(opB.N)

		case !okA && !okB:
			return out.Build()

		case !okA || !okB:
			return nil, &MalformedDeltaError{Reason: "compose ran out of instructions"}

		case opA.Kind == OpRetain && opB.Kind == OpRetain:
			n := minInt(opA.N, opB.N)
			out.Retain(n)
			ra.consume(n)
			rb.consume(n)

		case opA.Kind == OpRetain && opB.Kind == OpDelete:
			n := minInt(opA.N, opB.N)
			out.Delete(n)
			ra.consume(n)
			rb.consume(n)

		case opA.Kind == OpInsert && opB.Kind == OpRetain:
			n := minInt(opA.N, opB.N)
			sub, err := opA.Text.Sub(0, n)
			if err != nil {
				return nil, err
			}
			out.InsertRope(sub)
			ra.consume(n)
			rb.consume(n)

		case opA.Kind == OpInsert && opB.Kind == OpDelete:
			// Text inserted by a and deleted by b never existed in
			// either endpoint revision.
			n := minInt(opA.N, opB.N)
			ra.consume(n)
			rb.consume(n)

		default:
			return nil, &MalformedDeltaError{Reason: "compose saw inconsistent instructions"}
		}
	}
}
