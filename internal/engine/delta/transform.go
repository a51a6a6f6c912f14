package delta

// Transform rebases a against b, where both deltas address the same
// source revision. The result applies to b's target and performs a's
// edit there. When both deltas insert at the same position, aFirst
// decides whose insertion ends up earlier in the merged text; the
// caller breaks the tie consistently (the serialized edit order).
//
// The defining property: for concurrent a and b,
//
//	Compose(a, Transform(b, a, false)) == Compose(b, Transform(a, b, true))
//
// so both sides converge on the same merged revision.
func Transform(a, b *Delta, aFirst bool) (*Delta, error) {
	if a.baseLen != b.baseLen {
		return nil, lengthErr("transform", a.baseLen, b.baseLen)
	}

	out := NewBuilder(b.targetLen)
	ra := &opReader{ops: a.ops}
	rb := &opReader{ops: b.ops}

	for {
		opA, okA := ra.peek()
		opB, okB := rb.peek()

		switch {
		case okA && opA.Kind == OpInsert && (aFirst || !okB || opB.Kind != OpInsert):
			out.InsertRope(opA.Text)
			ra.consume(opA.N)

		case okB && opB.Kind == OpInsert:
			// b's insertion occupies space in the new base; step over it.
			out.Retain(opB.N)
			rb.consume(opB.N)

		case !okA && !okB:
			return out.Build()

		case !okA || !okB:
			return nil, &MalformedDeltaError{Reason: "transform ran out of instructions"}

		case opA.Kind == OpRetain && opB.Kind == OpRetain:
			n := minInt(opA.N, opB.N)
			out.Retain(n)
			ra.consume(n)
			rb.consume(n)

		case opA.Kind == OpDelete && opB.Kind == OpRetain:
			n := minInt(opA.N, opB.N)
			out.Delete(n)
			ra.consume(n)
			rb.consume(n)

		case opA.Kind == OpRetain && opB.Kind == OpDelete:
			// The units a wanted to keep are already gone.
			n := minInt(opA.N, opB.N)
			ra.consume(n)
			rb.consume(n)

		case opA.Kind == OpDelete && opB.Kind == OpDelete:
			// Both sides deleted the same units; nothing left to do.
			n := minInt(opA.N, opB.N)
			ra.consume(n)
			rb.consume(n)

		default:
			return nil, &MalformedDeltaError{Reason: "transform saw inconsistent instructions"}
		}
	}
}
