package linecache

import "github.com/plumedit/plume/internal/view"

// CacheLine is one entry of a client-side line cache. An invalid line
// is a placeholder whose content the client does not know.
type CacheLine struct {
	Valid   bool
	Text    string
	Cursors []int
	Styles  []view.StyleSpan
}

// ValidLine builds a valid cache line, for tests and seeding.
func ValidLine(l view.Line) CacheLine {
	return CacheLine{Valid: true, Text: l.Text, Cursors: l.Cursors, Styles: l.Styles}
}

// Apply is the decoder contract: deterministically reconstructs the
// new cache from the old one and an operation stream, interpreting
// each op exactly as specified and touching nothing else. Any
// violation of the stream invariants is a ProtocolError and no cache
// is produced.
func Apply(old []CacheLine, ops []Op) ([]CacheLine, error) {
	if err := Validate(ops); err != nil {
		return nil, err
	}

	newCache := make([]CacheLine, 0, NewLen(ops))
	oldIx := 0
	for _, op := range ops {
		switch op.Op {
		case OpCopy:
			if oldIx+op.N > len(old) {
				return nil, view.Protocolf("copy(%d) overruns old cache at %d/%d", op.N, oldIx, len(old))
			}
			newCache = append(newCache, old[oldIx:oldIx+op.N]...)
			oldIx += op.N

		case OpSkip:
			if oldIx+op.N > len(old) {
				return nil, view.Protocolf("skip(%d) overruns old cache at %d/%d", op.N, oldIx, len(old))
			}
			oldIx += op.N

		case OpInvalidate:
			for i := 0; i < op.N; i++ {
				newCache = append(newCache, CacheLine{})
			}

		case OpIns:
			for _, p := range op.Lines {
				line, err := decodeIns(p)
				if err != nil {
					return nil, err
				}
				newCache = append(newCache, line)
			}

		case OpUpdate:
			if oldIx+op.N > len(old) {
				return nil, view.Protocolf("update(%d) overruns old cache at %d/%d", op.N, oldIx, len(old))
			}
			for _, p := range op.Lines {
				line, err := decodeUpdate(old[oldIx], p)
				if err != nil {
					return nil, err
				}
				newCache = append(newCache, line)
				oldIx++
			}
		}
	}
	return newCache, nil
}

// decodeIns materializes a fully specified line; absent annotations
// mean empty.
func decodeIns(p view.Payload) (CacheLine, error) {
	line := CacheLine{Valid: true, Text: *p.Text}
	if p.Cursors != nil {
		line.Cursors = append([]int(nil), *p.Cursors...)
	}
	if p.Styles != nil {
		spans, err := view.DecodeTriples(*p.Styles)
		if err != nil {
			return CacheLine{}, err
		}
		line.Styles = spans
	}
	return line, nil
}

// decodeUpdate copies text forward from the old line and replaces
// annotations. An invalid old line stays invalid; there is no text to
// annotate.
func decodeUpdate(old CacheLine, p view.Payload) (CacheLine, error) {
	if !old.Valid {
		return CacheLine{}, nil
	}
	line := CacheLine{Valid: true, Text: old.Text}
	if p.Cursors != nil {
		line.Cursors = append([]int(nil), *p.Cursors...)
	} else {
		line.Cursors = old.Cursors
	}
	if p.Styles != nil {
		spans, err := view.DecodeTriples(*p.Styles)
		if err != nil {
			return CacheLine{}, err
		}
		line.Styles = spans
	} else {
		line.Styles = old.Styles
	}
	return line, nil
}
