// Package buffer owns the authoritative document state: a chain of
// immutable rope revisions advanced one delta at a time.
//
// All mutation flows through a single writer (the core's edit loop);
// the mutex here only guards the head swap, so any number of readers
// can grab a Revision and traverse it while later edits proceed.
package buffer

import (
	"io"
	"sync"

	"github.com/plumedit/plume/internal/engine/delta"
	"github.com/plumedit/plume/internal/engine/rope"
)

// maxRecent bounds the ring of recent deltas kept for rebasing edits
// made against a superseded revision. Anything older is stale.
const maxRecent = 64

// Revision is one immutable document state. Holders may traverse Text
// freely and concurrently; it never changes after construction.
type Revision struct {
	Seq  uint64
	Text rope.Rope
}

// Document is the revision chain for one open buffer. The zero value
// is not usable; construct with New or NewFromString.
type Document struct {
	mu     sync.Mutex
	head   Revision
	recent []recorded
}

type recorded struct {
	seq uint64 // revision the delta was applied to
	d   *delta.Delta
}

// New creates an empty document at revision 0.
func New() *Document {
	return &Document{head: Revision{Seq: 0, Text: rope.New()}}
}

// NewFromString creates a document with initial content at revision 0.
func NewFromString(s string) *Document {
	return &Document{head: Revision{Seq: 0, Text: rope.FromString(s)}}
}

// NewFromReader creates a document by reading initial content.
func NewFromReader(r io.Reader) (*Document, error) {
	text, err := rope.FromReader(r)
	if err != nil {
		return nil, err
	}
	return &Document{head: Revision{Seq: 0, Text: text}}, nil
}

// Head returns the current revision. The returned value stays valid
// and immutable regardless of later edits.
func (doc *Document) Head() Revision {
	doc.mu.Lock()
	defer doc.mu.Unlock()
	return doc.head
}

// Rev returns the current revision number.
func (doc *Document) Rev() uint64 {
	return doc.Head().Seq
}

// Len returns the current document length in bytes.
func (doc *Document) Len() int {
	return doc.Head().Text.Len()
}

// Apply applies a delta to the head revision and advances it. On any
// error the head is left untouched.
func (doc *Document) Apply(d *delta.Delta) (Revision, error) {
	doc.mu.Lock()
	defer doc.mu.Unlock()
	return doc.applyLocked(d)
}

// ApplyAt applies a delta built against the revision numbered rev.
// Against the head it applies directly. Against an older revision the
// delta is rebased over everything applied since, provided those
// deltas are still in the recent ring; otherwise StaleRevisionError.
// The returned delta is the one actually applied (rebased if needed),
// expressed against the previous head.
func (doc *Document) ApplyAt(rev uint64, d *delta.Delta) (Revision, *delta.Delta, error) {
	doc.mu.Lock()
	defer doc.mu.Unlock()

	if rev > doc.head.Seq {
		return Revision{}, nil, &StaleRevisionError{Requested: rev, Head: doc.head.Seq}
	}
	if rev < doc.head.Seq {
		rebased, err := doc.rebaseLocked(rev, d)
		if err != nil {
			return Revision{}, nil, err
		}
		d = rebased
	}
	newRev, err := doc.applyLocked(d)
	if err != nil {
		return Revision{}, nil, err
	}
	return newRev, d, nil
}

func (doc *Document) applyLocked(d *delta.Delta) (Revision, error) {
	text, err := d.Apply(doc.head.Text)
	if err != nil {
		return Revision{}, err
	}
	doc.recent = append(doc.recent, recorded{seq: doc.head.Seq, d: d})
	if len(doc.recent) > maxRecent {
		doc.recent = doc.recent[len(doc.recent)-maxRecent:]
	}
	doc.head = Revision{Seq: doc.head.Seq + 1, Text: text}
	return doc.head, nil
}

// rebaseLocked transforms d (built against revision rev) across every
// delta applied since. Edits already committed win insertion-point
// ties against the late arrival.
func (doc *Document) rebaseLocked(rev uint64, d *delta.Delta) (*delta.Delta, error) {
	if len(doc.recent) == 0 || doc.recent[0].seq > rev {
		return nil, &StaleRevisionError{Requested: rev, Head: doc.head.Seq}
	}
	for _, rec := range doc.recent {
		if rec.seq < rev {
			continue
		}
		rebased, err := delta.Transform(d, rec.d, false)
		if err != nil {
			return nil, err
		}
		d = rebased
	}
	return d, nil
}
