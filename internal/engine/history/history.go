// Package history maintains per-document undo and redo stacks as
// pairs of inverse deltas. Consecutive edits recorded under the same
// group (a typing burst, one command) coalesce into a single entry so
// undo steps match user intent rather than keystrokes.
package history

import (
	"time"

	"github.com/plumedit/plume/internal/engine/delta"
	"github.com/plumedit/plume/internal/engine/rope"
)

// DefaultLimit is the number of undo entries kept when no limit is
// configured.
const DefaultLimit = 1000

// Group tags edits that should undo as one step. The empty group
// never coalesces.
type Group string

// Common groups used by the editing commands.
const (
	GroupNone   Group = ""
	GroupTyping Group = "typing"
	GroupDelete Group = "delete"
)

type entry struct {
	undo  *delta.Delta // applies to the post-edit revision, restores the pre-edit one
	redo  *delta.Delta // the original edit
	group Group
}

// History is the undo state for one document. Not safe for concurrent
// use; the core's edit loop is the only caller.
type History struct {
	undos  []entry
	redos  []entry
	limit  int
	sealed bool

	groupTimeout time.Duration
	lastRecord   time.Time
	now          func() time.Time
}

// New creates a history keeping at most limit undo entries. A
// non-positive limit selects DefaultLimit. groupTimeout bounds the
// idle time between edits of one group; a pause longer than it starts
// a fresh entry. Zero disables the timeout.
func New(limit int, groupTimeout time.Duration) *History {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &History{limit: limit, groupTimeout: groupTimeout, now: time.Now}
}

// Record stores an applied edit. source is the revision the delta was
// applied to, needed to recover deleted text for the inverse. Any redo
// entries are discarded: history is linear.
func (h *History) Record(d *delta.Delta, source rope.Rope, group Group) error {
	undo, err := d.Invert(source)
	if err != nil {
		return err
	}
	h.redos = h.redos[:0]

	now := h.now()
	idle := now.Sub(h.lastRecord)
	h.lastRecord = now

	if group != GroupNone && !h.sealed && len(h.undos) > 0 &&
		(h.groupTimeout <= 0 || idle <= h.groupTimeout) {
		top := &h.undos[len(h.undos)-1]
		if top.group == group {
			// Coalesce: the combined undo crosses both edits in reverse,
			// the combined redo replays them in order.
			mergedUndo, err := delta.Compose(undo, top.undo)
			if err != nil {
				return err
			}
			mergedRedo, err := delta.Compose(top.redo, d)
			if err != nil {
				return err
			}
			top.undo = mergedUndo
			top.redo = mergedRedo
			return nil
		}
	}

	h.undos = append(h.undos, entry{undo: undo, redo: d, group: group})
	h.sealed = false
	if len(h.undos) > h.limit {
		h.undos = h.undos[len(h.undos)-h.limit:]
	}
	return nil
}

// Break seals the current group: the next Record starts a fresh undo
// entry even if its group matches. Called on cursor movement and
// similar intent breaks.
func (h *History) Break() {
	h.sealed = true
}

// Undo returns the delta that reverses the most recent entry and moves
// the entry to the redo stack. Returns false when there is nothing to
// undo. The caller must apply the returned delta to the head revision.
func (h *History) Undo() (*delta.Delta, bool) {
	if len(h.undos) == 0 {
		return nil, false
	}
	e := h.undos[len(h.undos)-1]
	h.undos = h.undos[:len(h.undos)-1]
	h.redos = append(h.redos, e)
	h.sealed = true
	return e.undo, true
}

// Redo returns the delta that replays the most recently undone entry
// and moves it back to the undo stack. Returns false when there is
// nothing to redo.
func (h *History) Redo() (*delta.Delta, bool) {
	if len(h.redos) == 0 {
		return nil, false
	}
	e := h.redos[len(h.redos)-1]
	h.redos = h.redos[:len(h.redos)-1]
	h.undos = append(h.undos, e)
	h.sealed = true
	return e.redo, true
}

// CanUndo reports whether an undo entry exists.
func (h *History) CanUndo() bool {
	return len(h.undos) > 0
}

// CanRedo reports whether a redo entry exists.
func (h *History) CanRedo() bool {
	return len(h.redos) > 0
}

// Clear drops all history, e.g. on buffer reload.
func (h *History) Clear() {
	h.undos = nil
	h.redos = nil
	h.sealed = false
}
