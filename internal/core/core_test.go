package core

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tidwall/gjson"

	"github.com/plumedit/plume/internal/config"
	"github.com/plumedit/plume/internal/engine/buffer"
	"github.com/plumedit/plume/internal/engine/delta"
	"github.com/plumedit/plume/internal/logging"
	"github.com/plumedit/plume/internal/view"
	"github.com/plumedit/plume/internal/view/linecache"
)

func mustSimpleEdit(t *testing.T, start, end int, text string, baseLen int) *delta.Delta {
	t.Helper()
	d, err := delta.SimpleEdit(start, end, text, baseLen)
	if err != nil {
		t.Fatalf("SimpleEdit: %v", err)
	}
	return d
}

type captureNotifier struct {
	updates chan UpdateParams
}

func newCaptureNotifier() *captureNotifier {
	return &captureNotifier{updates: make(chan UpdateParams, 64)}
}

func (n *captureNotifier) Notify(method string, params any) error {
	if method == "update" {
		n.updates <- params.(UpdateParams)
	}
	return nil
}

func (n *captureNotifier) next(t *testing.T) UpdateParams {
	t.Helper()
	select {
	case u := <-n.updates:
		return u
	case <-time.After(5 * time.Second):
		t.Fatal("no update arrived")
		return UpdateParams{}
	}
}

func startCore(t *testing.T) (*Core, *captureNotifier) {
	t.Helper()
	n := newCaptureNotifier()
	c := New(config.Default(), n, logging.NullLogger)
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = c.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		c.Close()
	})
	return c, n
}

func TestNewViewFirstUpdate(t *testing.T) {
	c, n := startCore(t)

	id, err := c.NewView(context.Background(), "")
	if err != nil {
		t.Fatalf("NewView: %v", err)
	}
	if id != "view-id-1" {
		t.Errorf("id = %q, want view-id-1", id)
	}

	// An empty document still yields one empty line, never an empty
	// stream.
	u := n.next(t)
	if u.ViewID != id || u.Rev != 0 {
		t.Errorf("update header = %+v", u)
	}
	if !u.Pristine {
		t.Error("fresh view must be pristine")
	}
	if len(u.Ops) != 1 || u.Ops[0].Op != linecache.OpIns || u.Ops[0].N != 1 {
		t.Fatalf("ops = %+v, want single ins(1)", u.Ops)
	}
	if u.Ops[0].Lines[0].Text == nil || *u.Ops[0].Lines[0].Text != "" {
		t.Error("initial line must carry explicit empty text")
	}
}

func TestNewViewLoadsFile(t *testing.T) {
	c, n := startCore(t)

	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte("one\ntwo\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	id, err := c.NewView(context.Background(), path)
	if err != nil {
		t.Fatalf("NewView: %v", err)
	}
	u := n.next(t)
	if u.ViewID != id {
		t.Fatalf("update for %q, want %q", u.ViewID, id)
	}
	if got := linecache.NewLen(u.Ops); got != 3 {
		t.Errorf("line total = %d, want 3 (two lines plus trailing)", got)
	}
}

func TestEditInsertEmitsUpdate(t *testing.T) {
	c, n := startCore(t)
	id, err := c.NewView(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	n.next(t)

	c.Edit(id, "insert", gjson.Parse(`{"chars":"hi"}`))
	u := n.next(t)
	if u.Rev != 1 {
		t.Errorf("rev = %d, want 1", u.Rev)
	}
	if u.Pristine {
		t.Error("edited view must not be pristine")
	}
	found := false
	for _, op := range u.Ops {
		if op.Op == linecache.OpIns {
			for _, p := range op.Lines {
				if p.Text != nil && *p.Text == "hi" {
					found = true
				}
			}
		}
	}
	if !found {
		t.Errorf("new text missing from ops: %+v", u.Ops)
	}
}

func TestUndoRestoresPristine(t *testing.T) {
	c, n := startCore(t)
	id, err := c.NewView(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	n.next(t)

	c.Edit(id, "insert", gjson.Parse(`{"chars":"abc"}`))
	n.next(t)
	c.Edit(id, "undo", gjson.Result{})
	u := n.next(t)
	if !u.Pristine {
		t.Error("undone view must report pristine")
	}
}

func TestCloseViewSuppressesUpdates(t *testing.T) {
	c, n := startCore(t)
	id, err := c.NewView(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	n.next(t)

	c.CloseView(id)
	c.Edit(id, "insert", gjson.Parse(`{"chars":"x"}`))

	select {
	case u := <-n.updates:
		t.Errorf("update after close: %+v", u)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestRenderLinesSync(t *testing.T) {
	c, n := startCore(t)
	path := filepath.Join(t.TempDir(), "f.txt")
	if err := os.WriteFile(path, []byte("a\nb\nc\nd"), 0o644); err != nil {
		t.Fatal(err)
	}
	id, err := c.NewView(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	n.next(t)

	lines, err := c.RenderLines(context.Background(), id, 1, 3)
	if err != nil {
		t.Fatalf("RenderLines: %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if *lines[0].Text != "b" || *lines[1].Text != "c" {
		t.Errorf("lines = %q, %q", *lines[0].Text, *lines[1].Text)
	}

	if _, err := c.RenderLines(context.Background(), "view-id-99", 0, 1); err == nil {
		t.Error("unknown view must fail")
	}
}

func TestSetStyleRegistersAndRejectsReserved(t *testing.T) {
	c, _ := startCore(t)
	if err := c.SetStyle(view.Style{ID: 2}); err != nil {
		t.Errorf("register: %v", err)
	}
	if err := c.SetStyle(view.Style{ID: view.SelectionStyle}); err == nil {
		t.Error("reserved selection id must be rejected")
	}
}

type recordingCollab struct {
	opened  chan string
	commits chan string
	closed  chan string
}

func (r *recordingCollab) ViewOpened(id string, _ buffer.Revision) { r.opened <- id }
func (r *recordingCollab) ViewClosed(id string)                    { r.closed <- id }
func (r *recordingCollab) DeltaCommitted(id string, _ buffer.Revision, _ *delta.Delta) {
	r.commits <- id
}

func TestCollaboratorLifecycle(t *testing.T) {
	c, n := startCore(t)
	col := &recordingCollab{
		opened:  make(chan string, 4),
		commits: make(chan string, 4),
		closed:  make(chan string, 4),
	}
	c.AttachCollaborator(col)

	id, err := c.NewView(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	n.next(t)
	if got := <-col.opened; got != id {
		t.Errorf("opened %q, want %q", got, id)
	}

	c.Edit(id, "insert", gjson.Parse(`{"chars":"z"}`))
	n.next(t)
	if got := <-col.commits; got != id {
		t.Errorf("commit for %q, want %q", got, id)
	}

	c.CloseView(id)
	if got := <-col.closed; got != id {
		t.Errorf("closed %q, want %q", got, id)
	}
}

func TestAddSpansValidatesStyleIDs(t *testing.T) {
	c, n := startCore(t)
	id, err := c.NewView(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	n.next(t)
	c.Edit(id, "insert", gjson.Parse(`{"chars":"styled text"}`))
	n.next(t)

	span := view.Span{Start: 0, End: 6, ID: 7}
	if err := c.AddSpans(context.Background(), id, []view.Span{span}); err == nil {
		t.Error("unregistered style id must be rejected")
	}

	if err := c.SetStyle(view.Style{ID: 7}); err != nil {
		t.Fatal(err)
	}
	if err := c.AddSpans(context.Background(), id, []view.Span{span}); err != nil {
		t.Fatalf("AddSpans: %v", err)
	}

	// The annotation change reaches the client as an update stream.
	u := n.next(t)
	found := false
	for _, op := range u.Ops {
		if op.Op == linecache.OpUpdate || op.Op == linecache.OpIns {
			for _, p := range op.Lines {
				if p.Styles != nil {
					found = true
				}
			}
		}
	}
	if !found {
		t.Errorf("no styles in ops: %+v", u.Ops)
	}
}

func TestApplyExternalStaleRevision(t *testing.T) {
	c, n := startCore(t)
	id, err := c.NewView(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	n.next(t)

	// A future revision number is always stale.
	d := mustSimpleEdit(t, 0, 0, "x", 0)
	if _, err := c.ApplyExternal(context.Background(), id, 99, d); err == nil {
		t.Error("future revision must be rejected")
	}
}
