// Package core runs the editor: a single writer goroutine that
// serializes every edit, keeps per-view client synchronization state,
// and emits minimal update streams over the wire.
package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/tidwall/gjson"

	"github.com/plumedit/plume/internal/config"
	"github.com/plumedit/plume/internal/engine/buffer"
	"github.com/plumedit/plume/internal/engine/delta"
	"github.com/plumedit/plume/internal/logging"
	"github.com/plumedit/plume/internal/rpc"
	"github.com/plumedit/plume/internal/view"
	"github.com/plumedit/plume/internal/view/linecache"
)

// ErrClosed is returned for work submitted after shutdown.
var ErrClosed = errors.New("core: closed")

// ErrUnknownView is returned when a request names a view id that was
// never created or has been closed.
var ErrUnknownView = errors.New("core: unknown view")

// Notifier sends fire-and-forget messages to the front-end. *rpc.Peer
// satisfies it.
type Notifier interface {
	Notify(method string, params any) error
}

// Collaborator observes the document lifecycle: plugins bind here.
// Callbacks run on the core loop; implementations must not call back
// into the core synchronously except through ApplyExternal's own
// goroutine.
type Collaborator interface {
	ViewOpened(viewID string, rev buffer.Revision)
	ViewClosed(viewID string)
	DeltaCommitted(viewID string, rev buffer.Revision, d *delta.Delta)
}

// Core owns all editor state. Every mutation runs on the loop
// goroutine; RPC handlers hand work in through a channel.
type Core struct {
	logger *logging.Logger
	cfg    *config.Config
	peer   Notifier

	styles *view.StyleRegistry

	work chan func()
	done chan struct{}
	once sync.Once

	// Loop-owned state; never touched off the loop goroutine.
	editors    map[string]*Editor
	collabs    []Collaborator
	nextViewID int
}

// New creates a core. Updates and other outbound notifications go to
// peer.
func New(cfg *config.Config, peer Notifier, logger *logging.Logger) *Core {
	if logger == nil {
		logger = logging.NullLogger
	}
	return &Core{
		logger:  logger.WithComponent("core"),
		cfg:     cfg,
		peer:    peer,
		styles:  view.NewStyleRegistry(),
		work:    make(chan func(), 64),
		done:    make(chan struct{}),
		editors: make(map[string]*Editor),
	}
}

// Run processes work until the context is cancelled or Close is
// called. It is the only goroutine that touches editor state.
func (c *Core) Run(ctx context.Context) error {
	defer c.Close()
	for {
		select {
		case fn := <-c.work:
			fn()
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			return nil
		}
	}
}

// Close stops the loop. Pending submissions fail with ErrClosed.
func (c *Core) Close() {
	c.once.Do(func() { close(c.done) })
}

// do runs fn on the core loop and waits for its result.
func (c *Core) do(ctx context.Context, fn func() (any, error)) (any, error) {
	type result struct {
		v   any
		err error
	}
	ch := make(chan result, 1)

	select {
	case c.work <- func() {
		v, err := fn()
		ch <- result{v, err}
	}:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
		return nil, ErrClosed
	}

	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
		return nil, ErrClosed
	}
}

// post runs fn on the core loop without waiting.
func (c *Core) post(fn func()) {
	select {
	case c.work <- fn:
	case <-c.done:
	}
}

// AttachCollaborator registers a document lifecycle observer.
func (c *Core) AttachCollaborator(col Collaborator) {
	c.post(func() { c.collabs = append(c.collabs, col) })
}

// NewView opens a view, optionally loading a file, and returns its
// id. The first update is sent immediately.
func (c *Core) NewView(ctx context.Context, path string) (string, error) {
	v, err := c.do(ctx, func() (any, error) { return c.newViewLocked(path) })
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *Core) newViewLocked(path string) (string, error) {
	var doc *buffer.Document
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return "", fmt.Errorf("opening %s: %w", path, err)
			}
			doc = buffer.New()
		} else {
			doc, err = buffer.NewFromReader(f)
			f.Close()
			if err != nil {
				return "", fmt.Errorf("reading %s: %w", path, err)
			}
		}
	} else {
		doc = buffer.New()
	}

	c.nextViewID++
	id := fmt.Sprintf("view-id-%d", c.nextViewID)
	ed := newEditor(id, path, doc, c.cfg, c.logger)
	c.editors[id] = ed

	c.logger.Info("opened %s (path=%q, %d bytes)", id, path, doc.Len())
	for _, col := range c.collabs {
		col.ViewOpened(id, doc.Head())
	}
	c.sendUpdate(ed)
	return id, nil
}

// CloseView discards a view. Its cache record is dropped and no
// further updates are emitted for its id.
func (c *Core) CloseView(viewID string) {
	c.post(func() {
		if _, ok := c.editors[viewID]; !ok {
			return
		}
		delete(c.editors, viewID)
		c.logger.Info("closed %s", viewID)
		for _, col := range c.collabs {
			col.ViewClosed(viewID)
		}
	})
}

// Edit dispatches one edit-envelope command on the core loop.
func (c *Core) Edit(viewID, method string, params gjson.Result) {
	c.post(func() {
		ed, ok := c.editors[viewID]
		if !ok {
			c.logger.Warn("edit %q for unknown view %s", method, viewID)
			return
		}
		before := ed.Rev()
		if err := c.applyEdit(ed, method, params); err != nil {
			c.logger.Error("edit %q failed: %v", method, err)
			return
		}
		if ed.Rev() != before {
			c.notifyCommit(ed)
		}
		c.sendUpdate(ed)
	})
}

func (c *Core) applyEdit(ed *Editor, method string, params gjson.Result) error {
	switch method {
	case "insert":
		return ed.Insert(params.Get("chars").String())
	case "insert_newline":
		return ed.InsertNewline()
	case "delete_backward":
		return ed.DeleteBackward()
	case "delete_forward":
		return ed.DeleteForward()
	case "move_left":
		return ed.MoveCursor(MoveLeft, false)
	case "move_right":
		return ed.MoveCursor(MoveRight, false)
	case "move_up":
		return ed.MoveCursor(MoveUp, false)
	case "move_down":
		return ed.MoveCursor(MoveDown, false)
	case "move_left_and_modify_selection":
		return ed.MoveCursor(MoveLeft, true)
	case "move_right_and_modify_selection":
		return ed.MoveCursor(MoveRight, true)
	case "move_up_and_modify_selection":
		return ed.MoveCursor(MoveUp, true)
	case "move_down_and_modify_selection":
		return ed.MoveCursor(MoveDown, true)
	case "gesture_point_select":
		return ed.PointSelect(int(params.Get("line").Int()), int(params.Get("col").Int()))
	case "undo":
		return ed.Undo()
	case "redo":
		return ed.Redo()
	case "scroll":
		arr := params.Array()
		if len(arr) == 2 {
			ed.Scroll(int(arr[0].Int()), int(arr[1].Int()))
		}
		return nil
	default:
		return fmt.Errorf("unknown edit method %q", method)
	}
}

// Scroll sets a view's visible window and refreshes it.
func (c *Core) Scroll(viewID string, first, last int) {
	c.post(func() {
		ed, ok := c.editors[viewID]
		if !ok {
			return
		}
		ed.Scroll(first, last)
		c.sendUpdate(ed)
	})
}

// SetStyle registers a style definition for later reference by line
// payloads.
func (c *Core) SetStyle(s view.Style) error {
	return c.styles.Register(s)
}

// AddSpans adds style spans to a view's persistent style layer.
// Every id must have been registered with set_style first; an
// unregistered id rejects the whole batch with a ProtocolError.
func (c *Core) AddSpans(ctx context.Context, viewID string, spans []view.Span) error {
	_, err := c.do(ctx, func() (any, error) {
		ed, ok := c.editors[viewID]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownView, viewID)
		}
		for _, s := range spans {
			if !c.styles.Defined(s.ID) {
				return nil, view.Protocolf("style id %d was never registered", s.ID)
			}
		}
		text := ed.doc.Head().Text
		for _, s := range spans {
			ed.view.Spans = ed.view.Spans.Insert(s)

			// Off-window lines the client still holds must not keep
			// presenting pre-span styles as current.
			ls, err := text.LineOfOffset(s.Start)
			if err != nil {
				continue
			}
			le := text.LineCount()
			if l, err := text.LineOfOffset(s.End); err == nil {
				le = l + 1
			}
			ed.shadow.PartialInvalidate(ls, le, linecache.StylesValid)
		}
		c.sendUpdate(ed)
		return nil, nil
	})
	return err
}

// RenderLines synchronously derives a line range for a view.
func (c *Core) RenderLines(ctx context.Context, viewID string, first, last int) ([]view.Payload, error) {
	v, err := c.do(ctx, func() (any, error) {
		ed, ok := c.editors[viewID]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownView, viewID)
		}
		return ed.RenderLines(first, last)
	})
	if err != nil {
		return nil, err
	}
	return v.([]view.Payload), nil
}

// ApplyExternal commits a collaborator delta built against revision
// rev of the named view, rebasing over anything newer. The applied
// delta (after rebase) is returned.
func (c *Core) ApplyExternal(ctx context.Context, viewID string, rev uint64, d *delta.Delta) (*delta.Delta, error) {
	v, err := c.do(ctx, func() (any, error) {
		ed, ok := c.editors[viewID]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownView, viewID)
		}
		applied, err := ed.ApplyExternal(rev, d)
		if err != nil {
			return nil, err
		}
		c.notifyCommit(ed)
		c.sendUpdate(ed)
		return applied, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*delta.Delta), nil
}

// Snapshot returns the current revision of a view's document.
func (c *Core) Snapshot(ctx context.Context, viewID string) (buffer.Revision, error) {
	v, err := c.do(ctx, func() (any, error) {
		ed, ok := c.editors[viewID]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownView, viewID)
		}
		return ed.doc.Head(), nil
	})
	if err != nil {
		return buffer.Revision{}, err
	}
	return v.(buffer.Revision), nil
}

// notifyCommit tells collaborators about the newest committed delta.
func (c *Core) notifyCommit(ed *Editor) {
	if len(c.collabs) == 0 || ed.lastDelta == nil {
		return
	}
	head := ed.doc.Head()
	for _, col := range c.collabs {
		col.DeltaCommitted(ed.viewID, head, ed.lastDelta)
	}
}

// sendUpdate runs the diff encoder for a view and emits the result.
// Updates for one view are totally ordered because everything here
// happens on the loop goroutine.
func (c *Core) sendUpdate(ed *Editor) {
	ops, err := ed.buildUpdate()
	if err != nil {
		c.logger.Error("building update for %s: %v", ed.viewID, err)
		return
	}
	if len(ops) == 0 {
		return
	}
	params := UpdateParams{
		ViewID:   ed.viewID,
		Rev:      ed.Rev(),
		Ops:      ops,
		Pristine: ed.Pristine(),
	}
	if err := c.peer.Notify("update", params); err != nil {
		c.logger.Error("sending update for %s: %v", ed.viewID, err)
	}
}

// Bind registers the wire methods on a peer.
func (c *Core) Bind(p *rpc.Peer) {
	p.Handle("new_view", func(ctx context.Context, params gjson.Result) (any, error) {
		return c.NewView(ctx, params.Get("file_path").String())
	})

	p.HandleNotify("close_view", func(_ context.Context, params gjson.Result) {
		c.CloseView(params.Get("view_id").String())
	})

	p.HandleNotify("edit", func(_ context.Context, params gjson.Result) {
		c.Edit(params.Get("view_id").String(), params.Get("method").String(), params.Get("params"))
	})

	p.HandleNotify("scroll", func(_ context.Context, params gjson.Result) {
		c.Scroll(
			params.Get("view_id").String(),
			int(params.Get("first").Int()),
			int(params.Get("last").Int()),
		)
	})

	p.HandleNotify("set_style", func(_ context.Context, params gjson.Result) {
		s := view.Style{ID: int(params.Get("id").Int())}
		if v := params.Get("fg_color"); v.Exists() {
			fg := uint32(v.Uint())
			s.FgColor = &fg
		}
		if v := params.Get("bg_color"); v.Exists() {
			bg := uint32(v.Uint())
			s.BgColor = &bg
		}
		if v := params.Get("weight"); v.Exists() {
			w := int(v.Int())
			s.Weight = &w
		}
		if v := params.Get("italic"); v.Exists() {
			it := v.Bool()
			s.Italic = &it
		}
		if err := c.SetStyle(s); err != nil {
			c.logger.Warn("set_style rejected: %v", err)
		}
	})

	p.HandleNotify("add_style_spans", func(ctx context.Context, params gjson.Result) {
		viewID := params.Get("view_id").String()
		var spans []view.Span
		params.Get("spans").ForEach(func(_, s gjson.Result) bool {
			start := int(s.Get("start").Int())
			spans = append(spans, view.Span{
				Start: start,
				End:   start + int(s.Get("len").Int()),
				ID:    int(s.Get("id").Int()),
			})
			return true
		})
		if err := c.AddSpans(ctx, viewID, spans); err != nil {
			c.logger.Warn("add_style_spans rejected: %v", err)
		}
	})

	p.Handle("render_lines", func(ctx context.Context, params gjson.Result) (any, error) {
		lines, err := c.RenderLines(ctx,
			params.Get("view_id").String(),
			int(params.Get("first_line").Int()),
			int(params.Get("last_line").Int()),
		)
		if err != nil {
			return nil, &rpc.ResponseError{Code: rpc.CodeInvalidParams, Message: err.Error()}
		}
		return map[string]any{"lines": lines}, nil
	})
}
