// Package plugin runs in-process Lua collaborators. Plugins observe
// document lifecycle events and issue their own edits, which travel
// through the same serialization point as front-end edits.
package plugin

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	lua "github.com/yuin/gopher-lua"

	"github.com/plumedit/plume/internal/engine/buffer"
	"github.com/plumedit/plume/internal/engine/delta"
	"github.com/plumedit/plume/internal/logging"
)

// EditSink accepts plugin-issued deltas. The core satisfies it; every
// plugin edit is rebased and committed exactly like a front-end edit.
type EditSink interface {
	ApplyExternal(ctx context.Context, viewID string, rev uint64, d *delta.Delta) (*delta.Delta, error)
}

// session is what the host knows about one bound view.
type session struct {
	id   string // uuid handle passed to plugins
	rev  uint64
	size int // document length in bytes at rev
}

// Host owns the loaded Lua states and a single goroutine that runs
// all plugin code. Lifecycle callbacks are queued so core commits
// never block on plugin execution.
type Host struct {
	logger *logging.Logger
	sink   EditSink

	plugins []*luaPlugin

	mu       sync.Mutex
	sessions map[string]*session

	events chan func()
	done   chan struct{}
	once   sync.Once
}

type luaPlugin struct {
	name  string
	state *lua.LState
}

// editTimeout bounds how long a plugin edit may wait on the core.
const editTimeout = 10 * time.Second

// NewHost creates a host feeding edits into sink and starts its run
// goroutine. Load plugins with LoadDir before binding views.
func NewHost(sink EditSink, logger *logging.Logger) *Host {
	if logger == nil {
		logger = logging.NullLogger
	}
	h := &Host{
		logger:   logger.WithComponent("plugin"),
		sink:     sink,
		sessions: make(map[string]*session),
		events:   make(chan func(), 128),
		done:     make(chan struct{}),
	}
	go h.loop()
	return h
}

func (h *Host) loop() {
	for {
		select {
		case fn := <-h.events:
			fn()
		case <-h.done:
			return
		}
	}
}

// Close stops the host and tears down every Lua state.
func (h *Host) Close() {
	h.once.Do(func() {
		close(h.done)
		for _, p := range h.plugins {
			p.state.Close()
		}
	})
}

// LoadDir loads every *.lua file in dir, in name order. A plugin that
// fails to load is skipped with a logged error; the rest still run.
func (h *Host) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading plugin dir %s: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".lua") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		if err := h.load(filepath.Join(dir, name)); err != nil {
			h.logger.Error("loading plugin %s: %v", name, err)
		}
	}
	return nil
}

// load compiles and runs one plugin file in a fresh state.
func (h *Host) load(path string) error {
	L := lua.NewState()
	h.register(L)

	if err := L.DoFile(path); err != nil {
		L.Close()
		return err
	}

	p := &luaPlugin{
		name:  strings.TrimSuffix(filepath.Base(path), ".lua"),
		state: L,
	}
	h.plugins = append(h.plugins, p)
	h.logger.Info("loaded plugin %s", p.name)
	return nil
}

// Plugins returns the names of the loaded plugins.
func (h *Host) Plugins() []string {
	out := make([]string, len(h.plugins))
	for i, p := range h.plugins {
		out[i] = p.name
	}
	return out
}

// SessionID returns the uuid handle for a bound view.
func (h *Host) SessionID(viewID string) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.sessions[viewID]
	if !ok {
		return "", false
	}
	return s.id, true
}

// Flush blocks until every queued event has run; used by tests and
// shutdown paths.
func (h *Host) Flush() {
	ch := make(chan struct{})
	select {
	case h.events <- func() { close(ch) }:
	case <-h.done:
		return
	}
	select {
	case <-ch:
	case <-h.done:
	}
}

// ViewOpened binds a view: a session handle is allocated and every
// plugin's on_open hook runs with the initial content.
func (h *Host) ViewOpened(viewID string, rev buffer.Revision) {
	h.mu.Lock()
	h.sessions[viewID] = &session{
		id:   uuid.NewString(),
		rev:  rev.Seq,
		size: rev.Text.Len(),
	}
	h.mu.Unlock()

	text := rev.Text.String()
	h.post(func() { h.callAll("on_open", viewID, text) })
}

// ViewClosed unbinds a view and runs on_close hooks.
func (h *Host) ViewClosed(viewID string) {
	h.mu.Lock()
	delete(h.sessions, viewID)
	h.mu.Unlock()

	h.post(func() { h.callAll("on_close", viewID, "") })
}

// DeltaCommitted records the new revision and runs on_edit hooks with
// the post-edit content. rev.Text is an immutable snapshot, safe to
// read from the host goroutine while the core keeps editing.
func (h *Host) DeltaCommitted(viewID string, rev buffer.Revision, _ *delta.Delta) {
	h.mu.Lock()
	if s, ok := h.sessions[viewID]; ok {
		s.rev = rev.Seq
		s.size = rev.Text.Len()
	}
	h.mu.Unlock()

	text := rev.Text.String()
	h.post(func() { h.callAll("on_edit", viewID, text) })
}

func (h *Host) post(fn func()) {
	select {
	case h.events <- fn:
	case <-h.done:
	}
}

// callAll invokes a global hook function on every plugin that defines
// one. A failing plugin is logged and does not stop the others.
func (h *Host) callAll(hook, viewID, text string) {
	for _, p := range h.plugins {
		fn := p.state.GetGlobal(hook)
		if fn == lua.LNil {
			continue
		}
		args := []lua.LValue{lua.LString(viewID)}
		if hook != "on_close" {
			args = append(args, lua.LString(text))
		}
		if err := p.state.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, args...); err != nil {
			h.logger.Error("plugin %s %s: %v", p.name, hook, err)
		}
	}
}
