package plugin

import (
	"context"

	lua "github.com/yuin/gopher-lua"

	"github.com/plumedit/plume/internal/engine/delta"
)

// register installs the `plume` table into a plugin state:
//
//	plume.log(msg)                        write to the core log
//	plume.session(view_id) -> id|nil      uuid handle for a bound view
//	plume.edit(view_id, start, end, text) replace [start, end) with text
//
// Offsets are UTF-8 bytes against the revision the host last reported
// for that view; the core rebases the edit if it has moved on.
func (h *Host) register(L *lua.LState) {
	mod := L.NewTable()
	L.SetField(mod, "log", L.NewFunction(h.luaLog))
	L.SetField(mod, "session", L.NewFunction(h.luaSession))
	L.SetField(mod, "edit", L.NewFunction(h.luaEdit))
	L.SetGlobal("plume", mod)
}

func (h *Host) luaLog(L *lua.LState) int {
	h.logger.Info("lua: %s", L.CheckString(1))
	return 0
}

func (h *Host) luaSession(L *lua.LState) int {
	id, ok := h.SessionID(L.CheckString(1))
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LString(id))
	return 1
}

// luaEdit builds a delta against the host's last-seen revision and
// routes it through the edit sink. Returns (ok, err).
func (h *Host) luaEdit(L *lua.LState) int {
	viewID := L.CheckString(1)
	start := L.CheckInt(2)
	end := L.CheckInt(3)
	text := L.CheckString(4)

	h.mu.Lock()
	s, ok := h.sessions[viewID]
	var rev uint64
	var size int
	if ok {
		rev, size = s.rev, s.size
	}
	h.mu.Unlock()

	if !ok {
		L.Push(lua.LFalse)
		L.Push(lua.LString("view not bound"))
		return 2
	}

	d, err := delta.SimpleEdit(start, end, text, size)
	if err != nil {
		L.Push(lua.LFalse)
		L.Push(lua.LString(err.Error()))
		return 2
	}

	ctx, cancel := context.WithTimeout(context.Background(), editTimeout)
	defer cancel()
	if _, err := h.sink.ApplyExternal(ctx, viewID, rev, d); err != nil {
		L.Push(lua.LFalse)
		L.Push(lua.LString(err.Error()))
		return 2
	}

	L.Push(lua.LTrue)
	return 1
}
