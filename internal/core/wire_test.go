package core

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tidwall/gjson"

	"github.com/plumedit/plume/internal/config"
	"github.com/plumedit/plume/internal/logging"
	"github.com/plumedit/plume/internal/rpc"
)

// wireClient drives a bound core the way a front-end would: raw JSON
// lines over pipes, no shortcuts through the Go API.
type wireClient struct {
	t       *testing.T
	enc     *json.Encoder
	sc      *bufio.Scanner
	updates []gjson.Result
}

func startWire(t *testing.T) *wireClient {
	t.Helper()
	inR, inW := io.Pipe()
	outR, outW := io.Pipe()

	peer := rpc.NewPeer(inR, outW, logging.NullLogger)
	c := New(config.Default(), peer, logging.NullLogger)
	c.Bind(peer)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = c.Run(ctx) }()
	go func() { _ = peer.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		peer.Close()
		c.Close()
		inW.Close()
		outR.Close()
	})

	sc := bufio.NewScanner(outR)
	sc.Buffer(make([]byte, 0, 64*1024), 16<<20)
	return &wireClient{t: t, enc: json.NewEncoder(inW), sc: sc}
}

func (w *wireClient) send(frame string) {
	w.t.Helper()
	if err := w.enc.Encode(json.RawMessage(frame)); err != nil {
		w.t.Fatalf("send: %v", err)
	}
}

func (w *wireClient) next() gjson.Result {
	w.t.Helper()
	if !w.sc.Scan() {
		w.t.Fatalf("stream ended: %v", w.sc.Err())
	}
	return gjson.Parse(w.sc.Text())
}

// nextUpdate returns the next update notification's params, in arrival
// order, including any buffered while waiting for a response.
func (w *wireClient) nextUpdate() gjson.Result {
	w.t.Helper()
	if len(w.updates) > 0 {
		u := w.updates[0]
		w.updates = w.updates[1:]
		return u
	}
	for {
		m := w.next()
		if m.Get("method").String() == "update" {
			return m.Get("params")
		}
		w.t.Fatalf("expected update, got: %s", m.Raw)
	}
}

// response reads until the response with the given id arrives,
// buffering any updates that come first.
func (w *wireClient) response(id int64) gjson.Result {
	w.t.Helper()
	for {
		m := w.next()
		if m.Get("method").String() == "update" {
			w.updates = append(w.updates, m.Get("params"))
			continue
		}
		if m.Get("id").Int() == id {
			return m
		}
		w.t.Fatalf("unexpected frame: %s", m.Raw)
	}
}

func hasStyledLine(u gjson.Result) bool {
	found := false
	u.Get("ops").ForEach(func(_, op gjson.Result) bool {
		op.Get("lines").ForEach(func(_, l gjson.Result) bool {
			if l.Get("styles").Exists() {
				found = true
			}
			return true
		})
		return true
	})
	return found
}

func TestWireRoundTrip(t *testing.T) {
	w := startWire(t)

	path := filepath.Join(t.TempDir(), "big.txt")
	content := strings.TrimSuffix(strings.Repeat("line\n", 100), "\n")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	w.send(`{"id":1,"method":"new_view","params":{"file_path":"` + path + `"}}`)
	resp := w.response(1)
	if got := resp.Get("result").String(); got != "view-id-1" {
		t.Fatalf("new_view result = %q, want view-id-1", got)
	}
	first := w.nextUpdate()
	if first.Get("ops.#").Int() == 0 {
		t.Fatal("first update carries no ops")
	}
	if !first.Get("pristine").Bool() {
		t.Error("freshly opened view must be pristine")
	}

	// Caret starts at offset 0, inside the default window, so the
	// edited line text rides along in the next update.
	w.send(`{"method":"edit","params":{"view_id":"view-id-1","method":"insert","params":{"chars":"hi"}}}`)
	u := w.nextUpdate()
	if u.Get("rev").Int() != 1 {
		t.Errorf("rev = %d, want 1", u.Get("rev").Int())
	}
	if u.Get("pristine").Bool() {
		t.Error("edited view must not be pristine")
	}
	if !strings.Contains(u.Get("ops").Raw, `"hiline"`) {
		t.Errorf("edited line text missing from ops: %s", u.Get("ops").Raw)
	}

	// Styles registered over the wire are usable immediately.
	w.send(`{"method":"set_style","params":{"id":5,"fg_color":4290772992}}`)
	w.send(`{"method":"add_style_spans","params":{"view_id":"view-id-1","spans":[{"start":0,"len":2,"id":5}]}}`)
	if u := w.nextUpdate(); !hasStyledLine(u) {
		t.Errorf("no styled line in ops: %s", u.Raw)
	}

	// Scrolling far away refreshes the window.
	w.send(`{"method":"scroll","params":{"view_id":"view-id-1","first":50,"last":55}}`)
	u = w.nextUpdate()
	if !strings.Contains(u.Get("ops").Raw, `"line"`) {
		t.Errorf("scrolled-in lines missing from ops: %s", u.Get("ops").Raw)
	}

	// render_lines fetches outside the window synchronously.
	w.send(`{"id":2,"method":"render_lines","params":{"view_id":"view-id-1","first_line":0,"last_line":1}}`)
	resp = w.response(2)
	if got := resp.Get("result.lines.0.text").String(); got != "hiline" {
		t.Errorf("rendered line = %q, want hiline", got)
	}

	// After close_view the id is gone; requests against it fail.
	w.send(`{"method":"close_view","params":{"view_id":"view-id-1"}}`)
	w.send(`{"id":3,"method":"render_lines","params":{"view_id":"view-id-1","first_line":0,"last_line":1}}`)
	resp = w.response(3)
	if code := resp.Get("error.code").Int(); code != rpc.CodeInvalidParams {
		t.Errorf("error code = %d, want %d", code, rpc.CodeInvalidParams)
	}
}

func TestWireUnknownMethod(t *testing.T) {
	w := startWire(t)
	w.send(`{"id":9,"method":"does_not_exist"}`)
	resp := w.response(9)
	if code := resp.Get("error.code").Int(); code != rpc.CodeMethodNotFound {
		t.Errorf("error code = %d, want %d", code, rpc.CodeMethodNotFound)
	}
}
