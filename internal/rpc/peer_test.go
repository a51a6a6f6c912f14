package rpc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tidwall/gjson"

	"github.com/plumedit/plume/internal/logging"
)

// pipePair wires two peers together over in-memory pipes and starts
// their read loops.
func pipePair(t *testing.T) (*Peer, *Peer) {
	t.Helper()
	ar, bw := io.Pipe()
	br, aw := io.Pipe()

	a := NewPeer(ar, aw, logging.NullLogger)
	b := NewPeer(br, bw, logging.NullLogger)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = a.Run(ctx) }()
	go func() { _ = b.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		a.Close()
		b.Close()
		ar.Close()
		br.Close()
		aw.Close()
		bw.Close()
	})
	return a, b
}

func TestCallRoundTrip(t *testing.T) {
	a, b := pipePair(t)

	b.Handle("add", func(_ context.Context, params gjson.Result) (any, error) {
		return params.Get("x").Int() + params.Get("y").Int(), nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	res, err := a.Call(ctx, "add", map[string]int{"x": 2, "y": 3})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if res.Int() != 5 {
		t.Errorf("result = %v, want 5", res.Int())
	}
}

func TestCallErrorResponse(t *testing.T) {
	a, b := pipePair(t)

	b.Handle("fail", func(context.Context, gjson.Result) (any, error) {
		return nil, &ResponseError{Code: CodeInvalidParams, Message: "bad revision"}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := a.Call(ctx, "fail", nil)
	var re *ResponseError
	if !errors.As(err, &re) {
		t.Fatalf("err = %v, want *ResponseError", err)
	}
	if re.Code != CodeInvalidParams {
		t.Errorf("code = %d, want %d", re.Code, CodeInvalidParams)
	}
}

func TestCallUnknownMethod(t *testing.T) {
	a, _ := pipePair(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := a.Call(ctx, "no_such_method", nil)
	var re *ResponseError
	if !errors.As(err, &re) || re.Code != CodeMethodNotFound {
		t.Errorf("err = %v, want method-not-found response", err)
	}
}

func TestNotifyDelivery(t *testing.T) {
	a, b := pipePair(t)

	got := make(chan string, 1)
	b.HandleNotify("scroll", func(_ context.Context, params gjson.Result) {
		got <- params.Get("view_id").String()
	})

	if err := a.Notify("scroll", map[string]string{"view_id": "view-7"}); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	select {
	case id := <-got:
		if id != "view-7" {
			t.Errorf("view_id = %q, want view-7", id)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("notification never delivered")
	}
}

func TestMalformedLineIgnored(t *testing.T) {
	pr, pw := io.Pipe()
	p := NewPeer(pr, io.Discard, logging.NullLogger)

	done := make(chan struct{})
	got := make(chan struct{}, 1)
	p.HandleNotify("ping", func(context.Context, gjson.Result) { got <- struct{}{} })

	go func() {
		_ = p.Run(context.Background())
		close(done)
	}()

	// Garbage must not kill the loop; the next well-formed message
	// still dispatches.
	io.WriteString(pw, "{not json\n")
	io.WriteString(pw, `{"method":"ping"}`+"\n")

	select {
	case <-got:
	case <-time.After(5 * time.Second):
		t.Fatal("peer stopped dispatching after malformed input")
	}

	pw.Close()
	<-done
}

func TestOversizedMessageRejected(t *testing.T) {
	pr, pw := io.Pipe()
	p := NewPeer(pr, io.Discard, logging.NullLogger)
	p.maxLine = 1024

	dispatched := make(chan struct{}, 1)
	p.SetFallback(func(context.Context, gjson.Result) { dispatched <- struct{}{} })

	errc := make(chan error, 1)
	go func() { errc <- p.Run(context.Background()) }()

	big := `{"method":"flood","params":{"filler":"` + strings.Repeat("x", 4096) + `"}}` + "\n"
	go io.WriteString(pw, big)

	select {
	case err := <-errc:
		if err == nil {
			t.Fatal("oversized message must fail the read loop")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("read loop did not stop on an oversized message")
	}
	select {
	case <-dispatched:
		t.Error("oversized message must not be dispatched")
	default:
	}
}

func TestOversizedMessageNeverBuffered(t *testing.T) {
	// The limit must bite mid-read: a sender that never terminates its
	// line still gets cut off after maxLine bytes.
	pr, pw := io.Pipe()
	p := NewPeer(pr, io.Discard, logging.NullLogger)
	p.maxLine = 256 * 1024

	errc := make(chan error, 1)
	go func() { errc <- p.Run(context.Background()) }()

	chunk := strings.Repeat("y", 64*1024)
	go func() {
		for {
			if _, err := io.WriteString(pw, chunk); err != nil {
				return
			}
		}
	}()
	defer pw.Close()

	select {
	case err := <-errc:
		if err == nil {
			t.Fatal("endless line must fail the read loop")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("read loop kept buffering an endless line")
	}
}

func TestRequestsHandledInOrder(t *testing.T) {
	pr, pw := io.Pipe()
	outR, outW := io.Pipe()
	p := NewPeer(pr, outW, logging.NullLogger)

	var mu sync.Mutex
	var seen []int64
	p.Handle("echo", func(_ context.Context, params gjson.Result) (any, error) {
		mu.Lock()
		seen = append(seen, params.Get("n").Int())
		mu.Unlock()
		return nil, nil
	})

	go func() { _ = p.Run(context.Background()) }()
	defer p.Close()

	go func() {
		for i := 0; i < 20; i++ {
			req := Request{Method: "echo"}
			id := int64(i + 1)
			req.ID = &id
			req.Params, _ = json.Marshal(map[string]int{"n": i})
			data, _ := json.Marshal(req)
			pw.Write(append(data, '\n'))
		}
	}()

	// Drain responses so the writer never blocks.
	sc := bufio.NewScanner(outR)
	for i := 0; i < 20; i++ {
		if !sc.Scan() {
			t.Fatalf("response stream ended early: %v", sc.Err())
		}
	}

	mu.Lock()
	defer mu.Unlock()
	for i, n := range seen {
		if n != int64(i) {
			t.Fatalf("requests handled out of order: %v", seen)
		}
	}
}

func TestCloseFailsPendingCall(t *testing.T) {
	pr, _ := io.Pipe()
	p := NewPeer(pr, io.Discard, logging.NullLogger)

	errc := make(chan error, 1)
	go func() {
		// Nothing will ever answer, so the call parks on its pending
		// channel until Close sweeps it out.
		_, err := p.Call(context.Background(), "hang", nil)
		errc <- err
	}()

	time.Sleep(50 * time.Millisecond)
	p.Close()

	select {
	case err := <-errc:
		if err == nil {
			t.Error("pending call must fail on close")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("pending call never unblocked")
	}
}
