// Package rpc implements the newline-delimited JSON protocol spoken
// between the core and a front-end. Each message is a single JSON
// object terminated by '\n'. Requests carry an id and expect a
// response; notifications carry no id and are fire-and-forget.
package rpc

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/tidwall/gjson"

	"github.com/plumedit/plume/internal/logging"
)

// Handler processes an incoming request and returns the result to
// send back, or an error. A *ResponseError return is forwarded
// verbatim; any other error becomes an internal error response.
type Handler func(ctx context.Context, params gjson.Result) (any, error)

// NotifyHandler processes an incoming notification.
type NotifyHandler func(ctx context.Context, params gjson.Result)

// Peer is one side of a newline-delimited JSON connection. It
// correlates outgoing calls with responses and dispatches incoming
// requests to registered handlers.
type Peer struct {
	reader  *bufio.Reader
	writer  io.Writer
	logger  *logging.Logger
	maxLine int

	writeMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[int64]chan *Response
	nextID    atomic.Int64

	handlerMu sync.RWMutex
	requests  map[string]Handler
	notifies  map[string]NotifyHandler
	fallback  NotifyHandler

	closeOnce sync.Once
	closed    chan struct{}
}

// maxLineSize bounds a single wire message. A full render of a very
// long line fits comfortably; anything larger is a protocol fault.
const maxLineSize = 64 << 20

// NewPeer creates a peer reading from r and writing to w. Run must be
// called to start dispatching incoming messages.
func NewPeer(r io.Reader, w io.Writer, logger *logging.Logger) *Peer {
	if logger == nil {
		logger = logging.NullLogger
	}
	return &Peer{
		reader:   bufio.NewReaderSize(r, 64*1024),
		maxLine:  maxLineSize,
		writer:   w,
		logger:   logger.WithComponent("rpc"),
		pending:  make(map[int64]chan *Response),
		requests: make(map[string]Handler),
		notifies: make(map[string]NotifyHandler),
		closed:   make(chan struct{}),
	}
}

// Handle registers a handler for incoming requests with the given
// method. Later registrations replace earlier ones.
func (p *Peer) Handle(method string, h Handler) {
	p.handlerMu.Lock()
	defer p.handlerMu.Unlock()
	p.requests[method] = h
}

// HandleNotify registers a handler for incoming notifications with
// the given method.
func (p *Peer) HandleNotify(method string, h NotifyHandler) {
	p.handlerMu.Lock()
	defer p.handlerMu.Unlock()
	p.notifies[method] = h
}

// SetFallback registers a handler for notifications with no
// registered method. Unknown requests always get a method-not-found
// response and never reach the fallback.
func (p *Peer) SetFallback(h NotifyHandler) {
	p.handlerMu.Lock()
	defer p.handlerMu.Unlock()
	p.fallback = h
}

// Call sends a request and waits for the matching response. The
// returned result is the raw JSON of the response's result field.
func (p *Peer) Call(ctx context.Context, method string, params any) (gjson.Result, error) {
	id := p.nextID.Add(1)

	req := Request{ID: &id, Method: method}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return gjson.Result{}, fmt.Errorf("marshal params for %s: %w", method, err)
		}
		req.Params = raw
	}

	ch := make(chan *Response, 1)
	p.pendingMu.Lock()
	p.pending[id] = ch
	p.pendingMu.Unlock()

	defer func() {
		p.pendingMu.Lock()
		delete(p.pending, id)
		p.pendingMu.Unlock()
	}()

	if err := p.send(req); err != nil {
		return gjson.Result{}, err
	}

	select {
	case resp := <-ch:
		if resp.Error != nil {
			return gjson.Result{}, resp.Error
		}
		return gjson.ParseBytes(resp.Result), nil
	case <-ctx.Done():
		return gjson.Result{}, ctx.Err()
	case <-p.closed:
		return gjson.Result{}, io.ErrClosedPipe
	}
}

// Notify sends a notification. It does not wait for anything.
func (p *Peer) Notify(method string, params any) error {
	req := Request{Method: method}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("marshal params for %s: %w", method, err)
		}
		req.Params = raw
	}
	return p.send(req)
}

// send marshals v and writes it as one newline-terminated message.
func (p *Peer) send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	select {
	case <-p.closed:
		return io.ErrClosedPipe
	default:
	}

	if _, err := p.writer.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

func (p *Peer) respond(id int64, result any, callErr error) {
	resp := Response{ID: id}
	if callErr != nil {
		if re, ok := callErr.(*ResponseError); ok {
			resp.Error = re
		} else {
			resp.Error = &ResponseError{Code: CodeInternalError, Message: callErr.Error()}
		}
	} else {
		raw, err := json.Marshal(result)
		if err != nil {
			resp.Error = &ResponseError{Code: CodeInternalError, Message: err.Error()}
		} else {
			resp.Result = raw
		}
	}
	if err := p.send(resp); err != nil {
		p.logger.Error("send response %d: %v", id, err)
	}
}

// Run reads messages until the reader fails, the context is
// cancelled, or Close is called. Incoming requests are handled on the
// calling goroutine so a front-end's messages are processed in order.
func (p *Peer) Run(ctx context.Context) error {
	defer p.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.closed:
			return nil
		default:
		}

		line, err := p.readLine()
		if len(line) > 0 {
			p.dispatch(ctx, line)
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			select {
			case <-p.closed:
				return nil
			default:
			}
			return fmt.Errorf("read message: %w", err)
		}
	}
}

// readLine reads one newline-terminated message, enforcing the size
// limit while reading so an oversized message never accumulates in
// memory or reaches dispatch.
func (p *Peer) readLine() ([]byte, error) {
	var line []byte
	for {
		chunk, err := p.reader.ReadSlice('\n')
		if len(line)+len(chunk) > p.maxLine {
			return nil, fmt.Errorf("message exceeds %d bytes", p.maxLine)
		}
		line = append(line, chunk...)
		if err != bufio.ErrBufferFull {
			return line, err
		}
	}
}

// dispatch probes a raw message and routes it. The shape decides the
// kind: a method field makes it a request or notification, otherwise
// an id field makes it a response to one of our calls.
func (p *Peer) dispatch(ctx context.Context, line []byte) {
	if !gjson.ValidBytes(line) {
		p.logger.Warn("discarding malformed message: %.80s", line)
		return
	}
	msg := gjson.ParseBytes(line)

	method := msg.Get("method")
	id := msg.Get("id")

	switch {
	case method.Exists() && id.Exists():
		p.handleRequest(ctx, id.Int(), method.String(), msg.Get("params"))
	case method.Exists():
		p.handleNotification(ctx, method.String(), msg.Get("params"))
	case id.Exists():
		p.handleResponse(id.Int(), line)
	default:
		p.logger.Warn("message with no method and no id: %.80s", line)
	}
}

func (p *Peer) handleRequest(ctx context.Context, id int64, method string, params gjson.Result) {
	p.handlerMu.RLock()
	h, ok := p.requests[method]
	p.handlerMu.RUnlock()

	if !ok {
		p.respond(id, nil, &ResponseError{
			Code:    CodeMethodNotFound,
			Message: fmt.Sprintf("unknown method %q", method),
		})
		return
	}

	result, err := h(ctx, params)
	p.respond(id, result, err)
}

func (p *Peer) handleNotification(ctx context.Context, method string, params gjson.Result) {
	p.handlerMu.RLock()
	h, ok := p.notifies[method]
	fallback := p.fallback
	p.handlerMu.RUnlock()

	if ok {
		h(ctx, params)
		return
	}
	if fallback != nil {
		fallback(ctx, params)
		return
	}
	p.logger.Debug("unhandled notification %q", method)
}

func (p *Peer) handleResponse(id int64, line []byte) {
	var resp Response
	if err := json.Unmarshal(line, &resp); err != nil {
		p.logger.Warn("malformed response %d: %v", id, err)
		return
	}

	p.pendingMu.Lock()
	ch, ok := p.pending[id]
	p.pendingMu.Unlock()

	if !ok {
		p.logger.Warn("response for unknown call %d", id)
		return
	}
	ch <- &resp
}

// Close shuts the peer down. Pending calls fail, and Run returns.
func (p *Peer) Close() {
	p.closeOnce.Do(func() {
		close(p.closed)
	})
}

// IsClosed reports whether Close has been called.
func (p *Peer) IsClosed() bool {
	select {
	case <-p.closed:
		return true
	default:
		return false
	}
}
