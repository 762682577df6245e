// Package control multiplexes request/response control traffic over the
// transport's outbound stream. It owns the pending-request table for
// SDK-initiated requests and dispatches CLI-initiated requests to local
// handlers.
package control

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kandev/agentsdk/internal/common/logger"
	"github.com/kandev/agentsdk/internal/tracing"
	"github.com/kandev/agentsdk/pkg/agenterrors"
	"github.com/kandev/agentsdk/pkg/streamjson"
)

// DefaultRequestTimeout bounds an outbound control request when the caller
// supplies no deadline.
const DefaultRequestTimeout = 60 * time.Second

// Writer is the outbound half of the transport the channel writes through.
type Writer interface {
	Write(ctx context.Context, msg streamjson.Message) error
}

// InboundHandler services one CLI-initiated control request. The returned
// payload is serialised into a success response; a returned error becomes
// an error response with the same request ID.
type InboundHandler func(ctx context.Context, req *streamjson.ControlRequest) (any, error)

type pendingRequest struct {
	id string
	ch chan *streamjson.ControlResponseBody
}

// Channel is the control-protocol multiplexer. Safe for concurrent use.
type Channel struct {
	writer Writer
	logger *logger.Logger

	counter atomic.Uint64
	prefix  string

	mu      sync.Mutex
	pending map[string]*pendingRequest
	closed  bool

	handlers map[string]InboundHandler

	timeout time.Duration
}

// NewChannel builds a channel over the given writer. Handlers are
// registered before the read loop starts and are immutable afterwards.
func NewChannel(writer Writer, log *logger.Logger, timeout time.Duration) *Channel {
	if log == nil {
		log = logger.Default()
	}
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &Channel{
		writer:   writer,
		logger:   log.WithComponent("control"),
		prefix:   strings.ReplaceAll(uuid.New().String(), "-", "")[:8],
		pending:  make(map[string]*pendingRequest),
		handlers: make(map[string]InboundHandler),
		timeout:  timeout,
	}
}

// RegisterHandler installs the handler for an inbound request subtype.
func (c *Channel) RegisterHandler(subtype string, handler InboundHandler) {
	c.handlers[subtype] = handler
}

// NextRequestID returns a request ID unique within this session: a
// monotonic counter paired with a per-channel random prefix.
func (c *Channel) NextRequestID() string {
	return fmt.Sprintf("req_%d_%s", c.counter.Add(1), c.prefix)
}

// SendRequest writes an outbound control request and blocks until the
// matching response, the deadline, or cancellation. The success payload is
// returned raw for the caller to decode.
func (c *Channel) SendRequest(ctx context.Context, body streamjson.ControlRequestBody, timeout time.Duration) (json.RawMessage, error) {
	if timeout <= 0 {
		timeout = c.timeout
	}

	id := c.NextRequestID()
	pending := &pendingRequest{
		id: id,
		ch: make(chan *streamjson.ControlResponseBody, 1),
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, agenterrors.InvalidState("control channel closed")
	}
	c.pending[id] = pending
	c.mu.Unlock()

	defer c.forget(id)

	ctx, span := tracing.TraceControlRequest(ctx, body.Subtype, id)
	defer span.End()

	if err := c.writer.Write(ctx, streamjson.NewControlRequest(id, body)); err != nil {
		tracing.TraceControlResponse(span, err)
		return nil, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case resp := <-pending.ch:
		if resp == nil {
			err := agenterrors.Cancelled("control request " + body.Subtype)
			tracing.TraceControlResponse(span, err)
			return nil, err
		}
		if resp.Subtype == streamjson.ResponseError {
			err := fmt.Errorf("control request %s failed: %s", body.Subtype, resp.Error)
			tracing.TraceControlResponse(span, err)
			return nil, err
		}
		return resp.Response, nil
	case <-timer.C:
		err := agenterrors.ControlTimeout(id)
		tracing.TraceControlResponse(span, err)
		return nil, err
	case <-ctx.Done():
		err := agenterrors.Cancelled("control request " + body.Subtype)
		tracing.TraceControlResponse(span, err)
		return nil, err
	}
}

// HandleResponse completes the pending request named by an inbound control
// response. Responses with no matching request are logged and dropped.
func (c *Channel) HandleResponse(resp *streamjson.ControlResponse) {
	id := resp.Response.RequestID

	c.mu.Lock()
	pending, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.mu.Unlock()

	if !ok {
		c.logger.Warn("control response for unknown request",
			zap.String("request_id", id),
			zap.String("subtype", resp.Response.Subtype),
		)
		return
	}
	pending.ch <- &resp.Response
}

// DispatchInbound services one CLI-initiated control request and writes
// exactly one response, unless the context is cancelled by shutdown. Panics
// in handlers are recovered into error responses.
func (c *Channel) DispatchInbound(ctx context.Context, req *streamjson.ControlRequest) {
	ctx, span := tracing.TraceHandlerDispatch(ctx, req.Request.Subtype, req.RequestID)
	defer span.End()

	payload, err := c.invoke(ctx, req)

	if ctx.Err() != nil {
		// Session shutdown; the peer tolerates a missing response.
		return
	}

	var resp *streamjson.ControlResponse
	if err != nil {
		c.logger.Debug("inbound control request failed",
			zap.String("request_id", req.RequestID),
			zap.String("subtype", req.Request.Subtype),
			zap.Error(err),
		)
		resp = streamjson.NewErrorResponse(req.RequestID, err.Error())
	} else {
		resp, err = streamjson.NewSuccessResponse(req.RequestID, payload)
		if err != nil {
			resp = streamjson.NewErrorResponse(req.RequestID, err.Error())
		}
	}

	if err := c.writer.Write(ctx, resp); err != nil {
		c.logger.Warn("failed to write control response",
			zap.String("request_id", req.RequestID),
			zap.Error(err),
		)
	}
}

func (c *Channel) invoke(ctx context.Context, req *streamjson.ControlRequest) (payload any, err error) {
	handler, ok := c.handlers[req.Request.Subtype]
	if !ok {
		return nil, fmt.Errorf("unsupported control request subtype: %s", req.Request.Subtype)
	}

	defer func() {
		if r := recover(); r != nil {
			err = agenterrors.HandlerFailure(fmt.Errorf("panic: %v", r))
		}
	}()
	return handler(ctx, req)
}

// Close completes every pending request with a cancellation and rejects
// further sends. Idempotent.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	for id, pending := range c.pending {
		delete(c.pending, id)
		pending.ch <- nil
	}
}

func (c *Channel) forget(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}
