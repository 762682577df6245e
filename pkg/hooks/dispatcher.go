package hooks

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kandev/agentsdk/internal/common/logger"
	"github.com/kandev/agentsdk/pkg/streamjson"
)

// Dispatcher services inbound hook_callback control requests against the
// flat callback table built by the registry.
type Dispatcher struct {
	table  map[string]Callback
	logger *logger.Logger
}

// NewDispatcher builds a dispatcher over a callback table.
func NewDispatcher(table map[string]Callback, log *logger.Logger) *Dispatcher {
	if log == nil {
		log = logger.Default()
	}
	return &Dispatcher{
		table:  table,
		logger: log.WithComponent("hooks"),
	}
}

// Handle services one hook_callback request. The returned payload is the
// hook output in its wire shape; a returned error becomes an error control
// response so the CLI is never left waiting.
func (d *Dispatcher) Handle(ctx context.Context, req *streamjson.ControlRequest) (any, error) {
	id := req.Request.CallbackID
	cb, ok := d.table[id]
	if !ok {
		return nil, fmt.Errorf("no hook callback registered with id %s", id)
	}

	input, err := ParseInput(req.Request.Input)
	if err != nil {
		return nil, fmt.Errorf("parse hook input: %w", err)
	}

	d.logger.Debug("dispatching hook callback",
		zap.String("callback_id", id),
		zap.String("event", input.HookEventName),
		zap.String("tool_name", input.ToolName),
	)

	out, err := cb(ctx, input, req.Request.ToolUseID)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = Allow()
	}
	return out, nil
}
