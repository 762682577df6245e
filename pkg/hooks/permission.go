package hooks

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/kandev/agentsdk/internal/common/logger"
	"github.com/kandev/agentsdk/pkg/streamjson"
)

// PermissionRequest is the can_use_tool query delivered to the permission
// callback.
type PermissionRequest struct {
	ToolName    string
	Input       json.RawMessage
	Suggestions []json.RawMessage
	BlockedPath *string
}

// PermissionResult is the callback's decision: Allow or Deny.
type PermissionResult interface {
	permissionResult()
}

// Allow permits the tool call, optionally rewriting its input or updating
// standing permissions.
type AllowResult struct {
	UpdatedInput       json.RawMessage
	UpdatedPermissions []json.RawMessage
}

func (AllowResult) permissionResult() {}

// Deny refuses the tool call. Interrupt asks the CLI to stop the turn.
type DenyResult struct {
	Message   string
	Interrupt bool
}

func (DenyResult) permissionResult() {}

// PermissionCallback decides one tool-permission query. A single callback
// is installed per session.
type PermissionCallback func(ctx context.Context, req *PermissionRequest) (PermissionResult, error)

// permissionReply is the wire shape of a permission decision. Behavior and
// interrupt are always present; the nested update fields are camelCase.
type permissionReply struct {
	Behavior           string            `json:"behavior"`
	UpdatedInput       json.RawMessage   `json:"updatedInput,omitempty"`
	UpdatedPermissions []json.RawMessage `json:"updatedPermissions,omitempty"`
	Message            string            `json:"message,omitempty"`
	Interrupt          *bool             `json:"interrupt,omitempty"`
}

// PermissionDispatcher services inbound can_use_tool requests.
type PermissionDispatcher struct {
	callback PermissionCallback
	logger   *logger.Logger
}

// NewPermissionDispatcher builds a dispatcher around the session's single
// permission callback. A nil callback denies every query.
func NewPermissionDispatcher(callback PermissionCallback, log *logger.Logger) *PermissionDispatcher {
	if log == nil {
		log = logger.Default()
	}
	return &PermissionDispatcher{
		callback: callback,
		logger:   log.WithComponent("permissions"),
	}
}

// Handle services one can_use_tool request. Callback failures map to a
// deny carrying the failure text; the agent is never left without a
// decision.
func (d *PermissionDispatcher) Handle(ctx context.Context, req *streamjson.ControlRequest) (any, error) {
	query := &PermissionRequest{
		ToolName:    req.Request.ToolName,
		Input:       req.Request.Input,
		Suggestions: req.Request.PermissionSuggestions,
		BlockedPath: req.Request.BlockedPath,
	}

	d.logger.Debug("dispatching permission query",
		zap.String("tool_name", query.ToolName),
	)

	result := d.decide(ctx, query)

	switch r := result.(type) {
	case *AllowResult:
		return allowReply(r), nil
	case AllowResult:
		return allowReply(&r), nil
	case *DenyResult:
		return denyReply(r), nil
	case DenyResult:
		return denyReply(&r), nil
	default:
		return nil, fmt.Errorf("unsupported permission result %T", result)
	}
}

func allowReply(r *AllowResult) *permissionReply {
	return &permissionReply{
		Behavior:           "allow",
		UpdatedInput:       r.UpdatedInput,
		UpdatedPermissions: r.UpdatedPermissions,
	}
}

func denyReply(r *DenyResult) *permissionReply {
	interrupt := r.Interrupt
	return &permissionReply{
		Behavior:  "deny",
		Message:   r.Message,
		Interrupt: &interrupt,
	}
}

func (d *PermissionDispatcher) decide(ctx context.Context, query *PermissionRequest) (result PermissionResult) {
	if d.callback == nil {
		return &DenyResult{Message: "no permission callback registered"}
	}

	defer func() {
		if r := recover(); r != nil {
			d.logger.Warn("permission callback panicked",
				zap.String("tool_name", query.ToolName),
				zap.Any("panic", r),
			)
			result = &DenyResult{Message: fmt.Sprintf("%v", r)}
		}
	}()

	res, err := d.callback(ctx, query)
	if err != nil {
		return &DenyResult{Message: err.Error()}
	}
	if res == nil {
		return &DenyResult{Message: "permission callback returned no decision"}
	}
	return res
}
