package session

import (
	"context"
	"encoding/json"
	"errors"
	"iter"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kandev/agentsdk/internal/common/logger"
	"github.com/kandev/agentsdk/pkg/agenterrors"
	"github.com/kandev/agentsdk/pkg/control"
	"github.com/kandev/agentsdk/pkg/hooks"
	"github.com/kandev/agentsdk/pkg/mcpserver"
	"github.com/kandev/agentsdk/pkg/streamjson"
	"github.com/kandev/agentsdk/pkg/transport"
)

// Session is an interactive exchange with the Agent CLI. It owns one
// transport, the control channel and the registered handler capabilities.
// All methods are safe for concurrent use.
type Session struct {
	opts   *Options
	logger *logger.Logger

	transport *transport.Subprocess
	control   *control.Channel

	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group

	state stateVar

	msgCh chan streamjson.Message

	mu        sync.Mutex
	fatalErr  error
	sessionID string

	closeOnce sync.Once
	closeErr  error
}

// New builds a session from options. Connect must be called before use.
func New(opts *Options) *Session {
	if opts == nil {
		opts = &Options{}
	}
	return &Session{
		opts:   opts,
		logger: opts.logger().WithComponent("session"),
		msgCh:  make(chan streamjson.Message, opts.channelCapacity()),
	}
}

// Connect spawns the CLI, starts the multiplexing loop and performs the
// initialize handshake. On any failure the session lands in Closed.
func (s *Session) Connect(ctx context.Context) error {
	if !s.state.swap(StateNotStarted, StateConnecting) {
		return agenterrors.InvalidState("session already started")
	}

	renderer := s.opts.Renderer
	if renderer == nil {
		renderer = DefaultRenderer{}
	}
	args, err := renderer.Render(s.opts, "", false)
	if err != nil {
		s.state.set(StateClosed)
		return err
	}

	s.transport = transport.NewSubprocess(transport.Options{
		Args:           args,
		Dir:            s.opts.WorkingDir,
		Env:            s.opts.Env,
		StderrObserver: s.opts.StderrObserver,
		Resolver:       s.resolver(),
		Launcher:       s.opts.Launcher,
		Logger:         s.opts.logger(),
	})
	s.control = control.NewChannel(s.transport, s.opts.logger(), s.opts.ControlTimeout)

	hookDescriptor := s.wireHandlers()

	if err := s.transport.Connect(ctx); err != nil {
		s.state.set(StateClosed)
		return err
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.group, _ = errgroup.WithContext(s.ctx)
	s.group.Go(func() error {
		s.readLoop()
		return nil
	})

	s.state.set(StateInitializing)
	if err := s.initialize(ctx, hookDescriptor); err != nil {
		_ = s.Close(context.Background())
		return err
	}

	s.state.set(StateReady)
	return nil
}

// wireHandlers registers the inbound control handlers and returns the hook
// registration descriptor for the initialize request.
func (s *Session) wireHandlers() map[string][]streamjson.HookMatcherDescriptor {
	log := s.opts.logger()

	var descriptor map[string][]streamjson.HookMatcherDescriptor
	if s.opts.Hooks != nil && !s.opts.Hooks.Empty() {
		desc, table := s.opts.Hooks.Build()
		descriptor = desc
		dispatcher := hooks.NewDispatcher(table, log)
		s.control.RegisterHandler(streamjson.SubtypeHookCallback, dispatcher.Handle)
	}

	if s.opts.CanUseTool != nil {
		perms := hooks.NewPermissionDispatcher(s.opts.CanUseTool, log)
		s.control.RegisterHandler(streamjson.SubtypeCanUseTool, perms.Handle)
	}

	if len(s.opts.ToolServers) > 0 {
		router := mcpserver.NewRouter(s.opts.ToolServers, log)
		s.control.RegisterHandler(streamjson.SubtypeMCPMessage, router.Handle)
	}

	return descriptor
}

func (s *Session) initialize(ctx context.Context, descriptor map[string][]streamjson.HookMatcherDescriptor) error {
	_, err := s.control.SendRequest(ctx, streamjson.ControlRequestBody{
		Subtype: streamjson.SubtypeInitialize,
		Hooks:   descriptor,
	}, s.opts.ControlTimeout)
	return err
}

// readLoop is the single reader: it demultiplexes transport frames into
// the message channel, the pending-request table and handler dispatch.
func (s *Session) readLoop() {
	defer close(s.msgCh)

	for msg, err := range s.transport.ReadMessages(s.ctx) {
		if err != nil {
			var unknown *streamjson.UnknownFrameError
			if errors.As(err, &unknown) {
				s.logger.Warn("dropping unknown frame", zap.String("frame_type", unknown.FrameType))
				continue
			}
			if agenterrors.IsCancelled(err) {
				return
			}
			s.setFatal(err)
			return
		}

		switch m := msg.(type) {
		case *streamjson.ControlRequest:
			req := m
			go s.control.DispatchInbound(s.ctx, req)

		case *streamjson.ControlResponse:
			s.control.HandleResponse(m)

		case *streamjson.ControlCancelRequest:
			// Follow-up cancellation of an inbound request; handlers are
			// already bounded by the session scope.
			s.logger.Debug("control cancel received", zap.String("request_id", m.RequestID))

		default:
			s.noteSessionID(msg)
			select {
			case s.msgCh <- msg:
			case <-s.ctx.Done():
				return
			}
		}
	}

	// Clean end of stream. Unblock any pending control requests and, if
	// the consumer is not already closing, settle in Closed.
	s.control.Close()
	if !s.state.swap(StateClosing, StateClosed) {
		s.state.set(StateClosed)
	}
}

func (s *Session) noteSessionID(msg streamjson.Message) {
	if sys, ok := msg.(*streamjson.SystemMessage); ok && sys.Subtype == streamjson.SystemInit {
		s.mu.Lock()
		s.sessionID = sys.SessionID
		s.mu.Unlock()
	}
}

func (s *Session) setFatal(err error) {
	s.mu.Lock()
	if s.fatalErr == nil {
		s.fatalErr = err
	}
	s.mu.Unlock()

	s.logger.Error("session terminated by read error", zap.Error(err))
	s.control.Close()
	s.state.set(StateClosed)
}

func (s *Session) fatal() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fatalErr
}

// SessionID returns the CLI-assigned session identifier, empty until the
// init system message arrives.
func (s *Session) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

// State returns the current lifecycle phase.
func (s *Session) State() State {
	return s.state.get()
}

// Send writes one user message. SessionID may be empty to address the
// current session.
func (s *Session) Send(ctx context.Context, content, sessionID string) error {
	if err := s.fatal(); err != nil {
		return agenterrors.InvalidState("session failed: " + err.Error())
	}
	switch s.state.get() {
	case StateReady, StateInterrupting:
	default:
		return agenterrors.InvalidState("session is " + s.state.get().String())
	}
	return s.transport.Write(ctx, streamjson.NewUserMessage(content, sessionID))
}

// ReceiveMessages yields agent messages in emission order until the stream
// ends or ctx is cancelled. The terminal error, if any, is yielded last.
func (s *Session) ReceiveMessages(ctx context.Context) iter.Seq2[streamjson.Message, error] {
	return func(yield func(streamjson.Message, error) bool) {
		for {
			select {
			case msg, ok := <-s.msgCh:
				if !ok {
					if err := s.fatal(); err != nil {
						yield(nil, err)
					}
					return
				}
				if !yield(msg, nil) {
					return
				}
			case <-ctx.Done():
				yield(nil, agenterrors.Cancelled("receive"))
				return
			}
		}
	}
}

// ReceiveResponse yields agent messages up to and including the next
// result message, then terminates.
func (s *Session) ReceiveResponse(ctx context.Context) iter.Seq2[streamjson.Message, error] {
	return func(yield func(streamjson.Message, error) bool) {
		for msg, err := range s.ReceiveMessages(ctx) {
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(msg, nil) {
				return
			}
			if _, done := msg.(*streamjson.ResultMessage); done {
				return
			}
		}
	}
}

// Interrupt asks the CLI to stop the current turn and waits for the
// acknowledgement.
func (s *Session) Interrupt(ctx context.Context) error {
	if !s.state.swap(StateReady, StateInterrupting) {
		return agenterrors.InvalidState("session is " + s.state.get().String())
	}
	_, err := s.control.SendRequest(ctx, streamjson.ControlRequestBody{
		Subtype: streamjson.SubtypeInterrupt,
	}, 0)
	s.state.swap(StateInterrupting, StateReady)
	return err
}

// SetModel switches the active model. An empty model resets to the CLI
// default.
func (s *Session) SetModel(ctx context.Context, model string) error {
	var m *string
	if model != "" {
		m = &model
	}
	_, err := s.control.SendRequest(ctx, streamjson.ControlRequestBody{
		Subtype: streamjson.SubtypeSetModel,
		Model:   m,
	}, 0)
	return err
}

// SetPermissionMode changes how the CLI gates tool use. Mode strings are
// normalised to the canonical wire spelling, case-insensitively.
func (s *Session) SetPermissionMode(ctx context.Context, mode string) error {
	canonical, ok := streamjson.ParsePermissionMode(mode)
	if !ok {
		return agenterrors.InvalidState("unknown permission mode " + mode)
	}
	_, err := s.control.SendRequest(ctx, streamjson.ControlRequestBody{
		Subtype: streamjson.SubtypeSetPermissionMode,
		Mode:    canonical.String(),
	}, 0)
	return err
}

// SetMaxThinkingTokens adjusts the extended-thinking budget.
func (s *Session) SetMaxThinkingTokens(ctx context.Context, n int) error {
	_, err := s.control.SendRequest(ctx, streamjson.ControlRequestBody{
		Subtype:           streamjson.SubtypeSetMaxThinkingTokens,
		MaxThinkingTokens: &n,
	}, 0)
	return err
}

// RewindFilesResult reports the file restoration outcome. The counters are
// optional; the CLI does not always populate them.
type RewindFilesResult struct {
	FilesChanged *int `json:"files_changed,omitempty"`
	Insertions   *int `json:"insertions,omitempty"`
	Deletions    *int `json:"deletions,omitempty"`
}

// RewindFiles restores tracked files to their state at the given user
// message.
func (s *Session) RewindFiles(ctx context.Context, userMessageID string) (*RewindFilesResult, error) {
	raw, err := s.control.SendRequest(ctx, streamjson.ControlRequestBody{
		Subtype:       streamjson.SubtypeRewindFiles,
		UserMessageID: userMessageID,
	}, 0)
	if err != nil {
		return nil, err
	}
	var result RewindFilesResult
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &result); err != nil {
			return nil, agenterrors.ProtocolViolation("malformed rewind_files response: " + err.Error())
		}
	}
	return &result, nil
}

// SupportedCommands lists the CLI's slash commands. The payload shape is
// CLI-version dependent and returned raw.
func (s *Session) SupportedCommands(ctx context.Context) (json.RawMessage, error) {
	return s.control.SendRequest(ctx, streamjson.ControlRequestBody{
		Subtype: streamjson.SubtypeSupportedCommands,
	}, 0)
}

// SupportedModels lists the models the CLI can run.
func (s *Session) SupportedModels(ctx context.Context) (json.RawMessage, error) {
	return s.control.SendRequest(ctx, streamjson.ControlRequestBody{
		Subtype: streamjson.SubtypeSupportedModels,
	}, 0)
}

// McpServerStatus reports the CLI's view of configured MCP servers.
func (s *Session) McpServerStatus(ctx context.Context) (json.RawMessage, error) {
	return s.control.SendRequest(ctx, streamjson.ControlRequestBody{
		Subtype: streamjson.SubtypeMCPServerStatus,
	}, 0)
}

// AccountInfo reports the authenticated account.
func (s *Session) AccountInfo(ctx context.Context) (json.RawMessage, error) {
	return s.control.SendRequest(ctx, streamjson.ControlRequestBody{
		Subtype: streamjson.SubtypeAccountInfo,
	}, 0)
}

// ReconnectMcpServer restarts the named MCP server connection.
func (s *Session) ReconnectMcpServer(ctx context.Context, name string) error {
	_, err := s.control.SendRequest(ctx, streamjson.ControlRequestBody{
		Subtype:    streamjson.SubtypeReconnectMCPServer,
		ServerName: name,
	}, 0)
	return err
}

// ToggleMcpServer enables or disables the named MCP server.
func (s *Session) ToggleMcpServer(ctx context.Context, name string, enabled bool) error {
	_, err := s.control.SendRequest(ctx, streamjson.ControlRequestBody{
		Subtype:    streamjson.SubtypeToggleMCPServer,
		ServerName: name,
		Enabled:    &enabled,
	}, 0)
	return err
}

// SetMcpServers replaces the CLI's MCP server configuration.
func (s *Session) SetMcpServers(ctx context.Context, servers map[string]McpServerConfig) error {
	raw := make(map[string]json.RawMessage, len(servers))
	for name, cfg := range servers {
		b, err := json.Marshal(cfg)
		if err != nil {
			return err
		}
		raw[name] = b
	}
	_, err := s.control.SendRequest(ctx, streamjson.ControlRequestBody{
		Subtype:    streamjson.SubtypeSetMCPServers,
		MCPServers: raw,
	}, 0)
	return err
}

// Close shuts the session down: handlers are cancelled, pending control
// requests complete as cancelled, and the child gets the grace window
// before termination. Idempotent.
func (s *Session) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		s.state.set(StateClosing)

		if s.cancel != nil {
			s.cancel()
		}
		if s.control != nil {
			s.control.Close()
		}
		if s.transport != nil {
			_ = s.transport.EndInput()
			s.closeErr = s.transport.Close(ctx)
		}
		if s.group != nil {
			_ = s.group.Wait()
		}

		s.state.set(StateClosed)
	})
	return s.closeErr
}

// WasKilled reports whether Close had to force-terminate the CLI.
func (s *Session) WasKilled() bool {
	if s.transport == nil {
		return false
	}
	return s.transport.WasKilled()
}

func (s *Session) resolver() transport.ExecutableResolver {
	if s.opts.Resolver != nil {
		return s.opts.Resolver
	}
	return &transport.PathResolver{Path: s.opts.CLIPath}
}
