package transport

import (
	"bufio"
	"context"
	"errors"
	"io"
	"iter"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kandev/agentsdk/internal/common/logger"
	"github.com/kandev/agentsdk/internal/tracing"
	"github.com/kandev/agentsdk/pkg/agenterrors"
	"github.com/kandev/agentsdk/pkg/streamjson"
)

const (
	// entrypointEnv identifies the SDK to the CLI.
	entrypointEnv   = "CLAUDE_CODE_ENTRYPOINT"
	entrypointValue = "sdk-go"

	// closeGrace is how long Close waits for a voluntary exit before
	// escalating to termination.
	closeGrace = 5 * time.Second

	// killGrace is how long a termination signal gets before SIGKILL.
	killGrace = 2 * time.Second

	// Scanner limits. Single assistant messages can carry large tool
	// results, so the line limit is generous.
	scanBufSize  = 64 * 1024
	scanMaxLine  = 10 * 1024 * 1024
	stderrBufMax = 1024 * 1024
)

// Options configures a Subprocess transport.
type Options struct {
	// Args is the full CLI argument list, already rendered.
	Args []string

	// Dir is the child's working directory. Defaults to the caller's.
	Dir string

	// Env holds extra environment variables merged over the parent's.
	Env map[string]string

	// OneShot closes the outbound stream immediately after spawn; the
	// prompt rides in Args and no further writes happen.
	OneShot bool

	// StderrObserver receives each diagnostic line from the child.
	StderrObserver func(line string)

	Resolver ExecutableResolver
	Launcher ProcessLauncher
	Logger   *logger.Logger
}

// Subprocess frames an Agent CLI child process as a line-delimited JSON
// duplex stream. All methods are safe for concurrent use.
type Subprocess struct {
	opts   Options
	logger *logger.Logger

	writeMu     sync.Mutex
	stdinClosed bool

	proc       Process
	stderrRing *stderrRing

	closeOnce sync.Once
	closeErr  error
	wasKilled bool
}

// NewSubprocess builds a transport. Connect must be called before use.
func NewSubprocess(opts Options) *Subprocess {
	if opts.Resolver == nil {
		opts.Resolver = &PathResolver{}
	}
	if opts.Launcher == nil {
		opts.Launcher = &OSLauncher{}
	}
	log := opts.Logger
	if log == nil {
		log = logger.Default()
	}
	return &Subprocess{
		opts:       opts,
		logger:     log.WithComponent("transport"),
		stderrRing: newStderrRing(100),
	}
}

// Connect resolves the CLI, spawns it and starts the stderr drain.
func (t *Subprocess) Connect(ctx context.Context) error {
	if t.proc != nil {
		return agenterrors.InvalidState("transport already connected")
	}

	path, err := t.opts.Resolver.Resolve()
	if err != nil {
		return err
	}

	env := t.opts.Env
	if env == nil {
		env = make(map[string]string, 2)
	}
	env[entrypointEnv] = entrypointValue
	if t.opts.Dir != "" {
		env["PWD"] = t.opts.Dir
	}

	proc, err := t.opts.Launcher.Launch(ctx, LaunchSpec{
		Path: path,
		Args: t.opts.Args,
		Dir:  t.opts.Dir,
		Env:  MergeEnv(env),
	})
	if err != nil {
		return err
	}
	t.proc = proc

	t.logger.Debug("agent CLI started",
		zap.String("path", path),
		zap.Int("pid", proc.PID()),
		zap.Bool("one_shot", t.opts.OneShot),
	)

	go t.drainStderr(proc.Stderr())

	if t.opts.OneShot {
		if err := t.EndInput(); err != nil {
			return err
		}
	}
	return nil
}

// Write serialises one frame, appends a newline and flushes. Concurrent
// callers are serialised so no two writes interleave bytes.
func (t *Subprocess) Write(ctx context.Context, msg streamjson.Message) error {
	line, err := streamjson.Encode(msg)
	if err != nil {
		return err
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if t.stdinClosed {
		return agenterrors.NotWritable()
	}
	if t.proc == nil {
		return agenterrors.InvalidState("transport not connected")
	}
	if err := ctx.Err(); err != nil {
		return agenterrors.Cancelled("write")
	}

	tracing.TraceFrame(ctx, "out", msg.MessageType(), "", line)

	if _, err := t.proc.Stdin().Write(append(line, '\n')); err != nil {
		// A failed write means the peer went away; the pipe is unusable.
		t.stdinClosed = true
		return &agenterrors.AgentError{
			Code:    agenterrors.CodeNotWritable,
			Message: "write to agent CLI failed",
			Err:     err,
		}
	}
	return nil
}

// ReadMessages yields parsed frames, one per non-blank inbound line, until
// end of stream or a fatal decode error. Unknown frame types are yielded as
// an UnknownFrameError alongside a nil message so the caller can drop them
// without losing the stream; malformed JSON terminates the sequence.
func (t *Subprocess) ReadMessages(ctx context.Context) iter.Seq2[streamjson.Message, error] {
	return func(yield func(streamjson.Message, error) bool) {
		if t.proc == nil {
			yield(nil, agenterrors.InvalidState("transport not connected"))
			return
		}

		scanner := bufio.NewScanner(t.proc.Stdout())
		scanner.Buffer(make([]byte, scanBufSize), scanMaxLine)

		for scanner.Scan() {
			if err := ctx.Err(); err != nil {
				yield(nil, agenterrors.Cancelled("read"))
				return
			}

			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}

			msg, err := streamjson.Decode([]byte(line))
			if err != nil {
				var unknown *streamjson.UnknownFrameError
				if errors.As(err, &unknown) {
					if !yield(nil, unknown) {
						return
					}
					continue
				}
				yield(nil, err)
				return
			}

			tracing.TraceFrame(ctx, "in", msg.MessageType(), "", []byte(line))

			if !yield(msg, nil) {
				return
			}
		}

		if err := scanner.Err(); err != nil && !isClosedPipe(err) {
			yield(nil, agenterrors.MalformedFrame("", err))
			return
		}

		// Stream ended. A nonzero exit surfaces as an error; a clean
		// exit is simply end of sequence.
		if code := t.exitCodeAfterEOF(); code != 0 {
			yield(nil, agenterrors.PeerExited(code, t.stderrRing.snapshot()))
		}
	}
}

// EndInput closes the outbound stream only. Idempotent.
func (t *Subprocess) EndInput() error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if t.stdinClosed {
		return nil
	}
	t.stdinClosed = true
	if t.proc == nil {
		return nil
	}
	if err := t.proc.Stdin().Close(); err != nil {
		t.logger.Debug("stdin close failed", zap.Error(err))
	}
	return nil
}

// Close ends input, waits up to the grace window for a voluntary exit, then
// terminates the process tree. Idempotent.
func (t *Subprocess) Close(ctx context.Context) error {
	t.closeOnce.Do(func() {
		t.closeErr = t.doClose(ctx)
	})
	return t.closeErr
}

func (t *Subprocess) doClose(ctx context.Context) error {
	if err := t.EndInput(); err != nil {
		return err
	}
	if t.proc == nil {
		return nil
	}

	select {
	case <-t.proc.Done():
		return nil
	case <-ctx.Done():
	case <-time.After(closeGrace):
	}

	t.logger.Warn("agent CLI did not exit in time, terminating",
		zap.Int("pid", t.proc.PID()),
	)
	t.wasKilled = true
	_ = t.proc.Terminate()

	select {
	case <-t.proc.Done():
		return nil
	case <-time.After(killGrace):
	}

	_ = t.proc.Kill()
	<-t.proc.Done()
	return nil
}

// WasKilled reports whether Close had to force-terminate the child.
func (t *Subprocess) WasKilled() bool {
	return t.wasKilled
}

// ExitCode returns the child's exit code, or -1 while it is still running.
func (t *Subprocess) ExitCode() int {
	if t.proc == nil {
		return -1
	}
	select {
	case <-t.proc.Done():
		return t.proc.ExitCode()
	default:
		return -1
	}
}

// StderrLines returns the most recent diagnostic lines from the child.
func (t *Subprocess) StderrLines() []string {
	return t.stderrRing.snapshot()
}

func (t *Subprocess) drainStderr(r io.ReadCloser) {
	defer func() { _ = r.Close() }()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, scanBufSize), stderrBufMax)
	for scanner.Scan() {
		line := scanner.Text()
		t.stderrRing.append(line)
		if t.opts.StderrObserver != nil {
			t.opts.StderrObserver(line)
		}
	}
}

// exitCodeAfterEOF waits briefly for the wait goroutine to publish the exit
// status once stdout has reached end of stream.
func (t *Subprocess) exitCodeAfterEOF() int {
	select {
	case <-t.proc.Done():
		return t.proc.ExitCode()
	case <-time.After(killGrace):
		return 0
	}
}

func isClosedPipe(err error) bool {
	return strings.Contains(err.Error(), "file already closed") ||
		strings.Contains(err.Error(), "closed pipe")
}
