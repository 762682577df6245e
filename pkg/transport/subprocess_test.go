package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kandev/agentsdk/internal/common/logger"
	"github.com/kandev/agentsdk/pkg/agenterrors"
	"github.com/kandev/agentsdk/pkg/streamjson"
)

type closableBuffer struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	closed bool
}

func (b *closableBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *closableBuffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func (b *closableBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type fakeProcess struct {
	stdin      *closableBuffer
	stdout     io.ReadCloser
	stderr     io.ReadCloser
	done       chan struct{}
	exitCode   int
	exitOnce   sync.Once
	terminated bool
	killed     bool
}

func newFakeProcess(stdout string) *fakeProcess {
	return &fakeProcess{
		stdin:  &closableBuffer{},
		stdout: io.NopCloser(strings.NewReader(stdout)),
		stderr: io.NopCloser(strings.NewReader("")),
		done:   make(chan struct{}),
	}
}

func (p *fakeProcess) exit(code int) {
	p.exitOnce.Do(func() {
		p.exitCode = code
		close(p.done)
	})
}

func (p *fakeProcess) Stdin() io.WriteCloser { return p.stdin }
func (p *fakeProcess) Stdout() io.ReadCloser { return p.stdout }
func (p *fakeProcess) Stderr() io.ReadCloser { return p.stderr }
func (p *fakeProcess) Done() <-chan struct{} { return p.done }
func (p *fakeProcess) ExitCode() int         { return p.exitCode }
func (p *fakeProcess) PID() int              { return 4242 }

func (p *fakeProcess) Terminate() error {
	p.terminated = true
	p.exit(143)
	return nil
}

func (p *fakeProcess) Kill() error {
	p.killed = true
	p.exit(137)
	return nil
}

type fakeLauncher struct {
	proc *fakeProcess
	spec LaunchSpec
}

func (l *fakeLauncher) Launch(_ context.Context, spec LaunchSpec) (Process, error) {
	l.spec = spec
	return l.proc, nil
}

type staticResolver struct{ path string }

func (r *staticResolver) Resolve() (string, error) { return r.path, nil }

func newTestTransport(t *testing.T, stdout string, oneShot bool) (*Subprocess, *fakeLauncher) {
	t.Helper()
	launcher := &fakeLauncher{proc: newFakeProcess(stdout)}
	tr := NewSubprocess(Options{
		Args:     []string{"--output-format", "stream-json", "--verbose"},
		OneShot:  oneShot,
		Resolver: &staticResolver{path: "/usr/bin/claude"},
		Launcher: launcher,
		Logger:   logger.Nop(),
	})
	require.NoError(t, tr.Connect(context.Background()))
	return tr, launcher
}

func TestWriteAppendsNewline(t *testing.T) {
	tr, launcher := newTestTransport(t, "", false)

	msg := streamjson.NewUserMessage("Hello", "s1")
	require.NoError(t, tr.Write(context.Background(), msg))

	out := launcher.proc.stdin.String()
	require.True(t, strings.HasSuffix(out, "\n"))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(out)), &decoded))
	assert.Equal(t, "user", decoded["type"])
}

func TestConnectSetsEntrypointEnv(t *testing.T) {
	_, launcher := newTestTransport(t, "", false)

	found := false
	for _, entry := range launcher.spec.Env {
		if entry == "CLAUDE_CODE_ENTRYPOINT=sdk-go" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestOneShotClosesStdin(t *testing.T) {
	tr, launcher := newTestTransport(t, "", true)

	assert.True(t, launcher.proc.stdin.closed)

	err := tr.Write(context.Background(), streamjson.NewUserMessage("x", ""))
	assert.Equal(t, agenterrors.CodeNotWritable, agenterrors.CodeOf(err))
}

func TestEndInputIdempotent(t *testing.T) {
	tr, launcher := newTestTransport(t, "", false)

	require.NoError(t, tr.EndInput())
	require.NoError(t, tr.EndInput())
	assert.True(t, launcher.proc.stdin.closed)
}

func TestReadMessagesSkipsBlankAndDropsUnknown(t *testing.T) {
	stdout := "\n" +
		`{"type":"system","subtype":"init","session_id":"s1","model":"m"}` + "\n" +
		"   \n" +
		`{"type":"telemetry","x":1}` + "\n" +
		`{"type":"result","subtype":"success","is_error":false,"session_id":"s1","duration_ms":1,"duration_api_ms":1,"num_turns":1}` + "\n"
	tr, launcher := newTestTransport(t, stdout, false)
	launcher.proc.exit(0)

	var types []string
	var unknowns int
	for msg, err := range tr.ReadMessages(context.Background()) {
		if err != nil {
			var unknown *streamjson.UnknownFrameError
			require.ErrorAs(t, err, &unknown)
			unknowns++
			continue
		}
		types = append(types, msg.MessageType())
	}

	assert.Equal(t, []string{"system", "result"}, types)
	assert.Equal(t, 1, unknowns)
}

func TestReadMessagesMalformedAborts(t *testing.T) {
	stdout := `{"type":"system","subtype":"init"}` + "\n" + "{not json}\n" +
		`{"type":"result","subtype":"success","is_error":false,"session_id":"s","duration_ms":1,"duration_api_ms":1,"num_turns":1}` + "\n"
	tr, launcher := newTestTransport(t, stdout, false)
	launcher.proc.exit(0)

	var got []error
	var count int
	for _, err := range tr.ReadMessages(context.Background()) {
		if err != nil {
			got = append(got, err)
			continue
		}
		count++
	}

	assert.Equal(t, 1, count)
	require.Len(t, got, 1)
	assert.True(t, agenterrors.IsMalformedFrame(got[0]))
}

func TestReadMessagesNonzeroExit(t *testing.T) {
	tr, launcher := newTestTransport(t, "", false)
	launcher.proc.stderr = io.NopCloser(strings.NewReader("fatal: bad flag\n"))
	launcher.proc.exit(2)

	var errs []error
	for _, err := range tr.ReadMessages(context.Background()) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	require.Len(t, errs, 1)
	assert.True(t, agenterrors.IsPeerExited(errs[0]))

	var agentErr *agenterrors.AgentError
	require.ErrorAs(t, errs[0], &agentErr)
	assert.Equal(t, 2, agentErr.ExitCode)
}

func TestCloseAfterCleanExit(t *testing.T) {
	tr, launcher := newTestTransport(t, "", false)
	launcher.proc.exit(0)

	require.NoError(t, tr.Close(context.Background()))
	require.NoError(t, tr.Close(context.Background()))
	assert.False(t, tr.WasKilled())
	assert.False(t, launcher.proc.killed)
	assert.Equal(t, 0, tr.ExitCode())
}

func TestCloseForceTerminatesStuckChild(t *testing.T) {
	tr, launcher := newTestTransport(t, "", false)

	// Cancelled context skips the grace window so the test stays fast.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, tr.Close(ctx))
	assert.True(t, tr.WasKilled())
	assert.True(t, launcher.proc.terminated)
}
