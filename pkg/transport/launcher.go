package transport

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/kandev/agentsdk/pkg/agenterrors"
)

// LaunchSpec describes the child process to start.
type LaunchSpec struct {
	Path string
	Args []string
	Dir  string
	Env  []string
}

// Process is a handle to a launched child. ExitCode is valid only after
// Done is closed.
type Process interface {
	Stdin() io.WriteCloser
	Stdout() io.ReadCloser
	Stderr() io.ReadCloser
	Done() <-chan struct{}
	ExitCode() int
	Terminate() error
	Kill() error
	PID() int
}

// ProcessLauncher spawns the Agent CLI child process.
type ProcessLauncher interface {
	Launch(ctx context.Context, spec LaunchSpec) (Process, error)
}

// OSLauncher starts real OS processes. Children run in their own process
// group so termination reaches the whole subprocess tree.
type OSLauncher struct{}

// Launch implements ProcessLauncher.
func (l *OSLauncher) Launch(ctx context.Context, spec LaunchSpec) (Process, error) {
	cmd := exec.CommandContext(ctx, spec.Path, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = spec.Env
	cmd.SysProcAttr = sysProcAttr()
	cmd.Cancel = func() error { return killTree(cmd) }

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, agenterrors.SpawnFailed(fmt.Errorf("attach stdin: %w", err))
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, agenterrors.SpawnFailed(fmt.Errorf("attach stdout: %w", err))
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, agenterrors.SpawnFailed(fmt.Errorf("attach stderr: %w", err))
	}

	if err := cmd.Start(); err != nil {
		return nil, agenterrors.SpawnFailed(err)
	}

	proc := &osProcess{
		cmd:    cmd,
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
		done:   make(chan struct{}),
	}
	go proc.wait()
	return proc, nil
}

type osProcess struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr io.ReadCloser

	done     chan struct{}
	exitOnce sync.Once
	exitCode int
}

func (p *osProcess) wait() {
	err := p.cmd.Wait()
	code := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			code = exitErr.ExitCode()
		} else {
			code = 1
		}
	}
	p.exitOnce.Do(func() {
		p.exitCode = code
		close(p.done)
	})
}

func (p *osProcess) Stdin() io.WriteCloser  { return p.stdin }
func (p *osProcess) Stdout() io.ReadCloser  { return p.stdout }
func (p *osProcess) Stderr() io.ReadCloser  { return p.stderr }
func (p *osProcess) Done() <-chan struct{}  { return p.done }
func (p *osProcess) ExitCode() int          { return p.exitCode }
func (p *osProcess) PID() int               { return p.cmd.Process.Pid }

// Terminate asks the process group to shut down.
func (p *osProcess) Terminate() error {
	return terminateTree(p.cmd)
}

// Kill force-terminates the process group.
func (p *osProcess) Kill() error {
	return killTree(p.cmd)
}

// MergeEnv merges extra variables into the parent environment. Extra keys
// override inherited ones.
func MergeEnv(extra map[string]string) []string {
	base := make(map[string]string, len(extra)+64)
	for _, entry := range os.Environ() {
		if eq := strings.IndexByte(entry, '='); eq >= 0 {
			base[entry[:eq]] = entry[eq+1:]
		}
	}
	for k, v := range extra {
		base[k] = v
	}
	merged := make([]string, 0, len(base))
	for k, v := range base {
		merged = append(merged, fmt.Sprintf("%s=%s", k, v))
	}
	return merged
}
