// Package transport owns the Agent CLI child process and frames its stdio
// as a line-delimited JSON stream.
package transport

import (
	"os"
	"os/exec"

	"github.com/kandev/agentsdk/pkg/agenterrors"
)

// DefaultExecutable is the binary name resolved when the caller does not
// supply a path.
const DefaultExecutable = "claude"

// ExecutableResolver locates the Agent CLI binary.
type ExecutableResolver interface {
	Resolve() (string, error)
}

// PathResolver resolves the CLI from an explicit path or from PATH lookup.
type PathResolver struct {
	// Path, when set, is used verbatim after an existence check.
	Path string

	// Name is the binary name for PATH lookup. Defaults to DefaultExecutable.
	Name string
}

// Resolve implements ExecutableResolver.
func (r *PathResolver) Resolve() (string, error) {
	if r.Path != "" {
		if _, err := os.Stat(r.Path); err != nil {
			return "", agenterrors.ExecutableNotFound(r.Path, err)
		}
		return r.Path, nil
	}

	name := r.Name
	if name == "" {
		name = DefaultExecutable
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return "", agenterrors.ExecutableNotFound(name, err)
	}
	return path, nil
}
