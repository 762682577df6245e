package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOptionsDefaults(t *testing.T) {
	opts, err := LoadOptions(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, DefaultChannelCapacity, opts.ChannelCapacity)
	assert.Equal(t, 60*time.Second, opts.ControlTimeout)
	assert.Equal(t, "info", opts.Logging.Level)
}

func TestLoadOptionsFromFile(t *testing.T) {
	dir := t.TempDir()
	cfg := `
model: opus
max_turns: 4
channel_capacity: 16
control_timeout: 5s
permission_mode: plan
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "agentsdk.yaml"), []byte(cfg), 0o644))

	opts, err := LoadOptions(dir)
	require.NoError(t, err)

	assert.Equal(t, "opus", opts.Model)
	assert.Equal(t, 4, opts.MaxTurns)
	assert.Equal(t, 16, opts.ChannelCapacity)
	assert.Equal(t, 5*time.Second, opts.ControlTimeout)
	assert.Equal(t, "plan", opts.PermissionMode)
	assert.Equal(t, "debug", opts.Logging.Level)
}

func TestLoadOptionsEnvOverride(t *testing.T) {
	t.Setenv("AGENTSDK_MODEL", "sonnet")

	opts, err := LoadOptions(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "sonnet", opts.Model)
}

func TestLoadOptionsRejectsNegatives(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "agentsdk.yaml"), []byte("max_turns: -1\n"), 0o644))

	_, err := LoadOptions(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_turns")
}
