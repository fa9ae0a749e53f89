package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "redistbot dev (local)")
}

func TestCheckCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("telegram:\n  token: \"123:abc\"\n  channel: \"@surplus\"\n"), 0o600))

	out, err := execute(t, "check", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "mode=longpoll channel=@surplus storage=file negotiations=memory")

	require.NoError(t, os.WriteFile(path, []byte("telegram:\n  token: \"123:abc\"\n"), 0o600))
	_, err = execute(t, "check", "--config", path)
	assert.ErrorContains(t, err, "telegram.channel is required")
}
