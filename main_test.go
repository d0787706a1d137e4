package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMalformedEnvFileStopsCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.env")
	require.NoError(t, os.WriteFile(path, []byte("JWT_SECRET=s\nthis is not a pair\n"), 0o600))

	cmd := newRootCmd()
	cmd.SetArgs([]string{"--env-file", path, "token", "--user", "1"})
	cmd.SetOut(&bytes.Buffer{})
	err := cmd.Execute()
	require.ErrorContains(t, err, "load env file")
	require.ErrorContains(t, err, ":2:")
}

func TestEnvFileFeedsCommands(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.env")
	require.NoError(t, os.WriteFile(path, []byte("JWT_SECRET=from-file\n"), 0o600))
	t.Setenv("JWT_SECRET", "")
	os.Unsetenv("JWT_SECRET")

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs([]string{"--env-file", path, "token", "--user", "7"})
	cmd.SetOut(&out)
	require.NoError(t, cmd.Execute())
	require.Equal(t, 3, len(strings.Split(strings.TrimSpace(out.String()), ".")))
}
