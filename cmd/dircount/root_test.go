package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mwantia/dircount/data"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--log-level", "error"}, args...))

	err := cmd.Execute()
	return out.String(), err
}

func sqliteBackend(t *testing.T) string {
	return "sqlite://" + filepath.Join(t.TempDir(), "dircount.db")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"install", "status", "counts", "verify", "put", "rm", "stat"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)
}

func TestRootCommand_InvalidFormat(t *testing.T) {
	_, err := execute(t, "", "--format", "xml", "status")
	assert.ErrorContains(t, err, "invalid format")
}

func TestInstallCommand_NeverDowngrades(t *testing.T) {
	backend := sqliteBackend(t)

	out, err := execute(t, "", "--backend", backend, "install", "--version", "1", "--implementation", "dir_count_v1")
	require.NoError(t, err)
	assert.Contains(t, out, "installed")

	out, err = execute(t, "", "--backend", backend, "install")
	require.NoError(t, err)
	assert.Contains(t, out, "v2 (dir_count_v2): installed")

	out, err = execute(t, "", "--backend", backend, "--format", "json", "install", "--version", "1", "--implementation", "dir_count_v1")
	require.NoError(t, err)

	var result installResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "no_change", result.Outcome)

	out, err = execute(t, "", "--backend", backend, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "vfs_metadata.dir_count")
	assert.Contains(t, out, "dir_count_v2")
}

func TestInstallCommand_UnknownImplementation(t *testing.T) {
	_, err := execute(t, "", "--backend", sqliteBackend(t), "install", "--implementation", "missing")
	assert.ErrorIs(t, err, data.ErrUnknownImplementation)
}

func TestObjectCommands_MaintainCounts(t *testing.T) {
	backend := sqliteBackend(t)

	_, err := execute(t, "", "--backend", backend, "install")
	require.NoError(t, err)

	_, err = execute(t, "", "--backend", backend, "put", "--dir", "/a")
	require.NoError(t, err)
	_, err = execute(t, "hello", "--backend", backend, "put", "/a/one.txt", "-")
	require.NoError(t, err)
	_, err = execute(t, "world", "--backend", backend, "put", "/a/two.txt")
	require.NoError(t, err)

	out, err := execute(t, "", "--backend", backend, "--format", "json", "counts", "/a")
	require.NoError(t, err)

	var counters []*data.Counter
	require.NoError(t, json.Unmarshal([]byte(out), &counters))
	require.Len(t, counters, 1)
	assert.Equal(t, "/a", counters[0].Key)
	assert.Equal(t, int64(2), counters[0].Count)

	out, err = execute(t, "", "--backend", backend, "stat", "/a/one.txt")
	require.NoError(t, err)
	assert.Contains(t, out, "/a/one.txt")

	_, err = execute(t, "", "--backend", backend, "rm", "/a/one.txt")
	require.NoError(t, err)

	out, err = execute(t, "", "--backend", backend, "verify")
	require.NoError(t, err)
	assert.Contains(t, out, "all counters match")

	out, err = execute(t, "", "--backend", backend, "counts")
	require.NoError(t, err)
	assert.Contains(t, out, "/a")

	_, err = execute(t, "", "--backend", backend, "stat", "/a/one.txt")
	assert.ErrorIs(t, err, data.ErrNotExist)
}

func TestObjectCommands_EnsureHookBeforeWriting(t *testing.T) {
	backend := sqliteBackend(t)

	_, err := execute(t, "content", "--backend", backend, "put", "/a/x")
	require.NoError(t, err)

	out, err := execute(t, "", "--backend", backend, "install")
	require.NoError(t, err)
	assert.Contains(t, out, "no_change")

	_, err = execute(t, "", "--backend", backend, "rm", "/a/x")
	require.NoError(t, err)

	out, err = execute(t, "", "--backend", backend, "--format", "json", "counts")
	require.NoError(t, err)

	var counters []*data.Counter
	require.NoError(t, json.Unmarshal([]byte(out), &counters))
	assert.Empty(t, counters)
}
