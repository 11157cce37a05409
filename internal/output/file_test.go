package output

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reporanger/internal/ops"
)

func TestFileSinkInfersFormatFromExtension(t *testing.T) {
	dir := t.TempDir()

	s, err := NewFileSink(filepath.Join(dir, "out.json"), "")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = NewFileSink(filepath.Join(dir, "out.ndjson"), "")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = NewFileSink(filepath.Join(dir, "out.txt"), "")
	assert.Error(t, err)

	_, err = NewFileSink("", "json")
	assert.Error(t, err)
}

func TestFileSinkJSONAggregate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	s, err := NewFileSink(path, "json")
	require.NoError(t, err)

	require.NoError(t, s.Write(succeededResult("acme/alpha")))
	require.NoError(t, s.Write(Event{Type: "run.finished", ExitCode: 0}))
	require.NoError(t, s.Write(ops.Result{
		Repo:    "acme/beta",
		Op:      "label-sync",
		Outcome: ops.Failed(ops.KindConflict, "merge conflict", 1),
	}))
	require.NoError(t, s.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var results []ops.Result
	require.NoError(t, json.Unmarshal(data, &results))
	require.Len(t, results, 2, "lifecycle events excluded from aggregate")
	assert.Equal(t, "acme/alpha", results[0].Repo)
	assert.Equal(t, ops.StatusFailed, results[1].Status)
	assert.Equal(t, ops.KindConflict, results[1].Kind)
}

func TestFileSinkNDJSONStream(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.ndjson")
	s, err := NewFileSink(path, "ndjson")
	require.NoError(t, err)

	require.NoError(t, s.Write(Event{Type: "run.started", Op: "topic-set", Repos: 1}))
	require.NoError(t, s.Write(succeededResult("acme/alpha")))
	require.NoError(t, s.Write(Event{Type: "run.finished", ExitCode: 0}))
	require.NoError(t, s.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	for _, line := range lines {
		var obj map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &obj))
		assert.NotEmpty(t, obj["type"])
	}
}

func TestFileSinkCreatesParentDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deep", "out.json")
	s, err := NewFileSink(path, "json")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = os.Stat(path)
	assert.NoError(t, err)
}
