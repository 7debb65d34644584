package audit

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLog(t *testing.T) (*Log, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	log, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { log.Close() })
	return log, path
}

func TestAppendGrowsByOneLine(t *testing.T) {
	log, path := newTestLog(t)

	for i := 0; i < 3; i++ {
		require.NoError(t, log.Record(ActionCommit, "msg", "alice", "c1", "p1", nil))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
		assert.Len(t, lines, i+1)
	}
}

func TestAppendedLinesAreValidJSON(t *testing.T) {
	log, path := newTestLog(t)
	require.NoError(t, log.Record(ActionTag, "Tagged baseline", "bob", "c1", "", map[string]any{"accuracy": 0.9}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var e Entry
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(string(data))), &e))
	assert.Equal(t, ActionTag, e.Action)
	assert.Equal(t, "bob", e.Author)
	assert.Equal(t, 0.9, e.Metadata["accuracy"])
}

func TestRecordDefaultsAuthor(t *testing.T) {
	log, _ := newTestLog(t)
	require.NoError(t, log.Record(ActionInit, "init", "", "", "", nil))

	entries, err := log.ReadAll()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "system", entries[0].Author)
}

func TestReadAllPreservesOrder(t *testing.T) {
	log, _ := newTestLog(t)
	require.NoError(t, log.Record(ActionInit, "first", "a", "", "", nil))
	require.NoError(t, log.Record(ActionCommit, "second", "a", "c1", "p1", nil))
	require.NoError(t, log.Record(ActionCheckout, "third", "a", "c1", "", nil))

	entries, err := log.ReadAll()
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "first", entries[0].Message)
	assert.Equal(t, "second", entries[1].Message)
	assert.Equal(t, "third", entries[2].Message)
}

func TestExportJSON(t *testing.T) {
	entries := []Entry{
		{Timestamp: time.Now(), Action: ActionInit, Message: "init", Author: "system"},
		{Timestamp: time.Now(), Action: ActionCommit, Message: "c", Author: "alice", CommitHash: "c1"},
	}

	out, err := ExportJSON(entries)
	require.NoError(t, err)

	var decoded []Entry
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, ActionCommit, decoded[1].Action)
	assert.Equal(t, "c1", decoded[1].CommitHash)
}

func TestExportCSV(t *testing.T) {
	ts := time.Date(2025, 6, 1, 8, 30, 0, 0, time.UTC)
	entries := []Entry{
		{Timestamp: ts, Action: ActionTag, Message: "Tagged v1", Author: "alice",
			CommitHash: "c1", Metadata: map[string]any{"run": "exp-7"}},
	}

	out, err := ExportCSV(entries)
	require.NoError(t, err)

	records, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, []string{"timestamp", "action", "commit_hash", "prompt_hash", "message", "author", "metadata"}, records[0])
	row := records[1]
	assert.Equal(t, ts.Format(time.RFC3339Nano), row[0])
	assert.Equal(t, "tag", row[1])
	assert.Equal(t, "c1", row[2])

	// Metadata survives as an embedded JSON document.
	var meta map[string]any
	require.NoError(t, json.Unmarshal([]byte(row[6]), &meta))
	assert.Equal(t, "exp-7", meta["run"])
}

func TestExportEmpty(t *testing.T) {
	out, err := ExportJSON(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", strings.TrimSpace(out))

	csvOut, err := ExportCSV(nil)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(csvOut, "\n"), "\n")
	assert.Len(t, lines, 1)
}
