package bundle

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promptvc/internal/audit"
	"promptvc/internal/repo"
	"promptvc/internal/vcerrors"
)

func seedRepo(t *testing.T) *repo.Repository {
	t.Helper()
	r, err := repo.Init(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })

	_, err = r.CommitMap("first", map[string]any{"system": "v1"}, "alice", "")
	require.NoError(t, err)
	_, err = r.CommitMap("second", map[string]any{"system": "v2", "temperature": 0.4}, "alice", "")
	require.NoError(t, err)
	_, err = r.Tag("baseline", "", map[string]any{"run": "exp-1"})
	require.NoError(t, err)
	return r
}

func TestExportImportRoundTrip(t *testing.T) {
	src := seedRepo(t)
	srcLog, err := src.Log(0)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Export(src.Store(), &buf))
	assert.Greater(t, buf.Len(), 0)

	dest := t.TempDir()
	require.NoError(t, Import(dest, bytes.NewReader(buf.Bytes())))

	restored, err := repo.Open(dest)
	require.NoError(t, err)
	defer restored.Close()
	require.True(t, restored.Exists())

	gotLog, err := restored.Log(0)
	require.NoError(t, err)
	require.Len(t, gotLog, len(srcLog))
	assert.Equal(t, srcLog[0].Commit.Hash, gotLog[0].Commit.Hash)
	assert.Equal(t, *srcLog[0].Record.System, *gotLog[0].Record.System)

	tag, err := restored.GetTag("baseline")
	require.NoError(t, err)
	require.NotNil(t, tag)
	assert.Equal(t, "exp-1", tag.Metadata["run"])

	// HEAD survives the round trip.
	srcCurrent, err := src.CurrentVersion()
	require.NoError(t, err)
	gotCurrent, err := restored.CurrentVersion()
	require.NoError(t, err)
	assert.Equal(t, srcCurrent.Commit.Hash, gotCurrent.Commit.Hash)
}

func TestImportRecordsAuditEntry(t *testing.T) {
	src := seedRepo(t)

	var buf bytes.Buffer
	require.NoError(t, Export(src.Store(), &buf))

	dest := t.TempDir()
	require.NoError(t, Import(dest, &buf))

	restored, err := repo.Open(dest)
	require.NoError(t, err)
	defer restored.Close()

	entries, err := restored.AuditEntries()
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	assert.Equal(t, audit.ActionImport, entries[len(entries)-1].Action)
}

func TestImportRefusesExistingRepo(t *testing.T) {
	src := seedRepo(t)

	var buf bytes.Buffer
	require.NoError(t, Export(src.Store(), &buf))

	err := Import(src.Path(), bytes.NewReader(buf.Bytes()))
	require.Error(t, err)
	assert.True(t, errors.Is(err, vcerrors.ErrAlreadyExists))
}

func TestExportUninitialized(t *testing.T) {
	r, err := repo.Open(t.TempDir())
	require.NoError(t, err)
	defer r.Close()

	var buf bytes.Buffer
	err = Export(r.Store(), &buf)
	require.Error(t, err)
	assert.True(t, errors.Is(err, vcerrors.ErrNotInitialized))
}

func TestSanitizePathRejectsTraversal(t *testing.T) {
	for _, name := range []string{"../escape", "..", "/abs/path"} {
		_, err := sanitizePath("/tmp/root", name)
		assert.Error(t, err, name)
	}

	target, err := sanitizePath("/tmp/root", "commits/abc.json")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/root/commits/abc.json", target)
}
