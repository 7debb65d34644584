package watch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promptvc/internal/repo"
)

func setup(t *testing.T) (*repo.Repository, string, *Watcher) {
	t.Helper()
	dir := t.TempDir()
	r, err := repo.Init(dir)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })

	file := filepath.Join(dir, "prompt.yaml")
	require.NoError(t, os.WriteFile(file, []byte("system: v1\n"), 0o644))

	w, err := New(r, file, nil, WithAuthor("bot"))
	require.NoError(t, err)
	return r, file, w
}

func TestCommitIfChangedCreatesCommit(t *testing.T) {
	r, _, w := setup(t)

	require.NoError(t, w.commitIfChanged())

	versions, err := r.Log(0)
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Equal(t, "bot", versions[0].Commit.Author)
	assert.Contains(t, versions[0].Commit.Message, "prompt.yaml changed")
}

func TestCommitIfChangedSkipsUnchangedContent(t *testing.T) {
	r, _, w := setup(t)

	require.NoError(t, w.commitIfChanged())
	// Same content again: no new commit.
	require.NoError(t, w.commitIfChanged())

	versions, err := r.Log(0)
	require.NoError(t, err)
	assert.Len(t, versions, 1)
}

func TestCommitIfChangedPicksUpEdits(t *testing.T) {
	r, file, w := setup(t)

	require.NoError(t, w.commitIfChanged())
	require.NoError(t, os.WriteFile(file, []byte("system: v2\n"), 0o644))
	require.NoError(t, w.commitIfChanged())

	versions, err := r.Log(0)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, "v2", *versions[0].Record.System)
}

func TestCommitIfChangedInvalidFile(t *testing.T) {
	_, file, w := setup(t)

	require.NoError(t, os.WriteFile(file, []byte("temperature: 9.0\n"), 0o644))
	assert.Error(t, w.commitIfChanged())
}

func TestOnCommitCallback(t *testing.T) {
	_, _, w := setup(t)

	var gotHash, gotMessage string
	w.OnCommit = func(hash, message string) {
		gotHash = hash
		gotMessage = message
	}

	require.NoError(t, w.commitIfChanged())
	assert.NotEmpty(t, gotHash)
	assert.Contains(t, gotMessage, "Auto-commit")
}
