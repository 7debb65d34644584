package promptfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promptvc/internal/prompt"
	"promptvc/internal/vcerrors"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "prompt.yaml", `
system: You are a helpful assistant.
temperature: 0.7
max_tokens: 512
stop_sequences:
  - END
team: search
`)

	m, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "You are a helpful assistant.", m["system"])
	assert.Equal(t, 0.7, m["temperature"])
	assert.Equal(t, 512, m["max_tokens"])
	assert.Equal(t, "search", m["team"])
}

func TestLoadJSON(t *testing.T) {
	path := writeFile(t, "prompt.json", `{"system": "terse", "top_p": 0.9}`)

	m, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "terse", m["system"])
	assert.Equal(t, 0.9, m["top_p"])
}

func TestLoadRejectsOutOfRangeValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
		field   string
	}{
		{"temperature too high", "system: x\ntemperature: 2.5\n", "temperature"},
		{"top_p negative", "system: x\ntop_p: -0.1\n", "top_p"},
		{"max_tokens zero", "system: x\nmax_tokens: 0\n", "max_tokens"},
		{"wrong type", "system: x\nmax_tokens: lots\n", "max_tokens"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "bad.yaml", tt.content)
			_, err := Load(path)
			require.Error(t, err)
			assert.Equal(t, vcerrors.KindValidation, vcerrors.KindOf(err))

			var vcErr *vcerrors.Error
			require.ErrorAs(t, err, &vcErr)
			assert.Equal(t, tt.field, vcErr.Field)
		})
	}
}

func TestLoadMalformedYAML(t *testing.T) {
	path := writeFile(t, "broken.yaml", "system: [unclosed\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Equal(t, vcerrors.KindValidation, vcerrors.KindOf(err))
}

func TestLoadEmptyFile(t *testing.T) {
	path := writeFile(t, "empty.yaml", "")
	_, err := Load(path)
	require.Error(t, err)
	assert.Equal(t, vcerrors.KindValidation, vcerrors.KindOf(err))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestWriteThenLoadYAML(t *testing.T) {
	system := "round trip"
	temp := 0.3
	rec := &prompt.Record{
		System:      &system,
		Temperature: &temp,
		Extra:       map[string]any{"owner": "ml-infra"},
	}

	path := filepath.Join(t.TempDir(), "out.yaml")
	require.NoError(t, Write(path, rec))

	m, err := Load(path)
	require.NoError(t, err)

	got, err := prompt.FromMap(m)
	require.NoError(t, err)

	want, err := rec.Hash()
	require.NoError(t, err)
	gotHash, err := got.Hash()
	require.NoError(t, err)
	assert.Equal(t, want, gotHash)
}

func TestWriteThenLoadJSON(t *testing.T) {
	system := "json form"
	rec := &prompt.Record{System: &system, StopSequences: []string{"STOP"}}

	path := filepath.Join(t.TempDir(), "out.json")
	require.NoError(t, Write(path, rec))

	m, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "json form", m["system"])
}
