package agent

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedBackend replays canned replies and records what it was asked.
type scriptedBackend struct {
	replies []string
	calls   [][]Message
}

func (b *scriptedBackend) Generate(_ context.Context, messages []Message, _ float64, _ int) (string, error) {
	b.calls = append(b.calls, messages)
	reply := b.replies[0]
	if len(b.replies) > 1 {
		b.replies = b.replies[1:]
	}
	return reply, nil
}

func (b *scriptedBackend) IsAvailable() bool { return true }
func (b *scriptedBackend) Name() string      { return "scripted" }

func TestExtractCommand(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  string
	}{
		{
			"command block",
			"Sure!\n```command\npromptvc commit -m \"update\" -f prompt.yaml\n```",
			`promptvc commit -m "update" -f prompt.yaml`,
		},
		{
			"bash block",
			"Run this:\n```bash\npromptvc log --oneline\n```",
			"promptvc log --oneline",
		},
		{
			"bare block",
			"```\npromptvc init\n```",
			"promptvc init",
		},
		{
			"uppercase fence tag",
			"```BASH\npromptvc tags\n```",
			"promptvc tags",
		},
		{"no block", "Just some advice, no command.", ""},
		{"block without promptvc", "```bash\nls -la\n```", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractCommand(tt.reply))
		})
	}
}

func TestCommandAction(t *testing.T) {
	assert.Equal(t, "commit", commandAction("promptvc commit -m x"))
	assert.Equal(t, "checkout", commandAction("promptvc checkout abc123"))
	assert.Equal(t, "", commandAction("git status"))
	assert.Equal(t, "", commandAction("promptvc"))
}

func TestProcessExtractsCommand(t *testing.T) {
	backend := &scriptedBackend{replies: []string{
		"I'll show the history.\n```command\npromptvc log\n```",
	}}
	a := New(backend, t.TempDir(), nil)

	resp, err := a.Process(context.Background(), "show me the history")
	require.NoError(t, err)

	assert.Equal(t, "promptvc log", resp.Command)
	assert.Equal(t, "log", resp.Action)
	assert.False(t, resp.NeedsConfirmation)
}

func TestProcessFlagsDestructiveActions(t *testing.T) {
	backend := &scriptedBackend{replies: []string{
		"Rolling back.\n```command\npromptvc checkout HEAD~1\n```",
	}}
	a := New(backend, t.TempDir(), nil)

	resp, err := a.Process(context.Background(), "go back one version")
	require.NoError(t, err)

	assert.Equal(t, "checkout", resp.Action)
	assert.True(t, resp.NeedsConfirmation)
}

func TestProcessSendsSystemPromptAndHistory(t *testing.T) {
	backend := &scriptedBackend{replies: []string{"ok", "ok again"}}
	a := New(backend, t.TempDir(), nil)

	_, err := a.Process(context.Background(), "first question")
	require.NoError(t, err)
	_, err = a.Process(context.Background(), "second question")
	require.NoError(t, err)

	require.Len(t, backend.calls, 2)
	first := backend.calls[0]
	require.NotEmpty(t, first)
	assert.Equal(t, "system", first[0].Role)
	assert.Contains(t, first[0].Content, "promptvc")

	// The second call replays the earlier turns.
	second := backend.calls[1]
	var contents []string
	for _, m := range second[1:] {
		contents = append(contents, m.Content)
	}
	assert.Contains(t, contents, "first question")
	assert.Contains(t, contents, "ok")
	assert.Contains(t, contents, "second question")
}

func TestHistoryWindowBounded(t *testing.T) {
	backend := &scriptedBackend{replies: []string{"ok"}}
	a := New(backend, t.TempDir(), nil)

	for i := 0; i < 20; i++ {
		_, err := a.Process(context.Background(), "question")
		require.NoError(t, err)
	}

	last := backend.calls[len(backend.calls)-1]
	// System prompt plus at most historyWindow prior turns.
	assert.LessOrEqual(t, len(last), historyWindow+1)
}

func TestSaveLoadConversation(t *testing.T) {
	backend := &scriptedBackend{replies: []string{"reply"}}
	a := New(backend, t.TempDir(), nil)

	_, err := a.Process(context.Background(), "hello")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "conv.json")
	require.NoError(t, a.SaveConversation(path))

	restored := New(backend, t.TempDir(), nil)
	require.NoError(t, restored.LoadConversation(path))
	require.Len(t, restored.history, 2)
	assert.Equal(t, "hello", restored.history[0].Content)
	assert.Equal(t, "reply", restored.history[1].Content)
}

func TestDetectBackend(t *testing.T) {
	available := &scriptedBackend{}
	got, err := DetectBackend(nil, available)
	require.NoError(t, err)
	assert.Equal(t, available, got)

	_, err = DetectBackend(nil)
	assert.ErrorIs(t, err, ErrNoBackend)
}
