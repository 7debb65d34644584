package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promptvc/internal/repo"
)

type toolResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  map[string]any  `json:"result"`
	Error   *rpcError       `json:"error"`
}

func newTestServer(t *testing.T) (*Server, *repo.Repository) {
	t.Helper()
	r, err := repo.Init(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return New(r, nil), r
}

// runRequests feeds newline-delimited requests through the server and
// decodes one response per non-notification request.
func runRequests(t *testing.T, s *Server, requests ...string) []toolResponse {
	t.Helper()
	in := strings.NewReader(strings.Join(requests, "\n") + "\n")
	var out bytes.Buffer
	require.NoError(t, s.Run(context.Background(), in, &out))

	var responses []toolResponse
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		if line == "" {
			continue
		}
		var resp toolResponse
		require.NoError(t, json.Unmarshal([]byte(line), &resp))
		responses = append(responses, resp)
	}
	return responses
}

func callRequest(id int, tool string, args map[string]any) string {
	params := map[string]any{"name": tool, "arguments": args}
	req := map[string]any{"jsonrpc": "2.0", "id": id, "method": "tools/call", "params": params}
	data, _ := json.Marshal(req)
	return string(data)
}

// toolText extracts the text payload from a tool-call result envelope.
func toolText(t *testing.T, resp toolResponse) string {
	t.Helper()
	content, ok := resp.Result["content"].([]any)
	require.True(t, ok, "missing content: %v", resp.Result)
	require.NotEmpty(t, content)
	first, ok := content[0].(map[string]any)
	require.True(t, ok)
	text, _ := first["text"].(string)
	return text
}

func TestInitializeHandshake(t *testing.T) {
	s, _ := newTestServer(t)

	resps := runRequests(t, s,
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
	)

	// The notification produces no response.
	require.Len(t, resps, 1)
	assert.Nil(t, resps[0].Error)
	assert.Equal(t, protocolVersion, resps[0].Result["protocolVersion"])
}

func TestToolsList(t *testing.T) {
	s, _ := newTestServer(t)

	resps := runRequests(t, s, `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	require.Len(t, resps, 1)
	require.Nil(t, resps[0].Error)

	tools, ok := resps[0].Result["tools"].([]any)
	require.True(t, ok)
	assert.Len(t, tools, len(toolDefinitions()))

	names := map[string]bool{}
	for _, tl := range tools {
		m := tl.(map[string]any)
		names[m["name"].(string)] = true
	}
	for _, want := range []string{
		"promptvc_commit", "promptvc_get_history", "promptvc_diff",
		"promptvc_checkout", "promptvc_tag", "promptvc_rollback",
	} {
		assert.True(t, names[want], want)
	}
}

func TestUnknownMethod(t *testing.T) {
	s, _ := newTestServer(t)

	resps := runRequests(t, s, `{"jsonrpc":"2.0","id":1,"method":"bogus"}`)
	require.Len(t, resps, 1)
	require.NotNil(t, resps[0].Error)
	assert.Equal(t, codeMethodNotFound, resps[0].Error.Code)
}

func TestParseError(t *testing.T) {
	s, _ := newTestServer(t)

	resps := runRequests(t, s, `{not json`)
	require.Len(t, resps, 1)
	require.NotNil(t, resps[0].Error)
	assert.Equal(t, codeParseError, resps[0].Error.Code)
}

func TestCommitAndHistoryTools(t *testing.T) {
	s, _ := newTestServer(t)

	resps := runRequests(t, s,
		callRequest(1, "promptvc_commit", map[string]any{
			"message": "first version",
			"prompt":  map[string]any{"system": "You are terse.", "temperature": 0.5},
			"author":  "alice",
		}),
		callRequest(2, "promptvc_get_history", map[string]any{}),
	)
	require.Len(t, resps, 2)

	commitText := toolText(t, resps[0])
	assert.Contains(t, commitText, `"message": "first version"`)
	assert.Contains(t, commitText, `"author": "alice"`)

	historyText := toolText(t, resps[1])
	assert.Contains(t, historyText, "first version")
}

func TestDiffAndRollbackTools(t *testing.T) {
	s, r := newTestServer(t)

	_, err := r.CommitMap("v1", map[string]any{"system": "old"}, "a", "")
	require.NoError(t, err)
	c2, err := r.CommitMap("v2", map[string]any{"system": "new"}, "a", "")
	require.NoError(t, err)

	resps := runRequests(t, s,
		callRequest(1, "promptvc_diff", map[string]any{"ref1": "HEAD~1", "ref2": "HEAD"}),
		callRequest(2, "promptvc_rollback", map[string]any{}),
		callRequest(3, "promptvc_get_status", map[string]any{}),
	)
	require.Len(t, resps, 3)

	assert.Contains(t, toolText(t, resps[0]), `"summary": "1 modified"`)
	assert.Contains(t, toolText(t, resps[1]), `"message": "v1"`)

	statusText := toolText(t, resps[2])
	assert.Contains(t, statusText, `"message": "v1"`)
	assert.NotContains(t, statusText, fmt.Sprintf(`"hash": "%s"`, c2.Hash))
}

func TestTagTools(t *testing.T) {
	s, r := newTestServer(t)
	_, err := r.CommitMap("v1", map[string]any{"system": "x"}, "a", "")
	require.NoError(t, err)

	resps := runRequests(t, s,
		callRequest(1, "promptvc_tag", map[string]any{
			"name":     "baseline",
			"metadata": map[string]any{"accuracy": 0.9},
		}),
		callRequest(2, "promptvc_list_tags", map[string]any{}),
	)
	require.Len(t, resps, 2)
	assert.Contains(t, toolText(t, resps[0]), `"name": "baseline"`)
	assert.Contains(t, toolText(t, resps[1]), "baseline")
}

func TestToolErrorEnvelope(t *testing.T) {
	s, _ := newTestServer(t)

	resps := runRequests(t, s,
		callRequest(1, "promptvc_checkout", map[string]any{"ref": "missing"}),
	)
	require.Len(t, resps, 1)
	// Tool failures are reported in-band, not as protocol errors.
	require.Nil(t, resps[0].Error)
	assert.Equal(t, true, resps[0].Result["isError"])
}

func TestUnknownTool(t *testing.T) {
	s, _ := newTestServer(t)

	resps := runRequests(t, s, callRequest(1, "promptvc_frobnicate", nil))
	require.Len(t, resps, 1)
	assert.Equal(t, true, resps[0].Result["isError"])
}

func TestCreatePromptTool(t *testing.T) {
	s, r := newTestServer(t)

	resps := runRequests(t, s,
		callRequest(1, "promptvc_create_prompt", map[string]any{
			"name":        "support-bot",
			"system":      "You answer support tickets.",
			"temperature": 0.4,
		}),
	)
	require.Len(t, resps, 1)
	text := toolText(t, resps[0])
	assert.Contains(t, text, "support-bot.yaml")

	// The file is usable for a follow-up commit.
	resps = runRequests(t, s,
		callRequest(2, "promptvc_commit", map[string]any{
			"message": "add support bot",
			"prompt":  map[string]any{"system": "You answer support tickets.", "temperature": 0.4},
		}),
	)
	require.Len(t, resps, 1)
	assert.NotEqual(t, true, resps[0].Result["isError"])

	versions, err := r.Log(0)
	require.NoError(t, err)
	assert.Len(t, versions, 1)
}
