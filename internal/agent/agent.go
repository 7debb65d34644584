package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"promptvc/internal/repo"
)

const systemPromptTemplate = `You are an expert assistant for a Git-like prompt version control system called promptvc.

Your job is to help users manage their LLM prompts through natural language commands. You can:
- Initialize repositories (promptvc init)
- Commit prompts (promptvc commit -m "message" -f file.yaml)
- View history (promptvc log)
- Compare versions (promptvc diff hash1 hash2)
- Checkout versions (promptvc checkout hash)
- Tag experiments (promptvc tag name hash)

When a user asks you to do something, respond with:
1. A friendly confirmation of what you'll do
2. The exact command to execute (wrapped in a command code block)
3. Any relevant context or warnings

For destructive operations (checkout, etc.), ask for confirmation first.

Current working directory: %s
Repository status: %s

Be concise, helpful, and precise. Format commands clearly so they can be extracted and executed.`

var commandPattern = regexp.MustCompile("(?is)```(?:command|bash|shell)?\\s*(promptvc\\s+[^`]+)```")

// historyWindow bounds how many prior turns are sent to the backend.
const historyWindow = 10

// ConversationMessage is one recorded turn, kept for session persistence.
type ConversationMessage struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Response is the agent's reply to one user message.
type Response struct {
	Message           string `json:"message"`
	Command           string `json:"command,omitempty"`
	Action            string `json:"action,omitempty"`
	NeedsConfirmation bool   `json:"needs_confirmation"`
}

// Agent interprets natural language and translates it to promptvc
// commands. It holds conversation context for multi-turn interactions
// but never touches the stores directly.
type Agent struct {
	backend  Backend
	repoPath string
	history  []ConversationMessage
	logger   *zap.Logger
}

// New builds an agent over the given backend for the repository at
// repoPath.
func New(backend Backend, repoPath string, logger *zap.Logger) *Agent {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Agent{backend: backend, repoPath: repoPath, logger: logger}
}

// Backend returns the backend in use.
func (a *Agent) Backend() Backend { return a.backend }

// Process handles one user message: it queries the backend with the
// current repository context and conversation window, records both turns,
// and extracts an executable command if the reply contains one.
func (a *Agent) Process(ctx context.Context, userInput string) (*Response, error) {
	a.remember("user", userInput)

	messages := []Message{{Role: "system", Content: a.systemPrompt()}}
	start := 0
	if len(a.history) > historyWindow {
		start = len(a.history) - historyWindow
	}
	for _, m := range a.history[start:] {
		if m.Role == "user" || m.Role == "assistant" {
			messages = append(messages, Message{Role: m.Role, Content: m.Content})
		}
	}

	reply, err := a.backend.Generate(ctx, messages, 0.3, 0)
	if err != nil {
		return nil, fmt.Errorf("generating response: %w", err)
	}
	a.remember("assistant", reply)

	resp := &Response{Message: reply}
	if cmd := ExtractCommand(reply); cmd != "" {
		resp.Command = cmd
		resp.Action = commandAction(cmd)
		resp.NeedsConfirmation = resp.Action == "checkout" || resp.Action == "init"
		a.logger.Debug("extracted command",
			zap.String("command", cmd),
			zap.String("action", resp.Action))
	}
	return resp, nil
}

// ExtractCommand pulls the first promptvc command out of a fenced code
// block in the reply, or returns "".
func ExtractCommand(reply string) string {
	m := commandPattern.FindStringSubmatch(reply)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// commandAction returns the subcommand of a "promptvc ..." string.
func commandAction(cmd string) string {
	parts := strings.Fields(cmd)
	if len(parts) < 2 || parts[0] != "promptvc" {
		return ""
	}
	return parts[1]
}

// SaveConversation persists the conversation history to a JSON file.
func (a *Agent) SaveConversation(path string) error {
	data, err := json.MarshalIndent(a.history, "", "  ")
	if err != nil {
		return fmt.Errorf("saving conversation: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("saving conversation: %w", err)
	}
	return nil
}

// LoadConversation restores a previously saved conversation history.
func (a *Agent) LoadConversation(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("loading conversation: %w", err)
	}
	var history []ConversationMessage
	if err := json.Unmarshal(data, &history); err != nil {
		return fmt.Errorf("loading conversation: %w", err)
	}
	a.history = history
	return nil
}

func (a *Agent) remember(role, content string) {
	a.history = append(a.history, ConversationMessage{
		ID:        uuid.New().String(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	})
}

func (a *Agent) systemPrompt() string {
	return fmt.Sprintf(systemPromptTemplate, a.repoPath, a.repoStatus())
}

// repoStatus summarizes the repository for the system prompt.
func (a *Agent) repoStatus() string {
	r, err := repo.Open(a.repoPath)
	if err != nil || !r.Exists() {
		return "Not initialized (needs 'promptvc init')"
	}
	versions, err := r.Log(1)
	if err != nil {
		return "Initialized"
	}
	if len(versions) == 0 {
		return "Initialized, no commits yet"
	}
	return fmt.Sprintf("Initialized, HEAD at %s", versions[0].Commit.ShortHash())
}
