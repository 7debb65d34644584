package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
)

const ollamaDefaultModel = "llama3.2"

// OllamaBackend generates completions against a local Ollama server.
type OllamaBackend struct {
	host   string
	model  string
	client *http.Client
}

func NewOllamaBackend(host, model string) *OllamaBackend {
	if host == "" {
		host = "http://localhost:11434"
	}
	if model == "" {
		model = ollamaDefaultModel
	}
	return &OllamaBackend{
		host:   strings.TrimRight(host, "/"),
		model:  model,
		client: &http.Client{Timeout: 120 * time.Second},
	}
}

func (b *OllamaBackend) Name() string { return "ollama" }

// IsAvailable probes the server's tag listing with a short timeout.
func (b *OllamaBackend) IsAvailable() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.host+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

type ollamaRequest struct {
	Model    string         `json:"model"`
	Messages []Message      `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

type ollamaResponse struct {
	Message Message `json:"message"`
	Error   string  `json:"error"`
}

func (b *OllamaBackend) Generate(ctx context.Context, messages []Message, temperature float64, maxTokens int) (string, error) {
	options := map[string]any{"temperature": temperature}
	if maxTokens > 0 {
		options["num_predict"] = maxTokens
	}
	reqBody := ollamaRequest{
		Model:    b.model,
		Messages: messages,
		Stream:   false,
		Options:  options,
	}

	var text string
	err := retry.Do(
		func() error {
			var err error
			text, err = b.doRequest(ctx, &reqBody)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(2),
		retry.Delay(500*time.Millisecond),
		retry.RetryIf(isTransient),
		retry.LastErrorOnly(true),
	)
	return text, err
}

func (b *OllamaBackend) doRequest(ctx context.Context, body *ollamaRequest) (string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("ollama request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.host+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("ollama request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return "", transientError{fmt.Errorf("ollama request: %w", err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", transientError{fmt.Errorf("ollama response: %w", err)}
	}
	if resp.StatusCode >= 500 {
		return "", transientError{fmt.Errorf("ollama error (status %d): %s", resp.StatusCode, respBody)}
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama error (status %d): %s", resp.StatusCode, respBody)
	}

	var parsed ollamaResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("ollama response: %w", err)
	}
	if parsed.Error != "" {
		return "", fmt.Errorf("ollama error: %s", parsed.Error)
	}
	return parsed.Message.Content, nil
}
