package agent

import (
	"context"
	"fmt"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const openAIDefaultModel = openai.ChatModelGPT4oMini

// OpenAIBackend generates completions through the official OpenAI SDK.
type OpenAIBackend struct {
	apiKey string
	model  string
	client openai.Client
}

// NewOpenAIBackend builds an OpenAI backend. An empty model selects the
// default; an empty key leaves the backend unavailable.
func NewOpenAIBackend(apiKey, model string) *OpenAIBackend {
	if model == "" {
		model = openAIDefaultModel
	}
	return &OpenAIBackend{
		apiKey: apiKey,
		model:  model,
		client: openai.NewClient(option.WithAPIKey(apiKey)),
	}
}

func (b *OpenAIBackend) Name() string { return "openai" }

func (b *OpenAIBackend) IsAvailable() bool { return b.apiKey != "" }

func (b *OpenAIBackend) Generate(ctx context.Context, messages []Message, temperature float64, maxTokens int) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(b.model),
		Messages:    toOpenAIMessages(messages),
		Temperature: openai.Float(temperature),
	}
	if maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(maxTokens))
	}

	resp, err := b.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai completion: empty response")
	}
	return resp.Choices[0].Message.Content, nil
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case "system":
			out = append(out, openai.SystemMessage(m.Content))
		case "assistant":
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}
