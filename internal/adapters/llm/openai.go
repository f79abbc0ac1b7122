package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/PabloGalante/lawless-ai/internal/domain"
	"github.com/PabloGalante/lawless-ai/internal/observability"
)

// OpenAIClient talks to any OpenAI compatible chat endpoint.
// The default base URL points at OpenRouter.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

type OpenAIOptions struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

func NewOpenAIClient(opts OpenAIOptions) (*OpenAIClient, error) {
	if opts.APIKey == "" {
		return nil, errors.New("openai client: api key is required")
	}
	if opts.Model == "" {
		return nil, errors.New("openai client: model is required")
	}

	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	}
	cfg.HTTPClient = &http.Client{Timeout: opts.Timeout}

	return &OpenAIClient{
		client: openai.NewClientWithConfig(cfg),
		model:  opts.Model,
	}, nil
}

// Complete implements domain.CompletionClient.
func (c *OpenAIClient) Complete(
	ctx context.Context,
	prompt string,
	d domain.Domain,
	history []*domain.Message,
) (string, error) {
	log := observability.LoggerFromContext(ctx).With("model", c.model, "domain", d)

	req := openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: toOpenAIMessages(prompt, d, history),
	}

	res, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		ce := classifyOpenAIError(err)
		log.Error("chat completion failed", "kind", ce.Kind, "error", err)
		return "", ce
	}

	if len(res.Choices) == 0 || strings.TrimSpace(res.Choices[0].Message.Content) == "" {
		log.Warn("chat completion returned no text")
		return domain.EmptyCompletionText, nil
	}
	return res.Choices[0].Message.Content, nil
}

func toOpenAIMessages(prompt string, d domain.Domain, history []*domain.Message) []openai.ChatCompletionMessage {
	system, msgs := BuildMessages(prompt, d, history)

	out := make([]openai.ChatCompletionMessage, 0, len(msgs)+1)
	if system != "" {
		out = append(out, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	for _, m := range msgs {
		role := openai.ChatMessageRoleUser
		if m.Role == domain.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		out = append(out, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	return out
}

func classifyOpenAIError(err error) *domain.CompletionError {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return domain.NewCompletionError(domain.KindFromStatus(apiErr.HTTPStatusCode), err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return domain.NewCompletionError(domain.KindFromStatus(reqErr.HTTPStatusCode), err)
	}

	return domain.ClassifyCompletionError(err)
}

var _ domain.CompletionClient = (*OpenAIClient)(nil)
