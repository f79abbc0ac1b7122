package llm

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"github.com/PabloGalante/lawless-ai/internal/domain"
	"github.com/PabloGalante/lawless-ai/internal/observability"
)

type VertexClient struct {
	client    *genai.Client
	modelName string
}

type VertexOptions struct {
	ProjectID string
	Location  string
	Model     string
}

// NewVertexClient creates a CompletionClient based on Vertex AI (Gemini).
func NewVertexClient(ctx context.Context, opts VertexOptions) (*VertexClient, error) {
	if opts.ProjectID == "" || opts.Location == "" {
		return nil, fmt.Errorf("vertex client: project and location must be set")
	}

	modelName := opts.Model
	if modelName == "" {
		modelName = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  opts.ProjectID,
		Location: opts.Location,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating Vertex AI client: %w", err)
	}

	return &VertexClient{
		client:    client,
		modelName: modelName,
	}, nil
}

// Complete implements domain.CompletionClient using Vertex AI.
func (v *VertexClient) Complete(
	ctx context.Context,
	prompt string,
	d domain.Domain,
	history []*domain.Message,
) (string, error) {
	log := observability.LoggerFromContext(ctx).With("model", v.modelName, "domain", d)

	system, msgs := BuildMessages(prompt, d, history)

	contents := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		var role genai.Role = genai.RoleUser
		if m.Role == domain.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}

	temp := float32(0.7)
	topP := float32(0.9)

	cfg := &genai.GenerateContentConfig{
		Temperature:     &temp,
		TopP:            &topP,
		MaxOutputTokens: int32(8192),
	}
	if system != "" {
		// the role here is usually RoleUser, not "system"
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	res, err := v.client.Models.GenerateContent(ctx, v.modelName, contents, cfg)
	if err != nil {
		ce := classifyVertexError(err)
		log.Error("vertex generate content failed", "kind", ce.Kind, "error", err)
		return "", ce
	}

	text := res.Text()
	if text == "" {
		log.Warn("vertex returned empty text")
		return domain.EmptyCompletionText, nil
	}
	return text, nil
}

func classifyVertexError(err error) *domain.CompletionError {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code != 0 {
		return domain.NewCompletionError(domain.KindFromStatus(apiErr.Code), err)
	}
	return domain.ClassifyCompletionError(err)
}

var _ domain.CompletionClient = (*VertexClient)(nil)
