package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/PabloGalante/lawless-ai/internal/domain"
	"github.com/PabloGalante/lawless-ai/internal/observability"
)

// GenerateRequest is the body of the completion endpoint.
type GenerateRequest struct {
	Message             string            `json:"message"`
	Domain              domain.Domain     `json:"domain"`
	ConversationHistory []*domain.Message `json:"conversationHistory"`
}

// GenerateResponse is the success body of the completion endpoint.
type GenerateResponse struct {
	Result string `json:"result"`
}

// ErrorResponse is the failure body of the completion endpoint.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ProxyClient calls the completion endpoint (POST /api/generate) instead of
// a provider, keeping provider credentials on the server.
type ProxyClient struct {
	url  string
	http *http.Client
}

func NewProxyClient(url string, timeout time.Duration) *ProxyClient {
	return &ProxyClient{
		url:  url,
		http: &http.Client{Timeout: timeout},
	}
}

// Complete implements domain.CompletionClient.
func (p *ProxyClient) Complete(
	ctx context.Context,
	prompt string,
	d domain.Domain,
	history []*domain.Message,
) (string, error) {
	log := observability.LoggerFromContext(ctx).With("url", p.url, "domain", d)

	if history == nil {
		history = []*domain.Message{}
	}
	body, err := json.Marshal(GenerateRequest{
		Message:             prompt,
		Domain:              d,
		ConversationHistory: history,
	})
	if err != nil {
		return "", domain.NewCompletionError(domain.CompletionGeneric, errors.Wrap(err, "encode request"))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return "", domain.NewCompletionError(domain.CompletionGeneric, errors.Wrap(err, "build request"))
	}
	req.Header.Set("Content-Type", "application/json")
	if reqID := observability.RequestID(ctx); reqID != "" {
		req.Header.Set("X-Request-ID", reqID)
	}

	resp, err := p.http.Do(req)
	if err != nil {
		ce := domain.ClassifyCompletionError(err)
		log.Error("completion request failed", "kind", ce.Kind, "error", err)
		return "", ce
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		ce := domain.ClassifyCompletionError(err)
		log.Error("reading completion response failed", "kind", ce.Kind, "error", err)
		return "", ce
	}

	log.Info("completion response", "status", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail := "The AI service failed to respond."
		var errBody ErrorResponse
		if json.Unmarshal(raw, &errBody) == nil && errBody.Error != "" {
			detail = errBody.Error
		} else if text := strings.TrimSpace(string(raw)); text != "" {
			log.Error("raw error response", "body", text)
		}
		kind := domain.KindFromStatus(resp.StatusCode)
		return "", domain.NewCompletionError(kind, fmt.Errorf("status %d: %s", resp.StatusCode, detail))
	}

	var out GenerateResponse
	if err := json.Unmarshal(raw, &out); err != nil || strings.TrimSpace(out.Result) == "" {
		log.Warn("completion response without result")
		return domain.EmptyCompletionText, nil
	}
	return out.Result, nil
}

var _ domain.CompletionClient = (*ProxyClient)(nil)
