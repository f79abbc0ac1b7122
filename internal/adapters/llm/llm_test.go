package llm_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/lawless-ai/internal/adapters/llm"
	"github.com/PabloGalante/lawless-ai/internal/domain"
)

func TestBuildMessagesForCodingWithoutHistory(t *testing.T) {
	system, msgs := llm.BuildMessages("fix this bug", domain.DomainCoding, nil)

	assert.Contains(t, system, "Domain: coding")
	assert.Contains(t, system, "Coding questions")
	require.Len(t, msgs, 1)
	assert.Equal(t, domain.RoleUser, msgs[0].Role)
	assert.Equal(t, "fix this bug", msgs[0].Content)
}

func TestBuildMessagesKeepsHistoryOrderAndRoles(t *testing.T) {
	history := []*domain.Message{
		{Text: "q1", IsUser: true},
		{Text: "a1"},
		{Text: "q2", IsUser: true},
	}
	_, msgs := llm.BuildMessages("q3", domain.DomainLegal, history)

	require.Len(t, msgs, 4)
	assert.Equal(t, []domain.Role{domain.RoleUser, domain.RoleAssistant, domain.RoleUser, domain.RoleUser},
		[]domain.Role{msgs[0].Role, msgs[1].Role, msgs[2].Role, msgs[3].Role})
	assert.Equal(t, "q3", msgs[3].Content)
}

func TestSystemPromptPerDomain(t *testing.T) {
	for _, d := range domain.Domains {
		assert.Contains(t, llm.SystemPrompt(d), "Domain: "+string(d))
	}
	assert.Empty(t, llm.SystemPrompt("astrology"))
}

// openAIServer fakes the chat completions endpoint and records requests.
func openAIServer(t *testing.T, handler func(w http.ResponseWriter, req openai.ChatCompletionRequest)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		var req openai.ChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		handler(w, req)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newOpenAI(t *testing.T, url string) *llm.OpenAIClient {
	t.Helper()
	c, err := llm.NewOpenAIClient(llm.OpenAIOptions{
		APIKey:  "sk-test",
		BaseURL: url,
		Model:   "huggingfaceh4/zephyr-7b-beta",
		Timeout: 5 * time.Second,
	})
	require.NoError(t, err)
	return c
}

func TestOpenAIClientSendsSystemThenUser(t *testing.T) {
	var got openai.ChatCompletionRequest
	srv := openAIServer(t, func(w http.ResponseWriter, req openai.ChatCompletionRequest) {
		got = req
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","model":"m","choices":[{"index":0,"message":{"role":"assistant","content":"Check the nil pointer."},"finish_reason":"stop"}]}`))
	})

	text, err := newOpenAI(t, srv.URL).Complete(context.Background(), "fix this bug", domain.DomainCoding, nil)
	require.NoError(t, err)
	assert.Equal(t, "Check the nil pointer.", text)

	require.Len(t, got.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, got.Messages[0].Role)
	assert.Equal(t, openai.ChatMessageRoleUser, got.Messages[1].Role)
	assert.Equal(t, "fix this bug", got.Messages[1].Content)
	assert.Equal(t, "huggingfaceh4/zephyr-7b-beta", got.Model)
}

func TestOpenAIClientEmptyChoicesFallsBack(t *testing.T) {
	srv := openAIServer(t, func(w http.ResponseWriter, req openai.ChatCompletionRequest) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","model":"m","choices":[]}`))
	})

	text, err := newOpenAI(t, srv.URL).Complete(context.Background(), "hello", domain.DomainLegal, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.EmptyCompletionText, text)
}

func TestOpenAIClientClassifiesStatus(t *testing.T) {
	cases := []struct {
		status int
		kind   domain.CompletionKind
	}{
		{http.StatusUnauthorized, domain.CompletionAuth},
		{http.StatusTooManyRequests, domain.CompletionRateLimit},
		{http.StatusServiceUnavailable, domain.CompletionUnavailable},
		{http.StatusInternalServerError, domain.CompletionGeneric},
	}

	for _, tc := range cases {
		srv := openAIServer(t, func(w http.ResponseWriter, req openai.ChatCompletionRequest) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte(`{"error":{"message":"nope","type":"error"}}`))
		})

		_, err := newOpenAI(t, srv.URL).Complete(context.Background(), "hello", domain.DomainLegal, nil)
		var ce *domain.CompletionError
		require.True(t, errors.As(err, &ce), "status %d", tc.status)
		assert.Equal(t, tc.kind, ce.Kind, "status %d", tc.status)
	}
}

func TestNewOpenAIClientValidates(t *testing.T) {
	_, err := llm.NewOpenAIClient(llm.OpenAIOptions{Model: "m"})
	assert.Error(t, err)
	_, err = llm.NewOpenAIClient(llm.OpenAIOptions{APIKey: "k"})
	assert.Error(t, err)
}

func TestProxyClientPostsContract(t *testing.T) {
	var got llm.GenerateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(llm.GenerateResponse{Result: "Consider a limited liability clause."})
	}))
	defer srv.Close()

	history := []*domain.Message{{ID: "m1", Text: "hi", IsUser: true, Domain: domain.DomainLegal}}
	text, err := llm.NewProxyClient(srv.URL, time.Second).
		Complete(context.Background(), "review my contract", domain.DomainLegal, history)
	require.NoError(t, err)

	assert.Equal(t, "Consider a limited liability clause.", text)
	assert.Equal(t, "review my contract", got.Message)
	assert.Equal(t, domain.DomainLegal, got.Domain)
	require.Len(t, got.ConversationHistory, 1)
	assert.True(t, got.ConversationHistory[0].IsUser)
}

func TestProxyClientMapsErrorStatuses(t *testing.T) {
	cases := map[int]domain.CompletionKind{
		http.StatusUnauthorized:        domain.CompletionAuth,
		http.StatusTooManyRequests:     domain.CompletionRateLimit,
		http.StatusBadGateway:          domain.CompletionUnavailable,
		http.StatusInternalServerError: domain.CompletionGeneric,
	}
	for status, kind := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
			_ = json.NewEncoder(w).Encode(llm.ErrorResponse{Error: "upstream said no"})
		}))

		_, err := llm.NewProxyClient(srv.URL, time.Second).Complete(context.Background(), "hi", domain.DomainBusiness, nil)
		srv.Close()

		var ce *domain.CompletionError
		require.True(t, errors.As(err, &ce))
		assert.Equal(t, kind, ce.Kind, "status %d", status)
		assert.Contains(t, ce.Error(), "upstream said no")
	}
}

func TestProxyClientTimeoutIsRateLimitClass(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	_, err := llm.NewProxyClient(srv.URL, 50*time.Millisecond).Complete(context.Background(), "hi", domain.DomainCoding, nil)

	var ce *domain.CompletionError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, domain.CompletionRateLimit, ce.Kind)
}

func TestProxyClientMalformedBodyFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	text, err := llm.NewProxyClient(srv.URL, time.Second).Complete(context.Background(), "hi", domain.DomainCoding, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.EmptyCompletionText, text)
}

func TestMockLLMRecordsCallsAndFails(t *testing.T) {
	m := llm.NewMockLLM()

	_, err := m.Complete(context.Background(), "hello", domain.DomainLegal, nil)
	require.NoError(t, err)

	m.FailWith(context.DeadlineExceeded)
	_, err = m.Complete(context.Background(), "again", domain.DomainLegal, nil)
	var ce *domain.CompletionError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, domain.CompletionRateLimit, ce.Kind)

	calls := m.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "again", calls[1].Prompt)
}
