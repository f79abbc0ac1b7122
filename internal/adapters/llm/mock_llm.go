package llm

import (
	"context"
	"fmt"
	"sync"

	"github.com/PabloGalante/lawless-ai/internal/domain"
)

// Call records one Complete invocation of the mock.
type Call struct {
	Prompt  string
	Domain  domain.Domain
	History []*domain.Message
}

type MockLLM struct {
	mu    sync.Mutex
	err   error
	reply func(prompt string, d domain.Domain) string
	calls []Call
}

func NewMockLLM() *MockLLM {
	return &MockLLM{}
}

// FailWith makes every following call fail with err. nil restores replies.
func (m *MockLLM) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// ReplyWith overrides the generated reply.
func (m *MockLLM) ReplyWith(fn func(prompt string, d domain.Domain) string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reply = fn
}

// Calls returns the invocations seen so far.
func (m *MockLLM) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

func (m *MockLLM) Complete(ctx context.Context, prompt string, d domain.Domain, history []*domain.Message) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, Call{
		Prompt:  prompt,
		Domain:  d,
		History: append([]*domain.Message(nil), history...),
	})
	err, reply := m.err, m.reply
	m.mu.Unlock()

	if err != nil {
		return "", domain.ClassifyCompletionError(err)
	}
	if reply != nil {
		return reply(prompt, d), nil
	}
	return fmt.Sprintf("[%s] You said %q. Here is what I would look at first.", d, prompt), nil
}

var _ domain.CompletionClient = (*MockLLM)(nil)
