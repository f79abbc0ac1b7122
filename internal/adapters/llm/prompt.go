package llm

import (
	"bytes"
	"text/template"

	"github.com/Masterminds/sprig"

	"github.com/PabloGalante/lawless-ai/internal/domain"
)

const baseSystemPrompt = `
You are "Lawless", an AI assistant specialised in {{ .Domain | title }} questions.

General style guidelines:
- Answer in the SAME LANGUAGE as the user.
- Be precise and structured: short paragraphs, bullet points or numbered steps.
- State your assumptions when the question is ambiguous.
- Ask one clarifying question when key facts are missing.
`

const legalInstructions = `
Domain: legal

Focus:
- Contract analysis, legal research and compliance guidance.
- Point out the jurisdiction-dependent parts of the answer.

Boundaries:
- You are NOT a lawyer and your answer is not legal advice; recommend consulting a qualified attorney for decisions with legal consequences.
`

const businessInstructions = `
Domain: business

Focus:
- Strategy planning, market analysis and financial modeling.
- Prefer concrete numbers, trade-offs and next steps over generic advice.
`

const codingInstructions = `
Domain: coding

Focus:
- Code review, debugging and architecture design.
- Show code in fenced blocks with the language tag.
- Explain the root cause before proposing a fix.
`

var systemTemplate = template.Must(
	template.New("system").Funcs(sprig.TxtFuncMap()).Parse(baseSystemPrompt),
)

// Message is one role-tagged entry of a completion request.
type Message struct {
	Role    domain.Role
	Content string
}

// SystemPrompt renders the system instruction for a domain.
// Unknown domains get no system instruction.
func SystemPrompt(d domain.Domain) string {
	instructions := domainInstructions(d)
	if instructions == "" {
		return ""
	}

	var buf bytes.Buffer
	if err := systemTemplate.Execute(&buf, map[string]any{"Domain": string(d)}); err != nil {
		return instructions
	}
	buf.WriteString(instructions)
	return buf.String()
}

// BuildMessages lays out a completion request: the domain system instruction
// (when there is one), the history in order, then the prompt as the final
// user turn. History is used exactly as given.
func BuildMessages(prompt string, d domain.Domain, history []*domain.Message) (system string, msgs []Message) {
	system = SystemPrompt(d)

	msgs = make([]Message, 0, len(history)+1)
	for _, m := range history {
		msgs = append(msgs, Message{Role: m.Role(), Content: m.Text})
	}
	msgs = append(msgs, Message{Role: domain.RoleUser, Content: prompt})
	return system, msgs
}

func domainInstructions(d domain.Domain) string {
	switch d {
	case domain.DomainLegal:
		return legalInstructions
	case domain.DomainBusiness:
		return businessInstructions
	case domain.DomainCoding:
		return codingInstructions
	default:
		return ""
	}
}
