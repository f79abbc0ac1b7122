package domain

import (
	"strings"
	"time"
)

type ConversationID string
type MessageID string

// Domain is the topic selector controlling the system prompt and display tagging.
type Domain string

const (
	DomainLegal    Domain = "legal"
	DomainBusiness Domain = "business"
	DomainCoding   Domain = "coding"
)

// Domains lists every supported domain in display order.
var Domains = []Domain{DomainLegal, DomainBusiness, DomainCoding}

func (d Domain) Valid() bool {
	switch d {
	case DomainLegal, DomainBusiness, DomainCoding:
		return true
	}
	return false
}

func (d Domain) String() string {
	return string(d)
}

// ParseDomain accepts any casing and surrounding spaces.
func ParseDomain(s string) (Domain, error) {
	d := Domain(strings.ToLower(strings.TrimSpace(s)))
	if !d.Valid() {
		return "", InvalidArgument("unknown domain %q", s)
	}
	return d, nil
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Timestamp = time.Time

// DisplayTime formats a time the way conversations and messages show it.
func DisplayTime(t time.Time) string {
	return t.Format("15:04")
}
