package domain

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

type Code string

const (
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeNotFound        Code = "NOT_FOUND"
	CodeUnavailable     Code = "UNAVAILABLE"
	CodeInternal        Code = "INTERNAL"
)

// AppError is an error carrying a stable code for the transport layer.
type AppError struct {
	Code    Code
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Cause }

func InvalidArgument(format string, args ...any) error {
	return &AppError{Code: CodeInvalidArgument, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) error {
	return &AppError{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// CodeOf returns the code of the first AppError in err's chain.
func CodeOf(err error) Code {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// CompletionKind classifies why a completion call failed.
type CompletionKind string

const (
	CompletionAuth        CompletionKind = "auth"
	CompletionRateLimit   CompletionKind = "rate_limit"
	CompletionUnavailable CompletionKind = "upstream_unavailable"
	CompletionGeneric     CompletionKind = "generic"
)

// ApologyText replaces the assistant reply when a completion fails.
const ApologyText = "I apologize, but I'm having trouble processing your request right now. Please try again in a moment."

// EmptyCompletionText is returned when the provider answers without usable text.
const EmptyCompletionText = "I'm sorry, I couldn't generate a response."

var completionMessages = map[CompletionKind]string{
	CompletionAuth:        "The AI service rejected our credentials. Please check the API key configuration.",
	CompletionRateLimit:   "The AI service is busy or timed out. Please wait a moment and try again.",
	CompletionUnavailable: "The AI service is temporarily unavailable. Please try again later.",
	CompletionGeneric:     "Failed to generate AI response. Please try again.",
}

// Message is the human readable notification for the kind.
func (k CompletionKind) Message() string {
	if msg, ok := completionMessages[k]; ok {
		return msg
	}
	return completionMessages[CompletionGeneric]
}

// HTTPStatus is the status the completion endpoint answers with for the kind.
func (k CompletionKind) HTTPStatus() int {
	switch k {
	case CompletionAuth:
		return http.StatusUnauthorized
	case CompletionRateLimit:
		return http.StatusTooManyRequests
	case CompletionUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// CompletionError is the failure returned by every CompletionClient.
type CompletionError struct {
	Kind  CompletionKind
	Cause error
}

func (e *CompletionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("completion %s: %v", e.Kind, e.Cause)
	}
	return "completion " + string(e.Kind)
}

func (e *CompletionError) Unwrap() error { return e.Cause }

// Notice is the text surfaced to the user for this failure.
func (e *CompletionError) Notice() string {
	return e.Kind.Message()
}

func NewCompletionError(kind CompletionKind, cause error) *CompletionError {
	return &CompletionError{Kind: kind, Cause: cause}
}

// KindFromStatus maps a provider or proxy HTTP status to a failure kind.
func KindFromStatus(status int) CompletionKind {
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return CompletionAuth
	case status == http.StatusTooManyRequests, status == http.StatusRequestTimeout:
		return CompletionRateLimit
	case status == http.StatusBadGateway, status == http.StatusServiceUnavailable, status == http.StatusGatewayTimeout:
		return CompletionUnavailable
	default:
		return CompletionGeneric
	}
}

// ClassifyCompletionError turns a transport level error into a CompletionError.
// Errors that are already classified pass through unchanged.
func ClassifyCompletionError(err error) *CompletionError {
	if err == nil {
		return nil
	}

	var ce *CompletionError
	if errors.As(err, &ce) {
		return ce
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return NewCompletionError(CompletionRateLimit, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return NewCompletionError(CompletionRateLimit, err)
		}
		return NewCompletionError(CompletionUnavailable, err)
	}

	return NewCompletionError(CompletionGeneric, err)
}
