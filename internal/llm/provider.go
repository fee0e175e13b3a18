// AngelaMos | 2026
// provider.go

// Package llm is the boundary to the hosted chat completion service.
package llm

import (
	"context"
	"errors"

	"github.com/carterperez-dev/templates/doc-analyzer/internal/core"
)

type Request struct {
	System      string
	User        string
	Temperature float32
	MaxTokens   int
}

type Completion struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
}

type Provider interface {
	Complete(ctx context.Context, req Request) (*Completion, error)
}

// ProviderError carries the upstream failure message verbatim.
type ProviderError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	return e.Message
}

func (e *ProviderError) Unwrap() []error {
	if e.Err == nil {
		return []error{core.ErrUpstream}
	}
	return []error{core.ErrUpstream, e.Err}
}

func NewProviderError(status int, message string, err error) *ProviderError {
	if message == "" && err != nil {
		message = err.Error()
	}
	return &ProviderError{
		StatusCode: status,
		Message:    message,
		Err:        err,
	}
}

func AsProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
