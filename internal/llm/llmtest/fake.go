// AngelaMos | 2026
// fake.go

// Package llmtest provides a scripted completion provider for tests.
package llmtest

import (
	"context"
	"sync"

	"github.com/carterperez-dev/templates/doc-analyzer/internal/llm"
)

type Call struct {
	Request llm.Request
}

// Provider answers every request through Respond and records each call.
// A nil Respond echoes a fixed "Matched: ok" reply costing 10+5 tokens.
type Provider struct {
	Respond func(n int, req llm.Request) (*llm.Completion, error)

	mu    sync.Mutex
	calls []Call
}

func (p *Provider) Complete(
	ctx context.Context,
	req llm.Request,
) (*llm.Completion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	n := len(p.calls)
	p.calls = append(p.calls, Call{Request: req})
	p.mu.Unlock()

	if p.Respond == nil {
		return &llm.Completion{
			Text:             "Matched: ok",
			PromptTokens:     10,
			CompletionTokens: 5,
		}, nil
	}

	return p.Respond(n, req)
}

func (p *Provider) Calls() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]Call, len(p.calls))
	copy(out, p.calls)
	return out
}

var _ llm.Provider = (*Provider)(nil)
