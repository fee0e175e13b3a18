// AngelaMos | 2026
// orchestrator.go

// Package analysis runs the two-phase rule evaluation over document chunks:
// a map stage that questions every chunk, then a reduce stage that
// synthesizes one verdict per rule from the chunk answers.
package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"

	"github.com/carterperez-dev/templates/doc-analyzer/internal/core"
	"github.com/carterperez-dev/templates/doc-analyzer/internal/llm"
	"github.com/carterperez-dev/templates/doc-analyzer/internal/pacing"
)

type Rule struct {
	ID          string
	Title       string
	Description string
}

type RuleResult struct {
	RuleID    string  `json:"ruleId"`
	RuleTitle string  `json:"ruleTitle"`
	Verdict   Verdict `json:"-"`
	Matched   bool    `json:"matched"`
	Analysis  string  `json:"analysis"`
}

type Outcome struct {
	Results      []RuleResult
	InputTokens  int
	OutputTokens int
}

func (o *Outcome) TotalTokens() int {
	return o.InputTokens + o.OutputTokens
}

type Options struct {
	Temperature     float32
	MaxTokens       int
	RuleConcurrency int
}

type Orchestrator struct {
	provider llm.Provider
	pacer    pacing.Pacer
	tracer   trace.Tracer
	opts     Options
	logger   *slog.Logger
}

func NewOrchestrator(
	provider llm.Provider,
	pacer pacing.Pacer,
	tracer trace.Tracer,
	opts Options,
	logger *slog.Logger,
) *Orchestrator {
	if pacer == nil {
		pacer = pacing.Noop{}
	}
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("analysis")
	}
	if opts.RuleConcurrency < 1 {
		opts.RuleConcurrency = 1
	}

	return &Orchestrator{
		provider: provider,
		pacer:    pacer,
		tracer:   tracer,
		opts:     opts,
		logger:   logger,
	}
}

type tally struct {
	input  atomic.Int64
	output atomic.Int64
}

// Analyze evaluates every rule against every chunk. Results keep the order
// of rules. The first failed completion aborts the whole analysis and its
// error is returned as is; nothing partial is handed back.
func (o *Orchestrator) Analyze(
	ctx context.Context,
	chunks []string,
	rules []Rule,
) (*Outcome, error) {
	if len(rules) == 0 {
		return nil, fmt.Errorf("analyze: no rules: %w", core.ErrInvalidInput)
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("analyze: no text to analyze: %w", core.ErrInvalidInput)
	}

	ruleList := numberedRules(rules)
	results := make([]RuleResult, len(rules))
	var used tally

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.opts.RuleConcurrency)

	for i, rule := range rules {
		g.Go(func() error {
			partials, err := o.mapChunks(gctx, &used, rule, chunks, ruleList)
			if err != nil {
				return err
			}

			final, err := o.reduce(gctx, &used, rule, partials, ruleList)
			if err != nil {
				return err
			}

			verdict := Classify(final)
			results[i] = RuleResult{
				RuleID:    rule.ID,
				RuleTitle: rule.Title,
				Verdict:   verdict,
				Matched:   verdict.Matched(),
				Analysis:  final,
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &Outcome{
		Results:      results,
		InputTokens:  int(used.input.Load()),
		OutputTokens: int(used.output.Load()),
	}

	o.logger.Debug("analysis complete",
		"rules", len(rules),
		"chunks", len(chunks),
		"input_tokens", out.InputTokens,
		"output_tokens", out.OutputTokens,
	)

	return out, nil
}

// mapChunks asks the full rule list of each chunk in order.
func (o *Orchestrator) mapChunks(
	ctx context.Context,
	used *tally,
	rule Rule,
	chunks []string,
	ruleList string,
) ([]string, error) {
	partials := make([]string, 0, len(chunks))

	for i, chunk := range chunks {
		text, err := o.complete(ctx, used, "map", rule.ID, i, llm.Request{
			System: chunkSystemPrompt,
			User:   chunkPrompt(chunk, ruleList),
		})
		if err != nil {
			return nil, err
		}
		partials = append(partials, text)
	}

	return partials, nil
}

func (o *Orchestrator) reduce(
	ctx context.Context,
	used *tally,
	rule Rule,
	partials []string,
	ruleList string,
) (string, error) {
	return o.complete(ctx, used, "reduce", rule.ID, -1, llm.Request{
		System: synthesisSystemPrompt,
		User:   synthesisPrompt(partials, ruleList),
	})
}

func (o *Orchestrator) complete(
	ctx context.Context,
	used *tally,
	stage, ruleID string,
	chunkIndex int,
	req llm.Request,
) (string, error) {
	if err := o.pacer.Wait(ctx); err != nil {
		return "", err
	}

	ctx, span := o.tracer.Start(ctx, "analysis."+stage,
		trace.WithAttributes(
			attribute.String("rule.id", ruleID),
			attribute.Int("chunk.index", chunkIndex),
		),
	)
	defer span.End()

	req.Temperature = o.opts.Temperature
	req.MaxTokens = o.opts.MaxTokens

	completion, err := o.provider.Complete(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		o.logger.Warn("completion failed",
			"stage", stage,
			"rule_id", ruleID,
			"chunk_index", chunkIndex,
			"error", err,
		)
		return "", err
	}

	span.SetAttributes(
		attribute.Int("llm.prompt_tokens", completion.PromptTokens),
		attribute.Int("llm.completion_tokens", completion.CompletionTokens),
	)

	used.input.Add(int64(completion.PromptTokens))
	used.output.Add(int64(completion.CompletionTokens))

	return completion.Text, nil
}
