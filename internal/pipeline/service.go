// AngelaMos | 2026
// service.go

// Package pipeline composes access control, extraction, chunking, the
// analysis orchestrator, persistence and metering into the analyzer
// operations exposed over HTTP.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/carterperez-dev/templates/doc-analyzer/internal/access"
	"github.com/carterperez-dev/templates/doc-analyzer/internal/analysis"
	"github.com/carterperez-dev/templates/doc-analyzer/internal/chunker"
	"github.com/carterperez-dev/templates/doc-analyzer/internal/core"
	"github.com/carterperez-dev/templates/doc-analyzer/internal/document"
	"github.com/carterperez-dev/templates/doc-analyzer/internal/extract"
	"github.com/carterperez-dev/templates/doc-analyzer/internal/llm"
	"github.com/carterperez-dev/templates/doc-analyzer/internal/rule"
	"github.com/carterperez-dev/templates/doc-analyzer/internal/usage"
	"github.com/carterperez-dev/templates/doc-analyzer/internal/user"
)

const (
	msgFilesAndRulesRequired = "Files and rules are required."
	msgRulesRequired         = "Rules are required for reanalysis."
	msgRuleEditForbidden     = "You can only update rules created by admin or yourself"
	msgFreeTrialSingleFile   = "Your free analysis covers a single document. " +
		"Subscribe to analyze more than one document at a time."
)

type AccessChecker interface {
	Check(ctx context.Context, userID string) (*access.Decision, error)
}

type Analyzer interface {
	Analyze(
		ctx context.Context,
		chunks []string,
		rules []analysis.Rule,
	) (*analysis.Outcome, error)
}

type Meter interface {
	EstimateCost(inputTokens, outputTokens int) decimal.Decimal
	RecordAPIUsage(
		ctx context.Context,
		userID string,
		inputTokens, outputTokens int,
		cost decimal.Decimal,
	) (*usage.APIUsage, error)
	RecordUsage(
		ctx context.Context,
		userID string,
		subscriptionID *string,
		tokens int,
	) error
}

type Options struct {
	MaxChunkSize int
	MaxFiles     int
	MaxFileBytes int64
}

type Service struct {
	access   AccessChecker
	analyzer Analyzer
	meter    Meter
	docs     document.Repository
	rules    rule.Repository
	text     extract.TextSource
	store    Store
	opts     Options
	tracer   trace.Tracer
	logger   *slog.Logger
	now      func() time.Time
}

type Deps struct {
	Access    AccessChecker
	Analyzer  Analyzer
	Meter     Meter
	Documents document.Repository
	Rules     rule.Repository
	Text      extract.TextSource
	Store     Store
	Tracer    trace.Tracer
	Logger    *slog.Logger
}

func NewService(deps Deps, opts Options) *Service {
	tracer := deps.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("pipeline")
	}

	return &Service{
		access:   deps.Access,
		analyzer: deps.Analyzer,
		meter:    deps.Meter,
		docs:     deps.Documents,
		rules:    deps.Rules,
		text:     deps.Text,
		store:    deps.Store,
		opts:     opts,
		tracer:   tracer,
		logger:   deps.Logger,
		now:      time.Now,
	}
}

// AnalyzeDocuments stores and analyzes every upload against ruleIDs. Each
// document is its own unit of work: its rows are persisted and metered only
// after every rule has been synthesized. When a later document fails, the
// batch stops and the documents already stored and charged are returned
// alongside the failure.
func (s *Service) AnalyzeDocuments(
	ctx context.Context,
	userID string,
	files []Upload,
	ruleIDs []string,
) (*BatchResult, error) {
	ruleIDs = normalizeIDs(ruleIDs)
	if len(files) == 0 || len(ruleIDs) == 0 {
		return nil, core.ValidationError(msgFilesAndRulesRequired)
	}
	if err := s.validateUploads(files); err != nil {
		return nil, err
	}

	decision, err := s.access.Check(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !decision.CanAnalyze {
		return nil, denied(decision, decision.Message)
	}
	if decision.IsFirstTimeAnalysis && len(files) > 1 {
		return nil, denied(decision, msgFreeTrialSingleFile)
	}

	rules, err := s.resolveRules(ctx, ruleIDs)
	if err != nil {
		return nil, err
	}

	budget := *decision
	batch := &BatchResult{
		Results: make([]DocumentResult, 0, len(files)),
		TokenUsage: TokenUsage{
			Subscription: decision.Subscription,
		},
	}

	for i, f := range files {
		fileType := extract.Resolve(f.ContentType, f.Data)
		doc := document.New(uuid.New().String(), userID, f.Name, fileType, f.Data)

		result, err := s.analyzeDocument(ctx, userID, &budget, doc, f.Data, rules, true)
		if err != nil {
			if len(batch.Results) == 0 {
				return nil, err
			}
			batch.stop(f.Name, err, files[i+1:])
			s.logger.Warn("batch stopped after partial success",
				"user_id", userID,
				"file", f.Name,
				"completed", len(batch.Results),
				"skipped", len(batch.Skipped),
				"error", err,
			)
			break
		}

		batch.Results = append(batch.Results, *result)
		batch.TokenUsage.TotalUsed += result.TokensUsed
		budget.TokensRemaining = budget.RemainingAfter(result.TokensUsed)
	}

	batch.TokenUsage.Remaining = decision.RemainingAfter(batch.TokenUsage.TotalUsed)

	s.logger.Info("documents analyzed",
		"user_id", userID,
		"documents", len(batch.Results),
		"partial", batch.Failed != nil,
		"rules", len(rules),
		"tokens_used", batch.TokenUsage.TotalUsed,
	)

	return batch, nil
}

// ReanalyzeWithEdits applies rule edits and analyzes a stored document
// again. Earlier results for the document are kept.
func (s *Service) ReanalyzeWithEdits(
	ctx context.Context,
	editor Editor,
	documentID string,
	edits []RuleEdit,
) (*Reanalysis, error) {
	if len(edits) == 0 {
		return nil, core.ValidationError(msgRulesRequired)
	}
	userID := editor.UserID

	doc, err := s.docs.GetOwned(ctx, userID, documentID)
	if err != nil {
		if core.IsNotFound(err) {
			return nil, core.NotFoundError("document")
		}
		return nil, err
	}

	ruleIDs, err := s.applyEdits(ctx, editor, edits)
	if err != nil {
		return nil, err
	}

	decision, err := s.access.Check(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !decision.CanAnalyze {
		return nil, denied(decision, decision.Message)
	}

	rules, err := s.resolveRules(ctx, ruleIDs)
	if err != nil {
		return nil, err
	}

	raw, err := doc.Content()
	if err != nil {
		return nil, err
	}

	budget := *decision
	result, err := s.analyzeDocument(ctx, userID, &budget, doc, raw, rules, false)
	if err != nil {
		return nil, err
	}

	return &Reanalysis{
		DocumentResult:  *result,
		TokensRemaining: decision.RemainingAfter(result.TokensUsed),
	}, nil
}

// analyzeDocument runs extraction, chunking, orchestration, persistence and
// metering for one document. isNew controls whether doc itself is stored.
func (s *Service) analyzeDocument(
	ctx context.Context,
	userID string,
	budget *access.Decision,
	doc *document.Document,
	raw []byte,
	rules []analysis.Rule,
	isNew bool,
) (*DocumentResult, error) {
	ctx, span := s.tracer.Start(ctx, "pipeline.document", trace.WithAttributes(
		attribute.String("document.id", doc.ID),
		attribute.String("document.type", doc.Type),
		attribute.Int("rules", len(rules)),
		attribute.Bool("document.new", isNew),
	))
	defer span.End()

	result, err := s.runDocument(ctx, userID, budget, doc, raw, rules, isNew)
	if err != nil {
		core.SetSpanError(ctx, err)
		return nil, err
	}

	return result, nil
}

func (s *Service) runDocument(
	ctx context.Context,
	userID string,
	budget *access.Decision,
	doc *document.Document,
	raw []byte,
	rules []analysis.Rule,
	isNew bool,
) (*DocumentResult, error) {
	text, err := s.text.Text(ctx, doc.Type, raw)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", doc.FileName, err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, core.ValidationError(
			fmt.Sprintf("%s contains no extractable text", doc.FileName))
	}

	estimate := access.EstimateTokens(utf8.RuneCountInString(text), len(rules))
	if !budget.Covers(estimate) {
		return nil, denied(budget, budget.InsufficientMessage(estimate))
	}

	chunks := chunker.Chunks(text, s.opts.MaxChunkSize)

	outcome, err := s.analyzer.Analyze(ctx, chunks, rules)
	if err != nil {
		return nil, upstream(err)
	}

	rows := make([]document.RuleAnalysis, 0, len(outcome.Results))
	ruleIDs := make([]string, 0, len(outcome.Results))
	for _, res := range outcome.Results {
		rows = append(rows, document.RuleAnalysis{
			ID:         uuid.New().String(),
			DocumentID: doc.ID,
			RuleID:     res.RuleID,
			Result:     res.Analysis,
		})
		ruleIDs = append(ruleIDs, res.RuleID)
	}

	save := Save{Rows: rows, RuleIDs: ruleIDs}
	if isNew {
		save.Document = doc
		save.FreeTrial = budget.IsFirstTimeAnalysis
	}
	if err := s.store.SaveAnalysis(ctx, save); err != nil {
		return nil, err
	}
	core.AddSpanEvent(ctx, "analysis.persisted", attribute.Int("rows", len(rows)))

	used := outcome.TotalTokens()
	cost := s.meter.EstimateCost(outcome.InputTokens, outcome.OutputTokens)

	if _, err := s.meter.RecordAPIUsage(
		ctx, userID, outcome.InputTokens, outcome.OutputTokens, cost,
	); err != nil {
		return nil, err
	}
	if err := s.meter.RecordUsage(ctx, userID, budget.SubscriptionID(), used); err != nil {
		return nil, err
	}

	s.logger.Debug("document analyzed",
		"document_id", doc.ID,
		"chunks", len(chunks),
		"estimate", estimate,
		"tokens_used", used,
		"cost", cost.String(),
		"trace_id", core.TraceIDFromContext(ctx),
	)

	return &DocumentResult{
		DocumentID: doc.ID,
		FileName:   doc.FileName,
		Analyses:   outcome.Results,
		TokensUsed: used,
	}, nil
}

// applyEdits authorizes every edit before writing any of them, so a
// forbidden edit leaves all rules untouched.
func (s *Service) applyEdits(
	ctx context.Context,
	editor Editor,
	edits []RuleEdit,
) ([]string, error) {
	userID := editor.UserID

	existing := make(map[string]bool, len(edits))
	for _, e := range edits {
		current, err := s.rules.GetWithCreator(ctx, e.ID)
		if err != nil {
			if core.IsNotFound(err) {
				continue
			}
			return nil, err
		}

		creatorIsAdmin := current.CreatorRole == user.RoleAdmin
		if !creatorIsAdmin && !editor.Admin && !current.CreatedBy(userID) {
			return nil, core.ForbiddenError(msgRuleEditForbidden)
		}
		existing[e.ID] = true
	}

	ids := make([]string, 0, len(edits))
	for _, e := range edits {
		if existing[e.ID] {
			if _, err := s.rules.UpdateDescription(ctx, e.ID, e.Description, userID); err != nil {
				return nil, err
			}
		} else {
			if err := s.rules.Create(ctx, &rule.Rule{
				ID:          e.ID,
				Title:       rule.CustomRuleTitle,
				Description: e.Description,
				CreatedByID: &userID,
				UpdatedByID: &userID,
				Status:      rule.StatusActive,
			}); err != nil {
				return nil, err
			}
		}
		if !slices.Contains(ids, e.ID) {
			ids = append(ids, e.ID)
		}
	}

	return ids, nil
}

// resolveRules loads rules in the requested order. Any unknown id fails the
// whole request.
func (s *Service) resolveRules(
	ctx context.Context,
	ids []string,
) ([]analysis.Rule, error) {
	found, err := s.rules.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]rule.Rule, len(found))
	for _, r := range found {
		byID[r.ID] = r
	}

	rules := make([]analysis.Rule, 0, len(ids))
	for _, id := range ids {
		r, ok := byID[id]
		if !ok {
			return nil, core.NotFoundError("rule " + id)
		}
		rules = append(rules, analysis.Rule{
			ID:          r.ID,
			Title:       r.Title,
			Description: r.Description,
		})
	}

	return rules, nil
}

func (s *Service) validateUploads(files []Upload) error {
	if s.opts.MaxFiles > 0 && len(files) > s.opts.MaxFiles {
		return core.ValidationError(
			fmt.Sprintf("at most %d files may be analyzed at once", s.opts.MaxFiles))
	}

	for _, f := range files {
		if len(f.Data) == 0 {
			return core.ValidationError(fmt.Sprintf("%s is empty", f.Name))
		}
		if s.opts.MaxFileBytes > 0 && int64(len(f.Data)) > s.opts.MaxFileBytes {
			return core.ValidationError(
				fmt.Sprintf("%s exceeds the %d byte upload limit", f.Name, s.opts.MaxFileBytes))
		}
	}

	return nil
}

func (s *Service) History(
	ctx context.Context,
	userID, search string,
) (*History, error) {
	today := s.now().UTC().Truncate(24 * time.Hour)
	yesterday := today.AddDate(0, 0, -1)
	weekAgo := today.AddDate(0, 0, -7)

	docs, err := s.docs.ListByUser(ctx, userID, weekAgo, strings.TrimSpace(search))
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}

	rows, err := s.docs.ListAnalyses(ctx, ids)
	if err != nil {
		return nil, err
	}

	analyses := make(map[string][]HistoryAnalysis, len(docs))
	for _, row := range rows {
		analyses[row.DocumentID] = append(analyses[row.DocumentID], HistoryAnalysis{
			RuleID:          row.RuleID,
			RuleTitle:       row.RuleTitle,
			RuleDescription: row.RuleDescription,
			Result:          row.Result,
			Matched:         analysis.Classify(row.Result).Matched(),
		})
	}

	history := &History{
		Today:     []HistoryEntry{},
		Yesterday: []HistoryEntry{},
		Last7Days: []HistoryEntry{},
	}

	for _, d := range docs {
		entry := HistoryEntry{
			Document: HistoryDocument{
				ID:         d.ID,
				FileName:   d.FileName,
				Type:       d.Type,
				AnalyzedAt: d.CreatedAt,
			},
			Analyses: analyses[d.ID],
		}
		if entry.Analyses == nil {
			entry.Analyses = []HistoryAnalysis{}
		}

		switch {
		case !d.CreatedAt.Before(today):
			history.Today = append(history.Today, entry)
		case !d.CreatedAt.Before(yesterday):
			history.Yesterday = append(history.Yesterday, entry)
		}
		history.Last7Days = append(history.Last7Days, entry)
	}

	return history, nil
}

func (s *Service) DeleteDocument(ctx context.Context, userID, documentID string) error {
	if err := s.docs.SoftDelete(ctx, userID, documentID); err != nil {
		if core.IsNotFound(err) {
			return core.NotFoundError("document")
		}
		return err
	}

	s.logger.Info("document deleted", "user_id", userID, "document_id", documentID)
	return nil
}

func (s *Service) Download(
	ctx context.Context,
	userID, documentID string,
) (*Download, error) {
	doc, err := s.docs.GetOwned(ctx, userID, documentID)
	if err != nil {
		if core.IsNotFound(err) {
			return nil, core.NotFoundError("document")
		}
		return nil, err
	}

	content, err := doc.Content()
	if err != nil {
		return nil, err
	}

	return &Download{
		FileName:    doc.FileName,
		ContentType: extract.ContentType(doc.FileName),
		Content:     content,
	}, nil
}

func (s *Service) CreateCustomRule(
	ctx context.Context,
	userID string,
	req CreateRuleRequest,
) (*rule.Rule, error) {
	now := s.now().UTC()
	r := &rule.Rule{
		ID:            uuid.New().String(),
		Title:         strings.TrimSpace(req.Title),
		Description:   strings.TrimSpace(req.Description),
		CreatedByID:   &userID,
		UpdatedByID:   &userID,
		Status:        rule.StatusActive,
		PublishedDate: &now,
	}

	if err := s.rules.Create(ctx, r); err != nil {
		return nil, err
	}

	return r, nil
}

func (s *Service) ListRules(
	ctx context.Context,
	userID, search string,
) (*RuleCatalog, error) {
	search = strings.TrimSpace(search)

	own, err := s.rules.ListByCreator(ctx, userID, search)
	if err != nil {
		return nil, err
	}

	predefined, err := s.rules.ListPredefined(ctx, search)
	if err != nil {
		return nil, err
	}

	catalog := toRuleCatalog(own, predefined)
	return &catalog, nil
}

func denied(d *access.Decision, message string) *core.AppError {
	return core.AccessDeniedError(message).WithDetails(map[string]any{
		"state":            d.State,
		"tokens_remaining": d.TokensRemaining,
		"subscription":     d.Subscription,
	})
}

// upstream keeps a provider failure message verbatim for the caller.
func upstream(err error) error {
	pe, ok := llm.AsProviderError(err)
	if !ok {
		return err
	}

	appErr := core.UpstreamError(pe.Message)
	appErr.Err = pe
	if pe.StatusCode != 0 {
		appErr = appErr.WithDetails(map[string]any{"provider_status": pe.StatusCode})
	}
	return appErr
}

func normalizeIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || slices.Contains(out, id) {
			continue
		}
		out = append(out, id)
	}
	return out
}
