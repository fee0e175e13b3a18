// AngelaMos | 2026
// service_test.go

package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/templates/doc-analyzer/internal/access"
	"github.com/carterperez-dev/templates/doc-analyzer/internal/analysis"
	"github.com/carterperez-dev/templates/doc-analyzer/internal/core"
	"github.com/carterperez-dev/templates/doc-analyzer/internal/document"
	"github.com/carterperez-dev/templates/doc-analyzer/internal/extract"
	"github.com/carterperez-dev/templates/doc-analyzer/internal/llm"
	"github.com/carterperez-dev/templates/doc-analyzer/internal/llm/llmtest"
	"github.com/carterperez-dev/templates/doc-analyzer/internal/rule"
	"github.com/carterperez-dev/templates/doc-analyzer/internal/usage"
	"github.com/carterperez-dev/templates/doc-analyzer/internal/user"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeAccess struct {
	decision *access.Decision
	checks   int
}

func (f *fakeAccess) Check(context.Context, string) (*access.Decision, error) {
	f.checks++
	d := *f.decision
	return &d, nil
}

type fakeMeter struct {
	apiCalls []int
	charged  []int
	subIDs   []*string
}

func (f *fakeMeter) EstimateCost(in, out int) decimal.Decimal {
	return decimal.NewFromInt(int64(in + out))
}

func (f *fakeMeter) RecordAPIUsage(
	_ context.Context,
	_ string,
	in, out int,
	_ decimal.Decimal,
) (*usage.APIUsage, error) {
	f.apiCalls = append(f.apiCalls, in+out)
	return &usage.APIUsage{}, nil
}

func (f *fakeMeter) RecordUsage(
	_ context.Context,
	_ string,
	subscriptionID *string,
	tokens int,
) error {
	f.subIDs = append(f.subIDs, subscriptionID)
	f.charged = append(f.charged, tokens)
	return nil
}

type fakeDocs struct {
	document.Repository

	docs    map[string]*document.Document
	listed  []document.Document
	rows    []document.AnalysisRow
	since   time.Time
	deleted []string
}

func (f *fakeDocs) GetOwned(_ context.Context, userID, id string) (*document.Document, error) {
	d, ok := f.docs[id]
	if !ok || d.UserID != userID || d.DeletedAt != nil {
		return nil, core.ErrNotFound
	}
	return d, nil
}

func (f *fakeDocs) SoftDelete(_ context.Context, userID, id string) error {
	if _, err := f.GetOwned(context.Background(), userID, id); err != nil {
		return err
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeDocs) ListByUser(
	_ context.Context,
	_ string,
	since time.Time,
	_ string,
) ([]document.Document, error) {
	f.since = since
	return f.listed, nil
}

func (f *fakeDocs) ListAnalyses(context.Context, []string) ([]document.AnalysisRow, error) {
	return f.rows, nil
}

type fakeRules struct {
	rule.Repository

	rules   map[string]*rule.WithCreator
	created []rule.Rule
	updated []string
}

func newFakeRules(rules ...rule.WithCreator) *fakeRules {
	f := &fakeRules{rules: map[string]*rule.WithCreator{}}
	for i := range rules {
		f.rules[rules[i].ID] = &rules[i]
	}
	return f
}

func (f *fakeRules) GetByIDs(_ context.Context, ids []string) ([]rule.Rule, error) {
	var out []rule.Rule
	for _, id := range ids {
		if r, ok := f.rules[id]; ok {
			out = append(out, r.Rule)
		}
	}
	return out, nil
}

func (f *fakeRules) GetWithCreator(_ context.Context, id string) (*rule.WithCreator, error) {
	r, ok := f.rules[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return r, nil
}

func (f *fakeRules) Create(_ context.Context, r *rule.Rule) error {
	f.created = append(f.created, *r)
	f.rules[r.ID] = &rule.WithCreator{Rule: *r, CreatorRole: user.RoleUser}
	return nil
}

func (f *fakeRules) UpdateDescription(
	_ context.Context,
	id, description, updatedBy string,
) (*rule.Rule, error) {
	r := f.rules[id]
	r.Description = description
	r.UpdatedByID = &updatedBy
	f.updated = append(f.updated, id)
	return &r.Rule, nil
}

type fakeStore struct {
	saves []Save
}

func (f *fakeStore) SaveAnalysis(_ context.Context, save Save) error {
	f.saves = append(f.saves, save)
	return nil
}

type fixture struct {
	svc      *Service
	access   *fakeAccess
	provider *llmtest.Provider
	meter    *fakeMeter
	docs     *fakeDocs
	rules    *fakeRules
	store    *fakeStore
}

func ptr[T any](v T) *T { return &v }

func subscribedDecision(remaining int) *access.Decision {
	return &access.Decision{
		CanAnalyze:      true,
		TokensRemaining: remaining,
		State:           access.StateSubscribedHasTokens,
		Subscription:    &access.SubscriptionSummary{ID: "sub-1"},
	}
}

func newFixture(t *testing.T, decision *access.Decision) *fixture {
	t.Helper()

	f := &fixture{
		access:   &fakeAccess{decision: decision},
		provider: &llmtest.Provider{},
		meter:    &fakeMeter{},
		docs:     &fakeDocs{docs: map[string]*document.Document{}},
		rules: newFakeRules(
			rule.WithCreator{
				Rule:        rule.Rule{ID: "r1", Title: "Termination", Description: "Has a termination clause", CreatedByID: ptr("admin-1")},
				CreatorRole: user.RoleAdmin,
			},
			rule.WithCreator{
				Rule:        rule.Rule{ID: "r2", Title: "Law", Description: "Names a governing law", CreatedByID: ptr("user-2")},
				CreatorRole: user.RoleUser,
			},
		),
		store: &fakeStore{},
	}

	orchestrator := analysis.NewOrchestrator(f.provider, nil, nil, analysis.Options{}, discard)

	f.svc = NewService(Deps{
		Access:    f.access,
		Analyzer:  orchestrator,
		Meter:     f.meter,
		Documents: f.docs,
		Rules:     f.rules,
		Text:      extract.NewRegistry(),
		Store:     f.store,
		Logger:    discard,
	}, Options{MaxChunkSize: 8000, MaxFiles: 10, MaxFileBytes: 1 << 20})
	f.svc.now = func() time.Time {
		return time.Date(2026, time.June, 10, 14, 0, 0, 0, time.UTC)
	}

	return f
}

func textUpload(name, body string) Upload {
	return Upload{Name: name, ContentType: "text/plain", Data: []byte(body)}
}

func TestAnalyzeDocumentsEndToEnd(t *testing.T) {
	f := newFixture(t, subscribedDecision(15_000))
	body := strings.Repeat("abcdefghi ", 2000)
	require.Len(t, body, 20_000)

	result, err := f.svc.AnalyzeDocuments(context.Background(), "user-1",
		[]Upload{textUpload("contract.txt", body)}, []string{"r1", " r2 ", "r1"})
	require.NoError(t, err)

	assert.Len(t, f.provider.Calls(), 8)

	require.Len(t, f.store.saves, 1)
	save := f.store.saves[0]
	require.NotNil(t, save.Document)
	assert.Equal(t, "txt", save.Document.Type)
	assert.Equal(t, "documents/user-1/contract.txt", save.Document.FilePath)
	assert.Len(t, save.Rows, 2)
	assert.Equal(t, []string{"r1", "r2"}, save.RuleIDs)
	assert.False(t, save.FreeTrial)

	require.Len(t, result.Results, 1)
	doc := result.Results[0]
	assert.Equal(t, save.Document.ID, doc.DocumentID)
	assert.Equal(t, "contract.txt", doc.FileName)
	assert.Equal(t, 120, doc.TokensUsed)
	assert.True(t, doc.Analyses[0].Matched)

	assert.Equal(t, 120, result.TokenUsage.TotalUsed)
	assert.Equal(t, 14_880, result.TokenUsage.Remaining)

	assert.Equal(t, []int{120}, f.meter.charged)
	require.NotNil(t, f.meter.subIDs[0])
	assert.Equal(t, "sub-1", *f.meter.subIDs[0])
}

func TestAnalyzeDocumentsValidation(t *testing.T) {
	f := newFixture(t, subscribedDecision(15_000))
	ctx := context.Background()

	_, err := f.svc.AnalyzeDocuments(ctx, "user-1", nil, []string{"r1"})
	require.ErrorIs(t, err, core.ErrInvalidInput)

	_, err = f.svc.AnalyzeDocuments(ctx, "user-1",
		[]Upload{textUpload("a.txt", "x")}, []string{"", " "})
	require.ErrorIs(t, err, core.ErrInvalidInput)

	_, err = f.svc.AnalyzeDocuments(ctx, "user-1",
		[]Upload{textUpload("empty.txt", "")}, []string{"r1"})
	require.ErrorIs(t, err, core.ErrInvalidInput)

	assert.Zero(t, f.access.checks)
	assert.Empty(t, f.provider.Calls())
}

func TestAnalyzeDocumentsAccessDenied(t *testing.T) {
	f := newFixture(t, &access.Decision{
		CanAnalyze: false,
		Message:    "Please subscribe to continue using the analysis feature. Your free analysis has been used.",
		State:      access.StateFreeTrialExhausted,
	})

	_, err := f.svc.AnalyzeDocuments(context.Background(), "user-1",
		[]Upload{textUpload("a.txt", "some words")}, []string{"r1"})

	require.ErrorIs(t, err, core.ErrAccessDenied)
	appErr := core.FromError(err)
	assert.Equal(t, http.StatusPaymentRequired, appErr.StatusCode)
	assert.Contains(t, appErr.Message, "Your free analysis has been used.")
	assert.Equal(t, access.StateFreeTrialExhausted, appErr.Details["state"])
	assert.Empty(t, f.provider.Calls())
	assert.Empty(t, f.store.saves)
}

func TestFreeTrialAllowsOneDocument(t *testing.T) {
	trial := &access.Decision{
		CanAnalyze:          true,
		IsFirstTimeAnalysis: true,
		State:               access.StateFreeTrialAvailable,
	}

	f := newFixture(t, trial)
	_, err := f.svc.AnalyzeDocuments(context.Background(), "user-1",
		[]Upload{textUpload("a.txt", "one"), textUpload("b.txt", "two")}, []string{"r1"})
	require.ErrorIs(t, err, core.ErrAccessDenied)
	assert.Empty(t, f.provider.Calls())

	f = newFixture(t, trial)
	result, err := f.svc.AnalyzeDocuments(context.Background(), "user-1",
		[]Upload{textUpload("a.txt", strings.Repeat("word ", 5000))}, []string{"r1"})
	require.NoError(t, err)
	assert.Len(t, result.Results, 1)
	assert.Nil(t, f.meter.subIDs[0])
	assert.Zero(t, result.TokenUsage.Remaining)
	require.Len(t, f.store.saves, 1)
	assert.True(t, f.store.saves[0].FreeTrial)
}

func TestBlankDocumentIsRejected(t *testing.T) {
	for _, body := range []string{"     ", "\n\t \n"} {
		f := newFixture(t, subscribedDecision(15_000))

		_, err := f.svc.AnalyzeDocuments(context.Background(), "user-1",
			[]Upload{textUpload("blank.txt", body)}, []string{"r1"})

		require.ErrorIs(t, err, core.ErrInvalidInput)
		assert.Contains(t, core.FromError(err).Message, "blank.txt contains no extractable text")
		assert.Empty(t, f.provider.Calls())
		assert.Empty(t, f.store.saves)
		assert.Empty(t, f.meter.charged)
	}
}

func TestBatchStopsAfterPartialSuccess(t *testing.T) {
	f := newFixture(t, subscribedDecision(15_000))
	f.provider.Respond = func(n int, _ llm.Request) (*llm.Completion, error) {
		if n >= 2 {
			return nil, llm.NewProviderError(http.StatusServiceUnavailable, "model overloaded", nil)
		}
		return &llm.Completion{Text: "Matched: ok", PromptTokens: 10, CompletionTokens: 5}, nil
	}

	result, err := f.svc.AnalyzeDocuments(context.Background(), "user-1", []Upload{
		textUpload("a.txt", "first contract"),
		textUpload("b.txt", "second contract"),
		textUpload("c.txt", "third contract"),
	}, []string{"r1"})
	require.NoError(t, err)

	require.Len(t, result.Results, 1)
	assert.Equal(t, "a.txt", result.Results[0].FileName)

	require.NotNil(t, result.Failed)
	assert.Equal(t, "b.txt", result.Failed.FileName)
	assert.Equal(t, "UPSTREAM_PROVIDER_ERROR", result.Failed.Code)
	assert.Equal(t, "model overloaded", result.Failed.Message)
	assert.Equal(t, []string{"c.txt"}, result.Skipped)

	assert.Equal(t, []int{30}, f.meter.charged)
	assert.Len(t, f.store.saves, 1)
	assert.Equal(t, 30, result.TokenUsage.TotalUsed)
	assert.Equal(t, 14_970, result.TokenUsage.Remaining)
}

func TestBatchFailsWhenFirstDocumentFails(t *testing.T) {
	f := newFixture(t, subscribedDecision(15_000))
	f.provider.Respond = func(int, llm.Request) (*llm.Completion, error) {
		return nil, llm.NewProviderError(http.StatusBadGateway, "bad gateway", nil)
	}

	result, err := f.svc.AnalyzeDocuments(context.Background(), "user-1", []Upload{
		textUpload("a.txt", "first contract"),
		textUpload("b.txt", "second contract"),
	}, []string{"r1"})

	require.ErrorIs(t, err, core.ErrUpstream)
	assert.Nil(t, result)
	assert.Empty(t, f.meter.charged)
}

func TestInsufficientTokens(t *testing.T) {
	f := newFixture(t, subscribedDecision(150))

	_, err := f.svc.AnalyzeDocuments(context.Background(), "user-1",
		[]Upload{textUpload("a.txt", strings.Repeat("x", 400))}, []string{"r1"})

	require.ErrorIs(t, err, core.ErrAccessDenied)
	assert.Equal(t,
		"Insufficient tokens. Analysis requires approximately 200 tokens, but you only have 150 tokens remaining.",
		core.FromError(err).Message)
	assert.Empty(t, f.provider.Calls())
}

func TestUnlimitedRemainingStaysUnlimited(t *testing.T) {
	f := newFixture(t, &access.Decision{
		CanAnalyze:      true,
		TokensRemaining: -1,
		State:           access.StateSubscribedUnlimited,
		Subscription:    &access.SubscriptionSummary{ID: "sub-9"},
	})

	result, err := f.svc.AnalyzeDocuments(context.Background(), "user-1",
		[]Upload{textUpload("a.txt", "alpha"), textUpload("b.txt", "beta")}, []string{"r2"})
	require.NoError(t, err)

	assert.Equal(t, -1, result.TokenUsage.Remaining)
	assert.Equal(t, 60, result.TokenUsage.TotalUsed)
	assert.Len(t, f.store.saves, 2)
}

func TestUnknownRuleIsNotFound(t *testing.T) {
	f := newFixture(t, subscribedDecision(15_000))

	_, err := f.svc.AnalyzeDocuments(context.Background(), "user-1",
		[]Upload{textUpload("a.txt", "alpha")}, []string{"r1", "missing"})

	require.ErrorIs(t, err, core.ErrNotFound)
	assert.Empty(t, f.provider.Calls())
}

func TestProviderFailurePersistsNothing(t *testing.T) {
	f := newFixture(t, subscribedDecision(15_000))
	f.provider.Respond = func(n int, req llm.Request) (*llm.Completion, error) {
		return nil, llm.NewProviderError(http.StatusServiceUnavailable, "The server is overloaded", nil)
	}

	_, err := f.svc.AnalyzeDocuments(context.Background(), "user-1",
		[]Upload{textUpload("a.txt", "alpha")}, []string{"r1"})

	require.ErrorIs(t, err, core.ErrUpstream)
	appErr := core.FromError(err)
	assert.Equal(t, "The server is overloaded", appErr.Message)
	assert.Equal(t, http.StatusBadGateway, appErr.StatusCode)
	assert.Empty(t, f.store.saves)
	assert.Empty(t, f.meter.charged)
}

func storedDocument(f *fixture, owner string) *document.Document {
	doc := document.New("doc-1", owner, "policy.txt", extract.TypeTXT, []byte("policy text body"))
	f.docs.docs[doc.ID] = doc
	return doc
}

func TestReanalyzeUpdatesAndCreatesRules(t *testing.T) {
	f := newFixture(t, subscribedDecision(1_000))
	storedDocument(f, "user-1")

	newID := "7f9c2ba4-e88f-11ee-8c99-0242ac120002"
	result, err := f.svc.ReanalyzeWithEdits(context.Background(), Editor{UserID: "user-1"}, "doc-1", []RuleEdit{
		{ID: "r1", Description: "Has a 30 day termination clause"},
		{ID: newID, Description: "Mentions arbitration"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"r1"}, f.rules.updated)
	require.Len(t, f.rules.created, 1)
	created := f.rules.created[0]
	assert.Equal(t, newID, created.ID)
	assert.Equal(t, rule.CustomRuleTitle, created.Title)
	assert.Equal(t, rule.StatusActive, created.Status)
	assert.False(t, created.IsDraft)

	require.Len(t, f.store.saves, 1)
	assert.Nil(t, f.store.saves[0].Document)
	assert.Len(t, f.store.saves[0].Rows, 2)

	assert.Equal(t, "doc-1", result.DocumentID)
	assert.Equal(t, 1_000-result.TokensUsed, result.TokensRemaining)

	calls := f.provider.Calls()
	require.NotEmpty(t, calls)
	assert.Contains(t, calls[0].Request.User, "1. Has a 30 day termination clause\n2. Mentions arbitration")
}

func TestReanalyzeForbidsForeignRule(t *testing.T) {
	f := newFixture(t, subscribedDecision(1_000))
	storedDocument(f, "user-1")

	_, err := f.svc.ReanalyzeWithEdits(context.Background(), Editor{UserID: "user-1"}, "doc-1", []RuleEdit{
		{ID: "r1", Description: "allowed, admin authored"},
		{ID: "r2", Description: "someone else's rule"},
	})

	require.ErrorIs(t, err, core.ErrForbidden)
	assert.Equal(t, msgRuleEditForbidden, core.FromError(err).Message)
	assert.Empty(t, f.rules.updated)
	assert.Empty(t, f.provider.Calls())
}

func TestReanalyzeAdminMayEditAnyRule(t *testing.T) {
	f := newFixture(t, subscribedDecision(1_000))
	storedDocument(f, "user-1")

	_, err := f.svc.ReanalyzeWithEdits(context.Background(), Editor{UserID: "user-1", Admin: true}, "doc-1", []RuleEdit{
		{ID: "r2", Description: "rewritten by an admin"},
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"r2"}, f.rules.updated)
}

func TestReanalyzeRequiresOwnedDocument(t *testing.T) {
	f := newFixture(t, subscribedDecision(1_000))
	storedDocument(f, "someone-else")

	_, err := f.svc.ReanalyzeWithEdits(context.Background(), Editor{UserID: "user-1"}, "doc-1", []RuleEdit{
		{ID: "r1", Description: "x"},
	})
	require.ErrorIs(t, err, core.ErrNotFound)

	_, err = f.svc.ReanalyzeWithEdits(context.Background(), Editor{UserID: "user-1"}, "doc-1", nil)
	require.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestHistoryGroups(t *testing.T) {
	f := newFixture(t, subscribedDecision(0))
	at := func(day, hour int) time.Time {
		return time.Date(2026, time.June, day, hour, 0, 0, 0, time.UTC)
	}

	f.docs.listed = []document.Document{
		{ID: "d-today", FileName: "a.txt", Type: "txt", CreatedAt: at(10, 9)},
		{ID: "d-yesterday", FileName: "b.pdf", Type: "pdf", CreatedAt: at(9, 23)},
		{ID: "d-week", FileName: "c.docx", Type: "docx", CreatedAt: at(5, 12)},
	}
	f.docs.rows = []document.AnalysisRow{
		{DocumentID: "d-today", RuleID: "r1", RuleTitle: "T", Result: "Matched: clause 4"},
		{DocumentID: "d-today", RuleID: "r2", RuleTitle: "L", Result: "Rule 1:\nMatched: x"},
		{DocumentID: "d-week", RuleID: "r1", RuleTitle: "T", Result: "Not Matched: none"},
	}

	history, err := f.svc.History(context.Background(), "user-1", "")
	require.NoError(t, err)

	assert.Equal(t, time.Date(2026, time.June, 3, 0, 0, 0, 0, time.UTC), f.docs.since)

	require.Len(t, history.Today, 1)
	assert.Equal(t, "d-today", history.Today[0].Document.ID)
	require.Len(t, history.Today[0].Analyses, 2)
	assert.True(t, history.Today[0].Analyses[0].Matched)
	assert.False(t, history.Today[0].Analyses[1].Matched)

	require.Len(t, history.Yesterday, 1)
	assert.Empty(t, history.Yesterday[0].Analyses)
	assert.NotNil(t, history.Yesterday[0].Analyses)

	assert.Len(t, history.Last7Days, 3)
}

func TestDeleteAndDownload(t *testing.T) {
	f := newFixture(t, subscribedDecision(0))
	storedDocument(f, "user-1")
	ctx := context.Background()

	dl, err := f.svc.Download(ctx, "user-1", "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "policy.txt", dl.FileName)
	assert.Equal(t, "text/plain", dl.ContentType)
	assert.Equal(t, []byte("policy text body"), dl.Content)

	_, err = f.svc.Download(ctx, "user-2", "doc-1")
	require.ErrorIs(t, err, core.ErrNotFound)

	require.ErrorIs(t, f.svc.DeleteDocument(ctx, "user-2", "doc-1"), core.ErrNotFound)
	require.NoError(t, f.svc.DeleteDocument(ctx, "user-1", "doc-1"))
	assert.Equal(t, []string{"doc-1"}, f.docs.deleted)
}

func TestCreateCustomRule(t *testing.T) {
	f := newFixture(t, subscribedDecision(0))

	r, err := f.svc.CreateCustomRule(context.Background(), "user-1", CreateRuleRequest{
		Title:       "  Confidentiality ",
		Description: "Requires an NDA",
	})
	require.NoError(t, err)

	assert.Equal(t, "Confidentiality", r.Title)
	assert.True(t, r.CreatedBy("user-1"))
	require.NotNil(t, r.PublishedDate)
	assert.Equal(t, f.svc.now().UTC(), *r.PublishedDate)
}

func TestNormalizeIDs(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, normalizeIDs([]string{" a", "b", "", "a "}))
	assert.Empty(t, normalizeIDs(strings.Split("", ",")))
}

func TestUpstreamPassesOtherErrors(t *testing.T) {
	plain := errors.New("disk full")
	assert.Same(t, plain, upstream(plain))
}
