// AngelaMos | 2026
// controller_test.go

package access

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/templates/doc-analyzer/internal/core"
	"github.com/carterperez-dev/templates/doc-analyzer/internal/subscription"
	"github.com/carterperez-dev/templates/doc-analyzer/internal/usage"
	"github.com/carterperez-dev/templates/doc-analyzer/internal/usage/pricing"
)

type fakeSubs struct {
	sub *subscription.Subscription
	err error
}

func (f *fakeSubs) GetActiveByUserID(
	context.Context,
	string,
) (*subscription.Subscription, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.sub == nil {
		return nil, core.ErrNotFound
	}
	return f.sub, nil
}

type fakeUsages struct {
	mu      sync.Mutex
	records map[string]*usage.TokenUsage
	creates int
}

func newFakeUsages(records ...*usage.TokenUsage) *fakeUsages {
	f := &fakeUsages{records: map[string]*usage.TokenUsage{}}
	for _, r := range records {
		f.records[r.SubscriptionID] = r
	}
	return f
}

func (f *fakeUsages) GetActive(_ context.Context, subID string) (*usage.TokenUsage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	r, ok := f.records[subID]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeUsages) CreateIfAbsent(_ context.Context, u *usage.TokenUsage) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.records[u.SubscriptionID]; ok {
		return false, nil
	}
	cp := *u
	f.records[u.SubscriptionID] = &cp
	f.creates++
	return true, nil
}

type fakeDocs struct {
	count int
}

func (f *fakeDocs) CountByUser(context.Context, string) (int, error) {
	return f.count, nil
}

func newController(subs SubscriptionStore, usages UsageStore, docs DocumentCounter) *Controller {
	c := NewController(subs, usages, docs, slog.New(slog.NewTextHandler(io.Discard, nil)))
	c.now = func() time.Time {
		return time.Date(2026, time.April, 1, 9, 0, 0, 0, time.UTC)
	}
	return c
}

func activeSub(tier pricing.Tier) *subscription.Subscription {
	return &subscription.Subscription{
		ID:           "sub-1",
		UserID:       "user-1",
		Type:         tier,
		IsActive:     true,
		BillingCycle: pricing.BillingMonthly,
	}
}

func TestFreeTrialAvailable(t *testing.T) {
	c := newController(&fakeSubs{}, newFakeUsages(), &fakeDocs{count: 0})

	d, err := c.Check(context.Background(), "user-1")
	require.NoError(t, err)

	assert.True(t, d.CanAnalyze)
	assert.True(t, d.IsFirstTimeAnalysis)
	assert.Equal(t, StateFreeTrialAvailable, d.State)
	assert.Equal(t, msgFreeTrialAvailable, d.Message)
	assert.Nil(t, d.SubscriptionID())
}

func TestFreeTrialExhaustedAfterOneDocument(t *testing.T) {
	c := newController(&fakeSubs{}, newFakeUsages(), &fakeDocs{count: 1})

	d, err := c.Check(context.Background(), "user-1")
	require.NoError(t, err)

	assert.False(t, d.CanAnalyze)
	assert.False(t, d.IsFirstTimeAnalysis)
	assert.Equal(t, StateFreeTrialExhausted, d.State)
	assert.Zero(t, d.TokensRemaining)
	assert.Equal(t,
		"Please subscribe to continue using the analysis feature. Your free analysis has been used.",
		d.Message)
}

func TestSubscribedWithoutRecordCreatesOne(t *testing.T) {
	usages := newFakeUsages()
	c := newController(&fakeSubs{sub: activeSub(pricing.TierBasic)}, usages, &fakeDocs{})

	d, err := c.Check(context.Background(), "user-1")
	require.NoError(t, err)

	assert.True(t, d.CanAnalyze)
	assert.Equal(t, StateSubscribedNoUsageRecord, d.State)
	assert.Equal(t, 250_000, d.TokensRemaining)
	assert.Equal(t, "New subscription activated with 250.0K tokens", d.Message)
	require.NotNil(t, d.Subscription)
	assert.Equal(t, "Basic plan - 250K tokens", d.Subscription.Description)

	rec := usages.records["sub-1"]
	require.NotNil(t, rec)
	assert.Equal(t, 250_000, rec.TotalTokens)
	assert.Zero(t, rec.TokensUsed)
	assert.Equal(t, time.Date(2026, time.May, 1, 9, 0, 0, 0, time.UTC), rec.ResetDate)

	again, err := c.Check(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, StateSubscribedHasTokens, again.State)
	assert.Equal(t, 1, usages.creates)
}

func TestConcurrentChecksCreateOneRecord(t *testing.T) {
	usages := newFakeUsages()
	c := newController(&fakeSubs{sub: activeSub(pricing.TierPro)}, usages, &fakeDocs{})

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := c.Check(context.Background(), "user-1")
			assert.NoError(t, err)
			assert.True(t, d.CanAnalyze)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, usages.creates)
}

func TestSubscribedUnlimited(t *testing.T) {
	usages := newFakeUsages(&usage.TokenUsage{
		SubscriptionID: "sub-1",
		TotalTokens:    pricing.Unlimited,
		TokensUsed:     5_000_000,
	})
	c := newController(&fakeSubs{sub: activeSub(pricing.TierEnterprise)}, usages, &fakeDocs{})

	d, err := c.Check(context.Background(), "user-1")
	require.NoError(t, err)

	assert.True(t, d.CanAnalyze)
	assert.Equal(t, StateSubscribedUnlimited, d.State)
	assert.Equal(t, pricing.Unlimited, d.TokensRemaining)
	assert.Equal(t, "Enterprise plan - Unlimited tokens", d.Message)
	assert.True(t, d.Covers(10_000_000))
	assert.Equal(t, pricing.Unlimited, d.RemainingAfter(123))
}

func TestSubscribedHasTokens(t *testing.T) {
	usages := newFakeUsages(&usage.TokenUsage{
		SubscriptionID: "sub-1",
		TotalTokens:    15_000,
		TokensUsed:     2_500,
	})
	c := newController(&fakeSubs{sub: activeSub(pricing.TierPayAsYouGo)}, usages, &fakeDocs{})

	d, err := c.Check(context.Background(), "user-1")
	require.NoError(t, err)

	assert.True(t, d.CanAnalyze)
	assert.Equal(t, StateSubscribedHasTokens, d.State)
	assert.Equal(t, 12_500, d.TokensRemaining)
	assert.Equal(t, "Active subscription with 12.5K tokens remaining", d.Message)
	assert.Equal(t, "sub-1", *d.SubscriptionID())
}

func TestSubscribedExhausted(t *testing.T) {
	usages := newFakeUsages(&usage.TokenUsage{
		SubscriptionID: "sub-1",
		TotalTokens:    1000,
		TokensUsed:     1000,
	})
	c := newController(&fakeSubs{sub: activeSub(pricing.TierPayAsYouGo)}, usages, &fakeDocs{})

	d, err := c.Check(context.Background(), "user-1")
	require.NoError(t, err)

	assert.False(t, d.CanAnalyze)
	assert.Zero(t, d.TokensRemaining)
	assert.Equal(t, StateSubscribedExhausted, d.State)
	assert.Equal(t,
		"You have used all your tokens (1.0K). Please upgrade your subscription or wait for the next billing cycle.",
		d.Message)
}

func TestOverdrawnBalanceReportsZero(t *testing.T) {
	usages := newFakeUsages(&usage.TokenUsage{
		SubscriptionID: "sub-1",
		TotalTokens:    1000,
		TokensUsed:     1400,
	})
	c := newController(&fakeSubs{sub: activeSub(pricing.TierPayAsYouGo)}, usages, &fakeDocs{})

	d, err := c.Check(context.Background(), "user-1")
	require.NoError(t, err)

	assert.False(t, d.CanAnalyze)
	assert.Zero(t, d.TokensRemaining)
}

func TestCheckPropagatesStoreFailure(t *testing.T) {
	boom := errors.New("connection reset")
	c := newController(&fakeSubs{err: boom}, newFakeUsages(), &fakeDocs{})

	_, err := c.Check(context.Background(), "user-1")

	require.ErrorIs(t, err, boom)
}

func TestCheckUnknownTier(t *testing.T) {
	c := newController(&fakeSubs{sub: activeSub("GOLD")}, newFakeUsages(), &fakeDocs{})

	_, err := c.Check(context.Background(), "user-1")

	require.ErrorIs(t, err, pricing.ErrUnknownTier)
}

func TestEstimateAndCovers(t *testing.T) {
	assert.Equal(t, 5000+200, EstimateTokens(20_000, 2))
	assert.Equal(t, 1+100, EstimateTokens(1, 1))
	assert.Equal(t, 0, EstimateTokens(0, 0))

	d := &Decision{CanAnalyze: true, TokensRemaining: 500, State: StateSubscribedHasTokens}
	assert.True(t, d.Covers(500))
	assert.False(t, d.Covers(501))
	assert.Equal(t,
		"Insufficient tokens. Analysis requires approximately 501 tokens, but you only have 500 tokens remaining.",
		d.InsufficientMessage(501))
	assert.Equal(t, 0, d.RemainingAfter(900))
	assert.Equal(t, 200, d.RemainingAfter(300))

	trial := &Decision{CanAnalyze: true, State: StateFreeTrialAvailable}
	assert.True(t, trial.Covers(1_000_000))

	denied := &Decision{CanAnalyze: false, TokensRemaining: 100}
	assert.False(t, denied.Covers(1))
}
