// AngelaMos | 2026
// pricing_test.go

package pricing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCost(t *testing.T) {
	cases := []struct {
		tier   Tier
		tokens int
		want   string
	}{
		{TierPayAsYouGo, 1000, "0.002"},
		{TierBasic, 2000, "0.003"},
		{TierPro, 500, "0.0005"},
		{TierEnterprise, 10_000, "0.008"},
		{TierBasic, 0, "0"},
	}

	for _, tc := range cases {
		t.Run(string(tc.tier), func(t *testing.T) {
			got, err := Cost(tc.tier, tc.tokens)
			require.NoError(t, err)
			assert.True(t, got.Equal(decimal.RequireFromString(tc.want)),
				"got %s want %s", got, tc.want)
		})
	}
}

func TestCostUnlimitedShortCircuits(t *testing.T) {
	for _, tier := range []Tier{TierEnterprise, TierPro, Tier("BOGUS")} {
		got, err := Cost(tier, Unlimited)
		require.ErrorIs(t, err, ErrUnlimited)
		assert.True(t, got.IsZero())
	}
}

func TestCostRejectsBadInput(t *testing.T) {
	_, err := Cost(Tier("BOGUS"), 10)
	require.ErrorIs(t, err, ErrUnknownTier)

	_, err = Cost(TierPro, -7)
	require.ErrorIs(t, err, ErrNegative)
}

func TestQuota(t *testing.T) {
	q, err := Quota(TierEnterprise)
	require.NoError(t, err)
	assert.Equal(t, Unlimited, q)

	q, err = Quota(TierBasic)
	require.NoError(t, err)
	assert.Equal(t, 250_000, q)
}

func TestModelCost(t *testing.T) {
	rates := NewModelRates(0.0015, 0.002)

	got := ModelCost(2000, 1000, rates)

	assert.True(t, got.Equal(decimal.RequireFromString("0.005")), "got %s", got)
}

func TestFormatTokens(t *testing.T) {
	assert.Equal(t, "Unlimited", FormatTokens(Unlimited))
	assert.Equal(t, "1.0M", FormatTokens(1_000_000))
	assert.Equal(t, "250.0K", FormatTokens(250_000))
	assert.Equal(t, "15.0K", FormatTokens(15_000))
	assert.Equal(t, "999", FormatTokens(999))
}

func TestNextResetDate(t *testing.T) {
	now := time.Date(2026, time.January, 15, 10, 0, 0, 0, time.UTC)

	assert.Equal(t,
		time.Date(2027, time.January, 15, 10, 0, 0, 0, time.UTC),
		NextResetDate(BillingYearly, now))
	assert.Equal(t,
		time.Date(2026, time.February, 15, 10, 0, 0, 0, time.UTC),
		NextResetDate(BillingMonthly, now))
	assert.Equal(t,
		time.Date(2026, time.February, 15, 10, 0, 0, 0, time.UTC),
		NextResetDate("", now))
}
