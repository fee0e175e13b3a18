// AngelaMos | 2026
// pricing.go

// Package pricing holds the static subscription tier table and the token
// cost arithmetic built on it.
package pricing

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

type Tier string

const (
	TierPayAsYouGo Tier = "PAY_AS_YOU_GO"
	TierBasic      Tier = "BASIC"
	TierPro        Tier = "PRO"
	TierEnterprise Tier = "ENTERPRISE"
)

// Unlimited is the quota sentinel for tiers without a token ceiling.
const Unlimited = -1

const (
	BillingMonthly = "MONTHLY"
	BillingYearly  = "YEARLY"
)

var (
	ErrUnlimited   = errors.New("unlimited quota has no computable cost")
	ErrUnknownTier = errors.New("unknown subscription tier")
	ErrNegative    = errors.New("token count must not be negative")
)

type Plan struct {
	Tokens           int
	PricePerThousand decimal.Decimal
	Description      string
}

var table = map[Tier]Plan{
	TierPayAsYouGo: {
		Tokens:           15_000,
		PricePerThousand: decimal.RequireFromString("0.002"),
		Description:      "Pay as you go - 15K tokens",
	},
	TierBasic: {
		Tokens:           250_000,
		PricePerThousand: decimal.RequireFromString("0.0015"),
		Description:      "Basic plan - 250K tokens",
	},
	TierPro: {
		Tokens:           1_000_000,
		PricePerThousand: decimal.RequireFromString("0.001"),
		Description:      "Pro plan - 1M tokens",
	},
	TierEnterprise: {
		Tokens:           Unlimited,
		PricePerThousand: decimal.RequireFromString("0.0008"),
		Description:      "Enterprise plan - Unlimited tokens",
	},
}

var thousand = decimal.NewFromInt(1000)

func Lookup(tier Tier) (Plan, error) {
	plan, ok := table[tier]
	if !ok {
		return Plan{}, fmt.Errorf("lookup %q: %w", tier, ErrUnknownTier)
	}
	return plan, nil
}

func Quota(tier Tier) (int, error) {
	plan, err := Lookup(tier)
	if err != nil {
		return 0, err
	}
	return plan.Tokens, nil
}

func Description(tier Tier) string {
	plan, ok := table[tier]
	if !ok {
		return string(tier)
	}
	return plan.Description
}

// Cost prices tokenCount at the tier's per-1000 rate. The Unlimited
// sentinel is rejected before any arithmetic happens.
func Cost(tier Tier, tokenCount int) (decimal.Decimal, error) {
	if tokenCount == Unlimited {
		return decimal.Zero, ErrUnlimited
	}
	if tokenCount < 0 {
		return decimal.Zero, fmt.Errorf("cost %d: %w", tokenCount, ErrNegative)
	}

	plan, err := Lookup(tier)
	if err != nil {
		return decimal.Zero, err
	}

	return decimal.NewFromInt(int64(tokenCount)).
		Div(thousand).
		Mul(plan.PricePerThousand), nil
}

// ModelRates are the completion provider's per-1000 token prices.
type ModelRates struct {
	InputPer1K  decimal.Decimal
	OutputPer1K decimal.Decimal
}

func NewModelRates(inputPer1K, outputPer1K float64) ModelRates {
	return ModelRates{
		InputPer1K:  decimal.NewFromFloat(inputPer1K),
		OutputPer1K: decimal.NewFromFloat(outputPer1K),
	}
}

// ModelCost estimates what the provider charged for one analysis.
func ModelCost(inputTokens, outputTokens int, rates ModelRates) decimal.Decimal {
	in := decimal.NewFromInt(int64(inputTokens)).
		Div(thousand).
		Mul(rates.InputPer1K)
	out := decimal.NewFromInt(int64(outputTokens)).
		Div(thousand).
		Mul(rates.OutputPer1K)
	return in.Add(out)
}

func FormatTokens(tokens int) string {
	switch {
	case tokens == Unlimited:
		return "Unlimited"
	case tokens >= 1_000_000:
		return strconv.FormatFloat(float64(tokens)/1_000_000, 'f', 1, 64) + "M"
	case tokens >= 1_000:
		return strconv.FormatFloat(float64(tokens)/1_000, 'f', 1, 64) + "K"
	default:
		return strconv.Itoa(tokens)
	}
}

func NextResetDate(billingCycle string, now time.Time) time.Time {
	if billingCycle == BillingYearly {
		return now.AddDate(1, 0, 0)
	}
	return now.AddDate(0, 1, 0)
}
