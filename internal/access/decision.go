// AngelaMos | 2026
// decision.go

package access

import (
	"fmt"

	"github.com/carterperez-dev/templates/doc-analyzer/internal/core"
	"github.com/carterperez-dev/templates/doc-analyzer/internal/usage/pricing"
)

type State string

const (
	StateFreeTrialAvailable      State = "FREE_TRIAL_AVAILABLE"
	StateFreeTrialExhausted      State = "FREE_TRIAL_EXHAUSTED"
	StateSubscribedNoUsageRecord State = "SUBSCRIBED_NO_USAGE_RECORD"
	StateSubscribedUnlimited     State = "SUBSCRIBED_UNLIMITED"
	StateSubscribedHasTokens     State = "SUBSCRIBED_HAS_TOKENS"
	StateSubscribedExhausted     State = "SUBSCRIBED_EXHAUSTED"
)

const (
	msgFreeTrialAvailable = "You can perform one free analysis. " +
		"Subscribe to continue using the service after this analysis."
	msgFreeTrialExhausted = "Please subscribe to continue using the analysis feature. " +
		"Your free analysis has been used."
)

// FreeTrialUsed reports a free analysis lost to a concurrent request that
// stored its document first.
func FreeTrialUsed() *core.AppError {
	return core.AccessDeniedError(msgFreeTrialExhausted).WithDetails(map[string]any{
		"state":            StateFreeTrialExhausted,
		"tokens_remaining": 0,
	})
}

type SubscriptionSummary struct {
	ID          string       `json:"id"`
	Type        pricing.Tier `json:"type"`
	TotalTokens int          `json:"total_tokens"`
	Description string       `json:"description"`
}

// Decision is recomputed on every check; nothing about it is persisted.
type Decision struct {
	CanAnalyze          bool                 `json:"can_analyze"`
	Message             string               `json:"message"`
	TokensRemaining     int                  `json:"tokens_remaining"`
	IsFirstTimeAnalysis bool                 `json:"is_first_time_analysis"`
	State               State                `json:"state"`
	Subscription        *SubscriptionSummary `json:"subscription"`
}

func (d *Decision) IsUnlimited() bool {
	return d.TokensRemaining == pricing.Unlimited
}

// SubscriptionID is nil for free-trial decisions, which are not metered.
func (d *Decision) SubscriptionID() *string {
	if d.Subscription == nil {
		return nil
	}
	id := d.Subscription.ID
	return &id
}

// Covers reports whether the remaining balance can absorb an estimated
// token spend. Free trials and unlimited quotas always cover.
func (d *Decision) Covers(estimate int) bool {
	if !d.CanAnalyze {
		return false
	}
	if d.IsUnlimited() || d.State == StateFreeTrialAvailable {
		return true
	}
	return estimate <= d.TokensRemaining
}

func (d *Decision) InsufficientMessage(estimate int) string {
	return fmt.Sprintf(
		"Insufficient tokens. Analysis requires approximately %d tokens, "+
			"but you only have %d tokens remaining.",
		estimate, d.TokensRemaining,
	)
}

// RemainingAfter is the balance left once used tokens are charged.
func (d *Decision) RemainingAfter(used int) int {
	if d.IsUnlimited() {
		return pricing.Unlimited
	}
	return max(d.TokensRemaining-used, 0)
}

// EstimateTokens approximates an analysis cost before any call is made:
// four characters per input token plus one hundred output tokens per rule.
func EstimateTokens(textLen, numRules int) int {
	return (textLen+3)/4 + 100*numRules
}
