// AngelaMos | 2026
// entity.go

package usage

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/carterperez-dev/templates/doc-analyzer/internal/usage/pricing"
)

// TokenUsage is the live quota ledger for one subscription. At most one
// row per subscription has a nil DeletedAt.
type TokenUsage struct {
	ID             string     `db:"id"`
	UserID         string     `db:"user_id"`
	SubscriptionID string     `db:"subscription_id"`
	TotalTokens    int        `db:"total_tokens"`
	TokensUsed     int        `db:"tokens_used"`
	ResetDate      time.Time  `db:"reset_date"`
	CreatedAt      time.Time  `db:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at"`
	DeletedAt      *time.Time `db:"deleted_at"`
}

func (u *TokenUsage) IsUnlimited() bool {
	return u.TotalTokens == pricing.Unlimited
}

// Remaining returns the unspent balance, never below zero. Unlimited
// quotas report pricing.Unlimited.
func (u *TokenUsage) Remaining() int {
	if u.IsUnlimited() {
		return pricing.Unlimited
	}
	return max(u.TotalTokens-u.TokensUsed, 0)
}

type APIUsage struct {
	ID            string          `db:"id"`
	UserID        string          `db:"user_id"`
	InputTokens   int             `db:"input_tokens"`
	OutputTokens  int             `db:"output_tokens"`
	TotalTokens   int             `db:"total_tokens"`
	EstimatedCost decimal.Decimal `db:"estimated_cost"`
	CreatedAt     time.Time       `db:"created_at"`
}

type Totals struct {
	InputTokens   int64           `db:"input_tokens"`
	OutputTokens  int64           `db:"output_tokens"`
	TotalTokens   int64           `db:"total_tokens"`
	EstimatedCost decimal.Decimal `db:"estimated_cost"`
	Requests      int64           `db:"requests"`
}

type DayTotals struct {
	Day          time.Time `db:"day"`
	InputTokens  int64     `db:"input_tokens"`
	OutputTokens int64     `db:"output_tokens"`
}

type UserUsage struct {
	UserID     string `db:"user_id"`
	Email      string `db:"email"`
	PlanType   string `db:"plan_type"`
	APICalls   int64  `db:"api_calls"`
	TokensUsed int64  `db:"tokens_used"`
}
