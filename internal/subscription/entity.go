// AngelaMos | 2026
// entity.go

package subscription

import (
	"time"

	"github.com/carterperez-dev/templates/doc-analyzer/internal/usage/pricing"
)

type Subscription struct {
	ID           string       `db:"id"`
	UserID       string       `db:"user_id"`
	Type         pricing.Tier `db:"type"`
	IsActive     bool         `db:"is_active"`
	EndDate      time.Time    `db:"end_date"`
	BillingCycle string       `db:"billing_cycle"`
	CreatedAt    time.Time    `db:"created_at"`
}

func (s *Subscription) IsCurrent(now time.Time) bool {
	return s.IsActive && !s.EndDate.Before(now)
}
