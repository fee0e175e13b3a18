// AngelaMos | 2026
// entity.go

package rule

import (
	"time"
)

const (
	StatusActive = 1

	CustomRuleTitle = "Custom Rule"
)

type Rule struct {
	ID            string     `db:"id"`
	Title         string     `db:"title"`
	Description   string     `db:"description"`
	CreatedByID   *string    `db:"created_by_id"`
	UpdatedByID   *string    `db:"updated_by_id"`
	IsDraft       bool       `db:"is_draft"`
	Status        int        `db:"status"`
	UsageCount    int        `db:"usage_count"`
	PublishedDate *time.Time `db:"published_date"`
	LastModified  time.Time  `db:"last_modified"`
	DeletedAt     *time.Time `db:"deleted_at"`
}

func (r *Rule) CreatedBy(userID string) bool {
	return r.CreatedByID != nil && *r.CreatedByID == userID
}

// WithCreator pairs a rule with its creator's role, empty when the creator
// is unknown or deleted.
type WithCreator struct {
	Rule
	CreatorRole string `db:"creator_role"`
}
