// AngelaMos | 2026
// repository.go

package subscription

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/carterperez-dev/templates/doc-analyzer/internal/core"
)

// Repository is read-only; subscriptions are written by the billing service.
type Repository interface {
	GetActiveByUserID(ctx context.Context, userID string) (*Subscription, error)
	GetByID(ctx context.Context, id string) (*Subscription, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) GetActiveByUserID(
	ctx context.Context,
	userID string,
) (*Subscription, error) {
	query := `
		SELECT id, user_id, type, is_active, end_date, billing_cycle, created_at
		FROM subscriptions
		WHERE user_id = $1 AND is_active = TRUE AND end_date >= NOW()
		ORDER BY created_at DESC
		LIMIT 1`

	var sub Subscription
	err := r.db.GetContext(ctx, &sub, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get active subscription: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get active subscription: %w", err)
	}

	return &sub, nil
}

func (r *repository) GetByID(
	ctx context.Context,
	id string,
) (*Subscription, error) {
	query := `
		SELECT id, user_id, type, is_active, end_date, billing_cycle, created_at
		FROM subscriptions
		WHERE id = $1`

	var sub Subscription
	err := r.db.GetContext(ctx, &sub, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get subscription: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get subscription: %w", err)
	}

	return &sub, nil
}
