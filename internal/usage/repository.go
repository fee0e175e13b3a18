// AngelaMos | 2026
// repository.go

package usage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/carterperez-dev/templates/doc-analyzer/internal/core"
)

type Repository interface {
	GetActive(ctx context.Context, subscriptionID string) (*TokenUsage, error)
	GetLatestByUserID(ctx context.Context, userID string) (*TokenUsage, error)
	CreateIfAbsent(ctx context.Context, u *TokenUsage) (bool, error)
	IncrementUsed(
		ctx context.Context,
		userID, subscriptionID string,
		tokens int,
	) error
	CloseOut(ctx context.Context, subscriptionID string) error
	InsertAPIUsage(ctx context.Context, u *APIUsage) error
	Totals(ctx context.Context, userID string, since time.Time) (*Totals, error)
	Daily(
		ctx context.Context,
		userID string,
		from, to time.Time,
	) ([]DayTotals, error)
	ListUserUsage(
		ctx context.Context,
		from, to time.Time,
		limit, offset int,
	) ([]UserUsage, int, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

const tokenUsageColumns = `id, user_id, subscription_id, total_tokens, tokens_used,
		       reset_date, created_at, updated_at, deleted_at`

func (r *repository) GetActive(
	ctx context.Context,
	subscriptionID string,
) (*TokenUsage, error) {
	query := `
		SELECT ` + tokenUsageColumns + `
		FROM token_usages
		WHERE subscription_id = $1 AND deleted_at IS NULL`

	var u TokenUsage
	err := r.db.GetContext(ctx, &u, query, subscriptionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get token usage: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get token usage: %w", err)
	}

	return &u, nil
}

func (r *repository) GetLatestByUserID(
	ctx context.Context,
	userID string,
) (*TokenUsage, error) {
	query := `
		SELECT ` + tokenUsageColumns + `
		FROM token_usages
		WHERE user_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC
		LIMIT 1`

	var u TokenUsage
	err := r.db.GetContext(ctx, &u, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get latest token usage: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get latest token usage: %w", err)
	}

	return &u, nil
}

// CreateIfAbsent inserts u unless a live record already exists for its
// subscription. It reports whether this call created the row.
func (r *repository) CreateIfAbsent(
	ctx context.Context,
	u *TokenUsage,
) (bool, error) {
	query := `
		INSERT INTO token_usages
			(id, user_id, subscription_id, total_tokens, tokens_used, reset_date)
		VALUES ($1, $2, $3, $4, 0, $5)
		ON CONFLICT (subscription_id) WHERE deleted_at IS NULL DO NOTHING`

	result, err := r.db.ExecContext(ctx, query,
		u.ID,
		u.UserID,
		u.SubscriptionID,
		u.TotalTokens,
		u.ResetDate,
	)
	if err != nil {
		return false, fmt.Errorf("create token usage: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("create token usage: %w", err)
	}

	return rows == 1, nil
}

func (r *repository) IncrementUsed(
	ctx context.Context,
	userID, subscriptionID string,
	tokens int,
) error {
	query := `
		UPDATE token_usages
		SET tokens_used = tokens_used + $3, updated_at = NOW()
		WHERE user_id = $1 AND subscription_id = $2 AND deleted_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, userID, subscriptionID, tokens)
	if err != nil {
		return fmt.Errorf("increment tokens used: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("increment tokens used: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("increment tokens used: %w", core.ErrNotFound)
	}

	return nil
}

func (r *repository) CloseOut(ctx context.Context, subscriptionID string) error {
	query := `
		UPDATE token_usages
		SET tokens_used = total_tokens, deleted_at = NOW(), updated_at = NOW()
		WHERE subscription_id = $1 AND deleted_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, subscriptionID)
	if err != nil {
		return fmt.Errorf("close out token usage: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("close out token usage: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("close out token usage: %w", core.ErrNotFound)
	}

	return nil
}

func (r *repository) InsertAPIUsage(ctx context.Context, u *APIUsage) error {
	query := `
		INSERT INTO api_usages
			(id, user_id, input_tokens, output_tokens, total_tokens, estimated_cost)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`

	err := r.db.GetContext(ctx, &u.CreatedAt, query,
		u.ID,
		u.UserID,
		u.InputTokens,
		u.OutputTokens,
		u.TotalTokens,
		u.EstimatedCost,
	)
	if err != nil {
		return fmt.Errorf("insert api usage: %w", err)
	}

	return nil
}

func (r *repository) Totals(
	ctx context.Context,
	userID string,
	since time.Time,
) (*Totals, error) {
	query := `
		SELECT COALESCE(SUM(input_tokens), 0)   AS input_tokens,
		       COALESCE(SUM(output_tokens), 0)  AS output_tokens,
		       COALESCE(SUM(total_tokens), 0)   AS total_tokens,
		       COALESCE(SUM(estimated_cost), 0) AS estimated_cost,
		       COUNT(*)                         AS requests
		FROM api_usages
		WHERE user_id = $1 AND created_at >= $2`

	var t Totals
	if err := r.db.GetContext(ctx, &t, query, userID, since); err != nil {
		return nil, fmt.Errorf("sum api usage: %w", err)
	}

	return &t, nil
}

func (r *repository) Daily(
	ctx context.Context,
	userID string,
	from, to time.Time,
) ([]DayTotals, error) {
	query := `
		SELECT date_trunc('day', created_at) AS day,
		       COALESCE(SUM(input_tokens), 0)  AS input_tokens,
		       COALESCE(SUM(output_tokens), 0) AS output_tokens
		FROM api_usages
		WHERE user_id = $1 AND created_at >= $2 AND created_at < $3
		GROUP BY day
		ORDER BY day`

	var days []DayTotals
	if err := r.db.SelectContext(ctx, &days, query, userID, from, to); err != nil {
		return nil, fmt.Errorf("daily api usage: %w", err)
	}

	return days, nil
}

func (r *repository) ListUserUsage(
	ctx context.Context,
	from, to time.Time,
	limit, offset int,
) ([]UserUsage, int, error) {
	var total int
	countQuery := `SELECT COUNT(*) FROM users WHERE deleted_at IS NULL`
	if err := r.db.GetContext(ctx, &total, countQuery); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	query := `
		SELECT u.id AS user_id,
		       u.email,
		       COALESCE((
		           SELECT s.type FROM subscriptions s
		           WHERE s.user_id = u.id AND s.is_active = TRUE
		             AND s.end_date >= NOW()
		           ORDER BY s.created_at DESC
		           LIMIT 1
		       ), '') AS plan_type,
		       COUNT(a.id) AS api_calls,
		       COALESCE(SUM(a.total_tokens), 0) AS tokens_used
		FROM users u
		LEFT JOIN api_usages a
		       ON a.user_id = u.id AND a.created_at >= $1 AND a.created_at < $2
		WHERE u.deleted_at IS NULL
		GROUP BY u.id
		ORDER BY u.created_at DESC
		LIMIT $3 OFFSET $4`

	var rows []UserUsage
	if err := r.db.SelectContext(ctx, &rows, query, from, to, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("list user usage: %w", err)
	}

	return rows, total, nil
}
