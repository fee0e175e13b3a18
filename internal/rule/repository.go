// AngelaMos | 2026
// repository.go

package rule

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/carterperez-dev/templates/doc-analyzer/internal/core"
)

type Repository interface {
	GetByIDs(ctx context.Context, ids []string) ([]Rule, error)
	GetWithCreator(ctx context.Context, id string) (*WithCreator, error)
	Create(ctx context.Context, rule *Rule) error
	UpdateDescription(
		ctx context.Context,
		id, description, updatedByID string,
	) (*Rule, error)
	IncrementUsage(ctx context.Context, ids []string) error
	ListByCreator(ctx context.Context, userID, search string) ([]Rule, error)
	ListPredefined(ctx context.Context, search string) ([]Rule, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

const ruleColumns = `r.id, r.title, r.description, r.created_by_id, r.updated_by_id,
		       r.is_draft, r.status, r.usage_count, r.published_date,
		       r.last_modified, r.deleted_at`

func (r *repository) GetByIDs(
	ctx context.Context,
	ids []string,
) ([]Rule, error) {
	query := `
		SELECT ` + ruleColumns + `
		FROM rules r
		WHERE r.id = ANY($1) AND r.deleted_at IS NULL`

	var rules []Rule
	if err := r.db.SelectContext(ctx, &rules, query, ids); err != nil {
		return nil, fmt.Errorf("get rules: %w", err)
	}

	return rules, nil
}

func (r *repository) GetWithCreator(
	ctx context.Context,
	id string,
) (*WithCreator, error) {
	query := `
		SELECT ` + ruleColumns + `,
		       COALESCE(u.role, '') AS creator_role
		FROM rules r
		LEFT JOIN users u ON u.id = r.created_by_id AND u.deleted_at IS NULL
		WHERE r.id = $1 AND r.deleted_at IS NULL`

	var rule WithCreator
	err := r.db.GetContext(ctx, &rule, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get rule: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get rule: %w", err)
	}

	return &rule, nil
}

func (r *repository) Create(ctx context.Context, rule *Rule) error {
	query := `
		INSERT INTO rules (id, title, description, created_by_id, updated_by_id,
		                   is_draft, status, usage_count, published_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 0, $8)
		RETURNING last_modified`

	err := r.db.GetContext(ctx, &rule.LastModified, query,
		rule.ID,
		rule.Title,
		rule.Description,
		rule.CreatedByID,
		rule.UpdatedByID,
		rule.IsDraft,
		rule.Status,
		rule.PublishedDate,
	)
	if err != nil {
		if core.IsDuplicateKeyError(err) {
			return fmt.Errorf("create rule: %w", core.ErrDuplicateKey)
		}
		return fmt.Errorf("create rule: %w", err)
	}

	return nil
}

func (r *repository) UpdateDescription(
	ctx context.Context,
	id, description, updatedByID string,
) (*Rule, error) {
	query := `
		UPDATE rules r
		SET description = $2, updated_by_id = $3, last_modified = NOW()
		WHERE r.id = $1 AND r.deleted_at IS NULL
		RETURNING ` + ruleColumns

	var rule Rule
	err := r.db.GetContext(ctx, &rule, query, id, description, updatedByID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("update rule: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("update rule: %w", err)
	}

	return &rule, nil
}

func (r *repository) IncrementUsage(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	query := `
		UPDATE rules
		SET usage_count = usage_count + 1
		WHERE id = ANY($1)`

	if _, err := r.db.ExecContext(ctx, query, ids); err != nil {
		return fmt.Errorf("increment rule usage: %w", err)
	}

	return nil
}

func (r *repository) ListByCreator(
	ctx context.Context,
	userID, search string,
) ([]Rule, error) {
	conditions := []string{
		"r.created_by_id = $1",
		fmt.Sprintf("r.status = %d", StatusActive),
		"r.deleted_at IS NULL",
	}
	args := []any{userID}

	if search != "" {
		conditions = append(conditions,
			"(r.title ILIKE $2 OR r.description ILIKE $2)")
		args = append(args, "%"+escapeLike(search)+"%")
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM rules r
		WHERE %s
		ORDER BY r.last_modified DESC`,
		ruleColumns, strings.Join(conditions, " AND "))

	var rules []Rule
	if err := r.db.SelectContext(ctx, &rules, query, args...); err != nil {
		return nil, fmt.Errorf("list user rules: %w", err)
	}

	return rules, nil
}

func (r *repository) ListPredefined(
	ctx context.Context,
	search string,
) ([]Rule, error) {
	conditions := []string{
		"u.role = 'admin'",
		fmt.Sprintf("r.status = %d", StatusActive),
		"r.deleted_at IS NULL",
	}
	var args []any

	if search != "" {
		conditions = append(conditions,
			"(r.title ILIKE $1 OR r.description ILIKE $1)")
		args = append(args, "%"+escapeLike(search)+"%")
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM rules r
		JOIN users u ON u.id = r.created_by_id
		WHERE %s
		ORDER BY r.last_modified DESC`,
		ruleColumns, strings.Join(conditions, " AND "))

	var rules []Rule
	if err := r.db.SelectContext(ctx, &rules, query, args...); err != nil {
		return nil, fmt.Errorf("list predefined rules: %w", err)
	}

	return rules, nil
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "%", "\\%")
	s = strings.ReplaceAll(s, "_", "\\_")
	return s
}
