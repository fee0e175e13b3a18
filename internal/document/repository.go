// AngelaMos | 2026
// repository.go

package document

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/carterperez-dev/templates/doc-analyzer/internal/core"
)

type Repository interface {
	Create(ctx context.Context, doc *Document) error
	GetOwned(ctx context.Context, userID, id string) (*Document, error)
	SoftDelete(ctx context.Context, userID, id string) error
	CountByUser(ctx context.Context, userID string) (int, error)
	ListByUser(
		ctx context.Context,
		userID string,
		since time.Time,
		search string,
	) ([]Document, error)
	InsertAnalyses(ctx context.Context, rows []RuleAnalysis) error
	ListAnalyses(ctx context.Context, documentIDs []string) ([]AnalysisRow, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, doc *Document) error {
	query := `
		INSERT INTO documents (id, user_id, file_name, file_path, file_content, type, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`

	err := r.db.GetContext(ctx, &doc.CreatedAt, query,
		doc.ID,
		doc.UserID,
		doc.FileName,
		doc.FilePath,
		doc.FileContent,
		doc.Type,
		doc.Status,
	)
	if err != nil {
		return fmt.Errorf("create document: %w", err)
	}

	return nil
}

func (r *repository) GetOwned(
	ctx context.Context,
	userID, id string,
) (*Document, error) {
	query := `
		SELECT id, user_id, file_name, file_path, file_content, type, status,
		       created_at, deleted_at
		FROM documents
		WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL`

	var doc Document
	err := r.db.GetContext(ctx, &doc, query, id, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get document: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}

	return &doc, nil
}

func (r *repository) SoftDelete(ctx context.Context, userID, id string) error {
	query := `
		UPDATE documents
		SET deleted_at = NOW()
		WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("delete document: %w", core.ErrNotFound)
	}

	return nil
}

// CountByUser counts every document the user ever stored, soft-deleted
// ones included.
func (r *repository) CountByUser(ctx context.Context, userID string) (int, error) {
	query := `SELECT COUNT(*) FROM documents WHERE user_id = $1`

	var count int
	if err := r.db.GetContext(ctx, &count, query, userID); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}

	return count, nil
}

func (r *repository) ListByUser(
	ctx context.Context,
	userID string,
	since time.Time,
	search string,
) ([]Document, error) {
	conditions := []string{
		"user_id = $1",
		"deleted_at IS NULL",
		"created_at >= $2",
	}
	args := []any{userID, since}

	if search != "" {
		conditions = append(conditions, "file_name ILIKE $3")
		args = append(args, "%"+escapeLike(search)+"%")
	}

	query := fmt.Sprintf(`
		SELECT id, user_id, file_name, file_path, type, status, created_at
		FROM documents
		WHERE %s
		ORDER BY created_at DESC`,
		strings.Join(conditions, " AND "))

	var docs []Document
	if err := r.db.SelectContext(ctx, &docs, query, args...); err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	return docs, nil
}

func (r *repository) InsertAnalyses(
	ctx context.Context,
	rows []RuleAnalysis,
) error {
	if len(rows) == 0 {
		return nil
	}

	query := `
		INSERT INTO rule_analyses (id, document_id, rule_id, result)
		VALUES (:id, :document_id, :rule_id, :result)`

	if _, err := sqlx.NamedExecContext(ctx, r.db, query, rows); err != nil {
		return fmt.Errorf("insert rule analyses: %w", err)
	}

	return nil
}

func (r *repository) ListAnalyses(
	ctx context.Context,
	documentIDs []string,
) ([]AnalysisRow, error) {
	if len(documentIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT a.document_id, a.rule_id, a.result, a.created_at,
		       r.title AS rule_title, r.description AS rule_description
		FROM rule_analyses a
		JOIN rules r ON r.id = a.rule_id
		WHERE a.document_id = ANY($1)
		ORDER BY a.created_at`

	var rows []AnalysisRow
	if err := r.db.SelectContext(ctx, &rows, query, documentIDs); err != nil {
		return nil, fmt.Errorf("list rule analyses: %w", err)
	}

	return rows, nil
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "%", "\\%")
	s = strings.ReplaceAll(s, "_", "\\_")
	return s
}
