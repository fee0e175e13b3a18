// AngelaMos | 2026
// store.go

package pipeline

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/carterperez-dev/templates/doc-analyzer/internal/access"
	"github.com/carterperez-dev/templates/doc-analyzer/internal/core"
	"github.com/carterperez-dev/templates/doc-analyzer/internal/document"
	"github.com/carterperez-dev/templates/doc-analyzer/internal/rule"
)

// Save is the outcome of one document analysis.
type Save struct {
	// Document is inserted first. Re-analyses leave it nil.
	Document *document.Document
	Rows     []document.RuleAnalysis
	RuleIDs  []string
	// FreeTrial marks an analysis admitted as the user's one free document.
	FreeTrial bool
}

// Store persists the outcome of one document analysis atomically.
type Store interface {
	// SaveAnalysis writes rows and bumps the usage counter of every rule.
	SaveAnalysis(ctx context.Context, save Save) error
}

type TxStore struct {
	db *sqlx.DB
}

func NewTxStore(db *sqlx.DB) *TxStore {
	return &TxStore{db: db}
}

// SaveAnalysis serializes document inserts per user. A free trial
// analysis is refused when another request stored a document first.
func (s *TxStore) SaveAnalysis(ctx context.Context, save Save) error {
	err := core.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		docs := document.NewRepository(tx)

		if doc := save.Document; doc != nil {
			if err := core.LockKey(ctx, tx, "documents:"+doc.UserID); err != nil {
				return err
			}

			if save.FreeTrial {
				count, err := docs.CountByUser(ctx, doc.UserID)
				if err != nil {
					return err
				}
				if count > 0 {
					return access.FreeTrialUsed()
				}
			}

			if err := docs.Create(ctx, doc); err != nil {
				return err
			}
		}

		if err := docs.InsertAnalyses(ctx, save.Rows); err != nil {
			return err
		}

		return rule.NewRepository(tx).IncrementUsage(ctx, save.RuleIDs)
	})
	if err != nil {
		return fmt.Errorf("save analysis: %w", err)
	}

	return nil
}
