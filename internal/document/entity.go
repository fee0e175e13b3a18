// AngelaMos | 2026
// entity.go

package document

import (
	"encoding/base64"
	"fmt"
	"time"
)

const StatusStored = 1

// Document is immutable once stored apart from soft deletion. FileContent
// holds the original upload, base64 encoded.
type Document struct {
	ID          string     `db:"id"`
	UserID      string     `db:"user_id"`
	FileName    string     `db:"file_name"`
	FilePath    string     `db:"file_path"`
	FileContent string     `db:"file_content"`
	Type        string     `db:"type"`
	Status      int        `db:"status"`
	CreatedAt   time.Time  `db:"created_at"`
	DeletedAt   *time.Time `db:"deleted_at"`
}

func New(id, userID, fileName, fileType string, content []byte) *Document {
	return &Document{
		ID:          id,
		UserID:      userID,
		FileName:    fileName,
		FilePath:    fmt.Sprintf("documents/%s/%s", userID, fileName),
		FileContent: base64.StdEncoding.EncodeToString(content),
		Type:        fileType,
		Status:      StatusStored,
	}
}

func (d *Document) Content() ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(d.FileContent)
	if err != nil {
		return nil, fmt.Errorf("decode document %s: %w", d.ID, err)
	}
	return raw, nil
}

// RuleAnalysis is an append-only verdict row. The verdict itself is never
// stored; it is derived from Result on read.
type RuleAnalysis struct {
	ID         string    `db:"id"`
	DocumentID string    `db:"document_id"`
	RuleID     string    `db:"rule_id"`
	Result     string    `db:"result"`
	CreatedAt  time.Time `db:"created_at"`
}

type AnalysisRow struct {
	DocumentID      string    `db:"document_id"`
	RuleID          string    `db:"rule_id"`
	RuleTitle       string    `db:"rule_title"`
	RuleDescription string    `db:"rule_description"`
	Result          string    `db:"result"`
	CreatedAt       time.Time `db:"created_at"`
}
