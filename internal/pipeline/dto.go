// AngelaMos | 2026
// dto.go

package pipeline

import (
	"time"

	"github.com/carterperez-dev/templates/doc-analyzer/internal/access"
	"github.com/carterperez-dev/templates/doc-analyzer/internal/analysis"
	"github.com/carterperez-dev/templates/doc-analyzer/internal/core"
	"github.com/carterperez-dev/templates/doc-analyzer/internal/rule"
)

// Upload is one file received for analysis.
type Upload struct {
	Name        string
	ContentType string
	Data        []byte
}

type RuleEdit struct {
	ID          string `json:"id"          validate:"required,uuid"`
	Description string `json:"description" validate:"required,min=1,max=5000"`
}

type EditRulesRequest struct {
	Rules []RuleEdit `json:"rules" validate:"required,min=1,dive"`
}

type CreateRuleRequest struct {
	Title       string `json:"title"       validate:"required,min=1,max=255"`
	Description string `json:"description" validate:"required,min=1,max=5000"`
}

type DocumentResult struct {
	DocumentID string                `json:"documentId"`
	FileName   string                `json:"fileName"`
	Analyses   []analysis.RuleResult `json:"analyses"`
	TokensUsed int                   `json:"tokensUsed"`
}

type TokenUsage struct {
	TotalUsed    int                         `json:"totalUsed"`
	Remaining    int                         `json:"remaining"`
	Subscription *access.SubscriptionSummary `json:"subscription"`
}

// Editor is the caller changing rules. Admin comes from the verified token.
type Editor struct {
	UserID string
	Admin  bool
}

// DocumentFailure is the document that stopped a batch after earlier
// documents were already stored and charged.
type DocumentFailure struct {
	FileName string         `json:"fileName"`
	Code     string         `json:"code"`
	Message  string         `json:"message"`
	Details  map[string]any `json:"details,omitempty"`
}

type BatchResult struct {
	Results    []DocumentResult `json:"results"`
	TokenUsage TokenUsage       `json:"tokenUsage"`
	Failed     *DocumentFailure `json:"failed,omitempty"`
	// Skipped names uploads never attempted because the batch stopped.
	Skipped []string `json:"skipped,omitempty"`
}

func (b *BatchResult) stop(fileName string, err error, rest []Upload) {
	appErr := core.FromError(err)
	b.Failed = &DocumentFailure{
		FileName: fileName,
		Code:     appErr.Code,
		Message:  appErr.Message,
		Details:  appErr.Details,
	}
	for _, u := range rest {
		b.Skipped = append(b.Skipped, u.Name)
	}
}

type Reanalysis struct {
	DocumentResult
	TokensRemaining int `json:"tokensRemaining"`
}

type HistoryDocument struct {
	ID         string    `json:"id"`
	FileName   string    `json:"fileName"`
	Type       string    `json:"type"`
	AnalyzedAt time.Time `json:"analyzedAt"`
}

type HistoryAnalysis struct {
	RuleID          string `json:"ruleId"`
	RuleTitle       string `json:"ruleTitle"`
	RuleDescription string `json:"ruleDescription"`
	Result          string `json:"result"`
	Matched         bool   `json:"matched"`
}

type HistoryEntry struct {
	Document HistoryDocument   `json:"document"`
	Analyses []HistoryAnalysis `json:"analyses"`
}

type History struct {
	Today     []HistoryEntry `json:"todayData"`
	Yesterday []HistoryEntry `json:"yesterday"`
	Last7Days []HistoryEntry `json:"last7days"`
}

type Download struct {
	FileName    string
	ContentType string
	Content     []byte
}

type RuleResponse struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	UsageCount    int        `json:"usage_count"`
	PublishedDate *time.Time `json:"published_date,omitempty"`
	LastModified  time.Time  `json:"last_modified"`
}

type PredefinedRuleResponse struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

type RuleCatalog struct {
	UserRules  []RuleResponse           `json:"userRules"`
	AdminRules []PredefinedRuleResponse `json:"adminRules"`
}

func ToRuleResponse(r *rule.Rule) RuleResponse {
	return RuleResponse{
		ID:            r.ID,
		Title:         r.Title,
		Description:   r.Description,
		UsageCount:    r.UsageCount,
		PublishedDate: r.PublishedDate,
		LastModified:  r.LastModified,
	}
}

func toRuleCatalog(own, predefined []rule.Rule) RuleCatalog {
	catalog := RuleCatalog{
		UserRules:  make([]RuleResponse, 0, len(own)),
		AdminRules: make([]PredefinedRuleResponse, 0, len(predefined)),
	}
	for i := range own {
		catalog.UserRules = append(catalog.UserRules, ToRuleResponse(&own[i]))
	}
	for _, r := range predefined {
		catalog.AdminRules = append(catalog.AdminRules, PredefinedRuleResponse{
			ID:          r.ID,
			Title:       r.Title,
			Description: r.Description,
		})
	}
	return catalog
}
