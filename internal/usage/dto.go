// AngelaMos | 2026
// dto.go

package usage

import (
	"time"

	"github.com/shopspring/decimal"
)

type Overview struct {
	Period              Period          `json:"period"`
	EstimatedCost       decimal.Decimal `json:"estimated_cost"`
	TotalTokens         int             `json:"total_token"`
	TokensRemaining     int             `json:"tokens_remaining"`
	RemainingPercentage int             `json:"tokens_remaining_percentage"`
	TotalTokensUsed     int64           `json:"total_tokens_used"`
	InputTokens         int64           `json:"input_token_usage"`
	OutputTokens        int64           `json:"output_token_usage"`
	Requests            int64           `json:"requests"`
}

type DayUsage struct {
	Day          int   `json:"day"`
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

type DailyReport struct {
	Year          int        `json:"year"`
	Month         int        `json:"month"`
	Days          []DayUsage `json:"daily_usage"`
	AverageInput  int64      `json:"average_input"`
	AverageOutput int64      `json:"average_output"`
}

type ReportParams struct {
	Page     int
	PageSize int
	Year     int
	Month    int
}

func (p *ReportParams) Normalize(now time.Time) {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = 10
	}
	if p.PageSize > 100 {
		p.PageSize = 100
	}
	if p.Year < 1 {
		p.Year = now.Year()
	}
	if p.Month < 1 || p.Month > 12 {
		p.Month = int(now.Month())
	}
}

func (p *ReportParams) Offset() int {
	return (p.Page - 1) * p.PageSize
}

type UserUsageResponse struct {
	Serial     int    `json:"sl"`
	UserID     string `json:"user_id"`
	Email      string `json:"email"`
	APICalls   int64  `json:"total_api_calls"`
	TokensUsed int64  `json:"token_used"`
	PlanType   string `json:"plan_type"`
}

func ToUserUsageResponses(rows []UserUsage, offset int) []UserUsageResponse {
	out := make([]UserUsageResponse, 0, len(rows))
	for i, row := range rows {
		out = append(out, UserUsageResponse{
			Serial:     offset + i + 1,
			UserID:     row.UserID,
			Email:      row.Email,
			APICalls:   row.APICalls,
			TokensUsed: row.TokensUsed,
			PlanType:   row.PlanType,
		})
	}
	return out
}
