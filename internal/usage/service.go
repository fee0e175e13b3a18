// AngelaMos | 2026
// service.go

package usage

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/carterperez-dev/templates/doc-analyzer/internal/core"
	"github.com/carterperez-dev/templates/doc-analyzer/internal/usage/pricing"
)

type Period string

const (
	PeriodDay   Period = "day"
	PeriodMonth Period = "month"
)

func ParsePeriod(s string) (Period, error) {
	switch Period(s) {
	case "", PeriodMonth:
		return PeriodMonth, nil
	case PeriodDay:
		return PeriodDay, nil
	default:
		return "", fmt.Errorf("parse period %q: %w", s, core.ErrInvalidInput)
	}
}

// Accountant meters consumed tokens against subscription quotas and keeps
// the append-only API usage ledger.
type Accountant struct {
	repo   Repository
	rates  pricing.ModelRates
	logger *slog.Logger
	now    func() time.Time
}

func NewAccountant(
	repo Repository,
	rates pricing.ModelRates,
	logger *slog.Logger,
) *Accountant {
	return &Accountant{
		repo:   repo,
		rates:  rates,
		logger: logger,
		now:    time.Now,
	}
}

// RecordUsage adds tokens to the live quota of subscriptionID. Free-trial
// analyses carry no subscription and are not metered.
func (a *Accountant) RecordUsage(
	ctx context.Context,
	userID string,
	subscriptionID *string,
	tokens int,
) error {
	if subscriptionID == nil || *subscriptionID == "" {
		return nil
	}
	if tokens < 0 {
		return fmt.Errorf("record usage: negative tokens: %w", core.ErrInvalidInput)
	}
	if tokens == 0 {
		return nil
	}

	if err := a.repo.IncrementUsed(ctx, userID, *subscriptionID, tokens); err != nil {
		return fmt.Errorf("record usage: %w", err)
	}

	a.logger.Debug("token usage recorded",
		"user_id", userID,
		"subscription_id", *subscriptionID,
		"tokens", tokens,
	)

	return nil
}

func (a *Accountant) EstimateCost(inputTokens, outputTokens int) decimal.Decimal {
	return pricing.ModelCost(inputTokens, outputTokens, a.rates)
}

func (a *Accountant) RecordAPIUsage(
	ctx context.Context,
	userID string,
	inputTokens, outputTokens int,
	cost decimal.Decimal,
) (*APIUsage, error) {
	entry := &APIUsage{
		ID:            uuid.New().String(),
		UserID:        userID,
		InputTokens:   inputTokens,
		OutputTokens:  outputTokens,
		TotalTokens:   inputTokens + outputTokens,
		EstimatedCost: cost,
	}

	if err := a.repo.InsertAPIUsage(ctx, entry); err != nil {
		return nil, fmt.Errorf("record api usage: %w", err)
	}

	return entry, nil
}

// CloseOut exhausts and retires the live quota of a cancelled subscription.
func (a *Accountant) CloseOut(ctx context.Context, subscriptionID string) error {
	if err := a.repo.CloseOut(ctx, subscriptionID); err != nil {
		return err
	}

	a.logger.Info("token usage closed out", "subscription_id", subscriptionID)
	return nil
}

func (a *Accountant) Overview(
	ctx context.Context,
	userID string,
	period Period,
) (*Overview, error) {
	now := a.now().UTC()
	since := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	if period == PeriodDay {
		since = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	}

	totals, err := a.repo.Totals(ctx, userID, since)
	if err != nil {
		return nil, err
	}

	out := &Overview{
		Period:          period,
		EstimatedCost:   totals.EstimatedCost,
		TotalTokensUsed: totals.TotalTokens,
		InputTokens:     totals.InputTokens,
		OutputTokens:    totals.OutputTokens,
		Requests:        totals.Requests,
	}

	live, err := a.repo.GetLatestByUserID(ctx, userID)
	if err != nil {
		if core.IsNotFound(err) {
			return out, nil
		}
		return nil, err
	}

	out.TotalTokens = live.TotalTokens
	out.TokensRemaining = live.Remaining()

	switch {
	case live.IsUnlimited():
		out.RemainingPercentage = 100
	case live.TotalTokens > 0:
		out.RemainingPercentage = int(math.Round(
			float64(out.TokensRemaining) / float64(live.TotalTokens) * 100,
		))
	}

	return out, nil
}

// DailyUsage returns one entry per calendar day of the month, zero-filled
// where no calls were made.
func (a *Accountant) DailyUsage(
	ctx context.Context,
	userID string,
	year, month int,
) (*DailyReport, error) {
	if month < 1 || month > 12 || year < 1 {
		return nil, fmt.Errorf(
			"daily usage: invalid month %d-%d: %w",
			year, month, core.ErrInvalidInput,
		)
	}

	from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)
	daysInMonth := to.AddDate(0, 0, -1).Day()

	rows, err := a.repo.Daily(ctx, userID, from, to)
	if err != nil {
		return nil, err
	}

	days := make([]DayUsage, daysInMonth)
	for i := range days {
		days[i].Day = i + 1
	}

	var totalIn, totalOut int64
	for _, row := range rows {
		d := row.Day.UTC().Day()
		if d < 1 || d > daysInMonth {
			continue
		}
		days[d-1].InputTokens += row.InputTokens
		days[d-1].OutputTokens += row.OutputTokens
		totalIn += row.InputTokens
		totalOut += row.OutputTokens
	}

	return &DailyReport{
		Year:  year,
		Month: month,
		Days:  days,
		AverageInput: int64(math.Round(
			float64(totalIn) / float64(daysInMonth),
		)),
		AverageOutput: int64(math.Round(
			float64(totalOut) / float64(daysInMonth),
		)),
	}, nil
}

// UserUsages is the admin view of per-user API consumption for a month.
func (a *Accountant) UserUsages(
	ctx context.Context,
	params ReportParams,
) ([]UserUsage, int, error) {
	params.Normalize(a.now())

	from := time.Date(
		params.Year, time.Month(params.Month), 1, 0, 0, 0, 0, time.UTC,
	)
	to := from.AddDate(0, 1, 0)

	rows, total, err := a.repo.ListUserUsage(
		ctx, from, to, params.PageSize, params.Offset(),
	)
	if err != nil {
		return nil, 0, err
	}

	for i := range rows {
		if rows[i].PlanType == "" {
			rows[i].PlanType = string(pricing.TierPayAsYouGo)
		}
	}

	return rows, total, nil
}
