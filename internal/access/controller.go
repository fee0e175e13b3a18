// AngelaMos | 2026
// controller.go

// Package access decides whether a user may run an analysis right now.
package access

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/carterperez-dev/templates/doc-analyzer/internal/core"
	"github.com/carterperez-dev/templates/doc-analyzer/internal/subscription"
	"github.com/carterperez-dev/templates/doc-analyzer/internal/usage"
	"github.com/carterperez-dev/templates/doc-analyzer/internal/usage/pricing"
)

type SubscriptionStore interface {
	GetActiveByUserID(
		ctx context.Context,
		userID string,
	) (*subscription.Subscription, error)
}

type UsageStore interface {
	GetActive(ctx context.Context, subscriptionID string) (*usage.TokenUsage, error)
	CreateIfAbsent(ctx context.Context, u *usage.TokenUsage) (bool, error)
}

type DocumentCounter interface {
	CountByUser(ctx context.Context, userID string) (int, error)
}

type Controller struct {
	subs   SubscriptionStore
	usages UsageStore
	docs   DocumentCounter
	logger *slog.Logger
	now    func() time.Time
}

func NewController(
	subs SubscriptionStore,
	usages UsageStore,
	docs DocumentCounter,
	logger *slog.Logger,
) *Controller {
	return &Controller{
		subs:   subs,
		usages: usages,
		docs:   docs,
		logger: logger,
		now:    time.Now,
	}
}

func (c *Controller) Check(ctx context.Context, userID string) (*Decision, error) {
	sub, err := c.subs.GetActiveByUserID(ctx, userID)
	if err != nil {
		if core.IsNotFound(err) {
			return c.checkFreeTrial(ctx, userID)
		}
		return nil, fmt.Errorf("check access: %w", err)
	}

	live, err := c.usages.GetActive(ctx, sub.ID)
	if err == nil {
		return evaluate(sub, live), nil
	}
	if !core.IsNotFound(err) {
		return nil, fmt.Errorf("check access: %w", err)
	}

	return c.activate(ctx, userID, sub)
}

func (c *Controller) checkFreeTrial(
	ctx context.Context,
	userID string,
) (*Decision, error) {
	stored, err := c.docs.CountByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("check access: %w", err)
	}

	if stored == 0 {
		return &Decision{
			CanAnalyze:          true,
			Message:             msgFreeTrialAvailable,
			IsFirstTimeAnalysis: true,
			State:               StateFreeTrialAvailable,
		}, nil
	}

	return &Decision{
		CanAnalyze:      false,
		Message:         msgFreeTrialExhausted,
		TokensRemaining: 0,
		State:           StateFreeTrialExhausted,
	}, nil
}

// activate lazily opens the usage record for a subscription. A concurrent
// check may win the insert; the loser re-reads and evaluates that record.
func (c *Controller) activate(
	ctx context.Context,
	userID string,
	sub *subscription.Subscription,
) (*Decision, error) {
	quota, err := pricing.Quota(sub.Type)
	if err != nil {
		return nil, fmt.Errorf("check access: %w", err)
	}

	record := &usage.TokenUsage{
		ID:             uuid.New().String(),
		UserID:         userID,
		SubscriptionID: sub.ID,
		TotalTokens:    quota,
		ResetDate:      pricing.NextResetDate(sub.BillingCycle, c.now()),
	}

	created, err := c.usages.CreateIfAbsent(ctx, record)
	if err != nil {
		return nil, fmt.Errorf("check access: %w", err)
	}

	if !created {
		live, err := c.usages.GetActive(ctx, sub.ID)
		if err != nil {
			return nil, fmt.Errorf("check access: %w", err)
		}
		return evaluate(sub, live), nil
	}

	c.logger.Info("token usage record created",
		"user_id", userID,
		"subscription_id", sub.ID,
		"tier", sub.Type,
		"total_tokens", quota,
	)

	return &Decision{
		CanAnalyze: true,
		Message: fmt.Sprintf(
			"New subscription activated with %s tokens",
			pricing.FormatTokens(quota),
		),
		TokensRemaining: quota,
		State:           StateSubscribedNoUsageRecord,
		Subscription:    summarize(sub, quota),
	}, nil
}

func evaluate(sub *subscription.Subscription, live *usage.TokenUsage) *Decision {
	summary := summarize(sub, live.TotalTokens)

	if live.IsUnlimited() {
		return &Decision{
			CanAnalyze:      true,
			Message:         summary.Description,
			TokensRemaining: pricing.Unlimited,
			State:           StateSubscribedUnlimited,
			Subscription:    summary,
		}
	}

	remaining := live.TotalTokens - live.TokensUsed
	if remaining <= 0 {
		return &Decision{
			CanAnalyze: false,
			Message: fmt.Sprintf(
				"You have used all your tokens (%s). Please upgrade your "+
					"subscription or wait for the next billing cycle.",
				pricing.FormatTokens(live.TotalTokens),
			),
			TokensRemaining: 0,
			State:           StateSubscribedExhausted,
			Subscription:    summary,
		}
	}

	return &Decision{
		CanAnalyze: true,
		Message: fmt.Sprintf(
			"Active subscription with %s tokens remaining",
			pricing.FormatTokens(remaining),
		),
		TokensRemaining: remaining,
		State:           StateSubscribedHasTokens,
		Subscription:    summary,
	}
}

func summarize(sub *subscription.Subscription, total int) *SubscriptionSummary {
	return &SubscriptionSummary{
		ID:          sub.ID,
		Type:        sub.Type,
		TotalTokens: total,
		Description: pricing.Description(sub.Type),
	}
}
