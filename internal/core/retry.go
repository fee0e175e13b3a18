// AngelaMos | 2026
// retry.go

package core

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const maxConnectBackoff = 10 * time.Second

// connectWithRetry pings a freshly opened dependency with exponential
// backoff. Containers started together rarely come up in order.
func connectWithRetry(
	ctx context.Context,
	retries int,
	ping func(ctx context.Context) error,
) error {
	if retries < 0 {
		retries = 0
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 250 * time.Millisecond
	policy.MaxInterval = maxConnectBackoff

	return backoff.Retry(
		func() error {
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return ping(pingCtx)
		},
		backoff.WithContext(
			backoff.WithMaxRetries(policy, uint64(retries)),
			ctx,
		),
	)
}
