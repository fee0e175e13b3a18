// AngelaMos | 2026
// retry_test.go

package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConnectWithRetryRecovers(t *testing.T) {
	attempts := 0
	err := connectWithRetry(context.Background(), 3, func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("connection refused")
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestConnectWithRetryGivesUp(t *testing.T) {
	refused := errors.New("connection refused")
	attempts := 0
	err := connectWithRetry(context.Background(), 0, func(context.Context) error {
		attempts++
		return refused
	})

	assert.ErrorIs(t, err, refused)
	assert.Equal(t, 1, attempts)
}

func TestConnectWithRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := connectWithRetry(ctx, 10, func(context.Context) error {
		attempts++
		cancel()
		return errors.New("connection refused")
	})

	assert.Error(t, err)
	assert.Equal(t, 1, attempts)
}
