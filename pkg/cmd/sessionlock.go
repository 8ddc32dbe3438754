package cmd

import (
	"context"

	"github.com/flowboard/flowboard/pkg/sessionlock"
)

// NewSessionLocker returns the editing lease backend. An empty Redis URL
// selects the in-process locker, which is only safe for a single API
// instance.
func NewSessionLocker(ctx context.Context, redisURL string) (sessionlock.Locker, error) {
	if redisURL == "" {
		return sessionlock.NewMemoryLocker(), nil
	}

	return sessionlock.NewRedisLocker(ctx, redisURL)
}
