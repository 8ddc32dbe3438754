// Package sessionlock grants exclusive editing leases on workflows.
// One lease holder per workflow keeps the optimistic version check on
// batch saves a rare-conflict path instead of a contention point.
package sessionlock

import (
	"context"
	"errors"
	"time"
)

// DefaultTTL is the lease lifetime when the caller passes none. Holders
// are expected to renew at roughly a third of the TTL.
const DefaultTTL = 30 * time.Second

var (
	// ErrLeaseHeld is returned when another session holds the lease.
	ErrLeaseHeld = errors.New("workflow lease held by another session")

	// ErrNotHolder is returned when renewing or releasing a lease the
	// session does not hold.
	ErrNotHolder = errors.New("session does not hold the workflow lease")
)

// Lease is an acquired editing lease.
type Lease struct {
	WorkflowID string
	SessionID  string
	ExpiresAt  time.Time
}

// Locker grants, renews and releases workflow editing leases.
type Locker interface {
	// Acquire takes the lease for a session. Re-acquiring a lease the
	// same session already holds renews it.
	Acquire(ctx context.Context, workflowID, sessionID string, ttl time.Duration) (*Lease, error)

	// Renew extends a held lease.
	Renew(ctx context.Context, workflowID, sessionID string, ttl time.Duration) (*Lease, error)

	// Release gives the lease up. Releasing an expired or foreign
	// lease returns ErrNotHolder.
	Release(ctx context.Context, workflowID, sessionID string) error

	// Holder returns the session currently holding the lease, or ""
	// when it is free.
	Holder(ctx context.Context, workflowID string) (string, error)

	Close() error
}
