package sessionlock

import (
	"context"
	"sync"
	"time"
)

type memoryLease struct {
	sessionID string
	expiresAt time.Time
}

// MemoryLocker implements Locker in process memory. Single-replica
// deployments and tests use it; expiry is evaluated lazily on access.
type MemoryLocker struct {
	mu     sync.Mutex
	leases map[string]memoryLease
	now    func() time.Time
}

// NewMemoryLocker creates an empty in-process locker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{
		leases: make(map[string]memoryLease),
		now:    time.Now,
	}
}

func (l *MemoryLocker) Acquire(_ context.Context, workflowID, sessionID string, ttl time.Duration) (*Lease, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	current, ok := l.leases[workflowID]
	if ok && current.expiresAt.After(l.now()) && current.sessionID != sessionID {
		return nil, ErrLeaseHeld
	}

	expiresAt := l.now().Add(ttl)
	l.leases[workflowID] = memoryLease{sessionID: sessionID, expiresAt: expiresAt}

	return &Lease{WorkflowID: workflowID, SessionID: sessionID, ExpiresAt: expiresAt}, nil
}

func (l *MemoryLocker) Renew(_ context.Context, workflowID, sessionID string, ttl time.Duration) (*Lease, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	current, ok := l.leases[workflowID]
	if !ok || current.sessionID != sessionID || !current.expiresAt.After(l.now()) {
		return nil, ErrNotHolder
	}

	expiresAt := l.now().Add(ttl)
	l.leases[workflowID] = memoryLease{sessionID: sessionID, expiresAt: expiresAt}

	return &Lease{WorkflowID: workflowID, SessionID: sessionID, ExpiresAt: expiresAt}, nil
}

func (l *MemoryLocker) Release(_ context.Context, workflowID, sessionID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	current, ok := l.leases[workflowID]
	if !ok || current.sessionID != sessionID || !current.expiresAt.After(l.now()) {
		return ErrNotHolder
	}

	delete(l.leases, workflowID)

	return nil
}

func (l *MemoryLocker) Holder(_ context.Context, workflowID string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	current, ok := l.leases[workflowID]
	if !ok || !current.expiresAt.After(l.now()) {
		return "", nil
	}

	return current.sessionID, nil
}

func (l *MemoryLocker) Close() error {
	return nil
}
