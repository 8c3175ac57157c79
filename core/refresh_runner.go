package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const (
	defaultRefreshMaxAttempts    = 3
	defaultRefreshInitialBackoff = 500 * time.Millisecond
	defaultRefreshMaxBackoff     = 10 * time.Second
	defaultRefreshLockTTL        = 30 * time.Second
	defaultRefreshLeadTime       = 5 * time.Minute
)

// ShouldRefresh reports whether an active credential is close enough to
// expiry that a refresh should run now. Credentials without an expiry,
// without a refresh grant, or no longer active never qualify.
func ShouldRefresh(record CredentialRecord, now time.Time, leadTime time.Duration) bool {
	if !record.Refreshable || record.ExpiresAt == nil {
		return false
	}
	if record.Status != CredentialStatusActive {
		return false
	}
	if leadTime <= 0 {
		leadTime = defaultRefreshLeadTime
	}
	return !now.Add(leadTime).Before(*record.ExpiresAt)
}

type LockHandle interface {
	Unlock(ctx context.Context) error
}

type ConnectorLocker interface {
	Acquire(ctx context.Context, connectorID string, ttl time.Duration) (LockHandle, error)
}

type RefreshBackoffScheduler interface {
	NextDelay(attempt int) time.Duration
}

type ExponentialBackoffScheduler struct {
	Initial time.Duration
	Max     time.Duration
}

func (s ExponentialBackoffScheduler) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	initial := s.Initial
	if initial <= 0 {
		initial = defaultRefreshInitialBackoff
	}
	max := s.Max
	if max <= 0 {
		max = defaultRefreshMaxBackoff
	}

	delay := initial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}

type refreshLockContextKey struct{}

func isRefreshLockHeld(ctx context.Context, connectorID string) bool {
	if ctx == nil {
		return false
	}
	held, ok := ctx.Value(refreshLockContextKey{}).(string)
	return ok && held == connectorID
}

type RefreshRunResult struct {
	Attempts      int
	PendingReauth bool
}

type RefreshRunOptions struct {
	MaxAttempts int
	LockTTL     time.Duration
}

// RunRefreshWithRetry wraps Refresh in a lock plus bounded backoff.
// Cryptographic and flow errors are never retried; a connector that
// exhausts its attempts moves to pending_reauth so an operator
// restarts the flow instead of leaving stale credentials in place.
func (s *Service) RunRefreshWithRetry(ctx context.Context, req RefreshRequest, opts RefreshRunOptions) (RefreshRunResult, error) {
	if s == nil {
		return RefreshRunResult{}, fmt.Errorf("core: service is nil")
	}
	connectorID := strings.TrimSpace(req.ConnectorID)
	if connectorID == "" {
		return RefreshRunResult{}, s.mapError(fmt.Errorf("core: connector id is required"))
	}
	req.ConnectorID = connectorID

	maxAttempts := opts.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = defaultRefreshMaxAttempts
	}
	lockTTL := opts.LockTTL
	if lockTTL <= 0 {
		lockTTL = defaultRefreshLockTTL
	}

	unlock := func() {}
	if s.connectorLocker != nil {
		lockHandle, lockErr := s.connectorLocker.Acquire(ctx, connectorID, lockTTL)
		if lockErr != nil {
			return RefreshRunResult{}, s.mapError(lockErr)
		}
		ctx = context.WithValue(ctx, refreshLockContextKey{}, connectorID)
		unlock = func() {
			_ = lockHandle.Unlock(ctx)
		}
	}
	defer unlock()

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		_, err := s.Refresh(ctx, req)
		if err == nil {
			return RefreshRunResult{Attempts: attempt}, nil
		}
		lastErr = err

		if isUnrecoverableRefreshError(err) {
			_ = s.transitionConnectorToPendingReauth(ctx, connectorID, err)
			return RefreshRunResult{Attempts: attempt, PendingReauth: true}, s.mapError(err)
		}
		if attempt == maxAttempts {
			_ = s.transitionConnectorToPendingReauth(ctx, connectorID, err)
			return RefreshRunResult{Attempts: attempt, PendingReauth: true}, s.mapError(err)
		}

		delay := defaultRefreshInitialBackoff
		if s.refreshBackoffScheduler != nil {
			delay = s.refreshBackoffScheduler.NextDelay(attempt)
		}
		if waitErr := waitWithContext(ctx, delay); waitErr != nil {
			return RefreshRunResult{Attempts: attempt}, s.mapError(waitErr)
		}
	}

	return RefreshRunResult{Attempts: maxAttempts}, s.mapError(lastErr)
}

func (s *Service) transitionConnectorToPendingReauth(ctx context.Context, connectorID string, source error) error {
	if s == nil || s.connectorStore == nil {
		return nil
	}
	reason := strings.TrimSpace(fmt.Sprint(source))
	if reason == "" {
		reason = "refresh failed"
	}
	return s.connectorStore.UpdateStatus(ctx, connectorID, string(ConnectorStatusPendingReauth), reason)
}

func isUnrecoverableRefreshError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDecryptionFailed) ||
		errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrExpiredState) ||
		errors.Is(err, ErrMalformedState) ||
		errors.Is(err, ErrPKCESessionLost) {
		return true
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		switch richErr.Category {
		case goerrors.CategoryAuth, goerrors.CategoryAuthz, goerrors.CategoryValidation, goerrors.CategoryNotFound:
			return true
		}
		switch strings.TrimSpace(strings.ToUpper(richErr.TextCode)) {
		case ConnectorErrorDecryptionFailed, ConnectorErrorStateInvalid, ConnectorErrorStateExpired:
			return true
		}
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(msg, "invalid_grant") ||
		strings.Contains(msg, "invalid refresh token") ||
		strings.Contains(msg, "no refresh token") ||
		strings.Contains(msg, "no refresh grant")
}

func waitWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type MemoryConnectorLocker struct {
	mu    sync.Mutex
	locks map[string]time.Time
	nowFn func() time.Time
}

func NewMemoryConnectorLocker() *MemoryConnectorLocker {
	return &MemoryConnectorLocker{
		locks: make(map[string]time.Time),
		nowFn: func() time.Time { return time.Now().UTC() },
	}
}

func (l *MemoryConnectorLocker) Acquire(_ context.Context, connectorID string, ttl time.Duration) (LockHandle, error) {
	if l == nil {
		return nil, fmt.Errorf("core: connector locker is not configured")
	}
	connectorID = strings.TrimSpace(connectorID)
	if connectorID == "" {
		return nil, fmt.Errorf("core: connector id is required for lock acquisition")
	}
	if ttl <= 0 {
		ttl = defaultRefreshLockTTL
	}

	now := l.nowFn()
	l.mu.Lock()
	defer l.mu.Unlock()

	if until, ok := l.locks[connectorID]; ok && now.Before(until) {
		return nil, fmt.Errorf("core: refresh lock already held for connector %q", connectorID)
	}
	l.locks[connectorID] = now.Add(ttl)
	return &memoryLockHandle{locker: l, connectorID: connectorID}, nil
}

type memoryLockHandle struct {
	locker      *MemoryConnectorLocker
	connectorID string
	once        sync.Once
}

func (h *memoryLockHandle) Unlock(_ context.Context) error {
	if h == nil || h.locker == nil {
		return nil
	}
	h.once.Do(func() {
		h.locker.mu.Lock()
		delete(h.locker.locks, h.connectorID)
		h.locker.mu.Unlock()
	})
	return nil
}
