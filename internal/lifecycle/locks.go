package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// ErrLockTimeout means the per-subject exclusion scope could not be
// acquired within the configured timeout. Recoverable: the caller retries
// later; the engine never proceeds on a stale read.
var ErrLockTimeout = errors.New("subject lock timeout")

// subjectLocks serializes merge protocols per subject key. Different
// subjects proceed fully in parallel; same-subject invocations queue on a
// weight-1 semaphore so acquisition can be bounded by a context deadline.
type subjectLocks struct {
	mu   sync.Mutex
	sems map[string]*semaphore.Weighted
}

func newSubjectLocks() *subjectLocks {
	return &subjectLocks{sems: make(map[string]*semaphore.Weighted)}
}

func (l *subjectLocks) sem(key string) *semaphore.Weighted {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.sems[key]
	if !ok {
		s = semaphore.NewWeighted(1)
		l.sems[key] = s
	}
	return s
}

// acquire blocks until the subject's exclusion scope is held, the timeout
// elapses, or ctx is cancelled. On success the returned release func must
// be called exactly once.
func (l *subjectLocks) acquire(ctx context.Context, key string, timeout time.Duration) (func(), error) {
	s := l.sem(key)

	acqCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		acqCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if err := s.Acquire(acqCtx, 1); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %s", ErrLockTimeout, key)
	}
	return func() { s.Release(1) }, nil
}
