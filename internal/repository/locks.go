package repository

import (
	"context"
	"sync"

	"github.com/xiaot623/gochat/internal/domain"
)

// sessionLock is a context-aware mutex for one session id.
type sessionLock struct {
	sem  chan struct{}
	refs int
}

// lockTable hands out one sessionLock per session id.
// Entries are reference counted and dropped once nobody holds or waits on them.
type lockTable struct {
	mu    sync.Mutex
	locks map[string]*sessionLock
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[string]*sessionLock)}
}

func (t *lockTable) ref(sessionID string) *sessionLock {
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.locks[sessionID]
	if !ok {
		l = &sessionLock{sem: make(chan struct{}, 1)}
		t.locks[sessionID] = l
	}
	l.refs++
	return l
}

func (t *lockTable) unref(sessionID string, l *sessionLock) {
	t.mu.Lock()
	defer t.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(t.locks, sessionID)
	}
}

// acquire blocks until the session's lock is held or ctx is done.
func (t *lockTable) acquire(ctx context.Context, sessionID string) (func(), error) {
	l := t.ref(sessionID)
	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		t.unref(sessionID, l)
		return nil, ctx.Err()
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			<-l.sem
			t.unref(sessionID, l)
		})
	}, nil
}

// len reports how many session ids currently have a live lock entry.
func (t *lockTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.locks)
}

// withSessionLock implements Store.WithLock on top of a lockTable.
// exists is consulted before and after acquisition so a session deleted
// while the caller waited is reported as not found.
func withSessionLock(ctx context.Context, t *lockTable, sessionID string, exists func(ctx context.Context, sessionID string) (bool, error), fn func(ctx context.Context) error) error {
	ok, err := exists(ctx, sessionID)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrSessionNotFound
	}

	release, err := t.acquire(ctx, sessionID)
	if err != nil {
		return err
	}
	defer release()

	ok, err = exists(ctx, sessionID)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrSessionNotFound
	}
	return fn(ctx)
}
