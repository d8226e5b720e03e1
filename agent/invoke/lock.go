package invoke

import (
	"context"
	"sync"
)

// threadLocks serializes runs per thread id. Entries are dropped once no
// caller holds or waits on them.
type threadLocks struct {
	mu      sync.Mutex
	entries map[string]*threadLock
}

type threadLock struct {
	sem  chan struct{}
	refs int
}

func newThreadLocks() *threadLocks {
	return &threadLocks{entries: make(map[string]*threadLock)}
}

// Lock blocks until the thread is free or ctx is done.
func (l *threadLocks) Lock(ctx context.Context, threadID string) (func(), error) {
	l.mu.Lock()
	e, ok := l.entries[threadID]
	if !ok {
		e = &threadLock{sem: make(chan struct{}, 1)}
		l.entries[threadID] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		l.release(threadID, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.sem
			l.release(threadID, e)
		})
	}, nil
}

func (l *threadLocks) release(threadID string, e *threadLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.entries, threadID)
	}
}

func (l *threadLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
