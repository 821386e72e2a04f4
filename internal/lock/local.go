package lock

import (
	"context"
	"sync"
	"time"
)

// LocalLocker serializes keys within one process.
type LocalLocker struct {
	mu       sync.Mutex
	entries  map[string]*localEntry
	settings func() Settings
}

type localEntry struct {
	ch   chan struct{}
	refs int
}

func NewLocalLocker(settings func() Settings) *LocalLocker {
	return &LocalLocker{
		entries:  make(map[string]*localEntry),
		settings: settings,
	}
}

func (l *LocalLocker) Lock(ctx context.Context, keys ...string) (Unlock, error) {
	ordered, err := sortedUnique(keys)
	if err != nil {
		return nil, err
	}

	timer := time.NewTimer(l.settings().Wait)
	defer timer.Stop()

	held := make([]string, 0, len(ordered))
	releaseAll := func() {
		for _, key := range held {
			l.release(key)
		}
	}

	for _, key := range ordered {
		entry := l.acquireEntry(key)
		select {
		case entry.ch <- struct{}{}:
			held = append(held, key)
		case <-ctx.Done():
			l.dropEntry(key)
			releaseAll()
			return nil, ctx.Err()
		case <-timer.C:
			l.dropEntry(key)
			releaseAll()
			return nil, ErrLockTimeout
		}
	}

	var once sync.Once
	return func() { once.Do(releaseAll) }, nil
}

func (l *LocalLocker) acquireEntry(key string) *localEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.entries[key]
	if !ok {
		entry = &localEntry{ch: make(chan struct{}, 1)}
		l.entries[key] = entry
	}
	entry.refs++
	return entry
}

func (l *LocalLocker) dropEntry(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.entries[key]
	if !ok {
		return
	}
	entry.refs--
	if entry.refs == 0 {
		delete(l.entries, key)
	}
}

func (l *LocalLocker) release(key string) {
	l.mu.Lock()
	entry, ok := l.entries[key]
	l.mu.Unlock()
	if !ok {
		return
	}
	<-entry.ch
	l.dropEntry(key)
}

var _ Locker = (*LocalLocker)(nil)
