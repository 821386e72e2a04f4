package lock

import (
	"context"
	"errors"
	"sort"
)

var (
	ErrLockTimeout = errors.New("lock_timeout")
	ErrEmptyKey    = errors.New("lock key is empty")
)

// Unlock releases every key taken by a single Lock call.
type Unlock func()

// Locker serializes work on identity keys across workers. Keys are always
// taken in sorted order so two callers sharing keys cannot deadlock.
type Locker interface {
	Lock(ctx context.Context, keys ...string) (Unlock, error)
}

func sortedUnique(keys []string) ([]string, error) {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		if key == "" {
			return nil, ErrEmptyKey
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	sort.Strings(out)
	return out, nil
}
