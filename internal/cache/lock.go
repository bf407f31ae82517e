package cache

import (
	"context"
	"fmt"
	"time"
)

// Lock is a best-effort exclusive claim on a key held in a Provider.
type Lock struct {
	p   Provider
	key string
}

// TryLock claims key for ttl. It reports false without error when another
// holder owns the key. The claim lapses on its own once ttl passes.
func TryLock(ctx context.Context, p Provider, key string, ttl time.Duration) (*Lock, bool, error) {
	ok, err := p.SetNX(ctx, key, []byte(time.Now().UTC().Format(time.RFC3339Nano)), ttl)
	if err != nil {
		return nil, false, fmt.Errorf("lock %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}
	return &Lock{p: p, key: key}, true, nil
}

// Release drops the claim.
func (l *Lock) Release(ctx context.Context) error {
	if err := l.p.Del(ctx, l.key); err != nil {
		return fmt.Errorf("unlock %s: %w", l.key, err)
	}
	return nil
}
