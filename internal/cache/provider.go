package cache

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss signals an absent or expired key.
var ErrCacheMiss = errors.New("cache miss")

// Provider is the key-value store that holds dataset snapshot envelopes and
// the locks guarding their writes. A zero ttl means no expiry.
type Provider interface {
	// Get returns the raw value under key, or ErrCacheMiss.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set overwrites key.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// SetNX writes key only when absent and reports whether it did.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Del(ctx context.Context, key string) error
	Close() error
}

var (
	_ Provider = NoopProvider{}
	_ Provider = (*MemoryProvider)(nil)
	_ Provider = (*ValkeyProvider)(nil)
)

// NoopProvider is used when snapshots are disabled: loads always miss, writes
// vanish and every lock is granted.
type NoopProvider struct{}

func (NoopProvider) Get(context.Context, string) ([]byte, error) { return nil, ErrCacheMiss }

func (NoopProvider) Set(context.Context, string, []byte, time.Duration) error { return nil }

func (NoopProvider) SetNX(context.Context, string, []byte, time.Duration) (bool, error) {
	return true, nil
}

func (NoopProvider) Del(context.Context, string) error { return nil }

func (NoopProvider) Close() error { return nil }
