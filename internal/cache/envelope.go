package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Envelope is the persisted wrapper around a JSON value. SavedAt and TTL are
// epoch and duration milliseconds; a missing TTL never expires.
type Envelope struct {
	Value   json.RawMessage `json:"value"`
	SavedAt int64           `json:"savedAt"`
	TTL     *int64          `json:"ttl,omitempty"`
}

// Expired reports whether the envelope has outlived its TTL at now.
func (e Envelope) Expired(now time.Time) bool {
	if e.TTL == nil {
		return false
	}
	return now.UnixMilli() > e.SavedAt+*e.TTL
}

// SaveJSON marshals v into an envelope stamped with now and stores it under
// key. The provider TTL mirrors the envelope TTL.
func SaveJSON(ctx context.Context, p Provider, key string, v any, ttl time.Duration, now time.Time) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	env := Envelope{Value: raw, SavedAt: now.UnixMilli()}
	if ttl > 0 {
		ms := ttl.Milliseconds()
		env.TTL = &ms
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope %s: %w", key, err)
	}
	return p.Set(ctx, key, payload, ttl)
}

// LoadJSON reads the envelope under key into out. Expired envelopes are
// deleted and reported as ErrCacheMiss.
func LoadJSON(ctx context.Context, p Provider, key string, out any, now time.Time) (Envelope, error) {
	payload, err := p.Get(ctx, key)
	if err != nil {
		return Envelope{}, err
	}
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope %s: %w", key, err)
	}
	if env.Expired(now) {
		_ = p.Del(ctx, key)
		return Envelope{}, ErrCacheMiss
	}
	if err := json.Unmarshal(env.Value, out); err != nil {
		return Envelope{}, fmt.Errorf("decode %s: %w", key, err)
	}
	return env, nil
}
