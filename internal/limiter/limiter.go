package limiter

import (
	"context"
	"fmt"
	"time"
)

// Storage is the counter backend. Implemented by cache.RedisCache; tests
// substitute an in-memory fake.
type Storage interface {
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
	TTL(ctx context.Context, key string) (time.Duration, error)
}

type ActionConfig struct {
	Limit  int64
	Window time.Duration
}

var DefaultLimits = map[string]ActionConfig{
	"login":    {Limit: 10, Window: time.Minute},
	"register": {Limit: 5, Window: time.Minute},
	"refresh":  {Limit: 30, Window: time.Minute},
	"search":   {Limit: 60, Window: time.Minute},
	"review":   {Limit: 20, Window: time.Minute},
}

type Limiter struct {
	storage Storage
	limits  map[string]ActionConfig
}

type CheckResult struct {
	Allowed   bool  `json:"allowed"`
	Remaining int64 `json:"remaining"`
	ResetAt   int64 `json:"reset_at"`
	Limit     int64 `json:"limit"`
}

func NewLimiter(storage Storage) *Limiter {
	return &Limiter{storage: storage, limits: DefaultLimits}
}

func (l *Limiter) Check(ctx context.Context, clientID, action string) (*CheckResult, error) {
	config, ok := l.limits[action]
	if !ok {
		// Default limit for unknown actions
		config = ActionConfig{Limit: 100, Window: time.Minute}
	}

	key := fmt.Sprintf("rate:%s:%s", clientID, action)

	count, err := l.storage.Incr(ctx, key, config.Window)
	if err != nil {
		return nil, fmt.Errorf("failed to increment counter: %w", err)
	}

	ttl, err := l.storage.TTL(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to get TTL: %w", err)
	}

	resetAt := time.Now().Add(ttl).Unix()
	remaining := config.Limit - count
	if remaining < 0 {
		remaining = 0
	}

	return &CheckResult{
		Allowed:   count <= config.Limit,
		Remaining: remaining,
		ResetAt:   resetAt,
		Limit:     config.Limit,
	}, nil
}
