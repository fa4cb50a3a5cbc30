package rate

import (
	"context"
	"sync"
	"time"

	xrate "golang.org/x/time/rate"
)

// MemoryLimiter is the process-local counterpart of [RedisLimiter]. Each
// identifier owns a token bucket holding MaxFailedAttempts tokens that refills
// completely over Cooldown; every failure spends one token.
type MemoryLimiter struct {
	config Config
	now    func() time.Time

	mu      sync.Mutex
	buckets map[string]*xrate.Limiter
}

// NewMemory creates an in-process limiter.
func NewMemory(cfg Config) *MemoryLimiter {
	return &MemoryLimiter{
		config:  cfg,
		now:     time.Now,
		buckets: make(map[string]*xrate.Limiter),
	}
}

func (l *MemoryLimiter) Check(_ context.Context, identifier string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := normalizeIdentifier(identifier)
	b, ok := l.buckets[key]
	if !ok {
		return nil
	}
	tokens := b.TokensAt(l.now())
	if tokens >= float64(l.config.MaxFailedAttempts) {
		delete(l.buckets, key)
		return nil
	}
	if tokens < 1 {
		return ErrRateLimited
	}
	return nil
}

func (l *MemoryLimiter) Failure(_ context.Context, identifier string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	key := normalizeIdentifier(identifier)
	b, ok := l.buckets[key]
	if !ok {
		l.sweep(now)
		b = xrate.NewLimiter(l.refill(), l.config.MaxFailedAttempts)
		l.buckets[key] = b
	}

	b.AllowN(now, 1)
	if b.TokensAt(now) < 1 {
		return ErrRateLimited
	}
	return nil
}

func (l *MemoryLimiter) Reset(_ context.Context, identifier string) error {
	l.mu.Lock()
	delete(l.buckets, normalizeIdentifier(identifier))
	l.mu.Unlock()
	return nil
}

// sweep drops buckets that have refilled completely; they carry no state a
// fresh bucket would not. Caller holds mu.
func (l *MemoryLimiter) sweep(now time.Time) {
	full := float64(l.config.MaxFailedAttempts)
	for key, b := range l.buckets {
		if b.TokensAt(now) >= full {
			delete(l.buckets, key)
		}
	}
}

func (l *MemoryLimiter) refill() xrate.Limit {
	if l.config.Cooldown <= 0 || l.config.MaxFailedAttempts <= 0 {
		return xrate.Inf
	}
	return xrate.Every(l.config.Cooldown / time.Duration(l.config.MaxFailedAttempts))
}
