package session

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math"
	"math/big"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const minRecordTTL = time.Second

// Store persists at most one [Record] per device.
type Store interface {
	Load(ctx context.Context) (*Record, error)
	Save(ctx context.Context, r *Record) error
	Clear(ctx context.Context) error
}

// RedisStore keeps the record under <prefix>:current:<deviceID>, expiring with
// the record itself.
type RedisStore struct {
	redis       redis.UniversalClient
	prefix      string
	deviceID    string
	jitterRange time.Duration
	now         func() time.Time
}

// NewRedisStore creates a Redis-backed store. A positive jitterRange spreads
// key expiry by up to ±jitterRange so that records written together do not all
// expire in the same instant; the record's own ExpiresAt stays authoritative.
func NewRedisStore(client redis.UniversalClient, prefix, deviceID string, jitterRange time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "as"
	}
	if deviceID == "" {
		deviceID = "default"
	}
	return &RedisStore{
		redis:       client,
		prefix:      prefix,
		deviceID:    deviceID,
		jitterRange: jitterRange,
		now:         time.Now,
	}
}

func (s *RedisStore) key() string {
	return s.prefix + ":current:" + s.deviceID
}

func (s *RedisStore) Load(ctx context.Context) (*Record, error) {
	data, err := s.redis.Get(ctx, s.key()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	r, err := Decode(data)
	if err != nil {
		// A blob we cannot read is as good as no session.
		_ = s.redis.Del(ctx, s.key()).Err()
		return nil, ErrNotFound
	}
	if r.Expired(s.now()) {
		if err := s.redis.Del(ctx, s.key()).Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		return nil, ErrNotFound
	}
	return r, nil
}

func (s *RedisStore) Save(ctx context.Context, r *Record) error {
	data, err := Encode(r)
	if err != nil {
		return err
	}

	var ttl time.Duration
	if r.ExpiresAt != 0 {
		ttl = time.Unix(r.ExpiresAt, 0).Sub(s.now())
		jitter, err := randomJitter(s.jitterRange)
		if err != nil {
			return err
		}
		ttl += jitter
		if ttl < minRecordTTL {
			ttl = minRecordTTL
		}
	}

	if err := s.redis.Set(ctx, s.key(), data, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Clear is idempotent.
func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.redis.Del(ctx, s.key()).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Ping measures a Redis round trip.
func (s *RedisStore) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}

func randomJitter(jitterRange time.Duration) (time.Duration, error) {
	if jitterRange <= 0 {
		return 0, nil
	}

	max := jitterRange.Nanoseconds()
	if max > (math.MaxInt64-1)/2 {
		return 0, errors.New("jitter range too large")
	}
	span := max*2 + 1

	n, err := rand.Int(rand.Reader, big.NewInt(span))
	if err != nil {
		return 0, err
	}

	return time.Duration(n.Int64() - max), nil
}

// MemoryStore keeps the record in process memory.
type MemoryStore struct {
	mu     sync.Mutex
	record *Record
	now    func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

func (s *MemoryStore) Load(context.Context) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.record == nil {
		return nil, ErrNotFound
	}
	if s.record.Expired(s.now()) {
		s.record = nil
		return nil, ErrNotFound
	}
	out := *s.record
	return &out, nil
}

func (s *MemoryStore) Save(_ context.Context, r *Record) error {
	if r == nil || r.UserID == "" {
		return errors.New("record has empty userID")
	}
	copied := *r

	s.mu.Lock()
	s.record = &copied
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Clear(context.Context) error {
	s.mu.Lock()
	s.record = nil
	s.mu.Unlock()
	return nil
}
