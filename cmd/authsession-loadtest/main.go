package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sync"
	"sync/atomic"
	"time"

	authsession "github.com/MrEthical07/authsession"
	"github.com/MrEthical07/authsession/provider/local"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const password = "load-test-password"

func main() {
	var (
		devices   = flag.Int("devices", 64, "number of concurrent clients, one per simulated device")
		ops       = flag.Int("ops", 5000, "operations per phase (signin + restore)")
		badRatio  = flag.Float64("bad-ratio", 0.1, "fraction of sign-ins sent with a wrong password")
		redisAddr = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix    = flag.String("prefix", "as", "redis key prefix")
	)
	flag.Parse()

	if *devices <= 0 || *ops <= 0 || *badRatio < 0 || *badRatio > 1 {
		fmt.Fprintln(os.Stderr, "devices and ops must be > 0, bad-ratio within [0,1]")
		os.Exit(2)
	}

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		rdb     redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		rdb = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() {
			_ = rdb.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		rdb = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() { _ = rdb.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	provider, err := seedProvider(*devices)
	if err != nil {
		fmt.Fprintf(os.Stderr, "seed users: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("starting %d clients...\n", *devices)
	workers := make([]*worker, *devices)
	for i := range workers {
		w, err := newWorker(i, rdb, *prefix, provider)
		if err != nil {
			fmt.Fprintf(os.Stderr, "build client %d: %v\n", i, err)
			os.Exit(1)
		}
		workers[i] = w
		defer w.close()
	}

	ctx := context.Background()
	signIn := runPhase(workers, *ops, func(w *worker, r *rand.Rand) (time.Duration, outcome) {
		return w.signIn(ctx, r.Float64() < *badRatio)
	})
	restore := runPhase(workers, *ops, func(w *worker, _ *rand.Rand) (time.Duration, outcome) {
		return w.restore(ctx)
	})

	fmt.Println("---- results ----")
	printStats("signin", signIn)
	printStats("restore", restore)
}

// seedProvider creates one account per device with a cheap hash so the run
// measures the client rather than argon2.
func seedProvider(n int) (*local.Provider, error) {
	cost := local.HashConfig{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 16}
	hash, err := local.HashPassword(cost, password)
	if err != nil {
		return nil, err
	}
	users := make([]local.User, n)
	for i := range users {
		users[i] = local.User{ID: fmt.Sprintf("u-%d", i), Email: email(i), PasswordHash: hash}
	}
	return local.NewProvider(local.Config{Hash: cost, Users: users})
}

func email(i int) string {
	return fmt.Sprintf("user%d@load.test", i)
}

type outcome uint8

const (
	outcomeOK outcome = iota
	outcomeRejected
	outcomeThrottled
	outcomeFailed
)

type worker struct {
	id     int
	client *authsession.Client
	sub    *authsession.Subscription
	// mu keeps one operation per client at a time.
	mu     sync.Mutex
}

func newWorker(id int, rdb redis.UniversalClient, prefix string, provider authsession.AuthProvider) (*worker, error) {
	cfg := authsession.DefaultConfig()
	cfg.Throttle.RedisPrefix = prefix
	cfg.Session.RedisPrefix = prefix
	cfg.Session.DeviceID = fmt.Sprintf("device-%d", id)

	client, err := authsession.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithAuthProvider(provider).
		Build()
	if err != nil {
		return nil, err
	}
	return &worker{id: id, client: client, sub: client.Observe()}, nil
}

func (w *worker) close() {
	w.sub.Close()
	w.client.Close()
}

func (w *worker) signIn(ctx context.Context, wrong bool) (time.Duration, outcome) {
	w.mu.Lock()
	defer w.mu.Unlock()

	secret := password
	if wrong {
		secret = "not-" + password
	}

	t0 := time.Now()
	w.client.Submit(authsession.Credentials{Identifier: email(w.id), Secret: secret})
	state, err := w.settle(ctx)
	d := time.Since(t0)
	w.client.Reset()

	switch {
	case err != nil:
		return d, outcomeFailed
	case state.Kind == authsession.StateAuthenticated:
		return d, outcomeOK
	case state.Error == authsession.ErrorThrottled:
		return d, outcomeThrottled
	case state.Kind == authsession.StateFailed:
		return d, outcomeRejected
	}
	return d, outcomeFailed
}

func (w *worker) restore(ctx context.Context) (time.Duration, outcome) {
	w.mu.Lock()
	defer w.mu.Unlock()

	t0 := time.Now()
	restored, err := w.client.Restore(ctx)
	d := time.Since(t0)
	w.client.Reset()

	if err != nil || !restored {
		return d, outcomeFailed
	}
	return d, outcomeOK
}

// settle waits for the attempt started by Submit to finish.
func (w *worker) settle(ctx context.Context) (authsession.AuthState, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	for {
		state, err := w.sub.Next(ctx)
		if err != nil {
			return authsession.AuthState{}, err
		}
		switch state.Kind {
		case authsession.StateAuthenticated, authsession.StateFailed:
			return state, nil
		case authsession.StateIdle:
			if state.HasMessage() {
				return state, nil
			}
		}
	}
}

func runPhase(workers []*worker, ops int, op func(*worker, *rand.Rand) (time.Duration, outcome)) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		counts    [outcomeFailed + 1]int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for i, w := range workers {
		wg.Add(1)
		go func(seed int, w *worker) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(seed)*7919))
			for {
				if int(atomic.AddInt64(&cursor, 1)) > ops {
					return
				}
				d, res := op(w, r)
				atomic.AddInt64(&counts[res], 1)
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(i, w)
	}
	wg.Wait()

	s := computeStats(time.Since(start), latencies)
	s.rejected = counts[outcomeRejected]
	s.throttled = counts[outcomeThrottled]
	s.failures = counts[outcomeFailed]
	return s
}
