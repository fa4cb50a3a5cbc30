package authsession

import (
	"context"
	"sync"
)

// StateStore holds the current [AuthState] and fans every change out to its
// subscribers. Reads are safe from any goroutine; writes happen only on the
// client's event loop.
type StateStore struct {
	mu      sync.Mutex
	current AuthState
	seq     uint64
	subs    map[*Subscription]struct{}
	closed  bool
}

func newStateStore(initial AuthState) *StateStore {
	initial.Seq = 1
	return &StateStore{
		current: initial,
		seq:     1,
		subs:    make(map[*Subscription]struct{}),
	}
}

// Current returns the latest state.
func (s *StateStore) Current() AuthState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Subscribe returns a subscription whose first value is the current state.
func (s *StateStore) Subscribe() *Subscription {
	sub := &Subscription{
		store:  s,
		signal: make(chan struct{}, 1),
	}

	s.mu.Lock()
	sub.queue = append(sub.queue, s.current)
	if s.closed {
		sub.closed = true
	} else {
		s.subs[sub] = struct{}{}
	}
	s.mu.Unlock()

	sub.notify()
	return sub
}

// publish makes next current unless it carries the same content as the
// current state. It reports the stored value and whether it was published.
func (s *StateStore) publish(next AuthState) (AuthState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || next.SameAs(s.current) {
		return s.current, false
	}

	s.seq++
	next.Seq = s.seq
	s.current = next

	for sub := range s.subs {
		sub.push(next)
	}
	return next, true
}

func (s *StateStore) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	subs := s.subs
	s.subs = nil
	s.mu.Unlock()

	for sub := range subs {
		sub.markClosed()
	}
}

func (s *StateStore) detach(sub *Subscription) {
	s.mu.Lock()
	delete(s.subs, sub)
	s.mu.Unlock()
}

// Subscription is one observer's ordered view of the state stream. Its queue
// is unbounded, so a slow reader never holds up the writer.
type Subscription struct {
	store  *StateStore
	mu     sync.Mutex
	queue  []AuthState
	closed bool
	signal chan struct{}
}

func (sub *Subscription) push(state AuthState) {
	sub.mu.Lock()
	if !sub.closed {
		sub.queue = append(sub.queue, state)
	}
	sub.mu.Unlock()
	sub.notify()
}

func (sub *Subscription) notify() {
	select {
	case sub.signal <- struct{}{}:
	default:
	}
}

func (sub *Subscription) markClosed() {
	sub.mu.Lock()
	sub.closed = true
	sub.mu.Unlock()
	sub.notify()
}

// Next blocks until a state is available. After Close, states already queued
// are still returned before ErrSubscriptionClosed.
func (sub *Subscription) Next(ctx context.Context) (AuthState, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		sub.mu.Lock()
		if len(sub.queue) > 0 {
			state := sub.queue[0]
			sub.queue[0] = AuthState{}
			sub.queue = sub.queue[1:]
			sub.mu.Unlock()
			return state, nil
		}
		closed := sub.closed
		sub.mu.Unlock()

		if closed {
			return AuthState{}, ErrSubscriptionClosed
		}

		select {
		case <-sub.signal:
		case <-ctx.Done():
			return AuthState{}, ctx.Err()
		}
	}
}

// Close detaches the subscription. It is idempotent.
func (sub *Subscription) Close() {
	if sub == nil {
		return
	}
	sub.store.detach(sub)
	sub.markClosed()
}
