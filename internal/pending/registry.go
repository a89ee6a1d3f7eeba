// Package pending holds logins that passed the password check and are
// waiting for a second factor.
package pending

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/tazhibayda/syncora/internal/security"
)

const (
	DefaultTTL           = 5 * time.Minute
	DefaultSweepInterval = 5 * time.Minute
)

type Entry struct {
	UserID    primitive.ObjectID
	Email     string
	ExpiresAt time.Time
}

func (e Entry) expired(now time.Time) bool { return now.After(e.ExpiresAt) }

// Registry maps single-use nonces to pending entries. Safe for concurrent use.
type Registry struct {
	mu      sync.Mutex
	entries map[string]Entry

	ttl      time.Duration
	now      func() time.Time
	newNonce func() (string, error)
}

type Option func(*Registry)

func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

func WithNonceFunc(f func() (string, error)) Option {
	return func(r *Registry) { r.newNonce = f }
}

func NewRegistry(ttl time.Duration, opts ...Option) *Registry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	r := &Registry{
		entries:  make(map[string]Entry),
		ttl:      ttl,
		now:      time.Now,
		newNonce: security.NewNonce,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Create stores a new entry and returns its nonce.
func (r *Registry) Create(userID primitive.ObjectID, email string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for {
		nonce, err := r.newNonce()
		if err != nil {
			return "", err
		}
		if _, taken := r.entries[nonce]; taken {
			continue
		}
		r.entries[nonce] = Entry{UserID: userID, Email: email, ExpiresAt: r.now().Add(r.ttl)}
		return nonce, nil
	}
}

// Peek returns the entry without consuming it.
func (r *Registry) Peek(nonce string) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lookup(nonce)
}

// Consume is an atomic fetch-and-delete: of concurrent callers with the same
// nonce at most one gets the entry.
func (r *Registry) Consume(nonce string) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.lookup(nonce)
	if ok {
		delete(r.entries, nonce)
	}
	return e, ok
}

// lookup drops an expired entry as a side effect. Caller holds mu.
func (r *Registry) lookup(nonce string) (Entry, bool) {
	e, ok := r.entries[nonce]
	if !ok {
		return Entry{}, false
	}
	if e.expired(r.now()) {
		delete(r.entries, nonce)
		return Entry{}, false
	}
	return e, true
}

// Sweep deletes every expired entry and reports how many were removed.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	n := 0
	for nonce, e := range r.entries {
		if e.expired(now) {
			delete(r.entries, nonce)
			n++
		}
	}
	return n
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Run sweeps every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration, onSweep func(removed int)) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n := r.Sweep()
			if onSweep != nil {
				onSweep(n)
			}
		}
	}
}
