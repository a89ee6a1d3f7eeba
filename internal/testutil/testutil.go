// Package testutil provides in-memory stand-ins for the Mongo and Redis
// backed stores, for use in package tests.
package testutil

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/tazhibayda/syncora/internal/domain"
	"github.com/tazhibayda/syncora/internal/session"
)

// Users implements auth.UserStore. Err, when set, is returned by every call.
type Users struct {
	mu      sync.Mutex
	byID    map[primitive.ObjectID]domain.User
	Err     error
	Updates int
}

func NewUsers() *Users {
	return &Users{byID: make(map[primitive.ObjectID]domain.User)}
}

// Put stores a copy of u, assigning an id when missing.
func (m *Users) Put(u domain.User) domain.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	m.byID[u.ID] = u
	return u
}

func (m *Users) Delete(id primitive.ObjectID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byID, id)
}

// Get returns a copy of the stored record.
func (m *Users) Get(id primitive.ObjectID) (domain.User, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	return u, ok
}

func (m *Users) FindUserByEmail(_ context.Context, email string) (*domain.User, error) {
	return m.find(func(u domain.User) bool { return u.Email == email })
}

func (m *Users) FindUserByID(_ context.Context, id primitive.ObjectID) (*domain.User, error) {
	return m.find(func(u domain.User) bool { return u.ID == id })
}

func (m *Users) FindUserByGoogleID(_ context.Context, gid string) (*domain.User, error) {
	return m.find(func(u domain.User) bool { return gid != "" && u.GoogleID == gid })
}

func (m *Users) find(match func(domain.User) bool) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	for _, u := range m.byID {
		if match(u) {
			cp := u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *Users) CreateUser(_ context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	for _, x := range m.byID {
		if x.Email == u.Email {
			return domain.ErrConflict
		}
	}
	u.ID = primitive.NewObjectID()
	u.CreatedAt = time.Now().UTC()
	m.byID[u.ID] = *u
	return nil
}

func (m *Users) UpdateUser(_ context.Context, id primitive.ObjectID, p domain.UserPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	u, ok := m.byID[id]
	if !ok {
		return nil
	}
	p.Apply(&u)
	m.byID[id] = u
	m.Updates++
	return nil
}

// Sessions implements session.Backend.
type Sessions struct {
	mu   sync.Mutex
	recs map[string]session.Record
	Now  func() time.Time
	Err  error
}

func NewSessions() *Sessions {
	return &Sessions{recs: make(map[string]session.Record), Now: time.Now}
}

func (m *Sessions) LoadSession(_ context.Context, id string) (*session.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	rec, ok := m.recs[id]
	if !ok || m.Now().After(rec.ExpiresAt) {
		return nil, nil
	}
	return &rec, nil
}

func (m *Sessions) SaveSession(_ context.Context, rec session.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.recs[rec.ID] = rec
	return nil
}

func (m *Sessions) DeleteSession(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.recs, id)
	return nil
}

func (m *Sessions) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.recs)
}

// Limiter implements auth.Limiter with a fixed failure budget and no window.
type Limiter struct {
	mu    sync.Mutex
	Max   int
	fails map[string]int
}

func NewLimiter(max int) *Limiter {
	return &Limiter{Max: max, fails: make(map[string]int)}
}

func (l *Limiter) Blocked(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fails[key] >= l.Max, nil
}

func (l *Limiter) Fail(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fails[key]++
	return nil
}

func (l *Limiter) Reset(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.fails, key)
	return nil
}

// SessionRecorder implements auth.SessionWriter and remembers what was established.
type SessionRecorder struct {
	UserIDs []string
	Err     error
}

func (s *SessionRecorder) Establish(userID string) error {
	if s.Err != nil {
		return s.Err
	}
	s.UserIDs = append(s.UserIDs, userID)
	return nil
}

// Published is one event seen by Events.
type Published struct {
	Key   string
	Event any
	ReqID string
}

// Events implements queue.Publisher and records what was published.
type Events struct {
	mu  sync.Mutex
	out []Published
}

func (e *Events) Publish(_ context.Context, key string, event any, reqID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.out = append(e.out, Published{Key: key, Event: event, ReqID: reqID})
	return nil
}

func (e *Events) Close() error { return nil }

// Keys returns the routing keys published so far, in order.
func (e *Events) Keys() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	keys := make([]string, 0, len(e.out))
	for _, p := range e.out {
		keys = append(keys, p.Key)
	}
	return keys
}
