// Package session implements a gorilla/sessions Store whose cookie carries only
// a signed random id; the values live in a server-side record.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"

	"github.com/tazhibayda/syncora/internal/security"
)

const (
	CookieName = "syncora.sid"
	userIDKey  = "user_id"
)

// Record is the server-side half of a session. ID is the hash of the cookie id.
type Record struct {
	ID        string
	Values    map[string]string
	ExpiresAt time.Time
}

// Backend persists records. Load returns (nil, nil) for unknown or expired ids.
type Backend interface {
	LoadSession(ctx context.Context, id string) (*Record, error)
	SaveSession(ctx context.Context, rec Record) error
	DeleteSession(ctx context.Context, id string) error
}

type Store struct {
	backend Backend
	codecs  []securecookie.Codec
	opts    sessions.Options
	now     func() time.Time
}

var _ sessions.Store = (*Store)(nil)

func NewStore(b Backend, ttl time.Duration, secure bool, keyPairs ...[]byte) *Store {
	return &Store{
		backend: b,
		codecs:  securecookie.CodecsFromPairs(keyPairs...),
		opts: sessions.Options{
			Path:     "/",
			MaxAge:   int(ttl / time.Second),
			HttpOnly: true,
			Secure:   secure,
			SameSite: http.SameSiteLaxMode,
		},
		now: time.Now,
	}
}

func (s *Store) Get(r *http.Request, name string) (*sessions.Session, error) {
	return sessions.GetRegistry(r).Get(s, name)
}

func (s *Store) New(r *http.Request, name string) (*sessions.Session, error) {
	sess := sessions.NewSession(s, name)
	opts := s.opts
	if r.TLS != nil {
		opts.Secure = true
	}
	sess.Options = &opts
	sess.IsNew = true

	c, err := r.Cookie(name)
	if err != nil {
		return sess, nil
	}
	var id string
	if err := securecookie.DecodeMulti(name, c.Value, &id, s.codecs...); err != nil {
		// tampered or signed with a rotated-out key: start fresh
		return sess, nil
	}
	rec, err := s.backend.LoadSession(r.Context(), security.HashToken(id))
	if err != nil {
		return sess, fmt.Errorf("load session: %w", err)
	}
	if rec == nil {
		return sess, nil
	}
	sess.ID = id
	sess.IsNew = false
	for k, v := range rec.Values {
		sess.Values[k] = v
	}
	return sess, nil
}

// Save writes the record and the cookie. MaxAge < 0 deletes both.
func (s *Store) Save(r *http.Request, w http.ResponseWriter, sess *sessions.Session) error {
	if sess.Options.MaxAge < 0 {
		if sess.ID != "" {
			if err := s.backend.DeleteSession(r.Context(), security.HashToken(sess.ID)); err != nil {
				return fmt.Errorf("delete session: %w", err)
			}
		}
		http.SetCookie(w, sessions.NewCookie(sess.Name(), "", sess.Options))
		return nil
	}

	if sess.ID == "" {
		id, err := security.NewSessionID()
		if err != nil {
			return err
		}
		sess.ID = id
	}
	values := make(map[string]string, len(sess.Values))
	for k, v := range sess.Values {
		ks, ok1 := k.(string)
		vs, ok2 := v.(string)
		if !ok1 || !ok2 {
			return errors.New("session values must be strings")
		}
		values[ks] = vs
	}
	rec := Record{
		ID:        security.HashToken(sess.ID),
		Values:    values,
		ExpiresAt: s.now().Add(time.Duration(sess.Options.MaxAge) * time.Second).UTC(),
	}
	if err := s.backend.SaveSession(r.Context(), rec); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	encoded, err := securecookie.EncodeMulti(sess.Name(), sess.ID, s.codecs...)
	if err != nil {
		return err
	}
	http.SetCookie(w, sessions.NewCookie(sess.Name(), encoded, sess.Options))
	return nil
}

// Establish binds userID to a fresh session id, discarding any previous
// session of this client.
func (s *Store) Establish(r *http.Request, w http.ResponseWriter, userID string) error {
	sess, err := s.Get(r, CookieName)
	if err != nil {
		return err
	}
	if sess.ID != "" {
		if err := s.backend.DeleteSession(r.Context(), security.HashToken(sess.ID)); err != nil {
			return fmt.Errorf("rotate session: %w", err)
		}
		sess.ID = ""
	}
	for k := range sess.Values {
		delete(sess.Values, k)
	}
	sess.Values[userIDKey] = userID
	return sess.Save(r, w)
}

// UserID returns the authenticated user id, if any.
func (s *Store) UserID(r *http.Request) (string, bool, error) {
	sess, err := s.Get(r, CookieName)
	if err != nil {
		return "", false, err
	}
	uid, ok := sess.Values[userIDKey].(string)
	return uid, ok && uid != "", nil
}

// Destroy removes the server-side record and expires the cookie.
func (s *Store) Destroy(r *http.Request, w http.ResponseWriter) error {
	sess, err := s.Get(r, CookieName)
	if err != nil {
		return err
	}
	sess.Options.MaxAge = -1
	return sess.Save(r, w)
}
