package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"github.com/tazhibayda/syncora/internal/ai"
	"github.com/tazhibayda/syncora/internal/auth"
	"github.com/tazhibayda/syncora/internal/domain"
	api "github.com/tazhibayda/syncora/internal/http"
	"github.com/tazhibayda/syncora/internal/pending"
	"github.com/tazhibayda/syncora/internal/security"
	"github.com/tazhibayda/syncora/internal/session"
	"github.com/tazhibayda/syncora/internal/testutil"
)

const totpSecret = "JBSWY3DPEHPK3PXPJBSWY3DPEHPK3PXP"

type fakeAI struct {
	summaryErr error
	lastChat   *ai.ChatContext
}

func (f *fakeAI) Summarize(_ context.Context, email string) (string, error) {
	if f.summaryErr != nil {
		return "", f.summaryErr
	}
	return "summary of: " + email, nil
}

func (f *fakeAI) ExtractMeeting(context.Context, string) *domain.MeetingDetails {
	return &domain.MeetingDetails{Date: "tomorrow", Location: "Room B"}
}

func (f *fakeAI) DetectTasks(context.Context, string) []string {
	return []string{"Book Room B"}
}

func (f *fakeAI) Chat(_ context.Context, msg string, snap *ai.ChatContext) string {
	f.lastChat = snap
	return "echo: " + msg
}

type seedRecorder struct {
	mu  sync.Mutex
	ids []primitive.ObjectID
}

func (s *seedRecorder) Go(id primitive.ObjectID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = append(s.ids, id)
}

type testEnv struct {
	T        *testing.T
	Router   *gin.Engine
	Handler  *api.Handler
	Users    *testutil.Users
	Data     *testutil.Dashboard
	Sessions *testutil.Sessions
	Events   *testutil.Events
	Seeds    *seedRecorder
	AI       *fakeAI
	Now      time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	security.BcryptCost = bcrypt.MinCost

	env := &testEnv{
		T:        t,
		Users:    testutil.NewUsers(),
		Data:     testutil.NewDashboard(),
		Sessions: testutil.NewSessions(),
		Events:   &testutil.Events{},
		Seeds:    &seedRecorder{},
		AI:       &fakeAI{},
		Now:      time.Now().UTC(),
	}
	clock := func() time.Time { return env.Now }

	reg := pending.NewRegistry(5*time.Minute, pending.WithClock(clock))
	svc := auth.NewService(env.Users, reg, "Syncora", nil).WithClock(clock)
	store := session.NewStore(env.Sessions, 7*24*time.Hour, false, []byte("0123456789abcdef0123456789abcdef"))

	h := api.NewHandler(svc, store, env.Data, nil)
	h.AI = env.AI
	h.Seed = env.Seeds
	h.Events = env.Events
	env.Handler = h
	env.Router = api.NewRouter(h, api.RouterOptions{ServiceName: "syncora-test"})
	return env
}

func (e *testEnv) addUser(email, pw string, twoFA bool) domain.User {
	e.T.Helper()
	hash, err := security.HashPassword(pw)
	if err != nil {
		e.T.Fatal(err)
	}
	u := domain.User{Email: email, Name: "N", PasswordHash: hash}
	if twoFA {
		u.TwoFactorSecret = totpSecret
		u.TwoFactorEnabled = true
	}
	return e.Users.Put(u)
}

func (e *testEnv) code(secret string) string {
	e.T.Helper()
	c, err := security.TOTPCode(secret, e.Now)
	if err != nil {
		e.T.Fatal(err)
	}
	return c
}

func (e *testEnv) do(method, path, body string, cookie *http.Cookie) *httptest.ResponseRecorder {
	e.T.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	e.Router.ServeHTTP(w, req)
	return w
}

func sessionCookie(w *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == session.CookieName {
			return c
		}
	}
	return nil
}

// login runs a password login for a non-2FA account and returns its cookie.
func (e *testEnv) login(email, pw string) *http.Cookie {
	e.T.Helper()
	w := e.do("POST", "/auth/login", `{"email":"`+email+`","password":"`+pw+`"}`, nil)
	if w.Code != http.StatusOK {
		e.T.Fatalf("login: %d %s", w.Code, w.Body.String())
	}
	c := sessionCookie(w)
	if c == nil {
		e.T.Fatal("login did not set a session cookie")
	}
	return c
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %T: %v; body=%s", v, err, w.Body.String())
	}
	return v
}

// waitKeys polls the async publisher until n events arrived.
func (e *testEnv) waitKeys(n int) []string {
	e.T.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		keys := e.Events.Keys()
		if len(keys) >= n || time.Now().After(deadline) {
			return keys
		}
		time.Sleep(5 * time.Millisecond)
	}
}
