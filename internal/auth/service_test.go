package auth_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/tazhibayda/syncora/internal/auth"
	"github.com/tazhibayda/syncora/internal/domain"
	"github.com/tazhibayda/syncora/internal/pending"
	"github.com/tazhibayda/syncora/internal/security"
	"github.com/tazhibayda/syncora/internal/testutil"
)

const secretS = "JBSWY3DPEHPK3PXPJBSWY3DPEHPK3PXP"

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	svc   *auth.Service
	users *testutil.Users
	reg   *pending.Registry
	clk   *clock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	security.BcryptCost = bcrypt.MinCost
	clk := &clock{t: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	users := testutil.NewUsers()
	reg := pending.NewRegistry(5*time.Minute, pending.WithClock(clk.Now))
	svc := auth.NewService(users, reg, "Syncora", nil).WithClock(clk.Now)
	return &fixture{svc: svc, users: users, reg: reg, clk: clk}
}

func (f *fixture) addUser(t *testing.T, email, pw string, twoFA bool) domain.User {
	t.Helper()
	h, err := security.HashPassword(pw)
	require.NoError(t, err)
	u := domain.User{Email: email, Name: "A", PasswordHash: h}
	if twoFA {
		u.TwoFactorSecret = secretS
		u.TwoFactorEnabled = true
	}
	return f.users.Put(u)
}

func (f *fixture) code(t *testing.T, secret string) string {
	t.Helper()
	c, err := security.TOTPCode(secret, f.clk.Now())
	require.NoError(t, err)
	return c
}

func TestLogin_NoTwoFactor_EstablishesSession(t *testing.T) {
	f := newFixture(t)
	u := f.addUser(t, "a@x.com", "pw1", false)
	sess := &testutil.SessionRecorder{}

	res, err := f.svc.Login(context.Background(), "A@x.com ", "pw1", sess)
	require.NoError(t, err)
	require.NotNil(t, res.User)
	assert.False(t, res.RequiresTwoFactor)
	assert.Empty(t, res.Nonce)
	assert.Equal(t, u.ID.Hex(), res.User.ID)
	assert.Equal(t, "a@x.com", res.User.Email)
	assert.Equal(t, []string{u.ID.Hex()}, sess.UserIDs)
}

func TestLogin_WrongPasswordLooksLikeUnknownEmail(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "a@x.com", "pw1", false)
	sess := &testutil.SessionRecorder{}

	_, wrongPw := f.svc.Login(context.Background(), "a@x.com", "nope", sess)
	_, unknown := f.svc.Login(context.Background(), "b@x.com", "pw1", sess)

	assert.ErrorIs(t, wrongPw, auth.ErrInvalidCredentials)
	assert.ErrorIs(t, unknown, auth.ErrInvalidCredentials)
	assert.Equal(t, wrongPw.Error(), unknown.Error())
	assert.Empty(t, sess.UserIDs)
}

func TestLogin_OAuthOnlyAccountRejected(t *testing.T) {
	f := newFixture(t)
	f.users.Put(domain.User{Email: "g@x.com", GoogleID: "sub-1"})
	sess := &testutil.SessionRecorder{}

	_, err := f.svc.Login(context.Background(), "g@x.com", "", sess)
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	assert.Empty(t, sess.UserIDs)
}

func TestLogin_TwoFactor_ReturnsNonceOnly(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "a@x.com", "pw1", true)
	sess := &testutil.SessionRecorder{}

	res, err := f.svc.Login(context.Background(), "a@x.com", "pw1", sess)
	require.NoError(t, err)
	assert.True(t, res.RequiresTwoFactor)
	assert.NotEmpty(t, res.Nonce)
	assert.Nil(t, res.User)
	assert.Empty(t, sess.UserIDs, "no session before the second factor")
	assert.Equal(t, 1, f.reg.Len())
}

func TestCompleteTwoFactor_Scenario(t *testing.T) {
	f := newFixture(t)
	u := f.addUser(t, "a@x.com", "pw1", true)
	sess := &testutil.SessionRecorder{}
	ctx := context.Background()

	res, err := f.svc.Login(ctx, "a@x.com", "pw1", sess)
	require.NoError(t, err)
	n1 := res.Nonce

	pub, err := f.svc.CompleteTwoFactor(ctx, n1, f.code(t, secretS), sess)
	require.NoError(t, err)
	assert.Equal(t, u.ID.Hex(), pub.ID)
	assert.Equal(t, []string{u.ID.Hex()}, sess.UserIDs)

	_, err = f.svc.CompleteTwoFactor(ctx, n1, f.code(t, secretS), sess)
	assert.ErrorIs(t, err, auth.ErrInvalidOrExpiredNonce)
	assert.Len(t, sess.UserIDs, 1)
}

func TestCompleteTwoFactor_WrongCodeBurnsNonce(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "a@x.com", "pw1", true)
	sess := &testutil.SessionRecorder{}
	ctx := context.Background()

	res, err := f.svc.Login(ctx, "a@x.com", "pw1", sess)
	require.NoError(t, err)

	wrong := "000000"
	if f.code(t, secretS) == wrong {
		wrong = "999999"
	}
	_, err = f.svc.CompleteTwoFactor(ctx, res.Nonce, wrong, sess)
	assert.ErrorIs(t, err, auth.ErrInvalidTwoFactorToken)

	_, err = f.svc.CompleteTwoFactor(ctx, res.Nonce, f.code(t, secretS), sess)
	assert.ErrorIs(t, err, auth.ErrInvalidOrExpiredNonce)
	assert.Empty(t, sess.UserIDs)
}

func TestCompleteTwoFactor_ExpiredNonce(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "a@x.com", "pw1", true)
	sess := &testutil.SessionRecorder{}
	ctx := context.Background()

	res, err := f.svc.Login(ctx, "a@x.com", "pw1", sess)
	require.NoError(t, err)

	f.clk.Advance(5*time.Minute + time.Second)
	_, err = f.svc.CompleteTwoFactor(ctx, res.Nonce, f.code(t, secretS), sess)
	assert.ErrorIs(t, err, auth.ErrInvalidOrExpiredNonce)
	assert.Empty(t, sess.UserIDs)
}

func TestCompleteTwoFactor_DisabledMeanwhile(t *testing.T) {
	f := newFixture(t)
	u := f.addUser(t, "a@x.com", "pw1", true)
	sess := &testutil.SessionRecorder{}
	ctx := context.Background()

	res, err := f.svc.Login(ctx, "a@x.com", "pw1", sess)
	require.NoError(t, err)
	require.NoError(t, f.svc.DisableTwoFactor(ctx, u.ID))

	_, err = f.svc.CompleteTwoFactor(ctx, res.Nonce, f.code(t, secretS), sess)
	assert.ErrorIs(t, err, auth.ErrTwoFactorNotConfigured)
	assert.Empty(t, sess.UserIDs)
}

func TestCompleteTwoFactor_ConcurrentSameNonce(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "a@x.com", "pw1", true)
	ctx := context.Background()

	res, err := f.svc.Login(ctx, "a@x.com", "pw1", &testutil.SessionRecorder{})
	require.NoError(t, err)
	code := f.code(t, secretS)

	var (
		mu   sync.Mutex
		wins int
		wg   sync.WaitGroup
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.CompleteTwoFactor(ctx, res.Nonce, code, &testutil.SessionRecorder{})
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, auth.ErrInvalidOrExpiredNonce)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestEnrollment_TwoPhase(t *testing.T) {
	f := newFixture(t)
	u := f.addUser(t, "a@x.com", "pw1", false)
	ctx := context.Background()

	enr, err := f.svc.BeginTwoFactor(ctx, u.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, enr.Secret)
	assert.Contains(t, enr.URL, "Syncora")
	assert.Contains(t, enr.QRCode, "data:image/png;base64,")

	stored, _ := f.users.Get(u.ID)
	assert.Equal(t, enr.Secret, stored.TwoFactorSecret)
	assert.False(t, stored.TwoFactorEnabled, "enrollment alone must not enforce 2FA")

	wrong := "123456"
	if f.code(t, enr.Secret) == wrong {
		wrong = "654321"
	}
	err = f.svc.ConfirmTwoFactor(ctx, u.ID, wrong)
	assert.ErrorIs(t, err, auth.ErrInvalidTwoFactorToken)
	stored, _ = f.users.Get(u.ID)
	assert.False(t, stored.TwoFactorEnabled)
	assert.Equal(t, enr.Secret, stored.TwoFactorSecret)

	require.NoError(t, f.svc.ConfirmTwoFactor(ctx, u.ID, f.code(t, enr.Secret)))
	stored, _ = f.users.Get(u.ID)
	assert.True(t, stored.TwoFactorEnabled)

	res, err := f.svc.Login(ctx, "a@x.com", "pw1", &testutil.SessionRecorder{})
	require.NoError(t, err)
	assert.True(t, res.RequiresTwoFactor)
}

func TestConfirm_NotInitialized(t *testing.T) {
	f := newFixture(t)
	u := f.addUser(t, "a@x.com", "pw1", false)
	err := f.svc.ConfirmTwoFactor(context.Background(), u.ID, "123456")
	assert.ErrorIs(t, err, auth.ErrTwoFactorNotInitialized)
}

func TestBeginTwoFactor_EnabledAccountKeepsSecret(t *testing.T) {
	f := newFixture(t)
	u := f.addUser(t, "a@x.com", "pw1", true)
	ctx := context.Background()

	before := f.users.Updates
	_, err := f.svc.BeginTwoFactor(ctx, u.ID)
	assert.ErrorIs(t, err, auth.ErrTwoFactorEnabled)
	assert.Equal(t, before, f.users.Updates)

	stored, _ := f.users.Get(u.ID)
	assert.Equal(t, secretS, stored.TwoFactorSecret)
	assert.True(t, stored.TwoFactorEnabled)

	res, err := f.svc.Login(ctx, "a@x.com", "pw1", &testutil.SessionRecorder{})
	require.NoError(t, err)
	got, err := f.svc.CompleteTwoFactor(ctx, res.Nonce, f.code(t, secretS), &testutil.SessionRecorder{})
	require.NoError(t, err)
	assert.Equal(t, u.ID.Hex(), got.ID)
}

func TestDisable_ClearsBothInOneUpdate(t *testing.T) {
	f := newFixture(t)
	u := f.addUser(t, "a@x.com", "pw1", true)
	ctx := context.Background()

	before := f.users.Updates
	require.NoError(t, f.svc.DisableTwoFactor(ctx, u.ID))
	assert.Equal(t, before+1, f.users.Updates)

	stored, _ := f.users.Get(u.ID)
	assert.Empty(t, stored.TwoFactorSecret)
	assert.False(t, stored.TwoFactorEnabled)

	sess := &testutil.SessionRecorder{}
	res, err := f.svc.Login(ctx, "a@x.com", "pw1", sess)
	require.NoError(t, err)
	assert.False(t, res.RequiresTwoFactor)
	assert.Len(t, sess.UserIDs, 1)
}

func TestLogin_StoreFailureIsUpstream(t *testing.T) {
	f := newFixture(t)
	f.users.Err = errors.New("mongo down")
	_, err := f.svc.Login(context.Background(), "a@x.com", "pw1", &testutil.SessionRecorder{})
	assert.ErrorIs(t, err, auth.ErrUpstreamStore)
	assert.NotErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestLogin_SessionFailure(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "a@x.com", "pw1", false)
	_, err := f.svc.Login(context.Background(), "a@x.com", "pw1", &testutil.SessionRecorder{Err: errors.New("write")})
	assert.ErrorIs(t, err, auth.ErrSessionEstablishment)
}

func TestLogin_LimiterLocksOutAfterFailures(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "a@x.com", "pw1", false)
	f.svc.Limiter = testutil.NewLimiter(3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.svc.Login(ctx, "a@x.com", "bad", &testutil.SessionRecorder{})
		require.ErrorIs(t, err, auth.ErrInvalidCredentials)
	}
	_, err := f.svc.Login(ctx, "a@x.com", "pw1", &testutil.SessionRecorder{})
	assert.ErrorIs(t, err, auth.ErrTooManyAttempts)
}

func TestLogin_SuccessResetsLimiter(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "a@x.com", "pw1", false)
	f.svc.Limiter = testutil.NewLimiter(3)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, _ = f.svc.Login(ctx, "a@x.com", "bad", &testutil.SessionRecorder{})
	}
	_, err := f.svc.Login(ctx, "a@x.com", "pw1", &testutil.SessionRecorder{})
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		_, _ = f.svc.Login(ctx, "a@x.com", "bad", &testutil.SessionRecorder{})
	}
	_, err = f.svc.Login(ctx, "a@x.com", "pw1", &testutil.SessionRecorder{})
	assert.NoError(t, err)
}

func TestSignup(t *testing.T) {
	f := newFixture(t)
	sess := &testutil.SessionRecorder{}
	ctx := context.Background()

	u, err := f.svc.Signup(ctx, "New@X.com", "pw1", sess)
	require.NoError(t, err)
	assert.Equal(t, "new@x.com", u.Email)
	assert.Equal(t, "new", u.Name)
	assert.Equal(t, []string{u.ID.Hex()}, sess.UserIDs)

	_, err = f.svc.Signup(ctx, "new@x.com", "pw2", sess)
	assert.ErrorIs(t, err, auth.ErrEmailTaken)
}
