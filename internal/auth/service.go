// Package auth drives the staged login: password check, optional pending
// second-factor challenge, then session establishment.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/tazhibayda/syncora/internal/domain"
	"github.com/tazhibayda/syncora/internal/helper"
	"github.com/tazhibayda/syncora/internal/pending"
	"github.com/tazhibayda/syncora/internal/security"
)

// UserStore is the credential store. Finders return (nil, nil) when nothing matches.
type UserStore interface {
	FindUserByEmail(ctx context.Context, email string) (*domain.User, error)
	FindUserByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error)
	FindUserByGoogleID(ctx context.Context, googleID string) (*domain.User, error)
	CreateUser(ctx context.Context, u *domain.User) error
	UpdateUser(ctx context.Context, id primitive.ObjectID, p domain.UserPatch) error
}

// PendingStore is the pending-authentication registry.
type PendingStore interface {
	Create(userID primitive.ObjectID, email string) (string, error)
	Consume(nonce string) (pending.Entry, bool)
}

// Limiter counts failed attempts per key. Implementations may be remote; errors fail open.
type Limiter interface {
	Blocked(ctx context.Context, key string) (bool, error)
	Fail(ctx context.Context, key string) error
	Reset(ctx context.Context, key string) error
}

// SessionWriter persists the authenticated marker for the current client.
type SessionWriter interface {
	Establish(userID string) error
}

type LoginResult struct {
	User              *domain.PublicUser
	RequiresTwoFactor bool
	Nonce             string
}

type Service struct {
	Users   UserStore
	Pending PendingStore
	Limiter Limiter
	Log     *zap.Logger
	Issuer  string

	now func() time.Time
}

func NewService(users UserStore, reg PendingStore, issuer string, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{Users: users, Pending: reg, Issuer: issuer, Log: log, now: time.Now}
}

// WithClock replaces the clock used for TOTP verification.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Login checks email and password. Accounts without 2FA get a session right
// away; 2FA accounts get a nonce and no session.
func (s *Service) Login(ctx context.Context, email, password string, sess SessionWriter) (*LoginResult, error) {
	email = NormalizeEmail(email)
	limitKey := "login:" + email
	if s.blocked(ctx, limitKey) {
		return nil, ErrTooManyAttempts
	}

	u, err := s.Users.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("%w: find by email: %v", ErrUpstreamStore, err)
	}
	if u == nil || !u.HasPassword() {
		security.BurnPasswordCheck(password)
		s.fail(ctx, limitKey)
		return nil, ErrInvalidCredentials
	}
	if !security.CheckPassword(u.PasswordHash, password) {
		s.fail(ctx, limitKey)
		return nil, ErrInvalidCredentials
	}
	s.reset(ctx, limitKey)

	if u.TwoFactorEnabled {
		nonce, err := s.Pending.Create(u.ID, u.Email)
		if err != nil {
			return nil, fmt.Errorf("mint nonce: %w", err)
		}
		s.Log.Info("login pending second factor",
			zap.String("user_id", u.ID.Hex()), zap.String("nonce", helper.Hash8(nonce)))
		return &LoginResult{RequiresTwoFactor: true, Nonce: nonce}, nil
	}

	if err := establish(sess, u); err != nil {
		return nil, err
	}
	pub := u.Public()
	return &LoginResult{User: &pub}, nil
}

// CompleteTwoFactor finishes a login started by Login. The nonce is consumed
// whatever the outcome.
func (s *Service) CompleteTwoFactor(ctx context.Context, nonce, code string, sess SessionWriter) (*domain.PublicUser, error) {
	entry, ok := s.Pending.Consume(nonce)
	if !ok {
		return nil, ErrInvalidOrExpiredNonce
	}
	limitKey := "2fa:" + entry.UserID.Hex()
	if s.blocked(ctx, limitKey) {
		return nil, ErrTooManyAttempts
	}

	u, err := s.Users.FindUserByID(ctx, entry.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: find by id: %v", ErrUpstreamStore, err)
	}
	if u == nil || u.TwoFactorSecret == "" || !u.TwoFactorEnabled {
		return nil, ErrTwoFactorNotConfigured
	}
	if !security.VerifyTOTP(u.TwoFactorSecret, code, s.now()) {
		s.fail(ctx, limitKey)
		return nil, ErrInvalidTwoFactorToken
	}
	s.reset(ctx, limitKey)

	if err := establish(sess, u); err != nil {
		return nil, err
	}
	pub := u.Public()
	return &pub, nil
}

// BeginTwoFactor generates and stores a fresh secret. Enforcement stays off
// until ConfirmTwoFactor succeeds. An account that already enforces 2FA must
// disable it first, so the confirmed secret is never replaced in place.
func (s *Service) BeginTwoFactor(ctx context.Context, userID primitive.ObjectID) (*security.TOTPEnrollment, error) {
	u, err := s.CurrentUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.TwoFactorEnabled {
		return nil, ErrTwoFactorEnabled
	}
	enr, err := security.NewTOTPEnrollment(s.Issuer, u.Email)
	if err != nil {
		return nil, err
	}
	patch := domain.UserPatch{TwoFactorSecret: &enr.Secret}
	if err := s.Users.UpdateUser(ctx, u.ID, patch); err != nil {
		return nil, fmt.Errorf("%w: store secret: %v", ErrUpstreamStore, err)
	}
	return enr, nil
}

// ConfirmTwoFactor turns enforcement on once code matches the stored secret.
// A wrong code leaves the secret in place and the flag off.
func (s *Service) ConfirmTwoFactor(ctx context.Context, userID primitive.ObjectID, code string) error {
	u, err := s.CurrentUser(ctx, userID)
	if err != nil {
		return err
	}
	if u.TwoFactorSecret == "" {
		return ErrTwoFactorNotInitialized
	}
	if !security.VerifyTOTP(u.TwoFactorSecret, code, s.now()) {
		return ErrInvalidTwoFactorToken
	}
	on := true
	if err := s.Users.UpdateUser(ctx, u.ID, domain.UserPatch{TwoFactorEnabled: &on}); err != nil {
		return fmt.Errorf("%w: enable 2fa: %v", ErrUpstreamStore, err)
	}
	return nil
}

// DisableTwoFactor clears secret and flag in a single update.
func (s *Service) DisableTwoFactor(ctx context.Context, userID primitive.ObjectID) error {
	none, off := "", false
	err := s.Users.UpdateUser(ctx, userID, domain.UserPatch{TwoFactorSecret: &none, TwoFactorEnabled: &off})
	if err != nil {
		return fmt.Errorf("%w: disable 2fa: %v", ErrUpstreamStore, err)
	}
	return nil
}

// CurrentUser loads the full record for an authenticated id.
func (s *Service) CurrentUser(ctx context.Context, userID primitive.ObjectID) (*domain.User, error) {
	u, err := s.Users.FindUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: find by id: %v", ErrUpstreamStore, err)
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	return u, nil
}

// Signup creates a password account and establishes its session.
func (s *Service) Signup(ctx context.Context, email, password string, sess SessionWriter) (*domain.User, error) {
	email = NormalizeEmail(email)
	existing, err := s.Users.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("%w: find by email: %v", ErrUpstreamStore, err)
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}
	hash, err := security.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &domain.User{
		Email:        email,
		PasswordHash: hash,
		Name:         strings.SplitN(email, "@", 2)[0],
	}
	if err := s.Users.CreateUser(ctx, u); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("%w: create user: %v", ErrUpstreamStore, err)
	}
	if err := establish(sess, u); err != nil {
		return nil, err
	}
	return u, nil
}

func establish(sess SessionWriter, u *domain.User) error {
	if err := sess.Establish(u.ID.Hex()); err != nil {
		return fmt.Errorf("%w: %v", ErrSessionEstablishment, err)
	}
	return nil
}

func (s *Service) blocked(ctx context.Context, key string) bool {
	if s.Limiter == nil {
		return false
	}
	b, err := s.Limiter.Blocked(ctx, key)
	if err != nil {
		s.Log.Warn("limiter unavailable", zap.Error(err))
		return false
	}
	return b
}

func (s *Service) fail(ctx context.Context, key string) {
	if s.Limiter == nil {
		return
	}
	if err := s.Limiter.Fail(ctx, key); err != nil {
		s.Log.Warn("limiter fail", zap.Error(err))
	}
}

func (s *Service) reset(ctx context.Context, key string) {
	if s.Limiter == nil {
		return
	}
	if err := s.Limiter.Reset(ctx, key); err != nil {
		s.Log.Warn("limiter reset", zap.Error(err))
	}
}
