package auth

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/tazhibayda/syncora/internal/domain"
	"github.com/tazhibayda/syncora/internal/helper"
)

// ExternalIdentity is what an OAuth provider vouches for.
type ExternalIdentity struct {
	ExternalID    string
	Email         string
	EmailVerified bool
	DisplayName   string
	AvatarURL     string
}

// ResolveExternal finds the account for id, linking by email or creating one.
// Linking only sets the external id and avatar; password, name and 2FA fields
// of an existing account are never touched.
func (s *Service) ResolveExternal(ctx context.Context, id ExternalIdentity) (*domain.User, bool, error) {
	u, created, err := s.resolveExternal(ctx, id)
	if errors.Is(err, domain.ErrConflict) {
		// lost a create race on the same email or id: the winner is there now
		return s.resolveExternal(ctx, id)
	}
	return u, created, err
}

func (s *Service) resolveExternal(ctx context.Context, id ExternalIdentity) (u *domain.User, created bool, err error) {
	u, err = s.Users.FindUserByGoogleID(ctx, id.ExternalID)
	if err != nil {
		return nil, false, fmt.Errorf("%w: find by google id: %v", ErrUpstreamStore, err)
	}
	if u != nil {
		return u, false, nil
	}

	email := NormalizeEmail(id.Email)
	if email == "" {
		return nil, false, ErrUnverifiedEmail
	}
	u, err = s.Users.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, false, fmt.Errorf("%w: find by email: %v", ErrUpstreamStore, err)
	}
	if u != nil {
		if !id.EmailVerified {
			return nil, false, ErrUnverifiedEmail
		}
		patch := domain.UserPatch{GoogleID: &id.ExternalID}
		if id.AvatarURL != "" {
			patch.ProfilePicture = &id.AvatarURL
		}
		if err := s.Users.UpdateUser(ctx, u.ID, patch); err != nil {
			return nil, false, fmt.Errorf("%w: link google: %v", ErrUpstreamStore, err)
		}
		patch.Apply(u)
		s.Log.Info("linked google identity", zap.String("user_id", u.ID.Hex()))
		return u, false, nil
	}

	u = &domain.User{
		Email:          email,
		Name:           id.DisplayName,
		GoogleID:       id.ExternalID,
		ProfilePicture: id.AvatarURL,
	}
	if err := s.Users.CreateUser(ctx, u); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, false, err
		}
		return nil, false, fmt.Errorf("%w: create user: %v", ErrUpstreamStore, err)
	}
	return u, true, nil
}

// LoginExternal resolves id and then applies the same second-factor gate as
// Login: 2FA accounts get a nonce instead of a session.
func (s *Service) LoginExternal(ctx context.Context, id ExternalIdentity, sess SessionWriter) (*LoginResult, bool, error) {
	u, created, err := s.ResolveExternal(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if u.TwoFactorEnabled {
		nonce, err := s.Pending.Create(u.ID, u.Email)
		if err != nil {
			return nil, false, fmt.Errorf("mint nonce: %w", err)
		}
		s.Log.Info("oauth login pending second factor",
			zap.String("user_id", u.ID.Hex()), zap.String("nonce", helper.Hash8(nonce)))
		return &LoginResult{RequiresTwoFactor: true, Nonce: nonce}, created, nil
	}
	if err := establish(sess, u); err != nil {
		return nil, false, err
	}
	pub := u.Public()
	return &LoginResult{User: &pub}, created, nil
}
