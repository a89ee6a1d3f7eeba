package auth

import "errors"

var (
	ErrInvalidCredentials      = errors.New("invalid credentials")
	ErrInvalidOrExpiredNonce   = errors.New("invalid or expired nonce")
	ErrInvalidTwoFactorToken   = errors.New("invalid 2FA token")
	ErrTwoFactorNotConfigured  = errors.New("2FA not configured")
	ErrTwoFactorNotInitialized = errors.New("2FA not initialized")
	ErrTwoFactorEnabled        = errors.New("2FA already enabled")
	ErrSessionEstablishment    = errors.New("session establishment failed")
	ErrUpstreamStore           = errors.New("credential store failure")
	ErrEmailTaken              = errors.New("email already registered")
	ErrTooManyAttempts         = errors.New("too many attempts")
	ErrUnverifiedEmail         = errors.New("provider email not verified")
	ErrUserNotFound            = errors.New("user not found")
)
