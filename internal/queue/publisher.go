// Package queue publishes auth events to RabbitMQ and consumes them back.
package queue

import (
	"context"
	"errors"
	"time"
)

const (
	KeyUserRegistered     = "user.registered"
	KeyUserLoggedIn       = "user.loggedin"
	KeyTwoFactorEnabled   = "auth.2fa.enabled"
	KeyTwoFactorDisabled  = "auth.2fa.disabled"
	HeaderRequestID       = "X-Request-ID"
	defaultPublishTimeout = 3 * time.Second
)

// BindKeys covers every key this service publishes.
var BindKeys = []string{"user.*", "auth.2fa.*"}

// ErrDrop tells the consumer to discard a message instead of requeueing it.
var ErrDrop = errors.New("drop message")

type Publisher interface {
	Publish(ctx context.Context, key string, event any, reqID string) error
	Close() error
}

type NoopPub struct{}

func NewNoop() Publisher { return NoopPub{} }

func (NoopPub) Publish(context.Context, string, any, string) error { return nil }
func (NoopPub) Close() error                                       { return nil }

type UserRegistered struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
}

type UserLoggedIn struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Method string `json:"method"` // password, google
	IP     string `json:"ip,omitempty"`
}

type TwoFactorChanged struct {
	UserID  string `json:"user_id"`
	Enabled bool   `json:"enabled"`
}

// Message is one delivery as seen by a handler.
type Message struct {
	Key       string
	Body      []byte
	RequestID string
}
