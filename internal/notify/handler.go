// Package notify turns auth events from the queue into user notifications.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/tazhibayda/syncora/internal/domain"
	"github.com/tazhibayda/syncora/internal/queue"
)

type Store interface {
	CreateNotification(ctx context.Context, n *domain.Notification) error
}

type Handler struct {
	Store Store
	Log   *zap.Logger
}

func NewHandler(store Store, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{Store: store, Log: log}
}

// Handle is a queue.Consumer callback. Malformed payloads are dropped; store
// errors are returned so the delivery is retried.
func (h *Handler) Handle(ctx context.Context, m queue.Message) error {
	n, err := build(m)
	if err != nil {
		return fmt.Errorf("%w: %v", queue.ErrDrop, err)
	}
	if n == nil {
		return nil
	}
	if err := h.Store.CreateNotification(ctx, n); err != nil {
		return err
	}
	h.Log.Debug("notification stored",
		zap.String("key", m.Key), zap.String("user_id", n.UserID.Hex()), zap.String("request_id", m.RequestID))
	return nil
}

func build(m queue.Message) (*domain.Notification, error) {
	switch m.Key {
	case queue.KeyUserRegistered:
		var ev queue.UserRegistered
		uid, err := decode(m.Body, &ev, func() string { return ev.UserID })
		if err != nil {
			return nil, err
		}
		return &domain.Notification{
			UserID:  uid,
			Type:    domain.NotificationInfo,
			Title:   "Account created",
			Message: "Your Syncora account for " + ev.Email + " is ready.",
		}, nil

	case queue.KeyUserLoggedIn:
		var ev queue.UserLoggedIn
		uid, err := decode(m.Body, &ev, func() string { return ev.UserID })
		if err != nil {
			return nil, err
		}
		meta := map[string]string{"method": ev.Method}
		if ev.IP != "" {
			meta["ip"] = ev.IP
		}
		return &domain.Notification{
			UserID:   uid,
			Type:     domain.NotificationSecurity,
			Title:    "New sign-in",
			Message:  "A new sign-in to your account was recorded.",
			Metadata: meta,
		}, nil

	case queue.KeyTwoFactorEnabled, queue.KeyTwoFactorDisabled:
		var ev queue.TwoFactorChanged
		uid, err := decode(m.Body, &ev, func() string { return ev.UserID })
		if err != nil {
			return nil, err
		}
		n := &domain.Notification{UserID: uid, Type: domain.NotificationSecurity}
		if ev.Enabled {
			n.Title = "Two-factor authentication enabled"
			n.Message = "Sign-ins now require a code from your authenticator app."
		} else {
			n.Title = "Two-factor authentication disabled"
			n.Message = "Sign-ins no longer require an authenticator code."
		}
		return n, nil
	}
	return nil, nil
}

func decode(body []byte, into any, userID func() string) (primitive.ObjectID, error) {
	if err := json.Unmarshal(body, into); err != nil {
		return primitive.NilObjectID, fmt.Errorf("decode: %w", err)
	}
	uid, err := primitive.ObjectIDFromHex(userID())
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("user id: %w", err)
	}
	return uid, nil
}
