package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/tazhibayda/syncora/internal/ai"
	"github.com/tazhibayda/syncora/internal/auth"
	"github.com/tazhibayda/syncora/internal/domain"
	"github.com/tazhibayda/syncora/internal/log"
	"github.com/tazhibayda/syncora/internal/oauth"
	"github.com/tazhibayda/syncora/internal/queue"
	"github.com/tazhibayda/syncora/internal/session"
)

// Dashboard is the per-user data the /api routes read and write.
type Dashboard interface {
	ListEmails(ctx context.Context, userID primitive.ObjectID) ([]domain.Email, error)
	GetEmail(ctx context.Context, userID, id primitive.ObjectID) (*domain.Email, error)
	UpdateEmailAnalysis(ctx context.Context, userID, id primitive.ObjectID, summary string, m *domain.MeetingDetails) (*domain.Email, error)
	ListEvents(ctx context.Context, userID primitive.ObjectID) ([]domain.CalendarEvent, error)
	ListTasks(ctx context.Context, userID primitive.ObjectID) ([]domain.Task, error)
	CreateTask(ctx context.Context, t *domain.Task) error
	UpdateTask(ctx context.Context, userID, id primitive.ObjectID, p domain.TaskPatch) (*domain.Task, error)
	DeleteTask(ctx context.Context, userID, id primitive.ObjectID) error
	ListNotifications(ctx context.Context, userID primitive.ObjectID) ([]domain.Notification, error)
	MarkNotificationRead(ctx context.Context, userID, id primitive.ObjectID) error
}

type Assistant interface {
	Summarize(ctx context.Context, email string) (string, error)
	ExtractMeeting(ctx context.Context, email string) *domain.MeetingDetails
	DetectTasks(ctx context.Context, email string) []string
	Chat(ctx context.Context, message string, snap *ai.ChatContext) string
}

// Seeder fills a brand-new account with demo records in the background.
type Seeder interface {
	Go(userID primitive.ObjectID)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	Auth     *auth.Service
	Sessions *session.Store
	Data     Dashboard
	AI       Assistant
	Google   *oauth.GoogleOAuth // nil when Google sign-in is not configured
	Seed     Seeder
	Events   queue.Publisher
	Health   map[string]Pinger
	Log      *zap.Logger

	// CookieSecure marks the short-lived OAuth state cookie Secure.
	CookieSecure bool
}

func NewHandler(svc *auth.Service, sessions *session.Store, data Dashboard, lg *zap.Logger) *Handler {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Handler{
		Auth:     svc,
		Sessions: sessions,
		Data:     data,
		Events:   queue.NewNoop(),
		Health:   map[string]Pinger{},
		Log:      lg,
	}
}

// ginSession lets the orchestrator establish a session on this response.
type ginSession struct {
	store *session.Store
	c     *gin.Context
}

func (s ginSession) Establish(userID string) error {
	return s.store.Establish(s.c.Request, s.c.Writer, userID)
}

func (h *Handler) session(c *gin.Context) auth.SessionWriter {
	return ginSession{store: h.Sessions, c: c}
}

func (h *Handler) logger(c *gin.Context) *zap.Logger {
	return log.WithDD(c.Request.Context(), h.Log, zap.String("request_id", requestID(c)))
}

// publish sends an event without holding up the response.
func (h *Handler) publish(c *gin.Context, key string, event any) {
	reqID := requestID(c)
	lg := h.logger(c)
	go func() {
		if err := h.Events.Publish(context.Background(), key, event, reqID); err != nil {
			lg.Warn("publish failed", zap.String("key", key), zap.Error(err))
		}
	}()
}

func (h *Handler) seed(id primitive.ObjectID) {
	if h.Seed != nil {
		h.Seed.Go(id)
	}
}

// authError writes the response for an orchestrator error.
func (h *Handler) authError(c *gin.Context, err error) {
	status, msg := http.StatusInternalServerError, "internal error"
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		status, msg = http.StatusUnauthorized, "Invalid credentials"
	case errors.Is(err, auth.ErrInvalidOrExpiredNonce):
		status, msg = http.StatusUnauthorized, "Invalid or expired nonce"
	case errors.Is(err, auth.ErrTwoFactorNotConfigured):
		status, msg = http.StatusUnauthorized, "2FA not configured"
	case errors.Is(err, auth.ErrInvalidTwoFactorToken):
		status, msg = http.StatusUnauthorized, "Invalid 2FA token"
	case errors.Is(err, auth.ErrUserNotFound):
		status, msg = http.StatusUnauthorized, "Unauthorized"
	case errors.Is(err, auth.ErrTwoFactorNotInitialized):
		status, msg = http.StatusBadRequest, "2FA not initialized"
	case errors.Is(err, auth.ErrTwoFactorEnabled):
		status, msg = http.StatusConflict, "2FA already enabled"
	case errors.Is(err, auth.ErrEmailTaken):
		status, msg = http.StatusConflict, "Email already registered"
	case errors.Is(err, auth.ErrTooManyAttempts):
		status, msg = http.StatusTooManyRequests, "Too many attempts, try again later"
	case errors.Is(err, auth.ErrUnverifiedEmail):
		status, msg = http.StatusForbidden, "Google account email is not verified"
	case errors.Is(err, auth.ErrSessionEstablishment):
		msg = "Login failed"
	}
	if status >= http.StatusInternalServerError {
		h.logger(c).Error("auth request failed", zap.String("route", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, gin.H{"error": msg})
}

// dataError maps store errors on the dashboard routes.
func (h *Handler) dataError(c *gin.Context, err error, notFound string) {
	if errors.Is(err, domain.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": notFound})
		return
	}
	h.logger(c).Error("store error", zap.String("route", c.FullPath()), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

// Healthz godoc
// @Summary Liveness with dependency pings
// @Tags ops
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /healthz [get]
func (h *Handler) Healthz(c *gin.Context) {
	for name, p := range h.Health {
		if err := p.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "component": name, "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
