package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/tazhibayda/syncora/internal/domain"
	"github.com/tazhibayda/syncora/internal/log"
	"github.com/tazhibayda/syncora/internal/metrics"
)

const (
	requestIDKey = "X-Request-ID"
	authUserKey  = "auth_user"
)

func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDKey)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDKey, id)
		c.Next()
	}
}

func requestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		metrics.InFlight.Inc()
		start := time.Now()
		c.Next()
		metrics.InFlight.Dec()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.ReqDuration.WithLabelValues(route, c.Request.Method).Observe(time.Since(start).Seconds())
		metrics.RequestsTotal.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
	}
}

func AccessLog(base *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithDD(c.Request.Context(), base).Info("http",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)),
			zap.String("request_id", requestID(c)),
		)
	}
}

// RequireAuth resolves the session cookie to a user record. The record is
// re-read on every request so a disabled 2FA flag or deleted account is seen
// immediately.
func (h *Handler) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, ok, err := h.Sessions.UserID(c.Request)
		if err != nil {
			h.logger(c).Error("session lookup", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		oid, err := primitive.ObjectIDFromHex(uid)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		u, err := h.Auth.CurrentUser(c.Request.Context(), oid)
		if err != nil {
			h.authError(c, err)
			c.Abort()
			return
		}
		c.Set(authUserKey, u)
		c.Next()
	}
}

func currentUser(c *gin.Context) *domain.User {
	v, _ := c.Get(authUserKey)
	u, _ := v.(*domain.User)
	return u
}
