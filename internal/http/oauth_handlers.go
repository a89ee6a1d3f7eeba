package http

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tazhibayda/syncora/internal/auth"
	"github.com/tazhibayda/syncora/internal/metrics"
	"github.com/tazhibayda/syncora/internal/queue"
)

const (
	oauthCookie     = "syncora.oauth"
	oauthCookiePath = "/auth/google"
	oauthCookieAge  = 600
)

func (h *Handler) setOAuthCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(oauthCookie, value, maxAge, oauthCookiePath, "", h.CookieSecure || c.Request.TLS != nil, true)
}

// GoogleStart godoc
// @Summary Redirect to Google consent
// @Tags auth
// @Success 302
// @Failure 404 {object} map[string]string
// @Router /auth/google [get]
func (h *Handler) GoogleStart(c *gin.Context) {
	if h.Google == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Google sign-in is not configured"})
		return
	}
	u, browserNonce, err := h.Google.Begin()
	if err != nil {
		h.logger(c).Error("oauth begin", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	h.setOAuthCookie(c, browserNonce, oauthCookieAge)
	c.Redirect(http.StatusFound, u)
}

// GoogleCallback godoc
// @Summary Google OAuth callback
// @Description Redirects to /dashboard, or to /login/2fa?nonce=... for 2FA accounts.
// @Tags auth
// @Param state query string true "signed state"
// @Param code query string true "authorization code"
// @Success 302
// @Router /auth/google/callback [get]
func (h *Handler) GoogleCallback(c *gin.Context) {
	if h.Google == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Google sign-in is not configured"})
		return
	}
	lg := h.logger(c)
	fail := func(reason string) {
		metrics.AuthAttempts.WithLabelValues("oauth", "rejected").Inc()
		c.Redirect(http.StatusFound, "/auth?error="+url.QueryEscape(reason))
	}

	browserNonce, _ := c.Cookie(oauthCookie)
	h.setOAuthCookie(c, "", -1)
	if c.Query("error") != "" {
		fail("oauth")
		return
	}
	if err := h.Google.CheckState(c.Query("state"), browserNonce); err != nil {
		lg.Warn("oauth state rejected", zap.Error(err))
		fail("oauth")
		return
	}
	id, err := h.Google.Exchange(c.Request.Context(), c.Query("code"))
	if err != nil {
		lg.Warn("oauth exchange", zap.Error(err))
		fail("oauth")
		return
	}

	res, created, err := h.Auth.LoginExternal(c.Request.Context(), id, h.session(c))
	switch {
	case errors.Is(err, auth.ErrUnverifiedEmail):
		fail("unverified")
		return
	case err != nil:
		metrics.AuthAttempts.WithLabelValues("oauth", outcome(err)).Inc()
		lg.Error("oauth login", zap.Error(err))
		c.Redirect(http.StatusFound, "/auth?error=oauth")
		return
	}

	if res.RequiresTwoFactor {
		metrics.AuthAttempts.WithLabelValues("oauth", "challenge").Inc()
		c.Redirect(http.StatusFound, "/login/2fa?nonce="+url.QueryEscape(res.Nonce))
		return
	}
	metrics.AuthAttempts.WithLabelValues("oauth", "ok").Inc()
	if oid, ok := parseID(res.User.ID); ok && created {
		h.seed(oid)
		h.publish(c, queue.KeyUserRegistered, queue.UserRegistered{UserID: res.User.ID, Email: res.User.Email, Name: res.User.Name})
	}
	h.publish(c, queue.KeyUserLoggedIn, queue.UserLoggedIn{
		UserID: res.User.ID, Email: res.User.Email, Method: "google", IP: ClientIP(c),
	})
	c.Redirect(http.StatusFound, "/dashboard")
}
