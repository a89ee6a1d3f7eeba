package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tazhibayda/syncora/internal/auth"
	"github.com/tazhibayda/syncora/internal/domain"
	"github.com/tazhibayda/syncora/internal/metrics"
	"github.com/tazhibayda/syncora/internal/queue"
)

type credentialsReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResp struct {
	User domain.PublicUser `json:"user"`
}

type challengeResp struct {
	Requires2FA bool   `json:"requires2FA"`
	Nonce       string `json:"nonce"`
}

type completeReq struct {
	Nonce string `json:"nonce"`
	Token string `json:"token"`
}

type tokenReq struct {
	Token string `json:"token"`
}

type enrollResp struct {
	Secret string `json:"secret"`
	QRCode string `json:"qrCode"`
	URL    string `json:"otpauthUrl"`
}

type successResp struct {
	Success bool `json:"success"`
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, auth.ErrTooManyAttempts):
		return "limited"
	case errors.Is(err, auth.ErrUpstreamStore), errors.Is(err, auth.ErrSessionEstablishment):
		return "error"
	default:
		return "rejected"
	}
}

// Login godoc
// @Summary Primary login
// @Description Accounts with 2FA get {requires2FA, nonce} and no session cookie.
// @Tags auth
// @Accept json
// @Produce json
// @Param payload body credentialsReq true "email and password"
// @Success 200 {object} userResp
// @Success 200 {object} challengeResp
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Failure 429 {object} map[string]string
// @Router /auth/login [post]
func (h *Handler) Login(c *gin.Context) {
	var in credentialsReq
	if err := c.ShouldBindJSON(&in); err != nil || in.Email == "" || in.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email and password required"})
		return
	}
	res, err := h.Auth.Login(c.Request.Context(), in.Email, in.Password, h.session(c))
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("password", outcome(err)).Inc()
		h.authError(c, err)
		return
	}
	if res.RequiresTwoFactor {
		metrics.AuthAttempts.WithLabelValues("password", "challenge").Inc()
		c.JSON(http.StatusOK, challengeResp{Requires2FA: true, Nonce: res.Nonce})
		return
	}
	metrics.AuthAttempts.WithLabelValues("password", "ok").Inc()
	h.logger(c).Info("login", zap.String("user_id", res.User.ID))
	h.publish(c, queue.KeyUserLoggedIn, queue.UserLoggedIn{
		UserID: res.User.ID, Email: res.User.Email, Method: "password", IP: ClientIP(c),
	})
	c.JSON(http.StatusOK, userResp{User: *res.User})
}

// CompleteTwoFactor godoc
// @Summary Complete a login with a TOTP code
// @Description The nonce is single-use: any attempt, right or wrong, consumes it.
// @Tags auth
// @Accept json
// @Produce json
// @Param payload body completeReq true "nonce and token"
// @Success 200 {object} userResp
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Router /auth/2fa/complete [post]
func (h *Handler) CompleteTwoFactor(c *gin.Context) {
	var in completeReq
	if err := c.ShouldBindJSON(&in); err != nil || in.Nonce == "" || in.Token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Nonce and token required"})
		return
	}
	u, err := h.Auth.CompleteTwoFactor(c.Request.Context(), in.Nonce, strings.TrimSpace(in.Token), h.session(c))
	metrics.AuthAttempts.WithLabelValues("second_factor", outcome(err)).Inc()
	if err != nil {
		h.authError(c, err)
		return
	}
	h.logger(c).Info("login completed with second factor", zap.String("user_id", u.ID))
	h.publish(c, queue.KeyUserLoggedIn, queue.UserLoggedIn{
		UserID: u.ID, Email: u.Email, Method: "totp", IP: ClientIP(c),
	})
	c.JSON(http.StatusOK, userResp{User: *u})
}

// EnableTwoFactor godoc
// @Summary Start 2FA enrollment
// @Description Stores a new secret; enforcement starts after /auth/2fa/verify.
// @Tags auth
// @Produce json
// @Success 200 {object} enrollResp
// @Failure 401 {object} map[string]string
// @Router /auth/2fa/enable [post]
func (h *Handler) EnableTwoFactor(c *gin.Context) {
	u := currentUser(c)
	enr, err := h.Auth.BeginTwoFactor(c.Request.Context(), u.ID)
	if err != nil {
		h.authError(c, err)
		return
	}
	c.JSON(http.StatusOK, enrollResp{Secret: enr.Secret, QRCode: enr.QRCode, URL: enr.URL})
}

// VerifyTwoFactor godoc
// @Summary Confirm 2FA enrollment
// @Tags auth
// @Accept json
// @Produce json
// @Param payload body tokenReq true "token"
// @Success 200 {object} successResp
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Router /auth/2fa/verify [post]
func (h *Handler) VerifyTwoFactor(c *gin.Context) {
	var in tokenReq
	if err := c.ShouldBindJSON(&in); err != nil || strings.TrimSpace(in.Token) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Token required"})
		return
	}
	u := currentUser(c)
	if err := h.Auth.ConfirmTwoFactor(c.Request.Context(), u.ID, strings.TrimSpace(in.Token)); err != nil {
		h.authError(c, err)
		return
	}
	h.logger(c).Info("2fa enabled", zap.String("user_id", u.ID.Hex()))
	h.publish(c, queue.KeyTwoFactorEnabled, queue.TwoFactorChanged{UserID: u.ID.Hex(), Enabled: true})
	c.JSON(http.StatusOK, successResp{Success: true})
}

// DisableTwoFactor godoc
// @Summary Turn 2FA off
// @Tags auth
// @Produce json
// @Success 200 {object} successResp
// @Failure 401 {object} map[string]string
// @Router /auth/2fa/disable [post]
func (h *Handler) DisableTwoFactor(c *gin.Context) {
	u := currentUser(c)
	if err := h.Auth.DisableTwoFactor(c.Request.Context(), u.ID); err != nil {
		h.authError(c, err)
		return
	}
	h.logger(c).Info("2fa disabled", zap.String("user_id", u.ID.Hex()))
	h.publish(c, queue.KeyTwoFactorDisabled, queue.TwoFactorChanged{UserID: u.ID.Hex(), Enabled: false})
	c.JSON(http.StatusOK, successResp{Success: true})
}

// Logout godoc
// @Summary Destroy the session
// @Tags auth
// @Produce json
// @Success 200 {object} successResp
// @Router /auth/logout [post]
func (h *Handler) Logout(c *gin.Context) {
	if err := h.Sessions.Destroy(c.Request, c.Writer); err != nil {
		h.logger(c).Error("logout", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Logout failed"})
		return
	}
	c.JSON(http.StatusOK, successResp{Success: true})
}

// Signup godoc
// @Summary Create a password account
// @Tags auth
// @Accept json
// @Produce json
// @Param payload body credentialsReq true "email and password"
// @Success 201 {object} userResp
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /auth/signup [post]
func (h *Handler) Signup(c *gin.Context) {
	var in credentialsReq
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if !strings.Contains(in.Email, "@") || len(in.Password) < 8 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid email or weak password"})
		return
	}
	u, err := h.Auth.Signup(c.Request.Context(), in.Email, in.Password, h.session(c))
	if err != nil {
		h.authError(c, err)
		return
	}
	h.logger(c).Info("signup", zap.String("user_id", u.ID.Hex()))
	h.seed(u.ID)
	h.publish(c, queue.KeyUserRegistered, queue.UserRegistered{UserID: u.ID.Hex(), Email: u.Email, Name: u.Name})
	c.JSON(http.StatusCreated, userResp{User: u.Public()})
}
