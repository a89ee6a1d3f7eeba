package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
	gintrace "gopkg.in/DataDog/dd-trace-go.v1/contrib/gin-gonic/gin"
)

type RouterOptions struct {
	ServiceName string
	Tracing     bool

	// IPRatePerMin throttles the public auth endpoints per client IP; 0 disables.
	IPRatePerMin int

	// TrustedProxies may set X-Forwarded-For. Empty means the peer address is
	// the client IP.
	TrustedProxies []string
}

func NewRouter(h *Handler, opts RouterOptions) *gin.Engine {
	r := gin.New()
	if err := r.SetTrustedProxies(opts.TrustedProxies); err != nil {
		h.Log.Warn("invalid trusted proxies, trusting none", zap.Error(err))
		_ = r.SetTrustedProxies(nil)
	}
	r.Use(gin.Recovery())
	r.Use(RequestID())
	if opts.Tracing {
		r.Use(gintrace.Middleware(opts.ServiceName))
	}
	r.Use(Metrics())
	r.Use(AccessLog(h.Log.WithOptions(zap.WithCaller(false))))

	r.GET("/healthz", h.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	r.NoRoute(func(c *gin.Context) { c.JSON(http.StatusNotFound, gin.H{"error": "not found"}) })

	var rl *IPLimiter
	if opts.IPRatePerMin > 0 {
		rl = NewIPLimiter(opts.IPRatePerMin, time.Minute)
	}
	throttle := RateLimitIP(rl)
	authed := h.RequireAuth()

	a := r.Group("/auth")
	{
		a.POST("/login", throttle, h.Login)
		a.POST("/2fa/complete", throttle, h.CompleteTwoFactor)
		a.POST("/signup", throttle, h.Signup)
		a.POST("/logout", h.Logout)
		a.POST("/2fa/enable", authed, h.EnableTwoFactor)
		a.POST("/2fa/verify", authed, h.VerifyTwoFactor)
		a.POST("/2fa/disable", authed, h.DisableTwoFactor)
		a.GET("/google", h.GoogleStart)
		a.GET("/google/callback", h.GoogleCallback)
	}

	api := r.Group("/api", authed)
	{
		api.GET("/user", h.Me)
		api.GET("/emails", h.ListEmails)
		api.POST("/emails/:id/summarize", h.SummarizeEmail)
		api.GET("/calendar/events", h.ListEvents)
		api.GET("/tasks", h.ListTasks)
		api.POST("/tasks", h.CreateTask)
		api.PATCH("/tasks/:id", h.UpdateTask)
		api.DELETE("/tasks/:id", h.DeleteTask)
		api.GET("/notifications", h.ListNotifications)
		api.PATCH("/notifications/:id/read", h.MarkNotificationRead)
		api.POST("/ai/chat", h.Chat)
	}
	return r
}
