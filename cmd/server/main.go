package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"

	"github.com/tazhibayda/syncora/docs"
	"github.com/tazhibayda/syncora/internal/ai"
	"github.com/tazhibayda/syncora/internal/auth"
	"github.com/tazhibayda/syncora/internal/config"
	"github.com/tazhibayda/syncora/internal/demo"
	api "github.com/tazhibayda/syncora/internal/http"
	"github.com/tazhibayda/syncora/internal/log"
	"github.com/tazhibayda/syncora/internal/metrics"
	"github.com/tazhibayda/syncora/internal/notify"
	"github.com/tazhibayda/syncora/internal/oauth"
	"github.com/tazhibayda/syncora/internal/pending"
	"github.com/tazhibayda/syncora/internal/queue"
	"github.com/tazhibayda/syncora/internal/repo"
	"github.com/tazhibayda/syncora/internal/session"
)

const serviceName = "syncora"

// @title Syncora API
// @version 0.1.0
// @description Session auth with TOTP second factor, Google sign-in and the assistant dashboard.
// @schemes http https
// @BasePath /
func main() {
	cfg := config.Load()

	lg, err := log.Init(cfg.Production())
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	if cfg.DDEnabled {
		tracer.Start(tracer.WithService(serviceName), tracer.WithEnv(cfg.Env))
		defer tracer.Stop()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	store, err := repo.NewStore(initCtx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		lg.Fatal("mongo connect", zap.Error(err))
	}
	defer store.Close(context.Background())

	if err := store.EnsureIndexes(initCtx); err != nil {
		lg.Fatal("mongo indexes", zap.Error(err))
	}

	health := map[string]api.Pinger{"mongo": store}

	reg := pending.NewRegistry(cfg.PendingAuthTTL)
	go reg.Run(ctx, cfg.PendingSweepEvery, func(removed int) {
		metrics.PendingSwept.Add(float64(removed))
	})

	svc := auth.NewService(store, reg, cfg.TOTPIssuer, lg.Named("auth"))
	if cfg.RedisAddr != "" {
		rdb := repo.NewRedis(cfg.RedisAddr)
		defer rdb.Close()
		if err := rdb.Ping(initCtx); err != nil {
			lg.Warn("redis unreachable, failure limiter fails open", zap.Error(err))
		}
		svc.Limiter = repo.NewFailureLimiter(rdb, cfg.LoginMaxFailures, cfg.LoginFailureWindow)
		health["redis"] = rdb
	}

	sessions := session.NewStore(store, time.Duration(cfg.SessionTTLDays)*24*time.Hour, cfg.CookieSecure, []byte(cfg.SessionSecret))

	h := api.NewHandler(svc, sessions, store, lg)
	h.Health = health
	h.CookieSecure = cfg.CookieSecure

	if cfg.GoogleEnabled() {
		h.Google = oauth.NewGoogle(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURI, cfg.OAuthStateSecret)
	} else {
		lg.Info("google sign-in disabled: client credentials not set")
	}

	var prio demo.Prioritizer = ai.Heuristic{}
	if cfg.GeminiAPIKey != "" {
		client := ai.NewClient(cfg.GeminiBaseURL, cfg.GeminiAPIKey, lg.Named("ai"))
		h.AI = client
		prio = client
	} else {
		lg.Info("assistant disabled: GEMINI_API_KEY not set")
	}
	h.Seed = demo.NewSeeder(store, prio, lg.Named("demo"))

	if cfg.RabbitURL != "" {
		pub, err := queue.NewRabbit(cfg.RabbitURL, cfg.RabbitExchange)
		if err != nil {
			lg.Fatal("rabbit publisher", zap.Error(err))
		}
		defer pub.Close()
		h.Events = pub

		cons, err := queue.NewConsumer(cfg.RabbitURL, cfg.RabbitExchange, cfg.RabbitQueue, queue.BindKeys, lg.Named("consumer"))
		if err != nil {
			lg.Fatal("rabbit consumer", zap.Error(err))
		}
		defer cons.Close()
		nh := notify.NewHandler(store, lg.Named("notify"))
		go func() {
			if err := cons.Consume(ctx, cfg.RabbitConcurrency, nh.Handle); err != nil && ctx.Err() == nil {
				log.Errorf("consumer stopped: %v", err)
			}
		}()
	}

	metrics.MustRegister(reg.Len)
	docs.SwaggerInfo.BasePath = "/"

	srv := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: api.NewRouter(h, api.RouterOptions{
			ServiceName:    serviceName,
			Tracing:        cfg.DDEnabled,
			IPRatePerMin:   cfg.AuthIPRatePerMin,
			TrustedProxies: cfg.TrustedProxies,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() { srvErr <- srv.ListenAndServe() }()
	log.Infof("syncora listening on %s (env=%s)", srv.Addr, cfg.Env)

	select {
	case <-ctx.Done():
		lg.Info("shutting down")
	case err := <-srvErr:
		if !errors.Is(err, http.ErrServerClosed) {
			lg.Error("server error", zap.Error(err))
		}
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Error("shutdown", zap.Error(err))
	}
}
