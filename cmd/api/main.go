package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"kutable/internal/config"
	"kutable/internal/database"
	"kutable/internal/middleware"
	"kutable/internal/pkg/logger"
	"kutable/internal/pkg/resendx"
	"kutable/internal/pkg/stripex"
	"kutable/internal/pkg/twiliox"
	"kutable/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logger.Init("", "info")
		boot.Fatal().Err(err).Msg("config")
	}
	log := logger.Init(cfg.AppEnv, cfg.LogLevel)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect failed")
	}
	if err := database.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate failed")
	}

	stripeClient := stripex.New(stripex.Options{
		SecretKey:     cfg.Stripe.SecretKey,
		WebhookSecret: cfg.Stripe.WebhookSecret,
		Country:       cfg.Stripe.Country,
		AppURL:        cfg.AppURL,
	})
	sms := twiliox.New(twiliox.Options{
		AccountSID:          cfg.Twilio.AccountSID,
		AuthToken:           cfg.Twilio.AuthToken,
		MessagingServiceSID: cfg.Twilio.MessagingServiceSID,
		StatusCallbackURL:   server.TwilioCallbackURL(cfg.PublicURL),
	})

	providers := server.Providers{
		Stripe:          stripeClient,
		SMS:             sms,
		Email:           resendx.New(cfg.Resend.APIKey, cfg.Resend.FromAddress),
		TwilioValidator: sms,
	}

	if cfg.Resend.WebhookSecret != "" {
		verifier, err := resendx.NewWebhookVerifier(cfg.Resend.WebhookSecret)
		if err != nil {
			log.Fatal().Err(err).Msg("resend webhook secret")
		}
		providers.EmailVerifier = verifier
	} else {
		log.Warn().Msg("RESEND_WEBHOOK_SECRET not set, email delivery events are disabled")
	}

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid REDIS_URL")
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()
		providers.Limiter = middleware.NewRedisLimiter(rdb)
	} else {
		log.Warn().Msg("REDIS_URL not set, rate limiting is disabled")
	}

	srv := server.New(cfg, db, providers, log)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", httpServer.Addr).Str("env", cfg.AppEnv).Msg("listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	srv.Drain(shutdownCtx)
}
