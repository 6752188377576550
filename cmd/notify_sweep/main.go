// Command notify_sweep runs one notification retry pass. Schedule it from cron.
package main

import (
	"context"
	"time"

	"kutable/internal/config"
	"kutable/internal/database"
	"kutable/internal/modules/notification"
	"kutable/internal/pkg/logger"
	"kutable/internal/pkg/resendx"
	"kutable/internal/pkg/twiliox"
	"kutable/internal/repository"
	"kutable/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logger.Init("", "info")
		boot.Fatal().Err(err).Msg("config")
	}
	log := logger.Init(cfg.AppEnv, cfg.LogLevel).With().Str("job", "notify_sweep").Logger()

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect failed")
	}

	sms := twiliox.New(twiliox.Options{
		AccountSID:          cfg.Twilio.AccountSID,
		AuthToken:           cfg.Twilio.AuthToken,
		MessagingServiceSID: cfg.Twilio.MessagingServiceSID,
		StatusCallbackURL:   server.TwilioCallbackURL(cfg.PublicURL),
	})
	svc := notification.NewService(
		repository.NewNotificationRepository(db),
		sms,
		resendx.New(cfg.Resend.APIKey, cfg.Resend.FromAddress),
		notification.Config{
			DefaultRegion: cfg.Notify.DefaultRegion,
			MaxAttempts:   cfg.Notify.MaxAttempts,
			RetryBatch:    cfg.Notify.RetryBatch,
		},
		log,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	res, err := svc.RetryFailed(ctx, time.Now().UTC())
	if err != nil {
		log.Fatal().Err(err).Msg("retry sweep failed")
	}
	log.Info().
		Int("scanned", res.Scanned).
		Int("retried", res.Retried).
		Int("succeeded", res.Succeeded).
		Int("failed", res.Failed).
		Msg("notification sweep completed")
}
