// Package server assembles repositories, services and handlers into the HTTP router.
package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"kutable/internal/config"
	"kutable/internal/middleware"
	"kutable/internal/modules/claim"
	"kutable/internal/modules/connect"
	"kutable/internal/modules/notification"
	"kutable/internal/modules/payment"
	"kutable/internal/modules/webhook"
	jwtsvc "kutable/internal/pkg/jwt"
	"kutable/internal/pkg/response"
	"kutable/internal/repository"
)

// StripeGateway is everything the modules need from Stripe.
type StripeGateway interface {
	connect.Gateway
	payment.Gateway
	webhook.EventVerifier
}

// Providers holds the external clients. Tests swap in fakes.
type Providers struct {
	Stripe          StripeGateway
	SMS             notification.SMSSender
	Email           notification.EmailSender
	TwilioValidator notification.TwilioSignatureValidator
	// EmailVerifier may be nil when no Resend webhook secret is configured.
	EmailVerifier notification.EmailWebhookVerifier
	// Limiter may be nil, which disables rate limiting.
	Limiter middleware.Limiter
}

type Server struct {
	Router        *gin.Engine
	Notifications *notification.Service
	Webhooks      *webhook.Service
	Claims        *claim.Service
}

func New(cfg *config.Config, db *gorm.DB, p Providers, log zerolog.Logger) *Server {
	bookingRepo := repository.NewBookingRepository(db)
	barberRepo := repository.NewBarberRepository(db)
	accountRepo := repository.NewStripeAccountRepository(db)
	claimTokenRepo := repository.NewClaimTokenRepository(db)
	userRepo := repository.NewUserRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	notificationService := notification.NewService(notificationRepo, p.SMS, p.Email, notification.Config{
		DefaultRegion: cfg.Notify.DefaultRegion,
		MaxAttempts:   cfg.Notify.MaxAttempts,
		RetryBatch:    cfg.Notify.RetryBatch,
	}, log)
	notificationHandler := notification.NewHandler(notificationService, notification.HandlerConfig{
		TwilioCallbackURL: TwilioCallbackURL(cfg.PublicURL),
		TwilioValidator:   p.TwilioValidator,
		EmailVerifier:     p.EmailVerifier,
	}, log)

	connectService := connect.NewService(p.Stripe, accountRepo, barberRepo, log)
	connectHandler := connect.NewHandler(connectService)

	paymentService := payment.NewService(p.Stripe, connectService, bookingRepo, barberRepo, payment.Config{
		FeeRate:        cfg.Fees.PlatformFeeRate,
		Currency:       cfg.Stripe.Currency,
		AllowLocalHTTP: !cfg.IsProduction(),
	}, log)
	paymentHandler := payment.NewHandler(paymentService)

	webhookService := webhook.NewService(p.Stripe, bookingRepo, ledgerRepo, connectService, notificationService, cfg.Notify.DispatchTimeout, log)
	webhookHandler := webhook.NewHandler(webhookService)

	claimService := claim.NewService(barberRepo, claimTokenRepo, userRepo, notificationService, claim.Config{
		AppURL:          cfg.AppURL,
		TokenTTL:        cfg.Claim.TokenTTL,
		DispatchTimeout: cfg.Notify.DispatchTimeout,
	}, log)
	claimHandler := claim.NewHandler(claimService)

	j := jwtsvc.New(cfg.Supabase.JWTSecret, cfg.Supabase.JWTIssuer())

	r := gin.New()
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.ErrorLogger(log))
	r.Use(middleware.CORS(cfg.CORSOrigins))

	r.GET("/healthz", healthz(db))

	api := r.Group("/api")
	{
		// public
		paymentHandler.RegisterRoutes(api)
		webhookHandler.RegisterRoutes(api)
		notificationHandler.RegisterCallbackRoutes(api)

		claims := api.Group("")
		claims.Use(middleware.RateLimit(p.Limiter, cfg.Limits.ClaimPerMinute, time.Minute, log))
		claims.Use(middleware.OptionalJWTAuth(j))
		claimHandler.RegisterRoutes(claims)

		// signed-in barbers
		protected := api.Group("")
		protected.Use(middleware.JWTAuth(j))
		connectHandler.RegisterRoutes(protected)

		// service-to-service
		internal := api.Group("")
		internal.Use(middleware.InternalTokenAuth(cfg.Supabase.ServiceRoleKey, log))
		notificationHandler.RegisterInternalRoutes(internal)
	}

	return &Server{
		Router:        r,
		Notifications: notificationService,
		Webhooks:      webhookService,
		Claims:        claimService,
	}
}

// Drain waits for fire-and-forget dispatches, bounded by ctx.
func (s *Server) Drain(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		s.Webhooks.Wait()
		s.Claims.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}

func TwilioCallbackURL(publicURL string) string {
	return strings.TrimRight(publicURL, "/") + "/api/twilio-status"
}

func healthz(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			response.Error(c, http.StatusServiceUnavailable, "DB_UNAVAILABLE", "database unreachable")
			return
		}
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	}
}
