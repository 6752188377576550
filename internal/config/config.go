package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

// Config is the whole runtime configuration, read from the environment.
// Provider credentials are required so a misconfigured deploy fails at boot.
type Config struct {
	AppEnv    string `envconfig:"APP_ENV" default:"dev"`
	Port      string `envconfig:"PORT" default:"8080"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	AppURL    string `envconfig:"APP_URL" default:"http://localhost:5173"`
	PublicURL string `envconfig:"PUBLIC_URL" default:"http://localhost:8080"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	RedisURL    string `envconfig:"REDIS_URL"`

	CORSOrigins []string `envconfig:"CORS_ORIGINS" default:"http://localhost:5173"`

	// embedded so envconfig reads the inner keys without a prefix
	Supabase
	Stripe
	Twilio
	Resend
	Fees
	Notify
	Claim
	Limits
}

type Supabase struct {
	URL            string `envconfig:"SUPABASE_URL" required:"true"`
	ServiceRoleKey string `envconfig:"SUPABASE_SERVICE_ROLE_KEY" required:"true"`
	JWTSecret      string `envconfig:"SUPABASE_JWT_SECRET" required:"true"`
}

// JWTIssuer is the iss claim Supabase puts on access tokens.
func (s Supabase) JWTIssuer() string {
	return strings.TrimRight(s.URL, "/") + "/auth/v1"
}

type Stripe struct {
	SecretKey     string `envconfig:"STRIPE_SECRET_KEY" required:"true"`
	WebhookSecret string `envconfig:"STRIPE_WEBHOOK_SECRET" required:"true"`
	Currency      string `envconfig:"STRIPE_CURRENCY" default:"usd"`
	Country       string `envconfig:"STRIPE_CONNECT_COUNTRY" default:"US"`
}

type Twilio struct {
	AccountSID          string `envconfig:"TWILIO_ACCOUNT_SID" required:"true"`
	AuthToken           string `envconfig:"TWILIO_AUTH_TOKEN" required:"true"`
	MessagingServiceSID string `envconfig:"TWILIO_MESSAGING_SERVICE_SID" required:"true"`
}

type Resend struct {
	APIKey        string `envconfig:"RESEND_API_KEY" required:"true"`
	FromAddress   string `envconfig:"RESEND_FROM_ADDRESS" required:"true"`
	WebhookSecret string `envconfig:"RESEND_WEBHOOK_SECRET"`
}

type Fees struct {
	PlatformFeeRate decimal.Decimal `envconfig:"PLATFORM_FEE_RATE" default:"0.01"`
}

type Notify struct {
	RetryBatch      int           `envconfig:"NOTIFY_RETRY_BATCH" default:"25"`
	MaxAttempts     int           `envconfig:"NOTIFY_MAX_ATTEMPTS" default:"3"`
	DispatchTimeout time.Duration `envconfig:"NOTIFY_DISPATCH_TIMEOUT" default:"15s"`
	DefaultRegion   string        `envconfig:"NOTIFY_PHONE_REGION" default:"US"`
}

type Claim struct {
	TokenTTL time.Duration `envconfig:"CLAIM_TOKEN_TTL" default:"24h"`
}

type Limits struct {
	ClaimPerMinute int `envconfig:"RATE_LIMIT_CLAIM_PER_MINUTE" default:"20"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production") || strings.EqualFold(c.AppEnv, "prod")
}

func (c *Config) validate() error {
	for key, v := range map[string]string{
		"DATABASE_URL":          c.DatabaseURL,
		"STRIPE_SECRET_KEY":     c.Stripe.SecretKey,
		"STRIPE_WEBHOOK_SECRET": c.Stripe.WebhookSecret,
		"RESEND_API_KEY":        c.Resend.APIKey,
	} {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("%s must not be blank", key)
		}
	}
	if !c.Fees.PlatformFeeRate.IsPositive() || c.Fees.PlatformFeeRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("PLATFORM_FEE_RATE must be between 0 and 1, got %s", c.Fees.PlatformFeeRate)
	}
	if c.Notify.RetryBatch <= 0 {
		return fmt.Errorf("NOTIFY_RETRY_BATCH must be positive")
	}
	if c.Notify.MaxAttempts <= 0 {
		return fmt.Errorf("NOTIFY_MAX_ATTEMPTS must be positive")
	}
	if c.Claim.TokenTTL <= 0 {
		return fmt.Errorf("CLAIM_TOKEN_TTL must be positive")
	}
	if c.IsProduction() && !strings.HasPrefix(c.Stripe.SecretKey, "sk_live_") && !strings.HasPrefix(c.Stripe.SecretKey, "rk_live_") {
		return fmt.Errorf("production requires a live Stripe key")
	}
	return nil
}
