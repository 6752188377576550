package database

import (
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	_ "modernc.org/sqlite"

	"kutable/internal/domain"
)

func Connect(dsn string) (*gorm.DB, error) {
	cfg := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		NowFunc:        func() time.Time { return time.Now().UTC() },
		TranslateError: true,
	}

	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		log.Info().Msg("connecting to postgres")
		return gorm.Open(postgres.Open(dsn), cfg)
	}

	log.Info().Str("dsn", dsn).Msg("using sqlite for local development")

	return gorm.Open(
		gormsqlite.New(gormsqlite.Config{
			DriverName: "sqlite",
			DSN:        dsn,
		}),
		cfg,
	)
}

// Models lists every table the service owns, in dependency order.
func Models() []any {
	return []any{
		&domain.User{},
		&domain.BarberProfile{},
		&domain.BarberService{},
		&domain.StripeAccount{},
		&domain.Booking{},
		&domain.ClaimToken{},
		&domain.Notification{},
		&domain.PlatformTransaction{},
	}
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}
