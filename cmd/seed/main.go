package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"kutable/internal/database"
	"kutable/internal/domain"
)

// Fixed ids so repeated runs update in place and local tokens stay valid.
const (
	barberUserID  = "11111111-0000-0000-0000-000000000001"
	clientUserID  = "11111111-0000-0000-0000-000000000002"
	claimedID     = "22222222-0000-0000-0000-000000000001"
	unclaimedID   = "22222222-0000-0000-0000-000000000002"
	unclaimedID2  = "22222222-0000-0000-0000-000000000003"
	localAccount  = "acct_local_dev"
	defaultSQLite = "kutable.db"
)

func main() {
	_ = godotenv.Load()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		dsn = defaultSQLite
	}

	db, err := database.Connect(dsn)
	if err != nil {
		log.Fatal("DB connection failed:", err)
	}

	log.Println("Running AutoMigrate...")
	if err := database.Migrate(db); err != nil {
		log.Fatal("AutoMigrate failed:", err)
	}

	log.Println("Creating users...")
	upsert(db, []string{"email", "full_name", "role", "updated_at"}, &[]domain.User{
		{ID: barberUserID, Email: "barber@kutable.local", FullName: "Marcus Cole", Role: domain.RoleBarber},
		{ID: clientUserID, Email: "client@kutable.local", FullName: "Jordan Lee", Role: domain.RoleClient},
	})

	log.Println("Creating barber profiles...")
	owner := barberUserID
	upsert(db, []string{"slug", "business_name", "owner_name", "phone", "email", "city", "is_claimed", "user_id", "updated_at"}, &[]domain.BarberProfile{
		{ID: claimedID, UserID: &owner, Slug: "marcus-cuts", BusinessName: "Marcus Cuts", OwnerName: "Marcus Cole",
			Phone: "+14155550101", Email: "barber@kutable.local", City: "Oakland", IsClaimed: true},
		// imported listings waiting to be claimed
		{ID: unclaimedID, Slug: "fade-factory", BusinessName: "Fade Factory", OwnerName: "Ray Ortiz",
			Phone: "+14155550102", City: "San Jose"},
		{ID: unclaimedID2, Slug: "sharp-lines", BusinessName: "Sharp Lines", City: "Fremont"},
	})

	log.Println("Creating services...")
	upsert(db, []string{"name", "price", "duration_minutes", "is_active", "updated_at"}, &[]domain.BarberService{
		{ID: "33333333-0000-0000-0000-000000000001", BarberID: claimedID, Name: "Skin fade", Price: decimal.RequireFromString("45.00"), DurationMinutes: 45, IsActive: true},
		{ID: "33333333-0000-0000-0000-000000000002", BarberID: claimedID, Name: "Beard trim", Price: decimal.RequireFromString("20.00"), DurationMinutes: 20, IsActive: true},
		{ID: "33333333-0000-0000-0000-000000000003", BarberID: claimedID, Name: "Cut and shave", Price: decimal.RequireFromString("100.00"), DurationMinutes: 75, IsActive: true},
	})

	// Stripe still has to confirm capabilities, so payments stay blocked until
	// check-account-status refreshes this row against a real test-mode account.
	log.Println("Linking Stripe account placeholder...")
	db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "barber_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"stripe_account_id", "updated_at"}),
	}).Create(&domain.StripeAccount{
		BarberID:        claimedID,
		StripeAccountID: localAccount,
		AccountStatus:   domain.StripeAccountPending,
	})

	log.Println("Seed completed!")
	log.Println("Claimed barber: marcus-cuts (owner barber@kutable.local)")
	log.Println("Unclaimed listings: fade-factory, sharp-lines")
}

func upsert(db *gorm.DB, columns []string, rows any) {
	res := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns(columns),
	}).Create(rows)
	if res.Error != nil {
		log.Fatal("seed failed:", res.Error)
	}
}
