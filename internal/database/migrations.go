package database

import (
	"github.com/devsmilefactory/moversfinder-sub006/internal/models"
	"gorm.io/gorm"
)

func RunMigrations(db *gorm.DB) error {
	// Create tables if they don't exist
	err := db.AutoMigrate(
		&models.User{},
		&models.Request{},
		&models.Offer{},
		&models.ProviderAvailability{},
	)
	if err != nil {
		return err
	}

	// Status domains are enforced in the database as well; the engine is not
	// the only conceivable writer.
	db.Exec(`ALTER TABLE users DROP CONSTRAINT IF EXISTS users_user_type_check`)
	if err := db.Exec(`ALTER TABLE users ADD CONSTRAINT users_user_type_check CHECK (user_type IN ('requester', 'provider'))`).Error; err != nil {
		return err
	}

	db.Exec(`ALTER TABLE requests DROP CONSTRAINT IF EXISTS requests_status_check`)
	if err := db.Exec(`ALTER TABLE requests ADD CONSTRAINT requests_status_check CHECK (status IN ('pending', 'active', 'completed', 'cancelled', 'expired'))`).Error; err != nil {
		return err
	}

	db.Exec(`ALTER TABLE requests DROP CONSTRAINT IF EXISTS requests_timing_class_check`)
	if err := db.Exec(`ALTER TABLE requests ADD CONSTRAINT requests_timing_class_check CHECK (timing_class IN ('instant', 'scheduled'))`).Error; err != nil {
		return err
	}

	db.Exec(`ALTER TABLE offers DROP CONSTRAINT IF EXISTS offers_status_check`)
	if err := db.Exec(`ALTER TABLE offers ADD CONSTRAINT offers_status_check CHECK (status IN ('pending', 'accepted', 'rejected', 'withdrawn'))`).Error; err != nil {
		return err
	}

	// At most one accepted offer can ever exist per request.
	if err := db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_offers_one_accepted ON offers (request_id) WHERE status = 'accepted'`).Error; err != nil {
		return err
	}

	return nil
}
