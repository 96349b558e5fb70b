package database

import (
	"boxoffice/internal/events"
	"boxoffice/internal/inventory"
	"boxoffice/internal/payments"
	"boxoffice/internal/settlement"

	"gorm.io/gorm"
)

// Migrate creates the schema. The uuid extension has to exist before any
// table with a uuid_generate_v4() default.
func Migrate(db *gorm.DB) error {
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`).Error; err != nil {
		return err
	}

	err := db.AutoMigrate(
		&events.Event{},
		&events.EventFeeSettings{},
		&inventory.TicketCategory{},
		&inventory.PricingBatch{},
		&inventory.Ticket{},
		&payments.PaymentTransaction{},
		&settlement.Organization{},
		&settlement.Withdrawal{},
	)
	if err != nil {
		return err
	}

	return MigrateConstraints(db)
}
