package database

import (
	"fmt"

	"gorm.io/gorm"
)

var constraints = []struct {
	name string
	sql  string
}{
	{
		// At most one courtesy category per event
		name: "idx_ticket_categories_courtesy_event",
		sql: `CREATE UNIQUE INDEX IF NOT EXISTS idx_ticket_categories_courtesy_event
			ON ticket_categories (event_id) WHERE is_courtesy`,
	},
	{
		name: "chk_ticket_categories_available_le_total",
		sql: `DO $$ BEGIN
			IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_ticket_categories_available_le_total') THEN
				ALTER TABLE ticket_categories
				ADD CONSTRAINT chk_ticket_categories_available_le_total CHECK (available_quantity <= total_quantity);
			END IF;
		END $$`,
	},
	{
		name: "chk_pricing_batches_sold_le_quantity",
		sql: `DO $$ BEGIN
			IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_pricing_batches_sold_le_quantity') THEN
				ALTER TABLE pricing_batches
				ADD CONSTRAINT chk_pricing_batches_sold_le_quantity CHECK (sold_quantity <= quantity);
			END IF;
		END $$`,
	},
	{
		name: "idx_withdrawals_organization_status",
		sql: `CREATE INDEX IF NOT EXISTS idx_withdrawals_organization_status
			ON withdrawals (organization_id, status)`,
	},
	{
		name: "idx_payment_transactions_event_status",
		sql: `CREATE INDEX IF NOT EXISTS idx_payment_transactions_event_status
			ON payment_transactions (event_id, status)`,
	},
}

// MigrateConstraints adds the invariants gorm tags cannot express
func MigrateConstraints(db *gorm.DB) error {
	for _, c := range constraints {
		if err := db.Exec(c.sql).Error; err != nil {
			return fmt.Errorf("failed to apply %s: %w", c.name, err)
		}
	}
	return nil
}
