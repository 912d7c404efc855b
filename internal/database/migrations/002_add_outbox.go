package migrations

import (
	"github.com/ksred/klear-trading/internal/events"
	"gorm.io/gorm"
)

// AddOutbox creates the event outbox table and the index the relay polls on
func AddOutbox(db *gorm.DB) error {
	if err := db.AutoMigrate(&events.OutboxMessage{}); err != nil {
		return err
	}

	return db.Exec(`CREATE INDEX IF NOT EXISTS idx_outbox_messages_status_created
		ON outbox_messages(status, created_at)`).Error
}
