package repository

import (
	"fmt"

	"medbridge/internal/domain/conversation"
	"medbridge/internal/domain/diagnostic"
	"medbridge/internal/domain/identity"
	"medbridge/internal/domain/message"
	"medbridge/internal/domain/notification"
	"medbridge/internal/domain/pairing"

	"gorm.io/gorm"
)

// Models lists every table in dependency order.
func Models() []interface{} {
	return []interface{}{
		&identity.User{},
		&pairing.Request{},
		&conversation.Conversation{},
		&conversation.ConversationSequence{},
		&message.Message{},
		&notification.Notification{},
		&diagnostic.Conversation{},
		&diagnostic.Turn{},
	}
}

// TableNames lists tables children first, for truncation.
func TableNames() []string {
	return []string{
		"diagnostic_turns",
		"diagnostic_conversations",
		"notifications",
		"messages",
		"conversation_sequences",
		"conversations",
		"pairing_requests",
		"users",
	}
}

// InitSchema runs the gorm auto-migration and, on Postgres, installs the
// triggers that keep history rows immutable.
func InitSchema(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to auto-migrate: %w", err)
	}

	if db.Dialector.Name() != "postgres" {
		return nil
	}

	fnImmutable := `
	CREATE OR REPLACE FUNCTION fn_reject_update()
	RETURNS trigger LANGUAGE plpgsql AS $$
	BEGIN
		RAISE EXCEPTION '% rows are immutable', TG_TABLE_NAME;
	END;
	$$;`

	if err := db.Exec(fnImmutable).Error; err != nil {
		return fmt.Errorf("failed to create function fn_reject_update: %w", err)
	}

	for _, table := range []string{"messages", "diagnostic_turns", "conversations"} {
		triggerSQL := fmt.Sprintf(`
		DROP TRIGGER IF EXISTS tr_%[1]s_immutable ON %[1]s;
		CREATE TRIGGER tr_%[1]s_immutable
		BEFORE UPDATE ON %[1]s
		FOR EACH ROW
		EXECUTE PROCEDURE fn_reject_update();`, table)

		if err := db.Exec(triggerSQL).Error; err != nil {
			return fmt.Errorf("failed to create trigger tr_%s_immutable: %w", table, err)
		}
	}

	return nil
}
