package database

import (
	"context"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"jan-server/services/chat-api/internal/infrastructure/database/entities"
)

// AutoMigrate applies database schema changes for the conversation store.
func AutoMigrate(ctx context.Context, db *gorm.DB, log zerolog.Logger) error {
	if err := db.WithContext(ctx).AutoMigrate(
		&entities.Conversation{},
		&entities.ConversationMessage{},
	); err != nil {
		return err
	}

	var count int64
	if err := db.WithContext(ctx).Model(&entities.Conversation{}).Count(&count).Error; err != nil {
		return err
	}
	log.Info().Int64("conversations", count).Msg("database schema up to date")
	return nil
}
