package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domain "jan-server/services/chat-api/internal/domain/conversation"
	"jan-server/services/chat-api/internal/infrastructure/database/entities"
	"jan-server/services/chat-api/internal/utils/platformerrors"
)

// Repository persists conversations and their messages through GORM.
// It runs on PostgreSQL in production and on SQLite for local runs and tests.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a conversation repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts the conversation record.
func (r *Repository) Create(ctx context.Context, conv *domain.Conversation) error {
	entity := entities.NewSchemaConversation(conv)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(entity).Error; err != nil {
			return err
		}
		if len(conv.Messages) == 0 {
			return nil
		}
		rows := entities.NewSchemaMessages(entity.ID, 0, conv.Messages)
		return tx.Create(&rows).Error
	})
	if err != nil {
		if isDuplicateKey(err) {
			return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeConflict,
				fmt.Sprintf("conversation already exists: %s", conv.PublicID), err, "db-create-conflict")
		}
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError,
			"failed to create conversation", err, "db-create-error")
	}

	conv.ID = entity.ID
	conv.CreatedAt = entity.CreatedAt
	conv.UpdatedAt = entity.UpdatedAt
	return nil
}

// FindByPublicID fetches a conversation and its ordered messages.
func (r *Repository) FindByPublicID(ctx context.Context, publicID string) (*domain.Conversation, error) {
	return r.load(ctx, r.db.WithContext(ctx), publicID)
}

// AppendMessages appends messages inside one transaction. The conversation
// row is locked (PostgreSQL), the messages are written at the current append
// cursor, and the cursor is advanced only if it still holds the value that
// was read. A unique (conversation_id, sequence) index backs the same guard.
func (r *Repository) AppendMessages(ctx context.Context, publicID string, messages []domain.Message) (*domain.Conversation, error) {
	var updated *domain.Conversation

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var entity entities.Conversation
		query := tx
		if tx.Dialector.Name() == "postgres" {
			query = query.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		if err := query.Where("public_id = ?", publicID).First(&entity).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound(ctx, publicID, "db-append-not-found")
			}
			return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError,
				"failed to lock conversation", err, "db-append-lock-error")
		}

		if len(messages) > 0 {
			rows := entities.NewSchemaMessages(entity.ID, entity.MessageCount, messages)
			if err := tx.Create(&rows).Error; err != nil {
				if isDuplicateKey(err) {
					return appendConflict(ctx, publicID, err)
				}
				return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError,
					"failed to insert messages", err, "db-append-insert-error")
			}
		}

		result := tx.Model(&entities.Conversation{}).
			Where("id = ? AND message_count = ?", entity.ID, entity.MessageCount).
			Updates(map[string]any{
				"message_count": gorm.Expr("message_count + ?", len(messages)),
				"updated_at":    time.Now().UTC(),
			})
		if result.Error != nil {
			return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError,
				"failed to advance message cursor", result.Error, "db-append-update-error")
		}
		if result.RowsAffected == 0 {
			return appendConflict(ctx, publicID, nil)
		}

		conv, err := r.load(ctx, tx, publicID)
		if err != nil {
			return err
		}
		updated = conv
		return nil
	})
	if err != nil {
		if platformErr := platformerrors.GetPlatformError(err); platformErr != nil {
			return nil, platformErr
		}
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError,
			"failed to commit messages", err, "db-append-commit-error")
	}
	return updated, nil
}

// List returns every conversation ordered by last activity, newest first.
func (r *Repository) List(ctx context.Context) ([]*domain.Conversation, error) {
	var rows []entities.Conversation
	if err := r.db.WithContext(ctx).
		Preload("Messages", orderBySequence).
		Order("updated_at DESC").
		Order("id DESC").
		Find(&rows).Error; err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError,
			"failed to list conversations", err, "db-list-error")
	}

	result := make([]*domain.Conversation, len(rows))
	for i := range rows {
		result[i] = rows[i].EtoD()
	}
	return result, nil
}

func (r *Repository) load(ctx context.Context, db *gorm.DB, publicID string) (*domain.Conversation, error) {
	var entity entities.Conversation
	if err := db.
		Preload("Messages", orderBySequence).
		Where("public_id = ?", publicID).
		First(&entity).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound(ctx, publicID, "db-find-not-found")
		}
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError,
			"failed to fetch conversation", err, "db-find-error")
	}
	return entity.EtoD(), nil
}

func orderBySequence(db *gorm.DB) *gorm.DB {
	return db.Order("sequence ASC")
}

func appendConflict(ctx context.Context, publicID string, err error) error {
	return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeConflict,
		fmt.Sprintf("concurrent append detected for conversation %s", publicID), err, "db-append-conflict")
}

// isDuplicateKey recognises unique violations whether or not the dialect
// translated them into gorm.ErrDuplicatedKey.
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}

var _ domain.Repository = (*Repository)(nil)
