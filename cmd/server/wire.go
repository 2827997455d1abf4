//go:build wireinject

package main

import (
	"context"

	"github.com/google/wire"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"jan-server/services/chat-api/internal/config"
	domain "jan-server/services/chat-api/internal/domain/conversation"
	"jan-server/services/chat-api/internal/infrastructure/auth"
	"jan-server/services/chat-api/internal/infrastructure/database"
	"jan-server/services/chat-api/internal/infrastructure/inference"
	"jan-server/services/chat-api/internal/infrastructure/logger"
	repo "jan-server/services/chat-api/internal/infrastructure/repository/conversation"
	"jan-server/services/chat-api/internal/interfaces/httpserver"
	"jan-server/services/chat-api/internal/utils/idgen"
)

var conversationSet = wire.NewSet(
	repo.NewRepository,
	wire.Bind(new(domain.Repository), new(*repo.Repository)),
	newInferenceClient,
	wire.Bind(new(domain.InferenceGateway), new(*inference.Client)),
	newIDGenerator,
	wire.Bind(new(domain.IDGenerator), new(*idgen.Generator)),
	domain.NewService,
)

// BuildApplication assembles the chat service with Wire.
func BuildApplication(ctx context.Context) (*Application, error) {
	wire.Build(
		config.Load,
		logger.New,
		newDatabaseConfig,
		newGormDB,
		newReadinessCheck,
		newAuthValidator,
		conversationSet,
		httpserver.New,
		NewApplication,
	)
	return nil, nil
}

func newGormDB(ctx context.Context, cfg database.Config, log zerolog.Logger) (*gorm.DB, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, err
	}
	if err := database.AutoMigrate(ctx, db, log); err != nil {
		return nil, err
	}
	return db, nil
}

func newInferenceClient(cfg *config.Config, log zerolog.Logger) *inference.Client {
	return inference.NewClient(cfg.InferenceBaseURL, cfg.InferenceTimeout, newSanitizer(cfg), log)
}

func newIDGenerator(cfg *config.Config) *idgen.Generator {
	return idgen.NewGenerator(cfg.ConversationIDLength)
}

func newAuthValidator(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*auth.Validator, error) {
	return auth.NewValidator(ctx, cfg, log)
}
