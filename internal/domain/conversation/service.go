package conversation

import (
	"context"

	"github.com/rs/zerolog"

	"jan-server/services/chat-api/internal/utils/platformerrors"
)

// maxCreateAttempts bounds identifier regeneration when a freshly generated
// ID collides with an existing conversation.
const maxCreateAttempts = 3

// IDGenerator produces public conversation identifiers.
type IDGenerator interface {
	NewID() string
}

// ChatInput is one validated chat turn request.
type ChatInput struct {
	ModelName      ModelName
	Message        string
	ConversationID string
}

// Service describes the conversation use cases.
type Service interface {
	Start(ctx context.Context, model ModelName) (*Conversation, error)
	Chat(ctx context.Context, input ChatInput) (*Conversation, error)
	Get(ctx context.Context, publicID string) (*Conversation, error)
	List(ctx context.Context) ([]*Conversation, error)
}

type service struct {
	repo    Repository
	gateway InferenceGateway
	ids     IDGenerator
	log     zerolog.Logger
}

// NewService wires the conversation service with its collaborators.
func NewService(repo Repository, gateway InferenceGateway, ids IDGenerator, log zerolog.Logger) Service {
	return &service{
		repo:    repo,
		gateway: gateway,
		ids:     ids,
		log:     log.With().Str("component", "conversation-service").Logger(),
	}
}

func (s *service) Start(ctx context.Context, model ModelName) (*Conversation, error) {
	if !model.Valid() {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			"unsupported model_name", nil, "conv-start-invalid-model")
	}

	var lastErr error
	for attempt := 1; attempt <= maxCreateAttempts; attempt++ {
		conv := NewConversation(s.ids.NewID(), model)
		err := s.repo.Create(ctx, conv)
		if err == nil {
			s.log.Info().
				Str("conversation_id", conv.PublicID).
				Str("model_name", string(model)).
				Msg("conversation started")
			return conv, nil
		}
		if !platformerrors.IsErrorType(err, platformerrors.ErrorTypeConflict) {
			return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to start conversation")
		}
		s.log.Warn().
			Str("conversation_id", conv.PublicID).
			Int("attempt", attempt).
			Msg("conversation id collision, regenerating")
		lastErr = err
	}

	return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeInternal,
		"exhausted conversation id attempts", lastErr, "conv-start-id-exhausted")
}

// Chat runs one chat turn: lookup, inference, then an atomic append of the
// user message and the generated reply. Nothing is appended when any step fails.
// The turn is detached from caller cancellation; the gateway timeout bounds it.
func (s *service) Chat(ctx context.Context, input ChatInput) (*Conversation, error) {
	ctx = context.WithoutCancel(ctx)

	conv, err := s.repo.FindByPublicID(ctx, input.ConversationID)
	if err != nil {
		if platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound) {
			return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeNotFound,
				"conversation not found", err, "conv-chat-not-found")
		}
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to load conversation")
	}

	if conv.ModelName != input.ModelName {
		s.log.Debug().
			Str("conversation_id", conv.PublicID).
			Str("conversation_model", string(conv.ModelName)).
			Str("requested_model", string(input.ModelName)).
			Msg("chat turn routed to a different model than the conversation was started with")
	}

	generated, err := s.gateway.Query(ctx, InferenceRequest{
		ModelName:      input.ModelName,
		Message:        input.Message,
		ConversationID: conv.PublicID,
	})
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "inference failed")
	}

	updated, err := s.repo.AppendMessages(ctx, conv.PublicID, NewTurn(input.Message, generated))
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to record chat turn")
	}

	s.log.Debug().
		Str("conversation_id", updated.PublicID).
		Int("messages", len(updated.Messages)).
		Msg("chat turn recorded")
	return updated, nil
}

func (s *service) Get(ctx context.Context, publicID string) (*Conversation, error) {
	conv, err := s.repo.FindByPublicID(ctx, publicID)
	if err != nil {
		if platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound) {
			return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeNotFound,
				"conversation not found", err, "conv-get-not-found")
		}
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to fetch conversation")
	}
	return conv, nil
}

func (s *service) List(ctx context.Context) ([]*Conversation, error) {
	conversations, err := s.repo.List(ctx)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to list conversations")
	}
	return conversations, nil
}
