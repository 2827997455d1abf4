package conversation

import "context"

// Repository owns persistence of conversations and their messages.
//
// FindByPublicID returns a NOT_FOUND platform error for unknown IDs and a
// DATABASE_ERROR for storage failures. Create returns a CONFLICT platform
// error when the public ID is already taken.
type Repository interface {
	Create(ctx context.Context, conv *Conversation) error
	FindByPublicID(ctx context.Context, publicID string) (*Conversation, error)
	// AppendMessages atomically appends messages, in order, to the
	// conversation identified by publicID and returns the stored result.
	// Concurrent appends to the same conversation are serialised; either all
	// messages are recorded or none are.
	AppendMessages(ctx context.Context, publicID string, messages []Message) (*Conversation, error)
	// List returns every conversation, most recently active first.
	List(ctx context.Context) ([]*Conversation, error)
}

// InferenceRequest is the routing context forwarded to the inference backend.
type InferenceRequest struct {
	ModelName      ModelName
	Message        string
	ConversationID string
}

// InferenceGateway sends one chat turn to the inference backend and returns
// the generated text. Failures are EXTERNAL platform errors.
type InferenceGateway interface {
	Query(ctx context.Context, req InferenceRequest) (string, error)
}
