package conversation

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	domain "jan-server/services/chat-api/internal/domain/conversation"
	"jan-server/services/chat-api/internal/utils/platformerrors"
)

// InMemoryRepository is a thread-safe repository useful for demos/tests.
// A single mutex serialises every append, so concurrent chat turns on the
// same conversation never overwrite each other.
type InMemoryRepository struct {
	mu      sync.RWMutex
	entries map[string]*domain.Conversation
	nextID  uint
}

// NewInMemoryRepository returns an empty repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		entries: make(map[string]*domain.Conversation),
	}
}

// Create stores a copy of conv and assigns its internal ID.
func (r *InMemoryRepository) Create(ctx context.Context, conv *domain.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[conv.PublicID]; exists {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeConflict,
			fmt.Sprintf("conversation already exists: %s", conv.PublicID), nil, "mem-create-conflict")
	}

	r.nextID++
	conv.ID = r.nextID
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = time.Now().UTC()
	}
	conv.UpdatedAt = conv.CreatedAt
	if conv.Messages == nil {
		conv.Messages = []domain.Message{}
	}
	r.entries[conv.PublicID] = cloneConversation(conv)
	return nil
}

// FindByPublicID returns a copy of the stored conversation.
func (r *InMemoryRepository) FindByPublicID(ctx context.Context, publicID string) (*domain.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conv, ok := r.entries[publicID]
	if !ok {
		return nil, notFound(ctx, publicID, "mem-find-not-found")
	}
	return cloneConversation(conv), nil
}

// AppendMessages appends messages under the write lock.
func (r *InMemoryRepository) AppendMessages(ctx context.Context, publicID string, messages []domain.Message) (*domain.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conv, ok := r.entries[publicID]
	if !ok {
		return nil, notFound(ctx, publicID, "mem-append-not-found")
	}

	conv.Messages = append(conv.Messages, messages...)
	conv.UpdatedAt = nextTimestamp(conv.UpdatedAt)
	return cloneConversation(conv), nil
}

// List returns copies of every conversation, most recently active first.
func (r *InMemoryRepository) List(ctx context.Context) ([]*domain.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*domain.Conversation, 0, len(r.entries))
	for _, conv := range r.entries {
		result = append(result, cloneConversation(conv))
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].UpdatedAt.Equal(result[j].UpdatedAt) {
			return result[i].UpdatedAt.After(result[j].UpdatedAt)
		}
		return result[i].ID > result[j].ID
	})
	return result, nil
}

// nextTimestamp returns now, nudged forward so activity order stays strict
// even when the clock has not advanced since the previous write.
func nextTimestamp(previous time.Time) time.Time {
	now := time.Now().UTC()
	if !now.After(previous) {
		return previous.Add(time.Microsecond)
	}
	return now
}

func cloneConversation(conv *domain.Conversation) *domain.Conversation {
	clone := *conv
	clone.Messages = make([]domain.Message, len(conv.Messages))
	copy(clone.Messages, conv.Messages)
	return &clone
}

func notFound(ctx context.Context, publicID, code string) error {
	return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound,
		fmt.Sprintf("conversation not found: %s", publicID), nil, code)
}

var _ domain.Repository = (*InMemoryRepository)(nil)
