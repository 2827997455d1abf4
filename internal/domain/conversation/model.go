package conversation

import (
	"time"
)

// ModelName identifies the inference model a conversation is routed to.
type ModelName string

const (
	ModelLlama2  ModelName = "Llama2"
	ModelMistral ModelName = "Mistral"
)

// SupportedModels lists every model the inference backend serves.
var SupportedModels = []ModelName{ModelLlama2, ModelMistral}

// Valid reports whether m is one of SupportedModels.
func (m ModelName) Valid() bool {
	for _, supported := range SupportedModels {
		if m == supported {
			return true
		}
	}
	return false
}

// ParseModelName converts raw input into a ModelName. Matching is exact.
func ParseModelName(raw string) (ModelName, bool) {
	m := ModelName(raw)
	return m, m.Valid()
}

// Role is the author of a message.
type Role string

const (
	RoleUser Role = "user"
	RoleAI   Role = "ai"
)

// Message is one turn in a conversation. Its position in
// Conversation.Messages is its identity.
type Message struct {
	Role      Role
	Content   string
	CreatedAt time.Time
}

// Conversation is a sequence of exchanged messages tied to one model.
// Messages only ever grow by appending.
type Conversation struct {
	ID        uint
	PublicID  string
	ModelName ModelName
	Messages  []Message
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewConversation returns an empty conversation for the given model.
func NewConversation(publicID string, model ModelName) *Conversation {
	now := time.Now().UTC()
	return &Conversation{
		PublicID:  publicID,
		ModelName: model,
		Messages:  []Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewTurn builds the user message and generated reply recorded for one chat turn.
func NewTurn(userContent, generated string) []Message {
	now := time.Now().UTC()
	return []Message{
		{Role: RoleUser, Content: userContent, CreatedAt: now},
		{Role: RoleAI, Content: generated, CreatedAt: now},
	}
}
