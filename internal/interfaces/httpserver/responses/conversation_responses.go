package responses

import (
	"jan-server/services/chat-api/internal/domain/conversation"
)

// MessageResponse is one message as exposed to clients.
type MessageResponse struct {
	Role    string `json:"role" example:"user"`
	Content string `json:"content" example:"hi"`
}

// ConversationResponse is the client facing conversation shape. Storage
// fields (row ids, timestamps, sequence numbers) are not exposed.
type ConversationResponse struct {
	ConversationID string            `json:"conversation_id" example:"abc123xyz"`
	ModelName      string            `json:"model_name" example:"Llama2"`
	Messages       []MessageResponse `json:"messages"`
}

// ConversationEnvelope wraps a single conversation.
type ConversationEnvelope struct {
	Conversation ConversationResponse `json:"conversation"`
}

// ConversationListEnvelope wraps the conversation listing.
type ConversationListEnvelope struct {
	Conversations []ConversationResponse `json:"conversations"`
}

// FromConversation maps a domain conversation. Messages is never null.
func FromConversation(conv *conversation.Conversation) ConversationResponse {
	messages := make([]MessageResponse, len(conv.Messages))
	for i, msg := range conv.Messages {
		messages[i] = MessageResponse{
			Role:    string(msg.Role),
			Content: msg.Content,
		}
	}
	return ConversationResponse{
		ConversationID: conv.PublicID,
		ModelName:      string(conv.ModelName),
		Messages:       messages,
	}
}

// NewConversationEnvelope builds the {conversation} body.
func NewConversationEnvelope(conv *conversation.Conversation) ConversationEnvelope {
	return ConversationEnvelope{Conversation: FromConversation(conv)}
}

// NewConversationListEnvelope builds the {conversations} body, keeping order.
func NewConversationListEnvelope(conversations []*conversation.Conversation) ConversationListEnvelope {
	items := make([]ConversationResponse, len(conversations))
	for i, conv := range conversations {
		items[i] = FromConversation(conv)
	}
	return ConversationListEnvelope{Conversations: items}
}
