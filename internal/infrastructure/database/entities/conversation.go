package entities

import (
	"time"

	"jan-server/services/chat-api/internal/domain/conversation"
)

// Conversation represents the database schema for conversations.
// MessageCount is the append cursor: messages are inserted at sequences
// MessageCount, MessageCount+1, ... and the counter is advanced with a
// compare-and-set in the same transaction.
type Conversation struct {
	ID           uint      `gorm:"primaryKey"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime;index:idx_conversation_activity"`
	PublicID     string    `gorm:"type:varchar(64);uniqueIndex;not null"`
	ModelName    string    `gorm:"type:varchar(32);not null"`
	MessageCount int       `gorm:"not null;default:0"`

	Messages []ConversationMessage `gorm:"foreignKey:ConversationID"`
}

// TableName specifies the table name for Conversation.
func (Conversation) TableName() string {
	return "conversations"
}

// ConversationMessage stores one message of a conversation at a fixed position.
type ConversationMessage struct {
	ID             uint      `gorm:"primaryKey"`
	ConversationID uint      `gorm:"uniqueIndex:idx_conversation_message_sequence;not null"`
	Sequence       int       `gorm:"uniqueIndex:idx_conversation_message_sequence;not null"`
	Role           string    `gorm:"type:varchar(16);not null"`
	Content        string    `gorm:"type:text;not null"`
	CreatedAt      time.Time `gorm:"autoCreateTime"`
}

// TableName specifies the table name for ConversationMessage.
func (ConversationMessage) TableName() string {
	return "conversation_messages"
}

// NewSchemaConversation maps a domain conversation to its schema row.
// Messages are written separately through the append path.
func NewSchemaConversation(conv *conversation.Conversation) *Conversation {
	return &Conversation{
		ID:           conv.ID,
		CreatedAt:    conv.CreatedAt,
		UpdatedAt:    conv.UpdatedAt,
		PublicID:     conv.PublicID,
		ModelName:    string(conv.ModelName),
		MessageCount: len(conv.Messages),
	}
}

// NewSchemaMessages maps domain messages to rows starting at sequence start.
func NewSchemaMessages(conversationID uint, start int, messages []conversation.Message) []ConversationMessage {
	rows := make([]ConversationMessage, len(messages))
	for i, msg := range messages {
		rows[i] = ConversationMessage{
			ConversationID: conversationID,
			Sequence:       start + i,
			Role:           string(msg.Role),
			Content:        msg.Content,
			CreatedAt:      msg.CreatedAt,
		}
	}
	return rows
}

// EtoD converts the schema row, with preloaded messages, to the domain entity.
func (c *Conversation) EtoD() *conversation.Conversation {
	messages := make([]conversation.Message, len(c.Messages))
	for i, msg := range c.Messages {
		messages[i] = conversation.Message{
			Role:      conversation.Role(msg.Role),
			Content:   msg.Content,
			CreatedAt: msg.CreatedAt,
		}
	}
	return &conversation.Conversation{
		ID:        c.ID,
		PublicID:  c.PublicID,
		ModelName: conversation.ModelName(c.ModelName),
		Messages:  messages,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}
