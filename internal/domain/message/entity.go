package message

import (
	"strings"
	"time"

	"marketplace-chat/internal/domain"

	"github.com/google/uuid"
)

const temporaryPrefix = "tmp-"

type Message struct {
	ID             string               `json:"id"`
	ConversationID string               `json:"conversation_id"`
	SenderID       string               `json:"sender_id"`
	Content        string               `json:"content"`
	Kind           domain.MessageKind   `json:"kind"`
	CreatedAt      time.Time            `json:"created_at"`
	DeliveryState  domain.DeliveryState `json:"delivery_state"`
	Read           bool                 `json:"read"`
}

func (m Message) IsMine(currentUserID string) bool {
	return currentUserID != "" && m.SenderID == currentUserID
}

func (m Message) IsTemporary() bool {
	return IsTemporaryID(m.ID)
}

// Pending reports whether the message exists only on this client.
func (m Message) Pending() bool {
	return m.DeliveryState == domain.DeliveryStateSending || m.DeliveryState == domain.DeliveryStateFailed
}

// NewTemporaryID returns a session-unique id for a message the backend has not acknowledged.
func NewTemporaryID() string {
	return temporaryPrefix + uuid.NewString()
}

func IsTemporaryID(id string) bool {
	return strings.HasPrefix(id, temporaryPrefix)
}
