package conversation

import (
	"strings"
	"time"

	"marketplace-chat/internal/domain"
	"marketplace-chat/internal/domain/user"

	"github.com/google/uuid"
)

const provisionalPrefix = "provisional-"

// Summary is the denormalized copy of a conversation's latest message.
type Summary struct {
	Content   string             `json:"content"`
	Kind      domain.MessageKind `json:"kind"`
	CreatedAt time.Time          `json:"created_at"`
}

type Conversation struct {
	ID               string    `json:"id"`
	OtherParticipant user.Ref  `json:"other_participant"`
	AdID             string    `json:"ad_id,omitempty"`
	AdTitle          string    `json:"ad_title"`
	LastMessage      Summary   `json:"last_message"`
	UnreadCount      int       `json:"unread_count"`
	UpdatedAt        time.Time `json:"updated_at"`
	// IsProvisional marks an entry inserted locally before the backend
	// assigned an id.
	IsProvisional bool `json:"is_provisional,omitempty"`
}

// MarkRead lowers the unread counter by n, never below zero.
func (c *Conversation) MarkRead(n int) {
	if n <= 0 {
		return
	}
	c.UnreadCount -= n
	if c.UnreadCount < 0 {
		c.UnreadCount = 0
	}
}

// NewProvisionalID returns a local id for a conversation awaiting its server id.
func NewProvisionalID() string {
	return provisionalPrefix + uuid.NewString()
}

func IsProvisionalID(id string) bool {
	return strings.HasPrefix(id, provisionalPrefix)
}
