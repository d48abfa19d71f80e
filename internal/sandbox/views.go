package sandbox

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

const timeLayout = "2006-01-02 15:04:05"

// conversationView renders a record in the backend's snake_case shape with
// unread counts from userID's point of view.
func (b *Backend) conversationView(c *conversationRecord, userID string) gin.H {
	p1, p2 := b.profiles[c.User1ID], b.profiles[c.User2ID]
	view := gin.H{
		"conversation_id": c.ID,
		"user1_id":        c.User1ID,
		"user1_name":      p1.Name,
		"user1_avatar":    p1.Avatar,
		"user2_id":        c.User2ID,
		"user2_name":      p2.Name,
		"user2_avatar":    p2.Avatar,
		"ad_id":           c.AdID,
		"ad_title":        b.ads[c.AdID],
		"updated_at":      c.UpdatedAt.UTC().Format(timeLayout),
	}
	unread := 0
	var last *messageRecord
	for _, m := range b.visibleMessages(c, userID) {
		if m.SenderID != userID && !m.Read {
			unread++
		}
		last = m
	}
	view["unread_count"] = unread
	if last != nil {
		view["last_message"] = last.content()
		view["last_message_type"] = string(last.Type)
		view["last_message_time"] = last.CreatedAt.UTC().Format(timeLayout)
	}
	return view
}

func (m *messageRecord) content() string {
	if m.MediaURL != "" {
		return m.MediaURL
	}
	return m.Text
}

func messageView(m *messageRecord) gin.H {
	view := gin.H{
		"message_id":      m.ID,
		"conversation_id": m.ConversationID,
		"sender_id":       m.SenderID,
		"message_type":    string(m.Type),
		"message_text":    m.Text,
		"created_at":      m.CreatedAt.UTC().Format(time.RFC3339Nano),
		"is_read":         boolInt(m.Read),
	}
	if m.MediaURL != "" {
		view["media_url"] = m.MediaURL
	}
	return view
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

// ConversationList renders userID's conversations in the configured shape.
func (b *Backend) ConversationList(userID string) any {
	b.mu.Lock()
	defer b.mu.Unlock()
	items := make([]gin.H, 0)
	for _, c := range b.conversationsFor(userID) {
		items = append(items, b.conversationView(c, userID))
	}
	switch b.shapes.ConversationList {
	case ListShapeConversations:
		return gin.H{"conversations": items}
	case ListShapeData:
		return gin.H{"success": true, "data": items}
	}
	return items
}

// Messages returns nil when userID sees no messages.
func (b *Backend) Messages(conversationID, userID string) ([]gin.H, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, err := b.conversation(conversationID, userID)
	if err != nil {
		return nil, err
	}
	var out []gin.H
	for _, m := range b.visibleMessages(c, userID) {
		out = append(out, messageView(m))
	}
	return out, nil
}

func (b *Backend) uploadView(ref string) any {
	switch b.shapes.Upload {
	case UploadShapeNested:
		return gin.H{"success": true, "data": gin.H{"file_url": ref}}
	case UploadShapeString:
		return ref
	}
	return gin.H{"url": ref}
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
