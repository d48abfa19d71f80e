package normalize

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"marketplace-chat/internal/domain"
	"marketplace-chat/internal/domain/conversation"
	"marketplace-chat/internal/domain/message"
	"marketplace-chat/internal/domain/user"
	"marketplace-chat/internal/media"
)

// maxErrorText bounds the bytes of a plain-text error body kept in an error.
const maxErrorText = 200

// UnknownParticipant is the display name used when the backend sends none.
const UnknownParticipant = "Unknown user"

var (
	conversationIDKeys = []string{"conversation_id", "conversationId", "id", "_id"}
	messageIDKeys      = []string{"message_id", "messageId", "id", "_id"}
	textKeys           = []string{"message_text", "messageText", "content", "text", "message", "body"}
	imageKeys          = []string{"image_url", "imageUrl", "image", "media_url", "mediaUrl", "file_url", "fileUrl"}
	audioKeys          = []string{"audio_url", "audioUrl", "audio", "media_url", "mediaUrl", "file_url", "fileUrl"}
	readKeys           = []string{"is_read", "isRead", "read", "seen"}
)

type Normalizer struct {
	media media.Resolver
	now   func() time.Time
}

func New(resolver media.Resolver) *Normalizer {
	return &Normalizer{media: resolver, now: time.Now}
}

// WithClock replaces the "now" fallback used for messages without timestamps.
func (n *Normalizer) WithClock(now func() time.Time) *Normalizer {
	n.now = now
	return n
}

// Conversations accepts a bare array, {conversations: [...]} or {data: [...]}.
// Any other shape is an empty list. Records without an id are dropped.
func (n *Normalizer) Conversations(raw []byte, currentUserID string) []conversation.Conversation {
	recs := records(raw, "conversations", "data")
	out := make([]conversation.Conversation, 0, len(recs))
	for _, r := range recs {
		if c, ok := n.conversation(r, currentUserID); ok {
			out = append(out, c)
		}
	}
	return out
}

func (n *Normalizer) conversation(r record, me string) (conversation.Conversation, bool) {
	id := r.str(conversationIDKeys...)
	if id == "" {
		return conversation.Conversation{}, false
	}
	c := conversation.Conversation{
		ID:               id,
		OtherParticipant: n.otherParticipant(r, me),
		AdID:             r.str("ad_id", "adId"),
		AdTitle:          r.str("ad_title", "adTitle", "title"),
		LastMessage:      lastMessage(r),
	}
	if ad := r.obj("ad"); ad != nil {
		if c.AdID == "" {
			c.AdID = ad.str("id", "ad_id")
		}
		if c.AdTitle == "" {
			c.AdTitle = ad.str("title", "name")
		}
	}
	if unread, ok := r.integer("unread_count", "unreadCount", "unread"); ok && unread > 0 {
		c.UnreadCount = unread
	}
	if t, ok := r.time("updated_at", "updatedAt", "last_message_time", "last_message_at", "created_at", "createdAt"); ok {
		c.UpdatedAt = t
	} else {
		c.UpdatedAt = c.LastMessage.CreatedAt
	}
	return c, true
}

func lastMessage(r record) conversation.Summary {
	var s conversation.Summary
	if obj := r.obj("last_message", "lastMessage"); obj != nil {
		s.Kind = domain.ParseMessageKind(obj.str("message_type", "messageType", "type"))
		s.Content = obj.str(append(mediaKeys(s.Kind), textKeys...)...)
		s.CreatedAt, _ = obj.time("timestamp", "created_at", "createdAt")
		return s
	}
	s.Kind = domain.ParseMessageKind(r.str("last_message_type", "lastMessageType"))
	s.Content = r.str("last_message", "lastMessage", "last_message_text", "last_message_content")
	s.CreatedAt, _ = r.time("last_message_time", "last_message_at", "lastMessageAt", "last_message_created_at")
	return s
}

// otherParticipant picks the participant whose id differs from me. When
// neither id matches, the second participant wins.
func (n *Normalizer) otherParticipant(r record, me string) user.Ref {
	if other := r.obj("other_user", "otherUser", "other_participant", "otherParticipant"); other != nil {
		return n.ref(other.str("id", "user_id", "userId"), other.str("name", "display_name", "username"), other.str("avatar", "avatar_url", "profile_image", "image"))
	}
	first := n.participant(r, 1)
	second := n.participant(r, 2)
	if me != "" && second.ID == me && first.ID != me {
		return first
	}
	return second
}

func (n *Normalizer) participant(r record, i int) user.Ref {
	k := func(format string) string { return fmt.Sprintf(format, i) }
	return n.ref(
		r.str(k("user%d_id"), k("user%dId"), k("participant%d_id")),
		r.str(k("user%d_name"), k("user%dName"), k("user%d_username"), k("participant%d_name")),
		r.str(k("user%d_avatar"), k("user%dAvatar"), k("user%d_profile_image"), k("user%d_image"), k("participant%d_avatar")),
	)
}

func (n *Normalizer) ref(id, name, avatar string) user.Ref {
	if name == "" {
		name = UnknownParticipant
	}
	return user.Ref{ID: id, DisplayName: name, AvatarURL: n.media.Resolve(avatar)}
}

// Messages accepts a bare array, {messages: [...]} or {data: [...]}; an empty
// body is an empty list. Records without an id are dropped. The result is
// ordered oldest first.
func (n *Normalizer) Messages(raw []byte, conversationID string) []message.Message {
	recs := records(raw, "messages", "data")
	out := make([]message.Message, 0, len(recs))
	for _, r := range recs {
		if m, ok := n.message(r, conversationID); ok {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (n *Normalizer) message(r record, conversationID string) (message.Message, bool) {
	id := r.str(messageIDKeys...)
	if id == "" {
		return message.Message{}, false
	}
	kind := domain.ParseMessageKind(r.str("message_type", "messageType", "type", "kind"))
	m := message.Message{
		ID:             id,
		ConversationID: r.str("conversation_id", "conversationId"),
		SenderID:       r.str("sender_id", "senderId", "user_id", "userId", "from_id", "from"),
		Kind:           kind,
		Content:        r.str(append(mediaKeys(kind), textKeys...)...),
		DeliveryState:  domain.DeliveryStateSent,
	}
	if m.ConversationID == "" {
		m.ConversationID = conversationID
	}
	if m.SenderID == "" {
		if sender := r.obj("sender"); sender != nil {
			m.SenderID = sender.str("id", "user_id")
		}
	}
	m.Read, _ = r.boolean(readKeys...)
	m.CreatedAt = n.timestamp(r)
	return m, true
}

// timestamp prefers an explicit timestamp, then generic created/updated
// fields, then the current time.
func (n *Normalizer) timestamp(r record) time.Time {
	if t, ok := r.time("timestamp", "sent_at", "sentAt"); ok {
		return t
	}
	if t, ok := r.time("created_at", "createdAt", "updated_at", "updatedAt"); ok {
		return t
	}
	return n.now().UTC()
}

func mediaKeys(kind domain.MessageKind) []string {
	switch kind {
	case domain.MessageKindImage:
		return imageKeys
	case domain.MessageKindAudio:
		return audioKeys
	}
	return nil
}

// ConversationID extracts the id from a start-conversation payload.
func ConversationID(raw []byte) string {
	return extractID(decode(raw), conversationIDKeys, "data", "conversation")
}

// MessageID extracts the id from a send-message payload.
func MessageID(raw []byte) string {
	return extractID(decode(raw), messageIDKeys, "data", "message")
}

func extractID(v any, keys []string, nested ...string) string {
	switch t := v.(type) {
	case string, json.Number:
		return scalarString(t)
	case map[string]any:
		r := record(t)
		if id := r.str(keys...); id != "" {
			return id
		}
		for _, k := range nested {
			if inner, ok := r[k]; ok {
				if id := extractID(inner, keys); id != "" {
					return id
				}
			}
		}
	}
	return ""
}

var referenceKeys = []string{"url", "file_url", "fileUrl", "media_url", "mediaUrl", "image_url", "imageUrl", "audio_url", "audioUrl", "location", "path", "filename", "file_name", "file", "key", "id"}

// MediaReference extracts the uploaded media reference from an upload
// response. It understands {url: ...} style objects, the same nested under
// data, and bare strings (JSON or plain text).
func MediaReference(raw []byte) (string, bool) {
	v := decode(raw)
	if v == nil {
		text := strings.TrimSpace(string(raw))
		if text != "" && !strings.ContainsAny(text, " \t\n{}[]<>\"") {
			return text, true
		}
		return "", false
	}
	ref := reference(v, 0)
	return ref, ref != ""
}

func reference(v any, depth int) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case map[string]any:
		r := record(t)
		if ref := r.str(referenceKeys...); ref != "" {
			return ref
		}
		if depth < 2 {
			for _, k := range []string{"data", "file", "result", "upload"} {
				if inner, ok := r[k]; ok {
					if ref := reference(inner, depth+1); ref != "" {
						return ref
					}
				}
			}
		}
	}
	return ""
}

// ErrorMessage pulls a human readable message out of an error body.
func ErrorMessage(raw []byte) string {
	switch t := decode(raw).(type) {
	case string:
		return t
	case map[string]any:
		r := record(t)
		if msg := r.str("message", "error", "detail", "msg"); msg != "" {
			return msg
		}
		if inner := r.obj("error"); inner != nil {
			return inner.str("message", "detail")
		}
		return ""
	}
	text := strings.TrimSpace(string(raw))
	if len(text) > maxErrorText {
		cut := maxErrorText
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
	}
	if strings.HasPrefix(text, "<") {
		return ""
	}
	return text
}
