// Package sandbox is an in-memory implementation of the /v2 messaging
// backend. It backs local development (cmd/sandbox) and the client's
// integration tests, and can answer in each of the historical payload shapes.
package sandbox

import (
	"sort"
	"strconv"
	"sync"
	"time"

	"marketplace-chat/internal/domain"
	chat_errors "marketplace-chat/pkg/errors"
)

// List shapes for the conversation list response.
const (
	ListShapeArray         = "array"
	ListShapeConversations = "conversations"
	ListShapeData          = "data"
)

// Upload response shapes.
const (
	UploadShapeURL    = "url"
	UploadShapeNested = "data"
	UploadShapeString = "string"
)

type Shapes struct {
	ConversationList string
	Upload           string
}

type Profile struct {
	Name   string
	Avatar string
}

type conversationRecord struct {
	ID        int64
	User1ID   string
	User2ID   string
	AdID      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type messageRecord struct {
	ID             int64
	ConversationID int64
	SenderID       string
	Type           domain.MessageKind
	Text           string
	MediaURL       string
	CreatedAt      time.Time
	Read           bool
	hiddenFor      map[string]bool
}

func (m *messageRecord) visibleTo(userID string) bool {
	return !m.hiddenFor[userID]
}

type Backend struct {
	mu            sync.Mutex
	shapes        Shapes
	now           func() time.Time
	nextConvID    int64
	nextMsgID     int64
	conversations map[int64]*conversationRecord
	messages      map[int64][]*messageRecord
	profiles      map[string]Profile
	ads           map[string]string
	uploads       map[string][]byte
}

func NewBackend(shapes Shapes) *Backend {
	if shapes.ConversationList == "" {
		shapes.ConversationList = ListShapeArray
	}
	if shapes.Upload == "" {
		shapes.Upload = UploadShapeURL
	}
	return &Backend{
		shapes:        shapes,
		now:           time.Now,
		nextConvID:    100,
		nextMsgID:     1000,
		conversations: make(map[int64]*conversationRecord),
		messages:      make(map[int64][]*messageRecord),
		profiles:      make(map[string]Profile),
		ads:           make(map[string]string),
		uploads:       make(map[string][]byte),
	}
}

func (b *Backend) AddUser(id, name, avatar string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.profiles[id] = Profile{Name: name, Avatar: avatar}
}

func (b *Backend) AddAd(id, title string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ads[id] = title
}

// StartConversation returns the existing conversation for the pair and ad, or creates one.
func (b *Backend) StartConversation(user1, user2, adID string) (int64, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, c := range b.conversations {
		if c.AdID == adID && ((c.User1ID == user1 && c.User2ID == user2) || (c.User1ID == user2 && c.User2ID == user1)) {
			return c.ID, false
		}
	}
	b.nextConvID++
	now := b.now()
	b.conversations[b.nextConvID] = &conversationRecord{
		ID: b.nextConvID, User1ID: user1, User2ID: user2, AdID: adID, CreatedAt: now, UpdatedAt: now,
	}
	return b.nextConvID, true
}

func (b *Backend) conversation(id string, userID string) (*conversationRecord, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return nil, chat_errors.ErrNotFound
	}
	c, ok := b.conversations[n]
	if !ok {
		return nil, chat_errors.ErrNotFound
	}
	if userID != "" && c.User1ID != userID && c.User2ID != userID {
		return nil, chat_errors.ErrUnauthorized
	}
	return c, nil
}

func (b *Backend) SendMessage(conversationID, senderID string, kind domain.MessageKind, text, mediaURL string) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, err := b.conversation(conversationID, senderID)
	if err != nil {
		return 0, err
	}
	b.nextMsgID++
	now := b.now()
	b.messages[c.ID] = append(b.messages[c.ID], &messageRecord{
		ID: b.nextMsgID, ConversationID: c.ID, SenderID: senderID, Type: kind,
		Text: text, MediaURL: mediaURL, CreatedAt: now,
	})
	c.UpdatedAt = now
	return b.nextMsgID, nil
}

func (b *Backend) visibleMessages(c *conversationRecord, userID string) []*messageRecord {
	var out []*messageRecord
	for _, m := range b.messages[c.ID] {
		if m.visibleTo(userID) {
			out = append(out, m)
		}
	}
	return out
}

// DeleteMessages hides messages for userID ("me") or removes them for
// everyone; only the sender may delete for everyone.
func (b *Backend) DeleteMessages(ids []string, deleteType domain.DeleteType, userID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	want := make(map[int64]bool, len(ids))
	for _, id := range ids {
		n, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return chat_errors.ErrNotFound
		}
		want[n] = true
	}
	if deleteType == domain.DeleteForEveryone {
		for _, msgs := range b.messages {
			for _, m := range msgs {
				if want[m.ID] && m.SenderID != userID {
					return chat_errors.ErrUnauthorized
				}
			}
		}
	}
	for convID, msgs := range b.messages {
		kept := make([]*messageRecord, 0, len(msgs))
		for _, m := range msgs {
			switch {
			case !want[m.ID]:
				kept = append(kept, m)
			case deleteType == domain.DeleteForEveryone:
			default:
				if m.hiddenFor == nil {
					m.hiddenFor = make(map[string]bool)
				}
				m.hiddenFor[userID] = true
				kept = append(kept, m)
			}
		}
		b.messages[convID] = kept
	}
	return nil
}

func (b *Backend) DeleteConversation(id, userID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, err := b.conversation(id, userID)
	if err != nil {
		return err
	}
	delete(b.conversations, c.ID)
	delete(b.messages, c.ID)
	return nil
}

// MarkRead marks the listed messages read, except the reader's own.
func (b *Backend) MarkRead(conversationID string, ids []string, userID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, err := b.conversation(conversationID, userID)
	if err != nil {
		return err
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	for _, m := range b.messages[c.ID] {
		if want[strconv.FormatInt(m.ID, 10)] && m.SenderID != userID {
			m.Read = true
		}
	}
	return nil
}

func (b *Backend) StoreUpload(name string, data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.uploads[name] = data
}

// Upload returns the bytes stored under name.
func (b *Backend) Upload(name string) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.uploads[name]
	return data, ok
}

func (b *Backend) conversationsFor(userID string) []*conversationRecord {
	var out []*conversationRecord
	for _, c := range b.conversations {
		if c.User1ID == userID || c.User2ID == userID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out
}
