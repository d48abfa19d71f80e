package main

import (
	"bytes"
	"testing"
	"time"

	"marketplace-chat/internal/domain"
	"marketplace-chat/internal/domain/conversation"
	"marketplace-chat/internal/domain/message"
	"marketplace-chat/internal/domain/user"
	"marketplace-chat/internal/media"
	"marketplace-chat/internal/session"
	"marketplace-chat/internal/store"
	"marketplace-chat/pkg/logger"

	"github.com/stretchr/testify/assert"
)

func testStore() *store.Store {
	return store.New(session.Session{UserID: "me", AccessToken: "tok"}, nil, store.Options{
		Media:  media.NewResolver("https://api.example.com/uploads"),
		Logger: logger.NewNop(),
	})
}

func TestFormatMessage(t *testing.T) {
	s := testStore()
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	text := formatMessage(s, message.Message{ID: "7", SenderID: "me", Content: "hi", Kind: domain.MessageKindText, CreatedAt: at}, "me")
	assert.Contains(t, text, "me")
	assert.Contains(t, text, "hi")
	assert.Contains(t, text, "#7")

	image := formatMessage(s, message.Message{
		ID: "8", SenderID: "you", Content: "a.jpg", Kind: domain.MessageKindImage,
		CreatedAt: at, DeliveryState: domain.DeliveryStateFailed,
	}, "me")
	assert.Contains(t, image, "them")
	assert.Contains(t, image, "[image] https://api.example.com/uploads/image/a.jpg")
	assert.Contains(t, image, "(failed)")
}

func TestPrintConversations(t *testing.T) {
	s := testStore()
	var out bytes.Buffer
	printConversations(&out, s, nil)
	assert.Equal(t, "No conversations yet.\n", out.String())

	out.Reset()
	printConversations(&out, s, []conversation.Conversation{{
		ID:               "12",
		OtherParticipant: user.Ref{ID: "2", DisplayName: "sam", AvatarURL: media.DefaultAvatar},
		AdTitle:          "Red bicycle",
		LastMessage:      conversation.Summary{Kind: domain.MessageKindAudio},
		UnreadCount:      2,
	}})
	assert.Contains(t, out.String(), "(S) sam")
	assert.Contains(t, out.String(), "[voice note]")
	assert.Contains(t, out.String(), "Red bicycle")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}
