package sandbox_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"marketplace-chat/internal/domain"
	"marketplace-chat/internal/media"
	"marketplace-chat/internal/normalize"
	"marketplace-chat/internal/remote"
	"marketplace-chat/internal/sandbox"
	chat_errors "marketplace-chat/pkg/errors"
	"marketplace-chat/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("sandbox-test-secret")

type staticToken string

func (s staticToken) Token() string { return string(s) }

func setup(t *testing.T, shapes sandbox.Shapes) (*sandbox.Backend, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	backend := sandbox.NewBackend(shapes)
	backend.AddUser("buyer", "Bea Buyer", "")
	backend.AddUser("seller", "Sam Seller", "sam.png")
	backend.AddAd("55", "Red bicycle")
	server := httptest.NewServer(sandbox.NewRouter(backend, secret, logger.NewNop()))
	t.Cleanup(server.Close)
	return backend, server.URL
}

func clientFor(t *testing.T, baseURL, userID string) *remote.Client {
	t.Helper()
	token, err := sandbox.IssueToken(secret, userID, userID, time.Hour)
	require.NoError(t, err)
	return remote.NewClient(remote.Config{BaseURL: baseURL, Timeout: 2 * time.Second}, staticToken(token), logger.NewNop())
}

func TestConversationRoundTrip(t *testing.T) {
	_, baseURL := setup(t, sandbox.Shapes{})
	ctx := context.Background()
	buyer := clientFor(t, baseURL, "buyer")
	seller := clientFor(t, baseURL, "seller")
	norm := normalize.New(media.NewResolver(baseURL + "/uploads"))

	raw, err := buyer.StartConversation(ctx, remote.StartConversationInput{
		UserAID: "buyer", UserBID: "seller", AdID: "55", InitialMessage: "Is it still available?",
	})
	require.NoError(t, err)
	conversationID := normalize.ConversationID(raw)
	require.NotEmpty(t, conversationID)

	again, err := buyer.StartConversation(ctx, remote.StartConversationInput{UserAID: "buyer", UserBID: "seller", AdID: "55"})
	require.NoError(t, err)
	assert.Equal(t, conversationID, normalize.ConversationID(again))

	raw, err = seller.FetchConversations(ctx, "seller")
	require.NoError(t, err)
	list := norm.Conversations(raw, "seller")
	require.Len(t, list, 1)
	assert.Equal(t, "buyer", list[0].OtherParticipant.ID)
	assert.Equal(t, "Bea Buyer", list[0].OtherParticipant.DisplayName)
	assert.Equal(t, media.DefaultAvatar, list[0].OtherParticipant.AvatarURL)
	assert.Equal(t, "Red bicycle", list[0].AdTitle)
	assert.Equal(t, 1, list[0].UnreadCount)
	assert.Equal(t, "Is it still available?", list[0].LastMessage.Content)

	raw, err = buyer.FetchConversations(ctx, "buyer")
	require.NoError(t, err)
	list = norm.Conversations(raw, "buyer")
	require.Len(t, list, 1)
	assert.Equal(t, "seller", list[0].OtherParticipant.ID)
	assert.Equal(t, baseURL+"/uploads/image/sam.png", list[0].OtherParticipant.AvatarURL)
	assert.Equal(t, 0, list[0].UnreadCount)

	raw, err = seller.FetchMessages(ctx, conversationID, "seller")
	require.NoError(t, err)
	msgs := norm.Messages(raw, conversationID)
	require.Len(t, msgs, 1)
	assert.Equal(t, "buyer", msgs[0].SenderID)
	assert.False(t, msgs[0].Read)

	seller.MarkRead(ctx, conversationID, []string{msgs[0].ID})
	raw, err = seller.FetchConversations(ctx, "seller")
	require.NoError(t, err)
	assert.Equal(t, 0, norm.Conversations(raw, "seller")[0].UnreadCount)
}

func TestOnlySenderDeletesForEveryone(t *testing.T) {
	backend, baseURL := setup(t, sandbox.Shapes{ConversationList: sandbox.ListShapeData})
	ctx := context.Background()
	buyer := clientFor(t, baseURL, "buyer")
	seller := clientFor(t, baseURL, "seller")

	id, _ := backend.StartConversation("buyer", "seller", "55")
	conversationID := strconv.FormatInt(id, 10)
	raw, err := buyer.SendMessage(ctx, remote.SendMessageInput{
		ConversationID: conversationID, SenderID: "buyer", Kind: domain.MessageKindText, Content: "hi",
	})
	require.NoError(t, err)
	messageID := normalize.MessageID(raw)
	require.NotEmpty(t, messageID)

	err = seller.DeleteMessages(ctx, []string{messageID}, domain.DeleteForEveryone, "seller")
	require.True(t, errors.Is(err, chat_errors.ErrServer), err)
	assert.Equal(t, http.StatusForbidden, chat_errors.StatusOf(err))

	require.NoError(t, seller.DeleteMessages(ctx, []string{messageID}, domain.DeleteForMe, "seller"))
	raw, err = seller.FetchMessages(ctx, conversationID, "seller")
	require.NoError(t, err)
	assert.Nil(t, raw)

	raw, err = buyer.FetchMessages(ctx, conversationID, "buyer")
	require.NoError(t, err)
	assert.Len(t, normalize.New(media.NewResolver("")).Messages(raw, conversationID), 1)

	require.NoError(t, buyer.DeleteMessages(ctx, []string{messageID}, domain.DeleteForEveryone, "buyer"))
	raw, err = buyer.FetchMessages(ctx, conversationID, "buyer")
	require.NoError(t, err)
	assert.Nil(t, raw)
}

func TestUploadShapes(t *testing.T) {
	for _, shape := range []string{sandbox.UploadShapeURL, sandbox.UploadShapeNested, sandbox.UploadShapeString} {
		t.Run(shape, func(t *testing.T) {
			backend, baseURL := setup(t, sandbox.Shapes{Upload: shape})
			client := clientFor(t, baseURL, "buyer")
			ref, err := client.UploadMedia(context.Background(), domain.MessageKindAudio, remote.File{
				Name: "note.WEBM", ContentType: "audio/webm", Body: strings.NewReader("voice"),
			})
			require.NoError(t, err)
			assert.True(t, strings.HasSuffix(ref, ".webm"), ref)
			data, ok := backend.Upload(ref)
			require.True(t, ok)
			assert.Equal(t, "voice", string(data))
		})
	}
}

func TestRejectsBadTokens(t *testing.T) {
	_, baseURL := setup(t, sandbox.Shapes{})
	client := remote.NewClient(remote.Config{BaseURL: baseURL}, staticToken("not-a-jwt"), logger.NewNop())
	_, err := client.FetchConversations(context.Background(), "buyer")
	assert.True(t, errors.Is(err, chat_errors.ErrUnauthorized), err)

	other := clientFor(t, baseURL, "seller")
	_, err = other.FetchConversations(context.Background(), "buyer")
	assert.Equal(t, http.StatusForbidden, chat_errors.StatusOf(err))
}

func TestServeUpload(t *testing.T) {
	backend, baseURL := setup(t, sandbox.Shapes{})
	backend.StoreUpload("a.txt", []byte("hello"))

	resp, err := http.Get(media.Resolve(baseURL+"/uploads", "a.txt"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	missing, err := http.Get(baseURL + "/uploads/image/nope")
	require.NoError(t, err)
	missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestRequestIDIsEchoed(t *testing.T) {
	_, baseURL := setup(t, sandbox.Shapes{})

	req, err := http.NewRequest(http.MethodGet, baseURL+"/ping", nil)
	require.NoError(t, err)
	req.Header.Set(logger.RequestIDHeader, "abc123")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "abc123", resp.Header.Get(logger.RequestIDHeader))

	resp, err = http.Get(baseURL + "/ping")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Len(t, resp.Header.Get(logger.RequestIDHeader), 32)
}
