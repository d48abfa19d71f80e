package remote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"marketplace-chat/internal/domain"
	chat_errors "marketplace-chat/pkg/errors"
	"marketplace-chat/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticToken string

func (s staticToken) Token() string { return string(s) }

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(Config{BaseURL: server.URL + "/", Timeout: time.Second}, staticToken("tok"), logger.NewNop())
}

func readJSON(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	var body map[string]any
	assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
	return body
}

func TestFetchConversations(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method + " " + r.URL.Path {
		case "GET /v2/get-user-conversations/u 1":
			assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
			io.WriteString(w, `{"conversations": []}`)
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})

	raw, err := client.FetchConversations(context.Background(), "u 1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"conversations": []}`, string(raw))
}

func TestFetchMessagesNoContent(t *testing.T) {
	var body map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST /v2/get-messages", r.Method+" "+r.URL.Path)
		body = readJSON(t, r)
		w.WriteHeader(http.StatusNoContent)
	})

	raw, err := client.FetchMessages(context.Background(), "12", "u1")
	require.NoError(t, err)
	assert.Nil(t, raw)
	assert.Equal(t, map[string]any{"conversation_id": float64(12), "user_id": "u1"}, body)
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    string
		kind    error
		message string
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error": "expired"}`, chat_errors.ErrUnauthorized, ""},
		{"not found", http.StatusNotFound, `{"message": "conversation not found"}`, chat_errors.ErrServer, "conversation not found"},
		{"server error", http.StatusInternalServerError, `<html>boom</html>`, chat_errors.ErrServer, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				io.WriteString(w, tc.body)
			})
			err := client.DeleteConversation(context.Background(), "7")
			require.True(t, errors.Is(err, tc.kind), err)
			assert.Equal(t, tc.status, chat_errors.StatusOf(err))
			var re *chat_errors.RequestError
			require.True(t, errors.As(err, &re))
			assert.Equal(t, tc.message, re.Message)
		})
	}
}

func TestTimeoutIsNetworkError(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := NewClient(Config{BaseURL: server.URL, Timeout: 50 * time.Millisecond}, staticToken("tok"), logger.NewNop())
	_, err := client.FetchConversations(context.Background(), "u1")
	require.True(t, errors.Is(err, chat_errors.ErrNetwork), err)
}

func TestConnectionRefusedIsNetworkError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client := NewClient(Config{BaseURL: url}, staticToken("tok"), logger.NewNop())
	_, err := client.FetchConversations(context.Background(), "u1")
	require.True(t, errors.Is(err, chat_errors.ErrNetwork), err)
}

func TestValidationAndMissingTokenNeverCallServer(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer server.Close()
	ctx := context.Background()

	client := NewClient(Config{BaseURL: server.URL}, staticToken("tok"), logger.NewNop())
	_, err := client.FetchMessages(ctx, "", "u1")
	assert.True(t, errors.Is(err, chat_errors.ErrInvalidInput))
	_, err = client.SendMessage(ctx, SendMessageInput{ConversationID: "1", SenderID: "u1", Kind: domain.MessageKindText})
	assert.True(t, errors.Is(err, chat_errors.ErrInvalidInput))
	err = client.DeleteMessages(ctx, []string{"1"}, "nobody", "u1")
	assert.True(t, errors.Is(err, chat_errors.ErrInvalidInput))
	_, err = client.StartConversation(ctx, StartConversationInput{UserAID: "u1", UserBID: "u2"})
	assert.True(t, errors.Is(err, chat_errors.ErrInvalidInput))
	_, err = client.UploadMedia(ctx, domain.MessageKindText, File{Body: strings.NewReader("x")})
	assert.True(t, errors.Is(err, chat_errors.ErrInvalidInput))

	anonymous := NewClient(Config{BaseURL: server.URL}, staticToken(""), logger.NewNop())
	_, err = anonymous.FetchConversations(ctx, "u1")
	assert.True(t, errors.Is(err, chat_errors.ErrUnauthorized))

	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestSendMessageBodies(t *testing.T) {
	var bodies []map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/send-message", r.URL.Path)
		bodies = append(bodies, readJSON(t, r))
		io.WriteString(w, `{"message_id": 501}`)
	})
	ctx := context.Background()

	raw, err := client.SendMessage(ctx, SendMessageInput{ConversationID: "9", SenderID: "u1", Kind: domain.MessageKindText, Content: "hello"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"message_id": 501}`, string(raw))

	_, err = client.SendMessage(ctx, SendMessageInput{ConversationID: "9", SenderID: "u1", Kind: domain.MessageKindImage, Content: "abc.jpg"})
	require.NoError(t, err)

	require.Len(t, bodies, 2)
	assert.Equal(t, map[string]any{"conversation_id": float64(9), "sender_id": "u1", "message_type": "text", "message_text": "hello"}, bodies[0])
	assert.Equal(t, map[string]any{"conversation_id": float64(9), "sender_id": "u1", "message_type": "image", "message_text": "", "media_url": "abc.jpg"}, bodies[1])
}

func TestStartConversationInitialMessageFailureIsNotFatal(t *testing.T) {
	var sent int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v2/start-conversation":
			body := readJSON(t, r)
			assert.Equal(t, map[string]any{"user1_id": "me", "user2_id": "seller", "ad_id": float64(55)}, body)
			io.WriteString(w, `{"conversation_id": 77, "status": "created"}`)
		case "/v2/send-message":
			atomic.AddInt32(&sent, 1)
			body := readJSON(t, r)
			assert.Equal(t, float64(77), body["conversation_id"])
			w.WriteHeader(http.StatusInternalServerError)
		default:
			t.Errorf("unexpected request: %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})

	raw, err := client.StartConversation(context.Background(), StartConversationInput{
		UserAID: "me", UserBID: "seller", AdID: "55", InitialMessage: "is it available?",
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"conversation_id": 77, "status": "created"}`, string(raw))
	assert.Equal(t, int32(1), atomic.LoadInt32(&sent))
}

func TestStartConversationWithoutIDFails(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"status": "ok"}`)
	})
	_, err := client.StartConversation(context.Background(), StartConversationInput{UserAID: "a", UserBID: "b", AdID: "1"})
	assert.True(t, errors.Is(err, chat_errors.ErrServer))
}

func TestMarkReadSwallowsFailures(t *testing.T) {
	var body map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body = readJSON(t, r)
		w.WriteHeader(http.StatusBadGateway)
	})
	client.MarkRead(context.Background(), "3", []string{"10", "11"})
	assert.Equal(t, map[string]any{"conversation_id": float64(3), "message_ids": []any{float64(10), float64(11)}}, body)
}

func TestUploadMediaShapes(t *testing.T) {
	responses := map[string]string{
		"direct url":  `{"url": "https://cdn/a.jpg"}`,
		"nested data": `{"success": true, "data": {"url": "https://cdn/a.jpg"}}`,
		"bare string": `"https://cdn/a.jpg"`,
	}
	for name, response := range responses {
		t.Run(name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/v2/upload/image", r.URL.Path)
				f, fh, err := r.FormFile("image")
				if !assert.NoError(t, err) {
					w.WriteHeader(http.StatusBadRequest)
					return
				}
				defer f.Close()
				data, _ := io.ReadAll(f)
				assert.Equal(t, "car.jpg", fh.Filename)
				assert.Equal(t, "jpeg-bytes", string(data))
				io.WriteString(w, response)
			})
			ref, err := client.UploadMedia(context.Background(), domain.MessageKindImage, File{
				Name: "/tmp/car.jpg", ContentType: "image/jpeg", Body: strings.NewReader("jpeg-bytes"),
			})
			require.NoError(t, err)
			assert.Equal(t, "https://cdn/a.jpg", ref)
		})
	}
}

func TestUploadMediaWithoutReference(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/upload/audio", r.URL.Path)
		io.WriteString(w, `{"success": true}`)
	})
	_, err := client.UploadMedia(context.Background(), domain.MessageKindAudio, File{Name: "v.webm", Body: strings.NewReader("x")})
	assert.True(t, errors.Is(err, chat_errors.ErrUpload), err)
}

func TestRequestIDHeader(t *testing.T) {
	var got []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = append(got, r.Header.Get(logger.RequestIDHeader))
		io.WriteString(w, `[]`)
	})

	_, err := client.FetchConversations(context.Background(), "u1")
	require.NoError(t, err)
	_, err = client.FetchConversations(logger.WithRequestID(context.Background(), "req-1"), "u1")
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Len(t, got[0], 32)
	assert.Equal(t, "req-1", got[1])
}
