package store

import (
	"context"
	"encoding/json"
	"maps"
	"slices"
	"strconv"
	"sync"
	"time"

	"marketplace-chat/internal/domain"
	"marketplace-chat/internal/remote"
)

var baseTime = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// testClock advances one second per reading so creation times are ordered.
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

// fakeRemote is an in-memory backend. Calls block on a gate when one is set
// for them, and announce themselves on started so tests can order responses.
type fakeRemote struct {
	mu            sync.Mutex
	clock         *testClock
	conversations []map[string]any
	messages      map[string][]map[string]any
	nextID        int

	fetchConversationsErr error
	fetchMessagesErr      error
	sendErr               error
	sendReply             json.RawMessage
	omitSendID            bool
	deleteErr             error
	deleteConversationErr error
	startErr              error
	startReply            json.RawMessage
	uploadRef             string
	uploadErr             error

	fetchGates map[string]chan struct{}
	sendGate   chan struct{}
	startGate  chan struct{}
	started    chan string

	sent                 []remote.SendMessageInput
	deleted              [][]string
	deleteTypes          []domain.DeleteType
	deletedConversations []string
	startedInputs        []remote.StartConversationInput
	markedRead           [][]string
	uploads              int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		clock:      &testClock{t: baseTime},
		messages:   make(map[string][]map[string]any),
		nextID:     500,
		fetchGates: make(map[string]chan struct{}),
		started:    make(chan string, 64),
	}
}

func (f *fakeRemote) addConversation(id, otherID, otherName string, unread int, updated time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.conversations = append(f.conversations, map[string]any{
		"conversation_id": id,
		"user1_id":        "me",
		"user1_name":      "Me",
		"user2_id":        otherID,
		"user2_name":      otherName,
		"ad_title":        "Ad " + id,
		"unread_count":    unread,
		"updated_at":      updated.Format(time.RFC3339),
	})
}

func (f *fakeRemote) addMessage(conversationID, id, senderID, text string, read bool, at time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages[conversationID] = append(f.messages[conversationID], map[string]any{
		"message_id":   id,
		"sender_id":    senderID,
		"message_type": "text",
		"message_text": text,
		"is_read":      read,
		"created_at":   at.Format(time.RFC3339Nano),
	})
}

func (f *fakeRemote) gateFetch(conversationID string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	gate := make(chan struct{})
	f.fetchGates[conversationID] = gate
	return gate
}

func (f *fakeRemote) announce(call string) {
	select {
	case f.started <- call:
	default:
	}
}

func wait(ctx context.Context, gate chan struct{}) error {
	if gate == nil {
		return nil
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeRemote) FetchConversations(ctx context.Context, userID string) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchConversationsErr != nil {
		return nil, f.fetchConversationsErr
	}
	list := make([]map[string]any, 0, len(f.conversations))
	for _, c := range f.conversations {
		record := maps.Clone(c)
		if msgs := f.messages[c["conversation_id"].(string)]; len(msgs) > 0 {
			last := msgs[len(msgs)-1]
			record["last_message"] = map[string]any{
				"message_type": last["message_type"],
				"message_text": last["message_text"],
				"media_url":    last["media_url"],
				"created_at":   last["created_at"],
			}
		}
		list = append(list, record)
	}
	return json.Marshal(map[string]any{"conversations": list})
}

func (f *fakeRemote) FetchMessages(ctx context.Context, conversationID, userID string) (json.RawMessage, error) {
	f.mu.Lock()
	gate := f.fetchGates[conversationID]
	f.mu.Unlock()
	f.announce("fetch:" + conversationID)
	if err := wait(ctx, gate); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchMessagesErr != nil {
		return nil, f.fetchMessagesErr
	}
	msgs := f.messages[conversationID]
	if len(msgs) == 0 {
		return nil, nil
	}
	return json.Marshal(msgs)
}

func (f *fakeRemote) StartConversation(ctx context.Context, in remote.StartConversationInput) (json.RawMessage, error) {
	f.mu.Lock()
	f.startedInputs = append(f.startedInputs, in)
	gate := f.startGate
	f.mu.Unlock()
	f.announce("start")
	if err := wait(ctx, gate); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return nil, f.startErr
	}
	return f.startReply, nil
}

func (f *fakeRemote) SendMessage(ctx context.Context, in remote.SendMessageInput) (json.RawMessage, error) {
	f.mu.Lock()
	f.sent = append(f.sent, in)
	gate := f.sendGate
	f.mu.Unlock()
	f.announce("send")
	if err := wait(ctx, gate); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	if f.sendReply != nil {
		return f.sendReply, nil
	}
	f.nextID++
	id := strconv.Itoa(f.nextID)
	record := map[string]any{
		"message_id":   id,
		"sender_id":    in.SenderID,
		"message_type": string(in.Kind),
		"created_at":   f.clock.Now().Format(time.RFC3339Nano),
		"is_read":      false,
	}
	if in.Kind.IsMedia() {
		record["media_url"] = in.Content
	} else {
		record["message_text"] = in.Content
	}
	f.messages[in.ConversationID] = append(f.messages[in.ConversationID], record)
	if f.omitSendID {
		return json.RawMessage(`{"status": "ok"}`), nil
	}
	return json.RawMessage(`{"message_id": ` + id + `}`), nil
}

func (f *fakeRemote) DeleteMessages(ctx context.Context, messageIDs []string, deleteType domain.DeleteType, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, messageIDs)
	f.deleteTypes = append(f.deleteTypes, deleteType)
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if deleteType == domain.DeleteForEveryone {
		for id, msgs := range f.messages {
			f.messages[id] = slices.DeleteFunc(msgs, func(m map[string]any) bool {
				return slices.Contains(messageIDs, m["message_id"].(string))
			})
		}
	}
	return nil
}

func (f *fakeRemote) DeleteConversation(ctx context.Context, conversationID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletedConversations = append(f.deletedConversations, conversationID)
	return f.deleteConversationErr
}

func (f *fakeRemote) MarkRead(ctx context.Context, conversationID string, messageIDs []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markedRead = append(f.markedRead, messageIDs)
}

func (f *fakeRemote) UploadMedia(ctx context.Context, kind domain.MessageKind, file remote.File) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads++
	return f.uploadRef, f.uploadErr
}
