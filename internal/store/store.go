// Package store is the chat core: it owns the conversation list, the active
// conversation and its messages, and runs every mutating command through an
// optimistic-update-then-reconcile protocol against the remote backend.
//
// The store is safe for concurrent use. State is guarded by a mutex that is
// never held across a remote call; stale results are dropped by comparing
// the conversation they were fetched for with the current target.
package store

import (
	"context"
	"encoding/json"
	"slices"
	"sync"
	"time"

	"marketplace-chat/internal/domain"
	"marketplace-chat/internal/domain/conversation"
	"marketplace-chat/internal/domain/message"
	"marketplace-chat/internal/media"
	"marketplace-chat/internal/normalize"
	"marketplace-chat/internal/remote"
	"marketplace-chat/internal/session"
	"marketplace-chat/pkg/logger"

	"go.uber.org/zap"
)

// Remote is the subset of the messaging backend the store drives.
type Remote interface {
	FetchConversations(ctx context.Context, userID string) (json.RawMessage, error)
	FetchMessages(ctx context.Context, conversationID, userID string) (json.RawMessage, error)
	StartConversation(ctx context.Context, in remote.StartConversationInput) (json.RawMessage, error)
	SendMessage(ctx context.Context, in remote.SendMessageInput) (json.RawMessage, error)
	DeleteMessages(ctx context.Context, messageIDs []string, deleteType domain.DeleteType, userID string) error
	DeleteConversation(ctx context.Context, conversationID string) error
	MarkRead(ctx context.Context, conversationID string, messageIDs []string)
}

// Uploader turns a media file into a reference usable as message content.
type Uploader interface {
	UploadMedia(ctx context.Context, kind domain.MessageKind, file remote.File) (string, error)
}

// Phase is the active-conversation state.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseSwitching Phase = "switching"
	PhaseLoaded    Phase = "loaded"
)

// Snapshot is a read-only copy of the store state. Slices are never shared
// with the store.
type Snapshot struct {
	UserID        string
	Conversations []conversation.Conversation
	ActiveID      string
	Active        *conversation.Conversation
	Phase         Phase
	Messages      []message.Message
	// Err is the last load failure; nil after a successful load.
	Err                  error
	LoadingConversations bool
	LoadingMessages      bool
}

type Options struct {
	// Uploader defaults to the remote when it implements Uploader.
	Uploader   Uploader
	Media      media.Resolver
	Normalizer *normalize.Normalizer
	Logger     *logger.Logger
	Now        func() time.Time
}

type Store struct {
	session    session.Session
	remote     Remote
	uploader   Uploader
	media      media.Resolver
	normalizer *normalize.Normalizer
	logger     *logger.Logger
	now        func() time.Time

	mu              sync.Mutex
	conversations   []conversation.Conversation
	activeID        string
	phase           Phase
	messages        []message.Message
	markedRead      map[string]bool
	err             error
	pendingLists    int
	pendingMessages int

	publishMu   sync.Mutex
	subscribers map[int]func(Snapshot)
	nextSub     int

	background sync.WaitGroup
}

func New(sess session.Session, r Remote, opts Options) *Store {
	s := &Store{
		session:     sess,
		remote:      r,
		uploader:    opts.Uploader,
		media:       opts.Media,
		normalizer:  opts.Normalizer,
		logger:      opts.Logger,
		now:         opts.Now,
		phase:       PhaseIdle,
		markedRead:  make(map[string]bool),
		subscribers: make(map[int]func(Snapshot)),
	}
	if s.uploader == nil {
		if u, ok := r.(Uploader); ok {
			s.uploader = u
		}
	}
	if s.normalizer == nil {
		s.normalizer = normalize.New(s.media)
	}
	if s.logger == nil {
		s.logger = logger.GetGlobalLogger()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Subscribe registers fn to receive a snapshot after every state change.
// Callbacks run one at a time in the goroutine that changed the state; a
// callback must not call a mutating Store method synchronously.
func (s *Store) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	s.publishMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = fn
	s.publishMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.publishMu.Lock()
			delete(s.subscribers, id)
			s.publishMu.Unlock()
		})
	}
}

func (s *Store) publish() {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()
	if len(s.subscribers) == 0 {
		return
	}
	snap := s.Snapshot()
	for _, fn := range s.subscribers {
		fn(snap)
	}
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		UserID:               s.session.UserID,
		Conversations:        slices.Clone(s.conversations),
		ActiveID:             s.activeID,
		Phase:                s.phase,
		Messages:             slices.Clone(s.messages),
		Err:                  s.err,
		LoadingConversations: s.pendingLists > 0,
		LoadingMessages:      s.pendingMessages > 0,
	}
	if i := s.conversationIndexLocked(s.activeID); i >= 0 {
		active := s.conversations[i]
		snap.Active = &active
	}
	return snap
}

// Err returns the last load failure, if any.
func (s *Store) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Store) ActiveID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeID
}

// Wait blocks until background reloads and read receipts have finished.
func (s *Store) Wait() {
	s.background.Wait()
}

// goBackground runs fn detached from the caller's cancellation.
func (s *Store) goBackground(ctx context.Context, fn func(ctx context.Context)) {
	ctx = context.WithoutCancel(ctx)
	s.background.Go(func() {
		fn(ctx)
	})
}

// MediaURL returns the fetchable URL of a media message, or "" for text.
func (s *Store) MediaURL(m message.Message) string {
	if !m.Kind.IsMedia() {
		return ""
	}
	return s.media.Resolve(m.Content)
}

// Avatar returns the other participant's avatar; the URL is already resolved.
func (s *Store) Avatar(c conversation.Conversation) media.Avatar {
	return media.Avatar{
		URL:      c.OtherParticipant.AvatarURL,
		Initials: media.Initials(c.OtherParticipant.DisplayName),
	}
}

func (s *Store) logCtx(ctx context.Context, conversationID string) context.Context {
	ctx = logger.WithUserID(ctx, s.session.UserID)
	if conversationID != "" {
		ctx = logger.WithConversationID(ctx, conversationID)
	}
	return ctx
}

func (s *Store) warn(ctx context.Context, conversationID, msg string, err error) {
	s.logger.Warn(s.logCtx(ctx, conversationID), msg, zap.Error(err))
}
