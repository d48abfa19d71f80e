package store

import (
	"context"
	"slices"
	"strings"

	"marketplace-chat/internal/domain"
	"marketplace-chat/internal/domain/conversation"
	"marketplace-chat/internal/domain/user"
	"marketplace-chat/internal/media"
	"marketplace-chat/internal/normalize"
	"marketplace-chat/internal/remote"
	chat_errors "marketplace-chat/pkg/errors"
)

// StartInput opens a conversation with the seller of an ad.
type StartInput struct {
	SellerID string
	// SellerName is shown on the provisional entry; optional.
	SellerName     string
	AdID           string
	AdTitle        string
	InitialMessage string
}

// LoadConversations replaces the list with the backend's, newest first.
// Failures are recorded in Err and yield an empty result; the current list
// is kept. The last response to arrive wins.
func (s *Store) LoadConversations(ctx context.Context) []conversation.Conversation {
	s.mu.Lock()
	s.pendingLists++
	s.mu.Unlock()
	s.publish()

	raw, err := s.remote.FetchConversations(ctx, s.session.UserID)

	s.mu.Lock()
	s.pendingLists--
	if err != nil {
		s.err = err
		s.mu.Unlock()
		s.warn(ctx, "", "load conversations failed", err)
		s.publish()
		return []conversation.Conversation{}
	}
	list := s.normalizer.Conversations(raw, s.session.UserID)
	provisional := slices.DeleteFunc(slices.Clone(s.conversations), func(c conversation.Conversation) bool {
		return !c.IsProvisional
	})
	s.conversations = append(provisional, list...)
	sortConversations(s.conversations)
	s.err = nil
	out := slices.Clone(s.conversations)
	s.mu.Unlock()
	s.publish()
	return out
}

// Refresh reloads the conversation list and the active conversation's messages.
func (s *Store) Refresh(ctx context.Context) {
	s.LoadConversations(ctx)
	if id := s.ActiveID(); id != "" {
		s.loadMessages(ctx, id)
	}
}

// Conversations returns a copy of the current list.
func (s *Store) Conversations() []conversation.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.conversations)
}

// TotalUnread is the sum of unread counters across the list.
func (s *Store) TotalUnread() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, c := range s.conversations {
		total += c.UnreadCount
	}
	return total
}

// StartConversation inserts a provisional entry at the head of the list,
// asks the backend for the conversation and reconciles the entry with the
// returned id. The server id is returned; callers navigate with it.
func (s *Store) StartConversation(ctx context.Context, in StartInput) (string, error) {
	const op = "start conversation"
	switch {
	case in.SellerID == "":
		return "", chat_errors.Validation(op, "seller_id")
	case in.AdID == "":
		return "", chat_errors.Validation(op, "ad_id")
	case strings.TrimSpace(in.InitialMessage) == "":
		return "", chat_errors.Validation(op, "initial_message")
	}

	name := in.SellerName
	if name == "" {
		name = normalize.UnknownParticipant
	}
	now := s.now().UTC()
	provisional := conversation.Conversation{
		ID:               conversation.NewProvisionalID(),
		OtherParticipant: user.Ref{ID: in.SellerID, DisplayName: name, AvatarURL: media.DefaultAvatar},
		AdID:             in.AdID,
		AdTitle:          in.AdTitle,
		LastMessage:      conversation.Summary{Content: in.InitialMessage, Kind: domain.MessageKindText, CreatedAt: now},
		UpdatedAt:        now,
		IsProvisional:    true,
	}

	s.mu.Lock()
	s.conversations = append([]conversation.Conversation{provisional}, s.conversations...)
	s.mu.Unlock()
	s.publish()

	raw, err := s.remote.StartConversation(ctx, remote.StartConversationInput{
		UserAID:        s.session.UserID,
		UserBID:        in.SellerID,
		AdID:           in.AdID,
		InitialMessage: in.InitialMessage,
	})
	id := ""
	if err == nil {
		if id = normalize.ConversationID(raw); id == "" {
			err = chat_errors.Server(op, 0, "response carried no conversation id")
		}
	}
	if err != nil {
		s.mu.Lock()
		s.removeConversationLocked(provisional.ID)
		s.mu.Unlock()
		s.publish()
		return "", err
	}

	s.mu.Lock()
	s.reconcileProvisionalLocked(provisional, id)
	s.mu.Unlock()
	s.publish()

	s.goBackground(ctx, func(ctx context.Context) {
		s.LoadConversations(ctx)
	})
	return id, nil
}

// reconcileProvisionalLocked gives the provisional entry its server id. When
// the backend returned a conversation already in the list, the provisional
// entry is folded into it.
func (s *Store) reconcileProvisionalLocked(provisional conversation.Conversation, id string) {
	if i := s.conversationIndexLocked(id); i >= 0 {
		s.conversations[i].LastMessage = provisional.LastMessage
		s.conversations[i].UpdatedAt = provisional.UpdatedAt
		s.removeConversationLocked(provisional.ID)
	} else if i := s.conversationIndexLocked(provisional.ID); i >= 0 {
		s.conversations[i].ID = id
		s.conversations[i].IsProvisional = false
	}
	if s.activeID == provisional.ID {
		s.activeID = id
	}
	sortConversations(s.conversations)
}

// DeleteConversation removes a conversation after the backend confirms. A
// provisional entry is only removed locally. Deleting the active
// conversation also clears the active selection and its messages.
func (s *Store) DeleteConversation(ctx context.Context, conversationID string) error {
	if conversationID == "" {
		return chat_errors.Validation("delete conversation", "conversation_id")
	}
	if !conversation.IsProvisionalID(conversationID) {
		if err := s.remote.DeleteConversation(ctx, conversationID); err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.removeConversationLocked(conversationID)
	if s.activeID == conversationID {
		s.activeID = ""
		s.messages = nil
		s.phase = PhaseIdle
		clear(s.markedRead)
	}
	s.mu.Unlock()
	s.publish()
	return nil
}

func (s *Store) conversationIndexLocked(id string) int {
	if id == "" {
		return -1
	}
	return slices.IndexFunc(s.conversations, func(c conversation.Conversation) bool {
		return c.ID == id
	})
}

func (s *Store) removeConversationLocked(id string) {
	s.conversations = slices.DeleteFunc(s.conversations, func(c conversation.Conversation) bool {
		return c.ID == id
	})
}

// touchConversationLocked records summary as the conversation's latest message.
func (s *Store) touchConversationLocked(conversationID string, summary conversation.Summary) {
	i := s.conversationIndexLocked(conversationID)
	if i < 0 {
		return
	}
	s.conversations[i].LastMessage = summary
	if summary.CreatedAt.After(s.conversations[i].UpdatedAt) {
		s.conversations[i].UpdatedAt = summary.CreatedAt
	}
	sortConversations(s.conversations)
}

// sortConversations keeps provisional entries first, then newest activity first.
func sortConversations(list []conversation.Conversation) {
	slices.SortStableFunc(list, func(a, b conversation.Conversation) int {
		if a.IsProvisional != b.IsProvisional {
			if a.IsProvisional {
				return -1
			}
			return 1
		}
		return b.UpdatedAt.Compare(a.UpdatedAt)
	})
}
