package store

import (
	"context"
	"slices"
	"strings"

	"marketplace-chat/internal/domain"
	"marketplace-chat/internal/domain/conversation"
	"marketplace-chat/internal/domain/message"
	"marketplace-chat/internal/normalize"
	"marketplace-chat/internal/remote"
	chat_errors "marketplace-chat/pkg/errors"

	"go.uber.org/zap"
)

// SetActive makes conversationID the active conversation and loads its
// messages. The previous message list is cleared before the fetch starts; a
// fetch that completes after another SetActive is discarded. An empty id
// returns the store to idle.
func (s *Store) SetActive(ctx context.Context, conversationID string) []message.Message {
	s.mu.Lock()
	s.activeID = conversationID
	s.messages = nil
	clear(s.markedRead)
	if conversationID == "" {
		s.phase = PhaseIdle
	} else {
		s.phase = PhaseSwitching
	}
	s.mu.Unlock()
	s.publish()

	if conversationID == "" {
		return []message.Message{}
	}
	return s.loadMessages(ctx, conversationID)
}

// LoadMessages reloads the active conversation. Like LoadConversations it
// records failures in Err and returns an empty result.
func (s *Store) LoadMessages(ctx context.Context) []message.Message {
	id := s.ActiveID()
	if id == "" {
		return []message.Message{}
	}
	return s.loadMessages(ctx, id)
}

// loadMessages fetches target's messages and applies them only if target is
// still active when the response arrives. Local messages still sending or
// failed survive the reload, and unread messages from the other participant
// are marked read.
func (s *Store) loadMessages(ctx context.Context, target string) []message.Message {
	s.mu.Lock()
	if s.activeID != target {
		s.mu.Unlock()
		return []message.Message{}
	}
	if conversation.IsProvisionalID(target) {
		s.phase = PhaseLoaded
		s.mu.Unlock()
		s.publish()
		return []message.Message{}
	}
	s.pendingMessages++
	s.mu.Unlock()
	s.publish()

	raw, err := s.remote.FetchMessages(ctx, target, s.session.UserID)

	s.mu.Lock()
	s.pendingMessages--
	if s.activeID != target {
		s.mu.Unlock()
		s.logger.Debug(s.logCtx(ctx, target), "discarded messages of inactive conversation")
		s.publish()
		return []message.Message{}
	}
	if err != nil {
		s.err = err
		if s.phase == PhaseSwitching {
			s.phase = PhaseLoaded
		}
		s.mu.Unlock()
		s.warn(ctx, target, "load messages failed", err)
		s.publish()
		return []message.Message{}
	}

	fetched := s.normalizer.Messages(raw, target)
	for i := range fetched {
		if s.markedRead[fetched[i].ID] {
			fetched[i].Read = true
		}
	}
	s.messages = keepPending(fetched, s.messages)
	s.phase = PhaseLoaded
	s.err = nil
	readIDs := s.markReadLocked(target)
	out := slices.Clone(s.messages)
	s.mu.Unlock()
	s.publish()

	if len(readIDs) > 0 {
		s.goBackground(ctx, func(ctx context.Context) {
			s.remote.MarkRead(ctx, target, readIDs)
		})
	}
	return out
}

// keepPending merges local sending or failed messages that the server list
// does not contain back in, ordered by creation time.
func keepPending(fetched, local []message.Message) []message.Message {
	known := make(map[string]bool, len(fetched))
	for _, m := range fetched {
		known[m.ID] = true
	}
	n := len(fetched)
	for _, m := range local {
		if m.Pending() && !known[m.ID] {
			fetched = append(fetched, m)
		}
	}
	if len(fetched) > n {
		slices.SortStableFunc(fetched, func(a, b message.Message) int {
			return a.CreatedAt.Compare(b.CreatedAt)
		})
	}
	return fetched
}

// MarkRead marks every unread message from the other participant in the
// active conversation as read and tells the backend. Local state is not
// rolled back when the backend call fails. It returns the number marked.
func (s *Store) MarkRead(ctx context.Context) int {
	s.mu.Lock()
	target := s.activeID
	if target == "" || conversation.IsProvisionalID(target) {
		s.mu.Unlock()
		return 0
	}
	ids := s.markReadLocked(target)
	s.mu.Unlock()
	if len(ids) == 0 {
		return 0
	}
	s.publish()
	s.remote.MarkRead(ctx, target, ids)
	return len(ids)
}

// markReadLocked flips the read flag on unread incoming messages and lowers
// the conversation's unread counter by the number flipped.
func (s *Store) markReadLocked(conversationID string) []string {
	var ids []string
	for i := range s.messages {
		m := &s.messages[i]
		if m.Read || m.IsMine(s.session.UserID) || m.IsTemporary() {
			continue
		}
		m.Read = true
		s.markedRead[m.ID] = true
		ids = append(ids, m.ID)
	}
	if len(ids) > 0 {
		if i := s.conversationIndexLocked(conversationID); i >= 0 {
			s.conversations[i].MarkRead(len(ids))
		}
	}
	return ids
}

// Send appends a temporary message to the active conversation and delivers
// it. The returned message carries the server id and state sent, or state
// failed together with the error. For image and audio kinds content must
// already be an uploaded reference; see SendMedia.
func (s *Store) Send(ctx context.Context, content string, kind domain.MessageKind) (message.Message, error) {
	id := s.ActiveID()
	if id == "" {
		return message.Message{}, chat_errors.ErrNoActiveConversation
	}
	return s.sendTo(ctx, id, content, kind)
}

// SendMedia uploads file first and sends the resulting reference. An upload
// failure returns before any temporary message is inserted.
func (s *Store) SendMedia(ctx context.Context, kind domain.MessageKind, file remote.File) (message.Message, error) {
	const op = "send media"
	id := s.ActiveID()
	if id == "" {
		return message.Message{}, chat_errors.ErrNoActiveConversation
	}
	if !kind.IsMedia() {
		return message.Message{}, chat_errors.Validation(op, "media kind")
	}
	if s.uploader == nil {
		return message.Message{}, chat_errors.Upload(op, "no uploader configured")
	}
	ref, err := s.uploader.UploadMedia(ctx, kind, file)
	if err != nil {
		s.warn(ctx, id, "media upload failed", err)
		return message.Message{}, err
	}
	return s.sendTo(ctx, id, ref, kind)
}

// Retry sends the content of a failed message again as a new attempt. The
// failed message stays in the list unchanged.
func (s *Store) Retry(ctx context.Context, failedID string) (message.Message, error) {
	s.mu.Lock()
	target := s.activeID
	i := s.messageIndexLocked(failedID)
	if target == "" {
		s.mu.Unlock()
		return message.Message{}, chat_errors.ErrNoActiveConversation
	}
	if i < 0 || s.messages[i].DeliveryState != domain.DeliveryStateFailed {
		s.mu.Unlock()
		return message.Message{}, chat_errors.ErrNotFound
	}
	failed := s.messages[i]
	s.mu.Unlock()
	return s.sendTo(ctx, target, failed.Content, failed.Kind)
}

func (s *Store) sendTo(ctx context.Context, conversationID, content string, kind domain.MessageKind) (message.Message, error) {
	const op = "send message"
	if strings.TrimSpace(content) == "" {
		return message.Message{}, chat_errors.Validation(op, "content")
	}
	if !kind.Valid() {
		return message.Message{}, chat_errors.Validation(op, "kind")
	}
	if conversation.IsProvisionalID(conversationID) {
		return message.Message{}, chat_errors.Validation(op, "confirmed conversation_id")
	}

	temp := message.Message{
		ID:             message.NewTemporaryID(),
		ConversationID: conversationID,
		SenderID:       s.session.UserID,
		Content:        content,
		Kind:           kind,
		CreatedAt:      s.now().UTC(),
		DeliveryState:  domain.DeliveryStateSending,
		Read:           true,
	}
	s.mu.Lock()
	if s.activeID == conversationID {
		s.messages = append(s.messages, temp)
	}
	s.mu.Unlock()
	s.publish()

	raw, err := s.remote.SendMessage(ctx, remote.SendMessageInput{
		ConversationID: conversationID,
		SenderID:       s.session.UserID,
		Kind:           kind,
		Content:        content,
	})
	if err != nil {
		failed := temp
		failed.DeliveryState = domain.DeliveryStateFailed
		s.mu.Lock()
		if i := s.messageIndexLocked(temp.ID); i >= 0 {
			s.messages[i] = failed
		}
		s.mu.Unlock()
		s.warn(ctx, conversationID, "send message failed", err)
		s.publish()
		return failed, err
	}

	sent := temp
	sent.DeliveryState = domain.DeliveryStateSent
	sent.ID = normalize.MessageID(raw)
	if sent.ID == "" {
		sent.ID = s.resolveSentID(ctx, conversationID, temp)
	}
	if sent.ID == "" {
		// Acknowledged but unidentified until the next reload.
		sent.ID = temp.ID
	}
	s.mu.Lock()
	if i := s.messageIndexLocked(temp.ID); i >= 0 {
		if sent.ID != temp.ID && s.messageIndexLocked(sent.ID) >= 0 {
			// A reload finishing mid-send already brought the server copy.
			s.messages = slices.Delete(s.messages, i, i+1)
		} else {
			s.messages[i] = sent
		}
	}
	s.touchConversationLocked(conversationID, conversation.Summary{
		Content:   sent.Content,
		Kind:      sent.Kind,
		CreatedAt: sent.CreatedAt,
	})
	s.mu.Unlock()
	s.publish()

	s.goBackground(ctx, func(ctx context.Context) {
		s.loadMessages(ctx, conversationID)
		s.LoadConversations(ctx)
	})
	return sent, nil
}

// resolveSentID looks up the server id of a message whose send reply carried
// none: the newest message from this user with the same kind and content
// that the local list does not hold yet.
func (s *Store) resolveSentID(ctx context.Context, conversationID string, sent message.Message) string {
	raw, err := s.remote.FetchMessages(ctx, conversationID, s.session.UserID)
	if err != nil {
		s.warn(ctx, conversationID, "resolve sent message id failed", err)
		return ""
	}
	fetched := s.normalizer.Messages(raw, conversationID)

	s.mu.Lock()
	known := make(map[string]bool, len(s.messages))
	for _, m := range s.messages {
		known[m.ID] = true
	}
	s.mu.Unlock()

	for i := len(fetched) - 1; i >= 0; i-- {
		m := fetched[i]
		if m.IsMine(s.session.UserID) && m.Kind == sent.Kind && m.Content == sent.Content && !known[m.ID] {
			return m.ID
		}
	}
	return ""
}

// DeleteMessages removes messages from the active conversation.
//
// For DeleteForMe the messages disappear locally at once and the backend
// hides them for this user; a backend error is returned without restoring
// them. For DeleteForEveryone the backend is asked first and local state
// changes only on success. Messages that never reached the backend are
// removed locally without a call. A message the backend acknowledged without
// an id cannot be deleted for everyone until a reload identifies it.
func (s *Store) DeleteMessages(ctx context.Context, messageIDs []string, deleteType domain.DeleteType) error {
	const op = "delete message"
	if len(messageIDs) == 0 {
		return chat_errors.Validation(op, "message_ids")
	}
	if !deleteType.Valid() {
		return chat_errors.Validation(op, "delete_type")
	}
	target := s.ActiveID()
	if target == "" {
		return chat_errors.ErrNoActiveConversation
	}

	var serverIDs []string
	unidentified := false
	s.mu.Lock()
	for _, id := range messageIDs {
		if !message.IsTemporaryID(id) {
			serverIDs = append(serverIDs, id)
			continue
		}
		if i := s.messageIndexLocked(id); i >= 0 && s.messages[i].DeliveryState == domain.DeliveryStateSent {
			unidentified = true
		}
	}
	s.mu.Unlock()
	if unidentified && deleteType == domain.DeleteForEveryone {
		return chat_errors.Validation(op, "server message_id")
	}

	if deleteType == domain.DeleteForMe {
		s.removeMessages(ctx, target, messageIDs)
	}
	if len(serverIDs) > 0 {
		if err := s.remote.DeleteMessages(ctx, serverIDs, deleteType, s.session.UserID); err != nil {
			s.warn(ctx, target, "delete message failed", err)
			return err
		}
	}
	if deleteType == domain.DeleteForEveryone {
		s.removeMessages(ctx, target, messageIDs)
	}

	s.goBackground(ctx, func(ctx context.Context) {
		s.LoadConversations(ctx)
	})
	return nil
}

// removeMessages drops ids from the local list when conversationID is still
// active and refreshes the conversation summary from what remains.
func (s *Store) removeMessages(ctx context.Context, conversationID string, ids []string) {
	s.mu.Lock()
	if s.activeID != conversationID {
		s.mu.Unlock()
		return
	}
	s.messages = slices.DeleteFunc(s.messages, func(m message.Message) bool {
		return slices.Contains(ids, m.ID)
	})
	if i := s.conversationIndexLocked(conversationID); i >= 0 {
		summary := conversation.Summary{}
		for j := len(s.messages) - 1; j >= 0; j-- {
			if s.messages[j].DeliveryState != domain.DeliveryStateFailed {
				m := s.messages[j]
				summary = conversation.Summary{Content: m.Content, Kind: m.Kind, CreatedAt: m.CreatedAt}
				break
			}
		}
		s.conversations[i].LastMessage = summary
	}
	s.mu.Unlock()
	s.publish()
	s.logger.Debug(s.logCtx(ctx, conversationID), "messages removed locally", zap.Int("count", len(ids)))
}

func (s *Store) messageIndexLocked(id string) int {
	return slices.IndexFunc(s.messages, func(m message.Message) bool {
		return m.ID == id
	})
}
