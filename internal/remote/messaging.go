package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path/filepath"

	"marketplace-chat/internal/domain"
	"marketplace-chat/internal/normalize"
	"marketplace-chat/internal/transport/httpdto"
	chat_errors "marketplace-chat/pkg/errors"

	"go.uber.org/zap"
)

type StartConversationInput struct {
	UserAID string
	UserBID string
	AdID    string
	// InitialMessage, when set, is sent as text once the conversation exists.
	InitialMessage string
}

type SendMessageInput struct {
	ConversationID string
	SenderID       string
	Kind           domain.MessageKind
	// Content is the text, or the uploaded media reference for image/audio.
	Content string
}

// File is a media attachment to upload.
type File struct {
	Name        string
	ContentType string
	Body        io.Reader
}

// FetchConversations returns the raw conversation list of userID.
func (c *Client) FetchConversations(ctx context.Context, userID string) (json.RawMessage, error) {
	const op = "fetch conversations"
	if userID == "" {
		return nil, chat_errors.Validation(op, "user_id")
	}
	data, _, err := c.do(ctx, op, http.MethodGet, "/v2/get-user-conversations/"+url.PathEscape(userID), nil, "")
	if err != nil {
		return nil, err
	}
	return data, nil
}

// FetchMessages returns the raw message list. A 204 or an empty body is a
// valid empty result.
func (c *Client) FetchMessages(ctx context.Context, conversationID, userID string) (json.RawMessage, error) {
	const op = "fetch messages"
	if conversationID == "" {
		return nil, chat_errors.Validation(op, "conversation_id")
	}
	if userID == "" {
		return nil, chat_errors.Validation(op, "user_id")
	}
	data, status, err := c.postJSON(ctx, op, "/v2/get-messages", httpdto.GetMessagesRequest{
		ConversationID: httpdto.ID(conversationID),
		UserID:         httpdto.ID(userID),
	})
	if err != nil {
		return nil, err
	}
	if status == http.StatusNoContent || len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	return data, nil
}

// StartConversation creates a conversation and, if an initial message is
// given, sends it. A failure of that second call is logged, not returned.
func (c *Client) StartConversation(ctx context.Context, in StartConversationInput) (json.RawMessage, error) {
	const op = "start conversation"
	switch {
	case in.UserAID == "":
		return nil, chat_errors.Validation(op, "user1_id")
	case in.UserBID == "":
		return nil, chat_errors.Validation(op, "user2_id")
	case in.AdID == "":
		return nil, chat_errors.Validation(op, "ad_id")
	}

	data, status, err := c.postJSON(ctx, op, "/v2/start-conversation", httpdto.StartConversationRequest{
		User1ID: httpdto.ID(in.UserAID),
		User2ID: httpdto.ID(in.UserBID),
		AdID:    httpdto.ID(in.AdID),
	})
	if err != nil {
		return nil, err
	}
	conversationID := normalize.ConversationID(data)
	if conversationID == "" {
		return nil, chat_errors.Server(op, status, "response carried no conversation id")
	}

	if in.InitialMessage != "" {
		_, err := c.SendMessage(ctx, SendMessageInput{
			ConversationID: conversationID,
			SenderID:       in.UserAID,
			Kind:           domain.MessageKindText,
			Content:        in.InitialMessage,
		})
		if err != nil {
			c.logger.Warn(ctx, "initial message not sent",
				zap.String("conversation_id", conversationID),
				zap.Error(err),
			)
		}
	}
	return data, nil
}

// SendMessage posts one message. The reply usually holds only the new id.
func (c *Client) SendMessage(ctx context.Context, in SendMessageInput) (json.RawMessage, error) {
	const op = "send message"
	switch {
	case in.ConversationID == "":
		return nil, chat_errors.Validation(op, "conversation_id")
	case in.SenderID == "":
		return nil, chat_errors.Validation(op, "sender_id")
	case in.Content == "":
		return nil, chat_errors.Validation(op, "message_text")
	case !in.Kind.Valid():
		return nil, chat_errors.Validation(op, "message_type")
	}

	req := httpdto.SendMessageRequest{
		ConversationID: httpdto.ID(in.ConversationID),
		SenderID:       httpdto.ID(in.SenderID),
		MessageType:    string(in.Kind),
	}
	if in.Kind.IsMedia() {
		req.MediaURL = in.Content
	} else {
		req.MessageText = in.Content
	}
	data, _, err := c.postJSON(ctx, op, "/v2/send-message", req)
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (c *Client) DeleteMessages(ctx context.Context, messageIDs []string, deleteType domain.DeleteType, userID string) error {
	const op = "delete message"
	switch {
	case len(messageIDs) == 0:
		return chat_errors.Validation(op, "message_ids")
	case !deleteType.Valid():
		return chat_errors.Validation(op, "delete_type")
	case userID == "":
		return chat_errors.Validation(op, "user_id")
	}
	_, _, err := c.postJSON(ctx, op, "/v2/delete-message", httpdto.DeleteMessageRequest{
		MessageIDs: httpdto.IDs(messageIDs),
		DeleteType: string(deleteType),
		UserID:     httpdto.ID(userID),
	})
	return err
}

func (c *Client) DeleteConversation(ctx context.Context, conversationID string) error {
	const op = "delete conversation"
	if conversationID == "" {
		return chat_errors.Validation(op, "conversation_id")
	}
	_, _, err := c.postJSON(ctx, op, "/v2/delete-conversation", httpdto.DeleteConversationRequest{
		ConversationID: httpdto.ID(conversationID),
	})
	return err
}

// MarkRead is best effort: failures are logged and never returned.
func (c *Client) MarkRead(ctx context.Context, conversationID string, messageIDs []string) {
	const op = "mark messages read"
	if conversationID == "" || len(messageIDs) == 0 {
		c.logger.Warn(ctx, "mark read skipped", zap.String("reason", "missing conversation or message ids"))
		return
	}
	_, _, err := c.postJSON(ctx, op, "/v2/mark-messages-read", httpdto.MarkMessagesReadRequest{
		ConversationID: httpdto.ID(conversationID),
		MessageIDs:     httpdto.IDs(messageIDs),
	})
	if err != nil {
		c.logger.Warn(ctx, "mark read failed",
			zap.String("conversation_id", conversationID),
			zap.Int("count", len(messageIDs)),
			zap.Error(err),
		)
	}
}

// UploadMedia uploads an image or audio file and returns the reference to use
// as message content.
func (c *Client) UploadMedia(ctx context.Context, kind domain.MessageKind, file File) (string, error) {
	const op = "upload media"
	if !kind.IsMedia() {
		return "", chat_errors.Validation(op, "media kind")
	}
	if file.Body == nil {
		return "", chat_errors.Validation(op, "file")
	}

	field := httpdto.UploadFieldImage
	if kind == domain.MessageKindAudio {
		field = httpdto.UploadFieldAudio
	}
	name := file.Name
	if name == "" {
		name = field
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+escapeQuotes(filepath.Base(name))+`"`)
	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	if err != nil {
		return "", chat_errors.Upload(op, err.Error())
	}
	if _, err := io.Copy(part, file.Body); err != nil {
		return "", chat_errors.Upload(op, err.Error())
	}
	if err := mw.Close(); err != nil {
		return "", chat_errors.Upload(op, err.Error())
	}

	data, _, err := c.do(ctx, op, http.MethodPost, "/v2/upload/"+field, &buf, mw.FormDataContentType())
	if err != nil {
		return "", err
	}
	ref, ok := normalize.MediaReference(data)
	if !ok {
		return "", chat_errors.Upload(op, "no media reference in response")
	}
	return ref, nil
}

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
