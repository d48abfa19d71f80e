package httpdto

// SendMessageRequest is used for POST /v2/send-message
type SendMessageRequest struct {
	ConversationID ID     `json:"conversation_id"`
	SenderID       ID     `json:"sender_id"`
	MessageType    string `json:"message_type"`
	MessageText    string `json:"message_text"`
	MediaURL       string `json:"media_url,omitempty"`
}

type SendMessageResponse struct {
	MessageID ID `json:"message_id"`
}

// DeleteMessageRequest is used for POST /v2/delete-message
type DeleteMessageRequest struct {
	MessageIDs []ID  `json:"message_ids"`
	DeleteType string `json:"delete_type"`
	UserID     ID    `json:"user_id"`
}

// MarkMessagesReadRequest is used for POST /v2/mark-messages-read
type MarkMessagesReadRequest struct {
	ConversationID ID   `json:"conversation_id"`
	MessageIDs     []ID `json:"message_ids"`
}
