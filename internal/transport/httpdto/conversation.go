package httpdto

// GetMessagesRequest is used for POST /v2/get-messages
type GetMessagesRequest struct {
	ConversationID ID `json:"conversation_id"`
	UserID         ID `json:"user_id"`
}

// StartConversationRequest is used for POST /v2/start-conversation
type StartConversationRequest struct {
	User1ID ID `json:"user1_id"`
	User2ID ID `json:"user2_id"`
	AdID    ID `json:"ad_id"`
}

type StartConversationResponse struct {
	ConversationID ID     `json:"conversation_id"`
	Status         string `json:"status,omitempty"`
}

// DeleteConversationRequest is used for POST /v2/delete-conversation
type DeleteConversationRequest struct {
	ConversationID ID `json:"conversation_id"`
}
