package domain

import "strings"

type MessageKind string

const (
	MessageKindText  MessageKind = "text"
	MessageKindImage MessageKind = "image"
	MessageKindAudio MessageKind = "audio"
)

// ParseMessageKind maps backend type labels onto a kind. Unknown labels are text.
func ParseMessageKind(value string) MessageKind {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "image", "photo", "picture", "img":
		return MessageKindImage
	case "audio", "voice", "voice_note", "sound":
		return MessageKindAudio
	default:
		return MessageKindText
	}
}

func (k MessageKind) IsMedia() bool {
	return k == MessageKindImage || k == MessageKindAudio
}

func (k MessageKind) Valid() bool {
	return k == MessageKindText || k.IsMedia()
}

// DeliveryState is local-only and never sent to the backend.
type DeliveryState string

const (
	DeliveryStateSending DeliveryState = "sending"
	DeliveryStateSent    DeliveryState = "sent"
	DeliveryStateFailed  DeliveryState = "failed"
)

type DeleteType string

const (
	DeleteForMe       DeleteType = "me"
	DeleteForEveryone DeleteType = "everyone"
)

func (d DeleteType) Valid() bool {
	return d == DeleteForMe || d == DeleteForEveryone
}
