package user

// Ref identifies the other side of a conversation. It is derived from
// conversation participant fields and never persisted on its own.
type Ref struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
}

func (r Ref) Profile() Profile {
	return Profile{UserID: r.ID, DisplayName: r.DisplayName, AvatarURL: r.AvatarURL}
}

// Profile is the cached display data of a user.
type Profile struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}
