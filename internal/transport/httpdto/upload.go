package httpdto

// Multipart field names for POST /v2/upload/image and /v2/upload/audio.
const (
	UploadFieldImage = "image"
	UploadFieldAudio = "audio"
)

// UploadResponse is the canonical upload reply. Older backends also answer
// with {data: {...}} or a bare string; the client tolerates all three.
type UploadResponse struct {
	URL string `json:"url"`
}
