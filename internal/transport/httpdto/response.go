package httpdto

// Error codes used by the sandbox backend.
const (
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeUnauthorized   = "UNAUTHORIZED"
	CodeForbidden      = "FORBIDDEN"
	CodeNotFound       = "NOT_FOUND"
	CodeTooLarge       = "TOO_LARGE"
	CodeInternal       = "INTERNAL_ERROR"
)

// Envelope wraps sandbox replies that are not bare payloads. Failures carry
// the text under message, where the chat client looks for it first.
type Envelope[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
}

func OK[T any](data T) Envelope[T] {
	return Envelope[T]{Success: true, Data: data}
}

func Fail(code, message string) Envelope[any] {
	return Envelope[any]{Code: code, Message: message}
}
