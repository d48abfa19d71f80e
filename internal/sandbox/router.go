package sandbox

import (
	"net/http"
	"time"

	"marketplace-chat/internal/middleware"
	"marketplace-chat/internal/transport/httpdto"
	"marketplace-chat/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// NewRouter mounts the /v2 endpoints on a fresh gin engine.
func NewRouter(backend *Backend, secret []byte, l *logger.Logger) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestID())
	engine.Use(middleware.LoggingMiddleware(l))
	engine.Use(middleware.ErrorHandler(l))

	engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, httpdto.OK(gin.H{"message": "pong"}))
	})

	h := NewHandler(backend)
	engine.GET("/uploads/image/:name", h.ServeUpload)
	v2 := engine.Group("/v2", middleware.AuthMiddleware(secret))
	{
		v2.GET("/get-user-conversations/:userId", h.ListConversations)
		v2.POST("/get-messages", h.GetMessages)
		v2.POST("/start-conversation", h.StartConversation)
		v2.POST("/send-message", h.SendMessage)
		v2.POST("/delete-message", h.DeleteMessage)
		v2.POST("/delete-conversation", h.DeleteConversation)
		v2.POST("/mark-messages-read", h.MarkRead)
		v2.POST("/upload/image", h.Upload(httpdto.UploadFieldImage))
		v2.POST("/upload/audio", h.Upload(httpdto.UploadFieldAudio))
	}
	return engine
}

// IssueToken signs an access token the sandbox accepts.
func IssueToken(secret []byte, userID, name string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := middleware.AccessClaims{
		Name: name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}
