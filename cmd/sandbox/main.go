package main

import (
	"log"
	"time"

	"marketplace-chat/config"
	"marketplace-chat/internal/sandbox"
	"marketplace-chat/internal/server"
	"marketplace-chat/pkg/logger"
)

// demoUsers are seeded so the chat CLI has someone to talk to.
var demoUsers = []struct {
	id, name, avatar string
}{
	{"1", "Bea Buyer", ""},
	{"2", "Sam Seller", "sam.png"},
}

func main() {
	cfg := config.LoadConfig()

	l := logger.New(cfg.AppMode)
	logger.SetGlobalLogger(l)
	defer l.Sync()

	backend := sandbox.NewBackend(sandbox.Shapes{
		ConversationList: cfg.Sandbox.ListShape,
		Upload:           cfg.Sandbox.UploadShape,
	})
	for _, u := range demoUsers {
		backend.AddUser(u.id, u.name, u.avatar)
		token, err := sandbox.IssueToken([]byte(cfg.Sandbox.JWTSecret), u.id, u.name, 24*time.Hour)
		if err != nil {
			log.Fatalf("Failed to issue demo token: %v", err)
		}
		l.Infof("Demo user %s (%s): SESSION_TOKEN=%s", u.id, u.name, token)
	}
	backend.AddAd("55", "2016 VW Golf, 90k km")

	srv := server.New(cfg, backend, l)
	if err := srv.Start(); err != nil {
		log.Fatalf("Sandbox stopped: %v", err)
	}
}
