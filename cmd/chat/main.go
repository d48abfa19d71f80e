package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"marketplace-chat/config"
	"marketplace-chat/internal/domain"
	"marketplace-chat/internal/domain/conversation"
	"marketplace-chat/internal/media"
	chatredis "marketplace-chat/internal/redis"
	"marketplace-chat/internal/remote"
	"marketplace-chat/internal/session"
	"marketplace-chat/internal/storage"
	"marketplace-chat/internal/store"
	"marketplace-chat/pkg/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// app holds everything a command needs; it is built once per invocation.
type app struct {
	cfg      *config.Config
	logger   *logger.Logger
	session  session.Session
	store    *store.Store
	profiles *chatredis.ProfileCache
	closers  []func()
}

var (
	tokenFlag string
	apiFlag   string
	current   *app
)

func main() {
	rootCmd := &cobra.Command{
		Use:               "chat",
		Short:             "Marketplace buyer-seller chat client",
		SilenceUsage:      true,
		PersistentPreRunE: setup,
	}
	rootCmd.PersistentFlags().StringVar(&tokenFlag, "token", "", "session token (defaults to SESSION_TOKEN)")
	rootCmd.PersistentFlags().StringVar(&apiFlag, "api", "", "API base URL (defaults to API_BASE_URL)")

	rootCmd.AddCommand(
		conversationsCmd(),
		messagesCmd(),
		sendCmd(),
		sendMediaCmd("send-image", "Upload an image and send it", domain.MessageKindImage),
		sendMediaCmd("send-audio", "Upload a voice note and send it", domain.MessageKindAudio),
		startCmd(),
		deleteConversationCmd(),
		deleteMessageCmd(),
		watchCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	if current != nil {
		current.close()
	}
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setup(cmd *cobra.Command, args []string) error {
	cfg := config.LoadConfig()
	if tokenFlag != "" {
		cfg.SessionToken = tokenFlag
	}
	if apiFlag != "" {
		cfg.APIBaseURL = apiFlag
	}

	l := logger.New(cfg.AppMode)
	logger.SetGlobalLogger(l)
	a := &app{cfg: cfg, logger: l}
	a.closers = append(a.closers, l.Sync)
	ctx := cmd.Context()

	var profiles session.ProfileStore
	if cfg.Redis.Addr != "" {
		client := chatredis.NewClient(chatredis.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		a.closers = append(a.closers, func() { _ = client.Close() })
		if err := chatredis.Ping(ctx, client); err != nil {
			l.Warn(ctx, "profile cache unavailable", zap.Error(err))
		} else {
			a.profiles = chatredis.NewProfileCache(client, cfg.Redis.ProfileTTL)
			profiles = a.profiles
		}
	}

	sess, err := session.Load(ctx, cfg.SessionToken, profiles, l)
	if err != nil {
		return fmt.Errorf("sign in first (set SESSION_TOKEN or --token): %w", err)
	}
	a.session = sess

	client := remote.NewClient(remote.Config{BaseURL: cfg.APIBaseURL, Timeout: cfg.RequestTimeout}, sess, l)
	opts := store.Options{
		Media:  media.NewResolver(cfg.MediaBaseURL),
		Logger: l,
	}
	if cfg.S3.Enabled() {
		uploader, err := storage.NewS3Uploader(ctx, storage.S3Config{
			Region:     cfg.S3.Region,
			Bucket:     cfg.S3.Bucket,
			AccessKey:  cfg.S3.AccessKey,
			SecretKey:  cfg.S3.SecretKey,
			Endpoint:   cfg.S3.Endpoint,
			PublicBase: cfg.S3.PublicBase,
		})
		if err != nil {
			return fmt.Errorf("s3 uploader: %w", err)
		}
		opts.Uploader = uploader
	}
	a.store = store.New(sess, client, opts)
	current = a
	return nil
}

func (a *app) close() {
	a.store.Wait()
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// rememberParticipants writes the participants of list to the profile cache.
func (a *app) rememberParticipants(ctx context.Context, list []conversation.Conversation) {
	if a.profiles == nil {
		return
	}
	for _, c := range list {
		p := c.OtherParticipant
		if p.ID == "" || c.IsProvisional {
			continue
		}
		profile := p.Profile()
		if err := a.profiles.SetProfile(ctx, profile); err != nil {
			a.logger.Warn(ctx, "profile cache write failed", zap.String("participant_id", p.ID), zap.Error(err))
			return
		}
	}
}
