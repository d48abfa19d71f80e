package main

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"marketplace-chat/internal/domain"
	"marketplace-chat/internal/remote"
	"marketplace-chat/internal/store"

	"github.com/spf13/cobra"
)

func conversationsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "conversations",
		Short: "List your conversations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			list := current.store.LoadConversations(ctx)
			if err := current.store.Err(); err != nil {
				return err
			}
			current.rememberParticipants(ctx, list)
			printConversations(cmd.OutOrStdout(), current.store, list)
			return nil
		},
	}
}

func messagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "messages <conversation-id>",
		Short: "Show a conversation and mark it read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			current.store.LoadConversations(ctx)
			current.store.SetActive(ctx, args[0])
			if err := current.store.Err(); err != nil {
				return err
			}
			printMessages(cmd.OutOrStdout(), current.store, current.store.Snapshot())
			return nil
		},
	}
}

func sendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send <conversation-id> <text>...",
		Short: "Send a text message",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			current.store.SetActive(ctx, args[0])
			m, err := current.store.Send(ctx, strings.Join(args[1:], " "), domain.MessageKindText)
			if m.ID != "" {
				fmt.Fprintln(cmd.OutOrStdout(), formatMessage(current.store, m, current.session.UserID))
			}
			return err
		},
	}
}

func sendMediaCmd(use, short string, kind domain.MessageKind) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <conversation-id> <file>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			f, err := os.Open(args[1])
			if err != nil {
				return err
			}
			defer f.Close()

			current.store.SetActive(ctx, args[0])
			m, err := current.store.SendMedia(ctx, kind, remote.File{
				Name:        filepath.Base(args[1]),
				ContentType: mime.TypeByExtension(strings.ToLower(filepath.Ext(args[1]))),
				Body:        f,
			})
			if m.ID != "" {
				fmt.Fprintln(cmd.OutOrStdout(), formatMessage(current.store, m, current.session.UserID))
			}
			return err
		},
	}
}

func startCmd() *cobra.Command {
	var in store.StartInput
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Contact the seller of an ad",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			current.store.LoadConversations(ctx)
			id, err := current.store.StartConversation(ctx, in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "conversation %s\n", id)
			return nil
		},
	}
	cmd.Flags().StringVar(&in.SellerID, "seller", "", "seller user id")
	cmd.Flags().StringVar(&in.SellerName, "seller-name", "", "seller display name")
	cmd.Flags().StringVar(&in.AdID, "ad", "", "ad id")
	cmd.Flags().StringVar(&in.AdTitle, "title", "", "ad title")
	cmd.Flags().StringVarP(&in.InitialMessage, "message", "m", "", "first message")
	_ = cmd.MarkFlagRequired("seller")
	_ = cmd.MarkFlagRequired("ad")
	_ = cmd.MarkFlagRequired("message")
	return cmd
}

func deleteConversationCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete-conversation <conversation-id>",
		Short: "Delete a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			current.store.LoadConversations(ctx)
			if err := current.store.DeleteConversation(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted conversation %s\n", args[0])
			return nil
		},
	}
}

func deleteMessageCmd() *cobra.Command {
	var everyone bool
	cmd := &cobra.Command{
		Use:   "delete-message <conversation-id> <message-id>...",
		Short: "Delete messages for you, or for everyone",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			deleteType := domain.DeleteForMe
			if everyone {
				deleteType = domain.DeleteForEveryone
			}
			current.store.SetActive(ctx, args[0])
			if err := current.store.DeleteMessages(ctx, args[1:], deleteType); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d message(s) for %s\n", len(args)-1, deleteType)
			return nil
		},
	}
	cmd.Flags().BoolVar(&everyone, "everyone", false, "remove for both participants")
	return cmd
}

func watchCmd() *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "watch <conversation-id>",
		Short: "Follow a conversation by polling",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			s := current.store
			me := current.session.UserID

			var mu sync.Mutex
			seen := make(map[string]bool)
			unsubscribe := s.Subscribe(func(snap store.Snapshot) {
				if snap.ActiveID != args[0] || snap.Phase != store.PhaseLoaded {
					return
				}
				mu.Lock()
				defer mu.Unlock()
				for _, m := range snap.Messages {
					if m.IsTemporary() || seen[m.ID] {
						continue
					}
					seen[m.ID] = true
					fmt.Fprintln(out, formatMessage(s, m, me))
				}
			})
			defer unsubscribe()

			s.LoadConversations(ctx)
			s.SetActive(ctx, args[0])
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					s.Refresh(ctx)
				}
			}
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 5*time.Second, "poll interval")
	return cmd
}
