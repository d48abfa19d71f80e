package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"marketplace-chat/internal/domain"
	"marketplace-chat/internal/domain/conversation"
	"marketplace-chat/internal/domain/message"
	"marketplace-chat/internal/store"
)

func printConversations(w io.Writer, s *store.Store, list []conversation.Conversation) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No conversations yet.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tWITH\tAD\tLAST MESSAGE\tUNREAD\tUPDATED")
	for _, c := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
			c.ID, participant(s, c), truncate(c.AdTitle, 30), summary(c.LastMessage), c.UnreadCount, when(c.UpdatedAt))
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d unread\n", s.TotalUnread())
}

func printMessages(w io.Writer, s *store.Store, snap store.Snapshot) {
	if snap.Active != nil {
		fmt.Fprintf(w, "%s | %s\n\n", participant(s, *snap.Active), snap.Active.AdTitle)
	}
	if len(snap.Messages) == 0 {
		fmt.Fprintln(w, "No messages yet.")
		return
	}
	for _, m := range snap.Messages {
		fmt.Fprintln(w, formatMessage(s, m, snap.UserID))
	}
}

func formatMessage(s *store.Store, m message.Message, me string) string {
	who := "them"
	if m.IsMine(me) {
		who = "me"
	}
	body := m.Content
	if m.Kind.IsMedia() {
		body = fmt.Sprintf("[%s] %s", m.Kind, s.MediaURL(m))
	}
	switch m.DeliveryState {
	case domain.DeliveryStateSending:
		body += " (sending)"
	case domain.DeliveryStateFailed:
		body += " (failed)"
	}
	return fmt.Sprintf("%s  %-4s  %s  #%s", when(m.CreatedAt), who, body, m.ID)
}

func participant(s *store.Store, c conversation.Conversation) string {
	avatar := s.Avatar(c)
	if avatar.IsDefault() {
		return "(" + avatar.Initials + ") " + c.OtherParticipant.DisplayName
	}
	return c.OtherParticipant.DisplayName
}

func summary(sum conversation.Summary) string {
	switch sum.Kind {
	case domain.MessageKindImage:
		return "[image]"
	case domain.MessageKindAudio:
		return "[voice note]"
	}
	return truncate(sum.Content, 40)
}

func when(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("Jan 02 15:04")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
