package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/enot3481-eng/messenger-app/clients/go/messenger/store"
	"github.com/enot3481-eng/messenger-app/internal/models"
)

var historyQuery string

func init() {
	historyCmd.Flags().StringVar(&historyQuery, "search", "", "filter messages containing text")
	rootCmd.AddCommand(chatsCmd)
	rootCmd.AddCommand(historyCmd)
}

var chatsCmd = &cobra.Command{
	Use:   "chats",
	Short: "List chats, most recently active first",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx := context.Background()
		st, err := store.Open(ctx, cfg.storePath())
		if err != nil {
			return err
		}
		defer st.Close()

		chats, err := st.ListChats(ctx, cfg.Profile.ID)
		if err != nil {
			return err
		}
		if len(chats) == 0 {
			fmt.Println("No chats yet.")
			return nil
		}

		for _, c := range chats {
			unread, err := st.UnreadCount(ctx, c.ID, cfg.Profile.ID)
			if err != nil {
				return err
			}
			line := fmt.Sprintf("%s  [%s]", c.ID, strings.Join(c.ParticipantIDs, ", "))
			if c.LastMessage != nil {
				ts := time.UnixMilli(c.LastMessage.Timestamp).Format("2006-01-02 15:04")
				line += fmt.Sprintf("  last: %q at %s", c.LastMessage.Content, ts)
			}
			if unread > 0 {
				line += fmt.Sprintf("  (%d unread)", unread)
			}
			fmt.Println(line)
		}
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history <chat-id>",
	Short: "Show a chat's message history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx := context.Background()
		st, err := store.Open(ctx, cfg.storePath())
		if err != nil {
			return err
		}
		defer st.Close()

		var msgs []models.Message
		if historyQuery != "" {
			msgs, err = st.SearchMessages(ctx, args[0], historyQuery)
		} else {
			msgs, err = st.ListMessages(ctx, args[0])
		}
		if err != nil {
			return err
		}

		for _, m := range msgs {
			ts := time.UnixMilli(m.Timestamp).Format("2006-01-02 15:04:05")
			who := m.SenderID
			if who == cfg.Profile.ID {
				who = "me"
			}
			fmt.Printf("[%s] %s: %s\n", ts, who, m.Content)
			if !m.IsRead && m.SenderID != cfg.Profile.ID {
				_ = st.MarkRead(ctx, m.ID)
			}
		}
		return nil
	},
}
