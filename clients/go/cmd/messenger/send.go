package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/enot3481-eng/messenger-app/clients/go/messenger"
	"github.com/enot3481-eng/messenger-app/clients/go/messenger/store"
	"github.com/enot3481-eng/messenger-app/internal/models"
)

var sendTo string

func init() {
	sendCmd.Flags().StringVar(&sendTo, "to", "", "recipient @tag (required)")
	sendCmd.MarkFlagRequired("to")
	rootCmd.AddCommand(sendCmd)
}

var sendCmd = &cobra.Command{
	Use:   "send --to @tag <text>",
	Short: "Send a direct message",
	Long:  "Sends one message. The local copy is durable either way; delivery itself\nis best-effort and only happens if the recipient is online right now.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		text := strings.Join(args, " ")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		st, err := store.Open(ctx, cfg.storePath())
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer st.Close()

		logger := zerolog.New(os.Stderr).Level(zerolog.WarnLevel)
		client := messenger.New(messenger.Options{
			ServerURL: cfg.ServerURL,
			Profile:   cfg.Profile.toModel(),
			Store:     st,
			Logger:    logger,
		})

		recipient, err := resolveTag(ctx, client, st, sendTo)
		if err != nil {
			return err
		}

		chat, err := st.EnsureDirectChat(ctx, cfg.Profile.ID, recipient.ID)
		if err != nil {
			return err
		}

		if err := client.Connect(ctx); err != nil {
			return fmt.Errorf("connect: %w", err)
		}
		defer client.Disconnect()

		msg := messenger.NewMessage(chat.ID, cfg.Profile.ID, text, models.MessageText)
		if err := client.SendMessage(ctx, recipient.ID, msg); err != nil {
			return err
		}

		fmt.Printf("Sent to %s (chat %s)\n", recipient.Tag, chat.ID)
		return nil
	},
}

// resolveTag finds a profile by tag: relay directory first, local
// store when the relay is unreachable.
func resolveTag(ctx context.Context, client *messenger.Client, st *store.Store, tag string) (models.Profile, error) {
	if res, ok, err := client.LookupTag(ctx, tag); err == nil {
		if !ok {
			return models.Profile{}, fmt.Errorf("no user with tag %s", models.NormalizeTag(tag))
		}
		// Cache for offline resolution next time.
		_ = st.UpsertProfile(ctx, res.Profile)
		return res.Profile, nil
	}

	p, ok, err := st.FindProfileByTag(ctx, tag)
	if err != nil {
		return models.Profile{}, err
	}
	if !ok {
		return models.Profile{}, fmt.Errorf("relay unreachable and %s not known locally", models.NormalizeTag(tag))
	}
	return p, nil
}
