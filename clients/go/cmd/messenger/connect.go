package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/enot3481-eng/messenger-app/clients/go/messenger"
	"github.com/enot3481-eng/messenger-app/clients/go/messenger/store"
	"github.com/enot3481-eng/messenger-app/internal/models"
)

func init() {
	rootCmd.AddCommand(connectCmd)
}

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Stay connected and stream incoming messages",
	Long:  "Connects to the relay, announces presence and prints incoming messages.\nEverything received is merged into the local history.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx := context.Background()
		st, err := store.Open(ctx, cfg.storePath())
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer st.Close()

		logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
			With().Timestamp().Logger()

		client := messenger.New(messenger.Options{
			ServerURL:     cfg.ServerURL,
			Profile:       cfg.Profile.toModel(),
			Store:         st,
			Logger:        logger,
			AutoReconnect: true,
		})

		client.OnMessage(func(m models.Message) {
			ts := time.UnixMilli(m.Timestamp).Format(time.Kitchen)
			fmt.Printf("[%s] %s: %s\n", ts, m.SenderID, m.Content)
		})
		client.OnError(func(msg string) {
			fmt.Fprintln(os.Stderr, "relay:", msg)
		})

		if err := client.Connect(ctx); err != nil {
			return err
		}
		defer client.Disconnect()

		fmt.Printf("Connected as %s. Waiting for messages, Ctrl-C to quit.\n", cfg.Profile.Tag)

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		return nil
	},
}
