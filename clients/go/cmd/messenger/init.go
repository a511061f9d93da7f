package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/enot3481-eng/messenger-app/clients/go/messenger/store"
	"github.com/enot3481-eng/messenger-app/internal/models"
)

var (
	initNickname string
	initTag      string
	initEmail    string
	initBio      string
	initServer   string
)

func init() {
	initCmd.Flags().StringVar(&initNickname, "nickname", "", "display name (required)")
	initCmd.Flags().StringVar(&initTag, "tag", "", "unique @tag (required)")
	initCmd.Flags().StringVar(&initEmail, "email", "", "email address")
	initCmd.Flags().StringVar(&initBio, "bio", "", "short bio")
	initCmd.Flags().StringVar(&initServer, "server", "http://localhost:8080", "relay base URL")
	initCmd.MarkFlagRequired("nickname")
	initCmd.MarkFlagRequired("tag")
	rootCmd.AddCommand(initCmd)
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a local identity and configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		tag := models.NormalizeTag(initTag)
		if tag == "" {
			return fmt.Errorf("invalid tag %q", initTag)
		}

		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}

		cfg := &Config{
			ServerURL: initServer,
			DataDir:   filepath.Join(home, ".messenger"),
			Profile: ProfileConfig{
				ID:       uuid.New().String(),
				Nickname: initNickname,
				Tag:      tag,
				Email:    initEmail,
				Bio:      initBio,
			},
		}

		ctx := context.Background()
		st, err := store.Open(ctx, cfg.storePath())
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer st.Close()

		if err := st.UpsertProfile(ctx, cfg.Profile.toModel()); err != nil {
			return err
		}
		if err := st.SetCurrentUser(ctx, cfg.Profile.ID); err != nil {
			return err
		}
		if err := saveConfig(cfg); err != nil {
			return err
		}

		fmt.Printf("Created identity %s (%s)\n", tag, cfg.Profile.ID)
		fmt.Println("Tag uniqueness is checked by the relay on first connect.")
		return nil
	},
}
