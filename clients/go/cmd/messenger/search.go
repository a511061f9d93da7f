package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/enot3481-eng/messenger-app/clients/go/messenger"
	"github.com/enot3481-eng/messenger-app/clients/go/messenger/store"
)

func init() {
	rootCmd.AddCommand(searchCmd)
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the user directory by tag",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		client := messenger.New(messenger.Options{
			ServerURL: cfg.ServerURL,
			Profile:   cfg.Profile.toModel(),
		})

		results, err := client.SearchHTTP(ctx, args[0])
		if err == nil {
			if len(results) == 0 {
				fmt.Println("No users found.")
				return nil
			}
			for _, r := range results {
				state := "offline"
				if r.Presence.IsOnline {
					state = "online"
				}
				fmt.Printf("%-20s %-20s %s\n", r.Tag, r.DisplayName, state)
			}
			return nil
		}

		// Relay unreachable: fall back to locally cached profiles.
		st, serr := store.Open(ctx, cfg.storePath())
		if serr != nil {
			return fmt.Errorf("relay unreachable (%v) and store unavailable: %w", err, serr)
		}
		defer st.Close()

		profiles, serr := st.SearchProfilesByTag(ctx, args[0])
		if serr != nil {
			return serr
		}
		if len(profiles) == 0 {
			fmt.Println("Relay unreachable; no local matches.")
			return nil
		}
		fmt.Println("Relay unreachable; showing locally cached profiles:")
		for _, p := range profiles {
			fmt.Printf("%-20s %s\n", p.Tag, p.DisplayName)
		}
		return nil
	},
}
