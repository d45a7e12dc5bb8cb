package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/brightpath-hq/inbox/internal/config"
	"github.com/brightpath-hq/inbox/internal/profile"
)

var (
	initBackendURL  string
	initRealtimeURL string
	initToken       string
	initUserID      string
	initChannel     string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the global config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := profile.ConfigPath()

		// Start from the existing file so init can update single fields.
		cfg, err := config.Load(path)
		if err != nil {
			cfg = &config.Config{}
		}
		if initBackendURL != "" {
			cfg.BackendURL = initBackendURL
		}
		if initRealtimeURL != "" {
			cfg.RealtimeURL = initRealtimeURL
		}
		if initToken != "" {
			cfg.AccessToken = initToken
		}
		if initUserID != "" {
			cfg.UserID = initUserID
		}
		if initChannel != "" {
			cfg.DefaultChannel = initChannel
		}

		if err := config.Save(path, cfg); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", path)
		return nil
	},
}

func init() {
	initCmd.Flags().StringVar(&initBackendURL, "backend-url", "", "conversations REST API base URL")
	initCmd.Flags().StringVar(&initRealtimeURL, "realtime-url", "", "realtime events URL (defaults to backend URL)")
	initCmd.Flags().StringVar(&initToken, "token", "", "access token")
	initCmd.Flags().StringVar(&initUserID, "user-id", "", "authenticated user id")
	initCmd.Flags().StringVar(&initChannel, "channel", "", "default channel (SMS or Email)")
	rootCmd.AddCommand(initCmd)
}
