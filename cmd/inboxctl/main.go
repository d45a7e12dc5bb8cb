package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/brightpath-hq/inbox/internal/config"
	"github.com/brightpath-hq/inbox/internal/profile"
	"github.com/brightpath-hq/inbox/internal/rest"
)

var profileFlag string

var rootCmd = &cobra.Command{
	Use:   "inboxctl",
	Short: "Inbox backend CLI",
	Long:  "Command-line interface to the conversations backend.\nInspect conversations, send messages, and follow the realtime stream without the TUI.",
}

func main() {
	rootCmd.PersistentFlags().StringVar(&profileFlag, "profile", "", "profile name (overrides config default)")
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// activeProfile resolves and validates the profile for this invocation.
func activeProfile() (string, error) {
	name := profile.Resolve(profileFlag)
	if err := profile.ValidateName(name); err != nil {
		return "", err
	}
	return name, nil
}

// loadConfig reads the global config and checks the fields every backend
// call needs.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(profile.ConfigPath())
	if err != nil {
		return nil, fmt.Errorf("load %s: %w (run `inboxctl init` first)", profile.ConfigPath(), err)
	}
	if cfg.BackendURL == "" {
		return nil, fmt.Errorf("%s: backend_url is not set", profile.ConfigPath())
	}
	return cfg, nil
}

// newBackend builds a REST client from the global config.
func newBackend() (*rest.Client, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	return rest.NewClient(cfg.BackendURL, cfg.AccessToken), cfg, nil
}
