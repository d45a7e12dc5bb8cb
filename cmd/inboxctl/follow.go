package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/brightpath-hq/inbox/internal/bus"
	"github.com/brightpath-hq/inbox/internal/logging"
	"github.com/brightpath-hq/inbox/internal/profile"
	"github.com/brightpath-hq/inbox/internal/realtime"
	"github.com/brightpath-hq/inbox/internal/status"
)

var followSids []string

var followCmd = &cobra.Command{
	Use:   "follow",
	Short: "Stream realtime events as JSON lines",
	Long:  "Connects to the realtime endpoint and prints every push event to stdout as one JSON object per line, until interrupted.",
	RunE: func(cmd *cobra.Command, args []string) error {
		name, err := activeProfile()
		if err != nil {
			return err
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := profile.EnsureDir(name); err != nil {
			return err
		}
		// Log to the profile's file; stdout carries only event lines.
		logger, err := logging.New(profile.LogPath(name), name, false)
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		b := bus.New()
		machine := status.NewMachine(b)
		events, unsub := b.Subscribe("rt.", 256)
		defer unsub()

		url := cfg.RealtimeURL
		if url == "" {
			url = cfg.BackendURL
		}
		mgr := realtime.NewManager(url, b, machine, logger, realtime.Options{})
		defer mgr.Disconnect()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if _, err := mgr.Connect(ctx, cfg.AccessToken); err != nil {
			cancel()
			return err
		}
		cancel()

		for _, sid := range followSids {
			mgr.Subscribe(sid)
		}

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

		enc := json.NewEncoder(os.Stdout)
		for {
			select {
			case evt := <-events:
				line := map[string]any{
					"kind":      evt.Kind,
					"timestamp": evt.Timestamp,
					"payload":   evt.Payload,
				}
				if err := enc.Encode(line); err != nil {
					return err
				}
			case <-sigCh:
				fmt.Fprintln(os.Stderr, "interrupted")
				return nil
			}
		}
	},
}

func init() {
	followCmd.Flags().StringSliceVar(&followSids, "sid", nil, "conversation sid(s) to subscribe to")
	conversationsCmd.AddCommand(followCmd)
}
