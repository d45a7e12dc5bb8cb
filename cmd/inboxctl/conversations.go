package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/brightpath-hq/inbox/internal/adapter"
	"github.com/brightpath-hq/inbox/internal/channel"
	"github.com/brightpath-hq/inbox/internal/profile"
	"github.com/brightpath-hq/inbox/internal/rest"
)

var (
	listJSON bool

	historyLimit   int
	historyChannel string
	historyJSON    bool

	sendChannel string

	createName       string
	createAttributes string
)

var conversationsCmd = &cobra.Command{
	Use:     "conversations",
	Aliases: []string{"convos"},
	Short:   "Work with conversations",
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List conversations",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, err := newBackend()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		recs, err := client.ListConversations(ctx)
		if err != nil {
			return err
		}
		views := adapter.ConversationsToView(recs)
		if listJSON {
			return outputJSON(views)
		}
		for _, cv := range views {
			unread := ""
			if cv.UnreadCount > 0 {
				unread = fmt.Sprintf(" (%d unread)", cv.UnreadCount)
			}
			fmt.Printf("%-36s %-6s %s%s\n", cv.Sid, cv.Channel, cv.Name, unread)
		}
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history <sid>",
	Short: "Show a conversation's message history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, cfg, err := newBackend()
		if err != nil {
			return err
		}
		chDisplay, err := channel.Parse(historyChannel)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		recs, err := client.History(ctx, args[0], historyLimit, channel.ToBackend(chDisplay))
		if err != nil {
			return err
		}
		views := adapter.MessagesToView(recs, chDisplay, cfg.UserID)
		if historyJSON {
			return outputJSON(views)
		}
		// History arrives newest first; print oldest first like the TUI.
		for i := len(views) - 1; i >= 0; i-- {
			m := views[i]
			fmt.Printf("[%s] %s: %s\n", m.Timestamp, m.Sender, m.Body)
		}
		return nil
	},
}

var sendCmd = &cobra.Command{
	Use:   "send <sid> <body>",
	Short: "Send a message to a conversation",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, cfg, err := newBackend()
		if err != nil {
			return err
		}
		if cfg.UserID == "" {
			return fmt.Errorf("user_id is not set in %s", profile.ConfigPath())
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		ch := channel.Default
		if sendChannel != "" {
			ch, err = channel.Parse(sendChannel)
			if err != nil {
				return err
			}
		}
		attrs, err := json.Marshal(map[string]string{
			"channel": string(channel.ToBackend(ch)),
			"author":  cfg.UserID,
		})
		if err != nil {
			return err
		}
		msg := rest.OutboundMessage{
			Author:     cfg.UserID,
			Body:       args[1],
			Attributes: string(attrs),
		}

		var sent *rest.Message
		if ch == channel.Email {
			sent, err = client.SendEmail(ctx, args[0], msg)
		} else {
			sent, err = client.SendMessage(ctx, args[0], msg)
		}
		if err != nil {
			return err
		}
		fmt.Printf("sent %s\n", sent.Sid)
		return nil
	},
}

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a conversation",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, err := newBackend()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		rec, err := client.CreateConversation(ctx, rest.CreateConversationRequest{
			FriendlyName: createName,
			Attributes:   createAttributes,
		})
		if err != nil {
			return err
		}
		fmt.Printf("created %s\n", rec.Sid)
		return nil
	},
}

func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	listCmd.Flags().BoolVar(&listJSON, "json", false, "output in JSON format")

	historyCmd.Flags().IntVar(&historyLimit, "limit", 30, "maximum messages to fetch")
	historyCmd.Flags().StringVar(&historyChannel, "channel", "SMS", "channel to fetch (SMS or Email)")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "output in JSON format")

	sendCmd.Flags().StringVar(&sendChannel, "channel", "", "channel to send on (SMS or Email)")

	createCmd.Flags().StringVar(&createName, "name", "", "friendly name")
	createCmd.Flags().StringVar(&createAttributes, "attributes", "", "attributes JSON blob")

	conversationsCmd.AddCommand(listCmd, historyCmd, sendCmd, createCmd)
	rootCmd.AddCommand(conversationsCmd)
}
