package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/jimmy24599/kairo-sub000/internal/state"
	"github.com/jimmy24599/kairo-sub000/pkg/models"
)

var chatsArchived bool

var chatsCmd = &cobra.Command{
	Use:   "chats",
	Short: "List and manage chats",
}

var chatsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List chats",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(db *state.DB) error {
			status := models.ChatStatusActive
			if chatsArchived {
				status = models.ChatStatusArchived
			}
			return listChats(cmd.OutOrStdout(), db, status)
		})
	},
}

var chatsShowCmd = &cobra.Command{
	Use:   "show <chat-id>",
	Short: "Print a chat's transcript",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(db *state.DB) error {
			return showTranscript(cmd.OutOrStdout(), db, args[0])
		})
	},
}

var chatsArchiveCmd = &cobra.Command{
	Use:   "archive <chat-id>",
	Short: "Hide a chat from the default list",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(db *state.DB) error {
			if err := db.ArchiveChat(args[0]); err != nil {
				return fmt.Errorf("archive chat: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Archived chat %s\n", args[0])
			return nil
		})
	},
}

var chatsDeleteCmd = &cobra.Command{
	Use:   "delete <chat-id>",
	Short: "Mark a chat as deleted",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(db *state.DB) error {
			if err := db.DeleteChat(args[0]); err != nil {
				return fmt.Errorf("delete chat: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted chat %s\n", args[0])
			return nil
		})
	},
}

func init() {
	chatsListCmd.Flags().BoolVar(&chatsArchived, "archived", false, "List archived chats instead")

	chatsCmd.AddCommand(chatsListCmd)
	chatsCmd.AddCommand(chatsShowCmd)
	chatsCmd.AddCommand(chatsArchiveCmd)
	chatsCmd.AddCommand(chatsDeleteCmd)
}

func withStore(fn func(db *state.DB) error) error {
	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(db)
}

func listChats(out io.Writer, db *state.DB, status models.ChatStatus) error {
	chats, err := db.ListChats(&status)
	if err != nil {
		return fmt.Errorf("list chats: %w", err)
	}
	if len(chats) == 0 {
		fmt.Fprintf(out, "No %s chats.\n", status)
		return nil
	}
	for _, c := range chats {
		fmt.Fprintf(out, "%s  %-40s  %3d messages  %s\n",
			c.ID, c.Name, c.MessageCount, c.LastMessageAt.Local().Format("2006-01-02 15:04"))
	}
	return nil
}

func showTranscript(out io.Writer, db *state.DB, chatID string) error {
	chat, err := db.GetChat(chatID)
	if err != nil {
		return err
	}
	if chat == nil {
		return fmt.Errorf("chat %s not found", chatID)
	}
	msgs, err := db.ListMessages(chatID, 0)
	if err != nil {
		return fmt.Errorf("list messages: %w", err)
	}

	color.New(color.Bold).Fprintln(out, chat.Name)
	for _, m := range msgs {
		prefix := color.CyanString("kairo")
		if m.Role == models.RoleUser {
			prefix = color.GreenString("you")
		}
		fmt.Fprintf(out, "\n%s [%s]\n%s\n", prefix, m.Variant, m.Content)
	}
	return nil
}
