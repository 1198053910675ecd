// Package history implements the history command for past chat sessions.
package history

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/mwallis/sidekick/internal/cli"
	"github.com/mwallis/sidekick/internal/session"
	"github.com/mwallis/sidekick/internal/store"
)

// NewCmd instantiates and returns the history command.
func NewCmd(s *store.Store) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past chat sessions",
		Long:  "List past chat sessions. The most recent one is resumed by the chat command.",
		Args:  cobra.ExactArgs(0),
		Run: func(cmd *cobra.Command, args []string) {
			manager := session.NewManager(s, nil, "")
			cobra.CheckErr(manager.Load())

			entries := manager.HistoryView()
			if len(entries) == 0 {
				cli.StatusInfo("No chat history.\n")
				return
			}
			for i, entry := range entries {
				timestamp := time.UnixMilli(entry.FirstTimestamp()).Format("2006-01-02 15:04")
				cli.UserCommand("%3d  %s  %2d messages  ", i+1, timestamp, len(entry))
				cli.UserInput("%s\n", preview(entry))
			}
		},
	}
	cmd.AddCommand(newClearCmd(s))
	return cmd
}

func newClearCmd(s *store.Store) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete all chat history",
		Args:  cobra.ExactArgs(0),
		Run: func(cmd *cobra.Command, args []string) {
			manager := session.NewManager(s, nil, "")
			cobra.CheckErr(manager.Load())
			if !cli.QueryUser("Delete all chat history?") {
				return
			}
			cobra.CheckErr(manager.ClearHistory())
			cli.StatusInfo("Chat history cleared.\n")
		},
	}
}

func preview(entry session.Entry) string {
	for _, message := range entry {
		if message.Role == session.RoleUser {
			return firstLine(message.Text())
		}
	}
	if len(entry) > 0 {
		return firstLine(entry[0].Text())
	}
	return ""
}

func firstLine(text string) string {
	for i, r := range text {
		if r == '\n' {
			return text[:i]
		}
	}
	return text
}
