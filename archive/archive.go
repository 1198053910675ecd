// Package archive implements the archive command: listing, viewing and
// pruning archived conversations.
package archive

import (
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/mwallis/sidekick/internal/cli"
	"github.com/mwallis/sidekick/internal/markdown"
	"github.com/mwallis/sidekick/internal/session"
	"github.com/mwallis/sidekick/internal/store"
)

// NewCmd instantiates and returns the archive command.
func NewCmd(s *store.Store) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Browse archived conversations",
		Long:  "Browse archived conversations",
		Args:  cobra.ExactArgs(0),
		Run: func(cmd *cobra.Command, args []string) {
			manager, err := load(s)
			cobra.CheckErr(err)
			list(manager)
		},
	}
	cmd.AddCommand(newShowCmd(s))
	cmd.AddCommand(newDeleteCmd(s))
	cmd.AddCommand(newClearCmd(s))
	return cmd
}

func newShowCmd(s *store.Store) *cobra.Command {
	return &cobra.Command{
		Use:   "show [n]",
		Short: "Render one archived conversation",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			manager, err := load(s)
			cobra.CheckErr(err)
			entry, err := entryAt(manager, args[0])
			cobra.CheckErr(err)

			renderer, err := markdown.NewRenderer(cli.Width())
			cobra.CheckErr(err)
			cli.Title("ARCHIVE %s", formatTimestamp(entry.FirstTimestamp()))
			for _, message := range entry {
				if message.Role == session.RoleUser {
					cli.UserInput("> %s\n", message.Text())
					continue
				}
				cli.AIOutput(renderer.Render(message.Text()) + "\n")
			}
		},
	}
}

func newDeleteCmd(s *store.Store) *cobra.Command {
	return &cobra.Command{
		Use:   "delete [n]",
		Short: "Delete one archived conversation",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			manager, err := load(s)
			cobra.CheckErr(err)
			entry, err := entryAt(manager, args[0])
			cobra.CheckErr(err)
			if !cli.QueryUser("Delete this archive entry?") {
				return
			}
			cobra.CheckErr(manager.DeleteArchiveEntry(entry))
			cli.StatusInfo("Archive entry deleted.\n")
		},
	}
}

func newClearCmd(s *store.Store) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every archived conversation",
		Args:  cobra.ExactArgs(0),
		Run: func(cmd *cobra.Command, args []string) {
			manager, err := load(s)
			cobra.CheckErr(err)
			if manager.ArchiveCount() == 0 {
				cli.StatusInfo("The archive is empty.\n")
				return
			}
			if !cli.QueryUser("Delete every archived conversation?") {
				return
			}
			cobra.CheckErr(manager.ClearArchive())
			cli.StatusInfo("Archive cleared.\n")
		},
	}
}

func load(s *store.Store) (*session.Manager, error) {
	manager := session.NewManager(s, nil, "")
	if err := manager.Load(); err != nil {
		return nil, err
	}
	return manager, nil
}

func list(manager *session.Manager) {
	entries := manager.ArchiveView()
	if len(entries) == 0 {
		cli.StatusInfo("The archive is empty.\n")
		return
	}
	for i, entry := range entries {
		cli.UserCommand("%3d  %s  ", i+1, formatTimestamp(entry.FirstTimestamp()))
		cli.UserInput("%s\n", preview(entry))
	}
}

// entryAt resolves a 1-based listing number against the sorted view.
func entryAt(manager *session.Manager, argument string) (session.Entry, error) {
	number, err := strconv.Atoi(argument)
	if err != nil {
		return nil, errors.Errorf("expected an entry number, got %q", argument)
	}
	entries := manager.ArchiveView()
	if number < 1 || number > len(entries) {
		return nil, errors.Errorf("entry number %d out of range", number)
	}
	return entries[number-1], nil
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

func formatTimestamp(timestamp int64) string {
	return time.UnixMilli(timestamp).Format("2006-01-02 15:04")
}
