// Package prompt implements the prompts command for managing templates.
package prompt

import (
	"github.com/spf13/cobra"

	"github.com/mwallis/sidekick/internal/cli"
	"github.com/mwallis/sidekick/internal/prompts"
	"github.com/mwallis/sidekick/internal/store"
)

// NewCmd instantiates and returns the prompts command.
func NewCmd(s *store.Store) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prompts",
		Short: "Manage prompt templates",
		Long:  "Manage prompt templates. Templates may carry a {{text}} placeholder.",
		Args:  cobra.ExactArgs(0),
		Run: func(cmd *cobra.Command, args []string) {
			templates, err := prompts.Load(s)
			cobra.CheckErr(err)
			for _, template := range prompts.Sorted(templates) {
				kind := "custom"
				if template.IsPreset {
					kind = "preset"
				}
				cli.UserCommand("%-10s %-20s %-10s ", template.ID, template.Name, kind)
				cli.UserInput("%s\n", template.Content)
			}
		},
	}
	cmd.AddCommand(newAddCmd(s))
	cmd.AddCommand(newDeleteCmd(s))
	return cmd
}

func newAddCmd(s *store.Store) *cobra.Command {
	return &cobra.Command{
		Use:   "add [name] [content]",
		Short: "Add a prompt template",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			templates, err := prompts.Load(s)
			cobra.CheckErr(err)
			templates, err = prompts.Add(s, templates, args[0], args[1])
			cobra.CheckErr(err)
			cli.StatusInfo("Added prompt template %q (%d total).\n", args[0], len(templates))
		},
	}
}

func newDeleteCmd(s *store.Store) *cobra.Command {
	return &cobra.Command{
		Use:   "delete [id|name]",
		Short: "Delete a prompt template",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			templates, err := prompts.Load(s)
			cobra.CheckErr(err)
			template := prompts.Find(templates, args[0])
			if template == nil {
				cli.ErrorOutput("no prompt template %q\n", args[0])
				return
			}
			_, err = prompts.Delete(s, templates, template.ID)
			cobra.CheckErr(err)
			cli.StatusInfo("Deleted prompt template %q.\n", template.Name)
		},
	}
}
