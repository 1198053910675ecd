// Package config implements the config command: inspecting API configurations
// and switching the active one.
package config

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/mwallis/sidekick/internal/cli"
	"github.com/mwallis/sidekick/internal/configuration"
)

// NewCmd instantiates and returns the config command.
func NewCmd(configPath string, config *configuration.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect API configurations",
		Long:  "Inspect API configurations",
		Args:  cobra.ExactArgs(0),
		Run: func(cmd *cobra.Command, args []string) {
			if len(config.Configurations) == 0 {
				cli.StatusInfo("No API configurations. Edit %s to add one.\n", configPath)
				return
			}
			active := config.Active()
			for _, apiConfig := range config.Configurations {
				marker := " "
				if active != nil && apiConfig.ID == active.ID {
					marker = "*"
				}
				state := "ok"
				if !apiConfig.Complete() {
					state = "incomplete"
				}
				cli.UserCommand("%s %-24s %-8s %-10s ", marker, apiConfig.Name, apiConfig.Provider, state)
				cli.UserInput("%s  %s\n", apiConfig.Model, apiConfig.ID)
			}
		},
	}
	cmd.AddCommand(newUseCmd(configPath, config))
	return cmd
}

func newUseCmd(configPath string, config *configuration.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "use [id|name]",
		Short: "Set the active API configuration",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			apiConfig, err := find(config, args[0])
			cobra.CheckErr(err)
			config.ActiveConfigurationID = apiConfig.ID
			cobra.CheckErr(errors.Wrap(config.Save(configPath), "saving configuration"))
			cli.StatusInfo("Active configuration: %s\n", apiConfig.Name)
		},
	}
}

func find(config *configuration.Config, key string) (*configuration.APIConfig, error) {
	for _, apiConfig := range config.Configurations {
		if apiConfig.ID == key || apiConfig.Name == key {
			return apiConfig, nil
		}
	}
	return nil, errors.Errorf("no configuration with id or name %q", key)
}
