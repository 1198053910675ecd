package main

import (
	"github.com/spf13/cobra"

	"github.com/mwallis/sidekick/archive"
	"github.com/mwallis/sidekick/chat"
	"github.com/mwallis/sidekick/config"
	"github.com/mwallis/sidekick/history"
	"github.com/mwallis/sidekick/internal/configuration"
	"github.com/mwallis/sidekick/internal/store"
	"github.com/mwallis/sidekick/prompt"
)

const configFilepath = "~/.config/sidekick/config.json"

var rootCmd = &cobra.Command{
	Use:     "sidekick",
	Short:   "A streaming chat companion",
	Version: "1.0",
}

func main() {
	configPath, err := configuration.ExpandPath(configFilepath)
	if err != nil {
		panic(err)
	}
	cfg, err := configuration.Parse(configPath)
	if err != nil {
		panic(err)
	}

	// Create store
	s, err := store.New(cfg.Database)
	if err != nil {
		panic(err)
	}
	// Ensure store is closed when the program exits normally
	defer s.Close()

	rootCmd.AddCommand(chat.NewCmd(configPath, cfg, s))
	rootCmd.AddCommand(archive.NewCmd(s))
	rootCmd.AddCommand(history.NewCmd(s))
	rootCmd.AddCommand(config.NewCmd(configPath, cfg))
	rootCmd.AddCommand(prompt.NewCmd(s))
	rootCmd.Execute()
}
