// Package chat implements the interactive chat command: a readline REPL that
// streams completions from the active provider configuration and records the
// conversation through the session manager.
package chat

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/mwallis/sidekick/internal/cli"
	"github.com/mwallis/sidekick/internal/client"
	"github.com/mwallis/sidekick/internal/configuration"
	"github.com/mwallis/sidekick/internal/debug"
	"github.com/mwallis/sidekick/internal/events"
	"github.com/mwallis/sidekick/internal/prompts"
	"github.com/mwallis/sidekick/internal/session"
	"github.com/mwallis/sidekick/internal/store"
)

const sessionTitle = "sidekick"

// repl holds the state of one interactive chat session.
type repl struct {
	manager  *session.Manager
	client   *client.Client
	store    *store.Store
	renderer *transcriptRenderer
	bus      *events.Bus

	mu             sync.Mutex
	config         *configuration.Config
	templates      []*prompts.Template
	selection      string
	imageSource    string
	configNoticeUp bool
}

// NewCmd instantiates and returns the chat command.
func NewCmd(configPath string, config *configuration.Config, s *store.Store) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Back and forth chat",
		Long:  "Back and forth chat",
		Args:  cobra.ExactArgs(0),
		Run: func(cmd *cobra.Command, args []string) {
			renderer := newTranscriptRenderer()
			manager := session.NewManager(s, renderer, sessionTitle)
			cobra.CheckErr(manager.Load())

			templates, err := prompts.Load(s)
			cobra.CheckErr(err)

			r := &repl{
				manager:   manager,
				client:    client.New(time.Duration(config.RequestTimeout) * time.Second),
				store:     s,
				renderer:  renderer,
				bus:       events.NewBus(),
				config:    config,
				templates: templates,
			}
			r.bus.Subscribe(r.onEvent)
			s.OnChanged(r.onStoreChanged)
			go func() {
				if err := configuration.Watch(cmd.Context(), configPath, r.onConfigChanged); err != nil {
					debug.GetLogger().Error("watching configuration", "error", err)
				}
			}()

			// Headers and prior transcript.
			cli.Title("SIDEKICK CHAT [%s]", r.describeActive())
			renderer.PrintTranscript(manager.Current())

			r.loop(cmd.Context(), config.Database)
		},
	}
	return cmd
}

// loop reads user input until interrupt or EOF.
func (r *repl) loop(ctx context.Context, databasePath string) {
	historyFile := filepath.Join(filepath.Dir(databasePath), "repl_history")
	for {
		line, err := cli.PromptUser(historyFile)
		if err != nil {
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if quit := r.command(ctx, line); quit {
				return
			}
			continue
		}
		r.send(ctx, line)
	}
}

func (r *repl) describeActive() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	active := r.config.Active()
	if active == nil {
		return "no configuration"
	}
	return active.Name
}

// activeConfig returns the usable active configuration, or nil after raising
// the persistent incomplete-configuration notice. The notice is raised once;
// it clears when a usable configuration arrives through the watcher.
func (r *repl) activeConfig() *configuration.APIConfig {
	r.mu.Lock()
	defer r.mu.Unlock()
	active := r.config.Active()
	if active != nil && active.Complete() {
		return active
	}
	if !r.configNoticeUp {
		r.configNoticeUp = true
		if _, err := r.manager.Append(session.NewModelMessage(configIncompleteText)); err != nil {
			debug.GetLogger().Error("appending configuration notice", "error", err)
		}
	}
	return nil
}

// onConfigChanged swaps the configuration wholesale on a file change.
func (r *repl) onConfigChanged(config *configuration.Config) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.config = config
	active := config.Active()
	if r.configNoticeUp && active != nil && active.Complete() {
		r.configNoticeUp = false
		r.manager.RemoveIf(func(message *session.Message) bool {
			return message.Text() == configIncompleteText
		})
		if _, err := r.manager.AppendTemp("Configuration updated."); err != nil {
			debug.GetLogger().Error("appending configuration notice", "error", err)
		}
	}
}

// onStoreChanged replaces in-memory lists wholesale when another writer
// touches the local store. Runs on a fresh goroutine: notifications fire
// synchronously under the writer's lock.
func (r *repl) onStoreChanged(key string) {
	go func() {
		switch key {
		case session.KeyChatHistory:
			var history []session.Entry
			if _, err := r.store.GetJSON(session.KeyChatHistory, &history); err != nil {
				debug.GetLogger().Error("reloading chat history", "error", err)
				return
			}
			r.manager.ReplaceHistory(history)
		case session.KeyArchivedChats:
			var archive []session.Entry
			if _, err := r.store.GetJSON(session.KeyArchivedChats, &archive); err != nil {
				debug.GetLogger().Error("reloading archive", "error", err)
				return
			}
			r.manager.ReplaceArchive(archive)
		case session.KeyPromptTemplates:
			templates, err := prompts.Load(r.store)
			if err != nil {
				debug.GetLogger().Error("reloading prompt templates", "error", err)
				return
			}
			r.mu.Lock()
			r.templates = templates
			r.mu.Unlock()
		}
	}()
}

// onEvent prints fire-and-forget notifications from the summarize pipeline.
func (r *repl) onEvent(event any) {
	switch e := event.(type) {
	case events.SummaryStarted:
		debug.GetLogger().Debug("summary started", "url", e.URL, "title", e.Title)
	case events.ExtractionFailed:
		debug.GetLogger().Debug("extraction failed", "url", e.URL, "message", e.Message)
		cli.ErrorOutput("extraction failed: %s\n", e.Message)
	}
}
