package chat

import (
	"context"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"golang.design/x/clipboard"

	"github.com/mwallis/sidekick/internal/cli"
	"github.com/mwallis/sidekick/internal/prompts"
	"github.com/mwallis/sidekick/internal/session"
)

const commandHelp = `/help                 show this help
/show                 list the current session with message numbers
/split                archive the session and start a new one
/archive <n>          archive message n together with its question
/copy <n>             copy message n to the clipboard
/use <text>           attach selected text to the next message ({{text}} substitutes it)
/image <path|url>     attach an image to the next message
/summarize <url>      summarize a web page
/prompts              list prompt templates
/prompt <name>        send a prompt template, substituting the attached text
/clearhistory         delete all chat history
/quit                 exit`

// command dispatches one slash command, reporting whether the REPL should
// exit.
func (r *repl) command(ctx context.Context, line string) bool {
	name, argument, _ := strings.Cut(line, " ")
	argument = strings.TrimSpace(argument)

	switch name {
	case "/quit", "/exit":
		return true

	case "/help":
		cli.StatusInfo("%s\n", commandHelp)

	case "/show":
		r.showTranscript()

	case "/split":
		if err := r.manager.Split(); err != nil {
			cli.ErrorOutput("splitting session: %v\n", err)
		}

	case "/archive":
		index, err := r.messageIndex(argument)
		if err != nil {
			cli.ErrorOutput("%v\n", err)
			return false
		}
		if err := r.manager.ArchiveQAPair(index); err != nil {
			cli.ErrorOutput("archiving: %v\n", err)
		}

	case "/copy":
		index, err := r.messageIndex(argument)
		if err != nil {
			cli.ErrorOutput("%v\n", err)
			return false
		}
		text, err := r.manager.MessageText(index)
		if err != nil {
			cli.ErrorOutput("%v\n", err)
			return false
		}
		if err := clipboard.Init(); err != nil {
			cli.ErrorOutput("clipboard unavailable: %v\n", err)
			return false
		}
		clipboard.Write(clipboard.FmtText, []byte(text))
		cli.StatusInfo("Copied to clipboard!\n")

	case "/use":
		r.mu.Lock()
		r.selection = argument
		r.mu.Unlock()
		if argument == "" {
			cli.StatusInfo("Cleared attached text.\n")
		} else {
			cli.StatusInfo("Attached text (%d characters).\n", len(argument))
		}

	case "/image":
		r.mu.Lock()
		r.imageSource = argument
		r.mu.Unlock()
		if argument == "" {
			cli.StatusInfo("Cleared attached image.\n")
		} else {
			cli.StatusInfo("Attached image: %s\n", argument)
		}

	case "/summarize":
		if argument == "" {
			cli.ErrorOutput("usage: /summarize <url>\n")
			return false
		}
		r.summarize(ctx, argument)

	case "/prompts":
		r.listTemplates()

	case "/prompt":
		r.sendTemplate(ctx, argument)

	case "/clearhistory":
		if !cli.QueryUser("Delete all chat history?") {
			return false
		}
		if err := r.manager.ClearHistory(); err != nil {
			cli.ErrorOutput("clearing history: %v\n", err)
			return false
		}
		cli.StatusInfo("Chat history cleared.\n")

	default:
		cli.ErrorOutput("unknown command %s (try /help)\n", name)
	}
	return false
}

// messageIndex parses a 1-based message number as shown by /show.
func (r *repl) messageIndex(argument string) (int, error) {
	number, err := strconv.Atoi(argument)
	if err != nil {
		return 0, errors.Errorf("expected a message number, got %q", argument)
	}
	return number - 1, nil
}

func (r *repl) showTranscript() {
	messages := r.manager.Current()
	if len(messages) == 0 {
		cli.StatusInfo("The session is empty.\n")
		return
	}
	for i, message := range messages {
		marker := " "
		if message.Archived {
			marker = "*"
		}
		role := "you"
		if message.Role == session.RoleModel {
			role = "sidekick"
		}
		cli.UserCommand("%3d%s [%s] ", i+1, marker, role)
		cli.UserInput("%s\n", firstLine(message.Text()))
	}
}

func (r *repl) listTemplates() {
	r.mu.Lock()
	templates := prompts.Sorted(r.templates)
	r.mu.Unlock()
	for _, template := range templates {
		kind := "custom"
		if template.IsPreset {
			kind = "preset"
		}
		cli.UserCommand("%-20s %s  ", template.Name, kind)
		cli.UserInput("%s\n", firstLine(template.Content))
	}
}

// sendTemplate runs a prompt template through the send pipeline, substituting
// the attached text for its placeholder.
func (r *repl) sendTemplate(ctx context.Context, key string) {
	if key == "" {
		cli.ErrorOutput("usage: /prompt <name>\n")
		return
	}
	r.mu.Lock()
	template := prompts.Find(r.templates, key)
	selection := r.selection
	r.mu.Unlock()
	if template == nil {
		cli.ErrorOutput("no prompt template named %q\n", key)
		return
	}
	if strings.Contains(template.Content, prompts.Placeholder) && selection == "" {
		cli.StatusInfo("This template needs attached text; use /use first.\n")
		return
	}

	text := template.Apply(selection)
	r.mu.Lock()
	r.selection = ""
	imageSource := r.imageSource
	r.imageSource = ""
	r.mu.Unlock()

	active := r.activeConfig()
	if active == nil {
		return
	}
	if _, err := r.manager.Append(session.NewUserMessage(text)); err != nil {
		cli.ErrorOutput("saving message: %v\n", err)
	}
	r.exchange(ctx, active, text, imageSource)
}

func firstLine(text string) string {
	line, _, _ := strings.Cut(text, "\n")
	return line
}
