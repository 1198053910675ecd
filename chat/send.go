package chat

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/pkg/errors"

	"github.com/mwallis/sidekick/internal/cli"
	"github.com/mwallis/sidekick/internal/client"
	"github.com/mwallis/sidekick/internal/configuration"
	"github.com/mwallis/sidekick/internal/debug"
	"github.com/mwallis/sidekick/internal/events"
	"github.com/mwallis/sidekick/internal/extract"
	"github.com/mwallis/sidekick/internal/provider"
	"github.com/mwallis/sidekick/internal/session"
)

const (
	configIncompleteText = "Error: the API configuration is incomplete. Run `sidekick config` to review it."
	loadingImageText     = "Loading and processing image..."
	emptyStreamText      = "The API returned an empty response. Please try again."
	quotedPreviewRunes   = 50
)

const summaryPromptFormat = `Please summarize the following web page content clearly, concisely and comprehensively. If it contains technical information or code, explain the core concepts and their purpose. If it is an article, distill the main points and arguments. The summary should be easy to understand and capture the essence of the content.

Page content:
%q`

// compose merges the typed text with the pending selection. A {{text}}
// placeholder substitutes the selection in place; otherwise a non-empty
// selection is quoted above the typed text, with a shortened preview for
// display.
func compose(typed, selection string) (api, display string) {
	switch {
	case selection != "" && strings.Contains(typed, "{{text}}"):
		api = strings.ReplaceAll(typed, "{{text}}", selection)
		return api, api
	case selection != "" && typed != "":
		api = fmt.Sprintf("About the following quoted content:\n%q\n\nMy question or instruction is:\n%q", selection, typed)
		preview := selection
		if runes := []rune(preview); len(runes) > quotedPreviewRunes {
			preview = string(runes[:quotedPreviewRunes])
		}
		return api, fmt.Sprintf("(quoting: %s...) %s", preview, typed)
	case selection != "":
		return selection, selection
	default:
		return typed, typed
	}
}

// send runs the full pipeline for one typed line: compose, record the user
// message, then exchange.
func (r *repl) send(ctx context.Context, typed string) {
	r.mu.Lock()
	selection, imageSource := r.selection, r.imageSource
	r.selection, r.imageSource = "", ""
	r.mu.Unlock()

	apiText, display := compose(typed, selection)

	if strings.TrimSpace(apiText) == "" && imageSource == "" {
		if _, err := r.manager.AppendTemp("Type a message or attach text or an image before sending."); err != nil {
			debug.GetLogger().Error("appending notice", "error", err)
		}
		return
	}

	active := r.activeConfig()
	if active == nil {
		return
	}

	if imageSource != "" {
		if strings.TrimSpace(apiText) == "" {
			display = "(image attached)"
		} else {
			display = display + " (with image)"
		}
	}

	r.renderer.NoteEchoed(typed)
	if _, err := r.manager.Append(session.NewUserMessage(display)); err != nil {
		cli.ErrorOutput("saving message: %v\n", err)
	}
	r.exchange(ctx, active, apiText, imageSource)
}

// summarize fetches a page, then runs the summarization prompt through the
// normal exchange pipeline.
func (r *repl) summarize(ctx context.Context, url string) {
	active := r.activeConfig()
	if active == nil {
		return
	}

	notice, err := r.manager.AppendTemp(fmt.Sprintf("Requesting a summary of %s...", url))
	if err != nil {
		debug.GetLogger().Error("appending notice", "error", err)
	}

	result, err := extract.Page(ctx, url)
	if notice != nil {
		r.manager.RemoveIf(func(message *session.Message) bool {
			return message.IsTempStatus && message.Timestamp == notice.Timestamp
		})
	}
	if err != nil {
		r.bus.Publish(events.ExtractionFailed{URL: url, Message: err.Error()})
		if _, err := r.manager.Append(session.NewModelMessage(fmt.Sprintf("Summary error: %v", err))); err != nil {
			debug.GetLogger().Error("appending notice", "error", err)
		}
		return
	}
	if strings.TrimSpace(result.Content) == "" {
		if _, err := r.manager.Append(session.NewModelMessage("The page is empty or no usable text could be extracted.")); err != nil {
			debug.GetLogger().Error("appending notice", "error", err)
		}
		return
	}
	r.bus.Publish(events.SummaryStarted{URL: url, Title: result.Title})
	if result.Warning != "" {
		cli.StatusInfo("%s\n", result.Warning)
	}

	title := result.Title
	if title == "" {
		title = url
	}
	if _, err := r.manager.Append(session.NewUserMessage(fmt.Sprintf("Summary request: %s", title))); err != nil {
		cli.ErrorOutput("saving message: %v\n", err)
	}
	r.exchange(ctx, active, fmt.Sprintf(summaryPromptFormat, result.Content), "")
}

// exchange drives one streaming completion: thinking placeholder, optional
// image fetch, HTTP stream, per-delta rendering, then error or persistence.
// Every outcome removes the placeholder first.
func (r *repl) exchange(ctx context.Context, active *configuration.APIConfig, apiText, imageSource string) {
	if _, err := r.manager.BeginExchange(); err != nil {
		if errors.Is(err, session.ErrSendInFlight) {
			cli.StatusInfo("%v\n", err)
			return
		}
		cli.ErrorOutput("%v\n", err)
		return
	}

	input := provider.Input{Text: apiText}
	if imageSource != "" {
		notice, err := r.manager.AppendTemp(loadingImageText)
		if err != nil {
			debug.GetLogger().Error("appending notice", "error", err)
		}
		image, fetchErr := provider.FetchImage(ctx, imageSource)
		if notice != nil {
			r.manager.RemoveIf(func(message *session.Message) bool {
				return message.IsTempStatus && message.Timestamp == notice.Timestamp
			})
		}
		if fetchErr != nil {
			r.failExchange(fetchErr)
			return
		}
		input.Image = image
	}

	p, err := provider.ForKind(active.Provider)
	if err != nil {
		r.failExchange(err)
		return
	}

	history := r.manager.ProviderHistory()
	stream, err := r.client.Stream(ctx, p, active, history, input)
	if err != nil {
		r.failExchange(err)
		return
	}
	defer stream.Close()

	interruptChannel := make(chan os.Signal, 1)
	signal.Notify(interruptChannel, os.Interrupt)
	defer signal.Stop(interruptChannel)

	pipeDone := make(chan struct{})
	defer close(pipeDone)
	deltaChannel, errorChannel := pipeStream(stream, pipeDone)
	removedThinking := false
	r.renderer.SetStreaming(true)
	defer r.renderer.SetStreaming(false)
	for {
		select {
		case <-interruptChannel:
			cli.UserCommand("#Interrupted\n")
			stream.Close()
			r.finishExchange(stream.Count() > 0, removedThinking)
			return
		case delta := <-deltaChannel:
			if !removedThinking {
				r.manager.RemoveThinking()
				removedThinking = true
			}
			if err := r.manager.StreamDelta(delta); err != nil {
				debug.GetLogger().Error("applying delta", "error", err)
			}
		case err := <-errorChannel:
			if errors.Is(err, io.EOF) {
				if stream.Count() == 0 {
					r.failExchange(client.ErrEmptyStream)
					return
				}
				r.finishExchange(true, removedThinking)
				return
			}
			r.failExchange(err)
			return
		}
	}
}

// finishExchange closes a successful or interrupted exchange.
func (r *repl) finishExchange(received, removedThinking bool) {
	if !removedThinking {
		r.manager.RemoveThinking()
	}
	if received {
		cli.AIOutput("\n")
	}
	if err := r.manager.EndExchange(); err != nil {
		cli.ErrorOutput("saving session: %v\n", err)
	}
}

// failExchange converts an error into a chat message at the operation
// boundary. The thinking placeholder is always removed first.
func (r *repl) failExchange(err error) {
	r.manager.RemoveThinking()
	if endErr := r.manager.EndExchange(); endErr != nil {
		cli.ErrorOutput("saving session: %v\n", endErr)
	}

	text, transient := describeError(err)
	if transient {
		if _, err := r.manager.AppendTemp(text); err != nil {
			debug.GetLogger().Error("appending notice", "error", err)
		}
		return
	}
	if _, err := r.manager.Append(session.NewModelMessage(text)); err != nil {
		debug.GetLogger().Error("appending notice", "error", err)
	}
}

// describeError maps the error taxonomy onto user-facing message templates.
// Transient conditions self-dismiss; everything else stays in the transcript.
func describeError(err error) (text string, transient bool) {
	var httpError *client.HTTPError
	var networkError *client.NetworkError
	switch {
	case errors.Is(err, provider.ErrEmptyRequest):
		return "Nothing to send.", true
	case errors.Is(err, provider.ErrInvalidImage):
		return fmt.Sprintf("Error: the attachment is not a usable image: %v", err), false
	case errors.Is(err, client.ErrEmptyStream):
		return emptyStreamText, false
	case errors.As(err, &httpError):
		switch httpError.Class() {
		case client.ErrorClassAuth:
			return fmt.Sprintf("Error: the API rejected the credentials (HTTP %d). Check your API key. %s", httpError.Status, httpError.Detail), false
		case client.ErrorClassRateLimit:
			return fmt.Sprintf("Error: the API is rate limiting requests (HTTP %d). Try again shortly. %s", httpError.Status, httpError.Detail), false
		case client.ErrorClassServer:
			return fmt.Sprintf("Error: the API hit a server error (HTTP %d). %s", httpError.Status, httpError.Detail), false
		default:
			return fmt.Sprintf("Error: the API request failed (HTTP %d). %s", httpError.Status, httpError.Detail), false
		}
	case errors.As(err, &networkError):
		return fmt.Sprintf("Error: could not reach the API: %v", networkError.Err), false
	default:
		return fmt.Sprintf("Error: %v", err), false
	}
}

// pipeStream adapts the stream's Recv loop onto channels so the exchange loop
// can also select on interrupts. The goroutine exits once done is closed,
// even when the exchange loop has stopped receiving.
func pipeStream(stream deltaStream, done <-chan struct{}) (chan string, chan error) {
	deltaChannel := make(chan string)
	errorChannel := make(chan error)
	go func() {
		for {
			delta, err := stream.Recv()
			if err != nil {
				select {
				case errorChannel <- err:
				case <-done:
				}
				return
			}
			select {
			case deltaChannel <- delta:
			case <-done:
				return
			}
		}
	}()
	return deltaChannel, errorChannel
}

type deltaStream interface {
	Recv() (string, error)
}
