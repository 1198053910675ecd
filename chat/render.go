package chat

import (
	"sync"

	"github.com/mwallis/sidekick/internal/cli"
	"github.com/mwallis/sidekick/internal/session"
)

// transcriptRenderer prints session mutations to the terminal. The manager
// re-renders the whole session after every mutation; a terminal cannot redraw,
// so the renderer diffs against what it already printed: new messages print in
// full, a growing tail message prints its suffix only, and removals or
// wholesale replacements resync silently.
type transcriptRenderer struct {
	mu        sync.Mutex
	printed   []int64
	tailLen   int
	echoed    string
	streaming bool
}

func newTranscriptRenderer() *transcriptRenderer {
	return &transcriptRenderer{}
}

// SetStreaming toggles delta mode: while on, a new assistant message prints
// without its closing newline so subsequent deltas continue the same line.
func (r *transcriptRenderer) SetStreaming(on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.streaming = on
}

// NoteEchoed records text the terminal already shows (the readline echo), so
// the next user message with that exact text is not printed twice.
func (r *transcriptRenderer) NoteEchoed(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.echoed = text
}

// PrintTranscript prints a full prior transcript and syncs the renderer to it.
func (r *transcriptRenderer) PrintTranscript(messages []*session.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, message := range messages {
		if message.Role == session.RoleUser {
			cli.UserInput("> %s\n", message.Text())
		} else {
			cli.AIOutput(message.Text() + "\n")
		}
	}
	r.resync(messages)
}

// Render implements session.Renderer.
func (r *transcriptRenderer) Render(messages []*session.Message, title string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(messages) < len(r.printed) || !r.prefixMatches(messages) {
		r.resync(messages)
		return
	}
	if len(messages) == len(r.printed) {
		// Same messages: the only visible change is a growing tail.
		if len(messages) == 0 {
			return
		}
		text := messages[len(messages)-1].Text()
		if len(text) > r.tailLen {
			cli.AIOutput(text[r.tailLen:])
			r.tailLen = len(text)
		}
		return
	}
	for _, message := range messages[len(r.printed):] {
		r.print(message)
	}
	r.resync(messages)
}

func (r *transcriptRenderer) print(message *session.Message) {
	text := message.Text()
	switch {
	case message.IsThinking:
		cli.StatusInfo("%s\n", text)
	case message.IsTempStatus:
		cli.StatusInfo("%s\n", text)
	case message.Role == session.RoleUser:
		if text == r.echoed {
			r.echoed = ""
			return
		}
		cli.UserInput("> %s\n", text)
	default:
		if r.streaming {
			// An in-progress assistant message starts with its first delta
			// and grows through the tail path; the closing newline comes
			// from the exchange loop.
			cli.AIOutput(text)
			return
		}
		cli.AIOutput(text + "\n")
	}
}

func (r *transcriptRenderer) prefixMatches(messages []*session.Message) bool {
	for i, timestamp := range r.printed {
		if messages[i].Timestamp != timestamp {
			return false
		}
	}
	return true
}

func (r *transcriptRenderer) resync(messages []*session.Message) {
	r.printed = r.printed[:0]
	for _, message := range messages {
		r.printed = append(r.printed, message.Timestamp)
	}
	r.tailLen = 0
	if len(messages) > 0 {
		r.tailLen = len(messages[len(messages)-1].Text())
	}
}
