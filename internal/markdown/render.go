// Package markdown renders chat transcripts for the terminal.
package markdown

import (
	"github.com/charmbracelet/glamour"
	"github.com/pkg/errors"
)

// Renderer turns message markdown into styled terminal output. It never
// mutates its input; rendering the same text twice yields the same output.
type Renderer struct {
	glamour *glamour.TermRenderer
	width   int
}

// NewRenderer creates a renderer wrapping at the given width.
func NewRenderer(width int) (*Renderer, error) {
	gr, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, errors.Wrap(err, "creating term renderer")
	}
	return &Renderer{glamour: gr, width: width}, nil
}

// Render returns the styled form of the markdown text; on failure the raw
// text comes back verbatim rather than erroring mid-transcript.
func (r *Renderer) Render(text string) string {
	out, err := r.glamour.Render(text)
	if err != nil {
		return text
	}
	return out
}

// SetWidth updates the renderer width, recreating internals if needed.
func (r *Renderer) SetWidth(width int) error {
	if r.width == width {
		return nil
	}
	fresh, err := NewRenderer(width)
	if err != nil {
		return err
	}
	*r = *fresh
	return nil
}
