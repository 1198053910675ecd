package provider

import (
	"net/http"
	"strings"

	"github.com/pkg/errors"

	"github.com/mwallis/sidekick/internal/configuration"
	"github.com/mwallis/sidekick/internal/session"
)

// defaultImageInstruction is the text part synthesized for an image-only
// submission. This fallback is required: neither wire format accepts a user
// turn with no text.
const defaultImageInstruction = "Please describe this image."

// Sentinel errors of request building.
var (
	// ErrEmptyRequest means neither text nor image yielded any content.
	ErrEmptyRequest = errors.New("nothing to send")
	// ErrInvalidImage means the fetched resource is not an image MIME type.
	ErrInvalidImage = errors.New("resource is not an image")
)

// Image is a fetched, base64-ready attachment.
type Image struct {
	MimeType string
	Data     []byte
}

// Input is the new user turn of a request.
type Input struct {
	Text  string
	Image *Image
}

// empty reports whether the input carries no content at all.
func (in Input) empty() bool {
	return strings.TrimSpace(in.Text) == "" && in.Image == nil
}

// Provider abstracts one wire format: it builds requests, authorizes them and
// decodes the provider-specific streaming delta schema.
type Provider interface {
	// Kind of this provider, one of the configuration.Provider* constants.
	Kind() string
	// Endpoint of the streaming chat-completion route for this configuration.
	Endpoint(config *configuration.APIConfig) string
	// Authorize attaches the configuration's credentials to the request.
	Authorize(request *http.Request, config *configuration.APIConfig)
	// BuildRequest marshals conversation history plus the new input into the
	// provider's request payload.
	BuildRequest(history []*session.Message, input Input, config *configuration.APIConfig) ([]byte, error)
	// DecodeDelta extracts the text delta of one event payload. The boolean
	// is false when the payload is malformed or carries no delta.
	DecodeDelta(payload []byte) (string, bool)
	// DecodeTail inspects a trailing unterminated payload at stream end and
	// returns an annotation delta when it carries a terminal notice.
	DecodeTail(payload []byte) (string, bool)
}

// ForKind returns the provider for a configuration kind.
func ForKind(kind string) (Provider, error) {
	switch kind {
	case configuration.ProviderGemini:
		return &Gemini{}, nil
	case configuration.ProviderOpenAI:
		return &OpenAICompatible{}, nil
	}
	return nil, errors.Errorf("unsupported provider kind (%s)", kind)
}

// historyMessages filters the conversation to what is resent to the provider:
// thinking placeholders and ephemeral notices are excluded. Archived messages
// stay in, since archiving affects the archive view, not the live context.
func historyMessages(history []*session.Message) []*session.Message {
	kept := make([]*session.Message, 0, len(history))
	for _, message := range history {
		if message.IsThinking || message.IsTempStatus {
			continue
		}
		kept = append(kept, message)
	}
	return kept
}

// normalizeInput applies the shared composition rules: trim, and synthesize
// the default instruction for image-only submissions.
func normalizeInput(input Input) (Input, error) {
	if input.empty() {
		return Input{}, ErrEmptyRequest
	}
	input.Text = strings.TrimSpace(input.Text)
	if input.Text == "" && input.Image != nil {
		input.Text = defaultImageInstruction
	}
	return input, nil
}
