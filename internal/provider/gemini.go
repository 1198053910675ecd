package provider

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pkg/errors"

	"github.com/mwallis/sidekick/internal/configuration"
	"github.com/mwallis/sidekick/internal/session"
)

// Gemini speaks the generativelanguage.googleapis.com streaming wire format.
type Gemini struct{}

type geminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiEvent struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

// Kind implements Provider.
func (g *Gemini) Kind() string { return configuration.ProviderGemini }

// Endpoint implements Provider. The API key travels in the query string, the
// way the generative-language API expects it.
func (g *Gemini) Endpoint(config *configuration.APIConfig) string {
	return fmt.Sprintf(
		"https://generativelanguage.googleapis.com/v1beta/models/%s:streamGenerateContent?key=%s&alt=sse",
		config.Model, config.APIKey,
	)
}

// Authorize implements Provider. Nothing beyond the keyed endpoint is needed.
func (g *Gemini) Authorize(request *http.Request, config *configuration.APIConfig) {
	request.Header.Set("Content-Type", "application/json")
}

// BuildRequest implements Provider. Roles pass through unchanged: the session
// model already uses the user/model vocabulary.
func (g *Gemini) BuildRequest(history []*session.Message, input Input, config *configuration.APIConfig) ([]byte, error) {
	input, err := normalizeInput(input)
	if err != nil {
		return nil, err
	}

	messages := historyMessages(history)
	contents := make([]geminiContent, 0, len(messages)+1)
	for _, message := range messages {
		contents = append(contents, geminiContent{
			Role:  string(message.Role),
			Parts: []geminiPart{{Text: message.Text()}},
		})
	}

	// Text first, then the inline image part if present.
	parts := []geminiPart{{Text: input.Text}}
	if input.Image != nil {
		parts = append(parts, geminiPart{InlineData: &geminiInlineData{
			MimeType: input.Image.MimeType,
			Data:     base64.StdEncoding.EncodeToString(input.Image.Data),
		}})
	}
	contents = append(contents, geminiContent{Role: "user", Parts: parts})

	payload, err := json.Marshal(geminiRequest{Contents: contents})
	return payload, errors.Wrap(err, "marshaling request")
}

// DecodeDelta implements Provider: the delta is the concatenation of the
// first candidate's part texts.
func (g *Gemini) DecodeDelta(payload []byte) (string, bool) {
	var event geminiEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return "", false
	}
	if len(event.Candidates) == 0 {
		return "", false
	}
	var delta string
	for _, part := range event.Candidates[0].Content.Parts {
		delta += part.Text
	}
	return delta, delta != ""
}

// DecodeTail implements Provider: a trailing unterminated payload may carry a
// prompt-feedback block reason, surfaced as one final annotation delta.
func (g *Gemini) DecodeTail(payload []byte) (string, bool) {
	var event geminiEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return "", false
	}
	if event.PromptFeedback == nil || event.PromptFeedback.BlockReason == "" {
		return "", false
	}
	return fmt.Sprintf("\n\n[Request blocked: %s]", event.PromptFeedback.BlockReason), true
}
