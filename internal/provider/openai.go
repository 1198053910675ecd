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

// OpenAICompatible speaks the chat-completions wire format of OpenAI and its
// many compatible servers. The endpoint comes from the configuration.
type OpenAICompatible struct{}

type openaiImageURL struct {
	URL string `json:"url"`
}

// openaiContentPart is one element of a multimodal user turn.
type openaiContentPart struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *openaiImageURL `json:"image_url,omitempty"`
}

// openaiMessage carries either a plain string content (history entries) or an
// array of typed parts (the new user turn).
type openaiMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type openaiRequest struct {
	Model    string          `json:"model"`
	Messages []openaiMessage `json:"messages"`
	Stream   bool            `json:"stream"`
}

type openaiEvent struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// Kind implements Provider.
func (o *OpenAICompatible) Kind() string { return configuration.ProviderOpenAI }

// Endpoint implements Provider.
func (o *OpenAICompatible) Endpoint(config *configuration.APIConfig) string {
	return config.Endpoint
}

// Authorize implements Provider.
func (o *OpenAICompatible) Authorize(request *http.Request, config *configuration.APIConfig) {
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Authorization", "Bearer "+config.APIKey)
}

// BuildRequest implements Provider. The session's "model" role maps to the
// wire role "assistant"; the new user turn is an array of typed parts.
func (o *OpenAICompatible) BuildRequest(history []*session.Message, input Input, config *configuration.APIConfig) ([]byte, error) {
	input, err := normalizeInput(input)
	if err != nil {
		return nil, err
	}

	messages := historyMessages(history)
	wireMessages := make([]openaiMessage, 0, len(messages)+1)
	for _, message := range messages {
		role := string(message.Role)
		if message.Role == session.RoleModel {
			role = "assistant"
		}
		wireMessages = append(wireMessages, openaiMessage{Role: role, Content: message.Text()})
	}

	parts := []openaiContentPart{{Type: "text", Text: input.Text}}
	if input.Image != nil {
		dataURI := fmt.Sprintf(
			"data:%s;base64,%s",
			input.Image.MimeType, base64.StdEncoding.EncodeToString(input.Image.Data),
		)
		parts = append(parts, openaiContentPart{Type: "image_url", ImageURL: &openaiImageURL{URL: dataURI}})
	}
	wireMessages = append(wireMessages, openaiMessage{Role: "user", Content: parts})

	payload, err := json.Marshal(openaiRequest{
		Model:    config.Model,
		Messages: wireMessages,
		Stream:   true,
	})
	return payload, errors.Wrap(err, "marshaling request")
}

// DecodeDelta implements Provider: the delta is choices[0].delta.content.
func (o *OpenAICompatible) DecodeDelta(payload []byte) (string, bool) {
	var event openaiEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return "", false
	}
	if len(event.Choices) == 0 || event.Choices[0].Delta.Content == "" {
		return "", false
	}
	return event.Choices[0].Delta.Content, true
}

// DecodeTail implements Provider: the format has no trailing notice.
func (o *OpenAICompatible) DecodeTail(payload []byte) (string, bool) {
	return "", false
}
