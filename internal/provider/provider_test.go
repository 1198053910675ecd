package provider

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwallis/sidekick/internal/configuration"
	"github.com/mwallis/sidekick/internal/session"
)

func geminiConfig() *configuration.APIConfig {
	return &configuration.APIConfig{
		ID:       "g1",
		Provider: configuration.ProviderGemini,
		APIKey:   "test-key",
		Model:    "gemini-pro",
	}
}

func openaiConfig() *configuration.APIConfig {
	return &configuration.APIConfig{
		ID:       "o1",
		Provider: configuration.ProviderOpenAI,
		APIKey:   "test-key",
		Endpoint: "https://api.example.com/v1/chat/completions",
		Model:    "gpt-test",
	}
}

func TestForKind(t *testing.T) {
	t.Parallel()
	gemini, err := ForKind(configuration.ProviderGemini)
	require.NoError(t, err)
	assert.Equal(t, configuration.ProviderGemini, gemini.Kind())

	openai, err := ForKind(configuration.ProviderOpenAI)
	require.NoError(t, err)
	assert.Equal(t, configuration.ProviderOpenAI, openai.Kind())

	_, err = ForKind("claude")
	require.Error(t, err)
}

func TestGeminiBuildRequest(t *testing.T) {
	t.Parallel()
	payload, err := (&Gemini{}).BuildRequest(nil, Input{Text: "Hi"}, geminiConfig())
	require.NoError(t, err)
	assert.JSONEq(t, `{"contents":[{"role":"user","parts":[{"text":"Hi"}]}]}`, string(payload))
}

func TestGeminiBuildRequestWithHistory(t *testing.T) {
	t.Parallel()
	history := []*session.Message{
		session.NewUserMessage("question"),
		session.NewModelMessage("answer"),
	}
	payload, err := (&Gemini{}).BuildRequest(history, Input{Text: "follow-up"}, geminiConfig())
	require.NoError(t, err)

	var request struct {
		Contents []struct {
			Role  string `json:"role"`
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"contents"`
	}
	require.NoError(t, json.Unmarshal(payload, &request))
	require.Len(t, request.Contents, 3)
	// Gemini role mapping is the identity: model stays model.
	assert.Equal(t, "user", request.Contents[0].Role)
	assert.Equal(t, "model", request.Contents[1].Role)
	assert.Equal(t, "answer", request.Contents[1].Parts[0].Text)
	assert.Equal(t, "follow-up", request.Contents[2].Parts[0].Text)
}

func TestGeminiBuildRequestHistoryFilter(t *testing.T) {
	t.Parallel()
	thinking := session.NewModelMessage("Thinking...")
	thinking.IsThinking = true
	notice := session.NewModelMessage("notice")
	notice.IsTempStatus = true
	archived := session.NewModelMessage("archived answer")
	archived.Archived = true
	history := []*session.Message{session.NewUserMessage("q"), thinking, notice, archived}

	payload, err := (&Gemini{}).BuildRequest(history, Input{Text: "next"}, geminiConfig())
	require.NoError(t, err)

	var request struct {
		Contents []struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"contents"`
	}
	require.NoError(t, json.Unmarshal(payload, &request))
	// Transient messages are dropped; archived ones are resent.
	require.Len(t, request.Contents, 3)
	assert.Equal(t, "q", request.Contents[0].Parts[0].Text)
	assert.Equal(t, "archived answer", request.Contents[1].Parts[0].Text)
	assert.Equal(t, "next", request.Contents[2].Parts[0].Text)
}

func TestGeminiBuildRequestImage(t *testing.T) {
	t.Parallel()
	image := &Image{MimeType: "image/png", Data: []byte{1, 2, 3}}
	payload, err := (&Gemini{}).BuildRequest(nil, Input{Image: image}, geminiConfig())
	require.NoError(t, err)

	var request struct {
		Contents []struct {
			Parts []struct {
				Text       string `json:"text,omitempty"`
				InlineData *struct {
					MimeType string `json:"mimeType"`
					Data     string `json:"data"`
				} `json:"inlineData,omitempty"`
			} `json:"parts"`
		} `json:"contents"`
	}
	require.NoError(t, json.Unmarshal(payload, &request))
	require.Len(t, request.Contents, 1)
	parts := request.Contents[0].Parts
	require.Len(t, parts, 2)
	// An image-only submission synthesizes the default instruction.
	assert.Equal(t, "Please describe this image.", parts[0].Text)
	require.NotNil(t, parts[1].InlineData)
	assert.Equal(t, "image/png", parts[1].InlineData.MimeType)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte{1, 2, 3}), parts[1].InlineData.Data)
}

func TestBuildRequestEmpty(t *testing.T) {
	t.Parallel()
	_, err := (&Gemini{}).BuildRequest(nil, Input{Text: "   "}, geminiConfig())
	require.ErrorIs(t, err, ErrEmptyRequest)
	_, err = (&OpenAICompatible{}).BuildRequest(nil, Input{}, openaiConfig())
	require.ErrorIs(t, err, ErrEmptyRequest)
}

func TestGeminiEndpointAndAuthorize(t *testing.T) {
	t.Parallel()
	gemini := &Gemini{}
	endpoint := gemini.Endpoint(geminiConfig())
	assert.Contains(t, endpoint, "models/gemini-pro:streamGenerateContent")
	assert.Contains(t, endpoint, "key=test-key")
	assert.Contains(t, endpoint, "alt=sse")

	request := httptest.NewRequest(http.MethodPost, endpoint, nil)
	gemini.Authorize(request, geminiConfig())
	assert.Empty(t, request.Header.Get("Authorization"))
	assert.Equal(t, "application/json", request.Header.Get("Content-Type"))
}

func TestOpenAIBuildRequest(t *testing.T) {
	t.Parallel()
	history := []*session.Message{
		session.NewUserMessage("question"),
		session.NewModelMessage("answer"),
	}
	payload, err := (&OpenAICompatible{}).BuildRequest(history, Input{Text: "follow-up"}, openaiConfig())
	require.NoError(t, err)

	var request struct {
		Model    string          `json:"model"`
		Stream   bool            `json:"stream"`
		Messages json.RawMessage `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(payload, &request))
	assert.Equal(t, "gpt-test", request.Model)
	assert.True(t, request.Stream)

	var messages []struct {
		Role    string          `json:"role"`
		Content json.RawMessage `json:"content"`
	}
	require.NoError(t, json.Unmarshal(request.Messages, &messages))
	require.Len(t, messages, 3)
	assert.Equal(t, "user", messages[0].Role)
	// Model maps to assistant on the OpenAI wire.
	assert.Equal(t, "assistant", messages[1].Role)
	assert.JSONEq(t, `"answer"`, string(messages[1].Content))

	// The new turn is a content-part array.
	var parts []struct {
		Type string `json:"type"`
		Text string `json:"text,omitempty"`
	}
	require.NoError(t, json.Unmarshal(messages[2].Content, &parts))
	require.Len(t, parts, 1)
	assert.Equal(t, "text", parts[0].Type)
	assert.Equal(t, "follow-up", parts[0].Text)
}

func TestOpenAIBuildRequestImage(t *testing.T) {
	t.Parallel()
	image := &Image{MimeType: "image/jpeg", Data: []byte("jpg")}
	payload, err := (&OpenAICompatible{}).BuildRequest(nil, Input{Text: "what is this", Image: image}, openaiConfig())
	require.NoError(t, err)

	var request struct {
		Messages []struct {
			Content []struct {
				Type     string `json:"type"`
				Text     string `json:"text,omitempty"`
				ImageURL *struct {
					URL string `json:"url"`
				} `json:"image_url,omitempty"`
			} `json:"content"`
		} `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(payload, &request))
	require.Len(t, request.Messages, 1)
	parts := request.Messages[0].Content
	require.Len(t, parts, 2)
	assert.Equal(t, "what is this", parts[0].Text)
	require.NotNil(t, parts[1].ImageURL)
	expected := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString([]byte("jpg"))
	assert.Equal(t, expected, parts[1].ImageURL.URL)
}

func TestOpenAIAuthorize(t *testing.T) {
	t.Parallel()
	config := openaiConfig()
	openai := &OpenAICompatible{}
	assert.Equal(t, config.Endpoint, openai.Endpoint(config))

	request := httptest.NewRequest(http.MethodPost, config.Endpoint, nil)
	openai.Authorize(request, config)
	assert.Equal(t, "Bearer test-key", request.Header.Get("Authorization"))
}

func TestGeminiDecodeDelta(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		payload string
		want    string
		ok      bool
	}{
		{
			name:    "single part",
			payload: `{"candidates":[{"content":{"parts":[{"text":"hello"}]}}]}`,
			want:    "hello",
			ok:      true,
		},
		{
			name:    "multiple parts concatenated",
			payload: `{"candidates":[{"content":{"parts":[{"text":"a"},{"text":"b"}]}}]}`,
			want:    "ab",
			ok:      true,
		},
		{
			name:    "no candidates",
			payload: `{"candidates":[]}`,
			ok:      false,
		},
		{
			name:    "malformed",
			payload: `{nope`,
			ok:      false,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			delta, ok := (&Gemini{}).DecodeDelta([]byte(tt.payload))
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, delta)
		})
	}
}

func TestGeminiDecodeTail(t *testing.T) {
	t.Parallel()
	annotation, ok := (&Gemini{}).DecodeTail([]byte(`{"promptFeedback":{"blockReason":"SAFETY"}}`))
	require.True(t, ok)
	assert.Contains(t, annotation, "SAFETY")

	_, ok = (&Gemini{}).DecodeTail([]byte(`{"candidates":[]}`))
	assert.False(t, ok)
}

func TestOpenAIDecodeDelta(t *testing.T) {
	t.Parallel()
	delta, ok := (&OpenAICompatible{}).DecodeDelta([]byte(`{"choices":[{"delta":{"content":"hi"}}]}`))
	require.True(t, ok)
	assert.Equal(t, "hi", delta)

	_, ok = (&OpenAICompatible{}).DecodeDelta([]byte(`{"choices":[{"delta":{}}]}`))
	assert.False(t, ok)
}
