package session

import "strings"

// Role of a message author. The wire role "assistant" is mapped to and from
// RoleModel at the provider boundary.
type Role string

const (
	// RoleUser is a message authored by the user.
	RoleUser Role = "user"
	// RoleModel is a message authored by the model, including status notices.
	RoleModel Role = "model"
)

// InlineData carries base64-encoded binary content alongside its MIME type.
type InlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

// Part is one unit of message content: text, or inline image data.
type Part struct {
	Text       string      `json:"text"`
	InlineData *InlineData `json:"inline_data,omitempty"`
}

// Message is one entry of a chat transcript.
type Message struct {
	Role  Role   `json:"role"`
	Parts []Part `json:"parts"`
	// Timestamp is the creation time in unix milliseconds. It doubles as the
	// message identity: the first message's timestamp identifies a session.
	Timestamp int64 `json:"timestamp"`

	// IsThinking marks the placeholder shown while awaiting the first token.
	IsThinking bool `json:"is_thinking,omitempty"`
	// IsTempStatus marks an ephemeral notice that self-removes and is never
	// persisted nor sent to the provider.
	IsTempStatus bool `json:"is_temp_status,omitempty"`
	// Archived is set once the message has been copied to an archive entry.
	Archived bool `json:"archived,omitempty"`
}

const invalidContentPlaceholder = "(invalid or empty message content)"

// NewUserMessage returns a user message with a single text part.
func NewUserMessage(text string) *Message {
	return &Message{Role: RoleUser, Parts: []Part{{Text: text}}}
}

// NewModelMessage returns a model message with a single text part.
func NewModelMessage(text string) *Message {
	return &Message{Role: RoleModel, Parts: []Part{{Text: text}}}
}

// Transient reports whether the message must be excluded from persistence and
// from any history sent to the provider.
func (m *Message) Transient() bool {
	return m.IsThinking || m.IsTempStatus
}

// Text joins the text of all parts with newlines.
func (m *Message) Text() string {
	switch len(m.Parts) {
	case 0:
		return ""
	case 1:
		return m.Parts[0].Text
	}
	texts := make([]string, 0, len(m.Parts))
	for _, part := range m.Parts {
		texts = append(texts, part.Text)
	}
	return strings.Join(texts, "\n")
}

// Normalize repairs a message ingested from storage or a stream so that it
// always carries at least one part. Invalid shapes are substituted with a
// placeholder rather than crashing downstream renderers.
func (m *Message) Normalize() {
	if m.Role != RoleUser && m.Role != RoleModel {
		m.Role = RoleModel
	}
	if len(m.Parts) == 0 {
		m.Parts = []Part{{Text: invalidContentPlaceholder}}
	}
}

// Valid reports whether a stored message has renderable content.
func (m *Message) Valid() bool {
	return len(m.Parts) > 0
}

// clone returns a deep copy of the message.
func (m *Message) clone() *Message {
	clone := *m
	clone.Parts = make([]Part, len(m.Parts))
	copy(clone.Parts, m.Parts)
	for i, part := range m.Parts {
		if part.InlineData != nil {
			data := *part.InlineData
			clone.Parts[i].InlineData = &data
		}
	}
	return &clone
}

// snapshot returns a deep copy with the transient and archived flags stripped,
// suitable for inclusion in an immutable archive entry.
func (m *Message) snapshot() *Message {
	clone := m.clone()
	clone.IsThinking = false
	clone.IsTempStatus = false
	clone.Archived = false
	return clone
}

// cloneMessages deep-copies a message list.
func cloneMessages(messages []*Message) []*Message {
	clones := make([]*Message, 0, len(messages))
	for _, message := range messages {
		clones = append(clones, message.clone())
	}
	return clones
}
