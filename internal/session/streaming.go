package session

import "github.com/pkg/errors"

const thinkingText = "Thinking..."

// ErrSendInFlight is returned when a send is initiated while an in-progress
// assistant message is still outstanding.
var ErrSendInFlight = errors.New("a response is already being streamed")

// BeginExchange marks the start of a send operation and appends the thinking
// placeholder. Only one exchange may be in flight per session.
func (m *Manager) BeginExchange() (*Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.inFlight {
		return nil, ErrSendInFlight
	}
	m.inFlight = true
	m.streaming = nil
	placeholder := NewModelMessage(thinkingText)
	placeholder.IsThinking = true
	return m.append(placeholder)
}

// InFlight reports whether an exchange is outstanding; the input boundary uses
// this to disable submission.
func (m *Manager) InFlight() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inFlight
}

// RemoveThinking drops the thinking placeholder. It is always called before
// any error or response message is shown, success or failure.
func (m *Manager) RemoveThinking() {
	m.RemoveIf(func(message *Message) bool { return message.IsThinking })
}

// StreamDelta applies one text delta to the in-progress assistant message,
// creating it on the first delta, and re-renders synchronously. Deltas are
// applied strictly in arrival order by the calling goroutine.
func (m *Manager) StreamDelta(delta string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.inFlight {
		return errors.New("no exchange in flight")
	}
	if m.streaming == nil {
		m.streaming = NewModelMessage("")
		m.streaming.Timestamp = m.now()
		m.current = append(m.current, m.streaming)
	}
	m.streaming.Parts[0].Text += delta
	m.render()
	return nil
}

// EndExchange closes the current exchange. When at least one delta arrived the
// session is persisted; otherwise the caller surfaces the empty-stream
// condition separately.
func (m *Manager) EndExchange() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	received := m.streaming != nil
	m.inFlight = false
	m.streaming = nil
	if !received {
		return nil
	}
	return m.saveCurrent()
}
