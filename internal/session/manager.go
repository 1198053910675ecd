package session

import (
	"sync"
	"time"

	"github.com/pkg/errors"
)

const (
	// maxHistoryEntries bounds the history list; oldest entries are evicted.
	maxHistoryEntries = 50

	// tempStatusDelay is how long an ephemeral notice stays on screen.
	tempStatusDelay = 3 * time.Second

	splitConfirmationText   = "Conversation split and archived. A new conversation has begun."
	archiveConfirmationText = "This Q&A pair has been archived."
	archiveFailureText      = "Archiving failed: no matching user message was found."
)

// Store keys for the local namespace.
const (
	KeyChatHistory     = "chat_history"
	KeyArchivedChats   = "archived_chats"
	KeyPromptTemplates = "prompt_templates"
)

// Store is the slice of the persistent store the manager relies on.
type Store interface {
	// GetJSON decodes the value at key into out, reporting whether it existed.
	GetJSON(key string, out any) (bool, error)
	// SetJSON encodes value and writes it at key.
	SetJSON(key string, value any) error
}

// Renderer is invoked after every mutation of the current session. It must not
// mutate the messages it receives.
type Renderer interface {
	Render(messages []*Message, title string)
}

// Entry is one history or archive entry: an ordered message list identified by
// its first message's timestamp.
type Entry []*Message

// FirstTimestamp returns the identity timestamp of the entry, or 0 when empty.
func (e Entry) FirstTimestamp() int64 {
	if len(e) == 0 {
		return 0
	}
	return e[0].Timestamp
}

// Manager owns the active chat session, the bounded history of past sessions
// and the archive of immutable snapshots. All mutations of the current session
// go through the manager; persistence is best-effort and never corrupts the
// in-memory state.
type Manager struct {
	mu       sync.Mutex
	store    Store
	renderer Renderer
	title    string

	current []*Message
	history []Entry
	archive []Entry

	lastTimestamp int64
	inFlight      bool
	streaming     *Message

	// tempDelay is tempStatusDelay, overridable in tests.
	tempDelay time.Duration
}

// NewManager returns a manager bound to the given store. The renderer may be
// nil for headless use.
func NewManager(store Store, renderer Renderer, title string) *Manager {
	return &Manager{
		store:     store,
		renderer:  renderer,
		title:     title,
		tempDelay: tempStatusDelay,
	}
}

// Load reads history and archive from the store and seeds the current session
// from the most recent history entry, mirroring a fresh side-panel open.
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var history []Entry
	if _, err := m.store.GetJSON(KeyChatHistory, &history); err != nil {
		return errors.Wrap(err, "loading chat history")
	}
	m.history = sanitizeHistory(history)

	var archive []Entry
	if _, err := m.store.GetJSON(KeyArchivedChats, &archive); err != nil {
		return errors.Wrap(err, "loading archived chats")
	}
	for _, entry := range archive {
		for _, message := range entry {
			message.Normalize()
		}
	}
	m.archive = archive

	if len(m.current) == 0 && len(m.history) > 0 {
		m.current = cloneMessages(m.history[0])
	}
	m.render()
	return nil
}

// sanitizeHistory drops transient and malformed messages from stored history
// entries, and drops entries left empty.
func sanitizeHistory(history []Entry) []Entry {
	sanitized := make([]Entry, 0, len(history))
	for _, entry := range history {
		kept := make(Entry, 0, len(entry))
		for _, message := range entry {
			if message == nil || !message.Valid() || message.Transient() {
				continue
			}
			message.Normalize()
			kept = append(kept, message)
		}
		if len(kept) > 0 {
			sanitized = append(sanitized, kept)
		}
	}
	return sanitized
}

// now returns a unix-millisecond timestamp, bumped to stay strictly
// monotonic: session identity relies on first-message timestamps.
func (m *Manager) now() int64 {
	timestamp := time.Now().UnixMilli()
	if timestamp <= m.lastTimestamp {
		timestamp = m.lastTimestamp + 1
	}
	m.lastTimestamp = timestamp
	return timestamp
}

func (m *Manager) render() {
	if m.renderer != nil {
		m.renderer.Render(m.current, m.title)
	}
}

// Append normalizes and appends a message to the current session, re-renders,
// and persists the session unless the message is transient. It returns the
// stored message, whose timestamp has been assigned.
func (m *Manager) Append(message *Message) (*Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.append(message)
}

func (m *Manager) append(message *Message) (*Message, error) {
	message.Normalize()
	if message.Timestamp == 0 {
		message.Timestamp = m.now()
	}
	m.current = append(m.current, message)
	m.render()
	if message.Transient() {
		return message, nil
	}
	return message, m.saveCurrent()
}

// AppendTemp appends a self-removing ephemeral notice.
func (m *Manager) AppendTemp(text string) (*Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendTemp(text)
}

func (m *Manager) appendTemp(text string) (*Message, error) {
	message := NewModelMessage(text)
	message.IsTempStatus = true
	stored, err := m.append(message)
	if err != nil {
		return nil, err
	}
	timestamp := stored.Timestamp
	time.AfterFunc(m.tempDelay, func() {
		m.RemoveIf(func(candidate *Message) bool {
			return candidate.IsTempStatus && candidate.Timestamp == timestamp
		})
	})
	return stored, nil
}

// RemoveIf removes every message matching the predicate from the current
// session, reporting whether anything was removed. Removal re-renders but does
// not persist: transient messages were never persisted to begin with.
func (m *Manager) RemoveIf(predicate func(*Message) bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.removeIf(predicate)
}

func (m *Manager) removeIf(predicate func(*Message) bool) bool {
	kept := m.current[:0]
	for _, message := range m.current {
		if !predicate(message) {
			kept = append(kept, message)
		}
	}
	removed := len(kept) != len(m.current)
	m.current = kept
	if removed {
		m.render()
	}
	return removed
}

// SaveCurrent persists the current session into history: an existing entry
// with the same first-message timestamp is replaced in place, otherwise the
// session is prepended. History is capped; the oldest entries are evicted.
func (m *Manager) SaveCurrent() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveCurrent()
}

func (m *Manager) saveCurrent() error {
	toStore := persistable(m.current)
	if len(toStore) > 0 {
		index := m.findHistoryEntry(Entry(toStore).FirstTimestamp())
		if index >= 0 {
			m.history[index] = cloneMessages(toStore)
		} else {
			m.history = append([]Entry{cloneMessages(toStore)}, m.history...)
		}
	}
	if len(m.history) > maxHistoryEntries {
		m.history = m.history[:maxHistoryEntries]
	}
	return m.persistHistory()
}

// persistable filters out transient messages.
func persistable(messages []*Message) []*Message {
	kept := make([]*Message, 0, len(messages))
	for _, message := range messages {
		if !message.Transient() {
			kept = append(kept, message)
		}
	}
	return kept
}

func (m *Manager) findHistoryEntry(firstTimestamp int64) int {
	if firstTimestamp == 0 {
		return -1
	}
	for i, entry := range m.history {
		if entry.FirstTimestamp() == firstTimestamp {
			return i
		}
	}
	return -1
}

func (m *Manager) persistHistory() error {
	return errors.Wrap(m.store.SetJSON(KeyChatHistory, m.history), "persisting chat history")
}

func (m *Manager) persistArchive() error {
	return errors.Wrap(m.store.SetJSON(KeyArchivedChats, m.archive), "persisting archived chats")
}

// Split archives the whole current session as one immutable entry, makes sure
// it is present in history, then clears the session and emits an ephemeral
// confirmation. Splitting a session with no persistable messages creates no
// archive entry.
func (m *Manager) Split() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	toProcess := persistable(m.current)
	if len(toProcess) > 0 {
		snapshot := make(Entry, 0, len(toProcess))
		for _, message := range toProcess {
			snapshot = append(snapshot, message.snapshot())
		}
		m.archive = append([]Entry{snapshot}, m.archive...)
		if err := m.persistArchive(); err != nil {
			return err
		}

		// Do not double-insert if the session is already the history head.
		if len(m.history) == 0 || m.history[0].FirstTimestamp() != Entry(toProcess).FirstTimestamp() {
			m.history = append([]Entry{cloneMessages(toProcess)}, m.history...)
			if len(m.history) > maxHistoryEntries {
				m.history = m.history[:maxHistoryEntries]
			}
			if err := m.persistHistory(); err != nil {
				return err
			}
		}
	}

	m.current = nil
	m.render()
	// Remove any lingering confirmation before emitting a fresh one, so that
	// back-to-back splits never stack notices.
	m.removeIf(func(message *Message) bool {
		return message.IsTempStatus && message.Text() == splitConfirmationText
	})
	_, err := m.appendTemp(splitConfirmationText)
	return err
}

// ArchiveQAPair copies the assistant message at the given index of the current
// session, together with the nearest preceding non-transient user message,
// into a new archive entry, and marks the assistant message archived. The
// index must address an assistant message. It is idempotent: an
// already-archived message is a no-op. When no preceding user message exists,
// an ephemeral failure notice is emitted and nothing mutates.
func (m *Manager) ArchiveQAPair(assistantIndex int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if assistantIndex < 0 || assistantIndex >= len(m.current) {
		return errors.Errorf("message index %d out of range", assistantIndex)
	}
	assistant := m.current[assistantIndex]
	if assistant.Role != RoleModel {
		return errors.Errorf("message %d is not an assistant message", assistantIndex)
	}
	if assistant.Archived {
		return nil
	}

	var user *Message
	for i := assistantIndex - 1; i >= 0; i-- {
		candidate := m.current[i]
		if candidate.Role == RoleUser && !candidate.Transient() {
			user = candidate
			break
		}
	}
	if user == nil {
		_, err := m.appendTemp(archiveFailureText)
		return err
	}

	pair := Entry{user.snapshot(), assistant.snapshot()}
	m.archive = append([]Entry{pair}, m.archive...)
	if err := m.persistArchive(); err != nil {
		return err
	}

	assistant.Archived = true
	m.render()
	if err := m.saveCurrent(); err != nil {
		return err
	}
	_, err := m.appendTemp(archiveConfirmationText)
	return err
}

// DeleteArchiveEntry removes the stored entry matching the given view entry,
// persisting immediately. Entries are matched by their full message timestamp
// sequence: the first timestamp alone is not unique, a Q&A pair and a later
// whole-session snapshot can share their opening message.
func (m *Manager) DeleteArchiveEntry(entry Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, candidate := range m.archive {
		if sameTimestamps(candidate, entry) {
			m.archive = append(m.archive[:i], m.archive[i+1:]...)
			return m.persistArchive()
		}
	}
	return errors.Errorf("no archive entry with timestamp %d", entry.FirstTimestamp())
}

func sameTimestamps(a, b Entry) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Timestamp != b[i].Timestamp {
			return false
		}
	}
	return true
}

// ClearArchive removes every archive entry.
func (m *Manager) ClearArchive() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.archive = nil
	return m.persistArchive()
}

// ClearHistory wipes history and the current session.
func (m *Manager) ClearHistory() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = nil
	m.current = nil
	m.render()
	return m.persistHistory()
}

// Current returns a copy of the active session.
func (m *Manager) Current() []*Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneMessages(m.current)
}

// ProviderHistory returns the messages to resend to the provider: transient
// messages are excluded, archived ones are not. Archiving only affects the
// archive view, never the live conversation context.
func (m *Manager) ProviderHistory() []*Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneMessages(persistable(m.current))
}

// MessageText returns the literal text of the message at index, for copy
// affordances. The session itself is never handed out mutable.
func (m *Manager) MessageText(index int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if index < 0 || index >= len(m.current) {
		return "", errors.Errorf("message index %d out of range", index)
	}
	return m.current[index].Text(), nil
}

// HistoryView returns the history entries sorted by first-message timestamp,
// most recent first. Storage order stays insertion order; the sort is a
// read-time view.
func (m *Manager) HistoryView() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return sortedView(m.history)
}

// ArchiveView returns the archive entries sorted most recent first.
func (m *Manager) ArchiveView() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return sortedView(m.archive)
}

func sortedView(entries []Entry) []Entry {
	view := make([]Entry, 0, len(entries))
	for _, entry := range entries {
		view = append(view, Entry(cloneMessages(entry)))
	}
	for i := 1; i < len(view); i++ {
		for j := i; j > 0 && view[j].FirstTimestamp() > view[j-1].FirstTimestamp(); j-- {
			view[j], view[j-1] = view[j-1], view[j]
		}
	}
	return view
}

// ReplaceHistory swaps the in-memory history wholesale, for storage-change
// notifications from another context. No field-level merging.
func (m *Manager) ReplaceHistory(history []Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = sanitizeHistory(history)
}

// ReplaceArchive swaps the in-memory archive wholesale.
func (m *Manager) ReplaceArchive(archive []Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.archive = archive
}

// ArchiveCount returns the number of archive entries.
func (m *Manager) ArchiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.archive)
}
