// Package events is a small typed publish/subscribe bus for the few
// fire-and-forget notifications the chat surface reacts to.
package events

import "sync"

// SummaryStarted is published when a link summarization begins.
type SummaryStarted struct {
	URL   string
	Title string
}

// ExtractionFailed is published when page extraction fails.
type ExtractionFailed struct {
	URL     string
	Message string
}

// Bus fans events out to subscribers, synchronously on the publisher's
// goroutine.
type Bus struct {
	mu       sync.Mutex
	next     int
	handlers map[int]func(event any)
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{handlers: map[int]func(any){}}
}

// Subscribe registers a handler and returns its unsubscribe function.
func (b *Bus) Subscribe(handler func(event any)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	b.handlers[id] = handler
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers, id)
	}
}

// Publish delivers the event to every subscriber.
func (b *Bus) Publish(event any) {
	b.mu.Lock()
	handlers := make([]func(any), 0, len(b.handlers))
	for _, handler := range b.handlers {
		handlers = append(handlers, handler)
	}
	b.mu.Unlock()
	for _, handler := range handlers {
		handler(event)
	}
}
