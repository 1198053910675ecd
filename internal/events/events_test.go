package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPublishReachesEverySubscriber(t *testing.T) {
	t.Parallel()
	bus := NewBus()

	var first, second []any
	bus.Subscribe(func(event any) { first = append(first, event) })
	bus.Subscribe(func(event any) { second = append(second, event) })

	bus.Publish(SummaryStarted{URL: "https://example.com", Title: "Example"})
	assert.Len(t, first, 1)
	assert.Len(t, second, 1)
	assert.IsType(t, SummaryStarted{}, first[0])
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	t.Parallel()
	bus := NewBus()

	var events []any
	unsubscribe := bus.Subscribe(func(event any) { events = append(events, event) })
	bus.Publish(ExtractionFailed{URL: "u", Message: "m"})
	unsubscribe()
	bus.Publish(ExtractionFailed{URL: "u", Message: "m"})
	assert.Len(t, events, 1)
}
