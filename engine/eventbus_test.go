package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventBusFiltersTypes(t *testing.T) {
	bus := NewEventBus(nil)
	var all, tickets int
	bus.Subscribe(func(Event) { all++ })
	bus.SubscribeTypes(func(Event) { tickets++ }, EventTicketCreated, EventTicketOverdue)

	bus.Emit(Event{Type: EventTicketCreated})
	bus.Emit(Event{Type: EventRMACreated})
	bus.Emit(Event{Type: EventTicketOverdue})

	assert.Equal(t, 3, all)
	assert.Equal(t, 2, tickets)
}

func TestEventBusUnsubscribe(t *testing.T) {
	bus := NewEventBus(nil)
	n := 0
	id := bus.Subscribe(func(Event) { n++ })
	bus.Emit(Event{Type: EventAssetChanged})
	bus.Unsubscribe(id)
	bus.Emit(Event{Type: EventAssetChanged})
	assert.Equal(t, 1, n)
}

func TestEventBusSetsTimestamp(t *testing.T) {
	bus := NewEventBus(nil)
	var got Event
	bus.Subscribe(func(e Event) { got = e })
	bus.Emit(Event{Type: EventStockAdjusted})
	assert.False(t, got.Timestamp.IsZero())
}

func TestEventBusSurvivesPanickingHandler(t *testing.T) {
	bus := NewEventBus(nil)
	reached := false
	bus.Subscribe(func(Event) { panic("boom") })
	bus.Subscribe(func(Event) { reached = true })

	assert.NotPanics(t, func() { bus.Emit(Event{Type: EventRMAMoved}) })
	assert.True(t, reached)
}

func TestEventBusHandlerCanRegister(t *testing.T) {
	bus := NewEventBus(nil)
	late := 0
	var id SubscriberID
	id = bus.Subscribe(func(Event) {
		bus.Unsubscribe(id)
		bus.Subscribe(func(Event) { late++ })
	})

	bus.Emit(Event{Type: EventTicketCreated})
	assert.Equal(t, 0, late)
	bus.Emit(Event{Type: EventTicketCreated})
	assert.Equal(t, 1, late)
}
