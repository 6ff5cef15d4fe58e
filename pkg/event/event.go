// pkg/event/event.go
package event

import (
	"sort"
	"sync"

	"github.com/opd-ai/go-gaterace/pkg/physics"
)

// Type represents the type of event
type Type string

// Race lifecycle event types
const (
	RaceStarted  Type = "race_started"
	GatePassed   Type = "gate_passed"
	RaceFinished Type = "race_finished"
	RaceAborted  Type = "race_aborted"
	CraftReset   Type = "craft_reset"
	ModeChanged  Type = "mode_changed"
)

// Event is the base interface for all events
type Event interface {
	GetType() Type
	GetSource() interface{}
}

// BaseEvent provides common functionality for all events
type BaseEvent struct {
	EventType Type
	Source    interface{}
}

// GetType returns the event type
func (e *BaseEvent) GetType() Type {
	return e.EventType
}

// GetSource returns the event source
func (e *BaseEvent) GetSource() interface{} {
	return e.Source
}

// Handler is a function that handles events
type Handler func(Event)

// SubscriptionID identifies a handler registration
type SubscriptionID uint64

type subscription struct {
	id      SubscriptionID
	handler Handler
}

// Bus manages event subscriptions and dispatching. Handlers run
// synchronously on the publishing goroutine, in subscription order, so they
// must not block.
type Bus struct {
	handlers map[Type][]subscription
	nextID   SubscriptionID
	mu       sync.RWMutex
}

// NewEventBus creates a new event bus
func NewEventBus() *Bus {
	return &Bus{
		handlers: make(map[Type][]subscription),
		nextID:   1,
	}
}

// Subscribe registers a handler for a specific event type
func (b *Bus) Subscribe(eventType Type, handler Handler) SubscriptionID {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.handlers[eventType] = append(b.handlers[eventType], subscription{id: id, handler: handler})
	return id
}

// Unsubscribe removes a handler registration. It reports whether the
// subscription existed.
func (b *Bus) Unsubscribe(eventType Type, id SubscriptionID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.handlers[eventType]
	for i, s := range subs {
		if s.id == id {
			b.handlers[eventType] = append(subs[:i:i], subs[i+1:]...)
			return true
		}
	}
	return false
}

// Publish sends an event to all subscribed handlers
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	subs := b.handlers[event.GetType()]
	handlers := make([]Handler, len(subs))
	for i, s := range subs {
		handlers[i] = s.handler
	}
	b.mu.RUnlock()

	for _, handler := range handlers {
		handler(event)
	}
}

// Types returns the event types that currently have subscribers
func (b *Bus) Types() []Type {
	b.mu.RLock()
	defer b.mu.RUnlock()

	types := make([]Type, 0, len(b.handlers))
	for t, subs := range b.handlers {
		if len(subs) > 0 {
			types = append(types, t)
		}
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// Specific event implementations

// RaceEvent is raised when a race starts, finishes or is aborted.
// Chassis identifies the ship class for flavor-text lookup.
type RaceEvent struct {
	BaseEvent
	RaceID  string
	Chassis string
	Score   int
	Frames  uint64
}

// NewRaceEvent creates a new race event
func NewRaceEvent(eventType Type, source interface{}, raceID, chassis string, score int, frames uint64) *RaceEvent {
	return &RaceEvent{
		BaseEvent: BaseEvent{
			EventType: eventType,
			Source:    source,
		},
		RaceID:  raceID,
		Chassis: chassis,
		Score:   score,
		Frames:  frames,
	}
}

// GateEvent contains information about a gate passage
type GateEvent struct {
	BaseEvent
	RaceID    string
	GateIndex int
	Score     int
	Frame     uint64
}

// NewGateEvent creates a new gate event
func NewGateEvent(source interface{}, raceID string, gateIndex, score int, frame uint64) *GateEvent {
	return &GateEvent{
		BaseEvent: BaseEvent{
			EventType: GatePassed,
			Source:    source,
		},
		RaceID:    raceID,
		GateIndex: gateIndex,
		Score:     score,
		Frame:     frame,
	}
}

// CraftEvent carries the craft position at the moment of an event
type CraftEvent struct {
	BaseEvent
	RaceID   string
	Position physics.Vector3
	Mode     physics.Mode
}

// NewCraftEvent creates a new craft event
func NewCraftEvent(eventType Type, source interface{}, raceID string, position physics.Vector3, mode physics.Mode) *CraftEvent {
	return &CraftEvent{
		BaseEvent: BaseEvent{
			EventType: eventType,
			Source:    source,
		},
		RaceID:   raceID,
		Position: position,
		Mode:     mode,
	}
}
