package box

import (
	"time"

	"github.com/lox/escalada-box/internal/boxstate"
)

// EventType identifies a kind of box-domain event.
type EventType string

const (
	EventTypeSnapshot     EventType = "snapshot"
	EventTypeEcho         EventType = "echo"
	EventTypeRankingReady EventType = "ranking_ready"
)

// Event is any occurrence a box publishes to its subscribers.
type Event interface {
	EventType() EventType
	Timestamp() time.Time
}

// SnapshotEvent is published whenever a transition reports snapshot_required.
type SnapshotEvent struct {
	BoxID     int
	State     boxstate.State
	timestamp time.Time
}

func (e SnapshotEvent) EventType() EventType { return EventTypeSnapshot }
func (e SnapshotEvent) Timestamp() time.Time { return e.timestamp }

// NewSnapshotEvent creates a snapshot event for boxID.
func NewSnapshotEvent(boxID int, state boxstate.State) SnapshotEvent {
	return SnapshotEvent{BoxID: boxID, State: state, timestamp: time.Now()}
}

// EchoEvent is published for every accepted command, snapshot or not.
type EchoEvent struct {
	BoxID     int
	Payload   map[string]any
	timestamp time.Time
}

func (e EchoEvent) EventType() EventType { return EventTypeEcho }
func (e EchoEvent) Timestamp() time.Time { return e.timestamp }

// NewEchoEvent creates an echo event for boxID.
func NewEchoEvent(boxID int, payload map[string]any) EchoEvent {
	return EchoEvent{BoxID: boxID, Payload: payload, timestamp: time.Now()}
}

// Subscriber receives box events.
type Subscriber interface {
	OnEvent(event Event)
}

// EventBus fans box events out to subscribers.
type EventBus interface {
	Subscribe(subscriber Subscriber)
	Unsubscribe(subscriber Subscriber)
	Publish(event Event)
}

// SimpleEventBus is a basic in-memory event bus.
type SimpleEventBus struct {
	subscribers []Subscriber
}

// NewEventBus creates an empty event bus.
func NewEventBus() EventBus {
	return &SimpleEventBus{}
}

func (bus *SimpleEventBus) Subscribe(subscriber Subscriber) {
	bus.subscribers = append(bus.subscribers, subscriber)
}

func (bus *SimpleEventBus) Unsubscribe(subscriber Subscriber) {
	for i, sub := range bus.subscribers {
		if sub == subscriber {
			bus.subscribers = append(bus.subscribers[:i], bus.subscribers[i+1:]...)
			break
		}
	}
}

func (bus *SimpleEventBus) Publish(event Event) {
	for _, subscriber := range bus.subscribers {
		subscriber.OnEvent(event)
	}
}
