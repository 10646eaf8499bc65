package feathersync

import (
	"github.com/akmonengine/feathersync/actor"
)

const (
	ON_SYNC EventType = iota
	ON_TICK
)

type EventType uint8

// Event interface - all events implement this
type Event interface {
	Type() EventType
}

// SyncEvent is sent once per frame, after staged writes reached the engine
// and before the step is handed off.
type SyncEvent struct {
	Frame      uint64
	DeltaTime  float32
	Evaluation actor.EvaluationType
}

func (e SyncEvent) Type() EventType { return ON_SYNC }

// TickEvent is sent once the step of Frame has completed.
type TickEvent struct {
	Frame     uint64
	DeltaTime float32
}

func (e TickEvent) Type() EventType { return ON_TICK }

type listener[E Event] struct {
	id int
	fn func(E)
}

// Observable holds the listeners of one event type. It is used from the
// goroutine driving the Runtime only.
type Observable[E Event] struct {
	listeners []listener[E]
	nextID    int
}

// Subscribe adds a listener. The returned func removes it and may be called
// more than once.
func (o *Observable[E]) Subscribe(fn func(E)) (unsubscribe func()) {
	o.nextID++
	id := o.nextID
	o.listeners = append(o.listeners, listener[E]{id: id, fn: fn})

	return func() {
		for i, l := range o.listeners {
			if l.id == id {
				o.listeners = append(o.listeners[:i:i], o.listeners[i+1:]...)
				return
			}
		}
	}
}

// notify calls the listeners in subscription order. Listeners added or
// removed by a listener take effect on the next event.
func (o *Observable[E]) notify(event E) {
	listeners := o.listeners
	for _, l := range listeners {
		l.fn(event)
	}
}

func (o *Observable[E]) Len() int {
	return len(o.listeners)
}
