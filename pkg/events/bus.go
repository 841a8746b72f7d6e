// Package events provides a small synchronous fan-out dispatcher and the
// process-wide fault sink used for errors that are reported but not returned.
package events

import (
	"fmt"
	"sync"
)

// Handler receives one event. A returned error is reported to the bus's
// fault sink.
type Handler[E any] func(E) error

// Subscriber is a registered handler.
type Subscriber[E any] struct {
	Key     string
	Handler Handler[E]
	// Async is a hint for dispatchers that can move work off the publishing
	// goroutine. The default dispatch ignores it.
	Async bool
}

// Dispatcher decides how a subscriber is invoked for an event, e.g. to marshal
// the call onto a UI loop.
type Dispatcher[E any] func(s Subscriber[E], e E) error

// Bus fans events out to every subscriber in registration order.
// Mutable, safe for concurrent use.
type Bus[E any] struct {
	mu         sync.RWMutex
	subs       []Subscriber[E]
	index      map[string]int
	dispatcher Dispatcher[E]
	sink       FaultSink
}

// NewBus creates a Bus reporting handler failures to sink. A nil sink means
// the process-wide DefaultSink at the time of each failure.
func NewBus[E any](sink FaultSink) *Bus[E] {
	return &Bus[E]{
		index: make(map[string]int),
		sink:  sink,
	}
}

// Subscribe registers h under key. Subscribing an existing key replaces its
// handler and keeps its position.
func (b *Bus[E]) Subscribe(key string, h Handler[E], async bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := Subscriber[E]{Key: key, Handler: h, Async: async}
	if i, ok := b.index[key]; ok {
		b.subs[i] = s
		return
	}
	b.index[key] = len(b.subs)
	b.subs = append(b.subs, s)
}

// Unsubscribe removes the handler registered under key, if any.
func (b *Bus[E]) Unsubscribe(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	i, ok := b.index[key]
	if !ok {
		return
	}
	b.subs = append(b.subs[:i], b.subs[i+1:]...)
	delete(b.index, key)
	for j := i; j < len(b.subs); j++ {
		b.index[b.subs[j].Key] = j
	}
}

// SetDispatcher replaces the way subscribers are invoked. nil restores the
// synchronous default.
func (b *Bus[E]) SetDispatcher(d Dispatcher[E]) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dispatcher = d
}

// Len returns the number of subscribers.
func (b *Bus[E]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Publish delivers e to every subscriber registered when the call starts.
// A failing or panicking subscriber is reported to the fault sink and does not
// keep the others from running. Publish never fails.
func (b *Bus[E]) Publish(e E) {
	b.mu.RLock()
	subs := make([]Subscriber[E], len(b.subs))
	copy(subs, b.subs)
	dispatcher := b.dispatcher
	b.mu.RUnlock()

	for _, s := range subs {
		if err := b.invoke(dispatcher, s, e); err != nil {
			b.report(fmt.Errorf("subscriber %q: %w", s.Key, err))
		}
	}
}

func (b *Bus[E]) invoke(d Dispatcher[E], s Subscriber[E], e E) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	if d != nil {
		return d(s, e)
	}
	return s.Handler(e)
}

func (b *Bus[E]) report(err error) {
	if b.sink != nil {
		b.sink.Report(err)
		return
	}
	Report(err)
}
