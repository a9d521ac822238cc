// Package dispatch provides a small publish/subscribe broadcaster used to
// fan events out to registered handler functions. It is protocol-agnostic;
// the log socket uses it to deliver parsed log records.
package dispatch

import (
	"errors"
	"sync"
)

// ErrNotRegistered indicates an unregister of a subscription that does not
// exist (never registered, or already removed).
var ErrNotRegistered = errors.New("handler not registered")

// Subscription identifies one registered handler. Go functions are not
// comparable, so handler identity lives in the token rather than the
// function value; each Register call produces a distinct subscription.
type Subscription uint64

// Dispatcher broadcasts events of type T to registered handlers.
//
// Fire iterates over a snapshot of the registration set, so a handler may
// unregister itself (or any other handler) from inside its own invocation:
// every handler registered when Fire starts still receives that event
// exactly once, and a handler removed during the broadcast receives no
// later event. Handlers that panic are not caught; isolation, if wanted,
// is the caller's responsibility.
type Dispatcher[T any] struct {
	mu       sync.Mutex
	handlers map[Subscription]func(T)
	nextID   Subscription
}

// New creates an empty dispatcher.
func New[T any]() *Dispatcher[T] {
	return &Dispatcher[T]{
		handlers: make(map[Subscription]func(T)),
		nextID:   1,
	}
}

// Register adds a handler and returns its subscription token.
func (d *Dispatcher[T]) Register(fn func(T)) Subscription {
	d.mu.Lock()
	defer d.mu.Unlock()

	sub := d.nextID
	d.nextID++
	d.handlers[sub] = fn
	return sub
}

// Unregister removes a handler so it receives no further events. Removing
// an unknown subscription fails with ErrNotRegistered.
func (d *Dispatcher[T]) Unregister(sub Subscription) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.handlers[sub]; !ok {
		return ErrNotRegistered
	}
	delete(d.handlers, sub)
	return nil
}

// Fire invokes every currently registered handler once with ev, in
// unspecified order.
func (d *Dispatcher[T]) Fire(ev T) {
	d.mu.Lock()
	snapshot := make([]func(T), 0, len(d.handlers))
	for _, fn := range d.handlers {
		snapshot = append(snapshot, fn)
	}
	d.mu.Unlock()

	for _, fn := range snapshot {
		fn(ev)
	}
}

// Len reports the number of registered handlers.
func (d *Dispatcher[T]) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return len(d.handlers)
}
