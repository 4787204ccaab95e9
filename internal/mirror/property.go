// Package mirror tracks the observable properties of live objects.
//
// Inspectable types register their "<name>Property" accessors in a
// central table (Register). A Tracker attached to an object subscribes
// once to every registered property and forwards invalidations, by
// property name, to an Updater.
package mirror

import (
	"errors"
	"sync"
)

// ErrBound is returned when writing a property that is computed from
// other properties.
var ErrBound = errors.New("property is bound")

// Observable is a value that notifies listeners when it changes.
type Observable interface {
	// Value returns the current value.
	Value() any
	// AddListener subscribes fn to invalidations of the observable.
	AddListener(fn func(Observable)) Subscription
	// IsBound reports whether the value is computed from other values.
	IsBound() bool
}

// Subscription cancels one listener. Cancel is idempotent.
type Subscription interface {
	Cancel()
}

type listenerSet struct {
	mu        sync.Mutex
	nextID    int
	listeners map[int]func(Observable)
}

type subscription struct {
	once   sync.Once
	cancel func()
}

func (s *subscription) Cancel() {
	s.once.Do(s.cancel)
}

func (l *listenerSet) add(fn func(Observable)) Subscription {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.listeners == nil {
		l.listeners = make(map[int]func(Observable))
	}
	id := l.nextID
	l.nextID++
	l.listeners[id] = fn

	return &subscription{cancel: func() {
		l.mu.Lock()
		delete(l.listeners, id)
		l.mu.Unlock()
	}}
}

func (l *listenerSet) snapshot() []func(Observable) {
	l.mu.Lock()
	defer l.mu.Unlock()

	fns := make([]func(Observable), 0, len(l.listeners))
	for _, fn := range l.listeners {
		fns = append(fns, fn)
	}
	return fns
}

func (l *listenerSet) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.listeners)
}

// Property is an observable value of type T. Listeners run on the
// goroutine that changed the value, after the lock is released.
type Property[T comparable] struct {
	mu        sync.RWMutex
	value     T
	compute   func() T
	bindings  []Subscription
	listeners listenerSet
}

// NewProperty returns a property holding initial.
func NewProperty[T comparable](initial T) *Property[T] {
	return &Property[T]{value: initial}
}

// Get returns the current value.
func (p *Property[T]) Get() T {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.value
}

// Value implements Observable.
func (p *Property[T]) Value() any {
	return p.Get()
}

// Set stores v and notifies listeners when it differs from the current
// value. Bound properties reject writes with ErrBound.
func (p *Property[T]) Set(v T) error {
	p.mu.Lock()
	if p.compute != nil {
		p.mu.Unlock()
		return ErrBound
	}
	changed := p.value != v
	p.value = v
	p.mu.Unlock()

	if changed {
		p.fire()
	}
	return nil
}

// Bind makes the property follow compute, re-evaluated whenever one of
// deps is invalidated. A bound property rejects Set until Unbind.
func (p *Property[T]) Bind(compute func() T, deps ...Observable) {
	p.Unbind()

	p.mu.Lock()
	p.compute = compute
	for _, dep := range deps {
		p.bindings = append(p.bindings, dep.AddListener(func(Observable) { p.recompute() }))
	}
	p.mu.Unlock()

	p.recompute()
}

// Unbind stops following the bound computation and keeps the last
// computed value.
func (p *Property[T]) Unbind() {
	p.mu.Lock()
	bindings := p.bindings
	p.bindings = nil
	p.compute = nil
	p.mu.Unlock()

	for _, b := range bindings {
		b.Cancel()
	}
}

// IsBound implements Observable.
func (p *Property[T]) IsBound() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.compute != nil
}

func (p *Property[T]) recompute() {
	p.mu.Lock()
	if p.compute == nil {
		p.mu.Unlock()
		return
	}
	v := p.compute()
	changed := p.value != v
	p.value = v
	p.mu.Unlock()

	if changed {
		p.fire()
	}
}

// AddListener implements Observable.
func (p *Property[T]) AddListener(fn func(Observable)) Subscription {
	return p.listeners.add(fn)
}

// ListenerCount returns the number of subscribed listeners.
func (p *Property[T]) ListenerCount() int {
	return p.listeners.count()
}

func (p *Property[T]) fire() {
	for _, fn := range p.listeners.snapshot() {
		fn(p)
	}
}
