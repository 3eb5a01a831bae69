// Package events provides typed publish/subscribe topics.
//
// A Topic fans a published value out to every current subscriber, in
// subscription order. Subscriptions are identified by a Token that is
// later passed to Unsubscribe; handlers may unsubscribe themselves (or
// others) while a value is being delivered.
package events

import (
	"sync"

	"github.com/google/uuid"
)

// Token identifies a subscription.
type Token uuid.UUID

// String returns the token in canonical UUID form.
func (t Token) String() string {
	return uuid.UUID(t).String()
}

type subscription[T any] struct {
	token   Token
	handler func(T)
}

// Topic is a multi-subscriber channel for values of type T.
// The zero value is ready to use.
type Topic[T any] struct {
	mu   sync.RWMutex
	subs []subscription[T]
}

// Subscribe registers handler and returns its unsubscribe token.
func (t *Topic[T]) Subscribe(handler func(T)) Token {
	token := Token(uuid.New())

	t.mu.Lock()
	defer t.mu.Unlock()
	t.subs = append(t.subs, subscription[T]{token: token, handler: handler})
	return token
}

// Unsubscribe removes the subscription. It reports whether the token was known.
func (t *Topic[T]) Unsubscribe(token Token) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, s := range t.subs {
		if s.token == token {
			// copy so that an in-flight Publish keeps its snapshot intact
			subs := make([]subscription[T], 0, len(t.subs)-1)
			subs = append(subs, t.subs[:i]...)
			subs = append(subs, t.subs[i+1:]...)
			t.subs = subs
			return true
		}
	}
	return false
}

// Publish delivers v to every subscriber registered at the time of the call.
func (t *Topic[T]) Publish(v T) {
	t.mu.RLock()
	subs := t.subs
	t.mu.RUnlock()

	for _, s := range subs {
		s.handler(v)
	}
}

// Len returns the number of active subscriptions.
func (t *Topic[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.subs)
}

// Group collects tokens from several topics so they can be released together.
type Group struct {
	mu      sync.Mutex
	cancels []func()
}

// Add subscribes handler to topic and remembers the subscription.
func Add[T any](g *Group, topic *Topic[T], handler func(T)) {
	token := topic.Subscribe(handler)

	g.mu.Lock()
	defer g.mu.Unlock()
	g.cancels = append(g.cancels, func() { topic.Unsubscribe(token) })
}

// Close releases every subscription added to the group.
func (g *Group) Close() {
	g.mu.Lock()
	cancels := g.cancels
	g.cancels = nil
	g.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}
