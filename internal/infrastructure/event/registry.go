package event

import (
	"slices"
	"sync"

	"github.com/erp/returns/internal/domain/shared"
)

// subscription is one Register call. A nil types set matches every event.
type subscription struct {
	handler shared.EventHandler
	types   map[string]struct{}
}

func (s subscription) matches(eventType string) bool {
	_, ok := s.types[eventType]
	return ok
}

// HandlerRegistry keeps subscriptions in registration order
type HandlerRegistry struct {
	mu   sync.RWMutex
	subs []subscription
}

func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{}
}

// Register subscribes handler to eventTypes, or to every event when none are given
func (r *HandlerRegistry) Register(handler shared.EventHandler, eventTypes ...string) {
	sub := subscription{handler: handler}
	if len(eventTypes) > 0 {
		sub.types = make(map[string]struct{}, len(eventTypes))
		for _, t := range eventTypes {
			sub.types[t] = struct{}{}
		}
	}

	r.mu.Lock()
	r.subs = append(r.subs, sub)
	r.mu.Unlock()
}

// Unregister drops every subscription of handler
func (r *HandlerRegistry) Unregister(handler shared.EventHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs = slices.DeleteFunc(r.subs, func(s subscription) bool { return s.handler == handler })
}

// HandlersFor returns the handlers subscribed to eventType by name, then the
// catch-all handlers. A handler appears once even if subscribed both ways.
func (r *HandlerRegistry) HandlersFor(eventType string) []shared.EventHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var typed, catchAll []shared.EventHandler
	for _, s := range r.subs {
		switch {
		case s.types == nil:
			catchAll = append(catchAll, s.handler)
		case s.matches(eventType):
			typed = append(typed, s.handler)
		}
	}
	return unique(append(typed, catchAll...))
}

// Handlers returns every subscribed handler once
func (r *HandlerRegistry) Handlers() []shared.EventHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]shared.EventHandler, len(r.subs))
	for i, s := range r.subs {
		all[i] = s.handler
	}
	return unique(all)
}

func unique(handlers []shared.EventHandler) []shared.EventHandler {
	out := handlers[:0]
	for i, h := range handlers {
		if !slices.Contains(handlers[:i], h) {
			out = append(out, h)
		}
	}
	return out
}
