package skills

import (
	"context"
	"errors"
	"strings"
	"sync"

	"alice/internal/domain"
)

var ErrNoHandler = errors.New("no handler for request")

type Handler[S, U any] func(ctx context.Context, in *domain.IncomingMessage[S, U]) (domain.OutgoingMessage[S, U], error)

// Registry routes a request to the handler of the first registered intent
// that the NLU recognized, or to the fallback.
type Registry[S, U any] struct {
	mu       sync.RWMutex
	order    []string
	handlers map[string]Handler[S, U]
	fallback Handler[S, U]
}

func NewRegistry[S, U any]() *Registry[S, U] {
	return &Registry[S, U]{
		handlers: make(map[string]Handler[S, U]),
	}
}

// Handle registers h for intentID. Registering the same intent again
// replaces the handler and keeps its priority.
func (r *Registry[S, U]) Handle(intentID string, h Handler[S, U]) {
	intentID = strings.TrimSpace(intentID)
	if intentID == "" || h == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.handlers[intentID]; !ok {
		r.order = append(r.order, intentID)
	}
	r.handlers[intentID] = h
}

func (r *Registry[S, U]) Fallback(h Handler[S, U]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = h
}

func (r *Registry[S, U]) Intents() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string{}, r.order...)
}

// Match returns the intent id that Dispatch would use, "" for the fallback.
func (r *Registry[S, U]) Match(in *domain.IncomingMessage[S, U]) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, h := r.match(in)
	return id, h != nil
}

func (r *Registry[S, U]) Dispatch(ctx context.Context, in *domain.IncomingMessage[S, U]) (domain.OutgoingMessage[S, U], error) {
	r.mu.RLock()
	_, h := r.match(in)
	r.mu.RUnlock()

	if h == nil {
		return domain.OutgoingMessage[S, U]{}, ErrNoHandler
	}
	return h(ctx, in)
}

func (r *Registry[S, U]) match(in *domain.IncomingMessage[S, U]) (string, Handler[S, U]) {
	if id := r.matchID(in); id != "" {
		return id, r.handlers[id]
	}
	return "", r.fallback
}

func (r *Registry[S, U]) matchID(in *domain.IncomingMessage[S, U]) string {
	intents := in.Request.Nlu.Intents
	for _, id := range r.order {
		if _, ok := intents[id]; ok {
			return id
		}
	}
	return ""
}
