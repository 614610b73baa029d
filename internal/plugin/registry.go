package plugin

import (
	"errors"
	"fmt"
	"sort"
)

var (
	ErrNoHandler        = errors.New("no handler registered for platform")
	ErrDuplicateHandler = errors.New("handler already registered for platform")
)

// Registry holds one handler per platform identifier. Registration happens
// once at startup; after that the registry is read-only and safe for
// concurrent dispatch without locking.
type Registry struct {
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register adds a handler under its platform identifier. Registering the same
// identifier twice is a configuration bug and fails immediately so the
// process can refuse to start.
func (r *Registry) Register(h Handler) error {
	platform := h.Platform()
	if platform == "" {
		return errors.New("handler has empty platform identifier")
	}
	if _, exists := r.handlers[platform]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateHandler, platform)
	}
	r.handlers[platform] = h
	return nil
}

// Handler resolves a platform identifier. A missing handler is a deployment
// bug surfaced to the caller, never skipped.
func (r *Registry) Handler(platform string) (Handler, error) {
	h, ok := r.handlers[platform]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoHandler, platform)
	}
	return h, nil
}

// AuthCapable returns the platform's handler as AuthCapable when it declares
// that capability.
func (r *Registry) AuthCapable(platform string) (AuthCapable, bool) {
	h, ok := r.handlers[platform]
	if !ok {
		return nil, false
	}
	ac, ok := h.(AuthCapable)
	return ac, ok
}

// TokenRefresher returns the platform's handler as TokenRefresher when it
// declares that capability.
func (r *Registry) TokenRefresher(platform string) (TokenRefresher, bool) {
	h, ok := r.handlers[platform]
	if !ok {
		return nil, false
	}
	tr, ok := h.(TokenRefresher)
	return tr, ok
}

// Revoker returns the platform's handler as Revoker when it declares that
// capability.
func (r *Registry) Revoker(platform string) (Revoker, bool) {
	h, ok := r.handlers[platform]
	if !ok {
		return nil, false
	}
	rv, ok := h.(Revoker)
	return rv, ok
}

// Platforms lists registered platform identifiers in stable order.
func (r *Registry) Platforms() []string {
	out := make([]string, 0, len(r.handlers))
	for p := range r.handlers {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Each calls fn for every registered handler, in stable platform order.
func (r *Registry) Each(fn func(Handler)) {
	for _, p := range r.Platforms() {
		fn(r.handlers[p])
	}
}
