package ranking

import (
	"fmt"
	"sync"
)

// Registration binds an entity type to its handler.
type Registration struct {
	EntityType *EntityType
	Handler    Handler
}

// Registry maps entity types to handlers, at most one handler per type tag.
//
// A process creates one Registry at startup and passes it to the flush and
// retrieval layers; tests call Reset between cases.
//
// Thread-safety: all methods are safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	order   []string
	entries map[string]Registration
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Registration)}
}

// Register binds h to t. Fails with ErrAlreadyRegistered when t already has
// a handler and with ErrInvalidHandler when h declares no usable typologies.
func (r *Registry) Register(t *EntityType, h Handler) error {
	if t == nil || t.Tag() == "" {
		return &Error{Code: CodeInvalidHandler, Message: "entity type tag is required"}
	}
	if h == nil {
		return &Error{Code: CodeInvalidHandler, EntityType: t.Tag(), Message: "handler is nil"}
	}
	if err := validateTypologies(t, h); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[t.Tag()]; ok {
		return &Error{Code: CodeAlreadyRegistered, EntityType: t.Tag(), Message: "entity type already has a handler"}
	}
	r.entries[t.Tag()] = Registration{EntityType: t, Handler: h}
	r.order = append(r.order, t.Tag())
	return nil
}

// Unregister removes the handler bound to t. Fails with ErrNotRegistered
// when there is none.
func (r *Registry) Unregister(t *EntityType) error {
	if t == nil {
		return nilEntityType()
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[t.Tag()]; !ok {
		return notRegistered(t.Tag())
	}
	delete(r.entries, t.Tag())
	for i, tag := range r.order {
		if tag == t.Tag() {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// HandlerFor returns the handler bound to t.
func (r *Registry) HandlerFor(t *EntityType) (Handler, error) {
	if t == nil {
		return nil, nilEntityType()
	}
	reg, err := r.Lookup(t.Tag())
	if err != nil {
		return nil, err
	}
	return reg.Handler, nil
}

// Lookup returns the registration for a type tag.
func (r *Registry) Lookup(tag string) (Registration, error) {
	tag = NormalizeName(tag)

	r.mu.RLock()
	defer r.mu.RUnlock()

	reg, ok := r.entries[tag]
	if !ok {
		return Registration{}, notRegistered(tag)
	}
	return reg, nil
}

// Registered returns all registrations in registration order.
func (r *Registry) Registered() []Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	regs := make([]Registration, 0, len(r.order))
	for _, tag := range r.order {
		regs = append(regs, r.entries[tag])
	}
	return regs
}

// Len returns the number of registered entity types.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Reset removes every registration.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.order = nil
	r.entries = make(map[string]Registration)
}

func notRegistered(tag string) *Error {
	return &Error{Code: CodeNotRegistered, EntityType: tag, Message: "no handler registered"}
}

// validateTypologies checks that h declares at least one typology and that
// names are non-empty, already normalized, and unique.
func nilEntityType() *Error {
	return &Error{Code: CodeNotRegistered, Message: "entity type is nil"}
}

func validateTypologies(t *EntityType, h Handler) error {
	names := h.Typologies()
	if len(names) == 0 {
		return &Error{Code: CodeInvalidHandler, EntityType: t.Tag(), Message: "handler declares no typologies"}
	}
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		switch {
		case name == "":
			return &Error{Code: CodeInvalidHandler, EntityType: t.Tag(), Message: "empty typology name"}
		case name != NormalizeName(name):
			return &Error{Code: CodeInvalidHandler, EntityType: t.Tag(), Typology: name, Message: "typology name is not normalized"}
		case name[0] == '-':
			return &Error{Code: CodeInvalidHandler, EntityType: t.Tag(), Typology: name, Message: "typology name must not start with '-'"}
		case seen[name]:
			return &Error{Code: CodeInvalidHandler, EntityType: t.Tag(), Typology: name, Message: fmt.Sprintf("typology %q declared twice", name)}
		}
		seen[name] = true
	}
	return nil
}
