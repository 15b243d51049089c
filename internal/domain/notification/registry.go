package notification

import (
	"fmt"
	"sync"
)

// Descriptor declares how to build an intent for one notification type.
// New notification types are rows in this table, not new code paths.
type Descriptor struct {
	TitleKey        string
	MessageKey      string
	EmailSubjectKey string
	EmailTemplate   string

	// MetadataBuilder derives record metadata from the dispatch variables.
	// Nil means no metadata.
	MetadataBuilder func(vars map[string]any) map[string]any
}

// Registry maps notification type tags to their descriptors.
type Registry struct {
	mu    sync.RWMutex
	types map[string]Descriptor
}

// NewRegistry creates an empty type registry.
func NewRegistry() *Registry {
	return &Registry{types: make(map[string]Descriptor)}
}

// Register adds or replaces a notification type descriptor.
func (r *Registry) Register(notifType string, desc Descriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[notifType] = desc
}

// Lookup returns the descriptor for a type.
func (r *Registry) Lookup(notifType string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	desc, ok := r.types[notifType]
	return desc, ok
}

// BuildIntent constructs a dispatch intent from a registered type and its
// variables. Title and message are left as translation keys; the dispatch
// pipeline renders them per locale.
func (r *Registry) BuildIntent(notifType string, vars map[string]any) (*Intent, error) {
	desc, ok := r.Lookup(notifType)
	if !ok {
		return nil, fmt.Errorf("unregistered notification type: %s", notifType)
	}

	intent := &Intent{
		Type:      notifType,
		Title:     desc.TitleKey,
		Message:   desc.MessageKey,
		Variables: vars,
	}

	if desc.EmailSubjectKey != "" || desc.EmailTemplate != "" {
		intent.Email = &EmailOptions{
			Subject:  desc.EmailSubjectKey,
			Template: desc.EmailTemplate,
			Data:     vars,
		}
	}

	if desc.MetadataBuilder != nil {
		intent.Metadata = desc.MetadataBuilder(vars)
	}

	return intent, nil
}

// DefaultRegistry returns a registry seeded with the built-in notification
// types.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	r.Register("welcome", Descriptor{
		TitleKey:        "messages.welcome.title",
		MessageKey:      "messages.welcome.body",
		EmailSubjectKey: "messages.welcome.subject",
		EmailTemplate:   "welcome",
	})

	r.Register("order_shipped", Descriptor{
		TitleKey:        "messages.orders.shipped.title",
		MessageKey:      "messages.orders.shipped.body",
		EmailSubjectKey: "messages.orders.shipped.subject",
		EmailTemplate:   "order_shipped",
		MetadataBuilder: func(vars map[string]any) map[string]any {
			md := map[string]any{"category": "orders"}
			if id, ok := vars["orderId"]; ok {
				md["order_id"] = id
			}
			return md
		},
	})

	r.Register("password_reset", Descriptor{
		TitleKey:        "messages.account.password_reset.title",
		MessageKey:      "messages.account.password_reset.body",
		EmailSubjectKey: "messages.account.password_reset.subject",
		EmailTemplate:   "password_reset",
		MetadataBuilder: func(vars map[string]any) map[string]any {
			return map[string]any{"category": "account", "sensitive": true}
		},
	})

	return r
}
