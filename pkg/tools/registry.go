package tools

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"
)

// Registry validates registrations and keeps the Store flushed. Every
// mutation reloads the file first so registrations made by another
// process are not lost.
type Registry struct {
	store  *Store
	logger hclog.Logger
}

func NewRegistry(store *Store, logger hclog.Logger) (*Registry, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if err := store.Load(); err != nil {
		return nil, fmt.Errorf("load tool registry: %w", err)
	}
	return &Registry{store: store, logger: logger.Named("registry")}, nil
}

type registerOptions struct {
	overwrite bool
}

type RegisterOption func(*registerOptions)

// WithOverwrite replaces an existing registration of the same name.
func WithOverwrite() RegisterOption {
	return func(o *registerOptions) { o.overwrite = true }
}

func (r *Registry) Register(reg Registration, opts ...RegisterOption) error {
	var o registerOptions
	for _, opt := range opts {
		opt(&o)
	}
	if err := reg.Validate(); err != nil {
		return err
	}
	if err := r.store.Load(); err != nil {
		return fmt.Errorf("reload tool registry: %w", err)
	}
	if _, exists := r.store.Get(reg.Name); exists && !o.overwrite {
		return &DuplicateToolError{Name: reg.Name}
	}
	if reg.RegisteredAt.IsZero() {
		reg.RegisteredAt = time.Now().UTC().Truncate(time.Second)
	}
	r.store.Set(reg)
	if err := r.store.Save(); err != nil {
		return fmt.Errorf("save tool registry: %w", err)
	}
	r.logger.Info("tool registered", "name", reg.Name, "overwrite", o.overwrite)
	return nil
}

// Unregister removes a tool. Registrations are never removed implicitly.
func (r *Registry) Unregister(name string) error {
	if err := r.store.Load(); err != nil {
		return fmt.Errorf("reload tool registry: %w", err)
	}
	if _, ok := r.store.Get(name); !ok {
		return &UnknownToolError{Name: name}
	}
	r.store.Delete(name)
	if err := r.store.Save(); err != nil {
		return fmt.Errorf("save tool registry: %w", err)
	}
	r.logger.Info("tool removed", "name", name)
	return nil
}

func (r *Registry) refresh() {
	if err := r.store.Load(); err != nil {
		r.logger.Warn("could not reload tool registry, using cached entries", "path", r.store.Path(), "error", err)
	}
}

func (r *Registry) Get(name string) (Registration, error) {
	r.refresh()
	reg, ok := r.store.Get(name)
	if !ok {
		return Registration{}, &UnknownToolError{Name: name}
	}
	return reg, nil
}

func (r *Registry) List() map[string]Registration {
	r.refresh()
	return r.store.Snapshot()
}

// Names returns registered names in sorted order.
func (r *Registry) Names() []string {
	r.refresh()
	return r.store.Names()
}
