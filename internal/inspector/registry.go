package inspector

import (
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"
)

// Factory builds a fresh inspector.
type Factory func(logger *zap.Logger) (Inspector, error)

// Registry maps inspector names to factories. It is populated at startup;
// registration order is the default priority order.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	order     []string
	logger    *zap.Logger
}

// NewRegistry creates a new inspector registry.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		logger:    logger,
	}
}

// Register adds a factory under name.
func (r *Registry) Register(name string, f Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if name == "" {
		return fmt.Errorf("inspector name must not be empty")
	}
	if f == nil {
		return fmt.Errorf("inspector %q: nil factory", name)
	}
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("inspector %q already registered", name)
	}

	r.factories[name] = f
	r.order = append(r.order, name)
	r.logger.Info("inspector registered", zap.String("name", name))
	return nil
}

// Names returns all registered names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.order)
}

// Build constructs the named inspectors in the given order, skipping any in
// disabled. An empty names list means every registered inspector. Each
// Configurable inspector receives its slice of global. An unknown name or a
// rejected configuration is an error.
func (r *Registry) Build(names []string, global map[string]map[string]any, disabled []string) ([]Inspector, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(names) == 0 {
		names = r.order
	}

	seen := make(map[string]bool, len(names))
	built := make([]Inspector, 0, len(names))
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true

		if slices.Contains(disabled, name) {
			r.logger.Info("inspector disabled, skipping", zap.String("name", name))
			continue
		}

		f, ok := r.factories[name]
		if !ok {
			return nil, fmt.Errorf("unknown inspector %q (registered: %v)", name, r.order)
		}

		insp, err := f(r.logger.Named(name))
		if err != nil {
			return nil, fmt.Errorf("build inspector %q: %w", name, err)
		}
		if c, ok := insp.(Configurable); ok {
			if err := c.SetConfiguration(global[name]); err != nil {
				return nil, fmt.Errorf("configure inspector %q: %w", name, err)
			}
		}

		r.logger.Info("inspector ready",
			zap.String("name", name),
			zap.Strings("capabilities", Capabilities(insp)),
		)
		built = append(built, insp)
	}
	return built, nil
}
