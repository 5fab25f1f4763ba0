package llm

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/go-kratos/blades"
)

// ModelRegistry maps agent names to their model providers.
type ModelRegistry struct {
	mu     sync.RWMutex
	models map[string]blades.ModelProvider
}

func NewModelRegistry() *ModelRegistry {
	return &ModelRegistry{
		models: make(map[string]blades.ModelProvider),
	}
}

func (r *ModelRegistry) Register(name string, model blades.ModelProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.models[name] = model
}

func (r *ModelRegistry) Get(name string) (blades.ModelProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	model, ok := r.models[name]
	if !ok {
		return nil, fmt.Errorf("model provider for agent %s not found", name)
	}
	return model, nil
}

// Names returns the registered agent names in sorted order.
func (r *ModelRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close closes every registered model that implements io.Closer.
func (r *ModelRegistry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for name, m := range r.models {
		if closer, ok := m.(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close model %s: %w", name, err))
			}
		}
	}
	return errors.Join(errs...)
}
