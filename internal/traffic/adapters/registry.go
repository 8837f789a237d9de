// Package adapters wires concrete vendor integrations behind the
// provider name configured at startup.
package adapters

import (
	"fmt"
	"sync"

	"github.com/boostlane/boostlane/internal/config"
	"github.com/boostlane/boostlane/internal/traffic/domain"
)

// Factory builds a vendor client from the shared vendor configuration.
type Factory func(cfg config.VendorConfig) (domain.Vendor, error)

var (
	mu       sync.RWMutex
	registry = map[string]Factory{}
)

// Register makes a vendor implementation available under a provider
// name. Called from adapter init functions.
func Register(provider string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()
	registry[provider] = factory
}

// New builds the vendor selected by cfg.Provider.
func New(cfg config.VendorConfig) (domain.Vendor, error) {
	mu.RLock()
	factory, ok := registry[cfg.Provider]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrProviderNotFound, cfg.Provider)
	}
	return factory(cfg)
}
