package ai

import "fmt"

// ProviderFactory builds an AIProvider from a validated Config.
type ProviderFactory func(config *Config) (AIProvider, error)

var factories = map[string]ProviderFactory{}

// Register makes a provider backend available to NewProvider.
// Implementation packages call it from init.
func Register(name string, factory ProviderFactory) {
	factories[name] = factory
}

// NewProvider creates the provider selected by config.Provider.
// The implementation package must be imported for its side effects.
func NewProvider(config *Config) (AIProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	factory, ok := factories[config.Provider]
	if !ok {
		return nil, fmt.Errorf("ai: provider %q is not registered", config.Provider)
	}
	return factory(config)
}
