package provider

import (
	"fmt"
	"sort"
	"sync"

	"github.com/lk2023060901/linkedin-discovery/internal/websearch/types"
)

// Constructor builds a provider from a validated config
type Constructor func(*types.ProviderConfig) (Provider, error)

// Factory 按 ProviderID 创建搜索服务商
type Factory struct {
	mu           sync.RWMutex
	constructors map[types.ProviderID]Constructor
}

// NewFactory returns a factory with every built-in provider registered
func NewFactory() *Factory {
	f := &Factory{constructors: make(map[types.ProviderID]Constructor)}
	f.Register(types.ProviderGoogle, NewGoogleProvider)
	f.Register(types.ProviderBrave, NewBraveProvider)
	f.Register(types.ProviderTavily, NewTavilyProvider)
	f.Register(types.ProviderExa, NewExaProvider)
	f.Register(types.ProviderSearXNG, NewSearXNGProvider)
	f.Register(types.ProviderBocha, NewBochaProvider)
	f.Register(types.ProviderZhipu, NewZhipuProvider)
	return f
}

// Register adds or replaces the constructor for id
func (f *Factory) Register(id types.ProviderID, c Constructor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.constructors[id] = c
}

// Create applies defaults, validates the config and builds the provider
func (f *Factory) Create(config *types.ProviderConfig) (Provider, error) {
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	f.mu.RLock()
	c, ok := f.constructors[config.ID]
	f.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrProviderNotFound, config.ID)
	}
	return c(config)
}

// CreateChain builds one provider per config, keeping the order. The same
// provider may not appear twice in a chain.
func (f *Factory) CreateChain(configs []types.ProviderConfig) ([]Provider, error) {
	seen := make(map[types.ProviderID]bool, len(configs))
	out := make([]Provider, 0, len(configs))
	for i := range configs {
		cfg := configs[i]
		if seen[cfg.ID] {
			return nil, fmt.Errorf("provider %s configured twice", cfg.ID)
		}
		seen[cfg.ID] = true

		p, err := f.Create(&cfg)
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", cfg.ID, err)
		}
		out = append(out, p)
	}
	return out, nil
}

// ListProviders returns the registered provider IDs in sorted order
func (f *Factory) ListProviders() []types.ProviderID {
	f.mu.RLock()
	defer f.mu.RUnlock()

	ids := make([]types.ProviderID, 0, len(f.constructors))
	for id := range f.constructors {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
