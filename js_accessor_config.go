package refs

type jsAccessorConfig struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// JSAccessorOption configures the JS accessor.
type JSAccessorOption func(*jsAccessorConfig)

// JSWithProgramCache applies a ProgramCache to the JS accessor.
func JSWithProgramCache(cache ProgramCache) JSAccessorOption {
	return func(cfg *jsAccessorConfig) {
		cfg.cache = cache
	}
}

// JSWithFunctionRegistry exposes registry functions to scripts.
func JSWithFunctionRegistry(registry *FunctionRegistry) JSAccessorOption {
	return func(cfg *jsAccessorConfig) {
		if registry == nil {
			return
		}
		cfg.registry = registry.Clone()
	}
}

func applyJSAccessorOptions(opts []JSAccessorOption) jsAccessorConfig {
	cfg := jsAccessorConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}
