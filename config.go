package refs

import (
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

// Policy decides what an unresolved reference does to a run.
type Policy string

const (
	// PolicyStrict aborts the run on the first unresolved reference.
	PolicyStrict Policy = "strict"
	// PolicyPermissive records a warning, keeps the declared string and
	// continues.
	PolicyPermissive Policy = "permissive"
)

// ParsePolicy parses a policy name. The empty string selects PolicyStrict.
func ParsePolicy(value string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(value))) {
	case "", PolicyStrict:
		return PolicyStrict, nil
	case PolicyPermissive:
		return PolicyPermissive, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPolicy, value)
	}
}

// Config is the user-facing configuration of a Resolver.
type Config struct {
	// Pattern limits which documents may declare references. Documents
	// outside the pattern can still be targets.
	Pattern []string `mapstructure:"pattern" json:"pattern,omitempty"`
	// Policy applies to unresolved references.
	Policy Policy `mapstructure:"policy" json:"policy,omitempty"`
}

// DefaultConfig matches every document and fails on unresolved references.
func DefaultConfig() Config {
	return Config{
		Pattern: []string{DefaultPattern},
		Policy:  PolicyStrict,
	}
}

// Normalize trims patterns, drops empty ones and fills defaults.
func (c Config) Normalize() (Config, error) {
	out := Config{}
	for _, pattern := range c.Pattern {
		if pattern = strings.TrimSpace(pattern); pattern != "" {
			out.Pattern = append(out.Pattern, pattern)
		}
	}
	if len(out.Pattern) == 0 {
		out.Pattern = []string{DefaultPattern}
	}
	policy, err := ParsePolicy(string(c.Policy))
	if err != nil {
		return Config{}, err
	}
	out.Policy = policy
	return out, nil
}

// DecodeConfig builds a Config from loosely typed input: nil or a bool
// selects the defaults, a string is a single pattern, a map may carry
// "pattern" (string or list) and "policy". Unknown map keys are rejected.
func DecodeConfig(raw any) (Config, error) {
	switch v := raw.(type) {
	case nil, bool:
		return DefaultConfig(), nil
	case Config:
		return v.Normalize()
	case *Config:
		if v == nil {
			return DefaultConfig(), nil
		}
		return v.Normalize()
	case string:
		return Config{Pattern: []string{v}}.Normalize()
	case []string:
		return Config{Pattern: v}.Normalize()
	}

	var cfg Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return Config{}, fmt.Errorf("refs: config decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return Config{}, fmt.Errorf("refs: decode config: %w", err)
	}
	return cfg.Normalize()
}
