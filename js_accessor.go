//go:build js_eval

package refs

import (
	"fmt"

	"github.com/dop251/goja"
)

type jsAccessor struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// NewJSAccessor constructs a MetadataAccessor backed by goja. Each top-level
// metadata key is a global in the script; undefined and null results count
// as not found.
func NewJSAccessor(opts ...JSAccessorOption) MetadataAccessor {
	cfg := applyJSAccessorOptions(opts)
	return &jsAccessor{
		cache:    cfg.cache,
		registry: cfg.registry,
	}
}

// JSAccessorAvailable reports whether the binary was built with js_eval.
func JSAccessorAvailable() bool {
	return true
}

func (a *jsAccessor) Lookup(metadata map[string]any, expression string) (any, bool, error) {
	if expression == "" {
		return nil, false, wrapAccessorError("js", expression, fmt.Errorf("expression must not be empty"))
	}
	program, err := a.loadOrCompile(expression)
	if err != nil {
		return nil, false, wrapAccessorError("js", expression, err)
	}
	vm := goja.New()
	a.inject(vm, metadata)
	value, err := vm.RunProgram(program)
	if err != nil {
		return nil, false, wrapAccessorError("js", expression, err)
	}
	if value == nil || goja.IsUndefined(value) || goja.IsNull(value) {
		return nil, false, nil
	}
	return value.Export(), true, nil
}

func (a *jsAccessor) loadOrCompile(expression string) (*goja.Program, error) {
	if a.cache != nil {
		if cached, ok := a.cache.Get(expression); ok {
			if program, ok := cached.(*goja.Program); ok {
				return program, nil
			}
		}
	}
	program, err := goja.Compile("", fmt.Sprintf("(function(){ return (%s); })()", expression), false)
	if err != nil {
		return nil, err
	}
	if a.cache != nil {
		a.cache.Set(expression, program)
	}
	return program, nil
}

func (a *jsAccessor) inject(vm *goja.Runtime, metadata map[string]any) {
	for key, value := range metadata {
		_ = vm.Set(key, value)
	}
	if a.registry != nil {
		_ = vm.Set("call", func(name string, arguments ...any) (any, error) {
			return a.registry.Call(name, arguments...)
		})
	}
}
