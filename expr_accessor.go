package refs

import (
	"fmt"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"
)

// ExprAccessorOption configures an ExprAccessor.
type ExprAccessorOption func(*ExprAccessor)

// ExprWithProgramCache wires a ProgramCache into the accessor.
func ExprWithProgramCache(cache ProgramCache) ExprAccessorOption {
	return func(a *ExprAccessor) {
		a.cache = cache
	}
}

// ExprWithFunctionRegistry exposes registry functions inside expressions.
func ExprWithFunctionRegistry(registry *FunctionRegistry) ExprAccessorOption {
	return func(a *ExprAccessor) {
		if registry == nil {
			return
		}
		a.registry = registry.Clone()
	}
}

// ExprAccessor evaluates the lookup of a metadata reference as an
// expr-lang expression whose environment is the metadata itself, so
// "metadata:site.title" and "metadata:len(site.authors)" both work. A nil
// result counts as not found.
type ExprAccessor struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// NewExprAccessor constructs an accessor backed by expr-lang/expr.
func NewExprAccessor(opts ...ExprAccessorOption) *ExprAccessor {
	a := &ExprAccessor{}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// Lookup implements MetadataAccessor.
func (a *ExprAccessor) Lookup(metadata map[string]any, expression string) (any, bool, error) {
	if expression == "" {
		return nil, false, wrapAccessorError("expr", expression, fmt.Errorf("expression must not be empty"))
	}
	program, err := a.loadOrCompile(expression)
	if err != nil {
		return nil, false, err
	}
	result, err := exprlang.Run(program, a.environment(metadata))
	if err != nil {
		return nil, false, wrapAccessorError("expr", expression, err)
	}
	if result == nil {
		return nil, false, nil
	}
	return result, true, nil
}

func (a *ExprAccessor) loadOrCompile(expression string) (*exprvm.Program, error) {
	if a.cache != nil {
		if cached, ok := a.cache.Get(expression); ok {
			if program, ok := cached.(*exprvm.Program); ok {
				return program, nil
			}
		}
	}
	options := []exprlang.Option{
		exprlang.Env(map[string]any{}),
		exprlang.AllowUndefinedVariables(),
	}
	for _, name := range a.registry.Names() {
		options = append(options, exprlang.Function(name, a.registryFunction(name)))
	}
	program, err := exprlang.Compile(expression, options...)
	if err != nil {
		return nil, wrapAccessorError("expr", expression, err)
	}
	if a.cache != nil {
		a.cache.Set(expression, program)
	}
	return program, nil
}

func (a *ExprAccessor) environment(metadata map[string]any) map[string]any {
	env := make(map[string]any, len(metadata)+1)
	for key, value := range metadata {
		env[key] = value
	}
	if a.registry != nil {
		env["call"] = func(name string, arguments ...any) (any, error) {
			return a.registry.Call(name, arguments...)
		}
	}
	return env
}

func (a *ExprAccessor) registryFunction(name string) func(...any) (any, error) {
	return func(arguments ...any) (any, error) {
		return a.registry.Call(name, arguments...)
	}
}
