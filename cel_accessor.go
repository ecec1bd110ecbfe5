package refs

import (
	"fmt"
	"sort"
	"strings"

	celgo "github.com/google/cel-go/cel"
	functions "github.com/google/cel-go/common/functions"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

// CELAccessorOption configures a CELAccessor.
type CELAccessorOption func(*CELAccessor)

// CELWithProgramCache wires a ProgramCache into the accessor.
func CELWithProgramCache(cache ProgramCache) CELAccessorOption {
	return func(a *CELAccessor) {
		a.cache = cache
	}
}

// CELWithFunctionRegistry exposes registry functions through call(name, ...).
func CELWithFunctionRegistry(registry *FunctionRegistry) CELAccessorOption {
	return func(a *CELAccessor) {
		if registry == nil {
			return
		}
		a.registry = registry.Clone()
	}
}

type celProgram struct {
	env     *celgo.Env
	program celgo.Program
}

// CELAccessor evaluates metadata lookups as CEL expressions. Every top-level
// metadata key is declared as a dynamic variable. A null result counts as
// not found; a missing key is an evaluation error.
type CELAccessor struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// NewCELAccessor constructs an accessor backed by cel-go.
func NewCELAccessor(opts ...CELAccessorOption) *CELAccessor {
	a := &CELAccessor{}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// Lookup implements MetadataAccessor.
func (a *CELAccessor) Lookup(metadata map[string]any, expression string) (any, bool, error) {
	if expression == "" {
		return nil, false, wrapAccessorError("cel", expression, fmt.Errorf("expression must not be empty"))
	}
	if metadata == nil {
		metadata = map[string]any{}
	}
	program, err := a.loadOrCompile(expression, metadata)
	if err != nil {
		return nil, false, wrapAccessorError("cel", expression, err)
	}
	out, _, err := program.program.Eval(a.activation(metadata))
	if err != nil {
		return nil, false, wrapAccessorError("cel", expression, err)
	}
	if out == nil || out.Type() == types.NullType {
		return nil, false, nil
	}
	return out.Value(), true, nil
}

func (a *CELAccessor) loadOrCompile(expression string, metadata map[string]any) (*celProgram, error) {
	key := cacheKey(expression, metadata)
	if a.cache != nil {
		if cached, ok := a.cache.Get(key); ok {
			if program, ok := cached.(*celProgram); ok {
				return program, nil
			}
		}
	}

	env, err := a.buildEnv(metadata)
	if err != nil {
		return nil, err
	}
	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, err
	}

	bundle := &celProgram{env: env, program: prg}
	if a.cache != nil {
		a.cache.Set(key, bundle)
	}
	return bundle, nil
}

func (a *CELAccessor) buildEnv(metadata map[string]any) (*celgo.Env, error) {
	var opts []celgo.EnvOption
	if a.registry != nil {
		opts = append(opts, celgo.Function("call", celgo.Overload(
			"call_dyn",
			[]*celgo.Type{celgo.StringType, celgo.ListType(celgo.DynType)},
			celgo.DynType,
			celgo.FunctionBinding(a.callBinding()),
		)))
	}
	for key := range metadata {
		opts = append(opts, celgo.Variable(key, celgo.DynType))
	}
	return celgo.NewEnv(opts...)
}

func (a *CELAccessor) activation(metadata map[string]any) map[string]any {
	activation := make(map[string]any, len(metadata))
	for key, value := range metadata {
		activation[key] = value
	}
	return activation
}

func (a *CELAccessor) callBinding() functions.FunctionOp {
	return func(values ...ref.Val) ref.Val {
		if len(values) != 2 {
			return types.NewErr("refs: call requires a function name and an argument list")
		}
		name, ok := values[0].Value().(string)
		if !ok {
			return types.NewErr("refs: call name must be string")
		}
		var args []any
		if list, ok := values[1].(interface {
			Size() ref.Val
			Get(ref.Val) ref.Val
		}); ok {
			size, _ := list.Size().Value().(int64)
			for i := int64(0); i < size; i++ {
				args = append(args, list.Get(types.Int(i)).Value())
			}
		}
		result, err := a.registry.Call(name, args...)
		if err != nil {
			return types.NewErr("%s", err.Error())
		}
		if result == nil {
			return types.NullValue
		}
		return types.DefaultTypeAdapter.NativeToValue(result)
	}
}

// cacheKey includes the declared variables because a CEL program is bound to
// the environment it was checked against.
func cacheKey(expression string, metadata map[string]any) string {
	keys := make([]string, 0, len(metadata))
	for key := range metadata {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return expression + "|" + strings.Join(keys, ",")
}
