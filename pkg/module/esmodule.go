package module

import (
	"github.com/grafana/sobek"

	"github.com/modhost/registry/pkg/engine"
	"github.com/modhost/registry/pkg/moduleurl"
	"github.com/modhost/registry/pkg/observer"
)

// EsModule is a source-text module the engine parses and runs. Its source
// buffer is not owned by the module; it may point into a bundle-level
// arena or the static binary -- here it is simply a Go string, which
// already carries that borrow-free-copy property.
type EsModule struct {
	baseModule
	source string
	cache  compileCache
}

// NewEsModule constructs an ESM module. flags always has FlagEval set.
func NewEsModule(specifier moduleurl.Url, source string, flags Flags) *EsModule {
	return &EsModule{
		baseModule: baseModule{specifier: specifier, typ: TypeBundle, flags: flags | FlagESM | FlagEval},
		source:     source,
	}
}

// WithType overrides the default TypeBundle, e.g. to give an ESM module
// placed in a builtin bundle a builtin Type.
func (m *EsModule) WithType(t Type) *EsModule {
	m.typ = t
	return m
}

func (m *EsModule) GetDescriptor(rt *sobek.Runtime, obs observer.Observer) (*engine.Handle, error) {
	specifier := m.specifier.String()
	prog := m.cache.read(specifier, obs)
	if prog == nil {
		compiled, err := engine.Compile(specifier, m.source, true)
		if err != nil {
			return nil, err
		}
		prog = compiled
		m.cache.store(specifier, prog, obs)
	}
	handle := engine.NewHandle(rt)
	handle.SetProgram(prog)
	return handle, nil
}

func (m *EsModule) Instantiate(handle *engine.Handle, obs observer.Observer) bool {
	return m.ensureInstantiated(handle, func() bool {
		// No linking happens here: the source is compiled as a script, so
		// its import declarations are not resolved or instantiated, and
		// instantiation only advances the handle's status.
		return true
	})
}

func (m *EsModule) Evaluate(handle *engine.Handle, obs observer.Observer, evalCB EvalCallback) (*engine.Promise, error) {
	if !m.Instantiate(handle, obs) {
		return nil, handle.Exception()
	}
	handle.BeginEvaluate()
	if evalCB != nil {
		result, err := evalCB(handle.Runtime(), m, handle)
		if err != nil {
			return nil, handle.FailEvaluate(err)
		}
		handle.FinishEvaluate()
		return engine.Resolved(result), nil
	}
	prog := handle.Program()
	result, err := prog.Run(handle.Runtime())
	if err != nil {
		return nil, handle.FailEvaluate(err)
	}
	handle.FinishEvaluate()
	return engine.Resolved(result), nil
}
