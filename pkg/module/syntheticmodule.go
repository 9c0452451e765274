package module

import (
	"github.com/grafana/sobek"

	"github.com/modhost/registry/pkg/engine"
	"github.com/modhost/registry/pkg/moduleurl"
	"github.com/modhost/registry/pkg/observer"
)

// EvaluateCallback installs a Synthetic module's exports. It must be
// idempotent and thread-safe: it may run concurrently across isolates, and
// once per isolate context. Returning false means the callback has
// already recorded an exception on handle; evaluation fails.
type EvaluateCallback func(handle *engine.Handle, specifier moduleurl.Url, ns *Namespace, obs observer.Observer) bool

// SyntheticModule is a host-synthesized module: its exports are installed
// by evaluate rather than parsed from source.
type SyntheticModule struct {
	baseModule
	evaluate     EvaluateCallback
	namedExports []string
}

// NewSyntheticModule constructs a synthetic module. Synthetic modules never
// carry FlagESM or FlagMain; flags is restricted to FlagEval.
func NewSyntheticModule(specifier moduleurl.Url, typ Type, namedExports []string, evaluate EvaluateCallback, eval bool) *SyntheticModule {
	flags := FlagNone
	if eval {
		flags = FlagEval
	}
	return &SyntheticModule{
		baseModule:   baseModule{specifier: specifier, typ: typ, flags: flags},
		evaluate:     evaluate,
		namedExports: namedExports,
	}
}

func (m *SyntheticModule) GetDescriptor(rt *sobek.Runtime, obs observer.Observer) (*engine.Handle, error) {
	return engine.NewHandle(rt), nil
}

func (m *SyntheticModule) Instantiate(handle *engine.Handle, obs observer.Observer) bool {
	return m.ensureInstantiated(handle, func() bool { return true })
}

func (m *SyntheticModule) Evaluate(handle *engine.Handle, obs observer.Observer, evalCB EvalCallback) (*engine.Promise, error) {
	if !m.Instantiate(handle, obs) {
		return nil, handle.Exception()
	}
	handle.BeginEvaluate()

	if m.Flags().Has(FlagEval) && evalCB != nil {
		result, err := evalCB(handle.Runtime(), m, handle)
		if err != nil {
			return nil, handle.FailEvaluate(err)
		}
		handle.FinishEvaluate()
		return engine.Resolved(result), nil
	}

	promise := engine.NewPendingPromise()
	ns := newNamespace(handle, m.namedExports)
	if !m.evaluate(handle, m.specifier, ns, obs) {
		err := handle.Exception()
		if err == nil {
			err = ErrSyntheticEvaluationFailed
		}
		promise.Reject(err)
		_ = handle.FailEvaluate(err)
		return promise, err
	}
	handle.FinishEvaluate()
	promise.Resolve(sobek.Undefined())
	return promise, nil
}
