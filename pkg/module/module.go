package module

import (
	"fmt"

	"github.com/grafana/sobek"

	"github.com/modhost/registry/pkg/engine"
	"github.com/modhost/registry/pkg/moduleurl"
	"github.com/modhost/registry/pkg/observer"
)

// ErrCircular and friends are typed error kinds, letting host code
// errors.Is/As instead of matching strings. Not every failure carries one:
// the sync top-level-await error has no typed value, and the "Module not
// found" errors returned by pkg/isolate's entry points do not wrap
// ErrNotFound.
var (
	ErrCircular                  = fmt.Errorf("circular dependency when resolving module")
	ErrSyntheticEvaluationFailed = fmt.Errorf("synthetic module evaluation failed")
	ErrNotFound                  = fmt.Errorf("module not found")
	ErrAttributesUnsupported     = fmt.Errorf("import attributes are not supported")
)

// EvalCallback is the host's hook for ESM evaluation and for Synthetic
// modules carrying FlagEval. Its result is wrapped as a resolved promise
// by the caller; EvalCallback itself runs synchronously.
type EvalCallback func(rt *sobek.Runtime, m Module, handle *engine.Handle) (sobek.Value, error)

// Module is the abstract unit of loaded code. A Module instance is
// constructed once by its owning bundle and shared read-only; all methods
// must be safe for concurrent use across isolates except where they
// operate purely on the per-isolate *engine.Handle passed in.
type Module interface {
	Specifier() moduleurl.Url
	Type() Type
	Flags() Flags

	// GetDescriptor produces the engine's representation for this module
	// within rt. For ESM this compiles source (consuming cached bytecode
	// if present and compatible). For Synthetic this creates a fresh,
	// empty handle; export names are not declared on it, and are only
	// checked when the EvaluateCallback calls Namespace.Set.
	GetDescriptor(rt *sobek.Runtime, obs observer.Observer) (*engine.Handle, error)

	// Instantiate ensures engine-side instantiation. It returns false only
	// when the engine failed and an exception has already been recorded on
	// handle.
	Instantiate(handle *engine.Handle, obs observer.Observer) bool

	// Evaluate ensures instantiation, then evaluates per the module's
	// concrete shape, optionally routing through evalCB.
	Evaluate(handle *engine.Handle, obs observer.Observer, evalCB EvalCallback) (*engine.Promise, error)

	// EvaluateContext is a late check that the module is willing to serve
	// ctx; the default behavior (exact specifier match) is implemented by
	// baseModule and embedded by both concrete shapes.
	EvaluateContext(ctx ResolveContext) bool
}

// baseModule implements the shared identity and default EvaluateContext
// both concrete shapes embed.
type baseModule struct {
	specifier moduleurl.Url
	typ       Type
	flags     Flags
}

func (m *baseModule) Specifier() moduleurl.Url { return m.specifier }
func (m *baseModule) Type() Type               { return m.typ }
func (m *baseModule) Flags() Flags             { return m.flags }

// EvaluateContext accepts iff ctx.Specifier matches this module's own
// specifier exactly. The hook point is preserved for future
// predicate-based filtering without committing to more semantics now.
func (m *baseModule) EvaluateContext(ctx ResolveContext) bool {
	return ctx.Specifier.String() == m.specifier.String()
}

func (m *baseModule) ensureInstantiated(handle *engine.Handle, link func() bool) bool {
	if handle.Status() > engine.StatusUninstantiated {
		return true
	}
	if !handle.MarkInstantiating() {
		return false
	}
	if !link() {
		return false
	}
	handle.MarkInstantiated()
	return true
}
