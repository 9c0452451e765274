// Package engine is the thin, host-side shape of the embedded JavaScript
// engine: a compiled program, a live module handle with a status lifecycle,
// and the namespace/promise primitives the registry needs to drive
// compile -> instantiate -> evaluate. Everything above this package treats
// the engine as an opaque collaborator; this package is the one place that
// imports github.com/grafana/sobek, the engine the teacher's own module and
// compiler code (js/compiler, js/modules) is written against.
//
// sobek itself has no public bytecode-cache/isolate-compatibility API the
// way V8 does (a *sobek.Program is plain Go data, safe to run against any
// number of *sobek.Runtime instances). The compile cache in pkg/module
// therefore caches the *Program value itself rather than serialized bytes,
// and "is this cached data compatible with the current isolate" degenerates
// to "is there a cached Program at all".
//
// Likewise, rather than leaning on sobek's internal job queue to drive
// top-level-await-style suspension, the promise/microtask machinery a
// module's evaluate() needs is modeled entirely on the host side (the
// Promise and Microtasks types below): the registry, not the engine, owns
// the pending/fulfilled/rejected state machine. Both decisions are recorded
// in DESIGN.md.
package engine

import (
	"fmt"

	"github.com/grafana/sobek"
)

// Status mirrors a host engine's module status lifecycle.
type Status int

const (
	StatusUninstantiated Status = iota
	StatusInstantiating
	StatusInstantiated
	StatusEvaluating
	StatusEvaluated
	StatusErrored
)

func (s Status) String() string {
	switch s {
	case StatusUninstantiated:
		return "uninstantiated"
	case StatusInstantiating:
		return "instantiating"
	case StatusInstantiated:
		return "instantiated"
	case StatusEvaluating:
		return "evaluating"
	case StatusEvaluated:
		return "evaluated"
	case StatusErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Handle is the stable identity shared with the engine: the one piece of
// state an IsolateModuleRegistry.Entry pins for the context's lifetime.
type Handle struct {
	rt        *sobek.Runtime
	status    Status
	namespace *sobek.Object
	exception error
	program   *Program
}

// NewHandle creates a fresh, uninstantiated module handle bound to rt.
func NewHandle(rt *sobek.Runtime) *Handle {
	return &Handle{rt: rt, status: StatusUninstantiated, namespace: rt.NewObject()}
}

func (h *Handle) Runtime() *sobek.Runtime  { return h.rt }
func (h *Handle) Status() Status           { return h.status }
func (h *Handle) Namespace() *sobek.Object { return h.namespace }
func (h *Handle) Exception() error         { return h.exception }

// SetProgram/Program attach the compiled program an ESM module's descriptor
// produced, so Evaluate can later run it without re-threading the value
// through every call site.
func (h *Handle) SetProgram(p *Program) { h.program = p }
func (h *Handle) Program() *Program     { return h.program }

func (h *Handle) setStatus(s Status) { h.status = s }

// MarkInstantiating/MarkInstantiated advance the handle's status; the
// registry calls these around the engine's instantiation step. A handle
// already past StatusUninstantiated is a no-op success: instantiation is
// idempotent once it has happened once.
func (h *Handle) MarkInstantiating() bool {
	if h.status != StatusUninstantiated {
		return true
	}
	h.setStatus(StatusInstantiating)
	return true
}

func (h *Handle) MarkInstantiated() {
	if h.status == StatusInstantiating {
		h.setStatus(StatusInstantiated)
	}
}

// BeginEvaluate transitions Instantiated -> Evaluating. Callers must already
// have instantiated the handle.
func (h *Handle) BeginEvaluate() {
	h.setStatus(StatusEvaluating)
}

// FinishEvaluate transitions Evaluating -> Evaluated.
func (h *Handle) FinishEvaluate() {
	if h.status == StatusEvaluating {
		h.setStatus(StatusEvaluated)
	}
}

// FailEvaluate transitions to Errored and stores the exception for later
// rethrow.
func (h *Handle) FailEvaluate(err error) error {
	h.setStatus(StatusErrored)
	h.exception = err
	return err
}

// Program is a compiled, runtime-agnostic unit of source text. It may be run
// against any *sobek.Runtime -- the property the ESM compile cache in
// pkg/module relies on to share compiled work across isolates.
type Program struct {
	prog *sobek.Program
}

// Compile parses and compiles src under name for error-message purposes.
// strict mirrors sobek's strict-mode compile flag; ESM source is always
// compiled strict.
func Compile(name, src string, strict bool) (*Program, error) {
	p, err := sobek.Compile(name, src, strict)
	if err != nil {
		return nil, fmt.Errorf("compiling %s: %w", name, err)
	}
	return &Program{prog: p}, nil
}

// Run executes p against rt, returning the module body's completion value.
func (p *Program) Run(rt *sobek.Runtime) (sobek.Value, error) {
	return rt.RunProgram(p.prog)
}

// PromiseState is the three-way settlement the registry branches on when
// driving a module to completion.
type PromiseState int

const (
	PromisePending PromiseState = iota
	PromiseFulfilled
	PromiseRejected
)

// Promise is the host-side stand-in for the engine's evaluation promise. It
// is deliberately not a JS-visible sobek value: the registry only ever needs
// to settle it and later inspect its state.
type Promise struct {
	state    PromiseState
	result   sobek.Value
	reason   error
	onSettle []func(PromiseState, sobek.Value, error)
}

// NewPendingPromise creates an unsettled promise.
func NewPendingPromise() *Promise {
	return &Promise{state: PromisePending}
}

// Resolve settles the promise as fulfilled with the given completion value.
func (p *Promise) Resolve(v sobek.Value) {
	if p.state != PromisePending {
		return
	}
	p.state = PromiseFulfilled
	p.result = v
	p.fireSettle()
}

// Reject settles the promise as rejected with the given error.
func (p *Promise) Reject(err error) {
	if p.state != PromisePending {
		return
	}
	p.state = PromiseRejected
	p.reason = err
	p.fireSettle()
}

// OnSettle registers cb to run once p settles. If p is already settled, cb
// runs immediately. Used by the dynamic-import path to chain the outer
// promise onto a module's evaluation promise without blocking.
func (p *Promise) OnSettle(cb func(PromiseState, sobek.Value, error)) {
	if p.state != PromisePending {
		cb(p.state, p.result, p.reason)
		return
	}
	p.onSettle = append(p.onSettle, cb)
}

func (p *Promise) fireSettle() {
	pending := p.onSettle
	p.onSettle = nil
	for _, cb := range pending {
		cb(p.state, p.result, p.reason)
	}
}

// Resolved builds an already-fulfilled promise, used for ESM's Evaluate()
// return and the EvalCallback's wrapped result.
func Resolved(v sobek.Value) *Promise {
	return &Promise{state: PromiseFulfilled, result: v}
}

// Rejected builds an already-rejected promise.
func Rejected(err error) *Promise {
	return &Promise{state: PromiseRejected, reason: err}
}

func (p *Promise) State() PromiseState { return p.state }
func (p *Promise) Result() sobek.Value { return p.result }
func (p *Promise) Reason() error       { return p.reason }

// Microtasks is a minimal FIFO job queue. Real top-level-await suspension in
// the engine would schedule continuations here; the registry's synchronous
// require path drains it exactly once before inspecting a module's
// evaluation Promise.
type Microtasks struct {
	jobs []func()
}

func (m *Microtasks) Enqueue(job func()) {
	m.jobs = append(m.jobs, job)
}

// DrainOnce runs every job queued at the moment of the call (not jobs those
// jobs themselves enqueue), matching "drain the microtask queue once".
func (m *Microtasks) DrainOnce() {
	pending := m.jobs
	m.jobs = nil
	for _, job := range pending {
		job()
	}
}

// ThrownValue adapts a Go error into the engine's exception representation
// for a native function panic.
func ThrownValue(rt *sobek.Runtime, err error) sobek.Value {
	return rt.ToValue(rt.NewGoError(err))
}

// TypeError constructs an engine TypeError message, used for the
// unsupported-feature and invalid-specifier error cases.
func TypeError(rt *sobek.Runtime, format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s", rt.NewTypeError(msg).String())
}
