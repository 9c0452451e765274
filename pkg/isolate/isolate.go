// Package isolate implements IsolateModuleRegistry, the per-engine-context
// binding that owns the live lookup cache of instantiated engine module
// objects and drives the resolve/dynamicResolve/require entry points
// invoked from the engine or from host Go code.
//
// The real embedder-data slot (a well-known index on the engine context,
// letting an engine callback recover the owning IsolateModuleRegistry) has
// no sobek equivalent: sobek carries no general-purpose per-Runtime
// user-data slot the way V8's context does. This package stands in a
// package-level table keyed by *sobek.Runtime instead (registryBySlot
// below), keyed on the Go object that already uniquely identifies an
// isolate/context here. This is recorded in DESIGN.md.
package isolate

import (
	"fmt"
	"strings"
	"sync"

	"github.com/grafana/sobek"

	"github.com/modhost/registry/pkg/engine"
	"github.com/modhost/registry/pkg/featureflags"
	"github.com/modhost/registry/pkg/module"
	"github.com/modhost/registry/pkg/moduleurl"
	"github.com/modhost/registry/pkg/observer"
	"github.com/modhost/registry/pkg/registry"
)

// registryBySlot is the stand-in for the single well-known embedder data
// slot index described above.
var registryBySlot sync.Map // map[*sobek.Runtime]*IsolateModuleRegistry

// Entry is the per-isolate record binding an engine module handle to the
// Module that produced it, keyed three ways. Specifier is the
// pre-normalization URL (query/fragment preserved) as seen by the engine,
// because the same underlying Module may be exposed under multiple URL
// variants.
type Entry struct {
	Handle    *engine.Handle
	Type      module.Type
	Specifier moduleurl.Url
	Module    module.Module
}

// NodeCompatRewrite lets the host recognize and rewrite a bare "node:"
// specifier; the host table of known bare identifiers isn't specified
// further, so it's injected rather than hardcoded (see DESIGN.md Open
// Questions).
type NodeCompatRewrite func(specifier string) (rewritten string, ok bool)

// IsolateModuleRegistry is single-threaded and lives only under the
// isolate's exclusive lock; nothing here is safe for concurrent use from
// multiple goroutines without external synchronization equivalent to that
// lock.
type IsolateModuleRegistry struct {
	reg        *registry.ModuleRegistry
	rt         *sobek.Runtime
	bundleBase moduleurl.Url
	flags      featureflags.FeatureFlags
	obs        observer.Observer
	evalCB     module.EvalCallback
	nodeCompat NodeCompatRewrite
	microtasks engine.Microtasks

	byHandle        map[*engine.Handle]*Entry
	byTypeSpecifier map[string]*Entry
	byURL           map[string]*Entry
}

// Attach creates an IsolateModuleRegistry bound to rt and installs it in
// the embedder-data stand-in. The returned handle's lifetime should equal
// the isolate context's; call Detach when that context is torn down.
func Attach(reg *registry.ModuleRegistry, rt *sobek.Runtime, bundleBase moduleurl.Url, flags featureflags.FeatureFlags, obs observer.Observer) *IsolateModuleRegistry {
	if obs == nil {
		obs = observer.Noop{}
	}
	ir := &IsolateModuleRegistry{
		reg:             reg,
		rt:              rt,
		bundleBase:      bundleBase,
		flags:           flags,
		obs:             obs,
		evalCB:          reg.EvalCallback(),
		byHandle:        make(map[*engine.Handle]*Entry),
		byTypeSpecifier: make(map[string]*Entry),
		byURL:           make(map[string]*Entry),
	}
	registryBySlot.Store(rt, ir)
	return ir
}

// WithNodeCompatRewrite installs the bare "node:" rewrite table.
func (ir *IsolateModuleRegistry) WithNodeCompatRewrite(fn NodeCompatRewrite) *IsolateModuleRegistry {
	ir.nodeCompat = fn
	return ir
}

// FromRuntime recovers the IsolateModuleRegistry bound to rt, the Go
// analogue of reading the engine context's embedder data slot.
func FromRuntime(rt *sobek.Runtime) (*IsolateModuleRegistry, bool) {
	v, ok := registryBySlot.Load(rt)
	if !ok {
		return nil, false
	}
	return v.(*IsolateModuleRegistry), true
}

// Detach removes the binding.
func (ir *IsolateModuleRegistry) Detach() {
	registryBySlot.Delete(ir.rt)
}

func tsKey(t module.Type, u moduleurl.Url) string {
	return t.String() + "|" + u.String()
}

func (ir *IsolateModuleRegistry) lookupByHandle(h *engine.Handle) (*Entry, bool) {
	e, ok := ir.byHandle[h]
	return e, ok
}

func (ir *IsolateModuleRegistry) lookupByTypeSpecifier(t module.Type, u moduleurl.Url) (*Entry, bool) {
	e, ok := ir.byTypeSpecifier[tsKey(t, u)]
	return e, ok
}

// LookupByURL finds the referring module entry from its URL alone --
// needed by dynamic import, which only has a handle to work from in
// practice, but is exposed for hosts that only have the URL.
func (ir *IsolateModuleRegistry) LookupByURL(u moduleurl.Url) (*Entry, bool) {
	e, ok := ir.byURL[u.String()]
	return e, ok
}

func (ir *IsolateModuleRegistry) insert(e *Entry) {
	ir.byHandle[e.Handle] = e
	ir.byTypeSpecifier[tsKey(e.Type, e.Specifier)] = e
	ir.byURL[e.Specifier.String()] = e
}

// referrerContext resolves a referrer engine handle to the (type,
// specifier) pair needed to seed a ResolveContext. A nil or unknown handle
// falls back to the registry's bundle-base URL under type BUNDLE.
func (ir *IsolateModuleRegistry) referrerContext(referrer *engine.Handle) (module.Type, moduleurl.Url) {
	if referrer != nil {
		if e, ok := ir.lookupByHandle(referrer); ok {
			return e.Type, e.Specifier
		}
	}
	return module.TypeBundle, ir.bundleBase
}

// nodeProcessSpecifier and its two rewrite targets implement a concrete
// Node-compat example: when Node-compat is enabled, "node:process" always
// redirects to one of two internal shims and forces BUILTIN_ONLY,
// independent of any injected NodeCompatRewrite.
const (
	nodeProcessSpecifier      = "node:process"
	nodeProcessPublicRewrite  = "node-internal:public_process"
	nodeProcessLegacyRewrite  = "node-internal:legacy_process"
	nodeSpecifierSchemePrefix = "node:"
)

// applyNodeCompat implements the Node-compat rewriting step shared by
// static resolve, dynamic import and require. It mutates *typ in place
// when the rewrite forces a different resolution tier (node:process
// always does).
func (ir *IsolateModuleRegistry) applyNodeCompat(specifier string, typ *module.Type) string {
	if !ir.flags.NodeCompat() {
		return specifier
	}
	if specifier == nodeProcessSpecifier {
		*typ = module.TypeBuiltinOnly
		if ir.flags.NodeProcessV2() {
			return nodeProcessPublicRewrite
		}
		return nodeProcessLegacyRewrite
	}
	if ir.nodeCompat != nil && strings.HasPrefix(specifier, nodeSpecifierSchemePrefix) {
		if rewritten, ok := ir.nodeCompat(specifier); ok {
			return rewritten
		}
	}
	return specifier
}

// resolveEntry is the shared core of every entry point: consult the
// per-isolate cache first, otherwise ask the shared ModuleRegistry and, on
// a hit, create and cache the engine descriptor.
//
// ctx.Specifier carries the as-written, pre-normalization resolved URL --
// the identity that becomes Entry.Specifier and, from there, import.meta.url
// and the per-isolate cache key. The shared ModuleRegistry and its bundles
// key on normalized paths, so a separately normalized copy of ctx is built
// just to query it; the un-normalized ctx.Specifier is never overwritten.
func (ir *IsolateModuleRegistry) resolveEntry(ctx module.ResolveContext) (*Entry, error) {
	if e, ok := ir.lookupByTypeSpecifier(ctx.Type, ctx.Specifier); ok {
		ir.obs.Found(ctx.Specifier.String())
		return e, nil
	}

	normalizedCtx := ctx.WithSpecifier(ctx.Specifier.WithNormalizedPath())
	m, ok := ir.reg.Resolve(normalizedCtx)
	if !ok {
		ir.obs.NotFound(ctx.Specifier.String())
		return nil, module.ErrNotFound
	}

	handle, err := m.GetDescriptor(ir.rt, ir.obs)
	if err != nil {
		return nil, err
	}
	entry := &Entry{Handle: handle, Type: ctx.Type, Specifier: ctx.Specifier, Module: m}
	ir.insert(entry)
	ir.obs.Found(ctx.Specifier.String())
	return entry, nil
}

// requireEntry drives instantiate/evaluate for an already-resolved entry
// and returns its namespace object, implementing the status-branch logic
// shared by Require and TryResolveModuleNamespace. DynamicImport does not
// use it; it instantiates and evaluates the entry itself.
func (ir *IsolateModuleRegistry) requireEntry(entry *Entry) (*sobek.Object, error) {
	h := entry.Handle
	switch h.Status() {
	case engine.StatusErrored:
		return nil, h.Exception()
	case engine.StatusEvaluating:
		if entry.Module.Flags().Has(module.FlagESM) {
			return nil, fmt.Errorf("%w: %q", module.ErrCircular, entry.Specifier.String())
		}
		return h.Namespace(), nil
	case engine.StatusEvaluated:
		return h.Namespace(), nil
	}

	if !entry.Module.Instantiate(h, ir.obs) {
		return nil, h.Exception()
	}
	promise, err := entry.Module.Evaluate(h, ir.obs, ir.evalCB)
	if err != nil {
		return nil, err
	}
	ir.microtasks.DrainOnce()

	switch promise.State() {
	case engine.PromiseFulfilled:
		return h.Namespace(), nil
	case engine.PromiseRejected:
		return nil, promise.Reason()
	default:
		return nil, fmt.Errorf(
			"Use of top-level await in a synchronously required module is restricted to promises that are resolved synchronously. Specifier: %q.",
			entry.Specifier.String())
	}
}
