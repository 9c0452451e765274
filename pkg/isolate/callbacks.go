package isolate

import (
	"fmt"

	"github.com/grafana/sobek"

	"github.com/modhost/registry/pkg/engine"
	"github.com/modhost/registry/pkg/module"
	"github.com/modhost/registry/pkg/moduleurl"
)

// Resolve implements the static resolve callback the engine invokes for an
// `import` statement. referrer is the engine module handle performing the
// import, or nil for the registry's entrypoint.
func (ir *IsolateModuleRegistry) Resolve(specifier string, attributes map[string]string, referrer *engine.Handle) (*engine.Handle, error) {
	if len(attributes) > 0 {
		return nil, engine.TypeError(ir.rt, "Import attributes are not supported")
	}

	typ, refURL := ir.referrerContext(referrer)
	rewritten := ir.applyNodeCompat(specifier, &typ)

	resolved, err := refURL.TryResolve(rewritten)
	if err != nil {
		return nil, engine.TypeError(ir.rt, "couldn't parse specifier %q: %v", rewritten, err)
	}

	ctx := module.ResolveContext{
		Type:         typ,
		Source:       module.SourceStaticImport,
		Specifier:    resolved,
		Referrer:     refURL,
		RawSpecifier: specifier,
		Attributes:   attributes,
	}
	entry, err := ir.resolveEntry(ctx)
	if err != nil {
		return nil, fmt.Errorf("Module not found: %s", resolved.String())
	}
	return entry.Handle, nil
}

// DynamicImport implements the `import(...)` expression callback. It
// never lets a Go error escape to the engine: every failure settles the
// returned promise as rejected instead.
func (ir *IsolateModuleRegistry) DynamicImport(specifier string, attributes map[string]string, referrer *engine.Handle) *engine.Promise {
	promise := engine.NewPendingPromise()

	if len(attributes) > 0 {
		promise.Reject(module.ErrAttributesUnsupported)
		return promise
	}

	refEntry, ok := ir.lookupByHandle(referrer)
	if !ok {
		promise.Reject(engine.TypeError(ir.rt, "dynamic import referrer is not a resolved module"))
		return promise
	}
	typ, refURL := refEntry.Type, refEntry.Specifier
	rewritten := ir.applyNodeCompat(specifier, &typ)

	resolved, err := refURL.TryResolve(rewritten)
	if err != nil {
		promise.Reject(engine.TypeError(ir.rt, "couldn't parse specifier %q: %v", rewritten, err))
		return promise
	}

	ctx := module.ResolveContext{
		Type:         typ,
		Source:       module.SourceDynamicImport,
		Specifier:    resolved,
		Referrer:     refURL,
		RawSpecifier: specifier,
		Attributes:   attributes,
	}
	entry, err := ir.resolveEntry(ctx)
	if err != nil {
		promise.Reject(fmt.Errorf("Module not found: %s", resolved.String()))
		return promise
	}

	if !entry.Module.Instantiate(entry.Handle, ir.obs) {
		promise.Reject(entry.Handle.Exception())
		return promise
	}
	evalPromise, err := entry.Module.Evaluate(entry.Handle, ir.obs, ir.evalCB)
	if err != nil {
		promise.Reject(err)
		return promise
	}

	namespace := entry.Handle.Namespace()
	evalPromise.OnSettle(func(state engine.PromiseState, _ sobek.Value, reason error) {
		if state == engine.PromiseRejected {
			promise.Reject(reason)
			return
		}
		promise.Resolve(namespace)
	})
	return promise
}

// InitializeImportMeta sets import.meta's own data properties for the
// module owning handle: main, url and resolve. resolve is a pure function
// of url and its argument; it consults no registry state.
func (ir *IsolateModuleRegistry) InitializeImportMeta(meta *sobek.Object, handle *engine.Handle) error {
	entry, ok := ir.lookupByHandle(handle)
	if !ok {
		return fmt.Errorf("import.meta requested for an unrecognized module handle")
	}

	if err := meta.Set("main", entry.Module.Flags().Has(module.FlagMain)); err != nil {
		return err
	}
	href := entry.Specifier.String()
	if err := meta.Set("url", href); err != nil {
		return err
	}

	base := entry.Specifier
	resolveFn := func(call sobek.FunctionCall) sobek.Value {
		spec := call.Argument(0).String()
		resolved, err := base.TryResolve(spec)
		if err != nil {
			return sobek.Null()
		}
		return ir.rt.ToValue(resolved.WithNormalizedPath().String())
	}
	return meta.Set("resolve", ir.rt.ToValue(resolveFn))
}

// RequireOptions configures Require's behavior on a miss.
type RequireOptions struct {
	// ReturnEmpty converts a "module not found" miss into a nil, nil
	// return instead of an error. Every other error still propagates.
	ReturnEmpty bool
}

// Require implements the synchronous require() entry point: resolve,
// instantiate, evaluate, then return the namespace. A pending evaluation
// promise after one microtask drain is a hard error -- sync require
// disallows true suspension.
func (ir *IsolateModuleRegistry) Require(specifier string, referrer *engine.Handle, opts RequireOptions) (*sobek.Object, error) {
	typ, refURL := ir.referrerContext(referrer)
	rewritten := ir.applyNodeCompat(specifier, &typ)

	resolved, err := refURL.TryResolve(rewritten)
	if err != nil {
		return nil, engine.TypeError(ir.rt, "couldn't parse specifier %q: %v", rewritten, err)
	}

	ctx := module.ResolveContext{
		Type:         typ,
		Source:       module.SourceRequire,
		Specifier:    resolved,
		Referrer:     refURL,
		RawSpecifier: specifier,
	}
	entry, err := ir.resolveEntry(ctx)
	if err != nil {
		if opts.ReturnEmpty {
			return nil, nil
		}
		return nil, fmt.Errorf("Module not found: %s", resolved.String())
	}
	return ir.requireEntry(entry)
}

// TryResolveModuleNamespace is a host-facing convenience API: resolve,
// then drive the module to a namespace object without the
// require-specific circular/sync-TLA error wording.
func (ir *IsolateModuleRegistry) TryResolveModuleNamespace(specifier string, typ module.Type, source module.Source, referrer *moduleurl.Url) (*sobek.Object, bool) {
	refURL := ir.bundleBase
	if referrer != nil {
		refURL = *referrer
	}
	resolved, err := refURL.TryResolve(specifier)
	if err != nil {
		return nil, false
	}

	ctx := module.ResolveContext{
		Type:         typ,
		Source:       source,
		Specifier:    resolved,
		Referrer:     refURL,
		RawSpecifier: specifier,
	}
	entry, err := ir.resolveEntry(ctx)
	if err != nil {
		return nil, false
	}
	ns, err := ir.requireEntry(entry)
	if err != nil {
		return nil, false
	}
	return ns, true
}

// ResolveExport is a named-export convenience: returns a single export
// value or an error.
func (ir *IsolateModuleRegistry) ResolveExport(specifier, exportName string, typ module.Type, source module.Source, referrer *moduleurl.Url) (sobek.Value, error) {
	ns, ok := ir.TryResolveModuleNamespace(specifier, typ, source, referrer)
	if !ok {
		return nil, fmt.Errorf("module not found: %s", specifier)
	}
	v := ns.Get(exportName)
	if v == nil {
		return nil, fmt.Errorf("module %q has no export %q", specifier, exportName)
	}
	return v, nil
}
