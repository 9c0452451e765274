// Package registry implements ModuleRegistry, the composition of bundles
// grouped by Type with optional parent chaining, and the multi-tier
// resolution policy that determines which bundles a given resolution
// request is allowed to see.
package registry

import (
	"github.com/modhost/registry/pkg/bundle"
	"github.com/modhost/registry/pkg/module"
	"github.com/modhost/registry/pkg/moduleurl"
)

// maxRedirectDepth bounds the "restart resolution at top with the new
// specifier" loop so a redirect cycle fails instead of looping forever,
// mirroring the alias-depth bound in pkg/bundle.
const maxRedirectDepth = 64

// tiersFor returns, in order, the bundle Types searched for a
// ResolveContext of the given type. Tiers within a bundle type are
// themselves tried in insertion order by Resolve.
func tiersFor(t module.ContextType) []module.Type {
	switch t {
	case module.TypeBundle:
		return []module.Type{module.TypeBundle, module.TypeBuiltin, module.TypeFallback}
	case module.TypeBuiltin:
		return []module.Type{module.TypeBuiltin, module.TypeBuiltinOnly}
	case module.TypeBuiltinOnly:
		return []module.Type{module.TypeBuiltinOnly}
	default:
		return nil
	}
}

// ModuleRegistry is thread-safe and shared across isolates: its bundle
// slices and parent pointer are fixed at Build time, and every bundle it
// holds implements its own internal synchronization.
type ModuleRegistry struct {
	bundles [module.TypeFallback + 1][]bundle.ModuleBundle
	parent  *ModuleRegistry
	evalCB  module.EvalCallback
}

// EvalCallback returns the EvalCallback this registry was built with, if
// any -- consulted by pkg/isolate when evaluating ESM or EVAL-flagged
// synthetic modules.
func (r *ModuleRegistry) EvalCallback() module.EvalCallback { return r.evalCB }

// Parent returns the optional parent registry.
func (r *ModuleRegistry) Parent() *ModuleRegistry { return r.parent }

// Resolve drives the multi-tier policy: within ctx.Type's tiers, bundles
// are tried in insertion order; the first hit wins. A redirect restarts
// resolution at the first tier with the new specifier, cloning
// ctx.Type/Source/Referrer/Attributes. Exhausting every tier
// without a hit or redirect falls through to the parent registry, if any.
func (r *ModuleRegistry) Resolve(ctx module.ResolveContext) (module.Module, bool) {
	cur := ctx
	for depth := 0; depth < maxRedirectDepth; depth++ {
		m, next, redirected, found := r.resolveTiers(cur)
		if found {
			return m, true
		}
		if !redirected {
			break
		}
		cur = next
	}
	if r.parent != nil {
		return r.parent.Resolve(cur)
	}
	return nil, false
}

func (r *ModuleRegistry) resolveTiers(ctx module.ResolveContext) (m module.Module, next module.ResolveContext, redirected, found bool) {
	for _, tier := range tiersFor(ctx.Type) {
		for _, bd := range r.bundles[tier] {
			res, ok := bd.Resolve(ctx)
			if !ok {
				continue
			}
			if res.IsRedirect() {
				u, err := moduleurl.TryParse(res.Specifier)
				if err != nil {
					continue
				}
				return nil, ctx.WithSpecifier(u.WithNormalizedPath()), true, false
			}
			if res.IsHit() {
				return res.Module, ctx, false, true
			}
		}
	}
	return nil, ctx, false, false
}
