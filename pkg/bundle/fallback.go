package bundle

import (
	"sync"

	"github.com/modhost/registry/pkg/module"
)

// FallbackResolver is the single open-ended resolver callback a
// FallbackModuleBundle wraps, e.g. backed by a virtual filesystem.
type FallbackResolver func(ctx module.ResolveContext) (m module.Module, redirectTo string, err error)

// FallbackModuleBundle owns a single callback plus a cache of both owned
// modules (keyed by their own resolved specifier) and alias pointers
// (keyed by the originally requested specifier).
type FallbackModuleBundle struct {
	resolve FallbackResolver

	mu      sync.RWMutex
	modules map[string]module.Module
	aliases map[string]string
}

func NewFallbackModuleBundle(resolve FallbackResolver) *FallbackModuleBundle {
	return &FallbackModuleBundle{
		resolve: resolve,
		modules: make(map[string]module.Module),
		aliases: make(map[string]string),
	}
}

func (b *FallbackModuleBundle) Type() module.Type { return module.TypeFallback }

func (b *FallbackModuleBundle) Resolve(ctx module.ResolveContext) (Resolved, bool) {
	requested := ctx.Specifier.String()

	accept := func(m module.Module) (Resolved, bool) {
		evalCtx := ctx
		if m.Specifier().String() != requested {
			// Reached through an alias: the late check sees the canonical
			// specifier, with the rest of ctx unchanged.
			evalCtx = ctx.WithSpecifier(m.Specifier())
		}
		if !m.EvaluateContext(evalCtx) {
			return Resolved{}, false
		}
		return hit(m), true
	}

	if m, ok := b.lookup(requested); ok {
		return accept(m)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	// Double-check after acquiring the exclusive lock: another goroutine
	// may have populated the cache while we waited.
	if m, ok := b.lookupLocked(requested); ok {
		return accept(m)
	}

	m, redirectTo, err := b.resolve(ctx)
	if err != nil || (m == nil && redirectTo == "") {
		return Resolved{}, false
	}
	if redirectTo != "" {
		return redirect(redirectTo), true
	}

	own := m.Specifier().String()
	b.modules[own] = m
	if own != requested {
		b.aliases[requested] = own
	}

	return accept(m)
}

func (b *FallbackModuleBundle) lookup(specifier string) (module.Module, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lookupLocked(specifier)
}

// lookupLocked assumes the caller already holds mu (read or write).
func (b *FallbackModuleBundle) lookupLocked(specifier string) (module.Module, bool) {
	if m, ok := b.modules[specifier]; ok {
		return m, true
	}
	if aliased, ok := b.aliases[specifier]; ok {
		if m, ok := b.modules[aliased]; ok {
			return m, true
		}
	}
	return nil, false
}
