package registry

import (
	"fmt"

	"github.com/modhost/registry/pkg/bundle"
	"github.com/modhost/registry/pkg/module"
)

// Builder groups bundles by Type and produces an immutable ModuleRegistry.
// Builders validate at build time; AddBundle panics on a misuse that can
// only be a programming error (the same "fatal at build time" posture
// static bundles use for duplicate specifiers).
type Builder struct {
	bundles       [module.TypeFallback + 1][]bundle.ModuleBundle
	allowFallback bool
	parent        *ModuleRegistry
	evalCB        module.EvalCallback
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// AllowFallback opts in to accepting Fallback-type bundles.
func (b *Builder) AllowFallback() *Builder {
	b.allowFallback = true
	return b
}

// WithParent sets the optional parent registry consulted when every tier
// of this registry misses.
func (b *Builder) WithParent(parent *ModuleRegistry) *Builder {
	b.parent = parent
	return b
}

// WithEvalCallback sets the host EvalCallback routed to for ESM and
// EVAL-flagged synthetic modules.
func (b *Builder) WithEvalCallback(cb module.EvalCallback) *Builder {
	b.evalCB = cb
	return b
}

// AddBundle files bd under typ. typ must match bd.Type(); Fallback bundles
// are only accepted if AllowFallback was called. Both violations are fatal
// at build time -- they indicate a host wiring bug, not recoverable input.
func (b *Builder) AddBundle(typ module.Type, bd bundle.ModuleBundle) *Builder {
	if bd.Type() != typ {
		panic(fmt.Sprintf("registry.Builder: bundle type %s does not match requested tier %s", bd.Type(), typ))
	}
	if typ == module.TypeFallback && !b.allowFallback {
		panic("registry.Builder: fallback bundles require Builder.AllowFallback()")
	}
	b.bundles[typ] = append(b.bundles[typ], bd)
	return b
}

// Build produces the immutable ModuleRegistry.
func (b *Builder) Build() *ModuleRegistry {
	reg := &ModuleRegistry{parent: b.parent, evalCB: b.evalCB}
	reg.bundles = b.bundles
	return reg
}
