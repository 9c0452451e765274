// Package bundle implements the named collections of modules that
// contribute to a ModuleRegistry, each with its own resolution policy.
package bundle

import (
	"github.com/modhost/registry/pkg/module"
	"github.com/modhost/registry/pkg/moduleurl"
)

// Resolved is the sum type a bundle's Resolve returns: either a direct hit
// or a redirect to another specifier to re-resolve from the top.
type Resolved struct {
	Module    module.Module
	Specifier string // non-empty means "redirect"
}

func hit(m module.Module) Resolved       { return Resolved{Module: m} }
func redirect(specifier string) Resolved { return Resolved{Specifier: specifier} }

func (r Resolved) IsRedirect() bool { return r.Specifier != "" }
func (r Resolved) IsHit() bool      { return r.Module != nil }
func (r Resolved) IsMiss() bool     { return !r.IsRedirect() && !r.IsHit() }

// ModuleBundle is a thread-safe catalog contributing modules to a registry.
type ModuleBundle interface {
	// Type is the Type this bundle's modules are filed under when composed
	// into a ModuleRegistry.
	Type() module.Type
	// Resolve answers a single resolution request; it must not recurse into
	// the owning registry (redirects are handled by the registry, not the
	// bundle).
	Resolve(ctx module.ResolveContext) (Resolved, bool)
}

// isFileScheme reports whether u uses the file: scheme, used by
// BuiltinBuilder to enforce that file: is reserved for BUNDLE-type
// modules.
func isFileScheme(u moduleurl.Url) bool {
	return u.Scheme() == "file"
}
