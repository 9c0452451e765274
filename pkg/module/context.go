package module

import "github.com/modhost/registry/pkg/moduleurl"

// ContextType is the resolution regime a ResolveContext asks for. It
// reuses Type's values restricted to the three regimes that drive
// resolution (TypeFallback never appears as a ContextType -- fallback
// bundles are only ever a tier searched, never requested directly).
type ContextType = Type

// Source is metrics-only: it records why a resolve happened, never changes
// resolution outcome.
type Source int

const (
	SourceStaticImport Source = iota
	SourceDynamicImport
	SourceRequire
	SourceInternal
)

func (s Source) String() string {
	switch s {
	case SourceStaticImport:
		return "static-import"
	case SourceDynamicImport:
		return "dynamic-import"
	case SourceRequire:
		return "require"
	case SourceInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// ResolveContext carries everything a bundle or registry tier needs to
// answer a resolution request.
type ResolveContext struct {
	Type         ContextType
	Source       Source
	Specifier    moduleurl.Url
	Referrer     moduleurl.Url
	RawSpecifier string // optional; empty means "not recorded"
	Attributes   map[string]string
}

// WithSpecifier returns a copy of ctx for re-resolving a different
// specifier (e.g. after an alias/redirect), cloning type, source, referrer
// and attributes.
func (ctx ResolveContext) WithSpecifier(specifier moduleurl.Url) ResolveContext {
	cp := ctx
	cp.Specifier = specifier
	cp.RawSpecifier = ""
	return cp
}
