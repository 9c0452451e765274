package bundle

import (
	"fmt"

	"github.com/modhost/registry/pkg/module"
	"github.com/modhost/registry/pkg/moduleurl"
)

// BuiltinBuilder wraps a StaticModuleBundle, additionally rejecting any
// specifier whose scheme is file: -- that scheme is reserved for
// BUNDLE-type modules. Used for both the BUILTIN and BUILTIN_ONLY tiers.
type BuiltinBuilder struct {
	*StaticModuleBundle
}

// NewBuiltinBuilder constructs an empty builtin bundle of typ, which must be
// module.TypeBuiltin or module.TypeBuiltinOnly.
func NewBuiltinBuilder(typ module.Type) *BuiltinBuilder {
	return &BuiltinBuilder{StaticModuleBundle: NewStaticModuleBundle(typ)}
}

// Add registers factory for the absolute specifier, rejecting file: URLs.
func (b *BuiltinBuilder) Add(specifier moduleurl.Url, factory Factory) error {
	if isFileScheme(specifier) {
		return fmt.Errorf("builtin bundle: file: is reserved for bundle-type modules, got %q", specifier.String())
	}
	return b.StaticModuleBundle.Add(specifier, factory)
}

// AddAlias makes from resolve as though it were to, rejecting file: URLs on
// either side.
func (b *BuiltinBuilder) AddAlias(from, to moduleurl.Url) error {
	if isFileScheme(from) {
		return fmt.Errorf("builtin bundle: file: is reserved for bundle-type modules, got %q", from.String())
	}
	if isFileScheme(to) {
		return fmt.Errorf("builtin bundle: file: is reserved for bundle-type modules, got %q", to.String())
	}
	return b.StaticModuleBundle.AddAlias(from, to)
}
