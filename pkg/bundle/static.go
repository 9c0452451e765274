package bundle

import (
	"fmt"
	"sync"

	"github.com/modhost/registry/pkg/module"
	"github.com/modhost/registry/pkg/moduleurl"
)

// maxAliasDepth bounds alias-chain resolution so an alias cycle ends in a
// miss instead of looping forever.
const maxAliasDepth = 64

// Factory produces a module's owned Module for a given specifier, or
// redirects resolution to another specifier string. Exactly one of the
// two return values besides err is meaningful.
type Factory func() (m module.Module, redirectTo string, err error)

// StaticModuleBundle is a fixed map of specifier -> factory plus aliases.
type StaticModuleBundle struct {
	typ     module.Type
	modules map[string]Factory
	aliases map[string]string

	mu    sync.Mutex
	cache map[string]module.Module
}

// NewStaticModuleBundle constructs an empty bundle of the given type.
func NewStaticModuleBundle(typ module.Type) *StaticModuleBundle {
	return &StaticModuleBundle{
		typ:     typ,
		modules: make(map[string]Factory),
		aliases: make(map[string]string),
		cache:   make(map[string]module.Module),
	}
}

func (b *StaticModuleBundle) Type() module.Type { return b.typ }

// Add registers a factory for specifier. Re-adding a specifier already
// present (directly or as an alias name) is rejected with an error;
// BundleBuilder and BuiltinBuilder return that error to their caller.
func (b *StaticModuleBundle) Add(specifier moduleurl.Url, factory Factory) error {
	key := specifier.WithNormalizedPath().String()
	if _, exists := b.modules[key]; exists {
		return fmt.Errorf("module %q already added to this bundle", key)
	}
	if _, exists := b.aliases[key]; exists {
		return fmt.Errorf("module %q already added to this bundle as an alias", key)
	}
	b.modules[key] = factory
	return nil
}

// AddAlias makes from resolve as though it were to, without a second
// factory call.
func (b *StaticModuleBundle) AddAlias(from, to moduleurl.Url) error {
	key := from.WithNormalizedPath().String()
	if _, exists := b.modules[key]; exists {
		return fmt.Errorf("module %q already added to this bundle", key)
	}
	if _, exists := b.aliases[key]; exists {
		return fmt.Errorf("module %q already added to this bundle as an alias", key)
	}
	b.aliases[key] = to.WithNormalizedPath().String()
	return nil
}

func (b *StaticModuleBundle) Resolve(ctx module.ResolveContext) (Resolved, bool) {
	key := ctx.Specifier.WithNormalizedPath().String()
	aliased := false

	for depth := 0; ; depth++ {
		if depth > maxAliasDepth {
			return Resolved{}, false
		}
		if to, isAlias := b.aliases[key]; isAlias {
			key = to
			aliased = true
			continue
		}
		break
	}

	// The factory runs under mu, so concurrent first resolutions of the same
	// specifier call it at most once.
	b.mu.Lock()
	defer b.mu.Unlock()

	m, cached := b.cache[key]
	if !cached {
		factory, exists := b.modules[key]
		if !exists {
			return Resolved{}, false
		}
		made, redirectTo, err := factory()
		if err != nil || (made == nil && redirectTo == "") {
			return Resolved{}, false
		}
		if redirectTo != "" {
			return redirect(redirectTo), true
		}
		m = made
		b.cache[key] = m
	}

	// An alias resolves as though it were its target: the late check sees
	// the target module's specifier, with the rest of ctx unchanged.
	if aliased {
		ctx = ctx.WithSpecifier(m.Specifier())
	}
	if !m.EvaluateContext(ctx) {
		return Resolved{}, false
	}
	return hit(m), true
}
