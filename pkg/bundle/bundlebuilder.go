package bundle

import (
	"github.com/modhost/registry/pkg/module"
	"github.com/modhost/registry/pkg/moduleurl"
)

// BundleBuilder adds ESM or synthetic modules to a BUNDLE-type
// StaticModuleBundle by string specifier resolved against bundleBase.
// Percent-encoding in paths is normalized at add time so "a/%2fb" and its
// decoded form collapse to one specifier.
type BundleBuilder struct {
	base   moduleurl.Url
	static *StaticModuleBundle
}

// NewBundleBuilder constructs a builder rooted at bundleBase, e.g.
// "file:///" for a filesystem-rooted set of user modules.
func NewBundleBuilder(bundleBase moduleurl.Url) *BundleBuilder {
	return &BundleBuilder{base: bundleBase, static: NewStaticModuleBundle(module.TypeBundle)}
}

func (b *BundleBuilder) resolve(specifier string) (moduleurl.Url, error) {
	u, err := b.base.TryResolve(specifier)
	if err != nil {
		return moduleurl.Url{}, err
	}
	return u.WithNormalizedPath(), nil
}

// AddSource adds an ESM module whose source is src. flags is OR'd with
// FlagESM|FlagEval (NewEsModule's invariant); pass module.FlagMain for the
// designated entrypoint.
func (b *BundleBuilder) AddSource(specifier, src string, flags module.Flags) error {
	u, err := b.resolve(specifier)
	if err != nil {
		return err
	}
	return b.static.Add(u, func() (module.Module, string, error) {
		return module.NewEsModule(u, src, flags), "", nil
	})
}

// AddSynthetic adds a host-synthesized module at specifier, e.g. a wrapper
// around one of the factories in pkg/synthetic.
func (b *BundleBuilder) AddSynthetic(specifier string, namedExports []string, evaluate module.EvaluateCallback, eval bool) error {
	u, err := b.resolve(specifier)
	if err != nil {
		return err
	}
	return b.static.Add(u, func() (module.Module, string, error) {
		return module.NewSyntheticModule(u, module.TypeBundle, namedExports, evaluate, eval), "", nil
	})
}

// AddAlias makes from (resolved against bundleBase) resolve as though it
// were to (also resolved against bundleBase).
func (b *BundleBuilder) AddAlias(from, to string) error {
	fromURL, err := b.resolve(from)
	if err != nil {
		return err
	}
	toURL, err := b.resolve(to)
	if err != nil {
		return err
	}
	return b.static.AddAlias(fromURL, toURL)
}

// Build returns the finished bundle, ready to be added to a
// registry.Builder under module.TypeBundle.
func (b *BundleBuilder) Build() *StaticModuleBundle {
	return b.static
}
