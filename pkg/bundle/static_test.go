package bundle_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modhost/registry/pkg/bundle"
	"github.com/modhost/registry/pkg/module"
	"github.com/modhost/registry/pkg/moduleurl"
)

func mustURL(t *testing.T, s string) moduleurl.Url {
	t.Helper()
	u, err := moduleurl.TryParse(s)
	require.NoError(t, err)
	return u
}

func TestStaticModuleBundleResolveCachesInstance(t *testing.T) {
	t.Parallel()

	b := bundle.NewStaticModuleBundle(module.TypeBundle)
	specifier := mustURL(t, "file:///a.js")
	calls := 0
	err := b.Add(specifier, func() (module.Module, string, error) {
		calls++
		return module.NewEsModule(specifier, "1", module.FlagNone), "", nil
	})
	require.NoError(t, err)

	ctx := module.ResolveContext{Type: module.TypeBundle, Specifier: specifier}
	first, ok := b.Resolve(ctx)
	require.True(t, ok)
	require.True(t, first.IsHit())

	second, ok := b.Resolve(ctx)
	require.True(t, ok)
	require.True(t, second.IsHit())

	assert.Same(t, first.Module, second.Module)
	assert.Equal(t, 1, calls)
}

func TestStaticModuleBundleDuplicateAddIsFatal(t *testing.T) {
	t.Parallel()

	b := bundle.NewStaticModuleBundle(module.TypeBundle)
	specifier := mustURL(t, "file:///a.js")
	factory := func() (module.Module, string, error) {
		return module.NewEsModule(specifier, "1", module.FlagNone), "", nil
	}
	require.NoError(t, b.Add(specifier, factory))
	assert.Error(t, b.Add(specifier, factory))
}

func TestStaticModuleBundleDuplicateViaAliasIsFatal(t *testing.T) {
	t.Parallel()

	b := bundle.NewStaticModuleBundle(module.TypeBundle)
	a := mustURL(t, "file:///a.js")
	c := mustURL(t, "file:///c.js")

	require.NoError(t, b.AddAlias(a, c))
	assert.Error(t, b.Add(a, func() (module.Module, string, error) { return nil, "", nil }))
}

func TestStaticModuleBundlePercentEncodingNormalizedAtAddTime(t *testing.T) {
	t.Parallel()

	b := bundle.NewStaticModuleBundle(module.TypeBundle)
	a := mustURL(t, "file:///a/%2fb")
	require.NoError(t, b.Add(a, func() (module.Module, string, error) {
		return module.NewEsModule(a, "1", module.FlagNone), "", nil
	}))

	dup := mustURL(t, "file:///a/b")
	assert.Error(t, b.Add(dup, func() (module.Module, string, error) { return nil, "", nil }))
}

func TestStaticModuleBundleAliasResolvesToTarget(t *testing.T) {
	t.Parallel()

	b := bundle.NewStaticModuleBundle(module.TypeBundle)
	target := mustURL(t, "file:///real.js")
	alias := mustURL(t, "file:///alias.js")
	require.NoError(t, b.Add(target, func() (module.Module, string, error) {
		return module.NewEsModule(target, "1", module.FlagNone), "", nil
	}))
	require.NoError(t, b.AddAlias(alias, target))

	res, ok := b.Resolve(module.ResolveContext{Type: module.TypeBundle, Specifier: alias})
	require.True(t, ok)
	require.True(t, res.IsHit())
	assert.Equal(t, target.String(), res.Module.Specifier().String())
}

func TestStaticModuleBundleConcurrentResolveCallsFactoryOnce(t *testing.T) {
	t.Parallel()

	b := bundle.NewStaticModuleBundle(module.TypeBundle)
	specifier := mustURL(t, "file:///a.js")
	var calls int
	var mu sync.Mutex
	require.NoError(t, b.Add(specifier, func() (module.Module, string, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		return module.NewEsModule(specifier, "1", module.FlagNone), "", nil
	}))

	var wg sync.WaitGroup
	ctx := module.ResolveContext{Type: module.TypeBundle, Specifier: specifier}
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = b.Resolve(ctx)
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, calls)
}

func TestStaticModuleBundleMissReturnsFalse(t *testing.T) {
	t.Parallel()

	b := bundle.NewStaticModuleBundle(module.TypeBundle)
	_, ok := b.Resolve(module.ResolveContext{Type: module.TypeBundle, Specifier: mustURL(t, "file:///missing.js")})
	assert.False(t, ok)
}

func TestStaticModuleBundleFactoryRedirect(t *testing.T) {
	t.Parallel()

	b := bundle.NewStaticModuleBundle(module.TypeBundle)
	from := mustURL(t, "file:///from.js")
	require.NoError(t, b.Add(from, func() (module.Module, string, error) {
		return nil, "file:///to.js", nil
	}))

	res, ok := b.Resolve(module.ResolveContext{Type: module.TypeBundle, Specifier: from})
	require.True(t, ok)
	assert.True(t, res.IsRedirect())
	assert.Equal(t, "file:///to.js", res.Specifier)
}

func TestStaticModuleBundleFactoryErrorIsMiss(t *testing.T) {
	t.Parallel()

	b := bundle.NewStaticModuleBundle(module.TypeBundle)
	specifier := mustURL(t, "file:///a.js")
	require.NoError(t, b.Add(specifier, func() (module.Module, string, error) {
		return nil, "", fmt.Errorf("boom")
	}))

	_, ok := b.Resolve(module.ResolveContext{Type: module.TypeBundle, Specifier: specifier})
	assert.False(t, ok)
}
