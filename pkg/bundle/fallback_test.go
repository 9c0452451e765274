package bundle_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modhost/registry/pkg/bundle"
	"github.com/modhost/registry/pkg/module"
)

func TestFallbackModuleBundleAliasesCanonicalSpecifier(t *testing.T) {
	t.Parallel()

	canonical := mustURL(t, "file:///canonical.js")
	requested := mustURL(t, "file:///requested.js")
	calls := 0

	b := bundle.NewFallbackModuleBundle(func(ctx module.ResolveContext) (module.Module, string, error) {
		calls++
		return module.NewEsModule(canonical, "1", module.FlagNone), "", nil
	})

	first, ok := b.Resolve(module.ResolveContext{Type: module.TypeBundle, Specifier: requested})
	require.True(t, ok)
	require.True(t, first.IsHit())

	second, ok := b.Resolve(module.ResolveContext{Type: module.TypeBundle, Specifier: requested})
	require.True(t, ok)
	require.True(t, second.IsHit())

	assert.Same(t, first.Module, second.Module)
	assert.Equal(t, 1, calls)
}

func TestFallbackModuleBundleConcurrentResolveCallsOnce(t *testing.T) {
	t.Parallel()

	specifier := mustURL(t, "file:///a.js")
	var calls int
	var mu sync.Mutex
	b := bundle.NewFallbackModuleBundle(func(ctx module.ResolveContext) (module.Module, string, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		return module.NewEsModule(specifier, "1", module.FlagNone), "", nil
	})

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

func TestFallbackModuleBundleMiss(t *testing.T) {
	t.Parallel()

	b := bundle.NewFallbackModuleBundle(func(ctx module.ResolveContext) (module.Module, string, error) {
		return nil, "", nil
	})

	_, ok := b.Resolve(module.ResolveContext{Type: module.TypeBundle, Specifier: mustURL(t, "file:///missing.js")})
	assert.False(t, ok)
}

func TestFallbackModuleBundleType(t *testing.T) {
	t.Parallel()

	b := bundle.NewFallbackModuleBundle(func(module.ResolveContext) (module.Module, string, error) {
		return nil, "", nil
	})
	assert.Equal(t, module.TypeFallback, b.Type())
}
