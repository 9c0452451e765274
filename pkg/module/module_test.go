package module_test

import (
	"testing"

	"github.com/grafana/sobek"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modhost/registry/pkg/engine"
	"github.com/modhost/registry/pkg/module"
	"github.com/modhost/registry/pkg/moduleurl"
	"github.com/modhost/registry/pkg/observer"
)

func mustURL(t *testing.T, s string) moduleurl.Url {
	t.Helper()
	u, err := moduleurl.TryParse(s)
	require.NoError(t, err)
	return u
}

func TestEsModuleInvariantAlwaysHasEvalAndESM(t *testing.T) {
	t.Parallel()

	m := module.NewEsModule(mustURL(t, "file:///a.js"), "export const x = 1;", module.FlagNone)
	assert.True(t, m.Flags().Has(module.FlagESM))
	assert.True(t, m.Flags().Has(module.FlagEval))
}

func TestEsModuleCompileAndEvaluate(t *testing.T) {
	t.Parallel()

	rt := sobek.New()
	m := module.NewEsModule(mustURL(t, "file:///a.js"), "1 + 1", module.FlagNone)

	handle, err := m.GetDescriptor(rt, observer.Noop{})
	require.NoError(t, err)
	require.True(t, m.Instantiate(handle, observer.Noop{}))

	promise, err := m.Evaluate(handle, observer.Noop{}, nil)
	require.NoError(t, err)
	assert.Equal(t, engine.PromiseFulfilled, promise.State())
	assert.Equal(t, engine.StatusEvaluated, handle.Status())
}

func TestEsModuleSecondDescriptorHitsCompileCache(t *testing.T) {
	t.Parallel()

	m := module.NewEsModule(mustURL(t, "file:///a.js"), "1", module.FlagNone)
	obs := &countingObserver{}

	rt1 := sobek.New()
	_, err := m.GetDescriptor(rt1, obs)
	require.NoError(t, err)
	assert.Equal(t, 1, obs.misses)
	assert.Equal(t, 1, obs.generated)

	rt2 := sobek.New()
	_, err = m.GetDescriptor(rt2, obs)
	require.NoError(t, err)
	assert.Equal(t, 1, obs.hits)
}

func TestSyntheticModuleDefaultExport(t *testing.T) {
	t.Parallel()

	rt := sobek.New()
	specifier := mustURL(t, "text:///greeting")
	m := module.NewSyntheticModule(specifier, module.TypeBundle, nil, func(handle *engine.Handle, _ moduleurl.Url, ns *module.Namespace, _ observer.Observer) bool {
		return ns.Set("default", handle.Runtime().ToValue("hello")) == nil
	}, false)

	assert.False(t, m.Flags().Has(module.FlagESM))
	assert.False(t, m.Flags().Has(module.FlagMain))

	handle, err := m.GetDescriptor(rt, observer.Noop{})
	require.NoError(t, err)
	require.True(t, m.Instantiate(handle, observer.Noop{}))

	promise, err := m.Evaluate(handle, observer.Noop{}, nil)
	require.NoError(t, err)
	assert.Equal(t, engine.PromiseFulfilled, promise.State())

	got := handle.Namespace().Get("default")
	require.NotNil(t, got)
	assert.Equal(t, "hello", got.String())
}

func TestSyntheticModuleEvaluationFailurePropagates(t *testing.T) {
	t.Parallel()

	rt := sobek.New()
	specifier := mustURL(t, "text:///broken")
	m := module.NewSyntheticModule(specifier, module.TypeBundle, nil, func(_ *engine.Handle, _ moduleurl.Url, _ *module.Namespace, _ observer.Observer) bool {
		return false
	}, false)

	handle, err := m.GetDescriptor(rt, observer.Noop{})
	require.NoError(t, err)
	require.True(t, m.Instantiate(handle, observer.Noop{}))

	promise, err := m.Evaluate(handle, observer.Noop{}, nil)
	require.Error(t, err)
	assert.Equal(t, engine.PromiseRejected, promise.State())
	assert.ErrorIs(t, err, module.ErrSyntheticEvaluationFailed)
}

func TestNamespaceSetRejectsUndeclaredExport(t *testing.T) {
	t.Parallel()

	rt := sobek.New()
	specifier := mustURL(t, "text:///named")
	var setErr error
	m := module.NewSyntheticModule(specifier, module.TypeBundle, []string{"x"}, func(handle *engine.Handle, _ moduleurl.Url, ns *module.Namespace, _ observer.Observer) bool {
		if err := ns.Set("default", rt.ToValue(1)); err != nil {
			setErr = err
			return false
		}
		if err := ns.Set("x", rt.ToValue(2)); err != nil {
			setErr = err
			return false
		}
		setErr = ns.Set("y", rt.ToValue(3))
		return setErr == nil
	}, false)

	handle, err := m.GetDescriptor(rt, observer.Noop{})
	require.NoError(t, err)
	require.True(t, m.Instantiate(handle, observer.Noop{}))

	_, err = m.Evaluate(handle, observer.Noop{}, nil)
	require.Error(t, err)
	assert.Error(t, setErr)
}

func TestEvaluateContextDefaultMatchesExactSpecifier(t *testing.T) {
	t.Parallel()

	specifier := mustURL(t, "file:///a.js")
	m := module.NewEsModule(specifier, "1", module.FlagNone)

	ctx := module.ResolveContext{Type: module.TypeBundle, Specifier: specifier}
	assert.True(t, m.EvaluateContext(ctx))

	other := mustURL(t, "file:///b.js")
	assert.False(t, m.EvaluateContext(module.ResolveContext{Type: module.TypeBundle, Specifier: other}))
}

type countingObserver struct {
	observer.Noop
	hits, misses, generated int
}

func (c *countingObserver) CompileCacheHit(string)       { c.hits++ }
func (c *countingObserver) CompileCacheMiss(string)      { c.misses++ }
func (c *countingObserver) CompileCacheGenerated(string) { c.generated++ }
