package bundle_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modhost/registry/pkg/bundle"
	"github.com/modhost/registry/pkg/module"
)

func TestBuiltinBuilderRejectsFileScheme(t *testing.T) {
	t.Parallel()

	b := bundle.NewBuiltinBuilder(module.TypeBuiltin)
	specifier := mustURL(t, "file:///a.js")

	err := b.Add(specifier, func() (module.Module, string, error) {
		return module.NewEsModule(specifier, "1", module.FlagNone), "", nil
	})
	assert.Error(t, err)
}

func TestBuiltinBuilderAcceptsNonFileScheme(t *testing.T) {
	t.Parallel()

	b := bundle.NewBuiltinBuilder(module.TypeBuiltinOnly)
	specifier := mustURL(t, "k6:///internal/http")

	require.NoError(t, b.Add(specifier, func() (module.Module, string, error) {
		return module.NewEsModule(specifier, "1", module.FlagNone), "", nil
	}))

	res, ok := b.Resolve(module.ResolveContext{Type: module.TypeBuiltinOnly, Specifier: specifier})
	require.True(t, ok)
	assert.True(t, res.IsHit())
}

func TestBuiltinBuilderAliasRejectsFileScheme(t *testing.T) {
	t.Parallel()

	b := bundle.NewBuiltinBuilder(module.TypeBuiltin)
	assert.Error(t, b.AddAlias(mustURL(t, "file:///from.js"), mustURL(t, "k6:///to")))
	assert.Error(t, b.AddAlias(mustURL(t, "k6:///from"), mustURL(t, "file:///to.js")))
}
