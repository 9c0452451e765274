package bundle

import (
	"fmt"

	"github.com/spf13/afero"

	"github.com/modhost/registry/pkg/module"
)

// NewAferoFallbackModuleBundle builds a FallbackModuleBundle backed by an
// afero.Fs: a file: specifier resolves by reading fs at the specifier's
// path, the same virtual-fs shape
// the teacher resolves module_loading_test.go fixtures against
// (afero.NewMemMapFs, afero.WriteFile). A specifier the filesystem doesn't
// have is a miss, not an error, letting resolution fall through to a parent
// registry.
func NewAferoFallbackModuleBundle(fs afero.Fs) *FallbackModuleBundle {
	return NewFallbackModuleBundle(func(ctx module.ResolveContext) (module.Module, string, error) {
		if !isFileScheme(ctx.Specifier) {
			return nil, "", nil
		}
		path := ctx.Specifier.Path()
		exists, err := afero.Exists(fs, path)
		if err != nil {
			return nil, "", fmt.Errorf("afero fallback: checking %q: %w", path, err)
		}
		if !exists {
			return nil, "", nil
		}
		src, err := afero.ReadFile(fs, path)
		if err != nil {
			return nil, "", fmt.Errorf("afero fallback: reading %q: %w", path, err)
		}
		return module.NewEsModule(ctx.Specifier, string(src), module.FlagNone), "", nil
	})
}
