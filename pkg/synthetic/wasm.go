package synthetic

import (
	"context"
	"fmt"
	"sync"

	"github.com/tetratelabs/wazero"

	"github.com/modhost/registry/pkg/engine"
	"github.com/modhost/registry/pkg/module"
	"github.com/modhost/registry/pkg/moduleurl"
	"github.com/modhost/registry/pkg/observer"
)

// wasmCache is the per-module compiled-artifact cache: a
// wazero.CompiledModule is safe to instantiate repeatedly, so one compile
// per Wasm synthetic module -- not per isolate -- is enough; this mirrors
// the ESM compile cache's read-fast-path/write-once-under-lock shape
// (pkg/module/compilecache.go).
type wasmCache struct {
	mu       sync.RWMutex
	compiled wazero.CompiledModule
}

func (c *wasmCache) get() wazero.CompiledModule {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.compiled
}

func (c *wasmCache) storeOrReuse(m wazero.CompiledModule) wazero.CompiledModule {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.compiled == nil {
		c.compiled = m
	}
	return c.compiled
}

// NewWasmModule builds a module whose default export is a compiled Wasm
// module object. rt must have been constructed with a shared
// wazero.CompilationCache (wazero.NewRuntimeConfigCompiler().
// WithCompilationCache(...)) for background compilation to have any effect
// -- wazero performs ahead-of-time compilation on its own worker pool when
// a compilation cache is configured (see DESIGN.md).
func NewWasmModule(ctx context.Context, rt wazero.Runtime, specifier moduleurl.Url, typ module.Type, binary []byte) module.Module {
	cache := &wasmCache{}
	return module.NewSyntheticModule(specifier, typ, nil, func(handle *engine.Handle, spec moduleurl.Url, ns *module.Namespace, _ observer.Observer) bool {
		compiled := cache.get()
		if compiled == nil {
			fresh, err := rt.CompileModule(ctx, binary)
			if err != nil {
				_ = handle.FailEvaluate(fmt.Errorf("compiling wasm module %s: %w", spec.String(), err))
				return false
			}
			compiled = cache.storeOrReuse(fresh)
			if compiled != fresh {
				// Lost the race to another isolate; release the redundant
				// compile instead of leaking it.
				_ = fresh.Close(ctx)
			}
		}
		if err := ns.Set("default", handle.Runtime().ToValue(compiled)); err != nil {
			_ = handle.FailEvaluate(err)
			return false
		}
		return true
	}, false)
}
