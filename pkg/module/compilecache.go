package module

import (
	"sync"

	"github.com/modhost/registry/pkg/engine"
	"github.com/modhost/registry/pkg/observer"
)

// compileCache is the per-EsModule thread-safe slot holding the compiled
// *engine.Program for reuse across isolates. A *engine.Program is
// runtime-agnostic, so "compatible with the current isolate" degenerates
// to "present" -- see pkg/engine's doc comment.
type compileCache struct {
	mu   sync.RWMutex
	prog *engine.Program
}

// read returns the cached program if present, reporting a cache hit to obs.
func (c *compileCache) read(specifier string, obs observer.Observer) *engine.Program {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.prog != nil {
		obs.CompileCacheHit(specifier)
		return c.prog
	}
	obs.CompileCacheMiss(specifier)
	return nil
}

// store installs prog if the slot is still empty, double-checking under the
// exclusive lock so concurrent compiles on multiple isolates race to store
// at most once.
func (c *compileCache) store(specifier string, prog *engine.Program, obs observer.Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.prog != nil {
		return
	}
	c.prog = prog
	obs.CompileCacheGenerated(specifier)
}
