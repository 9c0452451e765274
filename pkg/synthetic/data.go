package synthetic

import (
	"github.com/modhost/registry/pkg/engine"
	"github.com/modhost/registry/pkg/module"
	"github.com/modhost/registry/pkg/moduleurl"
	"github.com/modhost/registry/pkg/observer"
)

// NewDataModule builds a module whose default export is data, copied into
// an engine-owned ArrayBuffer so mutation of data after construction never
// leaks into the engine.
func NewDataModule(specifier moduleurl.Url, typ module.Type, data []byte) module.Module {
	return module.NewSyntheticModule(specifier, typ, nil, func(handle *engine.Handle, spec moduleurl.Url, ns *module.Namespace, _ observer.Observer) bool {
		owned := make([]byte, len(data))
		copy(owned, data)
		rt := handle.Runtime()
		if err := ns.Set("default", rt.ToValue(rt.NewArrayBuffer(owned))); err != nil {
			_ = handle.FailEvaluate(err)
			return false
		}
		return true
	}, false)
}
