// Package synthetic provides the built-in synthetic module factories
// available out of the box: text, data, JSON and Wasm. Each wraps
// module.NewSyntheticModule with an EvaluateCallback that installs a single
// "default" export.
package synthetic

import (
	"github.com/modhost/registry/pkg/engine"
	"github.com/modhost/registry/pkg/module"
	"github.com/modhost/registry/pkg/moduleurl"
	"github.com/modhost/registry/pkg/observer"
)

// NewTextModule builds a module whose default export is text, the source
// text as a string.
func NewTextModule(specifier moduleurl.Url, typ module.Type, text string) module.Module {
	return module.NewSyntheticModule(specifier, typ, nil, func(handle *engine.Handle, spec moduleurl.Url, ns *module.Namespace, _ observer.Observer) bool {
		if err := ns.Set("default", handle.Runtime().ToValue(text)); err != nil {
			_ = handle.FailEvaluate(err)
			return false
		}
		return true
	}, false)
}
