package synthetic

import (
	"encoding/json"
	"fmt"

	"github.com/modhost/registry/pkg/engine"
	"github.com/modhost/registry/pkg/module"
	"github.com/modhost/registry/pkg/moduleurl"
	"github.com/modhost/registry/pkg/observer"
)

// NewJSONModule builds a module whose default export is data parsed as
// JSON. encoding/json is the one standard library dependency kept in this
// repository's domain stack -- DESIGN.md records why no pack library fits
// decoding unknown JSON into a generic exported value.
func NewJSONModule(specifier moduleurl.Url, typ module.Type, data []byte) module.Module {
	return module.NewSyntheticModule(specifier, typ, nil, func(handle *engine.Handle, spec moduleurl.Url, ns *module.Namespace, _ observer.Observer) bool {
		var parsed interface{}
		if err := json.Unmarshal(data, &parsed); err != nil {
			_ = handle.FailEvaluate(fmt.Errorf("parsing JSON module %s: %w", spec.String(), err))
			return false
		}
		if err := ns.Set("default", handle.Runtime().ToValue(parsed)); err != nil {
			_ = handle.FailEvaluate(err)
			return false
		}
		return true
	}, false)
}
